package binding

import (
	"context"
	"fmt"
	"strings"
)

// Model is a single record payload as exchanged with the request client.
type Model map[string]any

// Collection is an ordered list of records returned by index requests.
type Collection []Model

// Params carries request parameters (query values, route identifiers).
type Params map[string]any

// Record is one unit of a broadcast snapshot. Consumers reconcile records
// against their own lists using the configured record key.
type Record map[string]any

// DefaultRecordKey is used when no record key is configured.
const DefaultRecordKey = "id"

// ErrorDetail describes one failed field or validation rule.
type ErrorDetail struct {
	Field   string `json:"field,omitempty" yaml:"field,omitempty"`
	Message string `json:"message" yaml:"message"`
	Code    string `json:"code,omitempty" yaml:"code,omitempty"`
}

func (e ErrorDetail) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Response is the normalized shape of a server response.
type Response[T any] struct {
	Data    T             `json:"data"`
	Loading bool          `json:"loading"`
	Errors  []ErrorDetail `json:"errors"`
	Records []Record      `json:"records,omitempty"`
}

// Normalize guarantees Errors is never nil.
func (r Response[T]) Normalize() Response[T] {
	if r.Errors == nil {
		r.Errors = []ErrorDetail{}
	}
	return r
}

// OK reports whether the response carries no errors.
func (r Response[T]) OK() bool {
	return len(r.Errors) == 0
}

// Err joins the response errors into a single message, or returns nil when the
// response is successful.
func (r Response[T]) Err() error {
	if r.OK() {
		return nil
	}
	parts := make([]string, 0, len(r.Errors))
	for _, detail := range r.Errors {
		parts = append(parts, detail.Error())
	}
	return fmt.Errorf("binding: response errors: %s", strings.Join(parts, "; "))
}

// State is the per-binding state held in its cell.
type State[T any] struct {
	Data       T
	Loading    bool
	Submitting bool
	Errors     []ErrorDetail
}

// QueryState drives list fetches.
type QueryState struct {
	Params Params
	Append bool
	Skip   bool
}

// Client is the request client consumed by bindings. Implementations
// normalize transport failures into Response.Errors and only return a Go error
// when the request could not be attempted or was cancelled.
type Client interface {
	Index(ctx context.Context, resource string, params Params) (Response[Collection], error)
	Show(ctx context.Context, resource string, params Params) (Response[Model], error)
	Store(ctx context.Context, resource string, data Model) (Response[Model], error)
	Update(ctx context.Context, resource string, data Model) (Response[Model], error)
	Delete(ctx context.Context, resource string, params Params) (Response[Model], error)
	Login(ctx context.Context, credentials Model) (Response[Model], error)
	Logout(ctx context.Context, data Model) (Response[Model], error)
}

// ClientConfig carries the settings a factory applies to its client.
type ClientConfig struct {
	API         string
	BearerToken string
	Records     []Record
	RecordKey   string
}

// Configurer is implemented by clients that accept factory configuration. The
// returned client must not share mutable configuration with the receiver.
type Configurer interface {
	Configure(cfg ClientConfig) Client
}

// RecordSetter receives broadcast record snapshots together with the key
// consumers should reconcile on.
type RecordSetter func(records []Record, key string)

// Value returns the key value of the record.
func (r Record) Value(key string) (any, bool) {
	if r == nil {
		return nil, false
	}
	if key == "" {
		key = DefaultRecordKey
	}
	v, ok := r[key]
	return v, ok
}
