// Package httpclient implements binding.Client over a JSON REST API.
//
// Routes, relative to the base URL and optional api namespace:
//
//	index   GET    /{api}/{resource}?params
//	show    GET    /{api}/{resource}/{id}?params
//	store   POST   /{api}/{resource}
//	update  PUT    /{api}/{resource}/{id}
//	delete  DELETE /{api}/{resource}/{id}?params
//	login   POST   /{api}/login
//	logout  POST   /{api}/logout
//
// Bodies use the envelope {"data": ..., "errors": [...], "records": [...]}.
// Non-2xx statuses and transport failures are reported as binding.ErrorDetail
// values. Context errors are returned as Go errors.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	binding "github.com/goliatone/go-binding"
	"github.com/goliatone/go-binding/internal/merge"
)

// Error codes reported in binding.ErrorDetail.Code.
const (
	CodeNetwork  = "network"
	CodeDecode   = "decode"
	CodeStatus   = "status"
	CodeRequired = "required"
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying http.Client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.http = httpClient
		}
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Set(key, value)
	}
}

// Client is a REST binding.Client. Configuration methods return copies, so a
// configured client never changes the receiver.
type Client struct {
	http      *http.Client
	baseURL   string
	api       string
	token     string
	recordKey string
	records   []binding.Record
	headers   http.Header
}

var (
	_ binding.Client     = (*Client)(nil)
	_ binding.Configurer = (*Client)(nil)
)

// New constructs a client rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		http:      http.DefaultClient,
		baseURL:   strings.TrimRight(baseURL, "/"),
		recordKey: binding.DefaultRecordKey,
		headers:   http.Header{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// API returns a copy of c using namespace as the path prefix.
func (c *Client) API(namespace string) *Client {
	next := c.clone()
	next.api = strings.Trim(namespace, "/")
	return next
}

// BearerToken returns a copy of c sending token in the Authorization header.
func (c *Client) BearerToken(token string) *Client {
	next := c.clone()
	next.token = token
	return next
}

// Records returns a copy of c holding records and their key. The key selects
// the id path segment of show, update and delete.
func (c *Client) Records(records []binding.Record, key string) *Client {
	next := c.clone()
	next.records = merge.Clone(records)
	if key == "" {
		key = binding.DefaultRecordKey
	}
	next.recordKey = key
	return next
}

// InitialRecords returns a copy of the records handed to the client.
func (c *Client) InitialRecords() []binding.Record {
	return merge.Clone(c.records)
}

// Configure implements binding.Configurer.
func (c *Client) Configure(cfg binding.ClientConfig) binding.Client {
	return c.API(cfg.API).BearerToken(cfg.BearerToken).Records(cfg.Records, cfg.RecordKey)
}

func (c *Client) clone() *Client {
	next := *c
	next.headers = c.headers.Clone()
	next.records = merge.Clone(c.records)
	return &next
}

// Index implements binding.Client.
func (c *Client) Index(ctx context.Context, resource string, params binding.Params) (binding.Response[binding.Collection], error) {
	return send[binding.Collection](ctx, c, http.MethodGet, c.endpoint(resource, ""), params, nil)
}

// Show implements binding.Client.
func (c *Client) Show(ctx context.Context, resource string, params binding.Params) (binding.Response[binding.Model], error) {
	id, rest := c.splitID(params)
	if id == "" {
		return c.missingID(), nil
	}
	return send[binding.Model](ctx, c, http.MethodGet, c.endpoint(resource, id), rest, nil)
}

// Store implements binding.Client.
func (c *Client) Store(ctx context.Context, resource string, data binding.Model) (binding.Response[binding.Model], error) {
	return send[binding.Model](ctx, c, http.MethodPost, c.endpoint(resource, ""), nil, data)
}

// Update implements binding.Client.
func (c *Client) Update(ctx context.Context, resource string, data binding.Model) (binding.Response[binding.Model], error) {
	id, _ := c.splitID(binding.Params(data))
	if id == "" {
		return c.missingID(), nil
	}
	return send[binding.Model](ctx, c, http.MethodPut, c.endpoint(resource, id), nil, data)
}

// Delete implements binding.Client.
func (c *Client) Delete(ctx context.Context, resource string, params binding.Params) (binding.Response[binding.Model], error) {
	id, rest := c.splitID(params)
	if id == "" {
		return c.missingID(), nil
	}
	return send[binding.Model](ctx, c, http.MethodDelete, c.endpoint(resource, id), rest, nil)
}

// Login implements binding.Client.
func (c *Client) Login(ctx context.Context, credentials binding.Model) (binding.Response[binding.Model], error) {
	return send[binding.Model](ctx, c, http.MethodPost, c.endpoint("login", ""), nil, credentials)
}

// Logout implements binding.Client.
func (c *Client) Logout(ctx context.Context, data binding.Model) (binding.Response[binding.Model], error) {
	return send[binding.Model](ctx, c, http.MethodPost, c.endpoint("logout", ""), nil, data)
}

func (c *Client) endpoint(resource, id string) string {
	segments := []string{c.baseURL}
	if c.api != "" {
		segments = append(segments, c.api)
	}
	segments = append(segments, strings.Trim(resource, "/"))
	if id != "" {
		segments = append(segments, url.PathEscape(id))
	}
	return strings.Join(segments, "/")
}

// missingID reports a member route called without its record key. No request
// is sent, so the collection route is never hit by accident.
func (c *Client) missingID() binding.Response[binding.Model] {
	return failure[binding.Model](binding.ErrorDetail{Field: c.recordKey, Message: "is required", Code: CodeRequired})
}

// splitID removes the record key from params and returns its value.
func (c *Client) splitID(params binding.Params) (string, binding.Params) {
	value, ok := params[c.recordKey]
	if !ok || value == nil {
		return "", params
	}
	rest := make(binding.Params, len(params))
	for key, v := range params {
		if key != c.recordKey {
			rest[key] = v
		}
	}
	return fmt.Sprint(value), rest
}

type envelope[T any] struct {
	Data    T                     `json:"data"`
	Errors  []binding.ErrorDetail `json:"errors"`
	Records []binding.Record      `json:"records"`
}

func send[T any](ctx context.Context, c *Client, method, endpoint string, params binding.Params, body binding.Model) (binding.Response[T], error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if query := encodeQuery(params); query != "" {
		endpoint += "?" + query
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return binding.Response[T]{}, fmt.Errorf("httpclient: encode %s %s: %w", method, endpoint, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return binding.Response[T]{}, fmt.Errorf("httpclient: build %s %s: %w", method, endpoint, err)
	}
	for key, values := range c.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return binding.Response[T]{}, ctxErr
		}
		return failure[T](binding.ErrorDetail{Message: err.Error(), Code: CodeNetwork}), nil
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return binding.Response[T]{}, ctxErr
		}
		return failure[T](binding.ErrorDetail{Message: err.Error(), Code: CodeNetwork}), nil
	}

	var env envelope[T]
	decodeErr := decode(raw, &env)
	success := res.StatusCode >= 200 && res.StatusCode < 300

	resp := binding.Response[T]{Data: env.Data, Errors: env.Errors, Records: env.Records}
	switch {
	case !success && len(resp.Errors) == 0:
		resp.Errors = []binding.ErrorDetail{{
			Message: statusMessage(res.StatusCode),
			Code:    fmt.Sprintf("%s_%d", CodeStatus, res.StatusCode),
		}}
	case success && decodeErr != nil:
		resp.Errors = []binding.ErrorDetail{{Message: decodeErr.Error(), Code: CodeDecode}}
	}
	return resp.Normalize(), nil
}

func decode[T any](raw []byte, env *envelope[T]) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, env); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return fmt.Errorf("httpclient: malformed response body at offset %d", syntaxErr.Offset)
		}
		return fmt.Errorf("httpclient: decode response: %w", err)
	}
	return nil
}

func failure[T any](detail binding.ErrorDetail) binding.Response[T] {
	return binding.Response[T]{Errors: []binding.ErrorDetail{detail}}.Normalize()
}

func statusMessage(code int) string {
	if text := http.StatusText(code); text != "" {
		return text
	}
	return fmt.Sprintf("unexpected status %d", code)
}

// encodeQuery renders params sorted by key. Slice values repeat the key.
func encodeQuery(params binding.Params) string {
	values := url.Values{}
	for key, value := range params {
		switch v := value.(type) {
		case nil:
		case []any:
			for _, item := range v {
				values.Add(key, fmt.Sprint(item))
			}
		case []string:
			for _, item := range v {
				values.Add(key, item)
			}
		default:
			values.Add(key, fmt.Sprint(v))
		}
	}
	return values.Encode()
}
