package binding

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goliatone/go-binding/internal/merge"
	"github.com/goliatone/go-binding/pkg/activity"
)

var (
	// ErrClosed is returned by operations on a closed binding.
	ErrClosed = errors.New("binding: closed")
	// ErrResourceRequired is returned when a binding is requested without a
	// resource name.
	ErrResourceRequired = errors.New("binding: resource required")
	// ErrClientRequired is returned by New when no client is provided.
	ErrClientRequired = errors.New("binding: client required")
)

// Factory produces bindings that share one client configuration and one
// record broadcaster.
type Factory struct {
	cfg         config
	base        Client
	mu          sync.RWMutex
	client      Client
	records     []Record
	recordKey   string
	broadcaster *Broadcaster
	emitter     *activity.Emitter
	loggers     requestLoggers
}

// New configures client with opts and returns a factory. Clients implementing
// Configurer receive the api namespace, bearer token and records. Records is
// non-nil whenever a record setter is registered.
func New(client Client, opts ...Option) (*Factory, error) {
	if client == nil {
		return nil, ErrClientRequired
	}
	cfg := applyOptions(opts)
	if err := errors.Join(cfg.errs...); err != nil {
		return nil, err
	}
	if cfg.programCache == nil {
		cfg.programCache = NewMemoryProgramCache()
	}
	f := &Factory{
		cfg:         cfg,
		base:        client,
		records:     merge.Clone(cfg.records),
		recordKey:   cfg.recordKey,
		broadcaster: NewBroadcaster(cfg.recordSetter, cfg.recordKey),
		emitter: activity.NewEmitter(cfg.activityHooks, activity.Config{
			Enabled: len(cfg.activityHooks) > 0,
			Channel: cfg.activityChannel,
		}),
		loggers: requestLoggers(cfg.requestLoggers),
	}
	if f.records == nil && cfg.recordSetter != nil {
		f.records = []Record{}
	}
	if len(cfg.mapping) > 0 {
		if err := f.newMapper("").Validate(); err != nil {
			return nil, err
		}
	}
	f.client = f.configure()
	return f, nil
}

// Records replaces the broadcast setter, hands initial to the client and
// changes the record key for every binding of the factory. An empty key falls
// back to DefaultRecordKey.
func (f *Factory) Records(setter RecordSetter, initial []Record, key string) {
	if key == "" {
		key = DefaultRecordKey
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = merge.Clone(initial)
	if f.records == nil && setter != nil {
		f.records = []Record{}
	}
	f.recordKey = key
	f.broadcaster.Register(setter, key)
	f.client = f.configure()
}

// Broadcaster returns the broadcaster shared by the factory's bindings.
func (f *Factory) Broadcaster() *Broadcaster {
	return f.broadcaster
}

// Client returns the configured client.
func (f *Factory) Client() Client {
	return f.currentClient()
}

// RecordKey returns the record key bindings use.
func (f *Factory) RecordKey() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.recordKey
}

// configure must be called with f.mu held or before f is shared.
func (f *Factory) configure() Client {
	configurer, ok := f.base.(Configurer)
	if !ok {
		return f.base
	}
	configured := configurer.Configure(ClientConfig{
		API:         f.cfg.api,
		BearerToken: f.cfg.bearerToken,
		Records:     merge.Clone(f.records),
		RecordKey:   f.recordKey,
	})
	if configured == nil {
		return f.base
	}
	return configured
}

func (f *Factory) currentClient() Client {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.client
}

// List returns a list binding over resource. With WithData the binding is
// seeded from the preload and its first Load is skipped.
func (f *Factory) List(resource string, params Params) (*List, error) {
	data := merge.Clone(f.cfg.data)
	if data == nil {
		data = Collection{}
	}
	c, err := newCore(f, resource, State[Collection]{Data: data, Errors: []ErrorDetail{}})
	if err != nil {
		return nil, err
	}
	return newList(c, params, f.cfg.hasData), nil
}

// Single returns a single-record binding over resource.
func (f *Factory) Single(resource string, params Params) (*Single, error) {
	c, err := newCore(f, resource, State[Model]{Data: Model{}, Errors: []ErrorDetail{}})
	if err != nil {
		return nil, err
	}
	return newSingle(c, params), nil
}

// Create returns a form that stores initial merged with local patches.
func (f *Factory) Create(resource string, initial Model) (*Form, error) {
	return f.form(resource, formCreate, initial)
}

// Update returns a form that updates resource. When params is non-empty,
// Hydrate fetches the record and resolves every initial field through the
// factory mapping.
func (f *Factory) Update(resource string, initial Model, params Params) (*UpdateForm, error) {
	form, err := f.form(resource, formUpdate, initial)
	if err != nil {
		return nil, err
	}
	return &UpdateForm{
		Form:   form,
		params: merge.Clone(params),
		mapper: f.newMapper(resource),
	}, nil
}

// Delete returns a delete binding with base params merged into every submit.
func (f *Factory) Delete(resource string, params Params) (*Delete, error) {
	c, err := newCore(f, resource, State[struct{}]{Errors: []ErrorDetail{}})
	if err != nil {
		return nil, err
	}
	return &Delete{core: c, params: merge.Clone(params)}, nil
}

// Login returns a form that authenticates with the submitted credentials.
// Login responses are never broadcast.
func (f *Factory) Login(initial Model) (*Form, error) {
	return f.form(activity.SessionObjectType, formLogin, initial)
}

// Logout returns a form that ends the current session.
func (f *Factory) Logout(initial Model) (*Form, error) {
	return f.form(activity.SessionObjectType, formLogout, initial)
}

func (f *Factory) form(resource string, kind formKind, initial Model) (*Form, error) {
	if initial == nil {
		initial = Model{}
	}
	c, err := newCore(f, resource, State[Model]{
		Data:   merge.Clone(initial),
		Errors: []ErrorDetail{},
	})
	if err != nil {
		return nil, err
	}
	return &Form{core: c, kind: kind, initial: merge.Clone(initial)}, nil
}

func (f *Factory) newMapper(resource string) *FieldMapper {
	opts := []MapperOption{
		MapperWithResource(resource),
		MapperWithProgramCache(f.cfg.programCache),
	}
	if f.cfg.evaluator != nil {
		opts = append(opts, MapperWithEvaluator(f.cfg.evaluator))
	}
	if f.cfg.functions != nil {
		opts = append(opts, MapperWithFunctionRegistry(f.cfg.functions))
	}
	if f.cfg.evaluatorLogger != nil {
		opts = append(opts, MapperWithLogger(f.cfg.evaluatorLogger))
	}
	return NewFieldMapper(f.cfg.mapping, opts...)
}

func (f *Factory) logRequest(event RequestLogEvent) {
	if len(f.loggers) == 0 {
		return
	}
	f.loggers.LogRequest(event)
}

func (f *Factory) emit(ctx context.Context, event activity.Event) error {
	if !f.emitter.Enabled() {
		return nil
	}
	if err := f.emitter.Emit(ctx, event); err != nil {
		return fmt.Errorf("binding: activity %s: %w", event.Verb, err)
	}
	return nil
}
