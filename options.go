package binding

import (
	"context"

	"github.com/goliatone/go-binding/pkg/activity"
)

// Option configures a Factory. Options are applied once by New; the resulting
// configuration is never mutated afterwards.
type Option func(*config)

type config struct {
	ctx             context.Context
	api             string
	bearerToken     string
	recordSetter    RecordSetter
	records         []Record
	recordKey       string
	mapping         Mapping
	data            Collection
	hasData         bool
	evaluator       Evaluator
	programCache    ProgramCache
	functions       *FunctionRegistry
	evaluatorLogger EvaluatorLogger
	requestLoggers  []RequestLogger
	activityHooks   activity.Hooks
	activityChannel string
	errs            []error
}

func applyOptions(opts []Option) config {
	cfg := config{
		ctx:       context.Background(),
		recordKey: DefaultRecordKey,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithContext sets the parent context of every binding. Cancelling it has the
// same effect as closing all bindings produced by the factory.
func WithContext(ctx context.Context) Option {
	return func(cfg *config) {
		if ctx != nil {
			cfg.ctx = ctx
		}
	}
}

// WithAPI sets the api namespace applied to the client.
func WithAPI(namespace string) Option {
	return func(cfg *config) {
		cfg.api = namespace
	}
}

// WithBearerToken sets the bearer token applied to the client.
func WithBearerToken(token string) Option {
	return func(cfg *config) {
		cfg.bearerToken = token
	}
}

// WithRecords registers the broadcast setter, the initial records handed to the
// client and the record key. An empty key falls back to DefaultRecordKey.
func WithRecords(setter RecordSetter, initial []Record, key string) Option {
	return func(cfg *config) {
		cfg.recordSetter = setter
		cfg.records = append([]Record(nil), initial...)
		if key == "" {
			key = DefaultRecordKey
		}
		cfg.recordKey = key
	}
}

// WithMapping sets the field mapping used to hydrate update forms.
func WithMapping(mapping Mapping) Option {
	return func(cfg *config) {
		cfg.mapping = make(Mapping, len(mapping))
		for field, entry := range mapping {
			cfg.mapping[field] = entry
		}
	}
}

// WithData preloads list data. List bindings seed their state from it and skip
// their first fetch.
func WithData(data Collection) Option {
	return func(cfg *config) {
		cfg.data = append(Collection(nil), data...)
		cfg.hasData = true
	}
}

// WithEvaluator sets the evaluator used by Expr mapping entries without an
// explicit engine. Defaults to the expr-lang evaluator.
func WithEvaluator(e Evaluator) Option {
	return func(cfg *config) {
		cfg.evaluator = e
	}
}

// WithProgramCache shares compiled mapping programs across bindings.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *config) {
		cfg.programCache = cache
	}
}

// WithFunctionRegistry exposes registry functions to mapping expressions.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *config) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithCustomFunction registers fn under name for mapping expressions.
func WithCustomFunction(name string, fn Function) Option {
	return func(cfg *config) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		if err := cfg.functions.Register(name, fn); err != nil {
			cfg.errs = append(cfg.errs, err)
		}
	}
}

// WithEvaluatorLogger records mapping expression evaluations.
func WithEvaluatorLogger(logger EvaluatorLogger) Option {
	return func(cfg *config) {
		cfg.evaluatorLogger = logger
	}
}

// WithRequestLogger adds loggers notified after every request completes.
func WithRequestLogger(loggers ...RequestLogger) Option {
	return func(cfg *config) {
		for _, logger := range loggers {
			if logger != nil {
				cfg.requestLoggers = append(cfg.requestLoggers, logger)
			}
		}
	}
}

// WithActivityHooks emits activity events after successful mutations. Hooks
// are cloned and nil entries dropped.
func WithActivityHooks(hooks activity.Hooks, channel string) Option {
	normalized := cloneActivityHooks(hooks)
	return func(cfg *config) {
		cfg.activityHooks = normalized
		cfg.activityChannel = channel
	}
}

func cloneActivityHooks(hooks activity.Hooks) activity.Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make([]activity.ActivityHook, 0, len(hooks))
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		normalized = append(normalized, hook)
	}
	if len(normalized) == 0 {
		return nil
	}
	return activity.Hooks(normalized)
}
