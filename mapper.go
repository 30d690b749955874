package binding

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MapEntry describes how one target field is resolved from a payload. Exactly
// one of Transform, Expr or Path is used, in that order of precedence.
type MapEntry struct {
	Path      string
	Transform func(payload Model) any
	Expr      string
	Engine    string
}

// Path maps a field to a dotted access path into the payload.
func Path(path string) MapEntry {
	return MapEntry{Path: path}
}

// Transform maps a field through fn, invoked with the full payload.
func Transform(fn func(payload Model) any) MapEntry {
	return MapEntry{Transform: fn}
}

// Expr maps a field through an expression evaluated by the default engine.
func Expr(expression string) MapEntry {
	return MapEntry{Expr: expression}
}

// ExprWith maps a field through an expression evaluated by engine.
func ExprWith(engine, expression string) MapEntry {
	return MapEntry{Expr: expression, Engine: engine}
}

func (e MapEntry) kind() string {
	switch {
	case e.Transform != nil:
		return "transform"
	case e.Expr != "":
		return "expr"
	case e.Path != "":
		return "path"
	default:
		return ""
	}
}

// Mapping maps target field names to their resolution entries.
type Mapping map[string]MapEntry

// ResolvePath walks a dotted path through nested maps and slices. Numeric
// segments index into slices. Any missing segment yields "", keeping bound
// form fields controlled.
func ResolvePath(payload Model, path string) any {
	if value, ok := lookupPath(payload, path); ok && value != nil {
		return value
	}
	return ""
}

func lookupPath(payload Model, path string) (any, bool) {
	path = strings.TrimSpace(path)
	if payload == nil || path == "" {
		return nil, false
	}
	current := any(map[string]any(payload))
	for _, segment := range strings.Split(path, ".") {
		next, ok := step(current, segment)
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

// step descends one path segment. The common payload shapes are matched
// directly; any other map keyed by strings or any slice or array falls back to
// reflection.
func step(node any, segment string) (any, bool) {
	switch node := node.(type) {
	case map[string]any:
		next, ok := node[segment]
		return next, ok
	case Model:
		next, ok := node[segment]
		return next, ok
	case Record:
		next, ok := node[segment]
		return next, ok
	case []any:
		return indexOf(node, segment)
	case Collection:
		index, ok := parseIndex(segment, len(node))
		if !ok {
			return nil, false
		}
		return node[index], true
	}

	value := reflect.ValueOf(node)
	for value.Kind() == reflect.Pointer || value.Kind() == reflect.Interface {
		if value.IsNil() {
			return nil, false
		}
		value = value.Elem()
	}
	switch value.Kind() {
	case reflect.Map:
		keyType := value.Type().Key()
		if keyType.Kind() != reflect.String {
			return nil, false
		}
		next := value.MapIndex(reflect.ValueOf(segment).Convert(keyType))
		if !next.IsValid() {
			return nil, false
		}
		return next.Interface(), true
	case reflect.Slice, reflect.Array:
		index, ok := parseIndex(segment, value.Len())
		if !ok {
			return nil, false
		}
		return value.Index(index).Interface(), true
	default:
		return nil, false
	}
}

func indexOf(items []any, segment string) (any, bool) {
	index, ok := parseIndex(segment, len(items))
	if !ok {
		return nil, false
	}
	return items[index], true
}

func parseIndex(segment string, length int) (int, bool) {
	index, err := strconv.Atoi(segment)
	if err != nil || index < 0 || index >= length {
		return 0, false
	}
	return index, true
}

// FieldMapper resolves form field values from fetched payloads.
type FieldMapper struct {
	mapping    Mapping
	resource   string
	mu         sync.Mutex
	evaluators map[string]Evaluator
	fallback   Evaluator
	cache      ProgramCache
	registry   *FunctionRegistry
	logger     EvaluatorLogger
}

// MapperOption configures a FieldMapper.
type MapperOption func(*FieldMapper)

// MapperWithEvaluator sets the evaluator used by Expr entries with no engine.
func MapperWithEvaluator(evaluator Evaluator) MapperOption {
	return func(m *FieldMapper) {
		m.fallback = evaluator
	}
}

// MapperWithProgramCache shares cache with the built-in evaluators.
func MapperWithProgramCache(cache ProgramCache) MapperOption {
	return func(m *FieldMapper) {
		m.cache = cache
	}
}

// MapperWithFunctionRegistry exposes registry functions to expressions.
func MapperWithFunctionRegistry(registry *FunctionRegistry) MapperOption {
	return func(m *FieldMapper) {
		m.registry = registry.Clone()
	}
}

// MapperWithLogger records each expression evaluation.
func MapperWithLogger(logger EvaluatorLogger) MapperOption {
	return func(m *FieldMapper) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// MapperWithResource labels evaluation contexts and errors with resource.
func MapperWithResource(resource string) MapperOption {
	return func(m *FieldMapper) {
		m.resource = resource
	}
}

// NewFieldMapper constructs a mapper over mapping. The mapping is copied.
func NewFieldMapper(mapping Mapping, opts ...MapperOption) *FieldMapper {
	m := &FieldMapper{
		mapping:    make(Mapping, len(mapping)),
		evaluators: map[string]Evaluator{},
		logger:     noopEvaluatorLogger{},
	}
	for field, entry := range mapping {
		m.mapping[field] = entry
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Validate compiles every expression entry so malformed mappings fail before
// the first hydration.
func (m *FieldMapper) Validate() error {
	for field, entry := range m.mapping {
		if entry.kind() != "expr" {
			continue
		}
		evaluator, err := m.evaluator(entry.Engine)
		if err != nil {
			return fmt.Errorf("binding: mapping field %q: %w", field, err)
		}
		if _, err := evaluator.Compile(entry.Expr); err != nil {
			return fmt.Errorf("binding: mapping field %q: %w", field, err)
		}
	}
	return nil
}

// Resolve returns the value of field for payload. ok is false when the field
// has no mapping entry and the payload has no same-named property.
func (m *FieldMapper) Resolve(field string, payload Model) (value any, ok bool, err error) {
	entry, mapped := m.mapping[field]
	if !mapped || entry.kind() == "" {
		value, ok = payload[field]
		return value, ok, nil
	}
	value, err = m.ResolveEntry(field, entry, payload)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// ResolveEntry applies a single mapping entry to payload.
func (m *FieldMapper) ResolveEntry(field string, entry MapEntry, payload Model) (any, error) {
	switch entry.kind() {
	case "transform":
		return entry.Transform(payload), nil
	case "expr":
		return m.evaluate(field, entry, payload)
	case "path":
		return ResolvePath(payload, entry.Path), nil
	default:
		return payload[field], nil
	}
}

// Hydrate builds the patch for every key of fields, resolved from payload.
// Keys that cannot be resolved are omitted so their current value is kept.
func (m *FieldMapper) Hydrate(fields Model, payload Model) (Model, error) {
	patch := make(Model, len(fields))
	for field := range fields {
		value, ok, err := m.Resolve(field, payload)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		patch[field] = value
	}
	return patch, nil
}

func (m *FieldMapper) evaluate(field string, entry MapEntry, payload Model) (any, error) {
	evaluator, err := m.evaluator(entry.Engine)
	if err != nil {
		return nil, err
	}
	ctx := RuleContext{
		Snapshot: payload,
		Field:    field,
		Resource: m.resource,
	}.withDefaults()

	start := time.Now()
	value, evalErr := evaluator.Evaluate(ctx, entry.Expr)
	engine := evaluatorEngineName(evaluator)
	evalErr = wrapEvaluationError(engine, entry.Expr, ctx.label(), evalErr)
	m.logger.LogEvaluation(EvaluatorLogEvent{
		Engine:   engine,
		Expr:     entry.Expr,
		Field:    ctx.label(),
		Duration: time.Since(start),
		Err:      evalErr,
	})
	if evalErr != nil {
		return nil, evalErr
	}
	return value, nil
}

func (m *FieldMapper) evaluator(engine string) (Evaluator, error) {
	engine = strings.ToLower(strings.TrimSpace(engine))
	if engine == "" && m.fallback != nil {
		return m.fallback, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if evaluator, ok := m.evaluators[engine]; ok {
		return evaluator, nil
	}
	evaluator, err := NewEvaluator(engine, m.cache, m.registry)
	if err != nil {
		return nil, err
	}
	m.evaluators[engine] = evaluator
	return evaluator, nil
}
