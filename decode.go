package binding

import (
	"fmt"

	"github.com/goliatone/go-binding/internal/hydrate"
)

// DecodeOption tunes DecodeModel and DecodeCollection.
type DecodeOption[T any] func(*decodeConfig[T])

type decodeConfig[T any] struct {
	options hydrate.Options
	checks  []func(resource string, value *T) error
}

// DecodeStrict rejects record keys with no matching field in T.
func DecodeStrict[T any]() DecodeOption[T] {
	return func(c *decodeConfig[T]) {
		c.options.Strict = true
	}
}

// DecodeNumbers keeps numbers held by interface fields of T as json.Number,
// so large identifiers survive decoding.
func DecodeNumbers[T any]() DecodeOption[T] {
	return func(c *decodeConfig[T]) {
		c.options.UseNumber = true
	}
}

// DecodeNormalize rewrites every record before it is decoded. fn receives a
// copy of the record.
func DecodeNormalize[T any](fn func(resource string, model Model) (Model, error)) DecodeOption[T] {
	return func(c *decodeConfig[T]) {
		if fn == nil {
			return
		}
		c.options.Normalizers = append(c.options.Normalizers, func(ctx hydrate.Context, record map[string]any) (map[string]any, error) {
			next, err := fn(ctx.Resource, Model(record))
			return map[string]any(next), err
		})
	}
}

// DecodeCheck validates or adjusts every decoded value.
func DecodeCheck[T any](fn func(resource string, value *T) error) DecodeOption[T] {
	return func(c *decodeConfig[T]) {
		if fn != nil {
			c.checks = append(c.checks, fn)
		}
	}
}

func newDecodeConfig[T any](opts []DecodeOption[T]) *decodeConfig[T] {
	cfg := &decodeConfig[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}

func (c *decodeConfig[T]) decode(ctx hydrate.Context, model Model) (T, error) {
	value, err := hydrate.Decode[T](ctx, model, c.options)
	if err != nil {
		return value, err
	}
	for _, check := range c.checks {
		if err := check(ctx.Resource, &value); err != nil {
			var zero T
			return zero, fmt.Errorf("binding: check %s: %w", ctx, err)
		}
	}
	return value, nil
}

// DecodeModel converts a record payload into T through its JSON shape.
func DecodeModel[T any](resource string, model Model, opts ...DecodeOption[T]) (T, error) {
	return newDecodeConfig(opts).decode(hydrate.Record(resource, string(OpShow)), model)
}

// DecodeCollection converts every record of data into T, preserving order.
// Errors name the failing record as resource[index].
func DecodeCollection[T any](resource string, data Collection, opts ...DecodeOption[T]) ([]T, error) {
	cfg := newDecodeConfig(opts)
	out := make([]T, 0, len(data))
	for i, model := range data {
		item, err := cfg.decode(hydrate.Context{Resource: resource, Operation: string(OpIndex), Index: i}, model)
		if err != nil {
			return nil, fmt.Errorf("binding: decode: %w", err)
		}
		out = append(out, item)
	}
	return out, nil
}

// EncodeModel converts a struct into a Model suitable for Patch or WithData.
func EncodeModel(value any) (Model, error) {
	payload, err := hydrate.Encode(value)
	if err != nil {
		return nil, fmt.Errorf("binding: encode model: %w", err)
	}
	return Model(payload), nil
}
