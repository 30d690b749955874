package hydrate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Context names the record being decoded. Index is the position inside a
// collection, or -1 for a single record.
type Context struct {
	Resource  string
	Operation string
	Index     int
}

// Record returns a context for a single record.
func Record(resource, operation string) Context {
	return Context{Resource: resource, Operation: operation, Index: -1}
}

func (c Context) String() string {
	if c.Index < 0 {
		return c.Resource
	}
	return c.Resource + "[" + strconv.Itoa(c.Index) + "]"
}

// Normalizer rewrites a record before it is decoded. Returning a nil map keeps
// the input.
type Normalizer func(Context, map[string]any) (map[string]any, error)

// Options tunes Decode.
type Options struct {
	// Strict rejects keys with no matching field in the target.
	Strict bool
	// UseNumber keeps numbers held by interface fields as json.Number.
	UseNumber   bool
	Normalizers []Normalizer
}

// Decode converts payload into T through its JSON shape. The payload passed to
// normalizers is a copy; the caller's record is never mutated.
func Decode[T any](ctx Context, payload map[string]any, opts Options) (T, error) {
	var zero T
	if payload == nil {
		return zero, fmt.Errorf("hydrate: %s: record is nil", ctx)
	}

	buffer, err := json.Marshal(payload)
	if err != nil {
		return zero, fmt.Errorf("hydrate: %s: marshal record: %w", ctx, err)
	}

	if len(opts.Normalizers) > 0 {
		var current map[string]any
		if err := json.Unmarshal(buffer, &current); err != nil {
			return zero, fmt.Errorf("hydrate: %s: copy record: %w", ctx, err)
		}
		for _, normalize := range opts.Normalizers {
			if normalize == nil {
				continue
			}
			next, err := normalize(ctx, current)
			if err != nil {
				return zero, fmt.Errorf("hydrate: %s: normalize: %w", ctx, err)
			}
			if next != nil {
				current = next
			}
		}
		if buffer, err = json.Marshal(current); err != nil {
			return zero, fmt.Errorf("hydrate: %s: marshal record: %w", ctx, err)
		}
	}

	decoder := json.NewDecoder(bytes.NewReader(buffer))
	if opts.Strict {
		decoder.DisallowUnknownFields()
	}
	if opts.UseNumber {
		decoder.UseNumber()
	}
	var result T
	if err := decoder.Decode(&result); err != nil {
		return zero, fmt.Errorf("hydrate: %s: %w", ctx, err)
	}
	return result, nil
}

// Encode converts value into a generic record using its JSON shape.
func Encode(value any) (map[string]any, error) {
	if value == nil {
		return nil, fmt.Errorf("hydrate: value is nil")
	}
	buffer, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("hydrate: marshal value: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(buffer, &out); err != nil {
		return nil, fmt.Errorf("hydrate: value is not an object: %w", err)
	}
	return out, nil
}
