// Package merge provides the copy and overlay helpers used to keep binding
// state detached from caller-owned maps and slices.
package merge

import "reflect"

// Overlay returns a new map holding base with each overlay applied in order.
// Later overlays win on key collisions. The merge is shallow: nested maps are
// replaced, not combined. Values are deep copied so the result never aliases
// the inputs.
func Overlay[M ~map[string]any](base M, overlays ...M) M {
	size := len(base)
	for _, overlay := range overlays {
		size += len(overlay)
	}
	out := make(M, size)
	for key, value := range base {
		out[key] = Clone(value)
	}
	for _, overlay := range overlays {
		for key, value := range overlay {
			out[key] = Clone(value)
		}
	}
	return out
}

// Concat returns a new slice with head followed by tail. Duplicates are kept.
func Concat[S ~[]E, E any](head, tail S) S {
	out := make(S, 0, len(head)+len(tail))
	for _, item := range head {
		out = append(out, Clone(item))
	}
	for _, item := range tail {
		out = append(out, Clone(item))
	}
	return out
}

// Clone returns a deep copy of value. Maps, slices, pointers and structs are
// copied recursively; unexported struct fields are copied shallowly.
func Clone[T any](value T) T {
	rv := reflect.ValueOf(&value).Elem()
	cloned := cloneValue(rv)
	if !cloned.IsValid() {
		var zero T
		return zero
	}
	out := reflect.New(rv.Type()).Elem()
	out.Set(cloned)
	result, _ := out.Interface().(T)
	return result
}

func cloneValue(v reflect.Value) reflect.Value {
	if !v.IsValid() {
		return v
	}

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.New(v.Type().Elem())
		clone.Elem().Set(cloneValue(v.Elem()))
		return clone
	case reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		elem := cloneValue(v.Elem())
		out := reflect.New(v.Type()).Elem()
		out.Set(elem)
		return out
	case reflect.Struct:
		clone := reflect.New(v.Type()).Elem()
		clone.Set(v)
		for i := 0; i < v.NumField(); i++ {
			field := clone.Field(i)
			if !field.CanSet() {
				continue
			}
			field.Set(cloneValue(v.Field(i)))
		}
		return clone
	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			clone.SetMapIndex(iter.Key(), cloneValue(iter.Value()))
		}
		return clone
	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		clone := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			clone.Index(i).Set(cloneValue(v.Index(i)))
		}
		return clone
	case reflect.Array:
		clone := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			clone.Index(i).Set(cloneValue(v.Index(i)))
		}
		return clone
	case reflect.Func, reflect.Chan:
		return v
	default:
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		return out
	}
}
