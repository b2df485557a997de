package store

import (
	"encoding/json"
	"math"
	"reflect"
)

// Normalize rewrites the json.Number leaves of a tree decoded with
// UseNumber into int64 (integral values) or float64. Maps and slices are
// rewritten in place.
func Normalize(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int64(f)
		}
		return f
	case []any:
		for i, e := range t {
			t[i] = Normalize(e)
		}
		return t
	case map[string]any:
		for k, e := range t {
			t[k] = Normalize(e)
		}
		return t
	}
	return v
}

// normalizeValue applies Normalize to every interface-typed value reachable
// from v, such as the any fields of a decoded state struct.
func normalizeValue(v reflect.Value) {
	switch v.Kind() {
	case reflect.Pointer:
		if !v.IsNil() {
			normalizeValue(v.Elem())
		}

	case reflect.Interface:
		if v.IsNil() || !v.CanSet() {
			return
		}
		v.Set(reflect.ValueOf(Normalize(v.Interface())))

	case reflect.Struct:
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			if t.Field(i).IsExported() {
				normalizeValue(v.Field(i))
			}
		}

	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			normalizeValue(v.Index(i))
		}

	case reflect.Map:
		if v.IsNil() {
			return
		}
		iface := v.Type().Elem().Kind() == reflect.Interface
		iter := v.MapRange()
		for iter.Next() {
			e := iter.Value()
			if !iface {
				normalizeValue(e)
				continue
			}
			if e.IsNil() {
				continue
			}
			v.SetMapIndex(iter.Key(), reflect.ValueOf(Normalize(e.Interface())))
		}
	}
}
