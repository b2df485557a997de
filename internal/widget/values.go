package widget

import (
	"fmt"
	"math"
	"time"

	"github.com/conneroisu/widgetsync/internal/errors"
)

// Props are the declarative construction parameters of a widget, as
// loaded from a layout file or JSON.
type Props map[string]any

func (p Props) Float(key string, def float64) (float64, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	f, err := asFloat(v)
	return f, propErr(key, err)
}

func (p Props) String(key, def string) (string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	s, err := asString(v)
	return s, propErr(key, err)
}

func (p Props) Bool(key string, def bool) (bool, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	b, err := asBool(v)
	return b, propErr(key, err)
}

func (p Props) Strings(key string) ([]string, error) {
	ss, err := asStrings(p[key])
	return ss, propErr(key, err)
}

func (p Props) Floats(key string) ([]float64, error) {
	fs, err := asFloats(p[key])
	return fs, propErr(key, err)
}

func propErr(key string, err error) error {
	if err == nil {
		return nil
	}
	return errors.NewValidationError(errors.ErrCodeInvalidValue,
		fmt.Sprintf("invalid prop %q: %v", key, err))
}

func invalid(format string, args ...any) error {
	return errors.NewValidationError(errors.ErrCodeInvalidValue, fmt.Sprintf(format, args...))
}

func asFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int8:
		return float64(n), nil
	case int16:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint8:
		return float64(n), nil
	case uint16:
		return float64(n), nil
	case uint32:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	}
	return 0, invalid("expected a number, got %T", v)
}

func asString(v any) (string, error) {
	switch s := v.(type) {
	case nil:
		return "", nil
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	}
	return "", invalid("expected a string, got %T", v)
}

func asBool(v any) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return false, invalid("expected a boolean, got %T", v)
}

// asStrings accepts nil, a single string or a list of strings.
func asStrings(v any) ([]string, error) {
	switch s := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{s}, nil
	case []string:
		return append([]string(nil), s...), nil
	case []any:
		out := make([]string, 0, len(s))
		for _, e := range s {
			str, err := asString(e)
			if err != nil {
				return nil, err
			}
			out = append(out, str)
		}
		return out, nil
	}
	return nil, invalid("expected a string or list of strings, got %T", v)
}

// asFloats accepts nil, a single number or a list of numbers.
func asFloats(v any) ([]float64, error) {
	switch s := v.(type) {
	case nil:
		return nil, nil
	case []float64:
		return append([]float64(nil), s...), nil
	case []int:
		out := make([]float64, len(s))
		for i, n := range s {
			out[i] = float64(n)
		}
		return out, nil
	case []any:
		out := make([]float64, 0, len(s))
		for _, e := range s {
			f, err := asFloat(e)
			if err != nil {
				return nil, err
			}
			out = append(out, f)
		}
		return out, nil
	}
	f, err := asFloat(v)
	if err != nil {
		return nil, err
	}
	return []float64{f}, nil
}

func asInts(v any) ([]int64, error) {
	fs, err := asFloats(v)
	if err != nil {
		return nil, err
	}
	out := make([]int64, len(fs))
	for i, f := range fs {
		if f != math.Trunc(f) {
			return nil, invalid("expected an integer, got %v", f)
		}
		out[i] = int64(f)
	}
	return out, nil
}

// number returns whole floats as int64 so they encode the way the
// integer that produced them would.
func number(f float64) any {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return f
}

func numbers(fs []float64) []any {
	out := make([]any, len(fs))
	for i, f := range fs {
		out[i] = number(f)
	}
	return out
}

func clamp(f, lo, hi float64) float64 {
	if hi < lo {
		return f
	}
	return math.Max(lo, math.Min(hi, f))
}

func cloneStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return append([]string{}, s...)
}

// asDates accepts date strings or time values and formats times with
// layout.
func asDates(v any, layout string) ([]string, error) {
	switch t := v.(type) {
	case time.Time:
		return []string{t.Format(layout)}, nil
	case []time.Time:
		out := make([]string, len(t))
		for i, tt := range t {
			out[i] = tt.Format(layout)
		}
		return out, nil
	}
	return asStrings(v)
}
