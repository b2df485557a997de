//go:build property
// +build property

package codec

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func roundTrips(v any) bool {
	encoded, err := Encode(v)
	if err != nil {
		return false
	}
	decoded, err := Decode(encoded)
	if err != nil {
		return false
	}
	if !reflect.DeepEqual(v, decoded) {
		return false
	}
	reencoded, err := Encode(decoded)
	if err != nil {
		return false
	}
	return bytes.Equal(encoded, reencoded)
}

// TestCodecProperties checks decode(encode(x)) == x and
// encode(decode(encode(x))) == encode(x) for generated values.
func TestCodecProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("integers round trip", prop.ForAll(
		func(n int64) bool {
			return roundTrips(n)
		},
		gen.Int64(),
	))

	properties.Property("floats round trip", prop.ForAll(
		func(f float64) bool {
			return roundTrips(f)
		},
		gen.Float64(),
	))

	properties.Property("strings round trip", prop.ForAll(
		func(s string) bool {
			return roundTrips(s)
		},
		gen.AnyString(),
	))

	properties.Property("arrays round trip", prop.ForAll(
		func(ns []int64, ss []string) bool {
			arr := make([]any, 0, len(ns)+len(ss))
			for _, n := range ns {
				arr = append(arr, n)
			}
			for _, s := range ss {
				arr = append(arr, s)
			}
			return roundTrips(arr)
		},
		gen.SliceOf(gen.Int64()),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.Property("nested mappings round trip", prop.ForAll(
		func(m map[string]int64, label string) bool {
			inner := make(map[string]any, len(m))
			for k, v := range m {
				inner[k] = v
			}
			outer := map[string]any{
				"label":  label,
				"values": inner,
				"list":   []any{inner, label},
			}
			return roundTrips(outer)
		},
		gen.MapOf(gen.AlphaString(), gen.Int64()),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
