// Package codec implements the binary encoding applied to every value that
// crosses the sync channel.
//
// Payloads are msgpack. Encoding is deterministic: integers use the
// smallest representation and map keys are sorted, so encoding a decoded
// payload reproduces the original bytes. Decoding into an interface yields
// a canonical tree of nil, bool, int64, float64, string, []byte, []any and
// map[string]any.
package codec

import (
	"bytes"
	"fmt"
	"math"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/conneroisu/widgetsync/internal/errors"
)

// Encode serializes v into its msgpack form.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)
	enc.SetSortMapKeys(true)

	if err := enc.Encode(normalizeOut(v)); err != nil {
		return nil, errors.NewCodecError(errors.ErrCodeEncode,
			fmt.Sprintf("cannot encode value of type %T", v), err)
	}

	return buf.Bytes(), nil
}

// MustEncode is Encode for values known to be encodable, such as literals in
// tests and fixed protocol payloads.
func MustEncode(v any) []byte {
	b, err := Encode(v)
	if err != nil {
		panic(err)
	}

	return b
}

// Decode parses a payload into the canonical value tree.
func Decode(b []byte) (any, error) {
	dec, r := newDecoder(b)

	v, err := dec.DecodeInterfaceLoose()
	if err != nil {
		return nil, errors.NewCodecError(errors.ErrCodeDecode, "malformed payload", err)
	}
	if r.Len() > 0 {
		return nil, errors.NewCodecError(errors.ErrCodeDecode,
			fmt.Sprintf("%d trailing bytes after payload", r.Len()), nil)
	}

	return normalizeIn(v), nil
}

// DecodeInto parses a payload into a typed destination.
func DecodeInto(b []byte, out any) error {
	dec, r := newDecoder(b)

	if err := dec.Decode(out); err != nil {
		return errors.NewCodecError(errors.ErrCodeDecode,
			fmt.Sprintf("cannot decode payload into %T", out), err)
	}
	if r.Len() > 0 {
		return errors.NewCodecError(errors.ErrCodeDecode,
			fmt.Sprintf("%d trailing bytes after payload", r.Len()), nil)
	}

	return nil
}

// Convert coerces a loosely typed value, such as one decoded from JSON,
// into a typed destination by passing it through the codec.
func Convert(in any, out any) error {
	b, err := Encode(in)
	if err != nil {
		return err
	}

	return DecodeInto(b, out)
}

func newDecoder(b []byte) (*msgpack.Decoder, *bytes.Reader) {
	r := bytes.NewReader(b)
	dec := msgpack.NewDecoder(r)
	dec.UseLooseInterfaceDecoding(true)

	return dec, r
}

// normalizeOut rewrites values the wire format has no natural encoding for.
func normalizeOut(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.Format(time.RFC3339Nano)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalizeOut(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalizeOut(e)
		}
		return out
	default:
		return v
	}
}

// normalizeIn folds unsigned integers back into int64 so that values read
// off the wire compare equal to the values that were written.
func normalizeIn(v any) any {
	switch t := v.(type) {
	case uint64:
		if t <= math.MaxInt64 {
			return int64(t)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalizeIn(e)
		}
		return t
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeIn(e)
		}
		return t
	default:
		return v
	}
}
