package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/widgetsync/internal/errors"
)

func TestRoundTripRepresentativeValues(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{"nil", nil},
		{"bool", true},
		{"small int", int64(3)},
		{"negative int", int64(-42)},
		{"large int", int64(1 << 40)},
		{"uint8 range int", int64(200)},
		{"float", 8.5},
		{"integral float", 5.0},
		{"string", "B"},
		{"empty string", ""},
		{"bytes", []byte{0x00, 0xff}},
		{"array", []any{int64(1), "two", 3.5}},
		{"nested mapping", map[string]any{
			"value":   int64(5),
			"options": []any{map[string]any{"label": "A", "value": "a"}},
			"range":   map[string]any{"min": 0.0, "max": 10.0},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := Encode(tt.value)
			require.NoError(t, err)

			decoded, err := Decode(encoded)
			require.NoError(t, err)
			assert.Equal(t, tt.value, decoded)

			reencoded, err := Encode(decoded)
			require.NoError(t, err)
			assert.Equal(t, encoded, reencoded)
		})
	}
}

func TestEncodeIsDeterministicForMaps(t *testing.T) {
	m := map[string]any{"z": int64(1), "a": int64(2), "m": int64(3), "b": "x"}

	first := MustEncode(m)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, MustEncode(m))
	}
}

func TestEncodeCompactInts(t *testing.T) {
	assert.Equal(t, []byte{0x03}, MustEncode(3))
	assert.Equal(t, []byte{0xc0}, MustEncode(nil))
	assert.Equal(t, []byte{0xa1, 'B'}, MustEncode("B"))
}

func TestEncodeTimeAsString(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	decoded, err := Decode(MustEncode(map[string]any{"at": ts}))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"at": "2024-03-01T12:00:00Z"}, decoded)
}

func TestDecodeInto(t *testing.T) {
	var f float64
	require.NoError(t, DecodeInto(MustEncode(3), &f))
	assert.Equal(t, 3.0, f)

	var s []string
	require.NoError(t, DecodeInto(MustEncode([]any{"a", "b"}), &s))
	assert.Equal(t, []string{"a", "b"}, s)

	type option struct {
		Label string `msgpack:"label"`
		Value string `msgpack:"value"`
	}
	var opts []option
	require.NoError(t, DecodeInto(MustEncode([]any{
		map[string]any{"label": "Alpha", "value": "a"},
	}), &opts))
	assert.Equal(t, []option{{Label: "Alpha", Value: "a"}}, opts)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"empty", []byte{}},
		{"truncated string", []byte{0xa5, 'a'}},
		{"trailing bytes", []byte{0x01, 0x02}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.payload)
			require.Error(t, err)
			assert.True(t, errors.IsCodecError(err))
		})
	}

	var f float64
	err := DecodeInto(MustEncode("not a number"), &f)
	require.Error(t, err)
	assert.True(t, errors.IsCodecError(err))
}

func TestConvert(t *testing.T) {
	var values []float64
	require.NoError(t, Convert([]any{1.0, 2.5}, &values))
	assert.Equal(t, []float64{1, 2.5}, values)

	var text string
	require.NoError(t, Convert("hello", &text))
	assert.Equal(t, "hello", text)
}

func TestEncodeUnsupported(t *testing.T) {
	_, err := Encode(make(chan int))
	require.Error(t, err)
	assert.True(t, errors.IsCodecError(err))
}
