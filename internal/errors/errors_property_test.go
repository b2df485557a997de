//go:build property

package errors

import (
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestSyncErrorProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(2468)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	constructors := []func(code, msg string) *SyncError{
		NewValidationError,
		func(code, msg string) *SyncError { return NewCodecError(code, msg, nil) },
		func(code, msg string) *SyncError { return NewStoreError(code, msg, nil) },
		NewChannelError,
		func(code, msg string) *SyncError { return NewTransportError(code, msg, nil) },
		NewConfigError,
		func(code, msg string) *SyncError { return NewInternalError(code, msg, nil) },
	}

	properties.Property("message always carries code, widget and event", prop.ForAll(
		func(kind int, code, msg, widget, event string) bool {
			err := constructors[kind](code, msg).WithWidget(widget).WithEvent(event)
			s := err.Error()

			return strings.Contains(s, "["+code+"]") &&
				strings.Contains(s, "widget:"+widget) &&
				strings.Contains(s, "event:"+event) &&
				strings.Contains(s, msg)
		},
		gen.IntRange(0, len(constructors)-1),
		gen.Identifier(),
		gen.AlphaString(),
		gen.Identifier(),
		gen.Identifier(),
	))

	properties.Property("Is matches on type and code only", prop.ForAll(
		func(kind int, code, a, b string) bool {
			x := constructors[kind](code, a).WithWidget("w1")
			y := constructors[kind](code, b).WithEvent("w2#get")
			other := constructors[(kind+1)%len(constructors)](code, a)

			return Is(x, y) && !Is(x, other)
		},
		gen.IntRange(0, len(constructors)-1),
		gen.Identifier(),
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.Property("wrapping keeps the cause reachable", prop.ForAll(
		func(depth int, msg string) bool {
			root := New(msg)
			var err error = NewStoreError(ErrCodeCacheRead, "read", root)
			for i := 0; i < depth; i++ {
				err = fmt.Errorf("layer %d: %w", i, err)
			}

			var se *SyncError
			return Is(err, root) && As(err, &se) && IsStoreError(err) && se.Cause == root
		},
		gen.IntRange(0, 10),
		gen.AlphaString(),
	))

	properties.Property("Wrap helpers pass nil through", prop.ForAll(
		func(code string) bool {
			return WrapStore(nil, code, "x") == nil && WrapCodec(nil, code, "x") == nil
		},
		gen.Identifier(),
	))

	properties.TestingRun(t)
}
