//go:build property
// +build property

package channel

import (
	"context"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestEventNameProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	ids := gen.Identifier()
	suffixes := gen.AlphaString().SuchThat(func(s string) bool { return s != "" })

	properties.Property("parse inverts EventName", prop.ForAll(
		func(id, suffix string) bool {
			gotID, gotSuffix, ok := ParseEventName(EventName(id, suffix))
			return ok && gotID == id && gotSuffix == suffix
		},
		ids, suffixes,
	))

	properties.Property("valid ids never contain the separator", prop.ForAll(
		func(id string) bool {
			return (ValidateID(id) == nil) == (strings.TrimSpace(id) != "" && !strings.Contains(id, Separator))
		},
		gen.AnyString(),
	))

	properties.Property("unregister removes every route of a widget", prop.ForAll(
		func(id string, suffixes []string) bool {
			d := NewDispatcher()
			noop := func(context.Context, []byte, AckFunc) error { return nil }
			for _, s := range suffixes {
				d.Register(id, s, noop)
			}
			d.Register("other", "get", noop)
			d.Unregister(id)

			routes := d.Routes()
			return len(routes) == 1 && routes[0] == "other#get"
		},
		ids.SuchThat(func(s string) bool { return s != "other" }),
		gen.SliceOf(suffixes),
	))

	properties.TestingRun(t)
}
