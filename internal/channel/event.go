// Package channel defines the sync channel contract shared by widgets, the
// page and the socket transport.
//
// One channel is shared per page. Events are disambiguated purely by name:
// widget events are "<widget-id>#<suffix>", page events (cache_save,
// message.success, ...) use fixed names. Payloads are codec-encoded bytes.
package channel

import (
	"context"
	"strings"

	"github.com/conneroisu/widgetsync/internal/errors"
)

// Separator joins a widget id and an event suffix.
const Separator = "#"

// Common suffixes. Each widget kind uses a subset.
const (
	SuffixGet     = "get"
	SuffixChange  = "change"
	SuffixOptions = "options"
	SuffixChoose  = "choose"
	SuffixClick   = "click"
)

// Page-level event names.
const (
	EventCacheSave = "cache_save"
	EventCacheLoad = "cache_load"
	MessagePrefix  = "message."
	// EventLoad is emitted each time the dashboard is served.
	EventLoad = "load"
)

// PagerID is the reserved id of pager events, "page#<n>". The host echoes
// them back to every client unchanged.
const PagerID = "page"

// IsPagerEvent reports whether name is a "page#<n>" event.
func IsPagerEvent(name string) bool {
	id, _, ok := ParseEventName(name)
	return ok && id == PagerID
}

// EventName returns "<id>#<suffix>".
func EventName(id, suffix string) string {
	return id + Separator + suffix
}

// ParseEventName splits a widget event name on its last separator. ok is
// false for page-level events and malformed names.
func ParseEventName(name string) (id, suffix string, ok bool) {
	i := strings.LastIndex(name, Separator)
	if i <= 0 || i == len(name)-1 {
		return "", "", false
	}
	return name[:i], name[i+1:], true
}

// ValidateID rejects widget ids that would make event names ambiguous.
func ValidateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.NewValidationError(errors.ErrCodeBadEventName, "widget id must not be empty")
	}
	if strings.Contains(id, Separator) {
		return errors.NewValidationError(errors.ErrCodeBadEventName,
			"widget id must not contain "+Separator).WithWidget(id)
	}
	return nil
}

// AckFunc delivers the response to a request-style event.
type AckFunc func(payload []byte) error

// Event is one message on the channel. Ack is nil for fire-and-forget
// events.
type Event struct {
	Name    string
	Payload []byte
	Ack     AckFunc
}

// Handler processes an inbound event. ack is nil unless the sender asked
// for a response.
type Handler func(ctx context.Context, payload []byte, ack AckFunc) error

// Emitter sends events toward the other side of the channel.
type Emitter interface {
	Emit(ctx context.Context, name string, payload []byte) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, name string, payload []byte) error

func (f EmitterFunc) Emit(ctx context.Context, name string, payload []byte) error {
	return f(ctx, name, payload)
}

// Discard is an Emitter that drops everything.
var Discard Emitter = EmitterFunc(func(context.Context, string, []byte) error { return nil })
