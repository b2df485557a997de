package widget

import (
	"context"
	"io"
	"sort"
	"sync"

	"github.com/a-h/templ"

	"github.com/conneroisu/widgetsync/internal/channel"
	"github.com/conneroisu/widgetsync/internal/codec"
	"github.com/conneroisu/widgetsync/internal/errors"
	"github.com/conneroisu/widgetsync/internal/store"
)

// Action turns a local interaction into the next state and the value to
// emit upstream.
type Action[S any] func(s S, v any) (next S, emit any, err error)

// Reducer applies a decoded inbound value to the state.
type Reducer[S any] func(s S, v any) (S, error)

// Behavior is the per-kind table an Adapter runs.
type Behavior[S any] struct {
	// Stateless widgets are never cached and have no value.
	Stateless bool
	// Value projects the state onto what "#get" returns.
	Value func(S) any
	// Primary is the outbound suffix used by OnLocalChange. Empty means
	// the widget is display-only.
	Primary string
	Actions map[string]Action[S]
	Setters map[string]Reducer[S]
	// Queries answer request-style suffixes through the ack.
	Queries map[string]func(S) any
	Render  func(id string, s S) templ.Component
}

// Adapter binds state S to a cache entry, a channel and a rendering.
type Adapter[S any] struct {
	id      string
	kind    Kind
	caption string
	deps    Deps
	b       Behavior[S]

	mu       sync.Mutex
	state    S
	defaults S
}

// NewAdapter creates an adapter seeded with defaults. Initialize must be
// called before use to pick up cached state.
func NewAdapter[S any](spec Spec, deps Deps, defaults S, b Behavior[S]) *Adapter[S] {
	return &Adapter[S]{
		id:       spec.ID,
		kind:     spec.Kind,
		caption:  spec.Caption,
		deps:     deps.withDefaults(),
		b:        b,
		state:    defaults,
		defaults: defaults,
	}
}

func (a *Adapter[S]) ID() string      { return a.id }
func (a *Adapter[S]) Kind() Kind      { return a.kind }
func (a *Adapter[S]) Caption() string { return a.caption }

// Initialize replaces the state with the cached entry for the widget id.
// Partial entries are not merged with defaults. A malformed entry leaves
// the defaults in place and is reported.
func (a *Adapter[S]) Initialize(ctx context.Context) error {
	if a.b.Stateless {
		return nil
	}

	var cached S
	found, err := store.LoadJSON(ctx, a.deps.Store, a.id, &cached)

	a.mu.Lock()
	defer a.mu.Unlock()

	if err != nil {
		a.state = a.defaults
		return withWidget(err, a.id)
	}
	if found {
		a.state = cached
		a.deps.Logger.Debug(ctx, "Widget state restored from cache", "widget", a.id)
		return nil
	}
	a.state = a.defaults
	return nil
}

func (a *Adapter[S]) OnLocalChange(ctx context.Context, v any) error {
	if a.b.Primary == "" {
		return errors.NewValidationError(errors.ErrCodeReadOnly, "widget is display-only").WithWidget(a.id)
	}
	return a.Interact(ctx, a.b.Primary, v)
}

func (a *Adapter[S]) Interact(ctx context.Context, suffix string, v any) error {
	act, ok := a.b.Actions[suffix]
	if !ok {
		if len(a.b.Actions) == 0 {
			return errors.NewValidationError(errors.ErrCodeReadOnly, "widget is display-only").WithWidget(a.id)
		}
		return errors.NewValidationError(errors.ErrCodeInvalidValue, "widget does not emit "+suffix).
			WithWidget(a.id)
	}

	var payload []byte
	err := a.mutate(ctx, func(s S) (S, error) {
		next, out, err := act(s, v)
		if err != nil {
			return s, err
		}
		payload, err = codec.Encode(out)
		return next, err
	})
	if err != nil {
		return err
	}

	name := channel.EventName(a.id, suffix)
	if err := a.deps.Emitter.Emit(ctx, name, payload); err != nil {
		return errors.NewTransportError(errors.ErrCodeConnClosed, "emit failed", err).
			WithWidget(a.id).WithEvent(name)
	}
	return nil
}

func (a *Adapter[S]) OnRemoteEvent(ctx context.Context, suffix string, payload []byte, ack channel.AckFunc) error {
	name := channel.EventName(a.id, suffix)

	if q, ok := a.b.Queries[suffix]; ok {
		if ack == nil {
			return errors.NewChannelError(errors.ErrCodeMissingAck, "request has no acknowledgement").
				WithWidget(a.id).WithEvent(name)
		}
		a.mu.Lock()
		v := q(a.state)
		a.mu.Unlock()

		resp, err := codec.Encode(v)
		if err != nil {
			return withEvent(err, a.id, name)
		}
		return ack(resp)
	}

	set, ok := a.b.Setters[suffix]
	if !ok {
		return errors.NewChannelError(errors.ErrCodeNoHandler, "no handler registered for event").
			WithWidget(a.id).WithEvent(name)
	}

	var v any
	if len(payload) > 0 {
		decoded, err := codec.Decode(payload)
		if err != nil {
			return withEvent(err, a.id, name)
		}
		v = decoded
	}

	if err := a.mutate(ctx, func(s S) (S, error) { return set(s, v) }); err != nil {
		return withEvent(err, a.id, name)
	}
	return nil
}

// mutate runs fn against the current state and commits the result only
// after it has been written to the cache, so memory and cache agree
// before the next render.
func (a *Adapter[S]) mutate(ctx context.Context, fn func(S) (S, error)) error {
	a.mu.Lock()
	next, err := fn(a.state)
	if err != nil {
		a.mu.Unlock()
		return withWidget(err, a.id)
	}
	if !a.b.Stateless {
		if err := store.SaveJSON(ctx, a.deps.Store, a.id, next); err != nil {
			a.mu.Unlock()
			return withWidget(err, a.id)
		}
	}
	a.state = next
	a.mu.Unlock()

	if a.deps.OnUpdate != nil {
		a.deps.OnUpdate(a)
	}
	return nil
}

func (a *Adapter[S]) Value() any {
	if a.b.Value == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.b.Value(a.state)
}

func (a *Adapter[S]) State() any {
	return a.Snapshot()
}

// Snapshot returns the typed state.
func (a *Adapter[S]) Snapshot() S {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.state
}

func (a *Adapter[S]) Suffixes() []string {
	out := make([]string, 0, len(a.b.Queries)+len(a.b.Setters))
	for s := range a.b.Queries {
		out = append(out, s)
	}
	for s := range a.b.Setters {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (a *Adapter[S]) Emits() []string {
	out := make([]string, 0, len(a.b.Actions))
	for s := range a.b.Actions {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Bind registers a route for every inbound suffix.
func (a *Adapter[S]) Bind(d *channel.Dispatcher) {
	for _, suffix := range a.Suffixes() {
		suffix := suffix
		d.Register(a.id, suffix, func(ctx context.Context, payload []byte, ack channel.AckFunc) error {
			return a.OnRemoteEvent(ctx, suffix, payload, ack)
		})
	}
}

// Render wraps the kind's rendering in the common widget frame.
func (a *Adapter[S]) Render() templ.Component {
	s := a.Snapshot()

	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		f := frame{ID: a.id, Kind: a.kind, Caption: a.caption}
		if a.b.Render != nil {
			body, err := HTML(ctx, a.b.Render(a.id, s))
			if err != nil {
				return err
			}
			f.Body = body
		}
		return templates.ExecuteTemplate(w, "frame", f)
	})
}

func withWidget(err error, id string) error {
	var se *errors.SyncError
	if errors.As(err, &se) && se.WidgetID == "" {
		cp := *se
		return cp.WithWidget(id)
	}
	return err
}

func withEvent(err error, id, name string) error {
	var se *errors.SyncError
	if errors.As(err, &se) && se.Event == "" {
		cp := *se
		cp.WidgetID = id
		return cp.WithEvent(name)
	}
	return err
}
