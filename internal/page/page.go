// Package page hosts one dashboard page: its widgets, the dispatch table
// for inbound channel events, the injected cache and the outbound emitters.
package page

import (
	"context"
	"sync"
	"time"

	"github.com/conneroisu/widgetsync/internal/channel"
	"github.com/conneroisu/widgetsync/internal/codec"
	"github.com/conneroisu/widgetsync/internal/errors"
	"github.com/conneroisu/widgetsync/internal/logging"
	"github.com/conneroisu/widgetsync/internal/store"
	"github.com/conneroisu/widgetsync/internal/widget"
)

// Observer receives event counts. *metrics.Metrics satisfies it.
type Observer interface {
	InboundEvent(name, outcome string)
	OutboundEvent(name string)
}

type nopObserver struct{}

func (nopObserver) InboundEvent(string, string) {}
func (nopObserver) OutboundEvent(string)        {}

// ChangeType identifies what happened to a page.
type ChangeType int

const (
	ChangeAdded ChangeType = iota
	ChangeUpdated
	ChangeRemoved
	ChangeMessage
)

func (t ChangeType) String() string {
	switch t {
	case ChangeAdded:
		return "added"
	case ChangeUpdated:
		return "updated"
	case ChangeRemoved:
		return "removed"
	case ChangeMessage:
		return "message"
	}
	return "unknown"
}

// Change is sent to watchers whenever the page needs re-rendering.
type Change struct {
	Type      ChangeType
	WidgetID  string
	Kind      widget.Kind
	Timestamp time.Time
}

// Options configure a page.
type Options struct {
	Title string
	Store store.Store
	// Emitter receives outbound events in addition to attached emitters.
	Emitter     channel.Emitter
	Logger      logging.Logger
	Observer    Observer
	MaxMessages int
}

// Page is a set of widgets sharing one channel and one cache.
type Page struct {
	title    string
	store    store.Store
	logger   logging.Logger
	observer Observer
	errs     *errors.ErrorHandler
	routes   *channel.Dispatcher

	mu       sync.RWMutex
	widgets  map[string]widget.Widget
	order    []string
	emitters channel.Fanout
	feed     *feed
	watchers []chan Change
}

// New creates an empty page and registers its page-level events.
func New(opts Options) *Page {
	if opts.Store == nil {
		opts.Store = store.NewMemoryStore()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.MaxMessages <= 0 {
		opts.MaxMessages = 50
	}

	p := &Page{
		title:    opts.Title,
		store:    opts.Store,
		logger:   opts.Logger.WithComponent("page"),
		observer: opts.Observer,
		routes:   channel.NewDispatcher(),
		widgets:  make(map[string]widget.Widget),
		feed:     newFeed(opts.MaxMessages),
	}
	p.errs = errors.NewErrorHandler(p.logger)
	if opts.Emitter != nil {
		p.emitters = channel.Fanout{opts.Emitter}
	}

	p.routes.RegisterGlobal(channel.EventCacheSave, p.handleCacheSave)
	p.routes.RegisterGlobal(channel.EventCacheLoad, p.handleCacheLoad)
	for _, status := range Statuses {
		p.routes.RegisterGlobal(channel.MessagePrefix+status, p.messageHandler(status))
	}

	return p
}

// Title returns the page title.
func (p *Page) Title() string {
	return p.title
}

// Store returns the page cache.
func (p *Page) Store() store.Store {
	return p.store
}

// Attach adds an emitter that receives every outbound event.
func (p *Page) Attach(e channel.Emitter) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.emitters = append(p.emitters, e)
}

// Emit sends an outbound event to every attached emitter.
func (p *Page) Emit(ctx context.Context, name string, payload []byte) error {
	p.mu.RLock()
	out := append(channel.Fanout(nil), p.emitters...)
	p.mu.RUnlock()

	p.observer.OutboundEvent(name)
	return out.Emit(ctx, name, payload)
}

// Mount adds every spec in order. Building stops at the first invalid spec.
func (p *Page) Mount(ctx context.Context, specs []widget.Spec) error {
	for _, spec := range specs {
		if _, err := p.Add(ctx, spec); err != nil {
			return err
		}
	}
	return nil
}

// Add builds a widget, restores it from the cache and binds its routes.
// A malformed cache entry is logged and the widget starts from defaults.
func (p *Page) Add(ctx context.Context, spec widget.Spec) (widget.Widget, error) {
	if spec.ID != "" {
		p.mu.RLock()
		_, exists := p.widgets[spec.ID]
		p.mu.RUnlock()
		if exists {
			return nil, errors.NewValidationError(errors.ErrCodeDuplicateWidget, "widget id already mounted").
				WithWidget(spec.ID)
		}
	}

	w, err := widget.New(spec, widget.Deps{
		Store:    p.store,
		Emitter:  channel.EmitterFunc(p.Emit),
		Logger:   p.logger,
		OnUpdate: p.updated,
	})
	if err != nil {
		return nil, err
	}

	if err := w.Initialize(ctx); err != nil {
		p.errs.Handle(ctx, err)
	}

	p.mu.Lock()
	if _, exists := p.widgets[w.ID()]; exists {
		p.mu.Unlock()
		return nil, errors.NewValidationError(errors.ErrCodeDuplicateWidget, "widget id already mounted").
			WithWidget(w.ID())
	}
	p.widgets[w.ID()] = w
	p.order = append(p.order, w.ID())
	p.mu.Unlock()

	w.Bind(p.routes)
	p.logger.Debug(ctx, "Widget mounted", "widget", w.ID(), "kind", string(w.Kind()))
	p.notify(Change{Type: ChangeAdded, WidgetID: w.ID(), Kind: w.Kind()})

	return w, nil
}

// Remove tears a widget down and detaches all of its listeners. Its cache
// entry is kept so a re-added widget with the same id resumes.
func (p *Page) Remove(id string) error {
	p.mu.Lock()
	w, ok := p.widgets[id]
	if !ok {
		p.mu.Unlock()
		return notFound(id)
	}
	delete(p.widgets, id)
	for i, existing := range p.order {
		if existing == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	p.mu.Unlock()

	p.routes.Unregister(id)
	p.notify(Change{Type: ChangeRemoved, WidgetID: id, Kind: w.Kind()})
	return nil
}

// Widget looks a widget up by id.
func (p *Page) Widget(id string) (widget.Widget, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	w, ok := p.widgets[id]
	return w, ok
}

// Widgets returns the mounted widgets in mount order.
func (p *Page) Widgets() []widget.Widget {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]widget.Widget, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.widgets[id])
	}
	return out
}

// LocalChange is the entry point for UI interaction on widget id.
func (p *Page) LocalChange(ctx context.Context, id string, v any) error {
	w, ok := p.Widget(id)
	if !ok {
		return notFound(id)
	}
	return w.OnLocalChange(ctx, v)
}

// Interact is LocalChange for a specific outbound suffix.
func (p *Page) Interact(ctx context.Context, id, suffix string, v any) error {
	w, ok := p.Widget(id)
	if !ok {
		return notFound(id)
	}
	return w.Interact(ctx, suffix, v)
}

// Dispatch routes an inbound channel event. Pager events are echoed to
// every attached emitter.
func (p *Page) Dispatch(ctx context.Context, ev channel.Event) error {
	var err error
	if channel.IsPagerEvent(ev.Name) {
		err = p.Emit(ctx, ev.Name, ev.Payload)
	} else {
		err = p.routes.Dispatch(ctx, ev)
	}

	switch {
	case err == nil:
		p.observer.InboundEvent(ev.Name, "ok")
	case errors.Is(err, channel.ErrNoHandler):
		p.observer.InboundEvent(ev.Name, "no_handler")
	default:
		p.observer.InboundEvent(ev.Name, "error")
	}
	return err
}

// Loaded announces that the dashboard was served.
func (p *Page) Loaded(ctx context.Context) error {
	return p.Emit(ctx, channel.EventLoad, codec.MustEncode(nil))
}

// Routes lists every inbound event name the page answers.
func (p *Page) Routes() []string {
	return p.routes.Routes()
}

// Watch returns a channel of page changes.
func (p *Page) Watch() <-chan Change {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan Change, 100)
	p.watchers = append(p.watchers, ch)
	return ch
}

// Unwatch removes and closes a watcher channel.
func (p *Page) Unwatch(ch <-chan Change) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, watcher := range p.watchers {
		if watcher == ch {
			close(watcher)
			p.watchers = append(p.watchers[:i], p.watchers[i+1:]...)
			break
		}
	}
}

func (p *Page) updated(w widget.Widget) {
	p.notify(Change{Type: ChangeUpdated, WidgetID: w.ID(), Kind: w.Kind()})
}

func (p *Page) notify(c Change) {
	c.Timestamp = time.Now()

	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, watcher := range p.watchers {
		select {
		case watcher <- c:
		default:
			// Slow watchers miss changes; the next render catches up.
		}
	}
}

func notFound(id string) error {
	return errors.NewValidationError(errors.ErrCodeWidgetNotFound, "no such widget").WithWidget(id)
}
