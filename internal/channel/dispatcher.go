package channel

import (
	"context"
	"sort"
	"sync"

	"github.com/conneroisu/widgetsync/internal/errors"
)

var (
	// ErrNoHandler is returned for events nobody registered for.
	ErrNoHandler = errors.NewChannelError(errors.ErrCodeNoHandler, "no handler registered for event")
	// ErrAckAlreadySent is returned when a handler responds twice.
	ErrAckAlreadySent = errors.NewChannelError(errors.ErrCodeAckSent, "acknowledgement already sent")
)

// Dispatcher is the explicit routing table from event names to handlers.
// It replaces per-widget listener registration with one table that can be
// listed and torn down per widget.
type Dispatcher struct {
	mu       sync.RWMutex
	routes   map[string]Handler
	byWidget map[string][]string
}

// NewDispatcher creates an empty routing table.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		routes:   make(map[string]Handler),
		byWidget: make(map[string][]string),
	}
}

// Register routes "<id>#<suffix>" to h, replacing any previous handler.
func (d *Dispatcher) Register(id, suffix string, h Handler) {
	name := EventName(id, suffix)

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.routes[name]; !exists {
		d.byWidget[id] = append(d.byWidget[id], name)
	}
	d.routes[name] = h
}

// RegisterGlobal routes a page-level event name to h.
func (d *Dispatcher) RegisterGlobal(name string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.routes[name] = h
}

// Unregister detaches every route of widget id.
func (d *Dispatcher) Unregister(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, name := range d.byWidget[id] {
		delete(d.routes, name)
	}
	delete(d.byWidget, id)
}

// Handles reports whether an event name has a route.
func (d *Dispatcher) Handles(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.routes[name]
	return ok
}

// Routes lists every registered event name in sorted order.
func (d *Dispatcher) Routes() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.routes))
	for name := range d.routes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the handler for ev. The handler is called without the
// table lock held so it may register or unregister routes.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) error {
	d.mu.RLock()
	h, ok := d.routes[ev.Name]
	d.mu.RUnlock()

	if !ok {
		return errors.NewChannelError(errors.ErrCodeNoHandler, "no handler registered for event").
			WithEvent(ev.Name)
	}

	return h(ctx, ev.Payload, once(ev.Ack))
}

// once guards an ack so the sender sees at most one response.
func once(ack AckFunc) AckFunc {
	if ack == nil {
		return nil
	}

	var (
		mu   sync.Mutex
		sent bool
	)
	return func(payload []byte) error {
		mu.Lock()
		defer mu.Unlock()

		if sent {
			return ErrAckAlreadySent
		}
		sent = true
		return ack(payload)
	}
}
