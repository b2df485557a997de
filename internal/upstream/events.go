package upstream

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/conneroisu/widgetsync/internal/channel"
	"github.com/conneroisu/widgetsync/internal/codec"
	"github.com/conneroisu/widgetsync/internal/errors"
)

// Event is one widget event a callback listens to. Getter is the request
// suffix that pulls the value the event would carry; an empty Getter
// marks a stateless event.
type Event struct {
	ID     string
	Suffix string
	Getter string
}

// On returns id#suffix with the getter widgets answer for it.
func On(id, suffix string) Event {
	return Event{ID: id, Suffix: suffix, Getter: defaultGetter(suffix)}
}

// Stateless returns an event that has no getter, such as a button click.
func Stateless(id, suffix string) Event {
	return Event{ID: id, Suffix: suffix}
}

func defaultGetter(suffix string) string {
	switch suffix {
	case "select", channel.SuffixClick, "hover":
		return "get_" + suffix
	case "relayout":
		return "get_layout"
	case "upload":
		return ""
	}
	return channel.SuffixGet
}

func (e Event) name() string { return channel.EventName(e.ID, e.Suffix) }

// SubscribeAll calls fn whenever any of events fires. fn gets one Value
// per event, in the order given: the firing event carries its payload and
// the others are pulled through their getters. A Value whose pull failed
// has Err set. More than one event requires every event to have a getter.
func (c *Controller) SubscribeAll(fn func(ctx context.Context, vs []Value), events ...Event) (func(), error) {
	if len(events) == 0 {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidValue, "subscribe needs at least one event")
	}

	seen := make(map[string]bool, len(events))
	for _, e := range events {
		if err := channel.ValidateID(e.ID); err != nil {
			return nil, err
		}
		name := e.name()
		if seen[name] {
			return nil, errors.NewValidationError(errors.ErrCodeInvalidValue,
				"event subscribed more than once").WithEvent(name)
		}
		seen[name] = true
		if len(events) > 1 && e.Getter == "" {
			return nil, errors.NewValidationError(errors.ErrCodeInvalidValue,
				"stateless event must be subscribed alone").WithEvent(name)
		}
	}

	offs := make([]func(), 0, len(events))
	for i, e := range events {
		i := i
		offs = append(offs, c.conn.On(e.name(), func(event string, payload []byte) {
			ctx := context.Background()
			vs := make([]Value, len(events))
			for j, other := range events {
				if j == i {
					vs[j] = Value{Event: event, Payload: payload}
					continue
				}
				vs[j] = c.pull(ctx, other)
			}
			fn(ctx, vs)
		}))
	}

	return func() {
		for _, off := range offs {
			off()
		}
	}, nil
}

func (c *Controller) pull(ctx context.Context, e Event) Value {
	v := Value{Event: e.name()}
	v.Payload, v.Err = c.request(ctx, channel.EventName(e.ID, e.Getter), nil)
	if v.Err != nil {
		v.Err = withWidget(v.Err, e.ID)
	}
	return v
}

// OnLoad calls fn each time a host serves its dashboard.
func (c *Controller) OnLoad(fn func(ctx context.Context)) func() {
	return c.conn.On(channel.EventLoad, func(string, []byte) {
		fn(context.Background())
	})
}

// Schedule calls fn every interval until ctx ends or the returned func is
// called. Calls never overlap; a slow call delays the next tick.
func (c *Controller) Schedule(ctx context.Context, every time.Duration, fn func(ctx context.Context)) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				fn(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}

var lastPager atomic.Uint64

// Pager lets application code ask every connected process to run the
// callback registered with Respond. The host echoes page#N to all of
// them.
type Pager struct {
	c  *Controller
	id uint64
}

// NewPager returns a pager with a process-unique number.
func (c *Controller) NewPager() *Pager {
	return &Pager{c: c, id: lastPager.Add(1)}
}

func (p *Pager) event() string {
	return channel.EventName(channel.PagerID, strconv.FormatUint(p.id, 10))
}

// Notify triggers the pager's callbacks.
func (p *Pager) Notify(ctx context.Context) error {
	return p.c.conn.Emit(ctx, p.event(), codec.MustEncode(nil))
}

// Respond calls fn when p is notified.
func (c *Controller) Respond(p *Pager, fn func(ctx context.Context)) func() {
	return c.conn.On(p.event(), func(string, []byte) {
		fn(context.Background())
	})
}
