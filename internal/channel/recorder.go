package channel

import (
	"context"
	"sync"
)

// Recorder is an in-memory Emitter that keeps every event it is given.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Emit(ctx context.Context, name string, payload []byte) error {
	cp := append([]byte(nil), payload...)

	r.mu.Lock()
	r.events = append(r.events, Event{Name: name, Payload: cp})
	r.mu.Unlock()
	return nil
}

// Events returns a copy of everything emitted so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Event(nil), r.events...)
}

// Named returns the emitted events with the given name.
func (r *Recorder) Named(name string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Event
	for _, ev := range r.events {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

// Reset forgets all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// Fanout forwards each event to several emitters, returning the first
// error after trying all of them.
type Fanout []Emitter

func (f Fanout) Emit(ctx context.Context, name string, payload []byte) error {
	var first error
	for _, e := range f {
		if e == nil {
			continue
		}
		if err := e.Emit(ctx, name, payload); err != nil && first == nil {
			first = err
		}
	}
	return first
}
