package upstream

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/widgetsync/internal/channel"
	"github.com/conneroisu/widgetsync/internal/errors"
	"github.com/conneroisu/widgetsync/internal/page"
	"github.com/conneroisu/widgetsync/internal/transport"
	"github.com/conneroisu/widgetsync/internal/widget"
)

// loopback connects a controller straight to a page.
type loopback struct {
	page *page.Page

	mu       sync.Mutex
	handlers map[string][]transport.EventHandler
}

func newLoopback(t *testing.T) *loopback {
	t.Helper()
	p := page.New(page.Options{})
	require.NoError(t, p.Mount(context.Background(), []widget.Spec{
		{ID: "s1", Kind: widget.KindSlider, Props: widget.Props{"value": 5, "min": 0, "max": 10}},
		{ID: "t1", Kind: widget.KindTextbox},
		{ID: "p1", Kind: widget.KindPlot},
		{ID: "b1", Kind: widget.KindButton},
	}))
	l := &loopback{page: p, handlers: map[string][]transport.EventHandler{}}
	p.Attach(l)
	return l
}

func (l *loopback) Emit(ctx context.Context, name string, payload []byte) error {
	l.mu.Lock()
	hs := append([]transport.EventHandler(nil), l.handlers[name]...)
	l.mu.Unlock()
	for _, h := range hs {
		h(name, payload)
	}
	return nil
}

func (l *loopback) send(ctx context.Context, name string, payload []byte) error {
	return l.page.Dispatch(ctx, channel.Event{Name: name, Payload: payload})
}

func (l *loopback) Request(ctx context.Context, name string, payload []byte) ([]byte, error) {
	resp := make(chan []byte, 1)
	// Dispatch errors surface to the caller only as a missing ack.
	_ = l.page.Dispatch(ctx, channel.Event{
		Name:    name,
		Payload: payload,
		Ack:     func(b []byte) error { resp <- b; return nil },
	})
	select {
	case b := <-resp:
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *loopback) On(name string, h transport.EventHandler) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[name] = append(l.handlers[name], h)
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.handlers, name)
	}
}

// conn routes controller emits to the page while keeping the loopback's
// subscription table for host emissions.
type conn struct{ *loopback }

func (c conn) Emit(ctx context.Context, name string, payload []byte) error {
	return c.send(ctx, name, payload)
}

func TestCommandAndGet(t *testing.T) {
	ctx := context.Background()
	l := newLoopback(t)
	c := New(conn{l}, time.Second)

	require.NoError(t, c.Command(ctx, "s1", "inc", 3))

	var v int
	require.NoError(t, c.Get(ctx, "s1", &v))
	assert.Equal(t, 8, v)

	require.NoError(t, c.Command(ctx, "t1", "text", "hello"))
	got, err := c.Value(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	require.NoError(t, c.Command(ctx, "p1", "layout", map[string]any{"title": "walk"}))
	var layout map[string]any
	require.NoError(t, c.GetSuffix(ctx, "p1", "get_layout", &layout))
	assert.Equal(t, "walk", layout["title"])

	assert.Error(t, c.Command(ctx, "bad#id", "value", 1))
}

func TestGetTimesOut(t *testing.T) {
	l := newLoopback(t)
	c := New(conn{l}, 50*time.Millisecond)

	err := c.Get(context.Background(), "ghost", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no response before deadline")
	assert.True(t, errors.IsTimeout(err))

	// A cancelled caller is not a timeout.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = c.Get(ctx, "ghost", nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.IsTimeout(err))
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()
	l := newLoopback(t)
	c := New(conn{l}, time.Second)

	var got []string
	off := c.Subscribe("t1", "change", func(_ context.Context, v Value) {
		var s string
		require.NoError(t, v.Into(&s))
		got = append(got, s)
	})

	require.NoError(t, l.page.LocalChange(ctx, "t1", "a"))
	require.NoError(t, l.page.LocalChange(ctx, "t1", "b"))
	off()
	require.NoError(t, l.page.LocalChange(ctx, "t1", "c"))

	assert.Equal(t, []string{"a", "b"}, got)
}

func TestCacheAndMessages(t *testing.T) {
	ctx := context.Background()
	l := newLoopback(t)
	c := New(conn{l}, time.Second)

	require.NoError(t, c.Cache.Save(ctx, "weights", []float64{0.25, 0.75}))

	var weights []float64
	found, err := c.Cache.Load(ctx, "weights", &weights)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []float64{0.25, 0.75}, weights)

	found, err = c.Cache.Load(ctx, "nothing", &weights)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Messages.Success(ctx, "saved"))
	require.NoError(t, c.Messages.Warning(ctx, "careful"))
	msgs := l.page.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, page.StatusSuccess, msgs[0].Status)
	assert.Equal(t, "careful", msgs[1].Text)
}

func TestSubscribeAllPullsOtherValues(t *testing.T) {
	ctx := context.Background()
	l := newLoopback(t)
	c := New(conn{l}, time.Second)

	type call struct {
		text  string
		speed int
	}
	var calls []call
	off, err := c.SubscribeAll(func(_ context.Context, vs []Value) {
		require.Len(t, vs, 2)
		var got call
		require.NoError(t, vs[0].Into(&got.text))
		require.NoError(t, vs[1].Into(&got.speed))
		calls = append(calls, got)
	}, On("t1", "change"), On("s1", "change"))
	require.NoError(t, err)

	require.NoError(t, l.page.LocalChange(ctx, "t1", "fast"))
	require.NoError(t, l.page.LocalChange(ctx, "s1", 9))
	off()
	require.NoError(t, l.page.LocalChange(ctx, "s1", 1))

	assert.Equal(t, []call{{"fast", 5}, {"fast", 9}}, calls)
}

func TestSubscribeAllReportsFailedPulls(t *testing.T) {
	ctx := context.Background()
	l := newLoopback(t)
	c := New(conn{l}, 50*time.Millisecond)

	var got []Value
	_, err := c.SubscribeAll(func(_ context.Context, vs []Value) { got = vs },
		On("t1", "change"), On("ghost", "change"))
	require.NoError(t, err)

	require.NoError(t, l.page.LocalChange(ctx, "t1", "x"))
	require.Len(t, got, 2)
	assert.NoError(t, got[0].Err)
	assert.True(t, errors.IsTimeout(got[1].Err))
	_, err = got[1].Decode()
	assert.Error(t, err)
}

func TestSubscribeAllValidation(t *testing.T) {
	c := New(conn{newLoopback(t)}, time.Second)
	noop := func(context.Context, []Value) {}

	tests := []struct {
		name   string
		events []Event
	}{
		{"no events", nil},
		{"duplicate", []Event{On("t1", "change"), On("t1", "change")}},
		{"stateless with others", []Event{Stateless("b1", "click"), On("t1", "change")}},
		{"upload with others", []Event{On("t1", "change"), On("u1", "upload")}},
		{"bad id", []Event{On("a#b", "change")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.SubscribeAll(noop, tt.events...)
			assert.Error(t, err)
		})
	}

	off, err := c.SubscribeAll(noop, Stateless("b1", "click"))
	require.NoError(t, err)
	off()
}

func TestDefaultGetters(t *testing.T) {
	assert.Equal(t, "get", On("s1", "change").Getter)
	assert.Equal(t, "get_select", On("p1", "select").Getter)
	assert.Equal(t, "get_click", On("p1", "click").Getter)
	assert.Equal(t, "get_layout", On("p1", "relayout").Getter)
	assert.Empty(t, On("u1", "upload").Getter)
	assert.Empty(t, Stateless("b1", "click").Getter)
}

func TestOnLoad(t *testing.T) {
	ctx := context.Background()
	l := newLoopback(t)
	c := New(conn{l}, time.Second)

	loads := 0
	off := c.OnLoad(func(context.Context) { loads++ })
	require.NoError(t, l.page.Loaded(ctx))
	require.NoError(t, l.page.Loaded(ctx))
	off()
	require.NoError(t, l.page.Loaded(ctx))
	assert.Equal(t, 2, loads)
}

func TestPagerRespond(t *testing.T) {
	ctx := context.Background()
	l := newLoopback(t)
	c := New(conn{l}, time.Second)

	first, second := c.NewPager(), c.NewPager()
	assert.NotEqual(t, first.event(), second.event())

	var hits []string
	c.Respond(first, func(context.Context) { hits = append(hits, "first") })
	c.Respond(second, func(context.Context) { hits = append(hits, "second") })

	require.NoError(t, second.Notify(ctx))
	require.NoError(t, first.Notify(ctx))
	assert.Equal(t, []string{"second", "first"}, hits)
}

func TestSchedule(t *testing.T) {
	c := New(conn{newLoopback(t)}, time.Second)

	var (
		mu      sync.Mutex
		running bool
		overlap bool
		calls   int
	)
	stop := c.Schedule(context.Background(), 5*time.Millisecond, func(context.Context) {
		mu.Lock()
		if running {
			overlap = true
		}
		running = true
		calls++
		mu.Unlock()

		time.Sleep(8 * time.Millisecond)

		mu.Lock()
		running = false
		mu.Unlock()
	})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 3
	}, 2*time.Second, 5*time.Millisecond)
	stop()
	stop()

	mu.Lock()
	after := calls
	assert.False(t, overlap)
	mu.Unlock()

	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, after, calls)
}

func TestScheduleStopsWithContext(t *testing.T) {
	c := New(conn{newLoopback(t)}, time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	ticks := make(chan struct{}, 16)
	stop := c.Schedule(ctx, time.Millisecond, func(context.Context) {
		select {
		case ticks <- struct{}{}:
		default:
		}
	})
	<-ticks
	cancel()
	stop()
}

// socketFixture serves a page over a real hub and dials it.
func socketFixture(t *testing.T, specs []widget.Spec) (*page.Page, *transport.Client) {
	t.Helper()

	p := page.New(page.Options{})
	require.NoError(t, p.Mount(context.Background(), specs))
	hub := transport.NewHub(p, transport.HubConfig{})
	p.Attach(hub)
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = hub.Shutdown(ctx)
		srv.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client, err := transport.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), transport.DialOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
	return p, client
}

func TestGetInsideSubscribeOverSocket(t *testing.T) {
	p, client := socketFixture(t, []widget.Spec{
		{ID: "dd", Kind: widget.KindDropdown, Props: widget.Props{"options": []any{"A", "B"}}},
		{ID: "s1", Kind: widget.KindSlider, Props: widget.Props{"value": 3, "min": 0, "max": 10}},
	})
	c := New(client, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	type result struct {
		choice string
		speed  int
		err    error
	}
	results := make(chan result, 1)
	c.Subscribe("dd", "change", func(ctx context.Context, v Value) {
		var r result
		if r.err = v.Into(&r.choice); r.err == nil {
			r.err = c.Get(ctx, "s1", &r.speed)
		}
		results <- r
	})

	require.NoError(t, p.LocalChange(ctx, "dd", "B"))

	select {
	case r := <-results:
		require.NoError(t, r.err)
		assert.Equal(t, "B", r.choice)
		assert.Equal(t, 3, r.speed)
	case <-ctx.Done():
		t.Fatal("Get inside a subscriber never returned")
	}
}

func TestSubscribeAllAndPagerOverSocket(t *testing.T) {
	p, client := socketFixture(t, []widget.Spec{
		{ID: "dd", Kind: widget.KindDropdown, Props: widget.Props{"options": []any{"A", "B"}}},
		{ID: "s1", Kind: widget.KindSlider, Props: widget.Props{"value": 3, "min": 0, "max": 10}},
	})
	c := New(client, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	speeds := make(chan int, 1)
	_, err := c.SubscribeAll(func(_ context.Context, vs []Value) {
		var speed int
		if err := vs[1].Into(&speed); err != nil {
			t.Errorf("pull slider: %v", err)
			return
		}
		speeds <- speed
	}, On("dd", "change"), On("s1", "change"))
	require.NoError(t, err)

	require.NoError(t, p.LocalChange(ctx, "dd", "B"))
	select {
	case speed := <-speeds:
		assert.Equal(t, 3, speed)
	case <-ctx.Done():
		t.Fatal("no multi-event callback")
	}

	paged := make(chan struct{}, 1)
	pager := c.NewPager()
	c.Respond(pager, func(context.Context) { paged <- struct{}{} })
	require.NoError(t, pager.Notify(ctx))
	select {
	case <-paged:
	case <-ctx.Done():
		t.Fatal("pager notification was not echoed back")
	}
}

func TestOverSocket(t *testing.T) {
	_, client := socketFixture(t, []widget.Spec{
		{ID: "sw", Kind: widget.KindSwitch},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c := New(client, time.Second)
	require.NoError(t, c.Command(ctx, "sw", "check", true))

	var on bool
	require.Eventually(t, func() bool {
		return c.Get(ctx, "sw", &on) == nil && on
	}, 2*time.Second, 20*time.Millisecond)
}
