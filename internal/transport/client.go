package transport

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"

	"github.com/conneroisu/widgetsync/internal/errors"
	"github.com/conneroisu/widgetsync/internal/logging"
)

// EventHandler receives a broadcast event on the upstream side.
type EventHandler func(name string, payload []byte)

// DialOptions configures Dial.
type DialOptions struct {
	Header    http.Header
	ReadLimit int64
	Logger    logging.Logger
}

// Client is the upstream end of the sync channel.
type Client struct {
	conn   *websocket.Conn
	logger logging.Logger

	nextID  atomic.Uint64
	mu      sync.Mutex
	pending map[uint64]chan []byte

	hmu      sync.RWMutex
	handlers map[string]map[uint64]EventHandler
	wild     map[uint64]EventHandler
	hid      uint64

	writeMu sync.Mutex

	// inbox holds broadcast frames until the dispatch goroutine runs
	// their handlers, so a handler may itself wait on an ack.
	imu   sync.Mutex
	inbox []Frame
	wake  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Dial connects to a hub at url (ws:// or wss://).
func Dial(ctx context.Context, url string, opts DialOptions) (*Client, error) {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: opts.Header})
	if err != nil {
		return nil, errors.NewTransportError(errors.ErrCodeConnClosed, "dial "+url, err)
	}
	if opts.ReadLimit > 0 {
		conn.SetReadLimit(opts.ReadLimit)
	}

	cctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		conn:     conn,
		logger:   opts.Logger.WithComponent("client"),
		pending:  make(map[uint64]chan []byte),
		handlers: make(map[string]map[uint64]EventHandler),
		wild:     make(map[uint64]EventHandler),
		ctx:      cctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		wake:     make(chan struct{}, 1),
	}
	go c.readLoop()
	go c.dispatchLoop()
	return c, nil
}

// Emit sends a fire-and-forget event.
func (c *Client) Emit(ctx context.Context, name string, payload []byte) error {
	return c.write(ctx, Frame{Event: name, Data: payload})
}

// Request sends an event and waits for its ack. Without a response it
// waits until ctx ends.
func (c *Client) Request(ctx context.Context, name string, payload []byte) ([]byte, error) {
	id := c.nextID.Add(1)
	ch := make(chan []byte, 1)

	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.write(ctx, Frame{Event: name, Data: payload, ID: id}); err != nil {
		return nil, err
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, c.closedErr(name)
	}
}

// On subscribes to one event name. The returned func unsubscribes.
func (c *Client) On(name string, h EventHandler) func() {
	c.hmu.Lock()
	defer c.hmu.Unlock()

	c.hid++
	id := c.hid
	if c.handlers[name] == nil {
		c.handlers[name] = make(map[uint64]EventHandler)
	}
	c.handlers[name][id] = h

	return func() {
		c.hmu.Lock()
		defer c.hmu.Unlock()
		delete(c.handlers[name], id)
		if len(c.handlers[name]) == 0 {
			delete(c.handlers, name)
		}
	}
}

// OnAny subscribes to every broadcast event.
func (c *Client) OnAny(h EventHandler) func() {
	c.hmu.Lock()
	defer c.hmu.Unlock()

	c.hid++
	id := c.hid
	c.wild[id] = h

	return func() {
		c.hmu.Lock()
		defer c.hmu.Unlock()
		delete(c.wild, id)
	}
}

// Done is closed once the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err reports why the connection ended.
func (c *Client) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Close ends the connection.
func (c *Client) Close() error {
	err := c.conn.Close(websocket.StatusNormalClosure, "")
	c.cancel()
	<-c.done
	if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
		return nil
	}
	return err
}

func (c *Client) write(ctx context.Context, f Frame) error {
	b, err := encodeFrame(f)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.Write(ctx, websocket.MessageBinary, b); err != nil {
		return errors.NewTransportError(errors.ErrCodeConnClosed, "write failed", err).WithEvent(f.Event)
	}
	return nil
}

func (c *Client) readLoop() {
	defer close(c.done)

	for {
		_, msg, err := c.conn.Read(c.ctx)
		if err != nil {
			c.err = err
			return
		}

		f, err := decodeFrame(msg)
		if err != nil {
			c.logger.Warn(c.ctx, err, "Dropping malformed frame")
			continue
		}

		if f.Ack {
			c.mu.Lock()
			ch, ok := c.pending[f.ID]
			c.mu.Unlock()
			if ok {
				select {
				case ch <- f.Data:
				default:
				}
			}
			continue
		}

		c.enqueue(f)
	}
}

func (c *Client) enqueue(f Frame) {
	c.imu.Lock()
	c.inbox = append(c.inbox, f)
	c.imu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// dispatchLoop runs handlers in arrival order. Frames still queued when
// the connection ends are delivered before it returns.
func (c *Client) dispatchLoop() {
	for {
		c.imu.Lock()
		batch := c.inbox
		c.inbox = nil
		c.imu.Unlock()

		for _, f := range batch {
			c.deliver(f.Event, f.Data)
		}
		if len(batch) > 0 {
			continue
		}

		select {
		case <-c.wake:
		case <-c.done:
			c.imu.Lock()
			rest := c.inbox
			c.inbox = nil
			c.imu.Unlock()
			for _, f := range rest {
				c.deliver(f.Event, f.Data)
			}
			return
		}
	}
}

func (c *Client) deliver(name string, payload []byte) {
	c.hmu.RLock()
	hs := make([]EventHandler, 0, len(c.handlers[name])+len(c.wild))
	hs = append(hs, ordered(c.handlers[name])...)
	hs = append(hs, ordered(c.wild)...)
	c.hmu.RUnlock()

	for _, h := range hs {
		h(name, payload)
	}
}

func ordered(m map[uint64]EventHandler) []EventHandler {
	ids := make([]uint64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]EventHandler, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

func (c *Client) closedErr(name string) error {
	return errors.NewTransportError(errors.ErrCodeConnClosed, "connection closed", c.err).WithEvent(name)
}
