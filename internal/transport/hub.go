package transport

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/time/rate"

	"github.com/conneroisu/widgetsync/internal/channel"
	"github.com/conneroisu/widgetsync/internal/errors"
	"github.com/conneroisu/widgetsync/internal/logging"
)

// Router receives inbound events. *page.Page satisfies it.
type Router interface {
	Dispatch(ctx context.Context, ev channel.Event) error
}

// ConnObserver is told about connects and disconnects.
// *metrics.Metrics satisfies it.
type ConnObserver interface {
	ClientConnected()
	ClientDisconnected()
}

// HubConfig tunes the socket hub.
type HubConfig struct {
	Origins OriginValidator
	// Rate and Burst bound inbound frames per client. Zero disables the limit.
	Rate         float64
	Burst        int
	PingInterval time.Duration
	ReadLimit    int64
	SendBuffer   int
	Logger       logging.Logger
	Observer     ConnObserver
}

func (c *HubConfig) setDefaults() {
	if c.PingInterval <= 0 {
		c.PingInterval = 54 * time.Second
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = 1 << 20
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 256
	}
	if c.Burst <= 0 && c.Rate > 0 {
		c.Burst = int(c.Rate)
		if c.Burst < 1 {
			c.Burst = 1
		}
	}
	if c.Logger == nil {
		c.Logger = logging.NewNop()
	}
}

// peer is one connected upstream process. send is never closed; done
// marks the peer as dropped.
type peer struct {
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	limiter *rate.Limiter
	addr    string
	once    sync.Once
}

func newPeer(conn *websocket.Conn, addr string, buffer int) *peer {
	return &peer{
		conn: conn,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
		addr: addr,
	}
}

func (p *peer) close() {
	p.once.Do(func() { close(p.done) })
}

// Hub accepts upstream websocket connections, broadcasts page emissions to
// all of them and routes their frames to a Router. Acks go back to the
// requesting connection only.
type Hub struct {
	router Router
	cfg    HubConfig
	logger logging.Logger
	errs   *errors.ErrorHandler

	mu    sync.RWMutex
	peers map[*peer]struct{}

	register   chan *peer
	unregister chan *peer
	broadcast  chan []byte

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownOnce sync.Once
	closed       atomic.Bool
	wg           sync.WaitGroup
}

// NewHub creates a hub and starts its management goroutine.
func NewHub(router Router, cfg HubConfig) *Hub {
	cfg.setDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	logger := cfg.Logger.WithComponent("socket")

	h := &Hub{
		router:     router,
		cfg:        cfg,
		logger:     logger,
		errs:       errors.NewErrorHandler(logger),
		peers:      make(map[*peer]struct{}),
		register:   make(chan *peer, 32),
		unregister: make(chan *peer, 32),
		broadcast:  make(chan []byte, 256),
		ctx:        ctx,
		cancel:     cancel,
	}
	go h.run()
	return h
}

// ServeHTTP upgrades the request to a websocket sync channel.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.closed.Load() {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	addr := clientIP(r)
	if !checkOrigin(h.cfg.Origins, r) {
		h.errs.Handle(r.Context(), errors.NewTransportError(errors.ErrCodeInvalidOrigin,
			"websocket origin rejected", nil).WithContext("origin", r.Header.Get("Origin")))
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	// Origins were validated above.
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  []string{"*"},
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		h.logger.Warn(r.Context(), err, "WebSocket upgrade failed", "client", addr)
		return
	}
	conn.SetReadLimit(h.cfg.ReadLimit)

	p := newPeer(conn, addr, h.cfg.SendBuffer)
	if h.cfg.Rate > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(h.cfg.Rate), h.cfg.Burst)
	}

	select {
	case h.register <- p:
	case <-h.ctx.Done():
		conn.Close(websocket.StatusServiceRestart, "server shutting down")
		return
	}

	h.wg.Add(1)
	go h.serve(p)
}

// Emit broadcasts an event to every connected client.
func (h *Hub) Emit(ctx context.Context, name string, payload []byte) error {
	if h.closed.Load() {
		return errors.NewTransportError(errors.ErrCodeConnClosed, "hub is shut down", nil).WithEvent(name)
	}
	b, err := encodeFrame(Frame{Event: name, Data: payload})
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- b:
		return nil
	case <-h.ctx.Done():
		return errors.NewTransportError(errors.ErrCodeConnClosed, "hub is shut down", nil).WithEvent(name)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.peers)
}

func (h *Hub) run() {
	for {
		select {
		case p := <-h.register:
			if h.cfg.Observer != nil {
				h.cfg.Observer.ClientConnected()
			}
			h.mu.Lock()
			h.peers[p] = struct{}{}
			n := len(h.peers)
			h.mu.Unlock()
			h.logger.Info(h.ctx, "Socket client connected", "client", p.addr, "clients", n)

		case p := <-h.unregister:
			h.drop(p)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for p := range h.peers {
				select {
				case p.send <- msg:
				default:
					// Slow consumer.
					go func(p *peer) {
						select {
						case h.unregister <- p:
						case <-h.ctx.Done():
						}
					}(p)
				}
			}
			h.mu.RUnlock()

		case <-h.ctx.Done():
			return
		}
	}
}

func (h *Hub) drop(p *peer) {
	h.mu.Lock()
	_, ok := h.peers[p]
	delete(h.peers, p)
	n := len(h.peers)
	h.mu.Unlock()

	if !ok {
		return
	}
	p.close()
	p.conn.Close(websocket.StatusNormalClosure, "")
	if h.cfg.Observer != nil {
		h.cfg.Observer.ClientDisconnected()
	}
	h.logger.Info(h.ctx, "Socket client disconnected", "client", p.addr, "clients", n)
}

func (h *Hub) serve(p *peer) {
	defer h.wg.Done()
	defer func() {
		select {
		case h.unregister <- p:
		case <-h.ctx.Done():
		}
	}()

	go h.writePump(p)
	h.readPump(p)
}

func (h *Hub) readPump(p *peer) {
	for {
		_, msg, err := p.conn.Read(h.ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure && h.ctx.Err() == nil {
				h.logger.Debug(h.ctx, "Socket read ended", "client", p.addr, "error", err.Error())
			}
			return
		}

		if p.limiter != nil && !p.limiter.Allow() {
			h.errs.Handle(h.ctx, errors.NewTransportError(errors.ErrCodeRateLimited,
				"client exceeded message rate", nil).WithContext("client", p.addr))
			p.conn.Close(websocket.StatusPolicyViolation, "rate limit exceeded")
			return
		}

		h.handleFrame(p, msg)
	}
}

func (h *Hub) handleFrame(p *peer, msg []byte) {
	f, err := decodeFrame(msg)
	if err != nil {
		h.errs.Handle(h.ctx, err)
		return
	}
	if f.Ack {
		// The hub never issues requests.
		return
	}

	ev := channel.Event{Name: f.Event, Payload: f.Data}
	if f.ID != 0 {
		id, name := f.ID, f.Event
		ev.Ack = func(payload []byte) error {
			b, err := encodeFrame(Frame{Event: name, Data: payload, ID: id, Ack: true})
			if err != nil {
				return err
			}
			return h.sendTo(p, b)
		}
	}

	if err := h.router.Dispatch(h.ctx, ev); err != nil {
		h.errs.Handle(h.ctx, err)
	}
}

func (h *Hub) sendTo(p *peer, b []byte) error {
	// A dropped peer must win over a send buffer that still has room.
	select {
	case <-p.done:
		return errors.NewTransportError(errors.ErrCodeConnClosed, "client disconnected", nil)
	default:
	}

	select {
	case p.send <- b:
		return nil
	case <-p.done:
		return errors.NewTransportError(errors.ErrCodeConnClosed, "client disconnected", nil)
	case <-h.ctx.Done():
		return errors.NewTransportError(errors.ErrCodeConnClosed, "hub is shut down", nil)
	}
}

func (h *Hub) writePump(p *peer) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-p.send:
			ctx, cancel := context.WithTimeout(h.ctx, 10*time.Second)
			err := p.conn.Write(ctx, websocket.MessageBinary, msg)
			cancel()
			if err != nil {
				h.logger.Debug(h.ctx, "Socket write failed", "client", p.addr, "error", err.Error())
				p.conn.Close(websocket.StatusInternalError, "write failed")
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(h.ctx, 10*time.Second)
			err := p.conn.Ping(ctx)
			cancel()
			if err != nil {
				p.conn.Close(websocket.StatusGoingAway, "ping failed")
				return
			}

		case <-p.done:
			return

		case <-h.ctx.Done():
			return
		}
	}
}

// Shutdown closes every connection and waits for their goroutines until
// ctx ends.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.shutdownOnce.Do(func() {
		h.closed.Store(true)

		h.mu.Lock()
		peers := make([]*peer, 0, len(h.peers))
		for p := range h.peers {
			peers = append(peers, p)
		}
		h.peers = make(map[*peer]struct{})
		h.mu.Unlock()

		for _, p := range peers {
			p.close()
			p.conn.Close(websocket.StatusGoingAway, "server shutdown")
			if h.cfg.Observer != nil {
				h.cfg.Observer.ClientDisconnected()
			}
		}
		h.cancel()
	})

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info(ctx, "Socket hub shut down")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
