// Package server is the HTTP surface of the widget host: the dashboard,
// a JSON API for UI interactions, the websocket sync channel and metrics.
package server

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/widgetsync/internal/config"
	"github.com/conneroisu/widgetsync/internal/errors"
	"github.com/conneroisu/widgetsync/internal/layout"
	"github.com/conneroisu/widgetsync/internal/logging"
	"github.com/conneroisu/widgetsync/internal/metrics"
	"github.com/conneroisu/widgetsync/internal/page"
	"github.com/conneroisu/widgetsync/internal/store"
	"github.com/conneroisu/widgetsync/internal/transport"
	"github.com/conneroisu/widgetsync/internal/watcher"
)

// Options wires a Server. Store and Layout are optional.
type Options struct {
	Config  *config.Config
	Store   store.Store
	Layout  *layout.Layout
	Logger  logging.Logger
	Metrics *metrics.Metrics
}

// Server hosts one page.
type Server struct {
	cfg     *config.Config
	logger  logging.Logger
	errs    *errors.ErrorHandler
	metrics *metrics.Metrics
	store   store.Store
	page    *page.Page
	hub     *transport.Hub
	router  chi.Router

	layoutMu sync.Mutex
	layout   *layout.Layout

	addrMu sync.RWMutex
	addr   string
}

// New builds the page from the layout, mounts its widgets and prepares
// the socket hub.
func New(ctx context.Context, opts Options) (*Server, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.WithComponent("server")
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}
	st := opts.Store
	if st == nil {
		st = store.NewMemoryStore()
	}
	lay := opts.Layout
	if lay == nil {
		lay = &layout.Layout{}
	}

	title := lay.Title
	if title == "" {
		title = cfg.Server.Title
	}
	p := page.New(page.Options{
		Title:    title,
		Store:    m.InstrumentStore(st),
		Logger:   logger,
		Observer: m,
	})
	if err := p.Mount(ctx, lay.Widgets); err != nil {
		return nil, err
	}

	hub := transport.NewHub(p, transport.HubConfig{
		Origins:      transport.PatternOriginValidator{Patterns: cfg.Server.AllowedOrigins},
		Rate:         cfg.Socket.Rate,
		Burst:        cfg.Socket.Burst,
		PingInterval: cfg.Socket.PingInterval,
		ReadLimit:    cfg.Socket.ReadLimit,
		Logger:       logger,
		Observer:     m,
	})
	p.Attach(hub)

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		errs:    errors.NewErrorHandler(logger),
		metrics: m,
		store:   st,
		page:    p,
		hub:     hub,
		layout:  lay,
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.loggingMiddleware)
	r.Use(s.securityHeadersMiddleware)

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	r.Method(http.MethodGet, "/socket", s.hub)
	r.Get("/widgets/{id}", s.handleWidgetFragment)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.corsMiddleware)
		r.Get("/widgets", s.handleListWidgets)
		r.Get("/widgets/{id}", s.handleGetWidget)
		r.Post("/widgets/{id}", s.handleChangeWidget)
		r.Post("/widgets/{id}/upload", s.handleUpload)
		r.Get("/routes", s.handleRoutes)
		r.Get("/messages", s.handleMessages)
	})

	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Page returns the hosted page.
func (s *Server) Page() *page.Page {
	return s.page
}

// Hub returns the socket hub.
func (s *Server) Hub() *transport.Hub {
	return s.hub
}

// Addr returns the listening address once Run has bound it.
func (s *Server) Addr() string {
	s.addrMu.RLock()
	defer s.addrMu.RUnlock()
	return s.addr
}

// Run serves until ctx ends, then shuts the HTTP server, the hub, the
// watchers and the store down. layoutPath enables hot reload when the
// config asks for it.
func (s *Server) Run(ctx context.Context, layoutPath string) error {
	ln, err := net.Listen("tcp", s.cfg.Server.Addr())
	if err != nil {
		return errors.NewTransportError(errors.ErrCodeConnClosed, "listen on "+s.cfg.Server.Addr(), err)
	}
	s.addrMu.Lock()
	s.addr = ln.Addr().String()
	s.addrMu.Unlock()

	httpServer := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    1 << 20,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info(gctx, "Serving widget host", "addr", s.Addr(), "widgets", len(s.page.Widgets()))
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()

		hubErr := s.hub.Shutdown(shutdownCtx)
		httpErr := httpServer.Shutdown(shutdownCtx)
		return errors.Join(hubErr, httpErr)
	})

	if layoutPath != "" && s.cfg.Layout.Watch {
		g.Go(func() error {
			return layout.Watch(gctx, layoutPath, s.logger, func(l *layout.Layout, err error) {
				if err != nil {
					s.errs.Handle(gctx, err)
					return
				}
				s.ApplyLayout(gctx, l)
			})
		})
	}

	if fs, ok := s.store.(*store.FileStore); ok {
		g.Go(func() error {
			return s.watchStore(gctx, fs)
		})
	}

	err = g.Wait()
	if cerr := s.store.Close(); cerr != nil {
		s.logger.Warn(ctx, cerr, "Closing store failed")
	}
	return err
}

// ApplyLayout tears down widgets missing from l and mounts the new ones.
func (s *Server) ApplyLayout(ctx context.Context, l *layout.Layout) {
	s.layoutMu.Lock()
	defer s.layoutMu.Unlock()

	added, removed := layout.Diff(s.layout, l)
	for _, id := range removed {
		if err := s.page.Remove(id); err != nil {
			s.errs.Handle(ctx, err)
		}
	}
	for _, spec := range added {
		if _, err := s.page.Add(ctx, spec); err != nil {
			s.errs.Handle(ctx, err)
		}
	}
	s.layout = l

	s.logger.Info(ctx, "Layout reloaded", "added", len(added), "removed", len(removed))
}

func (s *Server) watchStore(ctx context.Context, fs *store.FileStore) error {
	fw, err := watcher.NewFileWatcher(watcher.DefaultDelay, s.logger)
	if err != nil {
		return err
	}
	if err := fw.AddFile(fs.Path()); err != nil {
		_ = fw.Close()
		return err
	}
	fw.AddHandler(func([]watcher.ChangeEvent) error {
		return fs.Reload()
	})
	return fw.Run(ctx)
}
