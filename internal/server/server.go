// Package server exposes sessions, layouts, connectors and rendered
// artifacts over HTTP.
//
// A session owns a forest and its visibility state. Clients mutate the
// state through actions and read back placements, curves and artifacts;
// mutations of one session are serialized, different sessions proceed in
// parallel. Stored tree payloads and node notes are served when a
// [storage.Store] is configured.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/sensortree/pkg/layout"
	"github.com/matzehuels/sensortree/pkg/pipeline"
	"github.com/matzehuels/sensortree/pkg/session"
	"github.com/matzehuels/sensortree/pkg/storage"
)

// DefaultMaxBody is the default request body limit.
const DefaultMaxBody = 32 << 20

// Config holds the server tunables.
type Config struct {
	SessionTTL time.Duration
	Viewport   layout.Size
	Layout     layout.Config
	MaxBody    int64
}

func (c *Config) setDefaults() {
	if c.SessionTTL <= 0 {
		c.SessionTTL = session.DefaultTTL
	}
	if c.Viewport.Width <= 0 {
		c.Viewport.Width = pipeline.DefaultWidth
	}
	if c.Viewport.Height <= 0 {
		c.Viewport.Height = pipeline.DefaultHeight
	}
	if c.MaxBody <= 0 {
		c.MaxBody = DefaultMaxBody
	}
	c.Layout = c.Layout.Merge(layout.DefaultConfig())
}

// Server is the HTTP host.
type Server struct {
	runner   *pipeline.Runner
	sessions session.Store
	store    storage.Store
	metrics  *Metrics
	logger   *log.Logger
	cfg      Config
	locks    *keyedMutex
	router   chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithStorage enables the tree and note routes.
func WithStorage(st storage.Store) Option {
	return func(s *Server) { s.store = st }
}

// WithMetrics serves m on /metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLogger sets the request and error logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithConfig sets the server tunables.
func WithConfig(cfg Config) Option {
	return func(s *Server) { s.cfg = cfg }
}

// New creates a server over runner and sessions. A nil session store
// defaults to an in-memory one.
func New(runner *pipeline.Runner, sessions session.Store, opts ...Option) *Server {
	s := &Server{
		runner:   runner,
		sessions: sessions,
		locks:    newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.runner == nil {
		s.runner = pipeline.NewRunner(nil, nil, s.logger)
	}
	if s.sessions == nil {
		s.sessions = session.NewMemoryStore()
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	s.cfg.setDefaults()
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/trees", func(r chi.Router) {
			r.Get("/", s.handleListTrees)
			r.Put("/{name}", s.handlePutTree)
			r.Get("/{name}", s.handleGetTree)
			r.Delete("/{name}", s.handleDeleteTree)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleCreateSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Delete("/", s.handleDeleteSession)
				r.Put("/forest", s.handleReplaceForest)
				r.Post("/actions", s.handleAction)
				r.Get("/layout", s.handleLayout)
				r.Post("/connectors", s.handleConnectors)
				r.Get("/render", s.handleRender)
			})
		})

		r.Get("/notes/*", s.handleGetNote)
		r.Put("/notes/*", s.handlePutNote)
	})
	return r
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully. Expired sessions are swept every interval while serving.
func (s *Server) ListenAndServe(ctx context.Context, addr string, sweep time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	if sweep > 0 {
		go s.sweepSessions(ctx, sweep)
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) sweepSessions(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.sessions.Cleanup(ctx); err != nil {
				s.logger.Warn("session cleanup failed", "err", err)
			}
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
