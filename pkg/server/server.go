package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"originware/guardrail/pkg/audit"
	"originware/guardrail/pkg/config"
	"originware/guardrail/pkg/engine"
	"originware/guardrail/pkg/repository"
)

// Options carries the collaborators the server exposes over HTTP.
// Evaluator and Repository are required; everything else is optional.
type Options struct {
	// Evaluator runs rule set evaluations for POST /v1/evaluations.
	Evaluator engine.Evaluator

	// Repository backs rule set loading and the admin endpoints.
	Repository repository.Repository

	// Recorder receives one audit record per evaluation. Nil disables
	// audit recording.
	Recorder *audit.Recorder

	// Logger receives request logs and handler errors. Defaults to
	// slog.Default() scoped to the server component.
	Logger *slog.Logger

	// Metrics receives HTTP request counters and latency observations.
	// Optional; nil disables instrumentation.
	Metrics *Metrics

	// Registry, when set, is served as Prometheus text format on
	// MetricsPath.
	Registry *prometheus.Registry

	// MetricsPath is the scrape endpoint path. Defaults to "/metrics".
	MetricsPath string
}

// Server is the Guardrail HTTP service: evaluation, rule administration,
// health and metrics endpoints behind one listener.
type Server struct {
	cfg     config.ServerConfig
	logger  *slog.Logger
	handler http.Handler

	httpServer   *http.Server
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// New assembles the router and returns a server ready to Start.
func New(cfg config.ServerConfig, opts Options) (*Server, error) {
	if opts.Evaluator == nil {
		return nil, fmt.Errorf("server requires an evaluator")
	}
	if opts.Repository == nil {
		return nil, fmt.Errorf("server requires a repository")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "server")
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
	}
	s.handler = s.routes(opts)
	return s, nil
}

// Start starts the HTTP listener and blocks until the context is
// cancelled, Shutdown is called, or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.httpServer = &http.Server{
		Addr:           s.cfg.ListenAddress,
		Handler:        s.handler,
		ReadTimeout:    s.cfg.ReadTimeout,
		WriteTimeout:   s.cfg.WriteTimeout,
		IdleTimeout:    s.cfg.IdleTimeout,
		MaxHeaderBytes: s.cfg.MaxHeaderBytes,
	}
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", "address", s.cfg.ListenAddress)
		err := s.httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errChan <- err
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err := <-errChan:
		if err != nil {
			s.setStopped()
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}
}

// Shutdown gracefully drains in-flight requests, bounded by the
// configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.RLock()
		running := s.isRunning
		srv := s.httpServer
		s.mu.RUnlock()
		if !running || srv == nil {
			return
		}

		s.logger.Info("initiating graceful shutdown", "timeout", s.cfg.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.setStopped()
		s.logger.Info("server stopped")
	})

	return shutdownErr
}

// IsRunning returns true while the listener is up.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the configured HTTP handler, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) setStopped() {
	s.mu.Lock()
	s.isRunning = false
	s.mu.Unlock()
}

// routes assembles the middleware chain and route table.
func (s *Server) routes(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	if opts.Metrics != nil {
		r.Use(httpMetrics(opts.Metrics))
	}
	r.Use(recoverer(s.logger))
	if s.cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.cfg.RequestTimeout))
	}

	h := &handlerSet{
		evaluator:  opts.Evaluator,
		repository: opts.Repository,
		recorder:   opts.Recorder,
		logger:     s.logger,
	}

	r.Get("/healthz", h.handleHealth)
	r.Get("/readyz", h.handleReady)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/evaluations", h.handleEvaluate)
		r.Get("/rules", h.handleListRules)
		r.Post("/rules", h.handleSaveRule)
		r.Get("/areas", h.handleListAreas)
	})

	if opts.Registry != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{}))
	}

	return r
}
