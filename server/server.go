// Package server provides HTTP server management and lifecycle handling for the repertory API.
// It includes server setup, middleware configuration, route management, and graceful shutdown.
package server

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"sync"
	"time"

	"github.com/giygas/repertory-api/config"
	"github.com/giygas/repertory-api/interfaces"
	"github.com/giygas/repertory-api/logging"
	"github.com/giygas/repertory-api/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const rateLimiterSweepInterval = 30 * time.Minute

// Server represents the HTTP server
type Server struct {
	server      *http.Server
	router      chi.Router
	handler     interfaces.HTTPHandler
	rateLimiter *RateLimiter
	config      *config.Config

	stopSweep chan struct{}
	stopOnce  sync.Once
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, handler interfaces.HTTPHandler) *Server {
	router := chi.NewRouter()

	server := &Server{
		server: &http.Server{
			Handler:      router,
			Addr:         cfg.Address + ":" + cfg.Port,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 45 * time.Second, // a search may wait on a handshake plus a retry
			IdleTimeout:  60 * time.Second,
		},
		router:      router,
		handler:     handler,
		rateLimiter: NewRateLimiter(),
		config:      cfg,
		stopSweep:   make(chan struct{}),
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// Router exposes the configured router, mainly for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// setupMiddleware configures all middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(RealIPMiddleware)
	s.router.Use(s.requestLogger())
	s.router.Use(middleware.RedirectSlashes)
	s.router.Use(middleware.Recoverer)
	s.router.Use(RequestSizeMiddleware(s.config))
	s.router.Use(s.rateLimiter.Middleware)
	s.router.Use(metrics.Metrics)
}

func (s *Server) requestLogger() func(http.Handler) http.Handler {
	if logging.DefaultLoggingService == nil {
		logging.InitLogger("")
	}
	return logging.LoggingMiddleware(logging.DefaultLoggingService.Logger)
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	h := s.handler

	s.router.Get("/api/repertory/search", h.SearchRubrics)

	s.router.Route("/api/cases", func(r chi.Router) {
		r.Post("/", h.CreateCase)
		r.Route("/{caseID}", func(r chi.Router) {
			r.Get("/", h.GetCase)
			r.Delete("/", h.DeleteCase)
			r.Post("/rubrics", h.AddRubric)
			r.Delete("/rubrics", h.ClearRubrics)
			r.Delete("/rubrics/{rubricID}", h.RemoveRubric)
			r.Put("/rubrics/{rubricID}/importance", h.SetImportance)
			r.Get("/ranking", h.GetRanking)
			r.Get("/sheet", h.ExportSheet)
		})
	})

	s.router.Get("/health", h.HealthCheck)
	s.router.Handle("/metrics", promhttp.Handler())
}

// Start starts the server and blocks until it stops
func (s *Server) Start() error {
	// Start profiling server if in development mode
	if s.config.Env == config.EnvDevelopment {
		s.startProfilingServer()
	}

	go s.sweepRateLimiter()

	logging.Info(fmt.Sprintf("Starting server at: %s:%s", s.config.Address, s.config.Port))
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down server...")
	s.stopOnce.Do(func() { close(s.stopSweep) })

	if err := s.server.Shutdown(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
		// If graceful shutdown fails, force close
		if err := s.server.Close(); err != nil {
			logging.Error("Server close error", "error", err)
			return err
		}
	}

	logging.Info("Server shutdown complete")
	return nil
}

func (s *Server) sweepRateLimiter() {
	ticker := time.NewTicker(rateLimiterSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			remaining := s.rateLimiter.Sweep()
			logging.Debug("Rate limiter swept", "clients", remaining)
		case <-s.stopSweep:
			return
		}
	}
}

// startProfilingServer starts the pprof profiling server in development mode
func (s *Server) startProfilingServer() {
	go func() {
		logging.Info("Profiling server started at http://localhost:6060/debug/pprof/")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			logging.Warn("Profiling server failed", "error", err)
		}
	}()
}
