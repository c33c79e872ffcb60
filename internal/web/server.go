// Package web provides the HTTP server for the Level-0 import service.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/odin-smr/level0/internal/config"
	"github.com/odin-smr/level0/internal/importer"
	"github.com/odin-smr/level0/internal/observability"
	mw "github.com/odin-smr/level0/internal/web/middleware"
)

// Server is the HTTP server for the import API.
type Server struct {
	engine  *importer.Engine
	metrics *observability.Collector
	cfg     config.ServerConfig

	dataDir       string
	importTimeout time.Duration

	router *chi.Mux
	server *http.Server
}

// NewServer creates a new Server instance.
func NewServer(engine *importer.Engine, metrics *observability.Collector, cfg *config.Config) *Server {
	s := &Server{
		engine:        engine,
		metrics:       metrics,
		cfg:           cfg.Server,
		dataDir:       cfg.Import.DataDir,
		importTimeout: cfg.Import.Timeout,
		router:        chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	s.router.Route("/api", func(r chi.Router) {
		r.Post("/level0", s.handleImport)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
