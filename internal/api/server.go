// Package api exposes the navigation engine over HTTP. Handlers decode
// straight into the schemas request envelopes and hand off to the engine; all
// domain semantics live behind that boundary.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/draven0x/wayfinder/internal/config"
	"github.com/draven0x/wayfinder/internal/engine"
)

// Server wraps the engine in a chi router and an http.Server with the
// configured timeouts.
type Server struct {
	engine *engine.Engine
	cfg    config.ServerConfig
	log    *zap.Logger
	http   *http.Server
}

// NewServer builds the router and hangs every endpoint off /api/v1.
func NewServer(eng *engine.Engine, cfg config.ServerConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		engine: eng,
		cfg:    cfg,
		log:    logger.Named("api"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/query/path", s.handleResolvePath)
		r.Post("/query/next-action", s.handleNextAction)
		r.Post("/query/match-page", s.handleMatchPage)
		r.Post("/rag/retrieve", s.handleRetrieve)

		r.Post("/graph/report-transition", s.handleReportTransition)
		r.Post("/graph/add-page", s.handleAddPage)
		r.Post("/graph/ingest", s.handleIngest)
		r.Get("/graph/stats", s.handleStats)
		r.Get("/graph/export", s.handleExport)

		r.Post("/intent/register", s.handleRegisterIntent)

		r.Get("/pages/{pageID}/actions", s.handlePageActions)
		r.Get("/pages/{pageID}/intents", s.handleReachableIntents)
	})

	s.http = &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler exposes the router, primarily for httptest.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", zap.String("addr", s.cfg.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("HTTP server shutting down")
	return s.http.Shutdown(ctx)
}
