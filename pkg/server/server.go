// Package server exposes the retrieval and chat pipeline over HTTP:
// chat, document search, summaries, recommendations, history CRUD and
// the operational endpoints (health, status, reload, metrics).
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lexlanka/gavel/pkg/agent"
	"github.com/lexlanka/gavel/pkg/auth"
	"github.com/lexlanka/gavel/pkg/config"
	"github.com/lexlanka/gavel/pkg/embedders"
	"github.com/lexlanka/gavel/pkg/indexstore"
	"github.com/lexlanka/gavel/pkg/observability"
	"github.com/lexlanka/gavel/pkg/qa"
	"github.com/lexlanka/gavel/pkg/retrievers"
	"github.com/lexlanka/gavel/pkg/sessions"
)

// Services carries the collaborators the server exposes. Archive,
// Validator and Observability may be nil.
type Services struct {
	QA            *qa.Service
	Summarizer    *agent.Summarizer
	Recommender   *agent.Recommender
	Retriever     *retrievers.Retriever
	Store         *indexstore.Store
	Archive       *sessions.SQLArchive
	Embedder      embedders.Provider
	Validator     *auth.Validator
	Observability *observability.Manager
}

// Server is the HTTP front of the service.
type Server struct {
	cfg    *config.Config
	svc    Services
	router chi.Router
	server *http.Server
}

// New builds the server and its route tree.
func New(cfg *config.Config, svc Services) *Server {
	s := &Server{cfg: cfg, svc: svc}
	s.router = s.routes()
	return s
}

// Handler returns the route tree, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Address returns the configured listen address.
func (s *Server) Address() string {
	return s.cfg.Server.Address()
}

// Start listens until ctx is cancelled, then drains connections.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.Address(),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown drains in-flight requests with a 5s deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	slog.Info("http server shutting down")
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	if s.svc.Observability != nil {
		r.Use(observability.HTTPMiddleware(
			s.svc.Observability.Tracer("http"),
			s.svc.Observability.Metrics(),
		))
	}
	r.Use(corsMiddleware(s.cfg.Server.AllowedOrigins))

	r.Post("/chat/get_ai_response", s.handleChat)
	r.Post("/get_docs/search", s.handleDocSearch)
	r.Post("/summary/summary", s.handleSummary)
	r.Post("/summary/highlights", s.handleHighlights)
	r.Post("/recommendations/get_recommendations", s.handleRecommendations)
	r.Get("/documents/{type}/{name}/chunks", s.handleChunks)

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Post("/admin/reload", s.handleReload)
	if s.svc.Observability != nil {
		r.Method(http.MethodGet, "/metrics", s.svc.Observability.Handler())
	}

	r.Route("/history", func(r chi.Router) {
		r.Use(auth.Middleware(s.svc.Validator))
		r.Get("/sessions", s.handleListSessions)
		r.Post("/sessions", s.handleCreateSession)
		r.Delete("/sessions", s.handleClearSessions)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Delete("/sessions/{id}", s.handleDeleteSession)
	})

	return r
}
