// Package server exposes the voice pipeline over HTTP.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/voicefusion-labs/voicefusion-core/internal/conversation"
	"github.com/voicefusion-labs/voicefusion-core/internal/history"
	"github.com/voicefusion-labs/voicefusion-core/internal/pipeline"
)

// Server handles conversation and turn requests.
type Server struct {
	manager *conversation.Manager
	orch    *pipeline.Orchestrator
	store   *history.Store
	ready   func() bool
	logger  *slog.Logger
}

func New(manager *conversation.Manager, orch *pipeline.Orchestrator, store *history.Store, ready func() bool, logger *slog.Logger) *Server {
	if ready == nil {
		ready = func() bool { return true }
	}
	return &Server{
		manager: manager,
		orch:    orch,
		store:   store,
		ready:   ready,
		logger:  logger.With(slog.String("component", "http-server")),
	}
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Use(httprate.LimitByIP(120, time.Minute))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/v1/conversations", func(r chi.Router) {
		r.Post("/", s.handleCreateConversation)
		r.Route("/{conversationID}", func(r chi.Router) {
			r.Post("/turns", s.handleProcessTurn)
			r.Get("/turns", s.handleListTurns)
			r.Get("/history", s.handleHistory)
			r.Post("/reset", s.handleReset)
			r.Delete("/", s.handleDelete)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if s.ready() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
