package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/somchaik/chunkd/internal/analyzer"
	"github.com/somchaik/chunkd/internal/config"
	"github.com/somchaik/chunkd/internal/pipeline"
)

// Server is the HTTP API server for chunkd.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	analyzer     *analyzer.Analyzer
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, an *analyzer.Analyzer, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		analyzer:     an,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/documents", s.handleSubmit)
		r.Get("/api/documents/{jobID}", s.handleStatus)
		r.Get("/api/documents/{jobID}/chunks", s.handleChunks)
		r.Post("/api/analyze", s.handleAnalyze)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
