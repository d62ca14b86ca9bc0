package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/starford/chatnotes/internal/noteservice"
)

// NewRouter creates a chi router with all /api routes mounted.
// events, if non-nil, is mounted at GET /events.
func NewRouter(svc *noteservice.Service, events http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()

	r.Route("/conversation", func(r chi.Router) {
		r.Post("/analyze", h.Analyze)
		r.Post("/save+analyze", h.SaveAndAnalyze)
		r.Post("/save", h.SaveRaw)
	})

	// Catalog.
	r.Get("/notes", h.ListNotes)
	r.Get("/search", h.Search)

	if events != nil {
		r.Get("/events", events.ServeHTTP)
	}

	return r
}

// ServerConfig collects what the top-level router needs besides the service.
type ServerConfig struct {
	CORSOrigins []string
	// Vault and Model are reported by GET /health.
	Vault string
	Model string
	// Events and Metrics are optional.
	Events  http.Handler
	Metrics http.Handler
}

// NewServer builds the full HTTP handler: middleware, /health, /metrics and
// the /api routes.
func NewServer(svc *noteservice.Service, cfg ServerConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsHandler(cfg.CORSOrigins))

	r.Get("/health", Health(cfg.Vault, cfg.Model))
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Mount("/api", NewRouter(svc, cfg.Events))
	return r
}
