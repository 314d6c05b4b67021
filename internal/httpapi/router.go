package httpapi

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lakeql/nlsearch/internal/metrics"
	"github.com/lakeql/nlsearch/internal/pipeline"
)

// NewRouter builds the chi router exposing the three search endpoints
// (natural-language, stream, suggest) plus /healthz and /metrics.
func NewRouter(ctrl *pipeline.Controller, logger *slog.Logger, corsOrigins []string) *chi.Mux {
	h := New(ctrl, logger)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.Healthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/search/natural-language", h.Search)
	r.Get("/search/stream", h.Stream)
	r.Get("/search/suggest", h.Suggest)

	return r
}
