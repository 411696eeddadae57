package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/cdisc-org/analysis-concepts-sub000/config"
)

// NewRouter assembles the chi router with the standard middleware stack:
// request IDs, panic recovery, CORS, per-client rate limiting, and
// request logging.
func NewRouter(h *Handler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Use(RateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst))
	r.Use(RequestLogger(h.logger))

	r.Get("/healthz", h.health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/concepts", func(r chi.Router) {
			r.Get("/", h.listConcepts)
			r.Post("/", h.createConcept)
			r.Get("/{id}", h.getConcept)
		})
		r.Route("/derivations", func(r chi.Router) {
			r.Get("/", h.listDerivations)
			r.Post("/", h.createDerivation)
			r.Post("/{id}/execute", h.executeDerivation)
			r.Post("/execute-batch", h.executeBatch)
		})
		r.Route("/analyses", func(r chi.Router) {
			r.Post("/{id}/execute", h.executeAnalysis)
		})
	})

	return r
}
