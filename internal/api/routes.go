package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Router builds the HTTP routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(h.Logger))
	r.Use(chimw.Recoverer)

	r.Get("/health", h.handleHealth)

	r.Route("/api", func(api chi.Router) {
		if h.opts.CORSOrigin != "" {
			api.Use(cors.Handler(cors.Options{
				AllowedOrigins: []string{h.opts.CORSOrigin},
				AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "X-CSRF-Token"},
				MaxAge:         300,
			}))
		}
		api.Use(h.limiter.Middleware)

		// CSRF token endpoint (must be outside CSRF middleware)
		api.Get("/csrf-token", h.handleGetCSRFToken)

		api.Group(func(p chi.Router) {
			p.Use(LimitBodySize(h.opts.MaxBodyBytes))
			p.Use(h.csrf.Wrap)

			p.Post("/sessions", h.handleCreateSession)
			p.Get("/sessions/{id}", h.handleGetSession)
			p.Put("/sessions/{id}/tables", h.handlePutTables)
			p.Get("/sessions/{id}/schema", h.handleGetSchema)
			p.Post("/sessions/{id}/schema/save", h.handleSaveSchema)
			p.Post("/sessions/{id}/synthesize", h.handleSynthesize)

			p.Post("/sessions/{id}/runs", h.handleStartRun)
			p.Get("/sessions/{id}/runs/{runID}", h.handleRunStatus)
			p.Get("/sessions/{id}/runs/{runID}/watch", h.handleWatchRun)

			p.Get("/tables", h.handleListTables)
			p.Get("/tables/{name}/preview", h.handlePreviewTable)
			p.Post("/archive", h.handleBuildArchive)
			p.Get("/archive", h.handleDownloadArchive)

			p.Post("/predict", h.handlePredict)
		})
	})

	if h.WebFS != nil {
		// Static files (no CSRF needed for GET)
		r.Handle("/*", http.FileServer(http.FS(h.WebFS)))
	}
	return r
}
