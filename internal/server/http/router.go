package serverhttp

import (
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"supplymatch/internal/config"
	"supplymatch/internal/middleware"
	"supplymatch/internal/pipeline"
	"supplymatch/internal/storage"
)

func NewRouter(cfg config.Config, db *storage.DB, svc *pipeline.ProcessingService, logger zerolog.Logger) *chi.Mux {
	h := &Handler{cfg: cfg, db: db, svc: svc, log: logger}
	r := chi.NewRouter()

	// recover -> requestID -> logging -> cors -> limit
	r.Use(middleware.Recover(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS(cfg.AllowOrigins))
	r.Use(middleware.LimitBytes(int64(cfg.MaxUploadMB) * 1024 * 1024))

	r.Get("/health", h.Health)

	r.Route("/uploads", func(r chi.Router) {
		r.Get("/", h.ListUploads)
		r.Post("/", h.CreateUpload)
		r.Post("/{id}/match", h.Rematch)
		r.Get("/{id}/results", h.Results)
		r.Get("/{id}/runs", h.Runs)
		r.Get("/{id}/comparison", h.Comparison)
		r.Post("/{id}/comparison", h.Comparison)
		r.Get("/{id}/proposal", h.Proposal)
		r.Post("/{id}/proposal", h.Proposal)
	})

	r.Post("/items/{id}/approve", h.Approve)
	r.Post("/items/{id}/reject", h.Reject)

	r.Get("/approved-matches", h.ListApproved)
	r.Put("/approved-matches", h.PutApproved)
	r.Delete("/approved-matches/{sku}", h.DeleteApproved)

	r.Get("/catalog", h.SearchCatalog)
	r.Get("/catalog/{sku}/suggestions", h.Suggestions)
	r.Get("/products", h.SearchProducts)

	return r
}
