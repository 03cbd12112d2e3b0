package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"parcel-agent/internal/db"
	"parcel-agent/internal/metrics"
	"parcel-agent/internal/service"
)

// NewRouter creates and configures the Chi router
func NewRouter(svc *service.Service, database *db.DB, apiKey string) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(Logger)
	r.Use(CORS)
	r.Use(Metrics)

	// Create handlers
	h := NewHandlers(svc, database)

	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// KMZ endpoints sit behind the API key when one is configured
	r.Group(func(r chi.Router) {
		r.Use(RequireKey(apiKey))

		r.Post("/process_pdf_kmz", h.ProcessPDFKMZ)
		r.Get("/kmz_by_lotplan", h.KMZByLotplan)
		r.Post("/kmz_by_address", h.KMZByAddress)
		r.Post("/kmz_by_address_fields", h.KMZByAddressFields)

		r.Route("/api", func(r chi.Router) {
			r.Get("/requests", h.ListRequests)
			r.Get("/requests/stats", h.RequestStats)
		})
	})

	return r
}
