package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Health)
	r.Get("/ws", h.Hub.HandleWS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Rates
		r.Get("/rates/current", h.GetCurrentRate)
		r.Post("/rates/refresh", h.RefreshRate)
		r.Put("/rates/manual", h.SetManualRate)
		r.Put("/rates/mode", h.SetMode)
		r.Get("/rates/history", h.ListRateHistory)
		r.Get("/rates/switches", h.ListSwitchHistory)

		// Quota dashboard
		r.Get("/quota", h.QuotaStatus)

		// Providers
		r.Get("/providers", h.ListProviders)
		r.Post("/providers", h.CreateProvider)
		r.Get("/providers/{id}", h.GetProvider)
		r.Put("/providers/{id}", h.UpdateProvider)
		r.Post("/providers/{id}/test", h.TestProvider)
	})
}
