package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(svc RoutingService, adminToken string, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(RateLimitMiddleware(120))

	proposals := NewProposalsHandler(svc)
	admin := NewAdminHandler(svc)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(OrgIDMiddleware)

		r.Post("/leads/route", proposals.Route)

		r.Get("/proposals", proposals.List)
		r.Get("/proposals/{id}", proposals.Get)
		r.Get("/proposals/{id}/explain", proposals.Explain)
		r.Post("/proposals/{id}/approve", proposals.Approve)
		r.Post("/proposals/{id}/reject", proposals.Reject)
		r.Post("/proposals/{id}/override", proposals.Override)
		r.Post("/proposals/{id}/apply", proposals.Apply)

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(adminToken))
			r.Get("/stats", admin.Stats)
		})
	})

	return r
}

func NewMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
