// Package httptransport assembles the HTTP surface: middleware chain,
// domain handler registration, and operational endpoints.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dealflow/internal/platform/middleware"
	"dealflow/pkg/platform/httputil"
)

// Registrar is anything that mounts routes on the router. Each domain
// handler implements it.
type Registrar interface {
	Register(r chi.Router)
}

// HealthChecker reports dependency health for the readiness endpoint.
type HealthChecker func() error

const requestTimeout = 30 * time.Second

// NewRouter builds the full middleware chain and mounts every handler.
// API routes require an authenticated actor; operational endpoints do not.
func NewRouter(logger *slog.Logger, signingKey string, health HealthChecker, handlers ...Registrar) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if health != nil {
			if err := health(); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "degraded",
					"error":  err.Error(),
				})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.RequireActor(signingKey, logger))
		for _, h := range handlers {
			h.Register(api)
		}
	})

	return r
}
