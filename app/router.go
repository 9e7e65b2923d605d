package app

import (
	"net/http"

	"github.com/edelkas/inne-sub000/pkg/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// newHTTPRouter builds the root HTTP router. Modules mount their routes on it.
func newHTTPRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP, middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

// metricsHandler serves the Prometheus registry.
func metricsHandler(obs observability.Observability) http.Handler {
	return promhttp.HandlerFor(obs.Registry.Prometheus, promhttp.HandlerOpts{})
}
