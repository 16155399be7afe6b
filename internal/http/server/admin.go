package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dropDatabas3/regionproxy/internal/cache"
	"github.com/dropDatabas3/regionproxy/internal/observability/logger"
)

const readyTimeout = 2 * time.Second

// AdminHandler expone /metrics, /healthz y /readyz en el listener interno.
func AdminHandler(reg *prometheus.Registry, kv cache.Client) http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), readyTimeout)
		defer cancel()
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		if err := kv.Ping(ctx); err != nil {
			logger.From(req.Context()).Warn("readiness check failed", logger.Component("admin"), logger.Err(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("kv unavailable\n"))
			return
		}
		_, _ = w.Write([]byte("ok\n"))
	})
	return r
}
