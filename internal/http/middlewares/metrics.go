package middlewares

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dropDatabas3/regionproxy/internal/metrics"
)

// PathLabelFunc reduce un path a un label de baja cardinalidad.
type PathLabelFunc func(path string) string

// WithMetrics registra contador, latencia e inflight por método y label de path.
// Sin label func, todos los paths caen en "other".
func WithMetrics(label PathLabelFunc) Middleware {
	if label == nil {
		label = func(string) string { return "other" }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := label(r.URL.Path)
			inflight := metrics.HTTPInflight.WithLabelValues(r.Method, path)
			inflight.Inc()
			defer inflight.Dec()

			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		})
	}
}
