// Package metrics define las métricas Prometheus del proxy.
// Viven en un paquete propio para que relay y middlewares las compartan sin ciclos.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "regionproxy"

var (
	// HTTP (entrante)
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Número total de requests procesadas",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Latencia de los requests HTTP",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	HTTPInflight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_inflight_requests",
		Help:      "Requests en vuelo por método y ruta",
	}, []string{"method", "path"})

	// Upstream (regiones)
	UpstreamRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_requests_total",
		Help:      "Llamadas a los authorization servers regionales por resultado",
	}, []string{"region", "endpoint", "outcome"}) // outcome: 2xx|3xx|4xx|5xx|error

	UpstreamDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upstream_request_duration_seconds",
		Help:      "Latencia de las llamadas regionales",
		Buckets:   prometheus.DefBuckets,
	}, []string{"region", "endpoint"})

	FallbacksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fallbacks_total",
		Help:      "Veces que un try-both escaló de US a EU",
	}, []string{"endpoint"})

	RegistrationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Registros duales por resultado",
	}, []string{"result"}) // result: ok|us_failed|eu_failed|error

	RoutingRejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "routing_rejections_total",
		Help:      "Requests rechazadas localmente por no poder determinar la región",
	}, []string{"reason"})
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		HTTPRequestsTotal,
		HTTPRequestDuration,
		HTTPInflight,
		UpstreamRequestsTotal,
		UpstreamDuration,
		FallbacksTotal,
		RegistrationsTotal,
		RoutingRejectionsTotal,
	}
}

// Register registra todas las métricas en reg (o el default si es nil).
// Es idempotente: ignora AlreadyRegisteredError.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// Outcome agrupa un status HTTP en su clase ("2xx", "4xx", ...).
func Outcome(status int) string {
	if status < 100 || status > 599 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}
