// Package tracing configura OpenTelemetry para las llamadas a las regiones.
//
// Es opt-in: sin endpoint OTLP no se registra provider global y los spans
// son no-op.
package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/dropDatabas3/regionproxy"

// Atributos de span. Nunca se adjuntan secrets, codes ni tokens.
const (
	AttrRegion     = "proxy.region"
	AttrEndpoint   = "proxy.endpoint"
	AttrClientID   = "oauth.client_id"
	AttrHTTPMethod = "http.method"
	AttrHTTPStatus = "http.status_code"
	AttrFallback   = "proxy.fallback"
)

// Config configura el exporter.
type Config struct {
	Endpoint    string // URL OTLP/HTTP, ej: http://collector:4318
	ServiceName string
}

// Setup registra un TracerProvider global si hay endpoint.
// La función retornada hace flush de spans pendientes.
func Setup(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if cfg.Endpoint == "" {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.Endpoint))
	if err != nil {
		return noop, err
	}

	name := cfg.ServiceName
	if name == "" {
		name = "regionproxy"
	}
	res, err := resource.New(ctx, resource.WithAttributes(attribute.String("service.name", name)))
	if err != nil {
		return noop, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}

// Tracer retorna el tracer del proxy (usa el provider global vigente).
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// Inject propaga el trace context en los headers salientes.
func Inject(ctx context.Context, h http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(h))
}

// RecordError marca el span como fallido (nil-safe).
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
