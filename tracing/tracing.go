// Package tracing wires OpenTelemetry into the deduplicator, the backend
// clients and the admin gRPC server. Everything here is optional: a nil
// *Config turns the helpers into no-ops.
package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/Keksclan/goRawrDedupe/tracing"

// Config holds the OpenTelemetry providers.
type Config struct {
	// TracerProvider supplies the Tracer used to create spans. When nil the
	// global otel.GetTracerProvider() is used.
	TracerProvider trace.TracerProvider

	// Propagators extracts and injects trace context. When nil the global
	// otel.GetTextMapPropagator() is used.
	Propagators propagation.TextMapPropagator
}

func (c *Config) tracer() trace.Tracer {
	tp := c.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return tp.Tracer(instrumentationName)
}

func (c *Config) propagators() propagation.TextMapPropagator {
	if c.Propagators != nil {
		return c.Propagators
	}
	return otel.GetTextMapPropagator()
}

// Start begins a client span. With a nil cfg it returns ctx unchanged and a
// non-recording span, so callers can always defer End.
func Start(ctx context.Context, cfg *Config, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if cfg == nil {
		return ctx, trace.SpanFromContext(context.Background())
	}
	return cfg.tracer().Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
}

// InjectHTTP writes the trace context of ctx into h.
func InjectHTTP(ctx context.Context, cfg *Config, h http.Header) {
	if cfg == nil {
		return
	}
	cfg.propagators().Inject(ctx, propagation.HeaderCarrier(h))
}

// End records err on span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
