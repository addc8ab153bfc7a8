package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	gd "github.com/Keksclan/goRawrDedupe"
)

// Observer annotates the caller's active span with one event per
// deduplicator outcome. It never starts spans of its own.
type Observer struct{}

// NewObserver returns an Observer.
func NewObserver() *Observer { return &Observer{} }

// Observe implements [gd.Observer].
func (*Observer) Observe(ctx context.Context, ev gd.Event) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("dedupe.key", ev.Key),
		attribute.String("dedupe.group", ev.Group),
	}
	if ev.Duration > 0 {
		attrs = append(attrs, attribute.Int64("dedupe.duration_ms", ev.Duration.Milliseconds()))
	}
	span.AddEvent("dedupe."+ev.Outcome.String(), trace.WithAttributes(attrs...))
	if ev.Err != nil {
		span.RecordError(ev.Err)
	}
}
