package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the signalgrid tracer instance.
// Uses the global OTel tracer provider.
var tracer = otel.Tracer("signalgrid")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartDispatchSpan starts a span covering one dispatch call.
	StartDispatchSpan(ctx context.Context, eventID, category string) (context.Context, trace.Span)

	// EndSpanWithOutcome completes a span, recording the routing outcome.
	EndSpanWithOutcome(span trace.Span, outcome string, delivered int)

	// AddSpanEvent adds an event to the current span in context.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The span manager uses the global OTel tracer provider. Configure the
// provider before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// StartDispatchSpan starts a span covering one dispatch call.
func (m *otelSpanManager) StartDispatchSpan(ctx context.Context, eventID, category string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "signalgrid.dispatch",
		trace.WithAttributes(
			attribute.String("event.id", eventID),
			attribute.String("event.category", category),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithOutcome completes a span, recording the routing outcome.
// Routing rejections are ordinary outcomes, not span errors.
func (m *otelSpanManager) EndSpanWithOutcome(span trace.Span, outcome string, delivered int) {
	if span == nil {
		return
	}
	span.SetAttributes(
		attribute.String("dispatch.outcome", outcome),
		attribute.Int("dispatch.delivered", delivered),
	)
	span.SetStatus(codes.Ok, "")
	span.End()
}

// AddSpanEvent adds an event to the current span.
func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrs...))
}
