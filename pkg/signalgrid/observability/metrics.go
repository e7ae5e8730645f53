package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records routing metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordDispatch records a completed dispatch with its outcome and latency.
	RecordDispatch(ctx context.Context, category string, outcome string, duration time.Duration)

	// RecordFloodBlock records a flood-guard rejection.
	RecordFloodBlock(ctx context.Context, origin string, category string)

	// RecordQueueOverflow records a per-consumer drop on a full queue.
	RecordQueueOverflow(ctx context.Context, consumerID string)

	// RecordDelivery records successful enqueues for one dispatch.
	RecordDelivery(ctx context.Context, category string, targets int)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	dispatches      metric.Int64Counter
	dispatchLatency metric.Float64Histogram
	floodBlocks     metric.Int64Counter
	queueOverflows  metric.Int64Counter
	deliveries      metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("signalgrid")

	dispatches, err := meter.Int64Counter("signalgrid.dispatch.count",
		metric.WithDescription("Number of dispatch calls by outcome"),
	)
	if err != nil {
		return nil, err
	}

	dispatchLatency, err := meter.Float64Histogram("signalgrid.dispatch.latency_ms",
		metric.WithDescription("Dispatch latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	floodBlocks, err := meter.Int64Counter("signalgrid.flood.blocked",
		metric.WithDescription("Number of flood-guard rejections"),
	)
	if err != nil {
		return nil, err
	}

	queueOverflows, err := meter.Int64Counter("signalgrid.queue.overflows",
		metric.WithDescription("Number of events dropped on full consumer queues"),
	)
	if err != nil {
		return nil, err
	}

	deliveries, err := meter.Int64Counter("signalgrid.delivery.count",
		metric.WithDescription("Number of successful per-consumer enqueues"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		dispatches:      dispatches,
		dispatchLatency: dispatchLatency,
		floodBlocks:     floodBlocks,
		queueOverflows:  queueOverflows,
		deliveries:      deliveries,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordDispatch records a dispatch call.
func (m *otelMetrics) RecordDispatch(ctx context.Context, category, outcome string, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("category", category),
		attribute.String("outcome", outcome),
	}
	m.dispatches.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.dispatchLatency.Record(ctx, float64(duration.Microseconds())/1000.0, metric.WithAttributes(attrs...))
}

// RecordFloodBlock records a flood-guard rejection.
func (m *otelMetrics) RecordFloodBlock(ctx context.Context, origin, category string) {
	m.floodBlocks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("origin", origin),
		attribute.String("category", category),
	))
}

// RecordQueueOverflow records a drop on a full queue.
func (m *otelMetrics) RecordQueueOverflow(ctx context.Context, consumerID string) {
	m.queueOverflows.Add(ctx, 1, metric.WithAttributes(
		attribute.String("consumer_id", consumerID),
	))
}

// RecordDelivery records successful enqueues for one dispatch.
func (m *otelMetrics) RecordDelivery(ctx context.Context, category string, targets int) {
	m.deliveries.Add(ctx, int64(targets), metric.WithAttributes(
		attribute.String("category", category),
	))
}
