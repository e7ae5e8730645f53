// Package observability provides structured logging, metrics, and tracing
// for the routing engine.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds routing context to a logger. Returns a new logger with
// event_id, category, and origin fields.
func EnrichLogger(logger *slog.Logger, eventID, category, origin string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("event_id", eventID),
		slog.String("category", category),
		slog.String("origin", origin),
	)
}

// LogDispatchRejected logs a dispatch that terminated at a gate.
func LogDispatchRejected(logger *slog.Logger, eventID, reason, detail string) {
	if logger == nil {
		return
	}
	logger.Debug("dispatch rejected",
		slog.String("event_id", eventID),
		slog.String("reason", reason),
		slog.String("detail", detail),
	)
}

// LogDelivered logs a completed dispatch.
func LogDelivered(logger *slog.Logger, eventID, ruleID string, delivered, targeted int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("event delivered",
		slog.String("event_id", eventID),
		slog.String("rule_id", ruleID),
		slog.Int("delivered", delivered),
		slog.Int("targeted", targeted),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogHopCeiling logs an event crossing its rule's hop ceiling. Delivery
// still proceeds; this is a soft condition.
func LogHopCeiling(logger *slog.Logger, eventID string, hopCount, maxHops int) {
	if logger == nil {
		return
	}
	logger.Warn("hop ceiling crossed",
		slog.String("event_id", eventID),
		slog.Int("hop_count", hopCount),
		slog.Int("max_hops", maxHops),
	)
}

// LogQueueOverflow logs a per-consumer drop on a full queue.
func LogQueueOverflow(logger *slog.Logger, eventID, consumerID string) {
	if logger == nil {
		return
	}
	logger.Warn("queue overflow, event dropped",
		slog.String("event_id", eventID),
		slog.String("consumer_id", consumerID),
	)
}

// LogDeliveryError logs an unexpected failure delivering to one consumer.
// The remaining targets in the same fan-out are unaffected.
func LogDeliveryError(logger *slog.Logger, eventID, consumerID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("delivery failed for consumer",
		slog.String("event_id", eventID),
		slog.String("consumer_id", consumerID),
		slog.String("error", err.Error()),
	)
}

// LogSweepError logs a maintenance-pass failure (non-fatal).
func LogSweepError(logger *slog.Logger, err error) {
	if logger == nil {
		return
	}
	logger.Error("maintenance sweep failed",
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation. Returns a function
// that, when called, returns the elapsed time in milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000.0
	}
}
