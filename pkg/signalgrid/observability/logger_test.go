package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHandler captures log records for testing.
type testHandler struct {
	buf    *bytes.Buffer
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func newTestHandler() *testHandler {
	return &testHandler{
		buf:   &bytes.Buffer{},
		level: slog.LevelDebug,
	}
}

func (h *testHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *testHandler) Handle(_ context.Context, r slog.Record) error {
	data := map[string]any{
		"level": r.Level.String(),
		"msg":   r.Message,
	}

	for _, attr := range h.attrs {
		data[attr.Key] = attr.Value.Any()
	}

	r.Attrs(func(a slog.Attr) bool {
		data[a.Key] = a.Value.Any()
		return true
	})

	enc := json.NewEncoder(h.buf)
	return enc.Encode(data)
}

func (h *testHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newH := &testHandler{
		buf:    h.buf,
		level:  h.level,
		attrs:  make([]slog.Attr, len(h.attrs)+len(attrs)),
		groups: h.groups,
	}
	copy(newH.attrs, h.attrs)
	copy(newH.attrs[len(h.attrs):], attrs)
	return newH
}

func (h *testHandler) WithGroup(name string) slog.Handler {
	return &testHandler{
		buf:    h.buf,
		level:  h.level,
		attrs:  h.attrs,
		groups: append(h.groups, name),
	}
}

func (h *testHandler) getLastRecord() map[string]any {
	lines := bytes.Split(h.buf.Bytes(), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		if len(lines[i]) > 0 {
			var m map[string]any
			if err := json.Unmarshal(lines[i], &m); err == nil {
				return m
			}
		}
	}
	return nil
}

func TestEnrichLogger(t *testing.T) {
	t.Run("adds event_id, category, and origin", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		enriched := EnrichLogger(logger, "evt-123", "alert", "sensor-7")
		enriched.Info("test message")

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "evt-123", record["event_id"])
		assert.Equal(t, "alert", record["category"])
		assert.Equal(t, "sensor-7", record["origin"])
		assert.Equal(t, "test message", record["msg"])
	})

	t.Run("nil logger returns nil", func(t *testing.T) {
		enriched := EnrichLogger(nil, "evt-123", "alert", "origin")
		assert.Nil(t, enriched)
	})

	t.Run("empty values are included", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		enriched := EnrichLogger(logger, "", "", "")
		enriched.Info("test")

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "", record["event_id"])
		assert.Equal(t, "", record["category"])
		assert.Equal(t, "", record["origin"])
	})
}

func TestLogDispatchRejected(t *testing.T) {
	t.Run("logs at DEBUG level with reason", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		LogDispatchRejected(logger, "evt-1", "flood_blocked", "sensor-7")

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "DEBUG", record["level"])
		assert.Equal(t, "dispatch rejected", record["msg"])
		assert.Equal(t, "evt-1", record["event_id"])
		assert.Equal(t, "flood_blocked", record["reason"])
		assert.Equal(t, "sensor-7", record["detail"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogDispatchRejected(nil, "evt", "reason", "detail")
		})
	})
}

func TestLogDelivered(t *testing.T) {
	t.Run("logs delivery with counts", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		LogDelivered(logger, "evt-2", "critical-alerts", 2, 3, 12.5)

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "DEBUG", record["level"])
		assert.Equal(t, "event delivered", record["msg"])
		assert.Equal(t, "evt-2", record["event_id"])
		assert.Equal(t, "critical-alerts", record["rule_id"])
		assert.Equal(t, float64(2), record["delivered"]) // JSON decodes ints as float64
		assert.Equal(t, float64(3), record["targeted"])
		assert.Equal(t, 12.5, record["duration_ms"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogDelivered(nil, "evt", "rule", 0, 0, 0)
		})
	})
}

func TestLogHopCeiling(t *testing.T) {
	t.Run("logs at WARN level", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		LogHopCeiling(logger, "evt-3", 4, 4)

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "WARN", record["level"])
		assert.Equal(t, "hop ceiling crossed", record["msg"])
		assert.Equal(t, "evt-3", record["event_id"])
		assert.Equal(t, float64(4), record["hop_count"])
		assert.Equal(t, float64(4), record["max_hops"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogHopCeiling(nil, "evt", 1, 1)
		})
	})
}

func TestLogQueueOverflow(t *testing.T) {
	t.Run("logs at WARN level with consumer", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		LogQueueOverflow(logger, "evt-4", "slow-consumer")

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "WARN", record["level"])
		assert.Equal(t, "queue overflow, event dropped", record["msg"])
		assert.Equal(t, "evt-4", record["event_id"])
		assert.Equal(t, "slow-consumer", record["consumer_id"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogQueueOverflow(nil, "evt", "consumer")
		})
	})
}

func TestLogDeliveryError(t *testing.T) {
	t.Run("logs at ERROR level", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)
		testErr := errors.New("handler panic")

		LogDeliveryError(logger, "evt-5", "broken-consumer", testErr)

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "ERROR", record["level"])
		assert.Equal(t, "delivery failed for consumer", record["msg"])
		assert.Equal(t, "evt-5", record["event_id"])
		assert.Equal(t, "broken-consumer", record["consumer_id"])
		assert.Equal(t, "handler panic", record["error"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogDeliveryError(nil, "evt", "consumer", errors.New("err"))
		})
	})
}

func TestLogSweepError(t *testing.T) {
	t.Run("logs at ERROR level", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		LogSweepError(logger, errors.New("registry sweep panic"))

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "ERROR", record["level"])
		assert.Equal(t, "maintenance sweep failed", record["msg"])
		assert.Equal(t, "registry sweep panic", record["error"])
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			LogSweepError(nil, errors.New("err"))
		})
	})
}

func TestTimedOperation(t *testing.T) {
	t.Run("measures duration", func(t *testing.T) {
		done := TimedOperation()
		time.Sleep(10 * time.Millisecond)
		duration := done()

		assert.GreaterOrEqual(t, duration, 10.0)
		assert.Less(t, duration, 100.0)
	})

	t.Run("returns zero for immediate call", func(t *testing.T) {
		done := TimedOperation()
		duration := done()

		assert.Less(t, duration, 1.0)
	})

	t.Run("can be called multiple times", func(t *testing.T) {
		done := TimedOperation()
		time.Sleep(5 * time.Millisecond)
		d1 := done()
		time.Sleep(5 * time.Millisecond)
		d2 := done()

		assert.Greater(t, d2, d1)
	})
}
