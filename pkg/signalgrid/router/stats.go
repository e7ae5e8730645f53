package router

import (
	"sync/atomic"
	"time"
)

// DispatchStats is a point-in-time snapshot of router counters.
type DispatchStats struct {
	Processed      int64         `json:"processed"`
	FloodBlocked   int64         `json:"flood_blocked"`
	QueueOverflows int64         `json:"queue_overflows"`
	Filtered       int64         `json:"filtered"`
	NoRule         int64         `json:"no_rule"`
	Expired        int64         `json:"expired"`
	LatencyAvg     time.Duration `json:"latency_avg"`
	LatencyP95     time.Duration `json:"latency_p95"`
}

// counters aggregates dispatch-path counts. All fields are atomics so the
// hot path never takes a lock to account an outcome.
type counters struct {
	processed      atomic.Int64
	floodBlocked   atomic.Int64
	queueOverflows atomic.Int64
	filtered       atomic.Int64
	noRule         atomic.Int64
	expired        atomic.Int64
}

func (c *counters) snapshot() DispatchStats {
	return DispatchStats{
		Processed:      c.processed.Load(),
		FloodBlocked:   c.floodBlocked.Load(),
		QueueOverflows: c.queueOverflows.Load(),
		Filtered:       c.filtered.Load(),
		NoRule:         c.noRule.Load(),
		Expired:        c.expired.Load(),
	}
}
