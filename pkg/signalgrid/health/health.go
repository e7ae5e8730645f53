// Package health aggregates network-wide health on an independent schedule.
//
// The aggregator runs on its own ticker, reads the registry and router
// counters, and exposes a read-only snapshot. It never blocks the dispatch
// hot path and never crashes the host: a failed pass is logged and the next
// tick runs as usual.
package health

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/signalgrid/signalgrid/pkg/signalgrid/observability"
	"github.com/signalgrid/signalgrid/pkg/signalgrid/router"
)

// Default maintenance intervals.
const (
	DefaultInterval     = 30 * time.Second
	DefaultGuardMaxIdle = 5 * time.Minute
)

// Snapshot is a read-only view of network health.
type Snapshot struct {
	ActiveConsumers     int           `json:"active_consumers"`
	TotalConsumers      int           `json:"total_consumers"`
	AvgLoad             float64       `json:"avg_load"`
	AvgTrust            float64       `json:"avg_trust"`
	AvgQueueUtilization float64       `json:"avg_queue_utilization"`
	LatencyAvg          time.Duration `json:"latency_avg"`
	LatencyP95          time.Duration `json:"latency_p95"`
	FloodBlocked        int64         `json:"flood_blocked"`
	ComputedAt          time.Time     `json:"computed_at"`
}

// Config configures the aggregator.
type Config struct {
	// Interval between health passes. Default: DefaultInterval.
	Interval time.Duration

	// InactivityTimeout and RetentionTimeout drive the registry sweep.
	// Defaults: registry package defaults.
	InactivityTimeout time.Duration
	RetentionTimeout  time.Duration

	// GuardMaxIdle drives lazy flood-window cleanup. Default: DefaultGuardMaxIdle.
	GuardMaxIdle time.Duration

	// Logger receives sweep failures. May be nil.
	Logger *slog.Logger
}

// Aggregator periodically recomputes health and runs the registry sweep.
type Aggregator struct {
	config Config
	router *router.Router

	mu       sync.RWMutex
	snapshot Snapshot

	closeOnce sync.Once
	closeCh   chan struct{}
}

// New creates an aggregator over the router. Call Start to begin the
// periodic schedule, or Compute for a one-shot pass.
func New(config Config, r *router.Router) *Aggregator {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.GuardMaxIdle <= 0 {
		config.GuardMaxIdle = DefaultGuardMaxIdle
	}
	return &Aggregator{
		config:  config,
		router:  r,
		closeCh: make(chan struct{}),
	}
}

// Start launches the periodic schedule. Safe to call once.
func (a *Aggregator) Start() {
	go a.run()
}

// Close stops the periodic schedule.
func (a *Aggregator) Close() {
	a.closeOnce.Do(func() {
		close(a.closeCh)
	})
}

func (a *Aggregator) run() {
	ticker := time.NewTicker(a.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.pass()
		case <-a.closeCh:
			return
		}
	}
}

// pass runs one maintenance cycle: sweep, cleanup, recompute. Internal
// failures are logged and never propagate to the host.
func (a *Aggregator) pass() {
	defer func() {
		if rec := recover(); rec != nil {
			observability.LogSweepError(a.config.Logger, fmt.Errorf("health pass panic: %v", rec))
		}
	}()

	now := time.Now()
	a.router.Registry().Sweep(now, a.config.InactivityTimeout, a.config.RetentionTimeout)
	a.router.Guard().CleanupStale(a.config.GuardMaxIdle)
	a.Compute()
}

// Compute recomputes the snapshot immediately and returns it.
func (a *Aggregator) Compute() Snapshot {
	consumers := a.router.Registry().List()
	stats := a.router.Stats()

	s := Snapshot{
		TotalConsumers: len(consumers),
		LatencyAvg:     stats.LatencyAvg,
		LatencyP95:     stats.LatencyP95,
		FloodBlocked:   a.router.Guard().Blocked(),
		ComputedAt:     time.Now(),
	}

	var load, trust, util float64
	for _, c := range consumers {
		if c.Active() {
			s.ActiveConsumers++
		}
		load += c.Load()
		trust += c.Trust()
		util += c.Queue.Utilization()
	}
	if n := float64(len(consumers)); n > 0 {
		s.AvgLoad = load / n
		s.AvgTrust = trust / n
		s.AvgQueueUtilization = util / n
	}

	a.mu.Lock()
	a.snapshot = s
	a.mu.Unlock()
	return s
}

// Snapshot returns the most recently computed view. It never blocks dispatch
// and is safe for concurrent readers.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshot
}
