// Package floodguard rate-limits runaway producers.
//
// The guard keys a capped sliding time window on (origin, category). Each
// admit attempt is recorded; when the count inside the trailing window
// exceeds the rule-scaled limit the attempt is reported as blocked, never as
// an error. Memory per key is bounded by the sample cap regardless of
// traffic, and idle keys are removed lazily.
package floodguard

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/signalgrid/signalgrid/pkg/signalgrid/event"
)

// Defaults for the sliding window.
const (
	DefaultWindow    = 60 * time.Second
	DefaultBaseRate  = 10
	DefaultSampleCap = 100
)

// Config configures the guard.
type Config struct {
	// Window is the trailing time horizon. Default: DefaultWindow.
	Window time.Duration

	// BaseRate is the admits allowed per window before scaling by the
	// rule multiplier. Default: DefaultBaseRate.
	BaseRate int

	// SampleCap bounds stored timestamps per key. Default: DefaultSampleCap.
	SampleCap int

	// Now overrides the clock, for tests. Default: time.Now.
	Now func() time.Time
}

// DefaultConfig provides the standard window parameters.
var DefaultConfig = Config{
	Window:    DefaultWindow,
	BaseRate:  DefaultBaseRate,
	SampleCap: DefaultSampleCap,
}

type key struct {
	origin   string
	category event.Category
}

type window struct {
	mu      sync.Mutex
	samples []time.Time // admit timestamps, oldest first
	last    time.Time
}

// Guard is the per-(origin, category) sliding-window limiter.
type Guard struct {
	config  Config
	blocked atomic.Int64

	mu      sync.RWMutex
	windows map[key]*window
}

// New creates a guard.
func New(config Config) *Guard {
	if config.Window <= 0 {
		config.Window = DefaultWindow
	}
	if config.BaseRate <= 0 {
		config.BaseRate = DefaultBaseRate
	}
	if config.SampleCap <= 0 {
		config.SampleCap = DefaultSampleCap
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Guard{
		config:  config,
		windows: make(map[key]*window),
	}
}

// Check records an admit attempt for the event's (origin, category) pair and
// reports whether it is within the dynamic limit. multiplier scales the base
// rate per the matched rule. A false return is a flood block, counted
// globally; it is a routing outcome, not an error.
func (g *Guard) Check(origin string, category event.Category, multiplier float64) bool {
	if multiplier <= 0 {
		multiplier = 1
	}
	now := g.config.Now()
	w := g.window(key{origin: origin, category: category})

	w.mu.Lock()
	defer w.mu.Unlock()

	w.samples = append(w.samples, now)
	w.last = now
	if len(w.samples) > g.config.SampleCap {
		w.samples = w.samples[len(w.samples)-g.config.SampleCap:]
	}

	cutoff := now.Add(-g.config.Window)
	count := 0
	for _, ts := range w.samples {
		if ts.After(cutoff) {
			count++
		}
	}

	limit := float64(g.config.BaseRate) * multiplier
	if float64(count) > limit {
		g.blocked.Add(1)
		return false
	}
	return true
}

func (g *Guard) window(k key) *window {
	g.mu.RLock()
	w, ok := g.windows[k]
	g.mu.RUnlock()
	if ok {
		return w
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if w, ok := g.windows[k]; ok {
		return w
	}
	w = &window{}
	g.windows[k] = w
	return w
}

// Blocked returns the cumulative flood-block count.
func (g *Guard) Blocked() int64 {
	return g.blocked.Load()
}

// Keys returns the number of tracked (origin, category) pairs.
func (g *Guard) Keys() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.windows)
}

// CleanupStale removes windows with no admit attempts within maxIdle.
// Intended for the periodic maintenance tick.
func (g *Guard) CleanupStale(maxIdle time.Duration) int {
	cutoff := g.config.Now().Add(-maxIdle)

	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for k, w := range g.windows {
		w.mu.Lock()
		idle := w.last.Before(cutoff)
		w.mu.Unlock()
		if idle {
			delete(g.windows, k)
			removed++
		}
	}
	return removed
}
