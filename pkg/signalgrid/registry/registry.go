// Package registry tracks consumers and their bounded delivery queues.
//
// Membership changes are serialized by a single coarse lock; each consumer's
// queue carries its own lock. Consumers are never destroyed: the periodic
// sweep only flips the active flag, leaving inactive consumers addressable
// but invisible to strategies that filter on activity.
package registry

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/signalgrid/signalgrid/pkg/signalgrid/event"
)

// DefaultQueueCapacity bounds each consumer's delivery queue.
const DefaultQueueCapacity = 32

// Default maintenance timeouts.
const (
	DefaultInactivityTimeout = 5 * time.Minute
	DefaultRetentionTimeout  = 10 * time.Minute
)

// Handler processes a drained event. Handlers are opaque to the router; it
// never invokes them. Consumers attach them per category and drain their own
// queue on their own schedule.
type Handler func(evt *event.Event) error

// Consumer is a registered sink with a bounded queue. Gauges and activity
// state are guarded by the consumer's own mutex; the queue locks itself.
type Consumer struct {
	ID           string
	Component    string
	Capabilities []string
	Queue        *Queue

	mu         sync.Mutex
	handlers   map[event.Category]Handler
	load       float64
	trust      float64
	lastActive time.Time
	active     bool
}

// SetHandler attaches a handler for a category. The router never calls it.
func (c *Consumer) SetHandler(cat event.Category, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handlers == nil {
		c.handlers = make(map[event.Category]Handler)
	}
	c.handlers[cat] = h
}

// Handler returns the handler attached for a category, if any.
func (c *Consumer) Handler(cat event.Category) (Handler, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.handlers[cat]
	return h, ok
}

// Load returns the processing-load gauge.
func (c *Consumer) Load() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load
}

// SetLoad updates the processing-load gauge, clamped to [0,1].
func (c *Consumer) SetLoad(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.load = clamp01(v)
}

// Trust returns the trust gauge.
func (c *Consumer) Trust() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trust
}

// SetTrust updates the trust gauge, clamped to [0,1].
func (c *Consumer) SetTrust(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trust = clamp01(v)
}

// Active reports whether the consumer is currently active.
func (c *Consumer) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// LastActive returns the last delivery or registration time.
func (c *Consumer) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

// Touch bumps the activity timestamp and reactivates the consumer. Called by
// the router on successful enqueue.
func (c *Consumer) Touch(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActive = now
	c.active = true
}

// HasCapability reports whether the consumer advertises the given tag.
func (c *Consumer) HasCapability(tag string) bool {
	for _, cap := range c.Capabilities {
		if cap == tag {
			return true
		}
	}
	return false
}

func (c *Consumer) markInactive() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = false
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}

// Config configures the registry.
type Config struct {
	// QueueCapacity is the per-consumer queue bound.
	// Default: DefaultQueueCapacity.
	QueueCapacity int

	// Logger receives registration mismatch warnings. May be nil.
	Logger *slog.Logger
}

// Registry is the consumer membership table.
type Registry struct {
	config Config

	mu        sync.RWMutex
	consumers map[string]*Consumer
	order     []*Consumer // registration order, for deterministic iteration
}

// New creates an empty registry.
func New(config Config) *Registry {
	if config.QueueCapacity <= 0 {
		config.QueueCapacity = DefaultQueueCapacity
	}
	return &Registry{
		config:    config,
		consumers: make(map[string]*Consumer),
	}
}

// Register creates or returns a consumer. Re-registering the same id with the
// same component name returns the existing consumer with its queue intact;
// a different component name logs a mismatch and keeps the original.
func (r *Registry) Register(id, component string, capabilities []string) *Consumer {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.consumers[id]; ok {
		if existing.Component != component && r.config.Logger != nil {
			r.config.Logger.Warn("consumer re-registered with different component",
				slog.String("consumer_id", id),
				slog.String("registered_component", existing.Component),
				slog.String("requested_component", component),
			)
		}
		return existing
	}

	c := &Consumer{
		ID:           id,
		Component:    component,
		Capabilities: slices.Clone(capabilities),
		Queue:        NewQueue(r.config.QueueCapacity),
		lastActive:   time.Now(),
		active:       true,
	}
	r.consumers[id] = c
	r.order = append(r.order, c)
	return c
}

// Get returns a consumer by id.
func (r *Registry) Get(id string) (*Consumer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.consumers[id]
	return c, ok
}

// List returns all consumers in registration order.
func (r *Registry) List() []*Consumer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Consumer(nil), r.order...)
}

// ListActive returns consumers whose active flag is set, in registration order.
func (r *Registry) ListActive() []*Consumer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Consumer
	for _, c := range r.order {
		if c.Active() {
			out = append(out, c)
		}
	}
	return out
}

// Len returns the number of registered consumers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.consumers)
}

// Sweep marks consumers inactive after the inactivity timeout and prunes
// stale entries from queue fronts past the retention timeout. It snapshots
// membership first so per-consumer work never holds the registry lock.
func (r *Registry) Sweep(now time.Time, inactivity, retention time.Duration) {
	if inactivity <= 0 {
		inactivity = DefaultInactivityTimeout
	}
	if retention <= 0 {
		retention = DefaultRetentionTimeout
	}

	for _, c := range r.List() {
		if c.Active() && now.Sub(c.LastActive()) > inactivity {
			c.markInactive()
		}
		c.Queue.PruneOlderThan(now.Add(-retention))
	}
}
