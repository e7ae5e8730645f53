// Package router orchestrates the dispatch pipeline: validate, match the
// highest-priority rule, run the filter chain, consult the flood guard,
// fan out, and enqueue into consumer queues.
//
// Every per-event outcome is non-fatal and reported through the Dispatch
// return value plus counters and logs. The only fatal condition in the
// engine is an invalid rule set at construction time.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/signalgrid/signalgrid/pkg/signalgrid/event"
	"github.com/signalgrid/signalgrid/pkg/signalgrid/fanout"
	"github.com/signalgrid/signalgrid/pkg/signalgrid/filter"
	"github.com/signalgrid/signalgrid/pkg/signalgrid/floodguard"
	"github.com/signalgrid/signalgrid/pkg/signalgrid/observability"
	"github.com/signalgrid/signalgrid/pkg/signalgrid/registry"
	"github.com/signalgrid/signalgrid/pkg/signalgrid/rule"
)

// Dispatch outcomes, recorded on metrics and trace spans.
const (
	OutcomeDelivered   = "delivered"
	OutcomePartial     = "delivered_partial"
	OutcomeNoTargets   = "no_targets"
	OutcomeInvalid     = "invalid"
	OutcomeNoRule      = "no_rule"
	OutcomeFiltered    = "filtered"
	OutcomeFloodQueued = "flood_blocked"
)

// Config configures the router.
type Config struct {
	// FloodFloor is the minimum accepted flood-prevention strength.
	// Default: event.DefaultFloodPreventionFloor.
	FloodFloor float64

	// HistoryCapacity bounds the routing history ring.
	// Default: DefaultHistoryCapacity.
	HistoryCapacity int

	// LatencyWindow is the rolling latency sample count.
	// Default: DefaultLatencyWindow.
	LatencyWindow int

	// Filters configures the built-in filter thresholds.
	Filters filter.Config

	// Fanout configures the built-in strategy thresholds.
	Fanout fanout.Config

	// Logger receives routing logs. May be nil.
	Logger *slog.Logger

	// Metrics records dispatch metrics. Default: NoopMetrics.
	Metrics observability.MetricsRecorder

	// Spans traces dispatch calls. Default: NoopSpanManager.
	Spans observability.SpanManager
}

// Router is the dispatch orchestrator. Construct one instance at process
// start and hand it to producers and consumers; there is no ambient global.
type Router struct {
	config   Config
	rules    *rule.Set
	registry *registry.Registry
	guard    *floodguard.Guard
	selector *fanout.Selector
	chain    filter.Chain
	history  *History
	latency  *latencyWindow
	counts   counters
}

// New creates a router over the given rule set, registry, and flood guard.
// The rule set is validated here: missing category coverage or a missing or
// duplicate fallback rule is an error, and the host must treat it as fatal.
func New(config Config, rules *rule.Set, reg *registry.Registry, guard *floodguard.Guard) (*Router, error) {
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("rule set validation: %w", err)
	}
	if config.FloodFloor <= 0 {
		config.FloodFloor = event.DefaultFloodPreventionFloor
	}
	if config.Filters == (filter.Config{}) {
		config.Filters = filter.DefaultConfig
	}
	if config.Fanout == (fanout.Config{}) {
		config.Fanout = fanout.DefaultConfig
	}
	if config.Fanout.Logger == nil {
		config.Fanout.Logger = config.Logger
	}
	if config.Metrics == nil {
		config.Metrics = observability.NoopMetrics{}
	}
	if config.Spans == nil {
		config.Spans = observability.NoopSpanManager{}
	}

	return &Router{
		config:   config,
		rules:    rules,
		registry: reg,
		guard:    guard,
		selector: fanout.NewSelector(config.Fanout, reg),
		chain:    filter.NewChain(config.Filters),
		history:  NewHistory(config.HistoryCapacity),
		latency:  newLatencyWindow(config.LatencyWindow),
	}, nil
}

// RegisterConsumer registers a consumer sink. Idempotent; see registry.Register.
func (r *Router) RegisterConsumer(id, component string, capabilities []string) *registry.Consumer {
	return r.registry.Register(id, component, capabilities)
}

// Registry exposes the consumer registry for maintenance and health readers.
func (r *Router) Registry() *registry.Registry {
	return r.registry
}

// Guard exposes the flood guard for maintenance and health readers.
func (r *Router) Guard() *floodguard.Guard {
	return r.guard
}

// History exposes the routing history ring.
func (r *Router) History() *History {
	return r.history
}

// Dispatch routes one event and returns the ids of consumers that actually
// received it. The call is synchronous, bounded, and never blocks on a
// consumer: delivery is enqueue-only and a full queue is a drop. A nil or
// malformed event returns an empty list and a ValidationError; every other
// rejection is reported through counters and logs only.
func (r *Router) Dispatch(ctx context.Context, evt *event.Event) ([]string, error) {
	if evt == nil {
		return nil, &event.ValidationError{Field: "event", Message: "event is nil"}
	}
	if err := event.Validate(evt, r.config.FloodFloor); err != nil {
		r.config.Metrics.RecordDispatch(ctx, evt.Category.String(), OutcomeInvalid, 0)
		observability.LogDispatchRejected(r.config.Logger, evt.ID, OutcomeInvalid, err.Error())
		return nil, err
	}

	ctx, span := r.config.Spans.StartDispatchSpan(ctx, evt.ID, evt.Category.String())
	start := time.Now()
	outcome, delivered := r.route(ctx, evt, start)

	elapsed := time.Since(start)
	r.latency.add(elapsed)
	r.counts.processed.Add(1)
	r.config.Metrics.RecordDispatch(ctx, evt.Category.String(), outcome, elapsed)
	r.config.Spans.EndSpanWithOutcome(span, outcome, len(delivered))

	return delivered, nil
}

// route runs the post-validation pipeline and returns the outcome tag plus
// the delivered consumer ids.
func (r *Router) route(ctx context.Context, evt *event.Event, start time.Time) (string, []string) {
	candidates := r.rules.Match(evt)
	if len(candidates) == 0 {
		r.counts.noRule.Add(1)
		observability.LogDispatchRejected(r.config.Logger, evt.ID, OutcomeNoRule, evt.Producer)
		return OutcomeNoRule, nil
	}

	// Highest priority wins; strict comparison keeps the first-registered
	// rule on ties.
	matched := candidates[0]
	for _, c := range candidates[1:] {
		if c.Priority > matched.Priority {
			matched = c
		}
	}

	if ok, denied := r.chain.Allows(evt, matched.Filters); !ok {
		r.counts.filtered.Add(1)
		observability.LogDispatchRejected(r.config.Logger, evt.ID, OutcomeFiltered, denied.String())
		return OutcomeFiltered, nil
	}

	if !r.guard.Check(evt.Origin, evt.Category, matched.FloodMultiplier) {
		r.counts.floodBlocked.Add(1)
		r.config.Metrics.RecordFloodBlock(ctx, evt.Origin, evt.Category.String())
		observability.LogDispatchRejected(r.config.Logger, evt.ID, OutcomeFloodQueued, evt.Origin)
		return OutcomeFloodQueued, nil
	}

	targets := r.selector.Select(matched.Strategy, evt, matched.TargetHints)

	// Hop count advances exactly once per dispatch call, regardless of
	// fan-out size. Crossing the ceiling is a soft condition: one warning,
	// delivery proceeds.
	evt.HopCount++
	if evt.HopCount >= matched.MaxHops {
		observability.LogHopCeiling(r.config.Logger, evt.ID, evt.HopCount, matched.MaxHops)
	}

	delivered := r.deliver(ctx, evt, matched, targets)

	r.history.Append(HistoryEntry{
		EventID:    evt.ID,
		Category:   evt.Category,
		Origin:     evt.Origin,
		Delivered:  delivered,
		RuleID:     matched.ID,
		HopCount:   evt.HopCount,
		RecordedAt: start,
	})

	if len(delivered) > 0 {
		r.config.Metrics.RecordDelivery(ctx, evt.Category.String(), len(delivered))
	}

	switch {
	case len(targets) == 0:
		return OutcomeNoTargets, delivered
	case len(delivered) == len(targets):
		return OutcomeDelivered, delivered
	default:
		return OutcomePartial, delivered
	}
}

// deliver enqueues a copy of the event into each target's queue. A failure
// for one consumer never aborts delivery to the rest.
func (r *Router) deliver(ctx context.Context, evt *event.Event, matched *rule.Rule, targets []string) []string {
	now := time.Now()
	var delivered []string

	for _, id := range targets {
		if r.deliverOne(ctx, evt, matched, id, now) {
			delivered = append(delivered, id)
		}
	}
	return delivered
}

func (r *Router) deliverOne(ctx context.Context, evt *event.Event, matched *rule.Rule, id string, now time.Time) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			observability.LogDeliveryError(r.config.Logger, evt.ID, id,
				fmt.Errorf("panic during delivery: %v", rec))
			ok = false
		}
	}()

	c, found := r.registry.Get(id)
	if !found || !c.Active() {
		return false
	}

	if c.Queue.Len() >= c.Queue.Cap() {
		r.counts.queueOverflows.Add(1)
		r.config.Metrics.RecordQueueOverflow(ctx, id)
		observability.LogQueueOverflow(r.config.Logger, evt.ID, id)
		return false
	}

	// Staleness is judged at delivery time, not dispatch time.
	if evt.Age(now) > matched.TTL {
		r.counts.expired.Add(1)
		return false
	}

	if !c.Queue.Push(evt.Clone()) {
		// Filled between the depth check and the push.
		r.counts.queueOverflows.Add(1)
		r.config.Metrics.RecordQueueOverflow(ctx, id)
		observability.LogQueueOverflow(r.config.Logger, evt.ID, id)
		return false
	}

	c.Touch(now)
	return true
}

// Stats returns a snapshot of dispatch counters and latency figures.
func (r *Router) Stats() DispatchStats {
	s := r.counts.snapshot()
	s.LatencyAvg, s.LatencyP95 = r.latency.stats()
	return s
}
