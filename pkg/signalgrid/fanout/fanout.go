// Package fanout selects which consumers receive a routed event.
//
// Strategies form a closed enumeration mapped to selection functions through
// a static table. Every strategy reads the registry's active set; an unknown
// tag yields an empty target list and a warning rather than an error, since
// target selection is a routing outcome.
package fanout

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/signalgrid/signalgrid/pkg/signalgrid/event"
	"github.com/signalgrid/signalgrid/pkg/signalgrid/registry"
)

// Strategy identifies a fan-out algorithm.
type Strategy int

const (
	// Broadcast targets every active consumer.
	Broadcast Strategy = iota

	// Targeted targets active consumers whose component matches a rule hint.
	Targeted

	// LoadPriority targets the least-loaded, most-trusted slice of the
	// active set, sized by event urgency.
	LoadPriority

	// TrustThreshold targets active consumers above a trust floor.
	TrustThreshold

	// Adaptive unions the rule's core targets with capability subsets gated
	// by optional event payload fields.
	Adaptive

	// FloodSafe targets a deliberately small, low-load, high-trust subset
	// used while containing a cascade.
	FloodSafe

	strategyCount // sentinel, keep last
)

var strategyNames = [...]string{
	Broadcast:      "broadcast",
	Targeted:       "targeted",
	LoadPriority:   "load-priority",
	TrustThreshold: "trust-threshold",
	Adaptive:       "adaptive",
	FloodSafe:      "flood-safe",
}

// String returns the strategy name.
func (s Strategy) String() string {
	if s < 0 || s >= strategyCount {
		return fmt.Sprintf("strategy(%d)", int(s))
	}
	return strategyNames[s]
}

// ParseStrategy converts a strategy name to its enum value.
func ParseStrategy(name string) (Strategy, error) {
	for i, n := range strategyNames {
		if n == name {
			return Strategy(i), nil
		}
	}
	return 0, fmt.Errorf("unknown strategy: %q", name)
}

// Config holds the thresholds shared by the built-in strategies.
type Config struct {
	// TrustFloor is the minimum trust for the trust-threshold strategy.
	// The event's own trust scalar raises the bar when higher.
	TrustFloor float64

	// AdaptiveLoadCeiling excludes loaded consumers from adaptive selection.
	AdaptiveLoadCeiling float64

	// AdaptiveDepthCutoff gates the deep-capability subset on the payload
	// depth field.
	AdaptiveDepthCutoff float64

	// FloodSafeMaxLoad, FloodSafeMinTrust, and FloodSafeMaxUtilization bound
	// the flood-safe subset; FloodSafeCap caps its size.
	FloodSafeMaxLoad        float64
	FloodSafeMinTrust       float64
	FloodSafeMaxUtilization float64
	FloodSafeCap            int

	// Logger receives unknown-strategy warnings. May be nil.
	Logger *slog.Logger
}

// DefaultConfig provides the standard thresholds.
var DefaultConfig = Config{
	TrustFloor:              0.8,
	AdaptiveLoadCeiling:     0.8,
	AdaptiveDepthCutoff:     3,
	FloodSafeMaxLoad:        0.5,
	FloodSafeMinTrust:       0.85,
	FloodSafeMaxUtilization: 0.3,
	FloodSafeCap:            3,
}

// Payload fields and capability tags read by the adaptive strategy.
const (
	SecondaryFeaturesKey = "secondary_features"
	DepthKey             = "depth"
	CapabilitySecondary  = "secondary"
	CapabilityDeep       = "deep"
)

// Func selects target consumer IDs for an event. hints are the matched
// rule's target-component hints.
type Func func(sel *Selector, evt *event.Event, hints []string) []string

var table = [strategyCount]Func{
	Broadcast:      broadcast,
	Targeted:       targeted,
	LoadPriority:   loadPriority,
	TrustThreshold: trustThreshold,
	Adaptive:       adaptive,
	FloodSafe:      floodSafe,
}

// Selector resolves strategies against a registry.
type Selector struct {
	config   Config
	registry *registry.Registry
}

// NewSelector creates a selector over the given registry.
func NewSelector(config Config, reg *registry.Registry) *Selector {
	if config.FloodSafeCap <= 0 {
		config.FloodSafeCap = DefaultConfig.FloodSafeCap
	}
	if config.TrustFloor <= 0 {
		config.TrustFloor = DefaultConfig.TrustFloor
	}
	return &Selector{config: config, registry: reg}
}

// Select returns the consumer IDs chosen by the strategy. An out-of-range
// strategy yields an empty list and a warning.
func (s *Selector) Select(strategy Strategy, evt *event.Event, hints []string) []string {
	if strategy < 0 || strategy >= strategyCount || table[strategy] == nil {
		if s.config.Logger != nil {
			s.config.Logger.Warn("unknown fan-out strategy",
				slog.Int("strategy", int(strategy)),
				slog.String("event_id", evt.ID),
			)
		}
		return nil
	}
	return table[strategy](s, evt, hints)
}

func broadcast(s *Selector, _ *event.Event, _ []string) []string {
	return ids(s.registry.ListActive())
}

func targeted(s *Selector, _ *event.Event, hints []string) []string {
	var out []string
	for _, c := range s.registry.ListActive() {
		if matchesHint(c.Component, hints) {
			out = append(out, c.ID)
		}
	}
	return out
}

func loadPriority(s *Selector, evt *event.Event, _ []string) []string {
	active := s.registry.ListActive()
	if len(active) == 0 {
		return nil
	}

	sort.SliceStable(active, func(i, j int) bool {
		li, lj := active[i].Load(), active[j].Load()
		if li != lj {
			return li < lj
		}
		return active[i].Trust() > active[j].Trust()
	})

	n := int(math.Ceil(evt.Urgency * float64(len(active))))
	if n > len(active) {
		n = len(active)
	}
	return ids(active[:n])
}

func trustThreshold(s *Selector, evt *event.Event, _ []string) []string {
	floor := max(s.config.TrustFloor, evt.TrustScalar())
	var out []string
	for _, c := range s.registry.ListActive() {
		if c.Trust() >= floor {
			out = append(out, c.ID)
		}
	}
	return out
}

func adaptive(s *Selector, evt *event.Event, hints []string) []string {
	_, hasSecondary := evt.Payload[SecondaryFeaturesKey]
	deep := false
	if raw, ok := evt.Payload[DepthKey]; ok {
		if depth, ok := asFloat(raw); ok {
			deep = depth > s.config.AdaptiveDepthCutoff
		}
	}

	// Core targets come from the rule's hints plus any hints carried on the
	// event itself.
	core := append(append([]string(nil), hints...), evt.TargetHints...)

	seen := make(map[string]bool)
	var out []string
	for _, c := range s.registry.ListActive() {
		if seen[c.ID] || c.Load() >= s.config.AdaptiveLoadCeiling {
			continue
		}
		isCore := matchesHint(c.Component, core)
		secondary := hasSecondary && c.HasCapability(CapabilitySecondary)
		deeper := deep && c.HasCapability(CapabilityDeep)
		if isCore || secondary || deeper {
			seen[c.ID] = true
			out = append(out, c.ID)
		}
	}
	return out
}

func floodSafe(s *Selector, _ *event.Event, _ []string) []string {
	var out []string
	for _, c := range s.registry.ListActive() {
		if len(out) >= s.config.FloodSafeCap {
			break
		}
		if c.Load() < s.config.FloodSafeMaxLoad &&
			c.Trust() > s.config.FloodSafeMinTrust &&
			c.Queue.Utilization() < s.config.FloodSafeMaxUtilization {
			out = append(out, c.ID)
		}
	}
	return out
}

func ids(consumers []*registry.Consumer) []string {
	out := make([]string, 0, len(consumers))
	for _, c := range consumers {
		out = append(out, c.ID)
	}
	return out
}

func matchesHint(component string, hints []string) bool {
	for _, h := range hints {
		if h == component {
			return true
		}
	}
	return false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
