// Package filter implements the predicate pipeline attached to routing rules.
//
// A rule carries an ordered list of filter tags; the chain evaluates them in
// declared order and short-circuits on the first denial. Composition is pure
// conjunction. Tags form a closed enumeration mapped to predicate functions
// through a static table, so an unhandled tag is a compile-time visible gap
// rather than a stringly-typed miss.
package filter

import (
	"fmt"

	"github.com/signalgrid/signalgrid/pkg/signalgrid/event"
)

// Tag identifies a built-in filter.
type Tag int

const (
	// TagNull always passes.
	TagNull Tag = iota

	// TagTrustThreshold passes when the event's designated trust scalar is
	// at or above the configured minimum.
	TagTrustThreshold

	// TagPolicyCompliance passes when the mean of the alignment vector meets
	// the configured threshold and the payload carries no violation flags.
	TagPolicyCompliance

	// TagBandPass passes when a named numeric payload feature lies within
	// the configured band.
	TagBandPass

	tagCount // sentinel, keep last
)

var tagNames = [...]string{
	TagNull:             "null",
	TagTrustThreshold:   "trust-threshold",
	TagPolicyCompliance: "policy-compliance",
	TagBandPass:         "band-pass",
}

// String returns the filter tag name.
func (t Tag) String() string {
	if t < 0 || t >= tagCount {
		return fmt.Sprintf("filter(%d)", int(t))
	}
	return tagNames[t]
}

// ParseTag converts a filter name to its tag.
func ParseTag(name string) (Tag, error) {
	for i, n := range tagNames {
		if n == name {
			return Tag(i), nil
		}
	}
	return 0, fmt.Errorf("unknown filter: %q", name)
}

// Config holds the thresholds shared by the built-in filters.
type Config struct {
	// MinTrust is the trust-threshold filter's minimum.
	MinTrust float64

	// ComplianceThreshold is the minimum mean alignment for policy compliance.
	ComplianceThreshold float64

	// BandPassKey names the payload feature inspected by the band-pass filter.
	BandPassKey string

	// BandPassLow and BandPassHigh bound the accepted band, inclusive.
	BandPassLow  float64
	BandPassHigh float64
}

// DefaultConfig provides the standard thresholds.
var DefaultConfig = Config{
	MinTrust:            0.5,
	ComplianceThreshold: 0.7,
	BandPassKey:         "frequency",
	BandPassLow:         1,
	BandPassHigh:        100,
}

// Func is a filter predicate. True means the event passes.
type Func func(evt *event.Event, cfg Config) bool

// table maps every Tag to its predicate. Indexed by tag value; a nil slot
// would be a programming error caught by Chain.Allows.
var table = [tagCount]Func{
	TagNull:             passAll,
	TagTrustThreshold:   trustThreshold,
	TagPolicyCompliance: policyCompliance,
	TagBandPass:         bandPass,
}

func passAll(*event.Event, Config) bool { return true }

func trustThreshold(evt *event.Event, cfg Config) bool {
	return evt.TrustScalar() >= cfg.MinTrust
}

func policyCompliance(evt *event.Event, cfg Config) bool {
	if len(evt.Alignment) == 0 {
		return false
	}
	var sum float64
	for _, v := range evt.Alignment {
		sum += v
	}
	if sum/float64(len(evt.Alignment)) < cfg.ComplianceThreshold {
		return false
	}
	return !hasViolationFlags(evt.Payload)
}

func hasViolationFlags(payload map[string]any) bool {
	v, ok := payload["violations"]
	if !ok {
		return false
	}
	switch flags := v.(type) {
	case nil:
		return false
	case bool:
		return flags
	case []string:
		return len(flags) > 0
	case []any:
		return len(flags) > 0
	default:
		// Unrecognized shape counts as a flag; compliance is opt-in.
		return true
	}
}

func bandPass(evt *event.Event, cfg Config) bool {
	raw, ok := evt.Payload[cfg.BandPassKey]
	if !ok {
		return false
	}
	val, ok := asFloat(raw)
	if !ok {
		return false
	}
	return val >= cfg.BandPassLow && val <= cfg.BandPassHigh
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

// Chain evaluates an ordered filter list against events.
type Chain struct {
	cfg Config
}

// NewChain creates a chain with the given thresholds.
func NewChain(cfg Config) Chain {
	return Chain{cfg: cfg}
}

// Allows evaluates tags in order and returns false on the first denial,
// along with the denying tag. An out-of-range tag denies.
func (c Chain) Allows(evt *event.Event, tags []Tag) (bool, Tag) {
	for _, t := range tags {
		if t < 0 || t >= tagCount || table[t] == nil {
			return false, t
		}
		if !table[t](evt, c.cfg) {
			return false, t
		}
	}
	return true, TagNull
}
