// Package event defines the routable event model for signalgrid.
//
// An Event is the unit of work flowing through the router: a category from a
// closed enumeration, an origin identity, an urgency score, TTL and hop
// metadata, and an opaque payload passed through unmodified. Events are
// created by producers and mutated only by the router (hop increment); they
// are never persisted.
package event

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// DefaultFloodPreventionFloor is the minimum flood-prevention strength an
// event must carry to be considered well-formed.
const DefaultFloodPreventionFloor = 0.99

// Event is a routable unit. Payload is opaque to the router; Alignment is an
// optional vector of producer-owned scores, each in [0,1]. HopCount is
// mutated only by the router, exactly once per dispatch.
type Event struct {
	ID              string         `json:"id"`
	Category        Category       `json:"category"`
	Origin          string         `json:"origin"`
	Producer        string         `json:"producer"`
	Urgency         float64        `json:"urgency"`
	Alignment       []float64      `json:"alignment,omitempty"`
	Payload         map[string]any `json:"payload,omitempty"`
	HopCount        int            `json:"hop_count"`
	TTL             time.Duration  `json:"ttl"`
	CreatedAt       time.Time      `json:"created_at"`
	TargetHints     []string       `json:"target_hints,omitempty"`
	FloodPrevention float64        `json:"flood_prevention"`
}

// Option configures event creation.
type Option func(*Event)

// WithEventID sets a specific event ID (default: auto-generated UUID).
func WithEventID(id string) Option {
	return func(e *Event) {
		e.ID = id
	}
}

// WithUrgency sets the urgency score.
func WithUrgency(u float64) Option {
	return func(e *Event) {
		e.Urgency = u
	}
}

// WithAlignment attaches the alignment vector.
func WithAlignment(v []float64) Option {
	return func(e *Event) {
		e.Alignment = v
	}
}

// WithPayload attaches the opaque payload map.
func WithPayload(p map[string]any) Option {
	return func(e *Event) {
		e.Payload = p
	}
}

// WithTTL sets the event time-to-live.
func WithTTL(d time.Duration) Option {
	return func(e *Event) {
		e.TTL = d
	}
}

// WithCreatedAt sets a specific creation timestamp (default: time.Now()).
func WithCreatedAt(t time.Time) Option {
	return func(e *Event) {
		e.CreatedAt = t
	}
}

// WithTargetHints sets the target-component hints.
func WithTargetHints(hints ...string) Option {
	return func(e *Event) {
		e.TargetHints = hints
	}
}

// WithFloodPrevention sets the flood-prevention strength.
func WithFloodPrevention(s float64) Option {
	return func(e *Event) {
		e.FloodPrevention = s
	}
}

// New creates an event with the given category, origin identity, and producer
// component name. Urgency defaults to 0.5 and flood-prevention strength to
// the configured floor; hop count starts at 0.
func New(category Category, origin, producer string, opts ...Option) *Event {
	e := &Event{
		ID:              uuid.New().String(),
		Category:        category,
		Origin:          origin,
		Producer:        producer,
		Urgency:         0.5,
		CreatedAt:       time.Now(),
		FloodPrevention: DefaultFloodPreventionFloor,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Clone returns a deep copy of the event. Delivery enqueues a copy per
// consumer so that independent drains never share mutable state.
func (e *Event) Clone() *Event {
	c := *e
	c.Alignment = slices.Clone(e.Alignment)
	c.TargetHints = slices.Clone(e.TargetHints)
	if e.Payload != nil {
		c.Payload = maps.Clone(e.Payload)
	}
	return &c
}

// Age returns how long ago the event was created.
func (e *Event) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}

// TrustScalar returns the designated trust value for filtering and fan-out:
// the first alignment component when the vector is present, else a fallback
// derived from urgency.
func (e *Event) TrustScalar() float64 {
	if len(e.Alignment) > 0 {
		return e.Alignment[0]
	}
	return min(1.0, e.Urgency*0.9+0.1)
}
