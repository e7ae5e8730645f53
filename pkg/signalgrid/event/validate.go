package event

import (
	"fmt"
	"math"
)

// ValidationError names the first constraint an event violates. It is the
// only dispatch-path condition surfaced as a Go error; routing rejections
// (no rule, filtered, flood-blocked) are communicated through return values
// and counters instead.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid event: %s: %s", e.Field, e.Message)
}

// Validate checks structural well-formedness. Constraints are checked in a
// fixed order (identity, category, numeric ranges) and the first violation
// wins. floor is the minimum accepted flood-prevention strength; pass
// DefaultFloodPreventionFloor unless configured otherwise.
func Validate(e *Event, floor float64) error {
	if e.Origin == "" {
		return &ValidationError{Field: "origin", Message: "origin identity is required"}
	}
	if e.Producer == "" {
		return &ValidationError{Field: "producer", Message: "producer component name is required"}
	}
	if !e.Category.Valid() {
		return &ValidationError{Field: "category", Message: fmt.Sprintf("not a member of the closed set: %d", int(e.Category))}
	}
	if math.IsNaN(e.Urgency) || e.Urgency < 0 || e.Urgency > 1 {
		return &ValidationError{Field: "urgency", Message: fmt.Sprintf("must be in [0,1], got %v", e.Urgency)}
	}
	if math.IsNaN(e.FloodPrevention) || e.FloodPrevention < floor || e.FloodPrevention > 1 {
		return &ValidationError{Field: "flood_prevention", Message: fmt.Sprintf("must be in [%v,1], got %v", floor, e.FloodPrevention)}
	}
	for i, v := range e.Alignment {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return &ValidationError{Field: "alignment", Message: fmt.Sprintf("component %d must be in [0,1], got %v", i, v)}
		}
	}
	return nil
}
