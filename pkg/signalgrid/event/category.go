package event

import "fmt"

// Category is the closed enumeration of event categories. Rule-set validation
// requires that every member is covered by at least one routing rule.
type Category int

const (
	CategoryAlert Category = iota
	CategoryTelemetry
	CategoryTask
	CategoryCoordination
	CategoryGovernance
	CategoryAudit

	categoryCount // sentinel, keep last
)

var categoryNames = [...]string{
	CategoryAlert:        "alert",
	CategoryTelemetry:    "telemetry",
	CategoryTask:         "task",
	CategoryCoordination: "coordination",
	CategoryGovernance:   "governance",
	CategoryAudit:        "audit",
}

// String returns the category name.
func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("category(%d)", int(c))
	}
	return categoryNames[c]
}

// Valid reports whether c is a member of the closed enumeration.
func (c Category) Valid() bool {
	return c >= 0 && c < categoryCount
}

// Categories returns every member of the enumeration, in declaration order.
func Categories() []Category {
	out := make([]Category, categoryCount)
	for i := range out {
		out[i] = Category(i)
	}
	return out
}

// ParseCategory converts a category name to its enum value.
func ParseCategory(name string) (Category, error) {
	for i, n := range categoryNames {
		if n == name {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("unknown category: %q", name)
}
