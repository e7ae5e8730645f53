// Package rule defines routing rules and the registration-ordered rule set.
//
// A rule maps event categories and origin producers to a fan-out strategy, a
// filter chain, and flood/TTL/hop bounds. Rules are immutable after
// registration; changing one means removing and re-adding it. The set is
// validated once at startup: the union of rule categories must cover the
// whole category enumeration and exactly one fallback rule must exist.
package rule

import (
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/signalgrid/signalgrid/pkg/signalgrid/event"
	"github.com/signalgrid/signalgrid/pkg/signalgrid/fanout"
	"github.com/signalgrid/signalgrid/pkg/signalgrid/filter"
)

// Rule is a single routing rule. Higher Priority wins; ties break by
// registration order.
type Rule struct {
	ID              string
	SourcePattern   string // glob matched against the producer name; "*" matches all
	Categories      []event.Category
	TargetHints     []string
	Priority        int
	Filters         []filter.Tag
	Strategy        fanout.Strategy
	MaxHops         int
	TTL             time.Duration
	FloodMultiplier float64
}

// AppliesTo reports whether the rule matches the event's category and
// producer name. Pattern semantics are path.Match globs; a malformed
// pattern never matches.
func (r *Rule) AppliesTo(evt *event.Event) bool {
	if !r.hasCategory(evt.Category) {
		return false
	}
	ok, err := path.Match(r.SourcePattern, evt.Producer)
	return err == nil && ok
}

func (r *Rule) hasCategory(c event.Category) bool {
	for _, rc := range r.Categories {
		if rc == c {
			return true
		}
	}
	return false
}

// IsFallback reports whether the rule matches all origins and every category.
func (r *Rule) IsFallback() bool {
	if r.SourcePattern != "*" {
		return false
	}
	for _, c := range event.Categories() {
		if !r.hasCategory(c) {
			return false
		}
	}
	return true
}

// Set is the registration-ordered rule collection. Structural mutation is
// serialized by a single lock; Match takes a read lock only.
type Set struct {
	mu    sync.RWMutex
	rules []*Rule
	byID  map[string]*Rule
}

// NewSet creates an empty rule set.
func NewSet() *Set {
	return &Set{byID: make(map[string]*Rule)}
}

// Add registers a rule. Duplicate IDs are rejected; registration order is
// preserved for deterministic priority tie-breaks.
func (s *Set) Add(r *Rule) error {
	if r.ID == "" {
		return fmt.Errorf("rule ID is required")
	}
	if len(r.Categories) == 0 {
		return fmt.Errorf("rule %s: at least one category is required", r.ID)
	}
	if _, err := path.Match(r.SourcePattern, "probe"); err != nil {
		return fmt.Errorf("rule %s: bad source pattern %q: %w", r.ID, r.SourcePattern, err)
	}
	if r.MaxHops <= 0 {
		return fmt.Errorf("rule %s: max hops must be positive", r.ID)
	}
	if r.TTL <= 0 {
		return fmt.Errorf("rule %s: ttl must be positive", r.ID)
	}
	if r.FloodMultiplier <= 0 {
		return fmt.Errorf("rule %s: flood multiplier must be positive", r.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[r.ID]; exists {
		return fmt.Errorf("rule %s: already registered", r.ID)
	}
	s.rules = append(s.rules, r)
	s.byID[r.ID] = r
	return nil
}

// Remove unregisters a rule by ID. Rules are immutable in place; removal
// followed by Add is the only mutation path.
func (s *Set) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[id]; !exists {
		return false
	}
	delete(s.byID, id)
	for i, r := range s.rules {
		if r.ID == id {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			break
		}
	}
	return true
}

// Get returns a rule by ID.
func (s *Set) Get(id string) (*Rule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[id]
	return r, ok
}

// Len returns the number of registered rules.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rules)
}

// Match returns every rule applicable to the event, in registration order.
// No priority ordering is imposed here; the router resolves precedence.
func (s *Set) Match(evt *event.Event) []*Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Rule
	for _, r := range s.rules {
		if r.AppliesTo(evt) {
			out = append(out, r)
		}
	}
	return out
}

// Validate enforces the startup invariants: every category of the closed
// enumeration is covered by at least one rule, and exactly one fallback rule
// exists with strictly the lowest priority. A failure here is a fatal boot
// condition for the host.
func (s *Set) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.rules) == 0 {
		return fmt.Errorf("rule set is empty")
	}

	covered := make(map[event.Category]bool)
	var fallbacks []*Rule
	for _, r := range s.rules {
		for _, c := range r.Categories {
			covered[c] = true
		}
		if r.IsFallback() {
			fallbacks = append(fallbacks, r)
		}
	}

	for _, c := range event.Categories() {
		if !covered[c] {
			return fmt.Errorf("category %s has no rule", c)
		}
	}

	switch len(fallbacks) {
	case 0:
		return fmt.Errorf("no fallback rule (all categories, pattern \"*\")")
	case 1:
	default:
		return fmt.Errorf("%d fallback rules, want exactly one", len(fallbacks))
	}

	fb := fallbacks[0]
	for _, r := range s.rules {
		if r != fb && r.Priority <= fb.Priority {
			return fmt.Errorf("fallback rule %s must have strictly the lowest priority (rule %s has %d)",
				fb.ID, r.ID, r.Priority)
		}
	}
	return nil
}
