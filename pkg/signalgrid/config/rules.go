package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signalgrid/signalgrid/pkg/signalgrid/event"
	"github.com/signalgrid/signalgrid/pkg/signalgrid/fanout"
	"github.com/signalgrid/signalgrid/pkg/signalgrid/filter"
	"github.com/signalgrid/signalgrid/pkg/signalgrid/rule"
)

// RuleSpec is the on-disk form of a routing rule. Categories, filters, and
// strategy use their string names; tags that don't parse are load errors.
type RuleSpec struct {
	ID              string   `yaml:"id" json:"id"`
	SourcePattern   string   `yaml:"source_pattern" json:"source_pattern"`
	Categories      []string `yaml:"categories" json:"categories"`
	Targets         []string `yaml:"targets" json:"targets"`
	Priority        int      `yaml:"priority" json:"priority"`
	Filters         []string `yaml:"filters" json:"filters"`
	Strategy        string   `yaml:"strategy" json:"strategy"`
	MaxHops         int      `yaml:"max_hops" json:"max_hops"`
	TTLSeconds      float64  `yaml:"ttl_seconds" json:"ttl_seconds"`
	FloodMultiplier float64  `yaml:"flood_multiplier" json:"flood_multiplier"`
}

// RulesDocument is the root of a rules file.
type RulesDocument struct {
	Rules []RuleSpec `yaml:"rules" json:"rules"`
}

// Rule converts the spec to a rule.Rule.
func (s RuleSpec) Rule() (*rule.Rule, error) {
	cats := make([]event.Category, 0, len(s.Categories))
	for _, name := range s.Categories {
		if name == "*" {
			cats = event.Categories()
			break
		}
		c, err := event.ParseCategory(name)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", s.ID, err)
		}
		cats = append(cats, c)
	}

	filters := make([]filter.Tag, 0, len(s.Filters))
	for _, name := range s.Filters {
		t, err := filter.ParseTag(name)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", s.ID, err)
		}
		filters = append(filters, t)
	}

	strategy, err := fanout.ParseStrategy(s.Strategy)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", s.ID, err)
	}

	return &rule.Rule{
		ID:              s.ID,
		SourcePattern:   s.SourcePattern,
		Categories:      cats,
		TargetHints:     s.Targets,
		Priority:        s.Priority,
		Filters:         filters,
		Strategy:        strategy,
		MaxHops:         s.MaxHops,
		TTL:             time.Duration(s.TTLSeconds * float64(time.Second)),
		FloodMultiplier: s.FloodMultiplier,
	}, nil
}

// RuleSet builds a validated rule set from the document. Validation failures
// here carry the same fatal-at-startup semantics as rule.Set.Validate.
func (d RulesDocument) RuleSet() (*rule.Set, error) {
	set := rule.NewSet()
	for _, spec := range d.Rules {
		r, err := spec.Rule()
		if err != nil {
			return nil, err
		}
		if err := set.Add(r); err != nil {
			return nil, err
		}
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}

// RulesFromYAML parses and validates a rules file from YAML data.
func RulesFromYAML(data []byte) (*rule.Set, error) {
	var doc RulesDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse rules yaml: %w", err)
	}
	return doc.RuleSet()
}

// RulesFromFile loads and validates a rules file.
func RulesFromFile(path string) (*rule.Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return RulesFromYAML(data)
}
