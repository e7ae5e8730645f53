package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessorDefaults(t *testing.T) {
	c := New(nil)

	assert.Equal(t, "fallback", c.String("missing", "fallback"))
	assert.True(t, c.Bool("missing", true))
	assert.Equal(t, 42, c.Int("missing", 42))
	assert.Equal(t, 1.5, c.Float("missing", 1.5))
	assert.Equal(t, time.Minute, c.Duration("missing", time.Minute))
	assert.Equal(t, []string{"a"}, c.StringSlice("missing", []string{"a"}))
	assert.False(t, c.Has("missing"))
}

func TestAccessorConversions(t *testing.T) {
	c := New(map[string]any{
		"name":     "grid",
		"enabled":  true,
		"capacity": float64(64), // JSON numbers decode as float64
		"ratio":    0.75,
		"interval": "45s",
		"window":   30, // bare number means seconds
		"targets":  []any{"a", "b"},
		"mixed":    []any{"a", 1},
	})

	assert.Equal(t, "grid", c.String("name", ""))
	assert.True(t, c.Bool("enabled", false))
	assert.Equal(t, 64, c.Int("capacity", 0))
	assert.Equal(t, 0.75, c.Float("ratio", 0))
	assert.Equal(t, 45*time.Second, c.Duration("interval", 0))
	assert.Equal(t, 30*time.Second, c.Duration("window", 0))
	assert.Equal(t, []string{"a", "b"}, c.StringSlice("targets", nil))
	assert.Nil(t, c.StringSlice("mixed", nil))

	// Wrong type falls back to the default.
	assert.Equal(t, 7, c.Int("name", 7))
	assert.Equal(t, 0, c.Int("ratio", 0)) // fractional float is not an int
}

func TestFromYAML(t *testing.T) {
	c, err := FromYAML([]byte("queue_capacity: 16\nlog_level: debug\n"))
	require.NoError(t, err)
	assert.Equal(t, 16, c.Int("queue_capacity", 0))
	assert.Equal(t, "debug", c.String("log_level", ""))

	_, err = FromYAML([]byte("{broken"))
	assert.Error(t, err)
}

func TestFromJSON(t *testing.T) {
	c, err := FromJSON([]byte(`{"queue_capacity": 16, "flood_base_rate": 10}`))
	require.NoError(t, err)
	assert.Equal(t, 16, c.Int("queue_capacity", 0))
	assert.Equal(t, 10, c.Int("flood_base_rate", 0))

	_, err = FromJSON([]byte("{broken"))
	assert.Error(t, err)
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("queue_capacity: 8\n"), 0o644))
	c, err := FromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, 8, c.Int("queue_capacity", 0))

	jsonPath := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"queue_capacity": 8}`), 0o644))
	c, err = FromFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, 8, c.Int("queue_capacity", 0))

	txtPath := filepath.Join(dir, "config.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("x"), 0o644))
	_, err = FromFile(txtPath)
	assert.ErrorContains(t, err, "unsupported config file extension")

	_, err = FromFile(filepath.Join(dir, "absent.yaml"))
	assert.Error(t, err)
}

const validRulesYAML = `
rules:
  - id: critical-alerts
    source_pattern: "monitor.*"
    categories: [alert]
    targets: [ops]
    priority: 9
    filters: [trust-threshold]
    strategy: targeted
    max_hops: 4
    ttl_seconds: 30
    flood_multiplier: 2.0
  - id: fallback
    source_pattern: "*"
    categories: ["*"]
    priority: 0
    strategy: broadcast
    max_hops: 10
    ttl_seconds: 60
    flood_multiplier: 10
`

func TestRulesFromYAML(t *testing.T) {
	set, err := RulesFromYAML([]byte(validRulesYAML))
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())

	r, ok := set.Get("critical-alerts")
	require.True(t, ok)
	assert.Equal(t, "monitor.*", r.SourcePattern)
	assert.Equal(t, []string{"ops"}, r.TargetHints)
	assert.Equal(t, 9, r.Priority)
	assert.Equal(t, 30*time.Second, r.TTL)
	assert.Equal(t, 2.0, r.FloodMultiplier)

	fb, ok := set.Get("fallback")
	require.True(t, ok)
	assert.True(t, fb.IsFallback())
}

func TestRulesFromYAMLRejectsUnknownTags(t *testing.T) {
	bad := `
rules:
  - id: r1
    source_pattern: "*"
    categories: ["*"]
    strategy: teleport
    max_hops: 1
    ttl_seconds: 1
    flood_multiplier: 1
`
	_, err := RulesFromYAML([]byte(bad))
	assert.ErrorContains(t, err, "unknown strategy")

	bad = `
rules:
  - id: r1
    source_pattern: "*"
    categories: [weather]
    strategy: broadcast
    max_hops: 1
    ttl_seconds: 1
    flood_multiplier: 1
`
	_, err = RulesFromYAML([]byte(bad))
	assert.ErrorContains(t, err, "unknown category")

	bad = `
rules:
  - id: r1
    source_pattern: "*"
    categories: ["*"]
    filters: [vibes]
    strategy: broadcast
    max_hops: 1
    ttl_seconds: 1
    flood_multiplier: 1
`
	_, err = RulesFromYAML([]byte(bad))
	assert.ErrorContains(t, err, "unknown filter")
}

func TestRulesFromYAMLValidatesSet(t *testing.T) {
	// Coverage exists but no fallback rule.
	bad := `
rules:
  - id: wide
    source_pattern: "specific.*"
    categories: ["*"]
    strategy: broadcast
    max_hops: 1
    ttl_seconds: 1
    flood_multiplier: 1
`
	_, err := RulesFromYAML([]byte(bad))
	assert.ErrorContains(t, err, "fallback")
}

func TestRulesFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validRulesYAML), 0o644))

	set, err := RulesFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())

	_, err = RulesFromFile(filepath.Join(dir, "absent.yaml"))
	assert.Error(t, err)
}
