package ledger

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed scoring.yaml
var defaultRules []byte

// Rules maps event types to the points they credit, with per-sport overrides.
type Rules struct {
	Default map[string]int            `yaml:"default"`
	Sports  map[string]map[string]int `yaml:"sports"`
}

// DefaultRules returns the built-in scoring table.
func DefaultRules() *Rules {
	r, err := ParseRules(defaultRules)
	if err != nil {
		panic(fmt.Sprintf("ledger: embedded scoring table: %v", err))
	}
	return r
}

// LoadRules reads a scoring table from path, or the built-in one when path
// is empty.
func LoadRules(path string) (*Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scoring rules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes a YAML scoring table.
func ParseRules(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse scoring rules: %w", err)
	}
	if len(r.Default) == 0 {
		return nil, fmt.Errorf("parse scoring rules: default table is empty")
	}
	norm := make(map[string]map[string]int, len(r.Sports))
	for sport, table := range r.Sports {
		norm[normalize(sport)] = table
	}
	r.Sports = norm
	return &r, nil
}

// PointValue returns the points an event type credits in a sport, and
// whether the type is known there.
func (r *Rules) PointValue(sport, eventType string) (int, bool) {
	eventType = normalize(eventType)
	if table, ok := r.Sports[normalize(sport)]; ok {
		if v, ok := table[eventType]; ok {
			return v, true
		}
	}
	v, ok := r.Default[eventType]
	return v, ok
}

// Types lists the event types accepted in a sport, sorted.
func (r *Rules) Types(sport string) []string {
	set := make(map[string]bool, len(r.Default))
	for k := range r.Default {
		set[k] = true
	}
	for k := range r.Sports[normalize(sport)] {
		set[k] = true
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
