// Package classify labels FlowDroid sink statements with the log level of a
// given Android logging library. One engine, driven by per-library rule
// tables: an indicator list gates relatedness, then ordered keyword rules
// pick the level, highest severity first.
package classify

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var rulesYAML []byte

// Unknown is returned for empty input and for texts outside the library.
const Unknown = "Unknown"

// Rule maps any of its keywords to one label. Earlier rules win.
type Rule struct {
	Label    string   `yaml:"label"`
	Keywords []string `yaml:"keywords"`
}

// RuleSet is one library's classification table.
type RuleSet struct {
	Name       string   `yaml:"name"`
	OtherLabel string   `yaml:"other_label"`
	Indicators []string `yaml:"indicators"`
	Rules      []Rule   `yaml:"rules"`
}

type ruleFile struct {
	Libraries []RuleSet `yaml:"libraries"`
}

// LoadRuleSets parses the embedded rule tables.
func LoadRuleSets() (map[string]*RuleSet, error) {
	var file ruleFile
	if err := yaml.Unmarshal(rulesYAML, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rule tables: %w", err)
	}

	sets := make(map[string]*RuleSet, len(file.Libraries))

	for i := range file.Libraries {
		rs := &file.Libraries[i]

		if rs.Name == "" || len(rs.Indicators) == 0 || len(rs.Rules) == 0 {
			return nil, fmt.Errorf("rule table %d is incomplete", i)
		}

		sets[rs.Name] = rs
	}

	return sets, nil
}

// RuleSetFor returns the table for one library name.
func RuleSetFor(name string) (*RuleSet, error) {
	sets, err := LoadRuleSets()
	if err != nil {
		return nil, err
	}

	rs, ok := sets[name]
	if !ok {
		return nil, fmt.Errorf("unknown library %q (known: %s)", name, strings.Join(names(sets), ", "))
	}

	return rs, nil
}

// Names lists the known library names, sorted.
func Names() ([]string, error) {
	sets, err := LoadRuleSets()
	if err != nil {
		return nil, err
	}

	return names(sets), nil
}

func names(sets map[string]*RuleSet) []string {
	out := make([]string, 0, len(sets))
	for name := range sets {
		out = append(out, name)
	}

	sort.Strings(out)

	return out
}

// IsRelated reports whether the text belongs to this library, by
// case-insensitive substring membership against the indicator list.
func (rs *RuleSet) IsRelated(text string) bool {
	return rs.isRelatedLower(strings.ToLower(text))
}

func (rs *RuleSet) isRelatedLower(lower string) bool {
	for _, indicator := range rs.Indicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}

	return false
}

// Classify is pure and total: empty or unrelated text maps to Unknown,
// related text with no keyword hit maps to the library's OTHER label, and
// otherwise the first matching rule in priority order wins.
func (rs *RuleSet) Classify(text string) string {
	if text == "" {
		return Unknown
	}

	lower := strings.ToLower(text)

	if !rs.isRelatedLower(lower) {
		return Unknown
	}

	for _, rule := range rs.Rules {
		for _, keyword := range rule.Keywords {
			if strings.Contains(lower, keyword) {
				return rule.Label
			}
		}
	}

	return rs.OtherLabel
}

// Labels returns the rule labels in priority order.
func (rs *RuleSet) Labels() []string {
	labels := make([]string, 0, len(rs.Rules))
	for _, rule := range rs.Rules {
		labels = append(labels, rule.Label)
	}

	return labels
}
