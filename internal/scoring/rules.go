package scoring

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RuleSet is the classification rule set supplied to the installed policy.
// It is read fresh from disk on every scoring call so edits take effect
// immediately; there is no cached fallback.
type RuleSet struct {
	Priorities []PriorityRule `yaml:"priorities"`
}

// PriorityRule describes one priority band
type PriorityRule struct {
	Priority string  `yaml:"priority"`
	Weight   float64 `yaml:"weight"`
	MinScore float64 `yaml:"min_score"`
	MaxScore float64 `yaml:"max_score"`
	Action   string  `yaml:"action"`
}

// RulesSource defines the interface for loading the classification rule set
type RulesSource interface {
	Load() (*RuleSet, error)
}

// FileRulesSource reads the rule set from a YAML file
type FileRulesSource struct {
	path string
}

// NewFileRulesSource creates a rules source backed by the given path
func NewFileRulesSource(path string) *FileRulesSource {
	return &FileRulesSource{path: path}
}

// Load reads and parses the rule set. A load failure is a hard error for
// the scoring call that triggered it.
func (s *FileRulesSource) Load() (*RuleSet, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %s: %w", s.path, err)
	}

	var rules RuleSet
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules file %s: %w", s.path, err)
	}

	if len(rules.Priorities) == 0 {
		return nil, fmt.Errorf("rules file %s defines no priorities", s.path)
	}

	return &rules, nil
}
