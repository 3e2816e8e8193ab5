package detection

import (
	"fmt"
	"os"
	"strings"

	"github.com/Gobusters/ectolinq"
	"gopkg.in/yaml.v3"

	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/validation"
)

// RuleSet is the on-disk shape of the detection configuration
type RuleSet struct {
	Rules        []models.DetectionRule   `yaml:"rules" validate:"dive"`
	ColumnGroups []models.ColumnGroupRule `yaml:"column_groups" validate:"dive"`
}

// LoadRules reads and validates a YAML rule file
func LoadRules(path string) (RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, fernerrors.NewConfigurationError("failed to read detection rules %s: %v", path, err)
	}
	return ParseRules(data)
}

// ParseRules decodes and validates a YAML rule document
func ParseRules(data []byte) (RuleSet, error) {
	var set RuleSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return RuleSet{}, fernerrors.NewConfigurationError("invalid detection rules: %v", err)
	}

	for i := range set.Rules {
		kind, err := models.ParseEntityKind(string(set.Rules[i].EntityKind))
		if err == nil {
			set.Rules[i].EntityKind = kind
		}
	}

	if err := set.Validate(); err != nil {
		return RuleSet{}, err
	}
	return set, nil
}

// Validate checks the rule set and that column group keys are unique and not reserved
func (s RuleSet) Validate() error {
	if err := validation.Struct(s); err != nil {
		return fernerrors.NewConfigurationError("invalid detection rules: %v", err)
	}

	keys := ectolinq.Map(s.ColumnGroups, func(g models.ColumnGroupRule) string {
		return strings.TrimSpace(g.Key)
	})
	if ectolinq.Contains(keys, UnclassifiedGroup) {
		return fernerrors.NewConfigurationError("column group key %q is reserved", UnclassifiedGroup)
	}
	for i, key := range keys {
		duplicates := ectolinq.Filter(keys[i+1:], func(other string) bool { return other == key })
		if len(duplicates) > 0 {
			return fernerrors.NewConfigurationError("duplicate column group key %q", key)
		}
	}

	return compileAll(s)
}

func compileAll(s RuleSet) error {
	for i, rule := range s.Rules {
		if _, err := compilePatterns(rule.NamePatterns); err != nil {
			return fernerrors.NewConfigurationError("detection rule %d (%s): %v", i, rule.EntityCode, err)
		}
	}
	for _, group := range s.ColumnGroups {
		if _, err := compilePatterns(group.Patterns); err != nil {
			return fernerrors.NewConfigurationError("column group %s: %v", group.Key, err)
		}
	}
	return nil
}

// String summarizes the rule set for logs
func (s RuleSet) String() string {
	return fmt.Sprintf("%d detection rules, %d column groups", len(s.Rules), len(s.ColumnGroups))
}
