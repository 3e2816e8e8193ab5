// Package detection infers which entity a document belongs to from its name.
package detection

import (
	"context"
	"regexp"
	"strings"

	"github.com/Gobusters/ectologger"

	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
)

const (
	// AggregateGroup is the conventional key for totals columns
	AggregateGroup = "aggregate"
	// UnclassifiedGroup collects headers that match no column group
	UnclassifiedGroup = "unclassified"
)

// pattern matches either as a case-insensitive regular expression or as a
// case-insensitive literal substring, so "Dr. Smith (Main)" matches itself
type pattern struct {
	re      *regexp.Regexp
	literal string
}

func (p pattern) matches(text, lowered string) bool {
	return p.re.MatchString(text) || (p.literal != "" && strings.Contains(lowered, p.literal))
}

type compiledRule struct {
	rule     models.DetectionRule
	patterns []pattern
}

type compiledGroup struct {
	key      string
	patterns []pattern
}

// Detector matches document names and header rows against ordered rule tables.
// It is immutable after construction and safe for concurrent use.
type Detector struct {
	rules  []compiledRule
	groups []compiledGroup
	logger ectologger.Logger
}

// NewDetector compiles the rule tables. Patterns are case-insensitive regular
// expressions that also match as literal substrings; an invalid regular
// expression is a configuration error.
func NewDetector(set RuleSet, logger ectologger.Logger) (*Detector, error) {
	d := &Detector{logger: logger}

	for i, rule := range set.Rules {
		patterns, err := compilePatterns(rule.NamePatterns)
		if err != nil {
			return nil, fernerrors.NewConfigurationError("detection rule %d (%s): %v", i, rule.EntityCode, err)
		}
		d.rules = append(d.rules, compiledRule{rule: rule, patterns: patterns})
	}

	for i, group := range set.ColumnGroups {
		patterns, err := compilePatterns(group.Patterns)
		if err != nil {
			return nil, fernerrors.NewConfigurationError("column group %d (%s): %v", i, group.Key, err)
		}
		d.groups = append(d.groups, compiledGroup{key: group.Key, patterns: patterns})
	}

	return d, nil
}

func compilePatterns(patterns []string) ([]pattern, error) {
	compiled := make([]pattern, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, pattern{re: re, literal: strings.ToLower(strings.TrimSpace(p))})
	}
	return compiled, nil
}

// Detect returns the first rule, in declaration order, with a pattern matching documentName.
// A miss is reported with ok=false and is not an error.
func (d *Detector) Detect(ctx context.Context, documentName string) (*models.DetectionResult, bool) {
	log := d.logger.WithContext(ctx).WithField("document_name", documentName)

	if strings.TrimSpace(documentName) != "" {
		lowered := strings.ToLower(documentName)
		for i, cr := range d.rules {
			for j, p := range cr.patterns {
				if !p.matches(documentName, lowered) {
					continue
				}

				metrics.DetectionsTotal.WithLabelValues("match").Inc()
				result := &models.DetectionResult{
					EntityCode:        cr.rule.EntityCode,
					ExternalID:        cr.rule.ExternalID,
					DisplayName:       cr.rule.DisplayName,
					PrimaryClinicCode: cr.rule.PrimaryClinicCode,
					EntityKind:        cr.rule.EntityKind,
					MatchedPattern:    cr.rule.NamePatterns[j],
					RuleIndex:         i,
				}
				log.WithFields(map[string]any{
					"entity_code":     result.EntityCode,
					"entity_type":     string(result.EntityKind),
					"matched_pattern": result.MatchedPattern,
				}).Info("Detected entity from document name")
				return result, true
			}
		}
	}

	metrics.DetectionsTotal.WithLabelValues("miss").Inc()
	log.Info("No detection rule matched document name")
	return nil, false
}

// DetectColumnGroups assigns each header index to the first column group with a matching
// pattern. Indices matching no group land in UnclassifiedGroup. Indices are ascending within
// each group and every index appears exactly once.
func (d *Detector) DetectColumnGroups(headers []string) map[string][]int {
	groups := map[string][]int{}

	for i, header := range headers {
		key := d.classifyHeader(header)
		groups[key] = append(groups[key], i)
	}

	return groups
}

func (d *Detector) classifyHeader(header string) string {
	if strings.TrimSpace(header) == "" {
		return UnclassifiedGroup
	}
	lowered := strings.ToLower(header)
	for _, group := range d.groups {
		for _, p := range group.patterns {
			if p.matches(header, lowered) {
				return group.key
			}
		}
	}
	return UnclassifiedGroup
}

// Rules returns the number of detection rules and column groups loaded
func (d *Detector) Rules() (rules int, columnGroups int) {
	return len(d.rules), len(d.groups)
}
