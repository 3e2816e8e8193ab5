package detection

import (
	"context"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func newTestDetector(t *testing.T, set RuleSet) *Detector {
	t.Helper()
	d, err := NewDetector(set, testLogger())
	require.NoError(t, err)
	return d
}

func TestDetect_FirstMatchWins(t *testing.T) {
	d := newTestDetector(t, RuleSet{Rules: []models.DetectionRule{
		{EntityCode: "adriane_fontenot", EntityKind: models.EntityKindProvider, NamePatterns: []string{"fontenot"}, PrimaryClinicCode: "CLN-NORTH"},
		{EntityCode: "LOC-MAIN", EntityKind: models.EntityKindLocation, NamePatterns: []string{"main st"}},
	}})

	result, ok := d.Detect(context.Background(), "Main St - Adriane FONTENOT timesheet")
	require.True(t, ok)
	assert.Equal(t, "adriane_fontenot", result.EntityCode)
	assert.Equal(t, models.EntityKindProvider, result.EntityKind)
	assert.Equal(t, "CLN-NORTH", result.PrimaryClinicCode)
	assert.Equal(t, "fontenot", result.MatchedPattern)
	assert.Equal(t, 0, result.RuleIndex)

	result, ok = d.Detect(context.Background(), "main st weekly")
	require.True(t, ok)
	assert.Equal(t, "LOC-MAIN", result.EntityCode)
	assert.Equal(t, 1, result.RuleIndex)
}

func TestDetect_ReportsMatchingPattern(t *testing.T) {
	d := newTestDetector(t, RuleSet{Rules: []models.DetectionRule{
		{EntityCode: "adriane_fontenot", EntityKind: models.EntityKindProvider, NamePatterns: []string{"adriane", `a\.\s*fontenot`}},
	}})

	result, ok := d.Detect(context.Background(), "Payroll A. Fontenot")
	require.True(t, ok)
	assert.Equal(t, `a\.\s*fontenot`, result.MatchedPattern)
}

func TestDetect_PatternMatchesAsLiteralName(t *testing.T) {
	d := newTestDetector(t, RuleSet{
		Rules: []models.DetectionRule{
			{EntityCode: "dr_smith", EntityKind: models.EntityKindProvider, NamePatterns: []string{"Dr. Smith (Main)"}},
		},
		ColumnGroups: []models.ColumnGroupRule{
			{Key: "main_street", Patterns: []string{"Visits (Main)"}},
		},
	})

	result, ok := d.Detect(context.Background(), "Payroll - dr. smith (main) - March")
	require.True(t, ok)
	assert.Equal(t, "dr_smith", result.EntityCode)
	assert.Equal(t, "Dr. Smith (Main)", result.MatchedPattern)

	_, ok = d.Detect(context.Background(), "Dr. Smith Riverside")
	assert.False(t, ok)

	assert.Equal(t, map[string][]int{
		"main_street":     {0},
		UnclassifiedGroup: {1},
	}, d.DetectColumnGroups([]string{"Visits (Main)", "Visits (River)"}))
}

func TestDetect_MissIsNotAnError(t *testing.T) {
	d := newTestDetector(t, RuleSet{Rules: []models.DetectionRule{
		{EntityCode: "adriane_fontenot", EntityKind: models.EntityKindProvider, NamePatterns: []string{"fontenot"}},
	}})

	result, ok := d.Detect(context.Background(), "Quarterly budget")
	assert.False(t, ok)
	assert.Nil(t, result)

	_, ok = d.Detect(context.Background(), "")
	assert.False(t, ok)
}

func TestNewDetector_InvalidPattern(t *testing.T) {
	_, err := NewDetector(RuleSet{Rules: []models.DetectionRule{
		{EntityCode: "broken", EntityKind: models.EntityKindClinic, NamePatterns: []string{"north ("}},
	}}, testLogger())
	assert.True(t, fernerrors.IsKind(err, fernerrors.KindConfiguration))
}

func TestDetectColumnGroups(t *testing.T) {
	d := newTestDetector(t, RuleSet{ColumnGroups: []models.ColumnGroupRule{
		{Key: "main_street", Patterns: []string{"^main"}},
		{Key: "riverside", Patterns: []string{"^river"}},
		{Key: AggregateGroup, Patterns: []string{"total"}},
	}})

	headers := []string{"Date", "Main Visits", "River Visits", "Main Hours", "Total Visits", "", "River Total", "Notes"}
	groups := d.DetectColumnGroups(headers)

	assert.Equal(t, map[string][]int{
		"main_street":     {1, 3},
		"riverside":       {2, 6},
		AggregateGroup:    {4},
		UnclassifiedGroup: {0, 5, 7},
	}, groups)

	seen := 0
	for _, indices := range groups {
		seen += len(indices)
	}
	assert.Equal(t, len(headers), seen)
}

func TestParseRules(t *testing.T) {
	set, err := ParseRules([]byte(`
rules:
  - entity_code: adriane_fontenot
    entity_kind: Provider
    name_patterns: [adriane]
column_groups:
  - key: aggregate
    patterns: [total]
`))
	require.NoError(t, err)
	require.Len(t, set.Rules, 1)
	assert.Equal(t, models.EntityKindProvider, set.Rules[0].EntityKind)
	assert.Equal(t, "1 detection rules, 1 column groups", set.String())
}

func TestParseRules_Invalid(t *testing.T) {
	tests := map[string]string{
		"missing patterns": "rules:\n  - entity_code: x\n    entity_kind: clinic\n",
		"unknown kind":     "rules:\n  - entity_code: x\n    entity_kind: building\n    name_patterns: [x]\n",
		"bad regex":        "rules:\n  - entity_code: x\n    entity_kind: clinic\n    name_patterns: ['[x']\n",
		"reserved group":   "column_groups:\n  - key: unclassified\n    patterns: [x]\n",
		"duplicate group":  "column_groups:\n  - key: a\n    patterns: [x]\n  - key: a\n    patterns: [y]\n",
		"not yaml":         "rules: [",
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRules([]byte(doc))
			assert.True(t, fernerrors.IsKind(err, fernerrors.KindConfiguration), "got %v", err)
		})
	}
}

func TestLoadRules_ExampleFile(t *testing.T) {
	set, err := LoadRules("../../config/detection_rules.example.yaml")
	require.NoError(t, err)

	d := newTestDetector(t, set)
	result, ok := d.Detect(context.Background(), "Adriane Fontenot - March 2025")
	require.True(t, ok)
	assert.Equal(t, "adriane_fontenot", result.EntityCode)
	assert.Equal(t, "emp-1042", result.ExternalID)

	groups := d.DetectColumnGroups([]string{"Main Visits", "Riverside Visits", "Total"})
	assert.Equal(t, []int{0}, groups["main_street"])
	assert.Equal(t, []int{1}, groups["riverside"])
	assert.Equal(t, []int{2}, groups[AggregateGroup])

	_, err = LoadRules("does-not-exist.yaml")
	assert.True(t, fernerrors.IsKind(err, fernerrors.KindConfiguration))
}
