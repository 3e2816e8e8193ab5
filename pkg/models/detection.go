package models

// DetectionRule describes how a document name identifies a business entity.
// Rules are static configuration evaluated in declaration order.
type DetectionRule struct {
	EntityCode        string     `json:"entity_code" yaml:"entity_code" validate:"required"`
	NamePatterns      []string   `json:"name_patterns" yaml:"name_patterns" validate:"required,min=1,dive,required"`
	ExternalID        string     `json:"external_id,omitempty" yaml:"external_id"`
	DisplayName       string     `json:"display_name,omitempty" yaml:"display_name"`
	PrimaryClinicCode string     `json:"primary_clinic_code,omitempty" yaml:"primary_clinic_code"`
	EntityKind        EntityKind `json:"entity_kind" yaml:"entity_kind" validate:"required,oneof=clinic provider location"`
}

// ColumnGroupRule assigns header cells to a named column group
type ColumnGroupRule struct {
	Key      string   `json:"key" yaml:"key" validate:"required"`
	Patterns []string `json:"patterns" yaml:"patterns" validate:"required,min=1,dive,required"`
}

// DetectionResult is the outcome of a successful detection
type DetectionResult struct {
	EntityCode        string     `json:"entity_code"`
	ExternalID        string     `json:"external_id,omitempty"`
	DisplayName       string     `json:"display_name,omitempty"`
	PrimaryClinicCode string     `json:"primary_clinic_code,omitempty"`
	EntityKind        EntityKind `json:"entity_kind"`
	MatchedPattern    string     `json:"matched_pattern"`
	RuleIndex         int        `json:"rule_index"`
}
