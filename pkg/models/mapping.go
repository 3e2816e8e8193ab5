package models

import "time"

// ExternalMapping binds a third-party system's identifier to a current entity id.
// It is uniquely keyed by (SystemName, ExternalID, EntityType).
type ExternalMapping struct {
	SystemName string     `json:"system_name" db:"system_name" validate:"required"`
	ExternalID string     `json:"external_id" db:"external_id" validate:"required"`
	EntityType EntityKind `json:"entity_type" db:"entity_type" validate:"required,oneof=clinic provider location"`
	EntityID   string     `json:"entity_id" db:"entity_id" validate:"required"`
	Notes      *string    `json:"notes,omitempty" db:"notes"`
	CreatedAt  *time.Time `json:"created_at,omitempty" db:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// MappingKey is the unique key of an external mapping
type MappingKey struct {
	SystemName string     `json:"system_name" validate:"required"`
	ExternalID string     `json:"external_id" validate:"required"`
	EntityType EntityKind `json:"entity_type" validate:"required,oneof=clinic provider location"`
}

// Key returns the unique key of the mapping
func (m ExternalMapping) Key() MappingKey {
	return MappingKey{
		SystemName: m.SystemName,
		ExternalID: m.ExternalID,
		EntityType: m.EntityType,
	}
}
