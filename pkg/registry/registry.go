// Package registry persists and looks up bindings between third-party
// identifiers and current entity ids.
package registry

import (
	"context"
	"strings"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/validation"
)

// Registry stores external mappings keyed by (system name, external id, entity type)
type Registry interface {
	// Upsert creates or replaces a mapping. Last writer wins.
	Upsert(ctx context.Context, mapping models.ExternalMapping) error
	// Lookup returns the entity id bound to the key. found is false when no mapping exists.
	Lookup(ctx context.Context, systemName, externalID string, entityType models.EntityKind) (entityID string, found bool, err error)
	// List returns every mapping of a system
	List(ctx context.Context, systemName string) ([]models.ExternalMapping, error)
}

func normalizeMapping(m models.ExternalMapping) (models.ExternalMapping, error) {
	m.SystemName = strings.TrimSpace(m.SystemName)
	m.ExternalID = strings.TrimSpace(m.ExternalID)
	m.EntityID = strings.TrimSpace(m.EntityID)
	if m.Notes != nil && strings.TrimSpace(*m.Notes) == "" {
		m.Notes = nil
	}
	return m, validation.Struct(m)
}

func normalizeKey(systemName, externalID string, entityType models.EntityKind) (models.MappingKey, error) {
	key := models.MappingKey{
		SystemName: strings.TrimSpace(systemName),
		ExternalID: strings.TrimSpace(externalID),
		EntityType: entityType,
	}
	return key, validation.Struct(key)
}
