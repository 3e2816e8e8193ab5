package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/validation"
)

const mappingTable = "external_mappings"

var mappingColumns = []string{"system_name", "external_id", "entity_type", "entity_id", "notes", "created_at", "updated_at"}

// SQLRegistry stores mappings directly in the external_mappings table
type SQLRegistry struct {
	db     database.DB
	logger ectologger.Logger
	now    func() time.Time
}

func NewSQLRegistry(db database.DB, logger ectologger.Logger) *SQLRegistry {
	return &SQLRegistry{db: db, logger: logger, now: time.Now}
}

func (r *SQLRegistry) Upsert(ctx context.Context, mapping models.ExternalMapping) error {
	mapping, err := normalizeMapping(mapping)
	if err != nil {
		return err
	}

	now := r.now().UTC()
	ib := database.NewInsertBuilder(r.db.Flavor()).
		InsertInto(mappingTable).
		Cols(mappingColumns...).
		Values(mapping.SystemName, mapping.ExternalID, string(mapping.EntityType), mapping.EntityID, mapping.Notes, now, now).
		OnConflictUpdate([]string{"system_name", "external_id", "entity_type"}, "entity_id", "notes", "updated_at")

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to upsert external mapping")
		return fmt.Errorf("failed to upsert external mapping: %w", err)
	}
	return nil
}

func (r *SQLRegistry) Lookup(ctx context.Context, systemName, externalID string, entityType models.EntityKind) (string, bool, error) {
	key, err := normalizeKey(systemName, externalID, entityType)
	if err != nil {
		return "", false, err
	}

	sb := database.NewSelectBuilder(r.db.Flavor())
	sb.Select("entity_id").From(mappingTable).Where(
		sb.Equal("system_name", key.SystemName),
		sb.Equal("external_id", key.ExternalID),
		sb.Equal("entity_type", string(key.EntityType)),
	)

	query, args := sb.Build()
	var entityID string
	if err := r.db.GetContext(ctx, &entityID, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to look up external mapping: %w", err)
	}
	return entityID, true, nil
}

func (r *SQLRegistry) List(ctx context.Context, systemName string) ([]models.ExternalMapping, error) {
	if err := validation.Var("system_name", systemName, "required"); err != nil {
		return nil, err
	}

	sb := database.NewSelectBuilder(r.db.Flavor())
	sb.Select(mappingColumns...).From(mappingTable).
		Where(sb.Equal("system_name", systemName)).
		OrderBy("entity_type", "external_id").Asc()

	query, args := sb.Build()
	mappings := []models.ExternalMapping{}
	if err := r.db.SelectContext(ctx, &mappings, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list external mappings: %w", err)
	}
	return mappings, nil
}
