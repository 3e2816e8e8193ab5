package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Gobusters/ectologger"

	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/host"
	"github.com/Ramsey-B/fern/pkg/invoker"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/validation"
)

// Caller is the subset of the invoker the remote registry needs
type Caller interface {
	invoker.Caller
	Prime(ctx context.Context, conn models.Connection, function string, params map[string]any, raw []byte)
}

// Functions names the remote stored functions backing the registry
type Functions struct {
	Upsert string
	Lookup string
	List   string
}

// DefaultFunctions returns the standard function names
func DefaultFunctions() Functions {
	return Functions{
		Upsert: "upsert_external_mapping",
		Lookup: "resolve_by_external_mapping",
		List:   "list_external_mappings",
	}
}

// RemoteRegistry stores mappings through remote stored functions
type RemoteRegistry struct {
	caller    Caller
	conns     host.ConnectionSource
	functions Functions
	logger    ectologger.Logger
}

func NewRemoteRegistry(caller Caller, conns host.ConnectionSource, functions Functions, logger ectologger.Logger) *RemoteRegistry {
	defaults := DefaultFunctions()
	if functions.Upsert == "" {
		functions.Upsert = defaults.Upsert
	}
	if functions.Lookup == "" {
		functions.Lookup = defaults.Lookup
	}
	if functions.List == "" {
		functions.List = defaults.List
	}
	return &RemoteRegistry{caller: caller, conns: conns, functions: functions, logger: logger}
}

func (r *RemoteRegistry) connection(ctx context.Context) (models.Connection, error) {
	conn, ok := host.ConnectionFor(ctx, r.conns)
	if !ok {
		return conn, fernerrors.NewConfigurationError("remote service connection is not configured (base URL and token are required)")
	}
	return conn, nil
}

func lookupParams(key models.MappingKey) map[string]any {
	return map[string]any{
		"p_system_name": key.SystemName,
		"p_external_id": key.ExternalID,
		"p_entity_type": string(key.EntityType),
	}
}

func (r *RemoteRegistry) Upsert(ctx context.Context, mapping models.ExternalMapping) error {
	mapping, err := normalizeMapping(mapping)
	if err != nil {
		return err
	}
	conn, err := r.connection(ctx)
	if err != nil {
		return err
	}

	params := lookupParams(mapping.Key())
	params["p_entity_id"] = mapping.EntityID
	params["p_notes"] = mapping.Notes

	if _, err := r.caller.Call(ctx, r.functions.Upsert, params, conn, invoker.NoCache()); err != nil {
		return err
	}

	// later lookups of this key must observe the new id rather than a cached one
	raw, _ := json.Marshal(mapping.EntityID)
	r.caller.Prime(ctx, conn, r.functions.Lookup, lookupParams(mapping.Key()), raw)

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"system_name": mapping.SystemName,
		"external_id": mapping.ExternalID,
		"entity_type": string(mapping.EntityType),
		"entity_id":   mapping.EntityID,
	}).Info("Upserted external mapping")
	return nil
}

func (r *RemoteRegistry) Lookup(ctx context.Context, systemName, externalID string, entityType models.EntityKind) (string, bool, error) {
	key, err := normalizeKey(systemName, externalID, entityType)
	if err != nil {
		return "", false, err
	}
	conn, err := r.connection(ctx)
	if err != nil {
		return "", false, err
	}

	result, err := r.caller.Call(ctx, r.functions.Lookup, lookupParams(key), conn)
	if err != nil {
		return "", false, err
	}

	id, found := result.ID()
	return id, found, nil
}

func (r *RemoteRegistry) List(ctx context.Context, systemName string) ([]models.ExternalMapping, error) {
	if err := validation.Var("system_name", systemName, "required"); err != nil {
		return nil, err
	}
	conn, err := r.connection(ctx)
	if err != nil {
		return nil, err
	}

	result, err := r.caller.Call(ctx, r.functions.List, map[string]any{"p_system_name": systemName}, conn, invoker.NoCache())
	if err != nil {
		return nil, err
	}
	if result.Empty() {
		return []models.ExternalMapping{}, nil
	}

	var mappings []models.ExternalMapping
	if err := result.Decode(&mappings); err != nil {
		return nil, fmt.Errorf("failed to decode %s result: %w", r.functions.List, err)
	}
	return mappings, nil
}
