package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialBundle_CopiesInputs(t *testing.T) {
	resolved := map[EntityKind]string{EntityKindProvider: "prov-1"}
	detected := &DetectionResult{EntityCode: "adriane_fontenot", EntityKind: EntityKindProvider}

	bundle := NewCredentialBundle(BundleParams{
		Connection:       Connection{BaseURL: "https://db.example.com", Token: "secret"},
		SystemName:       "production-sheet",
		ResolvedEntities: resolved,
		DetectedEntity:   detected,
		Timestamp:        time.Unix(1700000000, 0).UTC(),
		CorrelationID:    "corr-1",
	})

	resolved[EntityKindProvider] = "changed"
	detected.EntityCode = "changed"

	id, ok := bundle.Entity(EntityKindProvider)
	require.True(t, ok)
	assert.Equal(t, "prov-1", id)

	got, ok := bundle.DetectedEntity()
	require.True(t, ok)
	assert.Equal(t, "adriane_fontenot", got.EntityCode)

	copied := bundle.ResolvedEntities()
	copied[EntityKindClinic] = "clinic-1"
	_, ok = bundle.Entity(EntityKindClinic)
	assert.False(t, ok)
}

func TestCredentialBundle_MarshalJSONRedactsToken(t *testing.T) {
	bundle := NewCredentialBundle(BundleParams{
		Connection: Connection{BaseURL: "https://db.example.com", Token: "secret"},
		SystemName: "production-sheet",
	})

	data, err := json.Marshal(bundle)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
	assert.Contains(t, string(data), redactedToken)

	data, err = bundle.MarshalJSONWithToken()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"auth_token":"secret"`)
}

func TestParseEntityKind(t *testing.T) {
	kind, err := ParseEntityKind(" Provider ")
	require.NoError(t, err)
	assert.Equal(t, EntityKindProvider, kind)

	_, err = ParseEntityKind("practice")
	assert.Error(t, err)
}
