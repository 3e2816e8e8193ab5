package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/config"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/registry"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	cfg.RemoteBaseURL = "https://data.example.com"
	cfg.RemoteToken = "service-token"
	cfg.StartupMaxAttempts = 1
	return cfg
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestApp_StartRemoteDefaults(t *testing.T) {
	a := New(testConfig(t), testLogger())
	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(func() { _ = a.Stop(context.Background()) })

	assert.NotNil(t, a.Invoker)
	assert.Len(t, a.Resolvers, 3)
	assert.IsType(t, &registry.RemoteRegistry{}, a.Registry)
	assert.Nil(t, a.Detector)
	assert.NotNil(t, a.Assembler)

	conn, ok := a.Connections.Connection(context.Background())
	require.True(t, ok)
	assert.Equal(t, "https://data.example.com", conn.BaseURL)
}

func TestApp_StartSQLRegistryWithDetection(t *testing.T) {
	cfg := testConfig(t)
	cfg.RegistryBackend = config.RegistryBackendSQL
	cfg.DatabaseDriver = "sqlite3"
	cfg.DatabaseName = filepath.Join(t.TempDir(), "fern.db")
	cfg.DatabaseMaxOpenConns = 1
	cfg.DetectionRulesPath = "../../config/detection_rules.example.yaml"

	a := New(cfg, testLogger())
	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(func() { _ = a.Stop(context.Background()) })

	require.IsType(t, &registry.SQLRegistry{}, a.Registry)
	require.NotNil(t, a.Detector)

	ctx := context.Background()
	require.NoError(t, a.Registry.Upsert(ctx, models.ExternalMapping{
		SystemName: "payroll-sheets",
		ExternalID: "emp-1042",
		EntityType: models.EntityKindProvider,
		EntityID:   "prov-123",
	}))
	id, found, err := a.Registry.Lookup(ctx, "payroll-sheets", "emp-1042", models.EntityKindProvider)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "prov-123", id)

	result, ok := a.Detector.Detect(ctx, "Adriane Fontenot - March")
	require.True(t, ok)
	assert.Equal(t, "adriane_fontenot", result.EntityCode)

	checks := a.Health.RunChecks(ctx)
	assert.Contains(t, checks, "database")
	assert.Contains(t, checks, "remote")
}

func TestApp_StartFailsOnBadRuleFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.DetectionRulesPath = filepath.Join(t.TempDir(), "absent.yaml")

	a := New(cfg, testLogger())
	err := a.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dependency 'detection'")
}

func TestApp_StartFailsOnBadExtractExpression(t *testing.T) {
	cfg := testConfig(t)
	cfg.ResolverExtractExpr = "data."

	a := New(cfg, testLogger())
	err := a.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dependency 'invoker'")
	assert.True(t, fernerrors.IsKind(err, fernerrors.KindConfiguration))
}

func TestApp_StartCompilesExtractExpression(t *testing.T) {
	cfg := testConfig(t)
	cfg.ResolverExtractExpr = "[0].id"

	a := New(cfg, testLogger())
	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(func() { _ = a.Stop(context.Background()) })
}
