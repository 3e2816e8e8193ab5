package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
)

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "fern", cfg.AppName)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "/rest/v1/rpc", cfg.RemoteRPCPath)
	assert.Equal(t, 3, cfg.RetryMaxAttempts)
	assert.Equal(t, time.Second, cfg.RetryBaseDelay)
	assert.Equal(t, 3*time.Second, cfg.SlowCallThreshold)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, CacheBackendMemory, cfg.CacheBackend)
	assert.Equal(t, RegistryBackendRemote, cfg.RegistryBackend)
	assert.False(t, cfg.EventsConfig().Enabled())

	_, ok := cfg.Connection()
	assert.False(t, ok)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("REMOTE_BASE_URL", "https://data.example.com")
	t.Setenv("REMOTE_TOKEN", "service-token")
	t.Setenv("RETRY_MAX_ATTEMPTS", "5")
	t.Setenv("RETRY_BASE_DELAY", "250ms")
	t.Setenv("CACHE_BACKEND", "redis")
	t.Setenv("FUNCTION_RESOLVE_PROVIDER", "provider_by_code_v2")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")

	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)

	conn, ok := cfg.Connection()
	require.True(t, ok)
	assert.Equal(t, models.Connection{BaseURL: "https://data.example.com", Token: "service-token"}, conn)

	inv := cfg.InvokerConfig()
	assert.Equal(t, 5, inv.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, inv.BaseDelay)

	assert.Equal(t, "provider_by_code_v2", cfg.ResolverOptions()[models.EntityKindProvider].Function)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.EventsConfig().Brokers)
	assert.True(t, cfg.EventsConfig().Enabled())
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PORT=4100\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("PORT") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4100, cfg.Port)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown cache backend", env: map[string]string{"CACHE_BACKEND": "memcached"}},
		{name: "zero attempts", env: map[string]string{"RETRY_MAX_ATTEMPTS": "0"}},
		{name: "auth without issuer", env: map[string]string{"AUTH_ENABLED": "true", "AUTH_CLIENT_ID": "fern"}},
		{name: "unknown registry backend", env: map[string]string{"REGISTRY_BACKEND": "graph"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(missingEnvFile(t))
			require.Error(t, err)
			assert.True(t, fernerrors.IsKind(err, fernerrors.KindConfiguration))
		})
	}
}

func TestConfig_DatabaseConfig(t *testing.T) {
	cfg := Config{DatabaseDriver: "sqlite3", DatabaseName: "/tmp/fern.db", DatabaseMaxOpenConns: 1}
	db := cfg.DatabaseConfig()
	assert.Equal(t, "/tmp/fern.db", db.DSN())
	assert.Equal(t, 1, db.MaxOpenConns)
}
