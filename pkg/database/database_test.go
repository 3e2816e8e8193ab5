package database

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/db"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func openSQLite(t *testing.T) DB {
	t.Helper()
	conn, err := Open(context.Background(), Config{
		Driver: DriverSQLite,
		Name:   filepath.Join(t.TempDir(), "fern.db"),
	}, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestMigrate_CreatesExternalMappingsTable(t *testing.T) {
	conn := openSQLite(t)
	svc := NewMigrationService(testLogger(), &MigrationConfig{Migrations: db.Migrations, Dir: db.Dir})

	require.NoError(t, svc.Migrate(DriverSQLite, conn.SQL()))
	// second run is a no-op
	require.NoError(t, svc.Migrate(DriverSQLite, conn.SQL()))

	var count int
	require.NoError(t, conn.GetContext(context.Background(), &count,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'external_mappings'"))
	assert.Equal(t, 1, count)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle"}, testLogger())
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestConfig_DSN(t *testing.T) {
	cfg := Config{Driver: DriverPostgres, Host: "db", Port: "5432", UserName: "fern", Password: "secret", Name: "fern", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=fern password=secret dbname=fern sslmode=disable", cfg.DSN())

	assert.Equal(t, "/tmp/fern.db", Config{Driver: DriverSQLite, Name: "/tmp/fern.db"}.DSN())
}

func TestInsertBuilder_OnConflictUpdate(t *testing.T) {
	ib := NewInsertBuilder(sqlbuilder.PostgreSQL).
		InsertInto("external_mappings").
		Cols("system_name", "external_id", "entity_id").
		Values("sheets", "ext-1", "prov-1").
		OnConflictUpdate([]string{"system_name", "external_id"}, "entity_id")

	query, args := ib.Build()
	assert.Equal(t,
		"INSERT INTO external_mappings (system_name, external_id, entity_id) VALUES ($1, $2, $3) ON CONFLICT (system_name, external_id) DO UPDATE SET entity_id = EXCLUDED.entity_id",
		query)
	assert.Equal(t, []any{"sheets", "ext-1", "prov-1"}, args)
}

func TestFlavorFor(t *testing.T) {
	assert.Equal(t, sqlbuilder.SQLite, FlavorFor(DriverSQLite))
	assert.Equal(t, sqlbuilder.PostgreSQL, FlavorFor(DriverPostgres))
}

func TestLatestVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"m/000001_init.up.sql":    {Data: []byte("SELECT 1;")},
		"m/000001_init.down.sql":  {Data: []byte("SELECT 1;")},
		"m/000003_more.up.sql":    {Data: []byte("SELECT 1;")},
		"m/000002_between.up.sql": {Data: []byte("SELECT 1;")},
		"m/README.md":             {Data: []byte("docs")},
	}

	version, err := latestVersion(fsys, "m")
	require.NoError(t, err)
	assert.Equal(t, 3, version)

	_, err = latestVersion(fstest.MapFS{"m/README.md": {Data: []byte("docs")}}, "m")
	assert.Error(t, err)
}
