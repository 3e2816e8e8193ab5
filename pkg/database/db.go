package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

type DB interface {
	BindNamed(query string, arg any) (string, []any, error)
	Close() error
	DriverName() string
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	PingContext(ctx context.Context) error
	QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
	Rebind(query string) string
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	Stats() sql.DBStats
	SQL() *sql.DB
	Flavor() sqlbuilder.Flavor
}

type Config struct {
	Driver          string
	Host            string
	Port            string
	UserName        string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN builds the driver-specific data source name. For sqlite3 Name is the file path.
func (c Config) DSN() string {
	if c.Driver == DriverSQLite {
		return c.Name
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.UserName, c.Password, c.Name, c.SSLMode)
}

type DatabaseInstance struct {
	*sqlx.DB
	logger ectologger.Logger
}

func NewDatabaseInstance(db *sqlx.DB, logger ectologger.Logger) DB {
	return &DatabaseInstance{
		DB:     db,
		logger: logger,
	}
}

// Open connects to the configured database and verifies the connection
func Open(ctx context.Context, cfg Config, logger ectologger.Logger) (DB, error) {
	switch cfg.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sqlx.ConnectContext(ctx, cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %s database", cfg.Driver)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	logger.WithContext(ctx).WithFields(map[string]any{
		"driver":   cfg.Driver,
		"database": cfg.Name,
	}).Info("Connected to database")

	return NewDatabaseInstance(db, logger), nil
}

func (db *DatabaseInstance) SQL() *sql.DB {
	return db.DB.DB
}

// Flavor returns the sqlbuilder flavor matching the driver's placeholder style
func (db *DatabaseInstance) Flavor() sqlbuilder.Flavor {
	return FlavorFor(db.DriverName())
}

func FlavorFor(driver string) sqlbuilder.Flavor {
	if driver == DriverSQLite {
		return sqlbuilder.SQLite
	}
	return sqlbuilder.PostgreSQL
}
