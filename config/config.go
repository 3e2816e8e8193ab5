package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/Ramsey-B/fern/pkg/database"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/invoker"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/registry"
	"github.com/Ramsey-B/fern/pkg/resolver"
	"github.com/Ramsey-B/fern/pkg/tracing/exporters"
	"github.com/Ramsey-B/fern/pkg/validation"
)

const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
	CacheBackendNone   = "none"

	RegistryBackendRemote = "remote"
	RegistryBackendSQL    = "sql"
)

type Config struct {
	AppName                       string `env:"APP_NAME" env-default:"fern"`
	Port                          int    `env:"PORT" env-default:"3000" validate:"min=1,max=65535"`
	LogLevel                      string `env:"LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`
	PrettyLogs                    bool   `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int    `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"60"`
	HttpServerReadTimeoutSeconds  int    `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int    `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	ReadHeaderTimeoutSeconds      int    `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int    `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	StartupMaxAttempts            int    `env:"STARTUP_MAX_ATTEMPTS" env-default:"5" validate:"min=1"`

	// Remote data service base URL
	RemoteBaseURL string `env:"REMOTE_BASE_URL" env-default:""`
	// Remote data service token, sent as bearer and apikey
	RemoteToken string `env:"REMOTE_TOKEN" env-default:""`
	// Path of the stored function endpoint
	RemoteRPCPath string `env:"REMOTE_RPC_PATH" env-default:"/rest/v1/rpc"`
	// Transport timeout of a single remote call
	RemoteTimeout time.Duration `env:"REMOTE_TIMEOUT" env-default:"30s"`

	// Stored function names
	ClinicFunction        string `env:"FUNCTION_RESOLVE_CLINIC" env-default:"resolve_clinic_by_code"`
	ProviderFunction      string `env:"FUNCTION_RESOLVE_PROVIDER" env-default:"resolve_provider_by_code"`
	LocationFunction      string `env:"FUNCTION_RESOLVE_LOCATION" env-default:"resolve_location_by_code"`
	MappingLookupFunction string `env:"FUNCTION_MAPPING_LOOKUP" env-default:"resolve_by_external_mapping"`
	MappingUpsertFunction string `env:"FUNCTION_MAPPING_UPSERT" env-default:"upsert_external_mapping"`
	MappingListFunction   string `env:"FUNCTION_MAPPING_LIST" env-default:"list_external_mappings"`
	ResolverExtractExpr   string `env:"RESOLVER_EXTRACT" env-default:""`

	// Retry settings. MaxAttempts counts the first attempt.
	RetryMaxAttempts  int           `env:"RETRY_MAX_ATTEMPTS" env-default:"3" validate:"min=1"`
	RetryBaseDelay    time.Duration `env:"RETRY_BASE_DELAY" env-default:"1s"`
	SlowCallThreshold time.Duration `env:"SLOW_CALL_THRESHOLD" env-default:"3s"`

	// Cache backend: memory, redis or none
	CacheBackend string        `env:"CACHE_BACKEND" env-default:"memory" validate:"oneof=memory redis none"`
	CacheTTL     time.Duration `env:"CACHE_TTL" env-default:"5m"`

	// Redis host
	RedisHost string `env:"REDIS_HOST" env-default:"localhost"`
	// Redis port
	RedisPort int `env:"REDIS_PORT" env-default:"6379"`
	// Redis password
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	// Redis database number
	RedisDB int `env:"REDIS_DB" env-default:"0"`

	// Registry backend: remote stored functions or a local SQL table
	RegistryBackend string `env:"REGISTRY_BACKEND" env-default:"remote" validate:"oneof=remote sql"`

	// Database driver (postgres or sqlite3)
	DatabaseDriver string `env:"DB_DRIVER" env-default:"postgres" validate:"oneof=postgres sqlite3"`
	// Database host
	DatabaseHost string `env:"DB_HOST" env-default:""`
	// Database port
	DatabasePort string `env:"DB_PORT" env-default:"5432"`
	// Database user
	DatabaseUserName string `env:"DB_USER_NAME" env-default:""`
	// Database user password
	DatabasePassword string `env:"DB_PASSWORD" env-default:""`
	// Database name, or the file path for sqlite3
	DatabaseName string `env:"DB_NAME" env-default:"fern"`
	// Database SSL mode
	DatabaseSSLMode string `env:"DB_SSL_MODE" env-default:"disable"`
	// Max Open Conns
	DatabaseMaxOpenConns int `env:"DB_MAX_OPEN_CONNS" env-default:"10"`
	// Max Idle Conns
	DatabaseMaxIdleConns int `env:"DB_MAX_IDLE_CONNS" env-default:"5"`
	// Conn Max Lifetime
	DatabaseConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10m"`
	// Apply embedded migrations at startup
	DatabaseAutoMigrate bool `env:"DB_AUTO_MIGRATE" env-default:"true"`
	// Database Migration Version, 0 means latest
	DatabaseMigrationVersion uint `env:"DB_MIGRATION_VERSION" env-default:"0"`
	// Database Migration Force
	DatabaseMigrationForce int `env:"DB_MIGRATION_FORCE" env-default:"0"`
	// Database Migration Auto Rollback
	DatabaseMigrationAutoRollback bool `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Detection rule file. Empty disables detection.
	DetectionRulesPath string `env:"DETECTION_RULES_PATH" env-default:""`

	// Kafka brokers (comma-separated). Empty disables assembly events.
	KafkaBrokers string `env:"KAFKA_BROKERS" env-default:""`
	// Kafka topic for assembly lifecycle events
	KafkaAssemblyTopic string `env:"KAFKA_ASSEMBLY_TOPIC" env-default:"fern.assemblies"`

	// Enable OTLP tracing export
	OTLPEnabled bool `env:"OTLP_ENABLED" env-default:"false"`
	// OTLP collector endpoint
	OTLPEndpoint string `env:"OTLP_ENDPOINT" env-default:"localhost:4317"`
	// OTLP protocol (grpc or http)
	OTLPProtocol string `env:"OTLP_PROTOCOL" env-default:"grpc" validate:"oneof=grpc http"`
	// Disable TLS for OTLP (for local development)
	OTLPInsecure bool `env:"OTLP_INSECURE" env-default:"true"`

	// Auth Enabled - when false the HTTP API is unauthenticated
	AuthEnabled bool `env:"AUTH_ENABLED" env-default:"false"`
	// Auth Issuer URL
	AuthIssuerURL string `env:"AUTH_ISSUER_URL" env-default:"" validate:"required_if=AuthEnabled true"`
	// Auth Client ID
	AuthClientID string `env:"AUTH_CLIENT_ID" env-default:"" validate:"required_if=AuthEnabled true"`
}

// Load reads an optional .env file and the environment into a validated Config
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fernerrors.NewConfigurationError("failed to read env file: %v", err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fernerrors.NewConfigurationError("failed to read configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the struct rules of the configuration
func (c Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return fernerrors.NewConfigurationError("invalid configuration: %v", err)
	}
	return nil
}

// Connection returns the remote service connection. ok is false when the URL or token is missing.
func (c Config) Connection() (models.Connection, bool) {
	conn := models.Connection{BaseURL: c.RemoteBaseURL, Token: c.RemoteToken}
	return conn, !conn.Empty()
}

func (c Config) InvokerConfig() invoker.Config {
	return invoker.Config{
		RPCPath:           c.RemoteRPCPath,
		MaxAttempts:       c.RetryMaxAttempts,
		BaseDelay:         c.RetryBaseDelay,
		SlowCallThreshold: c.SlowCallThreshold,
		CacheTTL:          c.CacheTTL,
	}
}

func (c Config) HTTPClientConfig() httpclient.Config {
	cfg := httpclient.DefaultConfig()
	if c.RemoteTimeout > 0 {
		cfg.Timeout = c.RemoteTimeout
	}
	return cfg
}

func (c Config) ResolverOptions() map[models.EntityKind]resolver.Options {
	return map[models.EntityKind]resolver.Options{
		models.EntityKindClinic:   {Function: c.ClinicFunction, Extract: c.ResolverExtractExpr},
		models.EntityKindProvider: {Function: c.ProviderFunction, Extract: c.ResolverExtractExpr},
		models.EntityKindLocation: {Function: c.LocationFunction, Extract: c.ResolverExtractExpr},
	}
}

func (c Config) RegistryFunctions() registry.Functions {
	return registry.Functions{
		Upsert: c.MappingUpsertFunction,
		Lookup: c.MappingLookupFunction,
		List:   c.MappingListFunction,
	}
}

func (c Config) RedisConfig() redis.Config {
	return redis.Config{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

func (c Config) DatabaseConfig() database.Config {
	return database.Config{
		Driver:          c.DatabaseDriver,
		Host:            c.DatabaseHost,
		Port:            c.DatabasePort,
		UserName:        c.DatabaseUserName,
		Password:        c.DatabasePassword,
		Name:            c.DatabaseName,
		SSLMode:         c.DatabaseSSLMode,
		MaxOpenConns:    c.DatabaseMaxOpenConns,
		MaxIdleConns:    c.DatabaseMaxIdleConns,
		ConnMaxLifetime: c.DatabaseConnMaxLifetime,
	}
}

func (c Config) MigrationConfig(migrations fs.FS, dir string) *database.MigrationConfig {
	return &database.MigrationConfig{
		Migrations:   migrations,
		Dir:          dir,
		Version:      c.DatabaseMigrationVersion,
		Force:        c.DatabaseMigrationForce,
		AutoRollback: c.DatabaseMigrationAutoRollback,
	}
}

func (c Config) EventsConfig() events.Config {
	return events.ParseConfig(c.KafkaBrokers, c.KafkaAssemblyTopic)
}

func (c Config) OTLPConfig() exporters.OTLPConfig {
	return exporters.OTLPConfig{
		Endpoint: c.OTLPEndpoint,
		Protocol: c.OTLPProtocol,
		Insecure: c.OTLPInsecure,
	}
}

func (c Config) ServerTimeouts() (read, write, idle, readHeader time.Duration) {
	return time.Duration(c.HttpServerReadTimeoutSeconds) * time.Second,
		time.Duration(c.HttpServerWriteTimeoutSeconds) * time.Second,
		time.Duration(c.HttpServerIdleTimeoutSeconds) * time.Second,
		time.Duration(c.ReadHeaderTimeoutSeconds) * time.Second
}
