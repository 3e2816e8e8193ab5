// Package app wires configuration into the running resolution services.
// The CLI and the HTTP server share one App.
package app

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/db"
	"github.com/Ramsey-B/fern/pkg/cache"
	"github.com/Ramsey-B/fern/pkg/credentials"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/detection"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/health"
	"github.com/Ramsey-B/fern/pkg/host"
	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/invoker"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/registry"
	"github.com/Ramsey-B/fern/pkg/resolver"
	"github.com/Ramsey-B/fern/pkg/startup"
)

// Version is stamped at build time
var Version = "dev"

type App struct {
	Config      config.Config
	Logger      ectologger.Logger
	Connections host.ConnectionSource
	Invoker     *invoker.Invoker
	Resolvers   resolver.Set
	Registry    registry.Registry
	// Detector is nil when no rule file is configured
	Detector  *detection.Detector
	Publisher events.Publisher
	Assembler *credentials.Assembler
	Health    *health.Checker

	store   cache.Store
	redis   *redis.Client
	db      database.DB
	startup *startup.Startup
}

func New(cfg config.Config, logger ectologger.Logger) *App {
	a := &App{
		Config: cfg,
		Logger: logger,
		Connections: host.ConnectionFunc(func(context.Context) (models.Connection, bool) {
			return cfg.Connection()
		}),
		Publisher: events.NoopPublisher{},
		Health:    health.NewChecker(Version),
		store:     cache.NoopStore{},
		startup:   startup.NewStartup(logger, cfg.StartupMaxAttempts),
	}
	a.Health.AddCheck("remote", health.ConnectionCheck(a.Connections))
	a.registerDependencies()
	return a
}

func (a *App) registerDependencies() {
	cfg := a.Config
	cacheRequires := []string{}

	if cfg.CacheBackend == config.CacheBackendRedis {
		cacheRequires = append(cacheRequires, "redis")
		a.startup.AddDependency(startup.Func{
			Name: "redis",
			StartFunc: func(ctx context.Context) error {
				client, err := redis.NewClient(ctx, cfg.RedisConfig(), a.Logger)
				if err != nil {
					return err
				}
				a.redis = client
				// cache failures degrade to misses, so Redis never makes the service unhealthy
				a.Health.AddOptionalCheck("redis", health.RedisCheck(client))
				return nil
			},
			StopFunc: func(context.Context) error { return a.redis.Close() },
		})
	}

	a.startup.AddDependency(startup.Func{
		Name:     "cache",
		Requires: cacheRequires,
		StartFunc: func(context.Context) error {
			switch cfg.CacheBackend {
			case config.CacheBackendRedis:
				a.store = cache.Safe(cache.NewRedisStore(a.redis), a.Logger)
			case config.CacheBackendMemory:
				a.store = cache.Safe(cache.NewMemoryStore(), a.Logger)
			default:
				a.store = cache.NoopStore{}
			}
			return nil
		},
	})

	registryRequires := []string{"invoker"}
	if cfg.RegistryBackend == config.RegistryBackendSQL {
		registryRequires = append(registryRequires, "database")
		a.startup.AddDependency(startup.Func{
			Name:      "database",
			StartFunc: a.startDatabase,
			StopFunc:  func(context.Context) error { return a.db.Close() },
		})
	}

	a.startup.AddDependency(startup.Func{
		Name:     "invoker",
		Requires: []string{"cache"},
		StartFunc: func(context.Context) error {
			client := httpclient.NewClient(cfg.HTTPClientConfig(), a.Logger)
			a.Invoker = invoker.New(client, a.store, cfg.InvokerConfig(), a.Logger)
			if cfg.ResolverExtractExpr != "" {
				if err := a.Invoker.CompileExpression(cfg.ResolverExtractExpr); err != nil {
					return err
				}
			}
			a.Resolvers = resolver.NewSet(a.Invoker, a.Connections, cfg.ResolverOptions(), a.Logger)
			return nil
		},
	})

	a.startup.AddDependency(startup.Func{
		Name:     "registry",
		Requires: registryRequires,
		StartFunc: func(context.Context) error {
			if cfg.RegistryBackend == config.RegistryBackendSQL {
				a.Registry = registry.NewSQLRegistry(a.db, a.Logger)
				return nil
			}
			a.Registry = registry.NewRemoteRegistry(a.Invoker, a.Connections, cfg.RegistryFunctions(), a.Logger)
			return nil
		},
	})

	if cfg.DetectionRulesPath != "" {
		a.startup.AddDependency(startup.Func{
			Name: "detection",
			StartFunc: func(context.Context) error {
				set, err := detection.LoadRules(cfg.DetectionRulesPath)
				if err != nil {
					return err
				}
				a.Detector, err = detection.NewDetector(set, a.Logger)
				if err != nil {
					return err
				}
				rules, groups := a.Detector.Rules()
				a.Logger.Infof("Loaded %d detection rules and %d column groups from %s", rules, groups, cfg.DetectionRulesPath)
				return nil
			},
		})
	}

	if eventsCfg := cfg.EventsConfig(); eventsCfg.Enabled() {
		a.startup.AddDependency(startup.Func{
			Name: "events",
			StartFunc: func(context.Context) error {
				a.Publisher = events.NewKafkaPublisher(eventsCfg, a.Logger)
				return nil
			},
			StopFunc: func(context.Context) error { return a.Publisher.Close() },
		})
	}

	assemblerRequires := []string{"invoker", "registry"}
	if cfg.DetectionRulesPath != "" {
		assemblerRequires = append(assemblerRequires, "detection")
	}
	if cfg.EventsConfig().Enabled() {
		assemblerRequires = append(assemblerRequires, "events")
	}
	a.startup.AddDependency(startup.Func{
		Name:     "assembler",
		Requires: assemblerRequires,
		StartFunc: func(context.Context) error {
			deps := credentials.Dependencies{
				Connections: a.Connections,
				Resolvers:   a.Resolvers,
				Registry:    a.Registry,
				Publisher:   a.Publisher,
				Logger:      a.Logger,
			}
			if a.Detector != nil {
				deps.Detector = a.Detector
			}
			a.Assembler = credentials.NewAssembler(deps)
			return nil
		},
	})
}

func (a *App) startDatabase(ctx context.Context) error {
	cfg := a.Config
	conn, err := database.Open(ctx, cfg.DatabaseConfig(), a.Logger)
	if err != nil {
		return err
	}
	if cfg.DatabaseAutoMigrate {
		migrations := database.NewMigrationService(a.Logger, cfg.MigrationConfig(db.Migrations, db.Dir))
		if err := migrations.Migrate(cfg.DatabaseDriver, conn.SQL()); err != nil {
			_ = conn.Close()
			return err
		}
	}
	a.db = conn
	a.Health.AddCheck("database", health.DatabaseCheck(conn))
	return nil
}

// Start brings up every configured dependency, retrying with fibonacci backoff
func (a *App) Start(ctx context.Context) error {
	return a.startup.Start(ctx)
}

// Stop releases connections in reverse start order
func (a *App) Stop(ctx context.Context) error {
	return a.startup.Stop(ctx)
}
