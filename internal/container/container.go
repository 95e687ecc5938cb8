package container

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	catalogrepo "github.com/gantryio/gantry/internal/catalog/repository"
	catalogservice "github.com/gantryio/gantry/internal/catalog/service"
	"github.com/gantryio/gantry/internal/config"
	"github.com/gantryio/gantry/internal/infrastructure/events/kafka"
	"github.com/gantryio/gantry/internal/infrastructure/events/nats"
	"github.com/gantryio/gantry/pkg/cache"
	"github.com/gantryio/gantry/pkg/database"
	"github.com/gantryio/gantry/pkg/events"
	"github.com/gantryio/gantry/pkg/filters"
	"github.com/gantryio/gantry/pkg/health"
	"github.com/gantryio/gantry/pkg/interfaces"
	"github.com/gantryio/gantry/pkg/repository"
)

// Container holds the assembled object graph of the catalog service.
// The HTTP surface and the worker both build from it; they differ only
// in which parts they reach for.
type Container struct {
	Config *config.Config
	Logger interfaces.Logger
	DB     *gorm.DB
	Cache  interfaces.Cache
	Bus    interfaces.EventBus

	AuthorRepo *catalogrepo.AuthorRepository
	BookRepo   *catalogrepo.BookRepository
	AuditRepo  *catalogrepo.AuditRepository

	Authors *catalogservice.AuthorService
	Books   *catalogservice.BookService

	Checks []health.Checker
}

// New assembles the service graph for the configured backends. The
// returned cleanup releases every held connection and must run on
// shutdown, after the bus has been stopped.
func New(ctx context.Context, cfg *config.Config, log interfaces.Logger) (*Container, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	cleanups = append(cleanups, func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	checks := []health.Checker{health.AppCheck{}, health.NewDatabaseCheck(db)}

	appCache, redisCache, cacheCleanup, err := buildCache(ctx, cfg, log)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("build cache: %w", err)
	}
	if cacheCleanup != nil {
		cleanups = append(cleanups, cacheCleanup)
	}
	if redisCache != nil {
		checks = append(checks, health.NewRedisCheck(redisCache))
	}

	bus, busCleanup, err := buildBus(cfg, log)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("build event bus: %w", err)
	}
	if busCleanup != nil {
		cleanups = append(cleanups, busCleanup)
	}

	opts := repository.Options{
		DefaultSort: cfg.API.DefaultSort,
		MaxPageSize: cfg.API.MaxPageSize,
	}
	authorRepo := catalogrepo.NewAuthorRepository(db, opts)
	bookRepo := catalogrepo.NewBookRepository(db, opts)
	auditRepo := catalogrepo.NewAuditRepository(db, opts)

	authors := catalogservice.NewAuthorService(authorRepo, bus, appCache, cfg.Cache.TTL, log)
	books := catalogservice.NewBookService(bookRepo, authorRepo, bus, appCache, cfg.Cache.TTL, log)

	return &Container{
		Config:     cfg,
		Logger:     log,
		DB:         db,
		Cache:      appCache,
		Bus:        bus,
		AuthorRepo: authorRepo,
		BookRepo:   bookRepo,
		AuditRepo:  auditRepo,
		Authors:    authors,
		Books:      books,
		Checks:     checks,
	}, cleanup, nil
}

// FilterDefaults returns the query-parsing defaults for the configured
// page sizes.
func (c *Container) FilterDefaults() filters.Defaults {
	return filters.Defaults{
		PageSize:    c.Config.API.DefaultPageSize,
		MaxPageSize: c.Config.API.MaxPageSize,
	}
}

// AppInfo returns the identity block health reports carry.
func (c *Container) AppInfo() health.AppInfo {
	return health.AppInfo{
		Name:        c.Config.App.Name,
		Version:     c.Config.App.Version,
		Environment: c.Config.App.Environment,
	}
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	pg := database.DefaultPostgresConfig()
	pg.Host = cfg.Database.Host
	pg.Port = cfg.Database.Port
	pg.User = cfg.Database.User
	pg.Password = cfg.Database.Password
	pg.Database = cfg.Database.Database
	pg.SSLMode = cfg.Database.SSLMode
	pg.MaxConnections = cfg.Database.MaxOpenConns
	pg.MinConnections = cfg.Database.MaxIdleConns
	pg.MaxConnLifetime = cfg.Database.MaxLifetime
	return database.NewGormDB(pg)
}

// buildCache returns the configured cache backend. The Redis handle is
// returned separately so the health probe can ping it.
func buildCache(ctx context.Context, cfg *config.Config, log interfaces.Logger) (interfaces.Cache, *cache.RedisCache, func(), error) {
	switch cfg.Cache.Backend {
	case config.BackendRedis:
		client, err := cache.NewRedisClient(ctx, cache.RedisOptions{
			Addr:         cfg.Redis.Addr(),
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		redisCache := cache.NewRedisCache(client, cfg.App.Slug)
		return redisCache, redisCache, func() { client.Close() }, nil
	case config.BackendMemory:
		return cache.NewMemoryCache(), nil, nil, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

// buildBus returns the configured event bus. Stopping the bus is the
// caller's job; the cleanup only covers connections the bus does not
// own.
func buildBus(cfg *config.Config, log interfaces.Logger) (interfaces.EventBus, func(), error) {
	switch cfg.Events.Backend {
	case config.BackendNATS:
		client, clientCleanup, err := nats.NewClient(cfg.Events.NATS, log)
		if err != nil {
			return nil, nil, err
		}
		return nats.NewEventBus(client, cfg.Events.NATS.ConsumerName, log), clientCleanup, nil
	case config.BackendKafka:
		bus, err := kafka.NewEventBus(cfg.Events.Kafka, log)
		if err != nil {
			return nil, nil, err
		}
		return bus, nil, nil
	case config.BackendMemory:
		return events.NewInMemoryEventBus(log), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown events backend %q", cfg.Events.Backend)
	}
}
