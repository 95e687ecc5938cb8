//go:build wireinject
// +build wireinject

package container

import (
	"time"

	"github.com/google/wire"
	"gorm.io/gorm"

	catalogrepo "github.com/gantryio/gantry/internal/catalog/repository"
	catalogservice "github.com/gantryio/gantry/internal/catalog/service"
	"github.com/gantryio/gantry/internal/config"
	"github.com/gantryio/gantry/pkg/cache"
	"github.com/gantryio/gantry/pkg/events"
	"github.com/gantryio/gantry/pkg/health"
	"github.com/gantryio/gantry/pkg/interfaces"
	"github.com/gantryio/gantry/pkg/repository"
)

func provideDatabase(cfg *config.Config) (*gorm.DB, func(), error) {
	db, err := openDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}
	return db, func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}, nil
}

func provideRepositoryOptions(cfg *config.Config) repository.Options {
	return repository.Options{
		DefaultSort: cfg.API.DefaultSort,
		MaxPageSize: cfg.API.MaxPageSize,
	}
}

func provideCacheTTL(cfg *config.Config) time.Duration {
	return cfg.Cache.TTL
}

func provideHealthChecks(db *gorm.DB) []health.Checker {
	return []health.Checker{health.AppCheck{}, health.NewDatabaseCheck(db)}
}

// InitializeContainer assembles the in-process variant of the graph:
// memory cache and in-memory bus. The config-driven variant is New.
func InitializeContainer(cfg *config.Config, log interfaces.Logger) (*Container, func(), error) {
	wire.Build(
		provideDatabase,
		provideRepositoryOptions,
		provideCacheTTL,
		provideHealthChecks,

		cache.NewMemoryCache,
		wire.Bind(new(interfaces.Cache), new(*cache.MemoryCache)),

		events.NewInMemoryEventBus,
		wire.Bind(new(interfaces.EventBus), new(*events.InMemoryEventBus)),

		catalogrepo.NewAuthorRepository,
		catalogrepo.NewBookRepository,
		catalogrepo.NewAuditRepository,

		catalogservice.NewAuthorService,
		catalogservice.NewBookService,

		wire.Struct(new(Container), "*"),
	)

	return nil, nil, nil
}
