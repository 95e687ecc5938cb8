package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/gantryio/gantry/pkg/events"
	"github.com/gantryio/gantry/pkg/filters"
	"github.com/gantryio/gantry/pkg/interfaces"
	"github.com/gantryio/gantry/pkg/logger"
)

// Entity constrains a service's entity pointer to expose its identifier.
// Every catalog entity satisfies it by embedding models.Model.
type Entity[T any] interface {
	*T
	GetID() uuid.UUID
}

// Hooks carry the optional extension points a domain service can attach
// around repository calls. A hook error short-circuits the operation;
// repository errors always propagate unchanged.
type Hooks[T any] struct {
	BeforeCreate  func(ctx context.Context, entity *T) error
	AfterCreate   func(ctx context.Context, entity *T) error
	BeforeUpdate  func(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	AfterUpdate   func(ctx context.Context, entity *T) error
	BeforeDelete  func(ctx context.Context, id uuid.UUID) error
	AfterDelete   func(ctx context.Context, entity *T) error
	AuthorizeList func(ctx context.Context, fs []filters.Filter) error
}

// Config assembles a generic service.
type Config[T any] struct {
	// Kind names the entity in events and cache keys, e.g. "author".
	Kind string

	// Repo is the single repository the service orchestrates.
	Repo interfaces.Repository[T]

	// Hooks are the optional extension points.
	Hooks Hooks[T]

	// Bus receives entity lifecycle events after successful mutations.
	// Nil disables publication.
	Bus interfaces.EventBus

	// Cache backs read-through caching on Get. Nil or a non-positive
	// CacheTTL disables it.
	Cache    interfaces.Cache
	CacheTTL time.Duration

	Logger interfaces.Logger
}

// Service orchestrates exactly one repository and exposes the same verbs
// to transport handlers.
//
// Every method yields the identical outcome as the underlying repository
// call unless a hook short-circuits with its own error first. The service
// stages changes through the repository and never resolves the request
// transaction; after successful mutations it publishes a lifecycle event,
// and publication failure is logged, never surfaced.
type Service[T any, PT Entity[T]] struct {
	kind     string
	repo     interfaces.Repository[T]
	hooks    Hooks[T]
	bus      interfaces.EventBus
	cache    interfaces.Cache
	cacheTTL time.Duration
	logger   interfaces.Logger
}

// New creates a generic service from cfg.
func New[T any, PT Entity[T]](cfg Config[T]) *Service[T, PT] {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNoop()
	}
	return &Service[T, PT]{
		kind:     cfg.Kind,
		repo:     cfg.Repo,
		hooks:    cfg.Hooks,
		bus:      cfg.Bus,
		cache:    cfg.Cache,
		cacheTTL: cfg.CacheTTL,
		logger:   log,
	}
}

// Create persists a new entity and publishes a created event.
func (s *Service[T, PT]) Create(ctx context.Context, entity *T) (*T, error) {
	if s.hooks.BeforeCreate != nil {
		if err := s.hooks.BeforeCreate(ctx, entity); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Create(ctx, entity); err != nil {
		return nil, err
	}

	if s.hooks.AfterCreate != nil {
		if err := s.hooks.AfterCreate(ctx, entity); err != nil {
			return nil, err
		}
	}

	s.publish(ctx, events.OperationCreated, entity)
	return entity, nil
}

// Get retrieves an entity by ID, serving repeated reads from the cache.
func (s *Service[T, PT]) Get(ctx context.Context, id uuid.UUID) (*T, error) {
	cacheKey := s.cacheKey(id)
	if s.cacheEnabled() {
		if cached, err := s.cache.Get(ctx, cacheKey); err == nil && cached != nil {
			// In-process backends hand the stored pointer back; Redis
			// hands back the JSON bytes it persisted.
			switch v := cached.(type) {
			case *T:
				return v, nil
			case []byte:
				entity := new(T)
				if err := json.Unmarshal(v, entity); err == nil {
					return entity, nil
				}
			}
		}
	}

	entity, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cacheEnabled() {
		if err := s.cache.Set(ctx, cacheKey, entity, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache entity",
				interfaces.String("kind", s.kind),
				interfaces.String("id", id.String()),
				interfaces.Error(err))
		}
	}
	return entity, nil
}

// Update applies a partial update and publishes an updated event.
func (s *Service[T, PT]) Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (*T, error) {
	if s.hooks.BeforeUpdate != nil {
		if err := s.hooks.BeforeUpdate(ctx, id, fields); err != nil {
			return nil, err
		}
	}

	entity, err := s.repo.Update(ctx, id, fields)
	if err != nil {
		return nil, err
	}

	if s.hooks.AfterUpdate != nil {
		if err := s.hooks.AfterUpdate(ctx, entity); err != nil {
			return nil, err
		}
	}

	s.publish(ctx, events.OperationUpdated, entity)
	return entity, nil
}

// Delete removes an entity, returns its prior state and publishes a
// deleted event.
func (s *Service[T, PT]) Delete(ctx context.Context, id uuid.UUID) (*T, error) {
	if s.hooks.BeforeDelete != nil {
		if err := s.hooks.BeforeDelete(ctx, id); err != nil {
			return nil, err
		}
	}

	entity, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.hooks.AfterDelete != nil {
		if err := s.hooks.AfterDelete(ctx, entity); err != nil {
			return nil, err
		}
	}

	s.publish(ctx, events.OperationDeleted, entity)
	return entity, nil
}

// List retrieves entities matching the given filters.
func (s *Service[T, PT]) List(ctx context.Context, fs ...filters.Filter) ([]*T, error) {
	if s.hooks.AuthorizeList != nil {
		if err := s.hooks.AuthorizeList(ctx, fs); err != nil {
			return nil, err
		}
	}
	return s.repo.List(ctx, fs...)
}

// ListAndCount retrieves one page of entities and the total matching the
// non-pagination filters.
func (s *Service[T, PT]) ListAndCount(ctx context.Context, fs ...filters.Filter) ([]*T, int64, error) {
	if s.hooks.AuthorizeList != nil {
		if err := s.hooks.AuthorizeList(ctx, fs); err != nil {
			return nil, 0, err
		}
	}
	return s.repo.ListAndCount(ctx, fs...)
}

// Count returns the number of entities matching the non-pagination filters.
func (s *Service[T, PT]) Count(ctx context.Context, fs ...filters.Filter) (int64, error) {
	if s.hooks.AuthorizeList != nil {
		if err := s.hooks.AuthorizeList(ctx, fs); err != nil {
			return 0, err
		}
	}
	return s.repo.Count(ctx, fs...)
}

// Exists reports whether an entity with the given ID exists.
func (s *Service[T, PT]) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	return s.repo.Exists(ctx, id)
}

// Kind returns the entity kind the service manages.
func (s *Service[T, PT]) Kind() string {
	return s.kind
}

func (s *Service[T, PT]) cacheEnabled() bool {
	return s.cache != nil && s.cacheTTL > 0
}

func (s *Service[T, PT]) cacheKey(id uuid.UUID) string {
	return CacheKey(s.kind, id)
}

// CacheKey is the cache key under which an entity read is stored. Cache
// invalidation consumes lifecycle events, so eviction must derive the
// same key from the event alone.
func CacheKey(kind string, id uuid.UUID) string {
	return kind + ":" + id.String()
}

// publish emits a lifecycle event for entity. Delivery is asynchronous and
// detached from the request context so it is not cut short when the
// response goes out.
func (s *Service[T, PT]) publish(ctx context.Context, op events.Operation, entity *T) {
	if s.bus == nil {
		return
	}
	event := events.NewEntityEvent(s.kind, op, PT(entity).GetID(), entity)
	s.bus.PublishAsync(context.WithoutCancel(ctx), event)
}
