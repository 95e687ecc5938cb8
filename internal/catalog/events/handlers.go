package events

import (
	"context"
	"fmt"

	catalogrepo "github.com/gantryio/gantry/internal/catalog/repository"
	"github.com/gantryio/gantry/pkg/events"
	"github.com/gantryio/gantry/pkg/interfaces"
	"github.com/gantryio/gantry/pkg/models"
	"github.com/gantryio/gantry/pkg/service"
)

// Kinds lists the entity kinds whose lifecycle events the worker consumes.
var Kinds = []string{"author", "book"}

var operations = []events.Operation{
	events.OperationCreated,
	events.OperationUpdated,
	events.OperationDeleted,
}

// SubscribeAll registers handler for every lifecycle event of every
// catalog kind.
func SubscribeAll(bus interfaces.EventBus, handler interfaces.EventHandler) error {
	for _, kind := range Kinds {
		for _, op := range operations {
			if err := bus.Subscribe(kind+"."+string(op), handler); err != nil {
				return fmt.Errorf("subscribe %s to %s.%s: %w", handler.EventType(), kind, op, err)
			}
		}
	}
	return nil
}

// AuditLogger appends an audit row for every entity lifecycle event. It
// is the only writer of audit entries; request handlers never touch the
// table.
type AuditLogger struct {
	repo   *catalogrepo.AuditRepository
	logger interfaces.Logger
}

// NewAuditLogger creates the audit trail handler.
func NewAuditLogger(repo *catalogrepo.AuditRepository, logger interfaces.Logger) *AuditLogger {
	return &AuditLogger{repo: repo, logger: logger}
}

// EventType identifies the handler in subscription logs.
func (a *AuditLogger) EventType() string {
	return "audit-logger"
}

// Handle records the lifecycle change carried by event.
func (a *AuditLogger) Handle(ctx context.Context, event interfaces.Event) error {
	entity, ok := event.(*events.EntityEvent)
	if !ok {
		return fmt.Errorf("audit logger received unexpected event %T", event)
	}

	entry := &models.AuditEntry{
		EntityKind: entity.Kind,
		EntityID:   entity.EntityID,
		Operation:  string(entity.Operation),
		Payload:    string(entity.Payload),
		OccurredAt: entity.OccurredAt,
	}
	if err := a.repo.Create(ctx, entry); err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}

	a.logger.Debug("audit entry recorded",
		interfaces.String("entity_kind", entry.EntityKind),
		interfaces.String("entity_id", entry.EntityID.String()),
		interfaces.String("operation", entry.Operation))
	return nil
}

// CacheInvalidator evicts cached reads when the underlying entity
// changes. A created entity has never been read, so only updates and
// deletes evict.
type CacheInvalidator struct {
	cache  interfaces.Cache
	logger interfaces.Logger
}

// NewCacheInvalidator creates the eviction handler.
func NewCacheInvalidator(cache interfaces.Cache, logger interfaces.Logger) *CacheInvalidator {
	return &CacheInvalidator{cache: cache, logger: logger}
}

// EventType identifies the handler in subscription logs.
func (ci *CacheInvalidator) EventType() string {
	return "cache-invalidator"
}

// Handle drops the cache entry for the changed entity.
func (ci *CacheInvalidator) Handle(ctx context.Context, event interfaces.Event) error {
	entity, ok := event.(*events.EntityEvent)
	if !ok {
		return fmt.Errorf("cache invalidator received unexpected event %T", event)
	}
	if entity.Operation == events.OperationCreated {
		return nil
	}

	key := service.CacheKey(entity.Kind, entity.EntityID)
	if err := ci.cache.Delete(ctx, key); err != nil {
		return fmt.Errorf("evict %s: %w", key, err)
	}

	ci.logger.Debug("cache entry evicted", interfaces.String("key", key))
	return nil
}
