package container

import (
	"context"
	"fmt"

	catalogevents "github.com/gantryio/gantry/internal/catalog/events"
)

// SetupEventConsumers subscribes the worker-side handlers and starts
// consumption. The audit trail listens to every lifecycle event; cache
// eviction only acts on updates and deletes but subscribes to the full
// set and filters inside.
func SetupEventConsumers(ctx context.Context, c *Container) error {
	auditLogger := catalogevents.NewAuditLogger(c.AuditRepo, c.Logger)
	if err := catalogevents.SubscribeAll(c.Bus, auditLogger); err != nil {
		return fmt.Errorf("subscribe audit logger: %w", err)
	}

	invalidator := catalogevents.NewCacheInvalidator(c.Cache, c.Logger)
	if err := catalogevents.SubscribeAll(c.Bus, invalidator); err != nil {
		return fmt.Errorf("subscribe cache invalidator: %w", err)
	}

	if err := c.Bus.Start(ctx); err != nil {
		return fmt.Errorf("start event bus: %w", err)
	}

	c.Logger.Info("event consumers started")
	return nil
}
