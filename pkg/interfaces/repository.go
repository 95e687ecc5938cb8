package interfaces

import (
	"context"

	"github.com/google/uuid"

	"github.com/gantryio/gantry/pkg/filters"
)

// Repository defines a generic repository interface over audited entities.
//
// Implementations stage changes into the session bound to the request
// context and never commit or roll back themselves.
type Repository[T any] interface {
	// Create persists a new entity, assigning its ID and audit
	// timestamps when unset
	Create(ctx context.Context, entity *T) error

	// Get retrieves an entity by ID
	Get(ctx context.Context, id uuid.UUID) (*T, error)

	// Update applies a partial update to the entity with the given ID
	// and returns the updated entity
	Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (*T, error)

	// Delete removes the entity with the given ID and returns its
	// prior state
	Delete(ctx context.Context, id uuid.UUID) (*T, error)

	// List retrieves entities matching the given filters
	List(ctx context.Context, fs ...filters.Filter) ([]*T, error)

	// ListAndCount retrieves a page of entities together with the
	// total count of entities matching the non-pagination filters
	ListAndCount(ctx context.Context, fs ...filters.Filter) ([]*T, int64, error)

	// Count returns the number of entities matching the
	// non-pagination filters
	Count(ctx context.Context, fs ...filters.Filter) (int64, error)

	// Exists reports whether an entity with the given ID exists
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}
