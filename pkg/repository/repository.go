package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gantryio/gantry/pkg/filters"
	"github.com/gantryio/gantry/pkg/interfaces"
	"github.com/gantryio/gantry/pkg/transaction"
)

// sortColumns are the columns list results may be ordered by.
var sortColumns = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
}

// Options configure ordering and page bounds for a repository.
type Options struct {
	// DefaultSort orders list results. It must be one of id, created_at
	// or updated_at; anything else falls back to created_at. The
	// identifier is appended as a tiebreak so pagination windows stay
	// deterministic under equal timestamps.
	DefaultSort string

	// MaxPageSize caps the page size of list queries; zero disables
	// the cap.
	MaxPageSize int
}

func (o Options) normalized() Options {
	if !sortColumns[o.DefaultSort] {
		o.DefaultSort = string(filters.FieldCreatedAt)
	}
	return o
}

// OrderClause returns the stable ORDER BY expression for the configured
// sort column, falling back to created_at for anything unknown.
func (o Options) OrderClause() string {
	sort := o.DefaultSort
	if !sortColumns[sort] {
		sort = string(filters.FieldCreatedAt)
	}
	if sort == "id" {
		return "id"
	}
	return sort + ", id"
}

// GormRepository is a GORM-backed Repository implementation.
//
// Every call resolves its session from the request context: the open
// request transaction when one is carried, the pool handle otherwise.
// Mutations only stage changes; resolving the transaction belongs to the
// transport boundary.
type GormRepository[T any] struct {
	db   *gorm.DB
	opts Options
}

// NewGormRepository creates a repository over db.
func NewGormRepository[T any](db *gorm.DB, opts Options) *GormRepository[T] {
	return &GormRepository[T]{db: db, opts: opts.normalized()}
}

var _ interfaces.Repository[struct{}] = (*GormRepository[struct{}])(nil)

func (r *GormRepository[T]) conn(ctx context.Context) (*gorm.DB, error) {
	return transaction.SessionFromContext(ctx, r.db)
}

// Create persists a new entity, assigning its ID and audit timestamps
// when unset.
func (r *GormRepository[T]) Create(ctx context.Context, entity *T) error {
	db, err := r.conn(ctx)
	if err != nil {
		return err
	}
	return Create(ctx, db, entity)
}

// Get retrieves an entity by ID.
func (r *GormRepository[T]) Get(ctx context.Context, id uuid.UUID) (*T, error) {
	db, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	return FindByID[T](ctx, db, id)
}

// Update applies a partial update to the entity with the given ID.
func (r *GormRepository[T]) Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (*T, error) {
	db, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	return Update[T](ctx, db, id, fields)
}

// Delete removes the entity with the given ID and returns its prior state.
func (r *GormRepository[T]) Delete(ctx context.Context, id uuid.UUID) (*T, error) {
	db, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	return Delete[T](ctx, db, id)
}

// List retrieves entities matching the given filters in stable order.
func (r *GormRepository[T]) List(ctx context.Context, fs ...filters.Filter) ([]*T, error) {
	db, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	fs, err = filters.Validate(r.opts.MaxPageSize, fs...)
	if err != nil {
		return nil, err
	}
	return List[T](ctx, db, r.opts.OrderClause(), fs)
}

// ListAndCount retrieves one page of entities together with the total
// count of entities matching the non-pagination filters.
func (r *GormRepository[T]) ListAndCount(ctx context.Context, fs ...filters.Filter) ([]*T, int64, error) {
	db, err := r.conn(ctx)
	if err != nil {
		return nil, 0, err
	}
	fs, err = filters.Validate(r.opts.MaxPageSize, fs...)
	if err != nil {
		return nil, 0, err
	}

	total, err := Count[T](ctx, db, fs)
	if err != nil {
		return nil, 0, err
	}
	entities, err := List[T](ctx, db, r.opts.OrderClause(), fs)
	if err != nil {
		return nil, 0, err
	}
	return entities, total, nil
}

// Count returns the number of entities matching the non-pagination filters.
func (r *GormRepository[T]) Count(ctx context.Context, fs ...filters.Filter) (int64, error) {
	db, err := r.conn(ctx)
	if err != nil {
		return 0, err
	}
	fs, err = filters.Validate(r.opts.MaxPageSize, fs...)
	if err != nil {
		return 0, err
	}
	return Count[T](ctx, db, fs)
}

// Exists reports whether an entity with the given ID exists.
func (r *GormRepository[T]) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	db, err := r.conn(ctx)
	if err != nil {
		return false, err
	}
	return Exists[T](ctx, db, id)
}
