package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/gantryio/gantry/pkg/errors"
	"github.com/gantryio/gantry/pkg/filters"
)

// Create creates a new entity in the database.
func Create[T any](ctx context.Context, db *gorm.DB, entity *T) error {
	if err := db.WithContext(ctx).Create(entity).Error; err != nil {
		return wrapError("create entity", err)
	}
	return nil
}

// FindByID finds an entity by its ID. It preloads specified associations.
func FindByID[T any](ctx context.Context, db *gorm.DB, id uuid.UUID, preloads ...string) (*T, error) {
	var entity T
	query := db.WithContext(ctx)
	for _, preload := range preloads {
		query = query.Preload(preload)
	}

	if err := query.First(&entity, "id = ?", id).Error; err != nil {
		return nil, wrapError("find entity", err)
	}
	return &entity, nil
}

// FindOneBy finds a single entity by a query condition.
func FindOneBy[T any](ctx context.Context, db *gorm.DB, query string, args ...interface{}) (*T, error) {
	var entity T
	if err := db.WithContext(ctx).Where(query, args...).First(&entity).Error; err != nil {
		return nil, wrapError("find entity", err)
	}
	return &entity, nil
}

// Update applies a partial update to the entity with the given ID and
// returns the reloaded entity.
//
// The identifier and audit columns are stripped from the field map; the
// last-modified timestamp is touched on every successful call, including
// one with no remaining fields.
func Update[T any](ctx context.Context, db *gorm.DB, id uuid.UUID, fields map[string]interface{}) (*T, error) {
	assignments := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		switch k {
		case "id", "created_at", "updated_at":
			continue
		}
		assignments[k] = v
	}
	if len(assignments) == 0 {
		assignments["updated_at"] = db.NowFunc()
	}

	var entity T
	result := db.WithContext(ctx).Model(&entity).Where("id = ?", id).Updates(assignments)
	if result.Error != nil {
		return nil, wrapError("update entity", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, pkgerrors.NotFound("entity not found for update")
	}

	return FindByID[T](ctx, db, id)
}

// Delete removes an entity from the database by its ID and returns its
// prior state.
func Delete[T any](ctx context.Context, db *gorm.DB, id uuid.UUID) (*T, error) {
	entity, err := FindByID[T](ctx, db, id)
	if err != nil {
		return nil, err
	}

	result := db.WithContext(ctx).Delete(new(T), "id = ?", id)
	if result.Error != nil {
		return nil, wrapError("delete entity", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, pkgerrors.NotFound("entity not found for deletion")
	}
	return entity, nil
}

// List retrieves entities matching fs in the stable order given by sort.
// Non-pagination filters compose conjunctively; pagination is applied after
// ordering. fs must already be validated.
func List[T any](ctx context.Context, db *gorm.DB, sort string, fs []filters.Filter, preloads ...string) ([]*T, error) {
	query, err := applyFilters(db.WithContext(ctx), filters.WithoutPagination(fs))
	if err != nil {
		return nil, err
	}
	for _, preload := range preloads {
		query = query.Preload(preload)
	}

	query = query.Order(sort)
	if page := filters.Pagination(fs); page != nil {
		query = query.Limit(page.Limit).Offset(page.Offset)
	}

	var entities []*T
	if err := query.Find(&entities).Error; err != nil {
		return nil, wrapError("list entities", err)
	}
	return entities, nil
}

// Count returns the number of entities matching fs. Pagination filters
// never change the count.
func Count[T any](ctx context.Context, db *gorm.DB, fs []filters.Filter) (int64, error) {
	query, err := applyFilters(db.WithContext(ctx).Model(new(T)), filters.WithoutPagination(fs))
	if err != nil {
		return 0, err
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, wrapError("count entities", err)
	}
	return count, nil
}

// Exists reports whether an entity with the given ID exists.
func Exists[T any](ctx context.Context, db *gorm.DB, id uuid.UUID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return false, wrapError("check entity", err)
	}
	return count > 0, nil
}

// CheckHealth verifies database connectivity with a trivial round trip.
func CheckHealth(ctx context.Context, db *gorm.DB) error {
	var one int
	if err := db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		return wrapError("check health", err)
	}
	return nil
}

// applyFilters folds the non-pagination filter variants into the query.
// The variant set is closed; anything else is a programming error and
// fails loudly.
func applyFilters(query *gorm.DB, fs []filters.Filter) (*gorm.DB, error) {
	for _, f := range fs {
		switch f := f.(type) {
		case filters.BeforeAfter:
			column, err := timeColumn(f.Field)
			if err != nil {
				return nil, err
			}
			if f.After != nil {
				query = query.Where(column+" >= ?", *f.After)
			}
			if f.Before != nil {
				query = query.Where(column+" < ?", *f.Before)
			}
		case filters.IDFilter:
			if len(f.IDs) > 0 {
				query = query.Where("id IN ?", f.IDs)
			}
		default:
			return nil, pkgerrors.Internal(fmt.Sprintf("unsupported filter type %T", f))
		}
	}
	return query, nil
}

// timeColumn maps a filterable time field to its column, rejecting
// anything outside the audit columns.
func timeColumn(field filters.TimeField) (string, error) {
	switch field {
	case filters.FieldCreatedAt, filters.FieldUpdatedAt:
		return string(field), nil
	default:
		return "", pkgerrors.BadRequest(fmt.Sprintf("cannot filter on field %q", string(field)))
	}
}

// wrapError maps driver faults onto the application error taxonomy.
func wrapError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return pkgerrors.NotFound("entity not found")
	case pkgerrors.IsDuplicateError(err):
		return pkgerrors.Wrap(pkgerrors.ErrorTypeConflict, "entity already exists", err)
	default:
		return pkgerrors.Wrap(pkgerrors.ErrorTypeInternal, op, err)
	}
}
