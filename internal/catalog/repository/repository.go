package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/gantryio/gantry/pkg/filters"
	"github.com/gantryio/gantry/pkg/models"
	"github.com/gantryio/gantry/pkg/repository"
	"github.com/gantryio/gantry/pkg/transaction"
)

// AuthorRepository persists authors, adding catalog lookups on top of
// the generic verbs.
type AuthorRepository struct {
	*repository.GormRepository[models.Author]
	db *gorm.DB
}

// NewAuthorRepository creates an author repository over db.
func NewAuthorRepository(db *gorm.DB, opts repository.Options) *AuthorRepository {
	return &AuthorRepository{
		GormRepository: repository.NewGormRepository[models.Author](db, opts),
		db:             db,
	}
}

// GetByEmail retrieves an author by email address.
func (r *AuthorRepository) GetByEmail(ctx context.Context, email string) (*models.Author, error) {
	db, err := transaction.SessionFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}
	return repository.FindOneBy[models.Author](ctx, db, "email = ?", email)
}

// BookRepository persists books, adding catalog lookups on top of the
// generic verbs.
type BookRepository struct {
	*repository.GormRepository[models.Book]
	db   *gorm.DB
	opts repository.Options
}

// NewBookRepository creates a book repository over db.
func NewBookRepository(db *gorm.DB, opts repository.Options) *BookRepository {
	return &BookRepository{
		GormRepository: repository.NewGormRepository[models.Book](db, opts),
		db:             db,
		opts:           opts,
	}
}

// GetByISBN retrieves a book by its ISBN.
func (r *BookRepository) GetByISBN(ctx context.Context, isbn string) (*models.Book, error) {
	db, err := transaction.SessionFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}
	return repository.FindOneBy[models.Book](ctx, db, "isbn = ?", isbn)
}

// ListByAuthor retrieves one page of an author's books together with
// the total count. Filters behave exactly as in ListAndCount; the
// author scope composes with them.
func (r *BookRepository) ListByAuthor(ctx context.Context, authorID uuid.UUID, fs ...filters.Filter) ([]*models.Book, int64, error) {
	db, err := transaction.SessionFromContext(ctx, r.db)
	if err != nil {
		return nil, 0, err
	}
	fs, err = filters.Validate(r.opts.MaxPageSize, fs...)
	if err != nil {
		return nil, 0, err
	}

	scoped := db.Where("author_id = ?", authorID)
	total, err := repository.Count[models.Book](ctx, scoped, fs)
	if err != nil {
		return nil, 0, err
	}
	books, err := repository.List[models.Book](ctx, scoped, r.opts.OrderClause(), fs)
	if err != nil {
		return nil, 0, err
	}
	return books, total, nil
}

// AuditRepository persists audit entries written by the worker.
type AuditRepository struct {
	*repository.GormRepository[models.AuditEntry]
}

// NewAuditRepository creates an audit repository over db.
func NewAuditRepository(db *gorm.DB, opts repository.Options) *AuditRepository {
	return &AuditRepository{
		GormRepository: repository.NewGormRepository[models.AuditEntry](db, opts),
	}
}
