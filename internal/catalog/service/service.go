package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	catalogrepo "github.com/gantryio/gantry/internal/catalog/repository"
	pkgerrors "github.com/gantryio/gantry/pkg/errors"
	"github.com/gantryio/gantry/pkg/filters"
	"github.com/gantryio/gantry/pkg/interfaces"
	"github.com/gantryio/gantry/pkg/models"
	pkgservice "github.com/gantryio/gantry/pkg/service"
)

// AuthorService manages authors. Validation runs before storage is
// touched; uniqueness preconditions surface as conflicts without
// waiting for the driver to reject the row.
type AuthorService struct {
	*pkgservice.Service[models.Author, *models.Author]
	repo *catalogrepo.AuthorRepository
}

// NewAuthorService creates the author service.
func NewAuthorService(
	repo *catalogrepo.AuthorRepository,
	bus interfaces.EventBus,
	cache interfaces.Cache,
	cacheTTL time.Duration,
	log interfaces.Logger,
) *AuthorService {
	s := &AuthorService{repo: repo}
	s.Service = pkgservice.New[models.Author](pkgservice.Config[models.Author]{
		Kind: "author",
		Repo: repo,
		Hooks: pkgservice.Hooks[models.Author]{
			BeforeCreate: s.validateCreate,
			BeforeUpdate: s.validateUpdate,
		},
		Bus:      bus,
		Cache:    cache,
		CacheTTL: cacheTTL,
		Logger:   log,
	})
	return s
}

func (s *AuthorService) validateCreate(ctx context.Context, author *models.Author) error {
	if strings.TrimSpace(author.Name) == "" {
		return pkgerrors.BadRequest("author name is required")
	}
	if err := validateEmail(author.Email); err != nil {
		return err
	}
	return s.checkEmailFree(ctx, author.Email, uuid.Nil)
}

func (s *AuthorService) validateUpdate(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	if name, ok := fields["name"]; ok {
		if v, _ := name.(string); strings.TrimSpace(v) == "" {
			return pkgerrors.BadRequest("author name is required")
		}
	}
	if email, ok := fields["email"]; ok {
		v, _ := email.(string)
		if err := validateEmail(v); err != nil {
			return err
		}
		if err := s.checkEmailFree(ctx, v, id); err != nil {
			return err
		}
	}
	return nil
}

// checkEmailFree fails with a conflict when email belongs to an author
// other than self.
func (s *AuthorService) checkEmailFree(ctx context.Context, email string, self uuid.UUID) error {
	existing, err := s.repo.GetByEmail(ctx, email)
	switch {
	case pkgerrors.IsNotFound(err):
		return nil
	case err != nil:
		return err
	case existing.ID == self:
		return nil
	default:
		return pkgerrors.Conflict("email already registered")
	}
}

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return pkgerrors.BadRequest("author email is required")
	}
	if !strings.Contains(email, "@") {
		return pkgerrors.BadRequest("author email is invalid")
	}
	return nil
}

// BookService manages books. Creation requires an existing author and a
// free ISBN.
type BookService struct {
	*pkgservice.Service[models.Book, *models.Book]
	repo    *catalogrepo.BookRepository
	authors *catalogrepo.AuthorRepository
}

// NewBookService creates the book service.
func NewBookService(
	repo *catalogrepo.BookRepository,
	authors *catalogrepo.AuthorRepository,
	bus interfaces.EventBus,
	cache interfaces.Cache,
	cacheTTL time.Duration,
	log interfaces.Logger,
) *BookService {
	s := &BookService{repo: repo, authors: authors}
	s.Service = pkgservice.New[models.Book](pkgservice.Config[models.Book]{
		Kind: "book",
		Repo: repo,
		Hooks: pkgservice.Hooks[models.Book]{
			BeforeCreate: s.validateCreate,
			BeforeUpdate: s.validateUpdate,
		},
		Bus:      bus,
		Cache:    cache,
		CacheTTL: cacheTTL,
		Logger:   log,
	})
	return s
}

// ListByAuthor returns one page of an author's books and their total.
// The author must exist; listing an unknown author is not an empty page.
func (s *BookService) ListByAuthor(ctx context.Context, authorID uuid.UUID, fs ...filters.Filter) ([]*models.Book, int64, error) {
	ok, err := s.authors.Exists(ctx, authorID)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, pkgerrors.NotFound("author not found")
	}
	return s.repo.ListByAuthor(ctx, authorID, fs...)
}

func (s *BookService) validateCreate(ctx context.Context, book *models.Book) error {
	if strings.TrimSpace(book.Title) == "" {
		return pkgerrors.BadRequest("book title is required")
	}
	if strings.TrimSpace(book.ISBN) == "" {
		return pkgerrors.BadRequest("book isbn is required")
	}
	if book.AuthorID == uuid.Nil {
		return pkgerrors.BadRequest("book author_id is required")
	}

	if err := s.checkAuthorExists(ctx, book.AuthorID); err != nil {
		return err
	}
	return s.checkISBNFree(ctx, book.ISBN, uuid.Nil)
}

func (s *BookService) validateUpdate(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	if title, ok := fields["title"]; ok {
		if v, _ := title.(string); strings.TrimSpace(v) == "" {
			return pkgerrors.BadRequest("book title is required")
		}
	}
	if isbn, ok := fields["isbn"]; ok {
		v, _ := isbn.(string)
		if strings.TrimSpace(v) == "" {
			return pkgerrors.BadRequest("book isbn is required")
		}
		if err := s.checkISBNFree(ctx, v, id); err != nil {
			return err
		}
	}
	if authorID, ok := fields["author_id"]; ok {
		v, _ := authorID.(uuid.UUID)
		if v == uuid.Nil {
			return pkgerrors.BadRequest("book author_id is required")
		}
		if err := s.checkAuthorExists(ctx, v); err != nil {
			return err
		}
	}
	return nil
}

func (s *BookService) checkAuthorExists(ctx context.Context, authorID uuid.UUID) error {
	ok, err := s.authors.Exists(ctx, authorID)
	if err != nil {
		return err
	}
	if !ok {
		return pkgerrors.BadRequest("book author does not exist")
	}
	return nil
}

// checkISBNFree fails with a conflict when isbn belongs to a book other
// than self.
func (s *BookService) checkISBNFree(ctx context.Context, isbn string, self uuid.UUID) error {
	existing, err := s.repo.GetByISBN(ctx, isbn)
	switch {
	case pkgerrors.IsNotFound(err):
		return nil
	case err != nil:
		return err
	case existing.ID == self:
		return nil
	default:
		return pkgerrors.Conflict("isbn already registered")
	}
}
