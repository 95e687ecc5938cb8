package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	catalogrepo "github.com/gantryio/gantry/internal/catalog/repository"
	catalogservice "github.com/gantryio/gantry/internal/catalog/service"
	"github.com/gantryio/gantry/pkg/cache"
	pkgerrors "github.com/gantryio/gantry/pkg/errors"
	"github.com/gantryio/gantry/pkg/events"
	"github.com/gantryio/gantry/pkg/interfaces"
	"github.com/gantryio/gantry/pkg/logger"
	"github.com/gantryio/gantry/pkg/models"
	"github.com/gantryio/gantry/pkg/repository"
	"github.com/gantryio/gantry/test/testutil"
)

// captureHandler collects every event it receives.
type captureHandler struct {
	mu     sync.Mutex
	events []interfaces.Event
}

func (h *captureHandler) Handle(ctx context.Context, event interfaces.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return nil
}

func (h *captureHandler) EventType() string { return "capture" }

func (h *captureHandler) captured() []interfaces.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]interfaces.Event(nil), h.events...)
}

type CatalogServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	bus     *events.InMemoryEventBus
	authors *catalogservice.AuthorService
	books   *catalogservice.BookService
}

func (suite *CatalogServiceTestSuite) SetupTest() {
	suite.db = testutil.NewTestDB(suite.T())
	log := logger.NewNoop()
	suite.bus = events.NewInMemoryEventBus(log)

	opts := repository.Options{
		DefaultSort: "created_at",
		MaxPageSize: 100,
	}
	authorRepo := catalogrepo.NewAuthorRepository(suite.db, opts)
	bookRepo := catalogrepo.NewBookRepository(suite.db, opts)

	suite.authors = catalogservice.NewAuthorService(authorRepo, suite.bus, nil, 0, log)
	suite.books = catalogservice.NewBookService(bookRepo, authorRepo, suite.bus, nil, 0, log)
}

func (suite *CatalogServiceTestSuite) createAuthor(name, email string) *models.Author {
	author, err := suite.authors.Create(context.Background(), testutil.NewAuthor(name, email))
	suite.Require().NoError(err)
	return author
}

func (suite *CatalogServiceTestSuite) createBook(authorID uuid.UUID, title, isbn string) *models.Book {
	book, err := suite.books.Create(context.Background(), testutil.NewBook(authorID, title, isbn))
	suite.Require().NoError(err)
	return book
}

func (suite *CatalogServiceTestSuite) TestCreateAuthor() {
	author := suite.createAuthor("Octavia Butler", "octavia@example.com")

	suite.NotEqual(uuid.Nil, author.ID)
	suite.False(author.CreatedAt.IsZero())
}

func (suite *CatalogServiceTestSuite) TestCreateAuthorRequiresName() {
	_, err := suite.authors.Create(context.Background(), testutil.NewAuthor("   ", "anon@example.com"))

	suite.Require().Error(err)
	suite.True(pkgerrors.IsBadRequest(err))
	suite.Contains(err.Error(), "name is required")
}

func (suite *CatalogServiceTestSuite) TestCreateAuthorRequiresEmail() {
	_, err := suite.authors.Create(context.Background(), testutil.NewAuthor("Anon", ""))

	suite.Require().Error(err)
	suite.True(pkgerrors.IsBadRequest(err))
}

func (suite *CatalogServiceTestSuite) TestCreateAuthorRejectsMalformedEmail() {
	_, err := suite.authors.Create(context.Background(), testutil.NewAuthor("Anon", "not-an-email"))

	suite.Require().Error(err)
	suite.True(pkgerrors.IsBadRequest(err))
	suite.Contains(err.Error(), "email is invalid")
}

func (suite *CatalogServiceTestSuite) TestCreateAuthorDuplicateEmail() {
	suite.createAuthor("First", "shared@example.com")

	_, err := suite.authors.Create(context.Background(), testutil.NewAuthor("Second", "shared@example.com"))

	suite.Require().Error(err)
	suite.True(pkgerrors.IsConflict(err))
	suite.Contains(err.Error(), "email already registered")
}

func (suite *CatalogServiceTestSuite) TestUpdateAuthorKeepsOwnEmail() {
	author := suite.createAuthor("Keeper", "keeper@example.com")

	updated, err := suite.authors.Update(context.Background(), author.ID, map[string]interface{}{
		"name":  "Keeper Renamed",
		"email": "keeper@example.com",
	})

	suite.Require().NoError(err)
	suite.Equal("Keeper Renamed", updated.Name)
	suite.Equal("keeper@example.com", updated.Email)
}

func (suite *CatalogServiceTestSuite) TestUpdateAuthorRejectsTakenEmail() {
	suite.createAuthor("Holder", "held@example.com")
	author := suite.createAuthor("Mover", "mover@example.com")

	_, err := suite.authors.Update(context.Background(), author.ID, map[string]interface{}{
		"email": "held@example.com",
	})

	suite.Require().Error(err)
	suite.True(pkgerrors.IsConflict(err))
}

func (suite *CatalogServiceTestSuite) TestUpdateAuthorNotFound() {
	_, err := suite.authors.Update(context.Background(), uuid.New(), map[string]interface{}{
		"name": "Ghost",
	})

	suite.Require().Error(err)
	suite.True(pkgerrors.IsNotFound(err))
}

func (suite *CatalogServiceTestSuite) TestDeleteAuthorReturnsPriorState() {
	author := suite.createAuthor("Short Lived", "short@example.com")

	removed, err := suite.authors.Delete(context.Background(), author.ID)
	suite.Require().NoError(err)
	suite.Equal(author.ID, removed.ID)

	_, err = suite.authors.Get(context.Background(), author.ID)
	suite.True(pkgerrors.IsNotFound(err))
}

func (suite *CatalogServiceTestSuite) TestCreateBookRequiresExistingAuthor() {
	_, err := suite.books.Create(context.Background(), testutil.NewBook(uuid.New(), "Orphan", "isbn-orphan"))

	suite.Require().Error(err)
	suite.True(pkgerrors.IsBadRequest(err))
	suite.Contains(err.Error(), "author does not exist")
}

func (suite *CatalogServiceTestSuite) TestCreateBookRequiresTitleAndISBN() {
	author := suite.createAuthor("Prolific", "prolific@example.com")

	_, err := suite.books.Create(context.Background(), testutil.NewBook(author.ID, "", "isbn-x"))
	suite.True(pkgerrors.IsBadRequest(err))

	_, err = suite.books.Create(context.Background(), testutil.NewBook(author.ID, "Untitled", ""))
	suite.True(pkgerrors.IsBadRequest(err))
}

func (suite *CatalogServiceTestSuite) TestCreateBookDuplicateISBN() {
	author := suite.createAuthor("Writer", "writer@example.com")
	suite.createBook(author.ID, "First Edition", "isbn-dup")

	_, err := suite.books.Create(context.Background(), testutil.NewBook(author.ID, "Second Edition", "isbn-dup"))

	suite.Require().Error(err)
	suite.True(pkgerrors.IsConflict(err))
	suite.Contains(err.Error(), "isbn already registered")
}

func (suite *CatalogServiceTestSuite) TestUpdateBookKeepsOwnISBN() {
	author := suite.createAuthor("Writer", "writer@example.com")
	book := suite.createBook(author.ID, "Stable", "isbn-stable")

	updated, err := suite.books.Update(context.Background(), book.ID, map[string]interface{}{
		"title": "Stable, Revised",
		"isbn":  "isbn-stable",
	})

	suite.Require().NoError(err)
	suite.Equal("Stable, Revised", updated.Title)
}

func (suite *CatalogServiceTestSuite) TestUpdateBookRejectsUnknownAuthor() {
	author := suite.createAuthor("Anchor", "anchor@example.com")
	book := suite.createBook(author.ID, "Anchored", "isbn-anchored")

	_, err := suite.books.Update(context.Background(), book.ID, map[string]interface{}{
		"author_id": uuid.New(),
	})

	suite.Require().Error(err)
	suite.True(pkgerrors.IsBadRequest(err))
}

func (suite *CatalogServiceTestSuite) TestListByAuthorScopes() {
	mine := suite.createAuthor("Mine", "mine@example.com")
	other := suite.createAuthor("Other", "other@example.com")
	suite.createBook(mine.ID, "Mine A", "isbn-ma")
	suite.createBook(mine.ID, "Mine B", "isbn-mb")
	suite.createBook(other.ID, "Theirs", "isbn-t")

	books, total, err := suite.books.ListByAuthor(context.Background(), mine.ID)
	suite.Require().NoError(err)

	suite.Equal(int64(2), total)
	suite.Len(books, 2)
}

func (suite *CatalogServiceTestSuite) TestListByAuthorUnknownAuthor() {
	_, _, err := suite.books.ListByAuthor(context.Background(), uuid.New())

	suite.Require().Error(err)
	suite.True(pkgerrors.IsNotFound(err))
	suite.Contains(err.Error(), "author not found")
}

func (suite *CatalogServiceTestSuite) TestCreatePublishesLifecycleEvent() {
	capture := &captureHandler{}
	suite.Require().NoError(suite.bus.Subscribe("author.created", capture))

	author := suite.createAuthor("Announced", "announced@example.com")
	suite.Require().NoError(suite.bus.Stop())

	captured := capture.captured()
	suite.Require().Len(captured, 1)
	suite.Equal("author.created", captured[0].EventType())
	suite.Equal(author.ID.String(), captured[0].AggregateID())
}

func (suite *CatalogServiceTestSuite) TestValidationFailureDoesNotPublish() {
	capture := &captureHandler{}
	suite.Require().NoError(suite.bus.Subscribe("author.created", capture))

	_, err := suite.authors.Create(context.Background(), testutil.NewAuthor("", "invalid"))
	suite.Require().Error(err)
	suite.Require().NoError(suite.bus.Stop())

	suite.Empty(capture.captured())
}

func (suite *CatalogServiceTestSuite) TestGetServesRepeatedReadsFromCache() {
	log := logger.NewNoop()
	opts := repository.Options{DefaultSort: "created_at", MaxPageSize: 100}
	authorRepo := catalogrepo.NewAuthorRepository(suite.db, opts)
	cached := catalogservice.NewAuthorService(authorRepo, suite.bus, cache.NewMemoryCache(), time.Minute, log)

	author := suite.createAuthor("Cached", "cached@example.com")

	first, err := cached.Get(context.Background(), author.ID)
	suite.Require().NoError(err)
	suite.Equal("Cached", first.Name)

	// A direct row change is invisible until the cache entry goes away.
	suite.Require().NoError(suite.db.Model(&models.Author{}).
		Where("id = ?", author.ID).Update("name", "Renamed Behind The Cache").Error)

	second, err := cached.Get(context.Background(), author.ID)
	suite.Require().NoError(err)
	suite.Equal("Cached", second.Name)
}

func TestCatalogServiceTestSuite(t *testing.T) {
	suite.Run(t, new(CatalogServiceTestSuite))
}
