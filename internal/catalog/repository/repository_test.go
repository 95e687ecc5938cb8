package repository_test

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	catalogrepo "github.com/gantryio/gantry/internal/catalog/repository"
	pkgerrors "github.com/gantryio/gantry/pkg/errors"
	"github.com/gantryio/gantry/pkg/filters"
	"github.com/gantryio/gantry/pkg/models"
	"github.com/gantryio/gantry/pkg/repository"
	"github.com/gantryio/gantry/test/testutil"
)

type CatalogRepositoryTestSuite struct {
	suite.Suite
	db      *gorm.DB
	authors *catalogrepo.AuthorRepository
	books   *catalogrepo.BookRepository
}

func (suite *CatalogRepositoryTestSuite) SetupTest() {
	suite.db = testutil.NewTestDB(suite.T())
	opts := repository.Options{
		DefaultSort: "created_at",
		MaxPageSize: 100,
	}
	suite.authors = catalogrepo.NewAuthorRepository(suite.db, opts)
	suite.books = catalogrepo.NewBookRepository(suite.db, opts)
}

func (suite *CatalogRepositoryTestSuite) seedAuthor(name, email string) *models.Author {
	author := testutil.NewAuthor(name, email)
	suite.Require().NoError(suite.db.Create(author).Error)
	return author
}

func (suite *CatalogRepositoryTestSuite) seedBook(authorID uuid.UUID, title, isbn string, createdAt time.Time) *models.Book {
	book := testutil.NewBook(authorID, title, isbn)
	book.CreatedAt = createdAt
	book.UpdatedAt = createdAt
	suite.Require().NoError(suite.db.Create(book).Error)
	return book
}

func (suite *CatalogRepositoryTestSuite) TestGetByEmail() {
	suite.seedAuthor("Known", "known@example.com")

	author, err := suite.authors.GetByEmail(context.Background(), "known@example.com")
	suite.Require().NoError(err)
	suite.Equal("Known", author.Name)
}

func (suite *CatalogRepositoryTestSuite) TestGetByEmailNotFound() {
	_, err := suite.authors.GetByEmail(context.Background(), "nobody@example.com")
	suite.Require().Error(err)
	suite.True(pkgerrors.IsNotFound(err))
}

func (suite *CatalogRepositoryTestSuite) TestGetByISBN() {
	author := suite.seedAuthor("Writer", "writer@example.com")
	suite.seedBook(author.ID, "Found", "isbn-found", time.Now().UTC())

	book, err := suite.books.GetByISBN(context.Background(), "isbn-found")
	suite.Require().NoError(err)
	suite.Equal("Found", book.Title)
}

func (suite *CatalogRepositoryTestSuite) TestGetByISBNNotFound() {
	_, err := suite.books.GetByISBN(context.Background(), "isbn-missing")
	suite.Require().Error(err)
	suite.True(pkgerrors.IsNotFound(err))
}

func (suite *CatalogRepositoryTestSuite) TestListByAuthorScopesAndCounts() {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	mine := suite.seedAuthor("Mine", "mine@example.com")
	other := suite.seedAuthor("Other", "other@example.com")
	suite.seedBook(mine.ID, "Mine A", "isbn-a", base)
	suite.seedBook(mine.ID, "Mine B", "isbn-b", base.Add(time.Hour))
	suite.seedBook(mine.ID, "Mine C", "isbn-c", base.Add(2*time.Hour))
	suite.seedBook(other.ID, "Theirs", "isbn-d", base)

	books, total, err := suite.books.ListByAuthor(context.Background(), mine.ID,
		filters.LimitOffset{Limit: 2, Offset: 0})
	suite.Require().NoError(err)

	suite.Equal(int64(3), total)
	suite.Require().Len(books, 2)
	suite.Equal("Mine A", books[0].Title)
	suite.Equal("Mine B", books[1].Title)
}

func (suite *CatalogRepositoryTestSuite) TestListByAuthorComposesTimeWindow() {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	author := suite.seedAuthor("Windowed", "windowed@example.com")
	suite.seedBook(author.ID, "Early", "isbn-early", base)
	suite.seedBook(author.ID, "Middle", "isbn-middle", base.Add(time.Hour))
	suite.seedBook(author.ID, "Late", "isbn-late", base.Add(2*time.Hour))

	after := base.Add(30 * time.Minute)
	books, total, err := suite.books.ListByAuthor(context.Background(), author.ID,
		filters.BeforeAfter{Field: filters.FieldCreatedAt, After: &after})
	suite.Require().NoError(err)

	suite.Equal(int64(2), total)
	suite.Require().Len(books, 2)
	suite.Equal("Middle", books[0].Title)
	suite.Equal("Late", books[1].Title)
}

func (suite *CatalogRepositoryTestSuite) TestListByAuthorBreaksTiesByID() {
	same := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	author := suite.seedAuthor("Tied", "tied@example.com")
	var ids []string
	for _, isbn := range []string{"isbn-1", "isbn-2", "isbn-3"} {
		book := suite.seedBook(author.ID, "Same Instant", isbn, same)
		ids = append(ids, book.ID.String())
	}
	sort.Strings(ids)

	books, _, err := suite.books.ListByAuthor(context.Background(), author.ID)
	suite.Require().NoError(err)

	suite.Require().Len(books, 3)
	for i, book := range books {
		suite.Equal(ids[i], book.ID.String())
	}
}

func (suite *CatalogRepositoryTestSuite) TestListByAuthorEmptyScope() {
	author := suite.seedAuthor("Bare", "bare@example.com")

	books, total, err := suite.books.ListByAuthor(context.Background(), author.ID)
	suite.Require().NoError(err)
	suite.Empty(books)
	suite.Zero(total)
}

func (suite *CatalogRepositoryTestSuite) TestListByAuthorClampsPageSize() {
	author := suite.seedAuthor("Clamped", "clamped@example.com")
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	suite.seedBook(author.ID, "Only", "isbn-only", base)

	_, _, err := suite.books.ListByAuthor(context.Background(), author.ID,
		filters.LimitOffset{Limit: 1000, Offset: 0})
	suite.Require().NoError(err)
}

func TestCatalogRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(CatalogRepositoryTestSuite))
}
