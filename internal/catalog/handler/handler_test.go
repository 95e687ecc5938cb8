package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/gantryio/gantry/internal/catalog/handler"
	catalogrepo "github.com/gantryio/gantry/internal/catalog/repository"
	catalogservice "github.com/gantryio/gantry/internal/catalog/service"
	pkgerrors "github.com/gantryio/gantry/pkg/errors"
	"github.com/gantryio/gantry/pkg/events"
	"github.com/gantryio/gantry/pkg/filters"
	"github.com/gantryio/gantry/pkg/logger"
	"github.com/gantryio/gantry/pkg/middleware"
	"github.com/gantryio/gantry/pkg/models"
	"github.com/gantryio/gantry/pkg/repository"
	"github.com/gantryio/gantry/test/testutil"
)

type HandlerTestSuite struct {
	suite.Suite
	db     *gorm.DB
	router *gin.Engine
}

func (suite *HandlerTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	suite.db = testutil.NewTestDB(suite.T())

	opts := repository.Options{
		DefaultSort: "created_at",
		MaxPageSize: 100,
	}
	defaults := filters.Defaults{PageSize: 20, MaxPageSize: 100}
	log := logger.NewNoop()
	bus := events.NewInMemoryEventBus(log)

	authorRepo := catalogrepo.NewAuthorRepository(suite.db, opts)
	bookRepo := catalogrepo.NewBookRepository(suite.db, opts)

	authors := catalogservice.NewAuthorService(authorRepo, bus, nil, 0, log)
	books := catalogservice.NewBookService(bookRepo, authorRepo, bus, nil, 0, log)

	suite.router = gin.New()
	suite.router.Use(
		middleware.RequestLogging(log),
		middleware.Transaction(suite.db, middleware.TransactionConfig{}, log),
		middleware.ErrorTranslation(),
	)
	api := suite.router.Group("/api")
	handler.RegisterRoutes(api,
		handler.NewAuthorHandler(authors, defaults),
		handler.NewBookHandler(books, defaults),
	)
}

func (suite *HandlerTestSuite) SetupTest() {
	suite.Require().NoError(suite.db.Exec("DELETE FROM books").Error)
	suite.Require().NoError(suite.db.Exec("DELETE FROM audit_entries").Error)
	suite.Require().NoError(suite.db.Exec("DELETE FROM authors").Error)
}

func (suite *HandlerTestSuite) perform(method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		suite.Require().NoError(err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	suite.router.ServeHTTP(rec, req)
	return rec
}

func (suite *HandlerTestSuite) decodeError(rec *httptest.ResponseRecorder) middleware.ErrorResponse {
	var resp middleware.ErrorResponse
	suite.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// seedAuthor writes an author outside any request transaction.
func (suite *HandlerTestSuite) seedAuthor(name, email string) *models.Author {
	author := testutil.NewAuthor(name, email)
	suite.Require().NoError(suite.db.Create(author).Error)
	return author
}

func (suite *HandlerTestSuite) seedBook(authorID uuid.UUID, title, isbn string) *models.Book {
	book := testutil.NewBook(authorID, title, isbn)
	suite.Require().NoError(suite.db.Create(book).Error)
	return book
}

func (suite *HandlerTestSuite) countRows(table string) int64 {
	var count int64
	suite.Require().NoError(suite.db.Table(table).Count(&count).Error)
	return count
}

type authorPage struct {
	Items  []models.Author `json:"items"`
	Total  int64           `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type bookPage struct {
	Items  []models.Book `json:"items"`
	Total  int64         `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

func (suite *HandlerTestSuite) TestCreateAuthor() {
	rec := suite.perform(http.MethodPost, "/api/authors", handler.CreateAuthorRequest{
		Name:  "Ursula K. Le Guin",
		Email: "ursula@example.com",
	})

	suite.Equal(http.StatusCreated, rec.Code)

	var created models.Author
	suite.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &created))
	suite.NotEqual(uuid.Nil, created.ID)
	suite.Equal("Ursula K. Le Guin", created.Name)
	suite.Equal("ursula@example.com", created.Email)

	// Committed by the boundary, so it is visible on a fresh connection.
	var stored models.Author
	suite.Require().NoError(suite.db.First(&stored, "id = ?", created.ID).Error)
	suite.Equal(created.Email, stored.Email)
}

func (suite *HandlerTestSuite) TestCreateAuthorDuplicateEmailRollsBack() {
	suite.seedAuthor("First", "taken@example.com")

	rec := suite.perform(http.MethodPost, "/api/authors", handler.CreateAuthorRequest{
		Name:  "Second",
		Email: "taken@example.com",
	})

	suite.Equal(http.StatusConflict, rec.Code)
	resp := suite.decodeError(rec)
	suite.Equal(string(pkgerrors.ErrorTypeConflict), resp.Error)
	suite.Equal(int64(1), suite.countRows("authors"))
}

func (suite *HandlerTestSuite) TestCreateAuthorMalformedBody() {
	req := httptest.NewRequest(http.MethodPost, "/api/authors", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	suite.router.ServeHTTP(rec, req)

	suite.Equal(http.StatusBadRequest, rec.Code)
	suite.Equal(string(pkgerrors.ErrorTypeBadRequest), suite.decodeError(rec).Error)
}

func (suite *HandlerTestSuite) TestCreateAuthorMissingNameRejected() {
	rec := suite.perform(http.MethodPost, "/api/authors", handler.CreateAuthorRequest{
		Email: "anon@example.com",
	})

	suite.Equal(http.StatusBadRequest, rec.Code)
	suite.Equal(int64(0), suite.countRows("authors"))
}

func (suite *HandlerTestSuite) TestGetAuthor() {
	author := suite.seedAuthor("Iain Banks", "iain@example.com")

	rec := suite.perform(http.MethodGet, "/api/authors/"+author.ID.String(), nil)

	suite.Equal(http.StatusOK, rec.Code)
	var fetched models.Author
	suite.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &fetched))
	suite.Equal(author.ID, fetched.ID)
	suite.Equal("Iain Banks", fetched.Name)
}

func (suite *HandlerTestSuite) TestGetAuthorNotFound() {
	rec := suite.perform(http.MethodGet, "/api/authors/"+uuid.NewString(), nil)

	suite.Equal(http.StatusNotFound, rec.Code)
	suite.Equal(string(pkgerrors.ErrorTypeNotFound), suite.decodeError(rec).Error)
}

func (suite *HandlerTestSuite) TestGetAuthorMalformedID() {
	rec := suite.perform(http.MethodGet, "/api/authors/not-a-uuid", nil)

	suite.Equal(http.StatusBadRequest, rec.Code)
}

func (suite *HandlerTestSuite) TestListAuthorsPaginates() {
	for i := 0; i < 5; i++ {
		suite.seedAuthor(fmt.Sprintf("Author %d", i), fmt.Sprintf("author-%d@example.com", i))
	}

	rec := suite.perform(http.MethodGet, "/api/authors?page=2&page-size=2", nil)

	suite.Equal(http.StatusOK, rec.Code)
	var page authorPage
	suite.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &page))
	suite.Len(page.Items, 2)
	suite.Equal(int64(5), page.Total)
	suite.Equal(2, page.Limit)
	suite.Equal(2, page.Offset)
}

func (suite *HandlerTestSuite) TestListAuthorsEmptyPageKeepsArray() {
	rec := suite.perform(http.MethodGet, "/api/authors", nil)

	suite.Equal(http.StatusOK, rec.Code)
	suite.Contains(rec.Body.String(), `"items":[]`)
	suite.Contains(rec.Body.String(), `"total":0`)
}

func (suite *HandlerTestSuite) TestListAuthorsRejectsBadPage() {
	rec := suite.perform(http.MethodGet, "/api/authors?page=0", nil)

	suite.Equal(http.StatusBadRequest, rec.Code)
	suite.Equal(string(pkgerrors.ErrorTypeBadRequest), suite.decodeError(rec).Error)
}

func (suite *HandlerTestSuite) TestUpdateAuthorPartial() {
	author := suite.seedAuthor("Old Name", "keep@example.com")

	name := "New Name"
	rec := suite.perform(http.MethodPatch, "/api/authors/"+author.ID.String(), handler.UpdateAuthorRequest{
		Name: &name,
	})

	suite.Equal(http.StatusOK, rec.Code)
	var updated models.Author
	suite.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &updated))
	suite.Equal("New Name", updated.Name)
	suite.Equal("keep@example.com", updated.Email)

	var stored models.Author
	suite.Require().NoError(suite.db.First(&stored, "id = ?", author.ID).Error)
	suite.Equal("New Name", stored.Name)
}

func (suite *HandlerTestSuite) TestUpdateAuthorEmailConflictRollsBack() {
	suite.seedAuthor("Holder", "held@example.com")
	author := suite.seedAuthor("Mover", "mover@example.com")

	email := "held@example.com"
	rec := suite.perform(http.MethodPatch, "/api/authors/"+author.ID.String(), handler.UpdateAuthorRequest{
		Email: &email,
	})

	suite.Equal(http.StatusConflict, rec.Code)

	var stored models.Author
	suite.Require().NoError(suite.db.First(&stored, "id = ?", author.ID).Error)
	suite.Equal("mover@example.com", stored.Email)
}

func (suite *HandlerTestSuite) TestDeleteAuthorReturnsRemovedEntity() {
	author := suite.seedAuthor("Gone Soon", "gone@example.com")

	rec := suite.perform(http.MethodDelete, "/api/authors/"+author.ID.String(), nil)

	suite.Equal(http.StatusOK, rec.Code)
	var removed models.Author
	suite.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &removed))
	suite.Equal(author.ID, removed.ID)
	suite.Equal(int64(0), suite.countRows("authors"))
}

func (suite *HandlerTestSuite) TestDeleteAuthorNotFound() {
	rec := suite.perform(http.MethodDelete, "/api/authors/"+uuid.NewString(), nil)

	suite.Equal(http.StatusNotFound, rec.Code)
}

func (suite *HandlerTestSuite) TestCreateBook() {
	author := suite.seedAuthor("Prolific", "prolific@example.com")

	rec := suite.perform(http.MethodPost, "/api/books", handler.CreateBookRequest{
		Title:    "The Dispossessed",
		ISBN:     "978-0-06-051275-7",
		AuthorID: author.ID,
	})

	suite.Equal(http.StatusCreated, rec.Code)
	var created models.Book
	suite.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &created))
	suite.Equal(author.ID, created.AuthorID)
	suite.Equal(int64(1), suite.countRows("books"))
}

func (suite *HandlerTestSuite) TestCreateBookUnknownAuthor() {
	rec := suite.perform(http.MethodPost, "/api/books", handler.CreateBookRequest{
		Title:    "Orphaned",
		ISBN:     "978-0-00-000000-0",
		AuthorID: uuid.New(),
	})

	suite.Equal(http.StatusBadRequest, rec.Code)
	suite.Equal(string(pkgerrors.ErrorTypeBadRequest), suite.decodeError(rec).Error)
	suite.Equal(int64(0), suite.countRows("books"))
}

func (suite *HandlerTestSuite) TestCreateBookDuplicateISBN() {
	author := suite.seedAuthor("Writer", "writer@example.com")
	suite.seedBook(author.ID, "First Edition", "978-1-11-111111-1")

	rec := suite.perform(http.MethodPost, "/api/books", handler.CreateBookRequest{
		Title:    "Second Edition",
		ISBN:     "978-1-11-111111-1",
		AuthorID: author.ID,
	})

	suite.Equal(http.StatusConflict, rec.Code)
	suite.Equal(int64(1), suite.countRows("books"))
}

func (suite *HandlerTestSuite) TestListBooksByAuthorScopes() {
	first := suite.seedAuthor("First", "first@example.com")
	second := suite.seedAuthor("Second", "second@example.com")
	suite.seedBook(first.ID, "Mine A", "isbn-a")
	suite.seedBook(first.ID, "Mine B", "isbn-b")
	suite.seedBook(second.ID, "Theirs", "isbn-c")

	rec := suite.perform(http.MethodGet, "/api/authors/"+first.ID.String()+"/books", nil)

	suite.Equal(http.StatusOK, rec.Code)
	var page bookPage
	suite.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &page))
	suite.Len(page.Items, 2)
	suite.Equal(int64(2), page.Total)
	for _, book := range page.Items {
		suite.Equal(first.ID, book.AuthorID)
	}
}

func (suite *HandlerTestSuite) TestListBooksByUnknownAuthor() {
	rec := suite.perform(http.MethodGet, "/api/authors/"+uuid.NewString()+"/books", nil)

	suite.Equal(http.StatusNotFound, rec.Code)
	suite.Equal(string(pkgerrors.ErrorTypeNotFound), suite.decodeError(rec).Error)
}

func (suite *HandlerTestSuite) TestUpdateBookReassignsAuthor() {
	first := suite.seedAuthor("From", "from@example.com")
	second := suite.seedAuthor("To", "to@example.com")
	book := suite.seedBook(first.ID, "Migrating", "isbn-m")

	rec := suite.perform(http.MethodPatch, "/api/books/"+book.ID.String(), handler.UpdateBookRequest{
		AuthorID: &second.ID,
	})

	suite.Equal(http.StatusOK, rec.Code)
	var updated models.Book
	suite.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &updated))
	suite.Equal(second.ID, updated.AuthorID)
	suite.Equal("Migrating", updated.Title)
}

func (suite *HandlerTestSuite) TestUpdateBookUnknownAuthorRejected() {
	author := suite.seedAuthor("Stable", "stable@example.com")
	book := suite.seedBook(author.ID, "Anchored", "isbn-s")

	ghost := uuid.New()
	rec := suite.perform(http.MethodPatch, "/api/books/"+book.ID.String(), handler.UpdateBookRequest{
		AuthorID: &ghost,
	})

	suite.Equal(http.StatusBadRequest, rec.Code)

	var stored models.Book
	suite.Require().NoError(suite.db.First(&stored, "id = ?", book.ID).Error)
	suite.Equal(author.ID, stored.AuthorID)
}

func TestHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(HandlerTestSuite))
}
