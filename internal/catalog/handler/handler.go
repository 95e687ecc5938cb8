package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	catalogservice "github.com/gantryio/gantry/internal/catalog/service"
	pkgerrors "github.com/gantryio/gantry/pkg/errors"
	"github.com/gantryio/gantry/pkg/filters"
	"github.com/gantryio/gantry/pkg/models"
	"github.com/gantryio/gantry/pkg/pagination"
)

// RegisterRoutes mounts the catalog API under api.
func RegisterRoutes(api *gin.RouterGroup, authors *AuthorHandler, books *BookHandler) {
	authorRoutes := api.Group("/authors")
	{
		authorRoutes.POST("", authors.Create)
		authorRoutes.GET("", authors.List)
		authorRoutes.GET("/:id", authors.Get)
		authorRoutes.PATCH("/:id", authors.Update)
		authorRoutes.DELETE("/:id", authors.Delete)
		authorRoutes.GET("/:id/books", books.ListByAuthor)
	}

	bookRoutes := api.Group("/books")
	{
		bookRoutes.POST("", books.Create)
		bookRoutes.GET("", books.List)
		bookRoutes.GET("/:id", books.Get)
		bookRoutes.PATCH("/:id", books.Update)
		bookRoutes.DELETE("/:id", books.Delete)
	}
}

// parseID reads the :id route parameter.
func parseID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, pkgerrors.BadRequest("invalid entity id")
	}
	return id, nil
}

// AuthorHandler serves the author endpoints.
type AuthorHandler struct {
	service  *catalogservice.AuthorService
	defaults filters.Defaults
}

// NewAuthorHandler creates the author handler.
func NewAuthorHandler(service *catalogservice.AuthorService, defaults filters.Defaults) *AuthorHandler {
	return &AuthorHandler{service: service, defaults: defaults}
}

// CreateAuthorRequest carries the author creation payload.
type CreateAuthorRequest struct {
	Name  string     `json:"name"`
	Email string     `json:"email"`
	DOB   *time.Time `json:"dob"`
}

// UpdateAuthorRequest carries a partial author update. Absent fields
// stay untouched.
type UpdateAuthorRequest struct {
	Name  *string    `json:"name"`
	Email *string    `json:"email"`
	DOB   *time.Time `json:"dob"`
}

// Create handles POST /authors.
func (h *AuthorHandler) Create(c *gin.Context) {
	var req CreateAuthorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(pkgerrors.BadRequest("invalid request body"))
		return
	}

	author := &models.Author{Name: req.Name, Email: req.Email, DOB: req.DOB}
	created, err := h.service.Create(c.Request.Context(), author)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

// List handles GET /authors.
func (h *AuthorHandler) List(c *gin.Context) {
	fs, err := filters.FromQuery(c.Request.URL.Query(), h.defaults)
	if err != nil {
		c.Error(err)
		return
	}

	authors, total, err := h.service.ListAndCount(c.Request.Context(), fs...)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, pagination.NewPage(authors, total, filters.Pagination(fs)))
}

// Get handles GET /authors/:id.
func (h *AuthorHandler) Get(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		c.Error(err)
		return
	}

	author, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, author)
}

// Update handles PATCH /authors/:id.
func (h *AuthorHandler) Update(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		c.Error(err)
		return
	}

	var req UpdateAuthorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(pkgerrors.BadRequest("invalid request body"))
		return
	}

	fields := make(map[string]interface{})
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.Email != nil {
		fields["email"] = *req.Email
	}
	if req.DOB != nil {
		fields["dob"] = *req.DOB
	}

	author, err := h.service.Update(c.Request.Context(), id, fields)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, author)
}

// Delete handles DELETE /authors/:id. The removed author is returned.
func (h *AuthorHandler) Delete(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		c.Error(err)
		return
	}

	author, err := h.service.Delete(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, author)
}

// BookHandler serves the book endpoints.
type BookHandler struct {
	service  *catalogservice.BookService
	defaults filters.Defaults
}

// NewBookHandler creates the book handler.
func NewBookHandler(service *catalogservice.BookService, defaults filters.Defaults) *BookHandler {
	return &BookHandler{service: service, defaults: defaults}
}

// CreateBookRequest carries the book creation payload.
type CreateBookRequest struct {
	Title       string     `json:"title"`
	ISBN        string     `json:"isbn"`
	AuthorID    uuid.UUID  `json:"author_id"`
	PublishedAt *time.Time `json:"published_at"`
}

// UpdateBookRequest carries a partial book update. Absent fields stay
// untouched.
type UpdateBookRequest struct {
	Title       *string    `json:"title"`
	ISBN        *string    `json:"isbn"`
	AuthorID    *uuid.UUID `json:"author_id"`
	PublishedAt *time.Time `json:"published_at"`
}

// Create handles POST /books.
func (h *BookHandler) Create(c *gin.Context) {
	var req CreateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(pkgerrors.BadRequest("invalid request body"))
		return
	}

	book := &models.Book{
		Title:       req.Title,
		ISBN:        req.ISBN,
		AuthorID:    req.AuthorID,
		PublishedAt: req.PublishedAt,
	}
	created, err := h.service.Create(c.Request.Context(), book)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

// List handles GET /books.
func (h *BookHandler) List(c *gin.Context) {
	fs, err := filters.FromQuery(c.Request.URL.Query(), h.defaults)
	if err != nil {
		c.Error(err)
		return
	}

	books, total, err := h.service.ListAndCount(c.Request.Context(), fs...)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, pagination.NewPage(books, total, filters.Pagination(fs)))
}

// ListByAuthor handles GET /authors/:id/books.
func (h *BookHandler) ListByAuthor(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		c.Error(err)
		return
	}

	fs, err := filters.FromQuery(c.Request.URL.Query(), h.defaults)
	if err != nil {
		c.Error(err)
		return
	}

	books, total, err := h.service.ListByAuthor(c.Request.Context(), id, fs...)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, pagination.NewPage(books, total, filters.Pagination(fs)))
}

// Get handles GET /books/:id.
func (h *BookHandler) Get(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		c.Error(err)
		return
	}

	book, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, book)
}

// Update handles PATCH /books/:id.
func (h *BookHandler) Update(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		c.Error(err)
		return
	}

	var req UpdateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(pkgerrors.BadRequest("invalid request body"))
		return
	}

	fields := make(map[string]interface{})
	if req.Title != nil {
		fields["title"] = *req.Title
	}
	if req.ISBN != nil {
		fields["isbn"] = *req.ISBN
	}
	if req.AuthorID != nil {
		fields["author_id"] = *req.AuthorID
	}
	if req.PublishedAt != nil {
		fields["published_at"] = *req.PublishedAt
	}

	book, err := h.service.Update(c.Request.Context(), id, fields)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, book)
}

// Delete handles DELETE /books/:id. The removed book is returned.
func (h *BookHandler) Delete(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		c.Error(err)
		return
	}

	book, err := h.service.Delete(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, book)
}
