package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gantryio/gantry/pkg/models"
)

// NewAuthor creates a test author. The identifier and audit timestamps are
// left unset so the persistence layer assigns them.
func NewAuthor(name, email string) *models.Author {
	dob := time.Date(1975, 6, 15, 0, 0, 0, 0, time.UTC)
	return &models.Author{
		Name:  name,
		Email: email,
		DOB:   &dob,
	}
}

// NewBook creates a test book for the given author.
func NewBook(authorID uuid.UUID, title, isbn string) *models.Book {
	published := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	return &models.Book{
		Title:       title,
		ISBN:        isbn,
		AuthorID:    authorID,
		PublishedAt: &published,
	}
}

// NewAuthors creates n test authors with distinct names and emails.
func NewAuthors(n int) []*models.Author {
	authors := make([]*models.Author, 0, n)
	for i := 0; i < n; i++ {
		authors = append(authors, NewAuthor(
			fmt.Sprintf("Author %d", i),
			fmt.Sprintf("author%d@example.com", i),
		))
	}
	return authors
}

// NewAuditEntry creates a test audit entry.
func NewAuditEntry(kind string, entityID uuid.UUID, operation string) *models.AuditEntry {
	return &models.AuditEntry{
		EntityKind: kind,
		EntityID:   entityID,
		Operation:  operation,
		OccurredAt: time.Now().UTC(),
	}
}
