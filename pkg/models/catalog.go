package models

import (
	"time"

	"github.com/google/uuid"
)

// Author represents a book author in the catalog.
type Author struct {
	Model
	Name  string     `json:"name" gorm:"not null;index"`
	Email string     `json:"email" gorm:"uniqueIndex;not null"`
	DOB   *time.Time `json:"dob,omitempty"`

	// Relationships
	Books []Book `json:"books,omitempty" gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE"`
}

// Book represents a single published work in the catalog.
type Book struct {
	Model
	Title       string     `json:"title" gorm:"not null;index"`
	ISBN        string     `json:"isbn" gorm:"uniqueIndex;not null"`
	AuthorID    uuid.UUID  `json:"author_id" gorm:"type:uuid;not null;index"`
	PublishedAt *time.Time `json:"published_at,omitempty"`

	// Relationships
	Author Author `json:"-" gorm:"foreignKey:AuthorID"`
}

// TableName customizations.
func (Author) TableName() string {
	return "authors"
}

func (Book) TableName() string {
	return "books"
}
