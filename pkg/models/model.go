package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Model provides the identifier and audit columns shared by all entities.
//
// The identifier is assigned once and never reassigned. Both timestamps are
// owned by the persistence layer: they are filled from the same clock on
// insert, and UpdatedAt moves forward on every subsequent write.
type Model struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;index"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null;index"`
}

// BeforeCreate assigns a random identifier when none is set.
func (m *Model) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// GetID returns the entity identifier.
func (m *Model) GetID() uuid.UUID {
	return m.ID
}
