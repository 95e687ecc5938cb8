package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditEntry records one entity lifecycle change. Entries are written by the
// worker from published lifecycle events, never by request handlers.
type AuditEntry struct {
	Model
	EntityKind string    `json:"entity_kind" gorm:"type:varchar(50);not null;index"`
	EntityID   uuid.UUID `json:"entity_id" gorm:"type:uuid;not null;index"`
	Operation  string    `json:"operation" gorm:"type:varchar(20);not null"`
	Payload    string    `json:"payload,omitempty" gorm:"type:text"`
	OccurredAt time.Time `json:"occurred_at" gorm:"not null;index"`
}

// TableName customizations.
func (AuditEntry) TableName() string {
	return "audit_entries"
}
