package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Operation names the lifecycle change an entity went through.
type Operation string

const (
	// OperationCreated marks a newly persisted entity
	OperationCreated Operation = "created"
	// OperationUpdated marks a partial update of an entity
	OperationUpdated Operation = "updated"
	// OperationDeleted marks the removal of an entity
	OperationDeleted Operation = "deleted"
)

// EntityEvent describes one lifecycle change of a catalog entity. It is
// what services publish after successful mutations and what the worker
// consumes.
type EntityEvent struct {
	ID         uuid.UUID       `json:"id"`
	Kind       string          `json:"kind"`
	Operation  Operation       `json:"operation"`
	EntityID   uuid.UUID       `json:"entity_id"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NewEntityEvent creates a lifecycle event carrying a JSON snapshot of
// payload. A snapshot that cannot be marshalled is left empty; the event
// still carries kind, operation and entity identifier.
func NewEntityEvent(kind string, op Operation, entityID uuid.UUID, payload interface{}) *EntityEvent {
	var snapshot json.RawMessage
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			snapshot = data
		}
	}
	return &EntityEvent{
		ID:         uuid.New(),
		Kind:       kind,
		Operation:  op,
		EntityID:   entityID,
		Payload:    snapshot,
		OccurredAt: time.Now().UTC(),
	}
}

// EventType returns the subscription key, e.g. "author.created".
func (e *EntityEvent) EventType() string {
	return e.Kind + "." + string(e.Operation)
}

// Timestamp returns when the event occurred.
func (e *EntityEvent) Timestamp() int64 {
	return e.OccurredAt.UnixNano()
}

// AggregateID returns the identifier of the entity that changed.
func (e *EntityEvent) AggregateID() string {
	return e.EntityID.String()
}
