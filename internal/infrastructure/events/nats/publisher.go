package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/gantryio/gantry/pkg/events"
	"github.com/gantryio/gantry/pkg/interfaces"
)

// SubjectFor returns the stream subject carrying events of the given type.
func SubjectFor(eventType string) string {
	return "catalog." + eventType
}

// EventEnvelope wraps an event with metadata for transport
type EventEnvelope struct {
	ID          string          `json:"id"`
	AggregateID string          `json:"aggregate_id"`
	EventType   string          `json:"event_type"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Data        json.RawMessage `json:"data"`
}

// NewEnvelope wraps event for transport. The envelope identifier doubles
// as the JetStream deduplication key, so it is stable for entity events
// and minted otherwise.
func NewEnvelope(event interfaces.Event) (EventEnvelope, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return EventEnvelope{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	id := uuid.NewString()
	if entity, ok := event.(*events.EntityEvent); ok {
		id = entity.ID.String()
	}

	return EventEnvelope{
		ID:          id,
		AggregateID: event.AggregateID(),
		EventType:   event.EventType(),
		OccurredAt:  time.Unix(0, event.Timestamp()).UTC(),
		Data:        data,
	}, nil
}

// Event parses the envelope payload back into the entity event.
func (e EventEnvelope) Event() (interfaces.Event, error) {
	var entity events.EntityEvent
	if err := json.Unmarshal(e.Data, &entity); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event payload: %w", err)
	}
	return &entity, nil
}

// Publisher publishes catalog events to NATS JetStream
type Publisher struct {
	client *Client
	logger interfaces.Logger
}

// NewPublisher creates a new NATS event publisher
func NewPublisher(client *Client, logger interfaces.Logger) *Publisher {
	return &Publisher{
		client: client,
		logger: logger.WithFields(interfaces.String("component", "nats.publisher")),
	}
}

// Publish publishes an event to the catalog stream
func (p *Publisher) Publish(ctx context.Context, event interfaces.Event) error {
	subject := SubjectFor(event.EventType())

	envelope, err := NewEnvelope(event)
	if err != nil {
		return err
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	// Publish to JetStream with deduplication ID
	pubOpts := []jetstream.PublishOpt{
		jetstream.WithMsgID(envelope.ID),
	}

	// Publish with timeout
	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ack, err := p.client.JetStream().Publish(pubCtx, subject, data, pubOpts...)
	if err != nil {
		p.logger.Error("failed to publish event",
			interfaces.Error(err),
			interfaces.String("event_id", envelope.ID),
			interfaces.String("event_type", envelope.EventType),
			interfaces.String("subject", subject),
		)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("event published",
		interfaces.String("event_id", envelope.ID),
		interfaces.String("event_type", envelope.EventType),
		interfaces.String("subject", subject),
		interfaces.Int64("sequence", int64(ack.Sequence)),
		interfaces.String("stream", ack.Stream),
	)

	return nil
}
