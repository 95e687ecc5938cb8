package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/gantryio/gantry/pkg/events"
	"github.com/gantryio/gantry/pkg/interfaces"
)

// Message is the wire form of an event on the Kafka topic
type Message struct {
	ID          string          `json:"id"`
	AggregateID string          `json:"aggregate_id"`
	EventType   string          `json:"event_type"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Data        json.RawMessage `json:"data"`
}

// NewMessage wraps an event for transport.
func NewMessage(event interfaces.Event) (Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return Message{}, fmt.Errorf("marshaling event: %w", err)
	}

	id := uuid.NewString()
	if entity, ok := event.(*events.EntityEvent); ok {
		id = entity.ID.String()
	}

	return Message{
		ID:          id,
		AggregateID: event.AggregateID(),
		EventType:   event.EventType(),
		OccurredAt:  time.Unix(0, event.Timestamp()).UTC(),
		Data:        data,
	}, nil
}

// Event parses the message payload back into the entity event.
func (m Message) Event() (interfaces.Event, error) {
	var entity events.EntityEvent
	if err := json.Unmarshal(m.Data, &entity); err != nil {
		return nil, fmt.Errorf("unmarshaling event payload: %w", err)
	}
	return &entity, nil
}

// Publisher publishes catalog events to a Kafka topic
type Publisher struct {
	producer sarama.SyncProducer
	topic    string
}

// NewPublisher creates a new Kafka event publisher
func NewPublisher(brokers []string, topic string) (*Publisher, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("creating producer: %w", err)
	}

	return &Publisher{
		producer: producer,
		topic:    topic,
	}, nil
}

// Publish publishes an event to Kafka. Messages are keyed by aggregate
// id so changes to one entity stay ordered within a partition.
func (p *Publisher) Publish(ctx context.Context, event interfaces.Event) error {
	message, err := NewMessage(event)
	if err != nil {
		return err
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}

	kafkaMsg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.AggregateID()),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("event_type"),
				Value: []byte(event.EventType()),
			},
		},
	}

	_, _, err = p.producer.SendMessage(kafkaMsg)
	if err != nil {
		return fmt.Errorf("sending message: %w", err)
	}

	return nil
}

// Close closes the publisher
func (p *Publisher) Close() error {
	return p.producer.Close()
}
