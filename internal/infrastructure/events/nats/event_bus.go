package nats

import (
	"context"
	"sync"

	"github.com/gantryio/gantry/pkg/interfaces"
)

// EventBus binds the NATS publisher and consumer group to the
// application event bus contract. Publication goes through JetStream
// with msg-id deduplication; subscriptions are served by the durable
// pull consumer.
type EventBus struct {
	client    *Client
	publisher *Publisher
	consumer  *ConsumerGroup
	logger    interfaces.Logger
	wg        sync.WaitGroup
}

// NewEventBus creates the JetStream-backed event bus.
func NewEventBus(client *Client, consumerName string, logger interfaces.Logger) *EventBus {
	return &EventBus{
		client:    client,
		publisher: NewPublisher(client, logger),
		consumer:  NewConsumerGroup(client, ConsumerConfig{Name: consumerName}, logger),
		logger:    logger.WithFields(interfaces.String("component", "nats.bus")),
	}
}

var _ interfaces.EventBus = (*EventBus)(nil)

// Publish publishes an event to the catalog stream.
func (eb *EventBus) Publish(ctx context.Context, event interfaces.Event) error {
	return eb.publisher.Publish(ctx, event)
}

// PublishAsync publishes an event without blocking the caller. Failures
// are logged; delivery is then owed to the stream retention, not the
// caller.
func (eb *EventBus) PublishAsync(ctx context.Context, event interfaces.Event) {
	eb.wg.Add(1)
	go func() {
		defer eb.wg.Done()
		if err := eb.publisher.Publish(ctx, event); err != nil {
			eb.logger.Error("async event publish failed",
				interfaces.String("event_type", event.EventType()),
				interfaces.Error(err))
		}
	}()
}

// Subscribe registers a handler for a specific event type.
func (eb *EventBus) Subscribe(eventType string, handler interfaces.EventHandler) error {
	eb.consumer.Subscribe(eventType, handler)
	return nil
}

// Unsubscribe removes a handler for a specific event type.
func (eb *EventBus) Unsubscribe(eventType string, handler interfaces.EventHandler) error {
	eb.consumer.Unsubscribe(eventType, handler)
	return nil
}

// Start begins consuming the catalog stream.
func (eb *EventBus) Start(ctx context.Context) error {
	return eb.consumer.Start(ctx)
}

// Stop waits for in-flight async publications and closes the connection.
func (eb *EventBus) Stop() error {
	eb.wg.Wait()
	return eb.client.Close()
}
