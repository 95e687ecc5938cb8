package kafka

import (
	"context"
	"errors"
	"sync"

	"github.com/gantryio/gantry/internal/config"
	"github.com/gantryio/gantry/pkg/interfaces"
)

// EventBus binds the Kafka producer and consumer group to the
// application event bus contract.
type EventBus struct {
	publisher *Publisher
	consumer  *Consumer
	logger    interfaces.Logger
	wg        sync.WaitGroup
}

// NewEventBus creates the Kafka-backed event bus.
func NewEventBus(cfg config.KafkaConfig, logger interfaces.Logger) (*EventBus, error) {
	publisher, err := NewPublisher(cfg.Brokers, cfg.Topic)
	if err != nil {
		return nil, err
	}

	consumer, err := NewConsumer(cfg.Brokers, cfg.GroupID, cfg.Topic, logger)
	if err != nil {
		publisher.Close()
		return nil, err
	}

	return &EventBus{
		publisher: publisher,
		consumer:  consumer,
		logger:    logger.WithFields(interfaces.String("component", "kafka.bus")),
	}, nil
}

var _ interfaces.EventBus = (*EventBus)(nil)

// Publish publishes an event to the catalog topic.
func (eb *EventBus) Publish(ctx context.Context, event interfaces.Event) error {
	return eb.publisher.Publish(ctx, event)
}

// PublishAsync publishes an event without blocking the caller.
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

// Start begins consuming the catalog topic.
func (eb *EventBus) Start(ctx context.Context) error {
	go func() {
		if err := eb.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			eb.logger.Error("consumer stopped", interfaces.Error(err))
		}
	}()
	return nil
}

// Stop waits for in-flight async publications and closes both ends.
func (eb *EventBus) Stop() error {
	eb.wg.Wait()

	var errs []error
	if err := eb.consumer.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := eb.publisher.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
