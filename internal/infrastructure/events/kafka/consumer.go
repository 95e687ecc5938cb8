package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/IBM/sarama"

	"github.com/gantryio/gantry/pkg/interfaces"
)

// Consumer consumes catalog events from a Kafka topic through a
// consumer group and dispatches them to subscribed handlers.
type Consumer struct {
	consumer sarama.ConsumerGroup
	topic    string
	handlers map[string][]interfaces.EventHandler
	mu       sync.RWMutex
	logger   interfaces.Logger
}

// NewConsumer creates a new Kafka event consumer
func NewConsumer(brokers []string, groupID, topic string, logger interfaces.Logger) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Return.Errors = true
	config.Consumer.Offsets.Initial = sarama.OffsetOldest

	consumer, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("creating consumer group: %w", err)
	}

	return &Consumer{
		consumer: consumer,
		topic:    topic,
		handlers: make(map[string][]interfaces.EventHandler),
		logger:   logger.WithFields(interfaces.String("component", "kafka.consumer")),
	}, nil
}

// Subscribe registers a handler for a specific event type
func (c *Consumer) Subscribe(eventType string, handler interfaces.EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[eventType] = append(c.handlers[eventType], handler)
}

// Unsubscribe removes a handler for a specific event type
func (c *Consumer) Unsubscribe(eventType string, handler interfaces.EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()

	handlers := c.handlers[eventType]
	for i, h := range handlers {
		if h == handler {
			c.handlers[eventType] = append(handlers[:i], handlers[i+1:]...)
			break
		}
	}
}

// Start consumes events until ctx is canceled. Consume returns whenever
// the group rebalances, so it runs in a loop.
func (c *Consumer) Start(ctx context.Context) error {
	topics := []string{c.topic}

	for {
		err := c.consumer.Consume(ctx, topics, c)
		if err != nil {
			return fmt.Errorf("consuming messages: %w", err)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// ConsumeClaim implements sarama.ConsumerGroupHandler
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		c.processMessage(session, message)
	}

	return nil
}

// processMessage dispatches one record to its handlers. Failures are
// logged and the offset still advances; a poison record must not wedge
// the partition.
func (c *Consumer) processMessage(session sarama.ConsumerGroupSession, message *sarama.ConsumerMessage) {
	defer session.MarkMessage(message, "")

	var msg Message
	if err := json.Unmarshal(message.Value, &msg); err != nil {
		c.logger.Error("failed to unmarshal message",
			interfaces.Error(err),
			interfaces.String("topic", message.Topic),
			interfaces.Int64("offset", message.Offset),
		)
		return
	}

	event, err := msg.Event()
	if err != nil {
		c.logger.Error("failed to decode event",
			interfaces.Error(err),
			interfaces.String("event_id", msg.ID),
		)
		return
	}

	c.mu.RLock()
	handlers := c.handlers[msg.EventType]
	c.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler.Handle(session.Context(), event); err != nil {
			c.logger.Error("handler failed",
				interfaces.Error(err),
				interfaces.String("event_id", msg.ID),
				interfaces.String("event_type", msg.EventType),
				interfaces.String("handler", fmt.Sprintf("%T", handler)),
			)
		}
	}
}

// Setup implements sarama.ConsumerGroupHandler
func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup implements sarama.ConsumerGroupHandler
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// Close closes the consumer
func (c *Consumer) Close() error {
	return c.consumer.Close()
}
