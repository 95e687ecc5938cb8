package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/gantryio/gantry/pkg/interfaces"
)

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	Name       string
	MaxRetries int
	AckWait    time.Duration
	MaxDeliver int
}

// ConsumerGroup consumes the catalog stream through a durable pull
// consumer and dispatches each event to the handlers subscribed to its
// type.
type ConsumerGroup struct {
	client     *Client
	logger     interfaces.Logger
	handlers   map[string][]interfaces.EventHandler
	mu         sync.RWMutex
	name       string
	maxRetries int
	ackWait    time.Duration
	maxDeliver int
}

// NewConsumerGroup creates a new consumer group
func NewConsumerGroup(client *Client, cfg ConsumerConfig, logger interfaces.Logger) *ConsumerGroup {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.AckWait == 0 {
		cfg.AckWait = 30 * time.Second
	}
	if cfg.MaxDeliver == 0 {
		cfg.MaxDeliver = 5
	}

	return &ConsumerGroup{
		client:     client,
		logger:     logger.WithFields(interfaces.String("component", "nats.consumer")),
		handlers:   make(map[string][]interfaces.EventHandler),
		name:       cfg.Name,
		maxRetries: cfg.MaxRetries,
		ackWait:    cfg.AckWait,
		maxDeliver: cfg.MaxDeliver,
	}
}

// Subscribe registers a handler for a specific event type
func (c *ConsumerGroup) Subscribe(eventType string, handler interfaces.EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.handlers[eventType] = append(c.handlers[eventType], handler)
	c.logger.Info("registered event handler",
		interfaces.String("event_type", eventType),
		interfaces.String("handler", fmt.Sprintf("%T", handler)),
	)
}

// Unsubscribe removes a handler for a specific event type
func (c *ConsumerGroup) Unsubscribe(eventType string, handler interfaces.EventHandler) {
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

// Start creates the durable consumer and begins consuming events until
// ctx is canceled.
func (c *ConsumerGroup) Start(ctx context.Context) error {
	consumerConfig := jetstream.ConsumerConfig{
		Durable:       c.name,
		Description:   fmt.Sprintf("Consumer for %s", c.name),
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       c.ackWait,
		MaxDeliver:    c.maxDeliver,
		ReplayPolicy:  jetstream.ReplayInstantPolicy,
		MaxAckPending: 100,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		FilterSubject: StreamSubjects,
	}

	consumer, err := c.client.JetStream().CreateOrUpdateConsumer(ctx, c.client.Stream(), consumerConfig)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	go c.consumeMessages(ctx, consumer)

	c.logger.Info("consumer group started",
		interfaces.String("consumer", c.name),
		interfaces.String("stream", c.client.Stream()),
	)
	return nil
}

// consumeMessages processes messages from the consumer
func (c *ConsumerGroup) consumeMessages(ctx context.Context, consumer jetstream.Consumer) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			msgs, err := consumer.Fetch(10, jetstream.FetchMaxWait(5*time.Second))
			if err != nil {
				if !errors.Is(err, context.DeadlineExceeded) {
					c.logger.Error("failed to fetch messages", interfaces.Error(err))
					time.Sleep(1 * time.Second)
				}
				continue
			}

			for msg := range msgs.Messages() {
				c.processMessage(ctx, msg)
			}
		}
	}
}

// processMessage handles a single message
func (c *ConsumerGroup) processMessage(ctx context.Context, msg jetstream.Msg) {
	var envelope EventEnvelope
	if err := json.Unmarshal(msg.Data(), &envelope); err != nil {
		c.logger.Error("failed to unmarshal envelope",
			interfaces.Error(err),
			interfaces.String("subject", msg.Subject()),
		)
		c.handleMessageError(ctx, msg, err)
		return
	}

	event, err := envelope.Event()
	if err != nil {
		c.logger.Error("failed to decode event",
			interfaces.Error(err),
			interfaces.String("event_id", envelope.ID),
		)
		c.handleMessageError(ctx, msg, err)
		return
	}

	c.mu.RLock()
	handlers := c.handlers[envelope.EventType]
	c.mu.RUnlock()

	if len(handlers) == 0 {
		// No handlers for this event type, acknowledge and continue
		c.logger.Debug("no handlers for event type",
			interfaces.String("event_type", envelope.EventType),
		)
		_ = msg.Ack()
		return
	}

	for _, handler := range handlers {
		if err := c.processWithHandler(ctx, handler, event); err != nil {
			c.logger.Error("handler failed",
				interfaces.Error(err),
				interfaces.String("event_id", envelope.ID),
				interfaces.String("event_type", envelope.EventType),
				interfaces.String("handler", fmt.Sprintf("%T", handler)),
			)
			c.handleMessageError(ctx, msg, err)
			return
		}
	}

	// All handlers succeeded, acknowledge message
	if err := msg.Ack(); err != nil {
		c.logger.Error("failed to acknowledge message",
			interfaces.Error(err),
			interfaces.String("event_id", envelope.ID),
		)
	}
}

// processWithHandler executes a handler with retry logic
func (c *ConsumerGroup) processWithHandler(ctx context.Context, handler interfaces.EventHandler, event interfaces.Event) error {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff
			backoff := time.Duration(attempt*attempt) * time.Second
			c.logger.Info("retrying handler",
				interfaces.Int("attempt", attempt),
				interfaces.Duration("backoff", backoff),
			)
			time.Sleep(backoff)
		}

		if err := handler.Handle(ctx, event); err != nil {
			lastErr = err
			continue
		}

		return nil
	}

	return fmt.Errorf("handler failed after %d attempts: %w", c.maxRetries, lastErr)
}

// handleMessageError handles message processing errors
func (c *ConsumerGroup) handleMessageError(ctx context.Context, msg jetstream.Msg, err error) {
	metadata, _ := msg.Metadata()

	// Past the delivery budget the message moves to the DLQ and leaves
	// the stream.
	if metadata != nil && metadata.NumDelivered >= uint64(c.maxDeliver) {
		c.sendToDeadLetterQueue(ctx, msg, err)
		_ = msg.Ack()
	} else {
		_ = msg.Nak()
	}
}

// sendToDeadLetterQueue sends failed messages to DLQ
func (c *ConsumerGroup) sendToDeadLetterQueue(ctx context.Context, msg jetstream.Msg, originalErr error) {
	metadata, _ := msg.Metadata()

	dlqMessage := DeadLetterMessage{
		OriginalSubject: msg.Subject(),
		OriginalData:    msg.Data(),
		Error:           originalErr.Error(),
		Timestamp:       time.Now(),
		Consumer:        c.name,
	}

	if metadata != nil {
		dlqMessage.NumDelivered = metadata.NumDelivered
		dlqMessage.Stream = metadata.Stream
	}

	data, err := json.Marshal(dlqMessage)
	if err != nil {
		c.logger.Error("failed to marshal DLQ message", interfaces.Error(err))
		return
	}

	subject := fmt.Sprintf("dlq.%s", c.name)
	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := c.client.JetStream().Publish(pubCtx, subject, data); err != nil {
		c.logger.Error("failed to send message to DLQ",
			interfaces.Error(err),
			interfaces.String("subject", subject),
		)
	} else {
		c.logger.Warn("message sent to dead letter queue",
			interfaces.String("original_subject", msg.Subject()),
			interfaces.String("error", originalErr.Error()),
			interfaces.Int64("deliveries", int64(dlqMessage.NumDelivered)),
		)
	}
}

// DeadLetterMessage represents a message in the dead letter queue
type DeadLetterMessage struct {
	OriginalSubject string    `json:"original_subject"`
	OriginalData    []byte    `json:"original_data"`
	Error           string    `json:"error"`
	Timestamp       time.Time `json:"timestamp"`
	NumDelivered    uint64    `json:"num_delivered"`
	Stream          string    `json:"stream"`
	Consumer        string    `json:"consumer"`
}
