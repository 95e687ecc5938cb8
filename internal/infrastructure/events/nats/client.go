package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/gantryio/gantry/internal/config"
	"github.com/gantryio/gantry/pkg/interfaces"
)

// StreamSubjects is the subject space of the catalog event stream.
const StreamSubjects = "catalog.>"

// Client wraps NATS and JetStream connections
type Client struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	logger interfaces.Logger
	cfg    config.NATSConfig
}

// NewClient creates a new NATS client with JetStream
func NewClient(cfg config.NATSConfig, logger interfaces.Logger) (*Client, func(), error) {
	logger = logger.WithFields(interfaces.String("component", "nats"))

	opts := []nats.Option{
		nats.Name(cfg.ClientID),
		nats.MaxReconnects(cfg.MaxReconnect),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", interfaces.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", interfaces.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			logger.Error("NATS async error",
				interfaces.Error(err),
				interfaces.String("subject", sub.Subject),
			)
		}),
	}

	// Connect to NATS
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	// Create JetStream context
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	client := &Client{
		nc:     nc,
		js:     js,
		logger: logger,
		cfg:    cfg,
	}

	// Initialize streams
	if err := client.initializeStreams(context.Background()); err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("failed to initialize streams: %w", err)
	}

	cleanup := func() {
		if err := nc.Drain(); err != nil {
			logger.Error("failed to drain NATS connection", interfaces.Error(err))
		}
		nc.Close()
	}

	logger.Info("NATS client initialized",
		interfaces.String("url", cfg.URL),
		interfaces.String("client_id", cfg.ClientID),
	)

	return client, cleanup, nil
}

// initializeStreams creates the necessary JetStream streams
func (c *Client) initializeStreams(ctx context.Context) error {
	// Catalog lifecycle events stream
	catalogStream := jetstream.StreamConfig{
		Name:        c.cfg.Stream,
		Description: "Stream for catalog entity lifecycle events",
		Subjects: []string{
			StreamSubjects,
		},
		Retention:    jetstream.LimitsPolicy,
		MaxAge:       30 * 24 * time.Hour, // 30 days
		MaxConsumers: -1,
		Replicas:     1,
		Storage:      jetstream.FileStorage,
		Discard:      jetstream.DiscardOld,
		MaxMsgs:      -1,
		MaxBytes:     -1,
	}

	if _, err := c.js.CreateOrUpdateStream(ctx, catalogStream); err != nil {
		return fmt.Errorf("failed to create catalog stream: %w", err)
	}

	// Dead letter queue stream
	dlqStream := jetstream.StreamConfig{
		Name:        "DLQ",
		Description: "Dead letter queue for failed messages",
		Subjects: []string{
			"dlq.>",
		},
		Retention:    jetstream.LimitsPolicy,
		MaxAge:       30 * 24 * time.Hour, // 30 days
		MaxConsumers: -1,
		Replicas:     1,
		Storage:      jetstream.FileStorage,
		Discard:      jetstream.DiscardOld,
		MaxMsgs:      -1,
		MaxBytes:     -1,
	}

	if _, err := c.js.CreateOrUpdateStream(ctx, dlqStream); err != nil {
		return fmt.Errorf("failed to create DLQ stream: %w", err)
	}

	c.logger.Info("JetStream streams initialized", interfaces.String("stream", c.cfg.Stream))
	return nil
}

// Connection returns the underlying NATS connection
func (c *Client) Connection() *nats.Conn {
	return c.nc
}

// JetStream returns the JetStream context
func (c *Client) JetStream() jetstream.JetStream {
	return c.js
}

// Stream returns the name of the catalog event stream
func (c *Client) Stream() string {
	return c.cfg.Stream
}

// IsConnected checks if the client is connected
func (c *Client) IsConnected() bool {
	return c.nc.IsConnected()
}

// Health checks the health of the NATS connection
func (c *Client) Health() error {
	if !c.IsConnected() {
		return fmt.Errorf("NATS client is not connected")
	}

	// Try to get account info as a health check
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	info, err := c.js.AccountInfo(ctx)
	if err != nil {
		return fmt.Errorf("failed to get JetStream account info: %w", err)
	}

	c.logger.Debug("NATS health check passed",
		interfaces.Int("streams", info.Streams),
		interfaces.Int("consumers", info.Consumers),
	)

	return nil
}

// Close closes the NATS connection
func (c *Client) Close() error {
	if c.nc != nil {
		c.nc.Close()
	}
	return nil
}
