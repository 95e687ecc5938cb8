package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gantryio/gantry/internal/config"
	"github.com/gantryio/gantry/internal/container"
	"github.com/gantryio/gantry/pkg/database"
	"github.com/gantryio/gantry/pkg/interfaces"
	"github.com/gantryio/gantry/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load("catalog-worker")
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewFromConfig(&logger.Config{
		Level:       cfg.App.LogLevel,
		Development: cfg.App.Environment == "development",
		InitialFields: map[string]interface{}{
			"service": cfg.App.Slug + "-worker",
		},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to build logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Catalog worker starting",
		interfaces.String("version", cfg.App.Version),
		interfaces.String("environment", cfg.App.Environment),
		interfaces.String("events_backend", cfg.Events.Backend))

	if cfg.Events.Backend == config.BackendMemory {
		log.Warn("memory event bus never crosses processes; this worker will receive nothing")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Assemble the service graph
	c, cleanup, err := container.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to assemble worker", interfaces.Error(err))
	}
	defer cleanup()

	// The worker writes the audit table; the schema must be current.
	log.Info("Running database migrations...")
	if err := database.RunMigrations(c.DB); err != nil {
		log.Fatal("Failed to run migrations", interfaces.Error(err))
	}

	// Subscribe handlers and start consuming
	if err := container.SetupEventConsumers(ctx, c); err != nil {
		log.Fatal("Failed to start event consumers", interfaces.Error(err))
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down...")

	cancel()
	if err := c.Bus.Stop(); err != nil {
		log.Error("Event bus stop failed", interfaces.Error(err))
	}

	log.Info("Catalog worker stopped")
}
