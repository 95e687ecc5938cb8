package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	cataloghandler "github.com/gantryio/gantry/internal/catalog/handler"
	"github.com/gantryio/gantry/internal/config"
	"github.com/gantryio/gantry/internal/container"
	"github.com/gantryio/gantry/pkg/database"
	"github.com/gantryio/gantry/pkg/health"
	"github.com/gantryio/gantry/pkg/interfaces"
	"github.com/gantryio/gantry/pkg/logger"
	"github.com/gantryio/gantry/pkg/middleware"
)

func main() {
	// Load configuration
	cfg, err := config.Load("catalog")
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewFromConfig(&logger.Config{
		Level:       cfg.App.LogLevel,
		Development: cfg.App.Environment == "development",
		InitialFields: map[string]interface{}{
			"service": cfg.App.Slug,
		},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to build logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Catalog service starting",
		interfaces.String("version", cfg.App.Version),
		interfaces.String("environment", cfg.App.Environment))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Assemble the service graph
	c, cleanup, err := container.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to assemble service", interfaces.Error(err))
	}
	defer cleanup()

	// Run migrations
	log.Info("Running database migrations...")
	if err := database.RunMigrations(c.DB); err != nil {
		log.Fatal("Failed to run migrations", interfaces.Error(err))
	}

	// The external backends are consumed by the worker. The in-memory
	// bus never leaves this process, so its consumers attach here.
	if cfg.Events.Backend == config.BackendMemory {
		if err := container.SetupEventConsumers(ctx, c); err != nil {
			log.Fatal("Failed to start event consumers", interfaces.Error(err))
		}
	}

	// Build HTTP surface. The health route registers before the
	// middleware chain so probes skip the transaction boundary.
	if cfg.App.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.GET(cfg.App.HealthPath, health.Handler(c.AppInfo(), log, c.Checks...))
	router.Use(
		middleware.RequestLogging(log),
		middleware.Transaction(c.DB, middleware.TransactionConfig{
			CommitStatusThreshold: cfg.API.CommitStatusThreshold,
		}, log),
		middleware.ErrorTranslation(),
	)

	api := router.Group("/api")
	cataloghandler.RegisterRoutes(api,
		cataloghandler.NewAuthorHandler(c.Authors, c.FilterDefaults()),
		cataloghandler.NewBookHandler(c.Books, c.FilterDefaults()),
	)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.HTTPPort),
		Handler: router,
	}

	go func() {
		log.Info("HTTP server starting", interfaces.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", interfaces.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", interfaces.Error(err))
	}

	if err := c.Bus.Stop(); err != nil {
		log.Error("Event bus stop failed", interfaces.Error(err))
	}

	log.Info("Catalog service stopped")
}
