// Package infrastructure provides core service initialization for application startup.
// It assembles common dependencies (logging, tracing, database, storage, events)
// that domain systems require.
package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/JaimeStill/relief/internal/config"
	"github.com/JaimeStill/relief/pkg/database"
	"github.com/JaimeStill/relief/pkg/events"
	"github.com/JaimeStill/relief/pkg/lifecycle"
	"github.com/JaimeStill/relief/pkg/storage"
	"github.com/JaimeStill/relief/pkg/tracing"
)

// Infrastructure holds the core systems required by all domain modules.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Storage   storage.System
	Events    events.Publisher

	shutdownTracing func(context.Context) error
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	shutdownTracing, err := tracing.Init(&cfg.Tracing, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("tracing init failed: %w", err)
	}

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	return &Infrastructure{
		Lifecycle:       lc,
		Logger:          logger,
		Database:        db,
		Storage:         store,
		Events:          events.New(&cfg.Events, logger),
		shutdownTracing: shutdownTracing,
	}, nil
}

// Start registers all infrastructure systems with the lifecycle coordinator.
// The event publisher and tracer are flushed once background workers drain.
func (i *Infrastructure) Start() error {
	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("database start failed: %w", err)
	}
	if err := i.Storage.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("storage start failed: %w", err)
	}
	i.Lifecycle.AddProbe("database", i.Database.Ready)
	i.Lifecycle.AddProbe("storage", i.Storage.Ready)

	i.Lifecycle.OnShutdown(func() {
		<-i.Lifecycle.Context().Done()
		i.Lifecycle.Drained()

		if err := i.Events.Close(); err != nil {
			i.Logger.Error("event publisher close failed", "error", err)
		}
		if i.shutdownTracing != nil {
			if err := i.shutdownTracing(context.Background()); err != nil {
				i.Logger.Error("tracing shutdown failed", "error", err)
			}
		}
	})
	return nil
}
