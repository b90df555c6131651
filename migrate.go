package main

import (
	"context"
	"fmt"

	"finance-analytics-backend/internal/config"
	"finance-analytics-backend/internal/logging"
	"finance-analytics-backend/internal/store"

	"go.uber.org/zap"
)

// runMigrations brings the configured database schema up to date. It uses a
// dedicated connection that is closed when the migration finishes.
func runMigrations(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	if cfg.DataBackend == "memory" {
		logger.Info("memory backend has no schema to migrate")
		return nil
	}

	db, dialect, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open database for migration: %w", err)
	}

	logger.Info("applying database migrations", zap.String("dialect", string(dialect)))
	if err := store.Migrate(db, dialect); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	logger.Info("database schema is up to date")
	return nil
}
