package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"finance-analytics-backend/internal/analytics"
	"finance-analytics-backend/internal/config"
	"finance-analytics-backend/internal/logging"
	"finance-analytics-backend/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const (
	postgresMaxRetries = 60
	postgresRetryDelay = 2 * time.Second
)

// normalizeDatabaseURL rewrites postgresql:// to postgres:// and disables TLS
// unless the URL chooses an sslmode itself.
func normalizeDatabaseURL(databaseURL string) string {
	if strings.HasPrefix(databaseURL, "postgresql:") {
		databaseURL = "postgres" + strings.TrimPrefix(databaseURL, "postgresql")
	}
	if !strings.Contains(databaseURL, "sslmode=") {
		separator := "?"
		if strings.Contains(databaseURL, "?") {
			separator = "&"
		}
		databaseURL = databaseURL + separator + "sslmode=disable"
	}
	return databaseURL
}

// openPostgres connects through pgx's database/sql driver, waiting for the
// server to accept connections.
func openPostgres(ctx context.Context, databaseURL string, logger *logging.Logger) (*sql.DB, error) {
	pgConfig, err := pgx.ParseConfig(normalizeDatabaseURL(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	for attempt := 1; ; attempt++ {
		db := stdlib.OpenDB(*pgConfig)
		err := db.PingContext(ctx)
		if err == nil {
			logger.Info("database connection established", zap.Int("attempt", attempt))
			return db, nil
		}
		db.Close()

		if attempt == postgresMaxRetries {
			return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", postgresMaxRetries, err)
		}
		fields := []zap.Field{
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", postgresMaxRetries),
			zap.Duration("retry_in", postgresRetryDelay),
		}
		// Log the cause on the first few attempts and every tenth after.
		if attempt <= 5 || attempt%10 == 0 {
			fields = append(fields, zap.Error(err))
		}
		logger.Warn("database not ready", fields...)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(postgresRetryDelay):
		}
	}
}

// openDatabase opens the SQL backend selected by cfg.
func openDatabase(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*sql.DB, store.Dialect, error) {
	switch cfg.DataBackend {
	case "postgres":
		db, err := openPostgres(ctx, cfg.DatabaseURL, logger)
		return db, store.DialectPostgres, err
	case "sqlite":
		db, err := store.OpenSQLite(cfg.SQLiteDBPath)
		if err == nil {
			logger.Info("sqlite database opened", zap.String("path", cfg.SQLiteDBPath))
		}
		return db, store.DialectSQLite, err
	default:
		return nil, "", fmt.Errorf("backend %q has no database", cfg.DataBackend)
	}
}

// openStore returns the transaction source for cfg and a function releasing
// it. SQL backends are migrated before use.
func openStore(ctx context.Context, cfg *config.Config, logger *logging.Logger) (analytics.Store, func(), error) {
	if cfg.DataBackend == "memory" {
		txs := demoTransactions(cfg.DemoOwnerID, time.Now().In(cfg.Location()))
		logger.Info("using in-memory store with demo data",
			logging.Owner(cfg.DemoOwnerID),
			zap.Int("transactions", len(txs)),
		)
		return store.NewMemoryStore(txs...), func() {}, nil
	}

	if err := runMigrations(ctx, cfg, logger); err != nil {
		return nil, nil, err
	}
	db, dialect, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	sqlStore := store.NewSQLStore(db, dialect)
	return sqlStore, func() { sqlStore.Close() }, nil
}
