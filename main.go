package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finance-analytics-backend/internal/analytics"
	"finance-analytics-backend/internal/cache"
	"finance-analytics-backend/internal/config"
	"finance-analytics-backend/internal/events"
	"finance-analytics-backend/internal/logging"
	"finance-analytics-backend/internal/metrics"
	"finance-analytics-backend/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func init() {
	// Amounts are JSON numbers on the wire.
	decimal.MarshalJSONWithoutQuotes = true
}

func main() {
	migrateCmd := flag.Bool("migrate", false, "Run database migrations and exit")
	seedDemoCmd := flag.Bool("seed-demo", false, "Seed demo categories and transactions (idempotent)")
	flag.Parse()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.NewLogger(loggerConfig(cfg))
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *migrateCmd:
		err = runMigrations(ctx, cfg, logger)
	case *seedDemoCmd:
		err = seedDemoData(ctx, cfg, logger)
	default:
		err = run(ctx, cfg, logger)
	}
	if err != nil {
		logger.Error("exiting", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

// loggerConfig starts from the production or development preset and applies
// the explicitly configured level and format on top.
func loggerConfig(cfg *config.Config) logging.Config {
	lc := logging.DefaultConfig()
	if cfg.LogDev {
		lc = logging.DevelopmentConfig()
	}
	if cfg.LogLevel != "" {
		lc.Level = cfg.LogLevel
	}
	if cfg.LogFormat != "" {
		lc.Format = cfg.LogFormat
	}
	return lc
}

func run(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewPrometheusCollector(cfg.MetricsNamespace)
	if err := collector.Register(registry); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	source, closeSource, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSource()

	resilient := store.NewResilientStore(source, store.ResilientConfig{
		Name:             "transactions",
		Timeout:          cfg.StoreQueryTimeout,
		MaxFailures:      uint32(cfg.BreakerMaxFailures),
		OpenTimeout:      cfg.BreakerOpenTimeout,
		HalfOpenRequests: 1,
	}, logger, collector)

	engine := analytics.NewEngine(resilient,
		analytics.WithLocation(cfg.Location()),
		analytics.WithTopExpensesLimit(cfg.TopExpensesLimit),
		analytics.WithLogger(logger.Named("analytics")),
		analytics.WithMetrics(collector),
	)

	responseCache, cacheName, closeCache := openCache(ctx, cfg, logger)
	defer closeCache()
	loader := cache.NewLoader(responseCache, cfg.CacheTTL, logger, collector)

	if cfg.AMQPURL != "" {
		go consumeEvents(ctx, cfg, loader, logger)
	}

	gin.SetMode(cfg.GinMode)
	server := &Server{
		engine:    engine,
		store:     resilient,
		loader:    loader,
		logger:    logger,
		metrics:   collector,
		backend:   cfg.DataBackend,
		cacheName: cacheName,
		now:       time.Now,
		loc:       cfg.Location(),
	}
	if p, ok := responseCache.(pinger); ok {
		server.cachePing = p
	}
	router := newRouter(server, cfg.CORSOrigins, promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("port", cfg.Port), zap.String("backend", cfg.DataBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openCache picks Redis when it is configured and reachable and the in-memory
// cache otherwise.
func openCache(ctx context.Context, cfg *config.Config, logger *logging.Logger) (cache.Cache, string, func()) {
	if cfg.RedisURL == "" {
		logger.Info("REDIS_URL not set, using in-memory response cache")
		return cache.NewMemoryCache(time.Now), "memory", func() {}
	}

	client, err := newRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warn("failed to initialize Redis, continuing with in-memory response cache", zap.Error(err))
		return cache.NewMemoryCache(time.Now), "memory", func() {}
	}
	logger.Info("redis response cache connected")
	return cache.NewRedisCache(client, ""), "redis", func() { client.Close() }
}

// consumeEvents invalidates cached analytics whenever another service
// reports changed transactions. Lost connections are re-established; it
// returns when ctx is done.
func consumeEvents(ctx context.Context, cfg *config.Config, loader *cache.Loader, logger *logging.Logger) {
	client := events.NewConsumer(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	defer client.Close()

	if err := client.ConsumeWithReconnect(ctx, invalidateOnChange(loader)); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("event consumer stopped", zap.Error(err))
	}
}

func invalidateOnChange(loader *cache.Loader) events.Handler {
	return func(ctx context.Context, msg *events.TransactionsChanged) error {
		return loader.Invalidate(ctx, msg.OwnerID)
	}
}
