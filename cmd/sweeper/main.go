package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/registrylabs/registrar-indexer/internal/adapter"
	"github.com/registrylabs/registrar-indexer/internal/config"
	"github.com/registrylabs/registrar-indexer/internal/logger"
	"github.com/registrylabs/registrar-indexer/internal/metadata"
	"github.com/registrylabs/registrar-indexer/internal/ratelimit"
	"github.com/registrylabs/registrar-indexer/internal/store"
	"github.com/registrylabs/registrar-indexer/internal/sweeper"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadSweeperConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "registrar-sweeper",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Registrar Sweeper")

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err), zap.String("host", cfg.Database.Host))
	}

	// Configure connection pool
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database",
		zap.Int("max_open_conns", cfg.Database.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.Database.MaxIdleConns),
	)

	// Initialize store
	dataStore := store.NewPGStore(db)

	// Initialize adapters
	clockAdapter := adapter.NewClock()
	httpClient := adapter.NewHTTPClient(cfg.Metadata.HTTPTimeout)

	// Initialize outbound rate limiter when Redis is configured. The sweeper
	// shares the metadata service quota with the indexer and backfills.
	var limiter ratelimit.Limiter
	if cfg.RateLimiter.RedisAddr != "" {
		redisClient := adapter.NewRedisClient(cfg.RateLimiter.RedisAddr, cfg.RateLimiter.RedisPassword, cfg.RateLimiter.RedisDB)
		limiter, err = ratelimit.NewLimiter(cfg.RateLimiter, redisClient, clockAdapter)
		if err != nil {
			logger.FatalCtx(ctx, "Failed to create rate limiter", zap.Error(err), zap.String("redis_addr", cfg.RateLimiter.RedisAddr))
		}
		defer limiter.Close()
		logger.InfoCtx(ctx, "Outbound rate limiting enabled", zap.String("redis_addr", cfg.RateLimiter.RedisAddr))
	} else {
		logger.WarnCtx(ctx, "Rate limiter Redis not configured, outbound calls are unthrottled")
	}

	// Initialize enricher
	enricher := metadata.NewEnricher(httpClient, limiter, cfg.Metadata.ServiceURL, cfg.Registrar.ContractAddress)

	// Initialize metadata repair sweeper
	repairSweeperConfig := &sweeper.MetadataRepairSweeperConfig{
		BatchSize:      cfg.Sweeper.BatchSize,
		WorkerPoolSize: cfg.Sweeper.Worker.WorkerPoolSize,
		RetryAfter:     cfg.Sweeper.RetryAfter,
	}
	repairSweeper := sweeper.NewMetadataRepairSweeper(repairSweeperConfig, dataStore, enricher, clockAdapter)

	logger.InfoCtx(ctx, "Initialized metadata repair sweeper (continuous mode)",
		zap.Int("batch_size", cfg.Sweeper.BatchSize),
		zap.Int("worker_pool_size", cfg.Sweeper.Worker.WorkerPoolSize),
		zap.Duration("retry_after", cfg.Sweeper.RetryAfter),
	)

	// Start the sweeper in a goroutine
	errChan := make(chan error, 1)
	go func() {
		if err := repairSweeper.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	// Wait for interrupt signal or error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		logger.ErrorCtx(ctx, err)
	}

	// Cancel context to stop the sweeper
	cancel()

	// Give the sweeper time to shut down gracefully
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer shutdownCancel()

	if err := repairSweeper.Stop(shutdownCtx); err != nil {
		logger.ErrorCtx(shutdownCtx, err)
	}

	logger.InfoCtx(shutdownCtx, "Registrar Sweeper stopped")
}
