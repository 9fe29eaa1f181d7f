package main

import (
	"context"
	"errors"
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
	"github.com/registrylabs/registrar-indexer/internal/api/rest"
	"github.com/registrylabs/registrar-indexer/internal/api/server"
	"github.com/registrylabs/registrar-indexer/internal/block"
	"github.com/registrylabs/registrar-indexer/internal/config"
	"github.com/registrylabs/registrar-indexer/internal/indexer"
	"github.com/registrylabs/registrar-indexer/internal/logger"
	"github.com/registrylabs/registrar-indexer/internal/messaging"
	"github.com/registrylabs/registrar-indexer/internal/metadata"
	"github.com/registrylabs/registrar-indexer/internal/providers/ethereum"
	"github.com/registrylabs/registrar-indexer/internal/providers/jetstream"
	"github.com/registrylabs/registrar-indexer/internal/ratelimit"
	"github.com/registrylabs/registrar-indexer/internal/reconciler"
	"github.com/registrylabs/registrar-indexer/internal/registry"
	"github.com/registrylabs/registrar-indexer/internal/store"
	"github.com/registrylabs/registrar-indexer/internal/store/schema"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadIndexerConfig(*configFile, *envPath)
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
			"service": "registrar-indexer",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Registrar Indexer")

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
	jsonAdapter := adapter.NewJSON()
	httpClient := adapter.NewHTTPClient(cfg.Metadata.HTTPTimeout)

	// Initialize ethereum client
	ethDialer := adapter.NewEthClientDialer()
	ethClient, err := ethDialer.Dial(ctx, cfg.Ethereum.RPCURL)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to dial Ethereum RPC", zap.Error(err), zap.String("rpc_url", cfg.Ethereum.RPCURL))
	}
	defer ethClient.Close()
	logger.InfoCtx(ctx, "Connected to Ethereum RPC")

	// Initialize block provider and batch fetcher
	blockProvider := block.NewProvider(
		ethereum.NewBlockFetcher(ethClient),
		block.Config{
			TTL:         cfg.Ethereum.BlockHeadTTL,
			StaleWindow: cfg.Ethereum.BlockHeadStaleWindow,
		},
		clockAdapter,
	)
	batchFetcher := ethereum.NewBatchFetcher(ethClient, blockProvider, cfg.Registrar.ContractAddress)

	// Initialize reconciliation engine
	contractResolver := registry.NewContractResolver(dataStore, registry.ContractInfo{
		Address:     cfg.Registrar.ContractAddress,
		Name:        cfg.Registrar.Name,
		Symbol:      cfg.Registrar.Symbol,
		TotalSupply: uint64(cfg.Registrar.TotalSupply),
		Standard:    schema.Standard(cfg.Registrar.Standard),
	})
	// Initialize outbound rate limiter when Redis is configured
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

	enricher := metadata.NewEnricher(httpClient, limiter, cfg.Metadata.ServiceURL, cfg.Registrar.ContractAddress)
	engine := reconciler.NewEngine(contractResolver, enricher, jsonAdapter, clockAdapter, reconciler.Config{
		EnrichmentWorkers:   cfg.Worker.WorkerPoolSize,
		EnrichmentQueueSize: cfg.Worker.WorkerQueueSize,
	})

	// Initialize NATS publisher when configured
	var publisher messaging.Publisher
	if cfg.NATS.URL != "" {
		natsJS := adapter.NewNatsJetStream()
		publisher, err = jetstream.NewPublisher(ctx, jetstream.Config{
			URL:            cfg.NATS.URL,
			StreamName:     cfg.NATS.StreamName,
			MaxReconnects:  cfg.NATS.MaxReconnects,
			ReconnectWait:  cfg.NATS.ReconnectWait,
			ConnectionName: cfg.NATS.ConnectionName,
		}, natsJS, jsonAdapter)
		if err != nil {
			logger.FatalCtx(ctx, "Failed to create NATS publisher", zap.Error(err), zap.String("url", cfg.NATS.URL))
		}
		defer publisher.Close()
		logger.InfoCtx(ctx, "Connected to NATS JetStream")
	} else {
		logger.WarnCtx(ctx, "NATS URL not configured, persisted events will not be published")
	}

	// Create the indexing pipeline
	idx := indexer.NewIndexer(
		indexer.Config{
			ContractAddress: cfg.Registrar.ContractAddress,
			StartBlock:      cfg.Ethereum.StartBlock,
			Confirmations:   cfg.Ethereum.Confirmations,
			BatchSize:       cfg.Ethereum.BatchSize,
			PollInterval:    cfg.Ethereum.PollInterval,
		},
		dataStore,
		batchFetcher,
		engine,
		publisher,
		blockProvider,
		clockAdapter,
	)

	// Create the operational API server
	apiHandler := rest.NewHandler(dataStore, blockProvider, cfg.Registrar.ContractAddress)
	srv := server.New(server.Config{
		Debug:        cfg.Debug,
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}, apiHandler)

	// Channel for component errors
	errCh := make(chan error, 2)

	// Start the indexer
	go func() {
		if err := idx.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	// Start the API server
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "indexer"))
	}
	cancel()

	// Create shutdown context with timeout (don't use canceled ctx)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := idx.Stop(shutdownCtx); err != nil {
		logger.Error(err, zap.String("message", "indexer did not stop cleanly"))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, zap.String("message", "API server forced to shutdown"))
	}

	// Use non-context logger for final shutdown message since context is already canceled
	logger.Info("Registrar Indexer stopped")
}
