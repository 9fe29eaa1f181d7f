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
	"github.com/registrylabs/registrar-indexer/internal/block"
	"github.com/registrylabs/registrar-indexer/internal/config"
	"github.com/registrylabs/registrar-indexer/internal/indexer"
	"github.com/registrylabs/registrar-indexer/internal/logger"
	"github.com/registrylabs/registrar-indexer/internal/metadata"
	"github.com/registrylabs/registrar-indexer/internal/providers/ethereum"
	"github.com/registrylabs/registrar-indexer/internal/ratelimit"
	"github.com/registrylabs/registrar-indexer/internal/reconciler"
	"github.com/registrylabs/registrar-indexer/internal/registry"
	"github.com/registrylabs/registrar-indexer/internal/store"
	"github.com/registrylabs/registrar-indexer/internal/store/schema"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
	fromBlock  = flag.Uint64("from", 0, "First block of the range (inclusive)")
	toBlock    = flag.Uint64("to", 0, "Last block of the range (inclusive)")
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
			"service": "registrar-backfill",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)

	if *toBlock == 0 || *fromBlock > *toBlock {
		logger.FatalCtx(ctx, "Invalid block range, -from and -to are required",
			zap.Uint64("from", *fromBlock),
			zap.Uint64("to", *toBlock))
	}
	logger.InfoCtx(ctx, "Starting Registrar Backfill",
		zap.Uint64("from", *fromBlock),
		zap.Uint64("to", *toBlock))

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err), zap.String("host", cfg.Database.Host))
	}
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database")

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
	// Initialize outbound rate limiter when Redis is configured. Backfills
	// share the metadata service quota with the live indexer, so the
	// distributed limiter matters most here.
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

	// The publisher stays nil: backfilled ranges are not replayed to the
	// broker, live consumers follow the head of the stream only.
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
		nil,
		blockProvider,
		clockAdapter,
	)

	// Cancel the run on shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	if err := idx.Backfill(ctx, *fromBlock, *toBlock); err != nil && !errors.Is(err, context.Canceled) {
		logger.FatalCtx(ctx, "Backfill failed", zap.Error(err))
	}

	logger.Info("Backfill finished")
}
