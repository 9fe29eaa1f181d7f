package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/registrylabs/registrar-indexer/internal/adapter"
	"github.com/registrylabs/registrar-indexer/internal/logger"
	"github.com/registrylabs/registrar-indexer/internal/metadata"
	"github.com/registrylabs/registrar-indexer/internal/metrics"
	"github.com/registrylabs/registrar-indexer/internal/store"
	"github.com/registrylabs/registrar-indexer/internal/store/schema"
)

const (
	SWEEP_CYCLE_INTERVAL = 15 * time.Minute // Time to sleep between sweep cycles
)

// MetadataRepairSweeperConfig holds configuration for the metadata repair sweeper
type MetadataRepairSweeperConfig struct {
	BatchSize      int           // Tokens to repair per cycle
	WorkerPoolSize int           // Concurrent enrichment calls
	RetryAfter     time.Duration // Only retry tokens last touched longer ago than this
}

// metadataRepairSweeper re-enriches tokens whose descriptive fields are still
// unset. Enrichment failures during batch processing are recoverable, so a
// token can sit with NULL name, image and URI until another on-chain event
// happens to touch it. The sweeper closes that gap for tokens no later event
// ever reaches.
type metadataRepairSweeper struct {
	config    *MetadataRepairSweeperConfig
	store     store.Store
	enricher  metadata.Enricher
	pool      pond.Pool
	clock     adapter.Clock
	running   atomic.Bool
	stopChan  chan struct{}
	stoppedCh chan struct{}
}

// NewMetadataRepairSweeper creates a new metadata repair sweeper
func NewMetadataRepairSweeper(
	config *MetadataRepairSweeperConfig,
	st store.Store,
	enricher metadata.Enricher,
	clock adapter.Clock,
) Sweeper {
	return &metadataRepairSweeper{
		config:    config,
		store:     st,
		enricher:  enricher,
		clock:     clock,
		stopChan:  make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Name returns the sweeper's name
func (s *metadataRepairSweeper) Name() string {
	return "metadata-repair-sweeper"
}

// Start begins the sweeper's main loop
func (s *metadataRepairSweeper) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("sweeper already running")
	}
	defer func() {
		s.running.Store(false)
		close(s.stoppedCh) // Signal that we've stopped
	}()

	logger.InfoCtx(ctx, "Starting metadata repair sweeper",
		zap.Int("batch_size", s.config.BatchSize),
		zap.Int("worker_pool_size", s.config.WorkerPoolSize),
		zap.Duration("retry_after", s.config.RetryAfter),
	)

	// Create worker pool
	s.pool = pond.NewPool(
		s.config.WorkerPoolSize,
		pond.WithQueueSize(s.config.BatchSize),
		pond.WithContext(ctx),
	)

	// Continuous loop - stops when context is canceled or stop is requested
	for {
		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "Metadata repair sweeper stopping due to context cancellation", zap.Error(ctx.Err()))
			s.cleanup()
			return nil
		case <-s.stopChan:
			logger.InfoCtx(ctx, "Metadata repair sweeper stop requested")
			s.cleanup()
			return nil
		default:
			if err := s.runSweepCycle(ctx); err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.ErrorCtx(ctx, err)
				}
			}
		}
	}
}

// cleanup stops the worker pool and waits for tasks to complete
func (s *metadataRepairSweeper) cleanup() {
	if s.pool != nil {
		s.pool.StopAndWait()
	}
}

// Stop gracefully stops the sweeper with timeout support
func (s *metadataRepairSweeper) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil // Already stopped
	}

	logger.InfoCtx(ctx, "Stopping metadata repair sweeper")

	// Signal stop to the main loop
	close(s.stopChan)

	// Wait for main loop to exit, but respect context cancellation
	select {
	case <-s.stoppedCh:
		logger.InfoCtx(ctx, "Metadata repair sweeper stopped gracefully")
		return nil
	case <-ctx.Done():
		logger.WarnCtx(ctx, "Metadata repair sweeper stop interrupted by context timeout")
		return ctx.Err()
	}
}

// runSweepCycle runs a single sweep cycle
func (s *metadataRepairSweeper) runSweepCycle(ctx context.Context) error {
	startTime := s.clock.Now()

	// Candidates are not locked, a concurrent batch may enrich the same token.
	// Both writers store the same service response, so the race is harmless.
	tokens, err := s.store.GetTokensMissingMetadata(ctx, s.config.RetryAfter, s.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to get tokens missing metadata: %w", err)
	}

	if len(tokens) == 0 {
		logger.InfoCtx(ctx, "No tokens need metadata repair, waiting...")
		if !s.sleep(ctx, SWEEP_CYCLE_INTERVAL) {
			return ctx.Err() // Context canceled during sleep
		}
		return nil
	}

	logger.InfoCtx(ctx, "Found tokens to repair", zap.Int("count", len(tokens)))

	var repairedCount, failedCount atomic.Int32

	for _, token := range tokens {
		s.pool.Submit(func() {
			s.repairToken(ctx, token, &repairedCount, &failedCount)
		})
	}

	// Wait for all repairs to complete
	s.pool.StopAndWait()

	// Recreate pool for next cycle
	s.pool = pond.NewPool(
		s.config.WorkerPoolSize,
		pond.WithQueueSize(s.config.BatchSize),
		pond.WithContext(ctx),
	)

	duration := s.clock.Since(startTime)
	logger.InfoCtx(ctx, "Sweep cycle completed",
		zap.Duration("duration", duration),
		zap.Int("total", len(tokens)),
		zap.Int32("repaired", repairedCount.Load()),
		zap.Int32("failed", failedCount.Load()),
	)

	if !s.sleep(ctx, SWEEP_CYCLE_INTERVAL) {
		return ctx.Err() // Context canceled during sleep
	}

	return nil
}

// sleep sleeps for the given duration but can be interrupted by context cancellation
// Returns true if sleep completed normally, false if interrupted
func (s *metadataRepairSweeper) sleep(ctx context.Context, duration time.Duration) bool {
	select {
	case <-s.clock.After(duration):
		return true // Sleep completed
	case <-ctx.Done():
		return false // Interrupted by context cancellation
	case <-s.stopChan:
		return false // Interrupted by stop signal
	}
}

// repairToken re-enriches a single token and persists the result
func (s *metadataRepairSweeper) repairToken(ctx context.Context, token *schema.Token, repairedCount, failedCount *atomic.Int32) {
	tokenMetadata, err := s.enricher.Enrich(ctx, token.TokenID)
	if err != nil {
		metrics.EnrichmentCalls.WithLabelValues("failure").Inc()
		logger.WarnCtx(ctx, "Token enrichment failed, will retry next cycle",
			zap.String("token_id", token.TokenID),
			zap.Error(err))
		failedCount.Add(1)
		return
	}

	metrics.EnrichmentCalls.WithLabelValues("success").Inc()

	if err := s.store.UpdateTokenMetadata(ctx, token.TokenID,
		&tokenMetadata.Name, &tokenMetadata.ImageURI, &tokenMetadata.URI); err != nil {
		logger.ErrorCtx(ctx, err, zap.String("token_id", token.TokenID))
		failedCount.Add(1)
		return
	}

	repairedCount.Add(1)
	logger.DebugCtx(ctx, "Token metadata repaired",
		zap.String("token_id", token.TokenID),
		zap.String("name", tokenMetadata.Name))
}
