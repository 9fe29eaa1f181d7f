package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/registrylabs/registrar-indexer/internal/adapter"
	"github.com/registrylabs/registrar-indexer/internal/block"
	"github.com/registrylabs/registrar-indexer/internal/domain"
	"github.com/registrylabs/registrar-indexer/internal/logger"
	"github.com/registrylabs/registrar-indexer/internal/messaging"
	"github.com/registrylabs/registrar-indexer/internal/metrics"
	"github.com/registrylabs/registrar-indexer/internal/providers/ethereum"
	"github.com/registrylabs/registrar-indexer/internal/reconciler"
	"github.com/registrylabs/registrar-indexer/internal/store"
	"github.com/registrylabs/registrar-indexer/internal/store/schema"
)

const (
	defaultBatchSize     = 2000
	defaultPollInterval  = 12 * time.Second
	defaultConfirmations = 12
)

// Indexer drives batches of registrar logs from the chain into storage
//
//go:generate mockgen -source=indexer.go -destination=../mocks/indexer.go -package=mocks -mock_names=Indexer=MockIndexer
type Indexer interface {
	// Start begins the indexing loop. This is a blocking call that runs
	// until the context is canceled, Stop is called, or an unrecoverable
	// decode failure is hit.
	Start(ctx context.Context) error

	// Backfill reprocesses an explicit inclusive block range in batch-size
	// chunks, without following the chain head. This is a blocking call.
	Backfill(ctx context.Context, fromBlock, toBlock uint64) error

	// Stop gracefully stops the indexer, waiting for the in-progress batch
	Stop(ctx context.Context) error

	// Name returns the indexer's name for logging and identification
	Name() string
}

// Config holds the indexing loop configuration
type Config struct {
	// ContractAddress is the registrar contract being indexed
	ContractAddress string

	// StartBlock is the first block to index when no cursor exists yet
	StartBlock uint64

	// Confirmations is how many blocks to hold back from the chain head
	Confirmations uint64

	// BatchSize is the maximum number of blocks per batch
	BatchSize uint64

	// PollInterval is how long to wait when caught up with the chain head
	// or after a failed cycle
	PollInterval time.Duration
}

type indexer struct {
	config    Config
	store     store.Store
	fetcher   ethereum.BatchFetcher
	engine    reconciler.Engine
	publisher messaging.Publisher
	blocks    block.Provider
	clock     adapter.Clock
	running   atomic.Bool
	stopChan  chan struct{}
	stoppedCh chan struct{}
}

// NewIndexer creates the indexing pipeline for one registrar contract.
// The publisher may be nil, in which case persisted events are not forwarded
// to the message broker.
func NewIndexer(
	config Config,
	st store.Store,
	fetcher ethereum.BatchFetcher,
	engine reconciler.Engine,
	publisher messaging.Publisher,
	blocks block.Provider,
	clock adapter.Clock,
) Indexer {
	config.ContractAddress = domain.NormalizeAddress(config.ContractAddress)
	if config.BatchSize == 0 {
		config.BatchSize = defaultBatchSize
	}
	if config.PollInterval == 0 {
		config.PollInterval = defaultPollInterval
	}
	if config.Confirmations == 0 {
		config.Confirmations = defaultConfirmations
	}

	return &indexer{
		config:    config,
		store:     st,
		fetcher:   fetcher,
		engine:    engine,
		publisher: publisher,
		blocks:    blocks,
		clock:     clock,
		stopChan:  make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Name returns the indexer's name
func (i *indexer) Name() string {
	return "registrar-indexer"
}

// Start begins the indexing loop
func (i *indexer) Start(ctx context.Context) error {
	if !i.running.CompareAndSwap(false, true) {
		return fmt.Errorf("indexer already running")
	}
	defer func() {
		i.running.Store(false)
		close(i.stoppedCh)
	}()

	logger.InfoCtx(ctx, "starting registrar indexer",
		zap.String("contract_address", i.config.ContractAddress),
		zap.Uint64("start_block", i.config.StartBlock),
		zap.Uint64("confirmations", i.config.Confirmations),
		zap.Uint64("batch_size", i.config.BatchSize))

	for {
		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "indexer stopping due to context cancellation", zap.Error(ctx.Err()))
			return nil
		case <-i.stopChan:
			logger.InfoCtx(ctx, "indexer stop requested")
			return nil
		default:
			if err := i.runCycle(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					continue
				}

				// A decode failure means the on-chain logs no longer match
				// the decoder. Retrying cannot help.
				if isDecodeError(err) {
					logger.ErrorCtx(ctx, err, zap.String("message", "unrecoverable decode failure, halting indexer"))
					return err
				}

				logger.ErrorCtx(ctx, err)
				if !i.sleep(ctx, i.config.PollInterval) {
					return nil
				}
			}
		}
	}
}

// Stop gracefully stops the indexer with timeout support
func (i *indexer) Stop(ctx context.Context) error {
	if !i.running.CompareAndSwap(true, false) {
		return nil // Already stopped
	}

	logger.InfoCtx(ctx, "stopping registrar indexer")

	close(i.stopChan)

	select {
	case <-i.stoppedCh:
		logger.InfoCtx(ctx, "registrar indexer stopped gracefully")
		return nil
	case <-ctx.Done():
		logger.WarnCtx(ctx, "registrar indexer stop interrupted by context timeout")
		return ctx.Err()
	}
}

// runCycle indexes the next block range behind the confirmed head. The
// cursor only advances after a batch commits, so a failed cycle retries the
// same range on the next pass.
func (i *indexer) runCycle(ctx context.Context) error {
	head, err := i.blocks.GetLatestBlock(ctx)
	if err != nil {
		return fmt.Errorf("failed to get chain head: %w", err)
	}
	metrics.ChainHead.Set(float64(head))

	if head < i.config.Confirmations {
		if !i.sleep(ctx, i.config.PollInterval) {
			return ctx.Err()
		}
		return nil
	}
	safeHead := head - i.config.Confirmations

	cursor, err := i.store.GetBlockCursor(ctx, i.config.ContractAddress)
	if err != nil {
		return fmt.Errorf("failed to load block cursor: %w", err)
	}

	fromBlock := i.config.StartBlock
	if cursor > 0 {
		fromBlock = cursor + 1
	}

	if fromBlock > safeHead {
		// Caught up, wait for new blocks
		if !i.sleep(ctx, i.config.PollInterval) {
			return ctx.Err()
		}
		return nil
	}

	toBlock := fromBlock + i.config.BatchSize - 1
	if toBlock > safeHead {
		toBlock = safeHead
	}

	return i.processRange(ctx, fromBlock, toBlock, true)
}

// Backfill walks the range in batch-size chunks through the same pipeline as
// the live loop. The cursor only moves forward, and only when a chunk extends
// history that is already covered: re-indexed past ranges and ranges disjoint
// from the cursor leave it untouched so the live loop never skips blocks.
func (i *indexer) Backfill(ctx context.Context, fromBlock, toBlock uint64) error {
	if fromBlock > toBlock {
		return fmt.Errorf("invalid block range [%d, %d]", fromBlock, toBlock)
	}
	if !i.running.CompareAndSwap(false, true) {
		return fmt.Errorf("indexer already running")
	}
	defer i.running.Store(false)

	cursor, err := i.store.GetBlockCursor(ctx, i.config.ContractAddress)
	if err != nil {
		return fmt.Errorf("failed to load block cursor: %w", err)
	}

	logger.InfoCtx(ctx, "starting backfill",
		zap.String("contract_address", i.config.ContractAddress),
		zap.Uint64("from_block", fromBlock),
		zap.Uint64("to_block", toBlock),
		zap.Uint64("cursor", cursor))

	for chunkStart := fromBlock; chunkStart <= toBlock; {
		chunkEnd := chunkStart + i.config.BatchSize - 1
		if chunkEnd > toBlock {
			chunkEnd = toBlock
		}

		advance := chunkEnd > cursor && (cursor == 0 || chunkStart <= cursor+1)
		if err := i.processRange(ctx, chunkStart, chunkEnd, advance); err != nil {
			return err
		}
		if advance {
			cursor = chunkEnd
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		chunkStart = chunkEnd + 1
	}

	logger.InfoCtx(ctx, "backfill complete",
		zap.Uint64("from_block", fromBlock),
		zap.Uint64("to_block", toBlock),
		zap.Uint64("cursor", cursor))

	return nil
}

// processRange runs one batch end to end: fetch, decode, reconcile, persist,
// advance the cursor, then publish.
func (i *indexer) processRange(ctx context.Context, fromBlock, toBlock uint64, advanceCursor bool) error {
	batchID := uuid.NewString()
	startTime := i.clock.Now()

	logger.InfoCtx(ctx, "processing batch",
		zap.String("batch_id", batchID),
		zap.Uint64("from_block", fromBlock),
		zap.Uint64("to_block", toBlock))

	batch, err := i.fetcher.FetchBatch(ctx, fromBlock, toBlock)
	if err != nil {
		metrics.BatchesProcessed.WithLabelValues("failure").Inc()
		return fmt.Errorf("failed to fetch batch %s: %w", batchID, err)
	}

	events, err := i.decodeBatch(batch)
	if err != nil {
		metrics.BatchesProcessed.WithLabelValues("failure").Inc()
		return fmt.Errorf("failed to decode batch %s: %w", batchID, err)
	}

	result, err := i.reconcile(ctx, events)
	if err != nil {
		metrics.BatchesProcessed.WithLabelValues("failure").Inc()
		return fmt.Errorf("failed to reconcile batch %s: %w", batchID, err)
	}

	if err := i.store.SaveBatch(ctx, result.Owners, result.Tokens, result.Transfers); err != nil {
		metrics.BatchesProcessed.WithLabelValues("failure").Inc()
		return fmt.Errorf("failed to persist batch %s: %w", batchID, err)
	}

	if advanceCursor {
		if err := i.store.SetBlockCursor(ctx, i.config.ContractAddress, toBlock); err != nil {
			metrics.BatchesProcessed.WithLabelValues("failure").Inc()
			return fmt.Errorf("failed to advance block cursor after batch %s: %w", batchID, err)
		}
		metrics.LastProcessedBlock.Set(float64(toBlock))
	}

	i.publishEvents(ctx, events)

	for _, event := range events {
		metrics.EventsProcessed.WithLabelValues(string(event.Kind)).Inc()
	}
	metrics.BatchesProcessed.WithLabelValues("success").Inc()
	metrics.BatchDuration.Observe(i.clock.Since(startTime).Seconds())

	logger.InfoCtx(ctx, "batch processed",
		zap.String("batch_id", batchID),
		zap.Uint64("from_block", fromBlock),
		zap.Uint64("to_block", toBlock),
		zap.Int("events", len(events)),
		zap.Int("owners", len(result.Owners)),
		zap.Int("tokens", len(result.Tokens)),
		zap.Int("transfers", len(result.Transfers)),
		zap.Duration("duration", i.clock.Since(startTime)))

	return nil
}

// decodeBatch normalizes every log in the batch. Any malformed log aborts
// the batch since it signals a contract or topic-filter mismatch upstream.
func (i *indexer) decodeBatch(batch *domain.Batch) ([]*domain.RegistrarEvent, error) {
	blockTimes := batch.BlockTimes()
	events := make([]*domain.RegistrarEvent, 0, len(batch.Logs))

	for _, vLog := range batch.Logs {
		blockTime, ok := blockTimes[vLog.BlockNumber]
		if !ok {
			return nil, fmt.Errorf("%w: block %d", domain.ErrMissingBlockHeader, vLog.BlockNumber)
		}

		event, err := ethereum.DecodeRegistrarLog(vLog, blockTime)
		if err != nil {
			return nil, fmt.Errorf("failed to decode log %d of tx %s: %w", vLog.Index, vLog.TxHash.Hex(), err)
		}

		events = append(events, event)
	}

	return events, nil
}

// reconcile bulk-loads the rows the batch references and folds the events
// into working sets. The two reads are independent and run concurrently.
func (i *indexer) reconcile(ctx context.Context, events []*domain.RegistrarEvent) (*reconciler.Result, error) {
	ownerAddresses, tokenIDs := referencedIdentities(events)

	var (
		owners    map[string]*schema.Owner
		tokens    map[string]*schema.Token
		ownersErr error
		tokensErr error
		wg        sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		owners, ownersErr = i.store.GetOwnersByAddresses(ctx, ownerAddresses)
	}()
	go func() {
		defer wg.Done()
		tokens, tokensErr = i.store.GetTokensByIDs(ctx, tokenIDs)
	}()
	wg.Wait()

	if ownersErr != nil {
		return nil, fmt.Errorf("failed to preload owners: %w", ownersErr)
	}
	if tokensErr != nil {
		return nil, fmt.Errorf("failed to preload tokens: %w", tokensErr)
	}

	return i.engine.Reconcile(ctx, events, owners, tokens)
}

// publishEvents forwards the batch's events to the broker after the commit.
// Publishing is best effort: the broker deduplicates replays by event id and
// a miss never rolls back the batch.
func (i *indexer) publishEvents(ctx context.Context, events []*domain.RegistrarEvent) {
	if i.publisher == nil {
		return
	}

	for _, event := range events {
		if err := i.publisher.PublishEvent(ctx, event); err != nil {
			logger.WarnCtx(ctx, "failed to publish event",
				zap.String("event_id", event.ID),
				zap.Error(err))
		}
	}
}

// referencedIdentities collects the distinct owner addresses and token ids
// the batch touches, for one bulk lookup per entity kind
func referencedIdentities(events []*domain.RegistrarEvent) ([]string, []string) {
	ownerSet := make(map[string]struct{})
	tokenSet := make(map[string]struct{})
	ownerAddresses := make([]string, 0)
	tokenIDs := make([]string, 0)

	for _, event := range events {
		if event.From != nil {
			if _, ok := ownerSet[*event.From]; !ok {
				ownerSet[*event.From] = struct{}{}
				ownerAddresses = append(ownerAddresses, *event.From)
			}
		}
		if event.To != nil {
			if _, ok := ownerSet[*event.To]; !ok {
				ownerSet[*event.To] = struct{}{}
				ownerAddresses = append(ownerAddresses, *event.To)
			}
		}
		if _, ok := tokenSet[event.TokenID]; !ok {
			tokenSet[event.TokenID] = struct{}{}
			tokenIDs = append(tokenIDs, event.TokenID)
		}
	}

	return ownerAddresses, tokenIDs
}

// sleep waits for d unless the context is canceled or stop is requested.
// Returns false when interrupted.
func (i *indexer) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-i.stopChan:
		return false
	case <-i.clock.After(d):
		return true
	}
}

func isDecodeError(err error) bool {
	return errors.Is(err, domain.ErrMalformedEvent) ||
		errors.Is(err, domain.ErrUnknownEventSignature) ||
		errors.Is(err, domain.ErrMissingBlockHeader)
}
