package sweeper_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/registrylabs/registrar-indexer/internal/logger"
	"github.com/registrylabs/registrar-indexer/internal/metadata"
	"github.com/registrylabs/registrar-indexer/internal/mocks"
	"github.com/registrylabs/registrar-indexer/internal/store/schema"
	"github.com/registrylabs/registrar-indexer/internal/sweeper"
)

// testSweeperMocks contains all the mocks needed for testing the sweeper
type testSweeperMocks struct {
	ctrl     *gomock.Controller
	store    *mocks.MockStore
	enricher *mocks.MockEnricher
	clock    *mocks.MockClock
	sweeper  sweeper.Sweeper
}

// setupTestSweeper creates all the mocks and sweeper for testing
func setupTestSweeper(t *testing.T) *testSweeperMocks {
	// Initialize logger for tests
	err := logger.Initialize(logger.Config{
		Debug: true,
	})
	if err != nil {
		t.Fatalf("Failed to initialize logger: %v", err)
	}

	ctrl := gomock.NewController(t)

	tm := &testSweeperMocks{
		ctrl:     ctrl,
		store:    mocks.NewMockStore(ctrl),
		enricher: mocks.NewMockEnricher(ctrl),
		clock:    mocks.NewMockClock(ctrl),
	}

	config := &sweeper.MetadataRepairSweeperConfig{
		BatchSize:      10,
		WorkerPoolSize: 2,
		RetryAfter:     time.Hour,
	}

	tm.sweeper = sweeper.NewMetadataRepairSweeper(
		config,
		tm.store,
		tm.enricher,
		tm.clock,
	)

	return tm
}

// tearDownTestSweeper cleans up the test mocks
func tearDownTestSweeper(mocks *testSweeperMocks) {
	mocks.ctrl.Finish()
}

func TestMetadataRepairSweeper_Name(t *testing.T) {
	mocks := setupTestSweeper(t)
	defer tearDownTestSweeper(mocks)

	assert.Equal(t, "metadata-repair-sweeper", mocks.sweeper.Name())
}

func TestMetadataRepairSweeper_RepairsToken(t *testing.T) {
	mocks := setupTestSweeper(t)
	defer tearDownTestSweeper(mocks)

	ctx := context.Background()
	token := &schema.Token{TokenID: "123"}

	name := "alice.eth"
	imageURI := "https://metadata.ens.domains/image/123"
	uri := "https://metadata.ens.domains/123"

	// Mock enrichment returns the full metadata
	mocks.enricher.EXPECT().
		Enrich(gomock.Any(), "123").
		Return(&metadata.TokenMetadata{
			Name:     name,
			ImageURI: imageURI,
			URI:      uri,
		}, nil)

	// Mock the repaired fields being written back
	mocks.store.EXPECT().
		UpdateTokenMetadata(gomock.Any(), "123", &name, &imageURI, &uri).
		Return(nil)

	// Mock clock expectations
	now := time.Now()
	mocks.clock.EXPECT().Now().Return(now).AnyTimes()
	mocks.clock.EXPECT().Since(now).Return(time.Second).AnyTimes()
	// Make After return a channel that closes after a brief delay to allow Stop to execute
	mocks.clock.EXPECT().After(gomock.Any()).DoAndReturn(func(d time.Duration) <-chan time.Time {
		ch := make(chan time.Time, 1)
		go func() {
			time.Sleep(50 * time.Millisecond)
			ch <- time.Now()
		}()
		return ch
	}).AnyTimes()

	// Mock GetTokensMissingMetadata - use InOrder to ensure first call returns the token, then empty
	gomock.InOrder(
		mocks.store.EXPECT().
			GetTokensMissingMetadata(gomock.Any(), time.Hour, 10).
			Return([]*schema.Token{token}, nil).
			Times(1),
		mocks.store.EXPECT().
			GetTokensMissingMetadata(gomock.Any(), time.Hour, 10).
			Return([]*schema.Token{}, nil).
			MinTimes(1),
	)

	// Start sweeper in goroutine and stop it after processing
	go func() {
		time.Sleep(200 * time.Millisecond)
		_ = mocks.sweeper.Stop(ctx)
	}()

	err := mocks.sweeper.Start(ctx)
	require.NoError(t, err)
}

func TestMetadataRepairSweeper_EnrichmentFailure(t *testing.T) {
	mocks := setupTestSweeper(t)
	defer tearDownTestSweeper(mocks)

	ctx := context.Background()
	token := &schema.Token{TokenID: "123"}

	// Mock enrichment fails - the row must stay untouched so the next
	// cycle picks the token up again, so no UpdateTokenMetadata call
	mocks.enricher.EXPECT().
		Enrich(gomock.Any(), "123").
		Return(nil, errors.New("metadata service returned 503"))

	// Mock clock and sweep
	now := time.Now()
	mocks.clock.EXPECT().Now().Return(now).AnyTimes()
	mocks.clock.EXPECT().Since(now).Return(time.Second).AnyTimes()
	// Make After return a channel that closes after a brief delay
	mocks.clock.EXPECT().After(gomock.Any()).DoAndReturn(func(d time.Duration) <-chan time.Time {
		ch := make(chan time.Time, 1)
		go func() {
			time.Sleep(50 * time.Millisecond)
			ch <- time.Now()
		}()
		return ch
	}).AnyTimes()

	gomock.InOrder(
		mocks.store.EXPECT().
			GetTokensMissingMetadata(gomock.Any(), time.Hour, 10).
			Return([]*schema.Token{token}, nil).
			Times(1),
		mocks.store.EXPECT().
			GetTokensMissingMetadata(gomock.Any(), time.Hour, 10).
			Return([]*schema.Token{}, nil).
			MinTimes(1),
	)

	go func() {
		time.Sleep(200 * time.Millisecond)
		_ = mocks.sweeper.Stop(ctx)
	}()

	err := mocks.sweeper.Start(ctx)
	require.NoError(t, err) // Sweeper continues despite enrichment failures
}

func TestMetadataRepairSweeper_UpdateError(t *testing.T) {
	mocks := setupTestSweeper(t)
	defer tearDownTestSweeper(mocks)

	ctx := context.Background()
	token := &schema.Token{TokenID: "123"}

	name := "alice.eth"
	imageURI := "https://metadata.ens.domains/image/123"
	uri := "https://metadata.ens.domains/123"

	mocks.enricher.EXPECT().
		Enrich(gomock.Any(), "123").
		Return(&metadata.TokenMetadata{
			Name:     name,
			ImageURI: imageURI,
			URI:      uri,
		}, nil)

	// Mock Store error when persisting the repaired fields
	mocks.store.EXPECT().
		UpdateTokenMetadata(gomock.Any(), "123", &name, &imageURI, &uri).
		Return(errors.New("update failed"))

	// Mock clock and sweep
	now := time.Now()
	mocks.clock.EXPECT().Now().Return(now).AnyTimes()
	mocks.clock.EXPECT().Since(now).Return(time.Second).AnyTimes()
	// Make After return a channel that closes after a brief delay
	mocks.clock.EXPECT().After(gomock.Any()).DoAndReturn(func(d time.Duration) <-chan time.Time {
		ch := make(chan time.Time, 1)
		go func() {
			time.Sleep(50 * time.Millisecond)
			ch <- time.Now()
		}()
		return ch
	}).AnyTimes()

	gomock.InOrder(
		mocks.store.EXPECT().
			GetTokensMissingMetadata(gomock.Any(), time.Hour, 10).
			Return([]*schema.Token{token}, nil).
			Times(1),
		mocks.store.EXPECT().
			GetTokensMissingMetadata(gomock.Any(), time.Hour, 10).
			Return([]*schema.Token{}, nil).
			MinTimes(1),
	)

	go func() {
		time.Sleep(200 * time.Millisecond)
		_ = mocks.sweeper.Stop(ctx)
	}()

	err := mocks.sweeper.Start(ctx)
	require.NoError(t, err) // Sweeper continues despite store errors
}

func TestMetadataRepairSweeper_MultipleTokens(t *testing.T) {
	mocks := setupTestSweeper(t)
	defer tearDownTestSweeper(mocks)

	ctx := context.Background()
	tokenA := &schema.Token{TokenID: "100"}
	tokenB := &schema.Token{TokenID: "200"}

	nameA := "alice.eth"
	nameB := "bob.eth"
	imageA := "https://metadata.ens.domains/image/100"
	imageB := "https://metadata.ens.domains/image/200"
	uriA := "https://metadata.ens.domains/100"
	uriB := "https://metadata.ens.domains/200"

	// Both tokens are repaired in parallel by the worker pool
	mocks.enricher.EXPECT().
		Enrich(gomock.Any(), "100").
		Return(&metadata.TokenMetadata{Name: nameA, ImageURI: imageA, URI: uriA}, nil)

	mocks.enricher.EXPECT().
		Enrich(gomock.Any(), "200").
		Return(&metadata.TokenMetadata{Name: nameB, ImageURI: imageB, URI: uriB}, nil)

	mocks.store.EXPECT().
		UpdateTokenMetadata(gomock.Any(), "100", &nameA, &imageA, &uriA).
		Return(nil)

	mocks.store.EXPECT().
		UpdateTokenMetadata(gomock.Any(), "200", &nameB, &imageB, &uriB).
		Return(nil)

	// Mock clock and sweep
	now := time.Now()
	mocks.clock.EXPECT().Now().Return(now).AnyTimes()
	mocks.clock.EXPECT().Since(now).Return(time.Second).AnyTimes()
	// Make After return a channel that closes after a brief delay
	mocks.clock.EXPECT().After(gomock.Any()).DoAndReturn(func(d time.Duration) <-chan time.Time {
		ch := make(chan time.Time, 1)
		go func() {
			time.Sleep(50 * time.Millisecond)
			ch <- time.Now()
		}()
		return ch
	}).AnyTimes()

	gomock.InOrder(
		mocks.store.EXPECT().
			GetTokensMissingMetadata(gomock.Any(), time.Hour, 10).
			Return([]*schema.Token{tokenA, tokenB}, nil).
			Times(1),
		mocks.store.EXPECT().
			GetTokensMissingMetadata(gomock.Any(), time.Hour, 10).
			Return([]*schema.Token{}, nil).
			MinTimes(1),
	)

	go func() {
		time.Sleep(250 * time.Millisecond)
		_ = mocks.sweeper.Stop(ctx)
	}()

	err := mocks.sweeper.Start(ctx)
	require.NoError(t, err)
}

func TestMetadataRepairSweeper_NoTokensToRepair(t *testing.T) {
	mocks := setupTestSweeper(t)
	defer tearDownTestSweeper(mocks)

	ctx := context.Background()

	// Mock No tokens need repairing
	mocks.store.EXPECT().
		GetTokensMissingMetadata(gomock.Any(), time.Hour, 10).
		Return([]*schema.Token{}, nil).
		AnyTimes()

	// Mock After to return a channel that closes after a brief delay
	mocks.clock.EXPECT().
		After(sweeper.SWEEP_CYCLE_INTERVAL).
		DoAndReturn(func(d time.Duration) <-chan time.Time {
			ch := make(chan time.Time, 1)
			go func() {
				time.Sleep(50 * time.Millisecond)
				ch <- time.Now()
			}()
			return ch
		}).
		MinTimes(1)

	// Mock clock
	now := time.Now()
	mocks.clock.EXPECT().Now().Return(now).AnyTimes()

	go func() {
		time.Sleep(150 * time.Millisecond)
		_ = mocks.sweeper.Stop(ctx)
	}()

	err := mocks.sweeper.Start(ctx)
	require.NoError(t, err)
}

func TestMetadataRepairSweeper_StoreError_GetTokens(t *testing.T) {
	mocks := setupTestSweeper(t)
	defer tearDownTestSweeper(mocks)

	ctx := context.Background()

	// Mock Store error when fetching candidates
	mocks.store.EXPECT().
		GetTokensMissingMetadata(gomock.Any(), time.Hour, 10).
		Return(nil, errors.New("database connection failed")).
		AnyTimes()

	// Mock clock
	now := time.Now()
	mocks.clock.EXPECT().Now().Return(now).AnyTimes()
	mocks.clock.EXPECT().Since(now).Return(time.Second).AnyTimes()

	go func() {
		time.Sleep(150 * time.Millisecond)
		_ = mocks.sweeper.Stop(ctx)
	}()

	err := mocks.sweeper.Start(ctx)
	require.NoError(t, err) // Sweeper continues despite errors
}

func TestMetadataRepairSweeper_ContextCancellation(t *testing.T) {
	mocks := setupTestSweeper(t)
	defer tearDownTestSweeper(mocks)

	ctx, cancel := context.WithCancel(context.Background())

	mocks.store.EXPECT().
		GetTokensMissingMetadata(gomock.Any(), time.Hour, 10).
		Return([]*schema.Token{}, nil).
		AnyTimes()

	// Mock After with a channel that never fires so the sweeper parks in its
	// sleep and cancellation has to interrupt it
	mocks.clock.EXPECT().
		After(gomock.Any()).
		Return(make(chan time.Time)).
		AnyTimes()

	mocks.clock.EXPECT().Now().Return(time.Now()).AnyTimes()

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := mocks.sweeper.Start(ctx)
	require.NoError(t, err)
}

func TestMetadataRepairSweeper_StopBeforeStart(t *testing.T) {
	mocks := setupTestSweeper(t)
	defer tearDownTestSweeper(mocks)

	ctx := context.Background()

	// Stop before starting should not error
	err := mocks.sweeper.Stop(ctx)
	require.NoError(t, err)
}

func TestMetadataRepairSweeper_DoubleStart(t *testing.T) {
	mocks := setupTestSweeper(t)
	defer tearDownTestSweeper(mocks)

	ctx := context.Background()

	// Mock for first start
	mocks.store.EXPECT().
		GetTokensMissingMetadata(gomock.Any(), time.Hour, 10).
		Return([]*schema.Token{}, nil).
		AnyTimes()

	mocks.clock.EXPECT().Now().Return(time.Now()).AnyTimes()
	// Make After return a channel that closes after a brief delay to allow Stop to execute
	mocks.clock.EXPECT().After(gomock.Any()).DoAndReturn(func(d time.Duration) <-chan time.Time {
		ch := make(chan time.Time, 1)
		go func() {
			time.Sleep(50 * time.Millisecond)
			ch <- time.Now()
		}()
		return ch
	}).AnyTimes()

	// Start in goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- mocks.sweeper.Start(ctx)
	}()

	// Give first start time to begin
	time.Sleep(50 * time.Millisecond)

	// Try to start again - should fail
	err := mocks.sweeper.Start(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")

	// Stop first instance
	_ = mocks.sweeper.Stop(ctx)
	<-errChan
}
