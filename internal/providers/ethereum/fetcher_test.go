package ethereum_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/registrylabs/registrar-indexer/internal/mocks"
	"github.com/registrylabs/registrar-indexer/internal/providers/ethereum"
)

func TestBatchFetcher_FetchBatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mocks.NewMockEthClient(ctrl)
	blocks := mocks.NewMockBlockProvider(ctrl)

	hashA := common.HexToHash("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	hashB := common.HexToHash("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	timeA := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	timeB := timeA.Add(12 * time.Second)

	logs := []types.Log{
		{BlockNumber: 100, BlockHash: hashA, Index: 0, Topics: []common.Hash{sigNameRegistered}},
		{BlockNumber: 100, BlockHash: hashA, Index: 3, Topics: []common.Hash{sigTransfer}},
		{BlockNumber: 101, BlockHash: hashB, Index: 1, Topics: []common.Hash{sigNameRenewed}},
	}

	client.
		EXPECT().
		FilterLogs(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, query goethereum.FilterQuery) ([]types.Log, error) {
			assert.Equal(t, new(big.Int).SetUint64(100), query.FromBlock)
			assert.Equal(t, new(big.Int).SetUint64(110), query.ToBlock)
			assert.Equal(t, []common.Address{common.HexToAddress(testRegistrarAddress)}, query.Addresses)
			require.Len(t, query.Topics, 1)
			assert.Equal(t, []common.Hash{sigNameRegistered, sigNameRenewed, sigTransfer}, query.Topics[0])
			return logs, nil
		})

	// One timestamp resolution per distinct block, not per log
	blocks.EXPECT().GetBlockTimestamp(gomock.Any(), uint64(100)).Return(timeA, nil).Times(1)
	blocks.EXPECT().GetBlockTimestamp(gomock.Any(), uint64(101)).Return(timeB, nil).Times(1)

	fetcher := ethereum.NewBatchFetcher(client, blocks, testRegistrarAddress)

	batch, err := fetcher.FetchBatch(context.Background(), 100, 110)
	require.NoError(t, err)
	require.NotNil(t, batch)

	assert.Equal(t, uint64(100), batch.FromBlock)
	assert.Equal(t, uint64(110), batch.ToBlock)
	assert.Equal(t, logs, batch.Logs)

	require.Len(t, batch.Blocks, 2)
	assert.Equal(t, uint64(100), batch.Blocks[0].Number)
	assert.Equal(t, hashA.Hex(), batch.Blocks[0].Hash)
	assert.Equal(t, timeA, batch.Blocks[0].Time)
	assert.Equal(t, uint64(101), batch.Blocks[1].Number)
	assert.Equal(t, hashB.Hex(), batch.Blocks[1].Hash)
	assert.Equal(t, timeB, batch.Blocks[1].Time)

	times := batch.BlockTimes()
	assert.Equal(t, timeA, times[100])
	assert.Equal(t, timeB, times[101])
}

func TestBatchFetcher_FetchBatch_EmptyRange(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mocks.NewMockEthClient(ctrl)
	blocks := mocks.NewMockBlockProvider(ctrl)

	client.
		EXPECT().
		FilterLogs(gomock.Any(), gomock.Any()).
		Return([]types.Log{}, nil)

	fetcher := ethereum.NewBatchFetcher(client, blocks, testRegistrarAddress)

	batch, err := fetcher.FetchBatch(context.Background(), 100, 110)
	require.NoError(t, err)
	assert.Empty(t, batch.Logs)
	assert.Empty(t, batch.Blocks)
}

func TestBatchFetcher_FetchBatch_FilterError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mocks.NewMockEthClient(ctrl)
	blocks := mocks.NewMockBlockProvider(ctrl)

	client.
		EXPECT().
		FilterLogs(gomock.Any(), gomock.Any()).
		Return(nil, errors.New("node unavailable"))

	fetcher := ethereum.NewBatchFetcher(client, blocks, testRegistrarAddress)

	batch, err := fetcher.FetchBatch(context.Background(), 100, 110)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to filter logs")
	assert.Nil(t, batch)
}

func TestBatchFetcher_FetchBatch_TimestampError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mocks.NewMockEthClient(ctrl)
	blocks := mocks.NewMockBlockProvider(ctrl)

	client.
		EXPECT().
		FilterLogs(gomock.Any(), gomock.Any()).
		Return([]types.Log{
			{BlockNumber: 100, Topics: []common.Hash{sigNameRenewed}},
		}, nil)

	blocks.
		EXPECT().
		GetBlockTimestamp(gomock.Any(), uint64(100)).
		Return(time.Time{}, errors.New("header not found"))

	fetcher := ethereum.NewBatchFetcher(client, blocks, testRegistrarAddress)

	batch, err := fetcher.FetchBatch(context.Background(), 100, 110)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "block 100")
	assert.Nil(t, batch)
}
