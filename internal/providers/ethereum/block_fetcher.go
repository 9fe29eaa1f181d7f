package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/registrylabs/registrar-indexer/internal/adapter"
	"github.com/registrylabs/registrar-indexer/internal/block"
)

// ethBlockFetcher implements block.Fetcher against an Ethereum JSON-RPC node
type ethBlockFetcher struct {
	client adapter.EthClient
}

// NewBlockFetcher creates a block fetcher backed by the given client
func NewBlockFetcher(client adapter.EthClient) block.Fetcher {
	return &ethBlockFetcher{client: client}
}

// FetchLatestBlock fetches the current head block number
func (f *ethBlockFetcher) FetchLatestBlock(ctx context.Context) (uint64, error) {
	blockNumber, err := f.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block: %w", err)
	}
	return blockNumber, nil
}

// FetchBlockTimestamp fetches the timestamp of the given block from its header
func (f *ethBlockFetcher) FetchBlockTimestamp(ctx context.Context, blockNumber uint64) (time.Time, error) {
	header, err := f.client.HeaderByNumber(ctx, new(big.Int).SetUint64(blockNumber))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get header for block %d: %w", blockNumber, err)
	}
	return time.Unix(int64(header.Time), 0).UTC(), nil //nolint:gosec,G115
}
