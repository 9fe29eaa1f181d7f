package ethereum

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/registrylabs/registrar-indexer/internal/adapter"
	"github.com/registrylabs/registrar-indexer/internal/block"
	"github.com/registrylabs/registrar-indexer/internal/domain"
)

// BatchFetcher fetches one contiguous range of registrar logs together with
// the headers of every block referenced by those logs
//
//go:generate mockgen -source=fetcher.go -destination=../../mocks/batch_fetcher.go -package=mocks -mock_names=BatchFetcher=MockBatchFetcher
type BatchFetcher interface {
	// FetchBatch returns the ordered batch for [fromBlock, toBlock]
	FetchBatch(ctx context.Context, fromBlock, toBlock uint64) (*domain.Batch, error)
}

type ethBatchFetcher struct {
	client          adapter.EthClient
	blocks          block.Provider
	contractAddress common.Address
}

// NewBatchFetcher creates a batch fetcher for the given registrar contract
func NewBatchFetcher(client adapter.EthClient, blocks block.Provider, contractAddress string) BatchFetcher {
	return &ethBatchFetcher{
		client:          client,
		blocks:          blocks,
		contractAddress: common.HexToAddress(contractAddress),
	}
}

// FetchBatch filters the registrar's logs for the block range and resolves a
// timestamp for each referenced block. eth_getLogs returns logs ordered by
// block number and log index, which is the batch order reconciliation relies
// on, so the order is preserved as-is.
func (f *ethBatchFetcher) FetchBatch(ctx context.Context, fromBlock, toBlock uint64) (*domain.Batch, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{f.contractAddress},
		Topics: [][]common.Hash{
			{
				nameRegisteredEventSignature,
				nameRenewedEventSignature,
				transferEventSignature,
			},
		},
	}

	logs, err := f.client.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to filter logs: %w", err)
	}

	// Resolve each referenced block's timestamp once
	seen := make(map[uint64]bool, len(logs))
	blocks := make([]domain.BlockRef, 0, len(logs))
	for _, vLog := range logs {
		if seen[vLog.BlockNumber] {
			continue
		}
		seen[vLog.BlockNumber] = true

		timestamp, err := f.blocks.GetBlockTimestamp(ctx, vLog.BlockNumber)
		if err != nil {
			return nil, fmt.Errorf("failed to get timestamp for block %d: %w", vLog.BlockNumber, err)
		}

		blocks = append(blocks, domain.BlockRef{
			Number: vLog.BlockNumber,
			Hash:   vLog.BlockHash.Hex(),
			Time:   timestamp,
		})
	}

	return &domain.Batch{
		FromBlock: fromBlock,
		ToBlock:   toBlock,
		Blocks:    blocks,
		Logs:      logs,
	}, nil
}
