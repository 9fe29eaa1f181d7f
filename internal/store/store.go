package store

import (
	"context"
	"time"

	"github.com/registrylabs/registrar-indexer/internal/store/schema"
)

// Store defines the interface for database operations
//
//go:generate mockgen -source=store.go -destination=../mocks/store.go -package=mocks -mock_names=Store=MockStore
type Store interface {
	// GetContract retrieves the registrar contract by address, nil when absent
	GetContract(ctx context.Context, address string) (*schema.Contract, error)
	// CreateContract persists the registrar contract together with its legacy
	// collection record in a single transaction; repeated creates are no-ops
	CreateContract(ctx context.Context, contract *schema.Contract, collection *schema.LegacyCollection) error
	// GetOwnersByAddresses retrieves owners in bulk, mapped by address
	GetOwnersByAddresses(ctx context.Context, addresses []string) (map[string]*schema.Owner, error)
	// GetTokensByIDs retrieves tokens in bulk, mapped by token id
	GetTokensByIDs(ctx context.Context, tokenIDs []string) (map[string]*schema.Token, error)
	// SaveBatch upserts the per-batch working sets in dependency order
	// (owners, then tokens, then transfers) within a single transaction
	SaveBatch(ctx context.Context, owners []*schema.Owner, tokens []*schema.Token, transfers []*schema.Transfer) error
	// GetBlockCursor retrieves the last processed block number for a contract
	GetBlockCursor(ctx context.Context, contractAddress string) (uint64, error)
	// SetBlockCursor stores the last processed block number for a contract
	SetBlockCursor(ctx context.Context, contractAddress string, blockNumber uint64) error
	// GetTokensMissingMetadata retrieves unexpired tokens whose descriptive
	// fields are still unset and which were last touched before retryAfter ago,
	// oldest first
	GetTokensMissingMetadata(ctx context.Context, retryAfter time.Duration, limit int) ([]*schema.Token, error)
	// UpdateTokenMetadata overwrites the descriptive fields of a single token
	UpdateTokenMetadata(ctx context.Context, tokenID string, name, imageURI, uri *string) error
}
