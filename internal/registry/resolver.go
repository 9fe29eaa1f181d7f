package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/registrylabs/registrar-indexer/internal/domain"
	"github.com/registrylabs/registrar-indexer/internal/store"
	"github.com/registrylabs/registrar-indexer/internal/store/schema"
)

// ContractInfo carries the fixed descriptive fields of the registrar contract
type ContractInfo struct {
	Address     string
	Name        string
	Symbol      string
	TotalSupply uint64
	Standard    schema.Standard
}

// Resolver defines the interface for resolving the registrar contract entity.
// The contract row is created at most once per address; subsequent resolutions
// return the cached instance for the remainder of the process lifetime.
//
//go:generate mockgen -source=resolver.go -destination=../mocks/resolver.go -package=mocks -mock_names=Resolver=MockResolver
type Resolver interface {
	// Resolve returns the registrar contract, creating it on first use
	Resolve(ctx context.Context) (*schema.Contract, error)
}

type contractResolver struct {
	store store.Store
	info  ContractInfo

	mu     sync.Mutex
	cached *schema.Contract
}

// NewContractResolver creates a resolver for the given contract identity
func NewContractResolver(s store.Store, info ContractInfo) Resolver {
	info.Address = domain.NormalizeAddress(info.Address)
	return &contractResolver{
		store: s,
		info:  info,
	}
}

// Resolve looks up the contract by its fixed address, creating the row and
// its paired legacy collection record when absent. The mutex serializes
// concurrent first resolutions so only one create is issued per process;
// the store's conflict handling covers races across processes.
func (r *contractResolver) Resolve(ctx context.Context) (*schema.Contract, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != nil {
		return r.cached, nil
	}

	contract, err := r.store.GetContract(ctx, r.info.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to look up contract: %w", err)
	}

	if contract == nil {
		contract = &schema.Contract{
			Address:     r.info.Address,
			Name:        r.info.Name,
			Symbol:      r.info.Symbol,
			TotalSupply: r.info.TotalSupply,
			Standard:    r.info.Standard,
		}
		collection := &schema.LegacyCollection{
			ID:          r.info.Address,
			Name:        r.info.Name,
			Symbol:      r.info.Symbol,
			TotalSupply: r.info.TotalSupply,
		}

		if err := r.store.CreateContract(ctx, contract, collection); err != nil {
			return nil, fmt.Errorf("failed to create contract: %w", err)
		}
	}

	r.cached = contract
	return contract, nil
}
