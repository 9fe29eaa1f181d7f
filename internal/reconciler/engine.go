package reconciler

import (
	"context"
	"fmt"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/registrylabs/registrar-indexer/internal/adapter"
	"github.com/registrylabs/registrar-indexer/internal/domain"
	"github.com/registrylabs/registrar-indexer/internal/logger"
	"github.com/registrylabs/registrar-indexer/internal/metadata"
	"github.com/registrylabs/registrar-indexer/internal/metrics"
	"github.com/registrylabs/registrar-indexer/internal/registry"
	"github.com/registrylabs/registrar-indexer/internal/store/schema"
)

const (
	defaultEnrichmentWorkers   = 8
	defaultEnrichmentQueueSize = 256
)

// Result carries one batch's working sets in first-touch order, ready for a
// single dependency-ordered bulk write.
type Result struct {
	Owners    []*schema.Owner
	Tokens    []*schema.Token
	Transfers []*schema.Transfer
}

// Engine folds ordered batches of registrar events into owner, token and
// transfer collections
//
//go:generate mockgen -source=engine.go -destination=../mocks/engine.go -package=mocks -mock_names=Engine=MockEngine
type Engine interface {
	// Reconcile processes the batch's events in arrival order. The preloaded
	// maps hold every owner and token row storage already has for the
	// identities the batch references; identities absent from both the maps
	// and the working sets are created lazily.
	Reconcile(ctx context.Context, events []*domain.RegistrarEvent, preloadedOwners map[string]*schema.Owner, preloadedTokens map[string]*schema.Token) (*Result, error)
}

// Config tunes the enrichment phase of the engine
type Config struct {
	// EnrichmentWorkers bounds concurrent metadata service calls
	EnrichmentWorkers int

	// EnrichmentQueueSize bounds the enrichment task queue
	EnrichmentQueueSize int
}

type engine struct {
	contracts registry.Resolver
	enricher  metadata.Enricher
	json      adapter.JSON
	clock     adapter.Clock
	config    Config
}

// NewEngine creates a reconciliation engine for one registrar contract
func NewEngine(contracts registry.Resolver, enricher metadata.Enricher, json adapter.JSON, clock adapter.Clock, config Config) Engine {
	if config.EnrichmentWorkers <= 0 {
		config.EnrichmentWorkers = defaultEnrichmentWorkers
	}
	if config.EnrichmentQueueSize <= 0 {
		config.EnrichmentQueueSize = defaultEnrichmentQueueSize
	}

	return &engine{
		contracts: contracts,
		enricher:  enricher,
		json:      json,
		clock:     clock,
		config:    config,
	}
}

// Reconcile folds the events into the working sets in strict batch order, so
// later events observe the mutations earlier ones made. Enrichment runs as a
// second phase once all mutations are known.
func (e *engine) Reconcile(ctx context.Context, events []*domain.RegistrarEvent, preloadedOwners map[string]*schema.Owner, preloadedTokens map[string]*schema.Token) (*Result, error) {
	owners := newWorkingSet[*schema.Owner]()
	tokens := newWorkingSet[*schema.Token]()
	candidates := newWorkingSet[*schema.Token]()
	transfers := make([]*schema.Transfer, 0, len(events))

	now := e.clock.Now().Unix()

	for _, event := range events {
		from := e.resolveOwner(owners, preloadedOwners, event.From)
		to := e.resolveOwner(owners, preloadedOwners, event.To)

		token, err := e.resolveToken(ctx, tokens, preloadedTokens, event.TokenID)
		if err != nil {
			return nil, err
		}

		// Registrations and transfers both hand the token to the receiver.
		// Renewals carry no receiver and leave the current owner untouched.
		if to != nil {
			ownerAddress := to.Address
			token.OwnerAddress = &ownerAddress
		}

		if event.ExpiresAt != nil {
			expiresAt := *event.ExpiresAt
			token.ExpiresAt = &expiresAt

			// An already expired name is not worth enriching. The owner and
			// expiration mutations applied above stand.
			if expiresAt < now {
				logger.DebugCtx(ctx, "name already expired, skipping enrichment",
					zap.String("token_id", event.TokenID),
					zap.Int64("expires_at", expiresAt))
				continue
			}

			candidates.Put(token.TokenID, token)
		}

		if from != nil && to != nil {
			transfer, err := e.buildTransfer(event, from, to)
			if err != nil {
				return nil, err
			}
			transfers = append(transfers, transfer)
		}
	}

	e.enrich(ctx, candidates.Values())

	return &Result{
		Owners:    owners.Values(),
		Tokens:    tokens.Values(),
		Transfers: transfers,
	}, nil
}

// resolveOwner finds or lazily creates the owner for an address. Absent
// addresses (no sender on registrations, no receiver on renewals) resolve to
// nil; the zero address is a real owner.
func (e *engine) resolveOwner(set *workingSet[*schema.Owner], preloaded map[string]*schema.Owner, address *string) *schema.Owner {
	if address == nil {
		return nil
	}

	key := domain.NormalizeAddress(*address)
	if owner, ok := set.Get(key); ok {
		return owner
	}
	if owner, ok := preloaded[key]; ok {
		set.Put(key, owner)
		return owner
	}

	owner := &schema.Owner{Address: key}
	set.Put(key, owner)
	return owner
}

// resolveToken finds or lazily creates the token for a numeric id. A newly
// created token references the registrar contract, resolving it on first use.
func (e *engine) resolveToken(ctx context.Context, set *workingSet[*schema.Token], preloaded map[string]*schema.Token, tokenID string) (*schema.Token, error) {
	if token, ok := set.Get(tokenID); ok {
		return token, nil
	}
	if token, ok := preloaded[tokenID]; ok {
		set.Put(tokenID, token)
		return token, nil
	}

	contract, err := e.contracts.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve registrar contract: %w", err)
	}

	token := &schema.Token{
		TokenID:         tokenID,
		ContractAddress: contract.Address,
	}
	set.Put(tokenID, token)
	return token, nil
}

func (e *engine) buildTransfer(event *domain.RegistrarEvent, from, to *schema.Owner) (*schema.Transfer, error) {
	raw, err := e.json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event %s: %w", event.ID, err)
	}

	return &schema.Transfer{
		ID:          event.ID,
		BlockNumber: event.BlockNumber,
		Timestamp:   event.Timestamp,
		TxHash:      event.TxHash,
		FromAddress: from.Address,
		ToAddress:   to.Address,
		TokenID:     event.TokenID,
		Raw:         datatypes.JSON(raw),
	}, nil
}

// enrich fills the descriptive fields of every candidate token with bounded
// concurrency. Each task mutates only the token it was issued for. Expiry is
// rechecked at dispatch time since a later event in the batch may have moved
// it into the past.
func (e *engine) enrich(ctx context.Context, candidates []*schema.Token) {
	if len(candidates) == 0 {
		return
	}

	pool := pond.NewPool(
		e.config.EnrichmentWorkers,
		pond.WithQueueSize(e.config.EnrichmentQueueSize),
		pond.WithContext(ctx),
	)

	now := e.clock.Now().Unix()
	for _, token := range candidates {
		if token.ExpiresAt != nil && *token.ExpiresAt < now {
			metrics.EnrichmentCalls.WithLabelValues("skipped").Inc()
			continue
		}

		pool.Submit(func() {
			e.enrichToken(ctx, token)
		})
	}

	pool.StopAndWait()
}

// enrichToken is best effort. A failed call leaves the token with empty
// descriptive fields and the batch continues.
func (e *engine) enrichToken(ctx context.Context, token *schema.Token) {
	tokenMetadata, err := e.enricher.Enrich(ctx, token.TokenID)
	if err != nil {
		metrics.EnrichmentCalls.WithLabelValues("failure").Inc()
		logger.WarnCtx(ctx, "failed to enrich token",
			zap.String("token_id", token.TokenID),
			zap.Error(err))
		token.Name = nil
		token.ImageURI = nil
		token.URI = nil
		return
	}

	metrics.EnrichmentCalls.WithLabelValues("success").Inc()
	token.Name = &tokenMetadata.Name
	token.ImageURI = &tokenMetadata.ImageURI
	token.URI = &tokenMetadata.URI
}
