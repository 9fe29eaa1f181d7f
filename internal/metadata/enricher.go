package metadata

import (
	"context"
	"fmt"
	"strings"

	"github.com/registrylabs/registrar-indexer/internal/adapter"
	"github.com/registrylabs/registrar-indexer/internal/domain"
	"github.com/registrylabs/registrar-indexer/internal/ratelimit"
)

// SERVICE_NAME is the rate limiter service key for the metadata service
const SERVICE_NAME = "metadata"

// TokenMetadata represents the descriptive fields returned by the metadata
// service for one token
type TokenMetadata struct {
	Name     string `json:"name"`
	URI      string `json:"url"`
	ImageURI string `json:"image"`
}

// Enricher defines the interface for fetching descriptive token metadata.
// Enrichment is best-effort: callers treat failures as recoverable and must
// never let them abort batch processing.
//
//go:generate mockgen -source=enricher.go -destination=../mocks/enricher.go -package=mocks -mock_names=Enricher=MockEnricher
type Enricher interface {
	// Enrich fetches the descriptive metadata for a token id
	Enrich(ctx context.Context, tokenID string) (*TokenMetadata, error)
}

type enricher struct {
	httpClient      adapter.HTTPClient
	limiter         ratelimit.Limiter
	serviceURL      string
	contractAddress string
}

// NewEnricher creates an enricher backed by the metadata service at
// serviceURL, scoped to the given registrar contract. A nil limiter leaves
// calls unthrottled.
func NewEnricher(httpClient adapter.HTTPClient, limiter ratelimit.Limiter, serviceURL, contractAddress string) Enricher {
	return &enricher{
		httpClient:      httpClient,
		limiter:         limiter,
		serviceURL:      strings.TrimSuffix(serviceURL, "/"),
		contractAddress: domain.NormalizeAddress(contractAddress),
	}
}

// Enrich fetches metadata from <serviceURL>/<contractAddress>/<tokenID>.
// The service keys tokens by the same decimal token id used on-chain.
func (e *enricher) Enrich(ctx context.Context, tokenID string) (*TokenMetadata, error) {
	url := fmt.Sprintf("%s/%s/%s", e.serviceURL, e.contractAddress, tokenID)

	metadata, err := ratelimit.Request(ctx, e.limiter, SERVICE_NAME, func(ctx context.Context) (*TokenMetadata, error) {
		var md TokenMetadata
		if err := e.httpClient.Get(ctx, url, &md); err != nil {
			return nil, err
		}
		return &md, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch metadata for token %s: %w", tokenID, err)
	}

	return metadata, nil
}
