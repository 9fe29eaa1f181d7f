//go:generate mockgen -source=handler.go -destination=../../mocks/api_handler.go -package=mocks -mock_names=Handler=MockAPIHandler

package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/registrylabs/registrar-indexer/internal/block"
	"github.com/registrylabs/registrar-indexer/internal/domain"
	"github.com/registrylabs/registrar-indexer/internal/store"
)

// Handler defines the interface for REST API handlers
type Handler interface {
	// HealthCheck handles health check requests
	HealthCheck(c *gin.Context)

	// GetStatus reports indexing progress against the chain head
	GetStatus(c *gin.Context)
}

type handler struct {
	store           store.Store
	blocks          block.Provider
	contractAddress string
}

// NewHandler creates a new REST API handler
func NewHandler(store store.Store, blocks block.Provider, contractAddress string) Handler {
	return &handler{
		store:           store,
		blocks:          blocks,
		contractAddress: domain.NormalizeAddress(contractAddress),
	}
}

// HealthCheck handles the health check endpoint
func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "registrar-indexer-api",
	})
}

type statusResponse struct {
	ContractAddress    string `json:"contract_address"`
	LastProcessedBlock uint64 `json:"last_processed_block"`
	ChainHead          uint64 `json:"chain_head"`
	BlocksBehind       uint64 `json:"blocks_behind"`
}

// GetStatus handles GET /api/v1/status
func (h *handler) GetStatus(c *gin.Context) {
	cursor, err := h.store.GetBlockCursor(c.Request.Context(), h.contractAddress)
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, ErrorCodeDatabaseError,
			"failed to load block cursor", err.Error())
		return
	}

	head, err := h.blocks.GetLatestBlock(c.Request.Context())
	if err != nil {
		respondWithError(c, http.StatusServiceUnavailable, ErrorCodeChainUnavailable,
			"failed to fetch chain head", err.Error())
		return
	}

	behind := uint64(0)
	if head > cursor {
		behind = head - cursor
	}

	c.JSON(http.StatusOK, statusResponse{
		ContractAddress:    h.contractAddress,
		LastProcessedBlock: cursor,
		ChainHead:          head,
		BlocksBehind:       behind,
	})
}
