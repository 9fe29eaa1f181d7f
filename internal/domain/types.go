package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ZeroAddress is the Ethereum zero address. It is a real owner value for
// reconciliation purposes, never shorthand for "absent".
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// EventKind represents the kind of a registrar event
type EventKind string

const (
	// EventKindRegistration represents a name registration (new token, owner assigned, expiration set)
	EventKindRegistration EventKind = "registration"
	// EventKindRenewal represents a name renewal (expiration extended, owner untouched)
	EventKindRenewal EventKind = "renewal"
	// EventKindTransfer represents an ERC-721 transfer of a name token between owners
	EventKindTransfer EventKind = "transfer"
)

// Valid checks if the event kind is recognized
func (k EventKind) Valid() bool {
	switch k {
	case EventKindRegistration, EventKindRenewal, EventKindTransfer:
		return true
	default:
		return false
	}
}

// RegistrarEvent represents one decoded registrar log in normalized form.
// From, To and ExpiresAt are nil when the underlying event does not carry
// them; the zero address is preserved as a value.
type RegistrarEvent struct {
	ID              string    `json:"id"`
	Kind            EventKind `json:"kind"`
	ContractAddress string    `json:"contract_address"`
	TokenID         string    `json:"token_id"` // numeric id as decimal string
	From            *string   `json:"from,omitempty"`
	To              *string   `json:"to,omitempty"`
	ExpiresAt       *int64    `json:"expires_at,omitempty"` // unix seconds
	BlockNumber     uint64    `json:"block_number"`
	BlockHash       string    `json:"block_hash"`
	Timestamp       time.Time `json:"timestamp"`
	TxHash          string    `json:"tx_hash"`
	LogIndex        uint      `json:"log_index"`
}

// Valid checks if the event carries the fields required for its kind
func (e *RegistrarEvent) Valid() bool {
	if !e.Kind.Valid() || e.ID == "" || e.ContractAddress == "" || e.TokenID == "" || e.TxHash == "" {
		return false
	}

	switch e.Kind {
	case EventKindRegistration:
		return e.From == nil && e.To != nil && e.ExpiresAt != nil
	case EventKindRenewal:
		return e.From == nil && e.To == nil && e.ExpiresAt != nil
	case EventKindTransfer:
		return e.From != nil && e.To != nil && e.ExpiresAt == nil
	default:
		return false
	}
}

// EventID builds the synthetic identity shared by a normalized event and the
// transfer row it may materialize. The log index keeps multiple transfers of
// the same token within one transaction unique.
func EventID(txHash, contractAddress, tokenID string, logIndex uint) string {
	return fmt.Sprintf("%s-%s-%s-%d", strings.ToLower(txHash), NormalizeAddress(contractAddress), tokenID, logIndex)
}

// NormalizeAddress normalizes an Ethereum address to its lowercase hex form,
// the canonical owner identity
func NormalizeAddress(address string) string {
	return strings.ToLower(common.HexToAddress(address).Hex())
}

// BlockRef is a light reference to one block of a batch
type BlockRef struct {
	Number uint64    `json:"number"`
	Hash   string    `json:"hash"`
	Time   time.Time `json:"time"`
}

// Batch is one contiguous, ordered group of blocks together with the
// registrar logs emitted inside them. Logs arrive already filtered to the
// registrar contract and the recognized topics, ordered by block number and
// log index.
type Batch struct {
	FromBlock uint64
	ToBlock   uint64
	Blocks    []BlockRef
	Logs      []types.Log
}

// BlockTimes indexes the batch's block timestamps by block number
func (b *Batch) BlockTimes() map[uint64]time.Time {
	times := make(map[uint64]time.Time, len(b.Blocks))
	for _, blk := range b.Blocks {
		times[blk.Number] = blk.Time
	}
	return times
}
