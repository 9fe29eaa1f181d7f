package ethereum

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/registrylabs/registrar-indexer/internal/domain"
)

// Event signatures emitted by the base registrar contract
var (
	// NameRegistered(uint256 indexed id, address indexed owner, uint256 expires)
	nameRegisteredEventSignature = crypto.Keccak256Hash([]byte("NameRegistered(uint256,address,uint256)"))

	// NameRenewed(uint256 indexed id, uint256 expires)
	nameRenewedEventSignature = crypto.Keccak256Hash([]byte("NameRenewed(uint256,uint256)"))

	// ERC721 Transfer(address indexed from, address indexed to, uint256 indexed tokenId)
	transferEventSignature = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
)

// DecodeRegistrarLog decodes one raw log from the registrar contract into a
// normalized event. The caller supplies the enclosing block's timestamp.
// Decoding is deterministic; any structural mismatch is an error, since logs
// reaching this point were already filtered to the registrar's topics.
func DecodeRegistrarLog(vLog types.Log, blockTime time.Time) (*domain.RegistrarEvent, error) {
	if len(vLog.Topics) == 0 {
		return nil, fmt.Errorf("%w: log has no topics", domain.ErrMalformedEvent)
	}

	contractAddress := domain.NormalizeAddress(vLog.Address.Hex())
	event := &domain.RegistrarEvent{
		ContractAddress: contractAddress,
		BlockNumber:     vLog.BlockNumber,
		BlockHash:       vLog.BlockHash.Hex(),
		Timestamp:       blockTime,
		TxHash:          vLog.TxHash.Hex(),
		LogIndex:        vLog.Index,
	}

	switch vLog.Topics[0] {
	case nameRegisteredEventSignature:
		// NameRegistered(uint256 indexed id, address indexed owner, uint256 expires)
		if len(vLog.Topics) != 3 {
			return nil, fmt.Errorf("%w: NameRegistered expects 3 topics, got %d",
				domain.ErrMalformedEvent, len(vLog.Topics))
		}

		expiresAt, err := decodeExpiry(vLog.Data)
		if err != nil {
			return nil, err
		}

		event.Kind = domain.EventKindRegistration
		event.TokenID = new(big.Int).SetBytes(vLog.Topics[1].Bytes()).String()
		owner := domain.NormalizeAddress(common.BytesToAddress(vLog.Topics[2].Bytes()).Hex())
		event.To = &owner
		event.ExpiresAt = &expiresAt

	case nameRenewedEventSignature:
		// NameRenewed(uint256 indexed id, uint256 expires)
		if len(vLog.Topics) != 2 {
			return nil, fmt.Errorf("%w: NameRenewed expects 2 topics, got %d",
				domain.ErrMalformedEvent, len(vLog.Topics))
		}

		expiresAt, err := decodeExpiry(vLog.Data)
		if err != nil {
			return nil, err
		}

		event.Kind = domain.EventKindRenewal
		event.TokenID = new(big.Int).SetBytes(vLog.Topics[1].Bytes()).String()
		event.ExpiresAt = &expiresAt

	case transferEventSignature:
		// ERC721 Transfer(address indexed from, address indexed to, uint256 indexed tokenId).
		// The registrar is ERC721, so a 3-topic (ERC20-shaped) Transfer here is
		// a filter mismatch, not something to skip silently.
		if len(vLog.Topics) != 4 {
			return nil, fmt.Errorf("%w: Transfer expects 4 topics, got %d",
				domain.ErrMalformedEvent, len(vLog.Topics))
		}

		event.Kind = domain.EventKindTransfer
		from := domain.NormalizeAddress(common.BytesToAddress(vLog.Topics[1].Bytes()).Hex())
		to := domain.NormalizeAddress(common.BytesToAddress(vLog.Topics[2].Bytes()).Hex())
		event.From = &from
		event.To = &to
		event.TokenID = new(big.Int).SetBytes(vLog.Topics[3].Bytes()).String()

	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownEventSignature, vLog.Topics[0].Hex())
	}

	event.ID = domain.EventID(event.TxHash, contractAddress, event.TokenID, event.LogIndex)

	return event, nil
}

// decodeExpiry reads the unindexed expires value from the first data word
func decodeExpiry(data []byte) (int64, error) {
	if len(data) < 32 {
		return 0, fmt.Errorf("%w: insufficient data for expiry, got %d bytes",
			domain.ErrMalformedEvent, len(data))
	}

	expires := new(big.Int).SetBytes(data[0:32])
	if !expires.IsInt64() {
		return 0, fmt.Errorf("%w: expiry %s overflows int64", domain.ErrMalformedEvent, expires.String())
	}

	return expires.Int64(), nil
}
