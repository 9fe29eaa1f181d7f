package schema

import (
	"time"

	"gorm.io/datatypes"
)

// Transfer represents the transfers table - append-only records of token
// ownership changes between two owners. Rows are immutable once created.
type Transfer struct {
	// ID is the synthetic event id: txHash-contractAddress-tokenId-logIndex,
	// all lowercase
	ID string `gorm:"column:id;primaryKey;type:text"`
	// BlockNumber is the block in which the transfer occurred
	BlockNumber uint64 `gorm:"column:block_number;not null;type:bigint"`
	// Timestamp is the blockchain timestamp of the transfer
	Timestamp time.Time `gorm:"column:timestamp;not null;type:timestamptz"`
	// TxHash is the transaction hash that emitted the transfer
	TxHash string `gorm:"column:tx_hash;not null;type:text;index:idx_transfers_tx_hash"`
	// FromAddress is the sending owner's address
	FromAddress string `gorm:"column:from_address;not null;type:text;index:idx_transfers_from_address"`
	// ToAddress is the receiving owner's address
	ToAddress string `gorm:"column:to_address;not null;type:text;index:idx_transfers_to_address"`
	// TokenID references the token that changed hands
	TokenID string `gorm:"column:token_id;not null;type:text;index:idx_transfers_token_id"`
	// Raw contains the decoded event as JSON for debugging and replay
	Raw datatypes.JSON `gorm:"column:raw;type:jsonb"`
	// CreatedAt is the timestamp when this record was indexed
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`

	// Associations
	Token Token `gorm:"foreignKey:TokenID;references:TokenID"`
	From  Owner `gorm:"foreignKey:FromAddress;references:Address"`
	To    Owner `gorm:"foreignKey:ToAddress;references:Address"`
}

// TableName specifies the table name for the Transfer model
func (Transfer) TableName() string {
	return "transfers"
}
