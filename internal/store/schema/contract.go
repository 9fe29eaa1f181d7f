package schema

import (
	"time"
)

// Standard represents the token standard of the registrar contract
type Standard string

const (
	// StandardERC721 represents Ethereum ERC-721 non-fungible tokens
	StandardERC721 Standard = "erc721"
)

// Contract represents the contracts table - the single registrar contract that
// all tokens reference. The row is created at most once per address and never
// mutated afterwards.
type Contract struct {
	// Address is the registrar contract address, lowercase
	Address string `gorm:"column:address;primaryKey;type:text"`
	// Name is the registrar's display name
	Name string `gorm:"column:name;not null;type:text"`
	// Symbol is the registrar's token symbol
	Symbol string `gorm:"column:symbol;not null;type:text"`
	// TotalSupply is the supply recorded at creation (0 when unbounded)
	TotalSupply uint64 `gorm:"column:total_supply;not null;default:0"`
	// Standard identifies the token contract type
	Standard Standard `gorm:"column:standard;not null;type:text"`
	// CreatedAt is the timestamp when this contract was first resolved
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the Contract model
func (Contract) TableName() string {
	return "contracts"
}

// LegacyCollection represents the legacy_collections table - a compatibility
// record mirroring the contract row for consumers of the previous schema. It
// shares the contract's identity and is created in the same transaction.
type LegacyCollection struct {
	// ID is the contract address, shared with the contracts row
	ID string `gorm:"column:id;primaryKey;type:text"`
	// Name mirrors the contract name
	Name string `gorm:"column:name;not null;type:text"`
	// Symbol mirrors the contract symbol
	Symbol string `gorm:"column:symbol;not null;type:text"`
	// TotalSupply mirrors the contract total supply
	TotalSupply uint64 `gorm:"column:total_supply;not null;default:0"`
	// CreatedAt is the timestamp when this record was created
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the LegacyCollection model
func (LegacyCollection) TableName() string {
	return "legacy_collections"
}
