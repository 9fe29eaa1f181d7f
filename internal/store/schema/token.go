package schema

import (
	"time"
)

// Token represents the tokens table - a registered name identified by its
// numeric token id rendered as a decimal string. Tokens are created on first
// event referencing their id and mutated in place thereafter.
type Token struct {
	// TokenID is the registrar token id as a decimal string
	TokenID string `gorm:"column:token_id;primaryKey;type:text"`
	// Name is the resolved display name, nil until enrichment succeeds
	Name *string `gorm:"column:name;type:text"`
	// ImageURI is the metadata image reference, nil until enrichment succeeds
	ImageURI *string `gorm:"column:image_uri;type:text"`
	// URI is the external metadata URI, nil until enrichment succeeds
	URI *string `gorm:"column:uri;type:text"`
	// ExpiresAt is the registration expiry in unix seconds, nil until a
	// registration or renewal event is observed
	ExpiresAt *int64 `gorm:"column:expires_at;type:bigint"`
	// OwnerAddress references the current owner, nil only transiently before
	// the first assignment
	OwnerAddress *string `gorm:"column:owner_address;type:text;index:idx_tokens_owner_address"`
	// ContractAddress references the registrar contract
	ContractAddress string `gorm:"column:contract_address;not null;type:text"`
	// CreatedAt is the timestamp when this token was first indexed
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// UpdatedAt is the timestamp when this record was last updated
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`

	// Associations
	Owner    *Owner    `gorm:"foreignKey:OwnerAddress;references:Address"`
	Contract *Contract `gorm:"foreignKey:ContractAddress;references:Address"`
}

// TableName specifies the table name for the Token model
func (Token) TableName() string {
	return "tokens"
}
