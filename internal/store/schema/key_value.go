package schema

import (
	"time"
)

// KeyValue represents the key_values table - generic storage for small pieces
// of operational state such as per-contract block cursors.
type KeyValue struct {
	// Key is the unique identifier for the value
	Key string `gorm:"column:key;primaryKey;type:text"`
	// Value is the stored value as a string
	Value string `gorm:"column:value;not null;type:text"`
	// CreatedAt is the timestamp when this record was created
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
	// UpdatedAt is the timestamp when this record was last updated
	UpdatedAt time.Time `gorm:"column:updated_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the KeyValue model
func (KeyValue) TableName() string {
	return "key_values"
}
