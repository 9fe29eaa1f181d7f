package schema

import (
	"time"
)

// Owner represents the owners table. An owner is identified solely by its
// lowercase blockchain address and carries no mutable fields; rows are created
// on first reference and never deleted.
type Owner struct {
	// Address is the owner's blockchain address, lowercase
	Address string `gorm:"column:address;primaryKey;type:text"`
	// CreatedAt is the timestamp when this owner was first referenced
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();type:timestamptz"`
}

// TableName specifies the table name for the Owner model
func (Owner) TableName() string {
	return "owners"
}
