package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/registrylabs/registrar-indexer/internal/store/schema"
)

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// ConfigureConnectionPool configures the connection pool settings for a GORM
// database connection. It accesses the underlying *sql.DB and sets the pool
// configuration. Zero values fall back to the defaults applied by
// NormalizeConnectionPoolSettings.
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime =
		NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// NormalizeConnectionPoolSettings applies defaults and clamps pool settings into safe values.
//
// Defaults (when zero):
//   - MaxOpenConns: 20
//   - MaxIdleConns: 5
//   - ConnMaxLifetime: 5 minutes
//   - ConnMaxIdleTime: 10 minutes
//
// Notes:
//   - database/sql treats MaxOpenConns=0 as "unlimited"
//   - database/sql treats MaxIdleConns=0 as "no idle connections"
func NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (int, int, time.Duration, time.Duration) {
	// Set defaults if not provided
	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}

	// Ensure MaxIdleConns doesn't exceed MaxOpenConns
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	return maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime
}

// calculateSafeBatchSize computes the batch size for bulk inserts that stays
// under PostgreSQL's extended-protocol limit of 65535 parameters per query.
// Each record consumes one parameter per inserted field, and ON CONFLICT
// clauses plus GORM bookkeeping add batch-level overhead, covered here by a
// fixed headroom.
//
// Example with headroom of 1000:
//   - Owner struct: 2 fields → (65,535 - 1,000) / 2 = 32,267 records/batch
//   - Token struct: 9 fields → (65,535 - 1,000) / 9 = 7,170 records/batch
//   - Transfer struct: 9 fields → (65,535 - 1,000) / 9 = 7,170 records/batch
func calculateSafeBatchSize(totalRecords int, fieldsPerRecord int) int {
	const maxParams = 65535
	const totalHeadroom = 1000

	availableParams := maxParams - totalHeadroom
	safeBatchSize := max(availableParams/fieldsPerRecord, 1)

	if safeBatchSize > totalRecords {
		return totalRecords
	}

	return safeBatchSize
}

// GetContract retrieves the registrar contract by address
func (s *pgStore) GetContract(ctx context.Context, address string) (*schema.Contract, error) {
	var contract schema.Contract
	err := s.db.WithContext(ctx).Where("address = ?", address).First(&contract).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get contract: %w", err)
	}
	return &contract, nil
}

// CreateContract persists the contract and its legacy collection record in a
// single transaction. Both inserts use ON CONFLICT DO NOTHING so a concurrent
// or repeated resolution never creates duplicate rows.
func (s *pgStore) CreateContract(ctx context.Context, contract *schema.Contract, collection *schema.LegacyCollection) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "address"}},
			DoNothing: true,
		}).Create(contract).Error; err != nil {
			return fmt.Errorf("failed to create contract: %w", err)
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).Create(collection).Error; err != nil {
			return fmt.Errorf("failed to create legacy collection: %w", err)
		}

		return nil
	})
}

// GetOwnersByAddresses retrieves multiple owners by their addresses
func (s *pgStore) GetOwnersByAddresses(ctx context.Context, addresses []string) (map[string]*schema.Owner, error) {
	result := make(map[string]*schema.Owner)
	if len(addresses) == 0 {
		return result, nil
	}

	var owners []schema.Owner
	err := s.db.WithContext(ctx).Where("address IN ?", addresses).Find(&owners).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get owners by addresses: %w", err)
	}

	for i := range owners {
		result[owners[i].Address] = &owners[i]
	}

	return result, nil
}

// GetTokensByIDs retrieves multiple tokens by their token ids
func (s *pgStore) GetTokensByIDs(ctx context.Context, tokenIDs []string) (map[string]*schema.Token, error) {
	result := make(map[string]*schema.Token)
	if len(tokenIDs) == 0 {
		return result, nil
	}

	var tokens []schema.Token
	err := s.db.WithContext(ctx).Where("token_id IN ?", tokenIDs).Find(&tokens).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get tokens by IDs: %w", err)
	}

	for i := range tokens {
		result[tokens[i].TokenID] = &tokens[i]
	}

	return result, nil
}

// SaveBatch upserts the per-batch working sets in a single transaction.
// Owners are written first, then tokens, then transfers, since tokens
// reference owners and transfers reference both. Owners have no mutable
// fields so conflicts are skipped; tokens and transfers overwrite every
// mutable column so batch retries stay idempotent.
func (s *pgStore) SaveBatch(ctx context.Context, owners []*schema.Owner, tokens []*schema.Token, transfers []*schema.Transfer) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(owners) > 0 {
			batchSize := calculateSafeBatchSize(len(owners), 2)
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "address"}},
				DoNothing: true,
			}).CreateInBatches(owners, batchSize).Error; err != nil {
				return fmt.Errorf("failed to upsert owners: %w", err)
			}
		}

		if len(tokens) > 0 {
			batchSize := calculateSafeBatchSize(len(tokens), 9)
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "token_id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"name", "image_uri", "uri", "expires_at",
					"owner_address", "contract_address", "updated_at",
				}),
			}).CreateInBatches(tokens, batchSize).Error; err != nil {
				return fmt.Errorf("failed to upsert tokens: %w", err)
			}
		}

		if len(transfers) > 0 {
			batchSize := calculateSafeBatchSize(len(transfers), 9)
			if err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"block_number", "timestamp", "tx_hash",
					"from_address", "to_address", "token_id", "raw",
				}),
			}).CreateInBatches(transfers, batchSize).Error; err != nil {
				return fmt.Errorf("failed to upsert transfers: %w", err)
			}
		}

		return nil
	})
}

// GetBlockCursor retrieves the last processed block number for a contract
func (s *pgStore) GetBlockCursor(ctx context.Context, contractAddress string) (uint64, error) {
	key := fmt.Sprintf("block_cursor:%s", contractAddress)

	var kv schema.KeyValue
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&kv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get block cursor: %w", err)
	}

	blockNumber, err := strconv.ParseUint(kv.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse block cursor: %w", err)
	}

	return blockNumber, nil
}

// SetBlockCursor stores the last processed block number for a contract
func (s *pgStore) SetBlockCursor(ctx context.Context, contractAddress string, blockNumber uint64) error {
	key := fmt.Sprintf("block_cursor:%s", contractAddress)
	value := strconv.FormatUint(blockNumber, 10)

	kv := schema.KeyValue{
		Key:   key,
		Value: value,
	}

	err := s.db.WithContext(ctx).Save(&kv).Error
	if err != nil {
		return fmt.Errorf("failed to set block cursor: %w", err)
	}

	return nil
}

// GetTokensMissingMetadata retrieves unexpired tokens with unset descriptive
// fields, oldest-updated first. Tokens without a known expiry are included
// since they exist on-chain and can still be enriched.
func (s *pgStore) GetTokensMissingMetadata(ctx context.Context, retryAfter time.Duration, limit int) ([]*schema.Token, error) {
	cutoffTime := time.Now().Add(-retryAfter)
	now := time.Now().Unix()

	var tokens []*schema.Token
	err := s.db.WithContext(ctx).
		Where("name IS NULL OR image_uri IS NULL OR uri IS NULL").
		Where("expires_at IS NULL OR expires_at >= ?", now).
		Where("updated_at < ?", cutoffTime).
		Order("updated_at ASC").
		Limit(limit).
		Find(&tokens).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get tokens missing metadata: %w", err)
	}

	return tokens, nil
}

// UpdateTokenMetadata overwrites the descriptive fields of a single token.
// Nil pointers write NULL, so the row always reflects the metadata service's
// latest view.
func (s *pgStore) UpdateTokenMetadata(ctx context.Context, tokenID string, name, imageURI, uri *string) error {
	updates := map[string]interface{}{
		"name":       name,
		"image_uri":  imageURI,
		"uri":        uri,
		"updated_at": time.Now(),
	}

	err := s.db.WithContext(ctx).
		Model(&schema.Token{}).
		Where("token_id = ?", tokenID).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("failed to update token metadata: %w", err)
	}

	return nil
}
