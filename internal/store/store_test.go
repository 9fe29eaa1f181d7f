package store

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/registrylabs/registrar-indexer/internal/store/schema"
)

const testContractAddress = "0x57f1887a8bf19b14fc0df6fd9b2acc9af147ea85"

// =============================================================================
// Test Data Builders
// =============================================================================

// buildTestContract creates the registrar contract row used across tests
func buildTestContract() *schema.Contract {
	return &schema.Contract{
		Address:     testContractAddress,
		Name:        "Ethereum Name Service",
		Symbol:      "ENS",
		TotalSupply: 0,
		Standard:    schema.StandardERC721,
	}
}

// buildTestCollection creates the paired legacy collection record
func buildTestCollection() *schema.LegacyCollection {
	return &schema.LegacyCollection{
		ID:     testContractAddress,
		Name:   "Ethereum Name Service",
		Symbol: "ENS",
	}
}

func buildTestOwner(address string) *schema.Owner {
	return &schema.Owner{Address: address}
}

func buildTestToken(tokenID string, owner *string, expiresAt *int64) *schema.Token {
	return &schema.Token{
		TokenID:         tokenID,
		ExpiresAt:       expiresAt,
		OwnerAddress:    owner,
		ContractAddress: testContractAddress,
	}
}

func buildTestTransfer(tokenID, from, to string, blockNumber uint64, logIndex uint) *schema.Transfer {
	txHash := fmt.Sprintf("0xtx%s%d", tokenID, blockNumber)
	raw, _ := json.Marshal(map[string]interface{}{
		"tx_hash":   txHash,
		"log_index": logIndex,
	})

	return &schema.Transfer{
		ID:          fmt.Sprintf("%s-%s-%s-%d", txHash, testContractAddress, tokenID, logIndex),
		BlockNumber: blockNumber,
		Timestamp:   time.Now().UTC().Truncate(time.Second),
		TxHash:      txHash,
		FromAddress: from,
		ToAddress:   to,
		TokenID:     tokenID,
		Raw:         raw,
	}
}

// rawDB reaches into the store's transaction so tests can verify rows that
// the Store interface does not expose directly
func rawDB(t *testing.T, s Store) *pgStore {
	pgs, ok := s.(*pgStore)
	require.True(t, ok)
	return pgs
}

// =============================================================================
// Test: Contract
// =============================================================================

func testContract(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("absent contract returns nil without error", func(t *testing.T) {
		contract, err := store.GetContract(ctx, "0x0000000000000000000000000000000000000001")
		require.NoError(t, err)
		assert.Nil(t, contract)
	})

	t.Run("create persists contract and legacy collection together", func(t *testing.T) {
		err := store.CreateContract(ctx, buildTestContract(), buildTestCollection())
		require.NoError(t, err)

		contract, err := store.GetContract(ctx, testContractAddress)
		require.NoError(t, err)
		require.NotNil(t, contract)
		assert.Equal(t, "Ethereum Name Service", contract.Name)
		assert.Equal(t, "ENS", contract.Symbol)
		assert.Equal(t, schema.StandardERC721, contract.Standard)

		var collection schema.LegacyCollection
		err = rawDB(t, store).db.Where("id = ?", testContractAddress).First(&collection).Error
		require.NoError(t, err)
		assert.Equal(t, contract.Name, collection.Name)
		assert.Equal(t, contract.Symbol, collection.Symbol)
	})

	t.Run("repeated create is a no-op", func(t *testing.T) {
		first := buildTestContract()
		first.Name = "Original"
		err := store.CreateContract(ctx, first, buildTestCollection())
		require.NoError(t, err)

		second := buildTestContract()
		second.Name = "Replacement"
		err = store.CreateContract(ctx, second, buildTestCollection())
		require.NoError(t, err)

		var count int64
		err = rawDB(t, store).db.Model(&schema.Contract{}).Where("address = ?", testContractAddress).Count(&count).Error
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		// The first write wins
		contract, err := store.GetContract(ctx, testContractAddress)
		require.NoError(t, err)
		require.NotNil(t, contract)
		assert.NotEqual(t, "Replacement", contract.Name)
	})
}

// =============================================================================
// Test: Bulk lookups
// =============================================================================

func testGetOwnersByAddresses(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("empty input returns empty map", func(t *testing.T) {
		owners, err := store.GetOwnersByAddresses(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, owners)
	})

	t.Run("returns only existing owners keyed by address", func(t *testing.T) {
		known := []*schema.Owner{
			buildTestOwner("0xaaaa000000000000000000000000000000000001"),
			buildTestOwner("0xaaaa000000000000000000000000000000000002"),
		}
		err := store.SaveBatch(ctx, known, nil, nil)
		require.NoError(t, err)

		owners, err := store.GetOwnersByAddresses(ctx, []string{
			known[0].Address,
			known[1].Address,
			"0xaaaa000000000000000000000000000000000099", // never persisted
		})
		require.NoError(t, err)
		assert.Len(t, owners, 2)
		assert.Contains(t, owners, known[0].Address)
		assert.Contains(t, owners, known[1].Address)
	})
}

func testGetTokensByIDs(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("empty input returns empty map", func(t *testing.T) {
		tokens, err := store.GetTokensByIDs(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, tokens)
	})

	t.Run("returns only existing tokens keyed by token id", func(t *testing.T) {
		require.NoError(t, store.CreateContract(ctx, buildTestContract(), buildTestCollection()))

		owner := "0xbbbb000000000000000000000000000000000001"
		expires := time.Now().Add(24 * time.Hour).Unix()
		err := store.SaveBatch(ctx,
			[]*schema.Owner{buildTestOwner(owner)},
			[]*schema.Token{
				buildTestToken("100", &owner, &expires),
				buildTestToken("200", &owner, nil),
			},
			nil)
		require.NoError(t, err)

		tokens, err := store.GetTokensByIDs(ctx, []string{"100", "200", "300"})
		require.NoError(t, err)
		assert.Len(t, tokens, 2)
		require.Contains(t, tokens, "100")
		require.NotNil(t, tokens["100"].ExpiresAt)
		assert.Equal(t, expires, *tokens["100"].ExpiresAt)
		require.Contains(t, tokens, "200")
		assert.Nil(t, tokens["200"].ExpiresAt)
	})
}

// =============================================================================
// Test: SaveBatch
// =============================================================================

func testSaveBatch(t *testing.T, store Store) {
	ctx := context.Background()
	require.NoError(t, store.CreateContract(ctx, buildTestContract(), buildTestCollection()))

	ownerA := "0xcccc00000000000000000000000000000000000a"
	ownerB := "0xcccc00000000000000000000000000000000000b"

	t.Run("writes owners, tokens, and transfers referencing each other", func(t *testing.T) {
		expires := time.Now().Add(365 * 24 * time.Hour).Unix()
		token := buildTestToken("1", &ownerB, &expires)
		transfer := buildTestTransfer("1", ownerA, ownerB, 1000, 0)

		err := store.SaveBatch(ctx,
			[]*schema.Owner{buildTestOwner(ownerA), buildTestOwner(ownerB)},
			[]*schema.Token{token},
			[]*schema.Transfer{transfer})
		require.NoError(t, err)

		tokens, err := store.GetTokensByIDs(ctx, []string{"1"})
		require.NoError(t, err)
		require.Contains(t, tokens, "1")
		require.NotNil(t, tokens["1"].OwnerAddress)
		assert.Equal(t, ownerB, *tokens["1"].OwnerAddress)

		var persisted schema.Transfer
		err = rawDB(t, store).db.Where("id = ?", transfer.ID).First(&persisted).Error
		require.NoError(t, err)
		assert.Equal(t, ownerA, persisted.FromAddress)
		assert.Equal(t, ownerB, persisted.ToAddress)
		assert.Equal(t, uint64(1000), persisted.BlockNumber)
	})

	t.Run("replay of the same batch is idempotent", func(t *testing.T) {
		expires := time.Now().Add(365 * 24 * time.Hour).Unix()
		token := buildTestToken("2", &ownerA, &expires)
		transfer := buildTestTransfer("2", ownerB, ownerA, 2000, 1)

		owners := []*schema.Owner{buildTestOwner(ownerA), buildTestOwner(ownerB)}
		require.NoError(t, store.SaveBatch(ctx, owners, []*schema.Token{token}, []*schema.Transfer{transfer}))
		require.NoError(t, store.SaveBatch(ctx, owners, []*schema.Token{token}, []*schema.Transfer{transfer}))

		var transferCount int64
		err := rawDB(t, store).db.Model(&schema.Transfer{}).Where("token_id = ?", "2").Count(&transferCount).Error
		require.NoError(t, err)
		assert.Equal(t, int64(1), transferCount)

		var ownerCount int64
		err = rawDB(t, store).db.Model(&schema.Owner{}).Where("address IN ?", []string{ownerA, ownerB}).Count(&ownerCount).Error
		require.NoError(t, err)
		assert.Equal(t, int64(2), ownerCount)
	})

	t.Run("token upsert overwrites the full row", func(t *testing.T) {
		expires := time.Now().Add(24 * time.Hour).Unix()
		original := buildTestToken("3", &ownerA, &expires)
		require.NoError(t, store.SaveBatch(ctx, []*schema.Owner{buildTestOwner(ownerA)}, []*schema.Token{original}, nil))

		name := "alice.eth"
		laterExpires := time.Now().Add(48 * time.Hour).Unix()
		updated := buildTestToken("3", &ownerB, &laterExpires)
		updated.Name = &name
		require.NoError(t, store.SaveBatch(ctx, []*schema.Owner{buildTestOwner(ownerB)}, []*schema.Token{updated}, nil))

		tokens, err := store.GetTokensByIDs(ctx, []string{"3"})
		require.NoError(t, err)
		require.Contains(t, tokens, "3")
		require.NotNil(t, tokens["3"].OwnerAddress)
		assert.Equal(t, ownerB, *tokens["3"].OwnerAddress)
		require.NotNil(t, tokens["3"].Name)
		assert.Equal(t, name, *tokens["3"].Name)
		require.NotNil(t, tokens["3"].ExpiresAt)
		assert.Equal(t, laterExpires, *tokens["3"].ExpiresAt)
	})

	t.Run("empty working sets are a no-op", func(t *testing.T) {
		err := store.SaveBatch(ctx, nil, nil, nil)
		require.NoError(t, err)
	})
}

// =============================================================================
// Test: Metadata repair queries
// =============================================================================

func testGetTokensMissingMetadata(t *testing.T, store Store) {
	ctx := context.Background()
	require.NoError(t, store.CreateContract(ctx, buildTestContract(), buildTestCollection()))

	owner := "0xdddd000000000000000000000000000000000001"
	future := time.Now().Add(365 * 24 * time.Hour).Unix()
	past := time.Now().Add(-24 * time.Hour).Unix()

	name := "complete.eth"
	imageURI := "https://metadata.ens.domains/image/10"
	uri := "https://metadata.ens.domains/10"

	complete := buildTestToken("10", &owner, &future)
	complete.Name = &name
	complete.ImageURI = &imageURI
	complete.URI = &uri

	missing := buildTestToken("11", &owner, &future)
	expired := buildTestToken("12", &owner, &past)
	noExpiry := buildTestToken("13", &owner, nil)

	partial := buildTestToken("14", &owner, &future)
	partial.Name = &name

	require.NoError(t, store.SaveBatch(ctx,
		[]*schema.Owner{buildTestOwner(owner)},
		[]*schema.Token{complete, missing, expired, noExpiry, partial},
		nil))

	// backdate bypasses the gorm auto-timestamp so the pacing filter is testable
	backdate := func(t *testing.T, tokenID string, age time.Duration) {
		err := rawDB(t, store).db.Model(&schema.Token{}).
			Where("token_id = ?", tokenID).
			UpdateColumn("updated_at", time.Now().Add(-age)).Error
		require.NoError(t, err)
	}

	t.Run("returns unexpired tokens with unset fields", func(t *testing.T) {
		tokens, err := store.GetTokensMissingMetadata(ctx, 0, 100)
		require.NoError(t, err)

		ids := make([]string, 0, len(tokens))
		for _, token := range tokens {
			ids = append(ids, token.TokenID)
		}
		assert.ElementsMatch(t, []string{"11", "13", "14"}, ids)
	})

	t.Run("recently touched tokens wait out the retry window", func(t *testing.T) {
		tokens, err := store.GetTokensMissingMetadata(ctx, time.Hour, 100)
		require.NoError(t, err)
		assert.Empty(t, tokens)

		backdate(t, "11", 2*time.Hour)

		tokens, err = store.GetTokensMissingMetadata(ctx, time.Hour, 100)
		require.NoError(t, err)
		require.Len(t, tokens, 1)
		assert.Equal(t, "11", tokens[0].TokenID)
	})

	t.Run("oldest updated first, capped by limit", func(t *testing.T) {
		backdate(t, "13", 3*time.Hour)

		tokens, err := store.GetTokensMissingMetadata(ctx, time.Hour, 1)
		require.NoError(t, err)
		require.Len(t, tokens, 1)
		assert.Equal(t, "13", tokens[0].TokenID)
	})
}

func testUpdateTokenMetadata(t *testing.T, store Store) {
	ctx := context.Background()
	require.NoError(t, store.CreateContract(ctx, buildTestContract(), buildTestCollection()))

	owner := "0xeeee000000000000000000000000000000000001"
	expires := time.Now().Add(365 * 24 * time.Hour).Unix()
	require.NoError(t, store.SaveBatch(ctx,
		[]*schema.Owner{buildTestOwner(owner)},
		[]*schema.Token{buildTestToken("20", &owner, &expires)},
		nil))

	t.Run("sets the descriptive fields", func(t *testing.T) {
		name := "vitalik.eth"
		imageURI := "https://metadata.ens.domains/image/20"
		uri := "https://metadata.ens.domains/20"

		err := store.UpdateTokenMetadata(ctx, "20", &name, &imageURI, &uri)
		require.NoError(t, err)

		tokens, err := store.GetTokensByIDs(ctx, []string{"20"})
		require.NoError(t, err)
		require.Contains(t, tokens, "20")
		require.NotNil(t, tokens["20"].Name)
		assert.Equal(t, name, *tokens["20"].Name)
		require.NotNil(t, tokens["20"].ImageURI)
		assert.Equal(t, imageURI, *tokens["20"].ImageURI)
		require.NotNil(t, tokens["20"].URI)
		assert.Equal(t, uri, *tokens["20"].URI)
	})

	t.Run("nil pointers clear fields", func(t *testing.T) {
		err := store.UpdateTokenMetadata(ctx, "20", nil, nil, nil)
		require.NoError(t, err)

		tokens, err := store.GetTokensByIDs(ctx, []string{"20"})
		require.NoError(t, err)
		require.Contains(t, tokens, "20")
		assert.Nil(t, tokens["20"].Name)
		assert.Nil(t, tokens["20"].ImageURI)
		assert.Nil(t, tokens["20"].URI)
	})

	t.Run("unknown token id is a no-op", func(t *testing.T) {
		name := "ghost.eth"
		err := store.UpdateTokenMetadata(ctx, "999", &name, nil, nil)
		require.NoError(t, err)
	})

	t.Run("ownership and expiry stay untouched", func(t *testing.T) {
		name := "vitalik.eth"
		require.NoError(t, store.UpdateTokenMetadata(ctx, "20", &name, nil, nil))

		tokens, err := store.GetTokensByIDs(ctx, []string{"20"})
		require.NoError(t, err)
		require.Contains(t, tokens, "20")
		require.NotNil(t, tokens["20"].OwnerAddress)
		assert.Equal(t, owner, *tokens["20"].OwnerAddress)
		require.NotNil(t, tokens["20"].ExpiresAt)
		assert.Equal(t, expires, *tokens["20"].ExpiresAt)
	})
}

// =============================================================================
// Test: Block cursor
// =============================================================================

func testBlockCursor(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("missing cursor returns zero", func(t *testing.T) {
		cursor, err := store.GetBlockCursor(ctx, testContractAddress)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), cursor)
	})

	t.Run("set and get roundtrip", func(t *testing.T) {
		err := store.SetBlockCursor(ctx, testContractAddress, 12345)
		require.NoError(t, err)

		cursor, err := store.GetBlockCursor(ctx, testContractAddress)
		require.NoError(t, err)
		assert.Equal(t, uint64(12345), cursor)
	})

	t.Run("set overwrites the previous cursor", func(t *testing.T) {
		require.NoError(t, store.SetBlockCursor(ctx, testContractAddress, 100))
		require.NoError(t, store.SetBlockCursor(ctx, testContractAddress, 200))

		cursor, err := store.GetBlockCursor(ctx, testContractAddress)
		require.NoError(t, err)
		assert.Equal(t, uint64(200), cursor)
	})

	t.Run("cursors are scoped per contract", func(t *testing.T) {
		other := "0x1111111111111111111111111111111111111111"
		require.NoError(t, store.SetBlockCursor(ctx, testContractAddress, 500))
		require.NoError(t, store.SetBlockCursor(ctx, other, 700))

		cursor, err := store.GetBlockCursor(ctx, testContractAddress)
		require.NoError(t, err)
		assert.Equal(t, uint64(500), cursor)

		cursor, err = store.GetBlockCursor(ctx, other)
		require.NoError(t, err)
		assert.Equal(t, uint64(700), cursor)
	})
}

// =============================================================================
// Test Runner
// =============================================================================

// RunStoreTests runs all store tests with the provided database initialization
func RunStoreTests(t *testing.T, initDB func(t *testing.T) Store, cleanupDB func(t *testing.T)) {
	tests := []struct {
		name string
		fn   func(*testing.T, Store)
	}{
		{"Contract", testContract},
		{"GetOwnersByAddresses", testGetOwnersByAddresses},
		{"GetTokensByIDs", testGetTokensByIDs},
		{"SaveBatch", testSaveBatch},
		{"GetTokensMissingMetadata", testGetTokensMissingMetadata},
		{"UpdateTokenMetadata", testUpdateTokenMetadata},
		{"BlockCursor", testBlockCursor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := initDB(t)
			defer cleanupDB(t)
			tt.fn(t, store)
		})
	}
}

// TestCalculateSafeBatchSize verifies the parameter-limit arithmetic
func TestCalculateSafeBatchSize(t *testing.T) {
	tests := []struct {
		name            string
		totalRecords    int
		fieldsPerRecord int
		expected        int
	}{
		{"small batch returns total", 100, 9, 100},
		{"owner fields", 100000, 2, 32267},
		{"token fields", 100000, 9, 7170},
		{"degenerate wide record still makes progress", 10, 70000, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, calculateSafeBatchSize(tt.totalRecords, tt.fieldsPerRecord))
		})
	}
}

// TestNormalizeConnectionPoolSettings verifies defaulting and clamping
func TestNormalizeConnectionPoolSettings(t *testing.T) {
	t.Run("zero values get defaults", func(t *testing.T) {
		open, idle, lifetime, idleTime := NormalizeConnectionPoolSettings(0, 0, 0, 0)
		assert.Equal(t, 20, open)
		assert.Equal(t, 5, idle)
		assert.Equal(t, 5*time.Minute, lifetime)
		assert.Equal(t, 10*time.Minute, idleTime)
	})

	t.Run("idle is clamped to open", func(t *testing.T) {
		open, idle, _, _ := NormalizeConnectionPoolSettings(3, 10, time.Minute, time.Minute)
		assert.Equal(t, 3, open)
		assert.Equal(t, 3, idle)
	})
}
