package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadIndexerConfig(t *testing.T) {
	tests := []struct {
		name        string
		configFile  string
		expectError bool
		validate    func(*testing.T, *IndexerConfig)
	}{
		{
			name: "valid config file",
			configFile: `
debug: true
sentry_dsn: "https://sentry.example.com"
database:
  host: localhost
  port: 5432
  user: testuser
  password: testpass
  dbname: testdb
  sslmode: require
ethereum:
  rpc_url: "http://localhost:8545"
  start_block: 9380410
  confirmations: 6
  batch_size: 100
  poll_interval: "6s"
registrar:
  contract_address: "0x57F1887a8BF19b14fC0dF6Fd9B2acc9Af147eA85"
  name: "Ethereum Name Service"
  symbol: "ENS"
metadata:
  service_url: "http://localhost:9999/mainnet"
  http_timeout: "5s"
worker:
  pool_size: 4
  queue_size: 64
nats:
  url: "nats://localhost:4222"
  stream_name: "TEST_STREAM"
server:
  port: 9090
`,
			expectError: false,
			validate: func(t *testing.T, cfg *IndexerConfig) {
				assert.True(t, cfg.Debug)
				assert.Equal(t, "https://sentry.example.com", cfg.SentryDSN)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, "require", cfg.Database.SSLMode)
				assert.Equal(t, "http://localhost:8545", cfg.Ethereum.RPCURL)
				assert.Equal(t, uint64(9380410), cfg.Ethereum.StartBlock)
				assert.Equal(t, uint64(6), cfg.Ethereum.Confirmations)
				assert.Equal(t, uint64(100), cfg.Ethereum.BatchSize)
				assert.Equal(t, 6*time.Second, cfg.Ethereum.PollInterval)
				assert.Equal(t, "0x57F1887a8BF19b14fC0dF6Fd9B2acc9Af147eA85", cfg.Registrar.ContractAddress)
				assert.Equal(t, "ENS", cfg.Registrar.Symbol)
				assert.Equal(t, "http://localhost:9999/mainnet", cfg.Metadata.ServiceURL)
				assert.Equal(t, 5*time.Second, cfg.Metadata.HTTPTimeout)
				assert.Equal(t, 4, cfg.Worker.WorkerPoolSize)
				assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
				assert.Equal(t, "TEST_STREAM", cfg.NATS.StreamName)
				assert.Equal(t, 9090, cfg.Server.Port)
			},
		},
		{
			name: "config with defaults",
			configFile: `
database:
  host: localhost
  user: testuser
  password: testpass
  dbname: testdb
ethereum:
  rpc_url: "http://localhost:8545"
`,
			expectError: false,
			validate: func(t *testing.T, cfg *IndexerConfig) {
				// Check defaults
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "disable", cfg.Database.SSLMode)
				assert.Equal(t, 10, cfg.Database.MaxOpenConns)
				assert.Equal(t, time.Hour, cfg.Database.ConnMaxLifetime)
				assert.Equal(t, uint64(12), cfg.Ethereum.Confirmations)
				assert.Equal(t, uint64(500), cfg.Ethereum.BatchSize)
				assert.Equal(t, 12*time.Second, cfg.Ethereum.PollInterval)
				assert.Equal(t, "0x57f1887a8bf19b14fc0df6fd9b2acc9af147ea85", cfg.Registrar.ContractAddress)
				assert.Equal(t, "Ethereum Name Service", cfg.Registrar.Name)
				assert.Equal(t, "erc721", cfg.Registrar.Standard)
				assert.Equal(t, "https://metadata.ens.domains/mainnet", cfg.Metadata.ServiceURL)
				assert.Equal(t, 30*time.Second, cfg.Metadata.HTTPTimeout)
				assert.Equal(t, 8, cfg.Worker.WorkerPoolSize)
				assert.Equal(t, "", cfg.NATS.URL)
				assert.Equal(t, "REGISTRAR_EVENTS", cfg.NATS.StreamName)
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "", cfg.RateLimiter.RedisAddr)
				assert.Equal(t, "registrar:indexer:limiter:", cfg.RateLimiter.RedisKeyPrefix)
				assert.True(t, cfg.RateLimiter.EnableLocalFallback)
				assert.Equal(t, 0.5, cfg.RateLimiter.LocalFallbackMultiplier)
				require.Contains(t, cfg.RateLimiter.Services, "metadata")
				assert.Equal(t, 10, cfg.RateLimiter.Services["metadata"].RequestsPerSecond)
				assert.Equal(t, 20, cfg.RateLimiter.Services["metadata"].Burst)
				assert.Equal(t, 5*time.Minute, cfg.RateLimiter.Services["metadata"].MaxQueueTime)
			},
		},
		{
			name:        "missing config file falls back to env",
			configFile:  "",
			expectError: false,
			validate:    nil,
		},
		{
			name: "invalid yaml",
			configFile: `
				database:
				  host: localhost
				  port: invalid
			`,
			expectError: true,
			validate:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			var configFile string

			if tt.configFile != "" {
				configFile = filepath.Join(tmpDir, "config.yaml")
				err := os.WriteFile(configFile, []byte(tt.configFile), 0600)
				require.NoError(t, err)
			}

			cfg, err := LoadIndexerConfig(configFile, tmpDir)
			if tt.expectError {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)
			if tt.validate != nil {
				tt.validate(t, cfg)
			}
		})
	}
}

func TestLoadIndexerConfigFromEnv(t *testing.T) {
	t.Setenv("INDEXER_DATABASE_HOST", "db.internal")
	t.Setenv("INDEXER_DATABASE_PASSWORD", "secret")
	t.Setenv("INDEXER_ETHEREUM_RPC_URL", "http://rpc.internal:8545")
	t.Setenv("INDEXER_ETHEREUM_CONFIRMATIONS", "3")
	t.Setenv("INDEXER_NATS_URL", "nats://nats.internal:4222")

	cfg, err := LoadIndexerConfig("", t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "secret", cfg.Database.Password)
	assert.Equal(t, "http://rpc.internal:8545", cfg.Ethereum.RPCURL)
	assert.Equal(t, uint64(3), cfg.Ethereum.Confirmations)
	assert.Equal(t, "nats://nats.internal:4222", cfg.NATS.URL)
}

func TestLoadSweeperConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadSweeperConfig("", t.TempDir())
		require.NoError(t, err)

		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "0x57f1887a8bf19b14fc0df6fd9b2acc9af147ea85", cfg.Registrar.ContractAddress)
		assert.Equal(t, "https://metadata.ens.domains/mainnet", cfg.Metadata.ServiceURL)
		assert.Equal(t, 100, cfg.Sweeper.BatchSize)
		assert.Equal(t, time.Hour, cfg.Sweeper.RetryAfter)
		assert.Equal(t, 4, cfg.Sweeper.Worker.WorkerPoolSize)
		assert.Equal(t, "", cfg.RateLimiter.RedisAddr)
	})

	t.Run("config file overrides", func(t *testing.T) {
		tmpDir := t.TempDir()
		configFile := filepath.Join(tmpDir, "config.yaml")
		err := os.WriteFile(configFile, []byte(`
sweeper:
  batch_size: 25
  retry_after: "30m"
  worker:
    pool_size: 2
ratelimiter:
  redis_addr: "localhost:6379"
  services:
    metadata:
      requests_per_second: 5
`), 0600)
		require.NoError(t, err)

		cfg, err := LoadSweeperConfig(configFile, tmpDir)
		require.NoError(t, err)

		assert.Equal(t, 25, cfg.Sweeper.BatchSize)
		assert.Equal(t, 30*time.Minute, cfg.Sweeper.RetryAfter)
		assert.Equal(t, 2, cfg.Sweeper.Worker.WorkerPoolSize)
		assert.Equal(t, "localhost:6379", cfg.RateLimiter.RedisAddr)
		require.Contains(t, cfg.RateLimiter.Services, "metadata")
		assert.Equal(t, 5, cfg.RateLimiter.Services["metadata"].RequestsPerSecond)
	})

	t.Run("env overrides", func(t *testing.T) {
		t.Setenv("INDEXER_SWEEPER_BATCH_SIZE", "50")
		t.Setenv("INDEXER_RATELIMITER_REDIS_ADDR", "redis.internal:6379")

		cfg, err := LoadSweeperConfig("", t.TempDir())
		require.NoError(t, err)

		assert.Equal(t, 50, cfg.Sweeper.BatchSize)
		assert.Equal(t, "redis.internal:6379", cfg.RateLimiter.RedisAddr)
	})
}

func TestDatabaseConfigDSN(t *testing.T) {
	cfg := &DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "indexer",
		Password: "secret",
		DBName:   "registrar",
		SSLMode:  "disable",
	}

	assert.Equal(t,
		"host=localhost port=5432 user=indexer password=secret dbname=registrar sslmode=disable",
		cfg.DSN())
}
