package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug     bool   `mapstructure:"debug"`
	SentryDSN string `mapstructure:"sentry_dsn"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// EthereumConfig holds the chain connection and batch polling configuration
type EthereumConfig struct {
	RPCURL               string        `mapstructure:"rpc_url"`
	StartBlock           uint64        `mapstructure:"start_block"`
	Confirmations        uint64        `mapstructure:"confirmations"`
	BatchSize            uint64        `mapstructure:"batch_size"` // blocks per batch
	PollInterval         time.Duration `mapstructure:"poll_interval"`
	BlockHeadTTL         time.Duration `mapstructure:"block_head_ttl"`
	BlockHeadStaleWindow time.Duration `mapstructure:"block_head_stale_window"`
}

// RegistrarConfig holds the registrar contract identity and its descriptive
// fields, fixed at contract-row creation
type RegistrarConfig struct {
	ContractAddress string `mapstructure:"contract_address"`
	Name            string `mapstructure:"name"`
	Symbol          string `mapstructure:"symbol"`
	TotalSupply     int64  `mapstructure:"total_supply"`
	Standard        string `mapstructure:"standard"`
}

// MetadataConfig holds the external metadata service configuration
type MetadataConfig struct {
	ServiceURL  string        `mapstructure:"service_url"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
}

// NATSConfig holds NATS JetStream publisher configuration. An empty URL
// disables publishing.
type NATSConfig struct {
	URL            string        `mapstructure:"url"`
	StreamName     string        `mapstructure:"stream_name"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	ConnectionName string        `mapstructure:"connection_name"`
}

// ServerConfig holds the operational HTTP server configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // in seconds
	IdleTimeout  int    `mapstructure:"idle_timeout"`  // in seconds
}

// WorkerConfig holds the enrichment worker pool configuration
type WorkerConfig struct {
	WorkerPoolSize  int `mapstructure:"pool_size"`
	WorkerQueueSize int `mapstructure:"queue_size"`
}

// ServiceLimitConfig holds the rate limit for a single outbound service
type ServiceLimitConfig struct {
	RequestsPerSecond int           `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	MaxQueueTime      time.Duration `mapstructure:"max_queue_time"`
}

// RateLimiterConfig holds the Redis-backed outbound request limiter
// configuration. An empty RedisAddr disables limiting entirely.
type RateLimiterConfig struct {
	RedisAddr               string                        `mapstructure:"redis_addr"`
	RedisPassword           string                        `mapstructure:"redis_password"`
	RedisDB                 int                           `mapstructure:"redis_db"`
	RedisKeyPrefix          string                        `mapstructure:"redis_key_prefix"`
	MaxWorkers              int                           `mapstructure:"max_workers"`
	MaxQueueSize            int                           `mapstructure:"max_queue_size"`
	EnableLocalFallback     bool                          `mapstructure:"enable_local_fallback"`
	LocalFallbackMultiplier float64                       `mapstructure:"local_fallback_multiplier"`
	Services                map[string]ServiceLimitConfig `mapstructure:"services"`
}

// MetadataSweeperConfig holds the metadata repair cycle tuning
type MetadataSweeperConfig struct {
	BatchSize  int           `mapstructure:"batch_size"`
	RetryAfter time.Duration `mapstructure:"retry_after"`
	Worker     WorkerConfig  `mapstructure:"worker"`
}

// IndexerConfig holds configuration for the indexer daemon and the backfill tool
type IndexerConfig struct {
	BaseConfig  `mapstructure:",squash"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Ethereum    EthereumConfig    `mapstructure:"ethereum"`
	Registrar   RegistrarConfig   `mapstructure:"registrar"`
	Metadata    MetadataConfig    `mapstructure:"metadata"`
	Worker      WorkerConfig      `mapstructure:"worker"`
	NATS        NATSConfig        `mapstructure:"nats"`
	Server      ServerConfig      `mapstructure:"server"`
	RateLimiter RateLimiterConfig `mapstructure:"ratelimiter"`
}

// SweeperConfig holds configuration for the metadata repair sweeper
type SweeperConfig struct {
	BaseConfig  `mapstructure:",squash"`
	Database    DatabaseConfig        `mapstructure:"database"`
	Registrar   RegistrarConfig       `mapstructure:"registrar"`
	Metadata    MetadataConfig        `mapstructure:"metadata"`
	Sweeper     MetadataSweeperConfig `mapstructure:"sweeper"`
	RateLimiter RateLimiterConfig     `mapstructure:"ratelimiter"`
}

// LoadIndexerConfig loads configuration for the indexer daemon
func LoadIndexerConfig(configFile string, envPath string) (*IndexerConfig, error) {
	v := configureViper("indexer", configFile, envPath)

	// Set defaults
	v.SetDefault("debug", false)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.conn_max_idle_time", "10m")
	v.SetDefault("ethereum.confirmations", 12)
	v.SetDefault("ethereum.batch_size", 500)
	v.SetDefault("ethereum.poll_interval", "12s")
	v.SetDefault("ethereum.block_head_ttl", "12s")
	v.SetDefault("ethereum.block_head_stale_window", "60s")
	v.SetDefault("registrar.contract_address", "0x57f1887a8bf19b14fc0df6fd9b2acc9af147ea85")
	v.SetDefault("registrar.name", "Ethereum Name Service")
	v.SetDefault("registrar.symbol", "ENS")
	v.SetDefault("registrar.total_supply", 0)
	v.SetDefault("registrar.standard", "erc721")
	v.SetDefault("metadata.service_url", "https://metadata.ens.domains/mainnet")
	v.SetDefault("metadata.http_timeout", "30s")
	v.SetDefault("worker.pool_size", 8)
	v.SetDefault("worker.queue_size", 256)
	v.SetDefault("nats.stream_name", "REGISTRAR_EVENTS")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.connection_name", "registrar-indexer")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.idle_timeout", 120)
	setRateLimiterDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Config file not found, use environment variables
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config IndexerConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// LoadSweeperConfig loads configuration for the metadata repair sweeper
func LoadSweeperConfig(configFile string, envPath string) (*SweeperConfig, error) {
	v := configureViper("sweeper", configFile, envPath)

	// Set defaults
	v.SetDefault("debug", false)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.conn_max_idle_time", "10m")
	v.SetDefault("registrar.contract_address", "0x57f1887a8bf19b14fc0df6fd9b2acc9af147ea85")
	v.SetDefault("metadata.service_url", "https://metadata.ens.domains/mainnet")
	v.SetDefault("metadata.http_timeout", "30s")
	v.SetDefault("sweeper.batch_size", 100)
	v.SetDefault("sweeper.retry_after", "1h")
	v.SetDefault("sweeper.worker.pool_size", 4)
	v.SetDefault("sweeper.worker.queue_size", 100)
	setRateLimiterDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Config file not found, use environment variables
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config SweeperConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// setRateLimiterDefaults applies the limiter defaults shared by every binary
// that calls the metadata service
func setRateLimiterDefaults(v *viper.Viper) {
	v.SetDefault("ratelimiter.redis_addr", "")
	v.SetDefault("ratelimiter.redis_key_prefix", "registrar:indexer:limiter:")
	v.SetDefault("ratelimiter.max_workers", 32)
	v.SetDefault("ratelimiter.max_queue_size", 1000)
	v.SetDefault("ratelimiter.enable_local_fallback", true)
	v.SetDefault("ratelimiter.local_fallback_multiplier", 0.5)
	v.SetDefault("ratelimiter.services.metadata.requests_per_second", 10)
	v.SetDefault("ratelimiter.services.metadata.burst", 20)
	v.SetDefault("ratelimiter.services.metadata.max_queue_time", "5m")
}

// configureViper returns a viper instance with the config file and environment variables set
func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.New()

	// Load environment variables
	loadEnv(envPath, service)

	// Set config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// Search for config.yaml in multiple locations:
		// 1. Current directory
		v.AddConfigPath(".")
		// 2. Service-specific directory (e.g., cmd/indexer/)
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", service))
		// 3. Config directory
		v.AddConfigPath("config/")
	}

	// Set environment variables
	v.SetEnvPrefix("INDEXER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind all environment variables
	bindAllEnvVars(v)
	return v
}

// bindAllEnvVars explicitly binds all possible environment variables
// This is required for viper to map env vars to config struct fields when no config file exists
func bindAllEnvVars(v *viper.Viper) {
	keys := []string{
		"debug",
		"sentry_dsn",
		// Database
		"database.host",
		"database.port",
		"database.user",
		"database.password",
		"database.dbname",
		"database.sslmode",
		"database.max_open_conns",
		"database.max_idle_conns",
		"database.conn_max_lifetime",
		"database.conn_max_idle_time",
		// Ethereum
		"ethereum.rpc_url",
		"ethereum.start_block",
		"ethereum.confirmations",
		"ethereum.batch_size",
		"ethereum.poll_interval",
		"ethereum.block_head_ttl",
		"ethereum.block_head_stale_window",
		// Registrar
		"registrar.contract_address",
		"registrar.name",
		"registrar.symbol",
		"registrar.total_supply",
		"registrar.standard",
		// Metadata
		"metadata.service_url",
		"metadata.http_timeout",
		// Worker
		"worker.pool_size",
		"worker.queue_size",
		// NATS
		"nats.url",
		"nats.stream_name",
		"nats.max_reconnects",
		"nats.reconnect_wait",
		"nats.connection_name",
		// Server
		"server.host",
		"server.port",
		"server.read_timeout",
		"server.write_timeout",
		"server.idle_timeout",
		// Rate limiter
		"ratelimiter.redis_addr",
		"ratelimiter.redis_password",
		"ratelimiter.redis_db",
		"ratelimiter.redis_key_prefix",
		"ratelimiter.max_workers",
		"ratelimiter.max_queue_size",
		"ratelimiter.enable_local_fallback",
		"ratelimiter.local_fallback_multiplier",
		"ratelimiter.services.metadata.requests_per_second",
		"ratelimiter.services.metadata.burst",
		"ratelimiter.services.metadata.max_queue_time",
		// Sweeper
		"sweeper.batch_size",
		"sweeper.retry_after",
		"sweeper.worker.pool_size",
		"sweeper.worker.queue_size",
	}

	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// loadEnv loads environment variables from the config directory
func loadEnv(envPath string, service string) {
	// Always try shared base first, then local, then optional per-service local.
	envFiles := []string{".env", ".env.local"}
	if service != "" {
		envFiles = append(envFiles, ".env."+service+".local")
	}

	// Default to config directory
	if envPath == "" {
		envPath = "config/"
	}

	for _, envFile := range envFiles {
		candidate := filepath.Join(envPath, envFile)
		_ = godotenv.Overload(candidate) // Overload lets later files override earlier ones
	}
}

// ChdirRepoRoot changes the current working directory to the repository root
func ChdirRepoRoot() {
	cwd, _ := os.Getwd()
	for range 5 {
		if _, err := os.Stat(filepath.Join(cwd, "config")); err == nil {
			_ = os.Chdir(cwd)
			return
		}
		cwd = filepath.Dir(cwd)
	}
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
