package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aman-zulfiqar/escrow-solver/internal/ledger"
	"github.com/aman-zulfiqar/escrow-solver/internal/models"
)

// Lease backends
const (
	LeaseMemory = "memory"
	LeaseRedis  = "redis"
)

type Config struct {
	// Ledger and transaction builder
	LedgerRPCURL    string
	TxBuilderURL    string
	TxBuilderAPIKey string
	Network         ledger.Network

	// Escrow contract
	EscrowScriptHash string
	EscrowAddress    string

	// Keys and addresses
	SolverAddress    string
	KeeperAddress    string
	KeeperSigningKey string

	// Routing
	BridgeAsset       models.AssetClass
	FeeDenominator    uint64
	MaxPriceImpactBps int
	PoolCacheTTL      time.Duration

	// Job schedule
	SolverInterval        time.Duration
	ReclaimInterval       time.Duration
	IntervalOrderInterval time.Duration
	IntervalBatchLimit    int

	// Confirmation
	ConfirmTimeout      time.Duration
	ConfirmPollInterval time.Duration

	// Leases
	LeaseBackend string
	LeaseTTL     time.Duration

	// Redis settings
	RedisAddr string

	// ClickHouse settings
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// Local state
	DataDir string

	// Ops server
	APIAddr string
	APIKey  string
	DevMode bool

	// HTTP client settings
	HTTPTimeout  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	LogLevel string
}

func Load() (*Config, error) {
	bridge, err := models.ParseAssetClass(getEnv("BRIDGE_ASSET", "lovelace"))
	if err != nil {
		return nil, fmt.Errorf("BRIDGE_ASSET: %w", err)
	}

	cfg := &Config{
		LedgerRPCURL:    getEnv("LEDGER_RPC_URL", "http://localhost:1337"),
		TxBuilderURL:    getEnv("TX_BUILDER_URL", "http://localhost:3000"),
		TxBuilderAPIKey: getEnv("TX_BUILDER_API_KEY", ""),
		Network:         ledger.Network(strings.ToLower(getEnv("NETWORK", string(ledger.Testnet)))),

		EscrowScriptHash: getEnv("ESCROW_SCRIPT_HASH", ""),
		EscrowAddress:    getEnv("ESCROW_ADDRESS", ""),

		SolverAddress:    getEnv("SOLVER_ADDRESS", ""),
		KeeperAddress:    getEnv("KEEPER_ADDRESS", ""),
		KeeperSigningKey: getEnv("KEEPER_SIGNING_KEY", ""),

		BridgeAsset:       bridge,
		FeeDenominator:    getUint64Env("FEE_DENOMINATOR", 1000),
		MaxPriceImpactBps: getIntEnv("MAX_PRICE_IMPACT_BPS", 0),
		PoolCacheTTL:      getDurationEnv("POOL_CACHE_TTL", 5*time.Second),

		SolverInterval:        getDurationEnv("SOLVER_INTERVAL", 20*time.Second),
		ReclaimInterval:       getDurationEnv("RECLAIM_INTERVAL", 60*time.Second),
		IntervalOrderInterval: getDurationEnv("INTERVAL_ORDER_INTERVAL", 30*time.Second),
		IntervalBatchLimit:    getIntEnv("INTERVAL_BATCH_LIMIT", 10),

		ConfirmTimeout:      getDurationEnv("CONFIRM_TIMEOUT", 120*time.Second),
		ConfirmPollInterval: getDurationEnv("CONFIRM_POLL_INTERVAL", 5*time.Second),

		LeaseBackend: strings.ToLower(getEnv("LEASE_BACKEND", LeaseMemory)),
		LeaseTTL:     getDurationEnv("LEASE_TTL", 10*time.Minute),

		RedisAddr: getEnv("REDIS_ADDR", ""),

		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "escrow"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		DataDir: getEnv("DATA_DIR", "./data"),

		APIAddr: getEnv("API_ADDR", ":8080"),
		APIKey:  getEnv("API_KEY", ""),
		DevMode: strings.EqualFold(getEnv("DEV_MODE", "false"), "true"),

		HTTPTimeout:  getDurationEnv("HTTP_TIMEOUT", 30*time.Second),
		MaxRetries:   getIntEnv("MAX_RETRIES", 5),
		RetryBackoff: getDurationEnv("RETRY_BACKOFF", 2*time.Second),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if cfg.EscrowAddress == "" && cfg.EscrowScriptHash != "" {
		addr, err := ledger.ScriptAddress(cfg.EscrowScriptHash, cfg.Network)
		if err != nil {
			return nil, fmt.Errorf("ESCROW_SCRIPT_HASH: %w", err)
		}
		cfg.EscrowAddress = addr
	}

	return cfg, cfg.Validate()
}

// Validate checks the settings every run needs
func (c *Config) Validate() error {
	var problems []string

	if c.LedgerRPCURL == "" {
		problems = append(problems, "LEDGER_RPC_URL is required")
	}
	if c.EscrowAddress == "" {
		problems = append(problems, "ESCROW_ADDRESS or ESCROW_SCRIPT_HASH is required")
	}
	if c.Network != ledger.Mainnet && c.Network != ledger.Testnet {
		problems = append(problems, fmt.Sprintf("NETWORK must be mainnet or testnet, got %q", c.Network))
	}
	if c.MaxPriceImpactBps < 0 || c.MaxPriceImpactBps > 10_000 {
		problems = append(problems, "MAX_PRICE_IMPACT_BPS must be between 0 and 10000")
	}
	if c.FeeDenominator == 0 {
		problems = append(problems, "FEE_DENOMINATOR must be positive")
	}
	if c.SolverInterval <= 0 || c.ReclaimInterval <= 0 || c.IntervalOrderInterval <= 0 {
		problems = append(problems, "job intervals must be positive")
	}
	if c.ConfirmTimeout <= 0 || c.ConfirmPollInterval <= 0 {
		problems = append(problems, "confirmation timeout and poll interval must be positive")
	}
	switch c.LeaseBackend {
	case LeaseMemory:
	case LeaseRedis:
		if c.RedisAddr == "" {
			problems = append(problems, "REDIS_ADDR is required for the redis lease backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("LEASE_BACKEND must be memory or redis, got %q", c.LeaseBackend))
	}
	if c.KeeperSigningKey != "" && c.TxBuilderURL == "" {
		problems = append(problems, "TX_BUILDER_URL is required when a signing key is set")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// CanSign reports whether write paths are enabled
func (c *Config) CanSign() bool {
	return c.KeeperSigningKey != ""
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getUint64Env(key string, defaultVal uint64) uint64 {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.ParseUint(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
