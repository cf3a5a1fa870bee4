// Package config defines the top-level configuration for the floorarb
// engine and provides validation helpers.
package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by FLOORARB_* environment
// variables.
type Config struct {
	Chain       ChainConfig       `toml:"chain"`
	Marketplace MarketplaceConfig `toml:"marketplace"`
	Wallet      WalletConfig      `toml:"wallet"`
	Strategy    StrategyConfig    `toml:"strategy"`
	Engine      EngineConfig      `toml:"engine"`
	Postgres    PostgresConfig    `toml:"postgres"`
	Redis       RedisConfig       `toml:"redis"`
	S3          S3Config          `toml:"s3"`
	Archive     ArchiveConfig     `toml:"archive"`
	Notify      NotifyConfig      `toml:"notify"`
	Mode        string            `toml:"mode"`
	LogLevel    string            `toml:"log_level"`
}

// ChainConfig holds RPC endpoints and on-chain addresses.
type ChainConfig struct {
	WsURL              string `toml:"ws_url"`
	ChainID            int64  `toml:"chain_id"`
	FactoryAddress     string `toml:"factory_address"`
	FactoryDeployBlock uint64 `toml:"factory_deploy_block"`
	ArbContract        string `toml:"arb_contract"`

	// RPCLimit/RPCWindowMs throttle provider calls through the Redis rate
	// limiter. Zero disables throttling.
	RPCLimit    int   `toml:"rpc_limit"`
	RPCWindowMs int64 `toml:"rpc_window_ms"`
}

// MarketplaceConfig holds the marketplace stream and REST API parameters.
type MarketplaceConfig struct {
	WsURL       string   `toml:"ws_url"`
	ApiURL      string   `toml:"api_url"`
	ApiKey      string   `toml:"api_key"`
	Collections []string `toml:"collections"`
}

// WalletConfig holds the submitting wallet credentials. Either PrivateKey
// or EncryptedKeyPath + KeyPassword must be set for run mode.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// StrategyConfig holds the pool-arbitrage strategy parameters.
type StrategyConfig struct {
	ChunkSize            int    `toml:"chunk_size"`
	QuoteParallelism     int    `toml:"quote_parallelism"`
	MaxRetries           int    `toml:"max_retries"`
	RetryBaseDelayMs     int64  `toml:"retry_base_delay_ms"`
	DeadlineOffsetBlocks uint64 `toml:"deadline_offset_blocks"`
	GasCostWei           string `toml:"gas_cost_wei"`
	MinProfitWei         string `toml:"min_profit_wei"`
	GasLimit             uint64 `toml:"gas_limit"`
}

// EngineConfig holds event-queue and dispatch parameters.
type EngineConfig struct {
	QueueSize      int    `toml:"queue_size"`
	OverflowPolicy string `toml:"overflow_policy"` // "block" or "drop_oldest"
	StrategyBuffer int    `toml:"strategy_buffer"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	MaxConns      int    `toml:"max_conns"`
	MinConns      int    `toml:"min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
	Enabled       bool   `toml:"enabled"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	Enabled    bool   `toml:"enabled"`
}

// S3Config holds S3-compatible object storage parameters for archive mode.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig controls listing archival batching.
type ArchiveConfig struct {
	BatchSize     int   `toml:"batch_size"`
	FlushInterval int64 `toml:"flush_interval_s"`
	Prefix        string `toml:"prefix"`
}

// NotifyConfig holds operator notification channels.
type NotifyConfig struct {
	TelegramBotToken string   `toml:"telegram_bot_token"`
	TelegramChatID   string   `toml:"telegram_chat_id"`
	DiscordWebhook   string   `toml:"discord_webhook"`
	Events           []string `toml:"events"`
}

// Defaults returns a Config pre-populated with sane defaults. Load merges
// the TOML file on top of this.
func Defaults() Config {
	return Config{
		Strategy: StrategyConfig{
			ChunkSize:            200,
			QuoteParallelism:     8,
			MaxRetries:           5,
			RetryBaseDelayMs:     200,
			DeadlineOffsetBlocks: 5,
			GasCostWei:           "0",
			MinProfitWei:         "0",
			GasLimit:             600_000,
		},
		Engine: EngineConfig{
			QueueSize:      1024,
			OverflowPolicy: "block",
			StrategyBuffer: 64,
		},
		Archive: ArchiveConfig{
			BatchSize:     500,
			FlushInterval: 60,
			Prefix:        "listings",
		},
		Mode:     "run",
		LogLevel: "info",
	}
}

// RetryBaseDelay returns the configured retry base delay as a Duration.
func (c StrategyConfig) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMs) * time.Millisecond
}

// FlushIntervalDuration returns the archive flush interval as a Duration.
func (c ArchiveConfig) FlushIntervalDuration() time.Duration {
	return time.Duration(c.FlushInterval) * time.Second
}

// Wei parses a decimal wei string, returning zero for the empty string.
func Wei(s string) (*big.Int, error) {
	if strings.TrimSpace(s) == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil, fmt.Errorf("config: invalid wei amount %q", s)
	}
	return v, nil
}

// Validate checks that the configuration is internally consistent for the
// configured mode.
func (c *Config) Validate() error {
	switch c.Mode {
	case "run", "archive":
	default:
		return fmt.Errorf("config: unsupported mode %q", c.Mode)
	}

	if c.Chain.WsURL == "" {
		return fmt.Errorf("config: chain.ws_url is required")
	}
	if c.Chain.ChainID == 0 {
		return fmt.Errorf("config: chain.chain_id is required")
	}
	if c.Marketplace.WsURL == "" {
		return fmt.Errorf("config: marketplace.ws_url is required")
	}

	if c.Mode == "run" {
		if c.Chain.FactoryAddress == "" {
			return fmt.Errorf("config: chain.factory_address is required in run mode")
		}
		if c.Chain.ArbContract == "" {
			return fmt.Errorf("config: chain.arb_contract is required in run mode")
		}
		if c.Marketplace.ApiURL == "" {
			return fmt.Errorf("config: marketplace.api_url is required in run mode")
		}
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			return fmt.Errorf("config: wallet.private_key or wallet.encrypted_key_path is required in run mode")
		}
		if c.Strategy.ChunkSize <= 0 {
			return fmt.Errorf("config: strategy.chunk_size must be positive")
		}
		if _, err := Wei(c.Strategy.GasCostWei); err != nil {
			return err
		}
		if _, err := Wei(c.Strategy.MinProfitWei); err != nil {
			return err
		}
	}

	if c.Mode == "archive" && c.S3.Bucket == "" {
		return fmt.Errorf("config: s3.bucket is required in archive mode")
	}

	switch c.Engine.OverflowPolicy {
	case "block", "drop_oldest":
	default:
		return fmt.Errorf("config: unsupported engine.overflow_policy %q", c.Engine.OverflowPolicy)
	}
	if c.Engine.QueueSize <= 0 {
		return fmt.Errorf("config: engine.queue_size must be positive")
	}

	return nil
}
