package config

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies FLOORARB_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known FLOORARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Chain.WsURL, "FLOORARB_CHAIN_WS_URL")
	setInt64(&cfg.Chain.ChainID, "FLOORARB_CHAIN_ID")
	setStr(&cfg.Chain.FactoryAddress, "FLOORARB_CHAIN_FACTORY_ADDRESS")
	setUint64(&cfg.Chain.FactoryDeployBlock, "FLOORARB_CHAIN_FACTORY_DEPLOY_BLOCK")
	setStr(&cfg.Chain.ArbContract, "FLOORARB_CHAIN_ARB_CONTRACT")

	setStr(&cfg.Marketplace.WsURL, "FLOORARB_MARKETPLACE_WS_URL")
	setStr(&cfg.Marketplace.ApiURL, "FLOORARB_MARKETPLACE_API_URL")
	setStr(&cfg.Marketplace.ApiKey, "FLOORARB_MARKETPLACE_API_KEY")

	setStr(&cfg.Wallet.PrivateKey, "FLOORARB_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "FLOORARB_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "FLOORARB_WALLET_KEY_PASSWORD")

	setStr(&cfg.Postgres.DSN, "FLOORARB_POSTGRES_DSN")
	setBool(&cfg.Postgres.Enabled, "FLOORARB_POSTGRES_ENABLED")
	setBool(&cfg.Postgres.RunMigrations, "FLOORARB_POSTGRES_RUN_MIGRATIONS")

	setStr(&cfg.Redis.Addr, "FLOORARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "FLOORARB_REDIS_PASSWORD")
	setBool(&cfg.Redis.Enabled, "FLOORARB_REDIS_ENABLED")

	setStr(&cfg.S3.Endpoint, "FLOORARB_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "FLOORARB_S3_REGION")
	setStr(&cfg.S3.Bucket, "FLOORARB_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "FLOORARB_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "FLOORARB_S3_SECRET_KEY")

	setStr(&cfg.Notify.TelegramBotToken, "FLOORARB_NOTIFY_TELEGRAM_BOT_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "FLOORARB_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhook, "FLOORARB_NOTIFY_DISCORD_WEBHOOK")

	setStr(&cfg.Mode, "FLOORARB_MODE")
	setStr(&cfg.LogLevel, "FLOORARB_LOG_LEVEL")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}
