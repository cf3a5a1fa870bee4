package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const validRunConfig = `
mode = "run"
log_level = "debug"

[chain]
ws_url = "wss://rpc.example.com"
chain_id = 1
factory_address = "0xb16c1342E617A5B6E4b631EB114483FDB289c0A4"
factory_deploy_block = 14650730
arb_contract = "0x1111111111111111111111111111111111111111"

[marketplace]
ws_url = "wss://stream.example.com"
api_url = "https://api.example.com"
api_key = "test-key"
collections = ["0x2222222222222222222222222222222222222222"]

[wallet]
private_key = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

[strategy]
chunk_size = 100
min_profit_wei = "1000000000000000"
`

func TestLoadMergesFileOverDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validRunConfig))
	require.NoError(t, err)

	require.Equal(t, "run", cfg.Mode)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, int64(1), cfg.Chain.ChainID)
	require.Equal(t, 100, cfg.Strategy.ChunkSize)

	// Untouched fields keep their defaults.
	require.Equal(t, 8, cfg.Strategy.QuoteParallelism)
	require.Equal(t, 1024, cfg.Engine.QueueSize)
	require.Equal(t, "block", cfg.Engine.OverflowPolicy)

	require.NoError(t, cfg.Validate())
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("FLOORARB_CHAIN_WS_URL", "wss://override.example.com")
	t.Setenv("FLOORARB_WALLET_PRIVATE_KEY", "deadbeef")
	t.Setenv("FLOORARB_MODE", "archive")

	cfg, err := Load(writeConfig(t, validRunConfig))
	require.NoError(t, err)
	require.Equal(t, "wss://override.example.com", cfg.Chain.WsURL)
	require.Equal(t, "deadbeef", cfg.Wallet.PrivateKey)
	require.Equal(t, "archive", cfg.Mode)
}

func TestValidateRejectsUnknownMode(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "simulate"
	require.Error(t, cfg.Validate())
}

func TestValidateRunModeRequiresWallet(t *testing.T) {
	cfg, err := Load(writeConfig(t, validRunConfig))
	require.NoError(t, err)
	cfg.Wallet = WalletConfig{}
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsBadOverflowPolicy(t *testing.T) {
	cfg, err := Load(writeConfig(t, validRunConfig))
	require.NoError(t, err)
	cfg.Engine.OverflowPolicy = "drop_newest"
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsMalformedWeiAmounts(t *testing.T) {
	cfg, err := Load(writeConfig(t, validRunConfig))
	require.NoError(t, err)
	cfg.Strategy.MinProfitWei = "1.5e18"
	require.Error(t, cfg.Validate())
}

func TestValidateArchiveModeRequiresBucket(t *testing.T) {
	cfg, err := Load(writeConfig(t, validRunConfig))
	require.NoError(t, err)
	cfg.Mode = "archive"
	cfg.S3.Bucket = ""
	require.Error(t, cfg.Validate())

	cfg.S3.Bucket = "floorarb-archive"
	require.NoError(t, cfg.Validate())
}

func TestWei(t *testing.T) {
	v, err := Wei("")
	require.NoError(t, err)
	require.Zero(t, v.Sign())

	v, err = Wei("1000000000000000000")
	require.NoError(t, err)
	require.Equal(t, "1000000000000000000", v.String())

	_, err = Wei("not-a-number")
	require.Error(t, err)
}
