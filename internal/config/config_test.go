package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://perps-tradeapi.kanalabs.io", cfg.Kana.BaseURL)
	assert.Equal(t, "1338", cfg.Kana.MarketID)
	assert.Equal(t, "wss://perps-sdk-ws.kanalabs.io/wsOrderBook", cfg.Kana.WebSocket.URL)
	assert.Equal(t, "301", cfg.Kana.WebSocket.MarketID)
	assert.Equal(t, 3*time.Second, cfg.Kana.WebSocket.ReconnectDelay())
	assert.Equal(t, 5, cfg.Kana.WebSocket.MaxReconnectAttempts)
	assert.Equal(t, "https://fullnode.mainnet.aptoslabs.com", cfg.Aptos.NodeURL)
	assert.Equal(t, "perps_vault", cfg.Vault.ModuleName)
	assert.Equal(t, "0x71940f0f7409ef0324c67cca8c9c191682118b19df6b7e2852ffcd23a0d407a1", cfg.Vault.ModuleAddress)
	assert.Equal(t, 5*time.Second, cfg.Monitor.PollInterval())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.GCP.UseSecrets)
	assert.Equal(t, "kana-perps-api-key", cfg.GCP.SecretNames.KanaAPIKey)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("KANA_API_KEY", "env-key")
	t.Setenv("KANA_API_URL", "https://example.test")
	t.Setenv("APTOS_NODE_URL", "https://node.example.test")
	t.Setenv("VAULT_MODULE_ADDRESS", "0xdead")
	t.Setenv("JWT_SIGNING_KEY", "env-signing-key")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Kana.APIKey)
	assert.Equal(t, "https://example.test", cfg.Kana.BaseURL)
	assert.Equal(t, "https://node.example.test", cfg.Aptos.NodeURL)
	assert.Equal(t, "0xdead", cfg.Vault.ModuleAddress)
	assert.Equal(t, "env-signing-key", cfg.Server.JWTSigningKey)
}
