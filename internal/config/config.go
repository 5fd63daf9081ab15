package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/copyvault/trader/pkg/secrets"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Kana    KanaConfig    `mapstructure:"kana"`
	Aptos   AptosConfig   `mapstructure:"aptos"`
	Vault   VaultConfig   `mapstructure:"vault"`
	Monitor MonitorConfig `mapstructure:"monitor"`
	Logging LoggingConfig `mapstructure:"logging"`
	GCP     GCPConfig     `mapstructure:"gcp"`
}

type ServerConfig struct {
	Port          int    `mapstructure:"port"`
	JWTSigningKey string `mapstructure:"jwt_signing_key"`
}

type KanaConfig struct {
	BaseURL           string          `mapstructure:"base_url"`
	APIKey            string          `mapstructure:"api_key"`
	MarketID          string          `mapstructure:"market_id"`
	RequestsPerSecond float64         `mapstructure:"requests_per_second"`
	WebSocket         WebSocketConfig `mapstructure:"websocket"`
}

type WebSocketConfig struct {
	URL                  string `mapstructure:"url"`
	MarketID             string `mapstructure:"market_id"`
	ReconnectDelayMs     int    `mapstructure:"reconnect_delay_ms"`
	MaxReconnectAttempts int    `mapstructure:"max_reconnect_attempts"`
}

type AptosConfig struct {
	NodeURL string `mapstructure:"node_url"`
}

type VaultConfig struct {
	ModuleAddress string `mapstructure:"module_address"`
	ModuleName    string `mapstructure:"module_name"`
}

type MonitorConfig struct {
	UserAddress    string `mapstructure:"user_address"`
	TraderAddress  string `mapstructure:"trader_address"`
	PollIntervalMs int    `mapstructure:"poll_interval_ms"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type GCPConfig struct {
	ProjectID       string              `mapstructure:"project_id"`
	CredentialsFile string              `mapstructure:"credentials_file"`
	UseSecrets      bool                `mapstructure:"use_secrets"`
	SecretNames     secrets.SecretNames `mapstructure:"secret_names"`
}

func (c *WebSocketConfig) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelayMs) * time.Millisecond
}

func (c *MonitorConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/copyvault")
	}

	v.SetEnvPrefix("COPYVAULT")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; use defaults and environment
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&config)

	if config.GCP.UseSecrets && config.GCP.ProjectID != "" {
		ctx := context.Background()
		logger := logrus.New()
		if err := loadSecretsFromGCP(ctx, &config, logger); err != nil {
			return nil, fmt.Errorf("error loading secrets from GCP: %w", err)
		}
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)

	// Kana trade API defaults
	v.SetDefault("kana.base_url", "https://perps-tradeapi.kanalabs.io")
	v.SetDefault("kana.market_id", "1338")
	v.SetDefault("kana.requests_per_second", 10)
	v.SetDefault("kana.websocket.url", "wss://perps-sdk-ws.kanalabs.io/wsOrderBook")
	v.SetDefault("kana.websocket.market_id", "301")
	v.SetDefault("kana.websocket.reconnect_delay_ms", 3000)
	v.SetDefault("kana.websocket.max_reconnect_attempts", 5)

	// Aptos defaults
	v.SetDefault("aptos.node_url", "https://fullnode.mainnet.aptoslabs.com")

	// Vault contract defaults
	v.SetDefault("vault.module_address", "0x71940f0f7409ef0324c67cca8c9c191682118b19df6b7e2852ffcd23a0d407a1")
	v.SetDefault("vault.module_name", "perps_vault")

	// Monitor defaults
	v.SetDefault("monitor.poll_interval_ms", 5000)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// GCP defaults
	v.SetDefault("gcp.use_secrets", false)
	v.SetDefault("gcp.project_id", "")

	secretNames := secrets.DefaultSecretNames()
	v.SetDefault("gcp.secret_names.kana_api_key", secretNames.KanaAPIKey)
	v.SetDefault("gcp.secret_names.jwt_signing_key", secretNames.JWTSigningKey)
}

func overrideFromEnv(config *Config) {
	if apiKey := os.Getenv("KANA_API_KEY"); apiKey != "" {
		config.Kana.APIKey = apiKey
	}
	if baseURL := os.Getenv("KANA_API_URL"); baseURL != "" {
		config.Kana.BaseURL = baseURL
	}
	if nodeURL := os.Getenv("APTOS_NODE_URL"); nodeURL != "" {
		config.Aptos.NodeURL = nodeURL
	}
	if moduleAddress := os.Getenv("VAULT_MODULE_ADDRESS"); moduleAddress != "" {
		config.Vault.ModuleAddress = moduleAddress
	}
	if signingKey := os.Getenv("JWT_SIGNING_KEY"); signingKey != "" {
		config.Server.JWTSigningKey = signingKey
	}

	if projectID := os.Getenv("GCP_PROJECT_ID"); projectID != "" {
		config.GCP.ProjectID = projectID
	}
	if credsFile := os.Getenv("GCP_CREDENTIALS_FILE"); credsFile != "" {
		config.GCP.CredentialsFile = credsFile
	}
	if useSecrets := os.Getenv("GCP_USE_SECRETS"); useSecrets == "true" {
		config.GCP.UseSecrets = true
	}
}

func loadSecretsFromGCP(ctx context.Context, config *Config, logger *logrus.Logger) error {
	secretManager, err := secrets.NewGCPSecretManager(ctx, config.GCP.ProjectID, config.GCP.CredentialsFile, logger)
	if err != nil {
		return fmt.Errorf("failed to create secret manager: %w", err)
	}
	defer secretManager.Close()

	// Only load secrets that the environment did not already provide
	if config.Kana.APIKey == "" {
		config.Kana.APIKey = secretManager.GetSecretWithDefault(ctx,
			config.GCP.SecretNames.KanaAPIKey, "")
	}
	if config.Server.JWTSigningKey == "" {
		config.Server.JWTSigningKey = secretManager.GetSecretWithDefault(ctx,
			config.GCP.SecretNames.JWTSigningKey, "")
	}

	logger.Info("Successfully loaded secrets from GCP Secret Manager")
	return nil
}
