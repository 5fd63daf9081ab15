package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/copyvault/trader/api"
	"github.com/copyvault/trader/internal/config"
	"github.com/copyvault/trader/pkg/aptos"
	"github.com/copyvault/trader/pkg/kana"
	"github.com/copyvault/trader/pkg/monitor"
	"github.com/copyvault/trader/pkg/vault"
)

var (
	cfgFile string
	logger  *logrus.Logger
)

func main() {
	// A missing .env file is fine; config has defaults for everything
	// except credentials.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "copyvault",
		Short: "Copy-trading vault monitor",
		Long:  `Monitors a copy-trading vault: streams the perps order book, polls positions and orders, and reads on-chain vault state`,
		Run:   runMonitor,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.AddCommand(newTokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func newTokenCmd() *cobra.Command {
	var subject string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a dashboard API token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if cfg.Server.JWTSigningKey == "" {
				return fmt.Errorf("no JWT signing key configured")
			}

			auth := api.NewAuthenticator(cfg.Server.JWTSigningKey)
			token, err := auth.IssueToken(subject, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "dashboard", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func runMonitor(cmd *cobra.Command, args []string) {
	logger = logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load(cfgFile)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		logger.WithError(err).Error("Invalid log level, using INFO")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	restClient := kana.NewRestClient(kana.Config{
		BaseURL:           cfg.Kana.BaseURL,
		APIKey:            cfg.Kana.APIKey,
		RequestsPerSecond: cfg.Kana.RequestsPerSecond,
	}, logger)

	streamClient := kana.NewOrderBookClient(kana.OrderBookConfig{
		URL:                  cfg.Kana.WebSocket.URL,
		MarketID:             cfg.Kana.WebSocket.MarketID,
		ReconnectDelay:       cfg.Kana.WebSocket.ReconnectDelay(),
		MaxReconnectAttempts: cfg.Kana.WebSocket.MaxReconnectAttempts,
	}, logger)

	nodeClient := aptos.NewClient(cfg.Aptos.NodeURL, logger)

	// Read-only deployment: no wallet is wired in, so mutating vault calls
	// return ErrNoSubmitter.
	vaultClient := vault.NewClient(vault.Config{
		ModuleAddress: cfg.Vault.ModuleAddress,
		ModuleName:    cfg.Vault.ModuleName,
	}, nodeClient, nil, logger)

	mon := monitor.New(monitor.Config{
		UserAddress:   cfg.Monitor.UserAddress,
		TraderAddress: cfg.Monitor.TraderAddress,
		MarketID:      cfg.Kana.MarketID,
		PollInterval:  cfg.Monitor.PollInterval(),
	}, restClient, streamClient, vaultClient, logger)

	if err := mon.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start monitor")
	}

	auth := api.NewAuthenticator(cfg.Server.JWTSigningKey)
	apiServer := api.NewServer(mon, auth, logger, fmt.Sprintf("%d", cfg.Server.Port))
	go func() {
		if err := apiServer.Start(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start API server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Copy-trading monitor is running. Press Ctrl+C to stop.")

	<-sigChan
	logger.Info("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("API server shutdown failed")
	}

	mon.Stop()
	cancel()

	logger.Info("Copy-trading monitor stopped")
}
