package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tradepulse/riskcore/api"
	"github.com/tradepulse/riskcore/internal/config"
	"github.com/tradepulse/riskcore/pkg/alert"
	"github.com/tradepulse/riskcore/pkg/backend"
	"github.com/tradepulse/riskcore/pkg/dispatch"
	"github.com/tradepulse/riskcore/pkg/feed"
	"github.com/tradepulse/riskcore/pkg/monitor"
)

var (
	cfgFile string
	logger  *logrus.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "riskcore",
		Short: "Futures margin and liquidation risk engine",
		Long:  `Watches a leveraged futures account against live order-book data, derives margin and liquidation risk metrics, and raises tiered alerts`,
		Run:   runEngine,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runEngine(cmd *cobra.Command, args []string) {
	// Initialize logger
	logger = logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Load configuration
	cfg, err := config.Load(cfgFile)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	// Set log level
	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		logger.WithError(err).Error("Invalid log level, using INFO")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Backend.AccountID == "" {
		logger.Fatal("backend.account_id is required")
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Authenticate against the execution backend
	auth, err := buildAuthenticator(cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to configure backend authentication")
	}

	client := backend.NewHTTPClient(cfg.Backend.BaseURL, auth, cfg.Backend.RequestsPerSec, logger)

	// Depth feed workers, one per symbol with open positions
	feeds := feed.NewManager(ctx, cfg.Feed.URL, cfg.Feed.DepthLevels,
		time.Duration(cfg.Feed.StalenessWindow)*time.Second, logger)

	// Evaluation pipeline
	registry := prometheus.NewRegistry()
	metrics := monitor.NewMetrics(registry)
	engine := alert.NewEngine(logger)

	mon := monitor.New(cfg.Backend.AccountID, client, feeds, engine, metrics,
		time.Duration(cfg.Engine.PollInterval)*time.Second, logger)
	mon.Start(ctx)

	dispatcher := dispatch.NewDispatcher(client, mon, logger)

	// Start API server
	apiServer := api.NewServer(mon, dispatcher, registry, logger, fmt.Sprintf("%d", cfg.Server.Port))
	go func() {
		if err := apiServer.Start(); err != nil {
			logger.WithError(err).Fatal("Failed to start API server")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Risk engine is running. Press Ctrl+C to stop.")

	<-sigChan
	logger.Info("Received shutdown signal")

	// Graceful shutdown
	mon.Stop()
	feeds.Close()
	cancel()

	logger.Info("Risk engine stopped")
}

func buildAuthenticator(cfg *config.Config) (backend.Authenticator, error) {
	switch backend.AuthType(cfg.Backend.AuthType) {
	case backend.AuthTypeJWT:
		return backend.NewJWTAuthenticator(cfg.Backend.APIKeyName, cfg.Backend.PrivateKeyPEM)
	case backend.AuthTypeHMAC, "":
		return backend.NewHMACAuthenticator(cfg.Backend.APIKey, cfg.Backend.APISecret), nil
	default:
		return nil, fmt.Errorf("unknown auth type %q", cfg.Backend.AuthType)
	}
}
