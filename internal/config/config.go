package config

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/tradepulse/riskcore/pkg/secrets"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Backend BackendConfig `mapstructure:"backend"`
	Feed    FeedConfig    `mapstructure:"feed"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Logging LoggingConfig `mapstructure:"logging"`
	GCP     GCPConfig     `mapstructure:"gcp"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type BackendConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	AccountID string `mapstructure:"account_id"`

	// HMAC authentication
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`

	// JWT authentication
	AuthType      string `mapstructure:"auth_type"` // "hmac" or "jwt"
	APIKeyName    string `mapstructure:"api_key_name"`
	PrivateKeyPEM string `mapstructure:"private_key_pem"`

	RequestsPerSec float64 `mapstructure:"requests_per_sec"`
}

type FeedConfig struct {
	URL             string `mapstructure:"url"`
	DepthLevels     int    `mapstructure:"depth_levels"`
	StalenessWindow int    `mapstructure:"staleness_window"` // seconds
}

type EngineConfig struct {
	PollInterval int `mapstructure:"poll_interval"` // seconds
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type GCPConfig struct {
	ProjectID   string              `mapstructure:"project_id"`
	UseSecrets  bool                `mapstructure:"use_secrets"`
	SecretNames secrets.SecretNames `mapstructure:"secret_names"`
}

func Load(configPath string) (*Config, error) {
	// A local .env is convenient in development; a missing one is fine.
	_ = godotenv.Load()

	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/riskcore")
	}

	v.SetEnvPrefix("RISKCORE")
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

	// Backend defaults
	v.SetDefault("backend.base_url", "http://localhost:9000")
	v.SetDefault("backend.auth_type", "hmac")
	v.SetDefault("backend.requests_per_sec", 5.0)

	// Feed defaults
	v.SetDefault("feed.url", "wss://stream.example.com/depth")
	v.SetDefault("feed.depth_levels", 10)
	v.SetDefault("feed.staleness_window", 10)

	// Engine defaults
	v.SetDefault("engine.poll_interval", 5)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// GCP defaults
	v.SetDefault("gcp.use_secrets", false)
	v.SetDefault("gcp.project_id", "")

	// Secret name defaults
	secretNames := secrets.DefaultSecretNames()
	v.SetDefault("gcp.secret_names.backend_api_key", secretNames.BackendAPIKey)
	v.SetDefault("gcp.secret_names.backend_api_secret", secretNames.BackendAPISecret)
	v.SetDefault("gcp.secret_names.backend_api_key_name", secretNames.BackendAPIKeyName)
	v.SetDefault("gcp.secret_names.backend_private_key", secretNames.BackendPrivateKey)
}

func overrideFromEnv(config *Config) {
	if baseURL := os.Getenv("BACKEND_BASE_URL"); baseURL != "" {
		config.Backend.BaseURL = baseURL
	}
	if accountID := os.Getenv("BACKEND_ACCOUNT_ID"); accountID != "" {
		config.Backend.AccountID = accountID
	}
	if apiKey := os.Getenv("BACKEND_API_KEY"); apiKey != "" {
		config.Backend.APIKey = apiKey
	}
	if apiSecret := os.Getenv("BACKEND_API_SECRET"); apiSecret != "" {
		config.Backend.APISecret = apiSecret
	}
	if authType := os.Getenv("BACKEND_AUTH_TYPE"); authType != "" {
		config.Backend.AuthType = authType
	}
	if apiKeyName := os.Getenv("BACKEND_API_KEY_NAME"); apiKeyName != "" {
		config.Backend.APIKeyName = apiKeyName
	}
	if privateKey := os.Getenv("BACKEND_PRIVATE_KEY"); privateKey != "" {
		config.Backend.PrivateKeyPEM = privateKey
	}

	if feedURL := os.Getenv("FEED_URL"); feedURL != "" {
		config.Feed.URL = feedURL
	}

	if projectID := os.Getenv("GCP_PROJECT_ID"); projectID != "" {
		config.GCP.ProjectID = projectID
	}
	if useSecrets := os.Getenv("GCP_USE_SECRETS"); useSecrets == "true" {
		config.GCP.UseSecrets = true
	}
}

func loadSecretsFromGCP(ctx context.Context, config *Config, logger *logrus.Logger) error {
	secretManager, err := secrets.NewGCPSecretManager(ctx, config.GCP.ProjectID, logger)
	if err != nil {
		return fmt.Errorf("failed to create secret manager: %w", err)
	}
	defer secretManager.Close()

	// Only load secrets that aren't already set
	if config.Backend.APIKey == "" {
		config.Backend.APIKey = secretManager.GetSecretWithDefault(ctx,
			config.GCP.SecretNames.BackendAPIKey, "")
	}
	if config.Backend.APISecret == "" {
		config.Backend.APISecret = secretManager.GetSecretWithDefault(ctx,
			config.GCP.SecretNames.BackendAPISecret, "")
	}
	if config.Backend.APIKeyName == "" {
		config.Backend.APIKeyName = secretManager.GetSecretWithDefault(ctx,
			config.GCP.SecretNames.BackendAPIKeyName, "")
	}
	if config.Backend.PrivateKeyPEM == "" {
		config.Backend.PrivateKeyPEM = secretManager.GetSecretWithDefault(ctx,
			config.GCP.SecretNames.BackendPrivateKey, "")
	}

	logger.Info("Successfully loaded secrets from GCP Secret Manager")
	return nil
}
