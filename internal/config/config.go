// Package config provides configuration management for the application.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the application configuration.
type Config struct {
	Server    ServerConfig   `mapstructure:"server"`
	Database  DatabaseConfig `mapstructure:"database"`
	Log       LogConfig      `mapstructure:"log"`
	GitHub    GitHubConfig   `mapstructure:"github"`
	LLM       LLMConfig      `mapstructure:"llm"`
	Review    ReviewConfig   `mapstructure:"review"`
	Webhook   WebhookConfig  `mapstructure:"webhook"`
	Telegram  TelegramConfig `mapstructure:"telegram"`
	PublicURL string         `mapstructure:"public_url"` // externally reachable base URL, used for hook installation
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path                  string `mapstructure:"path"`
	DeliveryRetentionDays int    `mapstructure:"delivery_retention_days"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
	JSON  bool   `mapstructure:"json"`
}

// GitHubConfig holds GitHub API configuration.
type GitHubConfig struct {
	APIURL string `mapstructure:"api_url"`
}

// LLMConfig selects and configures the model backend.
type LLMConfig struct {
	Provider string `mapstructure:"provider"` // gemini or openai
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
}

// ReviewConfig tunes the review pipeline.
type ReviewConfig struct {
	BatchThreshold int  `mapstructure:"batch_threshold"`
	RedactSecrets  bool `mapstructure:"redact_secrets"`
}

// WebhookConfig holds inbound webhook limits.
type WebhookConfig struct {
	RateLimitPerMin   int `mapstructure:"rate_limit_per_min"`    // verified deliveries per repository; 0 disables
	IPRateLimitPerMin int `mapstructure:"ip_rate_limit_per_min"` // any request per client address; 0 disables
}

// TelegramConfig holds the optional operator notification settings.
type TelegramConfig struct {
	Token         string `mapstructure:"token"`
	ChatID        int64  `mapstructure:"chat_id"`
	NotifySuccess bool   `mapstructure:"notify_success"`
}

// Enabled reports whether run notifications should be sent.
func (t TelegramConfig) Enabled() bool {
	return t.Token != "" && t.ChatID != 0
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3001)
	v.SetDefault("database.path", "./data/pullpal.db")
	v.SetDefault("database.delivery_retention_days", 30)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("github.api_url", "https://api.github.com/")
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.model", "gemini-2.0-flash-001")
	v.SetDefault("review.batch_threshold", 20)
	v.SetDefault("review.redact_secrets", true)
	v.SetDefault("webhook.rate_limit_per_min", 120)
	v.SetDefault("webhook.ip_rate_limit_per_min", 600)
	v.SetDefault("telegram.notify_success", false)
	// Registered so AutomaticEnv can resolve keys that have no default.
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.chat_id", 0)
	v.SetDefault("public_url", "")
	v.SetDefault("log.file", "")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("PULLPAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the fields the review server cannot run without.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("unsupported llm provider %q", c.LLM.Provider)
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm api key is required")
	}
	if c.Review.BatchThreshold < 1 {
		return fmt.Errorf("review batch threshold must be positive, got %d", c.Review.BatchThreshold)
	}
	return nil
}

// ServerAddress returns the full server address.
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// WebhookURL returns the public URL GitHub should deliver events to.
func (c *Config) WebhookURL() string {
	if c.PublicURL == "" {
		return ""
	}
	return strings.TrimRight(c.PublicURL, "/") + "/webhooks/github"
}
