package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port  string
	Debug bool

	// Search provider configuration
	SerpAPIKey    string
	SerpEndpoint  string
	ResultCount   int // default results requested per platform
	SearchTimeout time.Duration
	CacheTTL      time.Duration

	// LLM configuration
	OpenAIAPIKey string
	OpenAIModel  string

	// Storage configuration
	DatabasePath string

	// Report delivery configuration (optional)
	ReportWebhookURL  string
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:  getEnv("PORT", "8080"),
		Debug: getBoolEnv("DEBUG", false),

		SerpAPIKey:    getEnv("SERP_API_KEY", ""),
		SerpEndpoint:  getEnv("SERP_ENDPOINT", "https://serpapi.com/search"),
		ResultCount:   getIntEnv("RESULTS_PER_PLATFORM", 25),
		SearchTimeout: getDurationEnv("SEARCH_TIMEOUT", 30*time.Second),
		CacheTTL:      getDurationEnv("CACHE_TTL", time.Hour),

		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o"),

		DatabasePath: getEnv("DATABASE_PATH", "painscout.db"),

		ReportWebhookURL:  getEnv("REPORT_WEBHOOK_URL", ""),
		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.SerpAPIKey == "" {
		return fmt.Errorf("SERP_API_KEY is required")
	}

	if c.ResultCount <= 0 || c.ResultCount > 100 {
		return fmt.Errorf("RESULTS_PER_PLATFORM must be between 1 and 100")
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
