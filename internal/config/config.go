package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds the environment-specific settings of the bot process.
type Config struct {
	MySQLDSN      string
	RedisAddr     string
	BotToken      string
	WebhookSecret string
	HTTPAddr      string

	// SessionTTL is the eviction window for stored sessions.
	// Zero keeps sessions until the next interaction.
	SessionTTL time.Duration
}

// Load reads configuration from environment variables with defaults
// for everything except the bot credentials.
func Load() (*Config, error) {
	cfg := &Config{
		MySQLDSN:      getEnvOrDefault("MYSQL_DSN", "root:root@tcp(localhost:3306)/warehouse?parseTime=true"),
		RedisAddr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		BotToken:      os.Getenv("BOT_TOKEN"),
		WebhookSecret: os.Getenv("WEBHOOK_SECRET"),
		HTTPAddr:      getEnvOrDefault("HTTP_ADDR", ":8080"),
	}

	ttl := getEnvOrDefault("SESSION_TTL", "0")
	d, err := time.ParseDuration(ttl)
	if err != nil {
		return nil, fmt.Errorf("invalid SESSION_TTL %q: %w", ttl, err)
	}
	cfg.SessionTTL = d

	if cfg.BotToken == "" {
		return nil, fmt.Errorf("BOT_TOKEN is required")
	}
	if cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("WEBHOOK_SECRET is required")
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
