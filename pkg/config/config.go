// Package config loads calsync configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv        string
	LogLevel      string
	UserID        string
	EncryptionKey string

	// Database. When DatabaseURL is empty the CLI falls back to a local
	// SQLite file at SQLitePath.
	DatabaseURL string
	SQLitePath  string

	// Redis (per-user sync and refresh leases)
	RedisURL string

	// RabbitMQ (outbox event publishing)
	RabbitMQURL string

	// Outbox
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxRetries   int

	// OAuth
	OAuthClientID     string
	OAuthClientSecret string
	OAuthAuthURL      string
	OAuthTokenURL     string
	OAuthRedirectURL  string
	OAuthScopes       string

	// Calendar
	CalendarID     string
	SyncLeaseTTL   time.Duration
	ListWindowDays int

	// Availability policy
	WorkStartHour   int
	WorkEndHour     int
	WorkUTCOffset   time.Duration
	WorkZoneLabel   string
	TargetWeekdays  int
	MaxScanDays     int
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:        getEnv("APP_ENV", "development"),
		LogLevel:      getEnv("CALSYNC_LOG_LEVEL", "info"),
		UserID:        getEnv("CALSYNC_USER_ID", "00000000-0000-0000-0000-000000000001"),
		EncryptionKey: getEnv("CALSYNC_ENCRYPTION_KEY", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		SQLitePath:  getEnv("CALSYNC_SQLITE_PATH", defaultSQLitePath()),
		RedisURL:    getEnv("REDIS_URL", ""),
		RabbitMQURL: getEnv("RABBITMQ_URL", ""),

		OutboxPollInterval: getDurationEnv("OUTBOX_POLL_INTERVAL", time.Second),
		OutboxBatchSize:    getIntEnv("OUTBOX_BATCH_SIZE", 100),
		OutboxMaxRetries:   getIntEnv("OUTBOX_MAX_RETRIES", 5),

		OAuthClientID:     getEnv("OAUTH_CLIENT_ID", ""),
		OAuthClientSecret: getEnv("OAUTH_CLIENT_SECRET", ""),
		OAuthAuthURL:      getEnv("OAUTH_AUTH_URL", "https://accounts.google.com/o/oauth2/auth"),
		OAuthTokenURL:     getEnv("OAUTH_TOKEN_URL", "https://oauth2.googleapis.com/token"),
		OAuthRedirectURL:  getEnv("OAUTH_REDIRECT_URL", ""),
		OAuthScopes:       getEnv("OAUTH_SCOPES", "https://www.googleapis.com/auth/calendar"),

		CalendarID:     getEnv("CALENDAR_ID", "primary"),
		SyncLeaseTTL:   getDurationEnv("SYNC_LEASE_TTL", 2*time.Minute),
		ListWindowDays: getIntEnv("SYNC_WINDOW_DAYS", 14),

		WorkStartHour:  getIntEnv("WORK_START_HOUR", 9),
		WorkEndHour:    getIntEnv("WORK_END_HOUR", 22),
		WorkUTCOffset:  getDurationEnv("WORK_UTC_OFFSET", 0),
		WorkZoneLabel:  getEnv("WORK_ZONE_LABEL", "UTC"),
		TargetWeekdays: getIntEnv("AVAILABILITY_DAYS", 5),
		MaxScanDays:    getIntEnv("AVAILABILITY_MAX_SCAN_DAYS", 21),
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func defaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".calsync/calsync.db"
	}
	return home + "/.calsync/calsync.db"
}
