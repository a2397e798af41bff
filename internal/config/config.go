// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/rebalancer/internal/clients/exchangerate"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases, always absolute
	Port     int
	LogLevel string
	DevMode  bool

	// OfflineMode replaces the market data clients with fixed tables
	OfflineMode bool

	ExchangeRateAPIURL string
	RateTTL            time.Duration
	PriceTTL           time.Duration
	PriceMaxRetries    int

	// RateSyncCurrencies are always refreshed, on top of the portfolio's own
	RateSyncCurrencies    []string
	RateSyncSchedule      string
	CacheCleanupSchedule  string
	DatabaseCheckSchedule string

	HistoryLimit int

	// Off-box backups to Cloudflare R2; disabled unless every R2 value is set
	R2AccountID         string
	R2AccessKeyID       string
	R2SecretAccessKey   string
	R2Bucket            string
	BackupSchedule      string
	BackupRetentionDays int
}

// Load reads configuration from environment variables, after applying a .env
// file when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("REBALANCER_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:               absDataDir,
		Port:                  getEnvAsInt("PORT", 8080),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		DevMode:               getEnvAsBool("DEV_MODE", false),
		OfflineMode:           getEnvAsBool("OFFLINE_MODE", false),
		ExchangeRateAPIURL:    getEnv("EXCHANGE_RATE_API_URL", exchangerate.DefaultBaseURL),
		RateTTL:               getEnvAsDuration("RATE_TTL", time.Hour),
		PriceTTL:              getEnvAsDuration("PRICE_TTL", 10*time.Minute),
		PriceMaxRetries:       getEnvAsInt("PRICE_MAX_RETRIES", 3),
		RateSyncCurrencies:    getEnvAsList("RATE_SYNC_CURRENCIES"),
		RateSyncSchedule:      getEnv("RATE_SYNC_SCHEDULE", "0 */30 * * * *"),
		CacheCleanupSchedule:  getEnv("CACHE_CLEANUP_SCHEDULE", "0 0 3 * * *"),
		DatabaseCheckSchedule: getEnv("DATABASE_CHECK_SCHEDULE", "0 0 * * * *"),
		HistoryLimit:          getEnvAsInt("HISTORY_LIMIT", 50),
		R2AccountID:           getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:         getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey:     getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2Bucket:              getEnv("R2_BUCKET", ""),
		BackupSchedule:        getEnv("BACKUP_SCHEDULE", "0 0 4 * * *"),
		BackupRetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var scheduleParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate checks that every value is usable
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.PriceMaxRetries < 1 {
		return fmt.Errorf("PRICE_MAX_RETRIES must be at least 1, got %d", c.PriceMaxRetries)
	}
	if c.RateTTL <= 0 || c.PriceTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	if c.BackupRetentionDays < 0 {
		return fmt.Errorf("BACKUP_RETENTION_DAYS must not be negative, got %d", c.BackupRetentionDays)
	}
	for _, currency := range c.RateSyncCurrencies {
		if len(currency) != 3 {
			return fmt.Errorf("invalid currency %q in RATE_SYNC_CURRENCIES", currency)
		}
	}
	for name, schedule := range map[string]string{
		"RATE_SYNC_SCHEDULE":      c.RateSyncSchedule,
		"CACHE_CLEANUP_SCHEDULE":  c.CacheCleanupSchedule,
		"DATABASE_CHECK_SCHEDULE": c.DatabaseCheckSchedule,
		"BACKUP_SCHEDULE":         c.BackupSchedule,
	} {
		if _, err := scheduleParser.Parse(schedule); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, schedule, err)
		}
	}
	return nil
}

// R2Enabled reports whether off-box backups are configured
func (c *Config) R2Enabled() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" && c.R2Bucket != ""
}

// DatabasePath returns the file path of a named database inside DataDir
func (c *Config) DatabasePath(name string) string {
	return filepath.Join(c.DataDir, name+".db")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
