package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("REBALANCER_DATA_DIR", filepath.Join(dir, "data"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "data"), cfg.DataDir)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.OfflineMode)
	assert.Equal(t, time.Hour, cfg.RateTTL)
	assert.Equal(t, 3, cfg.PriceMaxRetries)
	assert.Empty(t, cfg.RateSyncCurrencies)
	assert.DirExists(t, cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, "data", "portfolio.db"), cfg.DatabasePath("portfolio"))
}

func TestLoadFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("REBALANCER_DATA_DIR", dir)
	t.Setenv("PORT", "9090")
	t.Setenv("OFFLINE_MODE", "true")
	t.Setenv("RATE_SYNC_CURRENCIES", " usd, cad ,,gbp")
	t.Setenv("PRICE_TTL", "90s")
	t.Setenv("RATE_SYNC_SCHEDULE", "@every 5m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.OfflineMode)
	assert.Equal(t, []string{"USD", "CAD", "GBP"}, cfg.RateSyncCurrencies)
	assert.Equal(t, 90*time.Second, cfg.PriceTTL)
	assert.Equal(t, "@every 5m", cfg.RateSyncSchedule)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port out of range", "PORT", "70000"},
		{"bad schedule", "RATE_SYNC_SCHEDULE", "whenever"},
		{"bad currency", "RATE_SYNC_CURRENCIES", "USD,EURO"},
		{"no retries", "PRICE_MAX_RETRIES", "0"},
		{"bad backup schedule", "BACKUP_SCHEDULE", "nightly-ish"},
		{"negative retention", "BACKUP_RETENTION_DAYS", "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			t.Setenv("REBALANCER_DATA_DIR", dir)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestR2Enabled(t *testing.T) {
	cfg := &Config{R2AccountID: "acct", R2AccessKeyID: "key", R2SecretAccessKey: "secret"}
	assert.False(t, cfg.R2Enabled())

	cfg.R2Bucket = "backups"
	assert.True(t, cfg.R2Enabled())
}
