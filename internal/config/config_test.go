package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(body), 0o644))
	return dir
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, []string{"bitcoin", "ethereum", "binancecoin", "solana"}, cfg.Scraper.CoinIDs)
	assert.Equal(t, "usd", cfg.Scraper.VsCurrency)
	assert.Equal(t, 600, cfg.Scraper.Interval)
	assert.Equal(t, 2, cfg.Simulator.Neighborhood)
	assert.Equal(t, 1.5, cfg.Simulator.TargetRatio)
	assert.Equal(t, "long", cfg.Simulator.Sides)
	assert.True(t, cfg.Simulator.TrendFilter)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := writeConfig(t, `
coingecko:
  apikey: "from-file"
simulator:
  target_ratio: 2.0
  sides: "both"
database:
  driver: "sqlite"
  dsn: "file::memory:"
`)
	t.Setenv("COINGECKO_APIKEY", "from-env")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.CoinGecko.ApiKey)
	assert.Equal(t, 2.0, cfg.Simulator.TargetRatio)
	assert.Equal(t, "both", cfg.Simulator.Sides)
	assert.Equal(t, "file::memory:", cfg.Database.DSN)
	// Untouched keys keep their defaults
	assert.Equal(t, 100, cfg.Simulator.SlowEMA)
}

func TestLoadConfig_Invalid(t *testing.T) {
	testCases := []struct {
		name   string
		body   string
		errMsg string
	}{
		{"BadSides", "simulator:\n  sides: \"sideways\"\n", "simulator.sides"},
		{"BadEMAOrder", "simulator:\n  fast_ema: 60\n", "EMA periods"},
		{"BadDriver", "database:\n  driver: \"oracle\"\n", "database.driver"},
		{"BadInterval", "scraper:\n  interval: 0\n", "scraper.interval"},
		{"BadNeighborhood", "simulator:\n  neighborhood: 0\n", "simulator.neighborhood"},
		{"BadLogFormat", "logger:\n  format: \"xml\"\n", "logger.format"},
		{"BadPort", "server:\n  port: 70000\n", "server.port"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.body))
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	t.Run("Missing file is ignored", func(t *testing.T) {
		assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), ".env")))
	})

	t.Run("Loads values", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte("MARKET_TOOLS_TEST_KEY=secret\n"), 0o600))
		t.Cleanup(func() { os.Unsetenv("MARKET_TOOLS_TEST_KEY") })

		require.NoError(t, LoadEnvFile(path))
		assert.Equal(t, "secret", os.Getenv("MARKET_TOOLS_TEST_KEY"))
	})
}
