package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	dir := chdirTemp(t)

	yaml := []byte(`
backtest:
  initial_capital: 25000
  commission: 0
yahoo_finance:
  timeout: 5s
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))
	t.Setenv("API_PORT", "9090")
	t.Setenv("BACKTEST_SLIPPAGE", "0.002")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 25000.0, cfg.Backtest.InitialCapital)
	assert.Equal(t, 0.0, cfg.Backtest.Commission)
	assert.Equal(t, 0.002, cfg.Backtest.Slippage)
	assert.Equal(t, 9090, cfg.API.Port)
	assert.Equal(t, 5*time.Second, cfg.YahooFinance.Timeout)
	assert.Equal(t, "1d", cfg.Backtest.Interval)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("BAR_CACHE_CAPACITY=7\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("BAR_CACHE_CAPACITY") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.BarCache.Capacity)
}
