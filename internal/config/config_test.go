package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/boddenberg/finance-tracker-bfa/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := config.Load()

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "IDR", cfg.LedgerCurrency)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 2*time.Minute, cfg.ResolveCacheTTL)
	assert.False(t, cfg.TracingEnabled)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LEDGER_API_URL", "https://ledger.example.com/api")
	t.Setenv("LEDGER_CURRENCY", "USD")
	t.Setenv("RESOLVE_CACHE_TTL", "30s")
	t.Setenv("TRACING_ENABLED", "true")
	t.Setenv("MAX_RETRIES", "not-a-number")

	cfg := config.Load()

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "https://ledger.example.com/api", cfg.LedgerAPIURL)
	assert.Equal(t, "USD", cfg.LedgerCurrency)
	assert.Equal(t, 30*time.Second, cfg.ResolveCacheTTL)
	assert.True(t, cfg.TracingEnabled)
	assert.Equal(t, 3, cfg.MaxRetries, "invalid values fall back to the default")
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LEDGER_API_TOKEN=from-file\nLOG_LEVEL=\"debug\"\n"), 0o600))

	t.Setenv("LEDGER_API_TOKEN", "from-env")
	t.Setenv("LOG_LEVEL", "")
	os.Unsetenv("LOG_LEVEL")

	require.NoError(t, config.LoadDotEnv(path))
	t.Cleanup(func() { os.Unsetenv("LOG_LEVEL") })

	cfg := config.Load()
	assert.Equal(t, "from-env", cfg.LedgerAPIToken)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	assert.Error(t, config.LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
}
