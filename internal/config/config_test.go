package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 0.55, cfg.Router.ConfidenceThreshold)
	assert.Equal(t, 0.1, cfg.Router.Margin)
	assert.Equal(t, 0.05, cfg.Router.RecencyBonus)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 10, cfg.Session.MaxEntries)
	assert.Equal(t, 2, cfg.Session.WriteRetries)
	assert.Equal(t, 10*time.Minute, cfg.Session.FrustrationWindow)
	assert.Equal(t, 2, cfg.Session.FrustrationThreshold)
	assert.Equal(t, float64(10_000_000), cfg.Gate.MonetaryCeiling)
	assert.Equal(t, time.Hour, cfg.Gate.ConfirmationTTL)
}

func TestLoad_YamlFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: ":9090"
redis:
  enabled: true
  addr: "redis-0:6379"
router:
  confidence_threshold: 0.7
gate:
  monetary_ceiling: 5000000
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Listen)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis-0:6379", cfg.Redis.Addr)
	assert.Equal(t, 0.7, cfg.Router.ConfidenceThreshold)
	assert.Equal(t, float64(5_000_000), cfg.Gate.MonetaryCeiling)
	// Untouched keys keep their defaults.
	assert.Equal(t, 0.1, cfg.Router.Margin)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("EVENTAGENT_REDIS_ADDR", "redis-env:6379")
	t.Setenv("EVENTAGENT_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "redis-env:6379", cfg.Redis.Addr)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
