package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	// No config file found on the search path means pure defaults
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, 5, cfg.Scanner.HoneypotFailureLimit)
	assert.Equal(t, 1000, cfg.Scanner.MaxScans)
	assert.Equal(t, time.Minute, cfg.Scanner.MinRescanAge)
	assert.Equal(t, 60*time.Second, cfg.Scanner.RescanInterval)
	assert.Equal(t, 1, cfg.Scanner.LiquiditySampleInterval)
	assert.Equal(t, 2*time.Minute, cfg.Scanner.ScanTimeout)
	assert.Equal(t, "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f", cfg.Chain.FactoryAddress)
	assert.Equal(t, 10*time.Second, cfg.Providers.RequestTimeout)
	assert.Equal(t, 3, cfg.Providers.RetryAttempts)
	assert.Equal(t, 2*time.Second, cfg.Providers.RetryDelay)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scanner:
  honeypot_failure_limit: 3
  max_scans: 50
server:
  port: 9999
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Scanner.HoneypotFailureLimit)
	assert.Equal(t, 50, cfg.Scanner.MaxScans)
	assert.Equal(t, 9999, cfg.Server.Port)
	// Untouched sections keep defaults
	assert.Equal(t, "sqlite", cfg.Storage.Type)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  type: mongodb
`), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage type")
}

func TestValidateBounds(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.Scanner.HoneypotFailureLimit = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Scanner.LiquiditySampleInterval = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Scanner.ScanTimeout = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Server.Port = 70000
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Logging.Level = "verbose"
	assert.Error(t, cfg.Validate())
}
