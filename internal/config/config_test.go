package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"sendqueue/internal/constants"
	"sendqueue/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, cfg map[string]interface{}) string {
	t.Helper()
	data, err := json.Marshal(cfg)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

func minimalConfig() map[string]interface{} {
	return map[string]interface{}{
		"backend":  map[string]interface{}{"api_base_url": "http://backend:3000"},
		"database": map[string]interface{}{"path": "/tmp/sendqueue.db"},
	}
}

func TestLoadConfigMinimal(t *testing.T) {
	path := writeConfig(t, minimalConfig())

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://backend:3000", cfg.Backend.APIBaseURL)
	assert.Equal(t, "/tmp/sendqueue.db", cfg.Database.Path)

	// Everything else defaults.
	assert.Equal(t, constants.DefaultMaxRetries, cfg.Queue.MaxRetries)
	assert.Equal(t, constants.DefaultDeliveryTimeoutSec, cfg.Queue.DeliveryTimeoutSec)
	assert.Equal(t, constants.DefaultSyncIntervalMinutes, cfg.Queue.SyncIntervalMin)
	assert.Equal(t, constants.DefaultMaxPayloadBytes, cfg.Queue.MaxPayloadBytes)
	assert.Equal(t, constants.DefaultConnectivityCheckSec, cfg.Connectivity.CheckIntervalSec)
	assert.Equal(t, constants.DefaultConnectivityHealthPath, cfg.Backend.HealthPath)
	assert.Equal(t, constants.DefaultServerPort, cfg.Server.Port)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.json"))
	assert.Error(t, err)
}

func TestLoadConfigInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigMissingBackendURL(t *testing.T) {
	cfg := minimalConfig()
	cfg["backend"] = map[string]interface{}{}
	path := writeConfig(t, cfg)

	_, err := LoadConfig(path)
	assert.ErrorIs(t, err, ErrMissingBackendURL)
}

func TestLoadConfigMissingDBPath(t *testing.T) {
	cfg := minimalConfig()
	cfg["database"] = map[string]interface{}{}
	path := writeConfig(t, cfg)

	_, err := LoadConfig(path)
	assert.ErrorIs(t, err, ErrMissingDBPath)
}

func TestLoadConfigNegativeMaxRetries(t *testing.T) {
	cfg := minimalConfig()
	cfg["queue"] = map[string]interface{}{"maxRetries": -1}
	path := writeConfig(t, cfg)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.IsType(t, models.ConfigError{}, err)
}

func TestLoadConfigExplicitValues(t *testing.T) {
	cfg := minimalConfig()
	cfg["queue"] = map[string]interface{}{
		"maxRetries":         5,
		"deliveryTimeoutSec": 10,
		"syncIntervalMin":    1,
	}
	cfg["log_level"] = "debug"
	path := writeConfig(t, cfg)

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 5, loaded.Queue.MaxRetries)
	assert.Equal(t, 10, loaded.Queue.DeliveryTimeoutSec)
	assert.Equal(t, 1, loaded.Queue.SyncIntervalMin)
	assert.Equal(t, "debug", loaded.LogLevel)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("SENDQUEUE_BACKEND_URL", "http://override:4000")
	t.Setenv("SENDQUEUE_DB_PATH", "/tmp/override.db")
	t.Setenv("SENDQUEUE_LOG_LEVEL", "warn")
	t.Setenv("SENDQUEUE_PORT", "9090")

	path := writeConfig(t, minimalConfig())

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://override:4000", cfg.Backend.APIBaseURL)
	assert.Equal(t, "/tmp/override.db", cfg.Database.Path)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestEnvironmentOverrideInvalidPort(t *testing.T) {
	t.Setenv("SENDQUEUE_PORT", "not-a-port")

	path := writeConfig(t, minimalConfig())

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, constants.DefaultServerPort, cfg.Server.Port)
}
