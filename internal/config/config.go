package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"sendqueue/internal/constants"
	"sendqueue/internal/models"
	"sendqueue/internal/security"
)

var (
	ErrMissingBackendURL = models.ConfigError{Message: "missing chat backend API URL"}
	ErrMissingDBPath     = models.ConfigError{Message: "missing database path"}
)

func LoadConfig(path string) (*models.Config, error) {
	// Validate config file path to prevent directory traversal
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated by security.ValidateFilePath above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(c *models.Config) error {
	if c.Backend.APIBaseURL == "" {
		return ErrMissingBackendURL
	}
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}

	if c.Queue.MaxRetries < 0 {
		return models.ConfigError{Message: "queue maxRetries must not be negative"}
	}
	if c.Queue.MaxRetries == 0 {
		c.Queue.MaxRetries = constants.DefaultMaxRetries
	}
	if c.Queue.DeliveryTimeoutSec <= 0 {
		c.Queue.DeliveryTimeoutSec = constants.DefaultDeliveryTimeoutSec
	}
	if c.Queue.SyncIntervalMin <= 0 {
		c.Queue.SyncIntervalMin = constants.DefaultSyncIntervalMinutes
	}
	if c.Queue.MaxPayloadBytes <= 0 {
		c.Queue.MaxPayloadBytes = constants.DefaultMaxPayloadBytes
	}

	if c.Connectivity.CheckIntervalSec <= 0 {
		c.Connectivity.CheckIntervalSec = constants.DefaultConnectivityCheckSec
	}
	if c.Connectivity.ProbeTimeoutSec <= 0 {
		c.Connectivity.ProbeTimeoutSec = constants.DefaultConnectivityTimeoutSec
	}

	if c.Backend.HealthPath == "" {
		c.Backend.HealthPath = constants.DefaultConnectivityHealthPath
	}
	if c.Backend.TimeoutSec <= 0 {
		c.Backend.TimeoutSec = constants.DefaultHTTPTimeoutSec
	}
	if c.Backend.SendRetryCount <= 0 {
		c.Backend.SendRetryCount = constants.DefaultSendRetryCount
	}

	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultMaxAttempts
	}

	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = constants.DefaultServerReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = constants.DefaultServerWriteTimeoutSec
	}
	if c.Server.IdleTimeoutSec <= 0 {
		c.Server.IdleTimeoutSec = constants.DefaultServerIdleTimeoutSec
	}

	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if url := os.Getenv("SENDQUEUE_BACKEND_URL"); url != "" {
		c.Backend.APIBaseURL = url
	}
	if path := os.Getenv("SENDQUEUE_DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if level := os.Getenv("SENDQUEUE_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
	if port := os.Getenv("SENDQUEUE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil && p > 0 {
			c.Server.Port = p
		}
	}
}
