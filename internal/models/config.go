package models

// Config holds the application configuration
type Config struct {
	Backend      BackendConfig      `json:"backend"`
	Database     DatabaseConfig     `json:"database"`
	Queue        QueueConfig        `json:"queue"`
	Connectivity ConnectivityConfig `json:"connectivity"`
	Retry        RetryConfig        `json:"retry"`
	Server       ServerConfig       `json:"server"`
	Tracing      TracingConfig      `json:"tracing"`
	LogLevel     string             `json:"log_level"`
}

// BackendConfig holds the chat backend (delivery transport) configuration
type BackendConfig struct {
	APIBaseURL     string `json:"api_base_url"`
	HealthPath     string `json:"health_path"`
	TimeoutSec     int    `json:"timeoutSec"`
	SendRetryCount int    `json:"sendRetryCount"`
}

// DatabaseConfig holds database related configurations
type DatabaseConfig struct {
	Path string `json:"path"`
}

// QueueConfig holds offline queue and sync behavior
type QueueConfig struct {
	MaxRetries         int `json:"maxRetries"`
	DeliveryTimeoutSec int `json:"deliveryTimeoutSec"`
	SyncIntervalMin    int `json:"syncIntervalMin"`
	MaxPayloadBytes    int `json:"maxPayloadBytes"`
}

// ConnectivityConfig holds reachability probing configuration
type ConnectivityConfig struct {
	CheckIntervalSec int `json:"checkIntervalSec"`
	ProbeTimeoutSec  int `json:"probeTimeoutSec"`
}

// RetryConfig holds transport/store retry related configurations
type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts"`
}

// ServerConfig holds the HTTP API server configuration
type ServerConfig struct {
	Port            int `json:"port"`
	ReadTimeoutSec  int `json:"readTimeoutSec"`
	WriteTimeoutSec int `json:"writeTimeoutSec"`
	IdleTimeoutSec  int `json:"idleTimeoutSec"`
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate"`
	UseStdout      bool    `json:"use_stdout"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
