package constants

// Default queue configuration values
const (
	DefaultMaxRetries          = 3
	DefaultDeliveryTimeoutSec  = 30
	DefaultSyncIntervalMinutes = 5
	DefaultMaxPayloadBytes     = 256 * 1024
)

// Default connectivity configuration values
const (
	DefaultConnectivityCheckSec   = 5
	DefaultConnectivityTimeoutSec = 3
	DefaultConnectivityHealthPath = "/health"
)

// Default retry/backoff values
const (
	DefaultRetryBackoffMs        = 1000
	DefaultMaxBackoffMs          = 60000
	DefaultMaxAttempts           = 5
	DefaultDatabaseRetryAttempts = 3
	DefaultSendRetryCount        = 1
)

// Default server values
const (
	DefaultServerPort            = 8083
	DefaultServerReadTimeoutSec  = 15
	DefaultServerWriteTimeoutSec = 15
	DefaultServerIdleTimeoutSec  = 60
	DefaultGracefulShutdownSec   = 30
	ServerErrorChannelSize       = 1
	DefaultHTTPTimeoutSec        = 30
)

// Privacy settings
const (
	DefaultChatIDMaskLength = 4
	DefaultQueueIDLength    = 8
)

// Encryption settings
const (
	EncryptionSalt       = "sendqueue-db-salt-v1"
	EncryptionLookupSalt = "sendqueue-lookup-v1"
)
