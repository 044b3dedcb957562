package config

// Index defaults.
const (
	DefaultShardCount           = 4
	DefaultHibernationThreshold = 1000
)

// Logging defaults.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Observability defaults.
const (
	DefaultSampleRatio = 1.0
	DefaultEnvironment = "development"
)

// Server defaults.
const (
	DefaultPort         = 8080
	DefaultHost         = "127.0.0.1"
	DefaultReadTimeout  = "10s"
	DefaultWriteTimeout = "10s"
	DefaultIdleTimeout  = "60s"
)
