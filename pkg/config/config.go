// Package config defines the client configuration and its YAML loader.
//
// The configuration is organized into logical sections:
//   - Connection: address, database, credentials
//   - Timeouts: dial, read, write, ping deadlines
//   - Compression: frame compression method for data packets
//   - Reliability: retry behavior for transient failures
//   - Observability: logging, metrics, tracing toggles
//
// Values of the form ${VAR_NAME} in the YAML file are substituted from the
// environment before parsing, so credentials stay out of checked-in files.
package config

import (
	"fmt"
	"time"
)

// Config is the complete client configuration.
type Config struct {
	// Connection settings for the target server
	Connection ConnectionConfig `yaml:"connection" json:"connection"`

	// Timeouts define deadlines for the phases of a connection's life
	Timeouts TimeoutConfig `yaml:"timeouts" json:"timeouts"`

	// Compression selects the frame compression for data packets
	Compression CompressionConfig `yaml:"compression" json:"compression"`

	// Reliability settings for transient failure handling
	Reliability ReliabilityConfig `yaml:"reliability" json:"reliability"`

	// Observability settings for monitoring and debugging
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`

	// Settings are passed to the server with every query
	Settings map[string]string `yaml:"settings" json:"settings"`
}

// ConnectionConfig identifies the server and the session to open on it.
type ConnectionConfig struct {
	// Address is the host:port of the native TCP endpoint
	Address string `yaml:"address" json:"address"`
	// Database selects the default database for the session
	Database string `yaml:"database" json:"database"`
	// Username authenticates the session
	Username string `yaml:"username" json:"username"`
	// Password authenticates the session (use ${ENV} substitution)
	Password string `yaml:"password" json:"password"`
	// ClientName is announced to the server during the handshake
	ClientName string `yaml:"client_name" json:"client_name"`
	// MaxBlockBytes caps the read buffer a single uncompressed block may
	// occupy; 0 selects the built-in default
	MaxBlockBytes int `yaml:"max_block_bytes" json:"max_block_bytes"`
}

// TimeoutConfig contains the connection deadlines.
type TimeoutConfig struct {
	// Dial timeout for establishing the TCP connection
	Dial time.Duration `yaml:"dial" json:"dial"`
	// Read timeout for individual packet reads
	Read time.Duration `yaml:"read" json:"read"`
	// Write timeout for individual packet writes
	Write time.Duration `yaml:"write" json:"write"`
	// Ping timeout for liveness checks
	Ping time.Duration `yaml:"ping" json:"ping"`
}

// CompressionConfig selects how data packets are framed.
type CompressionConfig struct {
	// Enabled turns frame compression on
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Method selects the algorithm: lz4 or zstd
	Method string `yaml:"method" json:"method"`
}

// ReliabilityConfig contains retry settings for transient failures.
type ReliabilityConfig struct {
	// RetryAttempts sets maximum retry attempts for retryable failures
	RetryAttempts int `yaml:"retry_attempts" json:"retry_attempts"`
	// RetryDelay is the initial delay between retries
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`
	// RetryMultiplier increases the delay exponentially
	RetryMultiplier float64 `yaml:"retry_multiplier" json:"retry_multiplier"`
	// MaxRetryDelay caps the delay growth
	MaxRetryDelay time.Duration `yaml:"max_retry_delay" json:"max_retry_delay"`
}

// ObservabilityConfig contains monitoring and debugging settings.
type ObservabilityConfig struct {
	// EnableMetrics activates the prometheus collectors
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics"`
	// EnableTracing activates query spans
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing"`
	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// New returns a Config with production-ready defaults for a local server.
func New() *Config {
	return &Config{
		Connection: ConnectionConfig{
			Address:    "localhost:9000",
			Database:   "default",
			Username:   "default",
			ClientName: "chnative",
		},
		Timeouts: TimeoutConfig{
			Dial:  10 * time.Second,
			Read:  30 * time.Second,
			Write: 30 * time.Second,
			Ping:  5 * time.Second,
		},
		Compression: CompressionConfig{
			Enabled: true,
			Method:  "lz4",
		},
		Reliability: ReliabilityConfig{
			RetryAttempts:   3,
			RetryDelay:      time.Second,
			RetryMultiplier: 2.0,
			MaxRetryDelay:   30 * time.Second,
		},
		Observability: ObservabilityConfig{
			EnableMetrics: true,
			EnableTracing: false,
			LogLevel:      "info",
		},
		Settings: make(map[string]string),
	}
}

// Validate checks required fields and value ranges. Call it after loading to
// catch mistakes before the first connection attempt.
func (c *Config) Validate() error {
	if c.Connection.Address == "" {
		return fmt.Errorf("connection.address is required")
	}
	if c.Connection.Database == "" {
		return fmt.Errorf("connection.database is required")
	}
	if c.Compression.Enabled {
		switch c.Compression.Method {
		case "lz4", "zstd":
		default:
			return fmt.Errorf("compression.method must be lz4 or zstd, got %q", c.Compression.Method)
		}
	}
	if c.Connection.MaxBlockBytes < 0 {
		return fmt.Errorf("connection.max_block_bytes cannot be negative")
	}
	if c.Reliability.RetryAttempts < 0 {
		return fmt.Errorf("reliability.retry_attempts cannot be negative")
	}
	if c.Reliability.RetryMultiplier < 1 {
		return fmt.Errorf("reliability.retry_multiplier must be at least 1")
	}
	return nil
}
