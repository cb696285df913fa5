package config

import (
	"time"

	"blocklag/internal/model"
)

// Default values for optional configuration fields.
const (
	DefaultNetwork         = model.NetworkMainnet
	DefaultMode            = model.ModeFinal
	DefaultAPITimeout      = 10 * time.Second
	DefaultAPIRetryBackoff = 500 * time.Millisecond
	DefaultMaxBlocks       = 300
	DefaultRetryDelay      = 500 * time.Millisecond
	DefaultRetryBackoff    = 1.0
	DefaultSeriesCapacity  = 30
	DefaultMaxLatency      = 10 * time.Second
	DefaultListenAddr      = ":8080"
	DefaultBatchSize       = 500
	DefaultFlushInterval   = 1 * time.Second
	DefaultBufferSize      = 4096
	DefaultDBPort          = 5432
	DefaultDBSSLMode       = "prefer"
	DefaultMaxConns        = 4
	DefaultMinConns        = 1
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
)

func (c *Config) applyDefaults() {
	if c.Network == "" {
		c.Network = DefaultNetwork
	}
	if c.Mode == "" {
		c.Mode = DefaultMode
	}

	// API defaults. MaxRetries stays at zero unless configured; the
	// walk's own retry policy is the one that matters.
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.RetryBackoff == 0 {
		c.API.RetryBackoff = DefaultAPIRetryBackoff
	}

	// Poll defaults
	if c.Poll.MaxBlocks == 0 {
		c.Poll.MaxBlocks = DefaultMaxBlocks
	}
	if c.Poll.RetryDelay == 0 {
		c.Poll.RetryDelay = DefaultRetryDelay
	}
	if c.Poll.RetryBackoff == 0 {
		c.Poll.RetryBackoff = DefaultRetryBackoff
	}

	// Series defaults
	if c.Series.Capacity == 0 {
		c.Series.Capacity = DefaultSeriesCapacity
	}

	// Health defaults
	if c.Health.MaxLatency == 0 {
		c.Health.MaxLatency = DefaultMaxLatency
	}

	// Server defaults
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}

	// Recorder defaults
	if c.Recorder.BatchSize == 0 {
		c.Recorder.BatchSize = DefaultBatchSize
	}
	if c.Recorder.FlushInterval == 0 {
		c.Recorder.FlushInterval = DefaultFlushInterval
	}
	if c.Recorder.BufferSize == 0 {
		c.Recorder.BufferSize = DefaultBufferSize
	}
	applyDBDefaults(&c.Recorder.Database)

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
