package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if !c.Network.Valid() {
		return fmt.Errorf("network must be mainnet or testnet, got %q", c.Network)
	}
	if !c.Mode.Valid() {
		return fmt.Errorf("mode must be final or optimistic, got %q", c.Mode)
	}

	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be positive")
	}
	if c.API.MaxRetries < 0 {
		return errors.New("api.max_retries must be >= 0")
	}

	if c.Poll.MaxBlocks < 1 {
		return errors.New("poll.max_blocks must be >= 1")
	}
	if c.Poll.RetryDelay <= 0 {
		return errors.New("poll.retry_delay must be positive")
	}
	if c.Poll.RetryBackoff < 1.0 {
		return errors.New("poll.retry_backoff must be >= 1.0")
	}
	if c.Poll.RetryMaxAttempts < 0 {
		return errors.New("poll.retry_max_attempts must be >= 0")
	}

	if c.Series.Capacity < 1 {
		return errors.New("series.capacity must be >= 1")
	}

	if c.Health.MaxLatency <= 0 {
		return errors.New("health.max_latency must be positive")
	}

	if c.Server.Enabled && c.Server.ListenAddr == "" {
		return errors.New("server.listen_addr is required when the server is enabled")
	}

	if c.Recorder.Enabled {
		if c.Recorder.BatchSize < 1 {
			return errors.New("recorder.batch_size must be >= 1")
		}
		if c.Recorder.BufferSize < 1 {
			return errors.New("recorder.buffer_size must be >= 1")
		}
		if err := c.Recorder.Database.validate("recorder.database"); err != nil {
			return err
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
