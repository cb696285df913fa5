package config

import (
	"time"

	"blocklag/internal/model"
)

// Config is the root configuration for a blocklag instance.
type Config struct {
	Network  model.Network  `yaml:"network"`
	BaseURL  string         `yaml:"base_url"` // Overrides the network's default root when set
	Mode     model.Mode     `yaml:"mode"`     // Mode selected at startup
	API      APIConfig      `yaml:"api"`
	Poll     PollConfig     `yaml:"poll"`
	Series   SeriesConfig   `yaml:"series"`
	Health   HealthConfig   `yaml:"health"`
	Server   ServerConfig   `yaml:"server"`
	Recorder RecorderConfig `yaml:"recorder"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// APIConfig holds blocks API client settings.
type APIConfig struct {
	Token        string        `yaml:"token"` // Optional bearer token
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"` // Transport-level retries; the walk has its own policy
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// PollConfig holds height-walk session settings.
type PollConfig struct {
	MaxBlocks        int           `yaml:"max_blocks"`
	RetryDelay       time.Duration `yaml:"retry_delay"`
	RetryBackoff     float64       `yaml:"retry_backoff"`
	RetryMaxAttempts int           `yaml:"retry_max_attempts"` // 0 retries forever
}

// SeriesConfig holds sliding-window settings.
type SeriesConfig struct {
	Capacity int `yaml:"capacity"`
}

// HealthConfig holds health classification settings.
type HealthConfig struct {
	MaxLatency time.Duration `yaml:"max_latency"` // Newest latency above this reports unhealthy
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// RecorderConfig holds sample persistence settings.
type RecorderConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
	Database      DBConfig      `yaml:"database"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// ResolvedBaseURL returns base_url when set, otherwise the network's
// default root.
func (c *Config) ResolvedBaseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return c.Network.BaseURL()
}
