package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Storage   StorageConfig   `yaml:"storage"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// HTTPConfig contains HTTP server configuration
type HTTPConfig struct {
	Address      string `yaml:"address"`
	Port         int    `yaml:"port"`
	ReadTimeout  int    `yaml:"read_timeout"`  // seconds
	WriteTimeout int    `yaml:"write_timeout"` // seconds
}

// StorageConfig contains persistence configuration. Driver selects the
// backend: "sqlite" uses Path, "postgres" uses DSN.
type StorageConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	DSN      string `yaml:"dsn"`
	PoolSize int    `yaml:"pool_size"`
}

// WebSocketConfig contains push-channel configuration
type WebSocketConfig struct {
	SendTimeout  int   `yaml:"send_timeout"`  // seconds, per-subscriber write bound
	PingInterval int   `yaml:"ping_interval"` // seconds
	IdleTimeout  int   `yaml:"idle_timeout"`  // seconds, must exceed ping_interval
	ReadLimit    int64 `yaml:"read_limit"`    // bytes
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Default returns a configuration with all defaults applied, used when no
// config file is present.
func Default() *Config {
	var config Config
	config.applyDefaults()
	return &config
}

func (c *Config) applyDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = "0.0.0.0"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8000
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 10
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = 10
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "sqlite"
	}
	if c.Storage.Driver == "sqlite" && c.Storage.Path == "" {
		c.Storage.Path = "./motion.db"
	}
	if c.Storage.PoolSize == 0 {
		c.Storage.PoolSize = 4
	}
	if c.WebSocket.SendTimeout == 0 {
		c.WebSocket.SendTimeout = 5
	}
	if c.WebSocket.PingInterval == 0 {
		c.WebSocket.PingInterval = 30
	}
	if c.WebSocket.IdleTimeout == 0 {
		c.WebSocket.IdleTimeout = 90
	}
	if c.WebSocket.ReadLimit == 0 {
		c.WebSocket.ReadLimit = 4096
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
}

// Validate performs validation of the complete configuration
func (c *Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage config: %w", err)
	}

	if err := c.WebSocket.Validate(); err != nil {
		return fmt.Errorf("websocket config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates HTTP server configuration
func (h *HTTPConfig) Validate() error {
	if h.Port < 1 || h.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", h.Port)
	}

	if h.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	if h.ReadTimeout < 1 {
		return fmt.Errorf("read_timeout must be at least 1 second, got %d", h.ReadTimeout)
	}

	if h.WriteTimeout < 1 {
		return fmt.Errorf("write_timeout must be at least 1 second, got %d", h.WriteTimeout)
	}

	return nil
}

// Validate validates storage configuration
func (s *StorageConfig) Validate() error {
	switch s.Driver {
	case "sqlite":
		if s.Path == "" {
			return fmt.Errorf("path is required for the sqlite driver")
		}
	case "postgres":
		if s.DSN == "" {
			return fmt.Errorf("dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("driver must be 'sqlite' or 'postgres', got '%s'", s.Driver)
	}

	if s.PoolSize < 1 {
		return fmt.Errorf("pool_size must be at least 1, got %d", s.PoolSize)
	}

	return nil
}

// Validate validates push-channel configuration
func (w *WebSocketConfig) Validate() error {
	if w.SendTimeout < 1 {
		return fmt.Errorf("send_timeout must be at least 1 second, got %d", w.SendTimeout)
	}

	if w.PingInterval < 1 {
		return fmt.Errorf("ping_interval must be at least 1 second, got %d", w.PingInterval)
	}

	if w.IdleTimeout <= w.PingInterval {
		return fmt.Errorf("idle_timeout (%d) must be greater than ping_interval (%d)",
			w.IdleTimeout, w.PingInterval)
	}

	if w.ReadLimit < 1 {
		return fmt.Errorf("read_limit must be at least 1 byte, got %d", w.ReadLimit)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// GetReadTimeout returns the HTTP read timeout as a time.Duration
func (h *HTTPConfig) GetReadTimeout() time.Duration {
	return time.Duration(h.ReadTimeout) * time.Second
}

// GetWriteTimeout returns the HTTP write timeout as a time.Duration
func (h *HTTPConfig) GetWriteTimeout() time.Duration {
	return time.Duration(h.WriteTimeout) * time.Second
}

// GetSendTimeout returns the per-subscriber send bound as a time.Duration
func (w *WebSocketConfig) GetSendTimeout() time.Duration {
	return time.Duration(w.SendTimeout) * time.Second
}

// GetPingInterval returns the keep-alive ping interval as a time.Duration
func (w *WebSocketConfig) GetPingInterval() time.Duration {
	return time.Duration(w.PingInterval) * time.Second
}

// GetIdleTimeout returns the observer idle timeout as a time.Duration
func (w *WebSocketConfig) GetIdleTimeout() time.Duration {
	return time.Duration(w.IdleTimeout) * time.Second
}
