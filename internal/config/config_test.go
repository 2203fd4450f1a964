package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		HTTP: HTTPConfig{
			Address:      "0.0.0.0",
			Port:         8000,
			ReadTimeout:  10,
			WriteTimeout: 10,
		},
		Storage: StorageConfig{
			Driver:   "sqlite",
			Path:     "./motion.db",
			PoolSize: 4,
		},
		WebSocket: WebSocketConfig{
			SendTimeout:  5,
			PingInterval: 30,
			IdleTimeout:  90,
			ReadLimit:    4096,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid configuration",
			mutate:      func(*Config) {},
			expectError: false,
		},
		{
			name:        "invalid http port",
			mutate:      func(c *Config) { c.HTTP.Port = 70000 },
			expectError: true,
			errorMsg:    "port must be between 1 and 65535",
		},
		{
			name:        "empty bind address",
			mutate:      func(c *Config) { c.HTTP.Address = "" },
			expectError: true,
			errorMsg:    "address cannot be empty",
		},
		{
			name:        "unknown storage driver",
			mutate:      func(c *Config) { c.Storage.Driver = "mysql" },
			expectError: true,
			errorMsg:    "driver must be 'sqlite' or 'postgres'",
		},
		{
			name: "sqlite driver without path",
			mutate: func(c *Config) {
				c.Storage.Driver = "sqlite"
				c.Storage.Path = ""
			},
			expectError: true,
			errorMsg:    "path is required",
		},
		{
			name: "postgres driver without dsn",
			mutate: func(c *Config) {
				c.Storage.Driver = "postgres"
				c.Storage.DSN = ""
			},
			expectError: true,
			errorMsg:    "dsn is required",
		},
		{
			name:        "zero send timeout",
			mutate:      func(c *Config) { c.WebSocket.SendTimeout = 0 },
			expectError: true,
			errorMsg:    "send_timeout must be at least 1 second",
		},
		{
			name: "idle timeout not exceeding ping interval",
			mutate: func(c *Config) {
				c.WebSocket.PingInterval = 30
				c.WebSocket.IdleTimeout = 30
			},
			expectError: true,
			errorMsg:    "idle_timeout (30) must be greater than ping_interval (30)",
		},
		{
			name:        "invalid log level",
			mutate:      func(c *Config) { c.Logging.Level = "verbose" },
			expectError: true,
			errorMsg:    "level must be one of",
		},
		{
			name:        "invalid log format",
			mutate:      func(c *Config) { c.Logging.Format = "xml" },
			expectError: true,
			errorMsg:    "format must be 'json' or 'text'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.expectError {
				if err == nil {
					t.Fatal("Expected validation error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("Expected error containing %q, got %q", tt.errorMsg, err.Error())
				}
			} else if err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
http:
  address: "127.0.0.1"
  port: 9000
storage:
  driver: sqlite
  path: /tmp/test-motion.db
  pool_size: 2
websocket:
  send_timeout: 3
  ping_interval: 15
  idle_timeout: 45
logging:
  level: debug
  format: json
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTP.Port != 9000 {
		t.Errorf("Expected port 9000, got %d", cfg.HTTP.Port)
	}
	if cfg.Storage.Path != "/tmp/test-motion.db" {
		t.Errorf("Expected path /tmp/test-motion.db, got %s", cfg.Storage.Path)
	}
	if cfg.WebSocket.GetSendTimeout() != 3*time.Second {
		t.Errorf("Expected send timeout 3s, got %v", cfg.WebSocket.GetSendTimeout())
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected log level debug, got %s", cfg.Logging.Level)
	}

	// Fields absent from the file get defaults.
	if cfg.HTTP.ReadTimeout != 10 {
		t.Errorf("Expected default read_timeout 10, got %d", cfg.HTTP.ReadTimeout)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default output stdout, got %s", cfg.Logging.Output)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("Expected error for missing config file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(path, []byte("http: [not: valid"), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("Expected error for invalid YAML")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default configuration failed validation: %v", err)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Errorf("Expected default driver sqlite, got %s", cfg.Storage.Driver)
	}
	if cfg.WebSocket.GetPingInterval() != 30*time.Second {
		t.Errorf("Expected default ping interval 30s, got %v", cfg.WebSocket.GetPingInterval())
	}
}
