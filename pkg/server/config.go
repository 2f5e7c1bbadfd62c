package server

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds server configuration.
type Config struct {
	ListenAddr  string `yaml:"listen_addr"`  // HTTP + WebSocket bind address (e.g. ":3000")
	MetricsAddr string `yaml:"metrics_addr"` // HTTP bind address for /metrics endpoint (empty = disabled)
	DBPath      string `yaml:"db_path"`      // SQLite database path
	DataDir     string `yaml:"data_dir"`     // directory for uploaded media
	JWTSecret   string `yaml:"jwt_secret"`   // shared HMAC secret for bearer tokens
	MaxUsers    int    `yaml:"max_users"`    // registration ceiling; this is a two-person service
}

// DefaultConfig returns a config with sensible defaults. The JWT secret has
// no default; it must come from the config file, flag, or JWT_SECRET env.
func DefaultConfig() Config {
	return Config{
		ListenAddr:  ":3000",
		MetricsAddr: ":3001",
		DBPath:      "duochat.db",
		DataDir:     ".",
		JWTSecret:   os.Getenv("JWT_SECRET"),
		MaxUsers:    2,
	}
}

// LoadConfig reads a YAML config file and overlays it on the defaults.
// Fields absent from the file keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path) //nolint:gosec // path from user-provided CLI config
	if err != nil {
		return cfg, fmt.Errorf("server: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("server: parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks that the config is runnable.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("server: listen address must not be empty")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("server: JWT secret must be set (flag, config file, or JWT_SECRET env)")
	}
	if c.MaxUsers < 1 {
		return fmt.Errorf("server: max users must be at least 1")
	}
	return nil
}
