// Package config loads engine configuration from a YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	DefaultDBPath        = "./data/lens.db"
	DefaultRetentionDays = 7
	DefaultBasePath      = "/_lens"
	DefaultConnection    = "lens"
	DefaultListenAddr    = "127.0.0.1:2026"
	DefaultLogLevel      = "info"
)

// Config holds the engine and dashboard configuration.
type Config struct {
	// Storage configures the embedded database file.
	Storage StorageConfig `yaml:"storage"`

	// RetentionDays is the maximum age in days telemetry rows are kept.
	RetentionDays int `yaml:"retention_days"`

	// BasePath is the dashboard's own URL prefix. Requests under this
	// path are never recorded (self-exclusion).
	BasePath string `yaml:"base_path"`

	// Connection is the engine's reserved connection name. Queries
	// attributed to it are never recorded.
	Connection string `yaml:"connection"`

	// Server configures the dashboard HTTP server.
	Server ServerConfig `yaml:"server"`

	// LogLevel is the zerolog level name (trace..panic).
	LogLevel string `yaml:"log_level"`
}

// StorageConfig locates the sqlite database file.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig holds the dashboard listen address.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Storage:       StorageConfig{Path: DefaultDBPath},
		RetentionDays: DefaultRetentionDays,
		BasePath:      DefaultBasePath,
		Connection:    DefaultConnection,
		Server:        ServerConfig{Addr: DefaultListenAddr},
		LogLevel:      DefaultLogLevel,
	}
}

// Load reads configuration from path (optional, "" skips the file),
// applies LENS_* environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks invariants the engine relies on.
func (c Config) Validate() error {
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path must not be empty")
	}
	if c.RetentionDays < 1 {
		return fmt.Errorf("retention_days must be at least 1, got %d", c.RetentionDays)
	}
	if c.BasePath == "" || c.BasePath[0] != '/' {
		return fmt.Errorf("base_path must start with /, got %q", c.BasePath)
	}
	if c.Connection == "" {
		return fmt.Errorf("connection must not be empty")
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Storage.Path = getEnv("LENS_DB_PATH", cfg.Storage.Path)
	cfg.RetentionDays = getEnvInt("LENS_RETENTION_DAYS", cfg.RetentionDays)
	cfg.BasePath = getEnv("LENS_BASE_PATH", cfg.BasePath)
	cfg.Connection = getEnv("LENS_CONNECTION", cfg.Connection)
	cfg.Server.Addr = getEnv("LENS_ADDR", cfg.Server.Addr)
	cfg.LogLevel = getEnv("LENS_LOG_LEVEL", cfg.LogLevel)
}

// getEnv gets an environment variable with a default fallback.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a default fallback.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
