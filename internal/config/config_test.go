package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Storage.Path != DefaultDBPath {
		t.Errorf("expected db path %q, got %q", DefaultDBPath, cfg.Storage.Path)
	}
	if cfg.RetentionDays != DefaultRetentionDays {
		t.Errorf("expected retention %d, got %d", DefaultRetentionDays, cfg.RetentionDays)
	}
	if cfg.BasePath != DefaultBasePath {
		t.Errorf("expected base path %q, got %q", DefaultBasePath, cfg.BasePath)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lens.yaml")

	data := []byte(`
storage:
  path: /tmp/telemetry.db
retention_days: 14
base_path: /_debug
connection: telemetry
server:
  addr: 127.0.0.1:9999
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Storage.Path != "/tmp/telemetry.db" {
		t.Errorf("unexpected db path %q", cfg.Storage.Path)
	}
	if cfg.RetentionDays != 14 {
		t.Errorf("unexpected retention %d", cfg.RetentionDays)
	}
	if cfg.BasePath != "/_debug" {
		t.Errorf("unexpected base path %q", cfg.BasePath)
	}
	if cfg.Connection != "telemetry" {
		t.Errorf("unexpected connection %q", cfg.Connection)
	}
	if cfg.Server.Addr != "127.0.0.1:9999" {
		t.Errorf("unexpected addr %q", cfg.Server.Addr)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LENS_RETENTION_DAYS", "30")
	t.Setenv("LENS_BASE_PATH", "/_telemetry")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.RetentionDays != 30 {
		t.Errorf("expected retention 30, got %d", cfg.RetentionDays)
	}
	if cfg.BasePath != "/_telemetry" {
		t.Errorf("expected base path /_telemetry, got %q", cfg.BasePath)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty db path", func(c *Config) { c.Storage.Path = "" }},
		{"zero retention", func(c *Config) { c.RetentionDays = 0 }},
		{"relative base path", func(c *Config) { c.BasePath = "lens" }},
		{"empty connection", func(c *Config) { c.Connection = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}
