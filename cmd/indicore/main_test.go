package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/observon/indi-core/internal/infrastructure/logging"
)

// TestLoadConfig_MissingFileUsesDefaults verifies the built-in defaults
// apply when no config file exists.
func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("INDICORE_CONFIG", "/nonexistent/path/config.yaml")

	cfg, err := loadConfig(logging.Default())
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.INDI.Port != 7624 {
		t.Errorf("default INDI port = %d, want 7624", cfg.INDI.Port)
	}
	if cfg.API.Port != 8624 {
		t.Errorf("default API port = %d, want 8624", cfg.API.Port)
	}
}

// TestLoadConfig_InvalidFile verifies a malformed config file fails.
func TestLoadConfig_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("api: [not a mapping"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("INDICORE_CONFIG", path)

	if _, err := loadConfig(logging.Default()); err == nil {
		t.Fatal("loadConfig() should fail on malformed YAML")
	}
}

// TestRun_StartupAndShutdown exercises a full boot with optional
// backends disabled, then a context-driven shutdown.
func TestRun_StartupAndShutdown(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	configContent := `
api:
  host: "127.0.0.1"
  port: 18624
  timeouts:
    read: 5
    write: 5
    idle: 10

indi:
  binary: indiserver
  port: 17624
  fifo: "` + filepath.Join(dir, "indiFIFO") + `"
  data_dir: "` + dir + `"

database:
  path: "` + filepath.Join(dir, "profiles.db") + `"
  wal_mode: true
  busy_timeout: 5

mqtt:
  enabled: false

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stderr
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("INDICORE_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() error = %v", err)
	}
}
