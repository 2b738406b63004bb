package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
api:
  host: "127.0.0.1"
  port: 9000
indi:
  binary: "/usr/bin/indiserver"
  port: 7625
  fifo: "/tmp/testFIFO"
  data_dir: "/usr/share/indi"
  shutdown_timeout: 5s
database:
  path: "/tmp/test-profiles.db"
  wal_mode: true
  busy_timeout: 5
logging:
  level: "debug"
  format: "text"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
	if cfg.INDI.Port != 7625 {
		t.Errorf("INDI.Port = %d, want 7625", cfg.INDI.Port)
	}
	if cfg.INDI.FIFO != "/tmp/testFIFO" {
		t.Errorf("INDI.FIFO = %q, want %q", cfg.INDI.FIFO, "/tmp/testFIFO")
	}
	if cfg.INDI.ShutdownTimeout != 5*time.Second {
		t.Errorf("INDI.ShutdownTimeout = %v, want 5s", cfg.INDI.ShutdownTimeout)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoad_DefaultsPreserved(t *testing.T) {
	// A minimal file should leave defaults in place for unspecified sections.
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("api:\n  port: 8700\n"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.Port != 8700 {
		t.Errorf("API.Port = %d, want 8700", cfg.API.Port)
	}
	if cfg.INDI.Port != 7624 {
		t.Errorf("INDI.Port = %d, want default 7624", cfg.INDI.Port)
	}
	if cfg.INDI.Binary != "indiserver" {
		t.Errorf("INDI.Binary = %q, want default %q", cfg.INDI.Binary, "indiserver")
	}
	if cfg.INDI.MaxClientMB != 1000 {
		t.Errorf("INDI.MaxClientMB = %d, want default 1000", cfg.INDI.MaxClientMB)
	}
	if cfg.WebSocket.Path != "/ws" {
		t.Errorf("WebSocket.Path = %q, want default %q", cfg.WebSocket.Path, "/ws")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("api: [not a map"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("indi:\n  port: 7624\n"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	t.Setenv("INDICORE_INDI_PORT", "7700")
	t.Setenv("INDICORE_DATABASE_PATH", "/tmp/env-override.db")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.INDI.Port != 7700 {
		t.Errorf("INDI.Port = %d, want env override 7700", cfg.INDI.Port)
	}
	if cfg.Database.Path != "/tmp/env-override.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{
			name:    "bad api port",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantSub: "api.port",
		},
		{
			name:    "bad indi port",
			mutate:  func(c *Config) { c.INDI.Port = 70000 },
			wantSub: "indi.port",
		},
		{
			name:    "missing binary",
			mutate:  func(c *Config) { c.INDI.Binary = "" },
			wantSub: "indi.binary",
		},
		{
			name:    "missing fifo",
			mutate:  func(c *Config) { c.INDI.FIFO = "" },
			wantSub: "indi.fifo",
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantSub: "database.path",
		},
		{
			name: "bad mqtt qos",
			mutate: func(c *Config) {
				c.MQTT.Enabled = true
				c.MQTT.QoS = 3
			},
			wantSub: "mqtt.qos",
		},
		{
			name: "auth enabled without secret",
			mutate: func(c *Config) {
				c.Auth.Enabled = true
				c.Auth.Username = "admin"
				c.Auth.Password = "pw"
			},
			wantSub: "auth.secret",
		},
		{
			name: "auth secret too short",
			mutate: func(c *Config) {
				c.Auth.Enabled = true
				c.Auth.Secret = "short"
				c.Auth.Username = "admin"
				c.Auth.Password = "pw"
			},
			wantSub: "32 characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("Validate() error = %q, want substring %q", err, tt.wantSub)
			}
		})
	}
}

func TestTimeoutGetters(t *testing.T) {
	cfg := defaultConfig()
	if cfg.GetReadTimeout() != 30*time.Second {
		t.Errorf("GetReadTimeout() = %v, want 30s", cfg.GetReadTimeout())
	}
	if cfg.GetIdleTimeout() != 60*time.Second {
		t.Errorf("GetIdleTimeout() = %v, want 60s", cfg.GetIdleTimeout())
	}
	if cfg.GetTokenTTL() != 60*time.Minute {
		t.Errorf("GetTokenTTL() = %v, want 60m", cfg.GetTokenTTL())
	}
}
