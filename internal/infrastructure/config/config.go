package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for INDI Control Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	INDI      INDIConfig      `yaml:"indi"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Auth      AuthConfig      `yaml:"auth"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// INDIConfig contains settings for the managed indiserver and the
// property sync connection into it.
type INDIConfig struct {
	// Binary is the path to the indiserver executable.
	Binary string `yaml:"binary"`

	// Port is the default INDI server port. Profiles may override it.
	Port int `yaml:"port"`

	// FIFO is the path of the control FIFO used to start and stop
	// individual drivers without restarting the server.
	FIFO string `yaml:"fifo"`

	// DataDir is the INDI data directory containing driver XML descriptors.
	DataDir string `yaml:"data_dir"`

	// ConfigDir is where drivers persist their own configuration.
	ConfigDir string `yaml:"config_dir"`

	// MaxClientMB is passed to indiserver -m: drop clients whose send
	// queue exceeds this many megabytes.
	MaxClientMB int `yaml:"max_client_mb"`

	// ShutdownTimeout bounds how long Stop() waits for the server process
	// to exit before the transition to Stopped is forced.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// ConnectTimeout bounds how long the supervisor waits after spawning
	// indiserver for its TCP port to accept connections. Zero disables
	// the wait and the periodic port health check.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// AutoConnectWait bounds how long autoconnect waits for a device's
	// property tree to appear after server start.
	AutoConnectWait time.Duration `yaml:"auto_connect_wait"`
}

// UnmarshalYAML decodes INDIConfig, accepting duration values in Go
// syntax ("10s", "2m"). yaml.v3 does not parse strings into
// time.Duration on its own. Keys absent from the YAML keep whatever
// value the receiver already holds, so defaults survive partial files.
func (c *INDIConfig) UnmarshalYAML(node *yaml.Node) error {
	raw := struct {
		Binary          string `yaml:"binary"`
		Port            int    `yaml:"port"`
		FIFO            string `yaml:"fifo"`
		DataDir         string `yaml:"data_dir"`
		ConfigDir       string `yaml:"config_dir"`
		MaxClientMB     int    `yaml:"max_client_mb"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
		ConnectTimeout  string `yaml:"connect_timeout"`
		AutoConnectWait string `yaml:"auto_connect_wait"`
	}{
		Binary:          c.Binary,
		Port:            c.Port,
		FIFO:            c.FIFO,
		DataDir:         c.DataDir,
		ConfigDir:       c.ConfigDir,
		MaxClientMB:     c.MaxClientMB,
		ShutdownTimeout: c.ShutdownTimeout.String(),
		ConnectTimeout:  c.ConnectTimeout.String(),
		AutoConnectWait: c.AutoConnectWait.String(),
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}

	shutdown, err := time.ParseDuration(raw.ShutdownTimeout)
	if err != nil {
		return fmt.Errorf("indi.shutdown_timeout: %w", err)
	}
	connect, err := time.ParseDuration(raw.ConnectTimeout)
	if err != nil {
		return fmt.Errorf("indi.connect_timeout: %w", err)
	}
	wait, err := time.ParseDuration(raw.AutoConnectWait)
	if err != nil {
		return fmt.Errorf("indi.auto_connect_wait: %w", err)
	}

	c.Binary = raw.Binary
	c.Port = raw.Port
	c.FIFO = raw.FIFO
	c.DataDir = raw.DataDir
	c.ConfigDir = raw.ConfigDir
	c.MaxClientMB = raw.MaxClientMB
	c.ShutdownTimeout = shutdown
	c.ConnectTimeout = connect
	c.AutoConnectWait = wait
	return nil
}

// DatabaseConfig contains SQLite database settings for the profile store.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
// The MQTT publisher is optional; when disabled no connection is made.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings for property telemetry.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// AuthConfig contains optional API authentication settings.
// This is a single-operator bearer token, not multi-tenant authorization.
type AuthConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Secret   string `yaml:"secret"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	TokenTTL int    `yaml:"token_ttl"` // minutes
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: INDICORE_SECTION_KEY
// For example: INDICORE_DATABASE_PATH, INDICORE_INDI_PORT
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration without reading any file.
// Used when no config file is present; env overrides still apply.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	home, _ := os.UserHomeDir() //nolint:errcheck // empty home falls back to /tmp below
	configDir := "/tmp/indi"
	if home != "" {
		configDir = home + "/.indi"
	}

	return &Config{
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8624,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		INDI: INDIConfig{
			Binary:          "indiserver",
			Port:            7624,
			FIFO:            "/tmp/indiFIFO",
			DataDir:         "/usr/share/indi",
			ConfigDir:       configDir,
			MaxClientMB:     1000,
			ShutdownTimeout: 10 * time.Second,
			ConnectTimeout:  10 * time.Second,
			AutoConnectWait: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path:        configDir + "/profiles.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "indicore",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Auth: AuthConfig{
			TokenTTL: 60,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: INDICORE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("INDICORE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("INDICORE_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
	if v := os.Getenv("INDICORE_INDI_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.INDI.Port = port
		}
	}
	if v := os.Getenv("INDICORE_INDI_BINARY"); v != "" {
		cfg.INDI.Binary = v
	}
	if v := os.Getenv("INDICORE_INDI_DATA_DIR"); v != "" {
		cfg.INDI.DataDir = v
	}
	if v := os.Getenv("INDICORE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("INDICORE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("INDICORE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("INDICORE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("INDICORE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
	if v := os.Getenv("INDICORE_AUTH_SECRET"); v != "" {
		cfg.Auth.Secret = v
	}
}

// minAuthSecretLength is the minimum accepted token signing secret length.
const minAuthSecretLength = 32

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.INDI.Port < 1 || c.INDI.Port > 65535 {
		errs = append(errs, "indi.port must be between 1 and 65535")
	}
	if c.INDI.Binary == "" {
		errs = append(errs, "indi.binary is required")
	}
	if c.INDI.FIFO == "" {
		errs = append(errs, "indi.fifo is required")
	}
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.MQTT.Enabled && (c.MQTT.QoS < 0 || c.MQTT.QoS > 2) {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}
	if c.Auth.Enabled {
		if c.Auth.Secret == "" {
			errs = append(errs, "auth.secret is required when auth is enabled (set INDICORE_AUTH_SECRET)")
		} else if len(c.Auth.Secret) < minAuthSecretLength {
			errs = append(errs, "auth.secret must be at least 32 characters")
		}
		if c.Auth.Username == "" || c.Auth.Password == "" {
			errs = append(errs, "auth.username and auth.password are required when auth is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetTokenTTL returns the auth token lifetime as a Duration.
func (c *Config) GetTokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTL) * time.Minute
}
