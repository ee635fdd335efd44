package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Shelly bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Bridge    BridgeConfig    `yaml:"bridge"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Database  DatabaseConfig  `yaml:"database"`
	Forwarder ForwarderConfig `yaml:"forwarder"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// BridgeConfig contains the Shelly bridge settings.
type BridgeConfig struct {
	// ID identifies this bridge in health messages.
	ID string `yaml:"id"`

	// QueueSize is the ingress buffer between the MQTT callback and the
	// single consumer.
	QueueSize int `yaml:"queue_size"`

	// HealthInterval is the health publish period in seconds.
	HealthInterval int `yaml:"health_interval"`

	// CommandQoS is the QoS for outbound device commands.
	CommandQoS int `yaml:"command_qos"`

	// DeviceModes maps instance ids to "relay" or "roller".
	// Instances not listed run in relay mode.
	DeviceModes map[string]string `yaml:"device_modes"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
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

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
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
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// DatabaseConfig contains the SQLite command log settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// ForwarderConfig contains Kafka notification forwarding settings.
type ForwarderConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`

	// BufferSize is the number of notifications held while Kafka is slow.
	BufferSize int `yaml:"buffer_size"`

	// BatchTimeout is the writer flush period in milliseconds.
	BatchTimeout int `yaml:"batch_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: SHELLYBRIDGE_SECTION_KEY
// For example: SHELLYBRIDGE_MQTT_HOST, SHELLYBRIDGE_API_PORT
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

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			ID:             "shelly-bridge-01",
			QueueSize:      256,
			HealthInterval: 30,
			CommandQoS:     1,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "shellybridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
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
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Database: DatabaseConfig{
			Path:        "./data/shellybridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Forwarder: ForwarderConfig{
			Topic:        "shelly.notifications",
			BufferSize:   1024,
			BatchTimeout: 100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SHELLYBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Bridge
	if v := os.Getenv("SHELLYBRIDGE_BRIDGE_ID"); v != "" {
		cfg.Bridge.ID = v
	}

	// MQTT
	if v := os.Getenv("SHELLYBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SHELLYBRIDGE_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("SHELLYBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SHELLYBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("SHELLYBRIDGE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("SHELLYBRIDGE_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("SHELLYBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Database
	if v := os.Getenv("SHELLYBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Forwarder
	if v := os.Getenv("SHELLYBRIDGE_FORWARDER_BROKERS"); v != "" {
		cfg.Forwarder.Brokers = strings.Split(v, ",")
	}

	// Logging
	if v := os.Getenv("SHELLYBRIDGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v, err := strconv.ParseBool(os.Getenv("SHELLYBRIDGE_DEBUG")); err == nil && v {
		cfg.Logging.Level = "debug"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Bridge.ID == "" {
		errs = append(errs, "bridge.id is required")
	}
	if c.Bridge.QueueSize < 1 {
		errs = append(errs, "bridge.queue_size must be positive")
	}
	if c.Bridge.CommandQoS < 0 || c.Bridge.CommandQoS > 2 {
		errs = append(errs, "bridge.command_qos must be 0, 1, or 2")
	}
	for id, mode := range c.Bridge.DeviceModes {
		if mode != "relay" && mode != "roller" {
			errs = append(errs, fmt.Sprintf("bridge.device_modes.%s must be relay or roller", id))
		}
	}

	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when database is enabled")
	}

	if c.Forwarder.Enabled {
		if len(c.Forwarder.Brokers) == 0 {
			errs = append(errs, "forwarder.brokers is required when forwarder is enabled")
		}
		if c.Forwarder.Topic == "" {
			errs = append(errs, "forwarder.topic is required when forwarder is enabled")
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

// GetHealthInterval returns the bridge health publish period as a Duration.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.Bridge.HealthInterval) * time.Second
}
