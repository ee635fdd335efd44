package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
bridge:
  id: "test-bridge"
  queue_size: 64
  device_modes:
    C45BBE6B2A01: roller
mqtt:
  broker:
    host: "broker.local"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  port: 9000
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Bridge.ID != "test-bridge" {
		t.Errorf("Bridge.ID = %q, want %q", cfg.Bridge.ID, "test-bridge")
	}
	if cfg.Bridge.QueueSize != 64 {
		t.Errorf("Bridge.QueueSize = %d, want 64", cfg.Bridge.QueueSize)
	}
	if cfg.Bridge.DeviceModes["C45BBE6B2A01"] != "roller" {
		t.Errorf("Bridge.DeviceModes = %v", cfg.Bridge.DeviceModes)
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
	// Defaults survive for keys the file omits.
	if cfg.Bridge.HealthInterval != 30 {
		t.Errorf("Bridge.HealthInterval = %d, want 30", cfg.Bridge.HealthInterval)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
bridge:
  id: ""
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected validation error for empty bridge.id, got nil")
	}
	if !strings.Contains(err.Error(), "bridge.id") {
		t.Errorf("error = %v, want mention of bridge.id", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config { return defaultConfig() }

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"missing bridge id", func(c *Config) { c.Bridge.ID = "" }, true},
		{"zero queue", func(c *Config) { c.Bridge.QueueSize = 0 }, true},
		{"bad command QoS", func(c *Config) { c.Bridge.CommandQoS = 3 }, true},
		{"bad device mode", func(c *Config) { c.Bridge.DeviceModes = map[string]string{"A": "shutter"} }, true},
		{"roller device mode", func(c *Config) { c.Bridge.DeviceModes = map[string]string{"A": "roller"} }, false},
		{"missing broker", func(c *Config) { c.MQTT.Broker.Host = "" }, true},
		{"invalid QoS", func(c *Config) { c.MQTT.QoS = 3 }, true},
		{"invalid port low", func(c *Config) { c.API.Port = 0 }, true},
		{"invalid port high", func(c *Config) { c.API.Port = 70000 }, true},
		{"port ignored when API disabled", func(c *Config) { c.API.Enabled = false; c.API.Port = 0 }, false},
		{"influx without url", func(c *Config) { c.InfluxDB.Enabled = true }, true},
		{"database without path", func(c *Config) { c.Database.Enabled = true; c.Database.Path = "" }, true},
		{"forwarder without brokers", func(c *Config) { c.Forwarder.Enabled = true }, true},
		{"forwarder complete", func(c *Config) {
			c.Forwarder.Enabled = true
			c.Forwarder.Brokers = []string{"kafka:9092"}
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		Bridge: BridgeConfig{HealthInterval: 15},
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
	if got := cfg.GetHealthInterval().Seconds(); got != 15 {
		t.Errorf("GetHealthInterval() = %v, want 15", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("SHELLYBRIDGE_BRIDGE_ID", "bridge-env")
	t.Setenv("SHELLYBRIDGE_MQTT_HOST", "mqtt.example.com")
	t.Setenv("SHELLYBRIDGE_MQTT_PORT", "8883")
	t.Setenv("SHELLYBRIDGE_MQTT_USERNAME", "testuser")
	t.Setenv("SHELLYBRIDGE_MQTT_PASSWORD", "testpass")
	t.Setenv("SHELLYBRIDGE_API_HOST", "192.168.1.1")
	t.Setenv("SHELLYBRIDGE_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("SHELLYBRIDGE_DATABASE_PATH", "/custom/path.db")
	t.Setenv("SHELLYBRIDGE_FORWARDER_BROKERS", "k1:9092,k2:9092")
	t.Setenv("SHELLYBRIDGE_DEBUG", "true")

	applyEnvOverrides(cfg)

	if cfg.Bridge.ID != "bridge-env" {
		t.Errorf("Bridge.ID = %q, want %q", cfg.Bridge.ID, "bridge-env")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT.Broker.Port = %d, want 8883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Auth.Username != "testuser" || cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth = %+v", cfg.MQTT.Auth)
	}
	if cfg.API.Host != "192.168.1.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "192.168.1.1")
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if len(cfg.Forwarder.Brokers) != 2 || cfg.Forwarder.Brokers[1] != "k2:9092" {
		t.Errorf("Forwarder.Brokers = %v", cfg.Forwarder.Brokers)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Bridge.ID == "" {
		t.Error("defaultConfig should have non-empty Bridge.ID")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.API.Port != 8090 {
		t.Errorf("defaultConfig API.Port = %d, want 8090", cfg.API.Port)
	}
	if cfg.InfluxDB.Enabled || cfg.Database.Enabled || cfg.Forwarder.Enabled {
		t.Error("optional sinks should be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig Validate() error = %v", err)
	}
}
