package influxdb_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-shelly/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-shelly/internal/infrastructure/influxdb"
)

// testConfig returns a configuration for a local dev InfluxDB.
func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "shellybridge-dev-token",
		Org:           "graylogic",
		Bucket:        "shelly",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

// skipIfNoInfluxDB skips the test if InfluxDB is not running.
func skipIfNoInfluxDB(t *testing.T) {
	t.Helper()
	if os.Getenv("RUN_INTEGRATION") == "" {
		client, err := influxdb.Connect(context.Background(), testConfig())
		if err != nil {
			t.Skip("InfluxDB not available, skipping integration test")
		}
		client.Close()
	}
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := influxdb.Connect(context.Background(), cfg)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999"

	_, err := influxdb.Connect(context.Background(), cfg)
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_DefaultBatchSettings(t *testing.T) {
	skipIfNoInfluxDB(t)
	cfg := testConfig()
	cfg.BatchSize = 0
	cfg.FlushInterval = -1

	client, err := influxdb.Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect() with default batch settings")
	}
}

func TestHealthCheck(t *testing.T) {
	skipIfNoInfluxDB(t)

	client, err := influxdb.Connect(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

// =============================================================================
// Write Tests
// =============================================================================

func TestWriteTelemetry(t *testing.T) {
	skipIfNoInfluxDB(t)

	client, err := influxdb.Connect(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	var writeErr error
	var mu sync.Mutex
	client.SetOnError(func(err error) {
		mu.Lock()
		writeErr = err
		mu.Unlock()
	})

	client.WritePropertyValue("TEST01", "shelly1l", "powerMeter0", 42.0)
	client.WritePropertyValue("TEST01", "shelly1l", "relay0", true)
	client.WriteEvent("TEST01", "shelly1l", "input0Press", 1)
	client.WriteConnectivity("TEST01", "shelly1l", false)
	client.Flush()

	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if writeErr != nil {
		t.Errorf("write error = %v", writeErr)
	}
}

func TestClose(t *testing.T) {
	skipIfNoInfluxDB(t)

	client, err := influxdb.Connect(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	client.WritePropertyValue("close-test", "shellyht", "temperature", 1.0)

	if err := client.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}

	// Writes after close are dropped silently.
	client.WritePropertyValue("close-test", "shellyht", "temperature", 2.0)
	client.Flush()
}
