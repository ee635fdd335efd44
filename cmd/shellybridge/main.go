// Shelly bridge - MQTT gateway for Shelly (Gen1 API) devices
//
// This is the main entry point of the bridge. It subscribes to the Shelly
// topic tree on an MQTT broker, keeps an in-memory model of every device it
// hears from, and exposes those devices to a host through a REST API and a
// WebSocket feed. Host writes are translated into Shelly command topics.
//
// Optional sinks:
//   - SQLite command log (database.enabled)
//   - InfluxDB telemetry (influxdb.enabled)
//   - Kafka notification stream (forwarder.enabled)
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/gray-logic-shelly/internal/api"
	"github.com/nerrad567/gray-logic-shelly/internal/audit"
	"github.com/nerrad567/gray-logic-shelly/internal/bridges/shelly"
	"github.com/nerrad567/gray-logic-shelly/internal/forwarder"
	"github.com/nerrad567/gray-logic-shelly/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-shelly/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-shelly/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-shelly/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-shelly/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-shelly/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the bridge and blocks until ctx is cancelled. Deferred closes
// run in reverse start order.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // Linear startup sequence
	log := logging.Default()
	log.Info("starting Shelly bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"level", cfg.Logging.Level,
		"bridge_id", cfg.Bridge.ID,
	)

	// Command log (optional)
	var recorder shelly.CommandRecorder
	var commandLog api.CommandLog
	if cfg.Database.Enabled {
		db, dbErr := database.Open(ctx, database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if dbErr != nil {
			return fmt.Errorf("opening database: %w", dbErr)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		repo := audit.NewSQLiteRepository(db.DB)
		recorder = repo
		commandLog = repo
		log.Info("command log ready", "path", cfg.Database.Path)
	} else {
		log.Info("command log disabled")
	}

	// Notifier chain: WebSocket hub always, Influx and Kafka when enabled.
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)
	notifiers := shelly.MultiNotifier{hub}

	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(ctx, cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		notifiers = append(notifiers, &telemetryNotifier{writer: influxClient})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	if cfg.Forwarder.Enabled {
		fwd := forwarder.New(cfg.Forwarder, log)
		fwd.Start(ctx)
		defer func() {
			log.Info("stopping Kafka forwarder", "stats", fwd.Stats())
			fwd.Stop()
		}()
		notifiers = append(notifiers, fwd)
		log.Info("Kafka forwarder started", "brokers", cfg.Forwarder.Brokers, "topic", cfg.Forwarder.Topic)
	} else {
		log.Info("Kafka forwarder disabled")
	}

	// MQTT with the bridge's last will
	lwt, err := json.Marshal(shelly.NewLWTMessage(cfg.Bridge.ID))
	if err != nil {
		return fmt.Errorf("encoding last will: %w", err)
	}
	mqttClient, err := mqtt.Connect(cfg.MQTT, &mqtt.Will{
		Topic:    shelly.HealthTopic(),
		Payload:  lwt,
		QoS:      1,
		Retained: true,
	})
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	bridge, err := shelly.NewBridge(shelly.BridgeOptions{
		Config:     bridgeConfig(cfg),
		MQTTClient: &mqttBridgeAdapter{client: mqttClient},
		Notifier:   notifiers,
		Recorder:   recorder,
		Logger:     log,
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}
	if err := bridge.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		bridge.Stop()
	}()

	if cfg.API.Enabled {
		server, apiErr := api.New(api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Logger:   log,
			Bridge:   bridge,
			Commands: commandLog,
			Hub:      hub,
			Version:  version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	return nil
}

// getConfigPath returns SHELLYBRIDGE_CONFIG if set, otherwise the default.
func getConfigPath() string {
	if path := os.Getenv("SHELLYBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// bridgeConfig maps the file configuration onto the bridge's own settings.
func bridgeConfig(cfg *config.Config) shelly.Config {
	return shelly.Config{
		BridgeID:       cfg.Bridge.ID,
		Version:        version,
		QueueSize:      cfg.Bridge.QueueSize,
		HealthInterval: cfg.GetHealthInterval(),
		SubscribeQoS:   byte(cfg.MQTT.QoS),          //nolint:gosec // Validated to 0-2
		CommandQoS:     byte(cfg.Bridge.CommandQoS), //nolint:gosec // Validated to 0-2
		DeviceModes:    cfg.Bridge.DeviceModes,
	}
}
