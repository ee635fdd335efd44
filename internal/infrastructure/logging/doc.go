// Package logging provides structured logging for the Shelly bridge.
//
// It wraps log/slog with default service and version fields and a level
// filter set from configuration:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// At debug level every inbound MQTT message is logged with its payload.
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("bridge started", "bridge_id", cfg.Bridge.ID)
//
// Never log broker passwords or the InfluxDB token.
package logging
