// Package config loads and validates the Shelly bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with SHELLYBRIDGE_* environment variables
//   - Validation of required fields
//
// Broker credentials and the InfluxDB token should be set through the
// environment rather than the file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Bridge.ID)
package config
