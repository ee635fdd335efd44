// Package influxdb records Shelly telemetry in InfluxDB.
//
// It wraps influxdb-client-go v2 and writes three measurements:
//   - shelly_property: numeric values in "value", booleans in "state"
//   - shelly_event: button events with their press count
//   - shelly_connectivity: online and offline transitions
//
// Every point is tagged with device_id and device_type.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WritePropertyValue("A4CF12F4A1B2", "shelly1l", "powerMeter0", 12.5)
//
// Writes are non-blocking and batched (batch_size, flush_interval).
// Write failures arrive asynchronously through SetOnError.
package influxdb
