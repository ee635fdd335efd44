package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementProperty     = "shelly_property"
	measurementEvent        = "shelly_event"
	measurementConnectivity = "shelly_connectivity"
)

// WritePropertyValue records a property value change.
//
// Numbers are stored in the "value" field and booleans in "state", so a
// relay and a power meter on the same device query cleanly. Other value
// types are ignored.
//
// Example:
//
//	client.WritePropertyValue("A4CF12F4A1B2", "shelly1l", "powerMeter0", 12.5)
func (c *Client) WritePropertyValue(deviceID, deviceType, property string, value any) {
	if !c.IsConnected() {
		return
	}
	if p := propertyPoint(deviceID, deviceType, property, value, c.now()); p != nil {
		c.writeAPI.WritePoint(p)
	}
}

// WriteEvent records a button event with its press count.
func (c *Client) WriteEvent(deviceID, deviceType, event string, count int) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(eventPoint(deviceID, deviceType, event, count, c.now()))
}

// WriteConnectivity records a device going online or offline.
func (c *Client) WriteConnectivity(deviceID, deviceType string, connected bool) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(
		measurementConnectivity,
		deviceTags(deviceID, deviceType),
		map[string]any{"connected": connected},
		c.now(),
	))
}

func deviceTags(deviceID, deviceType string) map[string]string {
	return map[string]string{
		"device_id":   deviceID,
		"device_type": deviceType,
	}
}

// propertyPoint builds the point for a property value, or nil if the
// value has no numeric or boolean form.
func propertyPoint(deviceID, deviceType, property string, value any, ts time.Time) *write.Point {
	var fields map[string]any
	switch v := value.(type) {
	case float64:
		fields = map[string]any{"value": v}
	case int:
		fields = map[string]any{"value": float64(v)}
	case bool:
		fields = map[string]any{"state": v}
	default:
		return nil
	}

	tags := deviceTags(deviceID, deviceType)
	tags["property"] = property
	return write.NewPoint(measurementProperty, tags, fields, ts)
}

func eventPoint(deviceID, deviceType, event string, count int, ts time.Time) *write.Point {
	tags := deviceTags(deviceID, deviceType)
	tags["event"] = event
	return write.NewPoint(measurementEvent, tags, map[string]any{"count": count}, ts)
}
