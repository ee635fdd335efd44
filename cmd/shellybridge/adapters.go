package main

import (
	"github.com/nerrad567/gray-logic-shelly/internal/bridges/shelly"
	"github.com/nerrad567/gray-logic-shelly/internal/infrastructure/mqtt"
)

// mqttBridgeAdapter adapts the infrastructure MQTT client to the bridge's
// MQTTClient interface. The infrastructure handler returns an error; the
// bridge's handler does not.
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

// Publish implements shelly.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements shelly.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// IsConnected implements shelly.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}

// telemetryWriter is the subset of *influxdb.Client the telemetry notifier uses.
type telemetryWriter interface {
	WritePropertyValue(deviceID, deviceType, property string, value any)
	WriteEvent(deviceID, deviceType, event string, count int)
	WriteConnectivity(deviceID, deviceType string, connected bool)
}

// telemetryNotifier turns bridge notifications into InfluxDB points.
// Writes are batched by the Influx client, so Notify does not block.
type telemetryNotifier struct {
	writer telemetryWriter
}

// Notify implements shelly.Notifier.
func (t *telemetryNotifier) Notify(n shelly.Notification) {
	switch n.Kind {
	case shelly.NotificationPropertyChanged:
		t.writer.WritePropertyValue(n.DeviceID, n.DeviceType, n.Property, n.Value)
	case shelly.NotificationEvent:
		if n.Event != nil {
			t.writer.WriteEvent(n.DeviceID, n.DeviceType, n.Event.Name, n.Event.Count)
		}
	case shelly.NotificationConnectivity:
		if n.Connected != nil {
			t.writer.WriteConnectivity(n.DeviceID, n.DeviceType, *n.Connected)
		}
	}
}
