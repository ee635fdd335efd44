package shelly

import (
	"time"

	"github.com/google/uuid"
)

// NotificationKind classifies what the bridge tells the host.
type NotificationKind string

const (
	// NotificationDeviceAdded is sent once per instance when it is first seen.
	NotificationDeviceAdded NotificationKind = "device_added"

	// NotificationPropertyChanged is sent when a cached value changes.
	NotificationPropertyChanged NotificationKind = "property_changed"

	// NotificationEvent is sent for every emitted input event.
	NotificationEvent NotificationKind = "event"

	// NotificationConnectivity is sent when a device goes online or offline.
	NotificationConnectivity NotificationKind = "connectivity"
)

// Notification is one outward message from the bridge to the host.
type Notification struct {
	ID         string           `json:"id"`
	Kind       NotificationKind `json:"kind"`
	DeviceID   string           `json:"device_id"`
	DeviceType string           `json:"device_type"`
	Timestamp  time.Time        `json:"timestamp"`

	// Property and Value are set for property_changed.
	Property string `json:"property,omitempty"`
	Value    any    `json:"value,omitempty"`

	// Event is set for event.
	Event *EventSignal `json:"event,omitempty"`

	// Connected is set for connectivity.
	Connected *bool `json:"connected,omitempty"`

	// Device is set for device_added.
	Device *DeviceSnapshot `json:"device,omitempty"`
}

// Notifier receives bridge notifications. Implementations must not block;
// they are called from the ingress goroutine.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(n Notification)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notification) { f(n) }

// MultiNotifier fans a notification out to several notifiers in order.
type MultiNotifier []Notifier

// Notify forwards n to every non-nil notifier.
func (m MultiNotifier) Notify(n Notification) {
	for _, notifier := range m {
		if notifier != nil {
			notifier.Notify(n)
		}
	}
}

// newNotification stamps a notification for a device.
func newNotification(kind NotificationKind, d *Device) Notification {
	return Notification{
		ID:         "ntf-" + uuid.NewString()[:8],
		Kind:       kind,
		DeviceID:   d.ID(),
		DeviceType: d.Type().String(),
		Timestamp:  time.Now().UTC(),
	}
}

// NewDeviceAdded creates a device_added notification.
func NewDeviceAdded(d *Device) Notification {
	n := newNotification(NotificationDeviceAdded, d)
	snap := d.Snapshot()
	n.Device = &snap
	return n
}

// NewPropertyChanged creates a property_changed notification.
func NewPropertyChanged(d *Device, change PropertyChange) Notification {
	n := newNotification(NotificationPropertyChanged, d)
	n.Property = change.Name
	n.Value = change.Value
	return n
}

// NewEventNotification creates an event notification.
func NewEventNotification(d *Device, ev EventSignal) Notification {
	n := newNotification(NotificationEvent, d)
	n.Event = &ev
	return n
}

// NewConnectivity creates a connectivity notification.
func NewConnectivity(d *Device, connected bool) Notification {
	n := newNotification(NotificationConnectivity, d)
	n.Connected = &connected
	return n
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	// HealthHealthy indicates the bridge is operating normally.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the bridge is running without a broker link.
	HealthDegraded HealthStatus = "degraded"

	// HealthOffline is published by the broker as the last will.
	HealthOffline HealthStatus = "offline"

	// HealthStarting indicates the bridge is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports the bridge's operational status.
// Topic: graylogic/health/shelly
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Bridge        string       `json:"bridge"`
	Timestamp     time.Time    `json:"timestamp"`
	Status        HealthStatus `json:"status"`
	Version       string       `json:"version,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`

	// DevicesManaged is the number of devices in the registry.
	DevicesManaged int `json:"devices_managed"`

	// Statistics contains ingress and command counters.
	Statistics *BridgeStatistics `json:"statistics,omitempty"`

	// Reason explains the status (especially for offline/degraded).
	Reason string `json:"reason,omitempty"`
}

// BridgeStatistics contains operational counters.
type BridgeStatistics struct {
	MessagesReceived  uint64 `json:"messages_received"`
	MessagesApplied   uint64 `json:"messages_applied"`
	MessagesDiscarded uint64 `json:"messages_discarded"`
	CommandsSent      uint64 `json:"commands_sent"`
	CommandsFailed    uint64 `json:"commands_failed"`
}

// HealthTopicPrefix is the base topic for bridge health.
const HealthTopicPrefix = "graylogic"

// HealthTopic returns the retained health topic.
// Example: graylogic/health/shelly
func HealthTopic() string {
	return HealthTopicPrefix + "/health/shelly"
}

// NewLWTMessage creates the last-will message the broker publishes if the
// bridge disappears without a clean shutdown.
func NewLWTMessage(bridgeID string) HealthMessage {
	return HealthMessage{
		Bridge:    bridgeID,
		Timestamp: time.Now().UTC(),
		Status:    HealthOffline,
		Reason:    "unexpected_disconnect",
	}
}
