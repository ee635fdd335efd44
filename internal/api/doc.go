// Package api implements the host-facing HTTP API and WebSocket feed of the
// Shelly bridge.
//
// This package provides:
//   - REST endpoints to list devices, read snapshots, write properties and
//     invoke actions
//   - A read-only view of the command log
//   - A WebSocket hub that relays bridge notifications as they happen
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// Reads are served from device snapshots. Writes go through the bridge,
// which translates them into commands and publishes them to the device's
// own topic prefix. Nothing here touches device state directly; the cache
// only changes when the device reports back over MQTT.
//
// The Hub implements shelly.Notifier, so it can sit in the bridge's
// notifier chain and push device_added, property_changed, event and
// connectivity messages to subscribed clients.
package api
