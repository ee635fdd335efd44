// Package shelly implements the Shelly MQTT bridge.
//
// Shelly devices publish their state on loosely structured topics under
// the "shellies" root and accept commands on sibling topics. This package
// turns those topics into typed devices with properties, events and
// actions, and turns host writes back into outbound topic/payload pairs.
//
// # Architecture
//
//	┌──────────────┐  shellies/#   ┌───────────────────────────────────┐
//	│ MQTT broker  │──────────────►│ Ingress: parse → resolve → decode │
//	│              │               │          → apply                  │
//	│              │◄──────────────│ Dispatcher: command → topic       │
//	└──────────────┘  shellies/<prefix>/<subpath>  └──────────────────┘
//
// # Key Responsibilities
//
//   - Parse inbound topics into a TopicIdentifier (ParseTopic)
//   - Decode payloads into typed values, events and connectivity changes (Decode)
//   - Build a device's property set once from its capability descriptor (Build)
//   - Keep one Device per instance for the process lifetime (Registry)
//   - Address commands to the prefix a device was first heard on (Dispatcher)
//
// # Ordering
//
// Inbound messages are queued and applied by a single goroutine in arrival
// order. Property values are therefore only mutated from that goroutine;
// readers take a snapshot.
//
// # Thread Safety
//
// All exported types are safe for concurrent use from multiple goroutines.
package shelly
