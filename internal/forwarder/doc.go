// Package forwarder publishes bridge notifications to Kafka.
//
// Notifications are keyed by device instance id and written with the hash
// balancer, so every notification for one device lands on the same
// partition in the order the bridge emitted it. Notify never blocks the
// ingress goroutine: when the buffer is full the notification is dropped
// and counted.
//
// Usage:
//
//	fwd := forwarder.New(cfg.Forwarder, logger)
//	fwd.Start(ctx)
//	defer fwd.Stop()
//	// pass fwd as a shelly.Notifier
package forwarder
