// Package mqtt provides the broker connection for the Shelly bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS and acknowledgement
//   - Wildcard subscriptions restored after reconnect
//   - Last Will and Testament for bridge health
//
// Shelly devices publish on shellies/<type>-<id>/... and take commands on
// the same prefix. The bridge subscribes once to shellies/# and publishes
// commands per device.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, &mqtt.Will{Topic: topic, Payload: lwt, QoS: 1, Retained: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe("shellies/#", 1, func(topic string, payload []byte) error {
//	    return nil
//	})
//
//	client.Publish("shellies/shelly1-A4CF12/relay/0/command", []byte("on"), 1, false)
package mqtt
