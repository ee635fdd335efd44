package mqtt

import (
	"fmt"
	"strings"
)

// Maximum payload size for MQTT messages (1MB).
const maxPayloadSize = 1 << 20

// Publish sends a message and waits for the broker's acknowledgement.
//
// Device commands go out with retained=false; retained messages are for
// state such as bridge health.
//
// Example:
//
//	err := client.Publish("shellies/shelly1-A4CF12/relay/0/command", []byte("on"), 1, false)
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := validatePublishTopic(topic); err != nil {
		return err
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// PublishRetained publishes a retained message with the configured default QoS.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), true)
}

// validatePublishTopic rejects empty topics and topics with wildcards,
// which are only valid in subscriptions.
func validatePublishTopic(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: wildcard in publish topic %q", ErrInvalidTopic, topic)
	}
	return nil
}
