package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-shelly/internal/infrastructure/config"
)

// Connection constants.
const (
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout bounds the wait for a publish or subscribe ack.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is in milliseconds.
	defaultDisconnectQuiesce = 1000

	defaultKeepAlive = 60 * time.Second

	maxQoS = 2

	tlsMinVersion = tls.VersionTLS12
)

// brokerURL builds tcp:// or ssl:// from the broker settings.
func brokerURL(cfg config.MQTTConfig) string {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)
}

// buildClientOptions creates paho options from config.
//
// Sessions are clean: subscriptions are restored by the client itself,
// not by the broker.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	opts.AddBroker(brokerURL(cfg))
	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)

	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	// Inbound messages must reach handlers in broker order.
	opts.SetOrderMatters(true)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}

	return opts
}

// configureWill sets the Last Will and Testament. A nil will leaves it unset.
func configureWill(opts *pahomqtt.ClientOptions, will *Will) {
	if will == nil || will.Topic == "" {
		return
	}
	opts.SetBinaryWill(will.Topic, will.Payload, will.QoS, will.Retained)
}
