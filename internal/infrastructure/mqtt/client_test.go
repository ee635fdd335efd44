package mqtt

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-shelly/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "shellybridge-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// mockLogger implements Logger for testing.
type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	warns  []string
	errors []string
}

func (l *mockLogger) Info(msg string, _ ...any) {
	l.mu.Lock()
	l.infos = append(l.infos, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

// fakeMessage implements pahomqtt.Message.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

// disconnectedClient is a Client that never connected.
func disconnectedClient() *Client {
	return &Client{cfg: testConfig(), subscriptions: make(map[string]subscription)}
}

// =============================================================================
// Options
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.MQTTAuthConfig{Username: "bridge", Password: "secret"}

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want tcp://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "shellybridge-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "bridge" || opts.Password != "secret" {
		t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
	}
	if !opts.CleanSession || !opts.AutoReconnect {
		t.Error("expected clean session with auto-reconnect")
	}
	if !opts.Order {
		t.Error("expected ordered message delivery")
	}
	if opts.TLSConfig != nil {
		t.Error("TLSConfig should be nil when TLS is disabled")
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := buildClientOptions(cfg)

	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("scheme = %q, want ssl", opts.Servers[0].Scheme)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("expected TLS config with minimum version")
	}
}

func TestConfigureWill(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureWill(opts, nil)
	if opts.WillEnabled {
		t.Error("nil will should leave LWT disabled")
	}

	configureWill(opts, &Will{
		Topic:    "graylogic/health/shelly",
		Payload:  []byte(`{"status":"offline"}`),
		QoS:      1,
		Retained: true,
	})
	if !opts.WillEnabled || opts.WillTopic != "graylogic/health/shelly" {
		t.Errorf("will = %v %q", opts.WillEnabled, opts.WillTopic)
	}
	if string(opts.WillPayload) != `{"status":"offline"}` || opts.WillQos != 1 || !opts.WillRetained {
		t.Errorf("will payload = %s qos=%d retained=%v", opts.WillPayload, opts.WillQos, opts.WillRetained)
	}
}

// =============================================================================
// Validation
// =============================================================================

func TestPublish_Validation(t *testing.T) {
	c := disconnectedClient()

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("on"), 1, ErrInvalidTopic},
		{"wildcard", "shellies/#", []byte("on"), 1, ErrInvalidTopic},
		{"single-level wildcard", "shellies/+/relay/0/command", []byte("on"), 1, ErrInvalidTopic},
		{"invalid QoS", "shellies/shelly1-A/relay/0/command", []byte("on"), 3, ErrInvalidQoS},
		{"oversized", "shellies/shelly1-A/relay/0/command", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"not connected", "shellies/shelly1-A/relay/0/command", []byte("on"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribe_Validation(t *testing.T) {
	c := disconnectedClient()
	handler := func(string, []byte) error { return nil }

	tests := []struct {
		name    string
		topic   string
		qos     byte
		handler MessageHandler
		wantErr error
	}{
		{"empty topic", "", 1, handler, ErrInvalidTopic},
		{"invalid QoS", "shellies/#", 3, handler, ErrInvalidQoS},
		{"nil handler", "shellies/#", 1, nil, ErrSubscribeFailed},
		{"not connected", "shellies/#", 1, handler, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Subscribe(tt.topic, tt.qos, tt.handler)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Subscribe() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if c.SubscriptionCount() != 0 || c.HasSubscription("shellies/#") {
		t.Error("failed subscriptions must not be tracked")
	}
}

func TestUnsubscribe_Validation(t *testing.T) {
	c := disconnectedClient()
	if err := c.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(\"\") error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Unsubscribe("shellies/#"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe() error = %v, want ErrNotConnected", err)
	}
}

// =============================================================================
// Lifecycle
// =============================================================================

func TestCloseNil(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on unconnected client error = %v", err)
	}
}

func TestHealthCheck_Disconnected(t *testing.T) {
	c := disconnectedClient()
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

func TestHandleDisconnect_Callback(t *testing.T) {
	c := disconnectedClient()
	logger := &mockLogger{}
	c.SetLogger(logger)

	var got error
	c.SetOnDisconnect(func(err error) { got = err })
	lost := errors.New("network down")
	c.handleDisconnect(lost)

	if got != lost {
		t.Errorf("OnDisconnect error = %v, want %v", got, lost)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after disconnect")
	}
	if len(logger.warns) != 1 {
		t.Errorf("warns = %v, want one entry", logger.warns)
	}
}

// =============================================================================
// Handler wrapping
// =============================================================================

func TestWrapHandler_DeliversMessage(t *testing.T) {
	c := disconnectedClient()

	var gotTopic, gotPayload string
	wrapped := c.wrapHandler(func(topic string, payload []byte) error {
		gotTopic, gotPayload = topic, string(payload)
		return nil
	})
	wrapped(nil, fakeMessage{topic: "shellies/shelly1-A/relay/0", payload: []byte("on")})

	if gotTopic != "shellies/shelly1-A/relay/0" || gotPayload != "on" {
		t.Errorf("handler got %q %q", gotTopic, gotPayload)
	}
}

func TestWrapHandler_LogsErrorsAndPanics(t *testing.T) {
	c := disconnectedClient()
	logger := &mockLogger{}
	c.SetLogger(logger)

	c.wrapHandler(func(string, []byte) error {
		return errors.New("queue closed")
	})(nil, fakeMessage{topic: "shellies/x-1/online"})

	c.wrapHandler(func(string, []byte) error {
		panic("boom")
	})(nil, fakeMessage{topic: "shellies/x-1/online"})

	if len(logger.warns) != 1 || !strings.Contains(logger.warns[0], "returned error") {
		t.Errorf("warns = %v", logger.warns)
	}
	if len(logger.errors) != 1 || !strings.Contains(logger.errors[0], "panic") {
		t.Errorf("errors = %v", logger.errors)
	}
}

func TestWrapHandler_NoLogger(t *testing.T) {
	c := disconnectedClient()
	c.wrapHandler(func(string, []byte) error {
		panic("boom")
	})(nil, fakeMessage{topic: "shellies/x-1/online"})
}
