package shelly

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Config holds bridge settings.
type Config struct {
	// BridgeID identifies this bridge in health messages.
	BridgeID string

	// Version is reported in health messages.
	Version string

	// QueueSize is the ingress buffer. Default: 256.
	QueueSize int

	// HealthInterval is how often health is published. Default: 30s.
	HealthInterval time.Duration

	// SubscribeQoS is the QoS of the shellies/# subscription.
	SubscribeQoS byte

	// CommandQoS is the QoS of outbound commands.
	CommandQoS byte

	// DeviceModes maps instance ids to "relay" or "roller".
	DeviceModes map[string]string
}

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message and returns once the broker acknowledged it.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	Config Config

	// MQTTClient is the transport. Required.
	MQTTClient MQTTClient

	// Notifier receives every host-facing notification. Optional.
	Notifier Notifier

	// Recorder stores dispatched commands. Optional.
	Recorder CommandRecorder

	// Logger is optional.
	Logger Logger
}

// Bridge wires the registry, ingress pipeline, dispatcher and health
// reporter around one MQTT connection.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	cfg        Config
	mqtt       MQTTClient
	registry   *Registry
	pipeline   *Pipeline
	dispatcher *Dispatcher
	health     *HealthReporter
	logger     Logger

	stopOnce sync.Once
}

// NewBridge creates a bridge. Call Start to begin operation.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	registry := NewRegistry(RegistryOptions{
		Modes:    opts.Config.DeviceModes,
		Notifier: opts.Notifier,
		Logger:   logger,
	})

	pipeline, err := NewPipeline(PipelineOptions{
		Registry:  registry,
		Notifier:  opts.Notifier,
		QueueSize: opts.Config.QueueSize,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	qos := opts.Config.CommandQoS
	dispatcher, err := NewDispatcher(DispatcherOptions{
		Publisher: opts.MQTTClient,
		Resolver:  registry,
		Recorder:  opts.Recorder,
		QoS:       &qos,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	b := &Bridge{
		cfg:        opts.Config,
		mqtt:       opts.MQTTClient,
		registry:   registry,
		pipeline:   pipeline,
		dispatcher: dispatcher,
		logger:     logger,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  opts.Config.BridgeID,
		Version:   opts.Config.Version,
		Interval:  opts.Config.HealthInterval,
		Publisher: opts.MQTTClient,
		Stats:     b.statsWithDevices,
		Logger:    logger,
	})

	return b, nil
}

// Start subscribes to every Shelly topic and starts the consumer and
// health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logger.Error("failed to publish starting status", "error", err)
	}

	b.pipeline.Start(ctx)

	topic := SubscribeTopic()
	if err := b.mqtt.Subscribe(topic, b.cfg.SubscribeQoS, b.handleMessage); err != nil {
		b.pipeline.Stop()
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}
	b.logger.Info("subscribed to device topics", "topic", topic)

	b.health.Start(ctx)
	if err := b.health.PublishNow(); err != nil {
		b.logger.Error("failed to publish healthy status", "error", err)
	}

	b.logger.Info("bridge started", "bridge_id", b.cfg.BridgeID)
	return nil
}

// Stop shuts the bridge down. Safe to call multiple times.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.pipeline.Stop()
		b.health.Stop()
		b.logger.Info("bridge stopped")
	})
}

// handleMessage is the MQTT callback. It only queues; the pipeline's
// consumer does the work.
func (b *Bridge) handleMessage(topic string, payload []byte) {
	if !b.pipeline.Enqueue(topic, payload) {
		b.logger.Debug("message dropped after shutdown", "topic", topic)
	}
}

// Registry returns the device registry.
func (b *Bridge) Registry() *Registry {
	return b.registry
}

// Devices returns snapshots of every known device.
func (b *Bridge) Devices() []DeviceSnapshot {
	devices := b.registry.List()
	out := make([]DeviceSnapshot, 0, len(devices))
	for _, d := range devices {
		out = append(out, d.Snapshot())
	}
	return out
}

// Device returns a snapshot of one device.
func (b *Bridge) Device(id string) (DeviceSnapshot, error) {
	d, ok := b.registry.Lookup(id)
	if !ok {
		return DeviceSnapshot{}, fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}
	return d.Snapshot(), nil
}

// WriteProperty handles a host property write: the device turns it into
// commands and the dispatcher publishes them. The returned commands are
// the ones attempted.
func (b *Bridge) WriteProperty(ctx context.Context, id, name string, value any) ([]Command, error) {
	d, ok := b.registry.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}
	cmds, err := d.WriteProperty(name, value)
	if err != nil {
		return nil, err
	}
	return cmds, b.dispatcher.ExecuteAll(ctx, cmds)
}

// InvokeAction handles a host action invocation.
func (b *Bridge) InvokeAction(ctx context.Context, id, name string) ([]Command, error) {
	d, ok := b.registry.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}
	cmds, err := d.InvokeAction(name)
	if err != nil {
		return nil, err
	}
	return cmds, b.dispatcher.ExecuteAll(ctx, cmds)
}

// Send publishes a raw sub path and payload to a known device.
func (b *Bridge) Send(ctx context.Context, id, subPath, payload string) error {
	return b.dispatcher.Send(ctx, id, subPath, payload)
}

// IsConnected reports the broker connection state.
func (b *Bridge) IsConnected() bool {
	return b.mqtt.IsConnected()
}

// Stats returns ingress and command counters.
func (b *Bridge) Stats() BridgeStatistics {
	s, _ := b.statsWithDevices()
	return s
}

func (b *Bridge) statsWithDevices() (BridgeStatistics, int) {
	ps := b.pipeline.Stats()
	sent, failed := b.dispatcher.Stats()
	return BridgeStatistics{
		MessagesReceived:  ps.Received,
		MessagesApplied:   ps.Applied,
		MessagesDiscarded: ps.Discarded,
		CommandsSent:      sent,
		CommandsFailed:    failed,
	}, b.registry.Count()
}
