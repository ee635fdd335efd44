package shelly

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// defaultCommandQoS is the QoS used for outbound commands.
const defaultCommandQoS = 1

// Publisher is the transport the dispatcher publishes through. Publish
// must return only once the transport has acknowledged the message.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// AddressResolver maps an instance id to the topic prefix it was first
// heard on. *Registry implements it.
type AddressResolver interface {
	AddressPrefix(instanceID string) (string, bool)
}

// CommandRecorder stores a history of outbound commands. It is optional.
type CommandRecorder interface {
	RecordCommand(ctx context.Context, rec CommandRecord) error
}

// CommandRecord is one dispatched command and its outcome.
type CommandRecord struct {
	Command Command
	Topic   string
	Payload string
	Err     error
	SentAt  time.Time
}

// Dispatcher turns commands into publishes on the device's own prefix.
//
// Thread Safety: All methods are safe for concurrent use.
type Dispatcher struct {
	publisher Publisher
	resolver  AddressResolver
	recorder  CommandRecorder
	qos       byte
	logger    Logger

	sent   atomic.Uint64
	failed atomic.Uint64
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	// Publisher is the MQTT transport. Required.
	Publisher Publisher

	// Resolver resolves instance ids to address prefixes. Required.
	Resolver AddressResolver

	// Recorder is an optional command history sink.
	Recorder CommandRecorder

	// QoS for outbound commands. Default: 1.
	QoS *byte

	// Logger is optional.
	Logger Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(opts DispatcherOptions) (*Dispatcher, error) {
	if opts.Publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if opts.Resolver == nil {
		return nil, fmt.Errorf("address resolver is required")
	}

	d := &Dispatcher{
		publisher: opts.Publisher,
		resolver:  opts.Resolver,
		recorder:  opts.Recorder,
		qos:       defaultCommandQoS,
		logger:    opts.Logger,
	}
	if opts.QoS != nil {
		d.qos = *opts.QoS
	}
	if d.logger == nil {
		d.logger = noopLogger{}
	}
	return d, nil
}

// Send publishes payload to shellies/<prefix>/<subPath> for a device that
// has been heard from. It returns ErrUnknownDevice without publishing when
// no prefix is recorded, and a wrapped ErrTransport when the publish
// fails. There is no retry.
func (d *Dispatcher) Send(ctx context.Context, instanceID, subPath, payload string) error {
	_, err := d.send(ctx, instanceID, subPath, payload)
	return err
}

// send resolves the topic and publishes, returning the topic used.
func (d *Dispatcher) send(ctx context.Context, instanceID, subPath, payload string) (string, error) {
	prefix, ok := d.resolver.AddressPrefix(instanceID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownDevice, instanceID)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	topic := CommandTopic(prefix, subPath)
	d.logger.Info("sending command", "topic", topic, "payload", payload)

	done := make(chan error, 1)
	go func() {
		done <- d.publisher.Publish(topic, []byte(payload), d.qos, false)
	}()

	select {
	case err := <-done:
		if err != nil {
			d.failed.Add(1)
			return topic, fmt.Errorf("%w: %s: %w", ErrTransport, topic, err)
		}
		d.sent.Add(1)
		return topic, nil
	case <-ctx.Done():
		d.failed.Add(1)
		return topic, fmt.Errorf("%w: %s: %w", ErrTransport, topic, ctx.Err())
	}
}

// Execute translates a command and sends it.
func (d *Dispatcher) Execute(ctx context.Context, cmd Command) error {
	subPath, payload, err := cmd.Translate()
	if err != nil {
		return err
	}

	topic, err := d.send(ctx, cmd.DeviceID, subPath, payload)
	if errors.Is(err, ErrUnknownDevice) {
		return err
	}

	if d.recorder != nil {
		rec := CommandRecord{Command: cmd, Topic: topic, Payload: payload, Err: err, SentAt: time.Now().UTC()}
		if recErr := d.recorder.RecordCommand(ctx, rec); recErr != nil {
			d.logger.Warn("failed to record command", "command_id", cmd.ID, "error", recErr)
		}
	}

	return err
}

// ExecuteAll sends every command, continuing past failures, and returns
// the joined errors.
func (d *Dispatcher) ExecuteAll(ctx context.Context, cmds []Command) error {
	var errs []error
	for _, cmd := range cmds {
		if err := d.Execute(ctx, cmd); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stats returns the number of successful and failed publishes.
func (d *Dispatcher) Stats() (sent, failed uint64) {
	return d.sent.Load(), d.failed.Load()
}
