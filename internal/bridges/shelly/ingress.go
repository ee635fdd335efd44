package shelly

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// defaultQueueSize is the ingress buffer when none is configured.
const defaultQueueSize = 256

// Stage is where a message ended up in the ingress pipeline.
type Stage int

const (
	// StageDiscarded means the message was dropped before being applied.
	StageDiscarded Stage = iota
	// StageApplied means the message changed device state or was emitted.
	StageApplied
)

// String returns the stage name.
func (s Stage) String() string {
	if s == StageApplied {
		return "applied"
	}
	return "discarded"
}

// inboundMessage is one queued transport message.
type inboundMessage struct {
	topic   string
	payload string
}

// Pipeline applies inbound messages to the registry in arrival order.
//
// Messages are handed over with Enqueue and consumed by a single goroutine,
// so property values are never mutated concurrently.
type Pipeline struct {
	registry *Registry
	notifier Notifier
	logger   Logger

	queue    chan inboundMessage
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	received  atomic.Uint64
	applied   atomic.Uint64
	discarded atomic.Uint64
}

// PipelineOptions configures a Pipeline.
type PipelineOptions struct {
	// Registry is required.
	Registry *Registry

	// Notifier receives property, event and connectivity notifications.
	Notifier Notifier

	// QueueSize is the ingress buffer. Default: 256.
	QueueSize int

	// Logger is optional.
	Logger Logger
}

// PipelineStats are the ingress counters.
type PipelineStats struct {
	Received  uint64
	Applied   uint64
	Discarded uint64
}

// NewPipeline creates a pipeline. Call Start to begin consuming.
func NewPipeline(opts PipelineOptions) (*Pipeline, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}

	p := &Pipeline{
		registry: opts.Registry,
		notifier: opts.Notifier,
		logger:   opts.Logger,
		queue:    make(chan inboundMessage, size),
		done:     make(chan struct{}),
	}
	if p.logger == nil {
		p.logger = noopLogger{}
	}
	return p, nil
}

// Start launches the consumer goroutine.
func (p *Pipeline) Start(ctx context.Context) {
	p.wg.Add(1)
	go p.run(ctx)
}

// Stop stops the consumer and waits for it to exit. Messages still queued
// are dropped. Safe to call multiple times.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
	})
}

// Enqueue hands a message to the consumer. It blocks while the queue is
// full so arrival order is kept, and returns false once the pipeline has
// stopped.
func (p *Pipeline) Enqueue(topic string, payload []byte) bool {
	msg := inboundMessage{topic: topic, payload: string(payload)}
	select {
	case <-p.done:
		return false
	default:
	}

	select {
	case p.queue <- msg:
		return true
	case <-p.done:
		return false
	}
}

// Stats returns the ingress counters.
func (p *Pipeline) Stats() PipelineStats {
	return PipelineStats{
		Received:  p.received.Load(),
		Applied:   p.applied.Load(),
		Discarded: p.discarded.Load(),
	}
}

// run is the single consumer.
func (p *Pipeline) run(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case msg := <-p.queue:
			p.handle(msg)
		}
	}
}

// handle processes one message and logs why it was discarded, if it was.
// Nothing here may stop the consumer.
func (p *Pipeline) handle(msg inboundMessage) {
	defer func() {
		if r := recover(); r != nil {
			p.discarded.Add(1)
			p.logger.Error("ingress panic recovered", "topic", msg.topic, "panic", r)
		}
	}()

	stage, err := p.Process(msg.topic, msg.payload)
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, ErrMalformedTopic), errors.Is(err, ErrUnknownDeviceType):
		p.logger.Debug("message discarded", "topic", msg.topic, "stage", stage.String(), "error", err)
	case errors.Is(err, ErrDecode):
		p.logger.Warn("message discarded", "topic", msg.topic, "payload", msg.payload, "error", err)
	default:
		p.logger.Warn("message discarded", "topic", msg.topic, "error", err)
	}
}

// Process runs one message through parse, resolve, decode and apply. It is
// called by the consumer goroutine; tests call it directly.
func (p *Pipeline) Process(topic, payload string) (Stage, error) {
	p.received.Add(1)
	p.logger.Debug("message received", "topic", topic, "payload", payload)

	stage, err := p.process(topic, payload)
	if stage == StageApplied {
		p.applied.Add(1)
	} else {
		p.discarded.Add(1)
	}
	return stage, err
}

func (p *Pipeline) process(topic, payload string) (Stage, error) {
	ident, err := ParseTopic(topic)
	if err != nil {
		return StageDiscarded, err
	}

	dev, err := p.registry.GetOrCreate(ident)
	if err != nil {
		return StageDiscarded, err
	}

	decoded, err := Decode(dev.Type(), ident.Property, dev.DeclaredType(ident.Property), payload)
	if err != nil {
		return StageDiscarded, fmt.Errorf("%s: %w", dev.ID(), err)
	}

	switch decoded.Kind {
	case DecodedUnchanged:
		dev.touch()
		return StageDiscarded, nil

	case DecodedValue:
		changes, err := dev.applyValue(ident.Property, decoded.Value)
		if err != nil {
			return StageDiscarded, err
		}
		for _, c := range changes {
			p.notify(NewPropertyChanged(dev, c))
		}

	case DecodedEvent:
		if !dev.HasEvent(decoded.Event.Name) {
			return StageDiscarded, fmt.Errorf("%w: %s has no event %q", ErrUnknownProperty, dev.ID(), decoded.Event.Name)
		}
		dev.touch()
		p.logger.Info("emitting event", "device_id", dev.ID(), "event", decoded.Event.Name)
		p.notify(NewEventNotification(dev, decoded.Event))

	case DecodedConnectivity:
		if dev.setConnected(decoded.Online) {
			p.notify(NewConnectivity(dev, decoded.Online))
		}
	}

	return StageApplied, nil
}

func (p *Pipeline) notify(n Notification) {
	if p.notifier != nil {
		p.notifier.Notify(n)
	}
}
