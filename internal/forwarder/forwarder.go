package forwarder

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/nerrad567/gray-logic-shelly/internal/bridges/shelly"
	"github.com/nerrad567/gray-logic-shelly/internal/infrastructure/config"
)

// Defaults.
const (
	defaultBufferSize   = 1024
	defaultBatchTimeout = 100 * time.Millisecond
	maxBatch            = 100
	writeTimeout        = 10 * time.Second
)

// Header names attached to every message.
const (
	HeaderKind       = "kind"
	HeaderDeviceType = "device_type"
)

// MessageWriter is the subset of *kafka.Writer the forwarder uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Logger is the logging interface used by the forwarder.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Stats holds forwarding counters.
type Stats struct {
	Sent    uint64 `json:"sent"`
	Dropped uint64 `json:"dropped"`
	Failed  uint64 `json:"failed"`
}

// Options configures a Forwarder built around an existing writer.
type Options struct {
	BufferSize   int
	BatchTimeout time.Duration
	Logger       Logger
}

// Forwarder batches notifications and writes them to Kafka.
//
// Thread Safety: Notify may be called from any goroutine.
type Forwarder struct {
	writer       MessageWriter
	input        chan kafka.Message
	batchTimeout time.Duration
	logger       Logger

	started   atomic.Bool
	stopped   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	done      chan struct{}

	sent    atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// New creates a forwarder writing to the configured brokers and topic.
func New(cfg config.ForwarderConfig, logger Logger) *Forwarder {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    maxBatch,
		BatchTimeout: time.Duration(cfg.BatchTimeout) * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return NewWithWriter(writer, Options{
		BufferSize:   cfg.BufferSize,
		BatchTimeout: time.Duration(cfg.BatchTimeout) * time.Millisecond,
		Logger:       logger,
	})
}

// NewWithWriter creates a forwarder around w.
func NewWithWriter(w MessageWriter, opts Options) *Forwarder {
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}
	if opts.BatchTimeout <= 0 {
		opts.BatchTimeout = defaultBatchTimeout
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	return &Forwarder{
		writer:       w,
		input:        make(chan kafka.Message, opts.BufferSize),
		batchTimeout: opts.BatchTimeout,
		logger:       opts.Logger,
		stopCh:       make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start launches the batching loop. Calling it again has no effect.
func (f *Forwarder) Start(ctx context.Context) {
	f.startOnce.Do(func() {
		f.started.Store(true)
		go f.loop(ctx)
	})
}

// Stop flushes buffered notifications and closes the writer.
func (f *Forwarder) Stop() {
	f.stopOnce.Do(func() {
		f.stopped.Store(true)
		close(f.stopCh)
		if f.started.Load() {
			<-f.done
		}
		if err := f.writer.Close(); err != nil {
			f.logger.Warn("closing kafka writer", "error", err)
		}
	})
}

// Notify queues a notification. It never blocks.
func (f *Forwarder) Notify(n shelly.Notification) {
	if f.stopped.Load() {
		f.dropped.Add(1)
		return
	}

	msg, err := toMessage(n)
	if err != nil {
		f.logger.Warn("encoding notification", "kind", n.Kind, "device_id", n.DeviceID, "error", err)
		f.dropped.Add(1)
		return
	}

	select {
	case f.input <- msg:
	default:
		f.dropped.Add(1)
		f.logger.Debug("forwarder buffer full, notification dropped", "kind", n.Kind, "device_id", n.DeviceID)
	}
}

// Stats returns the forwarding counters.
func (f *Forwarder) Stats() Stats {
	return Stats{
		Sent:    f.sent.Load(),
		Dropped: f.dropped.Load(),
		Failed:  f.failed.Load(),
	}
}

// toMessage encodes a notification keyed by its device id.
func toMessage(n shelly.Notification) (kafka.Message, error) {
	value, err := json.Marshal(n)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(n.DeviceID),
		Value: value,
		Time:  n.Timestamp,
		Headers: []kafka.Header{
			{Key: HeaderKind, Value: []byte(n.Kind)},
			{Key: HeaderDeviceType, Value: []byte(n.DeviceType)},
		},
	}, nil
}

func (f *Forwarder) loop(ctx context.Context) {
	defer close(f.done)

	batch := make([]kafka.Message, 0, maxBatch)
	ticker := time.NewTicker(f.batchTimeout)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Flushes outlive ctx so Stop can drain after shutdown began.
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
		err := f.writer.WriteMessages(writeCtx, batch...)
		cancel()
		if err != nil {
			f.failed.Add(uint64(len(batch)))
			f.logger.Warn("writing notifications to kafka", "count", len(batch), "error", err)
		} else {
			f.sent.Add(uint64(len(batch)))
		}
		batch = batch[:0]
	}

	drain := func() {
		for {
			select {
			case m := <-f.input:
				batch = append(batch, m)
				if len(batch) >= maxBatch {
					flush()
				}
			default:
				flush()
				return
			}
		}
	}

	for {
		select {
		case m := <-f.input:
			batch = append(batch, m)
			if len(batch) >= maxBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-f.stopCh:
			drain()
			return
		case <-ctx.Done():
			drain()
			return
		}
	}
}
