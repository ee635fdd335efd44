package shelly

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// defaultHealthInterval is used when no interval is configured.
const defaultHealthInterval = 30 * time.Second

// HealthPublisher is the interface for publishing health messages.
// This is typically implemented by an MQTT client.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// HealthReporter publishes the bridge's status on a retained topic at a
// fixed interval.
type HealthReporter struct {
	bridgeID  string
	version   string
	startTime time.Time
	interval  time.Duration
	publisher HealthPublisher
	stats     func() (BridgeStatistics, int)

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger Logger
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	BridgeID string
	Version  string

	// Interval is how often to publish. Default: 30 seconds.
	Interval time.Duration

	// Publisher is the MQTT client.
	Publisher HealthPublisher

	// Stats returns current counters and the managed device count.
	Stats func() (BridgeStatistics, int)

	// Logger is optional.
	Logger Logger
}

// NewHealthReporter creates a health reporter. Call Start to begin.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	h := &HealthReporter{
		bridgeID:  cfg.BridgeID,
		version:   cfg.Version,
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		stats:     cfg.Stats,
		done:      make(chan struct{}),
		logger:    cfg.Logger,
	}
	if h.logger == nil {
		h.logger = noopLogger{}
	}
	return h
}

// Start begins periodic reporting until ctx is cancelled or Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop ends reporting and publishes a final "stopping" status.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		//nolint:errcheck // Best-effort during shutdown
		h.publishStatus(HealthStopping, "")
	})
}

// PublishStarting publishes a "starting" status.
func (h *HealthReporter) PublishStarting() error {
	return h.publishStatus(HealthStarting, "bridge starting")
}

// PublishNow publishes the current status immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publishStatus(status, reason)
}

// LWTPayload returns the last-will payload to configure on the connection.
func (h *HealthReporter) LWTPayload() ([]byte, error) {
	return json.Marshal(NewLWTMessage(h.bridgeID))
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logger.Error("failed to publish health", "error", err)
			}
		}
	}
}

// determineStatus evaluates the current bridge status.
func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.publisher == nil || !h.publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}
	return HealthHealthy, ""
}

// BuildMessage assembles a health message for the given status.
func (h *HealthReporter) BuildMessage(status HealthStatus, reason string) HealthMessage {
	msg := HealthMessage{
		Bridge:        h.bridgeID,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Reason:        reason,
	}
	if h.stats != nil {
		stats, devices := h.stats()
		msg.Statistics = &stats
		msg.DevicesManaged = devices
	}
	return msg
}

// publishStatus publishes a health message (QoS 1, retained).
func (h *HealthReporter) publishStatus(status HealthStatus, reason string) error {
	if h.publisher == nil {
		return nil
	}

	payload, err := json.Marshal(h.BuildMessage(status, reason))
	if err != nil {
		return err
	}
	return h.publisher.Publish(HealthTopic(), payload, 1, true)
}
