package shelly

import (
	"fmt"
	"strings"
	"sync"
)

// Logger is the structured logger used throughout the package.
// It is satisfied by *logging.Logger and *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards everything.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry owns every known device, keyed by instance id. Devices are
// created on first sight and never removed.
//
// Thread Safety: All methods are safe for concurrent use. Creation is
// serialised so concurrent first sightings of one instance build it once.
type Registry struct {
	devices map[string]*Device
	order   []string
	modes   map[string]string

	notifier Notifier
	logger   Logger

	mu sync.RWMutex
}

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// Modes maps instance ids to an output mode ("relay" or "roller").
	// Instances not listed run in relay mode.
	Modes map[string]string

	// Notifier receives a device_added notification once per instance.
	Notifier Notifier

	// Logger is optional.
	Logger Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(opts RegistryOptions) *Registry {
	r := &Registry{
		devices:  make(map[string]*Device),
		modes:    make(map[string]string, len(opts.Modes)),
		notifier: opts.Notifier,
		logger:   opts.Logger,
	}
	for id, mode := range opts.Modes {
		r.modes[id] = mode
	}
	if r.logger == nil {
		r.logger = noopLogger{}
	}
	return r
}

// GetOrCreate returns the device for ident.InstanceID, building and
// registering it on first sight. An unknown device type yields
// ErrUnknownDeviceType and no entry.
func (r *Registry) GetOrCreate(ident TopicIdentifier) (*Device, error) {
	r.mu.RLock()
	d, ok := r.devices[ident.InstanceID]
	r.mu.RUnlock()
	if ok {
		return d, nil
	}

	dt, err := ParseDeviceType(ident.DeviceType)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another caller may have created it while we waited for the lock.
	if d, ok := r.devices[ident.InstanceID]; ok {
		return d, nil
	}

	mode := r.resolveMode(ident.InstanceID, dt)
	caps, err := CapabilitiesFor(dt, mode)
	if err != nil {
		return nil, fmt.Errorf("building %s: %w", ident.InstanceID, err)
	}

	d = Build(ident.InstanceID, ident.AddressPrefix, dt, mode, caps)
	r.devices[ident.InstanceID] = d
	r.order = append(r.order, ident.InstanceID)

	r.logger.Info("device created",
		"device_id", d.ID(),
		"type", dt.String(),
		"mode", string(d.Mode()),
		"prefix", ident.AddressPrefix)

	if r.notifier != nil {
		r.notifier.Notify(NewDeviceAdded(d))
	}

	return d, nil
}

// resolveMode picks the configured mode for an instance, falling back to
// relay mode with a diagnostic when the value is unusable.
func (r *Registry) resolveMode(instanceID string, dt DeviceType) Mode {
	raw := r.modes[instanceID]
	mode, ok := ParseMode(raw)
	if !ok {
		r.logger.Warn("unknown device mode, assuming relay",
			"device_id", instanceID, "mode", raw)
	}
	if mode == ModeRoller && !dt.RollerCapable() {
		r.logger.Warn("device type cannot run as roller, assuming relay",
			"device_id", instanceID, "type", dt.String())
		mode = ModeRelay
	}
	return mode
}

// Lookup returns a device by instance id. The host id form
// ("shelly-mqtt-<id>") is accepted too.
func (r *Registry) Lookup(instanceID string) (*Device, bool) {
	instanceID = strings.TrimPrefix(instanceID, HostIDPrefix)

	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[instanceID]
	return d, ok
}

// AddressPrefix returns the inbound topic prefix recorded for an instance.
func (r *Registry) AddressPrefix(instanceID string) (string, bool) {
	d, ok := r.Lookup(instanceID)
	if !ok {
		return "", false
	}
	return d.AddressPrefix(), true
}

// List returns every device in order of first sight.
func (r *Registry) List() []*Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Device, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.devices[id])
	}
	return out
}

// Count returns the number of known devices.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}
