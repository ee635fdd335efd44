package shelly

import (
	"fmt"
	"sync"
	"time"
)

// HostIDPrefix is prepended to the instance id to form the id the host
// shows for a device.
const HostIDPrefix = "shelly-mqtt-"

// propertyRole ties a property to the command it produces on write and to
// the aggregate it feeds on update.
type propertyRole int

const (
	roleSensor propertyRole = iota
	roleRelay
	roleRelayAggregate
	roleRollerPosition
	rolePowerMeter
	rolePowerTotal
	roleWhiteSwitch
	roleWhiteBrightness
	roleInput
)

// Property is one observable attribute of a device. Its declared type never
// changes after the device is built.
type Property struct {
	Name     string
	Type     ValueType
	ReadOnly bool
	Unit     string

	// Aggregated marks a channel property that also has an aggregate.
	Aggregated bool

	role    propertyRole
	channel int
	min     float64
	max     float64
	ranged  bool

	value any
	set   bool
}

// ActionSpec is a stateless action a device accepts.
type ActionSpec struct {
	Name  string
	Title string

	rollerState string
}

// EventClass classifies an input event.
type EventClass string

// Event classifications.
const (
	EventPress     EventClass = "press"
	EventLongPress EventClass = "longPress"
)

// EventSpec declares an event a device can emit.
type EventSpec struct {
	Name  string
	Input int
	Class EventClass
}

// Device is one physical Shelly device.
//
// Property values are written only by the ingress goroutine. Host-facing
// readers go through Snapshot or Value.
type Device struct {
	id         string
	deviceType DeviceType
	prefix     string
	mode       Mode
	caps       Capabilities

	properties []*Property
	byName     map[string]*Property
	aliases    map[string]string
	actions    []ActionSpec
	events     []EventSpec

	connected bool
	createdAt time.Time
	lastSeen  time.Time

	mu sync.RWMutex
}

// PropertyChange records a property whose cached value changed.
type PropertyChange struct {
	Name  string
	Value any
}

// ID returns the instance id.
func (d *Device) ID() string { return d.id }

// HostID returns the id the host presents for this device.
func (d *Device) HostID() string { return HostIDPrefix + d.id }

// Type returns the device type.
func (d *Device) Type() DeviceType { return d.deviceType }

// AddressPrefix returns the topic segment the device was first heard on.
func (d *Device) AddressPrefix() string { return d.prefix }

// Mode returns the output mode chosen at construction.
func (d *Device) Mode() Mode { return d.mode }

// Capabilities returns the capability descriptor the device was built from.
func (d *Device) Capabilities() Capabilities { return d.caps }

// DeclaredType returns the declared type of a property, resolving aliases.
// ValueUnknown means the device has no such property.
func (d *Device) DeclaredType(name string) ValueType {
	if p := d.property(name); p != nil {
		return p.Type
	}
	return ValueUnknown
}

// Value returns the cached value of a property. ok is false until the
// property has received its first update.
func (d *Device) Value(name string) (value any, ok bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	p := d.property(name)
	if p == nil || !p.set {
		return nil, false
	}
	return p.value, true
}

// Connected returns the last connectivity state reported by the device.
func (d *Device) Connected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// HasEvent reports whether the device declares the named event.
func (d *Device) HasEvent(name string) bool {
	for _, e := range d.events {
		if e.Name == name {
			return true
		}
	}
	return false
}

// property looks a property up by name or alias. The property set is fixed
// after Build, so no lock is needed.
func (d *Device) property(name string) *Property {
	if target, ok := d.aliases[name]; ok {
		name = target
	}
	return d.byName[name]
}

// applyValue stores a decoded value and recomputes any aggregate the
// property feeds. It returns every property whose value changed.
func (d *Device) applyValue(name string, value any) ([]PropertyChange, error) {
	p := d.property(name)
	if p == nil {
		return nil, fmt.Errorf("%w: %s has no property %q", ErrUnknownProperty, d.id, name)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.lastSeen = time.Now().UTC()

	var changes []PropertyChange
	if p.store(value) {
		changes = append(changes, PropertyChange{Name: p.Name, Value: value})
	}

	switch p.role {
	case roleRelay:
		if agg := d.byName["relay"]; agg != nil && agg.role == roleRelayAggregate {
			if v, ok := d.relayAggregate(); ok && agg.store(v) {
				changes = append(changes, PropertyChange{Name: agg.Name, Value: v})
			}
		}
	case rolePowerMeter:
		if total := d.byName["power"]; total != nil && total.role == rolePowerTotal {
			if v, ok := d.powerTotal(); ok && total.store(v) {
				changes = append(changes, PropertyChange{Name: total.Name, Value: v})
			}
		}
	}

	return changes, nil
}

// setConnected stores the connectivity flag and reports whether it changed.
func (d *Device) setConnected(connected bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.lastSeen = time.Now().UTC()
	if d.connected == connected {
		return false
	}
	d.connected = connected
	return true
}

// touch records that a message for the device arrived.
func (d *Device) touch() {
	d.mu.Lock()
	d.lastSeen = time.Now().UTC()
	d.mu.Unlock()
}

// relayAggregate is true when every known member relay is on. Members that
// have not reported yet count as off.
func (d *Device) relayAggregate() (bool, bool) {
	seen := false
	all := true
	for _, p := range d.properties {
		if p.role != roleRelay {
			continue
		}
		on, _ := p.value.(bool)
		if p.set {
			seen = true
		}
		all = all && on
	}
	return all, seen
}

// powerTotal sums every power-meter channel that has reported.
func (d *Device) powerTotal() (float64, bool) {
	var total float64
	seen := false
	for _, p := range d.properties {
		if p.role != rolePowerMeter || !p.set {
			continue
		}
		if v, ok := p.value.(float64); ok {
			total += v
			seen = true
		}
	}
	return total, seen
}

// store sets the cached value and reports whether it changed.
func (p *Property) store(value any) bool {
	if p.set && p.value == value {
		return false
	}
	p.value = value
	p.set = true
	return true
}

// WriteProperty translates a host write into the commands that carry it
// out. The cached value is not touched; it changes when the device reports
// back.
func (d *Device) WriteProperty(name string, value any) ([]Command, error) {
	p := d.property(name)
	if p == nil {
		return nil, fmt.Errorf("%w: %s has no property %q", ErrUnknownProperty, d.id, name)
	}
	if p.ReadOnly {
		return nil, fmt.Errorf("%w: %s.%s", ErrReadOnlyProperty, d.id, p.Name)
	}

	switch p.role {
	case roleRelay:
		on, err := boolValue(value)
		if err != nil {
			return nil, err
		}
		return []Command{d.newCommand(CommandSetRelay, func(c *Command) {
			c.Channel = p.channel
			c.On = on
		})}, nil

	case roleRelayAggregate:
		on, err := boolValue(value)
		if err != nil {
			return nil, err
		}
		var cmds []Command
		for _, member := range d.properties {
			if member.role != roleRelay {
				continue
			}
			ch := member.channel
			cmds = append(cmds, d.newCommand(CommandSetRelay, func(c *Command) {
				c.Channel = ch
				c.On = on
			}))
		}
		return cmds, nil

	case roleRollerPosition:
		pos, err := p.rangedValue(value)
		if err != nil {
			return nil, err
		}
		return []Command{d.newCommand(CommandRollerPosition, func(c *Command) {
			c.Position = pos
		})}, nil

	case roleWhiteSwitch:
		on, err := boolValue(value)
		if err != nil {
			return nil, err
		}
		brightness := d.whiteBrightness()
		return []Command{d.newCommand(CommandSetWhite, func(c *Command) {
			c.Brightness = brightness
			c.On = on
		})}, nil

	case roleWhiteBrightness:
		brightness, err := p.rangedValue(value)
		if err != nil {
			return nil, err
		}
		on := d.whiteOn()
		return []Command{d.newCommand(CommandSetWhite, func(c *Command) {
			c.Brightness = brightness
			c.On = on
		})}, nil

	default:
		return nil, fmt.Errorf("%w: %s.%s", ErrReadOnlyProperty, d.id, p.Name)
	}
}

// InvokeAction translates a host action into commands.
func (d *Device) InvokeAction(name string) ([]Command, error) {
	for _, a := range d.actions {
		if a.Name != name {
			continue
		}
		state := a.rollerState
		return []Command{d.newCommand(CommandRollerState, func(c *Command) {
			c.State = state
		})}, nil
	}
	return nil, fmt.Errorf("%w: %s has no action %q", ErrUnknownAction, d.id, name)
}

// whiteBrightness returns the cached dimmer brightness, full when unknown.
func (d *Device) whiteBrightness() int {
	if v, ok := d.Value("brightness"); ok {
		if f, isNum := v.(float64); isNum {
			return int(f)
		}
	}
	return 100
}

// whiteOn returns the cached dimmer switch state, on when unknown.
func (d *Device) whiteOn() bool {
	if v, ok := d.Value("light"); ok {
		if on, isBool := v.(bool); isBool {
			return on
		}
	}
	return true
}

// rangedValue validates a numeric write against the property's bounds.
func (p *Property) rangedValue(value any) (int, error) {
	f, err := numberValue(value)
	if err != nil {
		return 0, err
	}
	if p.ranged && (f < p.min || f > p.max) {
		return 0, fmt.Errorf("%w: %s must be between %g and %g, got %g", ErrInvalidValue, p.Name, p.min, p.max, f)
	}
	return int(f), nil
}

// boolValue accepts a boolean host value.
func boolValue(value any) (bool, error) {
	b, ok := value.(bool)
	if !ok {
		return false, fmt.Errorf("%w: expected boolean, got %T", ErrInvalidValue, value)
	}
	return b, nil
}

// numberValue accepts the numeric types JSON decoding and Go callers produce.
func numberValue(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("%w: expected number, got %T", ErrInvalidValue, value)
	}
}

// PropertySnapshot is a point-in-time copy of a property.
type PropertySnapshot struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	ReadOnly   bool   `json:"read_only"`
	Unit       string `json:"unit,omitempty"`
	Aggregated bool   `json:"aggregated,omitempty"`
	Value      any    `json:"value"`
}

// DeviceSnapshot is a point-in-time copy of a device for host consumers.
type DeviceSnapshot struct {
	ID            string             `json:"id"`
	HostID        string             `json:"host_id"`
	Type          string             `json:"type"`
	Mode          Mode               `json:"mode,omitempty"`
	AddressPrefix string             `json:"address_prefix"`
	Connected     bool               `json:"connected"`
	Properties    []PropertySnapshot `json:"properties"`
	Actions       []string           `json:"actions,omitempty"`
	Events        []string           `json:"events,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	LastSeen      time.Time          `json:"last_seen"`
}

// Snapshot copies the device's catalog and cached values.
func (d *Device) Snapshot() DeviceSnapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()

	snap := DeviceSnapshot{
		ID:            d.id,
		HostID:        d.HostID(),
		Type:          d.deviceType.String(),
		AddressPrefix: d.prefix,
		Connected:     d.connected,
		Properties:    make([]PropertySnapshot, 0, len(d.properties)),
		CreatedAt:     d.createdAt,
		LastSeen:      d.lastSeen,
	}
	if len(d.caps.RelayChannels) > 0 || d.caps.HasRoller {
		snap.Mode = d.mode
	}

	for _, p := range d.properties {
		ps := PropertySnapshot{
			Name:       p.Name,
			Type:       p.Type.String(),
			ReadOnly:   p.ReadOnly,
			Unit:       p.Unit,
			Aggregated: p.Aggregated,
		}
		if p.set {
			ps.Value = p.value
		}
		snap.Properties = append(snap.Properties, ps)
	}
	for _, a := range d.actions {
		snap.Actions = append(snap.Actions, a.Name)
	}
	for _, e := range d.events {
		snap.Events = append(snap.Events, e.Name)
	}

	return snap
}
