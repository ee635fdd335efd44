package shelly

import (
	"fmt"
	"slices"
)

// maxRelayChannels bounds relay and power-meter channel probing.
const maxRelayChannels = 4

// DeviceType is the closed set of Shelly models the bridge can model.
// Adding a model means adding a constant, a name and a case in
// CapabilitiesFor.
type DeviceType int

// Supported device types.
const (
	DeviceUnknown DeviceType = iota
	DeviceShellyHT
	DeviceShellyHTPlus
	DeviceShellyDoorWindow2
	DeviceShelly1
	DeviceShelly1L
	DeviceShelly1PM
	DeviceShellyPlugS
	DeviceShelly25
	DeviceShelly4Pro
	DeviceShellyDimmer
)

// deviceTypeNames maps each type to the name it announces in its topic.
var deviceTypeNames = map[DeviceType]string{
	DeviceShellyHT:          "shellyht",
	DeviceShellyHTPlus:      "shellyplusht",
	DeviceShellyDoorWindow2: "shellydw2",
	DeviceShelly1:           "shelly1",
	DeviceShelly1L:          "shelly1l",
	DeviceShelly1PM:         "shelly1pm",
	DeviceShellyPlugS:       "shellyplug-s",
	DeviceShelly25:          "shellyswitch25",
	DeviceShelly4Pro:        "shelly4pro",
	DeviceShellyDimmer:      "shellydimmer",
}

// ParseDeviceType resolves the type segment of a topic.
func ParseDeviceType(name string) (DeviceType, error) {
	for dt, n := range deviceTypeNames {
		if n == name {
			return dt, nil
		}
	}
	return DeviceUnknown, fmt.Errorf("%w: %q", ErrUnknownDeviceType, name)
}

// String returns the topic name of the device type.
func (t DeviceType) String() string {
	if n, ok := deviceTypeNames[t]; ok {
		return n
	}
	return "unknown"
}

// RollerCapable reports whether the model can run its outputs as a roller.
func (t DeviceType) RollerCapable() bool {
	return t == DeviceShelly25
}

// Mode selects how a multi-output device drives its outputs.
type Mode string

// Output modes.
const (
	ModeRelay  Mode = "relay"
	ModeRoller Mode = "roller"
)

// ParseMode resolves a configured mode. An empty value is relay mode.
// Unknown values fall back to relay mode with ok=false so the caller can
// log a diagnostic.
func ParseMode(raw string) (mode Mode, ok bool) {
	switch Mode(raw) {
	case "", ModeRelay:
		return ModeRelay, true
	case ModeRoller:
		return ModeRoller, true
	default:
		return ModeRelay, false
	}
}

// ValueType is the declared type of a property.
type ValueType int

// Property value types.
const (
	ValueUnknown ValueType = iota
	ValueBoolean
	ValueNumber
	ValueString
)

// String returns the lowercase type name used in snapshots.
func (v ValueType) String() string {
	switch v {
	case ValueBoolean:
		return "boolean"
	case ValueNumber:
		return "number"
	case ValueString:
		return "string"
	default:
		return "unknown"
	}
}

// SensorSpec declares one fixed, read-only sensor property.
type SensorSpec struct {
	Name string
	Type ValueType
	Unit string
}

// Capabilities describes what a device instance exposes. It is computed
// once per instance and never re-inferred.
type Capabilities struct {
	// RelayChannels lists the present relay indices. Empty in roller mode.
	RelayChannels []int

	// HasRoller is set when the device runs in roller mode.
	HasRoller bool

	// PowerMeterChannels lists the present power-meter indices. Empty in
	// roller mode.
	PowerMeterChannels []int

	// HasInternalTemperature is set when the device reports its own
	// temperature.
	HasInternalTemperature bool

	// InputButtonCount is the number of physical inputs with press events.
	InputButtonCount int

	// HasWhiteChannel is set for dimmers driven through white/0/set.
	HasWhiteChannel bool

	// Sensors is the fixed sensor property set.
	Sensors []SensorSpec
}

// hasRelay reports whether relay channel i is present.
func (c Capabilities) hasRelay(i int) bool {
	return slices.Contains(c.RelayChannels, i)
}

// hasPowerMeter reports whether power-meter channel i is present.
func (c Capabilities) hasPowerMeter(i int) bool {
	return slices.Contains(c.PowerMeterChannels, i)
}

// CapabilitiesFor returns the capability descriptor for a device type in
// the given mode. Roller mode on a model that is not roller-capable is
// treated as relay mode.
func CapabilitiesFor(dt DeviceType, mode Mode) (Capabilities, error) {
	roller := mode == ModeRoller && dt.RollerCapable()

	switch dt {
	case DeviceShellyHT:
		return Capabilities{Sensors: []SensorSpec{
			{Name: "temperature", Type: ValueNumber, Unit: "degree celsius"},
			{Name: "humidity", Type: ValueNumber, Unit: "percent"},
			{Name: "battery", Type: ValueNumber, Unit: "percent"},
		}}, nil

	case DeviceShellyHTPlus:
		return Capabilities{Sensors: []SensorSpec{
			{Name: "temperature0", Type: ValueNumber, Unit: "degree celsius"},
			{Name: "humidity0", Type: ValueNumber, Unit: "percent"},
			{Name: "battery", Type: ValueNumber, Unit: "percent"},
		}}, nil

	case DeviceShellyDoorWindow2:
		return Capabilities{Sensors: []SensorSpec{
			{Name: "state", Type: ValueBoolean},
			{Name: "illuminance", Type: ValueNumber, Unit: "lux"},
			{Name: "tilt", Type: ValueNumber, Unit: "degree"},
			{Name: "vibration", Type: ValueBoolean},
			{Name: "battery", Type: ValueNumber, Unit: "percent"},
			{Name: "temperature", Type: ValueNumber, Unit: "degree celsius"},
		}}, nil

	case DeviceShelly1:
		return Capabilities{
			RelayChannels:    []int{0},
			InputButtonCount: 1,
		}, nil

	case DeviceShelly1L:
		return Capabilities{
			RelayChannels:          []int{0},
			PowerMeterChannels:     []int{0},
			HasInternalTemperature: true,
			InputButtonCount:       2,
		}, nil

	case DeviceShelly1PM:
		return Capabilities{
			RelayChannels:          []int{0},
			PowerMeterChannels:     []int{0},
			HasInternalTemperature: true,
			InputButtonCount:       1,
		}, nil

	case DeviceShellyPlugS:
		return Capabilities{
			RelayChannels:          []int{0},
			PowerMeterChannels:     []int{0},
			HasInternalTemperature: true,
		}, nil

	case DeviceShelly25:
		if roller {
			return Capabilities{
				HasRoller:              true,
				HasInternalTemperature: true,
				InputButtonCount:       2,
			}, nil
		}
		return Capabilities{
			RelayChannels:          []int{0, 1},
			PowerMeterChannels:     []int{0, 1},
			HasInternalTemperature: true,
			InputButtonCount:       2,
		}, nil

	case DeviceShelly4Pro:
		return Capabilities{
			RelayChannels:      []int{0, 1, 2, 3},
			PowerMeterChannels: []int{0, 1, 2, 3},
		}, nil

	case DeviceShellyDimmer:
		return Capabilities{
			HasWhiteChannel:        true,
			HasInternalTemperature: true,
			InputButtonCount:       2,
		}, nil

	case DeviceUnknown:
	}

	return Capabilities{}, fmt.Errorf("%w: %s", ErrUnknownDeviceType, dt)
}
