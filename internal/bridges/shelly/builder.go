package shelly

import (
	"fmt"
	"time"
)

// Build assembles a device's properties, actions and events from its
// capability descriptor. The result is fixed for the device's lifetime.
func Build(instanceID, prefix string, dt DeviceType, mode Mode, caps Capabilities) *Device {
	now := time.Now().UTC()
	d := &Device{
		id:         instanceID,
		deviceType: dt,
		prefix:     prefix,
		mode:       mode,
		caps:       caps,
		byName:     make(map[string]*Property),
		aliases:    make(map[string]string),
		connected:  true,
		createdAt:  now,
		lastSeen:   now,
	}

	if caps.HasRoller {
		d.mode = ModeRoller
		buildRoller(d)
	} else {
		d.mode = ModeRelay
		buildRelays(d, caps)
		buildPowerMeters(d, caps)
	}

	if caps.HasWhiteChannel {
		// Host-write-only: light/0 reports are outside the topic grammar, so
		// these cache the last written values and start at on, 100.
		d.add(&Property{Name: "light", Type: ValueBoolean, role: roleWhiteSwitch})
		d.add(&Property{Name: "brightness", Type: ValueNumber, Unit: "percent",
			role: roleWhiteBrightness, ranged: true, min: 0, max: 100})
	}

	for _, s := range caps.Sensors {
		d.add(&Property{Name: s.Name, Type: s.Type, Unit: s.Unit, ReadOnly: true, role: roleSensor})
	}

	if caps.HasInternalTemperature {
		d.add(&Property{Name: "internalTemperature", Type: ValueNumber, Unit: "degree celsius",
			ReadOnly: true, role: roleSensor})
		d.aliases["temperature"] = "internalTemperature"
	}

	for i := 0; i < caps.InputButtonCount; i++ {
		d.add(&Property{Name: fmt.Sprintf("input%d", i), Type: ValueBoolean,
			ReadOnly: true, role: roleInput, channel: i})
		d.events = append(d.events,
			EventSpec{Name: fmt.Sprintf("input%dPress", i), Input: i, Class: EventPress},
			EventSpec{Name: fmt.Sprintf("input%dLongPress", i), Input: i, Class: EventLongPress},
		)
	}

	return d
}

// buildRelays adds one switch per present channel, plus an aggregate
// switch when there is more than one.
func buildRelays(d *Device, caps Capabilities) {
	var members []*Property
	for i := 0; i < maxRelayChannels; i++ {
		if !caps.hasRelay(i) {
			continue
		}
		p := &Property{Name: fmt.Sprintf("relay%d", i), Type: ValueBoolean, role: roleRelay, channel: i}
		d.add(p)
		members = append(members, p)
	}

	if len(members) > 1 {
		for _, p := range members {
			p.Aggregated = true
		}
		d.add(&Property{Name: "relay", Type: ValueBoolean, role: roleRelayAggregate})
	}
}

// buildPowerMeters mirrors buildRelays for read-only power readings.
func buildPowerMeters(d *Device, caps Capabilities) {
	var members []*Property
	for i := 0; i < maxRelayChannels; i++ {
		if !caps.hasPowerMeter(i) {
			continue
		}
		p := &Property{Name: fmt.Sprintf("powerMeter%d", i), Type: ValueNumber, Unit: "watt",
			ReadOnly: true, role: rolePowerMeter, channel: i}
		d.add(p)
		members = append(members, p)
	}

	if len(members) > 1 {
		for _, p := range members {
			p.Aggregated = true
		}
		d.add(&Property{Name: "power", Type: ValueNumber, Unit: "watt", ReadOnly: true, role: rolePowerTotal})
	}
}

// buildRoller adds the position property and the open/stop/close actions.
func buildRoller(d *Device) {
	d.add(&Property{Name: "position", Type: ValueNumber, Unit: "percent",
		role: roleRollerPosition, ranged: true, min: 0, max: 100})

	d.actions = append(d.actions,
		ActionSpec{Name: "open", Title: "Open", rollerState: "open"},
		ActionSpec{Name: "stop", Title: "Stop", rollerState: "stop"},
		ActionSpec{Name: "close", Title: "Close", rollerState: "close"},
	)
}

// add appends a property in catalog order.
func (d *Device) add(p *Property) {
	d.properties = append(d.properties, p)
	d.byName[p.Name] = p
}
