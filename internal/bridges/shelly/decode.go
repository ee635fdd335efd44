package shelly

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Decode constants.
const (
	// inputEventPrefix marks canonical names carrying button events.
	inputEventPrefix = "input_event"

	// connectivityProperty carries the device's liveness flag.
	connectivityProperty = "online"

	// shortPressCode is the event code of a short press.
	shortPressCode = "S"
)

// trueSentinels are the only payloads a boolean property decodes as true.
var trueSentinels = map[string]bool{"1": true, "on": true, "open": true}

// DecodedKind says what a decoded payload means.
type DecodedKind int

// Decode outcomes.
const (
	// DecodedUnchanged means the message carries nothing to apply.
	DecodedUnchanged DecodedKind = iota
	// DecodedValue is a new property value.
	DecodedValue
	// DecodedEvent is a fire-and-forget event.
	DecodedEvent
	// DecodedConnectivity is a connectivity transition.
	DecodedConnectivity
)

// EventSignal is an emitted input event.
type EventSignal struct {
	Name  string     `json:"name"`
	Input int        `json:"input"`
	Class EventClass `json:"class"`
	Count int        `json:"count"`
}

// Decoded is the typed meaning of one payload.
type Decoded struct {
	Kind   DecodedKind
	Value  any
	Event  EventSignal
	Online bool
}

// inputEventPayload is the JSON body published on input_event/<n>.
type inputEventPayload struct {
	Count int    `json:"event_cnt"`
	Event string `json:"event"`
}

// Decode turns a raw payload into a typed value, an event or a
// connectivity change.
//
// declared is the type of the target property, or ValueUnknown if the
// device has none. Rules apply in order: input events, boolean sentinels,
// JSON envelopes, connectivity, then plain coercion to the declared type.
func Decode(dt DeviceType, name string, declared ValueType, payload string) (Decoded, error) {
	if strings.HasPrefix(name, inputEventPrefix) {
		return decodeInputEvent(name, payload)
	}

	if declared == ValueBoolean {
		return Decoded{Kind: DecodedValue, Value: trueSentinels[payload]}, nil
	}

	if field, ok := envelopeField(dt, name); ok {
		v, err := projectEnvelope(payload, field)
		if err != nil {
			return Decoded{}, fmt.Errorf("%w: %s envelope: %w", ErrDecode, name, err)
		}
		return coerce(name, declared, v)
	}

	if name == connectivityProperty {
		return Decoded{Kind: DecodedConnectivity, Online: payload == "true"}, nil
	}

	return coerce(name, declared, payload)
}

// decodeInputEvent parses an input_event<N> payload.
func decodeInputEvent(name, payload string) (Decoded, error) {
	index, err := strconv.Atoi(strings.TrimPrefix(name, inputEventPrefix))
	if err != nil {
		return Decoded{}, fmt.Errorf("%w: input index in %q", ErrDecode, name)
	}

	var ev inputEventPayload
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return Decoded{}, fmt.Errorf("%w: %s payload %q: %w", ErrDecode, name, payload, err)
	}
	if ev.Count < 1 || ev.Event == "" {
		return Decoded{Kind: DecodedUnchanged}, nil
	}

	signal := EventSignal{Input: index, Count: ev.Count, Class: EventLongPress}
	if ev.Event == shortPressCode {
		signal.Class = EventPress
	}
	signal.Name = eventName(index, signal.Class)

	return Decoded{Kind: DecodedEvent, Event: signal}, nil
}

// eventName builds the declared event name, e.g. input0Press.
func eventName(index int, class EventClass) string {
	if class == EventPress {
		return fmt.Sprintf("input%dPress", index)
	}
	return fmt.Sprintf("input%dLongPress", index)
}

// envelopeField returns the JSON path to project for device types that
// wrap values in objects.
func envelopeField(dt DeviceType, name string) ([]string, bool) {
	if dt != DeviceShellyHTPlus {
		return nil, false
	}
	switch name {
	case "battery":
		return []string{"battery", "percent"}, true
	case "temperature0":
		return []string{"tC"}, true
	case "humidity0":
		return []string{"rh"}, true
	default:
		return nil, false
	}
}

// projectEnvelope walks a JSON object along path.
func projectEnvelope(payload string, path []string) (any, error) {
	var cur any
	if err := json.Unmarshal([]byte(payload), &cur); err != nil {
		return nil, err
	}
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%q is not an object", key)
		}
		if cur, ok = obj[key]; !ok {
			return nil, fmt.Errorf("missing field %q", key)
		}
	}
	return cur, nil
}

// coerce converts a raw or projected value to the declared type. A value
// that does not fit is a decode error, never a silent conversion.
func coerce(name string, declared ValueType, raw any) (Decoded, error) {
	switch declared {
	case ValueNumber:
		switch v := raw.(type) {
		case float64:
			return Decoded{Kind: DecodedValue, Value: v}, nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
				return Decoded{}, fmt.Errorf("%w: %s expects a number, got %q", ErrDecode, name, v)
			}
			return Decoded{Kind: DecodedValue, Value: f}, nil
		}
	case ValueString:
		if s, ok := raw.(string); ok {
			return Decoded{Kind: DecodedValue, Value: s}, nil
		}
	case ValueBoolean:
		if b, ok := raw.(bool); ok {
			return Decoded{Kind: DecodedValue, Value: b}, nil
		}
	case ValueUnknown:
		return Decoded{}, fmt.Errorf("%w: %q", ErrUnknownProperty, name)
	}

	return Decoded{}, fmt.Errorf("%w: %s expects a %s, got %T", ErrDecode, name, declared, raw)
}
