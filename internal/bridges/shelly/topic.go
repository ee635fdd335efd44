package shelly

import (
	"fmt"
	"strings"
)

// Topic constants.
const (
	// RootTopic is the top-level namespace Shelly devices publish under.
	RootTopic = "shellies"

	// deviceDelimiter separates the device type from the instance suffix in
	// the second topic segment. Device types may contain it too, so the last
	// occurrence wins.
	deviceDelimiter = "-"

	// batterySentinel is the status sub-key that reports battery level.
	batterySentinel = "devicepower:0"

	// statusSeparator is stripped from other status sub-keys.
	statusSeparator = ":"
)

// TopicIdentifier is the structured form of an inbound Shelly topic.
type TopicIdentifier struct {
	// DeviceType is the part of the device segment before the last "-"
	// (e.g. "shelly1l").
	DeviceType string

	// InstanceID is the part after the last "-" (e.g. "A4CF12F4A1B2").
	InstanceID string

	// AddressPrefix is the device segment exactly as observed
	// (e.g. "shelly1l-A4CF12F4A1B2"). Outbound commands reuse it verbatim.
	AddressPrefix string

	// Property is the canonical property name (e.g. "relay0", "powerMeter0").
	Property string

	// SubProperty is the trailing raw segment for nested topics, empty
	// for three-part topics.
	SubProperty string
}

// SubscribeTopic returns the wildcard subscription covering every device.
func SubscribeTopic() string {
	return RootTopic + "/#"
}

// CommandTopic returns the outbound topic for a device prefix and sub path.
// Example: shellies/shelly1l-A4CF12F4A1B2/relay/0/command
func CommandTopic(prefix, subPath string) string {
	return fmt.Sprintf("%s/%s/%s", RootTopic, prefix, subPath)
}

// ParseTopic maps a raw topic to a TopicIdentifier.
//
// The grammar is closed: anything it does not recognise is returned as a
// wrapped ErrMalformedTopic, never a panic.
//
//	shellies/<type>-<id>/<p>                  → p
//	shellies/<type>-<id>/sensor/lux           → illuminance
//	shellies/<type>-<id>/sensor/<s>           → s
//	shellies/<type>-<id>/relay/<i>            → relay<i>   (also input, input_event)
//	shellies/<type>-<id>/status/devicepower:0 → battery
//	shellies/<type>-<id>/status/<s>           → s without ":"
//	shellies/<type>-<id>/relay/<i>/power      → powerMeter<i>
func ParseTopic(topic string) (TopicIdentifier, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 || parts[1] == "" {
		return TopicIdentifier{}, fmt.Errorf("%w: %q has no device segment", ErrMalformedTopic, topic)
	}

	device := parts[1]
	delim := strings.LastIndex(device, deviceDelimiter)
	if delim <= 0 {
		return TopicIdentifier{}, fmt.Errorf("%w: device segment %q has no type delimiter", ErrMalformedTopic, device)
	}

	ident := TopicIdentifier{
		DeviceType:    device[:delim],
		InstanceID:    device[delim+1:],
		AddressPrefix: device,
	}

	property, sub, err := canonicalProperty(parts[2:])
	if err != nil {
		return TopicIdentifier{}, fmt.Errorf("%w: %q: %w", ErrMalformedTopic, topic, err)
	}
	ident.Property = property
	ident.SubProperty = sub

	return ident, nil
}

// canonicalProperty applies the arity grammar to the segments after the
// device segment.
func canonicalProperty(segments []string) (name, sub string, err error) {
	switch len(segments) {
	case 1:
		if segments[0] == "" {
			return "", "", fmt.Errorf("empty property segment")
		}
		return segments[0], "", nil

	case 2:
		kind, key := segments[0], segments[1]
		if key == "" {
			return "", "", fmt.Errorf("empty %s sub-key", kind)
		}
		switch kind {
		case "sensor":
			if key == "lux" {
				return "illuminance", key, nil
			}
			return key, key, nil
		case "relay", "input", "input_event":
			return kind + key, key, nil
		case "status":
			if key == batterySentinel {
				return "battery", key, nil
			}
			return strings.Replace(key, statusSeparator, "", 1), key, nil
		default:
			return "", "", fmt.Errorf("unknown property kind %q", kind)
		}

	case 3:
		kind, index, key := segments[0], segments[1], segments[2]
		if kind == "relay" && key == "power" {
			return "powerMeter" + index, key, nil
		}
		return "", "", fmt.Errorf("unknown sub-property %q of %s %s", key, kind, index)

	default:
		return "", "", fmt.Errorf("unexpected segment count %d", len(segments)+2)
	}
}
