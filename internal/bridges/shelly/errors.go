package shelly

import "errors"

// Domain errors for the Shelly bridge package.
var (
	// ErrMalformedTopic is returned when an inbound topic does not follow the
	// shellies/<type>-<id>/... grammar.
	ErrMalformedTopic = errors.New("shelly: malformed topic")

	// ErrUnknownDeviceType is returned when no model exists for an observed
	// device type.
	ErrUnknownDeviceType = errors.New("shelly: unknown device type")

	// ErrUnknownProperty is returned when a canonical property name has no
	// handle on the resolved device.
	ErrUnknownProperty = errors.New("shelly: unknown property")

	// ErrDecode is returned when a payload does not match the declared type
	// of its property.
	ErrDecode = errors.New("shelly: decode failed")

	// ErrUnknownDevice is returned when a command targets an instance that
	// has never been seen inbound.
	ErrUnknownDevice = errors.New("shelly: unknown device")

	// ErrTransport is returned when publishing a command fails.
	ErrTransport = errors.New("shelly: transport error")

	// ErrReadOnlyProperty is returned when the host writes a read-only property.
	ErrReadOnlyProperty = errors.New("shelly: property is read-only")

	// ErrUnknownAction is returned when the host invokes an action the device
	// does not declare.
	ErrUnknownAction = errors.New("shelly: unknown action")

	// ErrInvalidValue is returned when a host write carries a value of the
	// wrong type or out of range.
	ErrInvalidValue = errors.New("shelly: invalid value")
)
