package bridge

import "errors"

// Sentinel errors for bridge operations.
// Use errors.Is() to check for specific error types.
var (
	// ErrNotConnected indicates the bridge has no live connection to an
	// INDI server.
	ErrNotConnected = errors.New("bridge: not connected")

	// ErrUnknownDevice indicates the requested device has not been
	// defined by any driver.
	ErrUnknownDevice = errors.New("bridge: unknown device")

	// ErrUnknownProperty indicates the device exists but has no such
	// property.
	ErrUnknownProperty = errors.New("bridge: unknown property")

	// ErrUnknownElement indicates a write names an element the property
	// does not define.
	ErrUnknownElement = errors.New("bridge: unknown element")

	// ErrPermissionDenied indicates a write to a read-only property or a
	// light vector.
	ErrPermissionDenied = errors.New("bridge: property not writable")

	// ErrInvalidValue indicates a write value fails validation: an
	// unparsable number, a value outside the advertised range, a bad
	// switch state, or a switch-rule violation.
	ErrInvalidValue = errors.New("bridge: invalid value")
)
