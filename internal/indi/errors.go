package indi

import "errors"

// Sentinel errors for protocol parsing and formatting.
// Use errors.Is() to check for specific error types.
var (
	// ErrInvalidNumber indicates a number value that is neither a plain
	// decimal nor a recognised sexagesimal form.
	ErrInvalidNumber = errors.New("indi: invalid number value")

	// ErrInvalidFormat indicates a malformed INDI number format string.
	ErrInvalidFormat = errors.New("indi: invalid number format")
)
