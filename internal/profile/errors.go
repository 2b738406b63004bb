package profile

import "errors"

// Sentinel errors for profile store operations.
// Use errors.Is() to check for specific error types.
var (
	// ErrProfileNotFound indicates the requested profile doesn't exist.
	ErrProfileNotFound = errors.New("profile: not found")

	// ErrProfileExists indicates a create collided with an existing name.
	ErrProfileExists = errors.New("profile: already exists")

	// ErrProfileProtected indicates an attempt to rename or delete the
	// seeded default profile.
	ErrProfileProtected = errors.New("profile: default profile is protected")

	// ErrInvalidProfile indicates the profile failed validation.
	ErrInvalidProfile = errors.New("profile: invalid")

	// ErrDriverExists indicates a custom driver create collided with an
	// existing label.
	ErrDriverExists = errors.New("profile: custom driver already exists")

	// ErrDriverNotFound indicates the requested custom driver doesn't exist.
	ErrDriverNotFound = errors.New("profile: custom driver not found")
)
