package supervisor

import "errors"

// Sentinel errors for supervisor operations.
// Use errors.Is() to check for specific error types.
var (
	// ErrAlreadyRunning indicates start was requested while the server is
	// not stopped.
	ErrAlreadyRunning = errors.New("supervisor: server already running")

	// ErrNotRunning indicates an operation requires a running server.
	ErrNotRunning = errors.New("supervisor: server not running")

	// ErrInvalidProfile indicates the profile has no drivers to run.
	ErrInvalidProfile = errors.New("supervisor: profile has no drivers")

	// ErrSpawnFailed indicates the indiserver process could not be
	// launched or did not become ready in time.
	ErrSpawnFailed = errors.New("supervisor: failed to spawn indiserver")

	// ErrUnknownDriver indicates a driver operation named a driver that
	// is not part of the running set.
	ErrUnknownDriver = errors.New("supervisor: driver not running")

	// ErrFIFOWrite indicates a driver control command could not be
	// delivered to the indiserver FIFO.
	ErrFIFOWrite = errors.New("supervisor: fifo write failed")
)
