// Package process supervises a single subprocess: start, monitored
// wait, optional restart on failure, and graceful stop (SIGTERM to the
// process group, SIGKILL after a timeout).
//
// The supervisor package builds on this to run indiserver, which
// spawns driver subprocesses of its own; the process-group signalling
// here ensures those die with their parent.
package process
