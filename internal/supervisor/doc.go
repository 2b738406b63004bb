// Package supervisor owns the indiserver process lifecycle.
//
// indiserver is launched with a control FIFO (-f); drivers are started
// and stopped at runtime by writing commands to that pipe, which is
// what makes single-driver restart possible without bouncing the whole
// server. The supervisor resolves profile driver labels through the
// catalog, spawns indiserver via the process manager, waits for the
// TCP port to accept connections, then feeds start commands to the
// FIFO.
//
// Lifecycle: Stopped -> Starting -> Running -> Stopping -> Stopped.
// Start and Stop are mutually exclusive; an unexpected indiserver exit
// clears the running set and returns the supervisor to Stopped.
package supervisor
