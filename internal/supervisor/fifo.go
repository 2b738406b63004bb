package supervisor

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/observon/indi-core/internal/catalog"
)

// fifoPermissions is the mode for the indiserver control FIFO.
const fifoPermissions = 0600

// fifoWriteTimeout bounds how long a command write may block. Opening a
// FIFO for writing blocks until indiserver has it open for reading, so
// a dead server would otherwise hang the caller.
const fifoWriteTimeout = 5 * time.Second

// startCommand renders the FIFO command that starts a local driver.
// The label is passed with -n so the same binary can run multiple times
// under distinct device names.
func startCommand(d catalog.Driver) string {
	var b strings.Builder
	b.WriteString("start ")
	b.WriteString(d.Binary)
	if d.Skeleton != "" {
		fmt.Fprintf(&b, " -s %q", d.Skeleton)
	}
	fmt.Fprintf(&b, " -n %q", d.Label)
	return b.String()
}

// stopCommand renders the FIFO command that stops a local driver.
func stopCommand(d catalog.Driver) string {
	return fmt.Sprintf("stop %s -n %q", d.Binary, d.Label)
}

// startRemoteCommand renders the FIFO command for a remote driver spec.
// Remote drivers take no label; indiserver connects to the remote host.
func startRemoteCommand(spec string) string {
	return "start " + spec
}

// stopRemoteCommand renders the FIFO stop command for a remote driver.
func stopRemoteCommand(spec string) string {
	return "stop " + spec
}

// fifo manages the named pipe used to control a running indiserver.
//
// Thread Safety: Send serialises writes internally.
type fifo struct {
	path string

	mu sync.Mutex
}

// create removes any stale pipe at the path and makes a fresh one.
func (f *fifo) create() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale fifo: %w", err)
	}
	if err := syscall.Mkfifo(f.path, fifoPermissions); err != nil {
		return fmt.Errorf("creating fifo %s: %w", f.path, err)
	}
	return nil
}

// remove deletes the pipe. Safe to call when it doesn't exist.
func (f *fifo) remove() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing fifo: %w", err)
	}
	return nil
}

// Send writes one command line to the pipe. The open is performed
// non-blocking and retried until the write timeout so a crashed server
// surfaces as ErrFIFOWrite rather than a hang.
func (f *fifo) Send(command string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	deadline := time.Now().Add(fifoWriteTimeout)
	for {
		file, err := os.OpenFile(f.path, os.O_WRONLY|syscall.O_NONBLOCK, 0)
		if err == nil {
			defer file.Close() //nolint:errcheck // Write error is what matters
			if _, err := file.WriteString(command + "\n"); err != nil {
				return fmt.Errorf("%w: %v", ErrFIFOWrite, err)
			}
			return nil
		}

		// ENXIO means no reader yet; give indiserver a moment.
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: no reader on %s: %v", ErrFIFOWrite, f.path, err)
		}
		time.Sleep(50 * time.Millisecond)
	}
}
