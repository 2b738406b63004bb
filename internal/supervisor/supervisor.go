package supervisor

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/observon/indi-core/internal/catalog"
	"github.com/observon/indi-core/internal/infrastructure/config"
	"github.com/observon/indi-core/internal/infrastructure/logging"
	"github.com/observon/indi-core/internal/process"
	"github.com/observon/indi-core/internal/profile"
)

// State is the supervisor lifecycle state.
type State string

// Lifecycle states. Transitions: Stopped -> Starting -> Running ->
// Stopping -> Stopped. An unexpected indiserver exit moves Running
// straight to Stopped.
const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// serverLogCapacity is how many indiserver output lines are retained
// for the status API.
const serverLogCapacity = 500

// portPollInterval is how often the port is probed while waiting for
// indiserver to accept connections.
const portPollInterval = 100 * time.Millisecond

// DriverInfo describes one driver in the running set.
type DriverInfo struct {
	Label   string `json:"label"`
	Binary  string `json:"binary"`
	Family  string `json:"family,omitempty"`
	Version string `json:"version,omitempty"`
	Remote  bool   `json:"remote"`
}

// Status is a snapshot of supervisor state for the status API.
type Status struct {
	State     State         `json:"state"`
	Profile   string        `json:"profile,omitempty"`
	Port      int           `json:"port,omitempty"`
	PID       int           `json:"pid,omitempty"`
	Uptime    time.Duration `json:"uptime,omitempty"`
	Drivers   []DriverInfo  `json:"drivers"`
	LastError string        `json:"last_error,omitempty"`
}

// LogLine is one captured line of indiserver output.
type LogLine struct {
	Time time.Time `json:"time"`
	Text string    `json:"text"`
}

// Supervisor owns the indiserver process and its driver set.
//
// All lifecycle operations are mutually exclusive: a second caller
// blocks until the first finishes, then sees the resulting state.
//
// Thread Safety: all exported methods are safe for concurrent use.
type Supervisor struct {
	cfg     config.INDIConfig
	catalog *catalog.Catalog
	logger  *logging.Logger

	mu        sync.Mutex
	state     State
	manager   *process.Manager
	active    *profile.Profile
	running   map[string]DriverInfo // keyed by label, or spec for remotes
	fifo      *fifo
	port      int
	lastError string

	logMu     sync.Mutex
	serverLog []LogLine

	notifyCh chan stateNotification

	// OnStateChange, if set, is called outside the lifecycle lock after
	// every state transition. Transitions are delivered one at a time,
	// in order, from a single dispatch goroutine. Set it before the
	// first Start. The bridge and WebSocket hub subscribe.
	OnStateChange func(state State, profileName string)
}

// stateNotification carries one transition to the dispatch goroutine.
type stateNotification struct {
	state   State
	profile string
}

// New creates a supervisor. The catalog resolves driver labels to
// binaries at start time.
func New(cfg config.INDIConfig, cat *catalog.Catalog, logger *logging.Logger) *Supervisor {
	s := &Supervisor{
		cfg:      cfg,
		catalog:  cat,
		logger:   logger.With("component", "supervisor"),
		state:    StateStopped,
		running:  make(map[string]DriverInfo),
		notifyCh: make(chan stateNotification, 16),
	}
	go s.dispatchNotifications()
	return s
}

// Start launches indiserver for the given profile and starts its
// drivers through the control FIFO.
//
// Returns ErrAlreadyRunning unless the supervisor is stopped, and
// ErrSpawnFailed (with the underlying cause) when indiserver cannot be
// launched or never opens its port.
func (s *Supervisor) Start(ctx context.Context, prof *profile.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStopped {
		return fmt.Errorf("%w: state is %s", ErrAlreadyRunning, s.state)
	}
	if len(prof.Drivers) == 0 && len(prof.Remotes) == 0 {
		return fmt.Errorf("%w: %q", ErrInvalidProfile, prof.Name)
	}

	// Resolve every label before touching the process so a bad profile
	// fails cleanly.
	drivers := make([]catalog.Driver, 0, len(prof.Drivers))
	for _, label := range prof.Drivers {
		d, err := s.catalog.ByLabel(label)
		if err != nil {
			return err
		}
		drivers = append(drivers, d)
	}

	port := prof.Port
	if port == 0 {
		port = s.cfg.Port
	}

	s.setState(StateStarting, prof.Name)
	s.lastError = ""

	s.fifo = &fifo{path: s.cfg.FIFO}
	if err := s.fifo.create(); err != nil {
		s.setState(StateStopped, "")
		return fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}

	mgrCfg := process.DefaultConfig("indiserver", s.cfg.Binary, []string{
		"-v",
		"-p", strconv.Itoa(port),
		"-m", strconv.Itoa(s.cfg.MaxClientMB),
		"-f", s.cfg.FIFO,
	})
	mgrCfg.RestartOnFailure = false
	mgrCfg.GracefulTimeout = s.cfg.ShutdownTimeout
	mgrCfg.OnOutput = s.appendServerLog
	// manager is assigned below, before Start spawns the monitor
	// goroutine that can invoke OnStop.
	var manager *process.Manager
	mgrCfg.OnStop = func(requested bool, err error) {
		s.handleServerExit(manager, requested, err)
	}
	if s.cfg.ConnectTimeout > 0 {
		mgrCfg.HealthCheckFunc = func(ctx context.Context) error {
			return probePort(ctx, port)
		}
	}

	manager = process.NewManager(mgrCfg)
	manager.SetLogger(s.logger)

	if err := manager.Start(ctx); err != nil {
		s.fifo.remove() //nolint:errcheck // Best effort cleanup
		s.setState(StateStopped, "")
		return fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}
	s.manager = manager
	s.port = port

	if s.cfg.ConnectTimeout > 0 {
		if err := waitForPort(ctx, port, s.cfg.ConnectTimeout); err != nil {
			manager.Stop()  //nolint:errcheck // Already failing
			s.fifo.remove() //nolint:errcheck
			s.manager = nil
			s.setState(StateStopped, "")
			return fmt.Errorf("%w: %v", ErrSpawnFailed, err)
		}
	}

	s.running = make(map[string]DriverInfo)
	for _, d := range drivers {
		if err := s.fifo.Send(startCommand(d)); err != nil {
			s.logger.Error("failed to start driver", "label", d.Label, "error", err)
			continue
		}
		s.running[d.Label] = DriverInfo{
			Label:   d.Label,
			Binary:  d.Binary,
			Family:  d.Family,
			Version: d.Version,
		}
	}
	for _, spec := range prof.Remotes {
		if err := s.fifo.Send(startRemoteCommand(spec)); err != nil {
			s.logger.Error("failed to start remote driver", "spec", spec, "error", err)
			continue
		}
		s.running[spec] = DriverInfo{Label: spec, Binary: spec, Remote: true}
	}

	s.active = prof
	s.setState(StateRunning, prof.Name)

	s.logger.Info("indiserver started",
		"profile", prof.Name,
		"port", port,
		"drivers", len(s.running),
	)
	return nil
}

// Stop shuts the server down: drivers die with the indiserver process
// group, then the FIFO is removed.
//
// Stopping an already stopped server is a no-op. A stop during another
// transition returns ErrNotRunning.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateStopped {
		return nil
	}
	if s.state != StateRunning {
		return fmt.Errorf("%w: state is %s", ErrNotRunning, s.state)
	}

	profileName := ""
	if s.active != nil {
		profileName = s.active.Name
	}
	s.setState(StateStopping, profileName)

	if err := s.manager.Stop(); err != nil {
		s.logger.Error("error stopping indiserver", "error", err)
	}
	if s.fifo != nil {
		s.fifo.remove() //nolint:errcheck // Best effort cleanup
	}

	s.manager = nil
	s.active = nil
	s.running = make(map[string]DriverInfo)
	s.setState(StateStopped, "")

	s.logger.Info("indiserver stopped", "profile", profileName)
	return nil
}

// RestartDriver stops and restarts a single driver by label (or remote
// spec) without touching the rest of the server.
//
// Returns ErrNotRunning when the server is down and ErrUnknownDriver
// when the label is not in the running set.
func (s *Supervisor) RestartDriver(ctx context.Context, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return fmt.Errorf("%w: state is %s", ErrNotRunning, s.state)
	}
	info, ok := s.running[label]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDriver, label)
	}

	stop, start := stopRemoteCommand(info.Label), startRemoteCommand(info.Label)
	if !info.Remote {
		d, err := s.catalog.ByLabel(label)
		if err != nil {
			return err
		}
		stop, start = stopCommand(d), startCommand(d)
	}

	if err := s.fifo.Send(stop); err != nil {
		return err
	}
	if err := s.fifo.Send(start); err != nil {
		return err
	}

	s.logger.Info("driver restarted", "label", label)
	return nil
}

// StartDriver adds a driver to the running server by catalog label.
func (s *Supervisor) StartDriver(ctx context.Context, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return fmt.Errorf("%w: state is %s", ErrNotRunning, s.state)
	}
	if _, ok := s.running[label]; ok {
		return nil
	}

	d, err := s.catalog.ByLabel(label)
	if err != nil {
		return err
	}
	if err := s.fifo.Send(startCommand(d)); err != nil {
		return err
	}

	s.running[label] = DriverInfo{
		Label:   d.Label,
		Binary:  d.Binary,
		Family:  d.Family,
		Version: d.Version,
	}
	s.logger.Info("driver started", "label", label)
	return nil
}

// StopDriver removes a driver from the running server.
func (s *Supervisor) StopDriver(ctx context.Context, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return fmt.Errorf("%w: state is %s", ErrNotRunning, s.state)
	}
	info, ok := s.running[label]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownDriver, label)
	}

	cmd := stopRemoteCommand(info.Label)
	if !info.Remote {
		d, err := s.catalog.ByLabel(label)
		if err != nil {
			return err
		}
		cmd = stopCommand(d)
	}
	if err := s.fifo.Send(cmd); err != nil {
		return err
	}

	delete(s.running, label)
	s.logger.Info("driver stopped", "label", label)
	return nil
}

// Running returns the running driver set sorted by label.
func (s *Supervisor) Running() []DriverInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]DriverInfo, 0, len(s.running))
	for _, info := range s.running {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ActiveProfile returns the name of the running profile, or "".
func (s *Supervisor) ActiveProfile() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return ""
	}
	return s.active.Name
}

// Port returns the TCP port of the running server, or 0.
func (s *Supervisor) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		return 0
	}
	return s.port
}

// Status returns a snapshot for the status API.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		State:     s.state,
		LastError: s.lastError,
		Drivers:   make([]DriverInfo, 0, len(s.running)),
	}
	if s.active != nil {
		st.Profile = s.active.Name
	}
	if s.state == StateRunning {
		st.Port = s.port
	}
	if s.manager != nil {
		st.PID = s.manager.PID()
		st.Uptime = s.manager.Uptime()
	}
	for _, info := range s.running {
		st.Drivers = append(st.Drivers, info)
	}
	sort.Slice(st.Drivers, func(i, j int) bool { return st.Drivers[i].Label < st.Drivers[j].Label })
	return st
}

// ServerLog returns the retained indiserver output lines, oldest first.
func (s *Supervisor) ServerLog() []LogLine {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	out := make([]LogLine, len(s.serverLog))
	copy(out, s.serverLog)
	return out
}

// setState records a transition and queues its notification. Callers
// hold s.mu; delivery happens on the dispatch goroutine, off the lock,
// so subscribers may call back into the supervisor.
func (s *Supervisor) setState(state State, profileName string) {
	s.state = state
	select {
	case s.notifyCh <- stateNotification{state: state, profile: profileName}:
	default:
		s.logger.Warn("state notification dropped", "state", state)
	}
}

// dispatchNotifications delivers queued state changes one at a time so
// subscribers observe transitions in the order they happened.
func (s *Supervisor) dispatchNotifications() {
	for n := range s.notifyCh {
		if s.OnStateChange != nil {
			s.OnStateChange(n.state, n.profile)
		}
	}
}

// handleServerExit runs on the process monitor goroutine when
// indiserver stops. A requested exit is owned by Stop; any spontaneous
// exit, including a clean status 0, forces the session down. Cleanup
// runs on its own goroutine because Stop may hold the lifecycle lock
// while it waits for the process manager to wind down.
func (s *Supervisor) handleServerExit(mgr *process.Manager, requested bool, err error) {
	if requested {
		return
	}
	go s.forceStopped(mgr, err)
}

// forceStopped clears the session after a spontaneous server exit.
func (s *Supervisor) forceStopped(mgr *process.Manager, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A stale callback from a previous session must not touch the
	// current one.
	if s.manager != mgr {
		return
	}
	if s.state == StateStopping || s.state == StateStopped {
		return
	}

	cause := "exit status 0"
	if err != nil {
		cause = err.Error()
	}
	s.logger.Error("indiserver exited unexpectedly", "cause", cause)
	s.lastError = cause
	if s.fifo != nil {
		s.fifo.remove() //nolint:errcheck // Best effort cleanup
	}
	s.manager = nil
	s.active = nil
	s.running = make(map[string]DriverInfo)
	s.setState(StateStopped, "")
}

// appendServerLog retains a bounded window of server output.
func (s *Supervisor) appendServerLog(stream, line string) {
	s.logMu.Lock()
	defer s.logMu.Unlock()

	s.serverLog = append(s.serverLog, LogLine{Time: time.Now().UTC(), Text: line})
	if len(s.serverLog) > serverLogCapacity {
		s.serverLog = s.serverLog[len(s.serverLog)-serverLogCapacity:]
	}
}

// waitForPort polls until indiserver accepts TCP connections.
func waitForPort(ctx context.Context, port int, timeout time.Duration) error {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	deadline := time.Now().Add(timeout)

	for {
		conn, err := net.DialTimeout("tcp", addr, portPollInterval)
		if err == nil {
			conn.Close() //nolint:errcheck
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("port %d not accepting connections after %v", port, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(portPollInterval):
		}
	}
}

// probePort is the periodic health check for a running server.
func probePort(ctx context.Context, port int) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp",
		net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("indiserver port probe: %w", err)
	}
	return conn.Close()
}
