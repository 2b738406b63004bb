package bridge

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/observon/indi-core/internal/indi"
	"github.com/observon/indi-core/internal/infrastructure/config"
	"github.com/observon/indi-core/internal/infrastructure/logging"
)

// reconnectDelay is the pause between connection attempts while the
// INDI server is expected to be up.
const reconnectDelay = 2 * time.Second

// dialTimeout bounds a single connection attempt.
const dialTimeout = 5 * time.Second

// Bridge mirrors the property trees of a running INDI server.
//
// It maintains one TCP connection, decodes the event stream on a single
// ingest goroutine (the sole writer to the mirrored state), and serves
// reads and validated writes to the API layer.
//
// Thread Safety: all exported methods are safe for concurrent use.
// Subscribe must be called before Start.
type Bridge struct {
	cfg    config.INDIConfig
	logger *logging.Logger

	mu      sync.RWMutex
	devices map[string]*storeEntry

	msgMu    sync.Mutex
	messages []indi.LogMessage

	connMu sync.Mutex
	conn   net.Conn

	handlers []EventHandler

	runMu       sync.Mutex
	cancel      context.CancelFunc
	done        chan struct{}
	autoconnect bool
	attempted   map[string]bool
}

// New creates a bridge for the configured INDI server.
func New(cfg config.INDIConfig, logger *logging.Logger) *Bridge {
	return &Bridge{
		cfg:     cfg,
		logger:  logger.With("component", "bridge"),
		devices: make(map[string]*storeEntry),
	}
}

// Subscribe registers a notification handler. Handlers run on the
// ingest goroutine and must return quickly.
func (b *Bridge) Subscribe(h EventHandler) {
	b.handlers = append(b.handlers, h)
}

// notify fans a notification out to all subscribers.
func (b *Bridge) notify(n Notification) {
	for _, h := range b.handlers {
		h(n)
	}
}

// Start connects to the INDI server on the given port and begins
// mirroring. It returns immediately; the connection is maintained (with
// reconnects) until Stop. Autoconnect controls whether devices are
// switched to CONNECT as they appear.
func (b *Bridge) Start(port int, autoconnect bool) {
	b.runMu.Lock()
	defer b.runMu.Unlock()

	if b.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.done = make(chan struct{})
	b.autoconnect = autoconnect
	b.attempted = make(map[string]bool)

	go b.run(ctx, port)
}

// Stop disconnects and halts mirroring. The mirrored state is cleared;
// a stopped server has no devices.
func (b *Bridge) Stop() {
	b.runMu.Lock()
	cancel := b.cancel
	done := b.done
	b.cancel = nil
	b.done = nil
	b.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	b.closeConn()
	<-done

	b.reset()
	b.logger.Info("bridge stopped")
}

// Connected reports whether a live server connection exists.
func (b *Bridge) Connected() bool {
	b.connMu.Lock()
	defer b.connMu.Unlock()
	return b.conn != nil
}

// run maintains the connection until ctx is cancelled.
func (b *Bridge) run(ctx context.Context, port int) {
	defer close(b.done)

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := net.DialTimeout("tcp", addr, dialTimeout)
		if err != nil {
			b.logger.Debug("indi server not reachable", "addr", addr, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectDelay):
			}
			continue
		}

		b.logger.Info("connected to indi server", "addr", addr)
		b.setConn(conn)
		b.reset()

		if err := b.send(indi.EncodeGetProperties("")); err != nil {
			b.logger.Error("handshake failed", "error", err)
		}

		b.ingest(ctx, conn)

		b.setConn(nil)
		conn.Close() //nolint:errcheck

		if ctx.Err() != nil {
			return
		}
		b.logger.Warn("indi server connection lost, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

// ingest decodes events from the connection until it fails or ctx ends.
// This goroutine is the only writer to the mirrored state.
func (b *Bridge) ingest(ctx context.Context, conn net.Conn) {
	dec := indi.NewDecoder(conn)
	for {
		if ctx.Err() != nil {
			return
		}
		ev, err := dec.Next()
		if err != nil {
			if ctx.Err() == nil {
				b.logger.Debug("event stream ended", "error", err)
			}
			return
		}
		b.processEvent(ev)
	}
}

// processEvent applies one decoded event to the mirrored state and
// notifies subscribers.
func (b *Bridge) processEvent(ev *indi.Event) {
	switch ev.Kind {
	case indi.EventDefine:
		prop := ev.Property
		newDevice := b.applyDefine(prop)
		if newDevice {
			// BLOB payloads are never mirrored; tell the server not to
			// send them for this device.
			if err := b.send(indi.EncodeEnableBLOB(prop.Device, "Never")); err != nil {
				b.logger.Debug("enableBLOB failed", "device", prop.Device, "error", err)
			}
		}
		b.notify(Notification{
			Type:     EventPropertyDefined,
			Device:   prop.Device,
			Property: prop.Name,
			Prop:     prop.Clone(),
		})
		b.maybeAutoconnect(prop)

	case indi.EventUpdate:
		prop := b.applyUpdate(ev.Update)
		if prop == nil {
			b.logger.Debug("update for unknown property",
				"device", ev.Update.Device, "property", ev.Update.Name)
			return
		}
		b.notify(Notification{
			Type:     EventPropertyChanged,
			Device:   prop.Device,
			Property: prop.Name,
			Prop:     prop,
		})
		if ev.Update.Message != "" {
			b.recordMessage(indi.LogMessage{
				Device:    ev.Update.Device,
				Timestamp: indi.ParseTimestamp(ev.Update.Timestamp),
				Text:      ev.Update.Message,
			})
		}

	case indi.EventDelete:
		removed := b.applyDelete(ev.Delete.Device, ev.Delete.Name)
		for _, name := range removed {
			b.notify(Notification{
				Type:     EventPropertyDeleted,
				Device:   ev.Delete.Device,
				Property: name,
			})
		}

	case indi.EventMessage:
		b.recordMessage(*ev.Message)
	}
}

// recordMessage stores a message and notifies subscribers.
func (b *Bridge) recordMessage(msg indi.LogMessage) {
	b.appendMessage(msg)
	b.notify(Notification{
		Type:    EventDeviceMessage,
		Device:  msg.Device,
		Message: &msg,
	})
}

// maybeAutoconnect switches a freshly defined device to CONNECT when
// the active profile asks for it. Only the first CONNECTION definition
// per device triggers a connect attempt.
func (b *Bridge) maybeAutoconnect(prop *indi.Property) {
	if !b.autoconnect || prop.Name != "CONNECTION" {
		return
	}
	if el := prop.Element("CONNECT"); el == nil || el.Value == indi.SwitchOn {
		return
	}

	b.runMu.Lock()
	if b.attempted[prop.Device] {
		b.runMu.Unlock()
		return
	}
	b.attempted[prop.Device] = true
	b.runMu.Unlock()

	device := prop.Device
	wait := b.cfg.AutoConnectWait

	// Drivers often need a moment after definition before accepting a
	// connect, so the write happens off the ingest goroutine.
	time.AfterFunc(wait, func() {
		b.logger.Info("auto-connecting device", "device", device)
		if err := b.SetProperty(device, "CONNECTION", map[string]string{
			"CONNECT": indi.SwitchOn,
		}); err != nil {
			b.logger.Warn("auto-connect failed", "device", device, "error", err)
		}
	})
}

// setConn swaps the active connection.
func (b *Bridge) setConn(conn net.Conn) {
	b.connMu.Lock()
	b.conn = conn
	b.connMu.Unlock()
}

// closeConn closes the active connection, unblocking the ingest loop.
func (b *Bridge) closeConn() {
	b.connMu.Lock()
	if b.conn != nil {
		b.conn.Close() //nolint:errcheck
	}
	b.connMu.Unlock()
}

// send writes raw protocol bytes to the server, serialised so client
// writes never interleave.
func (b *Bridge) send(data []byte) error {
	b.connMu.Lock()
	defer b.connMu.Unlock()

	if b.conn == nil {
		return ErrNotConnected
	}
	if _, err := b.conn.Write(data); err != nil {
		return err
	}
	return nil
}
