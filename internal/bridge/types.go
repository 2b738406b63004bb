package bridge

import (
	"time"

	"github.com/observon/indi-core/internal/indi"
)

// messageLogCapacity bounds the retained device/server message log.
const messageLogCapacity = 500

// EventType classifies bridge notifications.
type EventType string

// Notification event types, also used as WebSocket channel names and
// MQTT topic suffixes.
const (
	EventPropertyDefined EventType = "property.defined"
	EventPropertyChanged EventType = "property.changed"
	EventPropertyDeleted EventType = "property.deleted"
	EventDeviceMessage   EventType = "device.message"
)

// Notification is pushed to subscribers on every mirrored change.
// Prop is a clone; subscribers may retain it.
type Notification struct {
	Type     EventType        `json:"type"`
	Device   string           `json:"device"`
	Property string           `json:"property,omitempty"`
	Prop     *indi.Property   `json:"prop,omitempty"`
	Message  *indi.LogMessage `json:"message,omitempty"`
}

// EventHandler receives notifications. Handlers run on the ingest
// goroutine and must not block.
type EventHandler func(Notification)

// DirtyResult answers an incremental poll: everything that changed on a
// device since the caller's cursor.
type DirtyResult struct {
	// Now is the server-side cursor for the caller's next poll.
	Now time.Time `json:"now"`

	// Changed holds properties defined or updated after the cursor.
	Changed []*indi.Property `json:"changed"`

	// Deleted holds names of properties withdrawn after the cursor.
	Deleted []string `json:"deleted"`
}

// BatchResult answers a multi-status batch fetch: the requested
// properties that exist, plus the names that do not.
type BatchResult struct {
	Properties map[string]*indi.Property `json:"properties"`
	Unknown    []string                  `json:"unknown,omitempty"`
}

// DeviceSnapshot is one device's full property tree.
type DeviceSnapshot struct {
	Device     string           `json:"device"`
	Properties []*indi.Property `json:"properties"`
}
