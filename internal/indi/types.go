package indi

import "time"

// DefaultPort is the standard INDI server TCP port.
const DefaultPort = 7624

// ProtocolVersion is the INDI protocol version sent in the getProperties
// handshake.
const ProtocolVersion = "1.7"

// PropertyType identifies the value kind of a property vector.
type PropertyType string

// Property types as they appear in the wire protocol element names
// (defTextVector, defNumberVector, ...).
const (
	TypeText   PropertyType = "text"
	TypeNumber PropertyType = "number"
	TypeSwitch PropertyType = "switch"
	TypeLight  PropertyType = "light"
	TypeBLOB   PropertyType = "blob"
)

// PropertyState is the device-reported state of a property vector.
type PropertyState string

// Property states. Alert indicates the last operation on the property
// failed; Busy indicates an operation is in progress.
const (
	StateIdle  PropertyState = "Idle"
	StateOk    PropertyState = "Ok"
	StateBusy  PropertyState = "Busy"
	StateAlert PropertyState = "Alert"
)

// Permission controls the client-side writability of a property vector.
type Permission string

// Permissions. Light vectors are always read-only regardless of the
// advertised permission.
const (
	PermReadOnly  Permission = "ro"
	PermWriteOnly Permission = "wo"
	PermReadWrite Permission = "rw"
)

// SwitchRule constrains how many elements of a switch vector may be On.
type SwitchRule string

// Switch rules.
const (
	// RuleOneOfMany requires exactly one element On at all times.
	RuleOneOfMany SwitchRule = "OneOfMany"
	// RuleAtMostOne allows zero or one element On.
	RuleAtMostOne SwitchRule = "AtMostOne"
	// RuleAnyOfMany places no constraint on element states.
	RuleAnyOfMany SwitchRule = "AnyOfMany"
)

// Switch element values on the wire.
const (
	SwitchOn  = "On"
	SwitchOff = "Off"
)

// Element is a single named member of a property vector.
//
// Value is always the wire string form. For number elements the parsed
// float is held in Number and the driver-advertised constraints in
// Min/Max/Step; Format is the INDI printf-style format (including the
// sexagesimal %m directive) used to render the value back to a string.
type Element struct {
	Name   string  `json:"name"`
	Label  string  `json:"label,omitempty"`
	Value  string  `json:"value"`
	Number float64 `json:"number,omitempty"`
	Format string  `json:"format,omitempty"`
	Min    float64 `json:"min,omitempty"`
	Max    float64 `json:"max,omitempty"`
	Step   float64 `json:"step,omitempty"`
}

// Property is a property vector: a named, typed group of elements
// belonging to a device.
//
// Elements preserves the definition order from the driver; INDI clients
// are expected to present elements in that order.
type Property struct {
	Device    string        `json:"device"`
	Name      string        `json:"name"`
	Label     string        `json:"label,omitempty"`
	Group     string        `json:"group,omitempty"`
	Type      PropertyType  `json:"type"`
	State     PropertyState `json:"state"`
	Perm      Permission    `json:"perm"`
	Rule      SwitchRule    `json:"rule,omitempty"`
	Timeout   float64       `json:"timeout,omitempty"`
	Timestamp string        `json:"timestamp,omitempty"`
	Elements  []Element     `json:"elements"`
}

// Element returns the element with the given name, or nil if absent.
func (p *Property) Element(name string) *Element {
	for i := range p.Elements {
		if p.Elements[i].Name == name {
			return &p.Elements[i]
		}
	}
	return nil
}

// Writable reports whether clients may set values on this property.
func (p *Property) Writable() bool {
	if p.Type == TypeLight {
		return false
	}
	return p.Perm == PermWriteOnly || p.Perm == PermReadWrite
}

// Clone returns a deep copy of the property. The bridge hands clones to
// API readers so the ingest goroutine can keep mutating the original.
func (p *Property) Clone() *Property {
	cp := *p
	cp.Elements = make([]Element, len(p.Elements))
	copy(cp.Elements, p.Elements)
	return &cp
}

// EventKind discriminates the events produced by the protocol decoder.
type EventKind int

// Decoder event kinds.
const (
	// EventDefine carries a full property definition (defXXXVector).
	EventDefine EventKind = iota
	// EventUpdate carries new values for an existing property (setXXXVector).
	EventUpdate
	// EventDelete removes a property or a whole device (delProperty).
	EventDelete
	// EventMessage carries a free-form device or server message.
	EventMessage
)

// String returns a short name for the event kind, used in logs.
func (k EventKind) String() string {
	switch k {
	case EventDefine:
		return "define"
	case EventUpdate:
		return "update"
	case EventDelete:
		return "delete"
	case EventMessage:
		return "message"
	default:
		return "unknown"
	}
}

// Update carries replacement values for an already-defined property.
// Elements not named in Values keep their previous value.
type Update struct {
	Device    string
	Name      string
	State     PropertyState
	Timeout   float64
	HasState  bool
	Timestamp string
	Values    []ElementValue
	Message   string
}

// ElementValue is a single name/value pair within an update or a client
// write.
type ElementValue struct {
	Name  string
	Value string
}

// Delete identifies a property, or an entire device when Name is empty,
// that the server has withdrawn.
type Delete struct {
	Device    string
	Name      string
	Timestamp string
	Message   string
}

// LogMessage is a human-readable message from a device or from the
// server itself (empty Device).
type LogMessage struct {
	Device    string    `json:"device,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"message"`
}

// Event is a single decoded protocol event. Exactly one of the pointer
// fields is non-nil, selected by Kind.
type Event struct {
	Kind     EventKind
	Property *Property
	Update   *Update
	Delete   *Delete
	Message  *LogMessage
}
