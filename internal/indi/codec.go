package indi

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// timestampLayout is the ISO 8601 form used by INDI drivers (no zone,
// always UTC).
const timestampLayout = "2006-01-02T15:04:05"

// Decoder reads INDI protocol events from an XML stream.
//
// The INDI wire format is a sequence of top-level XML elements with no
// enclosing document root, so the decoder processes tokens one element
// at a time rather than unmarshalling a document.
//
// Not safe for concurrent use; the bridge drives a single decoder from
// its ingest goroutine.
type Decoder struct {
	d *xml.Decoder
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	d := xml.NewDecoder(r)
	// Driver messages occasionally carry raw control characters.
	d.Strict = false
	return &Decoder{d: d}
}

// Next returns the next protocol event. It blocks until a complete
// element is available, skipping BLOB vectors and unrecognised elements.
// Returns io.EOF when the stream ends.
func (dec *Decoder) Next() (*Event, error) {
	for {
		tok, err := dec.d.Token()
		if err != nil {
			return nil, err
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch name := start.Name.Local; {
		case strings.HasPrefix(name, "def") && strings.HasSuffix(name, "Vector"):
			return dec.decodeDefine(start)
		case strings.HasPrefix(name, "set") && strings.HasSuffix(name, "Vector"):
			return dec.decodeUpdate(start)
		case name == "delProperty":
			return dec.decodeDelete(start)
		case name == "message":
			return dec.decodeMessage(start)
		default:
			if err := dec.d.Skip(); err != nil {
				return nil, err
			}
		}
	}
}

// defVector mirrors the wire form of defTextVector, defNumberVector,
// defSwitchVector and defLightVector. Each vector carries children of a
// single element tag, so per-tag slices preserve definition order.
type defVector struct {
	Device    string       `xml:"device,attr"`
	Name      string       `xml:"name,attr"`
	Label     string       `xml:"label,attr"`
	Group     string       `xml:"group,attr"`
	State     string       `xml:"state,attr"`
	Perm      string       `xml:"perm,attr"`
	Rule      string       `xml:"rule,attr"`
	Timeout   string       `xml:"timeout,attr"`
	Timestamp string       `xml:"timestamp,attr"`
	Texts     []defElement `xml:"defText"`
	Numbers   []defElement `xml:"defNumber"`
	Switches  []defElement `xml:"defSwitch"`
	Lights    []defElement `xml:"defLight"`
}

type defElement struct {
	Name   string `xml:"name,attr"`
	Label  string `xml:"label,attr"`
	Format string `xml:"format,attr"`
	Min    string `xml:"min,attr"`
	Max    string `xml:"max,attr"`
	Step   string `xml:"step,attr"`
	Value  string `xml:",chardata"`
}

// vectorType maps a defXXXVector / setXXXVector element name to the
// property type. BLOB vectors are filtered out before this is called.
func vectorType(local string) (PropertyType, bool) {
	switch {
	case strings.Contains(local, "Text"):
		return TypeText, true
	case strings.Contains(local, "Number"):
		return TypeNumber, true
	case strings.Contains(local, "Switch"):
		return TypeSwitch, true
	case strings.Contains(local, "Light"):
		return TypeLight, true
	default:
		return "", false
	}
}

func (dec *Decoder) decodeDefine(start xml.StartElement) (*Event, error) {
	ptype, ok := vectorType(start.Name.Local)
	if !ok {
		if err := dec.d.Skip(); err != nil {
			return nil, err
		}
		return dec.Next()
	}

	var dv defVector
	if err := dec.d.DecodeElement(&dv, &start); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", start.Name.Local, err)
	}

	prop := &Property{
		Device:    dv.Device,
		Name:      dv.Name,
		Label:     dv.Label,
		Group:     dv.Group,
		Type:      ptype,
		State:     parseState(dv.State),
		Perm:      parsePerm(dv.Perm, ptype),
		Timestamp: dv.Timestamp,
	}
	if ptype == TypeSwitch {
		prop.Rule = parseRule(dv.Rule)
	}
	if dv.Timeout != "" {
		prop.Timeout, _ = strconv.ParseFloat(dv.Timeout, 64)
	}

	var children []defElement
	switch ptype {
	case TypeText:
		children = dv.Texts
	case TypeNumber:
		children = dv.Numbers
	case TypeSwitch:
		children = dv.Switches
	case TypeLight:
		children = dv.Lights
	}

	prop.Elements = make([]Element, 0, len(children))
	for _, c := range children {
		el := Element{
			Name:   c.Name,
			Label:  c.Label,
			Value:  strings.TrimSpace(c.Value),
			Format: c.Format,
		}
		if ptype == TypeNumber {
			el.Number, _ = ParseNumber(el.Value)
			el.Min, _ = ParseNumber(c.Min)
			el.Max, _ = ParseNumber(c.Max)
			el.Step, _ = ParseNumber(c.Step)
		}
		prop.Elements = append(prop.Elements, el)
	}

	return &Event{Kind: EventDefine, Property: prop}, nil
}

// setVector mirrors setTextVector and friends.
type setVector struct {
	Device    string       `xml:"device,attr"`
	Name      string       `xml:"name,attr"`
	State     string       `xml:"state,attr"`
	Timeout   string       `xml:"timeout,attr"`
	Timestamp string       `xml:"timestamp,attr"`
	Message   string       `xml:"message,attr"`
	Texts     []defElement `xml:"oneText"`
	Numbers   []defElement `xml:"oneNumber"`
	Switches  []defElement `xml:"oneSwitch"`
	Lights    []defElement `xml:"oneLight"`
}

func (dec *Decoder) decodeUpdate(start xml.StartElement) (*Event, error) {
	if _, ok := vectorType(start.Name.Local); !ok {
		if err := dec.d.Skip(); err != nil {
			return nil, err
		}
		return dec.Next()
	}

	var sv setVector
	if err := dec.d.DecodeElement(&sv, &start); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", start.Name.Local, err)
	}

	upd := &Update{
		Device:    sv.Device,
		Name:      sv.Name,
		Timestamp: sv.Timestamp,
		Message:   sv.Message,
	}
	if sv.State != "" {
		upd.State = parseState(sv.State)
		upd.HasState = true
	}
	if sv.Timeout != "" {
		upd.Timeout, _ = strconv.ParseFloat(sv.Timeout, 64)
	}

	for _, group := range [][]defElement{sv.Texts, sv.Numbers, sv.Switches, sv.Lights} {
		for _, c := range group {
			upd.Values = append(upd.Values, ElementValue{
				Name:  c.Name,
				Value: strings.TrimSpace(c.Value),
			})
		}
	}

	return &Event{Kind: EventUpdate, Update: upd}, nil
}

func (dec *Decoder) decodeDelete(start xml.StartElement) (*Event, error) {
	var del struct {
		Device    string `xml:"device,attr"`
		Name      string `xml:"name,attr"`
		Timestamp string `xml:"timestamp,attr"`
		Message   string `xml:"message,attr"`
	}
	if err := dec.d.DecodeElement(&del, &start); err != nil {
		return nil, fmt.Errorf("decoding delProperty: %w", err)
	}
	return &Event{Kind: EventDelete, Delete: &Delete{
		Device:    del.Device,
		Name:      del.Name,
		Timestamp: del.Timestamp,
		Message:   del.Message,
	}}, nil
}

func (dec *Decoder) decodeMessage(start xml.StartElement) (*Event, error) {
	var msg struct {
		Device    string `xml:"device,attr"`
		Timestamp string `xml:"timestamp,attr"`
		Message   string `xml:"message,attr"`
	}
	if err := dec.d.DecodeElement(&msg, &start); err != nil {
		return nil, fmt.Errorf("decoding message: %w", err)
	}
	return &Event{Kind: EventMessage, Message: &LogMessage{
		Device:    msg.Device,
		Timestamp: ParseTimestamp(msg.Timestamp),
		Text:      msg.Message,
	}}, nil
}

// ParseTimestamp parses an INDI timestamp attribute, falling back to the
// current time when absent or malformed.
func ParseTimestamp(s string) time.Time {
	if s != "" {
		if t, err := time.Parse(timestampLayout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}

func parseState(s string) PropertyState {
	switch PropertyState(s) {
	case StateIdle, StateOk, StateBusy, StateAlert:
		return PropertyState(s)
	default:
		return StateIdle
	}
}

func parsePerm(s string, ptype PropertyType) Permission {
	if ptype == TypeLight {
		return PermReadOnly
	}
	switch Permission(s) {
	case PermReadOnly, PermWriteOnly, PermReadWrite:
		return Permission(s)
	default:
		return PermReadOnly
	}
}

func parseRule(s string) SwitchRule {
	switch SwitchRule(s) {
	case RuleOneOfMany, RuleAtMostOne, RuleAnyOfMany:
		return SwitchRule(s)
	default:
		return RuleAnyOfMany
	}
}

// newVectorNames maps a property type to its client write element names.
var newVectorNames = map[PropertyType][2]string{
	TypeText:   {"newTextVector", "oneText"},
	TypeNumber: {"newNumberVector", "oneNumber"},
	TypeSwitch: {"newSwitchVector", "oneSwitch"},
}

// EncodeGetProperties renders the client handshake that asks the server
// to send property definitions. An empty device requests all devices.
func EncodeGetProperties(device string) []byte {
	var b strings.Builder
	b.WriteString(`<getProperties version="` + ProtocolVersion + `"`)
	if device != "" {
		b.WriteString(` device="`)
		b.WriteString(escapeAttr(device))
		b.WriteString(`"`)
	}
	b.WriteString("/>\n")
	return []byte(b.String())
}

// EncodeEnableBLOB renders an enableBLOB element. The bridge sends mode
// "Never" for each defined device since BLOB payloads are not mirrored.
func EncodeEnableBLOB(device, mode string) []byte {
	return []byte(fmt.Sprintf("<enableBLOB device=\"%s\">%s</enableBLOB>\n",
		escapeAttr(device), escapeText(mode)))
}

// EncodeNewVector renders a client write (newTextVector, newNumberVector
// or newSwitchVector) carrying the given element values. Light and BLOB
// properties are not client-writable.
func EncodeNewVector(ptype PropertyType, device, name string, values []ElementValue) ([]byte, error) {
	names, ok := newVectorNames[ptype]
	if !ok {
		return nil, fmt.Errorf("property type %q is not writable", ptype)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<%s device=\"%s\" name=\"%s\">\n",
		names[0], escapeAttr(device), escapeAttr(name))
	for _, v := range values {
		fmt.Fprintf(&b, "  <%s name=\"%s\">%s</%s>\n",
			names[1], escapeAttr(v.Name), escapeText(v.Value), names[1])
	}
	fmt.Fprintf(&b, "</%s>\n", names[0])
	return []byte(b.String()), nil
}

func escapeAttr(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s)) //nolint:errcheck // strings.Builder never errors
	return b.String()
}

func escapeText(s string) string {
	return escapeAttr(s)
}
