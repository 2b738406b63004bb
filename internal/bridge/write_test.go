package bridge

import (
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/observon/indi-core/internal/indi"
)

// captureWrites attaches one end of a pipe as the bridge connection and
// returns a function that yields everything written so far.
func captureWrites(t *testing.T, b *Bridge) func() string {
	t.Helper()

	client, server := net.Pipe()
	b.setConn(client)
	t.Cleanup(func() { client.Close(); server.Close() }) //nolint:errcheck

	got := make(chan string, 16)
	go func() {
		buf := make([]byte, 4096)
		for {
			server.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
			n, err := server.Read(buf)
			if n > 0 {
				got <- string(buf[:n])
			}
			if err != nil {
				close(got)
				return
			}
		}
	}()

	return func() string {
		var sb strings.Builder
		for {
			select {
			case chunk, ok := <-got:
				if !ok {
					return sb.String()
				}
				sb.WriteString(chunk)
			case <-time.After(200 * time.Millisecond):
				return sb.String()
			}
		}
	}
}

func switchProperty(rule indi.SwitchRule) *indi.Event {
	return withRule(defineEvent("CCD Simulator", "CONNECTION",
		indi.TypeSwitch, indi.PermReadWrite,
		indi.Element{Name: "CONNECT", Value: indi.SwitchOff},
		indi.Element{Name: "DISCONNECT", Value: indi.SwitchOn},
	), rule)
}

// withRule sets the switch rule on a define event's property.
func withRule(e *indi.Event, rule indi.SwitchRule) *indi.Event {
	e.Property.Rule = rule
	return e
}

func TestSetProperty_UnknownTargets(t *testing.T) {
	b := newTestBridge()
	b.processEvent(defineEvent("Dev", "PROP", indi.TypeText, indi.PermReadWrite,
		indi.Element{Name: "E"}))

	tests := []struct {
		name     string
		device   string
		property string
		values   map[string]string
		wantErr  error
	}{
		{"unknown device", "Nope", "PROP", map[string]string{"E": "x"}, ErrUnknownDevice},
		{"unknown property", "Dev", "NOPE", map[string]string{"E": "x"}, ErrUnknownProperty},
		{"unknown element", "Dev", "PROP", map[string]string{"NOPE": "x"}, ErrUnknownElement},
		{"empty values", "Dev", "PROP", nil, ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := b.SetProperty(tt.device, tt.property, tt.values)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("SetProperty() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSetProperty_PermissionDenied(t *testing.T) {
	b := newTestBridge()

	b.processEvent(defineEvent("Dev", "RO", indi.TypeText, indi.PermReadOnly,
		indi.Element{Name: "E"}))
	if err := b.SetProperty("Dev", "RO", map[string]string{"E": "x"}); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("write to ro property = %v, want ErrPermissionDenied", err)
	}

	// Lights are read-only regardless of advertised permission.
	b.processEvent(defineEvent("Dev", "ALERTS", indi.TypeLight, indi.PermReadWrite,
		indi.Element{Name: "RAIN", Value: "Idle"}))
	if err := b.SetProperty("Dev", "ALERTS", map[string]string{"RAIN": "Ok"}); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("write to light = %v, want ErrPermissionDenied", err)
	}
}

func TestSetProperty_NotConnected(t *testing.T) {
	b := newTestBridge()
	b.processEvent(defineEvent("Dev", "PROP", indi.TypeText, indi.PermReadWrite,
		indi.Element{Name: "E"}))

	if err := b.SetProperty("Dev", "PROP", map[string]string{"E": "x"}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("SetProperty() without connection = %v, want ErrNotConnected", err)
	}
}

func TestSetProperty_TextWrite(t *testing.T) {
	b := newTestBridge()
	b.processEvent(defineEvent("Dev", "FILTER_NAME", indi.TypeText, indi.PermReadWrite,
		indi.Element{Name: "SLOT_1"},
		indi.Element{Name: "SLOT_2"}))
	read := captureWrites(t, b)

	if err := b.SetProperty("Dev", "FILTER_NAME", map[string]string{"SLOT_1": "Red"}); err != nil {
		t.Fatalf("SetProperty() error = %v", err)
	}

	out := read()
	if !strings.Contains(out, `<newTextVector device="Dev" name="FILTER_NAME">`) {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, `<oneText name="SLOT_1">Red</oneText>`) {
		t.Errorf("output = %q", out)
	}
	if strings.Contains(out, "SLOT_2") {
		t.Errorf("unrequested element sent: %q", out)
	}
}

func TestSetProperty_NumberValidation(t *testing.T) {
	b := newTestBridge()
	b.processEvent(defineEvent("Scope", "COORDS", indi.TypeNumber, indi.PermReadWrite,
		indi.Element{Name: "RA", Min: 0, Max: 24},
		indi.Element{Name: "DEC", Min: -90, Max: 90}))
	read := captureWrites(t, b)

	if err := b.SetProperty("Scope", "COORDS", map[string]string{"RA": "junk"}); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("unparsable number = %v, want ErrInvalidValue", err)
	}
	if err := b.SetProperty("Scope", "COORDS", map[string]string{"RA": "25"}); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("out of range = %v, want ErrInvalidValue", err)
	}

	// Sexagesimal input is accepted and sent as canonical decimal.
	if err := b.SetProperty("Scope", "COORDS", map[string]string{"RA": "12:30"}); err != nil {
		t.Fatalf("SetProperty() error = %v", err)
	}
	out := read()
	if !strings.Contains(out, `<oneNumber name="RA">12.5</oneNumber>`) {
		t.Errorf("output = %q", out)
	}
}

func TestSetProperty_SwitchOneOfMany(t *testing.T) {
	b := newTestBridge()
	b.processEvent(switchProperty(indi.RuleOneOfMany))
	read := captureWrites(t, b)

	// Zero On violates the rule.
	err := b.SetProperty("CCD Simulator", "CONNECTION", map[string]string{
		"CONNECT": "Off",
	})
	if !errors.Is(err, ErrInvalidValue) {
		t.Errorf("all-off under OneOfMany = %v, want ErrInvalidValue", err)
	}

	// Two On violates the rule.
	err = b.SetProperty("CCD Simulator", "CONNECTION", map[string]string{
		"CONNECT": "On", "DISCONNECT": "On",
	})
	if !errors.Is(err, ErrInvalidValue) {
		t.Errorf("two-on under OneOfMany = %v, want ErrInvalidValue", err)
	}

	// One On is completed to a full vector with the rest Off.
	if err := b.SetProperty("CCD Simulator", "CONNECTION", map[string]string{
		"CONNECT": "On",
	}); err != nil {
		t.Fatalf("SetProperty() error = %v", err)
	}
	out := read()
	if !strings.Contains(out, `<oneSwitch name="CONNECT">On</oneSwitch>`) ||
		!strings.Contains(out, `<oneSwitch name="DISCONNECT">Off</oneSwitch>`) {
		t.Errorf("completion output = %q", out)
	}
}

func TestSetProperty_SwitchAtMostOne(t *testing.T) {
	b := newTestBridge()
	b.processEvent(switchProperty(indi.RuleAtMostOne))
	read := captureWrites(t, b)

	// All Off is allowed under AtMostOne.
	if err := b.SetProperty("CCD Simulator", "CONNECTION", map[string]string{
		"DISCONNECT": "Off",
	}); err != nil {
		t.Fatalf("all-off under AtMostOne error = %v", err)
	}
	out := read()
	if !strings.Contains(out, `<oneSwitch name="CONNECT">Off</oneSwitch>`) {
		t.Errorf("completion should include all elements: %q", out)
	}

	err := b.SetProperty("CCD Simulator", "CONNECTION", map[string]string{
		"CONNECT": "On", "DISCONNECT": "On",
	})
	if !errors.Is(err, ErrInvalidValue) {
		t.Errorf("two-on under AtMostOne = %v, want ErrInvalidValue", err)
	}
}

func TestSetProperty_SwitchAnyOfMany(t *testing.T) {
	b := newTestBridge()
	b.processEvent(withRule(defineEvent("Filter", "SLOTS", indi.TypeSwitch, indi.PermReadWrite,
		indi.Element{Name: "A", Value: indi.SwitchOff},
		indi.Element{Name: "B", Value: indi.SwitchOff},
		indi.Element{Name: "C", Value: indi.SwitchOff},
	), indi.RuleAnyOfMany))
	read := captureWrites(t, b)

	if err := b.SetProperty("Filter", "SLOTS", map[string]string{
		"A": "On", "C": "On",
	}); err != nil {
		t.Fatalf("SetProperty() error = %v", err)
	}

	out := read()
	if strings.Contains(out, `name="B"`) {
		t.Errorf("AnyOfMany should not complete unmentioned elements: %q", out)
	}

	err := b.SetProperty("Filter", "SLOTS", map[string]string{"A": "Maybe"})
	if !errors.Is(err, ErrInvalidValue) {
		t.Errorf("bad switch value = %v, want ErrInvalidValue", err)
	}
}

func TestSetProperty_DoesNotMutateTree(t *testing.T) {
	b := newTestBridge()
	b.processEvent(switchProperty(indi.RuleOneOfMany))
	captureWrites(t, b)

	if err := b.SetProperty("CCD Simulator", "CONNECTION", map[string]string{
		"CONNECT": "On",
	}); err != nil {
		t.Fatalf("SetProperty() error = %v", err)
	}

	// The mirror only changes when the server echoes the new state.
	prop, err := b.Property("CCD Simulator", "CONNECTION")
	if err != nil {
		t.Fatal(err)
	}
	if prop.Element("CONNECT").Value != indi.SwitchOff {
		t.Error("SetProperty must not update the mirrored tree optimistically")
	}
}
