package bridge

import (
	"errors"
	"testing"
	"time"

	"github.com/observon/indi-core/internal/indi"
	"github.com/observon/indi-core/internal/infrastructure/config"
	"github.com/observon/indi-core/internal/infrastructure/logging"
)

func newTestBridge() *Bridge {
	return New(config.INDIConfig{Port: indi.DefaultPort}, logging.Default())
}

func defineEvent(device, name string, ptype indi.PropertyType, perm indi.Permission, elements ...indi.Element) *indi.Event {
	return &indi.Event{
		Kind: indi.EventDefine,
		Property: &indi.Property{
			Device:   device,
			Name:     name,
			Type:     ptype,
			State:    indi.StateIdle,
			Perm:     perm,
			Elements: elements,
		},
	}
}

func TestProcessEvent_Define(t *testing.T) {
	b := newTestBridge()

	b.processEvent(defineEvent("CCD Simulator", "CCD_EXPOSURE",
		indi.TypeNumber, indi.PermReadWrite,
		indi.Element{Name: "CCD_EXPOSURE_VALUE", Value: "1", Number: 1}))

	devices := b.Devices()
	if len(devices) != 1 || devices[0] != "CCD Simulator" {
		t.Fatalf("Devices() = %v", devices)
	}

	props, err := b.Structure("CCD Simulator")
	if err != nil {
		t.Fatalf("Structure() error = %v", err)
	}
	if len(props) != 1 || props[0].Name != "CCD_EXPOSURE" {
		t.Errorf("Structure() = %+v", props)
	}

	if _, err := b.Structure("Missing"); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("Structure(missing) = %v, want ErrUnknownDevice", err)
	}
}

func TestProcessEvent_UpdateMergesValues(t *testing.T) {
	b := newTestBridge()

	b.processEvent(defineEvent("Scope", "COORDS",
		indi.TypeNumber, indi.PermReadWrite,
		indi.Element{Name: "RA", Value: "0", Number: 0},
		indi.Element{Name: "DEC", Value: "0", Number: 0}))

	b.processEvent(&indi.Event{Kind: indi.EventUpdate, Update: &indi.Update{
		Device: "Scope", Name: "COORDS",
		State: indi.StateBusy, HasState: true,
		Values: []indi.ElementValue{{Name: "RA", Value: "3.5"}},
	}})

	prop, err := b.Property("Scope", "COORDS")
	if err != nil {
		t.Fatal(err)
	}
	if prop.State != indi.StateBusy {
		t.Errorf("State = %v, want Busy", prop.State)
	}
	ra := prop.Element("RA")
	if ra.Value != "3.5" || ra.Number != 3.5 {
		t.Errorf("RA = %+v", ra)
	}
	if dec := prop.Element("DEC"); dec.Value != "0" {
		t.Errorf("DEC should be untouched, got %+v", dec)
	}
}

func TestProcessEvent_UpdateUnknownIgnored(t *testing.T) {
	b := newTestBridge()

	// Must not panic or create phantom devices.
	b.processEvent(&indi.Event{Kind: indi.EventUpdate, Update: &indi.Update{
		Device: "Ghost", Name: "PROP",
		Values: []indi.ElementValue{{Name: "X", Value: "1"}},
	}})

	if len(b.Devices()) != 0 {
		t.Errorf("Devices() = %v, want empty", b.Devices())
	}
}

func TestProcessEvent_DeleteProperty(t *testing.T) {
	b := newTestBridge()

	b.processEvent(defineEvent("Dev", "A", indi.TypeText, indi.PermReadOnly,
		indi.Element{Name: "E"}))
	b.processEvent(defineEvent("Dev", "B", indi.TypeText, indi.PermReadOnly,
		indi.Element{Name: "E"}))

	b.processEvent(&indi.Event{Kind: indi.EventDelete, Delete: &indi.Delete{
		Device: "Dev", Name: "A",
	}})

	if _, err := b.Property("Dev", "A"); !errors.Is(err, ErrUnknownProperty) {
		t.Errorf("deleted property lookup = %v, want ErrUnknownProperty", err)
	}
	if _, err := b.Property("Dev", "B"); err != nil {
		t.Errorf("surviving property lookup error = %v", err)
	}
}

func TestProcessEvent_DeleteDevice(t *testing.T) {
	b := newTestBridge()

	b.processEvent(defineEvent("Dev", "A", indi.TypeText, indi.PermReadOnly,
		indi.Element{Name: "E"}))
	b.processEvent(defineEvent("Dev", "B", indi.TypeText, indi.PermReadOnly,
		indi.Element{Name: "E"}))

	b.processEvent(&indi.Event{Kind: indi.EventDelete, Delete: &indi.Delete{
		Device: "Dev",
	}})

	// The withdrawn device must disappear entirely, not linger with an
	// empty tree.
	if got := b.Devices(); len(got) != 0 {
		t.Errorf("Devices() after device-wide delete = %v, want empty", got)
	}
	if _, err := b.Structure("Dev"); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("Structure() after device-wide delete = %v, want ErrUnknownDevice", err)
	}
	if _, err := b.Dirty("Dev", time.Time{}); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("Dirty() after device-wide delete = %v, want ErrUnknownDevice", err)
	}
}

func TestBatch_MultiStatus(t *testing.T) {
	b := newTestBridge()

	b.processEvent(defineEvent("Scope", "COORDS",
		indi.TypeNumber, indi.PermReadWrite,
		indi.Element{Name: "RA", Value: "12.5", Number: 12.5},
		indi.Element{Name: "DEC", Value: "0", Number: 0}))
	b.processEvent(defineEvent("Scope", "CONNECTION",
		indi.TypeSwitch, indi.PermReadWrite,
		indi.Element{Name: "CONNECT", Value: "On"}))

	res, err := b.Batch("Scope", []string{"COORDS", "NOPE", "CONNECTION"})
	if err != nil {
		t.Fatalf("Batch() error = %v", err)
	}
	if len(res.Properties) != 2 {
		t.Errorf("Properties = %d, want 2", len(res.Properties))
	}
	if got := res.Properties["COORDS"].Element("RA").Number; got != 12.5 {
		t.Errorf("RA = %v, want 12.5", got)
	}
	if len(res.Unknown) != 1 || res.Unknown[0] != "NOPE" {
		t.Errorf("Unknown = %v, want [NOPE]", res.Unknown)
	}

	if _, err := b.Batch("Ghost", []string{"X"}); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("Batch(unknown device) = %v, want ErrUnknownDevice", err)
	}

	// Results are clones.
	res.Properties["COORDS"].Elements[0].Value = "mutated"
	prop, _ := b.Property("Scope", "COORDS") //nolint:errcheck
	if prop.Element("RA").Value != "12.5" {
		t.Error("Batch() must return clones")
	}
}

func TestDirty_CursorSemantics(t *testing.T) {
	b := newTestBridge()

	b.processEvent(defineEvent("Dev", "A", indi.TypeText, indi.PermReadWrite,
		indi.Element{Name: "E", Value: "1"}))
	b.processEvent(defineEvent("Dev", "B", indi.TypeText, indi.PermReadWrite,
		indi.Element{Name: "E", Value: "1"}))

	// Zero cursor returns the full tree.
	res, err := b.Dirty("Dev", time.Time{})
	if err != nil {
		t.Fatalf("Dirty() error = %v", err)
	}
	if len(res.Changed) != 2 {
		t.Fatalf("initial Dirty() changed = %d, want 2", len(res.Changed))
	}

	// Nothing changed since the cursor: empty result.
	cursor := res.Now
	res, err = b.Dirty("Dev", cursor)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Changed) != 0 || len(res.Deleted) != 0 {
		t.Errorf("quiet poll returned %+v", res)
	}

	// One update dirties exactly one property.
	time.Sleep(time.Millisecond)
	b.processEvent(&indi.Event{Kind: indi.EventUpdate, Update: &indi.Update{
		Device: "Dev", Name: "B",
		Values: []indi.ElementValue{{Name: "E", Value: "2"}},
	}})

	res, err = b.Dirty("Dev", cursor)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Changed) != 1 || res.Changed[0].Name != "B" {
		t.Errorf("after update Dirty() = %+v", res.Changed)
	}

	// Deletions surface through the same cursor.
	cursor = res.Now
	time.Sleep(time.Millisecond)
	b.processEvent(&indi.Event{Kind: indi.EventDelete, Delete: &indi.Delete{
		Device: "Dev", Name: "A",
	}})

	res, err = b.Dirty("Dev", cursor)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Deleted) != 1 || res.Deleted[0] != "A" {
		t.Errorf("Deleted = %v, want [A]", res.Deleted)
	}
}

func TestDirty_RedefineClearsTombstone(t *testing.T) {
	b := newTestBridge()

	b.processEvent(defineEvent("Dev", "A", indi.TypeText, indi.PermReadWrite,
		indi.Element{Name: "E"}))
	b.processEvent(&indi.Event{Kind: indi.EventDelete, Delete: &indi.Delete{
		Device: "Dev", Name: "A",
	}})
	b.processEvent(defineEvent("Dev", "A", indi.TypeText, indi.PermReadWrite,
		indi.Element{Name: "E"}))

	res, err := b.Dirty("Dev", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Deleted) != 0 {
		t.Errorf("redefined property still listed as deleted: %v", res.Deleted)
	}
	if len(res.Changed) != 1 {
		t.Errorf("Changed = %+v, want the redefined property", res.Changed)
	}
}

func TestMessages(t *testing.T) {
	b := newTestBridge()

	b.processEvent(&indi.Event{Kind: indi.EventMessage, Message: &indi.LogMessage{
		Device: "Scope", Timestamp: time.Now(), Text: "Slew complete",
	}})
	b.processEvent(&indi.Event{Kind: indi.EventMessage, Message: &indi.LogMessage{
		Timestamp: time.Now(), Text: "server message",
	}})

	if got := len(b.Messages("")); got != 2 {
		t.Errorf("Messages(\"\") = %d, want 2", got)
	}
	scoped := b.Messages("Scope")
	if len(scoped) != 1 || scoped[0].Text != "Slew complete" {
		t.Errorf("Messages(Scope) = %+v", scoped)
	}
}

func TestMessages_Bounded(t *testing.T) {
	b := newTestBridge()

	for i := 0; i < messageLogCapacity+50; i++ {
		b.appendMessage(indi.LogMessage{Text: "m"})
	}
	if got := len(b.Messages("")); got != messageLogCapacity {
		t.Errorf("message log = %d entries, want %d", got, messageLogCapacity)
	}
}

func TestSnapshot(t *testing.T) {
	b := newTestBridge()

	b.processEvent(defineEvent("Beta", "P", indi.TypeText, indi.PermReadOnly,
		indi.Element{Name: "E"}))
	b.processEvent(defineEvent("Alpha", "P", indi.TypeText, indi.PermReadOnly,
		indi.Element{Name: "E"}))

	snap := b.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("Snapshot() = %d devices, want 2", len(snap))
	}
	if snap[0].Device != "Alpha" || snap[1].Device != "Beta" {
		t.Errorf("snapshot order = %v, %v", snap[0].Device, snap[1].Device)
	}
}

func TestSubscribe_Notifications(t *testing.T) {
	b := newTestBridge()

	var got []Notification
	b.Subscribe(func(n Notification) { got = append(got, n) })

	b.processEvent(defineEvent("Dev", "A", indi.TypeText, indi.PermReadWrite,
		indi.Element{Name: "E", Value: "1"}))
	b.processEvent(&indi.Event{Kind: indi.EventUpdate, Update: &indi.Update{
		Device: "Dev", Name: "A",
		Values: []indi.ElementValue{{Name: "E", Value: "2"}},
	}})
	b.processEvent(&indi.Event{Kind: indi.EventDelete, Delete: &indi.Delete{
		Device: "Dev", Name: "A",
	}})

	want := []EventType{EventPropertyDefined, EventPropertyChanged, EventPropertyDeleted}
	if len(got) != len(want) {
		t.Fatalf("got %d notifications, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Type != w {
			t.Errorf("notification[%d] = %v, want %v", i, got[i].Type, w)
		}
	}

	// Clones: mutating the notification must not affect the tree.
	got[0].Prop.Elements[0].Value = "mutated"
}
