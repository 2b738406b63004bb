package bridge

import (
	"fmt"
	"sort"
	"time"

	"github.com/observon/indi-core/internal/indi"
)

// storeEntry holds the mirrored state of one device: its property
// tree, per-property dirty timestamps, and tombstones for deletions.
//
// The ingest goroutine is the only writer; readers take the RWMutex.
type storeEntry struct {
	props   map[string]*indi.Property
	dirty   map[string]time.Time
	deleted map[string]time.Time
}

func newStoreEntry() *storeEntry {
	return &storeEntry{
		props:   make(map[string]*indi.Property),
		dirty:   make(map[string]time.Time),
		deleted: make(map[string]time.Time),
	}
}

// applyDefine inserts or replaces a property definition.
// Returns true when the device is new to the tree.
func (b *Bridge) applyDefine(prop *indi.Property) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.devices[prop.Device]
	if !ok {
		entry = newStoreEntry()
		b.devices[prop.Device] = entry
	}

	entry.props[prop.Name] = prop
	entry.dirty[prop.Name] = time.Now().UTC()
	delete(entry.deleted, prop.Name)
	return !ok
}

// applyUpdate merges new element values into an existing property.
// Unknown devices or properties are ignored: definitions may race with
// updates around a driver restart.
func (b *Bridge) applyUpdate(upd *indi.Update) *indi.Property {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.devices[upd.Device]
	if !ok {
		return nil
	}
	prop, ok := entry.props[upd.Name]
	if !ok {
		return nil
	}

	for _, v := range upd.Values {
		el := prop.Element(v.Name)
		if el == nil {
			continue
		}
		el.Value = v.Value
		if prop.Type == indi.TypeNumber {
			if n, err := indi.ParseNumber(v.Value); err == nil {
				el.Number = n
			}
		}
	}
	if upd.HasState {
		prop.State = upd.State
	}
	if upd.Timeout != 0 {
		prop.Timeout = upd.Timeout
	}
	if upd.Timestamp != "" {
		prop.Timestamp = upd.Timestamp
	}

	entry.dirty[upd.Name] = time.Now().UTC()
	return prop.Clone()
}

// applyDelete removes a property, or the whole device when name is
// empty. A device-wide delete means the device has withdrawn; its entry
// goes away entirely and subsequent queries see ErrUnknownDevice.
// Returns the names actually removed.
func (b *Bridge) applyDelete(device, name string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.devices[device]
	if !ok {
		return nil
	}

	if name == "" {
		removed := make([]string, 0, len(entry.props))
		for n := range entry.props {
			removed = append(removed, n)
		}
		delete(b.devices, device)
		sort.Strings(removed)
		return removed
	}

	if _, ok := entry.props[name]; !ok {
		return nil
	}
	delete(entry.props, name)
	delete(entry.dirty, name)
	entry.deleted[name] = time.Now().UTC()
	return []string{name}
}

// reset drops all mirrored state. Called on (re)connect: a fresh
// connection replays the full definition stream.
func (b *Bridge) reset() {
	b.mu.Lock()
	b.devices = make(map[string]*storeEntry)
	b.mu.Unlock()

	b.msgMu.Lock()
	b.messages = nil
	b.msgMu.Unlock()
}

// appendMessage retains a device or server message in the bounded log.
func (b *Bridge) appendMessage(msg indi.LogMessage) {
	b.msgMu.Lock()
	defer b.msgMu.Unlock()

	b.messages = append(b.messages, msg)
	if len(b.messages) > messageLogCapacity {
		b.messages = b.messages[len(b.messages)-messageLogCapacity:]
	}
}

// Devices returns the defined device names, sorted.
func (b *Bridge) Devices() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]string, 0, len(b.devices))
	for name := range b.devices {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Structure returns clones of all properties of a device, sorted by
// group then name.
// Returns ErrUnknownDevice if the device is not defined.
func (b *Bridge) Structure(device string) ([]*indi.Property, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	entry, ok := b.devices[device]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, device)
	}

	out := make([]*indi.Property, 0, len(entry.props))
	for _, p := range entry.props {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Group != out[j].Group {
			return out[i].Group < out[j].Group
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Property returns a clone of one property.
func (b *Bridge) Property(device, name string) (*indi.Property, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	entry, ok := b.devices[device]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, device)
	}
	prop, ok := entry.props[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownProperty, device, name)
	}
	return prop.Clone(), nil
}

// Batch returns clones of exactly the requested properties. Unknown
// names are reported alongside the found set rather than failing the
// whole call.
// Returns ErrUnknownDevice if the device is not defined.
func (b *Bridge) Batch(device string, names []string) (*BatchResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	entry, ok := b.devices[device]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, device)
	}

	res := &BatchResult{Properties: make(map[string]*indi.Property, len(names))}
	for _, name := range names {
		prop, ok := entry.props[name]
		if !ok {
			res.Unknown = append(res.Unknown, name)
			continue
		}
		res.Properties[name] = prop.Clone()
	}
	sort.Strings(res.Unknown)
	return res, nil
}

// Dirty returns the properties of a device changed since the caller's
// cursor, plus deletions, plus a new cursor. A zero since returns the
// full tree.
// Returns ErrUnknownDevice if the device is not defined.
func (b *Bridge) Dirty(device string, since time.Time) (*DirtyResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	entry, ok := b.devices[device]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, device)
	}

	res := &DirtyResult{Now: time.Now().UTC()}
	for name, modified := range entry.dirty {
		if modified.After(since) {
			res.Changed = append(res.Changed, entry.props[name].Clone())
		}
	}
	for name, deleted := range entry.deleted {
		if deleted.After(since) {
			res.Deleted = append(res.Deleted, name)
		}
	}

	sort.Slice(res.Changed, func(i, j int) bool { return res.Changed[i].Name < res.Changed[j].Name })
	sort.Strings(res.Deleted)
	return res, nil
}

// Snapshot returns the full property trees of every device, sorted by
// device name.
func (b *Bridge) Snapshot() []DeviceSnapshot {
	names := b.Devices()

	out := make([]DeviceSnapshot, 0, len(names))
	for _, device := range names {
		props, err := b.Structure(device)
		if err != nil {
			continue
		}
		out = append(out, DeviceSnapshot{Device: device, Properties: props})
	}
	return out
}

// Messages returns retained messages, oldest first. An empty device
// returns everything, including server-level messages.
func (b *Bridge) Messages(device string) []indi.LogMessage {
	b.msgMu.Lock()
	defer b.msgMu.Unlock()

	out := make([]indi.LogMessage, 0, len(b.messages))
	for _, m := range b.messages {
		if device == "" || m.Device == device {
			out = append(out, m)
		}
	}
	return out
}
