package profile

import (
	"fmt"
	"strings"
	"time"

	"github.com/observon/indi-core/internal/catalog"
)

// DefaultProfileName is the seeded profile that cannot be renamed or
// deleted. It keeps a working simulator setup available on fresh
// installations.
const DefaultProfileName = "Simulators"

// Port bounds for profile validation.
const (
	minPort = 1
	maxPort = 65535
)

// Profile is a named set of drivers started together as one indiserver
// instance.
type Profile struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`

	// Port is the TCP port indiserver listens on for this profile.
	Port int `json:"port"`

	// Autostart marks this profile for launch when the application
	// starts. At most one profile may have it set.
	Autostart bool `json:"autostart"`

	// Autoconnect asks the bridge to switch each device's CONNECTION
	// property to CONNECT once its drivers define it.
	Autoconnect bool `json:"autoconnect"`

	// Drivers holds catalog labels of local drivers.
	Drivers []string `json:"drivers"`

	// Remotes holds remote driver specs in driver@host[:port] form.
	Remotes []string `json:"remotes"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the profile for structural problems.
// Returns ErrInvalidProfile wrapped with specifics.
func (p *Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProfile)
	}
	if p.Port < minPort || p.Port > maxPort {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidProfile, p.Port)
	}
	for _, label := range p.Drivers {
		if strings.TrimSpace(label) == "" {
			return fmt.Errorf("%w: empty driver label", ErrInvalidProfile)
		}
		if catalog.IsRemoteSpec(label) {
			return fmt.Errorf("%w: %q is a remote spec, list it under remotes", ErrInvalidProfile, label)
		}
	}
	for _, spec := range p.Remotes {
		if !catalog.IsRemoteSpec(spec) {
			return fmt.Errorf("%w: remote spec %q must contain '@'", ErrInvalidProfile, spec)
		}
	}
	return nil
}

// Protected reports whether the profile is the seeded default, which
// cannot be renamed or deleted.
func (p *Profile) Protected() bool {
	return p.Name == DefaultProfileName
}

// CustomDriver is a user-registered driver stored alongside profiles.
type CustomDriver struct {
	ID      int64  `json:"id"`
	Label   string `json:"label"`
	Name    string `json:"name"`
	Binary  string `json:"binary"`
	Family  string `json:"family"`
	Version string `json:"version"`
}

// Validate checks a custom driver definition.
func (d *CustomDriver) Validate() error {
	if strings.TrimSpace(d.Label) == "" {
		return fmt.Errorf("%w: label is required", ErrInvalidProfile)
	}
	if strings.TrimSpace(d.Binary) == "" {
		return fmt.Errorf("%w: binary is required", ErrInvalidProfile)
	}
	return nil
}
