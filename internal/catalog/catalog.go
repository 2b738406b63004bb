package catalog

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/observon/indi-core/internal/infrastructure/logging"
)

// Sentinel errors for catalog lookups.
var (
	// ErrDriverNotFound indicates no driver with the requested label
	// exists in the catalog.
	ErrDriverNotFound = errors.New("catalog: driver not found")
)

// skeletonSuffix marks skeleton definition files, which accompany a
// driver XML file rather than defining drivers themselves.
const skeletonSuffix = "_sk.xml"

// Driver describes one installed INDI driver.
type Driver struct {
	// Name is the driver's self-reported name (the name attribute of the
	// driver element).
	Name string `json:"name"`

	// Label is the unique device label shown to users and used to select
	// the driver in profiles (e.g. "Telescope Simulator").
	Label string `json:"label"`

	// Binary is the executable passed to indiserver.
	Binary string `json:"binary"`

	// Family is the device group from the catalog XML (e.g. "Telescopes").
	Family string `json:"family"`

	// Version is the driver version string, "1.0" when unspecified.
	Version string `json:"version"`

	// Skeleton is the path to the driver's skeleton file, if one sits
	// alongside the catalog XML.
	Skeleton string `json:"skeleton,omitempty"`

	// Custom marks user-registered drivers not present in the system
	// catalog XML.
	Custom bool `json:"custom"`
}

// Catalog holds the set of installed drivers, built by scanning the INDI
// data directory (normally /usr/share/indi) for driver XML files.
//
// Thread Safety: all methods are safe for concurrent use. Load replaces
// the scanned set atomically; custom drivers survive reloads.
type Catalog struct {
	mu      sync.RWMutex
	dataDir string
	drivers map[string]Driver // keyed by label
	custom  map[string]Driver
	logger  *logging.Logger
}

// New creates an empty catalog for the given INDI data directory.
// Call Load to scan it.
func New(dataDir string, logger *logging.Logger) *Catalog {
	return &Catalog{
		dataDir: dataDir,
		drivers: make(map[string]Driver),
		custom:  make(map[string]Driver),
		logger:  logger.With("component", "catalog"),
	}
}

// driversList mirrors the driver catalog XML shipped with libindi.
type driversList struct {
	Groups []struct {
		Group   string `xml:"group,attr"`
		Devices []struct {
			Label        string `xml:"label,attr"`
			Manufacturer string `xml:"manufacturer,attr"`
			Driver       struct {
				Name   string `xml:"name,attr"`
				Binary string `xml:",chardata"`
			} `xml:"driver"`
			Version string `xml:"version"`
		} `xml:"device"`
	} `xml:"devGroup"`
}

// Load scans the data directory for driver XML files and replaces the
// catalog contents. Skeleton files (*_sk.xml) are skipped as driver
// sources but recorded against the drivers they belong to. Files that
// fail to parse are logged and skipped rather than failing the scan.
func (c *Catalog) Load() error {
	paths, err := filepath.Glob(filepath.Join(c.dataDir, "*.xml"))
	if err != nil {
		return fmt.Errorf("scanning driver directory: %w", err)
	}

	scanned := make(map[string]Driver)
	for _, path := range paths {
		if strings.HasSuffix(path, skeletonSuffix) {
			continue
		}
		if err := c.loadFile(path, scanned); err != nil {
			c.logger.Warn("skipping unparsable driver file", "path", path, "error", err)
		}
	}

	c.mu.Lock()
	c.drivers = scanned
	c.mu.Unlock()

	c.logger.Info("driver catalog loaded", "dir", c.dataDir, "drivers", len(scanned))
	return nil
}

// loadFile parses one driver XML file into the scanned set.
func (c *Catalog) loadFile(path string, into map[string]Driver) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var list driversList
	if err := xml.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}

	skeleton := strings.TrimSuffix(path, ".xml") + skeletonSuffix
	if _, err := os.Stat(skeleton); err != nil {
		skeleton = ""
	}

	for _, group := range list.Groups {
		for _, dev := range group.Devices {
			d := Driver{
				Name:     dev.Driver.Name,
				Label:    dev.Label,
				Binary:   strings.TrimSpace(dev.Driver.Binary),
				Family:   group.Group,
				Version:  strings.TrimSpace(dev.Version),
				Skeleton: skeleton,
			}
			if d.Version == "" {
				d.Version = "1.0"
			}
			if d.Label == "" || d.Binary == "" {
				continue
			}
			into[d.Label] = d
		}
	}
	return nil
}

// AddCustom registers a user-defined driver. Custom drivers shadow
// catalog drivers with the same label and survive Load.
func (c *Catalog) AddCustom(d Driver) {
	d.Custom = true
	if d.Family == "" {
		d.Family = "Custom"
	}
	if d.Version == "" {
		d.Version = "1.0"
	}
	c.mu.Lock()
	c.custom[d.Label] = d
	c.mu.Unlock()
}

// RemoveCustom deletes a user-defined driver by label.
func (c *Catalog) RemoveCustom(label string) {
	c.mu.Lock()
	delete(c.custom, label)
	c.mu.Unlock()
}

// ByLabel returns the driver with the given label.
// Returns ErrDriverNotFound if no such driver exists.
func (c *Catalog) ByLabel(label string) (Driver, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if d, ok := c.custom[label]; ok {
		return d, nil
	}
	if d, ok := c.drivers[label]; ok {
		return d, nil
	}
	return Driver{}, fmt.Errorf("%w: %q", ErrDriverNotFound, label)
}

// Drivers returns all known drivers sorted by label.
func (c *Catalog) Drivers() []Driver {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Driver, 0, len(c.drivers)+len(c.custom))
	for label, d := range c.drivers {
		if _, shadowed := c.custom[label]; shadowed {
			continue
		}
		out = append(out, d)
	}
	for _, d := range c.custom {
		out = append(out, d)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// Families returns driver labels grouped by device family, each group
// sorted by label.
func (c *Catalog) Families() map[string][]string {
	families := make(map[string][]string)
	for _, d := range c.Drivers() {
		families[d.Family] = append(families[d.Family], d.Label)
	}
	return families
}
