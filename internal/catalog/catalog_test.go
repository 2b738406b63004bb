package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/observon/indi-core/internal/infrastructure/logging"
)

const simulatorsXML = `<?xml version="1.0" encoding="UTF-8"?>
<driversList>
  <devGroup group="Telescopes">
    <device label="Telescope Simulator" manufacturer="INDI">
      <driver name="Telescope Simulator">indi_simulator_telescope</driver>
      <version>1.0</version>
    </device>
  </devGroup>
  <devGroup group="CCDs">
    <device label="CCD Simulator" manufacturer="INDI">
      <driver name="CCD Simulator">indi_simulator_ccd</driver>
      <version>1.0</version>
    </device>
    <device label="Guide Simulator" manufacturer="INDI">
      <driver name="CCD Simulator">indi_simulator_guide</driver>
      <version>1.0</version>
    </device>
  </devGroup>
</driversList>
`

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "drivers.xml"), []byte(simulatorsXML), 0644); err != nil {
		t.Fatal(err)
	}

	c := New(dir, logging.Default())
	if err := c.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return c
}

func TestLoad_ParsesDriverFiles(t *testing.T) {
	c := newTestCatalog(t)

	drivers := c.Drivers()
	if len(drivers) != 3 {
		t.Fatalf("got %d drivers, want 3", len(drivers))
	}

	// Sorted by label.
	wantOrder := []string{"CCD Simulator", "Guide Simulator", "Telescope Simulator"}
	for i, want := range wantOrder {
		if drivers[i].Label != want {
			t.Errorf("drivers[%d].Label = %q, want %q", i, drivers[i].Label, want)
		}
	}
}

func TestLoad_SkipsSkeletonFiles(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"drivers.xml":    simulatorsXML,
		"drivers_sk.xml": "<INDIDriver>not a driver list</INDIDriver>",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	c := New(dir, logging.Default())
	if err := c.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := len(c.Drivers()); got != 3 {
		t.Errorf("got %d drivers, want 3", got)
	}

	// The skeleton file should be recorded against the catalog's drivers.
	d, err := c.ByLabel("CCD Simulator")
	if err != nil {
		t.Fatal(err)
	}
	if d.Skeleton != filepath.Join(dir, "drivers_sk.xml") {
		t.Errorf("Skeleton = %q", d.Skeleton)
	}
}

func TestLoad_SkipsUnparsableFiles(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"good.xml": simulatorsXML,
		"bad.xml":  "<<< not xml",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	c := New(dir, logging.Default())
	if err := c.Load(); err != nil {
		t.Fatalf("Load() should not fail on unparsable files, got %v", err)
	}
	if got := len(c.Drivers()); got != 3 {
		t.Errorf("got %d drivers, want 3", got)
	}
}

func TestByLabel(t *testing.T) {
	c := newTestCatalog(t)

	d, err := c.ByLabel("Telescope Simulator")
	if err != nil {
		t.Fatalf("ByLabel() error = %v", err)
	}
	if d.Binary != "indi_simulator_telescope" || d.Family != "Telescopes" {
		t.Errorf("driver = %+v", d)
	}

	if _, err := c.ByLabel("No Such Driver"); !errors.Is(err, ErrDriverNotFound) {
		t.Errorf("expected ErrDriverNotFound, got %v", err)
	}
}

func TestCustomDrivers(t *testing.T) {
	c := newTestCatalog(t)

	c.AddCustom(Driver{Label: "My Dome", Name: "My Dome", Binary: "/opt/dome/indi_mydome"})

	d, err := c.ByLabel("My Dome")
	if err != nil {
		t.Fatalf("ByLabel() error = %v", err)
	}
	if !d.Custom || d.Family != "Custom" || d.Version != "1.0" {
		t.Errorf("custom driver defaults not applied: %+v", d)
	}

	// Custom drivers shadow catalog entries and survive reloads.
	c.AddCustom(Driver{Label: "CCD Simulator", Name: "Patched", Binary: "/opt/indi_patched"})
	if err := c.Load(); err != nil {
		t.Fatal(err)
	}
	d, err = c.ByLabel("CCD Simulator")
	if err != nil {
		t.Fatal(err)
	}
	if d.Binary != "/opt/indi_patched" {
		t.Errorf("custom driver should shadow catalog entry, got %+v", d)
	}
	if got := len(c.Drivers()); got != 4 {
		t.Errorf("got %d drivers, want 4 (3 catalog + 1 custom, 1 shadowed)", got)
	}

	c.RemoveCustom("CCD Simulator")
	d, err = c.ByLabel("CCD Simulator")
	if err != nil {
		t.Fatal(err)
	}
	if d.Custom {
		t.Error("catalog entry should reappear after RemoveCustom")
	}
}

func TestFamilies(t *testing.T) {
	c := newTestCatalog(t)

	families := c.Families()
	if len(families["CCDs"]) != 2 || len(families["Telescopes"]) != 1 {
		t.Errorf("families = %+v", families)
	}
	if families["CCDs"][0] != "CCD Simulator" {
		t.Errorf("family members should be sorted, got %v", families["CCDs"])
	}
}

func TestRemoteSpecs(t *testing.T) {
	tests := []struct {
		spec       string
		isRemote   bool
		wantDriver string
		wantHost   string
	}{
		{"indi_eqmod_telescope@astro-pi:7624", true, "indi_eqmod_telescope", "astro-pi:7624"},
		{"@observatory", true, "", "observatory"},
		{"Telescope Simulator", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			if got := IsRemoteSpec(tt.spec); got != tt.isRemote {
				t.Fatalf("IsRemoteSpec(%q) = %v, want %v", tt.spec, got, tt.isRemote)
			}
			if !tt.isRemote {
				return
			}
			driver, host := SplitRemoteSpec(tt.spec)
			if driver != tt.wantDriver || host != tt.wantHost {
				t.Errorf("SplitRemoteSpec(%q) = %q, %q", tt.spec, driver, host)
			}
		})
	}
}
