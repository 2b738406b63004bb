package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/observon/indi-core/internal/bridge"
	"github.com/observon/indi-core/internal/catalog"
	"github.com/observon/indi-core/internal/infrastructure/config"
	"github.com/observon/indi-core/internal/infrastructure/database"
	"github.com/observon/indi-core/internal/infrastructure/logging"
	"github.com/observon/indi-core/internal/profile"
	"github.com/observon/indi-core/internal/supervisor"

	_ "github.com/observon/indi-core/migrations"
)

const testDriversXML = `<?xml version="1.0" encoding="UTF-8"?>
<driversList>
  <devGroup group="Telescopes">
    <device label="Telescope Simulator">
      <driver name="Telescope Simulator">indi_simulator_telescope</driver>
      <version>1.0</version>
    </device>
  </devGroup>
  <devGroup group="CCDs">
    <device label="CCD Simulator">
      <driver name="CCD Simulator">indi_simulator_ccd</driver>
      <version>1.0</version>
    </device>
  </devGroup>
  <devGroup group="Focusers">
    <device label="Focuser Simulator">
      <driver name="Focuser Simulator">indi_simulator_focus</driver>
      <version>1.0</version>
    </device>
  </devGroup>
</driversList>
`

type testServer struct {
	srv *Server
	ts  *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	dir := t.TempDir()
	logger := logging.Default()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(dir, "profiles.db"),
		BusyTimeout: 1,
	})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating database: %v", err)
	}

	dataDir := filepath.Join(dir, "drivers")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dataDir, "drivers.xml"), []byte(testDriversXML), 0644); err != nil {
		t.Fatal(err)
	}
	cat := catalog.New(dataDir, logger)
	if err := cat.Load(); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.INDI.Binary = "/bin/true"
	cfg.INDI.FIFO = filepath.Join(dir, "indiFIFO")
	cfg.INDI.ConnectTimeout = 0

	srv, err := New(Deps{
		Config:     cfg,
		Logger:     logger,
		Profiles:   profile.NewRepository(db, logger),
		Catalog:    cat,
		Supervisor: supervisor.New(cfg.INDI, cat, logger),
		Bridge:     bridge.New(cfg.INDI, logger),
		Version:    "test",
	})
	if err != nil {
		t.Fatalf("creating server: %v", err)
	}

	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)

	return &testServer{srv: srv, ts: ts}
}

// do issues a request against the test server and decodes the JSON
// response into out (when non-nil).
func (e *testServer) do(t *testing.T, method, path string, body, out any) int {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req, err := http.NewRequest(method, e.ts.URL+"/api/v1"+path, reqBody)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s %s response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	e := newTestServer(t)

	var body map[string]any
	if got := e.do(t, http.MethodGet, "/health", nil, &body); got != http.StatusOK {
		t.Fatalf("GET /health = %d", got)
	}
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("health body = %v", body)
	}
}

func TestSystemInfo(t *testing.T) {
	e := newTestServer(t)

	var body map[string]any
	if got := e.do(t, http.MethodGet, "/system/info", nil, &body); got != http.StatusOK {
		t.Fatalf("GET /system/info = %d", got)
	}
	if body["server_state"] != "stopped" {
		t.Errorf("server_state = %v, want stopped", body["server_state"])
	}
	if body["connected"] != false {
		t.Errorf("connected = %v, want false", body["connected"])
	}
}

func TestProfiles_CRUD(t *testing.T) {
	e := newTestServer(t)

	// The seeded default profile is present.
	var list []profile.Profile
	if got := e.do(t, http.MethodGet, "/profiles", nil, &list); got != http.StatusOK {
		t.Fatalf("GET /profiles = %d", got)
	}
	if len(list) != 1 || list[0].Name != "Simulators" {
		t.Fatalf("seeded profiles = %+v", list)
	}

	create := map[string]any{
		"name":        "Deep Sky",
		"port":        7625,
		"autoconnect": true,
		"drivers":     []string{"CCD Simulator"},
	}
	var created profile.Profile
	if got := e.do(t, http.MethodPost, "/profiles", create, &created); got != http.StatusCreated {
		t.Fatalf("POST /profiles = %d", got)
	}
	if created.ID == 0 || created.Port != 7625 {
		t.Errorf("created = %+v", created)
	}

	// Duplicate name conflicts.
	if got := e.do(t, http.MethodPost, "/profiles", create, nil); got != http.StatusConflict {
		t.Errorf("duplicate POST /profiles = %d, want 409", got)
	}

	var fetched profile.Profile
	if got := e.do(t, http.MethodGet, "/profiles/Deep Sky", nil, &fetched); got != http.StatusOK {
		t.Fatalf("GET /profiles/Deep Sky = %d", got)
	}
	if len(fetched.Drivers) != 1 || fetched.Drivers[0] != "CCD Simulator" {
		t.Errorf("fetched drivers = %v", fetched.Drivers)
	}

	update := map[string]any{
		"name":    "Deep Sky",
		"port":    7626,
		"drivers": []string{"CCD Simulator", "Focuser Simulator"},
	}
	if got := e.do(t, http.MethodPut, "/profiles/Deep Sky", update, nil); got != http.StatusOK {
		t.Errorf("PUT /profiles/Deep Sky = %d", got)
	}

	var drivers map[string][]string
	if got := e.do(t, http.MethodGet, "/profiles/Deep Sky/drivers", nil, &drivers); got != http.StatusOK {
		t.Fatalf("GET /profiles/Deep Sky/drivers = %d", got)
	}
	if len(drivers["drivers"]) != 2 {
		t.Errorf("drivers = %v", drivers)
	}

	if got := e.do(t, http.MethodDelete, "/profiles/Deep Sky", nil, nil); got != http.StatusNoContent {
		t.Errorf("DELETE /profiles/Deep Sky = %d", got)
	}
	if got := e.do(t, http.MethodGet, "/profiles/Deep Sky", nil, nil); got != http.StatusNotFound {
		t.Errorf("GET deleted profile = %d, want 404", got)
	}
}

func TestProfiles_DefaultProtected(t *testing.T) {
	e := newTestServer(t)

	if got := e.do(t, http.MethodDelete, "/profiles/Simulators", nil, nil); got != http.StatusForbidden {
		t.Errorf("DELETE default profile = %d, want 403", got)
	}

	rename := map[string]any{"name": "Renamed", "drivers": []string{"CCD Simulator"}}
	if got := e.do(t, http.MethodPut, "/profiles/Simulators", rename, nil); got != http.StatusForbidden {
		t.Errorf("rename default profile = %d, want 403", got)
	}
}

func TestProfiles_AddDriver(t *testing.T) {
	e := newTestServer(t)

	body := map[string]any{"remote": "indi_asi_ccd@obs-pi"}
	var updated profile.Profile
	if got := e.do(t, http.MethodPost, "/profiles/Simulators/drivers", body, &updated); got != http.StatusOK {
		t.Fatalf("POST /profiles/Simulators/drivers = %d", got)
	}
	if len(updated.Remotes) != 1 || updated.Remotes[0] != "indi_asi_ccd@obs-pi" {
		t.Errorf("remotes = %v", updated.Remotes)
	}
}

func TestDrivers_ListAndFamilies(t *testing.T) {
	e := newTestServer(t)

	var drivers []catalog.Driver
	if got := e.do(t, http.MethodGet, "/drivers", nil, &drivers); got != http.StatusOK {
		t.Fatalf("GET /drivers = %d", got)
	}
	if len(drivers) != 3 {
		t.Fatalf("drivers = %d, want 3", len(drivers))
	}

	var families map[string][]string
	if got := e.do(t, http.MethodGet, "/drivers/families", nil, &families); got != http.StatusOK {
		t.Fatalf("GET /drivers/families = %d", got)
	}
	if len(families["CCDs"]) != 1 || families["CCDs"][0] != "CCD Simulator" {
		t.Errorf("families = %v", families)
	}
}

func TestDrivers_Custom(t *testing.T) {
	e := newTestServer(t)

	body := map[string]any{"label": "My Dome", "binary": "indi_custom_dome"}
	if got := e.do(t, http.MethodPost, "/drivers/custom", body, nil); got != http.StatusCreated {
		t.Fatalf("POST /drivers/custom = %d", got)
	}
	if got := e.do(t, http.MethodPost, "/drivers/custom", body, nil); got != http.StatusConflict {
		t.Errorf("duplicate custom driver = %d, want 409", got)
	}

	var drivers []catalog.Driver
	e.do(t, http.MethodGet, "/drivers", nil, &drivers)
	found := false
	for _, d := range drivers {
		if d.Label == "My Dome" && d.Custom {
			found = true
		}
	}
	if !found {
		t.Errorf("custom driver missing from catalog list: %+v", drivers)
	}

	if got := e.do(t, http.MethodDelete, "/drivers/custom/My Dome", nil, nil); got != http.StatusNoContent {
		t.Errorf("DELETE /drivers/custom/My Dome = %d", got)
	}
	if got := e.do(t, http.MethodDelete, "/drivers/custom/My Dome", nil, nil); got != http.StatusNotFound {
		t.Errorf("DELETE missing custom driver = %d, want 404", got)
	}
}

func TestServer_StatusAndConflicts(t *testing.T) {
	e := newTestServer(t)

	var status supervisor.Status
	if got := e.do(t, http.MethodGet, "/server/status", nil, &status); got != http.StatusOK {
		t.Fatalf("GET /server/status = %d", got)
	}
	if status.State != supervisor.StateStopped {
		t.Errorf("state = %v, want stopped", status.State)
	}

	if got := e.do(t, http.MethodPost, "/server/stop", nil, nil); got != http.StatusOK {
		t.Errorf("POST /server/stop while stopped = %d, want no-op 200", got)
	}
	if got := e.do(t, http.MethodPost, "/server/start/NoSuchProfile", nil, nil); got != http.StatusNotFound {
		t.Errorf("start unknown profile = %d, want 404", got)
	}
	if got := e.do(t, http.MethodPost, "/server/drivers/CCD Simulator/restart", nil, nil); got != http.StatusConflict {
		t.Errorf("restart driver while stopped = %d, want 409", got)
	}
}

func TestDevices_NoServer(t *testing.T) {
	e := newTestServer(t)

	var devices []string
	if got := e.do(t, http.MethodGet, "/devices", nil, &devices); got != http.StatusOK {
		t.Fatalf("GET /devices = %d", got)
	}
	if len(devices) != 0 {
		t.Errorf("devices = %v, want empty", devices)
	}

	if got := e.do(t, http.MethodGet, "/devices/CCD Simulator/structure", nil, nil); got != http.StatusNotFound {
		t.Errorf("structure of unknown device = %d, want 404", got)
	}
	if got := e.do(t, http.MethodGet, "/devices/CCD Simulator/dirty?since=garbage", nil, nil); got != http.StatusBadRequest {
		t.Errorf("dirty with bad cursor = %d, want 400", got)
	}

	write := map[string]any{"elements": map[string]string{"CONNECT": "On"}}
	if got := e.do(t, http.MethodPut, "/devices/CCD Simulator/properties/CONNECTION", write, nil); got != http.StatusNotFound {
		t.Errorf("set property on unknown device = %d, want 404", got)
	}
}

func TestDevices_Batch(t *testing.T) {
	e := newTestServer(t)

	batch := map[string]any{"names": []string{"CONNECTION"}}
	if got := e.do(t, http.MethodPost, "/devices/CCD Simulator/batch", batch, nil); got != http.StatusNotFound {
		t.Errorf("batch on unknown device = %d, want 404", got)
	}

	if got := e.do(t, http.MethodPost, "/devices/CCD Simulator/batch", map[string]any{}, nil); got != http.StatusBadRequest {
		t.Errorf("empty batch = %d, want 400", got)
	}
}

func TestErrorEnvelope(t *testing.T) {
	e := newTestServer(t)

	var errBody Error
	if got := e.do(t, http.MethodGet, "/profiles/NoSuch", nil, &errBody); got != http.StatusNotFound {
		t.Fatalf("GET /profiles/NoSuch = %d", got)
	}
	if errBody.Status != http.StatusNotFound || errBody.Code != ErrCodeNotFound || errBody.Message == "" {
		t.Errorf("error envelope = %+v", errBody)
	}
}

func TestDirtyCursor_ParamFormat(t *testing.T) {
	e := newTestServer(t)

	// A well-formed cursor against an unknown device still maps to 404,
	// proving cursor parsing happens before the device lookup.
	since := time.Now().UTC().Format(time.RFC3339Nano)
	path := fmt.Sprintf("/devices/Nope/dirty?since=%s", since)
	if got := e.do(t, http.MethodGet, path, nil, nil); got != http.StatusNotFound {
		t.Errorf("dirty with valid cursor, unknown device = %d, want 404", got)
	}
}
