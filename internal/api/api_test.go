package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxdash/cxdash/internal/testutil"
	"github.com/cxdash/cxdash/pkg/audit"
	"github.com/cxdash/cxdash/pkg/backup"
	"github.com/cxdash/cxdash/pkg/cxapi"
	"github.com/cxdash/cxdash/pkg/inventory"
	"github.com/cxdash/cxdash/pkg/manager"
)

type fixture struct {
	sim    *testutil.SwitchSim
	server *httptest.Server
	mgr    *manager.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sim := testutil.NewSwitchSim()
	t.Cleanup(sim.Close)

	history := audit.NewHistory(100)
	sessions := cxapi.NewSessionManager(cxapi.Options{
		Defaults: []cxapi.Credentials{{Username: "admin", Password: "admin"}},
		Retry:    cxapi.RetryPolicy{MaxAttempts: 1, Sleep: func(time.Duration) {}},
		Recorder: history,
		BaseURL:  func(string) string { return sim.BaseURL() },
	})
	backups, err := backup.NewStore(t.TempDir())
	require.NoError(t, err)

	mgr := manager.New(sessions, cxapi.NewCapabilityProbe(), inventory.NewStore(), backups, nil)
	srv := httptest.NewServer(NewServer(mgr, history, backups).Router())
	t.Cleanup(srv.Close)

	return &fixture{sim: sim, server: srv, mgr: mgr}
}

func (f *fixture) addSwitch(t *testing.T) string {
	t.Helper()
	sw, err := f.mgr.Inventory.Add(inventory.Switch{
		Name: "lab", IP: "10.0.0.5", Username: "admin", Password: "admin",
	})
	require.NoError(t, err)
	return sw.ID
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	return resp, payload
}

func TestHealthAndStatus(t *testing.T) {
	f := newFixture(t)

	resp, payload := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", payload["status"])

	resp, payload = f.do(t, http.MethodGet, "/api/status", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 0, payload["switch_total"])
}

func TestAddSwitch_TestsConnection(t *testing.T) {
	f := newFixture(t)

	resp, payload := f.do(t, http.MethodPost, "/api/switches", map[string]any{
		"ip": "10.0.0.5", "username": "admin", "password": "admin",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "payload: %v", payload)

	sw := payload["switch"].(map[string]any)
	assert.Equal(t, "lab-sw1", sw["name"], "name should default to the device hostname")
	assert.Equal(t, "online", sw["status"])
	assert.NotEmpty(t, sw["id"])

	test := payload["test_connection"].(map[string]any)
	assert.Equal(t, true, test["reachable"])
	assert.Equal(t, "6300M", test["platform"])
}

func TestAddSwitch_BadCredentialsRejected(t *testing.T) {
	f := newFixture(t)

	resp, payload := f.do(t, http.MethodPost, "/api/switches", map[string]any{
		"ip": "10.0.0.5", "username": "admin", "password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid_credentials", payload["error_type"])
	assert.NotEmpty(t, payload["suggestion"])
	assert.Empty(t, f.mgr.Inventory.List(), "failed add must not land in the inventory")
}

func TestAddSwitch_InvalidIP(t *testing.T) {
	f := newFixture(t)

	resp, payload := f.do(t, http.MethodPost, "/api/switches", map[string]any{"ip": "999.1.2.3"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", payload["error_type"])
}

func TestAddSwitch_SkipTest(t *testing.T) {
	f := newFixture(t)
	f.sim.Close() // device unreachable

	resp, _ := f.do(t, http.MethodPost, "/api/switches", map[string]any{
		"ip": "10.0.0.5", "name": "future-rack", "skip_test": true,
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	sw, ok := f.mgr.Inventory.GetByIP("10.0.0.5")
	require.True(t, ok)
	assert.Equal(t, inventory.StatusUnknown, sw.Status)
}

func TestSwitchCRUD(t *testing.T) {
	f := newFixture(t)
	id := f.addSwitch(t)

	resp, payload := f.do(t, http.MethodGet, "/api/switches/"+id, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "lab", payload["name"])

	resp, payload = f.do(t, http.MethodPut, "/api/switches/"+id, map[string]any{"name": "renamed"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "renamed", payload["name"])

	resp, _ = f.do(t, http.MethodDelete, "/api/switches/"+id, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, f.mgr.Inventory.List())

	resp, _ = f.do(t, http.MethodGet, "/api/switches/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSwitchLookupByIP(t *testing.T) {
	f := newFixture(t)
	f.addSwitch(t)

	resp, payload := f.do(t, http.MethodGet, "/api/switches/10.0.0.5", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "lab", payload["name"])
}

func TestVLANLifecycle(t *testing.T) {
	f := newFixture(t)
	id := f.addSwitch(t)

	resp, payload := f.do(t, http.MethodPost, "/api/switches/"+id+"/vlans", map[string]any{
		"vlan_id": 20, "vlan_name": "voice",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "payload: %v", payload)

	resp, payload = f.do(t, http.MethodGet, "/api/switches/"+id+"/vlans", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, payload["count"])

	resp, _ = f.do(t, http.MethodPut, "/api/switches/"+id+"/vlans/20", map[string]any{"vlan_name": "voip"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "voip", f.sim.VLANs[20].Name)

	resp, _ = f.do(t, http.MethodDelete, "/api/switches/"+id+"/vlans/20", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_, exists := f.sim.VLANs[20]
	assert.False(t, exists)
}

func TestDeleteReservedVLAN(t *testing.T) {
	f := newFixture(t)
	id := f.addSwitch(t)

	resp, payload := f.do(t, http.MethodDelete, "/api/switches/"+id+"/vlans/1", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "vlan_operation_error", payload["error_type"])
	assert.Zero(t, f.sim.VLANWrites)
}

func TestCentralManagedErrorEnvelope(t *testing.T) {
	f := newFixture(t)
	id := f.addSwitch(t)
	f.sim.CentralManaged = true

	resp, payload := f.do(t, http.MethodPost, "/api/switches/"+id+"/vlans", map[string]any{
		"vlan_id": 20, "vlan_name": "voice",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "central_managed", payload["error_type"])
	assert.Contains(t, payload["suggestion"], "Aruba Central")
}

func TestBulkVLANs(t *testing.T) {
	f := newFixture(t)
	id := f.addSwitch(t)

	resp, payload := f.do(t, http.MethodPost, "/api/switches/"+id+"/vlans/bulk", map[string]any{
		"operations": []map[string]any{
			{"operation": "create", "vlan_id": 20, "vlan_name": "voice"},
			{"operation": "delete", "vlan_id": 99},
		},
	})
	assert.Equal(t, http.StatusMultiStatus, resp.StatusCode)
	assert.EqualValues(t, 1, payload["succeeded"])
	assert.EqualValues(t, 1, payload["failed"])
}

func TestBulkVLANs_ValidationRejectsBatch(t *testing.T) {
	f := newFixture(t)
	id := f.addSwitch(t)

	resp, payload := f.do(t, http.MethodPost, "/api/switches/"+id+"/vlans/bulk", map[string]any{
		"operations": []map[string]any{
			{"operation": "create", "vlan_id": 20, "vlan_name": "voice"},
			{"operation": "explode", "vlan_id": 21},
		},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "validation_error", payload["error_type"])
	assert.Zero(t, f.sim.VLANWrites)
}

func TestInterfacesAndOverview(t *testing.T) {
	f := newFixture(t)
	id := f.addSwitch(t)
	f.sim.PortCount = 8

	resp, payload := f.do(t, http.MethodGet, "/api/switches/"+id+"/interfaces", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 8, payload["count"])

	resp, payload = f.do(t, http.MethodGet, "/api/switches/"+id+"/overview", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "lab-sw1", payload["hostname"])
	assert.Equal(t, "6300M", payload["platform"])
}

func TestCapabilitiesEndpoint(t *testing.T) {
	f := newFixture(t)
	id := f.addSwitch(t)

	resp, payload := f.do(t, http.MethodGet, "/api/switches/"+id+"/capabilities", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, payload["poe"], "6300 family defaults to PoE")
	assert.Equal(t, false, payload["cpu_stats"])
}

func TestSessionCleanupEndpoint(t *testing.T) {
	f := newFixture(t)
	id := f.addSwitch(t)

	// Open a session first.
	f.do(t, http.MethodGet, "/api/switches/"+id+"/vlans", nil)
	require.Equal(t, 1, f.sim.ActiveSessions())

	resp, _ := f.do(t, http.MethodPost, "/api/switches/"+id+"/sessions/cleanup", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, f.sim.ActiveSessions())
}

func TestAPILogEndpoints(t *testing.T) {
	f := newFixture(t)
	id := f.addSwitch(t)
	f.do(t, http.MethodGet, "/api/switches/"+id+"/vlans", nil)

	resp, payload := f.do(t, http.MethodGet, "/api/api-log", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotZero(t, payload["count"], "device calls should be recorded")

	resp, payload = f.do(t, http.MethodGet, "/api/api-log/stats", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotZero(t, payload["total_calls"])

	resp, _ = f.do(t, http.MethodDelete, "/api/api-log", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_, payload = f.do(t, http.MethodGet, "/api/api-log/stats", nil)
	assert.Zero(t, payload["total_calls"])
}

func TestExportImport(t *testing.T) {
	f := newFixture(t)
	f.addSwitch(t)

	resp, err := http.Get(f.server.URL + "/api/export")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)

	// Import into a fresh deployment.
	other := newFixture(t)
	req, _ := http.NewRequest(http.MethodPost, other.server.URL+"/api/import", &buf)
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)

	_, ok := other.mgr.Inventory.GetByIP("10.0.0.5")
	assert.True(t, ok)
}

func TestBackupEndpoints(t *testing.T) {
	f := newFixture(t)
	id := f.addSwitch(t)

	// Mutations snapshot first, so one create produces one backup.
	f.do(t, http.MethodPost, "/api/switches/"+id+"/vlans", map[string]any{
		"vlan_id": 20, "vlan_name": "voice",
	})

	resp, payload := f.do(t, http.MethodGet, "/api/backups", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 1, payload["count"])

	backups := payload["backups"].([]any)
	backupID := backups[0].(map[string]any)["id"].(string)

	resp, payload = f.do(t, http.MethodGet, "/api/backups/"+backupID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "10.0.0.5", payload["switch_ip"])

	resp, _ = f.do(t, http.MethodDelete, "/api/backups/"+backupID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/backups/"+backupID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsExposed(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/api/status", nil)

	resp, err := http.Get(f.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	assert.Contains(t, buf.String(), "cxdash_http_requests_total")
}
