package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cuemby/burrow/pkg/lab"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/storage"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()

	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)

	fleet, err := lab.LoadFleet(filepath.Join("..", "lab", "testdata", "fleet.yaml"))
	require.NoError(t, err)
	require.NoError(t, lab.Seed(store, fleet))

	backend := lab.NewCluster(store, lab.WithPollInterval(time.Millisecond))
	t.Cleanup(func() {
		backend.Wait()
		store.Close()
	})
	return NewServer(backend, cfg)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestServer_ListHosts(t *testing.T) {
	s := newTestServer(t, Config{})

	rec := do(t, s, http.MethodGet, HostsPath("lab"), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HostsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, []string{"host-1", "host-2", "host-3"}, resp.Hosts)
}

func TestServer_BasicAuth(t *testing.T) {
	s := newTestServer(t, Config{Users: map[string]string{"admin": "secret"}})

	rec := do(t, s, http.MethodGet, HostsPath("lab"), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, HostsPath("lab"), nil)
	req.SetBasicAuth("admin", "secret")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health endpoints stay outside authentication
	rec = do(t, s, http.MethodGet, "/live", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_ReadOnly(t *testing.T) {
	s := newTestServer(t, Config{ReadOnly: true})

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"list hosts", http.MethodGet, HostsPath("lab"), "", http.StatusOK},
		{"properties", http.MethodPost, HostPropertiesPath(), `{"hostIds":["host-1"],"fields":["name"]}`, http.StatusOK},
		{"wipe", http.MethodPost, WipePath("host-1", "naa.a3"), "", http.StatusForbidden},
		{"network", http.MethodPost, NetworkPath("host-1"), `{"device":"vmk1"}`, http.StatusForbidden},
		{"license", http.MethodPut, LicensePath("lab"), `{"licenseKey":"k"}`, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestServer_Validation(t *testing.T) {
	s := newTestServer(t, Config{})

	tests := []struct {
		name string
		path string
		body string
	}{
		{"malformed json", NetworkPath("host-1"), `{"device":`},
		{"missing device", NetworkPath("host-1"), `{}`},
		{"bad address", NetworkPath("host-1"), `{"device":"vmk1","upstreamIpAddress":"not-an-ip"}`},
		{"empty host list", HostPropertiesPath(), `{"hostIds":[],"fields":["name"]}`},
		{"bad mode", DiskGroupsPath("host-1"), `{"cache":[{"ID":"naa.a1"}],"capacity":[{"ID":"naa.a2"}],"mode":"fast"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestServer_ObjectNotFound(t *testing.T) {
	s := newTestServer(t, Config{})

	rec := do(t, s, http.MethodGet, DisksPath("host-9"), "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "host-9", resp.Object)
}

func TestServer_License(t *testing.T) {
	s := newTestServer(t, Config{})

	rec := do(t, s, http.MethodPut, LicensePath("lab"), `{"licenseKey":"AAAAA"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, s, http.MethodGet, LicensePath("lab"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp LicenseResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "AAAAA", resp.LicenseKey)

	rec = do(t, s, http.MethodPut, LicensePath("missing"), `{"licenseKey":"AAAAA"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_TaskLifecycle(t *testing.T) {
	s := newTestServer(t, Config{})

	rec := do(t, s, http.MethodPost, NetworkPath("host-1"), `{"device":"vmk1"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var task TaskResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&task))
	assert.Equal(t, types.OperationEnableNetwork, task.Operation)
	assert.Equal(t, "host-1", task.Target)
	assert.Equal(t, types.TaskStateQueued, task.State)

	require.Eventually(t, func() bool {
		rec := do(t, s, http.MethodGet, TaskPath(task.ID), "")
		if rec.Code != http.StatusOK {
			return false
		}
		var status TaskResponse
		if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
			return false
		}
		return status.State == types.TaskStateSuccess
	}, 2*time.Second, 5*time.Millisecond)

	rec = do(t, s, http.MethodGet, TaskPath("missing"), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Health(t *testing.T) {
	health := metrics.NewHealth()
	s := newTestServer(t, Config{Version: "test", Health: health})

	rec := do(t, s, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	health.Set(metrics.ComponentStore, true, "")
	health.Set(metrics.ComponentAPI, true, "")
	rec = do(t, s, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var report metrics.HealthReport
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, "test", report.Version)
	assert.Equal(t, metrics.StatusOK, report.Status)
}

func TestServer_Metrics(t *testing.T) {
	s := newTestServer(t, Config{})
	do(t, s, http.MethodGet, HostsPath("lab"), "")

	rec := do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "burrow_api_requests_total")
}
