package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth_SetKeepsSinceWhileUnchanged(t *testing.T) {
	h := NewHealth()

	h.Set(ComponentStore, true, "")
	first := h.components[ComponentStore].Since

	time.Sleep(5 * time.Millisecond)
	h.Set(ComponentStore, true, "still fine")
	assert.Equal(t, first, h.components[ComponentStore].Since)
	assert.Equal(t, "still fine", h.components[ComponentStore].Message)

	time.Sleep(5 * time.Millisecond)
	h.Set(ComponentStore, false, "bolt closed")
	assert.True(t, h.components[ComponentStore].Since.After(first))
}

func TestHealth_Report(t *testing.T) {
	tests := []struct {
		name        string
		components  map[string]bool
		wantStatus  string
		wantMessage string
	}{
		{
			name:       "all healthy",
			components: map[string]bool{ComponentAPI: true, ComponentStore: true, ComponentReconciler: true},
			wantStatus: StatusOK,
		},
		{
			name:        "reconciler failing",
			components:  map[string]bool{ComponentAPI: true, ComponentStore: true, ComponentReconciler: false},
			wantStatus:  StatusDegraded,
			wantMessage: "reconciler: broken",
		},
		{
			name:        "store failing",
			components:  map[string]bool{ComponentAPI: true, ComponentStore: false},
			wantStatus:  StatusUnavailable,
			wantMessage: "store: broken",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealth()
			h.SetVersion("1.0.0")
			for name, healthy := range tt.components {
				h.Set(name, healthy, "broken")
			}

			report := h.Report()
			assert.Equal(t, tt.wantStatus, report.Status)
			assert.Equal(t, tt.wantMessage, report.Message)
			assert.Len(t, report.Components, len(tt.components))
			assert.Equal(t, "1.0.0", report.Version)
		})
	}
}

func TestHealth_Readiness(t *testing.T) {
	tests := []struct {
		name        string
		components  map[string]bool
		wantStatus  string
		wantMessage string
	}{
		{
			name:       "ready",
			components: map[string]bool{ComponentAPI: true, ComponentStore: true},
			wantStatus: StatusReady,
		},
		{
			name:        "store not registered",
			components:  map[string]bool{ComponentAPI: true},
			wantStatus:  StatusStarting,
			wantMessage: "waiting for store",
		},
		{
			name:        "store unhealthy",
			components:  map[string]bool{ComponentAPI: true, ComponentStore: false},
			wantStatus:  StatusNotReady,
			wantMessage: "store: broken",
		},
		{
			name:       "reconciler does not gate readiness",
			components: map[string]bool{ComponentAPI: true, ComponentStore: true, ComponentReconciler: false},
			wantStatus: StatusReady,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealth()
			for name, healthy := range tt.components {
				h.Set(name, healthy, "broken")
			}

			report := h.Readiness()
			assert.Equal(t, tt.wantStatus, report.Status)
			assert.Equal(t, tt.wantMessage, report.Message)
		})
	}
}

func TestHealth_HealthHandler(t *testing.T) {
	h := NewHealth()
	h.Set(ComponentAPI, true, "")
	h.Set(ComponentReconciler, false, "list tasks: timeout")
	h.RecordFleet(FleetSummary{Hosts: 3, DiskGroups: 2})

	rec := httptest.NewRecorder()
	h.HealthHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var report HealthReport
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, StatusDegraded, report.Status)
	require.NotNil(t, report.Fleet)
	assert.Equal(t, 3, report.Fleet.Hosts)
	assert.Equal(t, 2, report.Fleet.DiskGroups)

	h.Set(ComponentAPI, false, "listener closed")
	rec = httptest.NewRecorder()
	h.HealthHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealth_ReadyHandler(t *testing.T) {
	h := NewHealth()

	rec := httptest.NewRecorder()
	h.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	h.Set(ComponentAPI, true, "")
	h.Set(ComponentStore, true, "")

	rec = httptest.NewRecorder()
	h.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealth_LivenessHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealth().LivenessHandler()(rec, httptest.NewRequest(http.MethodGet, "/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "alive", body["status"])
	assert.NotEmpty(t, body["uptime"])
}
