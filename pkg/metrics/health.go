package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Components reported by the lab endpoint. The store and the API must be
// healthy before the endpoint is ready; anything else only degrades it.
const (
	ComponentStore      = "store"
	ComponentAPI        = "api"
	ComponentReconciler = "reconciler"
)

var critical = []string{ComponentStore, ComponentAPI}

// ComponentStatus is the last reported state of one component. Since is
// when it last flipped between healthy and unhealthy.
type ComponentStatus struct {
	Healthy bool      `json:"healthy"`
	Message string    `json:"message,omitempty"`
	Since   time.Time `json:"since"`
}

// FleetSummary is the lab fleet as seen by the last collector pass
type FleetSummary struct {
	Hosts         int       `json:"hosts"`
	EligibleDisks int       `json:"eligibleDisks"`
	DiskGroups    int       `json:"diskGroups"`
	PendingTasks  int       `json:"pendingTasks"`
	CollectedAt   time.Time `json:"collectedAt"`
}

// HealthReport is the body of /healthz and /ready
type HealthReport struct {
	Status     string                     `json:"status"`
	Message    string                     `json:"message,omitempty"`
	Version    string                     `json:"version,omitempty"`
	Uptime     string                     `json:"uptime"`
	Components map[string]ComponentStatus `json:"components,omitempty"`
	Fleet      *FleetSummary              `json:"fleet,omitempty"`
}

// Health statuses
const (
	StatusOK          = "ok"
	StatusDegraded    = "degraded"
	StatusUnavailable = "unavailable"
	StatusReady       = "ready"
	StatusStarting    = "starting"
	StatusNotReady    = "not_ready"
)

// Health collects component states and the latest fleet summary
type Health struct {
	mu         sync.RWMutex
	components map[string]ComponentStatus
	fleet      *FleetSummary
	started    time.Time
	version    string
}

// DefaultHealth backs the package-level helpers
var DefaultHealth = NewHealth()

func NewHealth() *Health {
	return &Health{
		components: make(map[string]ComponentStatus),
		started:    time.Now(),
	}
}

// UpdateComponent records a component state on DefaultHealth
func UpdateComponent(name string, healthy bool, message string) {
	DefaultHealth.Set(name, healthy, message)
}

func (h *Health) Set(name string, healthy bool, message string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	since := time.Now()
	if prev, ok := h.components[name]; ok && prev.Healthy == healthy {
		since = prev.Since
	}
	h.components[name] = ComponentStatus{Healthy: healthy, Message: message, Since: since}
}

func (h *Health) SetVersion(version string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.version = version
}

// RecordFleet stores the summary of a collector pass
func (h *Health) RecordFleet(summary FleetSummary) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fleet = &summary
}

// Report summarizes every component. A failing store or API makes the
// endpoint unavailable; any other failure degrades it.
func (h *Health) Report() HealthReport {
	h.mu.RLock()
	defer h.mu.RUnlock()

	report := h.report(StatusOK)
	for name, comp := range h.components {
		if comp.Healthy {
			continue
		}
		if isCritical(name) {
			report.Status = StatusUnavailable
			report.Message = name + ": " + comp.Message
		} else if report.Status == StatusOK {
			report.Status = StatusDegraded
			report.Message = name + ": " + comp.Message
		}
	}
	return report
}

// Readiness reports whether the store and the API are both up
func (h *Health) Readiness() HealthReport {
	h.mu.RLock()
	defer h.mu.RUnlock()

	report := h.report(StatusReady)
	for _, name := range critical {
		comp, ok := h.components[name]
		switch {
		case !ok:
			report.Status = StatusStarting
			report.Message = "waiting for " + name
			return report
		case !comp.Healthy:
			report.Status = StatusNotReady
			report.Message = name + ": " + comp.Message
			return report
		}
	}
	return report
}

func (h *Health) report(status string) HealthReport {
	components := make(map[string]ComponentStatus, len(h.components))
	for name, comp := range h.components {
		components[name] = comp
	}
	return HealthReport{
		Status:     status,
		Version:    h.version,
		Uptime:     time.Since(h.started).Round(time.Second).String(),
		Components: components,
		Fleet:      h.fleet,
	}
}

func isCritical(name string) bool {
	for _, c := range critical {
		if c == name {
			return true
		}
	}
	return false
}

// HealthHandler serves /healthz. Only an unavailable endpoint answers 503.
func (h *Health) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := h.Report()
		code := http.StatusOK
		if report.Status == StatusUnavailable {
			code = http.StatusServiceUnavailable
		}
		writeReport(w, code, report)
	}
}

// ReadyHandler serves /ready
func (h *Health) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := h.Readiness()
		code := http.StatusOK
		if report.Status != StatusReady {
			code = http.StatusServiceUnavailable
		}
		writeReport(w, code, report)
	}
}

// LivenessHandler serves /live, which answers as long as the process runs
func (h *Health) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.mu.RLock()
		uptime := time.Since(h.started).Round(time.Second).String()
		h.mu.RUnlock()
		writeReport(w, http.StatusOK, map[string]string{"status": "alive", "uptime": uptime})
	}
}

func writeReport(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
