package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Deployment metrics
	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "burrow_stage_duration_seconds",
			Help:    "Time spent in each deployment stage, including the barrier wait",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"stage"},
	)

	TasksIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_tasks_issued_total",
			Help: "Total number of remote tasks issued by operation",
		},
		[]string{"operation"},
	)

	TasksFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_tasks_failed_total",
			Help: "Total number of remote tasks that ended in error by operation",
		},
		[]string{"operation"},
	)

	DisksClassified = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_disks_classified_total",
			Help: "Total number of disks assigned a role",
		},
		[]string{"role"},
	)

	DisksWiped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "burrow_disks_wiped_total",
			Help: "Total number of disks whose partitions were wiped after confirmation",
		},
	)

	DisksRefused = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "burrow_disks_refused_total",
			Help: "Total number of ineligible disks left untouched because the wipe was refused",
		},
	)

	HostsSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "burrow_hosts_skipped_total",
			Help: "Total number of hosts excluded from disk group creation",
		},
	)

	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_runs_total",
			Help: "Total number of deployment runs by result",
		},
		[]string{"result"},
	)

	// Lab endpoint metrics
	LabTasksCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_lab_tasks_completed_total",
			Help: "Total number of lab tasks completed by operation and state",
		},
		[]string{"operation", "state"},
	)

	LabHostsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "burrow_lab_hosts_total",
			Help: "Total number of hosts in the lab fleet",
		},
	)

	LabDisksTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "burrow_lab_disks_total",
			Help: "Total number of lab disks by eligibility state",
		},
		[]string{"state"},
	)

	LabDiskGroupsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "burrow_lab_disk_groups_total",
			Help: "Total number of disk groups in the lab fleet",
		},
	)

	LabTasksPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "burrow_lab_tasks_pending",
			Help: "Number of lab tasks not yet in a terminal state",
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_api_requests_total",
			Help: "Total number of lab API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "burrow_api_request_duration_seconds",
			Help:    "Lab API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	// Reconciliation metrics
	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "burrow_lab_reconciliation_duration_seconds",
			Help:    "Time taken by one lab reconciliation cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconciliationCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "burrow_lab_reconciliation_cycles_total",
			Help: "Total number of lab reconciliation cycles",
		},
	)

	ReconciliationRepairsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "burrow_lab_reconciliation_repairs_total",
			Help: "Total number of lab records repaired by reconciliation",
		},
	)
)

func init() {
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(TasksIssued)
	prometheus.MustRegister(TasksFailed)
	prometheus.MustRegister(DisksClassified)
	prometheus.MustRegister(DisksWiped)
	prometheus.MustRegister(DisksRefused)
	prometheus.MustRegister(HostsSkipped)
	prometheus.MustRegister(RunsTotal)
	prometheus.MustRegister(LabTasksCompleted)
	prometheus.MustRegister(LabHostsTotal)
	prometheus.MustRegister(LabDisksTotal)
	prometheus.MustRegister(LabDiskGroupsTotal)
	prometheus.MustRegister(LabTasksPending)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(ReconciliationDuration)
	prometheus.MustRegister(ReconciliationCyclesTotal)
	prometheus.MustRegister(ReconciliationRepairsTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
