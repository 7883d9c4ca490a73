/*
Package metrics provides Prometheus metrics and health endpoints for Burrow.

All metrics are package-level collectors registered with the default
registry in init. The deployer records them as it runs; the lab endpoint
exposes them on /metrics next to the health handlers.

# Deployment Metrics

	burrow_runs_total{result}                     counter
	burrow_stage_duration_seconds{stage}          histogram
	burrow_tasks_issued_total{operation}          counter
	burrow_tasks_failed_total{operation}          counter
	burrow_disks_classified_total{role}           counter
	burrow_disks_wiped_total                      counter
	burrow_disks_refused_total                    counter
	burrow_hosts_skipped_total                    counter

Stage duration includes the barrier wait, so a slow endpoint shows up in
the stage that issued the work, not in the stage after it.

# Lab Metrics

	burrow_lab_tasks_completed_total{operation,state}  counter
	burrow_lab_hosts_total                             gauge
	burrow_lab_disks_total{state}                      gauge
	burrow_lab_disk_groups_total                       gauge
	burrow_lab_tasks_pending                           gauge
	burrow_api_requests_total{method,status}           counter
	burrow_api_request_duration_seconds{method}        histogram
	burrow_lab_reconciliation_duration_seconds         histogram
	burrow_lab_reconciliation_cycles_total             counter
	burrow_lab_reconciliation_repairs_total            counter

The lab gauges are refreshed from the store by a Collector:

	collector := metrics.NewCollector(store, 15*time.Second)
	collector.Start()
	defer collector.Stop()

# Timing

	timer := metrics.NewTimer()
	err := runStage()
	timer.ObserveDurationVec(metrics.StageDuration, string(stage))

# Health

A Health value collects component states for the lab endpoint. The
package-level UpdateComponent writes to DefaultHealth, which the API
server uses unless it is given its own. The store and the API are
critical: if either fails, /healthz answers 503 "unavailable". Any other
failing component, such as the reconciler, only marks it "degraded".
/healthz also carries the fleet summary from the last Collector pass.
/ready answers 200 once both critical components report healthy. /live
always answers 200 while the process runs.
*/
package metrics
