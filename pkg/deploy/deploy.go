package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cuemby/burrow/pkg/cluster"
	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/faultdomain"
	"github.com/cuemby/burrow/pkg/inventory"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/prompt"
	"github.com/cuemby/burrow/pkg/topology"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Stage names one step of the deployment pipeline
type Stage string

const (
	StageLicense     Stage = "assign-license"
	StagePrepare     Stage = "prepare-disks"
	StageNetwork     Stage = "enable-network"
	StageReconfigure Stage = "reconfigure-cluster"
	StageDiskGroups  Stage = "create-disk-groups"
	StageQuery       Stage = "query-disk-groups"
	StagePerformance Stage = "enable-performance"
)

// Config is the immutable configuration of one deployment run
type Config struct {
	ClusterName string
	Mode        types.DeploymentMode
	Network     types.NetworkConfig

	// FaultDomains is nil to leave the cluster's fault domains untouched
	FaultDomains []faultdomain.Spec

	LicenseKey string
}

// Validate checks the configuration before any remote call is made
func (c Config) Validate() error {
	if c.ClusterName == "" {
		return errors.New("cluster name is required")
	}
	switch c.Mode {
	case types.ModeAllFlash, types.ModeHybrid:
	default:
		return fmt.Errorf("invalid deployment mode %q", c.Mode)
	}
	if c.Network.Device == "" {
		return errors.New("storage network device is required")
	}
	return nil
}

// Option configures a Deployer
type Option func(*Deployer)

// WithOutput sets where the claim audit and disk group listing are written
func WithOutput(w io.Writer) Option {
	return func(d *Deployer) {
		d.out = w
	}
}

// WithBroker publishes progress events to a started broker
func WithBroker(b *events.Broker) Option {
	return func(d *Deployer) {
		d.broker = b
	}
}

// Deployer drives the storage fabric bring-up pipeline against a cluster
type Deployer struct {
	client    cluster.Client
	confirmer prompt.Confirmer
	collector *inventory.Collector
	builder   *topology.Builder
	broker    *events.Broker
	out       io.Writer
	logger    zerolog.Logger
}

// NewDeployer creates a new deployer
func NewDeployer(client cluster.Client, confirmer prompt.Confirmer, opts ...Option) *Deployer {
	d := &Deployer{
		client:    client,
		confirmer: confirmer,
		collector: inventory.NewCollector(client),
		builder:   topology.NewBuilder(),
		out:       os.Stdout,
		logger:    log.WithComponent("deploy"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run executes every stage in order. The first failing stage stops the
// run; the returned report covers the stages that completed.
func (d *Deployer) Run(ctx context.Context, cfg Config) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	report := &Report{
		RunID:   uuid.New().String(),
		Cluster: cfg.ClusterName,
		Mode:    cfg.Mode,
	}
	logger := d.logger.With().
		Str("run_id", report.RunID).
		Str("cluster", cfg.ClusterName).
		Str("mode", string(cfg.Mode)).
		Logger()

	logger.Info().Msg("Starting storage fabric deployment")

	timer := metrics.NewTimer()
	err := d.run(ctx, cfg, report, logger)
	report.Duration = timer.Duration()

	if err != nil {
		metrics.RunsTotal.WithLabelValues("failure").Inc()
		logger.Error().Err(err).Dur("duration", report.Duration).Msg("Deployment failed")
		return report, err
	}

	metrics.RunsTotal.WithLabelValues("success").Inc()
	logger.Info().Dur("duration", report.Duration).Msg("Deployment complete")
	return report, nil
}

func (d *Deployer) run(ctx context.Context, cfg Config, report *Report, logger zerolog.Logger) error {
	if cfg.LicenseKey != "" {
		err := d.stage(report, StageLicense, logger, func() error {
			if err := d.client.AssignLicense(ctx, cfg.ClusterName, cfg.LicenseKey); err != nil {
				return fmt.Errorf("failed to assign license: %w", err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	var inv *inventory.Inventory
	err := d.stage(report, StagePrepare, logger, func() error {
		var err error
		inv, err = d.collector.Collect(ctx, cfg.ClusterName)
		if err != nil {
			return err
		}
		report.Inventory = inv
		for _, id := range inv.Vanished {
			d.publish(events.EventHostVanished, StagePrepare, "host disappeared during inventory", map[string]string{"host_id": id})
		}
		return d.prepareDisks(ctx, inv, report)
	})
	if err != nil {
		return err
	}

	err = d.stage(report, StageNetwork, logger, func() error {
		return d.enableNetwork(ctx, inv, cfg.Network)
	})
	if err != nil {
		return err
	}

	err = d.stage(report, StageReconfigure, logger, func() error {
		return d.reconfigure(ctx, inv, cfg)
	})
	if err != nil {
		return err
	}

	err = d.stage(report, StageDiskGroups, logger, func() error {
		plan, err := d.createDiskGroups(ctx, inv, cfg.Mode)
		report.Plan = plan
		return err
	})
	if err != nil {
		return err
	}

	err = d.stage(report, StageQuery, logger, func() error {
		groups, err := d.QueryDiskGroups(ctx, inv.Hosts)
		if err != nil {
			return err
		}
		report.DiskGroups = groups
		WriteDiskGroups(d.out, inv.Hosts, groups)
		return nil
	})
	if err != nil {
		return err
	}

	return d.stage(report, StagePerformance, logger, func() error {
		task, err := d.client.EnablePerformanceService(ctx, cfg.ClusterName)
		if err != nil {
			return fmt.Errorf("failed to enable performance service: %w", err)
		}
		d.issued(StagePerformance, task)
		return d.barrier(ctx, StagePerformance, []types.DeploymentTask{task})
	})
}

// Plan collects the inventory and builds the disk group topology without
// changing anything on the cluster.
func (d *Deployer) Plan(ctx context.Context, clusterName string, mode types.DeploymentMode) (*inventory.Inventory, *topology.Plan, error) {
	inv, err := d.collector.Collect(ctx, clusterName)
	if err != nil {
		return nil, nil, err
	}
	return inv, d.builder.Build(inv, mode), nil
}

// Inventory collects the hosts and disks of a cluster
func (d *Deployer) Inventory(ctx context.Context, clusterName string) (*inventory.Inventory, error) {
	return d.collector.Collect(ctx, clusterName)
}

// QueryDiskGroups reads back the disk groups of every host
func (d *Deployer) QueryDiskGroups(ctx context.Context, hosts []types.Host) (map[string][]types.DiskGroupMapping, error) {
	groups := make(map[string][]types.DiskGroupMapping, len(hosts))
	for _, h := range hosts {
		mappings, err := d.client.QueryDiskGroups(ctx, h.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to query disk groups of host %s: %w", h.Name, err)
		}
		groups[h.ID] = mappings
	}
	return groups, nil
}

func (d *Deployer) enableNetwork(ctx context.Context, inv *inventory.Inventory, netCfg types.NetworkConfig) error {
	tasks := make([]types.DeploymentTask, 0, len(inv.Hosts))
	for _, h := range inv.Hosts {
		d.logger.Info().
			Str("host", h.Name).
			Str("device", netCfg.Device).
			Msg("Enabling storage traffic")

		task, err := d.client.EnableStorageNetwork(ctx, h.ID, netCfg)
		if err != nil {
			return fmt.Errorf("failed to enable storage network on host %s: %w", h.Name, err)
		}
		d.issued(StageNetwork, task)
		tasks = append(tasks, task)
	}
	return d.barrier(ctx, StageNetwork, tasks)
}

func (d *Deployer) reconfigure(ctx context.Context, inv *inventory.Inventory, cfg Config) error {
	req := ReconfigRequest(cfg, inv.Hosts)

	event := d.logger.Info().Bool("auto_claim", req.AutoClaimStorage)
	if req.DataEfficiency != nil {
		event = event.Bool("dedup", true).Bool("compression", true)
	}
	if req.FaultDomains != nil {
		event = event.Int("fault_domains", len(req.FaultDomains))
		for _, spec := range cfg.FaultDomains {
			if missing := faultdomain.Unresolved(spec, inv.Hosts); len(missing) > 0 {
				d.logger.Warn().
					Str("fault_domain", spec.Name).
					Strs("hosts", missing).
					Msg("Dropping unknown hosts from fault domain")
			}
		}
	}
	event.Msg("Enabling storage fabric with manual disk claiming")

	task, err := d.client.ReconfigureCluster(ctx, cfg.ClusterName, req)
	if err != nil {
		return fmt.Errorf("failed to reconfigure cluster %s: %w", cfg.ClusterName, err)
	}
	d.issued(StageReconfigure, task)
	return d.barrier(ctx, StageReconfigure, []types.DeploymentTask{task})
}

// ReconfigRequest builds the cluster reconfiguration for a run. Storage is
// never claimed automatically, data efficiency is requested only in
// all-flash mode, and fault domains are resolved against hosts.
func ReconfigRequest(cfg Config, hosts []types.Host) types.ClusterReconfigRequest {
	req := types.ClusterReconfigRequest{
		Enabled:          true,
		AutoClaimStorage: false,
	}
	if cfg.Mode == types.ModeAllFlash {
		req.DataEfficiency = &types.DataEfficiencyConfig{
			DedupEnabled:       true,
			CompressionEnabled: true,
		}
	}
	if cfg.FaultDomains != nil {
		req.FaultDomains = faultdomain.Resolve(cfg.FaultDomains, hosts)
	}
	return req
}

func (d *Deployer) createDiskGroups(ctx context.Context, inv *inventory.Inventory, mode types.DeploymentMode) (*topology.Plan, error) {
	// Wipes and reconfiguration change eligibility
	if err := d.collector.Refresh(ctx, inv); err != nil {
		return nil, err
	}

	plan := d.builder.Build(inv, mode)
	WriteClaims(d.out, plan)

	for _, h := range plan.Skipped {
		d.publish(events.EventHostSkipped, StageDiskGroups, "host lacks a cache or capacity disk", map[string]string{"host": h.Name})
	}

	tasks := make([]types.DeploymentTask, 0, len(plan.Specs))
	for _, spec := range plan.Specs {
		task, err := d.client.CreateDiskGroup(ctx, spec)
		if err != nil {
			return plan, fmt.Errorf("failed to create disk group on host %s: %w", inv.HostName(spec.HostID), err)
		}
		d.issued(StageDiskGroups, task)
		d.claimed(inv.HostName(spec.HostID), "cache", spec.Cache)
		d.claimed(inv.HostName(spec.HostID), "capacity", spec.Capacity)
		tasks = append(tasks, task)
	}

	return plan, d.barrier(ctx, StageDiskGroups, tasks)
}

// barrier blocks until every task of a stage is terminal
func (d *Deployer) barrier(ctx context.Context, stage Stage, tasks []types.DeploymentTask) error {
	if len(tasks) == 0 {
		return nil
	}

	d.logger.Info().
		Str("stage", string(stage)).
		Int("tasks", len(tasks)).
		Msg("Waiting for tasks")

	results, err := d.client.WaitForTasks(ctx, tasks)
	if err != nil {
		return fmt.Errorf("failed waiting for %s tasks: %w", stage, err)
	}

	var failed []types.TaskResult
	for _, r := range results {
		if r.State == types.TaskStateSuccess {
			continue
		}
		failed = append(failed, r)
		metrics.TasksFailed.WithLabelValues(string(r.Task.Operation)).Inc()
		taskLogger := log.WithTaskID(r.Task.ID)
		taskLogger.Error().
			Str("stage", string(stage)).
			Str("target", r.Task.Target).
			Str("state", string(r.State)).
			Str("error", r.Error).
			Msg("Task failed")
		d.publish(events.EventTaskFailed, stage, r.Error, map[string]string{
			"task_id": r.Task.ID,
			"target":  r.Task.Target,
		})
	}

	if len(failed) > 0 {
		return &StageError{Stage: stage, Failed: failed}
	}
	return nil
}

func (d *Deployer) issued(stage Stage, task types.DeploymentTask) {
	metrics.TasksIssued.WithLabelValues(string(task.Operation)).Inc()
	taskLogger := log.WithTaskID(task.ID)
	taskLogger.Debug().
		Str("operation", string(task.Operation)).
		Str("target", task.Target).
		Msg("Task issued")
	d.publish(events.EventTaskIssued, stage, "", map[string]string{
		"task_id":   task.ID,
		"operation": string(task.Operation),
		"target":    task.Target,
	})
}

func (d *Deployer) claimed(host, role string, disks []types.Disk) {
	for _, disk := range disks {
		d.publish(events.EventDiskClaimed, StageDiskGroups, "", map[string]string{
			"host": host,
			"disk": disk.DisplayName,
			"role": role,
		})
	}
}

func (d *Deployer) stage(report *Report, stage Stage, logger zerolog.Logger, fn func() error) error {
	logger.Info().Str("stage", string(stage)).Msg("Stage started")
	d.publish(events.EventStageStarted, stage, "", nil)

	timer := metrics.NewTimer()
	err := fn()
	timer.ObserveDurationVec(metrics.StageDuration, string(stage))

	if err != nil {
		d.publish(events.EventStageFailed, stage, err.Error(), nil)
		return err
	}

	report.Completed = append(report.Completed, stage)
	logger.Info().
		Str("stage", string(stage)).
		Dur("duration", timer.Duration()).
		Msg("Stage completed")
	d.publish(events.EventStageCompleted, stage, "", nil)
	return nil
}

func (d *Deployer) publish(typ events.EventType, stage Stage, message string, metadata map[string]string) {
	if d.broker == nil {
		return
	}
	d.broker.Publish(&events.Event{
		Type:     typ,
		Stage:    string(stage),
		Message:  message,
		Metadata: metadata,
	})
}
