package lab

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/burrow/pkg/cluster"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/security"
	"github.com/cuemby/burrow/pkg/storage"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Cluster is a simulated management endpoint backed by a lab store.
// Tasks run on their own goroutines; every state change is serialized by
// one mutex.
type Cluster struct {
	mu      sync.Mutex
	store   storage.Store
	latency time.Duration
	waiter  *cluster.Waiter
	sealer  *security.Sealer
	active  map[string]struct{} // Tasks with a live goroutine
	wg      sync.WaitGroup
	logger  zerolog.Logger
}

// DefaultSecret seals license keys when no secret is configured
const DefaultSecret = "burrow-lab"

var _ cluster.Client = (*Cluster)(nil)

// Option configures a lab Cluster
type Option func(*Cluster)

// WithLatency delays every task before it completes
func WithLatency(d time.Duration) Option {
	return func(c *Cluster) {
		c.latency = d
	}
}

// WithPollInterval sets how often WaitForTasks checks task state
func WithPollInterval(d time.Duration) Option {
	return func(c *Cluster) {
		c.waiter = cluster.NewWaiter(d, 0)
	}
}

// WithSealer sets the sealer used for license keys at rest
func WithSealer(s *security.Sealer) Option {
	return func(c *Cluster) {
		c.sealer = s
	}
}

// NewCluster creates a lab endpoint over store
func NewCluster(store storage.Store, opts ...Option) *Cluster {
	c := &Cluster{
		store:  store,
		active: make(map[string]struct{}),
		waiter: cluster.NewWaiter(10*time.Millisecond, 0),
		logger: log.WithComponent("lab"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sealer == nil {
		c.sealer, _ = security.NewSealerFromPassphrase(DefaultSecret)
	}
	return c
}

// Wait blocks until every submitted task has finished
func (c *Cluster) Wait() {
	c.wg.Wait()
}

func (c *Cluster) ListHosts(ctx context.Context, clusterName string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, err := c.store.GetCluster(clusterName)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), state.HostIDs...), nil
}

func (c *Cluster) GetHostProperties(ctx context.Context, hostIDs []string, fields []string) (map[string]types.HostProperties, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hosts := make([]*types.HostState, 0, len(hostIDs))
	for _, id := range hostIDs {
		host, err := c.host(id)
		if err != nil {
			return nil, err
		}
		if host.Faults.Vanish {
			if err := c.removeHost(host); err != nil {
				return nil, err
			}
			c.logger.Info().Str("host_id", id).Msg("Host vanished")
			return nil, cluster.NewObjectNotFound(id)
		}
		hosts = append(hosts, host)
	}

	out := make(map[string]types.HostProperties, len(hosts))
	for _, host := range hosts {
		props := types.HostProperties{}
		for _, field := range fields {
			switch field {
			case types.PropertyName:
				props[field] = host.Name
			case types.PropertyConnectionState:
				props[field] = "connected"
			}
		}
		out[host.ID] = props
	}
	return out, nil
}

func (c *Cluster) QueryDisks(ctx context.Context, hostID string) ([]types.Disk, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	host, err := c.host(hostID)
	if err != nil {
		return nil, err
	}
	return host.Disks, nil
}

func (c *Cluster) WipeDiskPartitions(ctx context.Context, hostID, diskID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	host, err := c.host(hostID)
	if err != nil {
		return err
	}

	i := diskIndex(host.Disks, diskID)
	if i < 0 {
		return cluster.NewObjectNotFound(diskID)
	}
	if host.Disks[i].State == types.DiskInUse {
		return fmt.Errorf("disk %s on host %s is in use: %w", diskID, hostID, cluster.ErrRejected)
	}

	host.Disks[i].State = types.DiskEligible
	host.Disks[i].Reason = ""
	if err := c.store.PutHost(host); err != nil {
		return fmt.Errorf("failed to store host %s: %w", hostID, err)
	}

	c.logger.Info().Str("host", host.Name).Str("disk", diskID).Msg("Wiped disk partitions")
	return nil
}

func (c *Cluster) EnableStorageNetwork(ctx context.Context, hostID string, cfg types.NetworkConfig) (types.DeploymentTask, error) {
	if err := c.requireHost(hostID); err != nil {
		return types.DeploymentTask{}, err
	}

	return c.submit(types.OperationEnableNetwork, hostID, func() error {
		host, err := c.host(hostID)
		if err != nil {
			return err
		}
		if host.Faults.FailNetwork {
			return fmt.Errorf("interface %s is not available on host %s", cfg.Device, host.Name)
		}
		if cfg.Device == "" {
			return errors.New("no storage interface given")
		}
		host.Network = &cfg
		return c.store.PutHost(host)
	})
}

func (c *Cluster) ReconfigureCluster(ctx context.Context, clusterName string, req types.ClusterReconfigRequest) (types.DeploymentTask, error) {
	c.mu.Lock()
	_, err := c.store.GetCluster(clusterName)
	c.mu.Unlock()
	if err != nil {
		return types.DeploymentTask{}, err
	}

	return c.submit(types.OperationReconfigure, clusterName, func() error {
		state, err := c.store.GetCluster(clusterName)
		if err != nil {
			return err
		}

		members := make(map[string]bool, len(state.HostIDs))
		for _, id := range state.HostIDs {
			members[id] = true
		}
		for _, fd := range req.FaultDomains {
			for _, h := range fd.Hosts {
				if !members[h.ID] {
					return fmt.Errorf("fault domain %s names host %s which is not a member of cluster %s", fd.Name, h.Name, clusterName)
				}
			}
		}

		if req.DataEfficiency != nil && (req.DataEfficiency.DedupEnabled || req.DataEfficiency.CompressionEnabled) {
			rotational, err := c.hasRotationalCapacity(state.HostIDs)
			if err != nil {
				return err
			}
			if rotational {
				return errors.New("deduplication and compression require an all-flash disk configuration")
			}
		}

		state.Enabled = req.Enabled
		state.AutoClaimStorage = req.AutoClaimStorage
		state.DataEfficiency = req.DataEfficiency
		if req.FaultDomains != nil {
			state.FaultDomains = req.FaultDomains
		}
		state.UpdatedAt = time.Now()
		return c.store.PutCluster(state)
	})
}

func (c *Cluster) CreateDiskGroup(ctx context.Context, spec types.DiskGroupSpec) (types.DeploymentTask, error) {
	if err := c.requireHost(spec.HostID); err != nil {
		return types.DeploymentTask{}, err
	}

	return c.submit(types.OperationCreateDiskGroup, spec.HostID, func() error {
		host, err := c.host(spec.HostID)
		if err != nil {
			return err
		}
		if host.Faults.FailDiskGroup {
			return fmt.Errorf("disk group creation failed on host %s", host.Name)
		}

		groups, err := buildDiskGroups(host, spec)
		if err != nil {
			return err
		}

		claimed := make(map[string]bool)
		for _, g := range groups {
			claimed[g.Cache.ID] = true
			for _, d := range g.Capacity {
				claimed[d.ID] = true
			}
		}
		for i := range host.Disks {
			if claimed[host.Disks[i].ID] {
				host.Disks[i].State = types.DiskInUse
				host.Disks[i].Reason = "claimed by disk group"
			}
		}
		host.DiskGroups = append(host.DiskGroups, groups...)
		return c.store.PutHost(host)
	})
}

func (c *Cluster) QueryDiskGroups(ctx context.Context, hostID string) ([]types.DiskGroupMapping, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	host, err := c.host(hostID)
	if err != nil {
		return nil, err
	}
	return host.DiskGroups, nil
}

func (c *Cluster) EnablePerformanceService(ctx context.Context, clusterName string) (types.DeploymentTask, error) {
	c.mu.Lock()
	_, err := c.store.GetCluster(clusterName)
	c.mu.Unlock()
	if err != nil {
		return types.DeploymentTask{}, err
	}

	return c.submit(types.OperationEnablePerformance, clusterName, func() error {
		state, err := c.store.GetCluster(clusterName)
		if err != nil {
			return err
		}
		if !state.Enabled {
			return fmt.Errorf("storage fabric is not enabled on cluster %s", clusterName)
		}
		state.PerformanceEnabled = true
		state.UpdatedAt = time.Now()
		return c.store.PutCluster(state)
	})
}

// TaskStatus returns the current state of a task
func (c *Cluster) TaskStatus(ctx context.Context, taskID string) (types.TaskResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	record, err := c.store.GetTask(taskID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return types.TaskResult{}, cluster.NewObjectNotFound(taskID)
		}
		return types.TaskResult{}, err
	}
	return types.TaskResult{Task: record.Task, State: record.State, Error: record.Error}, nil
}

func (c *Cluster) WaitForTasks(ctx context.Context, tasks []types.DeploymentTask) ([]types.TaskResult, error) {
	return c.waiter.WaitForTasks(ctx, tasks, func(ctx context.Context, task types.DeploymentTask) (types.TaskResult, error) {
		return c.TaskStatus(ctx, task.ID)
	})
}

func (c *Cluster) AssignLicense(ctx context.Context, clusterName, licenseKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, err := c.store.GetCluster(clusterName)
	if err != nil {
		return err
	}
	if licenseKey == "" {
		return fmt.Errorf("empty license key: %w", cluster.ErrRejected)
	}
	sealed, err := c.sealer.Seal([]byte(licenseKey))
	if err != nil {
		return fmt.Errorf("failed to seal license key: %w", err)
	}
	state.License = sealed
	state.UpdatedAt = time.Now()
	return c.store.PutCluster(state)
}

// License returns the license key assigned to a cluster, or "" when none is
func (c *Cluster) License(ctx context.Context, clusterName string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, err := c.store.GetCluster(clusterName)
	if err != nil {
		return "", err
	}
	if len(state.License) == 0 {
		return "", nil
	}
	key, err := c.sealer.Open(state.License)
	if err != nil {
		return "", fmt.Errorf("failed to open license of cluster %s: %w", clusterName, err)
	}
	return string(key), nil
}

// submit records a queued task and runs apply on its own goroutine
func (c *Cluster) submit(op types.TaskOperation, target string, apply func() error) (types.DeploymentTask, error) {
	task := types.DeploymentTask{
		ID:        uuid.New().String(),
		Operation: op,
		Target:    target,
	}
	record := &types.TaskRecord{
		Task:      task,
		State:     types.TaskStateQueued,
		CreatedAt: time.Now(),
	}

	c.mu.Lock()
	err := c.store.PutTask(record)
	if err == nil {
		c.active[task.ID] = struct{}{}
	}
	c.mu.Unlock()
	if err != nil {
		return types.DeploymentTask{}, fmt.Errorf("failed to store task: %w", err)
	}

	c.wg.Add(1)
	go c.execute(record, apply)
	return task, nil
}

func (c *Cluster) execute(record *types.TaskRecord, apply func() error) {
	defer c.wg.Done()

	logger := c.logger.With().
		Str("task_id", record.Task.ID).
		Str("operation", string(record.Task.Operation)).
		Str("target", record.Task.Target).
		Logger()

	c.mu.Lock()
	record.State = types.TaskStateRunning
	if err := c.store.PutTask(record); err != nil {
		logger.Error().Err(err).Msg("Failed to store task state")
	}
	c.mu.Unlock()

	if c.latency > 0 {
		time.Sleep(c.latency)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := apply(); err != nil {
		record.State = types.TaskStateError
		record.Error = err.Error()
		logger.Warn().Err(err).Msg("Task failed")
	} else {
		record.State = types.TaskStateSuccess
		logger.Debug().Msg("Task succeeded")
	}
	record.CompletedAt = time.Now()
	delete(c.active, record.Task.ID)

	if err := c.store.PutTask(record); err != nil {
		logger.Error().Err(err).Msg("Failed to store task state")
	}
	metrics.LabTasksCompleted.WithLabelValues(string(record.Task.Operation), string(record.State)).Inc()
}

// Reconcile repairs state left inconsistent by an endpoint restart. Tasks
// stored as queued or running without a live goroutine are failed, and
// cluster membership entries naming deleted hosts are dropped. It returns
// the number of records repaired.
func (c *Cluster) Reconcile(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	repaired := 0

	tasks, err := c.store.ListTasks()
	if err != nil {
		return 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	for _, record := range tasks {
		if record.State.Terminal() {
			continue
		}
		if _, ok := c.active[record.Task.ID]; ok {
			continue
		}
		record.State = types.TaskStateError
		record.Error = "task interrupted: endpoint restarted"
		record.CompletedAt = time.Now()
		if err := c.store.PutTask(record); err != nil {
			return repaired, fmt.Errorf("failed to store task %s: %w", record.Task.ID, err)
		}
		c.logger.Warn().
			Str("task_id", record.Task.ID).
			Str("operation", string(record.Task.Operation)).
			Msg("Failed orphaned task")
		repaired++
	}

	clusters, err := c.store.ListClusters()
	if err != nil {
		return repaired, fmt.Errorf("failed to list clusters: %w", err)
	}
	for _, state := range clusters {
		ids := make([]string, 0, len(state.HostIDs))
		for _, id := range state.HostIDs {
			if _, err := c.store.GetHost(id); err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					continue
				}
				return repaired, err
			}
			ids = append(ids, id)
		}
		if len(ids) == len(state.HostIDs) {
			continue
		}
		clusterLogger := log.WithCluster(state.Name)
		clusterLogger.Warn().
			Str("component", "lab").
			Int("dropped", len(state.HostIDs)-len(ids)).
			Msg("Dropped missing hosts from cluster")
		repaired += len(state.HostIDs) - len(ids)
		state.HostIDs = ids
		state.UpdatedAt = time.Now()
		if err := c.store.PutCluster(state); err != nil {
			return repaired, err
		}
	}

	return repaired, nil
}

// host loads a host, translating a missing record to ObjectNotFound.
// Callers hold c.mu.
func (c *Cluster) host(id string) (*types.HostState, error) {
	host, err := c.store.GetHost(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, cluster.NewObjectNotFound(id)
		}
		return nil, err
	}
	return host, nil
}

func (c *Cluster) requireHost(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.host(id)
	return err
}

// removeHost deletes a host and drops it from its cluster
func (c *Cluster) removeHost(host *types.HostState) error {
	if err := c.store.DeleteHost(host.ID); err != nil {
		return err
	}
	state, err := c.store.GetCluster(host.Cluster)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	ids := state.HostIDs[:0]
	for _, id := range state.HostIDs {
		if id != host.ID {
			ids = append(ids, id)
		}
	}
	state.HostIDs = ids
	return c.store.PutCluster(state)
}

func (c *Cluster) hasRotationalCapacity(hostIDs []string) (bool, error) {
	for _, id := range hostIDs {
		host, err := c.store.GetHost(id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return false, err
		}
		for _, g := range host.DiskGroups {
			for _, d := range g.Capacity {
				if !d.SSD {
					return true, nil
				}
			}
		}
	}
	return false, nil
}

// buildDiskGroups validates a spec against the host's disks and lays out
// one group per cache disk, spreading capacity disks round-robin. Every
// group gets at least one capacity disk.
func buildDiskGroups(host *types.HostState, spec types.DiskGroupSpec) ([]types.DiskGroupMapping, error) {
	if len(spec.Cache) == 0 || len(spec.Capacity) == 0 {
		return nil, errors.New("a disk group needs at least one cache and one capacity disk")
	}
	if len(spec.Capacity) < len(spec.Cache) {
		return nil, fmt.Errorf("%d cache disks need at least %d capacity disks, got %d", len(spec.Cache), len(spec.Cache), len(spec.Capacity))
	}

	seen := make(map[string]bool, len(spec.Cache)+len(spec.Capacity))
	resolve := func(d types.Disk) (types.Disk, error) {
		if seen[d.ID] {
			return types.Disk{}, fmt.Errorf("disk %s is listed more than once", d.ID)
		}
		seen[d.ID] = true
		i := diskIndex(host.Disks, d.ID)
		if i < 0 {
			return types.Disk{}, fmt.Errorf("disk %s does not belong to host %s", d.ID, host.Name)
		}
		disk := host.Disks[i]
		if disk.State != types.DiskEligible {
			return types.Disk{}, fmt.Errorf("disk %s on host %s is %s", d.ID, host.Name, disk.State)
		}
		return disk, nil
	}

	groups := make([]types.DiskGroupMapping, 0, len(spec.Cache))
	for _, d := range spec.Cache {
		disk, err := resolve(d)
		if err != nil {
			return nil, err
		}
		if !disk.SSD {
			return nil, fmt.Errorf("cache disk %s on host %s is not flash", d.ID, host.Name)
		}
		groups = append(groups, types.DiskGroupMapping{Cache: disk})
	}

	for i, d := range spec.Capacity {
		disk, err := resolve(d)
		if err != nil {
			return nil, err
		}
		switch spec.Mode {
		case types.ModeAllFlash:
			if !disk.SSD {
				return nil, fmt.Errorf("capacity disk %s on host %s is not flash in an all-flash disk group", d.ID, host.Name)
			}
		case types.ModeHybrid:
			if disk.SSD {
				return nil, fmt.Errorf("capacity disk %s on host %s is flash in a hybrid disk group", d.ID, host.Name)
			}
		default:
			return nil, fmt.Errorf("unknown disk group mode %q", spec.Mode)
		}
		g := &groups[i%len(groups)]
		g.Capacity = append(g.Capacity, disk)
	}

	return groups, nil
}

func diskIndex(disks []types.Disk, id string) int {
	for i, d := range disks {
		if d.ID == id {
			return i
		}
	}
	return -1
}
