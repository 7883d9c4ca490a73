// Package clustertest provides an in-memory cluster.Client for tests.
package clustertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/cuemby/burrow/pkg/cluster"
	"github.com/cuemby/burrow/pkg/types"
)

// Fake is a scriptable cluster.Client. Tasks complete instantly; a task
// fails when its operation and target are listed in FailTasks.
type Fake struct {
	mu sync.Mutex

	ClusterName string
	Hosts       []types.Host
	Disks       map[string][]types.Disk

	// Hosts that disappear on their first property fetch or disk query
	VanishOnProperties map[string]bool
	VanishOnDiskQuery  map[string]bool

	FailTasks map[types.TaskOperation]map[string]bool

	// Recorded interactions
	Calls      []string
	Issued     []types.DeploymentTask
	Waits      [][]types.DeploymentTask
	Wiped      []string
	Reconfig   *types.ClusterReconfigRequest
	Specs      []types.DiskGroupSpec
	DiskGroups map[string][]types.DiskGroupMapping
	License    string

	nextID int
}

var _ cluster.Client = (*Fake)(nil)

// NewFake creates a fake cluster with the given hosts and disks
func NewFake(clusterName string, hosts []types.Host, disks map[string][]types.Disk) *Fake {
	if disks == nil {
		disks = make(map[string][]types.Disk)
	}
	return &Fake{
		ClusterName:        clusterName,
		Hosts:              hosts,
		Disks:              disks,
		VanishOnProperties: make(map[string]bool),
		VanishOnDiskQuery:  make(map[string]bool),
		FailTasks:          make(map[types.TaskOperation]map[string]bool),
		DiskGroups:         make(map[string][]types.DiskGroupMapping),
	}
}

// FailTask marks an operation against a target as failing
func (f *Fake) FailTask(op types.TaskOperation, target string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailTasks[op] == nil {
		f.FailTasks[op] = make(map[string]bool)
	}
	f.FailTasks[op][target] = true
}

// IssuedFor returns the tasks issued for one operation
func (f *Fake) IssuedFor(op types.TaskOperation) []types.DeploymentTask {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.DeploymentTask
	for _, t := range f.Issued {
		if t.Operation == op {
			out = append(out, t)
		}
	}
	return out
}

func (f *Fake) ListHosts(ctx context.Context, clusterName string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "list-hosts")
	if clusterName != f.ClusterName {
		return nil, fmt.Errorf("cluster %q not found", clusterName)
	}
	ids := make([]string, 0, len(f.Hosts))
	for _, h := range f.Hosts {
		ids = append(ids, h.ID)
	}
	return ids, nil
}

func (f *Fake) GetHostProperties(ctx context.Context, hostIDs []string, fields []string) (map[string]types.HostProperties, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, fmt.Sprintf("host-properties:%d", len(hostIDs)))

	for _, id := range hostIDs {
		if f.VanishOnProperties[id] {
			delete(f.VanishOnProperties, id)
			f.removeHost(id)
			return nil, cluster.NewObjectNotFound(id)
		}
	}

	out := make(map[string]types.HostProperties, len(hostIDs))
	for _, id := range hostIDs {
		host, ok := f.host(id)
		if !ok {
			return nil, cluster.NewObjectNotFound(id)
		}
		props := types.HostProperties{}
		for _, field := range fields {
			switch field {
			case types.PropertyName:
				props[field] = host.Name
			case types.PropertyConnectionState:
				props[field] = "connected"
			}
		}
		out[id] = props
	}
	return out, nil
}

func (f *Fake) QueryDisks(ctx context.Context, hostID string) ([]types.Disk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "query-disks:"+hostID)
	if f.VanishOnDiskQuery[hostID] {
		delete(f.VanishOnDiskQuery, hostID)
		f.removeHost(hostID)
		return nil, cluster.NewObjectNotFound(hostID)
	}
	if _, ok := f.host(hostID); !ok {
		return nil, cluster.NewObjectNotFound(hostID)
	}
	disks := make([]types.Disk, len(f.Disks[hostID]))
	copy(disks, f.Disks[hostID])
	return disks, nil
}

func (f *Fake) WipeDiskPartitions(ctx context.Context, hostID, diskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "wipe:"+hostID+"/"+diskID)
	for i, d := range f.Disks[hostID] {
		if d.ID == diskID {
			f.Disks[hostID][i].State = types.DiskEligible
			f.Disks[hostID][i].Reason = ""
			f.Wiped = append(f.Wiped, hostID+"/"+diskID)
			return nil
		}
	}
	return fmt.Errorf("disk %s not found on host %s", diskID, hostID)
}

func (f *Fake) EnableStorageNetwork(ctx context.Context, hostID string, cfg types.NetworkConfig) (types.DeploymentTask, error) {
	return f.issue(types.OperationEnableNetwork, hostID), nil
}

func (f *Fake) ReconfigureCluster(ctx context.Context, clusterName string, req types.ClusterReconfigRequest) (types.DeploymentTask, error) {
	f.mu.Lock()
	f.Reconfig = &req
	f.mu.Unlock()
	return f.issue(types.OperationReconfigure, clusterName), nil
}

func (f *Fake) CreateDiskGroup(ctx context.Context, spec types.DiskGroupSpec) (types.DeploymentTask, error) {
	f.mu.Lock()
	f.Specs = append(f.Specs, spec)
	if !f.FailTasks[types.OperationCreateDiskGroup][spec.HostID] {
		for _, c := range spec.Cache {
			f.DiskGroups[spec.HostID] = append(f.DiskGroups[spec.HostID], types.DiskGroupMapping{Cache: c})
		}
		if groups := f.DiskGroups[spec.HostID]; len(groups) > 0 {
			groups[0].Capacity = append(groups[0].Capacity, spec.Capacity...)
		}
	}
	f.mu.Unlock()
	return f.issue(types.OperationCreateDiskGroup, spec.HostID), nil
}

func (f *Fake) QueryDiskGroups(ctx context.Context, hostID string) ([]types.DiskGroupMapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "query-disk-groups:"+hostID)
	return f.DiskGroups[hostID], nil
}

func (f *Fake) EnablePerformanceService(ctx context.Context, clusterName string) (types.DeploymentTask, error) {
	return f.issue(types.OperationEnablePerformance, clusterName), nil
}

func (f *Fake) WaitForTasks(ctx context.Context, tasks []types.DeploymentTask) ([]types.TaskResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, fmt.Sprintf("wait:%d", len(tasks)))
	f.Waits = append(f.Waits, tasks)

	results := make([]types.TaskResult, 0, len(tasks))
	for _, t := range tasks {
		r := types.TaskResult{Task: t, State: types.TaskStateSuccess}
		if f.FailTasks[t.Operation][t.Target] {
			r.State = types.TaskStateError
			r.Error = fmt.Sprintf("%s failed on %s", t.Operation, t.Target)
		}
		results = append(results, r)
	}
	return results, nil
}

func (f *Fake) AssignLicense(ctx context.Context, clusterName, licenseKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, "license")
	f.License = licenseKey
	return nil
}

func (f *Fake) issue(op types.TaskOperation, target string) types.DeploymentTask {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	t := types.DeploymentTask{
		ID:        fmt.Sprintf("task-%d", f.nextID),
		Operation: op,
		Target:    target,
	}
	f.Issued = append(f.Issued, t)
	f.Calls = append(f.Calls, string(op)+":"+target)
	return t
}

func (f *Fake) host(id string) (types.Host, bool) {
	for _, h := range f.Hosts {
		if h.ID == id {
			return h, true
		}
	}
	return types.Host{}, false
}

func (f *Fake) removeHost(id string) {
	for i, h := range f.Hosts {
		if h.ID == id {
			f.Hosts = append(f.Hosts[:i], f.Hosts[i+1:]...)
			return
		}
	}
}
