package cluster

import (
	"context"
	"errors"
	"fmt"

	"github.com/cuemby/burrow/pkg/types"
)

// Client is the set of management operations burrow needs from a cluster
// management endpoint. Task-issuing methods return immediately with a
// handle; WaitForTasks is the only call that blocks on remote progress.
type Client interface {
	// ListHosts returns host IDs in the order the endpoint enumerates them
	ListHosts(ctx context.Context, clusterName string) ([]string, error)

	// GetHostProperties fetches the named properties of every host in one
	// batch. If an object disappeared, it returns an ObjectNotFound error
	// naming it and no results.
	GetHostProperties(ctx context.Context, hostIDs []string, fields []string) (map[string]types.HostProperties, error)

	// QueryDisks returns the local disks of a host with their eligibility
	QueryDisks(ctx context.Context, hostID string) ([]types.Disk, error)

	// WipeDiskPartitions clears the partition table of a disk
	WipeDiskPartitions(ctx context.Context, hostID, diskID string) error

	EnableStorageNetwork(ctx context.Context, hostID string, cfg types.NetworkConfig) (types.DeploymentTask, error)
	ReconfigureCluster(ctx context.Context, clusterName string, req types.ClusterReconfigRequest) (types.DeploymentTask, error)
	CreateDiskGroup(ctx context.Context, spec types.DiskGroupSpec) (types.DeploymentTask, error)
	QueryDiskGroups(ctx context.Context, hostID string) ([]types.DiskGroupMapping, error)
	EnablePerformanceService(ctx context.Context, clusterName string) (types.DeploymentTask, error)

	// WaitForTasks blocks until every task is terminal and returns one
	// result per task in input order
	WaitForTasks(ctx context.Context, tasks []types.DeploymentTask) ([]types.TaskResult, error)

	// AssignLicense attaches a license key to the cluster
	AssignLicense(ctx context.Context, clusterName, licenseKey string) error
}

// ErrRejected is returned when the endpoint refuses a request as invalid
// for the current cluster state
var ErrRejected = errors.New("request rejected")

// NewObjectNotFound creates an error reporting that a managed object
// enumerated earlier no longer exists.
func NewObjectNotFound(objectID string) error {
	return objectNotFound{id: objectID}
}

type objectNotFound struct {
	id string
}

func (e objectNotFound) Error() string {
	return fmt.Sprintf("managed object not found: %s", e.id)
}

// ObjectNotFoundID returns the vanished object's ID if err is (or wraps)
// an object-not-found error.
func ObjectNotFoundID(err error) (string, bool) {
	var e objectNotFound
	if errors.As(err, &e) {
		return e.id, true
	}
	return "", false
}

// IsObjectNotFound reports whether err is an object-not-found error
func IsObjectNotFound(err error) bool {
	_, ok := ObjectNotFoundID(err)
	return ok
}
