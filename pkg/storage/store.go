package storage

import (
	"errors"

	"github.com/cuemby/burrow/pkg/types"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("not found")

// Store defines the interface for lab cluster state storage
type Store interface {
	// Clusters
	PutCluster(cluster *types.ClusterState) error
	GetCluster(name string) (*types.ClusterState, error)
	ListClusters() ([]*types.ClusterState, error)

	// Hosts
	PutHost(host *types.HostState) error
	GetHost(id string) (*types.HostState, error)
	ListHosts() ([]*types.HostState, error)
	DeleteHost(id string) error

	// Tasks
	PutTask(task *types.TaskRecord) error
	GetTask(id string) (*types.TaskRecord, error)
	ListTasks() ([]*types.TaskRecord, error)

	// Utility
	Close() error
}
