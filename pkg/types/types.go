package types

import (
	"time"
)

// Host is a cluster member as reported by the management endpoint
type Host struct {
	ID   string // Opaque managed object reference
	Name string // Display name (usually the host FQDN)
}

// Disk represents a local block device on a host
type Disk struct {
	ID             string // Canonical name (e.g. naa.5000c500a1b2c3d4)
	DisplayName    string
	DevicePath     string
	CapacityBlocks int64
	BlockSize      int64
	SSD            bool
	State          EligibilityState
	Reason         string // Why the disk is ineligible, if reported
}

// SizeBytes returns the disk capacity in bytes
func (d Disk) SizeBytes() int64 {
	return d.CapacityBlocks * d.BlockSize
}

// EligibilityState is the storage eligibility reported for a disk
type EligibilityState string

const (
	DiskEligible   EligibilityState = "eligible"
	DiskIneligible EligibilityState = "ineligible"
	DiskInUse      EligibilityState = "inUse"
)

// DiskRole is the tier a disk is claimed into
type DiskRole string

const (
	DiskRoleCache    DiskRole = "cache"
	DiskRoleCapacity DiskRole = "capacity"
)

// DeploymentMode selects the classification policy and disk group type
type DeploymentMode string

const (
	ModeAllFlash DeploymentMode = "allFlash"
	ModeHybrid   DeploymentMode = "hybrid"
)

// DiskGroupSpec is the disk group creation request for one host
type DiskGroupSpec struct {
	HostID   string
	Cache    []Disk
	Capacity []Disk
	Mode     DeploymentMode
}

// DiskGroupMapping is a disk group as read back from a host
type DiskGroupMapping struct {
	Cache    Disk
	Capacity []Disk
}

// FaultDomain groups hosts sharing a failure boundary
type FaultDomain struct {
	Name  string
	Hosts []Host
}

// NetworkConfig describes the storage interface enabled on each host
type NetworkConfig struct {
	Device              string // VMkernel interface (e.g. "vmk0")
	UpstreamIPAddress   string // Multicast group for agent traffic
	DownstreamIPAddress string // Multicast group for master traffic
}

const (
	DefaultUpstreamIPAddress   = "224.1.2.3"
	DefaultDownstreamIPAddress = "224.2.3.4"
)

// DataEfficiencyConfig toggles deduplication and compression
type DataEfficiencyConfig struct {
	DedupEnabled       bool
	CompressionEnabled bool
}

// ClusterReconfigRequest is sent once per run to the cluster object
type ClusterReconfigRequest struct {
	Enabled          bool
	AutoClaimStorage bool
	DataEfficiency   *DataEfficiencyConfig // Only legal in all-flash mode
	FaultDomains     []FaultDomain         // nil leaves existing domains untouched
}

// HostProperties holds the requested property values of one host
type HostProperties map[string]string

// Host property names
const (
	PropertyName            = "name"
	PropertyConnectionState = "connectionState"
)

// TaskOperation names the remote operation a task performs
type TaskOperation string

const (
	OperationEnableNetwork     TaskOperation = "enable-network"
	OperationReconfigure       TaskOperation = "reconfigure-cluster"
	OperationCreateDiskGroup   TaskOperation = "create-disk-group"
	OperationEnablePerformance TaskOperation = "enable-performance"
)

// DeploymentTask is a handle to an in-flight remote operation
type DeploymentTask struct {
	ID        string
	Operation TaskOperation
	Target    string // Host or cluster the task acts on
}

// TaskState represents the state of a remote task
type TaskState string

const (
	TaskStateQueued  TaskState = "queued"
	TaskStateRunning TaskState = "running"
	TaskStateSuccess TaskState = "success"
	TaskStateError   TaskState = "error"
)

// Terminal reports whether the state is final
func (s TaskState) Terminal() bool {
	return s == TaskStateSuccess || s == TaskStateError
}

// TaskResult is the observed terminal state of a task
type TaskResult struct {
	Task  DeploymentTask
	State TaskState
	Error string
}

// ClusterState is the durable configuration of a lab cluster
type ClusterState struct {
	Name               string
	HostIDs            []string // Host order as enumerated by the endpoint
	Enabled            bool
	AutoClaimStorage   bool
	DataEfficiency     *DataEfficiencyConfig
	FaultDomains       []FaultDomain
	PerformanceEnabled bool
	License            []byte // Sealed license key
	UpdatedAt          time.Time
}

// HostFaults injects failures into a lab host
type HostFaults struct {
	FailNetwork   bool
	FailDiskGroup bool
	Vanish        bool // Host disappears on the first property fetch
}

// HostState is the durable state of a lab host
type HostState struct {
	Host
	Cluster    string
	Disks      []Disk
	Network    *NetworkConfig
	DiskGroups []DiskGroupMapping
	Faults     HostFaults
}

// TaskRecord is the durable state of a lab task
type TaskRecord struct {
	Task        DeploymentTask
	State       TaskState
	Error       string
	CreatedAt   time.Time
	CompletedAt time.Time
}
