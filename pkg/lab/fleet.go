package lab

import (
	"fmt"
	"os"

	"github.com/cuemby/burrow/pkg/storage"
	"github.com/cuemby/burrow/pkg/types"
	units "github.com/docker/go-units"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	FleetAPIVersion  = "burrow/v1"
	FleetKind        = "Fleet"
	defaultBlockSize = 512
)

var validate = validator.New()

// Fleet describes the clusters, hosts and disks a lab endpoint serves
type Fleet struct {
	APIVersion string         `yaml:"apiVersion" validate:"omitempty,eq=burrow/v1"`
	Kind       string         `yaml:"kind" validate:"omitempty,eq=Fleet"`
	Clusters   []FleetCluster `yaml:"clusters" validate:"required,min=1,dive"`
}

type FleetCluster struct {
	Name  string      `yaml:"name" validate:"required"`
	Hosts []FleetHost `yaml:"hosts" validate:"dive"`
}

type FleetHost struct {
	ID     string      `yaml:"id,omitempty"`
	Name   string      `yaml:"name" validate:"required"`
	Disks  []FleetDisk `yaml:"disks" validate:"dive"`
	Faults FleetFaults `yaml:"faults,omitempty"`
}

type FleetDisk struct {
	ID          string `yaml:"id" validate:"required"`
	DisplayName string `yaml:"displayName,omitempty"`
	DevicePath  string `yaml:"devicePath,omitempty"`
	Size        string `yaml:"size" validate:"required"`
	BlockSize   int64  `yaml:"blockSize,omitempty" validate:"omitempty,gt=0"`
	SSD         bool   `yaml:"ssd"`
	State       string `yaml:"state,omitempty" validate:"omitempty,oneof=eligible ineligible inUse"`
	Reason      string `yaml:"reason,omitempty"`
}

type FleetFaults struct {
	FailNetwork   bool `yaml:"failNetwork,omitempty"`
	FailDiskGroup bool `yaml:"failDiskGroup,omitempty"`
	Vanish        bool `yaml:"vanish,omitempty"`
}

// LoadFleet reads and validates a fleet file
func LoadFleet(path string) (*Fleet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fleet file: %w", err)
	}
	return ParseFleet(data)
}

// ParseFleet decodes and validates a YAML fleet definition
func ParseFleet(data []byte) (*Fleet, error) {
	var fleet Fleet
	if err := yaml.Unmarshal(data, &fleet); err != nil {
		return nil, fmt.Errorf("failed to parse fleet YAML: %w", err)
	}
	if err := validate.Struct(&fleet); err != nil {
		return nil, fmt.Errorf("invalid fleet: %w", err)
	}
	return &fleet, nil
}

// Build converts the fleet into lab records. Hosts without an ID are
// numbered in file order.
func (f *Fleet) Build() ([]*types.ClusterState, []*types.HostState, error) {
	var (
		clusters []*types.ClusterState
		hosts    []*types.HostState
	)
	clusterNames := make(map[string]bool)
	hostIDs := make(map[string]bool)
	next := 0

	for _, fc := range f.Clusters {
		if clusterNames[fc.Name] {
			return nil, nil, fmt.Errorf("duplicate cluster %q", fc.Name)
		}
		clusterNames[fc.Name] = true

		state := &types.ClusterState{Name: fc.Name, HostIDs: []string{}}
		for _, fh := range fc.Hosts {
			next++
			id := fh.ID
			if id == "" {
				id = fmt.Sprintf("host-%d", next)
			}
			if hostIDs[id] {
				return nil, nil, fmt.Errorf("duplicate host id %q", id)
			}
			hostIDs[id] = true

			host, err := fh.build(id, fc.Name)
			if err != nil {
				return nil, nil, err
			}
			state.HostIDs = append(state.HostIDs, id)
			hosts = append(hosts, host)
		}
		clusters = append(clusters, state)
	}

	return clusters, hosts, nil
}

func (fh FleetHost) build(id, clusterName string) (*types.HostState, error) {
	host := &types.HostState{
		Host:    types.Host{ID: id, Name: fh.Name},
		Cluster: clusterName,
		Disks:   make([]types.Disk, 0, len(fh.Disks)),
		Faults: types.HostFaults{
			FailNetwork:   fh.Faults.FailNetwork,
			FailDiskGroup: fh.Faults.FailDiskGroup,
			Vanish:        fh.Faults.Vanish,
		},
	}

	seen := make(map[string]bool, len(fh.Disks))
	for _, fd := range fh.Disks {
		if seen[fd.ID] {
			return nil, fmt.Errorf("host %s: duplicate disk %q", fh.Name, fd.ID)
		}
		seen[fd.ID] = true

		disk, err := fd.build()
		if err != nil {
			return nil, fmt.Errorf("host %s: %w", fh.Name, err)
		}
		host.Disks = append(host.Disks, disk)
	}
	return host, nil
}

func (fd FleetDisk) build() (types.Disk, error) {
	size, err := units.RAMInBytes(fd.Size)
	if err != nil {
		return types.Disk{}, fmt.Errorf("disk %s: invalid size %q: %w", fd.ID, fd.Size, err)
	}

	blockSize := fd.BlockSize
	if blockSize == 0 {
		blockSize = defaultBlockSize
	}
	if size <= 0 || size%blockSize != 0 {
		return types.Disk{}, fmt.Errorf("disk %s: size %s is not a positive multiple of the %d byte block size", fd.ID, fd.Size, blockSize)
	}

	disk := types.Disk{
		ID:             fd.ID,
		DisplayName:    fd.DisplayName,
		DevicePath:     fd.DevicePath,
		CapacityBlocks: size / blockSize,
		BlockSize:      blockSize,
		SSD:            fd.SSD,
		State:          types.EligibilityState(fd.State),
		Reason:         fd.Reason,
	}
	if disk.DisplayName == "" {
		disk.DisplayName = fmt.Sprintf("Local disk (%s)", fd.ID)
	}
	if disk.DevicePath == "" {
		disk.DevicePath = "/vmfs/devices/disks/" + fd.ID
	}
	if disk.State == "" {
		disk.State = types.DiskEligible
	}
	return disk, nil
}

// Seed writes the fleet into a store, replacing records with the same keys
func Seed(store storage.Store, fleet *Fleet) error {
	clusters, hosts, err := fleet.Build()
	if err != nil {
		return err
	}

	for _, host := range hosts {
		if err := store.PutHost(host); err != nil {
			return fmt.Errorf("failed to store host %s: %w", host.Name, err)
		}
	}
	for _, state := range clusters {
		if err := store.PutCluster(state); err != nil {
			return fmt.Errorf("failed to store cluster %s: %w", state.Name, err)
		}
	}
	return nil
}
