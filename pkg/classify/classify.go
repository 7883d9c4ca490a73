package classify

import (
	"github.com/cuemby/burrow/pkg/types"
)

// Partition is the role assignment of one host's disks
type Partition struct {
	Cache    []types.Disk
	Capacity []types.Disk
}

// Complete reports whether both roles have at least one disk
func (p Partition) Complete() bool {
	return len(p.Cache) > 0 && len(p.Capacity) > 0
}

// Role returns the role assigned to a disk, if any
func (p Partition) Role(diskID string) (types.DiskRole, bool) {
	for _, d := range p.Cache {
		if d.ID == diskID {
			return types.DiskRoleCache, true
		}
	}
	for _, d := range p.Capacity {
		if d.ID == diskID {
			return types.DiskRoleCapacity, true
		}
	}
	return "", false
}

// Classify partitions the eligible disks of a host into cache and capacity
// roles. Non-eligible disks are never assigned. Output order follows input
// order.
func Classify(disks []types.Disk, mode types.DeploymentMode) Partition {
	eligible := filterEligible(disks)

	if mode == types.ModeAllFlash {
		return classifyAllFlash(eligible)
	}
	return classifyHybrid(eligible)
}

// classifyAllFlash assigns every flash disk of the smallest size to cache
// and every larger flash disk to capacity. Rotational disks are ignored.
func classifyAllFlash(disks []types.Disk) Partition {
	var p Partition

	var ssds []types.Disk
	for _, d := range disks {
		if d.SSD {
			ssds = append(ssds, d)
		}
	}
	if len(ssds) == 0 {
		return p
	}

	smallest := ssds[0].SizeBytes()
	for _, d := range ssds[1:] {
		if size := d.SizeBytes(); size < smallest {
			smallest = size
		}
	}

	// Ties at the minimum all become cache disks
	for _, d := range ssds {
		if d.SizeBytes() == smallest {
			p.Cache = append(p.Cache, d)
		} else {
			p.Capacity = append(p.Capacity, d)
		}
	}
	return p
}

func classifyHybrid(disks []types.Disk) Partition {
	var p Partition
	for _, d := range disks {
		if d.SSD {
			p.Cache = append(p.Cache, d)
		} else {
			p.Capacity = append(p.Capacity, d)
		}
	}
	return p
}

func filterEligible(disks []types.Disk) []types.Disk {
	var out []types.Disk
	for _, d := range disks {
		if d.State == types.DiskEligible {
			out = append(out, d)
		}
	}
	return out
}
