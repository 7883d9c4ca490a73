package topology

import (
	"github.com/cuemby/burrow/pkg/classify"
	"github.com/cuemby/burrow/pkg/inventory"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/types"
	units "github.com/docker/go-units"
	"github.com/rs/zerolog"
)

// Claim is one line of the audit trail shown before disks are claimed
type Claim struct {
	Disk string // Disk display name
	Size string // Human-readable capacity
	Host string // Host display name
}

// Plan is the disk group topology for a cluster
type Plan struct {
	Mode           types.DeploymentMode
	Specs          []types.DiskGroupSpec // In inventory host order
	CacheClaims    []Claim
	CapacityClaims []Claim
	Skipped        []types.Host // Hosts lacking a cache or capacity disk
	Partitions     map[string]classify.Partition
}

// Spec returns the disk group spec of a host, if one was built
func (p *Plan) Spec(hostID string) (types.DiskGroupSpec, bool) {
	for _, s := range p.Specs {
		if s.HostID == hostID {
			return s, true
		}
	}
	return types.DiskGroupSpec{}, false
}

// Builder turns an inventory into a disk group plan
type Builder struct {
	logger zerolog.Logger
}

// NewBuilder creates a new topology builder
func NewBuilder() *Builder {
	return &Builder{
		logger: log.WithComponent("topology"),
	}
}

// Build classifies every host's candidate disks and emits a disk group
// spec for each host that has both cache and capacity disks.
func (b *Builder) Build(inv *inventory.Inventory, mode types.DeploymentMode) *Plan {
	plan := &Plan{
		Mode:       mode,
		Partitions: make(map[string]classify.Partition, len(inv.Hosts)),
	}

	for _, host := range inv.Hosts {
		p := classify.Classify(inv.Candidates(host.ID), mode)
		plan.Partitions[host.ID] = p

		for _, d := range p.Cache {
			plan.CacheClaims = append(plan.CacheClaims, claimFor(d, host))
		}
		for _, d := range p.Capacity {
			plan.CapacityClaims = append(plan.CapacityClaims, claimFor(d, host))
		}
		metrics.DisksClassified.WithLabelValues(string(types.DiskRoleCache)).Add(float64(len(p.Cache)))
		metrics.DisksClassified.WithLabelValues(string(types.DiskRoleCapacity)).Add(float64(len(p.Capacity)))

		if !p.Complete() {
			b.logger.Info().
				Str("host", host.Name).
				Int("cache", len(p.Cache)).
				Int("capacity", len(p.Capacity)).
				Msg("Host lacks a cache or capacity disk, skipping disk group creation")
			plan.Skipped = append(plan.Skipped, host)
			metrics.HostsSkipped.Inc()
			continue
		}

		plan.Specs = append(plan.Specs, types.DiskGroupSpec{
			HostID:   host.ID,
			Cache:    p.Cache,
			Capacity: p.Capacity,
			Mode:     mode,
		})
	}

	return plan
}

func claimFor(d types.Disk, host types.Host) Claim {
	return Claim{
		Disk: d.DisplayName,
		Size: FormatSize(d.SizeBytes()),
		Host: host.Name,
	}
}

// FormatSize renders a byte count with binary units (e.g. "100GiB")
func FormatSize(bytes int64) string {
	return units.BytesSize(float64(bytes))
}
