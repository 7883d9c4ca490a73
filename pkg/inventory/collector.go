package inventory

import (
	"context"
	"fmt"

	"github.com/cuemby/burrow/pkg/cluster"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/rs/zerolog"
)

// Inventory is the host and disk snapshot a deployment run works from.
// Hosts keeps the enumeration order, which fixes task issue order.
type Inventory struct {
	Cluster  string
	Hosts    []types.Host
	Vanished []string // Host ids dropped while collecting
	disks    map[string][]types.Disk
	exclude  map[string]map[string]bool
}

// New creates an inventory from already collected data
func New(clusterName string, hosts []types.Host, disks map[string][]types.Disk) *Inventory {
	if disks == nil {
		disks = make(map[string][]types.Disk)
	}
	return &Inventory{
		Cluster: clusterName,
		Hosts:   hosts,
		disks:   disks,
		exclude: make(map[string]map[string]bool),
	}
}

// Disks returns every disk reported for a host
func (inv *Inventory) Disks(hostID string) []types.Disk {
	return inv.disks[hostID]
}

// Exclude removes a disk from all later classification in this run
func (inv *Inventory) Exclude(hostID, diskID string) {
	if inv.exclude[hostID] == nil {
		inv.exclude[hostID] = make(map[string]bool)
	}
	inv.exclude[hostID][diskID] = true
}

// Excluded reports whether a disk was excluded
func (inv *Inventory) Excluded(hostID, diskID string) bool {
	return inv.exclude[hostID][diskID]
}

// Candidates returns the disks of a host that classification may consider
func (inv *Inventory) Candidates(hostID string) []types.Disk {
	var out []types.Disk
	for _, d := range inv.disks[hostID] {
		if inv.Excluded(hostID, d.ID) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Ineligible returns the disks of a host reported as ineligible
func (inv *Inventory) Ineligible(hostID string) []types.Disk {
	var out []types.Disk
	for _, d := range inv.disks[hostID] {
		if d.State == types.DiskIneligible {
			out = append(out, d)
		}
	}
	return out
}

// HostByName looks up a host by display name
func (inv *Inventory) HostByName(name string) (types.Host, bool) {
	for _, h := range inv.Hosts {
		if h.Name == name {
			return h, true
		}
	}
	return types.Host{}, false
}

// HostName returns the display name of a host ID, or the ID itself
func (inv *Inventory) HostName(hostID string) string {
	for _, h := range inv.Hosts {
		if h.ID == hostID {
			return h.Name
		}
	}
	return hostID
}

// Collector reads host and disk inventories from the management endpoint
type Collector struct {
	client cluster.Client
	logger zerolog.Logger
}

// NewCollector creates a new collector
func NewCollector(client cluster.Client) *Collector {
	return &Collector{
		client: client,
		logger: log.WithComponent("inventory"),
	}
}

// Collect enumerates the hosts of a cluster with their names and disks.
// Hosts that disappear while being queried are dropped from the result.
func (c *Collector) Collect(ctx context.Context, clusterName string) (*Inventory, error) {
	ids, err := c.client.ListHosts(ctx, clusterName)
	if err != nil {
		return nil, fmt.Errorf("failed to list hosts of cluster %s: %w", clusterName, err)
	}

	props, remaining, err := c.collectProperties(ctx, ids, []string{types.PropertyName})
	if err != nil {
		return nil, err
	}

	inv := New(clusterName, nil, nil)
	inv.Vanished = dropped(ids, remaining)
	for _, id := range remaining {
		disks, err := c.client.QueryDisks(ctx, id)
		if err != nil {
			if vanished, ok := cluster.ObjectNotFoundID(err); ok && vanished == id {
				hostLogger := log.WithHostID(id)
				hostLogger.Warn().Msg("Host disappeared during disk query, dropping it")
				inv.Vanished = append(inv.Vanished, id)
				continue
			}
			return nil, fmt.Errorf("failed to query disks of host %s: %w", id, err)
		}

		name := props[id][types.PropertyName]
		if name == "" {
			name = id
		}
		inv.Hosts = append(inv.Hosts, types.Host{ID: id, Name: name})
		inv.disks[id] = disks
	}

	c.logger.Info().
		Str("cluster", clusterName).
		Int("hosts", len(inv.Hosts)).
		Msg("Collected inventory")

	return inv, nil
}

// Refresh re-queries the disks of every host in the inventory. Exclusions
// survive the refresh.
func (c *Collector) Refresh(ctx context.Context, inv *Inventory) error {
	for _, h := range inv.Hosts {
		disks, err := c.client.QueryDisks(ctx, h.ID)
		if err != nil {
			return fmt.Errorf("failed to query disks of host %s: %w", h.Name, err)
		}
		inv.disks[h.ID] = disks
	}
	return nil
}

// collectProperties fetches properties for ids in one batch, removing
// vanished objects and retrying until the batch succeeds or the set is
// empty. It returns the surviving ids in their original order.
func (c *Collector) collectProperties(ctx context.Context, ids []string, fields []string) (map[string]types.HostProperties, []string, error) {
	remaining := append([]string(nil), ids...)

	for len(remaining) > 0 {
		props, err := c.client.GetHostProperties(ctx, remaining, fields)
		if err == nil {
			return props, remaining, nil
		}

		vanished, ok := cluster.ObjectNotFoundID(err)
		if !ok {
			return nil, nil, fmt.Errorf("failed to collect host properties: %w", err)
		}
		next, removed := without(remaining, vanished)
		if !removed {
			return nil, nil, fmt.Errorf("failed to collect host properties: unknown object vanished: %w", err)
		}

		c.logger.Warn().
			Str("host_id", vanished).
			Int("remaining", len(next)).
			Msg("Host disappeared during property collection, retrying")
		remaining = next
	}

	return map[string]types.HostProperties{}, nil, nil
}

// dropped returns the ids of all that are missing from kept, in order
func dropped(all, kept []string) []string {
	keep := make(map[string]bool, len(kept))
	for _, id := range kept {
		keep[id] = true
	}
	var out []string
	for _, id := range all {
		if !keep[id] {
			out = append(out, id)
		}
	}
	return out
}

func without(ids []string, id string) ([]string, bool) {
	out := make([]string, 0, len(ids))
	removed := false
	for _, v := range ids {
		if v == id {
			removed = true
			continue
		}
		out = append(out, v)
	}
	return out, removed
}
