package deploy

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cuemby/burrow/pkg/inventory"
	"github.com/cuemby/burrow/pkg/topology"
	"github.com/cuemby/burrow/pkg/types"
)

// DiskRef identifies a disk on a host for reporting
type DiskRef struct {
	Host string // Host display name
	Disk string // Disk display name
}

// Report summarizes a deployment run. It is returned even when the run
// fails, populated up to the failing stage.
type Report struct {
	RunID      string
	Cluster    string
	Mode       types.DeploymentMode
	Inventory  *inventory.Inventory
	Plan       *topology.Plan
	Wiped      []DiskRef
	Refused    []DiskRef
	Completed  []Stage
	DiskGroups map[string][]types.DiskGroupMapping
	Duration   time.Duration
}

// WriteClaims prints the cache and capacity claim lists of a plan
func WriteClaims(w io.Writer, plan *topology.Plan) {
	fmt.Fprintln(w, "Claim these disks to cache disks")
	for _, c := range plan.CacheClaims {
		fmt.Fprintf(w, "Name:%s, Size:%s, Host:%s\n", c.Disk, c.Size, c.Host)
	}

	fmt.Fprintln(w, "Claim these disks to capacity disks")
	for _, c := range plan.CapacityClaims {
		fmt.Fprintf(w, "Name:%s, Size:%s, Host:%s\n", c.Disk, c.Size, c.Host)
	}
}

// WriteDiskGroups prints the disk groups of every host in inventory order
func WriteDiskGroups(w io.Writer, hosts []types.Host, groups map[string][]types.DiskGroupMapping) {
	for _, h := range hosts {
		for i, g := range groups[h.ID] {
			names := make([]string, 0, len(g.Capacity))
			for _, d := range g.Capacity {
				names = append(names, d.DisplayName)
			}
			fmt.Fprintf(w, "Host:%s, DiskGroup:%d, Cache Disk:%s, Capacity Disks:[%s]\n",
				h.Name, i+1, g.Cache.DisplayName, strings.Join(names, ", "))
		}
	}
}
