package classify

import (
	"testing"

	"github.com/cuemby/burrow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gib = 1024 * 1024 * 1024

func disk(id string, sizeGiB int64, ssd bool, state types.EligibilityState) types.Disk {
	return types.Disk{
		ID:             id,
		DisplayName:    "Local disk (" + id + ")",
		CapacityBlocks: sizeGiB * gib / 512,
		BlockSize:      512,
		SSD:            ssd,
		State:          state,
	}
}

func ids(disks []types.Disk) []string {
	out := make([]string, 0, len(disks))
	for _, d := range disks {
		out = append(out, d.ID)
	}
	return out
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name         string
		mode         types.DeploymentMode
		disks        []types.Disk
		wantCache    []string
		wantCapacity []string
	}{
		{
			name: "all-flash ties at minimum are all cache",
			mode: types.ModeAllFlash,
			disks: []types.Disk{
				disk("a", 100, true, types.DiskEligible),
				disk("b", 100, true, types.DiskEligible),
				disk("c", 200, true, types.DiskEligible),
			},
			wantCache:    []string{"a", "b"},
			wantCapacity: []string{"c"},
		},
		{
			name: "all-flash ignores rotational disks",
			mode: types.ModeAllFlash,
			disks: []types.Disk{
				disk("hdd", 50, false, types.DiskEligible),
				disk("small", 400, true, types.DiskEligible),
				disk("large", 800, true, types.DiskEligible),
			},
			wantCache:    []string{"small"},
			wantCapacity: []string{"large"},
		},
		{
			name: "all-flash single size yields cache only",
			mode: types.ModeAllFlash,
			disks: []types.Disk{
				disk("a", 100, true, types.DiskEligible),
				disk("b", 100, true, types.DiskEligible),
			},
			wantCache: []string{"a", "b"},
		},
		{
			name: "all-flash without flash disks is empty",
			mode: types.ModeAllFlash,
			disks: []types.Disk{
				disk("hdd", 1000, false, types.DiskEligible),
			},
		},
		{
			name: "all-flash minimum ignores ineligible disks",
			mode: types.ModeAllFlash,
			disks: []types.Disk{
				disk("tiny", 10, true, types.DiskIneligible),
				disk("used", 20, true, types.DiskInUse),
				disk("a", 100, true, types.DiskEligible),
				disk("b", 200, true, types.DiskEligible),
			},
			wantCache:    []string{"a"},
			wantCapacity: []string{"b"},
		},
		{
			name: "hybrid splits by media type",
			mode: types.ModeHybrid,
			disks: []types.Disk{
				disk("hdd1", 2000, false, types.DiskEligible),
				disk("ssd1", 400, true, types.DiskEligible),
				disk("hdd2", 1000, false, types.DiskEligible),
				disk("ssd2", 800, true, types.DiskEligible),
			},
			wantCache:    []string{"ssd1", "ssd2"},
			wantCapacity: []string{"hdd1", "hdd2"},
		},
		{
			name: "hybrid skips ineligible disks",
			mode: types.ModeHybrid,
			disks: []types.Disk{
				disk("ssd", 400, true, types.DiskIneligible),
				disk("hdd", 1000, false, types.DiskEligible),
			},
			wantCapacity: []string{"hdd"},
		},
		{
			name: "no disks",
			mode: types.ModeHybrid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Classify(tt.disks, tt.mode)

			assert.Equal(t, tt.wantCache, nilIfEmpty(ids(p.Cache)))
			assert.Equal(t, tt.wantCapacity, nilIfEmpty(ids(p.Capacity)))
			assert.Equal(t, len(tt.wantCache) > 0 && len(tt.wantCapacity) > 0, p.Complete())
		})
	}
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

func TestClassify_Deterministic(t *testing.T) {
	disks := []types.Disk{
		disk("a", 300, true, types.DiskEligible),
		disk("b", 100, true, types.DiskEligible),
		disk("c", 100, true, types.DiskEligible),
		disk("d", 900, false, types.DiskEligible),
	}

	for _, mode := range []types.DeploymentMode{types.ModeAllFlash, types.ModeHybrid} {
		first := Classify(disks, mode)
		second := Classify(disks, mode)
		assert.Equal(t, first, second, "mode %s", mode)
	}
}

func TestClassify_HybridAssignsEveryEligibleDisk(t *testing.T) {
	disks := []types.Disk{
		disk("s1", 100, true, types.DiskEligible),
		disk("h1", 100, false, types.DiskEligible),
		disk("s2", 250, true, types.DiskEligible),
		disk("h2", 4000, false, types.DiskEligible),
		disk("h3", 4000, false, types.DiskEligible),
	}

	p := Classify(disks, types.ModeHybrid)
	require.True(t, p.Complete())

	for _, d := range p.Cache {
		assert.True(t, d.SSD)
	}
	for _, d := range p.Capacity {
		assert.False(t, d.SSD)
	}
	assert.Equal(t, len(disks), len(p.Cache)+len(p.Capacity))
}

func TestPartition_Role(t *testing.T) {
	p := Classify([]types.Disk{
		disk("a", 100, true, types.DiskEligible),
		disk("b", 200, true, types.DiskEligible),
	}, types.ModeAllFlash)

	role, ok := p.Role("a")
	assert.True(t, ok)
	assert.Equal(t, types.DiskRoleCache, role)

	role, ok = p.Role("b")
	assert.True(t, ok)
	assert.Equal(t, types.DiskRoleCapacity, role)

	_, ok = p.Role("missing")
	assert.False(t, ok)
}
