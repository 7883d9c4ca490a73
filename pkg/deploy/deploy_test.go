package deploy

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cuemby/burrow/pkg/cluster/clustertest"
	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/faultdomain"
	"github.com/cuemby/burrow/pkg/prompt"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gib = 1024 * 1024 * 1024

func disk(id string, sizeGiB int64, ssd bool, state types.EligibilityState) types.Disk {
	return types.Disk{
		ID:             id,
		DisplayName:    "Local " + id,
		DevicePath:     "/vmfs/devices/disks/" + id,
		CapacityBlocks: sizeGiB * gib / 512,
		BlockSize:      512,
		SSD:            ssd,
		State:          state,
	}
}

func newFake() *clustertest.Fake {
	hosts := []types.Host{
		{ID: "host-1", Name: "esx-a"},
		{ID: "host-2", Name: "esx-b"},
	}
	disks := map[string][]types.Disk{
		"host-1": {
			disk("a1", 100, true, types.DiskEligible),
			disk("a2", 400, true, types.DiskEligible),
			disk("a3", 200, true, types.DiskIneligible),
		},
		"host-2": {
			disk("b1", 100, true, types.DiskEligible),
			disk("b2", 200, true, types.DiskEligible),
			disk("b3", 800, false, types.DiskEligible),
		},
	}
	return clustertest.NewFake("lab", hosts, disks)
}

func testConfig(mode types.DeploymentMode) Config {
	return Config{
		ClusterName: "lab",
		Mode:        mode,
		Network: types.NetworkConfig{
			Device:              "vmk1",
			UpstreamIPAddress:   types.DefaultUpstreamIPAddress,
			DownstreamIPAddress: types.DefaultDownstreamIPAddress,
		},
	}
}

func TestRun_AllFlash(t *testing.T) {
	fake := newFake()
	var out bytes.Buffer
	d := NewDeployer(fake, prompt.NewScripted(true), WithOutput(&out))

	report, err := d.Run(context.Background(), testConfig(types.ModeAllFlash))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"list-hosts",
		"host-properties:2",
		"query-disks:host-1",
		"query-disks:host-2",
		"wipe:host-1/a3",
		"enable-network:host-1",
		"enable-network:host-2",
		"wait:2",
		"reconfigure-cluster:lab",
		"wait:1",
		"query-disks:host-1",
		"query-disks:host-2",
		"create-disk-group:host-1",
		"create-disk-group:host-2",
		"wait:2",
		"query-disk-groups:host-1",
		"query-disk-groups:host-2",
		"enable-performance:lab",
		"wait:1",
	}, fake.Calls)

	assert.Equal(t, []Stage{
		StagePrepare, StageNetwork, StageReconfigure, StageDiskGroups, StageQuery, StagePerformance,
	}, report.Completed)
	assert.Equal(t, []DiskRef{{Host: "esx-a", Disk: "Local a3"}}, report.Wiped)
	assert.NotEmpty(t, report.RunID)

	require.NotNil(t, fake.Reconfig)
	assert.True(t, fake.Reconfig.Enabled)
	assert.False(t, fake.Reconfig.AutoClaimStorage)
	require.NotNil(t, fake.Reconfig.DataEfficiency)
	assert.True(t, fake.Reconfig.DataEfficiency.DedupEnabled)
	assert.True(t, fake.Reconfig.DataEfficiency.CompressionEnabled)
	assert.Nil(t, fake.Reconfig.FaultDomains)

	// The wiped disk is re-queried as eligible and claimed for capacity
	require.Len(t, fake.Specs, 2)
	assert.Equal(t, "host-1", fake.Specs[0].HostID)
	assert.Equal(t, []string{"a1"}, diskIDs(fake.Specs[0].Cache))
	assert.Equal(t, []string{"a2", "a3"}, diskIDs(fake.Specs[0].Capacity))
	assert.Equal(t, []string{"b1"}, diskIDs(fake.Specs[1].Cache))
	assert.Equal(t, []string{"b2"}, diskIDs(fake.Specs[1].Capacity))
	assert.Equal(t, types.ModeAllFlash, fake.Specs[1].Mode)

	output := out.String()
	assert.Contains(t, output, "Claim these disks to cache disks\nName:Local a1, Size:100GiB, Host:esx-a\n")
	assert.Contains(t, output, "Name:Local a3, Size:200GiB, Host:esx-a")
	assert.Contains(t, output, "Host:esx-b, DiskGroup:1, Cache Disk:Local b1, Capacity Disks:[Local b2]")
	assert.NotContains(t, output, "Local b3")
}

func TestRun_Hybrid(t *testing.T) {
	fake := newFake()
	d := NewDeployer(fake, prompt.NewScripted(true), WithOutput(&bytes.Buffer{}))

	_, err := d.Run(context.Background(), testConfig(types.ModeHybrid))
	require.NoError(t, err)

	require.NotNil(t, fake.Reconfig)
	assert.Nil(t, fake.Reconfig.DataEfficiency)

	// host-1 has no rotational disk and is skipped
	require.Len(t, fake.Specs, 1)
	spec := fake.Specs[0]
	assert.Equal(t, "host-2", spec.HostID)
	assert.Equal(t, types.ModeHybrid, spec.Mode)
	assert.Equal(t, []string{"b1", "b2"}, diskIDs(spec.Cache))
	assert.Equal(t, []string{"b3"}, diskIDs(spec.Capacity))
}

func TestRun_RefusedWipe(t *testing.T) {
	fake := newFake()
	confirmer := prompt.NewScripted(false)
	d := NewDeployer(fake, confirmer, WithOutput(&bytes.Buffer{}))

	report, err := d.Run(context.Background(), testConfig(types.ModeAllFlash))
	require.NoError(t, err)

	require.Len(t, confirmer.Questions, 1)
	assert.Contains(t, confirmer.Questions[0], "Local a3")
	assert.Contains(t, confirmer.Questions[0], "esx-a")

	assert.Empty(t, fake.Wiped)
	assert.Empty(t, report.Wiped)
	assert.Equal(t, []DiskRef{{Host: "esx-a", Disk: "Local a3"}}, report.Refused)
	assert.True(t, report.Inventory.Excluded("host-1", "a3"))

	for _, c := range append(report.Plan.CacheClaims, report.Plan.CapacityClaims...) {
		assert.NotEqual(t, "Local a3", c.Disk)
	}
	for _, spec := range fake.Specs {
		assert.NotContains(t, diskIDs(spec.Cache), "a3")
		assert.NotContains(t, diskIDs(spec.Capacity), "a3")
	}
}

func TestRun_StageFailureHalts(t *testing.T) {
	tests := []struct {
		name          string
		op            types.TaskOperation
		target        string
		wantStage     Stage
		wantCompleted []Stage
		notIssued     types.TaskOperation
	}{
		{
			name:          "network",
			op:            types.OperationEnableNetwork,
			target:        "host-2",
			wantStage:     StageNetwork,
			wantCompleted: []Stage{StagePrepare},
			notIssued:     types.OperationReconfigure,
		},
		{
			name:          "reconfigure",
			op:            types.OperationReconfigure,
			target:        "lab",
			wantStage:     StageReconfigure,
			wantCompleted: []Stage{StagePrepare, StageNetwork},
			notIssued:     types.OperationCreateDiskGroup,
		},
		{
			name:          "disk group",
			op:            types.OperationCreateDiskGroup,
			target:        "host-1",
			wantStage:     StageDiskGroups,
			wantCompleted: []Stage{StagePrepare, StageNetwork, StageReconfigure},
			notIssued:     types.OperationEnablePerformance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFake()
			fake.FailTask(tt.op, tt.target)
			d := NewDeployer(fake, prompt.NewScripted(true), WithOutput(&bytes.Buffer{}))

			report, err := d.Run(context.Background(), testConfig(types.ModeAllFlash))
			require.Error(t, err)

			var stageErr *StageError
			require.True(t, errors.As(err, &stageErr))
			assert.Equal(t, tt.wantStage, stageErr.Stage)
			require.Len(t, stageErr.Failed, 1)
			assert.Equal(t, tt.target, stageErr.Failed[0].Task.Target)
			assert.Equal(t, types.TaskStateError, stageErr.Failed[0].State)

			assert.Equal(t, tt.wantCompleted, report.Completed)
			assert.Empty(t, fake.IssuedFor(tt.notIssued))
		})
	}
}

func TestRun_DiskGroupFailureSkipsQuery(t *testing.T) {
	fake := newFake()
	fake.FailTask(types.OperationCreateDiskGroup, "host-2")
	d := NewDeployer(fake, prompt.NewScripted(true), WithOutput(&bytes.Buffer{}))

	_, err := d.Run(context.Background(), testConfig(types.ModeAllFlash))
	require.Error(t, err)

	// All tasks of the stage were issued before the barrier
	assert.Len(t, fake.IssuedFor(types.OperationCreateDiskGroup), 2)
	for _, call := range fake.Calls {
		assert.NotContains(t, call, "query-disk-groups")
	}
}

func TestRun_FaultDomains(t *testing.T) {
	fake := newFake()
	d := NewDeployer(fake, prompt.NewScripted(true), WithOutput(&bytes.Buffer{}))

	cfg := testConfig(types.ModeAllFlash)
	var err error
	cfg.FaultDomains, err = faultdomain.Parse("fd1:esx-a,ghost fd2:esx-b fd3:nobody")
	require.NoError(t, err)

	_, err = d.Run(context.Background(), cfg)
	require.NoError(t, err)

	require.NotNil(t, fake.Reconfig)
	domains := fake.Reconfig.FaultDomains
	require.Len(t, domains, 3)
	assert.Equal(t, []types.Host{{ID: "host-1", Name: "esx-a"}}, domains[0].Hosts)
	assert.Equal(t, []types.Host{{ID: "host-2", Name: "esx-b"}}, domains[1].Hosts)
	assert.Equal(t, "fd3", domains[2].Name)
	assert.Empty(t, domains[2].Hosts)
}

func TestRun_License(t *testing.T) {
	fake := newFake()
	d := NewDeployer(fake, prompt.NewScripted(true), WithOutput(&bytes.Buffer{}))

	cfg := testConfig(types.ModeAllFlash)
	cfg.LicenseKey = "AAAAA-BBBBB"

	report, err := d.Run(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, "license", fake.Calls[0])
	assert.Equal(t, "AAAAA-BBBBB", fake.License)
	assert.Equal(t, StageLicense, report.Completed[0])
}

func TestRun_VanishedHost(t *testing.T) {
	fake := newFake()
	fake.VanishOnProperties["host-1"] = true
	d := NewDeployer(fake, prompt.NewScripted(), WithOutput(&bytes.Buffer{}))

	report, err := d.Run(context.Background(), testConfig(types.ModeAllFlash))
	require.NoError(t, err)

	require.Len(t, report.Inventory.Hosts, 1)
	network := fake.IssuedFor(types.OperationEnableNetwork)
	require.Len(t, network, 1)
	assert.Equal(t, "host-2", network[0].Target)
}

func TestRun_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "no cluster", cfg: Config{Mode: types.ModeHybrid, Network: types.NetworkConfig{Device: "vmk1"}}},
		{name: "bad mode", cfg: Config{ClusterName: "lab", Mode: "raid", Network: types.NetworkConfig{Device: "vmk1"}}},
		{name: "no device", cfg: Config{ClusterName: "lab", Mode: types.ModeHybrid}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFake()
			_, err := NewDeployer(fake, prompt.NewScripted()).Run(context.Background(), tt.cfg)
			require.Error(t, err)
			assert.Empty(t, fake.Calls)
		})
	}
}

func TestRun_PublishesEvents(t *testing.T) {
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	sub := broker.Subscribe()

	fake := newFake()
	fake.VanishOnDiskQuery["host-2"] = true
	d := NewDeployer(fake, prompt.NewScripted(true), WithOutput(&bytes.Buffer{}), WithBroker(broker))

	report, err := d.Run(context.Background(), testConfig(types.ModeAllFlash))
	require.NoError(t, err)

	var got []*events.Event
	timeout := time.After(2 * time.Second)
	for done := false; !done; {
		select {
		case ev := <-sub:
			got = append(got, ev)
			done = ev.Type == events.EventStageCompleted && ev.Stage == string(StagePerformance)
		case <-timeout:
			t.Fatal("timed out waiting for events")
		}
	}

	require.NotEmpty(t, got)
	assert.Equal(t, events.EventStageStarted, got[0].Type)
	assert.Equal(t, string(StagePrepare), got[0].Stage)

	var wiped bool
	var vanished, issued, claimed []string
	for _, ev := range got {
		switch ev.Type {
		case events.EventDiskWiped:
			wiped = true
			assert.Equal(t, "Local a3", ev.Metadata["disk"])
		case events.EventHostVanished:
			vanished = append(vanished, ev.Metadata["host_id"])
		case events.EventTaskIssued:
			issued = append(issued, ev.Metadata["task_id"])
		case events.EventDiskClaimed:
			assert.Equal(t, "esx-a", ev.Metadata["host"])
			claimed = append(claimed, ev.Metadata["role"]+":"+ev.Metadata["disk"])
		}
	}
	assert.True(t, wiped)
	assert.Equal(t, []string{"host-2"}, vanished)
	assert.Len(t, issued, len(fake.Issued))

	require.Len(t, report.Plan.Specs, 1)
	spec := report.Plan.Specs[0]
	assert.Len(t, claimed, len(spec.Cache)+len(spec.Capacity))
	assert.Contains(t, claimed, "cache:Local a1")
}

func TestPlan_ReadOnly(t *testing.T) {
	fake := newFake()
	d := NewDeployer(fake, prompt.NewScripted())

	inv, plan, err := d.Plan(context.Background(), "lab", types.ModeAllFlash)
	require.NoError(t, err)

	assert.Len(t, inv.Hosts, 2)
	assert.Len(t, plan.Specs, 2)
	assert.Empty(t, fake.Issued)
	assert.Empty(t, fake.Wiped)
}

func TestReconfigRequest(t *testing.T) {
	hosts := []types.Host{{ID: "host-1", Name: "esx-a"}}

	req := ReconfigRequest(testConfig(types.ModeHybrid), hosts)
	assert.True(t, req.Enabled)
	assert.False(t, req.AutoClaimStorage)
	assert.Nil(t, req.DataEfficiency)
	assert.Nil(t, req.FaultDomains)

	cfg := testConfig(types.ModeAllFlash)
	cfg.FaultDomains = []faultdomain.Spec{}
	req = ReconfigRequest(cfg, hosts)
	assert.NotNil(t, req.DataEfficiency)
	assert.NotNil(t, req.FaultDomains)
	assert.Empty(t, req.FaultDomains)
}

func TestStageError_Message(t *testing.T) {
	err := &StageError{
		Stage: StageNetwork,
		Failed: []types.TaskResult{
			{Task: types.DeploymentTask{Operation: types.OperationEnableNetwork, Target: "host-2"}, State: types.TaskStateError, Error: "vmk1 missing"},
		},
	}
	assert.Equal(t, "stage enable-network failed: 1 task(s) failed: enable-network on host-2: vmk1 missing", err.Error())
}

func diskIDs(disks []types.Disk) []string {
	ids := make([]string, 0, len(disks))
	for _, d := range disks {
		ids = append(ids, d.ID)
	}
	return ids
}
