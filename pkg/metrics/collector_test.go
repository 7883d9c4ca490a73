package metrics

import (
	"testing"

	"github.com/cuemby/burrow/pkg/storage"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Collect(t *testing.T) {
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.PutHost(&types.HostState{
		Host: types.Host{ID: "host-1", Name: "esx-a"},
		Disks: []types.Disk{
			{ID: "d1", State: types.DiskEligible},
			{ID: "d2", State: types.DiskInUse},
			{ID: "d3", State: types.DiskInUse},
		},
		DiskGroups: []types.DiskGroupMapping{
			{Cache: types.Disk{ID: "d2"}, Capacity: []types.Disk{{ID: "d3"}}},
		},
	}))
	require.NoError(t, store.PutHost(&types.HostState{
		Host:  types.Host{ID: "host-2", Name: "esx-b"},
		Disks: []types.Disk{{ID: "d4", State: types.DiskIneligible}},
	}))
	require.NoError(t, store.PutTask(&types.TaskRecord{
		Task:  types.DeploymentTask{ID: "t1", Operation: types.OperationEnableNetwork, Target: "host-1"},
		State: types.TaskStateRunning,
	}))
	require.NoError(t, store.PutTask(&types.TaskRecord{
		Task:  types.DeploymentTask{ID: "t2", Operation: types.OperationEnableNetwork, Target: "host-2"},
		State: types.TaskStateSuccess,
	}))

	collector := NewCollector(store, 0)
	collector.health = NewHealth()
	collector.Collect()

	assert.Equal(t, 2.0, testutil.ToFloat64(LabHostsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(LabDisksTotal.WithLabelValues("eligible")))
	assert.Equal(t, 2.0, testutil.ToFloat64(LabDisksTotal.WithLabelValues("inUse")))
	assert.Equal(t, 1.0, testutil.ToFloat64(LabDisksTotal.WithLabelValues("ineligible")))
	assert.Equal(t, 1.0, testutil.ToFloat64(LabDiskGroupsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(LabTasksPending))

	report := collector.health.Report()
	assert.Equal(t, StatusOK, report.Status)
	assert.True(t, report.Components[ComponentStore].Healthy)
	require.NotNil(t, report.Fleet)
	assert.Equal(t, 2, report.Fleet.Hosts)
	assert.Equal(t, 1, report.Fleet.EligibleDisks)
	assert.Equal(t, 1, report.Fleet.DiskGroups)
	assert.Equal(t, 1, report.Fleet.PendingTasks)
}

func TestCollector_StoreFailure(t *testing.T) {
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	collector := NewCollector(store, 0)
	collector.health = NewHealth()
	collector.Collect()

	report := collector.health.Report()
	assert.Equal(t, StatusUnavailable, report.Status)
	assert.False(t, report.Components[ComponentStore].Healthy)
	assert.Nil(t, report.Fleet)
}
