package metrics

import (
	"time"

	"github.com/cuemby/burrow/pkg/storage"
	"github.com/cuemby/burrow/pkg/types"
)

// Collector refreshes lab gauges from the lab store
type Collector struct {
	store    storage.Store
	health   *Health
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(store storage.Store, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		store:    store,
		health:   DefaultHealth,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		// Collect immediately on start
		c.Collect()

		for {
			select {
			case <-ticker.C:
				c.Collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

// Collect performs a single collection pass and records the fleet
// summary on the health report
func (c *Collector) Collect() {
	summary := FleetSummary{CollectedAt: time.Now()}
	if err := c.collectHostMetrics(&summary); err != nil {
		c.health.Set(ComponentStore, false, err.Error())
		return
	}
	c.health.Set(ComponentStore, true, "")
	c.collectTaskMetrics(&summary)
	c.health.RecordFleet(summary)
}

func (c *Collector) collectHostMetrics(summary *FleetSummary) error {
	hosts, err := c.store.ListHosts()
	if err != nil {
		return err
	}

	LabHostsTotal.Set(float64(len(hosts)))

	diskCounts := map[types.EligibilityState]int{
		types.DiskEligible:   0,
		types.DiskIneligible: 0,
		types.DiskInUse:      0,
	}
	groups := 0
	for _, host := range hosts {
		for _, disk := range host.Disks {
			diskCounts[disk.State]++
		}
		groups += len(host.DiskGroups)
	}

	for state, count := range diskCounts {
		LabDisksTotal.WithLabelValues(string(state)).Set(float64(count))
	}
	LabDiskGroupsTotal.Set(float64(groups))

	summary.Hosts = len(hosts)
	summary.EligibleDisks = diskCounts[types.DiskEligible]
	summary.DiskGroups = groups
	return nil
}

func (c *Collector) collectTaskMetrics(summary *FleetSummary) {
	tasks, err := c.store.ListTasks()
	if err != nil {
		return
	}

	pending := 0
	for _, task := range tasks {
		if !task.State.Terminal() {
			pending++
		}
	}
	LabTasksPending.Set(float64(pending))
	summary.PendingTasks = pending
}
