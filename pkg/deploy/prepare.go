package deploy

import (
	"context"
	"fmt"

	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/inventory"
	"github.com/cuemby/burrow/pkg/metrics"
)

const wipeQuestion = "Do you want to wipe disk %s on host %s?\n" +
	"Always check the partition table and the data stored on the disk before wiping it!"

// prepareDisks asks about every ineligible disk, host by host. Confirmed
// disks are wiped one at a time; the rest are excluded from the run.
func (d *Deployer) prepareDisks(ctx context.Context, inv *inventory.Inventory, report *Report) error {
	for _, h := range inv.Hosts {
		ineligible := inv.Ineligible(h.ID)
		if len(ineligible) == 0 {
			continue
		}

		names := make([]string, 0, len(ineligible))
		for _, disk := range ineligible {
			names = append(names, disk.DisplayName)
		}
		d.logger.Info().
			Str("host", h.Name).
			Strs("disks", names).
			Msg("Found ineligible disks")

		for _, disk := range ineligible {
			ref := DiskRef{Host: h.Name, Disk: disk.DisplayName}
			meta := map[string]string{"host": h.Name, "disk": disk.DisplayName}

			ok, err := d.confirmer.Confirm(ctx, fmt.Sprintf(wipeQuestion, disk.DisplayName, h.Name))
			if err != nil {
				return fmt.Errorf("failed to confirm wipe of disk %s on host %s: %w", disk.DisplayName, h.Name, err)
			}

			if !ok {
				inv.Exclude(h.ID, disk.ID)
				report.Refused = append(report.Refused, ref)
				metrics.DisksRefused.Inc()
				d.logger.Info().
					Str("host", h.Name).
					Str("disk", disk.DisplayName).
					Msg("Wipe declined, excluding disk")
				d.publish(events.EventDiskRefused, StagePrepare, "wipe declined", meta)
				continue
			}

			if err := d.client.WipeDiskPartitions(ctx, h.ID, disk.ID); err != nil {
				return fmt.Errorf("failed to wipe disk %s on host %s: %w", disk.DisplayName, h.Name, err)
			}
			report.Wiped = append(report.Wiped, ref)
			metrics.DisksWiped.Inc()
			d.logger.Info().
				Str("host", h.Name).
				Str("disk", disk.DisplayName).
				Str("device", disk.DevicePath).
				Msg("Wiped disk partitions")
			d.publish(events.EventDiskWiped, StagePrepare, "", meta)
		}
	}
	return nil
}
