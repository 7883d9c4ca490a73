/*
Package deploy orchestrates bring-up of a hyper-converged storage fabric.

A run takes a cluster from "hosts with raw disks" to "storage enabled with
disk groups claimed" in a fixed sequence of stages. Each stage that issues
asynchronous work ends with a barrier: every task it issued must reach a
terminal state, and any task in error fails the run before the next stage
starts.

# Architecture

	┌──────────────────── DEPLOYMENT RUN ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │  assign-license        (only with a key)    │          │
	│  └──────────────────┬─────────────────────────┘          │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │  prepare-disks                              │          │
	│  │  - Collect hosts and disks (inventory)      │          │
	│  │  - Confirm each ineligible disk wipe        │          │
	│  │  - Refused disks are excluded               │          │
	│  └──────────────────┬─────────────────────────┘          │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │  enable-network        one task per host    │ barrier  │
	│  └──────────────────┬─────────────────────────┘          │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │  reconfigure-cluster   enable, fault        │ barrier  │
	│  │                        domains, dedup       │          │
	│  └──────────────────┬─────────────────────────┘          │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │  create-disk-groups                         │ barrier  │
	│  │  - Refresh disks, classify, build topology  │          │
	│  │  - Print cache and capacity claims          │          │
	│  │  - One task per complete host               │          │
	│  └──────────────────┬─────────────────────────┘          │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │  query-disk-groups     print the result     │          │
	│  └──────────────────┬─────────────────────────┘          │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │  enable-performance    one cluster task     │ barrier  │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Usage

	d := deploy.NewDeployer(client, prompt.NewConsole(),
		deploy.WithOutput(os.Stdout),
		deploy.WithBroker(broker),
	)

	report, err := d.Run(ctx, deploy.Config{
		ClusterName: "prod",
		Mode:        types.ModeAllFlash,
		Network:     types.NetworkConfig{Device: "vmk1"},
	})

Run always returns a Report, populated up to the stage that failed. A
failed barrier is reported as a *StageError listing every task that ended
in error:

	var stageErr *deploy.StageError
	if errors.As(err, &stageErr) {
		for _, r := range stageErr.Failed {
			fmt.Println(r.Task.Operation, r.Task.Target, r.Error)
		}
	}

# Wipe Confirmation

Wiping partitions destroys data, so every ineligible disk is confirmed
individually through a prompt.Confirmer. A refusal is not an error: the
disk is left untouched and excluded from classification for the rest of
the run, and the report lists it under Refused.

# Read-only Planning

Plan and Inventory run discovery and classification without issuing a
single write, which backs the plan command and dry runs against
production endpoints.

# Failure Semantics

  - A task that fails to be issued stops the run immediately; tasks
    issued earlier in the same stage are not waited for.
  - A stage that issues no tasks completes without waiting.
  - A host that disappears between enumeration and property fetch is
    dropped from the inventory and the fetch is retried without it.
  - Hosts without both a cache and a capacity disk are skipped from disk
    group creation and logged, not failed.
*/
package deploy
