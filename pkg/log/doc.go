/*
Package log provides structured logging for Burrow using zerolog.

A single package-level zerolog.Logger is configured once by Init and shared
by every package. Child loggers attach the identifiers that matter when
reading a deployment log back: the component, the cluster, the host and
the task.

# Configuration

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: false,
	})

Console output is the default for interactive runs. JSON output suits log
shippers and is enabled with --log-json. Logs always go to stderr unless
Config.Output says otherwise, so the claim audit and disk group listing
printed on stdout can be piped or diffed on their own.

# Context Loggers

	logger := log.WithComponent("deploy")
	logger.Info().Str("stage", "enable-network").Msg("Stage started")

	taskLogger := log.WithTaskID(task.ID)
	taskLogger.Error().Str("error", result.Error).Msg("Task failed")

The With* helpers return values, so assign the child logger before calling
level methods on it.

# Levels

  - debug: wire requests, task polling, per-disk classification
  - info: stage transitions, wipes, claims
  - warn: hosts skipped from the topology, vanished hosts
  - error: failed tasks and stages
*/
package log
