package main

import (
	"fmt"
	"os"

	"github.com/cuemby/burrow/pkg/config"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "burrow",
	Short: "Burrow - storage fabric bring-up for compute clusters",
	Long: `Burrow turns the local disks of every host in a compute cluster into a
distributed storage fabric: it discovers disks, classifies them into cache
and capacity tiers, enables the storage network, and claims disk groups.

Ships with a lab endpoint that simulates a fleet for dry runs.`,
	Version:           Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initLogging,
}

var (
	logLevel string
	logJSON  bool
)

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Burrow version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Write logs as JSON")

	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(diskGroupsCmd)
	rootCmd.AddCommand(labCmd)
}

func initLogging(cmd *cobra.Command, args []string) error {
	level := logLevel
	if level == "" {
		level = os.Getenv(config.EnvLogLevel)
	}
	switch log.Level(level) {
	case "":
		level = string(log.InfoLevel)
	case log.DebugLevel, log.InfoLevel, log.WarnLevel, log.ErrorLevel:
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", level)
	}

	log.Init(log.Config{
		Level:      log.Level(level),
		JSONOutput: logJSON,
	})
	return nil
}
