package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/burrow/pkg/client"
	"github.com/cuemby/burrow/pkg/config"
	"github.com/cuemby/burrow/pkg/deploy"
	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/health"
	"github.com/cuemby/burrow/pkg/log"
	"github.com/cuemby/burrow/pkg/prompt"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var (
	opts          = config.NewOptions()
	skipPreflight bool
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Bring up the storage fabric on a cluster",
	Long: `Bring up the storage fabric on every host of a cluster.

Ineligible disks are wiped only after you confirm each one. Refused disks
are left untouched and excluded from the disk groups.

Examples:
  # All-flash cluster with two fault domains
  burrow deploy --endpoint https://mgmt.example.com --user admin \
    --cluster prod --allflash --vmknic vmk1 \
    --faultdomains "rack1:esx-a,esx-b rack2:esx-c,esx-d"

  # Hybrid cluster against the local lab endpoint
  burrow deploy --endpoint http://127.0.0.1:8080 --user admin \
    --password secret --cluster lab --vmknic vmk1`,
	RunE: runDeploy,
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the disk groups a deployment would create",
	Long: `Collect the inventory and build the disk group topology without changing
anything on the cluster.`,
	RunE: runPlan,
}

var diskGroupsCmd = &cobra.Command{
	Use:   "diskgroups",
	Short: "List the disk groups of every host in a cluster",
	RunE:  runDiskGroups,
}

func init() {
	for _, cmd := range []*cobra.Command{deployCmd, planCmd, diskGroupsCmd} {
		bindConnectionFlags(cmd)
	}

	planCmd.Flags().BoolVar(&opts.AllFlash, "allflash", false, "Plan an all-flash deployment")

	deployCmd.Flags().BoolVar(&opts.AllFlash, "allflash", false, "Deploy in all-flash mode (default hybrid)")
	deployCmd.Flags().StringVar(&opts.VMKNic, "vmknic", "", "Network interface for storage traffic (required)")
	deployCmd.Flags().StringVar(&opts.FaultDomains, "faultdomains", "", `Fault domains as "name:host[,host...] ..."`)
	deployCmd.Flags().StringVar(&opts.LicenseKey, "license", "", "License key to assign before deployment")
	deployCmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Do not check endpoint reachability before deploying")
}

func bindConnectionFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&opts.Endpoint, "endpoint", "", "Management endpoint URL (env "+config.EnvEndpoint+")")
	cmd.Flags().StringVar(&opts.User, "user", "", "Management user (env "+config.EnvUser+")")
	cmd.Flags().StringVar(&opts.Password, "password", "", "Management password (env "+config.EnvPassword+")")
	cmd.Flags().StringVar(&opts.ClusterName, "cluster", "", "Cluster name (env "+config.EnvCluster+")")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", config.DefaultTimeout, "Per-request timeout")
	cmd.Flags().DurationVar(&opts.PollInterval, "poll-interval", config.DefaultPollInterval, "Task polling interval")
}

func runDeploy(cmd *cobra.Command, args []string) error {
	opts.LogLevel = logLevel
	opts.ApplyEnv()

	cfg, err := opts.DeployConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !skipPreflight {
		checkCfg := health.DefaultConfig()
		checkCfg.Timeout = opts.Timeout
		if err := health.Preflight(ctx, opts.Endpoint, checkCfg); err != nil {
			return fmt.Errorf("preflight failed: %w", err)
		}
	}

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		logEvents(sub)
	}()

	d := deploy.NewDeployer(client.NewFromConnection(opts.Connection), newConfirmer(),
		deploy.WithOutput(cmd.OutOrStdout()),
		deploy.WithBroker(broker),
	)

	fmt.Fprintf(cmd.OutOrStdout(), "Deploying storage fabric on cluster %s (%s)\n", cfg.ClusterName, cfg.Mode)
	report, err := d.Run(ctx, cfg)

	broker.Unsubscribe(sub)
	<-done

	if err != nil {
		if report != nil && len(report.Completed) > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "Completed stages: %v\n", report.Completed)
		}
		return endpointError(err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintf(out, "✓ Cluster %s deployed in %s\n", report.Cluster, report.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "  Disks wiped:   %d\n", len(report.Wiped))
	fmt.Fprintf(out, "  Disks refused: %d\n", len(report.Refused))
	if report.Plan != nil {
		fmt.Fprintf(out, "  Hosts skipped: %d\n", len(report.Plan.Skipped))
	}
	return nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	opts.ApplyEnv()
	if err := opts.ValidateQuery(); err != nil {
		return err
	}

	d := deploy.NewDeployer(client.NewFromConnection(opts.Connection), prompt.NewScripted())
	inv, plan, err := d.Plan(cmd.Context(), opts.ClusterName, opts.Mode())
	if err != nil {
		return endpointError(err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Cluster %s: %d host(s), %s mode\n\n", inv.Cluster, len(inv.Hosts), plan.Mode)

	for _, h := range inv.Hosts {
		for _, disk := range inv.Ineligible(h.ID) {
			fmt.Fprintf(out, "Needs wipe: %s on %s (%s)\n", disk.DisplayName, h.Name, disk.Reason)
		}
	}

	deploy.WriteClaims(out, plan)

	for _, h := range plan.Skipped {
		fmt.Fprintf(out, "Skipped host %s: no cache or capacity disk\n", h.Name)
	}
	return nil
}

func runDiskGroups(cmd *cobra.Command, args []string) error {
	opts.ApplyEnv()
	if err := opts.ValidateQuery(); err != nil {
		return err
	}

	d := deploy.NewDeployer(client.NewFromConnection(opts.Connection), prompt.NewScripted())
	inv, err := d.Inventory(cmd.Context(), opts.ClusterName)
	if err != nil {
		return endpointError(err)
	}

	groups, err := d.QueryDiskGroups(cmd.Context(), inv.Hosts)
	if err != nil {
		return endpointError(err)
	}
	deploy.WriteDiskGroups(cmd.OutOrStdout(), inv.Hosts, groups)
	return nil
}

// endpointError points the operator at the credentials when the endpoint
// refused them
func endpointError(err error) error {
	if client.IsUnauthorized(err) {
		return fmt.Errorf("%w (check --user and --password)", err)
	}
	return err
}

// newConfirmer prompts on the terminal when there is one and reads plain
// lines from stdin otherwise
func newConfirmer() prompt.Confirmer {
	fd := os.Stdin.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return prompt.NewConsole()
	}
	return prompt.NewLine(os.Stdin, os.Stderr)
}

func logEvents(sub events.Subscriber) {
	logger := log.WithComponent("events")
	for ev := range sub {
		entry := logger.Debug()
		switch ev.Type {
		case events.EventStageFailed, events.EventTaskFailed:
			entry = logger.Warn()
		}
		for k, v := range ev.Metadata {
			entry = entry.Str(k, v)
		}
		entry.
			Str("event", string(ev.Type)).
			Str("stage", ev.Stage).
			Msg(ev.Message)
	}
}
