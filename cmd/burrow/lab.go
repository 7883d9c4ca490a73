package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/burrow/pkg/api"
	"github.com/cuemby/burrow/pkg/lab"
	"github.com/cuemby/burrow/pkg/metrics"
	"github.com/cuemby/burrow/pkg/reconciler"
	"github.com/cuemby/burrow/pkg/security"
	"github.com/cuemby/burrow/pkg/storage"
	"github.com/spf13/cobra"
)

var labCmd = &cobra.Command{
	Use:   "lab",
	Short: "Run a simulated management endpoint",
	Long: `The lab endpoint simulates a fleet of hosts and disks described in a YAML
file, so deployments can be rehearsed without touching real hardware.`,
}

var labServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the lab management API",
	Long: `Serve the lab management API until interrupted.

Examples:
  # Seed a fresh fleet and serve it with authentication
  burrow lab serve --fleet fleet.yaml --user admin --password secret

  # Serve an existing lab read-only
  burrow lab serve --data-dir ./burrow-lab --read-only`,
	RunE: runLabServe,
}

var labSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load a fleet file into the lab store",
	RunE:  runLabSeed,
}

func init() {
	labCmd.AddCommand(labServeCmd)
	labCmd.AddCommand(labSeedCmd)

	labCmd.PersistentFlags().String("data-dir", "./burrow-lab", "Data directory for lab state")
	labCmd.PersistentFlags().String("fleet", "", "Fleet YAML file to seed the store with")

	labServeCmd.Flags().String("listen", "127.0.0.1:8080", "Address for the management API")
	labServeCmd.Flags().Duration("latency", 200*time.Millisecond, "Simulated duration of every task")
	labServeCmd.Flags().Bool("read-only", false, "Reject every request that changes lab state")
	labServeCmd.Flags().String("user", "", "Require basic authentication with this user")
	labServeCmd.Flags().String("password", "", "Password for --user")
	labServeCmd.Flags().String("secret", "", "Passphrase sealing license keys at rest (env BURROW_LAB_SECRET)")
	labServeCmd.Flags().Duration("reconcile-interval", 10*time.Second, "Interval between lab state repair passes")
	labServeCmd.Flags().Duration("metrics-interval", 15*time.Second, "Interval between fleet gauge refreshes")
}

func openLabStore(cmd *cobra.Command) (storage.Store, error) {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	fleetPath, _ := cmd.Flags().GetString("fleet")

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store, err := storage.NewBoltStore(dataDir)
	if err != nil {
		return nil, err
	}

	if fleetPath != "" {
		fleet, err := lab.LoadFleet(fleetPath)
		if err != nil {
			store.Close()
			return nil, err
		}
		if err := lab.Seed(store, fleet); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to seed fleet: %w", err)
		}
	}
	return store, nil
}

func runLabSeed(cmd *cobra.Command, args []string) error {
	if fleetPath, _ := cmd.Flags().GetString("fleet"); fleetPath == "" {
		return fmt.Errorf("--fleet is required")
	}

	store, err := openLabStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	clusters, err := store.ListClusters()
	if err != nil {
		return err
	}
	hosts, err := store.ListHosts()
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Lab seeded: %d cluster(s), %d host(s)\n", len(clusters), len(hosts))
	return nil
}

func runLabServe(cmd *cobra.Command, args []string) error {
	listen, _ := cmd.Flags().GetString("listen")
	latency, _ := cmd.Flags().GetDuration("latency")
	readOnly, _ := cmd.Flags().GetBool("read-only")
	user, _ := cmd.Flags().GetString("user")
	password, _ := cmd.Flags().GetString("password")
	interval, _ := cmd.Flags().GetDuration("metrics-interval")
	secret, _ := cmd.Flags().GetString("secret")
	reconcileInterval, _ := cmd.Flags().GetDuration("reconcile-interval")
	if secret == "" {
		secret = os.Getenv("BURROW_LAB_SECRET")
	}
	if secret == "" {
		secret = lab.DefaultSecret
	}
	sealer, err := security.NewSealerFromPassphrase(secret)
	if err != nil {
		return err
	}

	if (user == "") != (password == "") {
		return fmt.Errorf("--user and --password must be set together")
	}

	store, err := openLabStore(cmd)
	if err != nil {
		metrics.UpdateComponent(metrics.ComponentStore, false, err.Error())
		return err
	}
	defer store.Close()
	metrics.UpdateComponent(metrics.ComponentStore, true, "")

	collector := metrics.NewCollector(store, interval)
	collector.Start()
	defer collector.Stop()

	backend := lab.NewCluster(store, lab.WithLatency(latency), lab.WithSealer(sealer))
	defer backend.Wait()

	recon := reconciler.NewReconciler(backend, reconcileInterval)
	recon.Start()
	defer recon.Stop()

	cfg := api.Config{
		ReadOnly: readOnly,
		Version:  Version,
	}
	if user != "" {
		cfg.Users = map[string]string{user: password}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Lab endpoint listening on http://%s. Press Ctrl+C to stop.\n", listen)
	if err := api.NewServer(backend, cfg).Start(ctx, listen); err != nil {
		return fmt.Errorf("API server error: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "✓ Shutdown complete")
	return nil
}
