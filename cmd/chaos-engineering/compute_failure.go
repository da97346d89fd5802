package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gardener/chaos-engineering/pkg/cloud/factory"
	"github.com/gardener/chaos-engineering/pkg/orchestrator"
	"github.com/gardener/chaos-engineering/pkg/registry"
	"github.com/gardener/chaos-engineering/pkg/terminator"
)

var computeFailureCmd = &cobra.Command{
	Use:   "compute-failure",
	Short: "Repeatedly terminates or restarts this shoot's compute instances in a zone",
	Long: `compute-failure resolves the shoot's cloud provider and zone from the garden
cluster, then repeatedly lists the shoot's compute instances in that zone
and terminates (or restarts) each one once its per-instance backoff comes
due, until --duration elapses or the process receives SIGTERM/SIGINT.`,
	RunE: runComputeFailure,
}

func init() {
	computeFailureCmd.Flags().String("mode", "terminate", "terminate or restart")
	computeFailureCmd.Flags().Duration("duration", 5*time.Minute, "how long to run before stopping (<=0 means a single pass)")
	computeFailureCmd.Flags().Duration("min-delay", 10*time.Second, "minimum per-instance delay before acting")
	computeFailureCmd.Flags().Duration("max-delay", 30*time.Second, "maximum per-instance delay before acting")
	computeFailureCmd.Flags().Duration("termination-backoff", time.Minute, "reschedule delay after a successful terminate")
	computeFailureCmd.Flags().Duration("restart-backoff", time.Minute, "fixed component added after a successful restart")
	rootCmd.AddCommand(computeFailureCmd)
}

func runComputeFailure(cmd *cobra.Command, _ []string) error {
	if err := requireProjectAndShoot(); err != nil {
		return err
	}
	mode, _ := cmd.Flags().GetString("mode")
	var computeMode orchestrator.ComputeMode
	switch mode {
	case string(orchestrator.Terminate):
		computeMode = orchestrator.Terminate
	case string(orchestrator.Restart):
		computeMode = orchestrator.Restart
	default:
		return fmt.Errorf("--mode must be %q or %q, got %q", orchestrator.Terminate, orchestrator.Restart, mode)
	}
	duration, _ := cmd.Flags().GetDuration("duration")
	minDelay, _ := cmd.Flags().GetDuration("min-delay")
	maxDelay, _ := cmd.Flags().GetDuration("max-delay")
	terminationBackoff, _ := cmd.Flags().GetDuration("termination-backoff")
	restartBackoff, _ := cmd.Flags().GetDuration("restart-backoff")

	log, err := newLogr()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	resolver, err := newResolver()
	if err != nil {
		return err
	}
	resolution, err := resolver.ResolveCloudProvider(ctx, project, shoot, viper.GetString("zone"))
	if err != nil {
		return fmt.Errorf("resolving cloud provider: %w", err)
	}

	adapter, err := factory.New(ctx, resolution.CloudProvider, resolution.Configuration, resolution.Secrets)
	if err != nil {
		return fmt.Errorf("building cloud adapter: %w", err)
	}

	cfg := orchestrator.ComputeFailureConfig{
		Mode:               computeMode,
		Zone:               resolution.Zone,
		Filter:             resolution.ComputeFilter,
		MinDelay:           minDelay,
		MaxDelay:           maxDelay,
		TerminationBackoff: terminationBackoff,
		RestartBackoff:     restartBackoff,
		Limiter:            newProviderLimiter(),
	}

	reg := registry.New(log)
	reg.InstallSignalHandlers()
	handle := reg.Launch("compute-failure", func(cancelled func() bool) {
		term := terminator.New(log, "compute-failure", duration, cancelled)
		orchestrator.RunComputeFailure(ctx, log, adapter, cfg, term)
	})
	handle.Join()
	return nil
}
