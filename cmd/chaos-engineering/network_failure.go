package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gardener/chaos-engineering/pkg/cloud"
	"github.com/gardener/chaos-engineering/pkg/cloud/factory"
	"github.com/gardener/chaos-engineering/pkg/orchestrator"
	"github.com/gardener/chaos-engineering/pkg/registry"
	"github.com/gardener/chaos-engineering/pkg/terminator"
)

var networkFailureCmd = &cobra.Command{
	Use:   "network-failure",
	Short: "Blocks this shoot's network traffic in a zone for a bounded duration",
	Long: `network-failure resolves the shoot's cloud provider and zone from the garden
cluster, creates (or reuses) a provider-native blocking artifact, substitutes
it onto every matched network resource, holds until --duration elapses or
the process receives SIGTERM/SIGINT, then always rolls back.`,
	RunE: runNetworkFailure,
}

func init() {
	networkFailureCmd.Flags().String("mode", string(cloud.Total), "total, ingress or egress")
	networkFailureCmd.Flags().Duration("duration", 5*time.Minute, "how long to hold the block before rolling back (<=0 means a single pass)")
	networkFailureCmd.Flags().Bool("reassociate-each-tick", false, "re-run the substitution step on every hold-phase tick")
	rootCmd.AddCommand(networkFailureCmd)
}

func runNetworkFailure(cmd *cobra.Command, _ []string) error {
	if err := requireProjectAndShoot(); err != nil {
		return err
	}
	mode, _ := cmd.Flags().GetString("mode")
	networkMode, err := parseNetworkMode(mode)
	if err != nil {
		return err
	}
	duration, _ := cmd.Flags().GetDuration("duration")
	reassociateEachTick, _ := cmd.Flags().GetBool("reassociate-each-tick")

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

	filterHash, err := factory.FilterHash(resolution.CloudProvider, fmt.Sprintf("%v", resolution.NetworkFilter))
	if err != nil {
		return err
	}

	cfg := orchestrator.NetworkFailureConfig{
		Zone:       resolution.Zone,
		FilterHash: filterHash,
		Filter:     resolution.NetworkFilter,
		Mode:       networkMode,

		ReassociateEachTick: reassociateEachTick,
		Limiter:             newProviderLimiter(),
	}

	reg := registry.New(log)
	reg.InstallSignalHandlers()
	var runErr error
	handle := reg.Launch("network-failure", func(cancelled func() bool) {
		term := terminator.New(log, "network-failure", duration, cancelled)
		runErr = orchestrator.RunNetworkFailure(ctx, log, adapter, cfg, term)
	})
	handle.Join()
	return runErr
}
