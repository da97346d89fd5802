package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gardener/chaos-engineering/pkg/cloud/factory"
	"github.com/gardener/chaos-engineering/pkg/orchestrator"
	"github.com/gardener/chaos-engineering/pkg/registry"
	"github.com/gardener/chaos-engineering/pkg/terminator"
)

var rollingZoneOutageCmd = &cobra.Command{
	Use:   "rolling-zone-outage",
	Short: "Blocks this shoot's network traffic one zone at a time, in sequence",
	Long: `rolling-zone-outage resolves every zone declared on the shoot, then for
each one in turn runs a single network-failure simulation (create blocking
artifact, hold for --per-zone-duration, roll back) before moving to the
next zone, so no two zones are ever disrupted at once.

Grounded on hack/rolling_zone_outage.py's zone-by-zone loop.`,
	RunE: runRollingZoneOutage,
}

func init() {
	rollingZoneOutageCmd.Flags().String("mode", "total", "total, ingress or egress")
	rollingZoneOutageCmd.Flags().Duration("per-zone-duration", 5*time.Minute, "how long to hold the block in each zone")
	rootCmd.AddCommand(rollingZoneOutageCmd)
}

func runRollingZoneOutage(cmd *cobra.Command, _ []string) error {
	if err := requireProjectAndShoot(); err != nil {
		return err
	}
	mode, _ := cmd.Flags().GetString("mode")
	networkMode, err := parseNetworkMode(mode)
	if err != nil {
		return err
	}
	perZoneDuration, _ := cmd.Flags().GetDuration("per-zone-duration")

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
	_, zones, err := resolver.ResolveShootKubeconfig(ctx, project, shoot)
	if err != nil {
		return fmt.Errorf("resolving shoot zones: %w", err)
	}

	limiter := newProviderLimiter()

	reg := registry.New(log)
	reg.InstallSignalHandlers()

	for _, zone := range zones {
		log.Info("starting rolling zone outage for zone", "zone", zone)
		resolution, err := resolver.ResolveCloudProvider(ctx, project, shoot, zone)
		if err != nil {
			return fmt.Errorf("resolving cloud provider for zone %q: %w", zone, err)
		}
		adapter, err := factory.New(ctx, resolution.CloudProvider, resolution.Configuration, resolution.Secrets)
		if err != nil {
			return fmt.Errorf("building cloud adapter for zone %q: %w", zone, err)
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
			Limiter:    limiter,
		}

		var zoneErr error
		handle := reg.Launch(fmt.Sprintf("rolling-zone-outage:%s", zone), func(cancelled func() bool) {
			term := terminator.New(log, "rolling-zone-outage", perZoneDuration, cancelled)
			zoneErr = orchestrator.RunNetworkFailure(ctx, log, adapter, cfg, term)
		})
		handle.Join()
		if zoneErr != nil {
			return fmt.Errorf("zone %q: %w", zone, zoneErr)
		}
		if reg.IsCancelled(handle) {
			log.Info("aborting remaining zones, termination requested")
			break
		}
	}
	return nil
}
