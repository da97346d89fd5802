package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gardener/chaos-engineering/pkg/cloud/factory"
	"github.com/gardener/chaos-engineering/pkg/orchestrator"
	"github.com/gardener/chaos-engineering/pkg/registry"
	"github.com/gardener/chaos-engineering/pkg/terminator"
)

var scriptedOutageCmd = &cobra.Command{
	Use:   "scripted-outage",
	Short: "Runs a fixed set of concurrent, independently-timed network-failure simulations",
	Long: `scripted-outage launches one network-failure simulation per --zone entry,
each running for its paired --duration, all at once. Pairing a longer
duration with one zone and a shorter one with another — e.g. two zones for
120s and 60s — produces a double-zone outage for the first 60s and a
single-zone outage for the remaining 60s once the shorter one rolls back.

Grounded on docs/tutorials/scripts/double_then_single_zone_network_outage.py,
which launches exactly this two-zone/two-duration shape in background
threads and joins them.`,
	RunE: runScriptedOutage,
}

func init() {
	scriptedOutageCmd.Flags().StringSlice("zone", nil, "zone selector for a simulation leg; repeat for each leg (required, at least one)")
	scriptedOutageCmd.Flags().StringSlice("duration", nil, "duration for the paired --zone entry at the same position; repeat for each leg (required, same count as --zone)")
	scriptedOutageCmd.Flags().String("mode", "total", "total, ingress or egress, applied to every leg")
	rootCmd.AddCommand(scriptedOutageCmd)
}

func runScriptedOutage(cmd *cobra.Command, _ []string) error {
	if err := requireProjectAndShoot(); err != nil {
		return err
	}
	zones, _ := cmd.Flags().GetStringSlice("zone")
	rawDurations, _ := cmd.Flags().GetStringSlice("duration")
	mode, _ := cmd.Flags().GetString("mode")
	if len(zones) == 0 || len(zones) != len(rawDurations) {
		return fmt.Errorf("--zone and --duration must both be given, with the same count; got %d zones and %d durations", len(zones), len(rawDurations))
	}
	networkMode, err := parseNetworkMode(mode)
	if err != nil {
		return err
	}
	durations := make([]time.Duration, len(rawDurations))
	for i, raw := range rawDurations {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("parsing --duration %q: %w", raw, err)
		}
		durations[i] = d
	}

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

	limiter := newProviderLimiter()

	reg := registry.New(log)
	reg.InstallSignalHandlers()

	handles := make([]*registryHandleErr, len(zones))
	for i := range zones {
		zoneSelector, duration, legIdx := zones[i], durations[i], i

		resolution, err := resolver.ResolveCloudProvider(ctx, project, shoot, zoneSelector)
		if err != nil {
			return fmt.Errorf("resolving cloud provider for leg %d (zone %q): %w", legIdx, zoneSelector, err)
		}
		adapter, err := factory.New(ctx, resolution.CloudProvider, resolution.Configuration, resolution.Secrets)
		if err != nil {
			return fmt.Errorf("building cloud adapter for leg %d (zone %q): %w", legIdx, zoneSelector, err)
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

		leg := &registryHandleErr{}
		leg.handle = reg.Launch(fmt.Sprintf("scripted-outage:%s", strings.TrimSpace(resolution.Zone)), func(cancelled func() bool) {
			term := terminator.New(log, "scripted-outage", duration, cancelled)
			leg.err = orchestrator.RunNetworkFailure(ctx, log, adapter, cfg, term)
		})
		handles[legIdx] = leg
	}

	var firstErr error
	for i, leg := range handles {
		leg.handle.Join()
		if leg.err != nil && firstErr == nil {
			firstErr = fmt.Errorf("leg %d (zone %q): %w", i, zones[i], leg.err)
		}
	}
	return firstErr
}

// registryHandleErr pairs a launched leg's registry.Handle with the error
// its closure eventually assigns, so every leg can be joined and its result
// collected without a channel per leg.
type registryHandleErr struct {
	handle *registry.Handle
	err    error
}
