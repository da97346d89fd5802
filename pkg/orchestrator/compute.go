// Package orchestrator implements the Failure Orchestrator: the compute-
// failure loop (per-instance scheduled terminate/restart) and the
// network-failure loop (rollback-first, setup, hold, rollback) that drive a
// pkg/cloud.Adapter under a pkg/terminator.Terminator.
//
// Grounded on original_source/chaosgarden/util/simulation.py and the
// per-provider actions modules' terminate_instances/reset_instances and
// block_*/unblock_* entry points, generalized to the provider-independent
// cloud.Adapter surface.
package orchestrator

import (
	"context"
	"math/rand"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/time/rate"

	"github.com/gardener/chaos-engineering/pkg/cloud"
)

// ComputeMode selects the disruptive compute action the loop applies.
type ComputeMode string

const (
	Terminate ComputeMode = "terminate"
	Restart   ComputeMode = "restart"
)

// ComputeFailureConfig parameterizes RunComputeFailure.
type ComputeFailureConfig struct {
	Mode     ComputeMode
	Zone     string
	Filter   cloud.ComputeFilter
	MinDelay time.Duration // rand(min,max) before first/each action
	MaxDelay time.Duration

	// TerminationBackoff is the reschedule delay after a successful
	// terminate (only relevant in case a "terminated" instance is somehow
	// re-observed eligible; terminate is otherwise not repeatable).
	TerminationBackoff time.Duration
	// RestartBackoff is the fixed component added to rand(min,max) after a
	// successful restart, so restart mode naturally cycles.
	RestartBackoff time.Duration

	// Limiter, when non-nil, caps the rate of calls made to adapter across
	// every instance this loop drives, independent of the per-instance
	// schedule above. Shared with a NetworkFailureConfig's Limiter when both
	// loops target the same provider account.
	Limiter *rate.Limiter
}

// ComputeSchedule is the per-instance "next eligible action time" map a
// compute-failure loop threads across ticks.
type ComputeSchedule map[string]time.Time

// RunComputeFailure repeatedly lists instances matching cfg.Filter in
// cfg.Zone and, for each eligible instance, attempts the configured action
// once its per-instance schedule comes due, until term fires. It ticks every
// 1-2s (randomized, matching the original's sleep jitter).
func RunComputeFailure(ctx context.Context, log logr.Logger, adapter cloud.Adapter, cfg ComputeFailureConfig, term interface{ IsTerminated() bool }) {
	schedule := ComputeSchedule{}
	for !term.IsTerminated() {
		ComputeTick(ctx, log, adapter, cfg, schedule, time.Now())
		sleepTick(ctx)
	}
}

// ComputeTick runs a single iteration of the compute-failure loop body:
// list, then act on every instance whose schedule entry is due as of now.
// Split out from RunComputeFailure so tests can drive many ticks without
// waiting on the real 1-2s inter-tick sleep.
func ComputeTick(ctx context.Context, log logr.Logger, adapter cloud.Adapter, cfg ComputeFailureConfig, schedule ComputeSchedule, now time.Time) {
	listCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	var instances []cloud.Instance
	err := cloud.WithThrottleRetry(listCtx, cfg.Limiter, func(ctx context.Context) error {
		var err error
		instances, err = adapter.ListCompute(ctx, cfg.Zone, cfg.Filter)
		return err
	})
	cancel()
	if err != nil {
		log.Error(err, "listing compute instances failed, will retry next tick")
		return
	}

	for _, instance := range instances {
		if !eligible(cfg.Mode, instance.State) {
			continue
		}
		due, scheduled := schedule[instance.ID]
		if !scheduled {
			schedule[instance.ID] = now.Add(randBetween(cfg.MinDelay, cfg.MaxDelay))
			continue
		}
		if now.Before(due) {
			continue
		}

		opCtx, cancelOp := context.WithTimeout(ctx, 15*time.Second)
		opErr := cloud.WithThrottleRetry(opCtx, cfg.Limiter, func(ctx context.Context) error {
			switch cfg.Mode {
			case Terminate:
				return adapter.TerminateCompute(ctx, instance)
			case Restart:
				return adapter.RestartCompute(ctx, instance)
			default:
				return nil
			}
		})
		cancelOp()
		if opErr != nil {
			log.Error(opErr, "compute action failed, will retry on next due tick", "instance", instance.ID, "mode", cfg.Mode)
			continue
		}

		switch cfg.Mode {
		case Terminate:
			schedule[instance.ID] = now.Add(cfg.TerminationBackoff)
		case Restart:
			schedule[instance.ID] = now.Add(cfg.RestartBackoff + randBetween(cfg.MinDelay, cfg.MaxDelay))
		}
		log.Info("applied compute action", "instance", instance.ID, "mode", cfg.Mode)
	}
}

func eligible(mode ComputeMode, state cloud.ComputeState) bool {
	switch mode {
	case Terminate:
		return state != cloud.ComputeTerminating && state != cloud.ComputeTerminated
	case Restart:
		return state == cloud.ComputeRunning
	default:
		return false
	}
}

func randBetween(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

func sleepTick(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(1000+rand.Intn(1000)) * time.Millisecond):
	}
}
