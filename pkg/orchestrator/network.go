package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/time/rate"

	"github.com/gardener/chaos-engineering/pkg/cloud"
)

// NetworkState is a state of the per-run network-failure state machine.
type NetworkState string

const (
	Idle        NetworkState = "IDLE"
	Holding     NetworkState = "HOLDING"
	RollingBack NetworkState = "ROLLING_BACK"
)

// NetworkFailureConfig parameterizes RunNetworkFailure.
type NetworkFailureConfig struct {
	Zone       string
	FilterHash string
	Filter     cloud.NetworkFilter
	Mode       cloud.Mode

	// ReassociateEachTick re-runs the substitution step on every hold-phase
	// tick, catching resources that appeared mid-run. Azure, GCP and
	// vSphere need this (their association model can drift as new NICs/
	// instances/VMs appear); AWS/OpenStack/AlibabaCloud's subnet-scoped ACL
	// swap already covers late arrivals without a re-run.
	ReassociateEachTick bool

	// Limiter, when non-nil, caps the rate of calls made to adapter across
	// setup, hold and rollback. Shared with a ComputeFailureConfig's Limiter
	// when both loops target the same provider account.
	Limiter *rate.Limiter
}

// RunNetworkFailure drives one network-failure simulation end-to-end:
// best-effort rollback of any stale prior run, setup (create-or-reuse the
// blocking artifact and substitute every matched resource's binding), hold
// until term fires (optionally re-substituting every tick), then rollback.
// It always attempts rollback before returning, including when setup fails
// or the context is already cancelled, matching the contract that a
// simulation always ends by attempting rollback.
func RunNetworkFailure(ctx context.Context, log logr.Logger, adapter cloud.Adapter, cfg NetworkFailureConfig, term interface{ IsTerminated() bool }) error {
	state := Idle

	log.Info("best-effort rollback of any stale prior run", "zone", cfg.Zone, "filterHash", cfg.FilterHash, "mode", cfg.Mode)
	if err := Rollback(ctx, log, adapter, cfg.Zone, cfg.FilterHash, cfg.Mode, cfg.Limiter); err != nil {
		log.Error(err, "pre-run rollback reported errors, continuing with setup regardless")
	}

	artifact, err := setup(ctx, log, adapter, cfg)
	if err != nil {
		log.Error(err, "setup failed")
		state = RollingBack
	} else {
		state = Holding
	}

	if state == Holding {
		hold(ctx, log, adapter, cfg, artifact, term)
		state = RollingBack
	}

	log.Info("rolling back", "zone", cfg.Zone, "filterHash", cfg.FilterHash, "mode", cfg.Mode)
	return Rollback(ctx, log, adapter, cfg.Zone, cfg.FilterHash, cfg.Mode, cfg.Limiter)
}

// setup creates (or reuses) the blocking artifact, enumerates matched
// networks, records each resource's prior binding, persists that mapping on
// the artifact, then substitutes the binding. A failure part-way through
// leaves a partially-created artifact for the subsequent rollback to clean
// up (spec §7: "delete any partially-created artifact; skip the block
// step").
func setup(ctx context.Context, log logr.Logger, adapter cloud.Adapter, cfg NetworkFailureConfig) (*cloud.BlockingArtifact, error) {
	listCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	var found *cloud.BlockingArtifact
	err := cloud.WithThrottleRetry(listCtx, cfg.Limiter, func(ctx context.Context) error {
		var err error
		found, err = adapter.FindBlockingArtifact(ctx, cfg.Zone, cfg.FilterHash, cfg.Mode)
		return err
	})
	cancel()
	if err != nil {
		return nil, fmt.Errorf("finding existing blocking artifact: %w", err)
	}
	artifact := found
	if artifact == nil {
		opCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		err = cloud.WithThrottleRetry(opCtx, cfg.Limiter, func(ctx context.Context) error {
			var err error
			artifact, err = adapter.CreateBlockingArtifact(ctx, cfg.Zone, cfg.FilterHash, cfg.Mode)
			return err
		})
		cancel()
		if err != nil {
			return nil, fmt.Errorf("creating blocking artifact: %w", err)
		}
	}

	if err := associateAll(ctx, log, adapter, cfg, artifact); err != nil {
		return artifact, err
	}
	return artifact, nil
}

// associateAll enumerates matched networks, associates each with artifact,
// and persists the accumulated original-associations mapping onto artifact.
func associateAll(ctx context.Context, log logr.Logger, adapter cloud.Adapter, cfg NetworkFailureConfig, artifact *cloud.BlockingArtifact) error {
	listCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	var networks []cloud.Network
	err := cloud.WithThrottleRetry(listCtx, cfg.Limiter, func(ctx context.Context) error {
		var err error
		networks, err = adapter.ListNetworks(ctx, cfg.Zone, cfg.Filter)
		return err
	})
	cancel()
	if err != nil {
		return fmt.Errorf("listing networks: %w", err)
	}

	mapping, err := adapter.ReadOriginalAssociations(artifact)
	if err != nil {
		return fmt.Errorf("reading original associations: %w", err)
	}
	if mapping == nil {
		mapping = map[string]string{}
	}

	for _, network := range networks {
		if _, already := mapping[network.ID]; already {
			continue
		}
		opCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		var prior string
		err := cloud.WithThrottleRetry(opCtx, cfg.Limiter, func(ctx context.Context) error {
			var err error
			prior, err = adapter.Associate(ctx, network, artifact)
			return err
		})
		cancel()
		if err != nil {
			log.Error(err, "associating resource with blocking artifact failed, will retry next tick", "resource", network.ID)
			continue
		}
		mapping[network.ID] = prior
	}

	persistCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	var updated *cloud.BlockingArtifact
	err = cloud.WithThrottleRetry(persistCtx, cfg.Limiter, func(ctx context.Context) error {
		var err error
		updated, err = adapter.PersistOriginalAssociations(ctx, artifact, mapping)
		return err
	})
	cancel()
	if err != nil {
		return fmt.Errorf("persisting original associations: %w", err)
	}
	*artifact = *updated
	return nil
}

// hold polls until term fires, re-running associateAll every tick when
// cfg.ReassociateEachTick is set (HOLDING --reassoc-drift--> HOLDING).
func hold(ctx context.Context, log logr.Logger, adapter cloud.Adapter, cfg NetworkFailureConfig, artifact *cloud.BlockingArtifact, term interface{ IsTerminated() bool }) {
	for !term.IsTerminated() {
		if cfg.ReassociateEachTick {
			if err := associateAll(ctx, log, adapter, cfg, artifact); err != nil {
				log.Error(err, "re-association during hold phase failed, will retry next tick")
			}
		}
		sleepTick(ctx)
	}
}

// Rollback re-reads the original-associations mapping from the blocking
// artifact for (zone, filterHash, mode), restores every recorded resource to
// its prior binding in a best-effort loop (accumulating, never aborting on,
// per-resource failures), then deletes the artifact. It is idempotent: if no
// artifact exists, it returns nil immediately. A failure to read the
// mapping during rollback is logged and treated as "no known resources to
// restore" — the artifact is still deleted, since leaving the deny rules in
// place would extend the outage beyond contract.
func Rollback(ctx context.Context, log logr.Logger, adapter cloud.Adapter, zone, filterHash string, mode cloud.Mode, limiter *rate.Limiter) error {
	findCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	var artifact *cloud.BlockingArtifact
	err := cloud.WithThrottleRetry(findCtx, limiter, func(ctx context.Context) error {
		var err error
		artifact, err = adapter.FindBlockingArtifact(ctx, zone, filterHash, mode)
		return err
	})
	cancel()
	if err != nil {
		return fmt.Errorf("finding blocking artifact for rollback: %w", err)
	}
	if artifact == nil {
		return nil
	}

	var errs *multierror.Error

	mapping, err := adapter.ReadOriginalAssociations(artifact)
	if err != nil {
		log.Error(err, "reading original associations during rollback failed; proceeding to delete the artifact regardless")
		errs = multierror.Append(errs, fmt.Errorf("reading original associations: %w", err))
		mapping = nil
	}

	for resourceID, prior := range mapping {
		opCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		restoreErr := cloud.WithThrottleRetry(opCtx, limiter, func(ctx context.Context) error {
			return adapter.Restore(ctx, cloud.Network{ID: resourceID, Zone: zone}, prior)
		})
		cancel()
		if restoreErr != nil {
			log.Error(restoreErr, "restoring resource's prior binding failed, continuing rollback for remaining resources", "resource", resourceID)
			errs = multierror.Append(errs, fmt.Errorf("restoring %s: %w", resourceID, restoreErr))
		}
	}

	deleteCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	deleteErr := cloud.WithThrottleRetry(deleteCtx, limiter, func(ctx context.Context) error {
		return adapter.DeleteBlockingArtifact(ctx, artifact)
	})
	cancel()
	if deleteErr != nil {
		errs = multierror.Append(errs, fmt.Errorf("deleting blocking artifact: %w", deleteErr))
	}

	return errs.ErrorOrNil()
}
