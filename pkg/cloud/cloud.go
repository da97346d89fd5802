// Package cloud defines the uniform Cloud Provider Adapter capability set
// (spec §4.4): one implementation per provider (AWS, Azure, GCP,
// AlibabaCloud, OpenStack, vSphere), modelled as a single interface so the
// Failure Orchestrator never branches on provider identity.
//
// Grounded on the per-provider chaosgarden.<provider>.actions modules of
// original_source/, which all expose the same list/terminate/restart/
// create-blocking-artifact/associate/restore surface against different
// SDKs.
package cloud

import (
	"context"
	"time"
)

// ComputeState is a coarse, provider-independent compute lifecycle state.
type ComputeState string

const (
	ComputeRunning     ComputeState = "Running"
	ComputeTerminating ComputeState = "Terminating"
	ComputeTerminated  ComputeState = "Terminated"
	ComputeOther       ComputeState = "Other"
)

// Instance is a provider-independent view of a compute resource.
type Instance struct {
	ID         string
	State      ComputeState
	LaunchTime time.Time // zero value if unknown
	Zone       string
	Tags       map[string]string
}

// Network is a provider-independent view of a network resource a blocking
// artifact may be associated with (subnet, vSwitch, NIC, VM NIC, ...).
type Network struct {
	ID   string
	Zone string
	Tags map[string]string
}

// Mode is the network-failure direction requested for a blocking artifact.
type Mode string

const (
	Total   Mode = "total"
	Ingress Mode = "ingress"
	Egress  Mode = "egress"
)

// BlockingArtifact is a provider-native network-policy object that denies
// all traffic in the declared direction(s) for 0.0.0.0/0, tagged
// deterministically from (zone, filter hash, mode) so it can be
// rediscovered after a crash, and carrying the serialized
// original-associations record described in spec §6.
type BlockingArtifact struct {
	ID       string
	Zone     string
	FilterHash string
	Mode     Mode
	// Associations is the provider-native serialization of the
	// resourceID -> original-ACL-ID map, carried on the artifact itself.
	Associations string
}

// Adapter is the capability set every cloud provider implements.
//
// Retry semantics (spec §4.4): adapters do not retry; they report throttling
// errors as *Throttled and the caller retries them through
// WithThrottleRetry (5 attempts in all, 30s then 3s backoff). Other
// transient errors are returned to the caller, which is expected to log and
// continue its control loop rather than abort. List calls are bounded by a 60s timeout, operations by 15s,
// enforced via ctx by the caller (pkg/orchestrator).
type Adapter interface {
	// ListCompute returns every compute resource in zone matching filter.
	ListCompute(ctx context.Context, zone string, filter ComputeFilter) ([]Instance, error)
	// TerminateCompute fires a fire-and-wait-short termination. Silent
	// failures are tolerated by the caller via rescheduling.
	TerminateCompute(ctx context.Context, instance Instance) error
	// RestartCompute fires a fire-and-wait-short restart.
	RestartCompute(ctx context.Context, instance Instance) error

	// ListNetworks returns every network resource matching filter.
	ListNetworks(ctx context.Context, zone string, filter NetworkFilter) ([]Network, error)

	// FindBlockingArtifact looks up a previously created artifact for
	// (zone, filterHash, mode) by its deterministic tag, for rollback.
	FindBlockingArtifact(ctx context.Context, zone, filterHash string, mode Mode) (*BlockingArtifact, error)
	// CreateBlockingArtifact creates a new artifact tagged with (zone,
	// filterHash, mode). A provider-native 409 (already exists) is treated
	// as success and the existing artifact is returned.
	CreateBlockingArtifact(ctx context.Context, zone, filterHash string, mode Mode) (*BlockingArtifact, error)
	// DeleteBlockingArtifact deletes the artifact. A 404 is treated as
	// success.
	DeleteBlockingArtifact(ctx context.Context, artifact *BlockingArtifact) error

	// Associate substitutes resource's network-policy binding with
	// artifact's, returning the prior binding so the caller can persist it.
	Associate(ctx context.Context, resource Network, artifact *BlockingArtifact) (prior string, err error)
	// Restore re-associates resource with its prior binding.
	Restore(ctx context.Context, resource Network, prior string) error

	// PersistOriginalAssociations writes mapping onto artifact's own
	// metadata/tag field using the provider-native serialization (spec §6)
	// and returns the updated artifact.
	PersistOriginalAssociations(ctx context.Context, artifact *BlockingArtifact, mapping map[string]string) (*BlockingArtifact, error)
	// ReadOriginalAssociations parses artifact's persisted mapping. The
	// rollback read path is the source of truth; no in-process state is
	// ever substituted for it.
	ReadOriginalAssociations(artifact *BlockingArtifact) (map[string]string, error)
}

// ComputeFilter and NetworkFilter are opaque label predicates; pkg/selector
// provides the concrete regex-extended implementation used by the
// orchestrator, but the Adapter interface only depends on the narrow
// Matches capability so provider packages never import pkg/selector
// directly.
type ComputeFilter interface {
	Matches(tags map[string]string) bool
}

type NetworkFilter interface {
	Matches(tags map[string]string) bool
}
