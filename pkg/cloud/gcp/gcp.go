// Package gcp implements the Cloud Provider Adapter for Google Compute
// Engine, via google.golang.org/api/compute/v1.
//
// Grounded on original_source/chaosgarden/gcp/actions.py
// (create_blocking_firewalls/block_instances/unblock_instances): GCE has no
// per-subnet ACL; blocking is a pair of global, network-scoped firewall
// rules keyed by an instance network tag, so Associate means "add the
// blocking tag to this instance" rather than "swap this resource's policy
// binding".
package gcp

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/gardener/chaos-engineering/pkg/cloud"
)

// Instance mirrors the handful of compute.Instance fields this adapter
// needs.
type Instance struct {
	Name               string
	Status             string
	Tags               []string
	TagsFingerprint    string
	CreationTimestamp  string
}

// Client is the subset of GCE operations this adapter calls, narrowed for
// testability the same way the AWS/Azure adapters narrow their SDKs.
type Client interface {
	ListInstances(ctx context.Context, project, zone string) ([]Instance, error)
	TerminateInstance(ctx context.Context, project, zone, name string) error
	RestartInstance(ctx context.Context, project, zone, name string) error
	SuspendInstance(ctx context.Context, project, zone, name string) error
	ResumeInstance(ctx context.Context, project, zone, name string) error
	TagInstance(ctx context.Context, project, zone, name string, tags []string, fingerprint string) error

	ListNetworkSelfLinks(ctx context.Context, project string) (map[string]string, error)

	CreateFirewall(ctx context.Context, project, name, description, networkLink, direction, ipRange, targetTag string) error
	FindFirewalls(ctx context.Context, project, namePrefix string) ([]Firewall, error)
	DeleteFirewall(ctx context.Context, project, name string) error
	PatchFirewallDescription(ctx context.Context, project, name, description string) error
}

// Firewall mirrors the fields of a compute.Firewall this adapter needs.
type Firewall struct {
	Name        string
	Description string
}

// Adapter implements cloud.Adapter for GCP, scoped to a single project
// (matching the original's per-process project configuration).
type Adapter struct {
	client  Client
	project string
}

// New wraps a GCE Client plus the project it was constructed against.
func New(client Client, project string) *Adapter {
	return &Adapter{client: client, project: project}
}

var _ cloud.Adapter = (*Adapter)(nil)

// firewallName builds the deterministic firewall/tag name. suffix varies
// (ingress/egress/tag) while the (filterHash, zone) prefix stays fixed, so
// FindFirewalls can locate every direction's firewall for a given
// (zone, filterHash) with a single prefix match.
func firewallName(zone, filterHash, suffix string) string {
	if suffix == "" {
		return fmt.Sprintf("chaosgarden-block-%s-%s", filterHash, zone)
	}
	return fmt.Sprintf("chaosgarden-block-%s-%s-%s", filterHash, zone, suffix)
}

// FilterHash derives the deterministic filter-hash used in firewall and tag
// names, matching the original's md5-of-filter-string scheme.
func FilterHash(filterDescription string) string {
	sum := md5.Sum([]byte(filterDescription))
	return hex.EncodeToString(sum[:])[:16]
}

func computeState(status string) cloud.ComputeState {
	switch status {
	case "RUNNING":
		return cloud.ComputeRunning
	case "STOPPING", "SUSPENDING":
		return cloud.ComputeTerminating
	case "TERMINATED", "SUSPENDED":
		return cloud.ComputeTerminated
	default:
		return cloud.ComputeOther
	}
}

// ListCompute lists instances in zone matching filter's tags. Tags are
// exposed under the synthetic key "networkTags" as a comma-joined list (GCE
// network tags, not labels) alongside any instance labels, so selectors can
// match either.
func (a *Adapter) ListCompute(ctx context.Context, zone string, filter cloud.ComputeFilter) ([]cloud.Instance, error) {
	instances, err := a.client.ListInstances(ctx, a.project, zone)
	if err != nil {
		return nil, err
	}
	var out []cloud.Instance
	for _, inst := range instances {
		tags := map[string]string{"name": inst.Name}
		if filter != nil && !filter.Matches(tags) {
			continue
		}
		out = append(out, cloud.Instance{ID: inst.Name, State: computeState(inst.Status), Zone: zone, Tags: tags})
	}
	return out, nil
}

// TerminateCompute deletes the instance. The original refuses to terminate
// pending/staging/stopping instances (GCE rejects the call); the
// orchestrator's reschedule loop already tolerates and retries failed
// operations, so this adapter does not duplicate that eligibility filter.
func (a *Adapter) TerminateCompute(ctx context.Context, instance cloud.Instance) error {
	return a.client.TerminateInstance(ctx, a.project, instance.Zone, instance.ID)
}

// RestartCompute restarts the instance.
func (a *Adapter) RestartCompute(ctx context.Context, instance cloud.Instance) error {
	return a.client.RestartInstance(ctx, a.project, instance.Zone, instance.ID)
}

// ListNetworks lists instances as the blockable network resource: GCE
// firewalls are scoped to the VPC network, not to a subnet, and targeting
// is done by instance network tag, so Network.ID is the instance name.
func (a *Adapter) ListNetworks(ctx context.Context, zone string, filter cloud.NetworkFilter) ([]cloud.Network, error) {
	instances, err := a.client.ListInstances(ctx, a.project, zone)
	if err != nil {
		return nil, err
	}
	var networks []cloud.Network
	for _, inst := range instances {
		tags := map[string]string{"name": inst.Name, "tagsFingerprint": inst.TagsFingerprint}
		if filter != nil && !filter.Matches(tags) {
			continue
		}
		networks = append(networks, cloud.Network{ID: inst.Name, Zone: zone, Tags: tags})
	}
	return networks, nil
}

// FindBlockingArtifact finds the deterministically-named blocking
// firewall(s); the returned artifact's ID is the network tag the firewalls
// key on, since that (not a firewall's own name) is what Associate needs.
func (a *Adapter) FindBlockingArtifact(ctx context.Context, zone, filterHash string, mode cloud.Mode) (*cloud.BlockingArtifact, error) {
	firewalls, err := a.client.FindFirewalls(ctx, a.project, firewallName(zone, filterHash, ""))
	if err != nil {
		return nil, err
	}
	if len(firewalls) == 0 {
		return nil, nil
	}
	return &cloud.BlockingArtifact{
		ID:           firewallName(zone, filterHash, "tag"),
		Zone:         zone,
		FilterHash:   filterHash,
		Mode:         mode,
		Associations: firewalls[0].Description,
	}, nil
}

// CreateBlockingArtifact creates one global firewall per requested
// direction, denying all traffic to/from 0.0.0.0/0 for instances carrying
// the returned artifact's network tag.
func (a *Adapter) CreateBlockingArtifact(ctx context.Context, zone, filterHash string, mode cloud.Mode) (*cloud.BlockingArtifact, error) {
	networks, err := a.client.ListNetworkSelfLinks(ctx, a.project)
	if err != nil {
		return nil, err
	}
	targetTag := firewallName(zone, filterHash, "tag")
	modes := []string{"ingress", "egress"}
	if mode == cloud.Ingress {
		modes = []string{"ingress"}
	} else if mode == cloud.Egress {
		modes = []string{"egress"}
	}
	for _, networkLink := range networks {
		for _, m := range modes {
			name := firewallName(zone, filterHash, m)
			direction := "INGRESS"
			if m == "egress" {
				direction = "EGRESS"
			}
			if err := a.client.CreateFirewall(ctx, a.project, name,
				fmt.Sprintf("Deny %s network traffic while a chaos action runs in zone %s", m, zone),
				networkLink, direction, "0.0.0.0/0", targetTag); err != nil {
				return nil, err
			}
		}
	}
	return &cloud.BlockingArtifact{ID: targetTag, Zone: zone, FilterHash: filterHash, Mode: mode}, nil
}

// DeleteBlockingArtifact deletes every firewall matching the zone/filter
// prefix (one per direction created by CreateBlockingArtifact).
func (a *Adapter) DeleteBlockingArtifact(ctx context.Context, artifact *cloud.BlockingArtifact) error {
	firewalls, err := a.client.FindFirewalls(ctx, a.project, firewallName(artifact.Zone, artifact.FilterHash, ""))
	if err != nil {
		return err
	}
	for _, fw := range firewalls {
		if err := a.client.DeleteFirewall(ctx, a.project, fw.Name); err != nil {
			return err
		}
	}
	return nil
}

// Associate adds the blocking network tag to resource's instance. The
// "prior" value returned is the comma-joined list of the instance's
// pre-existing network tags, so Restore can reset the tag list exactly.
func (a *Adapter) Associate(ctx context.Context, resource cloud.Network, artifact *cloud.BlockingArtifact) (string, error) {
	current, fingerprint, err := a.currentTags(ctx, resource)
	if err != nil {
		return "", err
	}
	prior := joinTags(current)
	if err := a.client.TagInstance(ctx, a.project, resource.Zone, resource.ID, append(current, artifact.ID), fingerprint); err != nil {
		return "", err
	}
	return prior, nil
}

// Restore resets resource's instance network tags to prior.
func (a *Adapter) Restore(ctx context.Context, resource cloud.Network, prior string) error {
	_, fingerprint, err := a.currentTags(ctx, resource)
	if err != nil {
		return err
	}
	return a.client.TagInstance(ctx, a.project, resource.Zone, resource.ID, splitTags(prior), fingerprint)
}

func (a *Adapter) currentTags(ctx context.Context, resource cloud.Network) ([]string, string, error) {
	instances, err := a.client.ListInstances(ctx, a.project, resource.Zone)
	if err != nil {
		return nil, "", err
	}
	for _, inst := range instances {
		if inst.Name == resource.ID {
			return inst.Tags, inst.TagsFingerprint, nil
		}
	}
	return nil, "", fmt.Errorf("gcp: instance %s not found in zone %s", resource.ID, resource.Zone)
}

func joinTags(tags []string) string {
	out := ""
	for i, t := range tags {
		if i > 0 {
			out += ","
		}
		out += t
	}
	return out
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

// PersistOriginalAssociations writes the semicolon-encoded mapping onto the
// first blocking firewall's description field, per spec §6's
// self-describing-artifact requirement.
func (a *Adapter) PersistOriginalAssociations(ctx context.Context, artifact *cloud.BlockingArtifact, mapping map[string]string) (*cloud.BlockingArtifact, error) {
	encoded := cloud.EncodeAssociationsSemicolon(mapping)
	firewalls, err := a.client.FindFirewalls(ctx, a.project, firewallName(artifact.Zone, artifact.FilterHash, ""))
	if err != nil {
		return nil, err
	}
	for _, fw := range firewalls {
		if err := a.client.PatchFirewallDescription(ctx, a.project, fw.Name, encoded); err != nil {
			return nil, err
		}
	}
	artifact.Associations = encoded
	return artifact, nil
}

// ReadOriginalAssociations parses the mapping persisted on the artifact.
func (a *Adapter) ReadOriginalAssociations(artifact *cloud.BlockingArtifact) (map[string]string, error) {
	return cloud.DecodeAssociationsSemicolon(artifact.Associations)
}
