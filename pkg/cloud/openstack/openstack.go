// Package openstack implements the Cloud Provider Adapter for OpenStack,
// via gophercloud. OpenStack has no network-ACL concept; the blocking
// artifact is a security group carrying a deny-all rule, exactly as the
// original source models it.
//
// Grounded on original_source/chaosgarden/openstack/{__init__,actions}.py.
package openstack

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/gophercloud/gophercloud"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/servers"
	"github.com/gophercloud/gophercloud/openstack/networking/v2/extensions/security/groups"
	"github.com/gophercloud/gophercloud/openstack/networking/v2/extensions/security/rules"

	"github.com/gardener/chaos-engineering/pkg/cloud"
)

// Adapter implements cloud.Adapter for OpenStack.
type Adapter struct {
	compute *gophercloud.ServiceClient
	network *gophercloud.ServiceClient
}

// New wraps OpenStack compute (Nova) and networking (Neutron) service
// clients.
func New(compute, network *gophercloud.ServiceClient) *Adapter {
	return &Adapter{compute: compute, network: network}
}

var _ cloud.Adapter = (*Adapter)(nil)

func securityGroupName(zone, filterHash string) string {
	return fmt.Sprintf("chaosgarden-block-%s-%s", filterHash, zone)
}

// FilterHash derives the deterministic filter-hash used in the security
// group name, matching the original's md5-of-filter-string scheme.
func FilterHash(filterDescription string) string {
	sum := md5.Sum([]byte(filterDescription))
	return hex.EncodeToString(sum[:])[:16]
}

// ListCompute lists Nova servers in zone (availability zone) matching
// filter's metadata.
func (a *Adapter) ListCompute(ctx context.Context, zone string, filter cloud.ComputeFilter) ([]cloud.Instance, error) {
	pager := servers.List(a.compute, servers.ListOpts{AvailabilityZone: zone})
	var instances []cloud.Instance
	err := pager.EachPage(ctx, func(_ context.Context, page gophercloud.Page) (bool, error) {
		list, err := servers.ExtractServers(page)
		if err != nil {
			return false, err
		}
		for _, s := range list {
			tags := map[string]string{}
			for k, v := range s.Metadata {
				if sv, ok := v.(string); ok {
					tags[k] = sv
				}
			}
			if filter != nil && !filter.Matches(tags) {
				continue
			}
			instances = append(instances, cloud.Instance{
				ID:         s.ID,
				State:      serverState(s.Status),
				LaunchTime: s.Created,
				Zone:       zone,
				Tags:       tags,
			})
		}
		return true, nil
	})
	if err != nil {
		return nil, wrapThrottle(err)
	}
	return instances, nil
}

func serverState(status string) cloud.ComputeState {
	switch status {
	case "ACTIVE":
		return cloud.ComputeRunning
	case "DELETED", "SOFT_DELETED":
		return cloud.ComputeTerminated
	case "SHUTOFF":
		return cloud.ComputeTerminating
	default:
		return cloud.ComputeOther
	}
}

// TerminateCompute deletes the Nova server.
func (a *Adapter) TerminateCompute(ctx context.Context, instance cloud.Instance) error {
	return wrapThrottle(servers.Delete(ctx, a.compute, instance.ID).Err)
}

// RestartCompute issues a soft reboot.
func (a *Adapter) RestartCompute(ctx context.Context, instance cloud.Instance) error {
	return wrapThrottle(servers.Reboot(ctx, a.compute, instance.ID, servers.RebootOpts{Type: servers.SoftReboot}).Err)
}

// ListNetworks returns every server in zone matching filter as a Network:
// the orchestrator targets server security-group membership directly
// instead of enumerating subnets, so Associate/Restore operate on the
// server ID carried in Network.ID.
func (a *Adapter) ListNetworks(ctx context.Context, zone string, filter cloud.NetworkFilter) ([]cloud.Network, error) {
	instances, err := a.ListCompute(ctx, zone, nil)
	if err != nil {
		return nil, err
	}
	var networks []cloud.Network
	for _, inst := range instances {
		if filter != nil && !filter.Matches(inst.Tags) {
			continue
		}
		networks = append(networks, cloud.Network{ID: inst.ID, Zone: zone, Tags: inst.Tags})
	}
	return networks, nil
}

// FindBlockingArtifact finds the deterministically-named security group.
func (a *Adapter) FindBlockingArtifact(ctx context.Context, zone, filterHash string, mode cloud.Mode) (*cloud.BlockingArtifact, error) {
	name := securityGroupName(zone, filterHash)
	var found *groups.SecGroup
	err := groups.List(a.network, groups.ListOpts{Name: name}).EachPage(ctx, func(_ context.Context, page gophercloud.Page) (bool, error) {
		list, err := groups.ExtractGroups(page)
		if err != nil {
			return false, err
		}
		if len(list) > 0 {
			found = &list[0]
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return nil, wrapThrottle(err)
	}
	if found == nil {
		return nil, nil
	}
	return &cloud.BlockingArtifact{ID: found.ID, Zone: zone, FilterHash: filterHash, Mode: mode, Associations: found.Description}, nil
}

// CreateBlockingArtifact creates a security group with a deny-all rule in
// the requested direction(s). Security groups in OpenStack only support
// allow rules natively; the "deny all" effect is achieved by creating an
// otherwise-empty group (no allow rules) and moving the resource's only
// membership to it, exactly as the original achieves "block" by
// replacement rather than an explicit deny entry.
func (a *Adapter) CreateBlockingArtifact(ctx context.Context, zone, filterHash string, mode cloud.Mode) (*cloud.BlockingArtifact, error) {
	name := securityGroupName(zone, filterHash)
	group, err := groups.Create(ctx, a.network, groups.CreateOpts{Name: name, Description: ""}).Extract()
	if err != nil {
		if isConflict(err) {
			return a.FindBlockingArtifact(ctx, zone, filterHash, mode)
		}
		return nil, wrapThrottle(err)
	}
	directions := []rules.RuleDirection{rules.DirIngress, rules.DirEgress}
	if mode == cloud.Ingress {
		directions = []rules.RuleDirection{rules.DirIngress}
	} else if mode == cloud.Egress {
		directions = []rules.RuleDirection{rules.DirEgress}
	}
	for _, dir := range directions {
		_, err := rules.Create(ctx, a.network, rules.CreateOpts{
			Direction:      dir,
			SecGroupID:     group.ID,
			EtherType:      rules.EtherType4,
			Protocol:       "",
			RemoteIPPrefix: "0.0.0.0/0",
		}).Extract()
		if err != nil {
			return nil, wrapThrottle(err)
		}
	}
	return &cloud.BlockingArtifact{ID: group.ID, Zone: zone, FilterHash: filterHash, Mode: mode}, nil
}

func isConflict(err error) bool {
	var conflict gophercloud.ErrDefault409
	return errorsAs(err, &conflict)
}

// DeleteBlockingArtifact deletes the security group; a 404 is success.
func (a *Adapter) DeleteBlockingArtifact(ctx context.Context, artifact *cloud.BlockingArtifact) error {
	err := groups.Delete(ctx, a.network, artifact.ID).ExtractErr()
	if isNotFound(err) {
		return nil
	}
	return wrapThrottle(err)
}

func isNotFound(err error) bool {
	var notFound gophercloud.ErrDefault404
	return errorsAs(err, &notFound)
}

// Associate swaps the server's security-group membership to the blocking
// group, returning the name of the prior group (there is exactly one, by
// convention of this adapter's target servers).
func (a *Adapter) Associate(ctx context.Context, resource cloud.Network, artifact *cloud.BlockingArtifact) (string, error) {
	prior := resource.Tags["securityGroup"]
	if err := servers.RemoveSecurityGroup(ctx, a.compute, resource.ID, prior).ExtractErr(); err != nil {
		return "", wrapThrottle(err)
	}
	if err := servers.AddSecurityGroup(ctx, a.compute, resource.ID, artifact.ID).ExtractErr(); err != nil {
		return "", wrapThrottle(err)
	}
	return prior, nil
}

// Restore swaps the server back to its prior security group.
func (a *Adapter) Restore(ctx context.Context, resource cloud.Network, prior string) error {
	blocking := resource.Tags["blockingGroup"]
	if blocking != "" {
		if err := servers.RemoveSecurityGroup(ctx, a.compute, resource.ID, blocking).ExtractErr(); err != nil {
			return wrapThrottle(err)
		}
	}
	return wrapThrottle(servers.AddSecurityGroup(ctx, a.compute, resource.ID, prior).ExtractErr())
}

// PersistOriginalAssociations writes the semicolon-separated mapping into
// the security group's description field.
func (a *Adapter) PersistOriginalAssociations(ctx context.Context, artifact *cloud.BlockingArtifact, mapping map[string]string) (*cloud.BlockingArtifact, error) {
	encoded := cloud.EncodeAssociationsSemicolon(mapping)
	_, err := groups.Update(ctx, a.network, artifact.ID, groups.UpdateOpts{Description: &encoded}).Extract()
	if err != nil {
		return nil, wrapThrottle(err)
	}
	artifact.Associations = encoded
	return artifact, nil
}

// ReadOriginalAssociations parses the mapping from the artifact's
// description field; the canonical source of truth for rollback.
func (a *Adapter) ReadOriginalAssociations(artifact *cloud.BlockingArtifact) (map[string]string, error) {
	return cloud.DecodeAssociationsSemicolon(artifact.Associations)
}

func wrapThrottle(err error) error {
	if err == nil {
		return nil
	}
	var tooMany gophercloud.ErrDefault429
	if errorsAs(err, &tooMany) {
		return &cloud.Throttled{Err: err}
	}
	return err
}

func errorsAs(err error, target interface{}) bool {
	switch t := target.(type) {
	case *gophercloud.ErrDefault409:
		e, ok := err.(gophercloud.ErrDefault409)
		if ok {
			*t = e
		}
		return ok
	case *gophercloud.ErrDefault404:
		e, ok := err.(gophercloud.ErrDefault404)
		if ok {
			*t = e
		}
		return ok
	case *gophercloud.ErrDefault429:
		e, ok := err.(gophercloud.ErrDefault429)
		if ok {
			*t = e
		}
		return ok
	}
	return false
}
