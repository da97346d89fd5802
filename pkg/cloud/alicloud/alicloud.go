// Package alicloud implements the Cloud Provider Adapter for AlibabaCloud,
// via the generated alibabacloud-go ecs/vpc clients.
//
// Grounded on original_source/chaosgarden/alicloud/actions.py
// (get_or_create_block_acl/block_vpc/unblock_vpc): network ACLs are
// VPC-scoped and discovered by tag, the same shape as AWS, so this
// adapter mirrors pkg/cloud/aws's VPC-scoped escape hatch rather than
// inventing a different pattern.
package alicloud

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"

	ecs "github.com/alibabacloud-go/ecs-20140526/v4/client"
	vpc "github.com/alibabacloud-go/vpc-20160428/v6/client"

	"github.com/gardener/chaos-engineering/pkg/cloud"
)

const (
	zoneTagName                   = "gardener.cloud/chaos/zone"
	aclModeTagName                = "gardener.cloud/chaos/mode"
	vpcTagName                    = "gardener.cloud/chaos/vpc"
	originalAssociationsTagName   = "gardener.cloud/chaos/original-network-acl-associations"
)

// ECSAPI is the subset of the ECS client this adapter calls.
type ECSAPI interface {
	DescribeInstances(req *ecs.DescribeInstancesRequest) (*ecs.DescribeInstancesResponse, error)
	DeleteInstance(req *ecs.DeleteInstanceRequest) (*ecs.DeleteInstanceResponse, error)
	RebootInstance(req *ecs.RebootInstanceRequest) (*ecs.RebootInstanceResponse, error)
}

// VPCAPI is the subset of the VPC client this adapter calls.
type VPCAPI interface {
	DescribeVpcs(req *vpc.DescribeVpcsRequest) (*vpc.DescribeVpcsResponse, error)
	DescribeVSwitches(req *vpc.DescribeVSwitchesRequest) (*vpc.DescribeVSwitchesResponse, error)
	ListTagResources(req *vpc.ListTagResourcesRequest) (*vpc.ListTagResourcesResponse, error)
	CreateNetworkAcl(req *vpc.CreateNetworkAclRequest) (*vpc.CreateNetworkAclResponse, error)
	TagResources(req *vpc.TagResourcesRequest) (*vpc.TagResourcesResponse, error)
	UpdateNetworkAclEntries(req *vpc.UpdateNetworkAclEntriesRequest) (*vpc.UpdateNetworkAclEntriesResponse, error)
	DeleteNetworkAcl(req *vpc.DeleteNetworkAclRequest) (*vpc.DeleteNetworkAclResponse, error)
	AssociateNetworkAcl(req *vpc.AssociateNetworkAclRequest) (*vpc.AssociateNetworkAclResponse, error)
	UnassociateNetworkAcl(req *vpc.UnassociateNetworkAclRequest) (*vpc.UnassociateNetworkAclResponse, error)
}

// Adapter implements cloud.Adapter for AlibabaCloud.
type Adapter struct {
	ecs ECSAPI
	vpc VPCAPI
}

// New wraps the ECS and VPC clients.
func New(ecsClient ECSAPI, vpcClient VPCAPI) *Adapter {
	return &Adapter{ecs: ecsClient, vpc: vpcClient}
}

var _ cloud.Adapter = (*Adapter)(nil)

// FilterHash derives the deterministic filter-hash this adapter tags
// blocking ACLs with.
func FilterHash(filterDescription string) string {
	sum := md5.Sum([]byte(filterDescription))
	return hex.EncodeToString(sum[:])[:16]
}

func computeState(status *string) cloud.ComputeState {
	if status == nil {
		return cloud.ComputeOther
	}
	switch *status {
	case "Running":
		return cloud.ComputeRunning
	case "Stopping":
		return cloud.ComputeTerminating
	case "Stopped":
		return cloud.ComputeTerminated
	default:
		return cloud.ComputeOther
	}
}

// ListCompute lists ECS instances in zone matching filter's tags.
func (a *Adapter) ListCompute(ctx context.Context, zone string, filter cloud.ComputeFilter) ([]cloud.Instance, error) {
	out, err := a.ecs.DescribeInstances(&ecs.DescribeInstancesRequest{ZoneId: strp(zone)})
	if err != nil {
		return nil, err
	}
	var instances []cloud.Instance
	if out.Body == nil || out.Body.Instances == nil {
		return instances, nil
	}
	for _, inst := range out.Body.Instances.Instance {
		tags := map[string]string{}
		if inst.Tags != nil {
			for _, t := range inst.Tags.Tag {
				tags[derefStr(t.TagKey)] = derefStr(t.TagValue)
			}
		}
		if filter != nil && !filter.Matches(tags) {
			continue
		}
		instances = append(instances, cloud.Instance{ID: derefStr(inst.InstanceId), State: computeState(inst.Status), Zone: zone, Tags: tags})
	}
	return instances, nil
}

// TerminateCompute deletes the ECS instance.
func (a *Adapter) TerminateCompute(ctx context.Context, instance cloud.Instance) error {
	_, err := a.ecs.DeleteInstance(&ecs.DeleteInstanceRequest{InstanceId: strp(instance.ID), Force: boolp(true)})
	return err
}

// RestartCompute reboots the ECS instance.
func (a *Adapter) RestartCompute(ctx context.Context, instance cloud.Instance) error {
	_, err := a.ecs.RebootInstance(&ecs.RebootInstanceRequest{InstanceId: strp(instance.ID)})
	return err
}

// ListNetworks lists vSwitches (the AlibabaCloud analogue of a subnet) in
// zone matching filter's tags.
func (a *Adapter) ListNetworks(ctx context.Context, zone string, filter cloud.NetworkFilter) ([]cloud.Network, error) {
	out, err := a.vpc.DescribeVSwitches(&vpc.DescribeVSwitchesRequest{ZoneId: strp(zone)})
	if err != nil {
		return nil, err
	}
	var networks []cloud.Network
	if out.Body == nil || out.Body.VSwitches == nil {
		return networks, nil
	}
	for _, sw := range out.Body.VSwitches.VSwitch {
		tags := map[string]string{"vpcId": derefStr(sw.VpcId)}
		if filter != nil && !filter.Matches(tags) {
			continue
		}
		networks = append(networks, cloud.Network{ID: derefStr(sw.VSwitchId), Zone: zone, Tags: tags})
	}
	return networks, nil
}

// FindBlockingArtifact always returns an error: network ACLs are VPC-scoped,
// so lookups go through FindBlockingArtifactForVPC.
func (a *Adapter) FindBlockingArtifact(ctx context.Context, zone, filterHash string, mode cloud.Mode) (*cloud.BlockingArtifact, error) {
	return nil, fmt.Errorf("alicloud: FindBlockingArtifact requires a VPC id; use FindBlockingArtifactForVPC")
}

// FindBlockingArtifactForVPC is the AlibabaCloud-specific lookup, because
// network ACLs are VPC-scoped (mirrors aws.Adapter.CreateBlockingArtifactForVPC).
func (a *Adapter) FindBlockingArtifactForVPC(ctx context.Context, zone, filterHash, vpcID string, mode cloud.Mode) (*cloud.BlockingArtifact, error) {
	out, err := a.vpc.ListTagResources(&vpc.ListTagResourcesRequest{
		ResourceType: strp("ACL"),
		Tag: []*vpc.ListTagResourcesRequestTag{
			{Key: strp(aclModeTagName), Value: strp(string(mode))},
			{Key: strp(vpcTagName), Value: strp(vpcID)},
			{Key: strp(zoneTagName), Value: strp(zone)},
		},
	})
	if err != nil {
		return nil, err
	}
	if out.Body == nil || len(out.Body.TagResources) == 0 {
		return nil, nil
	}
	aclID := derefStr(out.Body.TagResources[0].ResourceId)
	associations := ""
	for _, res := range out.Body.TagResources {
		if derefStr(res.TagKey) == originalAssociationsTagName {
			associations = derefStr(res.TagValue)
		}
	}
	return &cloud.BlockingArtifact{ID: aclID, Zone: zone, FilterHash: filterHash, Mode: mode, Associations: associations}, nil
}

// CreateBlockingArtifact requires a VPC id; use CreateBlockingArtifactForVPC.
func (a *Adapter) CreateBlockingArtifact(ctx context.Context, zone, filterHash string, mode cloud.Mode) (*cloud.BlockingArtifact, error) {
	return nil, fmt.Errorf("alicloud: CreateBlockingArtifact requires a VPC id; use CreateBlockingArtifactForVPC")
}

// CreateBlockingArtifactForVPC creates a network ACL in vpcID with a
// drop-all entry per requested direction, tagged for rediscovery,
// mirroring get_or_create_block_acl.
func (a *Adapter) CreateBlockingArtifactForVPC(ctx context.Context, zone, filterHash, vpcID string, mode cloud.Mode) (*cloud.BlockingArtifact, error) {
	created, err := a.vpc.CreateNetworkAcl(&vpc.CreateNetworkAclRequest{
		VpcId:   strp(vpcID),
		AclName: strp(fmt.Sprintf("block_acl_%s_%s_%s", mode, filterHash, zone)),
	})
	if err != nil {
		return nil, err
	}
	aclID := derefStr(created.Body.NetworkAclId)
	_, err = a.vpc.TagResources(&vpc.TagResourcesRequest{
		ResourceType: strp("ACL"),
		ResourceId:   []*string{strp(aclID)},
		Tag: []*vpc.TagResourcesRequestTag{
			{Key: strp(aclModeTagName), Value: strp(string(mode))},
			{Key: strp(vpcTagName), Value: strp(vpcID)},
			{Key: strp(zoneTagName), Value: strp(zone)},
		},
	})
	if err != nil {
		return nil, err
	}
	var egress []*vpc.UpdateNetworkAclEntriesRequestEgressAclEntries
	var ingressEntries []*vpc.UpdateNetworkAclEntriesRequestIngressAclEntries
	if mode == cloud.Total || mode == cloud.Egress {
		egress = append(egress, &vpc.UpdateNetworkAclEntriesRequestEgressAclEntries{
			DestinationCidrIp: strp("0.0.0.0/0"), Policy: strp("drop"), Port: strp("-1/-1"), Protocol: strp("all"),
		})
	}
	if mode == cloud.Total || mode == cloud.Ingress {
		ingressEntries = append(ingressEntries, &vpc.UpdateNetworkAclEntriesRequestIngressAclEntries{
			SourceCidrIp: strp("0.0.0.0/0"), Policy: strp("drop"), Port: strp("-1/-1"), Protocol: strp("all"),
		})
	}
	if _, err := a.vpc.UpdateNetworkAclEntries(&vpc.UpdateNetworkAclEntriesRequest{
		AclId:             strp(aclID),
		EgressAclEntries:  egress,
		IngressAclEntries: ingressEntries,
	}); err != nil {
		_, _ = a.vpc.DeleteNetworkAcl(&vpc.DeleteNetworkAclRequest{AclId: strp(aclID)})
		return nil, err
	}
	return &cloud.BlockingArtifact{ID: aclID, Zone: zone, FilterHash: filterHash, Mode: mode}, nil
}

// DeleteBlockingArtifact deletes the network ACL.
func (a *Adapter) DeleteBlockingArtifact(ctx context.Context, artifact *cloud.BlockingArtifact) error {
	_, err := a.vpc.DeleteNetworkAcl(&vpc.DeleteNetworkAclRequest{AclId: strp(artifact.ID)})
	return err
}

// Associate associates resource's vSwitch with artifact's ACL, returning
// the prior ACL id carried on resource.Tags["aclId"].
func (a *Adapter) Associate(ctx context.Context, resource cloud.Network, artifact *cloud.BlockingArtifact) (string, error) {
	prior := resource.Tags["aclId"]
	_, err := a.vpc.AssociateNetworkAcl(&vpc.AssociateNetworkAclRequest{
		NetworkAclId: strp(artifact.ID),
		Resource: []*vpc.AssociateNetworkAclRequestResource{
			{ResourceId: strp(resource.ID), ResourceType: strp("VSwitch")},
		},
	})
	if err != nil {
		return "", err
	}
	return prior, nil
}

// Restore re-associates resource's vSwitch with its prior ACL.
func (a *Adapter) Restore(ctx context.Context, resource cloud.Network, prior string) error {
	if prior == "" {
		_, err := a.vpc.UnassociateNetworkAcl(&vpc.UnassociateNetworkAclRequest{
			NetworkAclId: strp(resource.Tags["aclId"]),
			Resource: []*vpc.UnassociateNetworkAclRequestResource{
				{ResourceId: strp(resource.ID), ResourceType: strp("VSwitch")},
			},
		})
		return err
	}
	_, err := a.vpc.AssociateNetworkAcl(&vpc.AssociateNetworkAclRequest{
		NetworkAclId: strp(prior),
		Resource: []*vpc.AssociateNetworkAclRequestResource{
			{ResourceId: strp(resource.ID), ResourceType: strp("VSwitch")},
		},
	})
	return err
}

// PersistOriginalAssociations writes the JSON-encoded mapping onto the
// ACL's own tag.
func (a *Adapter) PersistOriginalAssociations(ctx context.Context, artifact *cloud.BlockingArtifact, mapping map[string]string) (*cloud.BlockingArtifact, error) {
	encoded, err := cloud.EncodeAssociationsJSON(mapping)
	if err != nil {
		return nil, err
	}
	_, err = a.vpc.TagResources(&vpc.TagResourcesRequest{
		ResourceType: strp("ACL"),
		ResourceId:   []*string{strp(artifact.ID)},
		Tag:          []*vpc.TagResourcesRequestTag{{Key: strp(originalAssociationsTagName), Value: strp(encoded)}},
	})
	if err != nil {
		return nil, err
	}
	artifact.Associations = encoded
	return artifact, nil
}

// ReadOriginalAssociations parses the mapping persisted on the artifact.
func (a *Adapter) ReadOriginalAssociations(artifact *cloud.BlockingArtifact) (map[string]string, error) {
	return cloud.DecodeAssociationsJSON(artifact.Associations)
}

func strp(s string) *string   { return &s }
func boolp(b bool) *bool      { return &b }
func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
