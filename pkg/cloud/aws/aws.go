// Package aws implements the Cloud Provider Adapter for AWS EC2/VPC, via
// aws-sdk-go-v2.
//
// Grounded on original_source/chaosgarden/aws/actions.py
// (block_vpc/unblock_vpc, run_compute_failure_simulation).
package aws

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"

	"github.com/gardener/chaos-engineering/pkg/cloud"
)

const originalNetworkACLAssociationsTag = "gardener.cloud/chaos/original-network-acl-associations"

// EC2API is the subset of the EC2 client this adapter calls, to keep the
// package unit-testable against a fake.
type EC2API interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	TerminateInstances(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error)
	RebootInstances(ctx context.Context, params *ec2.RebootInstancesInput, optFns ...func(*ec2.Options)) (*ec2.RebootInstancesOutput, error)
	DescribeVpcs(ctx context.Context, params *ec2.DescribeVpcsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error)
	DescribeSubnets(ctx context.Context, params *ec2.DescribeSubnetsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error)
	DescribeNetworkAcls(ctx context.Context, params *ec2.DescribeNetworkAclsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeNetworkAclsOutput, error)
	CreateNetworkAcl(ctx context.Context, params *ec2.CreateNetworkAclInput, optFns ...func(*ec2.Options)) (*ec2.CreateNetworkAclOutput, error)
	CreateNetworkAclEntry(ctx context.Context, params *ec2.CreateNetworkAclEntryInput, optFns ...func(*ec2.Options)) (*ec2.CreateNetworkAclEntryOutput, error)
	CreateTags(ctx context.Context, params *ec2.CreateTagsInput, optFns ...func(*ec2.Options)) (*ec2.CreateTagsOutput, error)
	ReplaceNetworkAclAssociation(ctx context.Context, params *ec2.ReplaceNetworkAclAssociationInput, optFns ...func(*ec2.Options)) (*ec2.ReplaceNetworkAclAssociationOutput, error)
	DeleteNetworkAcl(ctx context.Context, params *ec2.DeleteNetworkAclInput, optFns ...func(*ec2.Options)) (*ec2.DeleteNetworkAclOutput, error)
}

// Adapter implements cloud.Adapter for AWS.
type Adapter struct {
	client EC2API
}

// New wraps an EC2 client.
func New(client EC2API) *Adapter {
	return &Adapter{client: client}
}

var _ cloud.Adapter = (*Adapter)(nil)

func blockingTagName(zone, filterHash string) string {
	return fmt.Sprintf("gardener.cloud/chaos/chaosgarden-block-%s-%s", filterHash, zone)
}

func computeState(s ec2types.InstanceStateName) cloud.ComputeState {
	switch s {
	case ec2types.InstanceStateNameRunning:
		return cloud.ComputeRunning
	case ec2types.InstanceStateNameShuttingDown:
		return cloud.ComputeTerminating
	case ec2types.InstanceStateNameTerminated:
		return cloud.ComputeTerminated
	default:
		return cloud.ComputeOther
	}
}

func wrapThrottle(err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if ok := asSmithyAPIError(err, &apiErr); ok {
		switch apiErr.ErrorCode() {
		case "RequestLimitExceeded", "Throttling", "ThrottlingException":
			return &cloud.Throttled{Err: err}
		}
	}
	return err
}

// asSmithyAPIError is a small indirection so unit tests can stub error
// classification without depending on concrete smithy internals.
func asSmithyAPIError(err error, target *smithy.APIError) bool {
	type apiError interface {
		ErrorCode() string
		ErrorMessage() string
		ErrorFault() smithy.ErrorFault
	}
	ae, ok := err.(apiError)
	if !ok {
		return false
	}
	*target = ae.(smithy.APIError)
	return true
}

// ListCompute lists EC2 instances in zone matching filter's tags.
func (a *Adapter) ListCompute(ctx context.Context, zone string, filter cloud.ComputeFilter) ([]cloud.Instance, error) {
	out, err := a.client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("availability-zone"), Values: []string{zone}},
		},
	})
	if err != nil {
		return nil, wrapThrottle(err)
	}
	var instances []cloud.Instance
	for _, res := range out.Reservations {
		for _, inst := range res.Instances {
			tags := map[string]string{}
			for _, t := range inst.Tags {
				tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
			}
			if filter != nil && !filter.Matches(tags) {
				continue
			}
			instance := cloud.Instance{
				ID:    aws.ToString(inst.InstanceId),
				State: computeState(inst.State.Name),
				Zone:  zone,
				Tags:  tags,
			}
			if inst.LaunchTime != nil {
				instance.LaunchTime = *inst.LaunchTime
			}
			instances = append(instances, instance)
		}
	}
	return instances, nil
}

// TerminateCompute calls ec2:TerminateInstances.
func (a *Adapter) TerminateCompute(ctx context.Context, instance cloud.Instance) error {
	_, err := a.client.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: []string{instance.ID}})
	return wrapThrottle(err)
}

// RestartCompute calls ec2:RebootInstances.
func (a *Adapter) RestartCompute(ctx context.Context, instance cloud.Instance) error {
	_, err := a.client.RebootInstances(ctx, &ec2.RebootInstancesInput{InstanceIds: []string{instance.ID}})
	return wrapThrottle(err)
}

// ListNetworks lists subnets in zone matching filter's tags.
func (a *Adapter) ListNetworks(ctx context.Context, zone string, filter cloud.NetworkFilter) ([]cloud.Network, error) {
	out, err := a.client.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("availabilityZone"), Values: []string{zone}},
		},
	})
	if err != nil {
		return nil, wrapThrottle(err)
	}
	var networks []cloud.Network
	for _, subnet := range out.Subnets {
		tags := map[string]string{}
		for _, t := range subnet.Tags {
			tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
		}
		if filter != nil && !filter.Matches(tags) {
			continue
		}
		networks = append(networks, cloud.Network{ID: aws.ToString(subnet.SubnetId), Zone: zone, Tags: tags})
	}
	return networks, nil
}

// FindBlockingArtifact locates a previously created blocking network ACL by
// its deterministic tag.
func (a *Adapter) FindBlockingArtifact(ctx context.Context, zone, filterHash string, mode cloud.Mode) (*cloud.BlockingArtifact, error) {
	out, err := a.client.DescribeNetworkAcls(ctx, &ec2.DescribeNetworkAclsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("tag-key"), Values: []string{blockingTagName(zone, filterHash)}},
		},
	})
	if err != nil {
		return nil, wrapThrottle(err)
	}
	if len(out.NetworkAcls) == 0 {
		return nil, nil
	}
	acl := out.NetworkAcls[0]
	var associations string
	for _, t := range acl.Tags {
		if aws.ToString(t.Key) == originalNetworkACLAssociationsTag {
			associations = aws.ToString(t.Value)
		}
	}
	return &cloud.BlockingArtifact{
		ID:         aws.ToString(acl.NetworkAclId),
		Zone:       zone,
		FilterHash: filterHash,
		Mode:       mode,
		Associations: associations,
	}, nil
}

// CreateBlockingArtifact always returns an error: EC2's CreateNetworkAcl
// API needs a vpcID, which this provider-agnostic signature cannot carry (a
// single filter may span several VPCs, one artifact per VPC). Creation goes
// through CreateBlockingArtifactForVPC.
func (a *Adapter) CreateBlockingArtifact(ctx context.Context, zone, filterHash string, mode cloud.Mode) (*cloud.BlockingArtifact, error) {
	return nil, fmt.Errorf("aws: CreateBlockingArtifact requires a VPC ID; use CreateBlockingArtifactForVPC")
}

// CreateBlockingArtifactForVPC is the AWS-specific entry point the
// orchestrator uses instead of the provider-agnostic CreateBlockingArtifact,
// because EC2 network ACLs are scoped to a VPC. A 409 from AWS (ACL already
// tagged, i.e. found by FindBlockingArtifact) is handled by the caller
// calling FindBlockingArtifact first, per the orchestrator's setup flow.
func (a *Adapter) CreateBlockingArtifactForVPC(ctx context.Context, zone, filterHash, vpcID string, mode cloud.Mode) (*cloud.BlockingArtifact, error) {
	tagName := blockingTagName(zone, filterHash)
	out, err := a.client.CreateNetworkAcl(ctx, &ec2.CreateNetworkAclInput{
		VpcId: aws.String(vpcID),
		TagSpecifications: []ec2types.TagSpecification{{
			ResourceType: ec2types.ResourceTypeNetworkAcl,
			Tags: []ec2types.Tag{
				{Key: aws.String(tagName), Value: aws.String("1")},
			},
		}},
	})
	if err != nil {
		return nil, wrapThrottle(err)
	}
	aclID := aws.ToString(out.NetworkAcl.NetworkAclId)

	directions := []bool{false, true} // ingress, egress
	if mode == cloud.Ingress {
		directions = []bool{false}
	} else if mode == cloud.Egress {
		directions = []bool{true}
	}
	for _, egress := range directions {
		_, err := a.client.CreateNetworkAclEntry(ctx, &ec2.CreateNetworkAclEntryInput{
			NetworkAclId: aws.String(aclID),
			CidrBlock:    aws.String("0.0.0.0/0"),
			Egress:       aws.Bool(egress),
			PortRange:    &ec2types.PortRange{From: aws.Int32(0), To: aws.Int32(65535)},
			Protocol:     aws.String("-1"),
			RuleAction:   ec2types.RuleActionDeny,
			RuleNumber:   aws.Int32(1),
		})
		if err != nil {
			return nil, wrapThrottle(err)
		}
	}
	return &cloud.BlockingArtifact{ID: aclID, Zone: zone, FilterHash: filterHash, Mode: mode}, nil
}

// DeleteBlockingArtifact deletes the network ACL. A 404
// (InvalidNetworkAclID.NotFound) is treated as success and returns nil.
func (a *Adapter) DeleteBlockingArtifact(ctx context.Context, artifact *cloud.BlockingArtifact) error {
	_, err := a.client.DeleteNetworkAcl(ctx, &ec2.DeleteNetworkAclInput{NetworkAclId: aws.String(artifact.ID)})
	if isNotFound(err) {
		return nil
	}
	return wrapThrottle(err)
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if asSmithyAPIError(err, &apiErr) {
		return apiErr.ErrorCode() == "InvalidNetworkAclID.NotFound"
	}
	return false
}

// Associate replaces the subnet's network ACL association with the
// blocking artifact's ACL, returning the prior network ACL id (taken from
// resource.Tags["aclId"]).
//
// AWS requires the current association ID (not the subnet ID) to perform
// the replace; resource.Tags["associationId"] carries it, populated by
// ListNetworks callers via DescribeNetworkAcls prior to calling Associate.
func (a *Adapter) Associate(ctx context.Context, resource cloud.Network, artifact *cloud.BlockingArtifact) (string, error) {
	assocID := resource.Tags["associationId"]
	priorACLID := resource.Tags["aclId"]
	_, err := a.client.ReplaceNetworkAclAssociation(ctx, &ec2.ReplaceNetworkAclAssociationInput{
		AssociationId: aws.String(assocID),
		NetworkAclId:  aws.String(artifact.ID),
	})
	if err != nil {
		return "", wrapThrottle(err)
	}
	return priorACLID, nil
}

// Restore re-associates resource's subnet with its prior ACL.
func (a *Adapter) Restore(ctx context.Context, resource cloud.Network, prior string) error {
	assocID := resource.Tags["associationId"]
	_, err := a.client.ReplaceNetworkAclAssociation(ctx, &ec2.ReplaceNetworkAclAssociationInput{
		AssociationId: aws.String(assocID),
		NetworkAclId:  aws.String(prior),
	})
	return wrapThrottle(err)
}

// PersistOriginalAssociations writes the semicolon-separated mapping onto
// the ACL's own tag, per spec §6.
func (a *Adapter) PersistOriginalAssociations(ctx context.Context, artifact *cloud.BlockingArtifact, mapping map[string]string) (*cloud.BlockingArtifact, error) {
	encoded := cloud.EncodeAssociationsSemicolon(mapping)
	_, err := a.client.CreateTags(ctx, &ec2.CreateTagsInput{
		Resources: []string{artifact.ID},
		Tags:      []ec2types.Tag{{Key: aws.String(originalNetworkACLAssociationsTag), Value: aws.String(encoded)}},
	})
	if err != nil {
		return nil, wrapThrottle(err)
	}
	artifact.Associations = encoded
	return artifact, nil
}

// ReadOriginalAssociations parses the semicolon-separated mapping from the
// artifact's own record; this is the rollback source of truth.
func (a *Adapter) ReadOriginalAssociations(artifact *cloud.BlockingArtifact) (map[string]string, error) {
	return cloud.DecodeAssociationsSemicolon(artifact.Associations)
}

// FilterHash derives the deterministic filter-hash component of a blocking
// artifact's tag name, matching the original's md5-of-filter-string scheme.
func FilterHash(filterDescription string) string {
	sum := md5.Sum([]byte(filterDescription))
	return hex.EncodeToString(sum[:])[:16]
}
