// Package azure implements the Cloud Provider Adapter for Azure, via
// armcompute/armnetwork.
//
// Grounded on original_source/chaosgarden/azure/actions.py
// (block_virtual_machines/unblock_virtual_machines, the NSG-per-NIC
// association scheme).
package azure

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	armnetwork "github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork/v6"

	"github.com/gardener/chaos-engineering/pkg/cloud"
)

const originalNetworkSecurityGroupTag = "gardener.cloud-chaos-original-network-security-group"

// VM is the provider-independent shape of a virtual machine this adapter
// needs, decoupled from the armcompute response envelope so Client can be
// faked without constructing SDK response types.
type VM struct {
	Name string
	Tags map[string]string
}

// NIC mirrors the handful of armnetwork.Interface fields the blocking
// protocol touches.
type NIC struct {
	Name                  string
	VirtualMachineName    string
	NetworkSecurityGroupID string
	Tags                  map[string]string
}

// NSG mirrors the armnetwork.SecurityGroup fields this adapter needs.
type NSG struct {
	ID   string
	Name string
	Tags map[string]string
}

// Client is the subset of Azure operations this adapter calls, narrowed to
// keep the package unit-testable against a fake rather than against
// azcore's poller/pipeline machinery directly.
type Client interface {
	ListVMs(ctx context.Context, resourceGroup, zone string) ([]VM, error)
	DeleteVM(ctx context.Context, resourceGroup, vmName string) error
	RestartVM(ctx context.Context, resourceGroup, vmName string) error

	ListNICs(ctx context.Context, resourceGroup string) ([]NIC, error)
	UpdateNICSecurityGroup(ctx context.Context, resourceGroup string, nic NIC, nsgID string, tags map[string]string) error

	ListNSGs(ctx context.Context, resourceGroup string) ([]NSG, error)
	CreateNSG(ctx context.Context, resourceGroup, region string, nsg armnetwork.SecurityGroup) (NSG, error)
	DeleteNSG(ctx context.Context, resourceGroup, name string) error
	TagNSG(ctx context.Context, resourceGroup, name string, tags map[string]string) (NSG, error)
}

// Adapter implements cloud.Adapter for Azure, scoped to a single resource
// group and region (matching the original's configuration shape, where
// both are process-wide settings rather than per-call parameters).
type Adapter struct {
	client        Client
	resourceGroup string
	region        string
}

// New wraps an Azure Client plus the resource group/region it was
// constructed against.
func New(client Client, resourceGroup, region string) *Adapter {
	return &Adapter{client: client, resourceGroup: resourceGroup, region: region}
}

var _ cloud.Adapter = (*Adapter)(nil)

func securityGroupName(region, zone, filterHash string) string {
	return fmt.Sprintf("chaosgarden-block-%s-%s-%s", filterHash, region, zone)
}

// FilterHash derives the deterministic filter-hash used in the NSG name,
// matching the original's md5-of-filter-string scheme.
func FilterHash(filterDescription string) string {
	sum := md5.Sum([]byte(filterDescription))
	return hex.EncodeToString(sum[:])[:16]
}

// ListCompute lists virtual machines in zone matching filter's tags.
// Azure VM resources carry neither a lifecycle state nor a creation
// timestamp in the original's own data model, so every listed VM reports
// ComputeRunning and is therefore eligible for both terminate and restart
// in the orchestrator's compute-failure loop.
func (a *Adapter) ListCompute(ctx context.Context, zone string, filter cloud.ComputeFilter) ([]cloud.Instance, error) {
	vms, err := a.client.ListVMs(ctx, a.resourceGroup, zone)
	if err != nil {
		return nil, err
	}
	var instances []cloud.Instance
	for _, vm := range vms {
		if filter != nil && !filter.Matches(vm.Tags) {
			continue
		}
		instances = append(instances, cloud.Instance{ID: vm.Name, State: cloud.ComputeRunning, Zone: zone, Tags: vm.Tags})
	}
	return instances, nil
}

// TerminateCompute deletes the virtual machine.
func (a *Adapter) TerminateCompute(ctx context.Context, instance cloud.Instance) error {
	return a.client.DeleteVM(ctx, a.resourceGroup, instance.ID)
}

// RestartCompute restarts the virtual machine.
func (a *Adapter) RestartCompute(ctx context.Context, instance cloud.Instance) error {
	return a.client.RestartVM(ctx, a.resourceGroup, instance.ID)
}

// ListNetworks lists NICs attached to VMs matching filter's tags. The
// Network.ID is the NIC name; Network.Tags carries the owning VM name
// under "virtualMachine" and the current NSG id under "networkSecurityGroup"
// so Associate/Restore don't need a second round trip.
func (a *Adapter) ListNetworks(ctx context.Context, zone string, filter cloud.NetworkFilter) ([]cloud.Network, error) {
	vms, err := a.client.ListVMs(ctx, a.resourceGroup, zone)
	if err != nil {
		return nil, err
	}
	byName := map[string]VM{}
	for _, vm := range vms {
		byName[vm.Name] = vm
	}
	nics, err := a.client.ListNICs(ctx, a.resourceGroup)
	if err != nil {
		return nil, err
	}
	var networks []cloud.Network
	for _, nic := range nics {
		vm, ok := byName[nic.VirtualMachineName]
		if !ok {
			continue
		}
		if filter != nil && !filter.Matches(vm.Tags) {
			continue
		}
		networks = append(networks, cloud.Network{
			ID:   nic.Name,
			Zone: zone,
			Tags: map[string]string{"virtualMachine": vm.Name, "networkSecurityGroup": nic.NetworkSecurityGroupID},
		})
	}
	return networks, nil
}

// FindBlockingArtifact finds the deterministically-named NSG.
func (a *Adapter) FindBlockingArtifact(ctx context.Context, zone, filterHash string, mode cloud.Mode) (*cloud.BlockingArtifact, error) {
	name := securityGroupName(a.region, zone, filterHash)
	nsgs, err := a.client.ListNSGs(ctx, a.resourceGroup)
	if err != nil {
		return nil, err
	}
	for _, nsg := range nsgs {
		if nsg.Name == name {
			return &cloud.BlockingArtifact{ID: nsg.ID, Zone: zone, FilterHash: filterHash, Mode: mode, Associations: nsg.Tags[originalNetworkSecurityGroupTag]}, nil
		}
	}
	return nil, nil
}

// CreateBlockingArtifact creates an NSG with a DenyAll rule at priority 100
// (the highest precedence Azure allows) per requested direction, mirroring
// create_blocking_network_security_group.
func (a *Adapter) CreateBlockingArtifact(ctx context.Context, zone, filterHash string, mode cloud.Mode) (*cloud.BlockingArtifact, error) {
	name := securityGroupName(a.region, zone, filterHash)
	modes := []string{"ingress", "egress"}
	if mode == cloud.Ingress {
		modes = []string{"ingress"}
	} else if mode == cloud.Egress {
		modes = []string{"egress"}
	}
	var rules []*armnetwork.SecurityRule
	for _, m := range modes {
		direction := armnetwork.SecurityRuleDirectionInbound
		if m == "egress" {
			direction = armnetwork.SecurityRuleDirectionOutbound
		}
		priority := int32(100)
		access := armnetwork.SecurityRuleAccessDeny
		protocol := armnetwork.SecurityRuleProtocolAsterisk
		star := "*"
		title := strings.ToUpper(m[:1]) + m[1:]
		rules = append(rules, &armnetwork.SecurityRule{
			Name: ptr("DenyAll" + title),
			Properties: &armnetwork.SecurityRulePropertiesFormat{
				Priority:                 &priority,
				Access:                   &access,
				Direction:                &direction,
				Protocol:                 &protocol,
				SourceAddressPrefix:      &star,
				SourcePortRange:          &star,
				DestinationAddressPrefix: &star,
				DestinationPortRange:     &star,
			},
		})
	}
	nsg := armnetwork.SecurityGroup{
		Name:     ptr(name),
		Location: ptr(a.region),
		Properties: &armnetwork.SecurityGroupPropertiesFormat{
			SecurityRules: rules,
		},
	}
	created, err := a.client.CreateNSG(ctx, a.resourceGroup, a.region, nsg)
	if err != nil {
		return nil, err
	}
	return &cloud.BlockingArtifact{ID: created.ID, Zone: zone, FilterHash: filterHash, Mode: mode}, nil
}

// DeleteBlockingArtifact deletes the NSG.
func (a *Adapter) DeleteBlockingArtifact(ctx context.Context, artifact *cloud.BlockingArtifact) error {
	name := securityGroupName(a.region, artifact.Zone, artifact.FilterHash)
	return a.client.DeleteNSG(ctx, a.resourceGroup, name)
}

// Associate moves resource's NIC onto artifact's NSG, returning the prior
// NSG id (empty string if the NIC had none), mirroring
// block_virtual_machines's tag-then-swap sequence.
func (a *Adapter) Associate(ctx context.Context, resource cloud.Network, artifact *cloud.BlockingArtifact) (string, error) {
	prior := resource.Tags["networkSecurityGroup"]
	nic := NIC{Name: resource.ID, VirtualMachineName: resource.Tags["virtualMachine"]}
	if err := a.client.UpdateNICSecurityGroup(ctx, a.resourceGroup, nic, artifact.ID, map[string]string{originalNetworkSecurityGroupTag: prior}); err != nil {
		return "", err
	}
	return prior, nil
}

// Restore moves resource's NIC back to its prior NSG, clearing the
// original-NSG tag, mirroring unblock_virtual_machines.
func (a *Adapter) Restore(ctx context.Context, resource cloud.Network, prior string) error {
	nic := NIC{Name: resource.ID, VirtualMachineName: resource.Tags["virtualMachine"]}
	return a.client.UpdateNICSecurityGroup(ctx, a.resourceGroup, nic, prior, nil)
}

// PersistOriginalAssociations writes the JSON-encoded mapping onto the
// NSG's own tags, per spec §6's self-describing-artifact requirement. This
// is kept distinct from the per-NIC originalNetworkSecurityGroupTag set by
// Associate: Associate records one NIC's prior NSG for Restore to consume
// directly, while this records the full resourceID->priorNSG map on the
// artifact so a crashed-and-restarted process can rediscover it without
// re-deriving it from NIC state.
func (a *Adapter) PersistOriginalAssociations(ctx context.Context, artifact *cloud.BlockingArtifact, mapping map[string]string) (*cloud.BlockingArtifact, error) {
	encoded, err := cloud.EncodeAssociationsJSON(mapping)
	if err != nil {
		return nil, err
	}
	name := securityGroupName(a.region, artifact.Zone, artifact.FilterHash)
	updated, err := a.client.TagNSG(ctx, a.resourceGroup, name, map[string]string{originalNetworkSecurityGroupTag: encoded})
	if err != nil {
		return nil, err
	}
	artifact.Associations = updated.Tags[originalNetworkSecurityGroupTag]
	return artifact, nil
}

// ReadOriginalAssociations parses the mapping persisted on the artifact.
func (a *Adapter) ReadOriginalAssociations(artifact *cloud.BlockingArtifact) (map[string]string, error) {
	return cloud.DecodeAssociationsJSON(artifact.Associations)
}

func ptr[T any](v T) *T { return &v }
