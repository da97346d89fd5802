package factory

import (
	"context"
	"fmt"
	"path"

	armcompute "github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v6"
	armnetwork "github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/network/armnetwork/v6"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	"github.com/gardener/chaos-engineering/pkg/cloud"
	azureadapter "github.com/gardener/chaos-engineering/pkg/cloud/azure"
)

// newAzure authenticates with a client-secret credential and wraps the
// armcompute/armnetwork SDK clients in azureClient, which narrows them down
// to azureadapter.Client the same way the adapter itself narrows the SDK.
func newAzure(ctx context.Context, configuration, secrets map[string]string) (cloud.Adapter, error) {
	subscriptionID := configuration["azure_subscription_id"]
	region := configuration["azure_region"]
	resourceGroup := configuration["azure_resource_group"]
	if subscriptionID == "" || region == "" || resourceGroup == "" {
		return nil, fmt.Errorf("factory: azure configuration incomplete")
	}

	cred, err := azidentity.NewClientSecretCredential(secrets["tenant_id"], secrets["client_id"], secrets["client_secret"], nil)
	if err != nil {
		return nil, fmt.Errorf("factory: building azure credential: %w", err)
	}

	vmClient, err := armcompute.NewVirtualMachinesClient(subscriptionID, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("factory: building azure virtual machines client: %w", err)
	}
	nicClient, err := armnetwork.NewInterfacesClient(subscriptionID, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("factory: building azure interfaces client: %w", err)
	}
	nsgClient, err := armnetwork.NewSecurityGroupsClient(subscriptionID, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("factory: building azure security groups client: %w", err)
	}

	client := &azureClient{vm: vmClient, nic: nicClient, nsg: nsgClient}
	return azureadapter.New(client, resourceGroup, region), nil
}

// azureClient implements azureadapter.Client against the real armcompute/
// armnetwork SDK clients.
type azureClient struct {
	vm  *armcompute.VirtualMachinesClient
	nic *armnetwork.InterfacesClient
	nsg *armnetwork.SecurityGroupsClient
}

func (c *azureClient) ListVMs(ctx context.Context, resourceGroup, zone string) ([]azureadapter.VM, error) {
	var out []azureadapter.VM
	pager := c.vm.NewListPager(resourceGroup, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, v := range page.Value {
			if zone != "" && !hasZone(v.Zones, zone) {
				continue
			}
			out = append(out, azureadapter.VM{Name: derefStr(v.Name), Tags: strMap(v.Tags)})
		}
	}
	return out, nil
}

func (c *azureClient) DeleteVM(ctx context.Context, resourceGroup, vmName string) error {
	poller, err := c.vm.BeginDelete(ctx, resourceGroup, vmName, nil)
	if err != nil {
		return err
	}
	_, err = poller.PollUntilDone(ctx, nil)
	return err
}

func (c *azureClient) RestartVM(ctx context.Context, resourceGroup, vmName string) error {
	poller, err := c.vm.BeginRestart(ctx, resourceGroup, vmName, nil)
	if err != nil {
		return err
	}
	_, err = poller.PollUntilDone(ctx, nil)
	return err
}

func (c *azureClient) ListNICs(ctx context.Context, resourceGroup string) ([]azureadapter.NIC, error) {
	var out []azureadapter.NIC
	pager := c.nic.NewListPager(resourceGroup, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, n := range page.Value {
			nic := azureadapter.NIC{Name: derefStr(n.Name), Tags: strMap(n.Tags)}
			if n.Properties != nil {
				if n.Properties.VirtualMachine != nil {
					nic.VirtualMachineName = path.Base(derefStr(n.Properties.VirtualMachine.ID))
				}
				if n.Properties.NetworkSecurityGroup != nil {
					nic.NetworkSecurityGroupID = derefStr(n.Properties.NetworkSecurityGroup.ID)
				}
			}
			out = append(out, nic)
		}
	}
	return out, nil
}

func (c *azureClient) UpdateNICSecurityGroup(ctx context.Context, resourceGroup string, nic azureadapter.NIC, nsgID string, tags map[string]string) error {
	current, err := c.nic.Get(ctx, resourceGroup, nic.Name, nil)
	if err != nil {
		return err
	}
	if current.Properties == nil {
		current.Properties = &armnetwork.InterfacePropertiesFormat{}
	}
	current.Properties.NetworkSecurityGroup = &armnetwork.SecurityGroup{ID: ptrStr(nsgID)}
	current.Tags = ptrMap(tags)

	poller, err := c.nic.BeginCreateOrUpdate(ctx, resourceGroup, nic.Name, current.Interface, nil)
	if err != nil {
		return err
	}
	_, err = poller.PollUntilDone(ctx, nil)
	return err
}

func (c *azureClient) ListNSGs(ctx context.Context, resourceGroup string) ([]azureadapter.NSG, error) {
	var out []azureadapter.NSG
	pager := c.nsg.NewListPager(resourceGroup, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, n := range page.Value {
			out = append(out, azureadapter.NSG{ID: derefStr(n.ID), Name: derefStr(n.Name), Tags: strMap(n.Tags)})
		}
	}
	return out, nil
}

func (c *azureClient) CreateNSG(ctx context.Context, resourceGroup, region string, nsg armnetwork.SecurityGroup) (azureadapter.NSG, error) {
	poller, err := c.nsg.BeginCreateOrUpdate(ctx, resourceGroup, derefStr(nsg.Name), nsg, nil)
	if err != nil {
		return azureadapter.NSG{}, err
	}
	result, err := poller.PollUntilDone(ctx, nil)
	if err != nil {
		return azureadapter.NSG{}, err
	}
	return azureadapter.NSG{ID: derefStr(result.ID), Name: derefStr(result.Name), Tags: strMap(result.Tags)}, nil
}

func (c *azureClient) DeleteNSG(ctx context.Context, resourceGroup, name string) error {
	poller, err := c.nsg.BeginDelete(ctx, resourceGroup, name, nil)
	if err != nil {
		return err
	}
	_, err = poller.PollUntilDone(ctx, nil)
	return err
}

func (c *azureClient) TagNSG(ctx context.Context, resourceGroup, name string, tags map[string]string) (azureadapter.NSG, error) {
	current, err := c.nsg.Get(ctx, resourceGroup, name, nil)
	if err != nil {
		return azureadapter.NSG{}, err
	}
	current.Tags = ptrMap(tags)
	return c.CreateNSG(ctx, resourceGroup, "", current.SecurityGroup)
}

func hasZone(zones []*string, zone string) bool {
	for _, z := range zones {
		if derefStr(z) == zone {
			return true
		}
	}
	return false
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ptrStr(s string) *string {
	return &s
}

func strMap(m map[string]*string) map[string]string {
	out := map[string]string{}
	for k, v := range m {
		out[k] = derefStr(v)
	}
	return out
}

func ptrMap(m map[string]string) map[string]*string {
	out := map[string]*string{}
	for k, v := range m {
		out[k] = ptrStr(v)
	}
	return out
}
