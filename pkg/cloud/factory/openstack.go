package factory

import (
	"context"
	"fmt"

	"github.com/gophercloud/gophercloud"
	"github.com/gophercloud/gophercloud/openstack"

	"github.com/gardener/chaos-engineering/pkg/cloud"
	osadapter "github.com/gardener/chaos-engineering/pkg/cloud/openstack"
)

// newOpenStack authenticates against Keystone and builds Nova (compute) and
// Neutron (networking) service clients, which osadapter.Adapter consumes
// directly — gophercloud's own ServiceClient is already the narrow surface
// the adapter needs, so no translation layer is required here.
func newOpenStack(ctx context.Context, configuration, secrets map[string]string) (cloud.Adapter, error) {
	region := configuration["openstack_region"]
	opts := gophercloud.AuthOptions{
		IdentityEndpoint: secrets["auth_url"],
		Username:         secrets["username"],
		Password:         secrets["password"],
		DomainName:       secrets["user_domain_name"],
		TenantName:       secrets["project_name"],
		AllowReauth:      true,
	}
	if opts.IdentityEndpoint == "" || opts.Username == "" {
		return nil, fmt.Errorf("factory: openstack credentials incomplete")
	}

	provider, err := openstack.AuthenticatedClient(opts)
	if err != nil {
		return nil, fmt.Errorf("factory: authenticating with openstack: %w", err)
	}

	compute, err := openstack.NewComputeV2(provider, gophercloud.EndpointOpts{Region: region})
	if err != nil {
		return nil, fmt.Errorf("factory: building openstack compute client: %w", err)
	}
	network, err := openstack.NewNetworkV2(provider, gophercloud.EndpointOpts{Region: region})
	if err != nil {
		return nil, fmt.Errorf("factory: building openstack network client: %w", err)
	}

	return osadapter.New(compute, network), nil
}
