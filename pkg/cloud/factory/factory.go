// Package factory constructs a concrete pkg/cloud.Adapter from the
// provider identity, configuration and secrets a pkg/gardener.Resolution
// carries, so cmd/chaos-engineering never branches on cloud provider
// identity itself.
//
// Grounded on original_source/chaosgarden/util/simulation.py's
// run_cloud_provider_simulation, which dispatches to the right
// chaosgarden.<provider>.actions module purely from the resolved provider
// string.
package factory

import (
	"context"
	"fmt"

	"github.com/gardener/chaos-engineering/pkg/cloud"
	"github.com/gardener/chaos-engineering/pkg/cloud/aws"
	"github.com/gardener/chaos-engineering/pkg/cloud/azure"
	"github.com/gardener/chaos-engineering/pkg/cloud/gcp"
	"github.com/gardener/chaos-engineering/pkg/cloud/openstack"
)

// New constructs the cloud.Adapter for provider, authenticating with
// secrets and configuring it with configuration — the two maps
// pkg/gardener.Resolver.ResolveCloudProvider returns.
func New(ctx context.Context, provider string, configuration, secrets map[string]string) (cloud.Adapter, error) {
	switch provider {
	case "aws":
		return newAWS(ctx, configuration, secrets)
	case "azure":
		return newAzure(ctx, configuration, secrets)
	case "gcp":
		return newGCP(ctx, configuration, secrets)
	case "openstack":
		return newOpenStack(ctx, configuration, secrets)
	default:
		return nil, fmt.Errorf("factory: no cloud.Adapter constructor wired for provider %q", provider)
	}
}

// FilterHash dispatches to the same provider's FilterHash function the
// adapter package itself uses to tag a blocking artifact, so a caller that
// only has the resolved provider string and a filter description (never the
// constructed adapter) can still reproduce the artifact name
// RunNetworkFailure/Rollback expect in NetworkFailureConfig.FilterHash.
func FilterHash(provider, filterDescription string) (string, error) {
	switch provider {
	case "aws":
		return aws.FilterHash(filterDescription), nil
	case "azure":
		return azure.FilterHash(filterDescription), nil
	case "gcp":
		return gcp.FilterHash(filterDescription), nil
	case "openstack":
		return openstack.FilterHash(filterDescription), nil
	default:
		return "", fmt.Errorf("factory: no FilterHash function wired for provider %q", provider)
	}
}
