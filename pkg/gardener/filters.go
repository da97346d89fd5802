package gardener

import (
	"encoding/json"
	"fmt"

	gardenererrors "github.com/gardener/chaos-engineering/pkg/errors"
	"github.com/gardener/chaos-engineering/pkg/selector"
)

// filtersForProvider derives the compute/network selector.Set that
// identifies this shoot's own resources among the cloud account's other
// resources, plus the provider-specific configuration/secrets maps the
// corresponding pkg/cloud/<provider> adapter needs, from the shoot's
// technical ID/region/name and its credentials secret's raw (still
// base64-encoded, as stored by client-go) data.
//
// Grounded on resolve_cloud_provider_simulation in
// original_source/chaosgarden/garden/actions.py: every branch there builds a
// provider-native filter DSL (an EC2 describe filter list, a KQL where
// clause, a GCP label query, an OpenStack metadata match) to find "this
// shoot's resources"; translated here to this system's uniform
// selector.Set/tags-map model, since pkg/cloud.Adapter's ComputeFilter/
// NetworkFilter are Matches(map[string]string) predicates rather than
// provider SDK query objects.
func filtersForProvider(cloudProvider, technicalID, region, shootName string, credentials map[string][]byte) (computeFilter, networkFilter selector.Set, configuration, secrets map[string]string, err error) {
	decode := func(key string) (string, error) {
		raw, ok := credentials[key]
		if !ok {
			return "", fmt.Errorf("credentials secret missing key %q", key)
		}
		return string(raw), nil
	}

	switch cloudProvider {
	case "aws":
		tagKey := fmt.Sprintf("kubernetes.io/cluster/%s", technicalID)
		set, err := tagExistsSelector(tagKey)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		accessKeyID, err1 := decode("accessKeyID")
		secretAccessKey, err2 := decode("secretAccessKey")
		if err1 != nil || err2 != nil {
			return nil, nil, nil, nil, gardenererrors.NewValidation("aws credentials secret incomplete", firstErr(err1, err2))
		}
		return set, set, map[string]string{"aws_region": region}, map[string]string{
			"aws_access_key_id":     accessKeyID,
			"aws_secret_access_key": secretAccessKey,
		}, nil

	case "azure":
		tagKey := fmt.Sprintf("kubernetes.io-cluster-%s", technicalID)
		set, err := tagExistsSelector(tagKey)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		subscriptionID, err1 := decode("subscriptionID")
		clientID, err2 := decode("clientID")
		clientSecret, err3 := decode("clientSecret")
		tenantID, err4 := decode("tenantID")
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			return nil, nil, nil, nil, gardenererrors.NewValidation("azure credentials secret incomplete", firstErr(err1, err2, err3, err4))
		}
		return set, set, map[string]string{
				"azure_region":          region,
				"azure_subscription_id": subscriptionID,
				"azure_resource_group":  technicalID,
			}, map[string]string{
				"client_id":     clientID,
				"client_secret": clientSecret,
				"tenant_id":     tenantID,
			}, nil

	case "gcp":
		computeSet, err := selector.Parse(fmt.Sprintf("name==%s, node_kubernetes_io_role==node, worker_gardener_cloud_pool=~.*", shootName))
		if err != nil {
			return nil, nil, nil, nil, err
		}
		networkSet, err := selector.Parse(fmt.Sprintf("name==%s", technicalID))
		if err != nil {
			return nil, nil, nil, nil, err
		}
		saJSON, err1 := decode("serviceaccount.json")
		if err1 != nil {
			return nil, nil, nil, nil, gardenererrors.NewValidation("gcp credentials secret incomplete", err1)
		}
		var sa map[string]interface{}
		if err := json.Unmarshal([]byte(saJSON), &sa); err != nil {
			return nil, nil, nil, nil, gardenererrors.NewValidation("gcp service account JSON unparseable", err)
		}
		return computeSet, networkSet, nil, map[string]string{"service_account_info": saJSON}, nil

	case "openstack":
		set, err := tagExistsSelector(fmt.Sprintf("kubernetes.io-cluster-%s", technicalID))
		if err != nil {
			return nil, nil, nil, nil, err
		}
		authURL, err1 := decode("authURL")
		domainName, err2 := decode("domainName")
		username, err3 := decode("username")
		password, err4 := decode("password")
		tenantName, err5 := decode("tenantName")
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			return nil, nil, nil, nil, gardenererrors.NewValidation("openstack credentials secret incomplete", firstErr(err1, err2, err3, err4, err5))
		}
		return set, set, map[string]string{"openstack_region": region}, map[string]string{
			"auth_url":            authURL,
			"user_domain_name":    domainName,
			"username":            username,
			"password":            password,
			"project_domain_name": domainName,
			"project_name":        tenantName,
		}, nil

	default:
		return nil, nil, nil, nil, gardenererrors.NewValidation(fmt.Sprintf("cloud provider %q unknown/not supported", cloudProvider), nil)
	}
}

// tagExistsSelector builds a selector.Set whose single requirement matches
// any entity that carries tagKey at all (the original's "tag-key" EC2/
// OpenStack describe-filter semantics: match on key presence, not a
// specific value). A regex requirement anchored at "^(?:.*)" matches every
// value, so combined with the Matches-operator's absent-key default of
// false, it reduces exactly to key-presence.
func tagExistsSelector(tagKey string) (selector.Set, error) {
	req, err := selector.NewRequirement(tagKey, selector.Matches, ".*")
	if err != nil {
		return nil, err
	}
	return selector.Set{req}, nil
}

func firstErr(errs ...error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}
