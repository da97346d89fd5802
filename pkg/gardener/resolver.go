// Package gardener implements the Gardener-specific Resolver (spec §1, §6):
// given a project name and a shoot name, it reads the garden cluster's
// Shoot, Project and SecretBinding custom resources plus the referenced
// credentials Secret to derive the target shoot's cloud provider, region,
// technical ID, declared zones, and per-provider filters/configuration/
// secrets, and obtains a short-lived kubeconfig for the shoot itself via the
// AdminKubeconfigRequest subresource.
//
// Grounded on original_source/chaosgarden/garden/{__init__,actions}.py
// (get_kubeconfig, resolve_cloud_provider_simulation, resolve_pod_simulation,
// resolve_zone). The Gardener CRD Go types themselves are out of this
// system's scope (spec §1 places "the cluster-discovery flow" among the
// external collaborators), so this package reads the garden cluster's custom
// resources as unstructured.Unstructured via a dynamic client rather than
// vendoring gardener/pkg/apis/core.
package gardener

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/rest"
	"sigs.k8s.io/controller-runtime/pkg/client"

	gardenererrors "github.com/gardener/chaos-engineering/pkg/errors"
)

var (
	projectGVK       = schema.GroupVersionKind{Group: "core.gardener.cloud", Version: "v1beta1", Kind: "Project"}
	shootGVK         = schema.GroupVersionKind{Group: "core.gardener.cloud", Version: "v1beta1", Kind: "Shoot"}
	secretBindingGVK = schema.GroupVersionKind{Group: "core.gardener.cloud", Version: "v1beta1", Kind: "SecretBinding"}
)

// Resolution is everything the Failure Orchestrator and Probe Pipeline need
// to act against a single shoot: its cloud provider identity, the resolved
// failure-domain zone, per-provider filters/configuration/secrets, and a
// kubeconfig for the shoot cluster itself.
type Resolution struct {
	CloudProvider string
	TechnicalID   string
	Region        string
	Zone          string   // resolved, literal
	Zones         []string // sorted, every zone declared on the shoot

	// ComputeFilter/NetworkFilter are the selector.Set-shaped predicates
	// (spec §4.3's Matches(map[string]string) bool contract) identifying
	// this shoot's own resources among the cloud account's other resources.
	ComputeFilter Matcher
	NetworkFilter Matcher

	Configuration map[string]string
	Secrets       map[string]string

	Kubeconfig string
}

// Matcher is the narrow predicate the Cloud Provider Adapter's
// ComputeFilter/NetworkFilter parameters require; pkg/selector.Set already
// satisfies it.
type Matcher interface {
	Matches(labels map[string]string) bool
}

// Resolver reads the garden cluster's custom resources to produce
// Resolutions. It is constructed once per process and reused across runs.
type Resolver struct {
	client  client.Client
	http    *http.Client
	apiHost string
}

// NewResolver constructs a Resolver against the garden cluster described by
// cfg.
func NewResolver(cfg *rest.Config) (*Resolver, error) {
	c, err := client.New(cfg, client.Options{})
	if err != nil {
		return nil, fmt.Errorf("building garden cluster client: %w", err)
	}
	httpClient, err := rest.HTTPClientFor(cfg)
	if err != nil {
		return nil, fmt.Errorf("building garden cluster HTTP client: %w", err)
	}
	return &Resolver{client: c, http: httpClient, apiHost: cfg.Host}, nil
}

// ResolveCloudProvider derives everything a cloud-provider compute/network
// failure simulation needs for (project, shoot), resolving zoneSelector
// (a literal zone, a sorted-index integer string, or empty) against the
// zones declared on the shoot's worker pools.
//
// Grounded on resolve_cloud_provider_simulation in original_source's
// chaosgarden/garden/actions.py.
func (r *Resolver) ResolveCloudProvider(ctx context.Context, project, shootName, zoneSelector string) (*Resolution, error) {
	shoot, namespace, err := r.getProjectShoot(ctx, project, shootName)
	if err != nil {
		return nil, err
	}

	technicalID, _, _ := unstructured.NestedString(shoot.Object, "status", "technicalID")
	region, _, _ := unstructured.NestedString(shoot.Object, "spec", "region")
	cloudProvider, _, _ := unstructured.NestedString(shoot.Object, "spec", "provider", "type")
	if cloudProvider == "" {
		return nil, gardenererrors.NewValidation("shoot has no spec.provider.type", nil)
	}

	zones, err := resolveZones(shoot)
	if err != nil {
		return nil, err
	}
	zone, err := ResolveZone(zoneSelector, zones)
	if err != nil {
		return nil, err
	}

	secretBindingName, _, _ := unstructured.NestedString(shoot.Object, "spec", "secretBindingName")
	credentials, err := r.readSecretBindingSecret(ctx, namespace, secretBindingName)
	if err != nil {
		return nil, err
	}

	computeFilter, networkFilter, configuration, secrets, err := filtersForProvider(cloudProvider, technicalID, region, shootName, credentials)
	if err != nil {
		return nil, err
	}

	kubeconfig, err := r.getKubeconfig(ctx, namespace, shootName)
	if err != nil {
		return nil, err
	}

	return &Resolution{
		CloudProvider: cloudProvider,
		TechnicalID:   technicalID,
		Region:        region,
		Zone:          zone,
		Zones:         zones,
		ComputeFilter: computeFilter,
		NetworkFilter: networkFilter,
		Configuration: configuration,
		Secrets:       secrets,
		Kubeconfig:    kubeconfig,
	}, nil
}

// ResolveShootKubeconfig resolves just the kubeconfig and declared zones for
// (project, shoot) — what the Probe Pipeline needs to deploy into the shoot
// itself, without any cloud-provider credential derivation.
func (r *Resolver) ResolveShootKubeconfig(ctx context.Context, project, shootName string) (kubeconfig string, zones []string, err error) {
	shoot, namespace, err := r.getProjectShoot(ctx, project, shootName)
	if err != nil {
		return "", nil, err
	}
	zones, err = resolveZones(shoot)
	if err != nil {
		return "", nil, err
	}
	kubeconfig, err = r.getKubeconfig(ctx, namespace, shootName)
	if err != nil {
		return "", nil, err
	}
	return kubeconfig, zones, nil
}

func (r *Resolver) getProjectShoot(ctx context.Context, project, shootName string) (shoot *unstructured.Unstructured, namespace string, err error) {
	proj := &unstructured.Unstructured{}
	proj.SetGroupVersionKind(projectGVK)
	if err := r.client.Get(ctx, client.ObjectKey{Name: project}, proj); err != nil {
		return nil, "", fmt.Errorf("reading project %q: %w", project, err)
	}
	namespace, _, _ = unstructured.NestedString(proj.Object, "spec", "namespace")
	if namespace == "" {
		return nil, "", gardenererrors.NewValidation(fmt.Sprintf("project %q has no spec.namespace", project), nil)
	}

	shoot = &unstructured.Unstructured{}
	shoot.SetGroupVersionKind(shootGVK)
	if err := r.client.Get(ctx, client.ObjectKey{Name: shootName, Namespace: namespace}, shoot); err != nil {
		return nil, "", fmt.Errorf("reading shoot %q/%q: %w", namespace, shootName, err)
	}
	return shoot, namespace, nil
}

func resolveZones(shoot *unstructured.Unstructured) ([]string, error) {
	workers, _, _ := unstructured.NestedSlice(shoot.Object, "spec", "provider", "workers")
	set := map[string]struct{}{}
	for _, w := range workers {
		worker, ok := w.(map[string]interface{})
		if !ok {
			continue
		}
		zs, _, _ := unstructured.NestedStringSlice(worker, "zones")
		for _, z := range zs {
			set[z] = struct{}{}
		}
	}
	zones := make([]string, 0, len(set))
	for z := range set {
		zones = append(zones, z)
	}
	sort.Strings(zones)
	return zones, nil
}

// ResolveZone resolves selector against the sorted zones list: an integer
// string resolves by index, a literal zone must be a member, and an empty
// selector leaves zone resolution to the caller (returns "").
//
// Grounded on resolve_zone in original_source/chaosgarden/garden/actions.py.
func ResolveZone(selector string, zones []string) (string, error) {
	if selector == "" {
		return "", nil
	}
	if idx, err := parseZoneIndex(selector); err == nil {
		if idx < 0 || idx >= len(zones) {
			return "", gardenererrors.NewValidation(fmt.Sprintf("zone index %d out of bounds (known zones: %v)", idx, zones), nil)
		}
		return zones[idx], nil
	}
	for _, z := range zones {
		if z == selector {
			return z, nil
		}
	}
	return "", gardenererrors.NewValidation(fmt.Sprintf("zone %q not recognised (known zones: %v)", selector, zones), nil)
}

func parseZoneIndex(s string) (int, error) {
	var idx int
	_, err := fmt.Sscanf(s, "%d", &idx)
	if err != nil {
		return 0, err
	}
	// Sscanf accepts leading-numeric-prefix input like "3abc"; reject it so
	// a literal zone that happens to start with digits is never
	// misinterpreted as an index.
	if fmt.Sprintf("%d", idx) != s {
		return 0, fmt.Errorf("not a plain integer: %q", s)
	}
	return idx, nil
}

func (r *Resolver) readSecretBindingSecret(ctx context.Context, namespace, secretBindingName string) (map[string][]byte, error) {
	sb := &unstructured.Unstructured{}
	sb.SetGroupVersionKind(secretBindingGVK)
	if err := r.client.Get(ctx, client.ObjectKey{Name: secretBindingName, Namespace: namespace}, sb); err != nil {
		return nil, fmt.Errorf("reading secretbinding %q/%q: %w", namespace, secretBindingName, err)
	}
	secretRefName, _, _ := unstructured.NestedString(sb.Object, "secretRef", "name")
	secretRefNamespace, _, _ := unstructured.NestedString(sb.Object, "secretRef", "namespace")
	if secretRefNamespace == "" {
		secretRefNamespace = namespace
	}

	secret := &corev1.Secret{}
	if err := r.client.Get(ctx, client.ObjectKey{Name: secretRefName, Namespace: secretRefNamespace}, secret); err != nil {
		return nil, fmt.Errorf("reading credentials secret %q/%q: %w", secretRefNamespace, secretRefName, err)
	}
	return secret.Data, nil
}

// getKubeconfig requests a short-lived admin kubeconfig for the shoot via
// its AdminKubeconfigRequest subresource, mirroring get_kubeconfig in
// original_source/chaosgarden/garden/__init__.py.
func (r *Resolver) getKubeconfig(ctx context.Context, namespace, shootName string) (string, error) {
	req := map[string]interface{}{
		"apiVersion": "authentication.gardener.cloud/v1alpha1",
		"kind":       "AdminKubeconfigRequest",
		"spec": map[string]interface{}{
			"expirationSeconds": 86400,
		},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	url := fmt.Sprintf("%s/apis/core.gardener.cloud/v1beta1/namespaces/%s/shoots/%s/adminkubeconfig", r.apiHost, namespace, shootName)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpResp, err := r.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("requesting admin kubeconfig for shoot %q/%q: %w", namespace, shootName, err)
	}
	defer httpResp.Body.Close()
	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", fmt.Errorf("reading admin kubeconfig response for shoot %q/%q: %w", namespace, shootName, err)
	}
	if httpResp.StatusCode >= 300 {
		return "", fmt.Errorf("requesting admin kubeconfig for shoot %q/%q: HTTP %d: %s", namespace, shootName, httpResp.StatusCode, string(raw))
	}
	var resp struct {
		Status struct {
			Kubeconfig []byte `json:"kubeconfig"`
		} `json:"status"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("parsing admin kubeconfig response: %w", err)
	}
	return string(resp.Status.Kubeconfig), nil
}

// IsNotFound reports whether err represents a Kubernetes 404, used by
// callers that treat a missing garden-cluster resource as "nothing to
// resolve" rather than fatal (mirrors spec §7's 404-during-rollback policy
// applied to resolution reads, e.g. a shoot already deleted mid-run).
func IsNotFound(err error) bool {
	return apierrors.IsNotFound(err)
}
