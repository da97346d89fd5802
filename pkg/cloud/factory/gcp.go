package factory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	compute "google.golang.org/api/compute/v1"
	"google.golang.org/api/option"

	"github.com/gardener/chaos-engineering/pkg/cloud"
	gcpadapter "github.com/gardener/chaos-engineering/pkg/cloud/gcp"
)

// newGCP authenticates with the shoot's service account JSON and wraps the
// google.golang.org/api/compute/v1 Service in gcpClient, narrowing it down
// to gcpadapter.Client.
func newGCP(ctx context.Context, _ map[string]string, secrets map[string]string) (cloud.Adapter, error) {
	saJSON := secrets["service_account_info"]
	if saJSON == "" {
		return nil, fmt.Errorf("factory: gcp service account json missing")
	}
	svc, err := compute.NewService(ctx, option.WithCredentialsJSON([]byte(saJSON)))
	if err != nil {
		return nil, fmt.Errorf("factory: building gcp compute service: %w", err)
	}

	// project is not part of the gardener configuration map (GCP's
	// configuration branch in filtersForProvider returns nil); it is
	// embedded in the service account JSON project_id field instead, which
	// is how the original resolves the active project for gcloud calls.
	project, err := projectIDFromServiceAccountJSON(saJSON)
	if err != nil {
		return nil, err
	}

	return gcpadapter.New(&gcpClient{svc: svc}, project), nil
}

func projectIDFromServiceAccountJSON(saJSON string) (string, error) {
	var sa struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal([]byte(saJSON), &sa); err != nil {
		return "", fmt.Errorf("factory: parsing gcp service account json: %w", err)
	}
	if sa.ProjectID == "" {
		return "", fmt.Errorf("factory: gcp service account json has no project_id")
	}
	return sa.ProjectID, nil
}

type gcpClient struct {
	svc *compute.Service
}

func (c *gcpClient) ListInstances(ctx context.Context, project, zone string) ([]gcpadapter.Instance, error) {
	var out []gcpadapter.Instance
	err := c.svc.Instances.List(project, zone).Pages(ctx, func(page *compute.InstanceList) error {
		for _, inst := range page.Items {
			item := gcpadapter.Instance{
				Name:              inst.Name,
				Status:            inst.Status,
				CreationTimestamp: inst.CreationTimestamp,
			}
			if inst.Tags != nil {
				item.Tags = inst.Tags.Items
				item.TagsFingerprint = inst.Tags.Fingerprint
			}
			out = append(out, item)
		}
		return nil
	})
	return out, err
}

func (c *gcpClient) TerminateInstance(ctx context.Context, project, zone, name string) error {
	_, err := c.svc.Instances.Delete(project, zone, name).Context(ctx).Do()
	return err
}

func (c *gcpClient) RestartInstance(ctx context.Context, project, zone, name string) error {
	_, err := c.svc.Instances.Reset(project, zone, name).Context(ctx).Do()
	return err
}

func (c *gcpClient) SuspendInstance(ctx context.Context, project, zone, name string) error {
	_, err := c.svc.Instances.Suspend(project, zone, name).Context(ctx).Do()
	return err
}

func (c *gcpClient) ResumeInstance(ctx context.Context, project, zone, name string) error {
	_, err := c.svc.Instances.Resume(project, zone, name).Context(ctx).Do()
	return err
}

func (c *gcpClient) TagInstance(ctx context.Context, project, zone, name string, tags []string, fingerprint string) error {
	_, err := c.svc.Instances.SetTags(project, zone, name, &compute.Tags{Items: tags, Fingerprint: fingerprint}).Context(ctx).Do()
	return err
}

func (c *gcpClient) ListNetworkSelfLinks(ctx context.Context, project string) (map[string]string, error) {
	out := map[string]string{}
	err := c.svc.Networks.List(project).Pages(ctx, func(page *compute.NetworkList) error {
		for _, n := range page.Items {
			out[n.Name] = n.SelfLink
		}
		return nil
	})
	return out, err
}

func (c *gcpClient) CreateFirewall(ctx context.Context, project, name, description, networkLink, direction, ipRange, targetTag string) error {
	fw := &compute.Firewall{
		Name:        name,
		Description: description,
		Network:     networkLink,
		Direction:   strings.ToUpper(direction),
		Denied:      []*compute.FirewallDenied{{IPProtocol: "all"}},
		TargetTags:  []string{targetTag},
	}
	if direction == "ingress" {
		fw.SourceRanges = []string{ipRange}
	} else {
		fw.DestinationRanges = []string{ipRange}
	}
	_, err := c.svc.Firewalls.Insert(project, fw).Context(ctx).Do()
	return err
}

func (c *gcpClient) FindFirewalls(ctx context.Context, project, namePrefix string) ([]gcpadapter.Firewall, error) {
	var out []gcpadapter.Firewall
	err := c.svc.Firewalls.List(project).Pages(ctx, func(page *compute.FirewallList) error {
		for _, fw := range page.Items {
			if strings.HasPrefix(fw.Name, namePrefix) {
				out = append(out, gcpadapter.Firewall{Name: fw.Name, Description: fw.Description})
			}
		}
		return nil
	})
	return out, err
}

func (c *gcpClient) DeleteFirewall(ctx context.Context, project, name string) error {
	_, err := c.svc.Firewalls.Delete(project, name).Context(ctx).Do()
	return err
}

func (c *gcpClient) PatchFirewallDescription(ctx context.Context, project, name, description string) error {
	_, err := c.svc.Firewalls.Patch(project, name, &compute.Firewall{Description: description}).Context(ctx).Do()
	return err
}
