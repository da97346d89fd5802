package probe

import (
	"context"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"sigs.k8s.io/controller-runtime/pkg/client"

	gardenererrors "github.com/gardener/chaos-engineering/pkg/errors"
)

// Setup applies every probe resource for zones to c, in the order Resources
// returns them. A 409 (resource already found, e.g. from a previous run that
// wasn't fully torn down) is ignored, matching
// probes.py's setup(), which treats "already exists" as success rather than
// retrying the create.
func Setup(ctx context.Context, c client.Client, zones []string, externalAPI ExternalAPI) error {
	objs, err := Resources(zones, externalAPI)
	if err != nil {
		return gardenererrors.NewFatal("rendering probe resources", err)
	}
	for _, obj := range objs {
		if err := c.Create(ctx, obj); err != nil && !apierrors.IsAlreadyExists(err) {
			return gardenererrors.NewFatal("creating probe resource "+describe(obj), err)
		}
	}
	return nil
}

// Teardown deletes every probe resource, reverse of apply order, polling
// until none remain or attempts is exhausted. A 404 (already gone, or gone
// by the time this poll observes it) is ignored. Namespaced resources are
// deleted implicitly with the namespace; only the namespace itself and
// cluster-scoped resources are deleted explicitly here.
//
// Grounded on probes.py's cleanup(), which loops "while resources_present"
// re-issuing deletes for whatever 404s didn't already remove, since
// Foreground propagation means a parent delete can still be in flight when
// the loop observes it.
func Teardown(ctx context.Context, c client.Client) error {
	objs, err := Resources(nil, ExternalAPI{})
	if err != nil {
		return gardenererrors.NewFatal("rendering probe resources for teardown", err)
	}
	reversed := make([]client.Object, len(objs))
	for i, obj := range objs {
		reversed[len(objs)-1-i] = obj
	}

	foreground := client.PropagationPolicy("Foreground")
	for attempt := 0; attempt < 30; attempt++ {
		present := false
		for _, obj := range reversed {
			if namespacedResourceDeletedWithNamespace(obj) {
				continue
			}
			err := c.Delete(ctx, obj, foreground)
			switch {
			case err == nil:
				present = true
			case apierrors.IsNotFound(err):
				// already gone
			default:
				return gardenererrors.NewFatal("deleting probe resource "+describe(obj), err)
			}
		}
		if !present {
			return nil
		}
		select {
		case <-ctx.Done():
			return gardenererrors.NewFatal("tearing down probe resources", ctx.Err())
		case <-time.After(time.Second):
		}
	}
	return nil
}

// namespacedResourceDeletedWithNamespace reports whether obj lives inside
// Namespace and therefore disappears implicitly once the namespace itself is
// deleted — deleting it individually only adds noisy, redundant API calls.
func namespacedResourceDeletedWithNamespace(obj client.Object) bool {
	return obj.GetNamespace() == Namespace
}

func describe(obj client.Object) string {
	gvk := obj.GetObjectKind().GroupVersionKind()
	return gvk.Kind + "/" + obj.GetName()
}
