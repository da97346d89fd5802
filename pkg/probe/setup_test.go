package probe

import (
	"context"
	"testing"

	admissionregistrationv1 "k8s.io/api/admissionregistration/v1"
	appsv1 "k8s.io/api/apps/v1"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	chaosv1 "github.com/gardener/chaos-engineering/pkg/apis/chaos/v1"
)

func newProbeScheme(t *testing.T) *runtime.Scheme {
	t.Helper()
	scheme := runtime.NewScheme()
	for _, add := range []func(*runtime.Scheme) error{
		corev1.AddToScheme,
		rbacv1.AddToScheme,
		appsv1.AddToScheme,
		batchv1.AddToScheme,
		apiextensionsv1.AddToScheme,
		admissionregistrationv1.AddToScheme,
		chaosv1.AddToScheme,
	} {
		if err := add(scheme); err != nil {
			t.Fatalf("adding to scheme: %v", err)
		}
	}
	return scheme
}

func TestSetupThenTeardownIsIdempotent(t *testing.T) {
	c := fake.NewClientBuilder().WithScheme(newProbeScheme(t)).Build()
	ctx := context.Background()

	zones := []string{"eu-west-1a", "eu-west-1b"}

	if err := Setup(ctx, c, zones, ExternalAPI{}); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	// Applying twice must not fail: AlreadyExists is tolerated.
	if err := Setup(ctx, c, zones, ExternalAPI{}); err != nil {
		t.Fatalf("Setup (second call): %v", err)
	}

	depKey := client.ObjectKey{Namespace: Namespace, Name: ServiceName}
	dep := &appsv1.Deployment{}
	if err := c.Get(ctx, depKey, dep); err != nil {
		t.Fatalf("expected the probe deployment to exist: %v", err)
	}
	if dep.Spec.Replicas == nil || *dep.Spec.Replicas != int32(len(zones)) {
		t.Fatalf("got replicas %v, want %d", dep.Spec.Replicas, len(zones))
	}

	if err := Teardown(ctx, c); err != nil {
		t.Fatalf("Teardown: %v", err)
	}
	// Tearing down an already-torn-down cluster must not fail either:
	// NotFound is tolerated.
	if err := Teardown(ctx, c); err != nil {
		t.Fatalf("Teardown (second call): %v", err)
	}

	if err := c.Get(ctx, depKey, &appsv1.Deployment{}); !apierrors.IsNotFound(err) {
		t.Fatalf("expected the probe deployment to be gone, got err=%v", err)
	}
}

func TestNamespacedResourceDeletedWithNamespace(t *testing.T) {
	inNamespace := &corev1.ServiceAccount{}
	inNamespace.Namespace = Namespace
	if !namespacedResourceDeletedWithNamespace(inNamespace) {
		t.Fatal("expected a resource inside Namespace to be treated as implicitly deleted")
	}

	clusterScoped := &rbacv1.ClusterRole{}
	if namespacedResourceDeletedWithNamespace(clusterScoped) {
		t.Fatal("expected a cluster-scoped resource to require explicit deletion")
	}
}
