package v1_test

import (
	"testing"

	"k8s.io/apimachinery/pkg/runtime"

	chaosv1 "github.com/gardener/chaos-engineering/pkg/apis/chaos/v1"
)

func TestAddToScheme(t *testing.T) {
	scheme := runtime.NewScheme()
	if err := chaosv1.AddToScheme(scheme); err != nil {
		t.Fatalf("AddToScheme: %v", err)
	}
	for _, obj := range []runtime.Object{&chaosv1.Heartbeat{}, &chaosv1.AcknowledgedHeartbeat{}} {
		gvks, _, err := scheme.ObjectKinds(obj)
		if err != nil {
			t.Fatalf("ObjectKinds(%T): %v", obj, err)
		}
		if len(gvks) != 1 || gvks[0].GroupVersion() != chaosv1.SchemeGroupVersion {
			t.Fatalf("unexpected GVKs for %T: %v", obj, gvks)
		}
	}
}
