package gardener_test

import (
	"testing"

	"github.com/gardener/chaos-engineering/pkg/gardener"
)

func TestResolveZone(t *testing.T) {
	zones := []string{"eu-west-1a", "eu-west-1b", "eu-west-1c"}

	zone, err := gardener.ResolveZone("1", zones)
	if err != nil || zone != "eu-west-1b" {
		t.Fatalf("index resolution: got (%q, %v)", zone, err)
	}

	zone, err = gardener.ResolveZone("eu-west-1c", zones)
	if err != nil || zone != "eu-west-1c" {
		t.Fatalf("literal resolution: got (%q, %v)", zone, err)
	}

	zone, err = gardener.ResolveZone("", zones)
	if err != nil || zone != "" {
		t.Fatalf("empty selector should resolve to empty with no error: got (%q, %v)", zone, err)
	}

	if _, err := gardener.ResolveZone("9", zones); err == nil {
		t.Fatal("expected out-of-bounds index to error")
	}
	if _, err := gardener.ResolveZone("eu-central-1a", zones); err == nil {
		t.Fatal("expected unrecognised zone to error")
	}
}

func TestResolveZoneRejectsAlphaNumericAsIndex(t *testing.T) {
	zones := []string{"3z", "eu-west-1a"}
	// "3z" is a literal zone name, not index 3 with a trailing typo; must
	// resolve via exact membership, never silently through Sscanf's
	// leading-numeric-prefix parsing.
	zone, err := gardener.ResolveZone("3z", zones)
	if err != nil || zone != "3z" {
		t.Fatalf("got (%q, %v), want (\"3z\", nil)", zone, err)
	}
}
