package vsphere_test

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/gardener/chaos-engineering/pkg/cloud"
	. "github.com/gardener/chaos-engineering/pkg/cloud/vsphere"
)

func TestVSphere(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "vSphere Adapter Suite")
}

type fakeVCenter struct {
	vms []VM
}

func (f *fakeVCenter) ListInstances(_ context.Context, _ string, _ cloud.ComputeFilter) ([]VM, error) {
	return f.vms, nil
}
func (f *fakeVCenter) DeleteInstance(_ context.Context, _ string) error { return nil }
func (f *fakeVCenter) ResetInstance(_ context.Context, _ string) error  { return nil }

// fakeNSXT models NSX-T's asynchronous delete: DeleteSecurityPolicy issues
// the deletion but GetSecurityPolicy keeps reporting the policy present
// until getsUntilGone further calls have been made, simulating the lag the
// 30s delete budget exists to absorb.
type fakeNSXT struct {
	groups         map[string][]string
	policies       map[string]bool
	getsUntilGone  int
	getCalls       int
}

func (f *fakeNSXT) CreateGroup(_ context.Context, name string, uuids []string) error {
	if f.groups == nil {
		f.groups = map[string][]string{}
	}
	f.groups[name] = uuids
	return nil
}

func (f *fakeNSXT) CreateSecurityPolicy(_ context.Context, name, _ string, _, _ bool) error {
	if f.policies == nil {
		f.policies = map[string]bool{}
	}
	f.policies[name] = true
	return nil
}

func (f *fakeNSXT) GetSecurityPolicy(_ context.Context, name string) (bool, error) {
	if !f.policies[name] {
		return false, nil
	}
	f.getCalls++
	if f.getsUntilGone > 0 && f.getCalls >= f.getsUntilGone {
		delete(f.policies, name)
		return false, nil
	}
	return true, nil
}

func (f *fakeNSXT) DeleteSecurityPolicy(_ context.Context, _ string) error {
	return nil
}

func (f *fakeNSXT) DeleteGroup(_ context.Context, name string) error {
	delete(f.groups, name)
	return nil
}

var _ = Describe("Adapter", func() {
	It("derives a stable filter hash", func() {
		Expect(FilterHash("same")).To(Equal(FilterHash("same")))
		Expect(FilterHash("a")).NotTo(Equal(FilterHash("b")))
	})

	It("creates a group and security policy seeded with the matched instance UUIDs", func() {
		nsxt := &fakeNSXT{}
		a := New(&fakeVCenter{}, nsxt)
		artifact, err := a.CreateBlockingArtifactForInstances(context.Background(), "cluster-a", FilterHash("f"), cloud.Total, []string{"uuid-1", "uuid-2"})
		Expect(err).NotTo(HaveOccurred())
		Expect(nsxt.groups[artifact.ID]).To(ConsistOf("uuid-1", "uuid-2"))
		Expect(nsxt.policies[artifact.ID]).To(BeTrue())
	})

	It("finds an existing blocking artifact by its deterministic name", func() {
		nsxt := &fakeNSXT{policies: map[string]bool{}}
		a := New(&fakeVCenter{}, nsxt)
		name := FilterHash("f")
		nsxt.policies["chaosgarden-block-total-"+name+"-cluster-a"] = true
		artifact, err := a.FindBlockingArtifact(context.Background(), "cluster-a", name, cloud.Total)
		Expect(err).NotTo(HaveOccurred())
		Expect(artifact).NotTo(BeNil())
	})

	It("deletes the blocking artifact once NSX-T converges within the 30s budget", func() {
		nsxt := &fakeNSXT{policies: map[string]bool{"pol-1": true}, getsUntilGone: 1}
		a := New(&fakeVCenter{}, nsxt)
		err := a.DeleteBlockingArtifact(context.Background(), &cloud.BlockingArtifact{ID: "pol-1"})
		Expect(err).NotTo(HaveOccurred())
	})

	It("errors out once the context is cancelled before NSX-T converges", func() {
		nsxt := &fakeNSXT{policies: map[string]bool{"pol-1": true}}
		a := New(&fakeVCenter{}, nsxt)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		err := a.DeleteBlockingArtifact(ctx, &cloud.BlockingArtifact{ID: "pol-1"})
		Expect(err).To(HaveOccurred())
	})

	It("treats Associate/Restore/PersistOriginalAssociations as no-ops", func() {
		a := New(&fakeVCenter{}, &fakeNSXT{})
		prior, err := a.Associate(context.Background(), cloud.Network{}, &cloud.BlockingArtifact{})
		Expect(err).NotTo(HaveOccurred())
		Expect(prior).To(Equal(""))
		Expect(a.Restore(context.Background(), cloud.Network{}, "")).To(Succeed())
		artifact := &cloud.BlockingArtifact{ID: "pol-1"}
		persisted, err := a.PersistOriginalAssociations(context.Background(), artifact, map[string]string{"vm-1": "x"})
		Expect(err).NotTo(HaveOccurred())
		Expect(persisted).To(BeIdenticalTo(artifact))
	})
})
