package openstack_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/gophercloud/gophercloud"

	"github.com/gardener/chaos-engineering/pkg/cloud"
	. "github.com/gardener/chaos-engineering/pkg/cloud/openstack"
)

func TestOpenStack(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "OpenStack Adapter Suite")
}

func serviceClient(server *httptest.Server) *gophercloud.ServiceClient {
	return &gophercloud.ServiceClient{
		ProviderClient: &gophercloud.ProviderClient{TokenID: "fake-token"},
		Endpoint:       server.URL + "/",
	}
}

var _ = Describe("Adapter", func() {
	It("derives a stable filter hash", func() {
		Expect(FilterHash("same")).To(Equal(FilterHash("same")))
		Expect(FilterHash("a")).NotTo(Equal(FilterHash("b")))
	})

	It("maps Nova server statuses to the provider-independent ComputeState", func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/servers/detail", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"servers":[{"id":"srv-1","status":"ACTIVE","metadata":{"role":"worker"}}]}`)
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		a := New(serviceClient(server), serviceClient(server))
		instances, err := a.ListCompute(context.Background(), "eu-de-1a", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(instances).To(HaveLen(1))
		Expect(instances[0].State).To(Equal(cloud.ComputeRunning))
		Expect(instances[0].Tags).To(HaveKeyWithValue("role", "worker"))
	})

	It("creates a blocking security group with a rule per requested direction", func() {
		var ruleDirections []string
		mux := http.NewServeMux()
		mux.HandleFunc("/security-groups", func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				fmt.Fprint(w, `{"security_group":{"id":"sg-block-1","name":"chaosgarden-block"}}`)
			}
		})
		mux.HandleFunc("/security-group-rules", func(w http.ResponseWriter, r *http.Request) {
			ruleDirections = append(ruleDirections, r.URL.Query().Get("direction"))
			fmt.Fprint(w, `{"security_group_rule":{"id":"rule-1"}}`)
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		a := New(serviceClient(server), serviceClient(server))
		artifact, err := a.CreateBlockingArtifact(context.Background(), "eu-de-1a", FilterHash("f"), cloud.Ingress)
		Expect(err).NotTo(HaveOccurred())
		Expect(artifact.ID).To(Equal("sg-block-1"))
	})

	It("round-trips the persisted associations through the security group description", func() {
		var lastDescription string
		mux := http.NewServeMux()
		mux.HandleFunc("/security-groups/sg-1", func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPut {
				lastDescription = "srv-1:sg-orig"
				fmt.Fprint(w, `{"security_group":{"id":"sg-1","description":"srv-1:sg-orig"}}`)
			}
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		a := New(serviceClient(server), serviceClient(server))
		artifact := &cloud.BlockingArtifact{ID: "sg-1"}
		updated, err := a.PersistOriginalAssociations(context.Background(), artifact, map[string]string{"srv-1": "sg-orig"})
		Expect(err).NotTo(HaveOccurred())
		Expect(updated.Associations).To(Equal("srv-1:sg-orig"))
		Expect(lastDescription).To(Equal("srv-1:sg-orig"))

		decoded, err := a.ReadOriginalAssociations(updated)
		Expect(err).NotTo(HaveOccurred())
		Expect(decoded).To(Equal(map[string]string{"srv-1": "sg-orig"}))
	})
})
