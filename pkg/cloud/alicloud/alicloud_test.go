package alicloud_test

import (
	"context"
	"testing"

	ecs "github.com/alibabacloud-go/ecs-20140526/v4/client"
	"github.com/alibabacloud-go/tea/tea"
	vpc "github.com/alibabacloud-go/vpc-20160428/v6/client"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/gardener/chaos-engineering/pkg/cloud"
	. "github.com/gardener/chaos-engineering/pkg/cloud/alicloud"
)

func TestAliCloud(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "AlibabaCloud Adapter Suite")
}

type fakeECS struct {
	ECSAPI
	describeOut *ecs.DescribeInstancesResponse
}

func (f *fakeECS) DescribeInstances(_ *ecs.DescribeInstancesRequest) (*ecs.DescribeInstancesResponse, error) {
	return f.describeOut, nil
}

type fakeVPC struct {
	VPCAPI
	associateCalls []vpc.AssociateNetworkAclRequest
	createdACLID   string
	tagCalls       []vpc.TagResourcesRequest
}

func (f *fakeVPC) CreateNetworkAcl(req *vpc.CreateNetworkAclRequest) (*vpc.CreateNetworkAclResponse, error) {
	f.createdACLID = "acl-block-1"
	return &vpc.CreateNetworkAclResponse{Body: &vpc.CreateNetworkAclResponseBody{NetworkAclId: tea.String(f.createdACLID)}}, nil
}

func (f *fakeVPC) TagResources(req *vpc.TagResourcesRequest) (*vpc.TagResourcesResponse, error) {
	f.tagCalls = append(f.tagCalls, *req)
	return &vpc.TagResourcesResponse{}, nil
}

func (f *fakeVPC) UpdateNetworkAclEntries(req *vpc.UpdateNetworkAclEntriesRequest) (*vpc.UpdateNetworkAclEntriesResponse, error) {
	return &vpc.UpdateNetworkAclEntriesResponse{}, nil
}

func (f *fakeVPC) AssociateNetworkAcl(req *vpc.AssociateNetworkAclRequest) (*vpc.AssociateNetworkAclResponse, error) {
	f.associateCalls = append(f.associateCalls, *req)
	return &vpc.AssociateNetworkAclResponse{}, nil
}

var _ = Describe("Adapter", func() {
	It("derives a stable filter hash", func() {
		Expect(FilterHash("same")).To(Equal(FilterHash("same")))
		Expect(FilterHash("a")).NotTo(Equal(FilterHash("b")))
	})

	It("maps ECS instance statuses to the provider-independent ComputeState", func() {
		fe := &fakeECS{describeOut: &ecs.DescribeInstancesResponse{Body: &ecs.DescribeInstancesResponseBody{
			Instances: &ecs.DescribeInstancesResponseBodyInstances{
				Instance: []*ecs.DescribeInstancesResponseBodyInstancesInstance{
					{InstanceId: tea.String("i-1"), Status: tea.String("Running")},
				},
			},
		}}}
		a := New(fe, &fakeVPC{})
		instances, err := a.ListCompute(context.Background(), "cn-hangzhou-a", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(instances).To(HaveLen(1))
		Expect(instances[0].State).To(Equal(cloud.ComputeRunning))
	})

	It("creates a blocking network ACL tagged for rediscovery", func() {
		fv := &fakeVPC{}
		a := New(&fakeECS{}, fv)
		artifact, err := a.CreateBlockingArtifactForVPC(context.Background(), "cn-hangzhou-a", FilterHash("f"), "vpc-1", cloud.Total)
		Expect(err).NotTo(HaveOccurred())
		Expect(artifact.ID).To(Equal("acl-block-1"))
		Expect(fv.tagCalls).To(HaveLen(1))
	})

	It("associates and restores the prior ACL id", func() {
		fv := &fakeVPC{}
		a := New(&fakeECS{}, fv)
		resource := cloud.Network{ID: "vsw-1", Tags: map[string]string{"aclId": "acl-orig"}}
		artifact := &cloud.BlockingArtifact{ID: "acl-block-1"}

		prior, err := a.Associate(context.Background(), resource, artifact)
		Expect(err).NotTo(HaveOccurred())
		Expect(prior).To(Equal("acl-orig"))

		err = a.Restore(context.Background(), resource, prior)
		Expect(err).NotTo(HaveOccurred())
		Expect(fv.associateCalls).To(HaveLen(2))
		Expect(*fv.associateCalls[0].NetworkAclId).To(Equal("acl-block-1"))
		Expect(*fv.associateCalls[1].NetworkAclId).To(Equal("acl-orig"))
	})
})
