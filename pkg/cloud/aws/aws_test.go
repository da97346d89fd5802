package aws_test

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/gardener/chaos-engineering/pkg/cloud"
	. "github.com/gardener/chaos-engineering/pkg/cloud/aws"
)

func TestAWS(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "AWS Adapter Suite")
}

type fakeEC2 struct {
	EC2API
	replaceCalls []ec2.ReplaceNetworkAclAssociationInput
}

func (f *fakeEC2) ReplaceNetworkAclAssociation(_ context.Context, in *ec2.ReplaceNetworkAclAssociationInput, _ ...func(*ec2.Options)) (*ec2.ReplaceNetworkAclAssociationOutput, error) {
	f.replaceCalls = append(f.replaceCalls, *in)
	return &ec2.ReplaceNetworkAclAssociationOutput{}, nil
}

var _ = Describe("Adapter", func() {
	It("returns the prior ACL id on Associate and restores it on Restore", func() {
		fake := &fakeEC2{}
		a := New(fake)
		resource := cloud.Network{ID: "subnet-1", Tags: map[string]string{"associationId": "assoc-1", "aclId": "acl-orig"}}
		artifact := &cloud.BlockingArtifact{ID: "acl-block"}

		prior, err := a.Associate(context.Background(), resource, artifact)
		Expect(err).NotTo(HaveOccurred())
		Expect(prior).To(Equal("acl-orig"))

		err = a.Restore(context.Background(), resource, prior)
		Expect(err).NotTo(HaveOccurred())

		Expect(fake.replaceCalls).To(HaveLen(2))
		Expect(*fake.replaceCalls[0].NetworkAclId).To(Equal("acl-block"))
		Expect(*fake.replaceCalls[1].NetworkAclId).To(Equal("acl-orig"))
	})

	It("derives a stable filter hash", func() {
		Expect(FilterHash("same")).To(Equal(FilterHash("same")))
		Expect(FilterHash("a")).NotTo(Equal(FilterHash("b")))
	})

	It("maps EC2 instance state names to the provider-independent ComputeState", func() {
		fake := &listOnlyEC2{out: &ec2.DescribeInstancesOutput{
			Reservations: []ec2types.Reservation{{
				Instances: []ec2types.Instance{
					{InstanceId: strp("i-1"), State: &ec2types.InstanceState{Name: ec2types.InstanceStateNameRunning}},
				},
			}},
		}}
		a := New(fake)
		instances, err := a.ListCompute(context.Background(), "eu-west-1a", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(instances).To(HaveLen(1))
		Expect(instances[0].State).To(Equal(cloud.ComputeRunning))
	})
})

type listOnlyEC2 struct {
	EC2API
	out *ec2.DescribeInstancesOutput
}

func (f *listOnlyEC2) DescribeInstances(_ context.Context, _ *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	return f.out, nil
}

func strp(s string) *string { return &s }
