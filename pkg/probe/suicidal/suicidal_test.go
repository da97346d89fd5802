package suicidal_test

import (
	"context"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	chaosv1 "github.com/gardener/chaos-engineering/pkg/apis/chaos/v1"
	. "github.com/gardener/chaos-engineering/pkg/probe/suicidal"
)

func TestSuicidal(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Suicidal Pod Suite")
}

var _ = Describe("Run", func() {
	var (
		ctx  context.Context
		c    client.Client
		pod  *corev1.Pod
		node *corev1.Node
	)

	BeforeEach(func() {
		ctx = context.Background()

		scheme := runtime.NewScheme()
		Expect(corev1.AddToScheme(scheme)).To(Succeed())
		Expect(chaosv1.AddToScheme(scheme)).To(Succeed())

		node = &corev1.Node{
			ObjectMeta: metav1.ObjectMeta{Name: "node-1", Labels: map[string]string{"topology.kubernetes.io/zone": "eu-west-1a"}},
		}
		pod = &corev1.Pod{
			ObjectMeta: metav1.ObjectMeta{Name: "pod-lifecycle-probe-abc", Namespace: "chaos-garden-probe"},
			Spec:       corev1.PodSpec{NodeName: "node-1"},
			Status: corev1.PodStatus{
				ContainerStatuses: []corev1.ContainerStatus{{RestartCount: 0}},
			},
		}
		c = fake.NewClientBuilder().WithScheme(scheme).WithObjects(pod, node).Build()
	})

	It("sends a ready heartbeat and deletes itself on a fresh pod", func() {
		heartbeatErr, killErr := Run(ctx, c, pod.Name, pod.Namespace)
		Expect(heartbeatErr).NotTo(HaveOccurred())
		Expect(killErr).NotTo(HaveOccurred())

		list := &chaosv1.HeartbeatList{}
		Expect(c.List(ctx, list)).To(Succeed())
		Expect(list.Items).To(HaveLen(1))
		Expect(list.Items[0].Ready).To(BeTrue())
		Expect(list.Items[0].Name).To(ContainSubstring("pod-lifecycle-probe-eu-west-1a"))

		Expect(c.Get(ctx, client.ObjectKeyFromObject(pod), &corev1.Pod{})).To(HaveOccurred())
	})

	It("sends a not-ready heartbeat when the container already restarted", func() {
		pod.Status.ContainerStatuses[0].RestartCount = 2
		Expect(c.Update(ctx, pod)).To(Succeed())

		heartbeatErr, _ := Run(ctx, c, pod.Name, pod.Namespace)
		Expect(heartbeatErr).NotTo(HaveOccurred())

		list := &chaosv1.HeartbeatList{}
		Expect(c.List(ctx, list)).To(Succeed())
		Expect(list.Items).To(HaveLen(1))
		Expect(list.Items[0].Ready).To(BeFalse())
	})

	It("reports a heartbeat error without attempting self-deletion", func() {
		heartbeatErr, killErr := Run(ctx, c, "missing-pod", pod.Namespace)
		Expect(heartbeatErr).To(HaveOccurred())
		Expect(apierrors.IsNotFound(killErr)).To(BeFalse())
		Expect(killErr).NotTo(HaveOccurred())
	})
})
