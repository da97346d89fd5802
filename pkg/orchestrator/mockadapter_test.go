package orchestrator_test

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/go-logr/logr"
	"go.uber.org/mock/gomock"

	"github.com/gardener/chaos-engineering/pkg/cloud"
	"github.com/gardener/chaos-engineering/pkg/cloud/cloudmock"
	. "github.com/gardener/chaos-engineering/pkg/orchestrator"
)

// These specs exercise the same entry points as the fakeAdapter-based specs
// in orchestrator_test.go, but against a gomock-generated cloud.Adapter so call arguments and
// ordering are asserted directly rather than inferred from recorded side
// effects.
var _ = Describe("ComputeTick against a mocked Adapter", func() {
	var (
		ctrl    *gomock.Controller
		adapter *cloudmock.MockAdapter
	)

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		adapter = cloudmock.NewMockAdapter(ctrl)
	})

	AfterEach(func() {
		ctrl.Finish()
	})

	It("lists with the configured zone and filter, then terminates once due", func() {
		cfg := ComputeFailureConfig{Mode: Terminate, Zone: "eu-1", MinDelay: 0, MaxDelay: time.Millisecond, TerminationBackoff: time.Hour}
		instance := cloud.Instance{ID: "i-1", State: cloud.ComputeRunning}
		schedule := ComputeSchedule{}
		now := time.Now()

		adapter.EXPECT().ListCompute(gomock.Any(), "eu-1", cfg.Filter).Return([]cloud.Instance{instance}, nil).Times(2)
		adapter.EXPECT().TerminateCompute(gomock.Any(), instance).Return(nil)

		ComputeTick(context.Background(), logr.Discard(), adapter, cfg, schedule, now)
		ComputeTick(context.Background(), logr.Discard(), adapter, cfg, schedule, now.Add(time.Second))
	})

	It("stops retrying a throttled op once non-throttling", func() {
		calls := 0
		err := cloud.WithThrottleRetry(context.Background(), nil, func(ctx context.Context) error {
			calls++
			if calls < 2 {
				return &cloud.Throttled{Err: context.DeadlineExceeded}
			}
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal(2))
	})
})

var _ = Describe("Rollback against a mocked Adapter", func() {
	var (
		ctrl    *gomock.Controller
		adapter *cloudmock.MockAdapter
	)

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		adapter = cloudmock.NewMockAdapter(ctrl)
	})

	AfterEach(func() {
		ctrl.Finish()
	})

	It("restores every mapped resource then deletes the artifact, in that order", func() {
		artifact := &cloud.BlockingArtifact{ID: "a1", Zone: "eu-1", FilterHash: "hash", Mode: cloud.Total}

		gomock.InOrder(
			adapter.EXPECT().FindBlockingArtifact(gomock.Any(), "eu-1", "hash", cloud.Total).Return(artifact, nil),
			adapter.EXPECT().Restore(gomock.Any(), cloud.Network{ID: "net-1", Zone: "eu-1"}, "acl-a").Return(nil),
			adapter.EXPECT().DeleteBlockingArtifact(gomock.Any(), artifact).Return(nil),
		)
		adapter.EXPECT().ReadOriginalAssociations(artifact).Return(map[string]string{"net-1": "acl-a"}, nil)

		err := Rollback(context.Background(), logr.Discard(), adapter, "eu-1", "hash", cloud.Total, nil)
		Expect(err).NotTo(HaveOccurred())
	})
})

func TestMockAdapterImplementsInterface(t *testing.T) {
	var _ cloud.Adapter = (*cloudmock.MockAdapter)(nil)
}
