package cloud_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/time/rate"

	. "github.com/gardener/chaos-engineering/pkg/cloud"
)

func TestCloud(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Cloud Suite")
}

var _ = Describe("associations round-trip", func() {
	It("round-trips the semicolon format (AWS/OpenStack/GCP)", func() {
		mapping := map[string]string{"subnet-1": "acl-A", "subnet-2": "acl-B"}
		encoded := EncodeAssociationsSemicolon(mapping)
		Expect(encoded).To(Equal("subnet-1:acl-A;subnet-2:acl-B"))
		decoded, err := DecodeAssociationsSemicolon(encoded)
		Expect(err).NotTo(HaveOccurred())
		Expect(decoded).To(Equal(mapping))
	})

	It("round-trips the JSON format (AlibabaCloud/Azure/vSphere)", func() {
		mapping := map[string]string{"resource-1": "acl-A"}
		encoded, err := EncodeAssociationsJSON(mapping)
		Expect(err).NotTo(HaveOccurred())
		decoded, err := DecodeAssociationsJSON(encoded)
		Expect(err).NotTo(HaveOccurred())
		Expect(decoded).To(Equal(mapping))
	})

	It("rejects a malformed semicolon pair", func() {
		_, err := DecodeAssociationsSemicolon("nocolon")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("WithThrottleRetry", func() {
	It("returns immediately on a non-throttling error", func() {
		calls := 0
		err := WithThrottleRetry(context.Background(), nil, func(ctx context.Context) error {
			calls++
			return errors.New("boom")
		})
		Expect(err).To(MatchError("boom"))
		Expect(calls).To(Equal(1))
	})

	It("retries throttled errors up to 5 attempts total", func() {
		calls := 0
		err := WithThrottleRetry(context.Background(), nil, func(ctx context.Context) error {
			calls++
			return &Throttled{Err: errors.New("rate limited")}
		})
		Expect(IsThrottled(err)).To(BeTrue())
		Expect(calls).To(Equal(5))
	})

	It("succeeds once a retried operation stops throttling", func() {
		calls := 0
		err := WithThrottleRetry(context.Background(), nil, func(ctx context.Context) error {
			calls++
			if calls < 2 {
				return &Throttled{Err: errors.New("rate limited")}
			}
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(Equal(2))
	})

	It("paces successive calls through a shared non-nil limiter", func() {
		limiter := rate.NewLimiter(rate.Every(20*time.Millisecond), 1)
		var timestamps []time.Time
		op := func(ctx context.Context) error {
			timestamps = append(timestamps, time.Now())
			return nil
		}
		for i := 0; i < 3; i++ {
			Expect(WithThrottleRetry(context.Background(), limiter, op)).To(Succeed())
		}
		Expect(timestamps).To(HaveLen(3))
		Expect(timestamps[1].Sub(timestamps[0])).To(BeNumerically(">=", 15*time.Millisecond))
		Expect(timestamps[2].Sub(timestamps[1])).To(BeNumerically(">=", 15*time.Millisecond))
	})
})

var _ = Describe("PollUntilTerminated", func() {
	It("stops once terminated reports true", func() {
		calls := 0
		terminated := false
		go func() {
			time.Sleep(20 * time.Millisecond)
			terminated = true
		}()
		err := PollUntilTerminated(context.Background(), 5*time.Millisecond, func() bool { return terminated }, func(ctx context.Context) error {
			calls++
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(calls).To(BeNumerically(">", 0))
	})
})
