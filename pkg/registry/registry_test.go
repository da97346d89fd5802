package registry_test

import (
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/go-logr/logr"

	. "github.com/gardener/chaos-engineering/pkg/registry"
)

func TestRegistry(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Registry Suite")
}

var _ = Describe("Registry", func() {
	It("joins a launched worker once it returns on its own", func() {
		r := New(logr.Discard())
		var ran int32
		h := r.Launch("worker", func(cancelled func() bool) {
			atomic.StoreInt32(&ran, 1)
		})
		h.Join()
		Expect(atomic.LoadInt32(&ran)).To(Equal(int32(1)))
	})

	It("signals a single worker's cancel flag without affecting others", func() {
		r := New(logr.Discard())
		stop1 := make(chan struct{})
		h1 := r.Launch("w1", func(cancelled func() bool) {
			for !cancelled() {
				time.Sleep(time.Millisecond)
			}
			close(stop1)
		})
		h2 := r.Launch("w2", func(cancelled func() bool) {})
		h2.Join()

		Expect(r.IsCancelled(h1)).To(BeFalse())
		r.Cancel(h1)
		<-stop1
		Expect(r.IsCancelled(h1)).To(BeTrue())
		Expect(r.IsCancelled(h2)).To(BeFalse())
	})

	It("returns a no-op handle once in global termination", func() {
		r := New(logr.Discard())
		r.CancelAll()
		h := r.Launch("late", func(cancelled func() bool) {
			t := time.NewTimer(time.Hour)
			defer t.Stop()
			<-t.C
		})
		done := make(chan struct{})
		go func() { h.Join(); close(done) }()
		Eventually(done).Should(BeClosed())
	})

	It("cancels every worker on CancelAll and waits for all to return", func() {
		r := New(logr.Discard())
		const n = 5
		var stopped int32
		for i := 0; i < n; i++ {
			r.Launch("w", func(cancelled func() bool) {
				for !cancelled() {
					time.Sleep(time.Millisecond)
				}
				atomic.AddInt32(&stopped, 1)
			})
		}
		r.CancelAll()
		Expect(atomic.LoadInt32(&stopped)).To(Equal(int32(n)))
	})

	It("CancelAll is idempotent when called again after termination", func() {
		r := New(logr.Discard())
		r.CancelAll()
		Expect(func() { r.CancelAll() }).NotTo(Panic())
	})
})
