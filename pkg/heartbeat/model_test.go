package heartbeat_test

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	. "github.com/gardener/chaos-engineering/pkg/heartbeat"
)

func TestHeartbeat(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Heartbeat Suite")
}

func at(seconds int) time.Time {
	return time.Unix(int64(seconds), 0).UTC()
}

var _ = Describe("BuildStateSeries", func() {
	It("inserts exactly one synthetic Unknown at start+initial_gap when nothing precedes it", func() {
		series := BuildStateSeries("api", "z0", nil, at(0), at(60), Tolerations{InitialGap: 15 * time.Second, RegularGap: 15 * time.Second})
		phases := series.PhaseSeries()
		Expect(phases).To(HaveLen(1))
		Expect(phases[0].State).To(Equal(Unknown))
	})

	It("reproduces the spec's gap-insertion scenario (heartbeats at 5,10,40; start=0,stop=60)", func() {
		hbs := []Heartbeat{
			{Probe: "api", Zone: "z0", Timestamp: at(5), Ready: true},
			{Probe: "api", Zone: "z0", Timestamp: at(10), Ready: true},
			{Probe: "api", Zone: "z0", Timestamp: at(40), Ready: true},
		}
		series := BuildStateSeries("api", "z0", hbs, at(0), at(60), Tolerations{InitialGap: 15 * time.Second, RegularGap: 15 * time.Second})
		phases := series.PhaseSeries()

		var total time.Duration
		for _, p := range phases {
			total += p.Duration
		}
		Expect(total).To(Equal(60 * time.Second - 5*time.Second))

		// Synthesized gaps land at t=25 (40-10 > regular_gap) and t=60 (trailing).
		Expect(phases[len(phases)-1].State).To(Equal(Unknown))
	})

	It("drops initial NotReady heartbeats inside the initial-failure-exclusion window", func() {
		hbs := []Heartbeat{
			{Probe: "webhook", Zone: "z0", Timestamp: at(10), Ready: false},
			{Probe: "webhook", Zone: "z0", Timestamp: at(55), Ready: true},
		}
		series := BuildStateSeries("webhook", "z0", hbs, at(0), at(60), Tolerations{InitialFailureExclusion: 50 * time.Second, InitialGap: 50 * time.Second, RegularGap: 30 * time.Second})
		for _, p := range series.PhaseSeries() {
			Expect(p.State).NotTo(Equal(NotReady))
		}
	})
})

var _ = Describe("PhaseSeries invariant", func() {
	It("sums to last-first for any series of length >= 2", func() {
		hbs := []Heartbeat{
			{Probe: "api", Zone: "z0", Timestamp: at(0), Ready: true},
			{Probe: "api", Zone: "z0", Timestamp: at(100), Ready: true},
		}
		series := BuildStateSeries("api", "z0", hbs, at(0), at(100), Tolerations{InitialGap: 15 * time.Second, RegularGap: 15 * time.Second})
		phases := series.PhaseSeries()
		var sum time.Duration
		for _, p := range phases {
			sum += p.Duration
		}
		first, last := at(0), at(100)
		Expect(sum).To(Equal(last.Sub(first)))
	})
})

var _ = Describe("Assess", func() {
	It("reports a functional-outage violation matching the spec's worked example", func() {
		m := Metrics{Probe: "api", Zone: "z0", HeartbeatsSent: 10, HeartbeatsReceived: 10, Downtime: 200 * time.Second}
		violations := Assess(m, 180*time.Second)
		Expect(violations).To(HaveLen(1))
		Expect(violations[0].Message).To(ContainSubstring("200s not Ready"))
		Expect(violations[0].Message).To(ContainSubstring("180s were tolerated"))
	})

	It("reports a data-loss violation when lost != 0", func() {
		m := Metrics{Probe: "api", Zone: "z0", HeartbeatsSent: 10, HeartbeatsReceived: 8}
		violations := Assess(m, time.Hour)
		Expect(violations).To(HaveLen(1))
		Expect(violations[0].Message).To(ContainSubstring("data loss"))
	})

	It("reports nothing when within toleration and no loss", func() {
		m := Metrics{Probe: "api", Zone: "z0", HeartbeatsSent: 10, HeartbeatsReceived: 10, Downtime: 5 * time.Second}
		Expect(Assess(m, 10*time.Second)).To(BeEmpty())
	})
})
