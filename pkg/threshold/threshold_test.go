package threshold_test

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	. "github.com/gardener/chaos-engineering/pkg/threshold"
)

func TestThreshold(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Threshold Suite")
}

var _ = Describe("Table", func() {
	It("returns DefaultToleration when no rule matches", func() {
		table := NewTable(nil, nil)
		Expect(table.Get("api", "z0")).To(Equal(DefaultToleration))
	})

	It("resolves negation: applies to every zone except the one negated", func() {
		table := NewTable(map[string]map[string]int{
			"!z1": {"api": 60},
		}, []string{"z1", "z2"})
		Expect(table.Get("api", "z2")).To(Equal(60 * time.Second))
		Expect(table.Get("api", "z1")).To(Equal(DefaultToleration))
	})

	It("resolves an integer selector against the sorted known zones", func() {
		table := NewTable(map[string]map[string]int{
			"0": {"api": 30},
		}, []string{"z2", "z1"}) // sorted -> [z1, z2], index 0 == z1
		Expect(table.Get("api", "z1")).To(Equal(30 * time.Second))
		Expect(table.Get("api", "z2")).To(Equal(DefaultToleration))
	})

	It("prefers an exact match over a negated match", func() {
		table := NewTable(map[string]map[string]int{
			"z1":  {"api": 10},
			"!z1": {"api": 99},
		}, []string{"z1", "z2"})
		Expect(table.Get("api", "z1")).To(Equal(10 * time.Second))
	})

	It("matches the assessment scenario from the spec", func() {
		table := NewTable(map[string]map[string]int{
			"z0": {"api": 180},
		}, []string{"z0"})
		Expect(table.Get("api", "z0")).To(Equal(180 * time.Second))
	})
})
