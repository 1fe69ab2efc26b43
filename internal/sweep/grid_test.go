package sweep_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/herdsim/internal/config"
	"github.com/san-kum/herdsim/internal/dynamo"
	"github.com/san-kum/herdsim/internal/sweep"
)

var _ = Describe("Range", func() {
	DescribeTable("enumerates every rounded value up to the end",
		func(r sweep.Range, count int, first, last float64) {
			vals := r.Values(1000)
			Expect(vals).To(HaveLen(count))
			Expect(vals[0]).To(Equal(first))
			Expect(vals[len(vals)-1]).To(Equal(last))
		},
		Entry("stiffness root", sweep.Range{Start: 2.5, End: 10, Step: 0.25}, 31, 2.5, 10.0),
		Entry("damping ratio", sweep.Range{Start: 0.5, End: 2, Step: 0.05}, 31, 0.5, 2.0),
		Entry("offset", sweep.Range{Start: 0.3, End: 0.4, Step: 0.05}, 3, 0.3, 0.4),
		Entry("single value", sweep.Range{Start: 0.35, End: 0.35, Step: 0.05}, 1, 0.35, 0.35),
	)

	It("does not loop forever on a non-positive step", func() {
		Expect(sweep.Range{Start: 1, End: 2, Step: 0}.Values(1000)).To(Equal([]float64{1}))
	})
})

var _ = Describe("Grid", func() {
	It("covers the default sweep exhaustively", func() {
		g := sweep.GridFromConfig(config.DefaultSweep())
		combos := g.Combinations()
		Expect(combos).To(HaveLen(3 * 31 * 31 * 3))
		Expect(g.Total()).To(Equal(3 * 31 * 31 * 3 * 10))

		for i, c := range combos {
			Expect(c.Index).To(Equal(i))
		}
		Expect(combos[0]).To(Equal(sweep.Combination{Index: 0, MaxSpeed: 0.12, StiffnessRoot: 2.5, DampingRatio: 0.5, Offset: 0.3}))
		Expect(combos[1].Offset).To(Equal(0.35), "offset varies fastest")
		Expect(combos[len(combos)-1].MaxSpeed).To(Equal(0.28))
	})

	It("derives stiffness and damping", func() {
		c := sweep.Combination{StiffnessRoot: 8, DampingRatio: 0.625}
		Expect(c.Stiffness()).To(Equal(64.0))
		Expect(c.Damping()).To(BeNumerically("~", 10, 1e-12))
	})

	It("round-trips gains through FromGains", func() {
		c := sweep.FromGains(0.2, config.GainsConfig{Damping: 10, Stiffness: 64, Offset: 0.35})
		Expect(c.StiffnessRoot).To(Equal(8.0))
		Expect(c.DampingRatio).To(BeNumerically("~", 0.625, 1e-12))
		Expect(c.Offset).To(Equal(0.35))
	})

	It("rejects non-finite parameters", func() {
		c := sweep.Combination{MaxSpeed: 0.2, StiffnessRoot: math.Inf(1), DampingRatio: 1, Offset: 0.3}
		Expect(c.Validate()).To(MatchError(dynamo.ErrNonFinite))
		c.StiffnessRoot = 3
		Expect(c.Validate()).To(Succeed())
	})
})

var _ = Describe("Queue", func() {
	It("hands out each combination once", func() {
		q := sweep.NewQueue([]sweep.Combination{{Index: 0}, {Index: 1}})
		a, ok := q.Next()
		Expect(ok).To(BeTrue())
		b, ok := q.Next()
		Expect(ok).To(BeTrue())
		Expect([]int{a.Index, b.Index}).To(Equal([]int{0, 1}))
		_, ok = q.Next()
		Expect(ok).To(BeFalse())
		Expect(q.Remaining()).To(Equal(0))
	})
})
