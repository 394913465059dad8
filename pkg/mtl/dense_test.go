package mtl

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/l7mp/dverify/pkg/interval"
)

var _ = Describe("DenseMonitor", func() {
	step := func(m *DenseMonitor, t0, t1 int64, props []bool) []interval.Interval {
		out, err := m.Step(t0, t1, props)
		Expect(err).NotTo(HaveOccurred())
		ivs, err := m.Intervals(out)
		Expect(err).NotTo(HaveOccurred())
		return ivs
	}

	Describe("SINCE across steps", func() {
		var m *DenseMonitor

		BeforeEach(func() {
			g := mustGraph(nil,
				Node{Kind: KindSignal, Name: "p"},
				Node{Kind: KindSignal, Name: "q"},
				Node{Kind: KindSince, Left: 0, Right: 1, Lower: 18, Upper: 24},
			)
			m = NewDenseMonitor(g, Options{Capacity: 16})
		})

		It("should carry the pending window over buffer swaps", func() {
			type stepCase struct {
				t0, t1   int64
				p, q     []interval.Interval
				expected []interval.Interval
			}
			for _, c := range []stepCase{
				{0, 30, []interval.Interval{iv(7, 30)}, []interval.Interval{iv(3, 8)},
					[]interval.Interval{iv(25, 30)}},
				{30, 47, []interval.Interval{iv(30, 35), iv(39, 47)}, []interval.Interval{iv(38, 39)},
					[]interval.Interval{iv(30, 32)}},
				{47, 75, []interval.Interval{iv(47, 49), iv(63, 75)}, []interval.Interval{iv(70, 75)},
					[]interval.Interval{}},
				{75, 99, []interval.Interval{iv(75, 99)}, []interval.Interval{iv(75, 89)},
					[]interval.Interval{iv(88, 99)}},
			} {
				Expect(m.SetSignal(0, c.p)).To(Succeed())
				Expect(m.SetSignal(1, c.q)).To(Succeed())
				Expect(step(m, c.t0, c.t1, nil)).To(Equal(c.expected), "window [%d,%d)", c.t0, c.t1)
			}
			Expect(m.Steps()).To(Equal(uint64(4)))
		})

		It("should expose the pending state", func() {
			Expect(m.SetSignal(0, []interval.Interval{iv(7, 30)})).To(Succeed())
			Expect(m.SetSignal(1, []interval.Interval{iv(3, 8)})).To(Succeed())
			step(m, 0, 30, nil)
			Expect(m.State(2)).To(Equal([]interval.Interval{iv(30, 32)}))
			Expect(m.Output(0)).To(Equal([]interval.Interval{iv(7, 30)}))
		})

		It("should clip signals to the step window", func() {
			Expect(m.SetSignal(0, []interval.Interval{iv(-10, 100)})).To(Succeed())
			step(m, 0, 30, nil)
			Expect(m.Output(0)).To(Equal([]interval.Interval{iv(0, 30)}))
		})

		It("should reject SetSignal on other nodes", func() {
			Expect(m.SetSignal(2, nil)).To(MatchError(ErrNotSignal))
			Expect(m.SetSignal(7, nil)).To(MatchError(ErrNotSignal))
		})
	})

	It("should evaluate the propositional connectives", func() {
		g := mustGraph([]string{"p", "q"},
			Node{Kind: KindProposition, Prop: 0},
			Node{Kind: KindProposition, Prop: 1},
			Node{Kind: KindAnd, Left: 0, Right: 1},
			Node{Kind: KindOr, Left: 0, Right: 1},
			Node{Kind: KindNot, Right: 0},
			Node{Kind: KindImplies, Left: 1, Right: 0},
			Node{Kind: KindImplies, Left: 0, Right: 1},
		)
		m := NewDenseMonitor(g, Options{})
		Expect(step(m, 0, 10, []bool{T, F})).To(BeEmpty())
		Expect(m.Output(2)).To(BeEmpty())
		Expect(m.Output(3)).To(Equal([]interval.Interval{iv(0, 10)}))
		Expect(m.Output(4)).To(BeEmpty())
		Expect(m.Output(5)).To(Equal([]interval.Interval{iv(0, 10)}))
	})

	It("should shift EVENTUALLY windows inside a step", func() {
		g := mustGraph(nil,
			Node{Kind: KindSignal},
			Node{Kind: KindEventually, Right: 0, Lower: 2, Upper: 5},
		)
		m := NewDenseMonitor(g, Options{})
		Expect(m.SetSignal(0, []interval.Interval{iv(0, 3)})).To(Succeed())
		Expect(step(m, 0, 10, nil)).To(Equal([]interval.Interval{iv(2, 8)}))
	})

	It("should evaluate a bounded ALWAYS", func() {
		g := mustGraph(nil,
			Node{Kind: KindSignal},
			Node{Kind: KindAlways, Right: 0, Upper: 2},
		)
		m := NewDenseMonitor(g, Options{})
		Expect(m.SetSignal(0, []interval.Interval{iv(0, 5)})).To(Succeed())
		Expect(step(m, 0, 10, nil)).To(Equal([]interval.Interval{iv(0, 5)}))
		Expect(m.State(1)).To(Equal([]interval.Interval{iv(10, 12)}))

		Expect(m.SetSignal(0, []interval.Interval{iv(10, 20)})).To(Succeed())
		Expect(step(m, 10, 20, nil)).To(Equal([]interval.Interval{iv(12, 20)}))
	})

	Describe("recurrence", func() {
		// historically(once[:10]{p})
		var m *DenseMonitor

		BeforeEach(func() {
			g := mustGraph([]string{"p"},
				Node{Kind: KindProposition, Prop: 0},
				Node{Kind: KindEventually, Right: 0, Upper: 10},
				Node{Kind: KindAlways, Right: 1, Upper: interval.Infinity},
			)
			m = NewDenseMonitor(g, Options{Capacity: 8})
		})

		It("should hold on every window while p recurs", func() {
			for t := int64(0); t < 400; t += 4 {
				p := (t/4)%2 == 0
				Expect(step(m, t, t+4, []bool{p})).To(Equal([]interval.Interval{iv(t, t+4)}))
			}
			Expect(m.ArenaStats().HighWater).To(BeNumerically("<", 64))
		})

		It("should fail forever once p stops recurring", func() {
			Expect(step(m, 0, 4, []bool{T})).To(Equal([]interval.Interval{iv(0, 4)}))
			Expect(step(m, 4, 8, []bool{F})).To(Equal([]interval.Interval{iv(4, 8)}))
			Expect(step(m, 8, 12, []bool{F})).To(Equal([]interval.Interval{iv(8, 12)}))
			Expect(step(m, 12, 16, []bool{F})).To(Equal([]interval.Interval{iv(12, 14)}))
			Expect(step(m, 16, 20, []bool{T})).To(BeEmpty())
		})
	})

	Describe("input validation", func() {
		var m *DenseMonitor

		BeforeEach(func() {
			g := mustGraph([]string{"p"}, Node{Kind: KindProposition, Prop: 0})
			m = NewDenseMonitor(g, Options{})
		})

		It("should reject empty and overlapping windows", func() {
			_, err := m.Step(5, 5, []bool{T})
			Expect(err).To(MatchError(ErrTimeOrder))
			step(m, 5, 10, []bool{T})
			_, err = m.Step(9, 12, []bool{T})
			Expect(err).To(MatchError(ErrTimeOrder))
			Expect(step(m, 12, 15, []bool{T})).To(Equal([]interval.Interval{iv(12, 15)}))
		})

		It("should reject a wrong arity", func() {
			_, err := m.Step(0, 1, nil)
			Expect(err).To(MatchError(ErrArity))
		})

		It("should keep the result readable until the next step completes", func() {
			out, err := m.Step(0, 5, []bool{T})
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Intervals(out)).To(Equal([]interval.Interval{iv(0, 5)}))
			step(m, 5, 10, []bool{F})
			_, err = m.Intervals(out)
			Expect(err).To(MatchError(interval.ErrStaleSet))
		})

		It("should report arena exhaustion as a step error", func() {
			m = NewDenseMonitor(m.Graph(), Options{Capacity: 1, MaxCapacity: 1})
			_, err := m.Step(0, 5, []bool{T})
			var serr *StepError
			Expect(err).To(BeAssignableToTypeOf(serr))
			Expect(err).To(MatchError(interval.ErrCapacityExceeded))
		})
	})

	Describe("recovery after arena exhaustion", func() {
		// or(s, p) with a hard arena limit of 8 transitions
		var m *DenseMonitor

		BeforeEach(func() {
			g := mustGraph([]string{"p"},
				Node{Kind: KindSignal, Name: "s"},
				Node{Kind: KindProposition, Prop: 0},
				Node{Kind: KindOr, Left: 0, Right: 1},
			)
			m = NewDenseMonitor(g, Options{Capacity: 8, MaxCapacity: 8})
		})

		It("should accept a small step after a failed one", func() {
			Expect(m.SetSignal(0, []interval.Interval{iv(0, 1), iv(2, 3), iv(4, 5)})).To(Succeed())
			_, err := m.Step(0, 10, []bool{T})
			Expect(err).To(MatchError(interval.ErrCapacityExceeded))
			Expect(m.ArenaStats().Len).To(BeZero())
			Expect(m.Steps()).To(BeZero())

			Expect(m.SetSignal(0, nil)).To(Succeed())
			for _, t0 := range []int64{10, 20, 30} {
				Expect(step(m, t0, t0+10, []bool{T})).To(Equal([]interval.Interval{iv(t0, t0+10)}))
			}
			Expect(m.Steps()).To(Equal(uint64(3)))
		})

		It("should keep the outputs of the last successful step", func() {
			Expect(step(m, 0, 5, []bool{T})).To(Equal([]interval.Interval{iv(0, 5)}))

			// fails at the OR after the proposition output was computed
			Expect(m.SetSignal(0, []interval.Interval{iv(5, 7)})).To(Succeed())
			_, err := m.Step(5, 15, []bool{T})
			var serr *StepError
			Expect(errors.As(err, &serr)).To(BeTrue())
			Expect(serr.Node).To(Equal(2))
			Expect(m.Output(1)).To(Equal([]interval.Interval{iv(0, 5)}))
			Expect(m.Output(2)).To(Equal([]interval.Interval{iv(0, 5)}))

			Expect(m.SetSignal(0, nil)).To(Succeed())
			Expect(step(m, 5, 15, []bool{T})).To(Equal([]interval.Interval{iv(5, 15)}))
			Expect(m.Output(1)).To(Equal([]interval.Interval{iv(5, 15)}))
		})
	})
})
