package mtl

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/l7mp/dverify/pkg/interval"
)

const (
	F = false
	T = true
)

var _ = Describe("DiscreteMonitor", func() {
	Describe("temporal operators", func() {
		It("should evaluate SINCE", func() {
			g := mustGraph([]string{"p", "q"},
				Node{Kind: KindProposition, Prop: 0},
				Node{Kind: KindProposition, Prop: 1},
				Node{Kind: KindSince, Left: 0, Right: 1, Lower: 2, Upper: 3},
			)
			Expect(runDiscrete(g,
				[]bool{F, F, T, T, T, F},
				[]bool{F, T, F, F, T, F},
			)).To(Equal([]bool{F, F, F, T, T, F}))
		})

		It("should evaluate ALWAYS", func() {
			g := mustGraph([]string{"p"},
				Node{Kind: KindProposition, Prop: 0},
				Node{Kind: KindAlways, Right: 0, Lower: 1, Upper: 2},
			)
			Expect(runDiscrete(g, []bool{F, F, T, T, T, F})).To(Equal([]bool{T, F, F, F, T, T}))
		})

		It("should evaluate nested EVENTUALLY", func() {
			g := mustGraph([]string{"p", "q"},
				Node{Kind: KindProposition, Prop: 0},
				Node{Kind: KindProposition, Prop: 1},
				Node{Kind: KindOr, Left: 0, Right: 1},
				Node{Kind: KindEventually, Right: 2, Lower: 1, Upper: 2},
				Node{Kind: KindEventually, Right: 3, Lower: 1, Upper: 2},
			)
			Expect(runDiscrete(g,
				[]bool{T, F, F, F, F, F},
				[]bool{F, F, F, F, T, F},
			)).To(Equal([]bool{F, F, T, T, T, F}))
		})

		It("should hold an unbounded EVENTUALLY forever", func() {
			g := mustGraph([]string{"p"},
				Node{Kind: KindProposition, Prop: 0},
				Node{Kind: KindEventually, Right: 0, Upper: interval.Infinity},
			)
			Expect(runDiscrete(g, []bool{F, F, T, F, F, F})).To(Equal([]bool{F, F, T, T, T, T}))
		})
	})

	It("should evaluate the propositional connectives", func() {
		g := mustGraph([]string{"p", "q"},
			Node{Kind: KindProposition, Prop: 0},
			Node{Kind: KindProposition, Prop: 1},
			Node{Kind: KindAnd, Left: 0, Right: 1},
			Node{Kind: KindOr, Left: 0, Right: 1},
			Node{Kind: KindNot, Right: 0},
			Node{Kind: KindImplies, Left: 0, Right: 1},
		)
		m := NewDiscreteMonitor(g, Options{})
		for t, in := range [][]bool{{F, F}, {F, T}, {T, F}, {T, T}} {
			out, err := m.Step(int64(t), in)
			Expect(err).NotTo(HaveOccurred())
			and, _ := m.Output(2)
			or, _ := m.Output(3)
			not, _ := m.Output(4)
			Expect(and).To(Equal(in[0] && in[1]))
			Expect(or).To(Equal(in[0] || in[1]))
			Expect(not).To(Equal(!in[0]))
			Expect(out).To(Equal(!in[0] || in[1]))
		}
	})

	It("should take signal values for one step only", func() {
		g := mustGraph(nil,
			Node{Kind: KindSignal},
			Node{Kind: KindEventually, Right: 0, Upper: 2},
		)
		m := NewDiscreteMonitor(g, Options{})
		Expect(m.SetSignal(0, true)).To(Succeed())
		res := []bool{}
		for t := int64(0); t < 4; t++ {
			out, err := m.Step(t, nil)
			Expect(err).NotTo(HaveOccurred())
			res = append(res, out)
		}
		Expect(res).To(Equal([]bool{T, T, T, F}))
		Expect(m.SetSignal(1, true)).To(MatchError(ErrNotSignal))
	})

	Describe("input validation", func() {
		var m *DiscreteMonitor

		BeforeEach(func() {
			g := mustGraph([]string{"p"},
				Node{Kind: KindProposition, Prop: 0},
				Node{Kind: KindEventually, Right: 0, Lower: 0, Upper: 3},
			)
			m = NewDiscreteMonitor(g, Options{})
		})

		It("should reject a wrong arity", func() {
			_, err := m.Step(0, []bool{T, F})
			Expect(err).To(MatchError(ErrArity))
			Expect(m.Steps()).To(BeZero())
		})

		It("should reject non-increasing time without touching the state", func() {
			out, err := m.Step(5, []bool{T})
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(BeTrue())

			_, err = m.Step(5, []bool{F})
			Expect(err).To(MatchError(ErrTimeOrder))
			_, err = m.Step(4, []bool{F})
			Expect(err).To(MatchError(ErrTimeOrder))

			state, err := m.State(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(state).To(Equal([]interval.Interval{iv(6, 9)}))

			out, err = m.Step(8, []bool{F})
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(BeTrue())
			out, err = m.Step(9, []bool{F})
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(BeFalse())
		})

		It("should replay identically after a reset", func() {
			in := []bool{T, F, F, F, F, T}
			first := []bool{}
			for t, p := range in {
				out, err := m.Step(int64(t), []bool{p})
				Expect(err).NotTo(HaveOccurred())
				first = append(first, out)
			}
			m.Reset()
			Expect(m.Steps()).To(BeZero())
			for t, p := range in {
				out, err := m.Step(int64(t), []bool{p})
				Expect(err).NotTo(HaveOccurred())
				Expect(out).To(Equal(first[t]))
			}
		})
	})

	It("should report arena exhaustion as a step error", func() {
		g := mustGraph([]string{"p"},
			Node{Kind: KindProposition, Prop: 0},
			Node{Kind: KindEventually, Right: 0, Upper: 10},
		)
		m := NewDiscreteMonitor(g, Options{Capacity: 2, MaxCapacity: 2})
		_, err := m.Step(0, []bool{T})
		Expect(err).To(MatchError(interval.ErrCapacityExceeded))
		var serr *StepError
		Expect(errors.As(err, &serr)).To(BeTrue())
		Expect(serr.Node).To(Equal(1))
		Expect(serr.Kind).To(Equal(KindEventually))
		Expect(m.Steps()).To(BeZero())
	})

	It("should accept a smaller step after arena exhaustion", func() {
		// once[0:0]{p} or once[0:0]{q}: a tick with both p and q needs twice the arena of a tick
		// with p alone
		g := mustGraph([]string{"p", "q"},
			Node{Kind: KindProposition, Prop: 0},
			Node{Kind: KindProposition, Prop: 1},
			Node{Kind: KindEventually, Right: 0},
			Node{Kind: KindEventually, Right: 1},
			Node{Kind: KindOr, Left: 2, Right: 3},
		)
		m := NewDiscreteMonitor(g, Options{Capacity: 10, MaxCapacity: 10})
		_, err := m.Step(0, []bool{T, T})
		var serr *StepError
		Expect(errors.As(err, &serr)).To(BeTrue())
		Expect(serr.Node).To(Equal(3))
		Expect(m.ArenaStats().Len).To(BeZero())

		for t := int64(1); t <= 3; t++ {
			out, err := m.Step(t, []bool{T, F})
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(BeTrue())
		}
		Expect(m.Steps()).To(Equal(uint64(3)))
	})
})
