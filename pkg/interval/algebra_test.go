package interval

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Algebra", func() {
	var h *Holder

	BeforeEach(func() {
		h = NewHolder(Options{Capacity: 1024})
	})

	// inputs are written in one generation and read from the next, the same way the evaluators
	// consume operand outputs carried over a swap
	binary := func(op func(a, b Set) (Set, error), a, b []Interval) []Interval {
		setA, setB := mustSet(h, a...), mustSet(h, b...)
		h.Swap()
		res, err := op(setA, setB)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Generation()).To(Equal(h.Generation()))
		return mustIntervals(h, res)
	}

	DescribeTable("Union",
		func(a, b, expected []Interval) {
			Expect(binary(h.Union, a, b)).To(Equal(expected))
		},
		Entry("simple overlap", []Interval{iv(10, 20)}, []Interval{iv(15, 25)}, []Interval{iv(10, 25)}),
		Entry("adjacent", []Interval{iv(10, 20)}, []Interval{iv(20, 30)}, []Interval{iv(10, 30)}),
		Entry("disjoint", []Interval{iv(10, 20)}, []Interval{iv(30, 40)}, []Interval{iv(10, 20), iv(30, 40)}),
		Entry("contained", []Interval{iv(10, 40)}, []Interval{iv(20, 30)}, []Interval{iv(10, 40)}),
		Entry("with empty set", []Interval{iv(10, 20)}, []Interval{}, []Interval{iv(10, 20)}),
		Entry("both empty", []Interval{}, []Interval{}, []Interval{}),
		Entry("multi-interval", []Interval{iv(10, 20), iv(30, 40)}, []Interval{iv(15, 35)}, []Interval{iv(10, 40)}),
		Entry("shared endpoints", []Interval{iv(0, 5), iv(10, 15)}, []Interval{iv(5, 10)}, []Interval{iv(0, 15)}),
	)

	DescribeTable("Intersect",
		func(a, b, expected []Interval) {
			Expect(binary(h.Intersect, a, b)).To(Equal(expected))
		},
		Entry("simple overlap", []Interval{iv(10, 20)}, []Interval{iv(15, 25)}, []Interval{iv(15, 20)}),
		Entry("adjacent", []Interval{iv(10, 20)}, []Interval{iv(20, 30)}, []Interval{}),
		Entry("disjoint", []Interval{iv(10, 20)}, []Interval{iv(30, 40)}, []Interval{}),
		Entry("contained", []Interval{iv(10, 40)}, []Interval{iv(20, 30)}, []Interval{iv(20, 30)}),
		Entry("with empty set", []Interval{iv(10, 20)}, []Interval{}, []Interval{}),
		Entry("multi-interval", []Interval{iv(10, 20), iv(30, 40)}, []Interval{iv(15, 35)},
			[]Interval{iv(15, 20), iv(30, 35)}),
		Entry("identical", []Interval{iv(1, 3), iv(5, 9)}, []Interval{iv(1, 3), iv(5, 9)},
			[]Interval{iv(1, 3), iv(5, 9)}),
		Entry("unbounded", []Interval{iv(5, Infinity)}, []Interval{iv(0, 10), iv(20, 30)},
			[]Interval{iv(5, 10), iv(20, 30)}),
	)

	DescribeTable("Negate",
		func(a []Interval, domain Interval, expected []Interval) {
			setA := mustSet(h, a...)
			h.Swap()
			res, err := h.Negate(setA, domain)
			Expect(err).NotTo(HaveOccurred())
			Expect(mustIntervals(h, res)).To(Equal(expected))
		},
		Entry("simple", []Interval{iv(10, 20)}, iv(0, 100), []Interval{iv(0, 10), iv(20, 100)}),
		Entry("touches domain start", []Interval{iv(0, 10)}, iv(0, 100), []Interval{iv(10, 100)}),
		Entry("touches domain end", []Interval{iv(90, 100)}, iv(0, 100), []Interval{iv(0, 90)}),
		Entry("covers domain", []Interval{iv(0, 100)}, iv(0, 100), []Interval{}),
		Entry("empty set", []Interval{}, iv(0, 100), []Interval{iv(0, 100)}),
		Entry("partially outside", []Interval{iv(-10, 10)}, iv(0, 100), []Interval{iv(10, 100)}),
		Entry("fully outside", []Interval{iv(-20, -10)}, iv(0, 100), []Interval{iv(0, 100)}),
		Entry("multi-interval", []Interval{iv(10, 20), iv(50, 60)}, iv(0, 100),
			[]Interval{iv(0, 10), iv(20, 50), iv(60, 100)}),
		Entry("extends past domain end", []Interval{iv(90, 150)}, iv(0, 100), []Interval{iv(0, 90)}),
		Entry("empty domain", []Interval{iv(10, 20)}, iv(5, 5), []Interval{}),
		Entry("ends at domain start", []Interval{iv(-5, 0)}, iv(0, 10), []Interval{iv(0, 10)}),
	)

	Describe("FromIntervals", func() {
		It("should normalize unsorted overlapping input", func() {
			s := mustSet(h, iv(30, 40), iv(10, 20), iv(15, 25), iv(40, 45), iv(50, 50), iv(60, 55))
			Expect(mustIntervals(h, s)).To(Equal([]Interval{iv(10, 25), iv(30, 45)}))
		})

		It("should keep strictly alternating transitions", func() {
			s := mustSet(h, iv(1, 4), iv(2, 3), iv(4, 6), iv(8, 9))
			ts, err := h.Transitions(s)
			Expect(err).NotTo(HaveOccurred())
			Expect(ts).To(Equal([]Transition{
				{Time: 1, IsStart: true}, {Time: 6, IsStart: false},
				{Time: 8, IsStart: true}, {Time: 9, IsStart: false},
			}))
		})

		It("should return the empty set for no input", func() {
			s := mustSet(h)
			Expect(s.IsEmpty()).To(BeTrue())
		})
	})

	Describe("Mixed generations", func() {
		It("should combine a set from the read buffer with one from the write buffer", func() {
			old := mustSet(h, iv(0, 10))
			h.Swap()
			fresh := mustSet(h, iv(5, 15))
			res, err := h.Union(old, fresh)
			Expect(err).NotTo(HaveOccurred())
			Expect(mustIntervals(h, res)).To(Equal([]Interval{iv(0, 15)}))
		})

		It("should survive buffer growth while reading from the write buffer", func() {
			h = NewHolder(Options{Capacity: 4})
			a := mustSet(h, iv(0, 10))
			b := mustSet(h, iv(5, 15))
			res, err := h.Intersect(a, b)
			Expect(err).NotTo(HaveOccurred())
			Expect(mustIntervals(h, res)).To(Equal([]Interval{iv(5, 10)}))
			Expect(mustIntervals(h, a)).To(Equal([]Interval{iv(0, 10)}))
		})
	})

	Describe("Capacity", func() {
		It("should report overflow from a plane sweep", func() {
			h = NewHolder(Options{Capacity: 8, MaxCapacity: 8})
			a := mustSet(h, iv(0, 10), iv(20, 30))
			b := mustSet(h, iv(5, 25))
			_, err := h.Union(a, b)
			Expect(err).To(MatchError(ErrCapacityExceeded))
		})
	})
})
