package interval

import "fmt"

// Segment is a maximal sub-interval of the iteration domain on which both inputs are constant.
type Segment struct {
	Interval
	Left  bool
	Right bool
}

func (s Segment) String() string {
	return fmt.Sprintf("%s%s%s", s.Interval, truthy(s.Left), truthy(s.Right))
}

func truthy(b bool) string {
	if b {
		return "T"
	}
	return "F"
}

// SegmentIterator walks a domain and reports the joint truth value of two sets on every maximal
// constant sub-interval. Segments tile the domain exactly and are never empty.
//
// The iterator reads the arena directly: it must be drained before the holder is swapped twice.
type SegmentIterator struct {
	left, right []Transition
	domain      Interval
	li, ri      int
	pending     int64
	inL, inR    bool
	current     Segment
}

// Segments creates an iterator over domain for the sets a (left) and b (right).
func (h *Holder) Segments(a, b Set, domain Interval) (SegmentIterator, error) {
	ta, err := h.view(a)
	if err != nil {
		return SegmentIterator{}, err
	}
	tb, err := h.view(b)
	if err != nil {
		return SegmentIterator{}, err
	}
	return newSegmentIterator(ta, tb, domain), nil
}

func newSegmentIterator(ta, tb []Transition, domain Interval) SegmentIterator {
	it := SegmentIterator{left: ta, right: tb, domain: domain, pending: domain.Start}

	// Fold everything up to and including the domain start so the first segment starts there.
	for ; it.li < len(ta) && ta[it.li].Time <= domain.Start; it.li++ {
		it.inL = ta[it.li].IsStart
	}
	for ; it.ri < len(tb) && tb[it.ri].Time <= domain.Start; it.ri++ {
		it.inR = tb[it.ri].IsStart
	}
	return it
}

// Next advances to the next segment and returns false once the domain is exhausted.
func (it *SegmentIterator) Next() bool {
	if it.pending >= it.domain.End {
		return false
	}

	end := it.domain.End
	if it.li < len(it.left) && it.left[it.li].Time < end {
		end = it.left[it.li].Time
	}
	if it.ri < len(it.right) && it.right[it.ri].Time < end {
		end = it.right[it.ri].Time
	}

	it.current = Segment{
		Interval: Interval{Start: it.pending, End: end},
		Left:     it.inL,
		Right:    it.inR,
	}

	// fold all transitions at the segment end atomically
	for ; it.li < len(it.left) && it.left[it.li].Time == end; it.li++ {
		it.inL = it.left[it.li].IsStart
	}
	for ; it.ri < len(it.right) && it.right[it.ri].Time == end; it.ri++ {
		it.inR = it.right[it.ri].IsStart
	}
	it.pending = end

	return true
}

// Segment returns the segment produced by the last successful call to Next.
func (it *SegmentIterator) Segment() Segment { return it.current }

// Domain returns the iteration domain.
func (it *SegmentIterator) Domain() Interval { return it.domain }
