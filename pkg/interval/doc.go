// Package interval implements sets of half-open time intervals stored as normalized transition
// sequences in a double-buffered arena.
//
// A set is a sorted list of transitions (time, isStart) that strictly alternate between starts and
// ends, with at most one transition per timestamp. Sets are never freed individually: every
// operation appends its result to the write buffer of a Holder, and Holder.Swap recycles the older
// buffer wholesale. A set handle can be read in the generation it was written in and in the next
// one.
//
// Key components:
//   - Holder: the arena, with Union, Intersect, Negate and the conversion helpers.
//   - Set: a generation-tagged handle to a transition range.
//   - SegmentIterator: joint iteration of two sets over a domain, one constant segment at a time.
//
// Example usage:
//
//	h := interval.NewHolder(interval.Options{Capacity: 1024})
//	a, _ := h.FromInterval(interval.Interval{Start: 10, End: 20})
//	b, _ := h.FromInterval(interval.Interval{Start: 15, End: 25})
//	u, _ := h.Union(a, b) // [10,25)
//	h.Swap()              // u stays readable for one more generation
package interval
