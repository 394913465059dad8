package interval

import (
	"cmp"
	"slices"
)

// Union computes the union (OR) of two sets with a single plane sweep.
func (h *Holder) Union(a, b Set) (Set, error) {
	ta, err := h.view(a)
	if err != nil {
		return Set{}, err
	}
	tb, err := h.view(b)
	if err != nil {
		return Set{}, err
	}
	if err := h.reserve(len(ta) + len(tb)); err != nil {
		return Set{}, err
	}

	start := h.begin()
	sweepCount(h, ta, tb)
	return h.finish(start), nil
}

// sweepCount merges two sorted transition streams with an overlap counter and emits a transition
// whenever "overlap > 0" toggles. Every transition at a given timestamp is folded before the
// toggle is decided, so at most one transition is emitted per timestamp.
func sweepCount(h *Holder, ta, tb []Transition) {
	i, j := 0, 0
	overlap := 0
	inside := false
	for i < len(ta) || j < len(tb) {
		t := nextTime(ta, i, tb, j)
		for ; i < len(ta) && ta[i].Time == t; i++ {
			overlap += delta(ta[i])
		}
		for ; j < len(tb) && tb[j].Time == t; j++ {
			overlap += delta(tb[j])
		}
		if now := overlap > 0; now != inside {
			h.push(Transition{Time: t, IsStart: now})
			inside = now
		}
	}
}

// Intersect computes the intersection (AND) of two sets.
func (h *Holder) Intersect(a, b Set) (Set, error) {
	ta, err := h.view(a)
	if err != nil {
		return Set{}, err
	}
	tb, err := h.view(b)
	if err != nil {
		return Set{}, err
	}
	if len(ta) == 0 || len(tb) == 0 {
		return h.Empty(), nil
	}
	if err := h.reserve(len(ta) + len(tb)); err != nil {
		return Set{}, err
	}

	start := h.begin()
	i, j := 0, 0
	inA, inB, inside := false, false, false
	for i < len(ta) || j < len(tb) {
		t := nextTime(ta, i, tb, j)
		for ; i < len(ta) && ta[i].Time == t; i++ {
			inA = ta[i].IsStart
		}
		for ; j < len(tb) && tb[j].Time == t; j++ {
			inB = tb[j].IsStart
		}
		if now := inA && inB; now != inside {
			h.push(Transition{Time: t, IsStart: now})
			inside = now
		}
	}
	return h.finish(start), nil
}

// Negate computes the complement of a set within domain, i.e., domain AND (NOT a). The result is
// clipped to the domain.
func (h *Holder) Negate(a Set, domain Interval) (Set, error) {
	ta, err := h.view(a)
	if err != nil {
		return Set{}, err
	}
	if domain.IsEmpty() {
		return h.Empty(), nil
	}
	if err := h.reserve(len(ta) + 2); err != nil {
		return Set{}, err
	}

	start := h.begin()

	// value at the domain start: fold every transition up to and including it
	i, inA := 0, false
	for ; i < len(ta) && ta[i].Time <= domain.Start; i++ {
		inA = ta[i].IsStart
	}

	inside := !inA
	if inside {
		h.push(Transition{Time: domain.Start, IsStart: true})
	}

	for i < len(ta) && ta[i].Time < domain.End {
		t := ta[i].Time
		for ; i < len(ta) && ta[i].Time == t; i++ {
			inA = ta[i].IsStart
		}
		if now := !inA; now != inside {
			h.push(Transition{Time: t, IsStart: now})
			inside = now
		}
	}

	if inside {
		h.push(Transition{Time: domain.End, IsStart: false})
	}
	return h.finish(start), nil
}

// FromIntervals builds a normalized set from arbitrary, possibly unsorted and overlapping
// intervals. Meant for bulk ingestion, it allocates a scratch slice for sorting.
func (h *Holder) FromIntervals(ivs []Interval) (Set, error) {
	scratch := make([]Transition, 0, 2*len(ivs))
	for _, iv := range ivs {
		if iv.IsEmpty() {
			continue
		}
		scratch = append(scratch,
			Transition{Time: iv.Start, IsStart: true},
			Transition{Time: iv.End, IsStart: false})
	}
	slices.SortStableFunc(scratch, func(a, b Transition) int { return cmp.Compare(a.Time, b.Time) })

	if err := h.reserve(len(scratch)); err != nil {
		return Set{}, err
	}
	start := h.begin()
	sweepCount(h, scratch, nil)
	return h.finish(start), nil
}

func nextTime(ta []Transition, i int, tb []Transition, j int) int64 {
	switch {
	case i >= len(ta):
		return tb[j].Time
	case j >= len(tb):
		return ta[i].Time
	default:
		return min(ta[i].Time, tb[j].Time)
	}
}

func delta(t Transition) int {
	if t.IsStart {
		return 1
	}
	return -1
}
