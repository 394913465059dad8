package testutils

import (
	"math/rand"

	"github.com/l7mp/dverify/pkg/interval"
	"github.com/l7mp/dverify/pkg/trace"
)

// RandomIntervals returns n random, possibly overlapping and unsorted intervals in [0, span).
// Some of the intervals are empty on purpose.
func RandomIntervals(rnd *rand.Rand, n int, span int64) []interval.Interval {
	ret := make([]interval.Interval, n)
	for i := range ret {
		start := rnd.Int63n(span)
		ret[i] = interval.Interval{Start: start, End: start + rnd.Int63n(span/4+1)}
	}
	return ret
}

// RandomDomain returns a random non-empty domain in [-span/4, span+span/4).
func RandomDomain(rnd *rand.Rand, span int64) interval.Interval {
	start := rnd.Int63n(span+span/4) - span/4
	return interval.Interval{Start: start, End: start + 1 + rnd.Int63n(span)}
}

// Covers returns the truth value of an interval list at t.
func Covers(ivs []interval.Interval, t int64) bool {
	for _, iv := range ivs {
		if iv.Start <= t && t < iv.End {
			return true
		}
	}
	return false
}

// RandomTrace returns a trace of n records with strictly increasing times and numProps random
// propositions each.
func RandomTrace(rnd *rand.Rand, n, numProps int, maxGap int64) []trace.Record {
	ret := make([]trace.Record, n)
	t := int64(0)
	for i := range ret {
		props := make([]bool, numProps)
		for j := range props {
			props[j] = rnd.Intn(2) == 1
		}
		ret[i] = trace.Record{Time: t, Props: props}
		t += 1 + rnd.Int63n(maxGap)
	}
	return ret
}

// BoolTrace converts per-proposition boolean columns into a discrete trace with times 0, 1, ...
func BoolTrace(columns ...[]bool) []trace.Record {
	if len(columns) == 0 {
		return nil
	}
	ret := make([]trace.Record, len(columns[0]))
	for t := range ret {
		props := make([]bool, len(columns))
		for p := range columns {
			props[p] = columns[p][t]
		}
		ret[t] = trace.Record{Time: int64(t), Props: props}
	}
	return ret
}
