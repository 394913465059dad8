package interval

import (
	"errors"
	"fmt"
	"math"
)

// Infinity is the unbounded time sentinel. Arithmetic through SatAdd never overflows past it.
const Infinity int64 = math.MaxInt64

var (
	// ErrCapacityExceeded is returned when a write would grow a buffer past Options.MaxCapacity.
	ErrCapacityExceeded = errors.New("interval arena capacity exceeded")
	// ErrStaleSet is returned when a set is dereferenced more than one swap after it was written.
	ErrStaleSet = errors.New("stale interval set: buffer generation was recycled")
	// ErrHolderDestroyed is returned on any use of a destroyed holder.
	ErrHolderDestroyed = errors.New("interval holder destroyed")
)

// Transition is one endpoint of a half-open interval.
type Transition struct {
	Time    int64
	IsStart bool
}

func (t Transition) String() string {
	if t.IsStart {
		return fmt.Sprintf("+%d", t.Time)
	}
	return fmt.Sprintf("-%d", t.Time)
}

// Interval is the half-open interval [Start, End).
type Interval struct {
	Start int64
	End   int64
}

// IsEmpty returns true if the interval contains no time point.
func (i Interval) IsEmpty() bool { return i.Start >= i.End }

func (i Interval) String() string {
	if i.End == Infinity {
		return fmt.Sprintf("[%d,inf)", i.Start)
	}
	return fmt.Sprintf("[%d,%d)", i.Start, i.End)
}

// SatAdd adds two times, saturating at Infinity. Either operand being Infinity yields Infinity.
func SatAdd(a, b int64) int64 {
	if a == Infinity || b == Infinity {
		return Infinity
	}
	if b > 0 && a > Infinity-b {
		return Infinity
	}
	return a + b
}

// Set is a handle to a normalized transition sequence stored in a Holder. The handle is tagged
// with the generation of the buffer it was written to; it can be read in that generation and in
// the next one, after which the buffer is recycled and the handle becomes stale.
//
// The set spans the transitions at indices start..end inclusive. An empty set has start > end
// and is valid in every generation.
type Set struct {
	gen   uint64
	start int
	end   int
}

// IsEmpty returns true if the set holds no interval.
func (s Set) IsEmpty() bool { return s.start > s.end }

// Len returns the number of transitions in the set.
func (s Set) Len() int {
	if s.IsEmpty() {
		return 0
	}
	return s.end - s.start + 1
}

// Generation returns the arena generation the set was written in.
func (s Set) Generation() uint64 { return s.gen }

// Options configures a Holder.
type Options struct {
	// Capacity is the initial number of transitions each buffer can hold.
	Capacity int
	// MaxCapacity caps buffer growth. Zero lets the buffers grow by amortized doubling.
	MaxCapacity int
}

// DefaultCapacity is used when Options.Capacity is not positive.
const DefaultCapacity = 1024

// Holder is the double-buffered transition arena. All algebra results are appended to the write
// buffer; Swap turns the write buffer into the read buffer and recycles the old read buffer.
// Individual sets are never freed.
//
// A Holder is not safe for concurrent use.
type Holder struct {
	read, write []Transition
	gen         uint64
	maxCapacity int
	highWater   int
	destroyed   bool
}

// NewHolder allocates both buffers up front.
func NewHolder(opts Options) *Holder {
	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if opts.MaxCapacity > 0 && capacity > opts.MaxCapacity {
		capacity = opts.MaxCapacity
	}

	return &Holder{
		read:        make([]Transition, 0, capacity),
		write:       make([]Transition, 0, capacity),
		gen:         1,
		maxCapacity: opts.MaxCapacity,
	}
}

// Empty returns the canonical empty set.
func (h *Holder) Empty() Set {
	return Set{gen: h.gen, start: 1, end: 0}
}

// Swap exchanges the buffers and resets the write cursor. Sets written before the previous swap
// become stale.
func (h *Holder) Swap() {
	h.read, h.write = h.write, h.read[:0]
	h.gen++
}

// Mark returns the write cursor, to be passed to Rewind.
func (h *Holder) Mark() int { return len(h.write) }

// Rewind drops every transition written to the write buffer after mark. Sets written since the
// mark must not be used afterwards. The high water mark is kept.
func (h *Holder) Rewind(mark int) {
	if mark >= 0 && mark < len(h.write) {
		h.write = h.write[:mark]
	}
}

// Destroy releases both buffers.
func (h *Holder) Destroy() {
	h.read, h.write = nil, nil
	h.destroyed = true
	h.gen += 2
}

// Generation returns the generation currently being written.
func (h *Holder) Generation() uint64 { return h.gen }

// Len returns the write cursor.
func (h *Holder) Len() int { return len(h.write) }

// Cap returns the current capacity of the write buffer.
func (h *Holder) Cap() int { return cap(h.write) }

// HighWater returns the largest write cursor observed since the holder was created.
func (h *Holder) HighWater() int { return h.highWater }

// view resolves a set handle into its transitions.
func (h *Holder) view(s Set) ([]Transition, error) {
	if h.destroyed {
		return nil, ErrHolderDestroyed
	}
	if s.IsEmpty() {
		return nil, nil
	}

	var buf []Transition
	switch s.gen {
	case h.gen:
		buf = h.write
	case h.gen - 1:
		buf = h.read
	default:
		return nil, fmt.Errorf("%w: set generation %d, holder generation %d", ErrStaleSet, s.gen, h.gen)
	}

	if s.start < 0 || s.end >= len(buf) {
		return nil, fmt.Errorf("%w: set [%d,%d] outside buffer of length %d", ErrStaleSet,
			s.start, s.end, len(buf))
	}
	return buf[s.start : s.end+1], nil
}

// reserve makes room for n more transitions on the write buffer.
func (h *Holder) reserve(n int) error {
	if h.destroyed {
		return ErrHolderDestroyed
	}
	need := len(h.write) + n
	if h.maxCapacity > 0 && need > h.maxCapacity {
		return fmt.Errorf("%w: need %d transitions, limit %d", ErrCapacityExceeded, need, h.maxCapacity)
	}
	if need > cap(h.write) {
		newCap := 2 * cap(h.write)
		if newCap < need {
			newCap = need
		}
		if h.maxCapacity > 0 && newCap > h.maxCapacity {
			newCap = h.maxCapacity
		}
		buf := make([]Transition, len(h.write), newCap)
		copy(buf, h.write)
		h.write = buf
	}
	return nil
}

// begin starts a new set at the write cursor.
func (h *Holder) begin() int { return len(h.write) }

// push appends one transition; reserve must have made room for it.
func (h *Holder) push(t Transition) {
	h.write = append(h.write, t)
}

// finish closes a set opened with begin.
func (h *Holder) finish(start int) Set {
	if len(h.write) > h.highWater {
		h.highWater = len(h.write)
	}
	end := len(h.write) - 1
	if end < start {
		return h.Empty()
	}
	return Set{gen: h.gen, start: start, end: end}
}

// FromInterval returns the set holding the single interval iv, or the empty set when iv is empty.
func (h *Holder) FromInterval(iv Interval) (Set, error) {
	if iv.IsEmpty() {
		if h.destroyed {
			return Set{}, ErrHolderDestroyed
		}
		return h.Empty(), nil
	}
	if err := h.reserve(2); err != nil {
		return Set{}, err
	}
	start := h.begin()
	h.push(Transition{Time: iv.Start, IsStart: true})
	h.push(Transition{Time: iv.End, IsStart: false})
	return h.finish(start), nil
}

// Copy duplicates a set from either buffer onto the write buffer. Sets that must survive more
// than one swap have to be copied forward before swapping.
func (h *Holder) Copy(s Set) (Set, error) {
	src, err := h.view(s)
	if err != nil {
		return Set{}, err
	}
	if len(src) == 0 {
		return h.Empty(), nil
	}
	if err := h.reserve(len(src)); err != nil {
		return Set{}, err
	}
	start := h.begin()
	h.write = append(h.write, src...)
	return h.finish(start), nil
}

// Transitions returns a copy of the raw transitions of a set.
func (h *Holder) Transitions(s Set) ([]Transition, error) {
	src, err := h.view(s)
	if err != nil {
		return nil, err
	}
	ret := make([]Transition, len(src))
	copy(ret, src)
	return ret, nil
}

// Intervals converts a set back to a list of intervals.
func (h *Holder) Intervals(s Set) ([]Interval, error) {
	src, err := h.view(s)
	if err != nil {
		return nil, err
	}
	ret := make([]Interval, 0, len(src)/2)
	for i := 0; i+1 < len(src); i += 2 {
		ret = append(ret, Interval{Start: src[i].Time, End: src[i+1].Time})
	}
	return ret, nil
}

// Includes checks whether time point t is contained in the set.
func (h *Holder) Includes(s Set, t int64) (bool, error) {
	src, err := h.view(s)
	if err != nil {
		return false, err
	}
	return valueAt(src, t), nil
}

// valueAt returns the truth value of a normalized transition sequence at time t.
func valueAt(ts []Transition, t int64) bool {
	in := false
	for _, tr := range ts {
		if tr.Time > t {
			break
		}
		in = tr.IsStart
	}
	return in
}
