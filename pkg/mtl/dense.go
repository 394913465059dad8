package mtl

import (
	"fmt"

	"github.com/l7mp/dverify/pkg/interval"
)

// DenseMonitor evaluates a graph in dense time: each step covers a window [t0, t1) over which the
// propositions sampled at t0 hold constant, and yields the sub-intervals on which the root holds.
//
// A DenseMonitor is not safe for concurrent use.
type DenseMonitor struct {
	monitor
	output, pending []interval.Set
	signals         [][]interval.Interval
}

// NewDenseMonitor creates a dense-time monitor with its own arena.
func NewDenseMonitor(g *Graph, opts Options) *DenseMonitor {
	m := &DenseMonitor{
		monitor: newMonitor(g, opts, "dense-monitor"),
		output:  make([]interval.Set, g.Len()),
		pending: make([]interval.Set, g.Len()),
		signals: make([][]interval.Interval, g.Len()),
	}
	for i := range m.output {
		m.output[i] = m.h.Empty()
	}
	return m
}

// Reset drops all pending state.
func (m *DenseMonitor) Reset() {
	m.resetState()
	for i := range m.output {
		m.output[i] = m.h.Empty()
	}
	m.clearSignals()
	m.log.V(2).Info("reset")
}

func (m *DenseMonitor) clearSignals() {
	for i := range m.signals {
		m.signals[i] = m.signals[i][:0]
	}
}

// SetSignal sets the output of a signal node for the next step. Intervals may be unsorted and
// overlapping; the next step sees them clipped to its window. Signals reset to empty after every
// successful step and are kept when a step fails.
func (m *DenseMonitor) SetSignal(node int, ivs []interval.Interval) error {
	if node < 0 || node >= m.graph.Len() || m.graph.nodes[node].Kind != KindSignal {
		return fmt.Errorf("%w: node %d", ErrNotSignal, node)
	}
	m.signals[node] = append(m.signals[node][:0], ivs...)
	return nil
}

// Step evaluates every node over [t0, t1) and returns the root output. The returned set stays
// readable through Intervals until the next step completes. A failed step leaves the states, the
// outputs and the arena as they were before the step.
func (m *DenseMonitor) Step(t0, t1 int64, props []bool) (interval.Set, error) {
	if err := m.checkArity(props); err != nil {
		return interval.Set{}, err
	}
	if t0 >= t1 {
		return interval.Set{}, fmt.Errorf("%w: empty window [%d,%d)", ErrTimeOrder, t0, t1)
	}
	if m.started && t0 < m.last {
		return interval.Set{}, fmt.Errorf("%w: window [%d,%d) starts before the end of the previous one at %d",
			ErrTimeOrder, t0, t1, m.last)
	}

	domain := interval.Interval{Start: t0, End: t1}
	mark := m.h.Mark()
	output := m.pending
	copy(m.next, m.state)
	for i, n := range m.graph.nodes {
		out, err := m.eval(i, n, domain, props, output)
		if err != nil {
			m.h.Rewind(mark)
			return interval.Set{}, &StepError{Time: t0, Node: i, Kind: n.Kind, Err: err}
		}
		output[i] = out
	}

	copy(m.output, output)
	root := m.output[m.graph.Root()]
	m.clearSignals()
	m.commit(t1)

	if m.log.V(5).Enabled() {
		ivs, _ := m.h.Intervals(root)
		m.log.V(5).Info("step", "window", domain.String(), "root", ivs)
	}

	return root, nil
}

// Intervals converts a set returned by Step into an interval list.
func (m *DenseMonitor) Intervals(s interval.Set) ([]interval.Interval, error) {
	return m.h.Intervals(s)
}

// Output returns the output of node i computed by the last step.
func (m *DenseMonitor) Output(i int) ([]interval.Interval, error) {
	if i < 0 || i >= len(m.output) {
		return nil, fmt.Errorf("%w: node %d", ErrOperandRange, i)
	}
	return m.h.Intervals(m.output[i])
}

func (m *DenseMonitor) eval(i int, n Node, domain interval.Interval, props []bool,
	output []interval.Set) (interval.Set, error) {
	h := m.h
	switch n.Kind {
	case KindProposition:
		if props[n.Prop] {
			return h.FromInterval(domain)
		}
		return h.Empty(), nil
	case KindSignal:
		s, err := h.FromIntervals(m.signals[i])
		if err != nil {
			return interval.Set{}, err
		}
		return m.clip(s, domain)
	case KindAnd:
		return h.Intersect(output[n.Left], output[n.Right])
	case KindOr:
		return h.Union(output[n.Left], output[n.Right])
	case KindNot:
		return h.Negate(output[n.Right], domain)
	case KindImplies:
		notLeft, err := h.Negate(output[n.Left], domain)
		if err != nil {
			return interval.Set{}, err
		}
		return h.Union(notLeft, output[n.Right])
	case KindEventually, KindAlways, KindSince:
		return m.evalTemporal(i, n, domain, output)
	}
	return interval.Set{}, fmt.Errorf("%w: %d", ErrUnknownKind, int(n.Kind))
}

// evalTemporal walks the constant segments of the operands over the window, updates the pending
// state of the node segment by segment and collects the output.
func (m *DenseMonitor) evalTemporal(i int, n Node, domain interval.Interval,
	output []interval.Set) (interval.Set, error) {
	h := m.h

	left := h.Empty()
	if n.Kind == KindSince {
		left = output[n.Left]
	}
	it, err := h.Segments(left, output[n.Right], domain)
	if err != nil {
		return interval.Set{}, err
	}

	state, out := m.state[i], h.Empty()
	for it.Next() {
		seg := it.Segment()

		switch n.Kind {
		case KindEventually:
			if seg.Right {
				state, err = m.extend(state, window(n, seg.Start, seg.End))
			}
		case KindAlways:
			if !seg.Right {
				state, err = m.extend(state, window(n, seg.Start, seg.End))
			}
		case KindSince:
			switch {
			case seg.Left && seg.Right:
				state, err = m.extend(state, window(n, seg.Start, seg.End))
			case !seg.Left && seg.Right:
				// a fresh episode anchored at the last moment the right operand held
				state, err = h.FromInterval(window(n, seg.End, seg.End))
			case !seg.Left && !seg.Right:
				state = h.Empty()
			}
		}
		if err != nil {
			return interval.Set{}, err
		}

		var segOut interval.Set
		if n.Kind == KindAlways {
			segOut, err = h.Negate(state, seg.Interval)
		} else {
			segOut, err = m.clip(state, seg.Interval)
		}
		if err != nil {
			return interval.Set{}, err
		}
		if out, err = h.Union(out, segOut); err != nil {
			return interval.Set{}, err
		}
	}

	if m.next[i], err = m.trim(state, domain.End); err != nil {
		return interval.Set{}, err
	}
	return out, nil
}
