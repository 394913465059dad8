package mtl

import (
	"fmt"

	"github.com/l7mp/dverify/pkg/interval"
)

// DiscreteMonitor evaluates a graph in discrete time: one boolean verdict per tick.
//
// A DiscreteMonitor is not safe for concurrent use.
type DiscreteMonitor struct {
	monitor
	output, pending []bool
	signals         []bool
}

// NewDiscreteMonitor creates a discrete-time monitor with its own arena.
func NewDiscreteMonitor(g *Graph, opts Options) *DiscreteMonitor {
	return &DiscreteMonitor{
		monitor: newMonitor(g, opts, "discrete-monitor"),
		output:  make([]bool, g.Len()),
		pending: make([]bool, g.Len()),
		signals: make([]bool, g.Len()),
	}
}

// Reset drops all pending state.
func (m *DiscreteMonitor) Reset() {
	m.resetState()
	clear(m.output)
	clear(m.signals)
	m.log.V(2).Info("reset")
}

// SetSignal sets the value of a signal node for the next step.
func (m *DiscreteMonitor) SetSignal(node int, value bool) error {
	if node < 0 || node >= m.graph.Len() || m.graph.nodes[node].Kind != KindSignal {
		return fmt.Errorf("%w: node %d", ErrNotSignal, node)
	}
	m.signals[node] = value
	return nil
}

// Step evaluates every node at tick t and returns the root verdict. A failed step leaves the
// states, the outputs and the arena as they were before the step.
func (m *DiscreteMonitor) Step(t int64, props []bool) (bool, error) {
	if err := m.checkArity(props); err != nil {
		return false, err
	}
	if m.started && t <= m.last {
		return false, fmt.Errorf("%w: tick %d after %d", ErrTimeOrder, t, m.last)
	}

	// outputs are committed only together with the states
	output := m.pending
	mark := m.h.Mark()
	copy(m.next, m.state)
	for i, n := range m.graph.nodes {
		out, err := m.eval(i, n, t, props, output)
		if err != nil {
			m.h.Rewind(mark)
			return false, &StepError{Time: t, Node: i, Kind: n.Kind, Err: err}
		}
		output[i] = out
	}

	copy(m.output, output)
	clear(m.signals)
	m.commit(t)

	root := m.output[m.graph.Root()]
	m.log.V(5).Info("step", "tick", t, "root", root)
	return root, nil
}

// Output returns the value of node i computed by the last step.
func (m *DiscreteMonitor) Output(i int) (bool, error) {
	if i < 0 || i >= len(m.output) {
		return false, fmt.Errorf("%w: node %d", ErrOperandRange, i)
	}
	return m.output[i], nil
}

func (m *DiscreteMonitor) eval(i int, n Node, t int64, props, output []bool) (bool, error) {
	switch n.Kind {
	case KindProposition:
		return props[n.Prop], nil
	case KindSignal:
		return m.signals[i], nil
	case KindAnd:
		return output[n.Left] && output[n.Right], nil
	case KindOr:
		return output[n.Left] || output[n.Right], nil
	case KindNot:
		return !output[n.Right], nil
	case KindImplies:
		return !output[n.Left] || output[n.Right], nil
	case KindEventually, KindAlways, KindSince:
		return m.evalTemporal(i, n, t, output)
	}
	return false, fmt.Errorf("%w: %d", ErrUnknownKind, int(n.Kind))
}

// evalTemporal is the dense evaluation with a single segment of one tick.
func (m *DiscreteMonitor) evalTemporal(i int, n Node, t int64, output []bool) (bool, error) {
	var err error
	state := m.state[i]
	right := output[n.Right]
	win := window(n, t, interval.SatAdd(t, 1))

	switch n.Kind {
	case KindEventually:
		if right {
			state, err = m.extend(state, win)
		}
	case KindAlways:
		if !right {
			state, err = m.extend(state, win)
		}
	case KindSince:
		left := output[n.Left]
		switch {
		case left && right:
			state, err = m.extend(state, win)
		case !left && right:
			state, err = m.h.FromInterval(win)
		case !left && !right:
			state = m.h.Empty()
		}
	}
	if err != nil {
		return false, err
	}

	out, err := m.h.Includes(state, t)
	if err != nil {
		return false, err
	}
	if n.Kind == KindAlways {
		out = !out
	}

	if m.next[i], err = m.trim(state, interval.SatAdd(t, 1)); err != nil {
		return false, err
	}
	return out, nil
}
