package mtl

import (
	"fmt"

	"github.com/go-logr/logr"

	"github.com/l7mp/dverify/pkg/interval"
)

// Options configures a monitor.
type Options struct {
	// Capacity is the initial arena capacity in transitions. Zero means interval.DefaultCapacity.
	Capacity int
	// MaxCapacity is a hard arena limit. Zero lets the arena grow as needed.
	MaxCapacity int
	// Logger is used for per-step debug logging.
	Logger logr.Logger
}

// ArenaStats is a snapshot of the monitor's arena.
type ArenaStats struct {
	Generation uint64
	Len        int
	Cap        int
	HighWater  int
}

// monitor is the evaluation state shared by the dense and the discrete monitor.
type monitor struct {
	graph *Graph
	h     *interval.Holder
	// state is the pending window of each temporal node, next is its replacement being built in
	// the current step and committed only if the whole step succeeds
	state, next []interval.Set
	last        int64
	started     bool
	steps       uint64
	log         logr.Logger
}

func newMonitor(g *Graph, opts Options, name string) monitor {
	logger := opts.Logger
	if logger.GetSink() == nil {
		logger = logr.Discard()
	}

	m := monitor{
		graph: g,
		h:     interval.NewHolder(interval.Options{Capacity: opts.Capacity, MaxCapacity: opts.MaxCapacity}),
		state: make([]interval.Set, g.Len()),
		next:  make([]interval.Set, g.Len()),
		log:   logger.WithName(name),
	}
	m.resetState()
	return m
}

func (m *monitor) resetState() {
	for i := range m.state {
		m.state[i] = m.h.Empty()
		m.next[i] = m.h.Empty()
	}
	m.last, m.started, m.steps = 0, false, 0
}

// Graph returns the monitored graph.
func (m *monitor) Graph() *Graph { return m.graph }

// Steps returns the number of successful steps since creation or the last reset.
func (m *monitor) Steps() uint64 { return m.steps }

// ArenaStats reports the arena usage.
func (m *monitor) ArenaStats() ArenaStats {
	return ArenaStats{
		Generation: m.h.Generation(),
		Len:        m.h.Len(),
		Cap:        m.h.Cap(),
		HighWater:  m.h.HighWater(),
	}
}

// State returns the pending window of temporal node i.
func (m *monitor) State(i int) ([]interval.Interval, error) {
	if i < 0 || i >= len(m.state) {
		return nil, fmt.Errorf("%w: node %d", ErrOperandRange, i)
	}
	return m.h.Intervals(m.state[i])
}

// Close releases the arena. The monitor cannot be used afterwards.
func (m *monitor) Close() { m.h.Destroy() }

func (m *monitor) checkArity(props []bool) error {
	if len(props) != m.graph.NumPropositions() {
		return fmt.Errorf("%w: expected %d, got %d", ErrArity, m.graph.NumPropositions(), len(props))
	}
	return nil
}

// window returns the window [from+lower, to+upper) of a temporal node.
func window(n Node, from, to int64) interval.Interval {
	return interval.Interval{Start: interval.SatAdd(from, n.Lower), End: interval.SatAdd(to, n.Upper)}
}

// extend adds a window to a state set.
func (m *monitor) extend(state interval.Set, iv interval.Interval) (interval.Set, error) {
	w, err := m.h.FromInterval(iv)
	if err != nil {
		return interval.Set{}, err
	}
	return m.h.Union(state, w)
}

// clip restricts a set to iv.
func (m *monitor) clip(s interval.Set, iv interval.Interval) (interval.Set, error) {
	if s.IsEmpty() {
		return s, nil
	}
	w, err := m.h.FromInterval(iv)
	if err != nil {
		return interval.Set{}, err
	}
	return m.h.Intersect(s, w)
}

// trim drops everything before t from a state set.
func (m *monitor) trim(s interval.Set, t int64) (interval.Set, error) {
	return m.clip(s, interval.Interval{Start: t, End: interval.Infinity})
}

// commit installs the states built during a successful step and recycles the arena.
func (m *monitor) commit(end int64) {
	copy(m.state, m.next)
	m.last, m.started = end, true
	m.steps++
	m.h.Swap()
}
