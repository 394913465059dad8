// Package mtl evaluates past-time metric temporal logic formulas online over a stream of
// timestamped observations.
//
// A formula is an index-addressed graph of operator nodes (Graph) in which every operand precedes
// its consumer. The graph is either built programmatically with NewGraph or loaded from a
// declarative spec with LoadSpec. Two monitors walk the graph once per step:
//   - DenseMonitor: dense time, one step per window [t0, t1), the output is an interval set.
//   - DiscreteMonitor: discrete time, one step per tick, the output is a boolean.
//
// Monitors own their interval arena and per-node state, so independent streams need independent
// monitors. Graphs are immutable and can be shared.
package mtl
