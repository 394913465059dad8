package mtl

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyGraph is returned for a graph without nodes.
	ErrEmptyGraph = errors.New("graph has no nodes")
	// ErrOperandOrder is returned when a node refers to itself or to a later node.
	ErrOperandOrder = errors.New("operand must precede its consumer")
	// ErrOperandRange is returned for a negative operand index.
	ErrOperandRange = errors.New("operand index out of range")
	// ErrUnknownKind is returned for an operator tag outside the known set.
	ErrUnknownKind = errors.New("unknown node kind")
	// ErrBounds is returned for a malformed window [lower, upper].
	ErrBounds = errors.New("invalid window bounds")
	// ErrUnknownProposition is returned when a proposition node names or indexes a proposition
	// the graph does not declare.
	ErrUnknownProposition = errors.New("unknown proposition")
	// ErrCycle is returned when a named graph spec contains a dependency cycle.
	ErrCycle = errors.New("dependency cycle")
	// ErrDuplicateNode is returned when two nodes of a graph spec share a name.
	ErrDuplicateNode = errors.New("duplicate node name")
	// ErrUnnamedNode is returned for a graph spec node without a name.
	ErrUnnamedNode = errors.New("node has no name")
	// ErrDanglingReference is returned when a graph spec node refers to an undefined node.
	ErrDanglingReference = errors.New("reference to undefined node")
	// ErrAmbiguousRoot is returned when the root of a graph spec cannot be determined.
	ErrAmbiguousRoot = errors.New("ambiguous root")

	// ErrTimeOrder is returned when a step does not advance time.
	ErrTimeOrder = errors.New("time must strictly increase")
	// ErrArity is returned when the proposition vector does not match the graph.
	ErrArity = errors.New("wrong number of proposition values")
	// ErrNotSignal is returned when SetSignal targets a node that is not a signal.
	ErrNotSignal = errors.New("node is not a signal")
)

// GraphError reports a malformed node graph.
type GraphError struct {
	// Node is the index of the offending node, or -1 if the error concerns the whole graph.
	Node int
	// Name is the node name, if any.
	Name string
	Err  error
}

func (e *GraphError) Error() string {
	switch {
	case e.Node < 0:
		return fmt.Sprintf("invalid graph: %v", e.Err)
	case e.Name != "":
		return fmt.Sprintf("invalid node %d (%s): %v", e.Node, e.Name, e.Err)
	default:
		return fmt.Sprintf("invalid node %d: %v", e.Node, e.Err)
	}
}

func (e *GraphError) Unwrap() error { return e.Err }

func graphErr(node int, name string, err error) error {
	return &GraphError{Node: node, Name: name, Err: err}
}

// StepError reports a failed evaluation step. The monitor state is left as it was before the
// step.
type StepError struct {
	// Time is the step time (the window start in dense mode).
	Time int64
	// Node is the index of the node being evaluated.
	Node int
	Kind Kind
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step at time %d failed at node %d (%s): %v", e.Time, e.Node, e.Kind, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
