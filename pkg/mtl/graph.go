package mtl

import (
	"fmt"
	"strings"

	"github.com/l7mp/dverify/pkg/interval"
)

// Node is one operator in an index-addressed formula graph. Operands refer to nodes at strictly
// lower indices. Binary operators read Left and Right, unary operators (NOT, EVENTUALLY, ALWAYS)
// read only Right. Windowed operators use [Lower, Upper]; Upper may be interval.Infinity.
type Node struct {
	Kind  Kind
	Name  string
	Left  int
	Right int
	Lower int64
	Upper int64
	// Prop is the index of the proposition a KindProposition node samples.
	Prop int
}

func (n Node) String() string {
	var b strings.Builder
	b.WriteString(n.Kind.String())
	switch {
	case n.Kind == KindProposition:
		fmt.Fprintf(&b, "{%d}", n.Prop)
	case n.Kind.IsBinary():
		fmt.Fprintf(&b, "(%d,%d)", n.Left, n.Right)
	case n.Kind.IsUnary():
		fmt.Fprintf(&b, "(%d)", n.Right)
	}
	if n.Kind.IsTemporal() {
		b.WriteString(FormatWindow(n.Lower, n.Upper))
	}
	return b.String()
}

// FormatWindow renders a window bound pair, e.g., "[0:10]" or "[3:]".
func FormatWindow(lower, upper int64) string {
	if upper == interval.Infinity {
		return fmt.Sprintf("[%d:]", lower)
	}
	return fmt.Sprintf("[%d:%d]", lower, upper)
}

// Graph is an immutable, validated formula graph. The last node is the root. A graph carries no
// evaluation state, so one graph can back any number of monitors.
type Graph struct {
	props   []string
	nodes   []Node
	signals []int
}

// NewGraph validates the node list against the declared propositions and returns the graph.
func NewGraph(props []string, nodes []Node) (*Graph, error) {
	if len(nodes) == 0 {
		return nil, graphErr(-1, "", ErrEmptyGraph)
	}

	seen := map[string]bool{}
	for _, p := range props {
		if p == "" || seen[p] {
			return nil, graphErr(-1, "", fmt.Errorf("%w: invalid or duplicate proposition name %q",
				ErrUnknownProposition, p))
		}
		seen[p] = true
	}

	g := &Graph{
		props: append([]string(nil), props...),
		nodes: append([]Node(nil), nodes...),
	}

	for i, n := range g.nodes {
		if err := g.validateNode(i, n); err != nil {
			return nil, err
		}
		if n.Kind == KindSignal {
			g.signals = append(g.signals, i)
		}
	}

	return g, nil
}

func (g *Graph) validateNode(i int, n Node) error {
	checkOperand := func(op int) error {
		switch {
		case op < 0:
			return graphErr(i, n.Name, fmt.Errorf("%w: %d", ErrOperandRange, op))
		case op >= i:
			return graphErr(i, n.Name, fmt.Errorf("%w: operand %d", ErrOperandOrder, op))
		}
		return nil
	}

	switch {
	case !n.Kind.IsValid():
		return graphErr(i, n.Name, fmt.Errorf("%w: %d", ErrUnknownKind, int(n.Kind)))
	case n.Kind == KindProposition:
		if n.Prop < 0 || n.Prop >= len(g.props) {
			return graphErr(i, n.Name, fmt.Errorf("%w: index %d, %d declared", ErrUnknownProposition,
				n.Prop, len(g.props)))
		}
	case n.Kind.IsBinary():
		if err := checkOperand(n.Left); err != nil {
			return err
		}
		if err := checkOperand(n.Right); err != nil {
			return err
		}
	case n.Kind.IsUnary():
		if err := checkOperand(n.Right); err != nil {
			return err
		}
	}

	if n.Kind.IsTemporal() && (n.Lower < 0 || n.Upper < n.Lower) {
		return graphErr(i, n.Name, fmt.Errorf("%w: %s", ErrBounds, FormatWindow(n.Lower, n.Upper)))
	}

	return nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Root returns the index of the root node.
func (g *Graph) Root() int { return len(g.nodes) - 1 }

// Node returns the node at index i.
func (g *Graph) Node(i int) Node { return g.nodes[i] }

// Nodes returns a copy of the node list.
func (g *Graph) Nodes() []Node { return append([]Node(nil), g.nodes...) }

// Propositions returns the declared proposition names in input order.
func (g *Graph) Propositions() []string { return append([]string(nil), g.props...) }

// NumPropositions returns the length of the proposition vector a step expects.
func (g *Graph) NumPropositions() int { return len(g.props) }

// PropositionIndex looks up a proposition by name.
func (g *Graph) PropositionIndex(name string) (int, bool) {
	for i, p := range g.props {
		if p == name {
			return i, true
		}
	}
	return -1, false
}

// Signals returns the indices of the signal nodes.
func (g *Graph) Signals() []int { return append([]int(nil), g.signals...) }

// Label returns a human readable name for node i.
func (g *Graph) Label(i int) string {
	n := g.nodes[i]
	if n.Name != "" {
		return n.Name
	}
	if n.Kind == KindProposition {
		return g.props[n.Prop]
	}
	return fmt.Sprintf("%s_%d", n.Kind, i)
}

// String renders the graph as a readable formula rooted at the last node.
func (g *Graph) String() string { return g.formula(g.Root()) }

func (g *Graph) formula(i int) string {
	n := g.nodes[i]
	switch n.Kind {
	case KindProposition:
		return "{" + g.props[n.Prop] + "}"
	case KindSignal:
		return "<" + g.Label(i) + ">"
	case KindNot:
		return "not(" + g.formula(n.Right) + ")"
	case KindAnd:
		return "(" + g.formula(n.Left) + " and " + g.formula(n.Right) + ")"
	case KindOr:
		return "(" + g.formula(n.Left) + " or " + g.formula(n.Right) + ")"
	case KindImplies:
		return "(" + g.formula(n.Left) + " -> " + g.formula(n.Right) + ")"
	case KindEventually:
		return "once" + FormatWindow(n.Lower, n.Upper) + "(" + g.formula(n.Right) + ")"
	case KindAlways:
		return "historically" + FormatWindow(n.Lower, n.Upper) + "(" + g.formula(n.Right) + ")"
	case KindSince:
		return "(" + g.formula(n.Left) + " since" + FormatWindow(n.Lower, n.Upper) + " " +
			g.formula(n.Right) + ")"
	}
	return n.Kind.String()
}
