package mtl

import (
	"errors"
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/l7mp/dverify/internal/dag"
	"github.com/l7mp/dverify/pkg/interval"
)

// GraphSpec is the declarative form of a formula graph. Nodes refer to each other by name and can
// be listed in any order.
//
// Example:
//
//	propositions: [q, p]
//	nodes:
//	  - {name: q, kind: proposition}
//	  - {name: p, kind: proposition}
//	  - {name: once_q, kind: once, operand: q, upper: 10}
//	  - {name: p_since_q, kind: since, left: p, right: q}
//	  - {name: implies, kind: implies, left: once_q, right: p_since_q}
//	  - {name: root, kind: historically, operand: implies}
type GraphSpec struct {
	// Propositions lists the proposition names in input vector order. When omitted, the
	// propositions are collected from the proposition nodes in order of appearance.
	Propositions []string `json:"propositions,omitempty"`
	// Root names the root node. Defaults to the only node no other node refers to.
	Root  string     `json:"root,omitempty"`
	Nodes []NodeSpec `json:"nodes"`
}

// NodeSpec is a named node of a GraphSpec.
type NodeSpec struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
	// Prop is the proposition sampled by a proposition node; defaults to the node name.
	Prop  string `json:"prop,omitempty"`
	Left  string `json:"left,omitempty"`
	Right string `json:"right,omitempty"`
	// Operand is an alias of Right for unary operators.
	Operand string `json:"operand,omitempty"`
	Lower   int64  `json:"lower,omitempty"`
	// Upper is the upper window bound; omitted means unbounded.
	Upper *int64 `json:"upper,omitempty"`
}

// ParseSpec decodes a YAML or JSON graph spec. Unknown fields are rejected.
func ParseSpec(data []byte) (*GraphSpec, error) {
	spec := &GraphSpec{}
	if err := yaml.UnmarshalStrict(data, spec); err != nil {
		return nil, fmt.Errorf("failed to parse graph spec: %w", err)
	}
	return spec, nil
}

// LoadSpec reads a graph spec file and builds the graph.
func LoadSpec(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph spec %q: %w", path, err)
	}
	spec, err := ParseSpec(data)
	if err != nil {
		return nil, err
	}
	return spec.Build()
}

// Marshal encodes the spec as YAML.
func (s *GraphSpec) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}

// Build orders the named nodes so that operands precede consumers and returns the validated
// graph. Nodes the root does not depend on are dropped.
func (s *GraphSpec) Build() (*Graph, error) {
	if len(s.Nodes) == 0 {
		return nil, graphErr(-1, "", ErrEmptyGraph)
	}

	d := dag.New()
	byName := make(map[string]NodeSpec, len(s.Nodes))
	for i, n := range s.Nodes {
		if n.Name == "" {
			return nil, graphErr(i, "", ErrUnnamedNode)
		}
		if !n.Kind.IsValid() {
			return nil, graphErr(i, n.Name, fmt.Errorf("%w: %d", ErrUnknownKind, int(n.Kind)))
		}
		if !d.AddNode(n.Name) {
			return nil, graphErr(i, n.Name, ErrDuplicateNode)
		}
		byName[n.Name] = n
	}

	for i, n := range s.Nodes {
		for _, ref := range n.operands() {
			if ref == "" || !d.HasNode(ref) {
				return nil, graphErr(i, n.Name, fmt.Errorf("%w: %q", ErrDanglingReference, ref))
			}
			d.AddEdge(n.Name, ref)
		}
	}

	if _, err := d.TopoSort(d.Nodes...); err != nil {
		var cycle *dag.CycleError
		if errors.As(err, &cycle) {
			return nil, graphErr(-1, "", fmt.Errorf("%w: %s", ErrCycle, err))
		}
		return nil, graphErr(-1, "", err)
	}

	root := s.Root
	if root == "" {
		roots := d.Roots()
		if len(roots) != 1 {
			return nil, graphErr(-1, "", fmt.Errorf("%w: candidates %v", ErrAmbiguousRoot, roots))
		}
		root = roots[0]
	}
	order, err := d.TopoSort(root)
	if err != nil {
		return nil, graphErr(-1, "", fmt.Errorf("%w: %s", ErrAmbiguousRoot, err))
	}

	props := append([]string(nil), s.Propositions...)
	propIndex := map[string]int{}
	for i, p := range props {
		propIndex[p] = i
	}
	inferProps := len(props) == 0
	if inferProps {
		for _, n := range s.Nodes {
			if p := n.prop(); n.Kind == KindProposition {
				if _, ok := propIndex[p]; !ok {
					propIndex[p] = len(props)
					props = append(props, p)
				}
			}
		}
	}

	index := make(map[string]int, len(order))
	nodes := make([]Node, 0, len(order))
	for i, name := range order {
		ns := byName[name]
		n := Node{Kind: ns.Kind, Name: name, Lower: ns.Lower}

		switch {
		case ns.Kind == KindProposition:
			p, ok := propIndex[ns.prop()]
			if !ok {
				return nil, graphErr(i, name, fmt.Errorf("%w: %q", ErrUnknownProposition, ns.prop()))
			}
			n.Prop = p
		case ns.Kind.IsBinary():
			n.Left, n.Right = index[ns.Left], index[ns.Right]
		case ns.Kind.IsUnary():
			n.Right = index[ns.unary()]
		}

		if ns.Kind.IsTemporal() {
			n.Upper = interval.Infinity
			if ns.Upper != nil {
				n.Upper = *ns.Upper
			}
		}

		index[name] = i
		nodes = append(nodes, n)
	}

	return NewGraph(props, nodes)
}

func (n NodeSpec) prop() string {
	if n.Prop != "" {
		return n.Prop
	}
	return n.Name
}

func (n NodeSpec) unary() string {
	if n.Operand != "" {
		return n.Operand
	}
	return n.Right
}

// operands returns the names the node depends on.
func (n NodeSpec) operands() []string {
	switch {
	case n.Kind.IsBinary():
		return []string{n.Left, n.Right}
	case n.Kind.IsUnary():
		return []string{n.unary()}
	}
	return nil
}

// SpecFromGraph converts a graph back to its declarative form. Unnamed nodes get generated names.
func SpecFromGraph(g *Graph) *GraphSpec {
	names := make([]string, g.Len())
	labels := map[string]bool{}
	for i := range g.nodes {
		labels[g.Label(i)] = true
	}
	used := map[string]bool{}
	for i := range g.nodes {
		name := g.Label(i)
		for k := i; used[name]; k++ {
			if cand := fmt.Sprintf("%s_%d", g.Label(i), k); !labels[cand] && !used[cand] {
				name = cand
			}
		}
		used[name] = true
		names[i] = name
	}

	spec := &GraphSpec{
		Propositions: g.Propositions(),
		Root:         names[g.Root()],
		Nodes:        make([]NodeSpec, 0, g.Len()),
	}
	for i, n := range g.nodes {
		ns := NodeSpec{Name: names[i], Kind: n.Kind}
		switch {
		case n.Kind == KindProposition:
			if p := g.props[n.Prop]; p != names[i] {
				ns.Prop = p
			}
		case n.Kind.IsBinary():
			ns.Left, ns.Right = names[n.Left], names[n.Right]
		case n.Kind.IsUnary():
			ns.Operand = names[n.Right]
		}
		if n.Kind.IsTemporal() {
			ns.Lower = n.Lower
			if n.Upper != interval.Infinity {
				upper := n.Upper
				ns.Upper = &upper
			}
		}
		spec.Nodes = append(spec.Nodes, ns)
	}
	return spec
}
