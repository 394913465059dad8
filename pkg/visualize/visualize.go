// Package visualize renders MTL node graphs as diagrams.
package visualize

import (
	"fmt"

	"github.com/emicklei/dot"

	"github.com/l7mp/dverify/pkg/mtl"
)

// Graph is the diagram model of a node graph.
type Graph struct {
	Title string
	Nodes []Node
	Edges []Edge
}

// Node is one evaluation node.
type Node struct {
	ID    string
	Label string
	Kind  mtl.Kind
	Root  bool
}

// Edge connects an operand to the node that consumes it. Role is "left" or "right" for binary
// operators and empty otherwise.
type Edge struct {
	From string
	To   string
	Role string
}

// BuildGraph constructs the diagram model of a node graph.
func BuildGraph(g *mtl.Graph, title string) *Graph {
	ret := &Graph{
		Title: title,
		Nodes: make([]Node, 0, g.Len()),
		Edges: make([]Edge, 0, 2*g.Len()),
	}

	for i, n := range g.Nodes() {
		id := nodeID(i)
		ret.Nodes = append(ret.Nodes, Node{
			ID:    id,
			Label: label(g, i, n),
			Kind:  n.Kind,
			Root:  i == g.Root(),
		})

		switch {
		case n.Kind.IsBinary():
			ret.Edges = append(ret.Edges,
				Edge{From: nodeID(n.Left), To: id, Role: "left"},
				Edge{From: nodeID(n.Right), To: id, Role: "right"})
		case n.Kind.IsUnary():
			ret.Edges = append(ret.Edges, Edge{From: nodeID(n.Right), To: id})
		}
	}

	return ret
}

func nodeID(i int) string { return fmt.Sprintf("n%d", i) }

// label renders the operator of a node with its window, prefixed by the node name if any.
func label(g *mtl.Graph, i int, n mtl.Node) string {
	var op string
	switch n.Kind {
	case mtl.KindProposition:
		op = "{" + g.Propositions()[n.Prop] + "}"
	case mtl.KindSignal:
		op = "<" + g.Label(i) + ">"
	default:
		op = n.Kind.String()
		if n.Kind.IsTemporal() {
			op += mtl.FormatWindow(n.Lower, n.Upper)
		}
	}
	if n.Name != "" && n.Kind != mtl.KindProposition && n.Kind != mtl.KindSignal {
		return n.Name + ": " + op
	}
	return op
}

// BuildDotGraph creates a dot.Graph from the diagram model. The same graph backs both the DOT and
// the Mermaid output.
func BuildDotGraph(g *Graph) *dot.Graph {
	graph := dot.NewGraph(dot.Directed)
	graph.Attr("rankdir", "LR")
	graph.Attr("newrank", "true")
	if g.Title != "" {
		graph.Attr("label", g.Title)
		graph.Attr("labelloc", "t")
		graph.Attr("fontsize", "16")
	}

	nodes := make(map[string]dot.Node, len(g.Nodes))
	for _, n := range g.Nodes {
		node := graph.Node(n.ID).
			Attr("label", n.Label).
			Attr("fontname", "helvetica")

		switch {
		case n.Kind == mtl.KindProposition:
			node.Attr("shape", "ellipse").
				Attr("style", "filled").
				Attr("fillcolor", "lightgreen")
		case n.Kind == mtl.KindSignal:
			node.Attr("shape", "ellipse").
				Attr("style", "filled,dashed").
				Attr("fillcolor", "lightyellow")
		case n.Kind.IsTemporal():
			node.Attr("shape", "box").
				Attr("style", "filled,rounded").
				Attr("fillcolor", "lightcyan")
		default:
			node.Attr("shape", "box").
				Attr("style", "filled").
				Attr("fillcolor", "lightblue")
		}
		if n.Root {
			node.Attr("color", "darkblue").Attr("penwidth", "2")
		}
		nodes[n.ID] = node
	}

	for _, e := range g.Edges {
		edge := graph.Edge(nodes[e.From], nodes[e.To]).
			Attr("fontname", "helvetica").
			Attr("fontsize", "10")
		if e.Role != "" {
			edge.Attr("label", e.Role)
		}
	}

	return graph
}

// Generator renders a diagram model.
type Generator interface {
	Generate(g *Graph) string
}

// NewGenerator returns the generator for a format name: "dot" or "mermaid".
func NewGenerator(format string) (Generator, error) {
	switch format {
	case "dot", "graphviz":
		return &DotGenerator{}, nil
	case "mermaid":
		return &MermaidGenerator{}, nil
	default:
		return nil, fmt.Errorf("unknown diagram format %q", format)
	}
}
