package visualize

// DotGenerator renders a node graph as a left-to-right Graphviz digraph. Propositions and signals
// are ellipses, operators are boxes, edges run from each operand to the operator consuming it and
// the root gets a heavier border.
type DotGenerator struct{}

// Generate returns the DOT source of the graph.
func (d *DotGenerator) Generate(g *Graph) string {
	return BuildDotGraph(g).String()
}
