package visualize

import (
	"fmt"
	"strings"

	"github.com/emicklei/dot"
)

// MermaidGenerator renders a node graph as a left-to-right Mermaid flowchart inside a markdown
// code block, so that a monitored formula can be pasted into an issue or a README. The graph
// title becomes the diagram title.
type MermaidGenerator struct{}

// Generate returns the fenced Mermaid source of the graph.
func (m *MermaidGenerator) Generate(g *Graph) string {
	var b strings.Builder
	b.WriteString("```mermaid\n")
	if g.Title != "" {
		fmt.Fprintf(&b, "---\ntitle: %s\n---\n", g.Title)
	}
	b.WriteString(dot.MermaidFlowchart(BuildDotGraph(g), dot.MermaidLeftToRight))
	b.WriteString("\n```\n")
	return b.String()
}
