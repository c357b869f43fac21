// Package nodelink renders a commit graph as a 2-D node-link diagram via
// Graphviz. This is the flat export path for terminals and docs; the 3-D
// payload from the layout engine is the primary output.
package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/gitscape/pkg/commitgraph"
)

// Options configures node-link diagram rendering.
type Options struct {
	// Detailed includes author and message lines in node labels.
	// When false, only the short SHA is shown.
	Detailed bool
}

// ToDOT converts a commit graph to Graphviz DOT format. The resulting DOT
// string can be rendered with [RenderSVG].
//
// Merge commits are drawn with a double outline; the initial commit gets a
// grey fill.
func ToDOT(g *commitgraph.Graph, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph commits {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=12, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	for _, sha := range g.SHAs() {
		node, _ := g.Node(sha)
		label := fmtLabel(node, opts.Detailed)
		attrs := fmtAttrs(g, node, label)
		fmt.Fprintf(&buf, "  %q [%s];\n", sha, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, e := range g.Edges() {
		fmt.Fprintf(&buf, "  %q -> %q;\n", e.Parent, e.Child)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtLabel(n *commitgraph.Node, detailed bool) string {
	short := shortSHA(n.SHA)
	if !detailed {
		return short
	}

	parts := []string{short}
	if n.Author != "" {
		parts = append(parts, n.Author)
	}
	if subject := firstLine(n.Message); subject != "" {
		parts = append(parts, subject)
	}
	return strings.Join(parts, "\n")
}

func fmtAttrs(g *commitgraph.Graph, n *commitgraph.Node, label string) []string {
	attrs := []string{fmt.Sprintf("label=%q", label)}
	if g.IsMerge(n.SHA) {
		attrs = append(attrs, "peripheries=2")
	}
	if n.IsInitial {
		attrs = append(attrs, "fillcolor=lightgrey")
	}
	return attrs
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	const maxLabel = 50
	if len(line) > maxLabel {
		return line[:maxLabel] + "..."
	}
	return line
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(dot string) ([]byte, error) {
	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
