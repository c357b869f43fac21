package nodelink

import (
	"strings"
	"testing"

	"github.com/matzehuels/gitscape/pkg/commitgraph"
)

func testGraph(t *testing.T) *commitgraph.Graph {
	t.Helper()
	g := commitgraph.New()
	nodes := []commitgraph.Node{
		{SHA: "aaaaaaaaaaaa", Author: "ada", Message: "initial commit\n\nlong body", IsInitial: true},
		{SHA: "bbbbbbbbbbbb", Author: "bob", Message: "add feature"},
		{SHA: "cccccccccccc", Author: "ada", Message: "fix bug"},
		{SHA: "dddddddddddd", Author: "ada", Message: "merge branch"},
	}
	for _, n := range nodes {
		if err := g.AddNode(n); err != nil {
			t.Fatalf("AddNode: %v", err)
		}
	}
	g.AddEdge("aaaaaaaaaaaa", "bbbbbbbbbbbb")
	g.AddEdge("aaaaaaaaaaaa", "cccccccccccc")
	g.AddEdge("bbbbbbbbbbbb", "dddddddddddd")
	g.AddEdge("cccccccccccc", "dddddddddddd")
	return g
}

func TestToDOT(t *testing.T) {
	dot := ToDOT(testGraph(t), Options{})

	if !strings.HasPrefix(dot, "digraph commits {") {
		t.Errorf("missing digraph header:\n%s", dot)
	}
	for _, want := range []string{
		`"aaaaaaaaaaaa" [`,
		`"aaaaaaaaaaaa" -> "bbbbbbbbbbbb";`,
		`"cccccccccccc" -> "dddddddddddd";`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q:\n%s", want, dot)
		}
	}

	// Short SHA labels, not full SHAs.
	if !strings.Contains(dot, `label="aaaaaaa"`) {
		t.Errorf("expected short SHA label:\n%s", dot)
	}

	// Merge commit gets a double outline, initial commit a grey fill.
	for _, line := range strings.Split(dot, "\n") {
		if strings.Contains(line, `"dddddddddddd" [`) && !strings.Contains(line, "peripheries=2") {
			t.Errorf("merge node missing peripheries: %s", line)
		}
		if strings.Contains(line, `"aaaaaaaaaaaa" [`) && !strings.Contains(line, "fillcolor=lightgrey") {
			t.Errorf("initial node missing fill: %s", line)
		}
		if strings.Contains(line, `"bbbbbbbbbbbb" [`) && strings.Contains(line, "peripheries") {
			t.Errorf("non-merge node should not have peripheries: %s", line)
		}
	}
}

func TestToDOT_Detailed(t *testing.T) {
	dot := ToDOT(testGraph(t), Options{Detailed: true})

	if !strings.Contains(dot, `ada\ninitial commit`) {
		t.Errorf("detailed label missing author/subject:\n%s", dot)
	}
	if strings.Contains(dot, "long body") {
		t.Errorf("label should only use the message subject line:\n%s", dot)
	}
}

func TestToDOT_Empty(t *testing.T) {
	dot := ToDOT(commitgraph.New(), Options{})
	if !strings.HasPrefix(dot, "digraph commits {") || !strings.HasSuffix(dot, "}\n") {
		t.Errorf("empty graph should still be a valid digraph:\n%s", dot)
	}
}

func TestFirstLine(t *testing.T) {
	long := strings.Repeat("m", 80)
	tests := []struct {
		in, want string
	}{
		{"subject\nbody", "subject"},
		{"", ""},
		{long, long[:50] + "..."},
	}
	for _, tt := range tests {
		if got := firstLine(tt.in); got != tt.want {
			t.Errorf("firstLine(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
