// Package commitgraph models a repository's fetched commit window as a
// directed acyclic graph: one node per commit SHA, one edge per
// parent→child relationship between commits in the same window.
//
// The graph is the shared structure between fetching, enrichment, and
// layout. Topology is fixed at build time; enrichment later fills in the
// per-node file list, code sample, and analysis text. A node with in-degree
// zero is a root of the fetched window (which is not necessarily an initial
// commit - its parents may simply fall outside the page). A node with
// in-degree greater than one is a merge commit.
package commitgraph

import (
	"errors"
	"slices"
	"time"
)

var (
	// ErrInvalidSHA is returned by [Graph.AddNode] when the commit SHA is
	// empty. All nodes must have non-empty identifiers.
	ErrInvalidSHA = errors.New("commit SHA must not be empty")

	// ErrDuplicateSHA is returned by [Graph.AddNode] when a node with the
	// same SHA already exists in the graph.
	ErrDuplicateSHA = errors.New("duplicate commit SHA")

	// ErrUnknownParent is returned by [Graph.AddEdge] when the parent
	// commit does not exist in the graph.
	ErrUnknownParent = errors.New("unknown parent commit")

	// ErrUnknownChild is returned by [Graph.AddEdge] when the child commit
	// does not exist in the graph.
	ErrUnknownChild = errors.New("unknown child commit")

	// ErrSelfLoop is returned by [Graph.AddEdge] when parent and child are
	// the same commit. Commit histories cannot contain self-references.
	ErrSelfLoop = errors.New("commit cannot be its own parent")

	// ErrGraphHasCycle is returned by [Graph.Validate] when a cycle is
	// detected. Within a fetched window this indicates corrupted input,
	// since edges only point from parents to later commits.
	ErrGraphHasCycle = errors.New("graph contains a cycle")
)

// Node is a single commit in the graph.
//
// SHA, Message, Author, Date, and IsInitial are immutable once the node is
// created by the builder. FilesChanged, FilesCount, Analysis, and Code start
// unset ("not yet enriched") and are written exactly once by the enricher for
// this SHA; no other goroutine ever touches them, which is what makes the
// concurrent enrichment fan-out safe without locks.
type Node struct {
	SHA     string    // Unique identifier, immutable
	Message string    // Commit message from fetched metadata
	Author  string    // Author name from fetched metadata
	Date    time.Time // Author date; zero when absent

	// IsInitial is true iff the commit had zero parents in the fetched
	// metadata. Distinct from being a graph root: a commit whose parents
	// fall outside the fetched page has in-degree 0 but IsInitial false.
	IsInitial bool

	// Enrichment results. Unset until the enricher completes for this SHA.
	FilesChanged []string // Ordered changed-file paths
	FilesCount   int      // len(FilesChanged) at enrichment time
	Analysis     string   // Natural-language change summary, or a sentinel
	Code         string   // Bounded patch sample, or a sentinel
}

// Edge is a directed parent→child relationship between two commits in the
// fetched window.
type Edge struct {
	Parent string // SHA of the parent commit
	Child  string // SHA of the child commit
}

// Graph is the commit DAG. Nodes are keyed by SHA; multiple edges into a
// node (merge commits) and out of a node (branch points) are allowed.
//
// The zero value is not usable - use [New]. Graph methods are not safe for
// concurrent use; the enricher relies on disjoint per-node writes instead
// of mutating the graph structure itself.
type Graph struct {
	nodes    map[string]*Node
	edges    []Edge
	children map[string][]string // parent SHA -> child SHAs
	parents  map[string][]string // child SHA -> parent SHAs
}

// New creates an empty commit graph.
func New() *Graph {
	return &Graph{
		nodes:    make(map[string]*Node),
		children: make(map[string][]string),
		parents:  make(map[string][]string),
	}
}

// AddNode adds a commit to the graph.
// Returns ErrInvalidSHA for an empty SHA or ErrDuplicateSHA if the commit
// is already present.
func (g *Graph) AddNode(n Node) error {
	if n.SHA == "" {
		return ErrInvalidSHA
	}
	if _, exists := g.nodes[n.SHA]; exists {
		return ErrDuplicateSHA
	}
	node := n
	g.nodes[node.SHA] = &node
	return nil
}

// AddEdge adds a parent→child edge between two existing commits.
// Returns ErrSelfLoop, ErrUnknownParent, or ErrUnknownChild on invalid input.
func (g *Graph) AddEdge(parent, child string) error {
	if parent == child {
		return ErrSelfLoop
	}
	if _, ok := g.nodes[parent]; !ok {
		return ErrUnknownParent
	}
	if _, ok := g.nodes[child]; !ok {
		return ErrUnknownChild
	}
	g.edges = append(g.edges, Edge{Parent: parent, Child: child})
	g.children[parent] = append(g.children[parent], child)
	g.parents[child] = append(g.parents[child], parent)
	return nil
}

// Node returns the commit with the given SHA and true, or nil and false if
// not found. The returned pointer refers to the actual node in the graph.
func (g *Graph) Node(sha string) (*Node, bool) {
	n, ok := g.nodes[sha]
	return n, ok
}

// SHAs returns all commit SHAs in ascending order. This is the canonical
// deterministic iteration order used by layout and metrics.
func (g *Graph) SHAs() []string {
	shas := make([]string, 0, len(g.nodes))
	for sha := range g.nodes {
		shas = append(shas, sha)
	}
	slices.Sort(shas)
	return shas
}

// Edges returns a copy of all edges in insertion order.
func (g *Graph) Edges() []Edge { return slices.Clone(g.edges) }

// NodeCount returns the number of commits in the graph.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Children returns the SHAs of commits with this commit as a parent.
// The returned slice should be treated as read-only.
func (g *Graph) Children(sha string) []string { return g.children[sha] }

// Parents returns the SHAs of this commit's parents within the window.
// The returned slice should be treated as read-only.
func (g *Graph) Parents(sha string) []string { return g.parents[sha] }

// InDegree returns the number of parent edges into the commit.
// Returns 0 if the commit doesn't exist.
func (g *Graph) InDegree(sha string) int { return len(g.parents[sha]) }

// OutDegree returns the number of child edges out of the commit.
// Returns 0 if the commit doesn't exist.
func (g *Graph) OutDegree(sha string) int { return len(g.children[sha]) }

// IsMerge reports whether the commit has more than one parent within the
// fetched window.
func (g *Graph) IsMerge(sha string) bool { return len(g.parents[sha]) > 1 }

// Roots returns the SHAs of commits with no incoming edges, in ascending
// SHA order. These anchor the layout's level assignment.
func (g *Graph) Roots() []string {
	var roots []string
	for _, sha := range g.SHAs() {
		if len(g.parents[sha]) == 0 {
			roots = append(roots, sha)
		}
	}
	return roots
}

// Leaves returns the SHAs of commits with no outgoing edges, in ascending
// SHA order.
func (g *Graph) Leaves() []string {
	var leaves []string
	for _, sha := range g.SHAs() {
		if len(g.children[sha]) == 0 {
			leaves = append(leaves, sha)
		}
	}
	return leaves
}

// Validate checks graph integrity: every edge endpoint exists and the graph
// is acyclic. Returns nil if valid. Cycle detection runs in O(N+E) using
// depth-first search with white/gray/black coloring.
func (g *Graph) Validate() error {
	for _, e := range g.edges {
		if _, ok := g.nodes[e.Parent]; !ok {
			return ErrUnknownParent
		}
		if _, ok := g.nodes[e.Child]; !ok {
			return ErrUnknownChild
		}
	}
	return g.detectCycles()
}

func (g *Graph) detectCycles() error {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int, len(g.nodes))
	var hasCycle bool

	var dfs func(sha string)
	dfs = func(sha string) {
		color[sha] = gray
		for _, child := range g.children[sha] {
			switch color[child] {
			case white:
				dfs(child)
			case gray:
				hasCycle = true
				return
			}
		}
		color[sha] = black
	}

	for sha := range g.nodes {
		if color[sha] == white {
			dfs(sha)
			if hasCycle {
				return ErrGraphHasCycle
			}
		}
	}
	return nil
}
