// Package layout computes the 3-D visualization of a commit graph: per-node
// positions, per-edge control points for curved rendering, and graph-wide
// statistics.
//
// The engine is pure computation over an already-built graph - it performs
// no I/O and holds no state across invocations. Positions are deterministic:
// running the engine twice on the same graph yields identical output.
//
// # Layout model
//
// Nodes are partitioned into tiers by topological level, where a node's
// level is the maximum shortest-path distance from any root that reaches it.
// This pushes a node below all of its ancestors even when it is reachable
// from several roots at different depths. Tiers are spaced along the x axis
// and nodes within a tier are spread along y, both rescaled to a fixed span;
// the level also sets the z coordinate directly (z = level x 10), giving the
// renderer a depth axis that follows history.
package layout

import (
	"fmt"
	"time"

	"github.com/matzehuels/gitscape/pkg/commitgraph"
)

const (
	// span is the half-extent of the in-plane layout after rescaling.
	span = 100.0

	// tierHeight is the z distance between consecutive levels.
	tierHeight = 10.0

	// controlOffset bows each edge curve by shifting the control point
	// along x relative to the endpoint midpoint.
	controlOffset = 20.0
)

// Position is a point in the 3-D layout space.
type Position struct {
	X float64 `json:"x" bson:"x"`
	Y float64 `json:"y" bson:"y"`
	Z float64 `json:"z" bson:"z"`
}

// NodeData carries the commit attributes exported with each node.
type NodeData struct {
	Message      string   `json:"message" bson:"message"`
	Author       string   `json:"author" bson:"author"`
	Date         string   `json:"date" bson:"date"` // ISO-8601, empty when absent
	FilesCount   int      `json:"files_count" bson:"files_count"`
	IsInitial    bool     `json:"is_initial" bson:"is_initial"`
	IsMerge      bool     `json:"is_merge" bson:"is_merge"`
	FilesChanged []string `json:"files_changed" bson:"files_changed"`
	Analysis     string   `json:"analysis" bson:"analysis"`
}

// NodeRecord is one positioned commit in the visualization payload.
type NodeRecord struct {
	ID       string   `json:"id" bson:"id"`
	Position Position `json:"position" bson:"position"`
	Data     NodeData `json:"data" bson:"data"`
}

// EdgeData carries the attributes exported with each edge.
type EdgeData struct {
	IsMerge bool `json:"is_merge" bson:"is_merge"`
}

// EdgeRecord is one curved edge in the visualization payload. ControlPoint
// is the midpoint of the endpoints offset along x, for quadratic curves.
type EdgeRecord struct {
	Source       string   `json:"source" bson:"source"`
	Target       string   `json:"target" bson:"target"`
	ControlPoint Position `json:"controlPoint" bson:"control_point"`
	Data         EdgeData `json:"data" bson:"data"`
}

// Result is the complete visualization payload for one commit graph.
type Result struct {
	Nodes   []NodeRecord `json:"nodes" bson:"nodes"`
	Edges   []EdgeRecord `json:"edges" bson:"edges"`
	Metrics Metrics      `json:"metrics" bson:"metrics"`
}

// Engine computes layouts and metrics for a single graph. Construct one per
// invocation with [NewEngine]; it holds no state between calls.
type Engine struct {
	g *commitgraph.Graph
}

// NewEngine creates an engine for the given graph.
// Panics if g is nil - callers always hold a graph, even an empty one.
func NewEngine(g *commitgraph.Graph) *Engine {
	if g == nil {
		panic("layout: nil graph")
	}
	return &Engine{g: g}
}

// Process computes positions, edge control points, and metrics.
// An empty graph yields empty node/edge slices and a zero-valued metrics
// snapshot. An edge referencing a node without a position is a programming
// defect and panics rather than being masked.
func (e *Engine) Process() Result {
	result := Result{
		Nodes: []NodeRecord{},
		Edges: []EdgeRecord{},
	}

	levels := e.assignLevels()
	positions := e.placeNodes(levels)
	result.Metrics = e.computeMetrics(levels)

	for _, sha := range e.g.SHAs() {
		node, _ := e.g.Node(sha)
		result.Nodes = append(result.Nodes, NodeRecord{
			ID:       sha,
			Position: positions[sha],
			Data:     exportData(e.g, node),
		})
	}

	for _, edge := range e.g.Edges() {
		src, okS := positions[edge.Parent]
		dst, okD := positions[edge.Child]
		if !okS || !okD {
			panic(fmt.Sprintf("layout: edge %s -> %s references unplaced node", edge.Parent, edge.Child))
		}
		result.Edges = append(result.Edges, EdgeRecord{
			Source:       edge.Parent,
			Target:       edge.Child,
			ControlPoint: controlPoint(src, dst),
			Data:         EdgeData{IsMerge: e.g.IsMerge(edge.Child)},
		})
	}

	return result
}

// anchorRoots returns the nodes that level assignment measures from: all
// in-degree-0 nodes, or - when the window has none - the first node with
// minimum in-degree in ascending SHA order. The tie-break only needs to be
// deterministic, nothing depends on which node wins.
func (e *Engine) anchorRoots() []string {
	if roots := e.g.Roots(); len(roots) > 0 {
		return roots
	}
	shas := e.g.SHAs()
	if len(shas) == 0 {
		return nil
	}
	best := shas[0]
	for _, sha := range shas[1:] {
		if e.g.InDegree(sha) < e.g.InDegree(best) {
			best = sha
		}
	}
	return []string{best}
}

// assignLevels computes each node's tier: the maximum, over all roots, of
// the shortest-path distance from that root. Nodes unreachable from every
// root stay at level 0.
func (e *Engine) assignLevels() map[string]int {
	levels := make(map[string]int, e.g.NodeCount())
	for _, sha := range e.g.SHAs() {
		levels[sha] = 0
	}
	for _, root := range e.anchorRoots() {
		for sha, dist := range e.distancesFrom(root) {
			if dist > levels[sha] {
				levels[sha] = dist
			}
		}
	}
	return levels
}

// distancesFrom runs a BFS over child edges and returns shortest-path
// distances for every node reachable from start.
func (e *Engine) distancesFrom(start string) map[string]int {
	dist := map[string]int{start: 0}
	queue := []string{start}
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		for _, child := range e.g.Children(curr) {
			if _, seen := dist[child]; seen {
				continue
			}
			dist[child] = dist[curr] + 1
			queue = append(queue, child)
		}
	}
	return dist
}

// placeNodes computes 3-D positions from the level assignment. Tiers run
// along x, nodes within a tier are spread along y in ascending SHA order
// and centered on zero; both axes are then centered and uniformly rescaled
// so the farthest coordinate sits at the span boundary.
func (e *Engine) placeNodes(levels map[string]int) map[string]Position {
	positions := make(map[string]Position, e.g.NodeCount())
	if e.g.NodeCount() == 0 {
		return positions
	}

	tiers := make(map[int][]string)
	for _, sha := range e.g.SHAs() {
		tiers[levels[sha]] = append(tiers[levels[sha]], sha)
	}

	raw := make(map[string][2]float64, e.g.NodeCount())
	var sumX, sumY float64
	for level, tier := range tiers {
		for i, sha := range tier {
			x := float64(level)
			y := float64(i) - float64(len(tier)-1)/2
			raw[sha] = [2]float64{x, y}
			sumX += x
			sumY += y
		}
	}

	n := float64(e.g.NodeCount())
	meanX, meanY := sumX/n, sumY/n

	var maxAbs float64
	for sha, p := range raw {
		p[0] -= meanX
		p[1] -= meanY
		raw[sha] = p
		maxAbs = max(maxAbs, abs(p[0]), abs(p[1]))
	}

	factor := 0.0
	if maxAbs > 0 {
		factor = span / maxAbs
	}

	for _, sha := range e.g.SHAs() {
		p := raw[sha]
		positions[sha] = Position{
			X: p[0] * factor,
			Y: p[1] * factor,
			Z: float64(levels[sha]) * tierHeight,
		}
	}
	return positions
}

// controlPoint returns the midpoint of two positions with the fixed lateral
// offset applied to x. Pure function of the endpoints.
func controlPoint(src, dst Position) Position {
	return Position{
		X: (src.X+dst.X)/2 + controlOffset,
		Y: (src.Y + dst.Y) / 2,
		Z: (src.Z + dst.Z) / 2,
	}
}

func exportData(g *commitgraph.Graph, n *commitgraph.Node) NodeData {
	date := ""
	if !n.Date.IsZero() {
		date = n.Date.Format(time.RFC3339)
	}
	files := n.FilesChanged
	if files == nil {
		files = []string{}
	}
	return NodeData{
		Message:      n.Message,
		Author:       n.Author,
		Date:         date,
		FilesCount:   n.FilesCount,
		IsInitial:    n.IsInitial,
		IsMerge:      g.IsMerge(n.SHA),
		FilesChanged: files,
		Analysis:     n.Analysis,
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
