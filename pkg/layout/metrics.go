package layout

// Metrics is the graph-wide statistics snapshot computed per invocation.
// It has no identity: recomputed on demand, never mutated.
type Metrics struct {
	TotalCommits        int            `json:"total_commits" bson:"total_commits"`
	MaxDepth            int            `json:"max_depth" bson:"max_depth"`
	BranchingFactor     float64        `json:"branching_factor" bson:"branching_factor"`
	LeafCommits         int            `json:"leaf_commits" bson:"leaf_commits"`
	MergeCommits        int            `json:"merge_commits" bson:"merge_commits"`
	AverageBranchLength float64        `json:"average_branch_length" bson:"average_branch_length"`
	CommitFrequency     map[string]int `json:"commit_frequency" bson:"commit_frequency"`
}

// computeMetrics derives the statistics snapshot from the graph and its
// level assignment. An empty graph yields all-zero numeric fields and an
// empty frequency map; every denominator is floored at 1.
func (e *Engine) computeMetrics(levels map[string]int) Metrics {
	m := Metrics{CommitFrequency: map[string]int{}}
	if e.g.NodeCount() == 0 {
		return m
	}

	m.TotalCommits = e.g.NodeCount()
	for _, sha := range e.g.SHAs() {
		if e.g.IsMerge(sha) {
			m.MergeCommits++
		}
		if e.g.OutDegree(sha) == 0 {
			m.LeafCommits++
		}
		node, _ := e.g.Node(sha)
		author := node.Author
		if author == "" {
			author = "Unknown"
		}
		m.CommitFrequency[author]++
	}

	// Max depth is the deepest tier: the longest shortest-path distance
	// from any true root. The no-root fallback anchor used for layout does
	// not count here, matching roots-only depth semantics.
	for _, sha := range e.g.Roots() {
		for _, dist := range e.distancesFrom(sha) {
			if dist > m.MaxDepth {
				m.MaxDepth = dist
			}
		}
	}

	m.BranchingFactor = float64(m.TotalCommits) / float64(max(1, m.TotalCommits-m.MergeCommits))

	paths := e.branchPaths()
	total := 0
	for _, p := range paths {
		total += len(p)
	}
	m.AverageBranchLength = float64(total) / float64(max(1, len(paths)))

	return m
}

// branchPaths enumerates every simple path from each root to each leaf.
// Exponential in the worst case, but fetched windows are bounded (<=100
// commits) and git histories are sparse.
func (e *Engine) branchPaths() [][]string {
	leaves := make(map[string]bool)
	for _, sha := range e.g.Leaves() {
		leaves[sha] = true
	}

	var paths [][]string
	var walk func(sha string, path []string)
	walk = func(sha string, path []string) {
		path = append(path, sha)
		if leaves[sha] {
			paths = append(paths, append([]string(nil), path...))
		}
		for _, child := range e.g.Children(sha) {
			walk(child, path)
		}
	}

	for _, root := range e.g.Roots() {
		walk(root, nil)
	}
	return paths
}
