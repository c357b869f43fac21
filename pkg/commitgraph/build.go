package commitgraph

import (
	"time"

	"github.com/matzehuels/gitscape/pkg/errors"
)

// Record is one raw commit as handed over by the fetcher: the minimal shape
// the builder needs, decoupled from the GitHub wire format.
type Record struct {
	SHA       string
	Message   string
	Author    string
	Date      time.Time
	Parents   []string // Parent SHAs, possibly outside the fetched window
	DetailURL string   // Per-commit detail endpoint, consumed by the enricher
}

// Build constructs a commit graph from an ordered list of raw commit records.
//
// One node is created per record; an edge parent→child is added only when the
// parent SHA also appears as a record in the same input. Parents outside the
// window produce no edge, so their children become structural roots of the
// graph even though IsInitial is false for them.
//
// Empty input yields an empty graph, not an error. A malformed record
// (missing SHA or author) aborts construction - no partial graph is returned.
func Build(records []Record) (*Graph, error) {
	g := New()

	inWindow := make(map[string]bool, len(records))
	for _, r := range records {
		inWindow[r.SHA] = true
	}

	for i, r := range records {
		if r.SHA == "" {
			return nil, errors.New(errors.ErrCodeMalformedData, "commit record %d has no SHA", i)
		}
		if r.Author == "" {
			return nil, errors.New(errors.ErrCodeMalformedData, "commit %s has no author", r.SHA)
		}
		err := g.AddNode(Node{
			SHA:       r.SHA,
			Message:   r.Message,
			Author:    r.Author,
			Date:      r.Date,
			IsInitial: len(r.Parents) == 0,
		})
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeMalformedData, err, "add commit %s", r.SHA)
		}
	}

	for _, r := range records {
		for _, parent := range r.Parents {
			if !inWindow[parent] {
				continue
			}
			if err := g.AddEdge(parent, r.SHA); err != nil {
				return nil, errors.Wrap(errors.ErrCodeMalformedData, err, "link %s -> %s", parent, r.SHA)
			}
		}
	}

	return g, nil
}
