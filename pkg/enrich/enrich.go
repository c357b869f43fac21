// Package enrich attaches per-commit detail and generated analysis to a
// built commit graph.
//
// Enrichment fans out one task per commit. Tasks are independent: a detail
// fetch or summarizer failure for one commit degrades that commit to
// sentinel values and never aborts or delays the others. Workers only
// compute; results flow back over a channel and a single coordinator writes
// them into the graph, so no two goroutines ever touch a node concurrently.
package enrich

import (
	"context"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/gitscape/pkg/commitgraph"
	"github.com/matzehuels/gitscape/pkg/github"
	"github.com/matzehuels/gitscape/pkg/summarize"
)

const (
	// codeSampleCap bounds the code excerpt stored on each node.
	codeSampleCap = 500

	// patchCap bounds each per-file patch before patches are joined into
	// the summarizer prompt.
	patchCap = 1000
)

// Sentinel values stored instead of real data when a commit's enrichment
// degrades. These are data, not errors: the run always completes.
const (
	SentinelNoFiles        = "No code changes available"
	SentinelNoCode         = "No code available"
	SentinelNoChanges      = "No changes"
	SentinelAnalysisFailed = "Analysis failed"
)

// DetailFetcher retrieves per-commit detail keyed by the detail URL from
// the commit-list response. *github.Client satisfies it.
type DetailFetcher interface {
	CommitDetail(ctx context.Context, url string) (*github.Detail, error)
}

// Summary is one enrichment result, archived per commit.
type Summary struct {
	Author      string   `json:"author" bson:"author"`
	Code        string   `json:"code" bson:"code"`
	Explanation string   `json:"explanation" bson:"explanation"`
	SHA         string   `json:"sha" bson:"sha"`
	FilesEdited []string `json:"files_edited" bson:"files_edited"`
}

// Enricher runs the per-commit enrichment stage.
type Enricher struct {
	details    DetailFetcher
	summarizer summarize.Summarizer
	logger     *log.Logger
}

// New creates an enricher. summarizer may be nil, in which case every
// commit's analysis is the no-changes sentinel and no completion calls are
// made.
func New(details DetailFetcher, summarizer summarize.Summarizer, logger *log.Logger) *Enricher {
	if logger == nil {
		logger = log.Default()
	}
	return &Enricher{details: details, summarizer: summarizer, logger: logger}
}

// outcome is one worker's computed enrichment, indexed by record position
// so collection order does not depend on goroutine scheduling.
type outcome struct {
	idx          int
	filesChanged []string
	filesCount   int
	code         string
	analysis     string
}

// Run enriches every node of g named by records and returns one summary per
// commit, in record order. The graph is complete only after Run returns;
// callers must not read node detail fields before that.
func (e *Enricher) Run(ctx context.Context, g *commitgraph.Graph, records []commitgraph.Record) []Summary {
	results := make([]outcome, len(records))

	var wg sync.WaitGroup
	ch := make(chan outcome)
	for i, rec := range records {
		wg.Add(1)
		go func(idx int, rec commitgraph.Record) {
			defer wg.Done()
			ch <- e.enrichOne(ctx, idx, rec)
		}(i, rec)
	}
	go func() {
		wg.Wait()
		close(ch)
	}()
	for out := range ch {
		results[out.idx] = out
	}

	summaries := make([]Summary, 0, len(records))
	for i, rec := range records {
		out := results[i]
		if node, ok := g.Node(rec.SHA); ok {
			node.FilesChanged = out.filesChanged
			node.FilesCount = out.filesCount
			node.Code = out.code
			node.Analysis = out.analysis
		}
		summaries = append(summaries, Summary{
			Author:      rec.Author,
			Code:        out.code,
			Explanation: out.analysis,
			SHA:         rec.SHA,
			FilesEdited: out.filesChanged,
		})
	}
	return summaries
}

func (e *Enricher) enrichOne(ctx context.Context, idx int, rec commitgraph.Record) outcome {
	out := outcome{idx: idx, filesChanged: []string{}}

	detail, err := e.details.CommitDetail(ctx, rec.DetailURL)
	if err != nil {
		e.logger.Warn("commit detail unavailable", "sha", rec.SHA, "err", err)
		out.code = SentinelNoCode
		out.analysis = SentinelNoChanges
		return out
	}

	for _, f := range detail.Files {
		out.filesChanged = append(out.filesChanged, f.Filename)
	}
	out.filesCount = len(detail.Files)

	if len(detail.Files) == 0 {
		out.code = SentinelNoFiles
		out.analysis = SentinelNoChanges
		return out
	}

	out.code = codeSample(detail.Files)
	out.analysis = e.analyze(ctx, rec.SHA, detail.Files)
	return out
}

// analyze requests a summary for the commit's patches. Any failure maps to
// the analysis-failed sentinel.
func (e *Enricher) analyze(ctx context.Context, sha string, files []github.File) string {
	if e.summarizer == nil {
		return SentinelNoChanges
	}

	patches := make([]string, len(files))
	for i, f := range files {
		patch := f.Patch
		if patch == "" {
			patch = SentinelNoCode
		}
		patches[i] = truncate(patch, patchCap)
	}

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Filename
	}

	analysis, err := e.summarizer.Summarize(ctx, names, strings.Join(patches, " "))
	if err != nil {
		e.logger.Warn("analysis unavailable", "sha", sha, "err", err)
		return SentinelAnalysisFailed
	}
	return analysis
}

// codeSample returns the first file's patch capped for display.
func codeSample(files []github.File) string {
	if files[0].Patch == "" {
		return SentinelNoCode
	}
	return truncate(files[0].Patch, codeSampleCap)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
