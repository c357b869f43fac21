package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/gitscape/pkg/archive"
	"github.com/matzehuels/gitscape/pkg/cache"
	"github.com/matzehuels/gitscape/pkg/commitgraph"
	"github.com/matzehuels/gitscape/pkg/enrich"
	"github.com/matzehuels/gitscape/pkg/errors"
	"github.com/matzehuels/gitscape/pkg/github"
	"github.com/matzehuels/gitscape/pkg/layout"
	"github.com/matzehuels/gitscape/pkg/summarize"
)

// Source is the commit-history collaborator. *github.Client satisfies it.
type Source interface {
	ListCommits(ctx context.Context, owner, repo string, limit int) ([]github.Commit, error)
	CommitDetail(ctx context.Context, url string) (*github.Detail, error)
}

// Runner executes the analysis pipeline with caching and archiving.
//
// The Runner is stateless except for its collaborators - it stores no
// pipeline results. Multiple goroutines can safely share one Runner with
// different options.
type Runner struct {
	Source     Source
	Summarizer summarize.Summarizer
	Cache      cache.Cache
	Archive    archive.Store
	Logger     *log.Logger
}

// NewRunner creates a runner. summarizer, c, and store may each be nil:
// a nil summarizer skips analysis, a nil cache disables caching, and a nil
// store disables archiving.
func NewRunner(source Source, summarizer summarize.Summarizer, c cache.Cache, store archive.Store, logger *log.Logger) *Runner {
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Source:     source,
		Summarizer: summarizer,
		Cache:      c,
		Archive:    store,
		Logger:     logger,
	}
}

// Execute runs the complete fetch → build → enrich → layout → archive
// pipeline. A list-level fetch failure aborts the run; per-commit failures
// degrade to sentinel data inside enrichment.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	cacheKey := cache.AnalysisKey(opts.Owner, opts.Repo, opts.Limit)
	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			var cached layout.Result
			if err := json.Unmarshal(data, &cached); err == nil {
				opts.Logger.Debug("analysis cache hit", "repo", opts.Repository())
				return &Result{Layout: cached, CacheHit: true}, nil
			}
		}
	}

	result := &Result{}

	fetchStart := time.Now()
	commits, err := r.Source.ListCommits(ctx, opts.Owner, opts.Repo, opts.Limit)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "fetch commits for %s", opts.Repository())
	}
	result.Stats.FetchTime = time.Since(fetchStart)

	records := make([]commitgraph.Record, len(commits))
	for i, c := range commits {
		records[i] = c.Record()
	}

	g, err := commitgraph.Build(records)
	if err != nil {
		return nil, err
	}
	result.Graph = g
	result.Stats.NodeCount = g.NodeCount()
	result.Stats.EdgeCount = g.EdgeCount()

	opts.Logger.Info("built commit graph",
		"repo", opts.Repository(),
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
		"duration", result.Stats.FetchTime)

	summarizer := r.Summarizer
	if opts.SkipAnalysis {
		summarizer = nil
	}

	enrichStart := time.Now()
	result.Summaries = enrich.New(r.Source, summarizer, opts.Logger).Run(ctx, g, records)
	result.Stats.EnrichTime = time.Since(enrichStart)

	opts.Logger.Info("enriched commits",
		"commits", len(records),
		"duration", result.Stats.EnrichTime)

	layoutStart := time.Now()
	result.Layout = layout.NewEngine(g).Process()
	result.Stats.LayoutTime = time.Since(layoutStart)

	opts.Logger.Info("computed layout",
		"nodes", len(result.Layout.Nodes),
		"edges", len(result.Layout.Edges),
		"duration", result.Stats.LayoutTime)

	r.archive(ctx, opts, result.Summaries)

	if data, err := json.Marshal(result.Layout); err == nil {
		_ = r.Cache.Set(ctx, cacheKey, data, cache.TTLAnalysis)
	}

	return result, nil
}

// archive persists the enrichment summaries keyed by repository and primary
// author. Archive failures are logged, never propagated.
func (r *Runner) archive(ctx context.Context, opts Options, summaries []enrich.Summary) {
	if r.Archive == nil || len(summaries) == 0 {
		return
	}
	rec := archive.NewRecord(opts.Repository(), archive.PrimaryAuthor(summaries), summaries)
	if err := r.Archive.Save(ctx, rec); err != nil {
		opts.Logger.Warn("archive write failed", "key", rec.Key, "err", err)
		return
	}
	opts.Logger.Debug("archived summaries", "key", rec.Key, "count", len(summaries))
}

// Close releases resources held by the runner.
func (r *Runner) Close(ctx context.Context) error {
	var firstErr error
	if r.Cache != nil {
		firstErr = r.Cache.Close()
	}
	if r.Archive != nil {
		if err := r.Archive.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
