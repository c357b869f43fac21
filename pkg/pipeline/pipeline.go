// Package pipeline provides the core analysis pipeline for Gitscape.
//
// The pipeline fetches a bounded page of commit history, builds the commit
// graph, enriches every commit concurrently, computes the 3-D layout and
// metrics, and archives the enrichment summaries. CLI and API entry points
// both run through the same Runner so behavior stays consistent.
//
// # Usage
//
//	runner := pipeline.NewRunner(source, summarizer, cache, store, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{Owner: "golang", Repo: "go"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	payload := result.Layout
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/gitscape/pkg/commitgraph"
	"github.com/matzehuels/gitscape/pkg/enrich"
	"github.com/matzehuels/gitscape/pkg/errors"
	"github.com/matzehuels/gitscape/pkg/layout"
)

const (
	// DefaultLimit is the commit page size when none is requested.
	DefaultLimit = 50

	// MaxLimit caps the commit page size for a single analysis.
	MaxLimit = 100
)

// Options configures one analysis run. The struct serializes as the API
// request body.
type Options struct {
	Owner string `json:"owner"`
	Repo  string `json:"repo"`
	Limit int    `json:"limit,omitempty"`

	// SkipAnalysis disables summarizer calls; commits keep sentinel
	// analysis values. Useful offline and in tests.
	SkipAnalysis bool `json:"skip_analysis,omitempty"`

	// Refresh bypasses the analysis cache.
	Refresh bool `json:"refresh,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`

	validated bool `json:"-"`
}

// ValidateAndSetDefaults checks required fields and applies defaults.
// Idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Owner == "" || o.Repo == "" {
		return errors.New(errors.ErrCodeInvalidInput, "owner and repo are required")
	}
	if o.Limit < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "limit must be positive")
	}
	if o.Limit == 0 {
		o.Limit = DefaultLimit
	}
	if o.Limit > MaxLimit {
		return errors.New(errors.ErrCodeInvalidInput, "limit exceeds maximum of %d", MaxLimit)
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// Repository returns the owner/repo slug.
func (o *Options) Repository() string {
	return o.Owner + "/" + o.Repo
}

// Result contains the outputs of one analysis run.
type Result struct {
	// Graph is the built and enriched commit graph.
	Graph *commitgraph.Graph

	// Layout is the visualization payload: nodes, edges, metrics.
	Layout layout.Result

	// Summaries are the per-commit enrichment records, in fetch order.
	Summaries []enrich.Summary

	// Stats contains timing and size information.
	Stats Stats

	// CacheHit reports whether the layout came from the analysis cache.
	CacheHit bool
}

// Stats contains pipeline execution statistics.
type Stats struct {
	NodeCount  int
	EdgeCount  int
	FetchTime  time.Duration
	EnrichTime time.Duration
	LayoutTime time.Duration
}
