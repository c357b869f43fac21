package enrich

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/gitscape/pkg/commitgraph"
	"github.com/matzehuels/gitscape/pkg/github"
)

type fakeDetails struct {
	mu      sync.Mutex
	byURL   map[string]*github.Detail
	failURL string
	delay   time.Duration
	calls   int
}

func (f *fakeDetails) CommitDetail(ctx context.Context, url string) (*github.Detail, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if url == f.failURL {
		return nil, errors.New("fetch failed")
	}
	if d, ok := f.byURL[url]; ok {
		return d, nil
	}
	return &github.Detail{}, nil
}

type fakeSummarizer struct {
	mu      sync.Mutex
	prompts []string
	reply   string
	err     error
}

func (f *fakeSummarizer) Summarize(ctx context.Context, files []string, changes string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, strings.Join(files, ",")+"|"+changes)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func buildGraph(t *testing.T, records []commitgraph.Record) *commitgraph.Graph {
	t.Helper()
	g, err := commitgraph.Build(records)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return g
}

func record(sha, url string) commitgraph.Record {
	return commitgraph.Record{SHA: sha, Message: "m", Author: "ada", Date: time.Now(), DetailURL: url}
}

func TestRun(t *testing.T) {
	records := []commitgraph.Record{record("aaa", "u/aaa"), record("bbb", "u/bbb")}
	g := buildGraph(t, records)

	details := &fakeDetails{byURL: map[string]*github.Detail{
		"u/aaa": {Files: []github.File{
			{Filename: "main.go", Patch: "+hello"},
			{Filename: "util.go", Patch: "+world"},
		}},
		"u/bbb": {Files: []github.File{}},
	}}
	sum := &fakeSummarizer{reply: "adds greeting"}

	summaries := New(details, sum, nil).Run(context.Background(), g, records)

	if len(summaries) != 2 {
		t.Fatalf("got %d summaries, want 2", len(summaries))
	}

	node, _ := g.Node("aaa")
	if node.FilesCount != 2 || len(node.FilesChanged) != 2 {
		t.Errorf("aaa files = %d/%v", node.FilesCount, node.FilesChanged)
	}
	if node.Code != "+hello" {
		t.Errorf("aaa code = %q, want first file's patch", node.Code)
	}
	if node.Analysis != "adds greeting" {
		t.Errorf("aaa analysis = %q", node.Analysis)
	}

	empty, _ := g.Node("bbb")
	if empty.Code != SentinelNoFiles {
		t.Errorf("bbb code = %q, want %q", empty.Code, SentinelNoFiles)
	}
	if empty.Analysis != SentinelNoChanges {
		t.Errorf("bbb analysis = %q, want %q", empty.Analysis, SentinelNoChanges)
	}

	// Summaries come back in record order regardless of completion order.
	if summaries[0].SHA != "aaa" || summaries[1].SHA != "bbb" {
		t.Errorf("summary order = %s, %s", summaries[0].SHA, summaries[1].SHA)
	}
	if summaries[0].Explanation != "adds greeting" || len(summaries[0].FilesEdited) != 2 {
		t.Errorf("summary[0] = %+v", summaries[0])
	}

	// The commit with no files must not reach the summarizer.
	if len(sum.prompts) != 1 {
		t.Errorf("summarizer saw %d calls, want 1", len(sum.prompts))
	}
}

func TestRun_FetchFailureIsolated(t *testing.T) {
	records := []commitgraph.Record{record("aaa", "u/aaa"), record("bbb", "u/bbb")}
	g := buildGraph(t, records)

	details := &fakeDetails{
		failURL: "u/aaa",
		byURL: map[string]*github.Detail{
			"u/bbb": {Files: []github.File{{Filename: "a.go", Patch: "+x"}}},
		},
	}
	sum := &fakeSummarizer{reply: "ok"}

	New(details, sum, nil).Run(context.Background(), g, records)

	failed, _ := g.Node("aaa")
	if failed.Code != SentinelNoCode {
		t.Errorf("failed commit code = %q, want %q", failed.Code, SentinelNoCode)
	}
	healthy, _ := g.Node("bbb")
	if healthy.Analysis != "ok" {
		t.Errorf("healthy commit should still be enriched, analysis = %q", healthy.Analysis)
	}
}

func TestRun_SummarizerFailure(t *testing.T) {
	records := []commitgraph.Record{record("aaa", "u/aaa")}
	g := buildGraph(t, records)

	details := &fakeDetails{byURL: map[string]*github.Detail{
		"u/aaa": {Files: []github.File{{Filename: "a.go", Patch: "+x"}}},
	}}
	sum := &fakeSummarizer{err: errors.New("rate limited")}

	New(details, sum, nil).Run(context.Background(), g, records)

	node, _ := g.Node("aaa")
	if node.Analysis != SentinelAnalysisFailed {
		t.Errorf("analysis = %q, want %q", node.Analysis, SentinelAnalysisFailed)
	}
	if node.Code != "+x" {
		t.Error("code sample should survive a summarizer failure")
	}
}

func TestRun_Caps(t *testing.T) {
	records := []commitgraph.Record{record("aaa", "u/aaa")}
	g := buildGraph(t, records)

	long := strings.Repeat("x", 5000)
	details := &fakeDetails{byURL: map[string]*github.Detail{
		"u/aaa": {Files: []github.File{
			{Filename: "a.go", Patch: long},
			{Filename: "b.go", Patch: long},
		}},
	}}
	sum := &fakeSummarizer{reply: "ok"}

	New(details, sum, nil).Run(context.Background(), g, records)

	node, _ := g.Node("aaa")
	if len(node.Code) != codeSampleCap {
		t.Errorf("code sample length = %d, want %d", len(node.Code), codeSampleCap)
	}

	// Two patches capped at 1000 each, joined with one space.
	wantLen := 2*patchCap + 1
	gotChanges := sum.prompts[0][strings.Index(sum.prompts[0], "|")+1:]
	if len(gotChanges) != wantLen {
		t.Errorf("summarizer changes length = %d, want %d", len(gotChanges), wantLen)
	}
}

func TestRun_MissingPatch(t *testing.T) {
	records := []commitgraph.Record{record("aaa", "u/aaa")}
	g := buildGraph(t, records)

	details := &fakeDetails{byURL: map[string]*github.Detail{
		"u/aaa": {Files: []github.File{{Filename: "image.png"}}},
	}}
	sum := &fakeSummarizer{reply: "ok"}

	New(details, sum, nil).Run(context.Background(), g, records)

	node, _ := g.Node("aaa")
	if node.Code != SentinelNoCode {
		t.Errorf("code = %q, want %q for patchless file", node.Code, SentinelNoCode)
	}
	if !strings.Contains(sum.prompts[0], SentinelNoCode) {
		t.Error("patchless file should feed the sentinel into the prompt")
	}
}

func TestRun_Concurrent(t *testing.T) {
	var records []commitgraph.Record
	byURL := make(map[string]*github.Detail)
	shas := []string{"a1", "a2", "a3", "a4", "a5", "a6", "a7", "a8"}
	for _, sha := range shas {
		records = append(records, record(sha, "u/"+sha))
		byURL["u/"+sha] = &github.Detail{Files: []github.File{{Filename: sha + ".go", Patch: "+x"}}}
	}
	g := buildGraph(t, records)

	details := &fakeDetails{byURL: byURL, delay: 20 * time.Millisecond}
	sum := &fakeSummarizer{reply: "ok"}

	start := time.Now()
	summaries := New(details, sum, nil).Run(context.Background(), g, records)
	elapsed := time.Since(start)

	if len(summaries) != len(shas) {
		t.Fatalf("got %d summaries, want %d", len(summaries), len(shas))
	}
	for i, sha := range shas {
		if summaries[i].SHA != sha {
			t.Errorf("summaries[%d].SHA = %s, want %s", i, summaries[i].SHA, sha)
		}
	}
	// Serial execution would take >=160ms; the fan-out should be far under.
	if elapsed > 120*time.Millisecond {
		t.Errorf("enrichment took %v, expected concurrent fan-out", elapsed)
	}
}

func TestRun_NilSummarizer(t *testing.T) {
	records := []commitgraph.Record{record("aaa", "u/aaa")}
	g := buildGraph(t, records)

	details := &fakeDetails{byURL: map[string]*github.Detail{
		"u/aaa": {Files: []github.File{{Filename: "a.go", Patch: "+x"}}},
	}}

	New(details, nil, nil).Run(context.Background(), g, records)

	node, _ := g.Node("aaa")
	if node.Analysis != SentinelNoChanges {
		t.Errorf("analysis = %q, want %q without a summarizer", node.Analysis, SentinelNoChanges)
	}
}
