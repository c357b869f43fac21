package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	goerrors "errors"

	"github.com/matzehuels/gitscape/pkg/archive"
	"github.com/matzehuels/gitscape/pkg/cache"
	"github.com/matzehuels/gitscape/pkg/enrich"
	"github.com/matzehuels/gitscape/pkg/errors"
	"github.com/matzehuels/gitscape/pkg/github"
)

type fakeSource struct {
	mu        sync.Mutex
	commits   []github.Commit
	listErr   error
	listCalls int
}

func (f *fakeSource) ListCommits(ctx context.Context, owner, repo string, limit int) ([]github.Commit, error) {
	f.mu.Lock()
	f.listCalls++
	f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	if limit < len(f.commits) {
		return f.commits[:limit], nil
	}
	return f.commits, nil
}

func (f *fakeSource) CommitDetail(ctx context.Context, url string) (*github.Detail, error) {
	return &github.Detail{Files: []github.File{{Filename: "main.go", Patch: "+x"}}}, nil
}

type fakeStore struct {
	mu    sync.Mutex
	saved []archive.Record
	err   error
}

func (f *fakeStore) Save(ctx context.Context, rec archive.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, rec)
	return nil
}

func (f *fakeStore) Close(ctx context.Context) error { return nil }

func wireCommit(sha, author string, parents ...string) github.Commit {
	var c github.Commit
	c.SHA = sha
	c.Commit.Message = "msg " + sha
	c.Commit.Author.Name = author
	c.Commit.Author.Date = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for _, p := range parents {
		c.Parents = append(c.Parents, struct {
			SHA string `json:"sha"`
		}{SHA: p})
	}
	c.URL = "u/" + sha
	return c
}

func TestOptions_ValidateAndSetDefaults(t *testing.T) {
	tests := []struct {
		name     string
		opts     Options
		wantErr  bool
		wantCode errors.Code
	}{
		{"missing owner", Options{Repo: "r"}, true, errors.ErrCodeInvalidInput},
		{"missing repo", Options{Owner: "o"}, true, errors.ErrCodeInvalidInput},
		{"negative limit", Options{Owner: "o", Repo: "r", Limit: -1}, true, errors.ErrCodeInvalidInput},
		{"over max", Options{Owner: "o", Repo: "r", Limit: MaxLimit + 1}, true, errors.ErrCodeInvalidInput},
		{"defaults", Options{Owner: "o", Repo: "r"}, false, ""},
		{"at max", Options{Owner: "o", Repo: "r", Limit: MaxLimit}, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateAndSetDefaults()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !errors.Is(err, tt.wantCode) {
					t.Errorf("code = %v, want %v", errors.GetCode(err), tt.wantCode)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.opts.Limit == 0 {
				t.Error("limit default not applied")
			}
		})
	}

	opts := Options{Owner: "o", Repo: "r"}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	if opts.Limit != DefaultLimit {
		t.Errorf("Limit = %d, want %d", opts.Limit, DefaultLimit)
	}
}

func TestExecute(t *testing.T) {
	source := &fakeSource{commits: []github.Commit{
		wireCommit("aaa", "ada"),
		wireCommit("bbb", "ada", "aaa"),
		wireCommit("ccc", "bob", "bbb"),
	}}
	store := &fakeStore{}

	runner := NewRunner(source, nil, nil, store, nil)
	result, err := runner.Execute(context.Background(), Options{Owner: "o", Repo: "r", SkipAnalysis: true})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if result.Stats.NodeCount != 3 || result.Stats.EdgeCount != 2 {
		t.Errorf("stats = %+v", result.Stats)
	}
	if len(result.Layout.Nodes) != 3 {
		t.Errorf("layout has %d nodes, want 3", len(result.Layout.Nodes))
	}
	if result.Layout.Metrics.TotalCommits != 3 {
		t.Errorf("metrics total = %d, want 3", result.Layout.Metrics.TotalCommits)
	}
	if len(result.Summaries) != 3 {
		t.Errorf("got %d summaries, want 3", len(result.Summaries))
	}

	// Enrichment wrote back onto the graph before layout ran.
	node, _ := result.Graph.Node("aaa")
	if node.FilesCount != 1 {
		t.Errorf("node not enriched: %+v", node)
	}

	if len(store.saved) != 1 {
		t.Fatalf("archive saved %d records, want 1", len(store.saved))
	}
	if store.saved[0].Author != "ada" {
		t.Errorf("archived author = %q, want most frequent", store.saved[0].Author)
	}
	if store.saved[0].Repository != "o/r" {
		t.Errorf("archived repository = %q", store.saved[0].Repository)
	}
}

func TestExecute_EmptyRepository(t *testing.T) {
	source := &fakeSource{}
	store := &fakeStore{}

	result, err := NewRunner(source, nil, nil, store, nil).
		Execute(context.Background(), Options{Owner: "o", Repo: "r", SkipAnalysis: true})
	if err != nil {
		t.Fatalf("empty repository should not error: %v", err)
	}
	if len(result.Layout.Nodes) != 0 || len(result.Layout.Edges) != 0 {
		t.Errorf("expected empty payload, got %d nodes / %d edges", len(result.Layout.Nodes), len(result.Layout.Edges))
	}
	if result.Layout.Metrics.TotalCommits != 0 {
		t.Errorf("metrics should be zero-valued: %+v", result.Layout.Metrics)
	}
	if len(store.saved) != 0 {
		t.Error("nothing should be archived for an empty repository")
	}
}

func TestExecute_FetchFailureAborts(t *testing.T) {
	source := &fakeSource{listErr: goerrors.New("boom")}

	_, err := NewRunner(source, nil, nil, nil, nil).
		Execute(context.Background(), Options{Owner: "o", Repo: "r", SkipAnalysis: true})
	if err == nil {
		t.Fatal("list-level fetch failure must abort the run")
	}
	if !errors.Is(err, errors.ErrCodeNetwork) {
		t.Errorf("code = %v, want %v", errors.GetCode(err), errors.ErrCodeNetwork)
	}
}

func TestExecute_CacheHit(t *testing.T) {
	source := &fakeSource{commits: []github.Commit{wireCommit("aaa", "ada")}}
	fileCache, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	runner := NewRunner(source, nil, fileCache, nil, nil)
	ctx := context.Background()
	opts := Options{Owner: "o", Repo: "r", SkipAnalysis: true}

	first, err := runner.Execute(ctx, opts)
	if err != nil {
		t.Fatalf("first Execute: %v", err)
	}
	if first.CacheHit {
		t.Error("first run should miss the cache")
	}

	second, err := runner.Execute(ctx, Options{Owner: "o", Repo: "r", SkipAnalysis: true})
	if err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if !second.CacheHit {
		t.Error("second run should hit the cache")
	}
	if len(second.Layout.Nodes) != len(first.Layout.Nodes) {
		t.Error("cached payload differs from computed payload")
	}
	if source.listCalls != 1 {
		t.Errorf("source saw %d list calls, want 1", source.listCalls)
	}

	third, err := runner.Execute(ctx, Options{Owner: "o", Repo: "r", SkipAnalysis: true, Refresh: true})
	if err != nil {
		t.Fatalf("refresh Execute: %v", err)
	}
	if third.CacheHit {
		t.Error("refresh must bypass the cache")
	}
	if source.listCalls != 2 {
		t.Errorf("source saw %d list calls after refresh, want 2", source.listCalls)
	}
}

func TestExecute_ArchiveFailureIsNonFatal(t *testing.T) {
	source := &fakeSource{commits: []github.Commit{wireCommit("aaa", "ada")}}
	store := &fakeStore{err: goerrors.New("disk full")}

	result, err := NewRunner(source, nil, nil, store, nil).
		Execute(context.Background(), Options{Owner: "o", Repo: "r", SkipAnalysis: true})
	if err != nil {
		t.Fatalf("archive failure must not fail the run: %v", err)
	}
	if len(result.Layout.Nodes) != 1 {
		t.Errorf("payload should still be produced, got %d nodes", len(result.Layout.Nodes))
	}
}

var _ enrich.DetailFetcher = (*fakeSource)(nil)
