package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/gitscape/internal/config"
	"github.com/matzehuels/gitscape/pkg/github"
	"github.com/matzehuels/gitscape/pkg/layout"
	"github.com/matzehuels/gitscape/pkg/pipeline"
)

type fakeSource struct {
	commits []github.Commit
	diff    string
}

func (f *fakeSource) ListCommits(ctx context.Context, owner, repo string, limit int) ([]github.Commit, error) {
	return f.commits, nil
}

func (f *fakeSource) CommitDetail(ctx context.Context, url string) (*github.Detail, error) {
	return &github.Detail{Files: []github.File{{Filename: "main.go", Patch: "+x"}}}, nil
}

func (f *fakeSource) CommitDiff(ctx context.Context, owner, repo, sha string) (string, error) {
	return f.diff, nil
}

func wireCommit(sha string, parents ...string) github.Commit {
	var c github.Commit
	c.SHA = sha
	c.Commit.Message = "msg"
	c.Commit.Author.Name = "ada"
	c.Commit.Author.Date = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for _, p := range parents {
		c.Parents = append(c.Parents, struct {
			SHA string `json:"sha"`
		}{SHA: p})
	}
	c.URL = "u/" + sha
	return c
}

func testServer(t *testing.T, source *fakeSource, cfg *config.Config) http.Handler {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{}
	}
	logger := log.NewWithOptions(io.Discard, log.Options{})
	runner := pipeline.NewRunner(source, nil, nil, nil, logger)
	return NewServer(runner, source, cfg, logger).Router()
}

func postJSON(t *testing.T, h http.Handler, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestAnalyze(t *testing.T) {
	source := &fakeSource{commits: []github.Commit{
		wireCommit("aaa"),
		wireCommit("bbb", "aaa"),
	}}
	h := testServer(t, source, nil)

	w := postJSON(t, h, "/api/v1/analyze", map[string]any{"owner": "o", "repo": "r"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body)
	}

	var payload layout.Result
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	if len(payload.Nodes) != 2 || len(payload.Edges) != 1 {
		t.Errorf("payload = %d nodes, %d edges", len(payload.Nodes), len(payload.Edges))
	}
	if payload.Metrics.TotalCommits != 2 {
		t.Errorf("metrics total = %d", payload.Metrics.TotalCommits)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("response missing request id header")
	}
}

func TestAnalyze_EmptyRepository(t *testing.T) {
	h := testServer(t, &fakeSource{}, nil)

	w := postJSON(t, h, "/api/v1/analyze", map[string]any{"owner": "o", "repo": "r"}, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if !strings.Contains(w.Body.String(), "NO_COMMITS") {
		t.Errorf("body missing error code: %s", w.Body)
	}
}

func TestAnalyze_BadRequest(t *testing.T) {
	h := testServer(t, &fakeSource{}, nil)

	tests := []struct {
		name string
		body any
	}{
		{"missing owner", map[string]any{"repo": "r"}},
		{"limit over max", map[string]any{"owner": "o", "repo": "r", "limit": 101}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(t, h, "/api/v1/analyze", tt.body, nil)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d, want 400", w.Code)
	}
}

func TestDiff(t *testing.T) {
	source := &fakeSource{diff: "diff --git a/main.go b/main.go\n@@ -1 +1 @@\n-old\n+new"}
	h := testServer(t, source, nil)

	w := postJSON(t, h, "/api/v1/diff", diffRequest{
		Owner: "o", Repo: "r", Commit: "abc", File: "main.go",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body)
	}

	var resp diffResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resp.Content, "+new") {
		t.Errorf("content = %q", resp.Content)
	}
}

func TestDiff_FileNotInCommit(t *testing.T) {
	source := &fakeSource{diff: "diff --git a/main.go b/main.go\n+new"}
	h := testServer(t, source, nil)

	w := postJSON(t, h, "/api/v1/diff", diffRequest{
		Owner: "o", Repo: "r", Commit: "abc", File: "other.go",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp diffResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Content != "No changes found for this file" {
		t.Errorf("content = %q", resp.Content)
	}
}

func TestDiff_MissingFields(t *testing.T) {
	h := testServer(t, &fakeSource{}, nil)
	w := postJSON(t, h, "/api/v1/diff", diffRequest{Owner: "o"}, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestOpenAIKey(t *testing.T) {
	cfg := &config.Config{}
	cfg.OpenAI.APIKey = "sk-test"
	h := testServer(t, &fakeSource{}, cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/config/openai-key", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp openAIKeyResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Key != "sk-test" {
		t.Errorf("key = %q", resp.Key)
	}
}

func TestOpenAIKey_Unconfigured(t *testing.T) {
	h := testServer(t, &fakeSource{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/config/openai-key", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.APIKey = "secret"
	source := &fakeSource{commits: []github.Commit{wireCommit("aaa")}}
	h := testServer(t, source, cfg)

	w := postJSON(t, h, "/api/v1/analyze", map[string]any{"owner": "o", "repo": "r"}, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("without key: status = %d, want 403", w.Code)
	}

	w = postJSON(t, h, "/api/v1/analyze", map[string]any{"owner": "o", "repo": "r"},
		map[string]string{headerAPIKey: "wrong"})
	if w.Code != http.StatusForbidden {
		t.Errorf("wrong key: status = %d, want 403", w.Code)
	}

	w = postJSON(t, h, "/api/v1/analyze", map[string]any{"owner": "o", "repo": "r"},
		map[string]string{headerAPIKey: "secret"})
	if w.Code != http.StatusOK {
		t.Errorf("correct key: status = %d, want 200", w.Code)
	}

	// Health stays open.
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("healthz: status = %d, want 200", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	cfg := &config.Config{}
	cfg.Server.CORSOrigins = []string{"http://localhost:5173"}
	h := testServer(t, &fakeSource{}, cfg)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/analyze", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("allow-origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/analyze", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("unlisted origin should not be allowed")
	}
}

func TestRequestID_Propagated(t *testing.T) {
	h := testServer(t, &fakeSource{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "fixed-id" {
		t.Errorf("request id = %q, want caller's id echoed", got)
	}
}
