// Package github provides the commit-history client for the GitHub REST API.
// It fetches bounded pages of commit metadata, per-commit detail (changed
// files and patch text), and raw unified diffs, with response caching and
// automatic retries for transient failures.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/matzehuels/gitscape/pkg/cache"
	"github.com/matzehuels/gitscape/pkg/commitgraph"
	"github.com/matzehuels/gitscape/pkg/httputil"
)

const acceptJSON = "application/vnd.github+json"
const acceptDiff = "application/vnd.github.v3.diff"

// Commit is one entry of the commit-list response.
type Commit struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string `json:"message"`
		Author  struct {
			Name string    `json:"name"`
			Date time.Time `json:"date"`
		} `json:"author"`
	} `json:"commit"`
	Parents []struct {
		SHA string `json:"sha"`
	} `json:"parents"`
	URL string `json:"url"`
}

// Record converts the wire commit into the builder's input shape.
func (c Commit) Record() commitgraph.Record {
	parents := make([]string, len(c.Parents))
	for i, p := range c.Parents {
		parents[i] = p.SHA
	}
	return commitgraph.Record{
		SHA:       c.SHA,
		Message:   c.Commit.Message,
		Author:    c.Commit.Author.Name,
		Date:      c.Commit.Author.Date,
		Parents:   parents,
		DetailURL: c.URL,
	}
}

// File is one changed file in a commit-detail response. Patch is empty for
// binary files and very large diffs, where GitHub omits it.
type File struct {
	Filename string `json:"filename"`
	Patch    string `json:"patch,omitempty"`
}

// Detail is the per-commit detail response consumed by the enricher.
type Detail struct {
	Files []File `json:"files"`
}

// Client fetches commit data from the GitHub API. Detail and diff responses
// are cached; the commit list is always fetched fresh so a new analysis sees
// new commits.
type Client struct {
	http    *http.Client
	cache   cache.Cache
	token   string
	baseURL string
}

// NewClient creates a GitHub client with optional authentication.
// Pass an empty token for unauthenticated requests (lower rate limits).
// Pass nil for c to disable response caching.
func NewClient(token string, c cache.Cache) *Client {
	if c == nil {
		c = cache.NewNullCache()
	}
	return &Client{
		http:    httputil.NewClient(),
		cache:   c,
		token:   token,
		baseURL: "https://api.github.com",
	}
}

// ListCommits retrieves up to limit commits for owner/repo, newest first.
// A failure here aborts the whole analysis for the repository, so transient
// errors are retried before giving up.
func (c *Client) ListCommits(ctx context.Context, owner, repo string, limit int) ([]Commit, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/commits?per_page=%d", c.baseURL, owner, repo, limit)

	var commits []Commit
	err := httputil.RetryWithBackoff(ctx, func() error {
		return c.getJSON(ctx, url, &commits)
	})
	if err != nil {
		return nil, fmt.Errorf("list commits %s/%s: %w", owner, repo, err)
	}
	return commits, nil
}

// CommitDetail retrieves the changed-file list and patch text for one
// commit, keyed by the detail URL from the commit-list response. Responses
// are cached: commit contents are immutable under their SHA.
func (c *Client) CommitDetail(ctx context.Context, url string) (*Detail, error) {
	key := cache.ResponseKey("detail", url)
	if data, hit, _ := c.cache.Get(ctx, key); hit {
		var detail Detail
		if err := json.Unmarshal(data, &detail); err == nil {
			return &detail, nil
		}
	}

	var detail Detail
	if err := c.getJSON(ctx, url, &detail); err != nil {
		return nil, fmt.Errorf("commit detail: %w", err)
	}

	if data, err := json.Marshal(detail); err == nil {
		_ = c.cache.Set(ctx, key, data, cache.TTLResponse)
	}
	return &detail, nil
}

// CommitDiff retrieves a commit's full unified diff as text.
func (c *Client) CommitDiff(ctx context.Context, owner, repo, sha string) (string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/commits/%s", c.baseURL, owner, repo, sha)
	key := cache.ResponseKey("diff", url)
	if data, hit, _ := c.cache.Get(ctx, key); hit {
		return string(data), nil
	}

	body, err := c.get(ctx, url, acceptDiff)
	if err != nil {
		return "", fmt.Errorf("commit diff %s: %w", sha, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("commit diff %s: %w", sha, err)
	}

	_ = c.cache.Set(ctx, key, data, cache.TTLResponse)
	return string(data), nil
}

func (c *Client) getJSON(ctx context.Context, url string, v any) error {
	body, err := c.get(ctx, url, acceptJSON)
	if err != nil {
		return err
	}
	defer body.Close()
	return json.NewDecoder(body).Decode(v)
}

func (c *Client) get(ctx context.Context, url, accept string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", accept)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &httputil.RetryableError{Err: fmt.Errorf("%w: %v", httputil.ErrNetwork, err)}
	}
	if err := httputil.CheckStatus(resp.StatusCode); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}
