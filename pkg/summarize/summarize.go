// Package summarize generates short natural-language explanations of code
// changes using an OpenAI-compatible chat completion endpoint.
package summarize

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "gpt-4"

	// Timeout bounds a single completion call. Summaries are best-effort;
	// a slow provider must not stall the whole analysis.
	Timeout = 30 * time.Second

	temperature = 0.7
	maxTokens   = 100
)

// Summarizer produces a one-paragraph analysis for a commit's changes.
type Summarizer interface {
	Summarize(ctx context.Context, files []string, changes string) (string, error)
}

// Client is a Summarizer backed by the OpenAI chat completion API.
type Client struct {
	client *openai.Client
	model  string
}

// Option configures a Client.
type Option func(*options)

type options struct {
	model   string
	baseURL string
}

// WithModel overrides the completion model.
func WithModel(model string) Option {
	return func(o *options) {
		if model != "" {
			o.model = model
		}
	}
}

// WithBaseURL points the client at an alternate API endpoint, such as a
// local proxy or a test server.
func WithBaseURL(url string) Option {
	return func(o *options) {
		if url != "" {
			o.baseURL = url
		}
	}
}

// NewClient creates a summarizer for the given API key.
func NewClient(apiKey string, opts ...Option) *Client {
	o := options{model: DefaultModel}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := openai.DefaultConfig(apiKey)
	if o.baseURL != "" {
		cfg.BaseURL = o.baseURL
	}
	return &Client{
		client: openai.NewClientWithConfig(cfg),
		model:  o.model,
	}
}

// Summarize asks the model for a concise summary of the change. files lists
// the modified paths; changes is the (already truncated) patch text.
func (c *Client) Summarize(ctx context.Context, files []string, changes string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: Prompt(files, changes)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Prompt builds the completion prompt for a commit's file list and changes.
func Prompt(files []string, changes string) string {
	return fmt.Sprintf(
		"Analyze this code change briefly:\nFiles modified: %s\nChanges: %s\nProvide a concise summary.",
		strings.Join(files, ", "), changes,
	)
}
