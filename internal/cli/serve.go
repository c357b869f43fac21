package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/gitscape/internal/api"
	"github.com/matzehuels/gitscape/internal/config"
	"github.com/matzehuels/gitscape/pkg/archive"
	"github.com/matzehuels/gitscape/pkg/cache"
	"github.com/matzehuels/gitscape/pkg/github"
	"github.com/matzehuels/gitscape/pkg/pipeline"
	"github.com/matzehuels/gitscape/pkg/summarize"
)

// serveCommand creates the serve command running the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long: `Serve runs the gitscape HTTP API. The server exposes repository analysis
at POST /api/v1/analyze and per-file diffs at POST /api/v1/diff.

Cache and archive backends come from the config file: redis and mongo for
deployments, file backends for local use.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, "+config.DefaultAddr+")")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, addr string) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if cfg.GitHub.Token == "" {
		c.Logger.Warn("GITHUB_TOKEN not set, unauthenticated rate limits apply")
	}

	responseCache, err := serverCache(ctx, cfg)
	if err != nil {
		return err
	}
	store, err := serverArchive(ctx, cfg, c)
	if err != nil {
		return err
	}

	var summarizer summarize.Summarizer
	if cfg.OpenAI.APIKey != "" {
		summarizer = summarize.NewClient(cfg.OpenAI.APIKey,
			summarize.WithModel(cfg.OpenAI.Model),
			summarize.WithBaseURL(cfg.OpenAI.BaseURL))
	} else {
		c.Logger.Warn("OPENAI_API_KEY not set, commit summaries disabled")
	}

	source := github.NewClient(cfg.GitHub.Token, responseCache)
	runner := pipeline.NewRunner(source, summarizer, responseCache, store, c.Logger)
	defer runner.Close(context.Background())

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewServer(runner, source, cfg, c.Logger).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		c.Logger.Info("api server listening", "addr", cfg.Server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		c.Logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

func serverCache(ctx context.Context, cfg *config.Config) (cache.Cache, error) {
	switch cfg.Cache.Backend {
	case "redis":
		return cache.NewRedisCache(ctx, cfg.Cache.Redis)
	case "none":
		return cache.NewNullCache(), nil
	case "file", "":
		return cache.NewFileCache(cfg.Cache.Dir)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

func serverArchive(ctx context.Context, cfg *config.Config, c *CLI) (archive.Store, error) {
	switch cfg.Archive.Backend {
	case "mongo":
		return archive.NewMongoStore(ctx, cfg.Archive.Mongo)
	case "none":
		return nil, nil
	case "file", "":
		store, err := archive.NewFileStore(cfg.Archive.Dir)
		if err != nil {
			c.Logger.Warn("archive disabled", "err", err)
			return nil, nil
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Archive.Backend)
	}
}
