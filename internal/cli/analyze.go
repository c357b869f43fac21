package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/gitscape/pkg/pipeline"
)

// analyzeCommand creates the analyze command.
func (c *CLI) analyzeCommand() *cobra.Command {
	var (
		limit      int
		output     string
		noCache    bool
		noAnalysis bool
		refresh    bool
	)

	cmd := &cobra.Command{
		Use:   "analyze owner/repo",
		Short: "Analyze a repository's commit history",
		Long: `Analyze fetches the most recent commits of a GitHub repository, builds
the commit graph, enriches each commit with its changed files and an AI
summary, and computes the 3-D visualization payload with history metrics.

The payload is written as JSON to the output file, or to stdout with -o -.
Set GITHUB_TOKEN for private repositories and higher rate limits, and
OPENAI_API_KEY to enable commit summaries.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, repo, err := splitRepo(args[0])
			if err != nil {
				return err
			}
			return c.runAnalyze(cmd.Context(), pipeline.Options{
				Owner:        owner,
				Repo:         repo,
				Limit:        limit,
				SkipAnalysis: noAnalysis,
				Refresh:      refresh,
			}, output, noCache)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0,
		fmt.Sprintf("number of commits to fetch (default %d, max %d)", pipeline.DefaultLimit, pipeline.MaxLimit))
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file for the JSON payload (default: <repo>.json, - for stdout)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&noAnalysis, "no-analysis", false, "skip AI commit summaries")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "recompute even if a cached analysis exists")

	return cmd
}

func (c *CLI) runAnalyze(ctx context.Context, opts pipeline.Options, output string, noCache bool) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if cfg.OpenAI.APIKey == "" && !opts.SkipAnalysis {
		printDetail("OPENAI_API_KEY not set, skipping commit summaries")
	}

	runner, err := c.newRunner(cfg, noCache, opts.SkipAnalysis)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close(ctx)

	opts.Logger = c.Logger

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Analyzing %s...", opts.Repository()))
	spinner.Start()

	result, err := runner.Execute(ctx, opts)
	if err != nil {
		spinner.StopWithError("Analysis failed")
		return fmt.Errorf("analyze %s: %w", opts.Repository(), err)
	}
	spinner.Stop()

	printSuccess("Analyzed %s", opts.Repository())
	printStats(len(result.Layout.Nodes), len(result.Layout.Edges), result.CacheHit)

	m := result.Layout.Metrics
	printKeyValue("max depth", fmt.Sprintf("%d", m.MaxDepth))
	printKeyValue("merge commits", fmt.Sprintf("%d", m.MergeCommits))
	printKeyValue("leaf commits", fmt.Sprintf("%d", m.LeafCommits))
	printKeyValue("branching", fmt.Sprintf("%.2f", m.BranchingFactor))
	printKeyValue("avg branch", fmt.Sprintf("%.2f", m.AverageBranchLength))
	printKeyValue("authors", fmt.Sprintf("%d", len(m.CommitFrequency)))

	return writePayload(result.Layout, opts.Repo, output)
}

func writePayload(payload any, repo, output string) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	if output == "-" {
		_, err := os.Stdout.Write(append(data, '\n'))
		return err
	}
	if output == "" {
		output = repo + ".json"
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	printFile(output)
	return nil
}
