package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/gitscape/pkg/pipeline"
	"github.com/matzehuels/gitscape/pkg/render/nodelink"
)

// exportCommand creates the export command for flat graph output.
func (c *CLI) exportCommand() *cobra.Command {
	var (
		limit    int
		format   string
		output   string
		detailed bool
		noCache  bool
	)

	cmd := &cobra.Command{
		Use:   "export owner/repo",
		Short: "Export the commit graph as DOT or SVG",
		Long: `Export fetches a repository's commit history and writes the commit graph
as a Graphviz DOT file or rendered SVG. Enrichment is skipped; export only
needs the graph topology and commit metadata.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, repo, err := splitRepo(args[0])
			if err != nil {
				return err
			}
			format = strings.ToLower(format)
			if format != "dot" && format != "svg" {
				return fmt.Errorf("invalid format %q (must be dot or svg)", format)
			}
			return c.runExport(cmd.Context(), pipeline.Options{
				Owner:        owner,
				Repo:         repo,
				Limit:        limit,
				SkipAnalysis: true,
			}, format, output, detailed, noCache)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "number of commits to fetch")
	cmd.Flags().StringVarP(&format, "format", "f", "dot", "output format: dot (default), svg")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <repo>.<format>, - for stdout)")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include author and message in node labels")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}

func (c *CLI) runExport(ctx context.Context, opts pipeline.Options, format, output string, detailed, noCache bool) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	runner, err := c.newRunner(cfg, noCache, true)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close(ctx)

	opts.Logger = c.Logger
	opts.Refresh = true // export needs the graph, not the cached payload

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Fetching %s...", opts.Repository()))
	spinner.Start()

	result, err := runner.Execute(ctx, opts)
	if err != nil {
		spinner.StopWithError("Export failed")
		return fmt.Errorf("export %s: %w", opts.Repository(), err)
	}
	spinner.Stop()

	dot := nodelink.ToDOT(result.Graph, nodelink.Options{Detailed: detailed})

	var data []byte
	switch format {
	case "dot":
		data = []byte(dot)
	case "svg":
		data, err = nodelink.RenderSVG(dot)
		if err != nil {
			return fmt.Errorf("render SVG: %w", err)
		}
	}

	printSuccess("Exported %s", opts.Repository())
	printStats(result.Stats.NodeCount, result.Stats.EdgeCount, false)

	if output == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if output == "" {
		output = opts.Repo + "." + format
	}
	if err := os.WriteFile(output, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	printFile(output)
	return nil
}
