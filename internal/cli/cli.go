// Package cli implements the gitscape command-line interface.
//
// This package provides commands for analyzing a GitHub repository's commit
// history, exporting the graph as DOT or SVG, serving the HTTP API, and
// managing the local response cache. The CLI is built using cobra with
// structured logging via the charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - analyze: Fetch a repository's history and produce the 3-D payload
//   - export: Render the commit graph as DOT or SVG
//   - serve: Run the HTTP API server
//   - cache: Manage the local response cache
//
// All commands support --verbose (-v) for debug-level logging.
package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/gitscape/internal/config"
	"github.com/matzehuels/gitscape/pkg/archive"
	"github.com/matzehuels/gitscape/pkg/cache"
	"github.com/matzehuels/gitscape/pkg/github"
	"github.com/matzehuels/gitscape/pkg/pipeline"
	"github.com/matzehuels/gitscape/pkg/summarize"
)

// appName is the application name used for directories and display.
const appName = "gitscape"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// SetVersion sets the version information displayed by --version. Called by
// the main package with values injected via ldflags at build time.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// ConfigPath overrides the default config file location.
	ConfigPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           level,
		}),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:          appName,
		Short:        "Gitscape turns commit history into a 3-D graph",
		Long:         `Gitscape fetches a repository's commit history from GitHub, builds the commit graph, enriches each commit with changed files and an AI summary, and computes a renderable 3-D layout with history metrics.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				c.SetLogLevel(log.DebugLevel)
			}
		},
	}

	root.SetVersionTemplate(fmt.Sprintf("%s %s\ncommit: %s\nbuilt: %s\n", appName, version, commit, date))
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&c.ConfigPath, "config", "", "config file (default: user config dir)")

	root.AddCommand(c.analyzeCommand())
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())

	return root
}

// loadConfig resolves configuration for the current invocation.
func (c *CLI) loadConfig() (*config.Config, error) {
	return config.Load(c.ConfigPath)
}

// newRunner creates a pipeline runner for CLI use. The CLI always uses the
// file cache and file archive; redis and mongo backends are server concerns.
func (c *CLI) newRunner(cfg *config.Config, noCache, noAnalysis bool) (*pipeline.Runner, error) {
	responseCache, err := newCache(noCache)
	if err != nil {
		return nil, err
	}

	var summarizer summarize.Summarizer
	if !noAnalysis && cfg.OpenAI.APIKey != "" {
		summarizer = summarize.NewClient(cfg.OpenAI.APIKey,
			summarize.WithModel(cfg.OpenAI.Model),
			summarize.WithBaseURL(cfg.OpenAI.BaseURL))
	}

	store, err := archive.NewFileStore(cfg.Archive.Dir)
	if err != nil {
		c.Logger.Warn("archive disabled", "err", err)
		store = nil
	}

	source := github.NewClient(cfg.GitHub.Token, responseCache)
	return pipeline.NewRunner(source, summarizer, responseCache, storeOrNil(store), c.Logger), nil
}

// storeOrNil avoids handing the runner a typed-nil interface value.
func storeOrNil(s *archive.FileStore) archive.Store {
	if s == nil {
		return nil
	}
	return s
}

func newCache(noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// cacheDir returns the cache directory using XDG standard (~/.cache/gitscape/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// splitRepo parses an "owner/repo" argument.
func splitRepo(arg string) (owner, repo string, err error) {
	for i := 0; i < len(arg); i++ {
		if arg[i] == '/' {
			owner, repo = arg[:i], arg[i+1:]
			break
		}
	}
	if owner == "" || repo == "" {
		return "", "", fmt.Errorf("invalid repository %q, expected owner/repo", arg)
	}
	return owner, repo, nil
}
