// Package cli wires the cobra command tree: the default live dashboard, the
// one-shot fetch command, manual authentication, and cache maintenance.
package cli

import (
	"context"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/quotadash/quotadash/internal/config"
	"github.com/quotadash/quotadash/internal/dashboard"
	"github.com/quotadash/quotadash/internal/logging"
	"github.com/quotadash/quotadash/internal/provider"
	// Register all providers
	_ "github.com/quotadash/quotadash/internal/provider/anthropic"
	_ "github.com/quotadash/quotadash/internal/provider/cursor"
	_ "github.com/quotadash/quotadash/internal/provider/gemini"
	_ "github.com/quotadash/quotadash/internal/provider/openai"
)

// version is injected at build time via -ldflags.
var version = "dev"

var (
	jsonOutput bool
	noColor    bool
	verbose    bool
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:          "quotadash",
	Short:        "Live dashboard for AI subscription usage",
	Long:         "Aggregates subscription quota from Anthropic, OpenAI, Gemini, and Cursor into one terminal dashboard.",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose && quiet {
			verbose = false
		}
		l := newConfiguredLogger()
		cmd.SetContext(logging.WithLogger(cmd.Context(), l))

		// Load config from disk so malformed files surface a warning.
		if _, err := config.Init(); err != nil {
			l.Warn("config file is malformed, using defaults", "err", err)
		}
	},
	RunE: runRoot,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Minimal output")
	rootCmd.Flags().Bool("version", false, "Show version and exit")

	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(cacheCmd)
}

// ExecuteContext runs the root command with the given context. Commands
// access it via cmd.Context().
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func runRoot(cmd *cobra.Command, args []string) error {
	if v, _ := cmd.Flags().GetBool("version"); v {
		out("quotadash %s\n", version)
		return nil
	}

	// Pipes and scripts get the one-shot render; the live dashboard needs a
	// real terminal.
	if jsonOutput || quiet || !isTerminal() {
		return runFetch(cmd.Context(), "")
	}

	cfg := config.Get()
	return dashboard.Run(cmd.Context(),
		provider.Fetchers(cfg),
		cfg.Fetch.MaxConcurrent,
		time.Duration(cfg.Fetch.PollIntervalSeconds)*time.Second,
	)
}

func isTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}
