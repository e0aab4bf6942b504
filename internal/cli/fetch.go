package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/quotadash/quotadash/internal/config"
	"github.com/quotadash/quotadash/internal/fetch"
	"github.com/quotadash/quotadash/internal/logging"
	"github.com/quotadash/quotadash/internal/models"
	"github.com/quotadash/quotadash/internal/provider"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [provider]",
	Short: "Fetch usage once and print it",
	Long:  "Fetch usage for all enabled providers (or one provider) and print it, without the live dashboard.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var providerID string
		if len(args) > 0 {
			providerID = args[0]
			if _, ok := provider.Get(providerID); !ok {
				return fmt.Errorf("unknown provider: %s. Available: %s", providerID, strings.Join(provider.ListIDs(), ", "))
			}
		}
		return runFetch(cmd.Context(), providerID)
	},
}

func runFetch(ctx context.Context, providerID string) error {
	logger := logging.FromContext(ctx)
	cfg := config.Get()

	fetchers := provider.Fetchers(cfg)
	if providerID != "" {
		var picked []fetch.Fetcher
		for _, f := range fetchers {
			if f.ID() == providerID {
				picked = append(picked, f)
			}
		}
		if len(picked) == 0 {
			return fmt.Errorf("provider %s is disabled in config", providerID)
		}
		fetchers = picked
	}

	start := time.Now()
	results := fetch.FetchAll(ctx, fetchers, cfg.Fetch.MaxConcurrent, nil)
	logger.Debug("fetch complete", "providers", len(results), "duration_ms", time.Since(start).Milliseconds())

	if jsonOutput {
		enc := json.NewEncoder(outWriter)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	renderPlain(results)
	return nil
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	errTextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// renderPlain prints one block per provider, sorted by id, suitable for pipes
// and scripts.
func renderPlain(results map[string]models.SubscriptionInfo) {
	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	width := terminalWidth()
	if width > 80 {
		width = 80
	}
	rule := strings.Repeat("─", width)

	for i, id := range ids {
		info := results[id]
		if i > 0 {
			outln(rule)
		}

		header := info.Name
		if noColor {
			outln(header)
		} else {
			outln(headerStyle.Render(header))
		}

		if quiet {
			outln(firstLine(info.UsageText))
			continue
		}

		for _, line := range strings.Split(info.UsageText, "\n") {
			outln("  " + line)
		}
		if info.ResetTime != "" {
			outln("  resets " + info.ResetTime)
		}
		if info.LimitNote != "" {
			outln("  " + info.LimitNote)
		}
		if info.Error != "" {
			if noColor {
				outln("  ! " + info.Error)
			} else {
				outln("  " + errTextStyle.Render("! "+info.Error))
			}
		}
	}
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
