// Package anthropic polls Claude subscription usage. Credentials come from
// the Claude CLI: its keychain entry on macOS (read through the expiring
// cache) or its credentials file, which quotadash mirrors into its own
// storage. Expired tokens are refreshed with the OAuth refresh grant; when
// that fails, the CLI itself is nudged in headless print mode, which
// refreshes tokens on disk as a side effect.
package anthropic

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/quotadash/quotadash/internal/autologin"
	"github.com/quotadash/quotadash/internal/cliprobe"
	"github.com/quotadash/quotadash/internal/config"
	"github.com/quotadash/quotadash/internal/credfile"
	"github.com/quotadash/quotadash/internal/fetch"
	"github.com/quotadash/quotadash/internal/httpclient"
	"github.com/quotadash/quotadash/internal/keychain"
	"github.com/quotadash/quotadash/internal/models"
	"github.com/quotadash/quotadash/internal/oauth"
	"github.com/quotadash/quotadash/internal/provider"
)

const (
	defaultUsageURL = "https://api.anthropic.com/api/oauth/usage"
	defaultTokenURL = "https://api.anthropic.com/oauth/token"
	betaHeader      = "oauth-2025-04-20"
	keychainService = "Claude Code-credentials"
)

var planNames = map[string]string{
	"claude_free":       "Free",
	"claude_pro":        "Pro",
	"claude_max_5x":     "Max 5x",
	"claude_max_20x":    "Max 20x",
	"claude_team":       "Team",
	"claude_enterprise": "Enterprise",
}

var probePattern = regexp.MustCompile(`(?:Logged in as|Account:)\s+(\S+@\S+)`)

type Anthropic struct {
	usageURL string
	tokenURL string
	timeout  time.Duration
	store    credfile.Store
	keys     *keychain.Cache
	keyTTL   time.Duration
	launcher *autologin.Launcher
	probe    func(ctx context.Context) (string, bool)
}

func New() *Anthropic {
	home, _ := os.UserHomeDir()
	cfg := config.Get()
	a := &Anthropic{
		usageURL: defaultUsageURL,
		tokenURL: defaultTokenURL,
		timeout:  time.Duration(cfg.Fetch.TimeoutSeconds * float64(time.Second)),
		store: credfile.Store{
			LegacyPath: filepath.Join(home, ".claude", ".credentials.json"),
			Path:       config.CredentialPath("anthropic"),
		},
		keys:   keychain.New(),
		keyTTL: time.Duration(cfg.Keychain.CacheTTLMinutes) * time.Minute,
		launcher: autologin.NewLauncher(autologin.Command{
			Binary: "claude",
			// Print mode with the cheapest model; the CLI refreshes its
			// stored tokens on startup as a side effect.
			Args:     []string{"-p", "ok", "--model", "haiku", "--output-format", "json"},
			Headless: true,
		}),
	}
	a.probe = func(ctx context.Context) (string, bool) {
		return cliprobe.Probe(ctx, cliprobe.Spec{
			Binary:  "claude",
			Args:    []string{"auth", "status"},
			Timeout: 10 * time.Second,
			Pattern: probePattern,
		})
	}
	return a
}

func (a *Anthropic) Meta() provider.Metadata {
	return provider.Metadata{
		ID:           "anthropic",
		Name:         "Anthropic",
		Description:  "Claude subscription usage",
		DashboardURL: "https://claude.ai/settings/usage",
		CLIName:      "claude",
	}
}

func (a *Anthropic) AutoLogin(ctx context.Context) bool {
	return a.launcher.Launch(ctx)
}

func (a *Anthropic) Fetch(ctx context.Context) models.SubscriptionInfo {
	info := models.SubscriptionInfo{
		Name:         a.Meta().Name,
		DashboardURL: a.Meta().DashboardURL,
	}

	// The probe only annotates the status line; run it alongside the
	// credential/usage work so it never adds latency serially.
	identityCh := make(chan string, 1)
	go func() {
		id, ok := a.probe(ctx)
		if !ok {
			id = ""
		}
		identityCh <- id
	}()

	creds := a.loadCredentials(ctx, a.keyTTL)
	if creds == nil {
		if a.AutoLogin(ctx) {
			// Re-read once against fresh storage; the pre-login cached
			// absence must not be reused.
			creds = a.loadCredentials(ctx, 0)
		}
		if creds == nil {
			info.UsageText = a.statusLine(<-identityCh, "")
			info.Error = "not logged in — run `claude login` or wait for re-auth to finish"
			if a.launcher.InProgress() {
				info.UsageText = "re-auth in progress"
			}
			return info
		}
	}

	if creds.NeedsRefresh() {
		if refreshed := a.refresh(ctx, creds); refreshed != nil {
			creds = refreshed
		}
		// A failed refresh falls through: the usage call decides whether
		// the token is actually dead.
	}

	usage, failure := a.fetchUsage(ctx, creds)
	if failure.IsAuth() {
		refreshed := a.refresh(ctx, creds)
		if refreshed == nil {
			if a.AutoLogin(ctx) {
				refreshed = a.loadCredentials(ctx, 0)
			}
		}
		if refreshed == nil || refreshed.AccessToken == creds.AccessToken {
			info.UsageText = "re-auth in progress"
			info.Error = failure.Message
			return info
		}
		// Exactly one retry with the new token; a second rejection is
		// surfaced, not retried.
		usage, failure = a.fetchUsage(ctx, refreshed)
	}

	identity := <-identityCh

	if !failure.IsZero() {
		info.UsageText = a.statusLine(identity, "")
		info.Error = failure.Message
		return info
	}

	buildUsageInfo(&info, *usage, a.statusLine(identity, models.PlanName(planNames, usage.planCode())))
	return info
}

// statusLine renders the first display line from the probe identity and plan.
func (a *Anthropic) statusLine(identity, plan string) string {
	switch {
	case identity != "" && plan != "":
		return fmt.Sprintf("✓ %s · %s", identity, plan)
	case identity != "":
		return "✓ " + identity
	case plan != "":
		return "✓ " + plan
	default:
		return ""
	}
}

func (a *Anthropic) loadCredentials(ctx context.Context, ttl time.Duration) *oauth.Credentials {
	if a.keys != nil {
		if secret, ok := a.keys.ReadSecret(ctx, keychainService, ttl); ok {
			if creds := parseCLICredentials([]byte(secret)); creds != nil {
				return creds
			}
		}
	}
	if data, ok := a.store.Read(); ok {
		if creds := parseCLICredentials(data); creds != nil {
			return creds
		}
	}
	return nil
}

func (a *Anthropic) refresh(ctx context.Context, creds *oauth.Credentials) *oauth.Credentials {
	if creds.RefreshToken == "" {
		return nil
	}
	return oauth.Refresh(ctx, creds.RefreshToken, oauth.RefreshConfig{
		TokenURL: a.tokenURL,
		Headers:  []httpclient.RequestOption{httpclient.WithHeader("anthropic-beta", betaHeader)},
		Store:    &a.store,
		Timeout:  a.timeout,
	})
}

func (a *Anthropic) fetchUsage(ctx context.Context, creds *oauth.Credentials) (*usageResponse, fetch.Failure) {
	client := httpclient.NewWithTimeout(a.timeout)
	var usage usageResponse
	resp, err := client.GetJSONCtx(ctx, a.usageURL, &usage,
		httpclient.WithBearer(creds.AccessToken),
		httpclient.WithHeader("anthropic-beta", betaHeader),
		httpclient.WithHeader("User-Agent", "quotadash"),
	)
	if err != nil {
		return nil, fetch.Fail(fetch.KindTransient, "usage request failed: %v", err)
	}
	if failure := provider.Classify(resp, "Anthropic usage endpoint"); !failure.IsZero() {
		return nil, failure
	}
	return &usage, fetch.OK
}

func init() {
	provider.Register(New())
}
