// Package openai polls ChatGPT/Codex subscription usage. Credentials come
// from the Codex CLI's auth.json (or its keychain entry, keyed by a hash of
// the Codex home directory). The CLI does not store an expiry, so staleness
// is detected by the usage endpoint rejecting the token, which drives one
// refresh-and-retry.
package openai

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
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
	// OAuth client ID the Codex CLI itself uses; required to redeem its
	// refresh tokens.
	clientID        = "app_EMoamEEZ73f0CkXaXp7hrann"
	defaultTokenURL = "https://auth.openai.com/oauth/token"
	defaultUsageURL = "https://chatgpt.com/backend-api/wham/usage"
	keychainService = "Codex Auth"
)

var planNames = map[string]string{
	"free":       "Free",
	"plus":       "Plus",
	"pro":        "Pro",
	"team":       "Team",
	"business":   "Business",
	"enterprise": "Enterprise",
}

var probePattern = regexp.MustCompile(`Logged in (?:as|using)\s+(\S+)`)

type OpenAI struct {
	usageURL string
	tokenURL string
	timeout  time.Duration
	store    credfile.Store
	keys     *keychain.Cache
	keyTTL   time.Duration
	launcher *autologin.Launcher
	probe    func(ctx context.Context) (string, bool)
}

func New() *OpenAI {
	cfg := config.Get()
	home := codexHome()
	o := &OpenAI{
		usageURL: usageURLFromCodexConfig(home),
		tokenURL: defaultTokenURL,
		timeout:  time.Duration(cfg.Fetch.TimeoutSeconds * float64(time.Second)),
		store: credfile.Store{
			LegacyPath: filepath.Join(home, "auth.json"),
			Path:       config.CredentialPath("openai"),
		},
		keys: keychain.NewWithBackend(keychain.DefaultCachePath(), nil,
			func(ctx context.Context, service string) (string, error) {
				return keychain.ReadGenericPassword(ctx, service, keychainAccount(home))
			}),
		keyTTL: time.Duration(cfg.Keychain.CacheTTLMinutes) * time.Minute,
		launcher: autologin.NewLauncher(autologin.Command{
			Binary: "codex",
			Args:   []string{"login"},
			// The login flow opens a browser and prints a URL; it needs a
			// terminal the user can see.
			Headless: false,
		}),
	}
	o.probe = func(ctx context.Context) (string, bool) {
		return cliprobe.Probe(ctx, cliprobe.Spec{
			Binary:  "codex",
			Args:    []string{"login", "status"},
			Timeout: 10 * time.Second,
			Pattern: probePattern,
		})
	}
	return o
}

func (o *OpenAI) Meta() provider.Metadata {
	return provider.Metadata{
		ID:           "openai",
		Name:         "OpenAI",
		Description:  "ChatGPT/Codex subscription usage",
		DashboardURL: "https://chatgpt.com/codex/settings/usage",
		CLIName:      "codex",
	}
}

func (o *OpenAI) AutoLogin(ctx context.Context) bool {
	return o.launcher.Launch(ctx)
}

func (o *OpenAI) Fetch(ctx context.Context) models.SubscriptionInfo {
	info := models.SubscriptionInfo{
		Name:         o.Meta().Name,
		DashboardURL: o.Meta().DashboardURL,
	}

	identityCh := make(chan string, 1)
	go func() {
		id, _ := o.probe(ctx)
		identityCh <- id
	}()

	creds := o.loadCredentials(ctx, o.keyTTL)
	if creds == nil {
		if o.AutoLogin(ctx) {
			creds = o.loadCredentials(ctx, 0)
		}
		if creds == nil {
			info.UsageText = statusLine(<-identityCh, "")
			info.Error = "not logged in — run `codex login`"
			if o.launcher.InProgress() {
				info.UsageText = "re-auth in progress"
			}
			return info
		}
	}

	// auth.json rarely carries an expiry, so this usually no-ops and the
	// 401 path below does the work.
	if creds.NeedsRefresh() {
		if refreshed := o.refresh(ctx, creds); refreshed != nil {
			creds = refreshed
		}
	}

	usage, failure := o.fetchUsage(ctx, creds)
	if failure.IsAuth() {
		refreshed := o.refresh(ctx, creds)
		if refreshed == nil {
			if o.AutoLogin(ctx) {
				refreshed = o.loadCredentials(ctx, 0)
			}
		}
		if refreshed == nil || refreshed.AccessToken == creds.AccessToken {
			info.UsageText = "re-auth in progress"
			info.Error = failure.Message
			return info
		}
		usage, failure = o.fetchUsage(ctx, refreshed)
		creds = refreshed
	}

	identity := <-identityCh

	if !failure.IsZero() {
		info.UsageText = statusLine(identity, "")
		info.Error = failure.Message
		return info
	}

	plan := usage.planCode()
	if plan == "" {
		plan = planFromIDToken(creds.IDToken)
	}
	buildUsageInfo(&info, *usage, statusLine(identity, models.PlanName(planNames, plan)))
	return info
}

func statusLine(identity, plan string) string {
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

// planFromIDToken pulls the ChatGPT plan hint out of the id_token's auth
// claim. The token is decoded locally, never verified or sent anywhere.
func planFromIDToken(idToken string) string {
	if idToken == "" {
		return ""
	}
	claims := oauth.DecodeJWTClaims(idToken)
	return oauth.JWTStringClaim(claims, "https://api.openai.com/auth", "chatgpt_plan_type")
}

func (o *OpenAI) loadCredentials(ctx context.Context, ttl time.Duration) *oauth.Credentials {
	if data, ok := o.store.Read(); ok {
		if creds := parseCLICredentials(data); creds != nil {
			return creds
		}
	}
	if o.keys != nil {
		if secret, ok := o.keys.ReadSecret(ctx, keychainService, ttl); ok {
			if creds := parseCLICredentials([]byte(secret)); creds != nil {
				return creds
			}
		}
	}
	return nil
}

func (o *OpenAI) refresh(ctx context.Context, creds *oauth.Credentials) *oauth.Credentials {
	if creds.RefreshToken == "" {
		return nil
	}
	return oauth.Refresh(ctx, creds.RefreshToken, oauth.RefreshConfig{
		TokenURL:   o.tokenURL,
		FormFields: map[string]string{"client_id": clientID},
		Store:      &o.store,
		Timeout:    o.timeout,
	})
}

func (o *OpenAI) fetchUsage(ctx context.Context, creds *oauth.Credentials) (*usageResponse, fetch.Failure) {
	client := httpclient.NewWithTimeout(o.timeout)
	var usage usageResponse
	resp, err := client.GetJSONCtx(ctx, o.usageURL, &usage,
		httpclient.WithBearer(creds.AccessToken),
	)
	if err != nil {
		return nil, fetch.Fail(fetch.KindTransient, "usage request failed: %v", err)
	}
	if failure := provider.Classify(resp, "ChatGPT usage endpoint"); !failure.IsZero() {
		return nil, failure
	}
	return &usage, fetch.OK
}

// codexHome resolves the Codex CLI's home directory, honoring CODEX_HOME.
func codexHome() string {
	if v := strings.TrimSpace(os.Getenv("CODEX_HOME")); v != "" {
		if strings.HasPrefix(v, "~/") {
			if home, err := os.UserHomeDir(); err == nil {
				return filepath.Clean(filepath.Join(home, v[2:]))
			}
		}
		return filepath.Clean(v)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Clean(".codex")
	}
	return filepath.Join(home, ".codex")
}

// keychainAccount derives the account name the Codex CLI stores its secret
// under: "cli|" plus the first 16 hex chars of the home directory's sha256.
func keychainAccount(home string) string {
	sum := sha256.Sum256([]byte(home))
	return "cli|" + fmt.Sprintf("%x", sum[:])[:16]
}

// usageURLFromCodexConfig honors a usage_url override in the Codex CLI's own
// config.toml.
func usageURLFromCodexConfig(home string) string {
	var cfg struct {
		UsageURL string `toml:"usage_url"`
	}
	if _, err := toml.DecodeFile(filepath.Join(home, "config.toml"), &cfg); err == nil && cfg.UsageURL != "" {
		return cfg.UsageURL
	}
	return defaultUsageURL
}

func init() {
	provider.Register(New())
}
