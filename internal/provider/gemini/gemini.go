// Package gemini polls Gemini Code Assist quota. Credentials come from the
// Gemini CLI's oauth_creds.json. The quota and subscription-tier endpoints are
// queried concurrently; the tier call is best-effort and never fails a fetch.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/quotadash/quotadash/internal/autologin"
	"github.com/quotadash/quotadash/internal/cliprobe"
	"github.com/quotadash/quotadash/internal/config"
	"github.com/quotadash/quotadash/internal/credfile"
	"github.com/quotadash/quotadash/internal/fetch"
	"github.com/quotadash/quotadash/internal/httpclient"
	"github.com/quotadash/quotadash/internal/models"
	"github.com/quotadash/quotadash/internal/oauth"
	"github.com/quotadash/quotadash/internal/provider"
)

const (
	defaultQuotaURL = "https://cloudcode-pa.googleapis.com/v1internal:retrieveUserQuota"
	defaultTierURL  = "https://cloudcode-pa.googleapis.com/v1internal:loadCodeAssist"
	defaultTokenURL = "https://oauth2.googleapis.com/token"
)

var probePattern = regexp.MustCompile(`(?:Logged in as|Signed in as)\s+(\S+@\S+)`)

type Gemini struct {
	quotaURL string
	tierURL  string
	tokenURL string
	timeout  time.Duration
	store    credfile.Store
	launcher *autologin.Launcher
	probe    func(ctx context.Context) (string, bool)
}

func New() *Gemini {
	home, _ := os.UserHomeDir()
	cfg := config.Get()
	g := &Gemini{
		quotaURL: defaultQuotaURL,
		tierURL:  defaultTierURL,
		tokenURL: defaultTokenURL,
		timeout:  time.Duration(cfg.Fetch.TimeoutSeconds * float64(time.Second)),
		store: credfile.Store{
			LegacyPath: filepath.Join(home, ".gemini", "oauth_creds.json"),
			Path:       config.CredentialPath("gemini"),
		},
		// The Gemini CLI runs its browser OAuth flow on startup when no
		// valid credentials exist; give it a terminal to do that in.
		launcher: autologin.NewLauncher(autologin.Command{Binary: "gemini", Headless: false}),
	}
	g.probe = func(ctx context.Context) (string, bool) {
		return cliprobe.Probe(ctx, cliprobe.Spec{
			Binary:  "gemini",
			Args:    []string{"auth", "status"},
			Timeout: 10 * time.Second,
			Pattern: probePattern,
		})
	}
	return g
}

func (g *Gemini) Meta() provider.Metadata {
	return provider.Metadata{
		ID:           "gemini",
		Name:         "Gemini",
		Description:  "Gemini Code Assist quota",
		DashboardURL: "https://aistudio.google.com/app/usage",
		CLIName:      "gemini",
	}
}

func (g *Gemini) AutoLogin(ctx context.Context) bool {
	return g.launcher.Launch(ctx)
}

func (g *Gemini) Fetch(ctx context.Context) models.SubscriptionInfo {
	info := models.SubscriptionInfo{
		Name:         g.Meta().Name,
		DashboardURL: g.Meta().DashboardURL,
	}

	identityCh := make(chan string, 1)
	go func() {
		id, _ := g.probe(ctx)
		identityCh <- id
	}()

	creds := g.loadCredentials()
	if creds == nil {
		if g.AutoLogin(ctx) {
			creds = g.loadCredentials()
		}
		if creds == nil {
			info.UsageText = statusLine(<-identityCh, "")
			info.Error = "not logged in — run `gemini` to authenticate"
			if g.launcher.InProgress() {
				info.UsageText = "re-auth in progress"
			}
			return info
		}
	}

	if creds.NeedsRefresh() {
		if refreshed := g.refresh(ctx, creds); refreshed != nil {
			creds = refreshed
		}
	}

	quota, tier, failure := g.fetchQuota(ctx, creds)
	if failure.IsAuth() {
		refreshed := g.refresh(ctx, creds)
		if refreshed == nil {
			if g.AutoLogin(ctx) {
				refreshed = g.loadCredentials()
			}
		}
		if refreshed == nil || refreshed.AccessToken == creds.AccessToken {
			info.UsageText = "re-auth in progress"
			info.Error = failure.Message
			return info
		}
		quota, tier, failure = g.fetchQuota(ctx, refreshed)
	}

	identity := <-identityCh

	if !failure.IsZero() {
		info.UsageText = statusLine(identity, "")
		info.Error = failure.Message
		return info
	}

	buildUsageInfo(&info, *quota, statusLine(identity, tier.planName()))
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

func (g *Gemini) loadCredentials() *oauth.Credentials {
	data, ok := g.store.Read()
	if !ok {
		return nil
	}
	return parseCLICredentials(data)
}

func (g *Gemini) refresh(ctx context.Context, creds *oauth.Credentials) *oauth.Credentials {
	clientID, clientSecret := config.GeminiOAuthClient()
	if clientID == "" || creds.RefreshToken == "" {
		return nil
	}
	return oauth.Refresh(ctx, creds.RefreshToken, oauth.RefreshConfig{
		TokenURL: g.tokenURL,
		FormFields: map[string]string{
			"client_id":     clientID,
			"client_secret": clientSecret,
		},
		Store:   &g.store,
		Timeout: g.timeout,
	})
}

// fetchQuota queries the quota and tier endpoints concurrently. A tier
// failure degrades to an unnamed plan; only the quota call can fail the
// fetch.
func (g *Gemini) fetchQuota(ctx context.Context, creds *oauth.Credentials) (*quotaResponse, *tierResponse, fetch.Failure) {
	client := httpclient.NewWithTimeout(g.timeout)
	bearer := httpclient.WithBearer(creds.AccessToken)

	tierCh := make(chan *tierResponse, 1)
	go func() {
		var tr tierResponse
		resp, err := client.PostJSONCtx(ctx, g.tierURL, json.RawMessage("{}"), &tr, bearer)
		if err != nil || resp.StatusCode != 200 || resp.JSONErr != nil {
			tierCh <- nil
			return
		}
		tierCh <- &tr
	}()

	var quota quotaResponse
	resp, err := client.PostJSONCtx(ctx, g.quotaURL, json.RawMessage("{}"), &quota, bearer)
	tier := <-tierCh
	if err != nil {
		return nil, tier, fetch.Fail(fetch.KindTransient, "quota request failed: %v", err)
	}
	if failure := provider.Classify(resp, "Gemini quota endpoint"); !failure.IsZero() {
		return nil, tier, failure
	}
	return &quota, tier, fetch.OK
}

// titleCase capitalizes each space-separated word, for model display names.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func nextMidnightUTC(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
}

func init() {
	provider.Register(New())
}
