// Package cursor polls Cursor subscription usage through the web session
// endpoints. There is no companion CLI and no refresh grant: the session
// cookie comes from the browser via `quotadash auth cursor`, and when it
// expires the only remedy is pasting a fresh one.
package cursor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/quotadash/quotadash/internal/config"
	"github.com/quotadash/quotadash/internal/credfile"
	"github.com/quotadash/quotadash/internal/fetch"
	"github.com/quotadash/quotadash/internal/httpclient"
	"github.com/quotadash/quotadash/internal/models"
	"github.com/quotadash/quotadash/internal/provider"
)

const (
	defaultUsageURL = "https://cursor.com/api/usage-summary"
	defaultMeURL    = "https://cursor.com/api/auth/me"
	sessionCookie   = "__Secure-next-auth.session-token"
)

var planNames = map[string]string{
	"free":       "Free",
	"free_trial": "Free Trial",
	"pro":        "Pro",
	"pro_plus":   "Pro+",
	"ultra":      "Ultra",
	"business":   "Business",
	"enterprise": "Enterprise",
}

type Cursor struct {
	usageURL string
	meURL    string
	timeout  time.Duration
	store    credfile.Store
}

func New() *Cursor {
	cfg := config.Get()
	return &Cursor{
		usageURL: defaultUsageURL,
		meURL:    defaultMeURL,
		timeout:  time.Duration(cfg.Fetch.TimeoutSeconds * float64(time.Second)),
		store:    credfile.Store{Path: config.CredentialPath("cursor")},
	}
}

func (c *Cursor) Meta() provider.Metadata {
	return provider.Metadata{
		ID:           "cursor",
		Name:         "Cursor",
		Description:  "Cursor subscription usage",
		DashboardURL: "https://cursor.com/settings/usage",
	}
}

// AutoLogin always reports false: a browser session cookie can't be minted
// programmatically, so expiry needs the user to run `quotadash auth cursor`.
func (c *Cursor) AutoLogin(ctx context.Context) bool { return false }

func (c *Cursor) Fetch(ctx context.Context) models.SubscriptionInfo {
	info := models.SubscriptionInfo{
		Name:         c.Meta().Name,
		DashboardURL: c.Meta().DashboardURL,
	}

	token := c.loadSessionToken()
	if token == "" {
		info.Error = "no session token — run `quotadash auth cursor`"
		return info
	}

	usage, me, failure := c.fetchUsage(ctx, token)
	if failure.IsAuth() {
		info.Error = "session expired — run `quotadash auth cursor` with a fresh browser cookie"
		return info
	}
	if !failure.IsZero() {
		info.Error = failure.Message
		return info
	}

	buildUsageInfo(&info, *usage, me)
	return info
}

// loadSessionToken reads the stored session credential. A bare token pasted
// without JSON wrapping is accepted as-is.
func (c *Cursor) loadSessionToken() string {
	data, ok := c.store.Read()
	if !ok {
		return ""
	}
	var creds sessionCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return strings.TrimSpace(string(data))
	}
	if tok := creds.effectiveToken(); tok != "" {
		return tok
	}
	return strings.TrimSpace(string(data))
}

// fetchUsage queries usage-summary and auth/me concurrently. The identity
// call is best-effort; only the usage call can fail the fetch.
func (c *Cursor) fetchUsage(ctx context.Context, token string) (*usageSummary, *userMe, fetch.Failure) {
	client := httpclient.NewWithTimeout(c.timeout)
	cookie := httpclient.WithCookie(sessionCookie, token)
	userAgent := httpclient.WithHeader("User-Agent", "Mozilla/5.0")

	meCh := make(chan *userMe, 1)
	go func() {
		var me userMe
		resp, err := client.GetJSONCtx(ctx, c.meURL, &me, cookie, userAgent)
		if err != nil || resp.StatusCode != 200 || resp.JSONErr != nil {
			meCh <- nil
			return
		}
		meCh <- &me
	}()

	var usage usageSummary
	resp, err := client.PostJSONCtx(ctx, c.usageURL, nil, &usage, cookie, userAgent)
	me := <-meCh
	if err != nil {
		return nil, me, fetch.Fail(fetch.KindTransient, "usage request failed: %v", err)
	}
	if resp.StatusCode == 404 {
		return nil, me, fetch.Fail(fetch.KindTransient, "no active subscription found")
	}
	if failure := provider.Classify(resp, "Cursor usage endpoint"); !failure.IsZero() {
		return nil, me, failure
	}
	return &usage, me, fetch.OK
}

func buildUsageInfo(info *models.SubscriptionInfo, usage usageSummary, me *userMe) {
	var lines []string

	plan := models.PlanName(planNames, usage.membership(me))
	email := ""
	if me != nil {
		email = me.Email
	}
	switch {
	case email != "" && plan != "":
		lines = append(lines, fmt.Sprintf("✓ %s · %s", email, plan))
	case email != "":
		lines = append(lines, "✓ "+email)
	case plan != "":
		lines = append(lines, "✓ "+plan)
	}

	reset := models.FormatResetTime(usage.BillingCycleEnd)
	if pct, ok := usage.planPercentUsed(); ok {
		line := fmt.Sprintf("plan: %d%%", pct)
		if reset != "" {
			line += " · resets " + reset
		}
		lines = append(lines, line)
	}

	info.UsageText = strings.Join(lines, "\n")
	info.ResetTime = reset

	if od := usage.onDemand(); od != nil {
		if od.Limit != nil && *od.Limit > 0 {
			info.LimitNote = fmt.Sprintf("on-demand $%.2f of $%.2f", od.Used/100, *od.Limit/100)
		} else {
			info.LimitNote = fmt.Sprintf("on-demand $%.2f (no cap)", od.Used/100)
		}
	}
}

func init() {
	provider.Register(New())
}
