package anthropic

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/quotadash/quotadash/internal/models"
	"github.com/quotadash/quotadash/internal/oauth"
)

// usageWindow is one sliding quota window from the OAuth usage endpoint.
type usageWindow struct {
	Utilization float64 `json:"utilization"`
	ResetsAt    string  `json:"resets_at,omitempty"`
}

// extraUsage reports pay-as-you-go overage on top of the subscription.
// MonthlyLimit is a pointer so null (no hard cap) stays distinct from zero.
type extraUsage struct {
	IsEnabled    bool     `json:"is_enabled"`
	UsedCredits  float64  `json:"used_credits"`
	MonthlyLimit *float64 `json:"monthly_limit"`
}

type usageResponse struct {
	FiveHour     *usageWindow `json:"five_hour,omitempty"`
	SevenDay     *usageWindow `json:"seven_day,omitempty"`
	SevenDayOpus *usageWindow `json:"seven_day_opus,omitempty"`
	Monthly      *usageWindow `json:"monthly,omitempty"`
	ExtraUsage   *extraUsage  `json:"extra_usage,omitempty"`
	Plan         string       `json:"plan,omitempty"`
}

func (r usageResponse) planCode() string { return r.Plan }

// buildUsageInfo normalizes the OAuth usage payload into the display record.
// The status line, when non-empty, leads; quota windows follow one per line.
func buildUsageInfo(info *models.SubscriptionInfo, usage usageResponse, status string) {
	var lines []string
	if status != "" {
		lines = append(lines, status)
	}

	appendWindow := func(label string, w *usageWindow) {
		if w == nil {
			return
		}
		line := fmt.Sprintf("%s: %d%%", label, models.RoundPercent(w.Utilization))
		if reset := models.FormatResetTime(w.ResetsAt); reset != "" {
			line += " · resets " + reset
		}
		lines = append(lines, line)
	}
	appendWindow("5h", usage.FiveHour)
	appendWindow("7d", usage.SevenDay)
	appendWindow("7d opus", usage.SevenDayOpus)
	appendWindow("month", usage.Monthly)

	info.UsageText = strings.Join(lines, "\n")

	var resets []string
	for _, w := range []*usageWindow{usage.FiveHour, usage.SevenDay, usage.SevenDayOpus, usage.Monthly} {
		if w != nil {
			resets = append(resets, w.ResetsAt)
		}
	}
	info.ResetTime = models.FormatResetTime(models.EarliestReset(resets...))

	if e := usage.ExtraUsage; e != nil && e.IsEnabled {
		if e.MonthlyLimit != nil {
			info.LimitNote = fmt.Sprintf("extra usage $%.2f of $%.2f/mo", e.UsedCredits/100, *e.MonthlyLimit/100)
		} else {
			info.LimitNote = fmt.Sprintf("extra usage $%.2f (no cap)", e.UsedCredits/100)
		}
	}
}

// cliOAuth is the nested token block the Claude CLI writes, with its
// camelCase keys and millisecond expiry.
type cliOAuth struct {
	AccessToken  string  `json:"accessToken"`
	RefreshToken string  `json:"refreshToken,omitempty"`
	ExpiresAt    float64 `json:"expiresAt,omitempty"`
}

type cliCredentials struct {
	ClaudeAiOauth *cliOAuth `json:"claudeAiOauth,omitempty"`
}

// parseCLICredentials accepts either the Claude CLI's credential JSON or the
// canonical flat format quotadash persists after a refresh. The flat form is
// tried first: a refresh merges flat keys into a file that still carries the
// CLI's stale nested block, and the fresher token must win. Returns nil when
// no usable access token is found.
func parseCLICredentials(data []byte) *oauth.Credentials {
	var flat oauth.Credentials
	if err := json.Unmarshal(data, &flat); err == nil && flat.AccessToken != "" {
		return &flat
	}

	var wrapped cliCredentials
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.ClaudeAiOauth != nil && wrapped.ClaudeAiOauth.AccessToken != "" {
		o := wrapped.ClaudeAiOauth
		creds := &oauth.Credentials{
			AccessToken:  o.AccessToken,
			RefreshToken: o.RefreshToken,
		}
		if o.ExpiresAt > 0 {
			creds.ExpiresAt = time.UnixMilli(int64(o.ExpiresAt)).UTC().Format(time.RFC3339)
		}
		return creds
	}
	return nil
}
