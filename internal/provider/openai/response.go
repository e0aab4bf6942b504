package openai

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/quotadash/quotadash/internal/models"
	"github.com/quotadash/quotadash/internal/oauth"
)

// rateWindow is one rate-limit window. The endpoint uses alternate key names
// for the reset timestamp ("reset_at" vs "reset_timestamp"), both epoch
// seconds.
type rateWindow struct {
	UsedPercent    float64 `json:"used_percent"`
	ResetAt        float64 `json:"reset_at,omitempty"`
	ResetTimestamp float64 `json:"reset_timestamp,omitempty"`
}

func (w *rateWindow) resetEpoch() float64 {
	if w.ResetAt != 0 {
		return w.ResetAt
	}
	return w.ResetTimestamp
}

// rateLimits carries the session and weekly windows, again under alternate
// key names ("primary_window" vs "primary").
type rateLimits struct {
	PrimaryWindow   *rateWindow `json:"primary_window,omitempty"`
	Primary         *rateWindow `json:"primary,omitempty"`
	SecondaryWindow *rateWindow `json:"secondary_window,omitempty"`
	Secondary       *rateWindow `json:"secondary,omitempty"`
}

func (r *rateLimits) primary() *rateWindow {
	if r.PrimaryWindow != nil {
		return r.PrimaryWindow
	}
	return r.Primary
}

func (r *rateLimits) secondary() *rateWindow {
	if r.SecondaryWindow != nil {
		return r.SecondaryWindow
	}
	return r.Secondary
}

// credits is the pay-as-you-go balance block. Balance arrives as a number or
// a string depending on the backend revision.
type credits struct {
	HasCredits bool            `json:"has_credits"`
	RawBalance json.RawMessage `json:"balance"`
}

func (c *credits) balance() float64 {
	if c.RawBalance == nil {
		return 0
	}
	var f float64
	if err := json.Unmarshal(c.RawBalance, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(c.RawBalance, &s); err == nil {
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v
		}
	}
	return 0
}

type usageResponse struct {
	Email      string      `json:"email,omitempty"`
	PlanType   string      `json:"plan_type,omitempty"`
	RateLimit  *rateLimits `json:"rate_limit,omitempty"`
	RateLimits *rateLimits `json:"rate_limits,omitempty"`
	Credits    *credits    `json:"credits,omitempty"`
}

func (r usageResponse) planCode() string { return r.PlanType }

func (r *usageResponse) effectiveRateLimits() *rateLimits {
	if r.RateLimit != nil {
		return r.RateLimit
	}
	return r.RateLimits
}

func buildUsageInfo(info *models.SubscriptionInfo, usage usageResponse, status string) {
	var lines []string
	if status != "" {
		lines = append(lines, status)
	}

	var resets []string
	appendWindow := func(label string, w *rateWindow) {
		if w == nil {
			return
		}
		line := fmt.Sprintf("%s: %d%%", label, models.RoundPercent(w.UsedPercent))
		if epoch := w.resetEpoch(); epoch > 0 {
			raw := strconv.FormatInt(int64(epoch), 10)
			resets = append(resets, raw)
			line += " · resets " + models.FormatResetTime(raw)
		}
		lines = append(lines, line)
	}

	if rl := usage.effectiveRateLimits(); rl != nil {
		appendWindow("session", rl.primary())
		appendWindow("weekly", rl.secondary())
	}

	info.UsageText = strings.Join(lines, "\n")
	info.ResetTime = models.FormatResetTime(models.EarliestReset(resets...))

	if c := usage.Credits; c != nil && c.HasCredits {
		info.LimitNote = fmt.Sprintf("credits: %g", c.balance())
	}
}

// cliCredentials is the Codex CLI auth.json shape: tokens nested under a
// "tokens" key, or flat at the top level.
type cliCredentials struct {
	Tokens       *oauth.Credentials `json:"tokens,omitempty"`
	AccessToken  string             `json:"access_token,omitempty"`
	RefreshToken string             `json:"refresh_token,omitempty"`
	ExpiresAt    string             `json:"expires_at,omitempty"`
	IDToken      string             `json:"id_token,omitempty"`
}

// parseCLICredentials returns credentials from whichever shape is populated.
// Flat keys win: a refresh merges flat fields into a file that may still
// carry a stale nested block. Returns nil when no access token is found.
func parseCLICredentials(data []byte) *oauth.Credentials {
	var c cliCredentials
	if err := json.Unmarshal(data, &c); err != nil {
		return nil
	}
	if c.AccessToken != "" {
		return &oauth.Credentials{
			AccessToken:  c.AccessToken,
			RefreshToken: c.RefreshToken,
			ExpiresAt:    c.ExpiresAt,
			IDToken:      c.IDToken,
		}
	}
	if c.Tokens != nil && c.Tokens.AccessToken != "" {
		return c.Tokens
	}
	return nil
}
