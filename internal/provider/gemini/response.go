package gemini

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/quotadash/quotadash/internal/models"
	"github.com/quotadash/quotadash/internal/oauth"
)

// quotaBucket is one per-model quota window. remainingFraction is a pointer:
// absent means full quota remaining, not zero.
type quotaBucket struct {
	ResetTime         string   `json:"resetTime,omitempty"`
	ModelID           string   `json:"modelId,omitempty"`
	RemainingFraction *float64 `json:"remainingFraction,omitempty"`
}

// utilization converts remaining fraction to used percent, clamped to [0,100].
func (b *quotaBucket) utilization() int {
	rf := 1.0
	if b.RemainingFraction != nil {
		rf = *b.RemainingFraction
	}
	return models.RoundPercent((1 - rf) * 100)
}

// displayModel shortens "models/gemini-2.5-pro" to "Gemini 2.5 Pro".
func (b *quotaBucket) displayModel() string {
	name := b.ModelID
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	if name == "" {
		return "daily"
	}
	return titleCase(strings.ReplaceAll(strings.ReplaceAll(name, "-", " "), "_", " "))
}

type quotaResponse struct {
	Buckets []quotaBucket `json:"buckets,omitempty"`
}

type tierInfo struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

type tierResponse struct {
	CurrentTier *tierInfo `json:"currentTier,omitempty"`
}

var tierNames = map[string]string{
	"free-tier":     "Free",
	"legacy-tier":   "Legacy",
	"standard-tier": "Standard",
}

// planName maps the current tier id to a display name, falling back to the
// server-provided name and then the raw id so unknown tiers still render.
func (r *tierResponse) planName() string {
	if r == nil || r.CurrentTier == nil {
		return ""
	}
	if name, ok := tierNames[r.CurrentTier.ID]; ok {
		return name
	}
	if r.CurrentTier.Name != "" {
		return r.CurrentTier.Name
	}
	return r.CurrentTier.ID
}

func buildUsageInfo(info *models.SubscriptionInfo, quota quotaResponse, status string) {
	var lines []string
	if status != "" {
		lines = append(lines, status)
	}

	var resets []string
	for _, b := range quota.Buckets {
		line := fmt.Sprintf("%s: %d%%", b.displayModel(), b.utilization())
		if reset := models.FormatResetTime(b.ResetTime); reset != "" {
			resets = append(resets, b.ResetTime)
			line += " · resets " + reset
		}
		lines = append(lines, line)
	}

	// No buckets means nothing used today; the daily window still resets at
	// UTC midnight.
	if len(quota.Buckets) == 0 {
		midnight := nextMidnightUTC(time.Now()).Format(time.RFC3339)
		resets = append(resets, midnight)
		lines = append(lines, "daily: 0% · resets "+models.FormatResetTime(midnight))
	}

	info.UsageText = strings.Join(lines, "\n")
	info.ResetTime = models.FormatResetTime(models.EarliestReset(resets...))
}

// cliInstalled is the nested block inside the Gemini CLI's "installed" format.
// expiry_date arrives as a millisecond epoch number or a string.
type cliInstalled struct {
	Token        string `json:"token,omitempty"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiryDate   any    `json:"expiry_date,omitempty"`
}

type cliCredentials struct {
	Installed    *cliInstalled `json:"installed,omitempty"`
	Token        string        `json:"token,omitempty"`
	AccessToken  string        `json:"access_token,omitempty"`
	RefreshToken string        `json:"refresh_token,omitempty"`
	ExpiryDate   any           `json:"expiry_date,omitempty"`
	ExpiresAt    string        `json:"expires_at,omitempty"`
}

// parseCLICredentials accepts the Gemini CLI's installed format, its flat
// token format, or the canonical flat format written after a refresh.
func parseCLICredentials(data []byte) *oauth.Credentials {
	var c cliCredentials
	if err := json.Unmarshal(data, &c); err != nil {
		return nil
	}

	if c.Installed != nil {
		token := c.Installed.Token
		if token == "" {
			token = c.Installed.AccessToken
		}
		if token == "" {
			return nil
		}
		return &oauth.Credentials{
			AccessToken:  token,
			RefreshToken: c.Installed.RefreshToken,
			ExpiresAt:    parseExpiryDate(c.Installed.ExpiryDate),
		}
	}

	token := c.AccessToken
	if token == "" {
		token = c.Token
	}
	if token == "" {
		return nil
	}
	creds := &oauth.Credentials{
		AccessToken:  token,
		RefreshToken: c.RefreshToken,
		ExpiresAt:    c.ExpiresAt,
	}
	if creds.ExpiresAt == "" {
		creds.ExpiresAt = parseExpiryDate(c.ExpiryDate)
	}
	return creds
}

// parseExpiryDate normalizes the CLI's expiry_date (millisecond epoch as a
// JSON number or string, or an RFC3339 string) to RFC3339. Unrecognized
// values yield "", which reads as "expiry unknown".
func parseExpiryDate(v any) string {
	switch t := v.(type) {
	case float64:
		if t <= 0 {
			return ""
		}
		return time.UnixMilli(int64(t)).UTC().Format(time.RFC3339)
	case string:
		if t == "" {
			return ""
		}
		if ms, err := strconv.ParseFloat(t, 64); err == nil && ms > 0 {
			return time.UnixMilli(int64(ms)).UTC().Format(time.RFC3339)
		}
		if _, err := time.Parse(time.RFC3339, t); err == nil {
			return t
		}
	}
	return ""
}
