// Package models defines the uniform display record produced for every
// provider and the formatting helpers that normalize heterogeneous quota
// payloads into it.
package models

import (
	"time"
)

// Placeholder is shown when neither live nor manual data exists for a field
// that must render.
const Placeholder = "—"

// SubscriptionInfo is the uniform usage record for one provider. It is
// produced fresh every fetch cycle; each cycle's record fully replaces the
// previous one for that provider.
type SubscriptionInfo struct {
	Name         string `json:"name"`
	UsageText    string `json:"usage_text"`
	ResetTime    string `json:"reset_time,omitempty"`
	LimitNote    string `json:"limit_note,omitempty"`
	DashboardURL string `json:"dashboard_url,omitempty"`
	Error        string `json:"error,omitempty"`
}

// ApplyFallback fills empty display fields from manual override strings.
// Live data always wins; overrides only cover what a failed fetch left blank.
func (s *SubscriptionInfo) ApplyFallback(usageText, resetTime, limitNote string) {
	if s.UsageText == "" && usageText != "" {
		s.UsageText = usageText
	}
	if s.ResetTime == "" && resetTime != "" {
		s.ResetTime = resetTime
	}
	if s.LimitNote == "" && limitNote != "" {
		s.LimitNote = limitNote
	}
}

// EnsureDisplayable enforces the never-empty rule: usage_text is at minimum
// the placeholder, whatever happened upstream.
func (s *SubscriptionInfo) EnsureDisplayable() {
	if s.UsageText == "" {
		s.UsageText = Placeholder
	}
}

// Timestamped pairs a SubscriptionInfo with the wall-clock time it was
// produced, letting callers keep a stale record visible while a newer fetch
// is failing.
type Timestamped struct {
	Info      SubscriptionInfo
	FetchedAt time.Time
}
