package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// RoundPercent rounds a percentage value to a whole number, clamped to
// [0,100] for display. The input is always percent-scale; callers holding a
// fraction convert before calling.
func RoundPercent(v float64) int {
	n := int(math.Round(v))
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

// FormatResetTime converts an absolute epoch (seconds) or ISO-8601 timestamp
// into a local-time "MM-DD HH:MM ±ZZ" string. The zone suffix is the local
// UTC offset in whole hours, sign-prefixed and zero-padded to two digits. If
// the input can't be parsed, the first 16 characters of the raw string are
// returned as-is.
func FormatResetTime(raw string) string {
	return FormatResetTimeIn(raw, time.Local)
}

// FormatResetTimeIn is FormatResetTime with an explicit zone, used by tests
// to pin the local offset.
func FormatResetTimeIn(raw string, loc *time.Location) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	t, ok := parseTimestamp(raw)
	if !ok {
		if len(raw) > 16 {
			return raw[:16]
		}
		return raw
	}

	local := t.In(loc)
	_, offsetSec := local.Zone()
	offsetHours := offsetSec / 3600
	return fmt.Sprintf("%s %+03d", local.Format("01-02 15:04"), offsetHours)
}

func parseTimestamp(raw string) (time.Time, bool) {
	if epoch, err := strconv.ParseFloat(raw, 64); err == nil && epoch > 0 {
		sec := int64(epoch)
		// Millisecond epochs show up in some CLI credential files.
		if sec > 1e12 {
			return time.UnixMilli(sec), true
		}
		return time.Unix(sec, 0), true
	}

	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05.999999999Z07:00",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// EarliestReset returns the temporally smallest of the given reset
// timestamps, ignoring empties. When multiple quota buckets report reset
// times, the earliest is the one surfaced.
func EarliestReset(timestamps ...string) string {
	var earliest string
	var earliestT time.Time
	for _, raw := range timestamps {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		t, ok := parseTimestamp(raw)
		if !ok {
			// Unparseable inputs still participate lexicographically so
			// unknown formats render rather than vanish.
			if earliest == "" || (earliestT.IsZero() && raw < earliest) {
				earliest = raw
			}
			continue
		}
		if earliest == "" || earliestT.IsZero() || t.Before(earliestT) {
			earliest = raw
			earliestT = t
		}
	}
	return earliest
}

// PlanName resolves a provider plan code to a display name using the given
// lookup table, falling back to the raw code so unknown codes render rather
// than error.
func PlanName(table map[string]string, code string) string {
	if code == "" {
		return ""
	}
	if name, ok := table[code]; ok {
		return name
	}
	return code
}
