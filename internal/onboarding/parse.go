package onboarding

import (
	"regexp"
	"strconv"
	"strings"
)

// Style buckets.
const (
	StylePersistent = "persistent"
	StyleRelaxed    = "relaxed"
	StyleNeutral    = "neutral"

	VoiceFormal = "formal"
	VoiceCasual = "casual"
	VoicePlayful = "playful"
)

const mlPerOz = 29.5735

var (
	reVolume = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(l|liters?|litres?|ml|milliliters?|oz|ounces?)\b`)
	reClock  = regexp.MustCompile(`\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\b`)
)

// ParseVolumeML parses a bottle size: liters, milliliters, ounces, or the
// literal "standard"/"default" which maps to defaultML. Returns 0, false on
// anything else.
func ParseVolumeML(text string, defaultML int) (int, bool) {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return 0, false
	}
	if strings.Contains(t, "standard") || strings.Contains(t, "default") {
		return defaultML, true
	}

	m := reVolume.FindStringSubmatch(t)
	if m == nil {
		// A bare number reads as milliliters when plausible (e.g. "750").
		if n, err := strconv.ParseFloat(t, 64); err == nil && n >= 100 && n <= 5000 {
			return int(n), true
		}
		return 0, false
	}

	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	switch {
	case strings.HasPrefix(m[2], "l"):
		return int(n * 1000), true
	case strings.HasPrefix(m[2], "m"):
		return int(n), true
	default: // oz
		return int(n * mlPerOz), true
	}
}

// ParseHour parses a check-in hour: 24h ("20", "20:30"), 12h with am/pm
// ("8am", "8 pm"), or a bare 0-23 integer. Minutes are discarded.
func ParseHour(text string) (int, bool) {
	t := strings.ToLower(strings.TrimSpace(text))
	m := reClock.FindStringSubmatch(t)
	if m == nil {
		return 0, false
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	switch m[3] {
	case "am":
		if hour < 1 || hour > 12 {
			return 0, false
		}
		if hour == 12 {
			hour = 0
		}
	case "pm":
		if hour < 1 || hour > 12 {
			return 0, false
		}
		if hour != 12 {
			hour += 12
		}
	default:
		if hour < 0 || hour > 23 {
			return 0, false
		}
	}
	return hour, true
}

// ReminderStyleBucket classifies free text into a reminder style. Never
// fails; unmatched text lands in the neutral bucket.
func ReminderStyleBucket(text string) string {
	t := strings.ToLower(text)
	switch {
	case containsAny(t, "persistent", "nag", "push", "often", "keep remind", "aggressive", "a lot"):
		return StylePersistent
	case containsAny(t, "relax", "chill", "gentle", "rarely", "light", "easy", "soft"):
		return StyleRelaxed
	default:
		return StyleNeutral
	}
}

// VoiceStyleBucket classifies free text into a voice style, defaulting to
// casual as the neutral bucket.
func VoiceStyleBucket(text string) string {
	t := strings.ToLower(text)
	switch {
	case containsAny(t, "formal", "professional", "serious", "polite", "butler"):
		return VoiceFormal
	case containsAny(t, "fun", "playful", "joke", "silly", "sassy", "humor"):
		return VoicePlayful
	default:
		return VoiceCasual
	}
}

func containsAny(s string, keys ...string) bool {
	for _, k := range keys {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
