package engine

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	reIn   = regexp.MustCompile(`\bin\s+(\d+)\s*(minutes?|mins?|hours?|hrs?|days?)\b`)
	reAt   = regexp.MustCompile(`\b(?:at\s+)?(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)
	reAt24 = regexp.MustCompile(`\bat\s+(\d{1,2})(?::(\d{2}))?\b`)
)

// parseWhen resolves a casual time phrase against now. Supported forms:
// "in N minutes/hours/days", "at 5pm" / "at 17:30", "tomorrow", "tonight".
// A clock time already past today rolls to tomorrow.
func parseWhen(text string, now time.Time) (time.Time, bool) {
	t := strings.ToLower(text)

	if m := reIn.FindStringSubmatch(t); m != nil {
		n, _ := strconv.Atoi(m[1])
		switch {
		case strings.HasPrefix(m[2], "min"):
			return now.Add(time.Duration(n) * time.Minute), true
		case strings.HasPrefix(m[2], "h"):
			return now.Add(time.Duration(n) * time.Hour), true
		default:
			return now.AddDate(0, 0, n), true
		}
	}

	tomorrow := strings.Contains(t, "tomorrow")

	if m := reAt.FindStringSubmatch(t); m != nil {
		hour, _ := strconv.Atoi(m[1])
		min := 0
		if m[2] != "" {
			min, _ = strconv.Atoi(m[2])
		}
		if hour >= 1 && hour <= 12 {
			if m[3] == "pm" && hour != 12 {
				hour += 12
			}
			if m[3] == "am" && hour == 12 {
				hour = 0
			}
			return clockTime(now, hour, min, tomorrow), true
		}
		return time.Time{}, false
	}

	if m := reAt24.FindStringSubmatch(t); m != nil {
		hour, _ := strconv.Atoi(m[1])
		min := 0
		if m[2] != "" {
			min, _ = strconv.Atoi(m[2])
		}
		if hour >= 0 && hour <= 23 && min <= 59 {
			return clockTime(now, hour, min, tomorrow), true
		}
		return time.Time{}, false
	}

	if tomorrow {
		return clockTime(now, 9, 0, true), true
	}
	if strings.Contains(t, "tonight") {
		return clockTime(now, 20, 0, false), true
	}
	return time.Time{}, false
}

func clockTime(now time.Time, hour, min int, tomorrow bool) time.Time {
	at := time.Date(now.Year(), now.Month(), now.Day(), hour, min, 0, 0, now.Location())
	if tomorrow {
		return at.AddDate(0, 0, 1)
	}
	if !at.After(now) {
		return at.AddDate(0, 0, 1)
	}
	return at
}
