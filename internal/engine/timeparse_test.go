package engine

import (
	"testing"
	"time"
)

func TestParseWhen(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC) // Sunday 10:00

	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"remind me in 20 minutes", now.Add(20 * time.Minute), true},
		{"in 2 hours", now.Add(2 * time.Hour), true},
		{"in 3 days", now.AddDate(0, 0, 3), true},
		{"call mom at 5pm", time.Date(2025, 6, 1, 17, 0, 0, 0, time.UTC), true},
		{"at 5:30pm", time.Date(2025, 6, 1, 17, 30, 0, 0, time.UTC), true},
		// 8am already passed today, rolls to tomorrow.
		{"at 8am", time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC), true},
		{"at 17:30", time.Date(2025, 6, 1, 17, 30, 0, 0, time.UTC), true},
		{"tomorrow", time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC), true},
		{"tomorrow at 3pm", time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC), true},
		{"tonight", time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC), true},
		{"sometime soon", time.Time{}, false},
		{"", time.Time{}, false},
	}

	for _, tt := range tests {
		got, ok := parseWhen(tt.in, now)
		if ok != tt.ok {
			t.Errorf("parseWhen(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if ok && !got.Equal(tt.want) {
			t.Errorf("parseWhen(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseHoursFragment(t *testing.T) {
	if h, ok := parseHours("slept 7.5 hours"); !ok || h != 7.5 {
		t.Fatalf("parseHours = %v, %v", h, ok)
	}
	if _, ok := parseHours("slept well"); ok {
		t.Fatal("expected no hours")
	}
}
