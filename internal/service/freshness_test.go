package service

import (
	"testing"
	"time"

	"github.com/insights-engine/internal/types"
)

func TestFreshnessPolicyDecide(t *testing.T) {
	ttl := 60 * time.Minute
	policy := NewFreshnessPolicy(ttl)

	now := time.Date(2025, 6, 15, 14, 0, 0, 0, time.UTC)
	today := types.TruncateDay(now)
	yesterday := today.AddDate(0, 0, -1)

	age := func(d time.Duration) *time.Time {
		t := now.Add(-d)
		return &t
	}

	tests := []struct {
		name      string
		requested time.Time
		cachedAt  *time.Time
		force     bool
		want      FreshnessDecision
	}{
		{
			name:      "no cached row refetches",
			requested: today,
			cachedAt:  nil,
			want:      Refetch,
		},
		{
			name:      "past day with cached row never refetches",
			requested: yesterday,
			cachedAt:  age(72 * time.Hour),
			want:      ServeCached,
		},
		{
			name:      "past day ignores force",
			requested: yesterday,
			cachedAt:  age(72 * time.Hour),
			force:     true,
			want:      ServeCached,
		},
		{
			name:      "today aged 59 minutes serves cached",
			requested: today,
			cachedAt:  age(59 * time.Minute),
			want:      ServeCached,
		},
		{
			name:      "today aged 61 minutes refetches",
			requested: today,
			cachedAt:  age(61 * time.Minute),
			want:      Refetch,
		},
		{
			name:      "today with force bypasses age check",
			requested: today,
			cachedAt:  age(1 * time.Minute),
			force:     true,
			want:      Refetch,
		},
		{
			name:      "past day with no row refetches",
			requested: yesterday,
			cachedAt:  nil,
			want:      Refetch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := policy.Decide(tt.requested, now, tt.cachedAt, tt.force)
			if got != tt.want {
				t.Errorf("Decide() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestFreshnessPolicyDecideWindow(t *testing.T) {
	ttl := 60 * time.Minute
	policy := NewFreshnessPolicy(ttl)

	now := time.Date(2025, 6, 15, 14, 0, 0, 0, time.UTC)

	pastWindow := types.DateWindow{
		Since: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Until: time.Date(2025, 6, 7, 0, 0, 0, 0, time.UTC),
	}
	liveWindow := types.DateWindow{
		Since: time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC),
		Until: time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
	}

	age := func(d time.Duration) *time.Time {
		t := now.Add(-d)
		return &t
	}

	tests := []struct {
		name     string
		window   types.DateWindow
		cachedAt *time.Time
		covered  int
		force    bool
		want     FreshnessDecision
	}{
		{
			name:     "fully covered past window serves cached",
			window:   pastWindow,
			cachedAt: age(240 * time.Hour),
			covered:  7,
			want:     ServeCached,
		},
		{
			name:     "partially covered past window serves cached",
			window:   pastWindow,
			cachedAt: age(240 * time.Hour),
			covered:  5,
			want:     ServeCached,
		},
		{
			name:    "empty past window refetches",
			window:  pastWindow,
			covered: 0,
			want:    Refetch,
		},
		{
			name:     "live window with gap refetches",
			window:   liveWindow,
			cachedAt: age(10 * time.Minute),
			covered:  6,
			want:     Refetch,
		},
		{
			name:     "live window fresh today serves cached",
			window:   liveWindow,
			cachedAt: age(10 * time.Minute),
			covered:  7,
			want:     ServeCached,
		},
		{
			name:     "live window stale today refetches",
			window:   liveWindow,
			cachedAt: age(2 * time.Hour),
			covered:  7,
			want:     Refetch,
		},
		{
			name:     "live window force refetches",
			window:   liveWindow,
			cachedAt: age(1 * time.Minute),
			covered:  7,
			force:    true,
			want:     Refetch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := policy.DecideWindow(tt.window, now, tt.cachedAt, tt.covered, tt.force)
			if got != tt.want {
				t.Errorf("DecideWindow() = %s, want %s", got, tt.want)
			}
		})
	}
}
