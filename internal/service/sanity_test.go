package service

import (
	"context"
	"testing"
	"time"

	"github.com/insights-engine/internal/models"
	"github.com/insights-engine/internal/types"
)

func TestSanityFilterAccept(t *testing.T) {
	filter := NewSanityFilter(map[string]int64{
		types.MetricReach: 500_000,
		types.MetricViews: 2_000_000,
	})

	tests := []struct {
		name   string
		metric string
		value  int64
		want   bool
	}{
		{"under ceiling passes", types.MetricReach, 400_000, true},
		{"at ceiling passes", types.MetricReach, 500_000, true},
		{"over ceiling dropped", types.MetricReach, 10_000_000, false},
		{"unconfigured metric passes", types.MetricContactClicks, 1_000_000_000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := filter.Accept(tt.metric, tt.value); got != tt.want {
				t.Errorf("Accept(%s, %d) = %v, want %v", tt.metric, tt.value, got, tt.want)
			}
		})
	}
}

func TestSanityFilterApplyIndependentPerMetric(t *testing.T) {
	filter := NewSanityFilter(map[string]int64{
		types.MetricReach: 500_000,
		types.MetricViews: 2_000_000,
	})

	rec := &models.DailyInsightRecord{
		AccountID:   "acct-1",
		InsightDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	rec.SetMetric(types.MetricReach, 10_000_000)
	rec.SetMetric(types.MetricViews, 400_000)

	dropped := filter.Apply(context.Background(), rec)

	if len(dropped) != 1 || dropped[0] != types.MetricReach {
		t.Fatalf("dropped = %v, want [reach]", dropped)
	}
	if rec.Reach != nil {
		t.Errorf("reach = %d, want nil after filtering", *rec.Reach)
	}
	if v, ok := rec.MetricValue(types.MetricViews); !ok || v != 400_000 {
		t.Errorf("views = %d (present=%v), want 400000 untouched", v, ok)
	}
}

func TestSanityFilterApplyLeavesNulls(t *testing.T) {
	filter := NewSanityFilter(map[string]int64{types.MetricReach: 500_000})

	rec := &models.DailyInsightRecord{AccountID: "acct-1"}
	if dropped := filter.Apply(context.Background(), rec); len(dropped) != 0 {
		t.Errorf("dropped = %v, want none for an all-null record", dropped)
	}
}
