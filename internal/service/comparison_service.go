package service

import (
	"context"
	"fmt"

	"github.com/insights-engine/internal/models"
	"github.com/insights-engine/internal/types"
)

type dailyWindowLister interface {
	ListByWindow(ctx context.Context, accountID string, window types.DateWindow) ([]*models.DailyInsightRecord, error)
}

// WindowCoverage reports how completely a window's days are backed by
// stored rows
type WindowCoverage struct {
	CoveredDays  int     `json:"coveredDays"`
	ExpectedDays int     `json:"expectedDays"`
	Ratio        float64 `json:"ratio"`
}

// ConsolidatedWindow is one window's daily rows plus per-metric sums
type ConsolidatedWindow struct {
	Window   types.DateWindow             `json:"window"`
	Daily    []*models.DailyInsightRecord `json:"daily"`
	Totals   map[string]int64             `json:"totals"`
	Coverage WindowCoverage               `json:"coverage"`
}

// Comparison is the full consolidation result for a requested window and
// its immediately-preceding equal-length window
type Comparison struct {
	Current  ConsolidatedWindow                  `json:"current"`
	Previous ConsolidatedWindow                  `json:"previous"`
	Metrics  map[string]models.ComparisonResult `json:"metrics"`
}

// ComparisonService aggregates stored daily rows into window totals and
// period-over-period deltas
type ComparisonService struct {
	dailyRepo dailyWindowLister
}

// NewComparisonService creates a new comparison service
func NewComparisonService(dailyRepo dailyWindowLister) *ComparisonService {
	return &ComparisonService{dailyRepo: dailyRepo}
}

// Compare loads both windows and computes totals and per-metric deltas.
// The previous window is the N days immediately before the requested one,
// no gap, no overlap.
func (s *ComparisonService) Compare(ctx context.Context, accountID string, window types.DateWindow) (*Comparison, error) {
	current, err := s.consolidate(ctx, accountID, window)
	if err != nil {
		return nil, fmt.Errorf("failed to consolidate current window: %w", err)
	}
	previous, err := s.consolidate(ctx, accountID, window.Previous())
	if err != nil {
		return nil, fmt.Errorf("failed to consolidate previous window: %w", err)
	}

	metrics := make(map[string]models.ComparisonResult, len(types.TrackedMetrics))
	for _, name := range types.TrackedMetrics {
		metrics[name] = models.NewComparisonResult(current.Totals[name], previous.Totals[name])
	}

	return &Comparison{
		Current:  *current,
		Previous: *previous,
		Metrics:  metrics,
	}, nil
}

func (s *ComparisonService) consolidate(ctx context.Context, accountID string, window types.DateWindow) (*ConsolidatedWindow, error) {
	daily, err := s.dailyRepo.ListByWindow(ctx, accountID, window)
	if err != nil {
		return nil, err
	}
	return Consolidate(window, daily), nil
}

// Consolidate sums each tracked metric over the window's rows. A null
// value contributes zero to its metric's sum without affecting the
// others. Exported as a pure function so the orchestrator and tests can
// aggregate already-loaded rows without a repository round trip.
func Consolidate(window types.DateWindow, daily []*models.DailyInsightRecord) *ConsolidatedWindow {
	totals := make(map[string]int64, len(types.TrackedMetrics))
	for _, name := range types.TrackedMetrics {
		totals[name] = 0
	}
	for _, rec := range daily {
		for _, name := range types.TrackedMetrics {
			if v, ok := rec.MetricValue(name); ok {
				totals[name] += v
			}
		}
	}

	expected := window.Days()
	covered := len(daily)
	ratio := 0.0
	if expected > 0 {
		ratio = float64(covered) / float64(expected)
	}

	return &ConsolidatedWindow{
		Window: window,
		Daily:  daily,
		Totals: totals,
		Coverage: WindowCoverage{
			CoveredDays:  covered,
			ExpectedDays: expected,
			Ratio:        ratio,
		},
	}
}
