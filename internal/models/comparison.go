package models

// ComparisonResult holds period-over-period statistics for one metric.
// Derived on demand from two DailyInsightRecord aggregates; never persisted.
type ComparisonResult struct {
	Current       int64   `json:"current"`
	Previous      int64   `json:"previous"`
	Change        int64   `json:"change"`
	ChangePercent float64 `json:"changePercent"`
}

// NewComparisonResult computes the delta metrics for a pair of sums.
// ChangePercent is zero when the previous sum is zero.
func NewComparisonResult(current, previous int64) ComparisonResult {
	r := ComparisonResult{
		Current:  current,
		Previous: previous,
		Change:   current - previous,
	}
	if previous != 0 {
		r.ChangePercent = float64(r.Change) / float64(previous) * 100
	}
	return r
}
