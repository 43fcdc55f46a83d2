package service

import (
	"context"

	"github.com/insights-engine/internal/logging"
	"github.com/insights-engine/internal/models"
	"github.com/insights-engine/internal/types"
)

// SanityFilter drops daily metric values above their configured ceiling.
// The upstream API occasionally returns wildly implausible spikes for a
// single metric; storing one would poison every aggregate built on the
// row. Filtering is independent per metric, so one bad value never
// invalidates the rest of the day.
type SanityFilter struct {
	ceilings map[string]int64
}

// NewSanityFilter creates a filter from a metric-name to ceiling map
func NewSanityFilter(ceilings map[string]int64) *SanityFilter {
	return &SanityFilter{ceilings: ceilings}
}

// Ceiling returns the configured ceiling for a metric, 0 when none is set
func (f *SanityFilter) Ceiling(metric string) int64 {
	return f.ceilings[metric]
}

// Accept reports whether a value for the named metric is plausible. A
// metric with no configured ceiling always passes.
func (f *SanityFilter) Accept(metric string, value int64) bool {
	ceiling, ok := f.ceilings[metric]
	if !ok || ceiling <= 0 {
		return true
	}
	return value <= ceiling
}

// Apply nulls out every over-ceiling metric on the record and returns the
// names of the dropped metrics
func (f *SanityFilter) Apply(ctx context.Context, rec *models.DailyInsightRecord) []string {
	var dropped []string
	for _, name := range types.TrackedMetrics {
		value, ok := rec.MetricValue(name)
		if !ok {
			continue
		}
		if f.Accept(name, value) {
			continue
		}
		logging.FromContext(ctx).WithFields(map[string]interface{}{
			"account_id": rec.AccountID,
			"date":       rec.InsightDate.Format("2006-01-02"),
			"metric":     name,
			"value":      value,
			"ceiling":    f.ceilings[name],
		}).Warn("dropping implausible metric value")
		*rec.Metric(name) = nil
		dropped = append(dropped, name)
	}
	return dropped
}
