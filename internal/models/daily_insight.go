package models

import (
	"time"

	"github.com/insights-engine/internal/types"
)

// DailyInsightRecord holds the account-level metrics for one calendar day.
// Each metric is independently nullable: the upstream API exposes metrics
// inconsistently per account and permission tier, and a missing value for
// one metric must not invalidate the others.
type DailyInsightRecord struct {
	AccountID       string    `json:"accountId" db:"account_id"`
	InsightDate     time.Time `json:"insightDate" db:"insight_date"`
	Reach           *int64    `json:"reach" db:"reach"`
	Views           *int64    `json:"views" db:"views"`
	ProfileViews    *int64    `json:"profileViews" db:"profile_views"`
	AccountsEngaged *int64    `json:"accountsEngaged" db:"accounts_engaged"`
	WebsiteClicks   *int64    `json:"websiteClicks" db:"website_clicks"`
	ContactClicks   *int64    `json:"contactClicks" db:"contact_clicks"`
	FollowerCount   *int64    `json:"followerCount" db:"follower_count"`
	FetchedAt       time.Time `json:"fetchedAt" db:"fetched_at"`
}

// Metric returns a pointer to the named metric field, or nil for an
// unknown name. Used by the sanity filter and the aggregation code so
// per-metric logic does not need a switch at every call site.
func (r *DailyInsightRecord) Metric(name string) **int64 {
	switch name {
	case types.MetricReach:
		return &r.Reach
	case types.MetricViews:
		return &r.Views
	case types.MetricProfileViews:
		return &r.ProfileViews
	case types.MetricAccountsEngaged:
		return &r.AccountsEngaged
	case types.MetricWebsiteClicks:
		return &r.WebsiteClicks
	case types.MetricContactClicks:
		return &r.ContactClicks
	case types.MetricFollowerCount:
		return &r.FollowerCount
	default:
		return nil
	}
}

// MetricValue returns the named metric value with null treated as absent
func (r *DailyInsightRecord) MetricValue(name string) (int64, bool) {
	p := r.Metric(name)
	if p == nil || *p == nil {
		return 0, false
	}
	return **p, true
}

// SetMetric stores a value for the named metric; unknown names are ignored
func (r *DailyInsightRecord) SetMetric(name string, value int64) {
	if p := r.Metric(name); p != nil {
		v := value
		*p = &v
	}
}
