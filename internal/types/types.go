// Package types provides common type definitions for the insights engine.
package types

import "time"

// TokenFamily represents the credential format issued by the upstream platform.
// Each family is bound to a different API host.
type TokenFamily string

const (
	// FamilyPlatform represents tokens issued by the platform's native login
	// flow ("IGAA" prefix), served by the platform graph host
	FamilyPlatform TokenFamily = "platform"
	// FamilyBridge represents tokens issued through the parent-company login
	// flow ("EAA" prefix), served by the bridge graph host
	FamilyBridge TokenFamily = "bridge"
	// FamilyUnknown represents a credential whose format was not recognized
	FamilyUnknown TokenFamily = "unknown"
)

// MediaType represents the kind of a cached post
type MediaType string

const (
	// MediaImage represents a single image post
	MediaImage MediaType = "IMAGE"
	// MediaVideo represents a video or reel post
	MediaVideo MediaType = "VIDEO"
	// MediaCarousel represents a multi-item album post
	MediaCarousel MediaType = "CAROUSEL_ALBUM"
	// MediaStory represents an ephemeral story
	MediaStory MediaType = "STORY"
)

// SyncCategory represents one independently-fetched data category within a sync
type SyncCategory string

const (
	// CategoryProfile represents the account profile fetch
	CategoryProfile SyncCategory = "profile"
	// CategoryMedia represents the paginated media list fetch
	CategoryMedia SyncCategory = "media"
	// CategoryDaily represents the account-level daily metrics fetch
	CategoryDaily SyncCategory = "daily"
	// CategoryStories represents the stories fetch
	CategoryStories SyncCategory = "stories"
	// CategoryDemographics represents the demographics fetch
	CategoryDemographics SyncCategory = "demographics"
)

// Daily metric names tracked by the engine. These are also the column
// names in the daily_insights table and the keys of the sanity-ceiling map.
const (
	MetricReach           = "reach"
	MetricViews           = "views"
	MetricProfileViews    = "profile_views"
	MetricAccountsEngaged = "accounts_engaged"
	MetricWebsiteClicks   = "website_clicks"
	MetricContactClicks   = "contact_clicks"
	MetricFollowerCount   = "follower_count"
)

// TrackedMetrics lists the daily metrics in their canonical order
var TrackedMetrics = []string{
	MetricReach,
	MetricViews,
	MetricProfileViews,
	MetricAccountsEngaged,
	MetricWebsiteClicks,
	MetricContactClicks,
	MetricFollowerCount,
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// DateWindow represents an inclusive [Since, Until] range of calendar days.
// Both bounds are normalized to UTC midnight.
type DateWindow struct {
	Since time.Time `json:"since"`
	Until time.Time `json:"until"`
}

// NewDateWindow builds a window with both bounds truncated to the day
func NewDateWindow(since, until time.Time) DateWindow {
	return DateWindow{Since: TruncateDay(since), Until: TruncateDay(until)}
}

// Days returns the window length in calendar days (inclusive bounds)
func (w DateWindow) Days() int {
	return int(w.Until.Sub(w.Since).Hours()/24) + 1
}

// Previous returns the equal-length window immediately preceding this one,
// with no gap and no overlap
func (w DateWindow) Previous() DateWindow {
	n := w.Days()
	return DateWindow{
		Since: w.Since.AddDate(0, 0, -n),
		Until: w.Since.AddDate(0, 0, -1),
	}
}

// Contains reports whether the given day falls inside the window
func (w DateWindow) Contains(day time.Time) bool {
	d := TruncateDay(day)
	return !d.Before(w.Since) && !d.After(w.Until)
}

// TruncateDay normalizes a timestamp to UTC midnight of its calendar day
func TruncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether two timestamps fall on the same UTC calendar day
func SameDay(a, b time.Time) bool {
	return TruncateDay(a).Equal(TruncateDay(b))
}
