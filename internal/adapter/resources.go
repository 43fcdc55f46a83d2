package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/insights-engine/internal/types"
)

// Metric sets requested from the upstream API, widest first. Availability
// varies per account and app-permission tier, so the reduced "safe" set is
// always the final fallback.
const (
	profileFields = "id,username,name,followers_count,follows_count,media_count,profile_picture_url"
	mediaFields   = "id,caption,media_type,media_url,permalink,timestamp,like_count,comments_count"
	storyFields   = "id,media_type,media_url,permalink,timestamp"

	dailyMetricsFull = "reach,views,profile_views,accounts_engaged,website_clicks,phone_call_clicks"
	dailyMetricsSafe = "reach,views"

	mediaInsightMetrics = "reach,likes,comments,saved,shares,total_interactions"
	videoInsightMetrics = "reach,views,likes,comments,saved,shares,total_interactions"
	storyInsightMetrics = "reach,views,replies"

	demographicsMetric = "follower_demographics"

	// end_time format used by the upstream insights payloads
	insightTimeLayout = "2006-01-02T15:04:05-0700"
)

// upstreamMetricNames maps the API's metric names onto the engine's
// internal daily metric names
var upstreamMetricNames = map[string]string{
	"reach":             types.MetricReach,
	"views":             types.MetricViews,
	"impressions":       types.MetricViews,
	"profile_views":     types.MetricProfileViews,
	"accounts_engaged":  types.MetricAccountsEngaged,
	"website_clicks":    types.MetricWebsiteClicks,
	"phone_call_clicks": types.MetricContactClicks,
}

// ProfilePayload is the typed account profile resource
type ProfilePayload struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	Name              string `json:"name"`
	FollowersCount    int64  `json:"followers_count"`
	FollowsCount      int64  `json:"follows_count"`
	MediaCount        int64  `json:"media_count"`
	ProfilePictureURL string `json:"profile_picture_url"`
}

// MediaItem is one entry of the media or stories collection
type MediaItem struct {
	ID            string          `json:"id"`
	Caption       string          `json:"caption"`
	MediaType     types.MediaType `json:"media_type"`
	MediaURL      string          `json:"media_url"`
	Permalink     string          `json:"permalink"`
	Timestamp     string          `json:"timestamp"`
	LikeCount     int64           `json:"like_count"`
	CommentsCount int64           `json:"comments_count"`
}

// PostedAt parses the item's timestamp; zero time when absent or malformed
func (m *MediaItem) PostedAt() time.Time {
	for _, layout := range []string{insightTimeLayout, time.RFC3339} {
		if t, err := time.Parse(layout, m.Timestamp); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// DailyMetricPoint is one (metric, day, value) observation from the
// account-level daily insights resource
type DailyMetricPoint struct {
	Metric string
	Date   time.Time
	Value  int64
}

// FetchProfile fetches the account profile, falling back across hosts
func (c *GraphClient) FetchProfile(ctx context.Context, token string, family types.TokenFamily, businessID string) (*ProfilePayload, error) {
	params := url.Values{"fields": {profileFields}}
	attempts := []Attempt{
		{Host: c.PrimaryHost(family), Path: businessID, Params: params, Label: "primary"},
		{Host: c.FallbackHost(family), Path: businessID, Params: params, Label: "fallback-host"},
	}

	body, err := c.GetWithFallback(ctx, token, attempts, "profile")
	if err != nil {
		return nil, err
	}

	var profile ProfilePayload
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	return &profile, nil
}

// FetchMedia fetches the full paginated media list, up to the page cap
func (c *GraphClient) FetchMedia(ctx context.Context, token string, family types.TokenFamily, businessID string) ([]MediaItem, error) {
	params := url.Values{
		"fields": {mediaFields},
		"limit":  {"25"},
	}
	firstURL := c.BuildURL(c.PrimaryHost(family), businessID+"/media", token, params)

	raw, err := c.Paginate(ctx, firstURL, c.maxPages)
	if err != nil {
		return nil, err
	}
	return parseMediaItems(raw)
}

// FetchMediaInsights fetches per-media insight metrics. The metric set
// depends on the media type; callers must not request insights for
// carousel albums (see InsightsCapable).
func (c *GraphClient) FetchMediaInsights(ctx context.Context, token string, family types.TokenFamily, mediaID string, mediaType types.MediaType) (json.RawMessage, error) {
	metrics := mediaInsightMetrics
	if mediaType == types.MediaVideo {
		metrics = videoInsightMetrics
	}

	attempts := []Attempt{
		{
			Host:   c.PrimaryHost(family),
			Path:   mediaID + "/insights",
			Params: url.Values{"metric": {metrics}},
			Label:  "full",
		},
		{
			Host:   c.PrimaryHost(family),
			Path:   mediaID + "/insights",
			Params: url.Values{"metric": {"reach"}},
			Label:  "safe",
		},
	}

	return c.GetWithFallback(ctx, token, attempts, "media_insights")
}

// InsightsCapable reports whether a media type supports the per-media
// insights resource. Carousel containers cannot be queried for insights
// on either host; for those only engagement counts are recorded.
func InsightsCapable(mediaType types.MediaType) bool {
	return mediaType != types.MediaCarousel
}

// FetchDailyInsights fetches account-level daily metrics for an inclusive
// date window and flattens them into per-day points. The attempt order is
// full set on the primary host, full set on the fallback host, then the
// reduced safe set on the primary host.
func (c *GraphClient) FetchDailyInsights(ctx context.Context, token string, family types.TokenFamily, businessID string, window types.DateWindow) ([]DailyMetricPoint, error) {
	baseParams := func(metrics string) url.Values {
		return url.Values{
			"metric": {metrics},
			"period": {"day"},
			"since":  {strconv.FormatInt(window.Since.Unix(), 10)},
			"until":  {strconv.FormatInt(window.Until.AddDate(0, 0, 1).Unix(), 10)},
		}
	}
	path := businessID + "/insights"

	attempts := []Attempt{
		{Host: c.PrimaryHost(family), Path: path, Params: baseParams(dailyMetricsFull), Label: "primary-full"},
		{Host: c.FallbackHost(family), Path: path, Params: baseParams(dailyMetricsFull), Label: "fallback-full"},
		{Host: c.PrimaryHost(family), Path: path, Params: baseParams(dailyMetricsSafe), Label: "primary-safe"},
	}

	body, err := c.GetWithFallback(ctx, token, attempts, "daily_insights")
	if err != nil {
		return nil, err
	}
	return parseDailyInsights(body)
}

// FetchStories fetches the current stories list. The upstream retains
// story data only briefly, so no pagination beyond the first pages is
// expected.
func (c *GraphClient) FetchStories(ctx context.Context, token string, family types.TokenFamily, businessID string) ([]MediaItem, error) {
	params := url.Values{"fields": {storyFields}}
	firstURL := c.BuildURL(c.PrimaryHost(family), businessID+"/stories", token, params)

	raw, err := c.Paginate(ctx, firstURL, 3)
	if err != nil {
		return nil, err
	}
	return parseMediaItems(raw)
}

// FetchStoryInsights fetches insight metrics for one story
func (c *GraphClient) FetchStoryInsights(ctx context.Context, token string, family types.TokenFamily, storyID string) (json.RawMessage, error) {
	attempts := []Attempt{
		{
			Host:   c.PrimaryHost(family),
			Path:   storyID + "/insights",
			Params: url.Values{"metric": {storyInsightMetrics}},
			Label:  "full",
		},
		{
			Host:   c.PrimaryHost(family),
			Path:   storyID + "/insights",
			Params: url.Values{"metric": {"reach"}},
			Label:  "safe",
		},
	}
	return c.GetWithFallback(ctx, token, attempts, "story_insights")
}

// FetchDemographics fetches follower demographics as a raw payload
func (c *GraphClient) FetchDemographics(ctx context.Context, token string, family types.TokenFamily, businessID string) (json.RawMessage, error) {
	params := url.Values{
		"metric":      {demographicsMetric},
		"period":      {"lifetime"},
		"metric_type": {"total_value"},
	}
	attempts := []Attempt{
		{Host: c.PrimaryHost(family), Path: businessID + "/insights", Params: params, Label: "primary"},
		{Host: c.FallbackHost(family), Path: businessID + "/insights", Params: params, Label: "fallback-host"},
	}
	return c.GetWithFallback(ctx, token, attempts, "demographics")
}

func parseMediaItems(raw []json.RawMessage) ([]MediaItem, error) {
	items := make([]MediaItem, 0, len(raw))
	for _, r := range raw {
		var item MediaItem
		if err := json.Unmarshal(r, &item); err != nil {
			return items, fmt.Errorf("failed to parse media item: %w", err)
		}
		items = append(items, item)
	}
	return items, nil
}

// parseDailyInsights flattens the insights envelope into per-day points,
// translating upstream metric names and skipping unknown ones
func parseDailyInsights(body json.RawMessage) ([]DailyMetricPoint, error) {
	var envelope struct {
		Data []struct {
			Name   string `json:"name"`
			Values []struct {
				Value   json.Number `json:"value"`
				EndTime string      `json:"end_time"`
			} `json:"values"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse daily insights: %w", err)
	}

	var points []DailyMetricPoint
	for _, series := range envelope.Data {
		metric, ok := upstreamMetricNames[series.Name]
		if !ok {
			continue
		}
		for _, v := range series.Values {
			endTime, err := time.Parse(insightTimeLayout, v.EndTime)
			if err != nil {
				if endTime, err = time.Parse(time.RFC3339, v.EndTime); err != nil {
					continue
				}
			}
			value, err := v.Value.Int64()
			if err != nil {
				continue
			}
			points = append(points, DailyMetricPoint{
				Metric: metric,
				Date:   types.TruncateDay(endTime),
				Value:  value,
			})
		}
	}
	return points, nil
}
