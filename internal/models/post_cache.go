package models

import (
	"encoding/json"
	"time"

	"github.com/insights-engine/internal/types"
)

// PostCacheRecord represents one cached post, keyed by the external media
// id. Identity is immutable; engagement counters and the raw insights
// payload are overwritten on every refetch. Rows accumulate indefinitely.
type PostCacheRecord struct {
	AccountID     string          `json:"accountId" db:"account_id"`
	MediaID       string          `json:"mediaId" db:"media_id"`
	Caption       string          `json:"caption" db:"caption"`
	MediaType     types.MediaType `json:"mediaType" db:"media_type"`
	MediaURL      string          `json:"mediaUrl" db:"media_url"`
	Permalink     string          `json:"permalink" db:"permalink"`
	PostedAt      time.Time       `json:"postedAt" db:"posted_at"`
	LikeCount     int64           `json:"likeCount" db:"like_count"`
	CommentCount  int64           `json:"commentCount" db:"comment_count"`
	Insights      json.RawMessage `json:"insights,omitempty" db:"insights"`
	InsightsError *string         `json:"_error,omitempty" db:"insights_error"`
	FetchedAt     time.Time       `json:"fetchedAt" db:"fetched_at"`
}
