package models

import "time"

// SyncMetadata tracks synchronization state for one account. One row per
// account. The IsSyncing flag plus SyncStartedAt form a lease: a guard
// older than the configured lease ceiling is stale and may be reclaimed
// by the next sync, so a crashed run cannot block the account forever.
type SyncMetadata struct {
	AccountID         string     `json:"accountId" db:"account_id"`
	IsSyncing         bool       `json:"isSyncing" db:"is_syncing"`
	SyncStartedAt     *time.Time `json:"syncStartedAt,omitempty" db:"sync_started_at"`
	LastProfileSync   *time.Time `json:"lastProfileSync,omitempty" db:"last_profile_sync"`
	LastMediaSync     *time.Time `json:"lastMediaSync,omitempty" db:"last_media_sync"`
	LastDailySync     *time.Time `json:"lastDailySync,omitempty" db:"last_daily_sync"`
	LastStoriesSync   *time.Time `json:"lastStoriesSync,omitempty" db:"last_stories_sync"`
	LastError         *string    `json:"lastError,omitempty" db:"last_error"`
	MinPostDate       *time.Time `json:"minPostDate,omitempty" db:"min_post_date"`
	MaxPostDate       *time.Time `json:"maxPostDate,omitempty" db:"max_post_date"`
	UpdatedAt         time.Time  `json:"updatedAt" db:"updated_at"`
}

// LeaseExpired reports whether a held sync guard is older than maxAge
func (m *SyncMetadata) LeaseExpired(now time.Time, maxAge time.Duration) bool {
	if !m.IsSyncing {
		return false
	}
	if m.SyncStartedAt == nil {
		// Legacy row with the flag stuck on and no lease timestamp
		return true
	}
	return now.Sub(*m.SyncStartedAt) > maxAge
}
