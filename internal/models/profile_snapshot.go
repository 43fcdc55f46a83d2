package models

import "time"

// ProfileSnapshot represents the account profile as observed on one
// calendar day. At most one row exists per (account, date).
type ProfileSnapshot struct {
	AccountID      string    `json:"accountId" db:"account_id"`
	SnapshotDate   time.Time `json:"snapshotDate" db:"snapshot_date"`
	Username       string    `json:"username" db:"username"`
	DisplayName    string    `json:"displayName" db:"display_name"`
	FollowerCount  int64     `json:"followerCount" db:"follower_count"`
	FollowingCount int64     `json:"followingCount" db:"following_count"`
	MediaCount     int64     `json:"mediaCount" db:"media_count"`
	PictureURL     string    `json:"pictureUrl" db:"picture_url"`
	FetchedAt      time.Time `json:"fetchedAt" db:"fetched_at"`
}
