package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/insights-engine/internal/models"
	"github.com/insights-engine/internal/types"
)

// ProfileSnapshotRepository handles daily profile snapshot persistence
type ProfileSnapshotRepository struct {
	db *PostgresDB
}

// NewProfileSnapshotRepository creates a new profile snapshot repository
func NewProfileSnapshotRepository(db *PostgresDB) *ProfileSnapshotRepository {
	return &ProfileSnapshotRepository{db: db}
}

// Upsert inserts or updates the snapshot for (account, date). Re-running
// a sync for the same day overwrites the earlier row instead of
// duplicating it.
func (r *ProfileSnapshotRepository) Upsert(ctx context.Context, snap *models.ProfileSnapshot) error {
	snap.SnapshotDate = types.TruncateDay(snap.SnapshotDate)

	query := `
		INSERT INTO profile_snapshots (
			account_id, snapshot_date, username, display_name,
			follower_count, following_count, media_count, picture_url, fetched_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (account_id, snapshot_date)
		DO UPDATE SET
			username = EXCLUDED.username,
			display_name = EXCLUDED.display_name,
			follower_count = EXCLUDED.follower_count,
			following_count = EXCLUDED.following_count,
			media_count = EXCLUDED.media_count,
			picture_url = EXCLUDED.picture_url,
			fetched_at = EXCLUDED.fetched_at
	`

	_, err := r.db.Pool().Exec(ctx, query,
		snap.AccountID,
		snap.SnapshotDate,
		snap.Username,
		snap.DisplayName,
		snap.FollowerCount,
		snap.FollowingCount,
		snap.MediaCount,
		snap.PictureURL,
		snap.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert profile snapshot: %w", err)
	}
	return nil
}

// Latest retrieves the most recent snapshot for an account
func (r *ProfileSnapshotRepository) Latest(ctx context.Context, accountID string) (*models.ProfileSnapshot, error) {
	query := `
		SELECT account_id, snapshot_date, username, display_name,
			   follower_count, following_count, media_count, picture_url, fetched_at
		FROM profile_snapshots
		WHERE account_id = $1
		ORDER BY snapshot_date DESC
		LIMIT 1
	`

	var snap models.ProfileSnapshot
	err := r.db.Pool().QueryRow(ctx, query, accountID).Scan(
		&snap.AccountID,
		&snap.SnapshotDate,
		&snap.Username,
		&snap.DisplayName,
		&snap.FollowerCount,
		&snap.FollowingCount,
		&snap.MediaCount,
		&snap.PictureURL,
		&snap.FetchedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest profile snapshot: %w", err)
	}
	return &snap, nil
}

// GetByDate retrieves the snapshot for one calendar day, nil when absent
func (r *ProfileSnapshotRepository) GetByDate(ctx context.Context, accountID string, date types.DateWindow) ([]*models.ProfileSnapshot, error) {
	query := `
		SELECT account_id, snapshot_date, username, display_name,
			   follower_count, following_count, media_count, picture_url, fetched_at
		FROM profile_snapshots
		WHERE account_id = $1 AND snapshot_date BETWEEN $2 AND $3
		ORDER BY snapshot_date DESC
	`

	rows, err := r.db.Pool().Query(ctx, query, accountID, date.Since, date.Until)
	if err != nil {
		return nil, fmt.Errorf("failed to list profile snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []*models.ProfileSnapshot
	for rows.Next() {
		var snap models.ProfileSnapshot
		if err := rows.Scan(
			&snap.AccountID,
			&snap.SnapshotDate,
			&snap.Username,
			&snap.DisplayName,
			&snap.FollowerCount,
			&snap.FollowingCount,
			&snap.MediaCount,
			&snap.PictureURL,
			&snap.FetchedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan profile snapshot: %w", err)
		}
		snaps = append(snaps, &snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profile snapshots: %w", err)
	}

	return snaps, nil
}
