package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/insights-engine/internal/models"
	"github.com/insights-engine/internal/types"
)

// SyncMetadataRepository handles per-account sync state persistence
type SyncMetadataRepository struct {
	db *PostgresDB
}

// NewSyncMetadataRepository creates a new sync metadata repository
func NewSyncMetadataRepository(db *PostgresDB) *SyncMetadataRepository {
	return &SyncMetadataRepository{db: db}
}

// Get retrieves the sync state for an account, nil when no row exists yet
func (r *SyncMetadataRepository) Get(ctx context.Context, accountID string) (*models.SyncMetadata, error) {
	query := `
		SELECT account_id, is_syncing, sync_started_at,
			   last_profile_sync, last_media_sync, last_daily_sync, last_stories_sync,
			   last_error, min_post_date, max_post_date, updated_at
		FROM sync_metadata
		WHERE account_id = $1
	`

	var meta models.SyncMetadata
	err := r.db.Pool().QueryRow(ctx, query, accountID).Scan(
		&meta.AccountID,
		&meta.IsSyncing,
		&meta.SyncStartedAt,
		&meta.LastProfileSync,
		&meta.LastMediaSync,
		&meta.LastDailySync,
		&meta.LastStoriesSync,
		&meta.LastError,
		&meta.MinPostDate,
		&meta.MaxPostDate,
		&meta.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get sync metadata: %w", err)
	}
	return &meta, nil
}

// TryAcquireLease atomically claims the sync guard for an account. It
// succeeds when no guard is held, or when the held guard started more
// than maxAge ago and is therefore stale. Returns false when another
// live sync holds the guard.
func (r *SyncMetadataRepository) TryAcquireLease(ctx context.Context, accountID string, now time.Time, maxAge time.Duration) (bool, error) {
	query := `
		INSERT INTO sync_metadata (account_id, is_syncing, sync_started_at, updated_at)
		VALUES ($1, TRUE, $2, $2)
		ON CONFLICT (account_id)
		DO UPDATE SET
			is_syncing = TRUE,
			sync_started_at = $2,
			updated_at = $2
		WHERE sync_metadata.is_syncing = FALSE
		   OR sync_metadata.sync_started_at IS NULL
		   OR sync_metadata.sync_started_at < $3
	`

	tag, err := r.db.Pool().Exec(ctx, query, accountID, now, now.Add(-maxAge))
	if err != nil {
		return false, fmt.Errorf("failed to acquire sync lease: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ReleaseLease clears the sync guard and records the run outcome. A nil
// syncErr clears any previous error.
func (r *SyncMetadataRepository) ReleaseLease(ctx context.Context, accountID string, syncErr error) error {
	var lastError *string
	if syncErr != nil {
		msg := syncErr.Error()
		lastError = &msg
	}

	query := `
		UPDATE sync_metadata
		SET is_syncing = FALSE,
			sync_started_at = NULL,
			last_error = $2,
			updated_at = $3
		WHERE account_id = $1
	`

	_, err := r.db.Pool().Exec(ctx, query, accountID, lastError, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to release sync lease: %w", err)
	}
	return nil
}

// MarkCategorySynced stamps the completion time for one sync category
func (r *SyncMetadataRepository) MarkCategorySynced(ctx context.Context, accountID string, category types.SyncCategory, at time.Time) error {
	var column string
	switch category {
	case types.CategoryProfile:
		column = "last_profile_sync"
	case types.CategoryMedia:
		column = "last_media_sync"
	case types.CategoryDaily:
		column = "last_daily_sync"
	case types.CategoryStories:
		column = "last_stories_sync"
	default:
		return fmt.Errorf("unknown sync category: %s", category)
	}

	query := fmt.Sprintf(`
		UPDATE sync_metadata
		SET %s = $2, updated_at = $3
		WHERE account_id = $1
	`, column)

	_, err := r.db.Pool().Exec(ctx, query, accountID, at, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to mark %s synced: %w", category, err)
	}
	return nil
}

// UpdatePostDateBounds widens the observed min and max post dates. The
// stored bounds only ever grow outward.
func (r *SyncMetadataRepository) UpdatePostDateBounds(ctx context.Context, accountID string, oldest, newest time.Time) error {
	query := `
		UPDATE sync_metadata
		SET min_post_date = LEAST(COALESCE(min_post_date, $2), $2),
			max_post_date = GREATEST(COALESCE(max_post_date, $3), $3),
			updated_at = $4
		WHERE account_id = $1
	`

	_, err := r.db.Pool().Exec(ctx, query, accountID, oldest, newest, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update post date bounds: %w", err)
	}
	return nil
}
