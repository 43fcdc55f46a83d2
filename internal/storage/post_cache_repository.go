package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/insights-engine/internal/models"
)

// PostCacheRepository handles cached post persistence
type PostCacheRepository struct {
	db *PostgresDB
}

// NewPostCacheRepository creates a new post cache repository
func NewPostCacheRepository(db *PostgresDB) *PostCacheRepository {
	return &PostCacheRepository{db: db}
}

// Upsert inserts or refreshes a post keyed by its external media id.
// Engagement counters and the insights payload take the incoming values;
// a null incoming insights payload keeps the stored one so a refetch that
// failed its insights call does not erase earlier data.
func (r *PostCacheRepository) Upsert(ctx context.Context, post *models.PostCacheRecord) error {
	query := `
		INSERT INTO post_cache (
			account_id, media_id, caption, media_type, media_url, permalink,
			posted_at, like_count, comment_count, insights, insights_error, fetched_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (media_id)
		DO UPDATE SET
			caption = EXCLUDED.caption,
			media_type = EXCLUDED.media_type,
			media_url = EXCLUDED.media_url,
			permalink = EXCLUDED.permalink,
			like_count = EXCLUDED.like_count,
			comment_count = EXCLUDED.comment_count,
			insights = COALESCE(EXCLUDED.insights, post_cache.insights),
			insights_error = EXCLUDED.insights_error,
			fetched_at = EXCLUDED.fetched_at
	`

	var insights interface{}
	if len(post.Insights) > 0 {
		insights = []byte(post.Insights)
	}

	_, err := r.db.Pool().Exec(ctx, query,
		post.AccountID,
		post.MediaID,
		post.Caption,
		post.MediaType,
		post.MediaURL,
		post.Permalink,
		post.PostedAt,
		post.LikeCount,
		post.CommentCount,
		insights,
		post.InsightsError,
		post.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert post %s: %w", post.MediaID, err)
	}
	return nil
}

// SetInsightsError records a per-post insights failure without touching
// identity or engagement fields
func (r *PostCacheRepository) SetInsightsError(ctx context.Context, mediaID, message string) error {
	query := `UPDATE post_cache SET insights_error = $2 WHERE media_id = $1`
	_, err := r.db.Pool().Exec(ctx, query, mediaID, message)
	if err != nil {
		return fmt.Errorf("failed to set insights error for post %s: %w", mediaID, err)
	}
	return nil
}

// Get retrieves a single cached post by media id, nil when absent
func (r *PostCacheRepository) Get(ctx context.Context, mediaID string) (*models.PostCacheRecord, error) {
	query := `
		SELECT account_id, media_id, caption, media_type, media_url, permalink,
			   posted_at, like_count, comment_count, insights, insights_error, fetched_at
		FROM post_cache
		WHERE media_id = $1
	`

	rows, err := r.db.Pool().Query(ctx, query, mediaID)
	if err != nil {
		return nil, fmt.Errorf("failed to get post %s: %w", mediaID, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to get post %s: %w", mediaID, err)
		}
		return nil, nil
	}
	return scanPostCache(rows)
}

// ListByAccount returns the account's cached posts, newest first
func (r *PostCacheRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]*models.PostCacheRecord, error) {
	query := `
		SELECT account_id, media_id, caption, media_type, media_url, permalink,
			   posted_at, like_count, comment_count, insights, insights_error, fetched_at
		FROM post_cache
		WHERE account_id = $1
		ORDER BY posted_at DESC
		LIMIT $2
	`

	rows, err := r.db.Pool().Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	var posts []*models.PostCacheRecord
	for rows.Next() {
		post, err := scanPostCache(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating posts: %w", err)
	}

	return posts, nil
}

// PostDateBounds returns the oldest and newest posted_at for an account.
// Both are nil when the account has no cached posts.
func (r *PostCacheRepository) PostDateBounds(ctx context.Context, accountID string) (oldest, newest *models.PostCacheRecord, err error) {
	query := `
		SELECT account_id, media_id, caption, media_type, media_url, permalink,
			   posted_at, like_count, comment_count, insights, insights_error, fetched_at
		FROM post_cache
		WHERE account_id = $1
		ORDER BY posted_at %s
		LIMIT 1
	`

	oldest, err = r.queryOne(ctx, fmt.Sprintf(query, "ASC"), accountID)
	if err != nil {
		return nil, nil, err
	}
	newest, err = r.queryOne(ctx, fmt.Sprintf(query, "DESC"), accountID)
	if err != nil {
		return nil, nil, err
	}
	return oldest, newest, nil
}

func (r *PostCacheRepository) queryOne(ctx context.Context, query, accountID string) (*models.PostCacheRecord, error) {
	rows, err := r.db.Pool().Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query post: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to query post: %w", err)
		}
		return nil, nil
	}
	return scanPostCache(rows)
}

func scanPostCache(rows pgx.Rows) (*models.PostCacheRecord, error) {
	var post models.PostCacheRecord
	var insights []byte
	if err := rows.Scan(
		&post.AccountID,
		&post.MediaID,
		&post.Caption,
		&post.MediaType,
		&post.MediaURL,
		&post.Permalink,
		&post.PostedAt,
		&post.LikeCount,
		&post.CommentCount,
		&insights,
		&post.InsightsError,
		&post.FetchedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to scan post: %w", err)
	}
	if len(insights) > 0 {
		post.Insights = insights
	}
	return &post, nil
}
