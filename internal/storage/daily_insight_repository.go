package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/insights-engine/internal/models"
	"github.com/insights-engine/internal/types"
)

// DailyInsightRepository handles account-level daily metric persistence
type DailyInsightRepository struct {
	db *PostgresDB
}

// NewDailyInsightRepository creates a new daily insight repository
func NewDailyInsightRepository(db *PostgresDB) *DailyInsightRepository {
	return &DailyInsightRepository{db: db}
}

// Upsert merges metrics into the row for (account, date). Each metric
// column keeps its existing value when the incoming record carries null,
// so a degraded fetch that only returned reach and views does not erase
// metrics captured by an earlier full fetch.
func (r *DailyInsightRepository) Upsert(ctx context.Context, rec *models.DailyInsightRecord) error {
	rec.InsightDate = types.TruncateDay(rec.InsightDate)

	query := `
		INSERT INTO daily_insights (
			account_id, insight_date, reach, views, profile_views,
			accounts_engaged, website_clicks, contact_clicks, follower_count, fetched_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (account_id, insight_date)
		DO UPDATE SET
			reach = COALESCE(EXCLUDED.reach, daily_insights.reach),
			views = COALESCE(EXCLUDED.views, daily_insights.views),
			profile_views = COALESCE(EXCLUDED.profile_views, daily_insights.profile_views),
			accounts_engaged = COALESCE(EXCLUDED.accounts_engaged, daily_insights.accounts_engaged),
			website_clicks = COALESCE(EXCLUDED.website_clicks, daily_insights.website_clicks),
			contact_clicks = COALESCE(EXCLUDED.contact_clicks, daily_insights.contact_clicks),
			follower_count = COALESCE(EXCLUDED.follower_count, daily_insights.follower_count),
			fetched_at = EXCLUDED.fetched_at
	`

	_, err := r.db.Pool().Exec(ctx, query,
		rec.AccountID,
		rec.InsightDate,
		rec.Reach,
		rec.Views,
		rec.ProfileViews,
		rec.AccountsEngaged,
		rec.WebsiteClicks,
		rec.ContactClicks,
		rec.FollowerCount,
		rec.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert daily insight: %w", err)
	}
	return nil
}

// UpsertBatch merges a slice of records inside a single transaction
func (r *DailyInsightRepository) UpsertBatch(ctx context.Context, recs []*models.DailyInsightRecord) error {
	if len(recs) == 0 {
		return nil
	}

	query := `
		INSERT INTO daily_insights (
			account_id, insight_date, reach, views, profile_views,
			accounts_engaged, website_clicks, contact_clicks, follower_count, fetched_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (account_id, insight_date)
		DO UPDATE SET
			reach = COALESCE(EXCLUDED.reach, daily_insights.reach),
			views = COALESCE(EXCLUDED.views, daily_insights.views),
			profile_views = COALESCE(EXCLUDED.profile_views, daily_insights.profile_views),
			accounts_engaged = COALESCE(EXCLUDED.accounts_engaged, daily_insights.accounts_engaged),
			website_clicks = COALESCE(EXCLUDED.website_clicks, daily_insights.website_clicks),
			contact_clicks = COALESCE(EXCLUDED.contact_clicks, daily_insights.contact_clicks),
			follower_count = COALESCE(EXCLUDED.follower_count, daily_insights.follower_count),
			fetched_at = EXCLUDED.fetched_at
	`

	return r.db.withTx(ctx, func(tx pgx.Tx) error {
		for _, rec := range recs {
			rec.InsightDate = types.TruncateDay(rec.InsightDate)
			if _, err := tx.Exec(ctx, query,
				rec.AccountID,
				rec.InsightDate,
				rec.Reach,
				rec.Views,
				rec.ProfileViews,
				rec.AccountsEngaged,
				rec.WebsiteClicks,
				rec.ContactClicks,
				rec.FollowerCount,
				rec.FetchedAt,
			); err != nil {
				return fmt.Errorf("failed to upsert daily insight for %s: %w", rec.InsightDate.Format("2006-01-02"), err)
			}
		}
		return nil
	})
}

// ListByWindow returns the rows inside [since, until], oldest first
func (r *DailyInsightRepository) ListByWindow(ctx context.Context, accountID string, window types.DateWindow) ([]*models.DailyInsightRecord, error) {
	query := `
		SELECT account_id, insight_date, reach, views, profile_views,
			   accounts_engaged, website_clicks, contact_clicks, follower_count, fetched_at
		FROM daily_insights
		WHERE account_id = $1 AND insight_date BETWEEN $2 AND $3
		ORDER BY insight_date ASC
	`

	rows, err := r.db.Pool().Query(ctx, query, accountID, window.Since, window.Until)
	if err != nil {
		return nil, fmt.Errorf("failed to list daily insights: %w", err)
	}
	defer rows.Close()

	var recs []*models.DailyInsightRecord
	for rows.Next() {
		rec, err := scanDailyInsight(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily insights: %w", err)
	}

	return recs, nil
}

// GetLatest returns the newest row for an account, nil when none exist
func (r *DailyInsightRepository) GetLatest(ctx context.Context, accountID string) (*models.DailyInsightRecord, error) {
	query := `
		SELECT account_id, insight_date, reach, views, profile_views,
			   accounts_engaged, website_clicks, contact_clicks, follower_count, fetched_at
		FROM daily_insights
		WHERE account_id = $1
		ORDER BY insight_date DESC
		LIMIT 1
	`

	var rec models.DailyInsightRecord
	err := r.db.Pool().QueryRow(ctx, query, accountID).Scan(
		&rec.AccountID,
		&rec.InsightDate,
		&rec.Reach,
		&rec.Views,
		&rec.ProfileViews,
		&rec.AccountsEngaged,
		&rec.WebsiteClicks,
		&rec.ContactClicks,
		&rec.FollowerCount,
		&rec.FetchedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest daily insight: %w", err)
	}
	return &rec, nil
}

func scanDailyInsight(rows pgx.Rows) (*models.DailyInsightRecord, error) {
	var rec models.DailyInsightRecord
	if err := rows.Scan(
		&rec.AccountID,
		&rec.InsightDate,
		&rec.Reach,
		&rec.Views,
		&rec.ProfileViews,
		&rec.AccountsEngaged,
		&rec.WebsiteClicks,
		&rec.ContactClicks,
		&rec.FollowerCount,
		&rec.FetchedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to scan daily insight: %w", err)
	}
	return &rec, nil
}
