package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/insights-engine/internal/logging"
	"github.com/insights-engine/internal/models"
	"github.com/insights-engine/internal/storage"
	"github.com/insights-engine/internal/types"
)

type accountGetter interface {
	Get(ctx context.Context, id string) (*models.Account, error)
}

type profileReader interface {
	Latest(ctx context.Context, accountID string) (*models.ProfileSnapshot, error)
}

type postLister interface {
	ListByAccount(ctx context.Context, accountID string, limit int) ([]*models.PostCacheRecord, error)
}

// InsightsResponse is the consumer-facing payload for one insight query
type InsightsResponse struct {
	Success               bool                               `json:"success"`
	FromCache             bool                               `json:"from_cache"`
	CacheAgeHours         float64                            `json:"cache_age_hours"`
	DurationMs            int64                              `json:"duration_ms"`
	Window                types.DateWindow                   `json:"window"`
	Profile               *models.ProfileSnapshot            `json:"profile"`
	Posts                 []*models.PostCacheRecord          `json:"posts"`
	DailyInsights         []*models.DailyInsightRecord       `json:"daily_insights"`
	PreviousDailyInsights []*models.DailyInsightRecord       `json:"previous_daily_insights"`
	ConsolidatedCurrent   map[string]int64                   `json:"consolidated_current"`
	ConsolidatedPrevious  map[string]int64                   `json:"consolidated_previous"`
	ComparisonMetrics     map[string]models.ComparisonResult `json:"comparison_metrics"`
	Coverage              WindowCoverage                     `json:"coverage"`
	Demographics          json.RawMessage                    `json:"demographics"`
	Messages              []string                           `json:"messages"`
}

// InsightsService answers the main insight query: gate on freshness, sync
// when stale, then consolidate and compare. A Redis response cache
// short-circuits identical queries inside its TTL.
type InsightsService struct {
	accounts   accountGetter
	profiles   profileReader
	posts      postLister
	daily      dailyWindowLister
	sync       *SyncService
	comparison *ComparisonService
	freshness  *FreshnessPolicy
	cache      *storage.CacheService

	postsLimit int
}

// NewInsightsService wires the query path from its collaborators. cache
// may be nil, which disables response caching.
func NewInsightsService(
	accounts accountGetter,
	profiles profileReader,
	posts postLister,
	daily dailyWindowLister,
	sync *SyncService,
	comparison *ComparisonService,
	freshness *FreshnessPolicy,
	cache *storage.CacheService,
) *InsightsService {
	return &InsightsService{
		accounts:   accounts,
		profiles:   profiles,
		posts:      posts,
		daily:      daily,
		sync:       sync,
		comparison: comparison,
		freshness:  freshness,
		cache:      cache,
		postsLimit: 25,
	}
}

// GetInsights runs the engine's main operation for one account and window
func (s *InsightsService) GetInsights(ctx context.Context, accountID string, window types.DateWindow, force bool) (*InsightsResponse, error) {
	start := time.Now()
	log := logging.FromContext(ctx).WithField("account_id", accountID)

	if !force {
		if resp := s.fromResponseCache(ctx, accountID, window, start); resp != nil {
			return resp, nil
		}
	}

	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}

	rows, err := s.daily.ListByWindow(ctx, accountID, window)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily rows: %w", err)
	}

	var messages []string
	var demographics json.RawMessage

	decision := s.freshness.DecideWindow(window, start.UTC(), newestFetchTime(rows), len(rows), force)
	if decision == Refetch {
		result, err := s.sync.Run(ctx, account, window)
		switch {
		case errors.Is(err, ErrSyncInProgress):
			messages = append(messages, "a sync is already running for this account; serving stored data")
		case err != nil:
			return nil, err
		default:
			messages = append(messages, result.Messages...)
			demographics = result.Demographics
		}
	} else {
		log.WithField("decision", decision.String()).Debug("serving stored data without refetch")
	}

	comparison, err := s.comparison.Compare(ctx, accountID, window)
	if err != nil {
		return nil, err
	}

	profile, err := s.profiles.Latest(ctx, accountID)
	if err != nil {
		log.WithError(err).Warn("profile lookup failed")
		messages = append(messages, fmt.Sprintf("profile unavailable: %v", err))
	}
	posts, err := s.posts.ListByAccount(ctx, accountID, s.postsLimit)
	if err != nil {
		log.WithError(err).Warn("post listing failed")
		messages = append(messages, fmt.Sprintf("posts unavailable: %v", err))
	}

	resp := &InsightsResponse{
		Success:               true,
		FromCache:             false,
		Window:                window,
		Profile:               profile,
		Posts:                 posts,
		DailyInsights:         comparison.Current.Daily,
		PreviousDailyInsights: comparison.Previous.Daily,
		ConsolidatedCurrent:   comparison.Current.Totals,
		ConsolidatedPrevious:  comparison.Previous.Totals,
		ComparisonMetrics:     comparison.Metrics,
		Coverage:              comparison.Current.Coverage,
		Demographics:          demographics,
		Messages:              messages,
	}
	if resp.Messages == nil {
		resp.Messages = []string{}
	}

	s.storeResponseCache(ctx, accountID, window, resp)
	resp.DurationMs = time.Since(start).Milliseconds()
	return resp, nil
}

// fromResponseCache returns a cached response when one exists, nil otherwise
func (s *InsightsService) fromResponseCache(ctx context.Context, accountID string, window types.DateWindow, start time.Time) *InsightsResponse {
	if s.cache == nil {
		return nil
	}

	payload, age, err := s.cache.Get(ctx, storage.InsightsKey(accountID, window))
	if err != nil {
		logging.FromContext(ctx).WithError(err).Warn("response cache read failed")
		return nil
	}
	if payload == nil {
		return nil
	}

	var resp InsightsResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("response cache entry unreadable")
		return nil
	}

	resp.FromCache = true
	resp.CacheAgeHours = age.Hours()
	resp.DurationMs = time.Since(start).Milliseconds()
	return &resp
}

func (s *InsightsService) storeResponseCache(ctx context.Context, accountID string, window types.DateWindow, resp *InsightsResponse) {
	if s.cache == nil {
		return
	}

	payload, err := json.Marshal(resp)
	if err != nil {
		logging.FromContext(ctx).WithError(err).Warn("response cache marshal failed")
		return
	}
	if err := s.cache.Set(ctx, storage.InsightsKey(accountID, window), payload); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("response cache write failed")
	}
}

func newestFetchTime(rows []*models.DailyInsightRecord) *time.Time {
	var newest *time.Time
	for _, row := range rows {
		t := row.FetchedAt
		if newest == nil || t.After(*newest) {
			newest = &t
		}
	}
	return newest
}
