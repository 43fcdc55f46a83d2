package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/insights-engine/internal/adapter"
	"github.com/insights-engine/internal/config"
	"github.com/insights-engine/internal/credential"
	"github.com/insights-engine/internal/logging"
	"github.com/insights-engine/internal/models"
	"github.com/insights-engine/internal/types"
)

// ErrSyncInProgress is returned when another live sync holds the
// account's lease. Callers should treat it as advisory and serve what
// they have.
var ErrSyncInProgress = errors.New("sync already in progress for account")

// GraphAPI is the slice of the upstream client the orchestrator needs.
// Satisfied by adapter.GraphClient; tests substitute a mock.
type GraphAPI interface {
	FetchProfile(ctx context.Context, token string, family types.TokenFamily, businessID string) (*adapter.ProfilePayload, error)
	FetchMedia(ctx context.Context, token string, family types.TokenFamily, businessID string) ([]adapter.MediaItem, error)
	FetchMediaInsights(ctx context.Context, token string, family types.TokenFamily, mediaID string, mediaType types.MediaType) (json.RawMessage, error)
	FetchDailyInsights(ctx context.Context, token string, family types.TokenFamily, businessID string, window types.DateWindow) ([]adapter.DailyMetricPoint, error)
	FetchStories(ctx context.Context, token string, family types.TokenFamily, businessID string) ([]adapter.MediaItem, error)
	FetchStoryInsights(ctx context.Context, token string, family types.TokenFamily, storyID string) (json.RawMessage, error)
	FetchDemographics(ctx context.Context, token string, family types.TokenFamily, businessID string) (json.RawMessage, error)
}

type profileStore interface {
	Upsert(ctx context.Context, snap *models.ProfileSnapshot) error
}

type dailyStore interface {
	Upsert(ctx context.Context, rec *models.DailyInsightRecord) error
	UpsertBatch(ctx context.Context, recs []*models.DailyInsightRecord) error
}

type postStore interface {
	Upsert(ctx context.Context, post *models.PostCacheRecord) error
	SetInsightsError(ctx context.Context, mediaID, message string) error
}

type metadataStore interface {
	TryAcquireLease(ctx context.Context, accountID string, now time.Time, maxAge time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, accountID string, syncErr error) error
	MarkCategorySynced(ctx context.Context, accountID string, category types.SyncCategory, at time.Time) error
	UpdatePostDateBounds(ctx context.Context, accountID string, oldest, newest time.Time) error
}

// SyncResult reports what one sync run accomplished. Per-category
// failures land in Messages; only account or credential problems abort
// the run entirely.
type SyncResult struct {
	Profile      *models.ProfileSnapshot `json:"profile,omitempty"`
	PostCount    int                     `json:"postCount"`
	DailyDays    int                     `json:"dailyDays"`
	StoryCount   int                     `json:"storyCount"`
	Demographics json.RawMessage         `json:"demographics,omitempty"`
	Messages     []string                `json:"messages,omitempty"`
	Duration     time.Duration           `json:"-"`
}

// SyncService drives a full account refresh: profile, media, per-post
// insights, daily account metrics, stories, followers backfill and
// demographics, in that order.
type SyncService struct {
	client   GraphAPI
	resolver *credential.Resolver
	sanity   *SanityFilter

	profiles profileStore
	daily    dailyStore
	posts    postStore
	metadata metadataStore

	insightsConcurrency int
	storiesWindowDays   int
	leaseMaxAge         time.Duration
}

// NewSyncService wires the orchestrator from its collaborators
func NewSyncService(
	client GraphAPI,
	resolver *credential.Resolver,
	sanity *SanityFilter,
	profiles profileStore,
	daily dailyStore,
	posts postStore,
	metadata metadataStore,
	cfg *config.SyncConfig,
) *SyncService {
	return &SyncService{
		client:              client,
		resolver:            resolver,
		sanity:              sanity,
		profiles:            profiles,
		daily:               daily,
		posts:               posts,
		metadata:            metadata,
		insightsConcurrency: cfg.InsightsConcurrency,
		storiesWindowDays:   cfg.StoriesWindowDays,
		leaseMaxAge:         cfg.LeaseMaxAge,
	}
}

// Run executes a full sync for the account over the requested window.
// Returns ErrSyncInProgress when another live run holds the lease.
func (s *SyncService) Run(ctx context.Context, account *models.Account, window types.DateWindow) (*SyncResult, error) {
	if account == nil {
		return nil, &types.ServiceError{Code: "account_not_found", Message: "account not found"}
	}

	log := logging.FromContext(ctx).WithField("account_id", account.ID)
	start := time.Now()

	token, family, err := s.resolver.Resolve(account.Credential)
	if err != nil {
		return nil, &types.ServiceError{
			Code:    "credential_error",
			Message: fmt.Sprintf("failed to resolve credential: %v", err),
		}
	}
	if account.Provider != "" && family != types.FamilyUnknown && family != account.Provider {
		return nil, &types.ServiceError{
			Code:    "wrong_dashboard",
			Message: fmt.Sprintf("credential belongs to the %s dashboard, account is registered as %s", family, account.Provider),
		}
	}

	acquired, err := s.metadata.TryAcquireLease(ctx, account.ID, start.UTC(), s.leaseMaxAge)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire sync lease: %w", err)
	}
	if !acquired {
		return nil, ErrSyncInProgress
	}

	result := &SyncResult{}
	var runErr error
	defer func() {
		if err := s.metadata.ReleaseLease(ctx, account.ID, runErr); err != nil {
			log.WithError(err).Error("failed to release sync lease")
		}
	}()

	profile := s.syncProfile(ctx, account, token, family, result)
	s.syncMedia(ctx, account, token, family, result)
	s.syncDaily(ctx, account, token, family, window, result)
	s.syncStories(ctx, account, token, family, result)
	s.backfillFollowers(ctx, account, profile, window, result)
	s.syncDemographics(ctx, account, token, family, result)

	if len(result.Messages) > 0 {
		runErr = errors.New(result.Messages[len(result.Messages)-1])
	}

	result.Duration = time.Since(start)
	log.WithFields(map[string]interface{}{
		"posts":       result.PostCount,
		"daily_days":  result.DailyDays,
		"stories":     result.StoryCount,
		"messages":    len(result.Messages),
		"duration_ms": result.Duration.Milliseconds(),
	}).Info("sync completed")

	return result, nil
}

func (s *SyncService) syncProfile(ctx context.Context, account *models.Account, token string, family types.TokenFamily, result *SyncResult) *adapter.ProfilePayload {
	log := logging.FromContext(ctx).WithField("account_id", account.ID)

	payload, err := s.client.FetchProfile(ctx, token, family, account.BusinessID)
	if err != nil {
		log.WithError(err).Warn("profile fetch failed")
		result.Messages = append(result.Messages, fmt.Sprintf("profile unavailable: %v", err))
		return nil
	}

	now := time.Now().UTC()
	snap := &models.ProfileSnapshot{
		AccountID:      account.ID,
		SnapshotDate:   types.TruncateDay(now),
		Username:       payload.Username,
		DisplayName:    payload.Name,
		FollowerCount:  payload.FollowersCount,
		FollowingCount: payload.FollowsCount,
		MediaCount:     payload.MediaCount,
		PictureURL:     payload.ProfilePictureURL,
		FetchedAt:      now,
	}
	if err := s.profiles.Upsert(ctx, snap); err != nil {
		log.WithError(err).Error("profile snapshot upsert failed")
		result.Messages = append(result.Messages, fmt.Sprintf("profile not persisted: %v", err))
		return payload
	}

	s.markSynced(ctx, account.ID, types.CategoryProfile)
	result.Profile = snap
	return payload
}

func (s *SyncService) syncMedia(ctx context.Context, account *models.Account, token string, family types.TokenFamily, result *SyncResult) {
	log := logging.FromContext(ctx).WithField("account_id", account.ID)

	items, err := s.client.FetchMedia(ctx, token, family, account.BusinessID)
	if err != nil {
		log.WithError(err).Warn("media fetch failed")
		result.Messages = append(result.Messages, fmt.Sprintf("posts unavailable: %v", err))
		return
	}
	if len(items) == 0 {
		s.markSynced(ctx, account.ID, types.CategoryMedia)
		return
	}

	now := time.Now().UTC()
	records := make([]*models.PostCacheRecord, len(items))
	for i, item := range items {
		records[i] = &models.PostCacheRecord{
			AccountID:    account.ID,
			MediaID:      item.ID,
			Caption:      item.Caption,
			MediaType:    item.MediaType,
			MediaURL:     item.MediaURL,
			Permalink:    item.Permalink,
			PostedAt:     item.PostedAt(),
			LikeCount:    item.LikeCount,
			CommentCount: item.CommentsCount,
			FetchedAt:    now,
		}
	}

	s.fetchPostInsights(ctx, token, family, items, records)

	var oldest, newest time.Time
	for _, rec := range records {
		if err := s.posts.Upsert(ctx, rec); err != nil {
			log.WithError(err).WithField("media_id", rec.MediaID).Error("post upsert failed")
			continue
		}
		result.PostCount++
		if rec.PostedAt.IsZero() {
			continue
		}
		if oldest.IsZero() || rec.PostedAt.Before(oldest) {
			oldest = rec.PostedAt
		}
		if newest.IsZero() || rec.PostedAt.After(newest) {
			newest = rec.PostedAt
		}
	}

	if !oldest.IsZero() {
		if err := s.metadata.UpdatePostDateBounds(ctx, account.ID, oldest, newest); err != nil {
			log.WithError(err).Warn("post date bounds update failed")
		}
	}
	s.markSynced(ctx, account.ID, types.CategoryMedia)
}

// fetchPostInsights runs the per-post insight calls in bounded parallel
// batches. A failed call is recorded inline on the record rather than
// dropping the post.
func (s *SyncService) fetchPostInsights(ctx context.Context, token string, family types.TokenFamily, items []adapter.MediaItem, records []*models.PostCacheRecord) {
	concurrency := s.insightsConcurrency
	if concurrency < 1 {
		concurrency = 1
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i := range items {
		if !adapter.InsightsCapable(items[i].MediaType) {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			insights, err := s.client.FetchMediaInsights(ctx, token, family, items[i].ID, items[i].MediaType)
			if err != nil {
				msg := err.Error()
				records[i].InsightsError = &msg
				return
			}
			records[i].Insights = insights
		}(i)
	}
	wg.Wait()
}

func (s *SyncService) syncDaily(ctx context.Context, account *models.Account, token string, family types.TokenFamily, window types.DateWindow, result *SyncResult) {
	log := logging.FromContext(ctx).WithField("account_id", account.ID)

	points, err := s.client.FetchDailyInsights(ctx, token, family, account.BusinessID, window)
	if err != nil {
		log.WithError(err).Warn("daily insights fetch failed")
		result.Messages = append(result.Messages, fmt.Sprintf("daily insights unavailable: %v", err))
		return
	}

	now := time.Now().UTC()
	byDate := make(map[time.Time]*models.DailyInsightRecord)
	for _, p := range points {
		day := types.TruncateDay(p.Date)
		if !window.Contains(day) {
			continue
		}
		rec, ok := byDate[day]
		if !ok {
			rec = &models.DailyInsightRecord{
				AccountID:   account.ID,
				InsightDate: day,
				FetchedAt:   now,
			}
			byDate[day] = rec
		}
		rec.SetMetric(p.Metric, p.Value)
	}

	recs := make([]*models.DailyInsightRecord, 0, len(byDate))
	for _, rec := range byDate {
		s.sanity.Apply(ctx, rec)
		recs = append(recs, rec)
	}

	if err := s.daily.UpsertBatch(ctx, recs); err != nil {
		log.WithError(err).Error("daily insights upsert failed")
		result.Messages = append(result.Messages, fmt.Sprintf("daily insights not persisted: %v", err))
		return
	}

	result.DailyDays = len(recs)
	s.markSynced(ctx, account.ID, types.CategoryDaily)
}

// syncStories fetches the ephemeral stories. Upstream retains story data
// briefly, so only stories inside the trailing window are kept.
func (s *SyncService) syncStories(ctx context.Context, account *models.Account, token string, family types.TokenFamily, result *SyncResult) {
	log := logging.FromContext(ctx).WithField("account_id", account.ID)

	items, err := s.client.FetchStories(ctx, token, family, account.BusinessID)
	if err != nil {
		log.WithError(err).Warn("stories fetch failed")
		result.Messages = append(result.Messages, fmt.Sprintf("stories unavailable: %v", err))
		return
	}

	now := time.Now().UTC()
	cutoff := now.AddDate(0, 0, -s.storiesWindowDays)

	for _, item := range items {
		postedAt := item.PostedAt()
		if !postedAt.IsZero() && postedAt.Before(cutoff) {
			continue
		}

		rec := &models.PostCacheRecord{
			AccountID: account.ID,
			MediaID:   item.ID,
			Caption:   item.Caption,
			MediaType: types.MediaStory,
			MediaURL:  item.MediaURL,
			Permalink: item.Permalink,
			PostedAt:  postedAt,
			FetchedAt: now,
		}

		insights, err := s.client.FetchStoryInsights(ctx, token, family, item.ID)
		if err != nil {
			msg := err.Error()
			rec.InsightsError = &msg
		} else {
			rec.Insights = insights
		}

		if err := s.posts.Upsert(ctx, rec); err != nil {
			log.WithError(err).WithField("media_id", item.ID).Error("story upsert failed")
			continue
		}
		result.StoryCount++
	}

	s.markSynced(ctx, account.ID, types.CategoryStories)
}

// backfillFollowers writes the profile follower count onto the newest
// daily row of the window. The daily insights resource does not expose
// follower_count; the profile fetch is the only source for it.
func (s *SyncService) backfillFollowers(ctx context.Context, account *models.Account, profile *adapter.ProfilePayload, window types.DateWindow, result *SyncResult) {
	if profile == nil {
		return
	}

	now := time.Now().UTC()
	day := window.Until
	if day.After(types.TruncateDay(now)) {
		day = types.TruncateDay(now)
	}

	rec := &models.DailyInsightRecord{
		AccountID:   account.ID,
		InsightDate: day,
		FetchedAt:   now,
	}
	rec.SetMetric(types.MetricFollowerCount, profile.FollowersCount)
	s.sanity.Apply(ctx, rec)

	if err := s.daily.Upsert(ctx, rec); err != nil {
		logging.FromContext(ctx).WithError(err).WithField("account_id", account.ID).
			Warn("followers backfill failed")
		result.Messages = append(result.Messages, fmt.Sprintf("follower count not persisted: %v", err))
	}
}

func (s *SyncService) syncDemographics(ctx context.Context, account *models.Account, token string, family types.TokenFamily, result *SyncResult) {
	payload, err := s.client.FetchDemographics(ctx, token, family, account.BusinessID)
	if err != nil {
		logging.FromContext(ctx).WithError(err).WithField("account_id", account.ID).
			Warn("demographics fetch failed")
		result.Messages = append(result.Messages, fmt.Sprintf("demographics unavailable: %v", err))
		return
	}
	result.Demographics = payload
}

func (s *SyncService) markSynced(ctx context.Context, accountID string, category types.SyncCategory) {
	if err := s.metadata.MarkCategorySynced(ctx, accountID, category, time.Now().UTC()); err != nil {
		logging.FromContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"account_id": accountID,
			"category":   category,
		}).Warn("failed to stamp category sync time")
	}
}
