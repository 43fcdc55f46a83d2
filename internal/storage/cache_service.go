package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/insights-engine/internal/logging"
	"github.com/insights-engine/internal/types"
)

// CacheService layers a JSON response cache on top of Redis. Identical
// insight queries inside the TTL are served from here; the stored
// envelope carries the write time so the API can report cache age
// honestly.
type CacheService struct {
	cache *RedisCache
	ttl   time.Duration
}

// cachedEnvelope wraps a cached payload with its write timestamp
type cachedEnvelope struct {
	CachedAt time.Time       `json:"cachedAt"`
	Payload  json.RawMessage `json:"payload"`
}

// NewCacheService creates a response cache with the given entry TTL
func NewCacheService(cache *RedisCache, ttl time.Duration) *CacheService {
	return &CacheService{cache: cache, ttl: ttl}
}

// InsightsKey builds the cache key for one insight query. force requests
// share the key with normal ones so a forced refresh repopulates the
// same entry.
func InsightsKey(accountID string, window types.DateWindow) string {
	return fmt.Sprintf("insights:%s:%s:%s",
		accountID,
		window.Since.Format("2006-01-02"),
		window.Until.Format("2006-01-02"),
	)
}

// Get returns the cached payload and its age. A miss returns (nil, 0, nil).
func (s *CacheService) Get(ctx context.Context, key string) (json.RawMessage, time.Duration, error) {
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if IsNil(err) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("failed to read cache key %s: %w", key, err)
	}

	var env cachedEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		// A corrupt entry is treated as a miss and evicted
		logging.FromContext(ctx).WithField("key", key).WithError(err).
			Warn("evicting unreadable cache entry")
		_ = s.cache.Del(ctx, key)
		return nil, 0, nil
	}

	return env.Payload, time.Since(env.CachedAt), nil
}

// Set stores a payload under the key with the service TTL
func (s *CacheService) Set(ctx context.Context, key string, payload json.RawMessage) error {
	env := cachedEnvelope{
		CachedAt: time.Now().UTC(),
		Payload:  payload,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal cache envelope: %w", err)
	}
	if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
		return fmt.Errorf("failed to write cache key %s: %w", key, err)
	}
	return nil
}

// Invalidate drops the cached entries for an account's query keys
func (s *CacheService) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.cache.Del(ctx, keys...); err != nil {
		return fmt.Errorf("failed to invalidate cache keys: %w", err)
	}
	return nil
}
