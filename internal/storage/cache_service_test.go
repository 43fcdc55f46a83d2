package storage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insights-engine/internal/types"
)

func newTestCacheService(t *testing.T, ttl time.Duration) (*CacheService, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cache := NewRedisCacheFromClient(client)
	return NewCacheService(cache, ttl), mr
}

func TestCacheServiceRoundTrip(t *testing.T) {
	svc, _ := newTestCacheService(t, 10*time.Minute)
	ctx := context.Background()

	payload := json.RawMessage(`{"success":true,"from_cache":false}`)
	key := "insights:acct-1:2025-01-01:2025-01-07"

	require.NoError(t, svc.Set(ctx, key, payload))

	got, age, err := svc.Get(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, string(payload), string(got))
	assert.GreaterOrEqual(t, age, time.Duration(0))
	assert.Less(t, age, time.Minute)
}

func TestCacheServiceMiss(t *testing.T) {
	svc, _ := newTestCacheService(t, 10*time.Minute)

	got, age, err := svc.Get(context.Background(), "insights:missing:key")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Zero(t, age)
}

func TestCacheServiceExpiry(t *testing.T) {
	svc, mr := newTestCacheService(t, time.Minute)
	ctx := context.Background()

	key := "insights:acct-1:2025-01-01:2025-01-07"
	require.NoError(t, svc.Set(ctx, key, json.RawMessage(`{"a":1}`)))

	mr.FastForward(2 * time.Minute)

	got, _, err := svc.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCacheServiceCorruptEntryTreatedAsMiss(t *testing.T) {
	svc, mr := newTestCacheService(t, time.Minute)
	ctx := context.Background()

	key := "insights:acct-1:2025-01-01:2025-01-07"
	require.NoError(t, mr.Set(key, "not json"))

	got, _, err := svc.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)

	// The broken entry is evicted on read
	assert.False(t, mr.Exists(key))
}

func TestCacheServiceInvalidate(t *testing.T) {
	svc, _ := newTestCacheService(t, time.Minute)
	ctx := context.Background()

	key := "insights:acct-1:2025-01-01:2025-01-07"
	require.NoError(t, svc.Set(ctx, key, json.RawMessage(`{"a":1}`)))
	require.NoError(t, svc.Invalidate(ctx, key))

	got, _, err := svc.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInsightsKey(t *testing.T) {
	window := types.DateWindow{
		Since: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Until: time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC),
	}
	got := InsightsKey("acct-1", window)
	want := "insights:acct-1:2025-01-01:2025-01-07"
	if got != want {
		t.Errorf("InsightsKey() = %q, want %q", got, want)
	}
}
