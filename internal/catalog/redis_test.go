package catalog

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maktaba-app/maktaba/internal/domain"
)

func newTestRedisCache(t *testing.T, src Source) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRedisCache(client, src, time.Minute, logger), mr
}

func TestRedisCacheRoundTrip(t *testing.T) {
	src := &fakeSource{}
	cache, mr := newTestRedisCache(t, src)
	ctx := context.Background()

	first, err := cache.GetSettings(ctx, domain.TierPremium)
	require.NoError(t, err)
	assert.Equal(t, domain.TierPremium, first.TierID)
	assert.Equal(t, 1, src.fetchCount())
	assert.True(t, mr.Exists("tier_settings:premium"))

	second, err := cache.GetSettings(ctx, domain.TierPremium)
	require.NoError(t, err)
	assert.Equal(t, first.Limits, second.Limits)
	assert.Equal(t, 1, src.fetchCount(), "second read served from redis")
}

func TestRedisCacheKeysPerTier(t *testing.T) {
	src := &fakeSource{}
	cache, mr := newTestRedisCache(t, src)
	ctx := context.Background()

	_, err := cache.GetSettings(ctx, domain.TierBasic)
	require.NoError(t, err)
	_, err = cache.GetSettings(ctx, domain.TierPro)
	require.NoError(t, err)

	// Unlike the single-slot cache, tiers do not evict each other.
	_, err = cache.GetSettings(ctx, domain.TierBasic)
	require.NoError(t, err)
	assert.Equal(t, 2, src.fetchCount())
	assert.True(t, mr.Exists("tier_settings:basic"))
	assert.True(t, mr.Exists("tier_settings:pro"))
}

func TestRedisCacheClear(t *testing.T) {
	src := &fakeSource{}
	cache, mr := newTestRedisCache(t, src)
	ctx := context.Background()

	_, err := cache.GetSettings(ctx, domain.TierPro)
	require.NoError(t, err)
	require.True(t, mr.Exists("tier_settings:pro"))

	cache.Clear()
	assert.False(t, mr.Exists("tier_settings:pro"))

	_, err = cache.GetSettings(ctx, domain.TierPro)
	require.NoError(t, err)
	assert.Equal(t, 2, src.fetchCount())
}

func TestRedisCacheCorruptEntryRefetched(t *testing.T) {
	src := &fakeSource{}
	cache, mr := newTestRedisCache(t, src)
	ctx := context.Background()

	require.NoError(t, mr.Set("tier_settings:pro", "{not json"))

	settings, err := cache.GetSettings(ctx, domain.TierPro)
	require.NoError(t, err)
	assert.Equal(t, domain.TierPro, settings.TierID)
	assert.Equal(t, 1, src.fetchCount())
}

func TestRedisCacheExpiry(t *testing.T) {
	src := &fakeSource{}
	cache, mr := newTestRedisCache(t, src)
	ctx := context.Background()

	_, err := cache.GetSettings(ctx, domain.TierPro)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = cache.GetSettings(ctx, domain.TierPro)
	require.NoError(t, err)
	assert.Equal(t, 2, src.fetchCount(), "expired key refetched")
}
