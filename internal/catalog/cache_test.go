package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maktaba-app/maktaba/internal/domain"
)

// fakeSource serves canned settings and counts fetches.
type fakeSource struct {
	mu      sync.Mutex
	fetches int
	err     error
}

func (f *fakeSource) GetSettings(_ context.Context, tier domain.TierID) (*domain.TierSettings, error) {
	f.mu.Lock()
	f.fetches++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	settings, ok := domain.DefaultTierSettings[tier]
	if !ok {
		return nil, domain.NotFound("fakeSource.GetSettings", "tier settings", string(tier))
	}
	return &settings, nil
}

func (f *fakeSource) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func TestCacheServesFromSlot(t *testing.T) {
	src := &fakeSource{}
	cache := NewCache(src)
	ctx := context.Background()

	first, err := cache.GetSettings(ctx, domain.TierPro)
	require.NoError(t, err)
	assert.Equal(t, domain.TierPro, first.TierID)

	second, err := cache.GetSettings(ctx, domain.TierPro)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, src.fetchCount())
}

func TestCacheTierSwitchEvictsSlot(t *testing.T) {
	src := &fakeSource{}
	cache := NewCache(src)
	ctx := context.Background()

	_, err := cache.GetSettings(ctx, domain.TierBasic)
	require.NoError(t, err)
	_, err = cache.GetSettings(ctx, domain.TierPro)
	require.NoError(t, err)
	assert.Equal(t, 2, src.fetchCount())

	// Going back to the first tier refetches: the slot only holds one.
	_, err = cache.GetSettings(ctx, domain.TierBasic)
	require.NoError(t, err)
	assert.Equal(t, 3, src.fetchCount())
}

func TestCacheExpiresAfterFreshness(t *testing.T) {
	src := &fakeSource{}
	now := time.Now()
	cache := NewCache(src, withClock(func() time.Time { return now }))
	ctx := context.Background()

	_, err := cache.GetSettings(ctx, domain.TierPro)
	require.NoError(t, err)

	now = now.Add(DefaultFreshness - time.Second)
	_, err = cache.GetSettings(ctx, domain.TierPro)
	require.NoError(t, err)
	assert.Equal(t, 1, src.fetchCount(), "still fresh")

	now = now.Add(2 * time.Second)
	_, err = cache.GetSettings(ctx, domain.TierPro)
	require.NoError(t, err)
	assert.Equal(t, 2, src.fetchCount(), "stale entry refetched")
}

func TestCacheClear(t *testing.T) {
	src := &fakeSource{}
	cache := NewCache(src)
	ctx := context.Background()

	_, err := cache.GetSettings(ctx, domain.TierPro)
	require.NoError(t, err)

	cache.Clear()

	_, err = cache.GetSettings(ctx, domain.TierPro)
	require.NoError(t, err)
	assert.Equal(t, 2, src.fetchCount())
}

func TestCacheDoesNotCacheFailures(t *testing.T) {
	src := &fakeSource{err: errors.New("connection refused")}
	cache := NewCache(src)
	ctx := context.Background()

	_, err := cache.GetSettings(ctx, domain.TierPro)
	require.Error(t, err)
	_, err = cache.GetSettings(ctx, domain.TierPro)
	require.Error(t, err)
	assert.Equal(t, 2, src.fetchCount(), "failures must not occupy the slot")

	// Once the source recovers, the next request succeeds and is cached.
	src.mu.Lock()
	src.err = nil
	src.mu.Unlock()

	_, err = cache.GetSettings(ctx, domain.TierPro)
	require.NoError(t, err)
	_, err = cache.GetSettings(ctx, domain.TierPro)
	require.NoError(t, err)
	assert.Equal(t, 3, src.fetchCount())
}
