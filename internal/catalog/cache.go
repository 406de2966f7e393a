package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/maktaba-app/maktaba/internal/domain"
	"github.com/maktaba-app/maktaba/internal/metrics"
)

const (
	// DefaultFreshness is how long a cached settings bundle is served
	// before the next request refetches it.
	DefaultFreshness = 5 * time.Minute

	// DefaultFetchTimeout bounds a single settings fetch so a slow
	// database cannot stall entitlement checks indefinitely.
	DefaultFetchTimeout = 5 * time.Second
)

// Clearer invalidates cached settings. Both cache implementations
// satisfy it; the subscription service calls it after tier changes.
type Clearer interface {
	Clear()
}

// Cache is a single-slot settings cache. It holds the bundle of the
// most-recently-requested tier; requesting a different tier evicts the
// slot and fetches fresh. With one settings consumer per process and
// requests heavily skewed toward the same tier back to back, one slot
// captures most of the benefit without invalidation bookkeeping.
//
// Fetch failures are never cached. Concurrent misses may fetch
// redundantly; last write wins, which is harmless because every fetch
// returns the same current bundle.
type Cache struct {
	source       Source
	freshness    time.Duration
	fetchTimeout time.Duration
	now          func() time.Time

	mu        sync.Mutex
	tier      domain.TierID
	settings  *domain.TierSettings
	fetchedAt time.Time
}

var _ Source = (*Cache)(nil)

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithFreshness overrides the cache freshness window.
func WithFreshness(d time.Duration) CacheOption {
	return func(c *Cache) { c.freshness = d }
}

// WithFetchTimeout overrides the per-fetch timeout.
func WithFetchTimeout(d time.Duration) CacheOption {
	return func(c *Cache) { c.fetchTimeout = d }
}

// withClock substitutes the time source in tests.
func withClock(now func() time.Time) CacheOption {
	return func(c *Cache) { c.now = now }
}

func NewCache(source Source, opts ...CacheOption) *Cache {
	c := &Cache{
		source:       source,
		freshness:    DefaultFreshness,
		fetchTimeout: DefaultFetchTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetSettings returns the settings for a tier, serving from the slot when
// it holds a fresh bundle for that tier.
func (c *Cache) GetSettings(ctx context.Context, tier domain.TierID) (*domain.TierSettings, error) {
	c.mu.Lock()
	if c.settings != nil && c.tier == tier && c.now().Sub(c.fetchedAt) < c.freshness {
		settings := c.settings
		c.mu.Unlock()
		metrics.SettingsCacheHits.Inc()
		return settings, nil
	}
	c.mu.Unlock()

	metrics.SettingsCacheMisses.Inc()

	fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	settings, err := c.source.GetSettings(fetchCtx, tier)
	if err != nil {
		metrics.SettingsCacheErrors.Inc()
		return nil, err
	}

	c.mu.Lock()
	c.tier = tier
	c.settings = settings
	c.fetchedAt = c.now()
	c.mu.Unlock()

	return settings, nil
}

// Clear empties the slot so the next request fetches fresh settings.
// Called after any admin settings update.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.settings = nil
	c.tier = ""
	c.fetchedAt = time.Time{}
	c.mu.Unlock()
}
