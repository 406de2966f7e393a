package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/maktaba-app/maktaba/internal/domain"
	"github.com/maktaba-app/maktaba/internal/metrics"
)

const settingsKeyPrefix = "tier_settings:"

// NewRedisClient builds the shared Redis client with the pool settings
// used across the application.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
}

// RedisCache caches settings bundles in Redis, one key per tier. Unlike
// the in-process Cache it is shared between replicas, so an admin update
// followed by Clear on any replica invalidates all of them.
//
// Redis read or write failures degrade to a direct source fetch rather
// than failing the entitlement check.
type RedisCache struct {
	client *redis.Client
	source Source
	ttl    time.Duration
	logger *slog.Logger
}

var _ Source = (*RedisCache)(nil)

func NewRedisCache(client *redis.Client, source Source, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultFreshness
	}
	return &RedisCache{
		client: client,
		source: source,
		ttl:    ttl,
		logger: logger,
	}
}

// GetSettings returns the settings for a tier, serving from Redis when a
// fresh copy exists.
func (c *RedisCache) GetSettings(ctx context.Context, tier domain.TierID) (*domain.TierSettings, error) {
	key := settingsKeyPrefix + string(tier)

	data, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var settings domain.TierSettings
		if err := json.Unmarshal(data, &settings); err == nil {
			metrics.SettingsCacheHits.Inc()
			return &settings, nil
		}
		// Corrupt entry; fall through to refetch and overwrite it.
		c.logger.Warn("discarding corrupt settings cache entry", "key", key)
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("settings cache read failed", "key", key, "error", err)
	}

	metrics.SettingsCacheMisses.Inc()

	settings, err := c.source.GetSettings(ctx, tier)
	if err != nil {
		metrics.SettingsCacheErrors.Inc()
		return nil, err
	}

	if data, err := json.Marshal(settings); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("settings cache write failed", "key", key, "error", err)
		}
	}

	return settings, nil
}

// Clear drops every cached tier bundle.
func (c *RedisCache) Clear() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	keys := make([]string, 0, len(domain.AllTiers))
	for _, tier := range domain.AllTiers {
		keys = append(keys, settingsKeyPrefix+string(tier))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("settings cache clear failed", "error", err)
	}
}
