// Package cache fronts the settings table with Redis. Every service reads
// the commission table and fee settings on each operation, so documents are
// served from Redis and invalidated on write. When Redis is unavailable the
// store is read directly.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chris/referral-commission-ledger/pkg/metrics"
	"github.com/chris/referral-commission-ledger/pkg/models"
	"github.com/chris/referral-commission-ledger/pkg/storage"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL bounds how long another instance may serve a stale document
// after a write it did not see.
const DefaultTTL = 5 * time.Minute

const (
	keyPrefix    = "settings:"
	overridesKey = keyPrefix + "additional_commissions"
)

// RedisClient is the subset of the go-redis client used by the cache.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

var _ RedisClient = (*redis.Client)(nil)

type entry struct {
	Version int64           `json:"version"`
	Value   json.RawMessage `json:"value"`
}

// SettingsCache decorates a storage.SettingsStore.
type SettingsCache struct {
	storage.SettingsStore
	client RedisClient
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

// NewSettingsCache wraps store with a Redis read-through cache.
func NewSettingsCache(store storage.SettingsStore, client RedisClient, ttl time.Duration, logger *slog.Logger) *SettingsCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SettingsCache{SettingsStore: store, client: client, ttl: ttl, logger: logger}
}

// GetSettings serves the document from Redis, loading it from the store on a miss.
func (c *SettingsCache) GetSettings(ctx context.Context, key string, dest any) (int64, error) {
	cacheKey := keyPrefix + key
	var e entry
	if c.lookup(ctx, cacheKey, &e) {
		if err := json.Unmarshal(e.Value, dest); err != nil {
			return 0, fmt.Errorf("failed to decode settings %s: %w", key, err)
		}
		return e.Version, nil
	}

	v, err, _ := c.group.Do(cacheKey, func() (any, error) {
		var raw json.RawMessage
		version, err := c.SettingsStore.GetSettings(ctx, key, &raw)
		if err != nil {
			return nil, err
		}
		loaded := entry{Version: version, Value: raw}
		c.store(ctx, cacheKey, loaded)
		return loaded, nil
	})
	if err != nil {
		return 0, err
	}
	loaded := v.(entry)
	if err := json.Unmarshal(loaded.Value, dest); err != nil {
		return 0, fmt.Errorf("failed to decode settings %s: %w", key, err)
	}
	return loaded.Version, nil
}

// PutSettings writes through to the store and drops the cached copy.
func (c *SettingsCache) PutSettings(ctx context.Context, key string, value any, expectedVersion int64) (int64, error) {
	version, err := c.SettingsStore.PutSettings(ctx, key, value, expectedVersion)
	if err != nil {
		return 0, err
	}
	c.invalidate(ctx, keyPrefix+key)
	return version, nil
}

// ListAdditionalCommissions serves the override list from Redis, loading it on a miss.
func (c *SettingsCache) ListAdditionalCommissions(ctx context.Context) ([]models.AdditionalCommission, error) {
	var cached []models.AdditionalCommission
	if c.lookup(ctx, overridesKey, &cached) {
		return cached, nil
	}

	v, err, _ := c.group.Do(overridesKey, func() (any, error) {
		list, err := c.SettingsStore.ListAdditionalCommissions(ctx)
		if err != nil {
			return nil, err
		}
		c.store(ctx, overridesKey, list)
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	shared := v.([]models.AdditionalCommission)
	out := make([]models.AdditionalCommission, len(shared))
	copy(out, shared)
	return out, nil
}

// PutAdditionalCommission writes through and drops the cached list.
func (c *SettingsCache) PutAdditionalCommission(ctx context.Context, commission *models.AdditionalCommission) error {
	if err := c.SettingsStore.PutAdditionalCommission(ctx, commission); err != nil {
		return err
	}
	c.invalidate(ctx, overridesKey)
	return nil
}

// DeleteAdditionalCommission deletes through and drops the cached list.
func (c *SettingsCache) DeleteAdditionalCommission(ctx context.Context, userID string) error {
	if err := c.SettingsStore.DeleteAdditionalCommission(ctx, userID); err != nil {
		return err
	}
	c.invalidate(ctx, overridesKey)
	return nil
}

// lookup decodes the cached value under key into dest and reports a hit.
func (c *SettingsCache) lookup(ctx context.Context, key string, dest any) bool {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			metrics.SettingsCacheTotal.WithLabelValues("error").Inc()
			c.logger.Warn("settings cache read failed", "key", key, "error", err)
			return false
		}
		metrics.SettingsCacheTotal.WithLabelValues("miss").Inc()
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		c.logger.Warn("discarding undecodable cache entry", "key", key, "error", err)
		c.invalidate(ctx, key)
		return false
	}
	metrics.SettingsCacheTotal.WithLabelValues("hit").Inc()
	return true
}

func (c *SettingsCache) store(ctx context.Context, key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("failed to encode cache entry", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("settings cache write failed", "key", key, "error", err)
	}
}

func (c *SettingsCache) invalidate(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		// the entry expires on its own after the TTL
		c.logger.Warn("settings cache invalidation failed", "key", key, "error", err)
	}
}
