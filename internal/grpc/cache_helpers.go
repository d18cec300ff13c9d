package grpc

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/godilite/towergen/internal/metrics"
)

type FetchFunc[T any] func(ctx context.Context) (T, error)

type CacheKeyType string

const (
	cacheKeyTower         CacheKeyType = "tower"
	cacheKeyTierSummaries CacheKeyType = "tier_summaries"
	cacheKeyWorstTowers   CacheKeyType = "worst_towers"
	cacheKeySentiment     CacheKeyType = "sentiment_by_tier"
	cacheKeyTowerTickets  CacheKeyType = "tower_tickets"
)

const (
	cacheKeyPrefix      = "grpc"
	defaultFetchTimeout = 15 * time.Second
	defaultSetTimeout   = 5 * time.Second
	maxTTLJitter        = 15 * time.Second

	// A hit refreshes the entry in the background once less than
	// 1/refreshAheadDivisor of the TTL remains.
	refreshAheadDivisor = 5
)

// VersionPrefix is the key prefix shared by every entry cached for a dataset
// version.
func VersionPrefix(version string) string {
	return cacheKeyPrefix + ":" + version + ":"
}

func normalizeKey(version string, kind CacheKeyType, parts ...string) string {
	key := VersionPrefix(version) + string(kind)
	if len(parts) > 0 {
		key += ":" + strings.Join(parts, ":")
	}
	return key
}

// addTTLJitter spreads expirations by up to ±10% of ttl, capped at 15s.
func addTTLJitter(ttl time.Duration) time.Duration {
	span := min(ttl/10, maxTTLJitter)
	if span <= 0 {
		return ttl
	}
	return ttl + time.Duration(rand.Int64N(int64(2*span))) - span
}

func needsRefresh(remaining, ttl time.Duration) bool {
	return remaining > 0 && remaining < ttl/refreshAheadDivisor
}

func triggerBackgroundRefresh[T any](
	c Cacher,
	sf *singleflight.Group,
	key string,
	ttl time.Duration,
	logger *zap.Logger,
	fn FetchFunc[T],
) {
	go func() {
		_, _, _ = sf.Do(key+":refresh", func() (any, error) {
			ctx, cancel := context.WithTimeout(context.Background(), defaultFetchTimeout)
			defer cancel()

			value, err := fn(ctx)
			if err != nil {
				logger.Warn("background refresh failed",
					zap.String("key", key),
					zap.Error(err))
				return nil, err
			}

			setCtx, cancelSet := context.WithTimeout(context.Background(), defaultSetTimeout)
			defer cancelSet()

			ttlWithJitter := addTTLJitter(ttl)
			if err := c.Set(setCtx, key, value, ttlWithJitter); err != nil {
				logger.Warn("failed to update cache in background",
					zap.String("key", key),
					zap.Error(err))
			} else {
				logger.Debug("cache refreshed in background",
					zap.String("key", key),
					zap.Duration("ttl", ttlWithJitter))
			}

			return value, nil
		})
	}()
}

func fetchAndCacheInBackground[T any](
	ctx context.Context,
	c Cacher,
	key string,
	ttl time.Duration,
	logger *zap.Logger,
	fn FetchFunc[T],
) (T, error) {
	var zero T

	value, err := fn(ctx)
	if err != nil {
		logger.Debug("fetch failed", zap.String("key", key), zap.Error(err))
		return zero, err
	}

	go func(v T) {
		setCtx, cancel := context.WithTimeout(context.Background(), defaultSetTimeout)
		defer cancel()

		ttlWithJitter := addTTLJitter(ttl)
		if err := c.Set(setCtx, key, v, ttlWithJitter); err != nil {
			logger.Warn("failed to set cache on miss", zap.String("key", key), zap.Error(err))
		} else {
			logger.Debug("cache populated on miss", zap.String("key", key))
		}
	}(value)

	return value, nil
}

// FindAndCache implements read-through caching with singleflight and
// refresh-ahead. A nil Cacher calls fn directly.
func FindAndCache[T any](
	ctx context.Context,
	c Cacher,
	sf *singleflight.Group,
	key string,
	ttl time.Duration,
	logger *zap.Logger,
	rec *metrics.Recorder,
	fn FetchFunc[T],
) (T, error) {
	var zero T
	if logger == nil {
		logger = zap.NewNop()
	}
	if c == nil {
		return fn(ctx)
	}

	var cached T
	err := c.Get(ctx, key, &cached)
	switch {
	case err == nil:
		logger.Debug("cache hit", zap.String("key", key))
		rec.CacheResult("hit")
		if remaining, err := c.TTL(ctx, key); err == nil && needsRefresh(remaining, ttl) {
			triggerBackgroundRefresh(c, sf, key, ttl, logger, fn)
		}
		return cached, nil

	case errors.Is(err, redis.Nil):
		logger.Debug("cache miss", zap.String("key", key))
		rec.CacheResult("miss")

	default:
		logger.Warn("cache get error (treating as miss)", zap.String("key", key), zap.Error(err))
		rec.CacheResult("error")
	}

	v, err, shared := sf.Do(key, func() (any, error) {
		return fetchAndCacheInBackground(ctx, c, key, ttl, logger, fn)
	})
	if err != nil {
		return zero, err
	}

	value, ok := v.(T)
	if !ok {
		logger.Error("singleflight type mismatch", zap.String("key", key))
		return zero, fmt.Errorf("type mismatch for key %q", key)
	}

	if shared {
		logger.Debug("singleflight shared result", zap.String("key", key))
	}

	return value, nil
}
