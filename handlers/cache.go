package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"clinic-records/cachekeys"
	"clinic-records/monitoring"
	"clinic-records/utils"

	"go.uber.org/zap"
)

const (
	responseCachePrefix = "rpc:"
	generationPrefix    = "rpcgen:"
	// generationMark separates a cache key from the generations it was
	// stored under.
	generationMark = "#"
)

// ResponseCache keeps encoded query results in redis and drops them when
// a mutation can have changed them.
//
// Every invalidation prefix has a generation counter. A result is stored
// under the generations read before the query ran, so a result computed
// while a mutation was invalidating lands under an outdated generation and
// is never served.
type ResponseCache struct {
	redis  utils.RedisClient
	ttl    time.Duration
	logger *zap.Logger
}

func NewResponseCache(redis utils.RedisClient, ttl time.Duration, logger *zap.Logger) *ResponseCache {
	return &ResponseCache{redis: redis, ttl: ttl, logger: logger}
}

// Generation reads the generations covering key of procedure. ok is false
// when they cannot be read; the result must then not be cached.
func (c *ResponseCache) Generation(ctx context.Context, procedure, key string) (string, bool) {
	vals, err := c.redis.GetMany(ctx, generationPrefix+procedure, generationPrefix+key)
	if err != nil {
		monitoring.ResponseCache.WithLabelValues(procedure, "error").Inc()
		c.logger.Warn("Response cache generation read failed", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return strings.Join(vals, "."), true
}

func (c *ResponseCache) Get(ctx context.Context, procedure, key, gen string) ([]byte, bool) {
	val, err := c.redis.GetFromCache(ctx, storageKey(key, gen))
	switch {
	case err == nil:
		monitoring.ResponseCache.WithLabelValues(procedure, "hit").Inc()
		return []byte(val), true
	case errors.Is(err, utils.ErrCacheMiss):
		monitoring.ResponseCache.WithLabelValues(procedure, "miss").Inc()
	default:
		monitoring.ResponseCache.WithLabelValues(procedure, "error").Inc()
		c.logger.Warn("Response cache read failed", zap.String("key", key), zap.Error(err))
	}
	return nil, false
}

func (c *ResponseCache) Set(ctx context.Context, key, gen string, value []byte) {
	if err := c.redis.SetToCache(ctx, storageKey(key, gen), string(value), c.ttl); err != nil {
		c.logger.Warn("Response cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate advances the generation of every prefix the mutation can have
// changed and removes the entries stored under it.
func (c *ResponseCache) Invalidate(ctx context.Context, m cachekeys.Mutation) {
	for _, prefix := range cachekeys.Invalidates(m) {
		if _, err := c.redis.Incr(ctx, generationPrefix+prefix); err != nil {
			c.logger.Error("Response cache invalidation failed",
				zap.String("mutation", m.Procedure),
				zap.String("prefix", prefix),
				zap.Error(err),
			)
		}

		stored := responseCachePrefix + prefix + generationMark
		if cachekeys.WholeProcedure(prefix) {
			stored = responseCachePrefix + prefix + cachekeys.Separator
		}
		if err := c.redis.DeleteByPrefix(ctx, stored); err != nil {
			c.logger.Warn("Response cache cleanup failed", zap.String("prefix", prefix), zap.Error(err))
		}
	}
}

func storageKey(key, gen string) string {
	return responseCachePrefix + key + generationMark + gen
}
