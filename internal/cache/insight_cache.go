package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// InsightCacheEntry represents a cached insight payload with metadata
type InsightCacheEntry struct {
	Payload   json.RawMessage `json:"payload"`
	CachedAt  time.Time       `json:"cached_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// InsightCacheStats tracks cache performance metrics
type InsightCacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Sets   int64 `json:"sets"`
	mu     sync.RWMutex
}

// RedisInsightCache stores computed insight results in Redis so repeated
// requests for the same analysis do not recompute from raw records.
type RedisInsightCache struct {
	redis  *redis.Client
	ttl    time.Duration
	stats  *InsightCacheStats
	prefix string
	logger logrus.FieldLogger
}

// NewRedisInsightCache creates a new Redis-based insight cache
func NewRedisInsightCache(redisClient *redis.Client, ttl time.Duration, logger logrus.FieldLogger) *RedisInsightCache {
	if logger == nil {
		silent := logrus.New()
		silent.SetOutput(io.Discard)
		logger = silent
	}
	return &RedisInsightCache{
		redis:  redisClient,
		ttl:    ttl,
		stats:  &InsightCacheStats{},
		prefix: "insight_cache:",
		logger: logger,
	}
}

// Key builds a cache key scoped to one user. Additional parts identify the
// analysis kind and its parameters.
func (c *RedisInsightCache) Key(userID uuid.UUID, parts ...string) string {
	elems := append([]string{userID.String()}, parts...)
	return c.prefix + strings.Join(elems, ":")
}

// Get retrieves a cached insight payload into dest. It returns false on a
// miss, on a stale entry, or when the payload cannot be decoded.
func (c *RedisInsightCache) Get(ctx context.Context, key string, dest interface{}) bool {
	data, err := c.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		c.recordMiss()
		return false
	}
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Redis error getting cached insight")
		c.recordMiss()
		return false
	}

	var entry InsightCacheEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Error deserializing cached insight")
		c.recordMiss()
		return false
	}

	// Second check beyond the Redis TTL. Stale insights are treated as a
	// miss so callers recompute from current records.
	if time.Now().After(entry.ExpiresAt) {
		c.logger.WithField("key", key).Debug("Cached insight expired, recomputing")
		c.recordMiss()
		return false
	}

	if err := json.Unmarshal(entry.Payload, dest); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Error decoding cached insight payload")
		c.recordMiss()
		return false
	}

	c.stats.mu.Lock()
	c.stats.Hits++
	c.stats.mu.Unlock()

	return true
}

// Set stores an insight payload in Redis with the cache TTL
func (c *RedisInsightCache) Set(ctx context.Context, key string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Error serializing insight payload")
		return
	}

	now := time.Now()
	entry := InsightCacheEntry{
		Payload:   raw,
		CachedAt:  now,
		ExpiresAt: now.Add(c.ttl),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Error serializing cache entry")
		return
	}

	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Redis error setting cached insight")
		return
	}

	c.stats.mu.Lock()
	c.stats.Sets++
	c.stats.mu.Unlock()
}

// GetStats returns current cache statistics
func (c *RedisInsightCache) GetStats() InsightCacheStats {
	c.stats.mu.RLock()
	defer c.stats.mu.RUnlock()
	return InsightCacheStats{
		Hits:   c.stats.Hits,
		Misses: c.stats.Misses,
		Sets:   c.stats.Sets,
	}
}

// LogStats logs current cache performance statistics
func (c *RedisInsightCache) LogStats() {
	stats := c.GetStats()
	total := stats.Hits + stats.Misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}

	c.logger.WithFields(logrus.Fields{
		"hits":     stats.Hits,
		"misses":   stats.Misses,
		"sets":     stats.Sets,
		"hit_rate": fmt.Sprintf("%.2f%%", hitRate),
	}).Info("Insight cache stats")
}

// ClearUser removes all cached insights for one user and returns how many
// entries were deleted.
func (c *RedisInsightCache) ClearUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	return c.deleteByPattern(ctx, c.prefix+userID.String()+":*")
}

// Clear removes all cached insights
func (c *RedisInsightCache) Clear(ctx context.Context) error {
	_, err := c.deleteByPattern(ctx, c.prefix+"*")
	return err
}

func (c *RedisInsightCache) deleteByPattern(ctx context.Context, pattern string) (int64, error) {
	// SCAN instead of KEYS so large caches do not block Redis
	var keys []string
	iter := c.redis.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("error scanning cache keys: %w", err)
	}

	if len(keys) == 0 {
		return 0, nil
	}

	deleted, err := c.redis.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("error clearing cache: %w", err)
	}

	c.logger.WithField("deleted", deleted).Info("Cleared insight cache entries")
	return deleted, nil
}

func (c *RedisInsightCache) recordMiss() {
	c.stats.mu.Lock()
	c.stats.Misses++
	c.stats.mu.Unlock()
}
