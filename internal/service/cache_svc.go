package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ChannelIDCacheTTL bounds how long a resolved channel name is trusted.
const ChannelIDCacheTTL = 24 * time.Hour

// RunLockTTL is the cycle lock lifetime for a schedule interval: one minute
// short of the interval, never below one minute.
func RunLockTTL(interval time.Duration) time.Duration {
	return max(interval-time.Minute, time.Minute)
}

// CacheService provides a Redis cache-aside layer for channel name
// resolution and the cross-process cycle lock. A nil client disables both.
type CacheService struct {
	rdb *redis.Client
}

// NewCacheService creates a new CacheService. If redisURL is empty or connection
// fails, it returns a CacheService with a nil client (cache operations become no-ops).
func NewCacheService(ctx context.Context, redisURL string, log zerolog.Logger) *CacheService {
	if redisURL == "" {
		log.Info().Msg("redis: no URL configured, caching and run lock disabled")
		return &CacheService{}
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Warn().Err(err).Msg("redis: invalid URL, caching and run lock disabled")
		return &CacheService{}
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis: connection failed, caching and run lock disabled")
		_ = rdb.Close()
		return &CacheService{}
	}

	log.Info().Msg("redis: connected")
	return &CacheService{rdb: rdb}
}

// Client returns the underlying Redis client (for health checks). May be nil.
func (c *CacheService) Client() *redis.Client {
	return c.rdb
}

// GetChannelID returns the cached channel ID for a lookup name, or "" when
// not cached or the cache is disabled.
func (c *CacheService) GetChannelID(ctx context.Context, name string) (string, error) {
	if c == nil || c.rdb == nil {
		return "", nil
	}
	id, err := c.rdb.Get(ctx, channelNameKey(name)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return id, err
}

// SetChannelID caches a resolved channel ID.
func (c *CacheService) SetChannelID(ctx context.Context, name, id string) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Set(ctx, channelNameKey(name), id, ChannelIDCacheTTL).Err()
}

// AcquireRunLock takes the cycle lock for owner. It reports false when
// another owner holds it. With no client the lock is always granted.
func (c *CacheService) AcquireRunLock(ctx context.Context, owner string, ttl time.Duration) (bool, error) {
	if c == nil || c.rdb == nil {
		return true, nil
	}
	return c.rdb.SetNX(ctx, runLockKey, owner, ttl).Result()
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// ReleaseRunLock drops the cycle lock if owner still holds it.
func (c *CacheService) ReleaseRunLock(ctx context.Context, owner string) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return releaseScript.Run(ctx, c.rdb, []string{runLockKey}, owner).Err()
}

// Close shuts down the Redis connection.
func (c *CacheService) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

const runLockKey = "ytload:run-lock"

func channelNameKey(name string) string {
	return fmt.Sprintf("ytload:channel-name:%s", name)
}
