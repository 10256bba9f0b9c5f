package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oggyb/jobswipe/internal/config"
)

const (
	unreadTTL   = time.Hour
	presenceTTL = 10 * time.Minute
)

// RedisCache mirrors the badge count and peer presence so a fresh process
// can render them before the server answers.
type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.Client.Close()
}

// KeyForUnreadCount generates the Redis key of a user's unread badge.
func (c *RedisCache) KeyForUnreadCount(userID int64) string {
	return fmt.Sprintf("notifications:unread:%d", userID)
}

// KeyForPresence generates the Redis key marking a user online.
func (c *RedisCache) KeyForPresence(userID int64) string {
	return fmt.Sprintf("presence:online:%d", userID)
}

func (c *RedisCache) UpdateUnreadCount(ctx context.Context, userID int64, count int64) error {
	// Always refresh TTL when updating
	return c.Client.Set(ctx, c.KeyForUnreadCount(userID), count, unreadTTL).Err()
}

// GetUnreadCount returns the mirrored count; ok is false on a cache miss.
func (c *RedisCache) GetUnreadCount(ctx context.Context, userID int64) (count int64, ok bool, err error) {
	key := c.KeyForUnreadCount(userID)
	val, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	} else if err != nil {
		return 0, false, err
	}
	// refresh TTL on access
	_ = c.Client.Expire(ctx, key, unreadTTL).Err()
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

// SetPresence records a presence event. Offline users are removed.
func (c *RedisCache) SetPresence(ctx context.Context, userID int64, online bool) error {
	key := c.KeyForPresence(userID)
	if !online {
		return c.Client.Del(ctx, key).Err()
	}
	return c.Client.Set(ctx, key, time.Now().Unix(), presenceTTL).Err()
}

func (c *RedisCache) IsOnline(ctx context.Context, userID int64) (bool, error) {
	n, err := c.Client.Exists(ctx, c.KeyForPresence(userID)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
