package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return &RedisCache{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}, mr
}

func TestUnreadCount(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()

	_, ok, err := c.GetUnreadCount(ctx, 5)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.UpdateUnreadCount(ctx, 5, 3))
	n, ok, err := c.GetUnreadCount(ctx, 5)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, time.Hour, mr.TTL("notifications:unread:5"))

	mr.FastForward(2 * time.Hour)
	_, ok, err = c.GetUnreadCount(ctx, 5)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPresence(t *testing.T) {
	c, mr := setupCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetPresence(ctx, 8, true))
	online, err := c.IsOnline(ctx, 8)
	require.NoError(t, err)
	assert.True(t, online)
	assert.Equal(t, 10*time.Minute, mr.TTL("presence:online:8"))

	require.NoError(t, c.SetPresence(ctx, 8, false))
	online, err = c.IsOnline(ctx, 8)
	require.NoError(t, err)
	assert.False(t, online)
}
