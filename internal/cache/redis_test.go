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

func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedisCacheWithClient(client, DefaultConfig())
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestNewRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := NewRedisCache(context.Background(), RedisConfig{Addr: mr.Addr(), Config: DefaultConfig()})
	require.NoError(t, err)
	assert.NoError(t, c.Close())
}

func TestNewRedisCache_ConnectionError(t *testing.T) {
	_, err := NewRedisCache(context.Background(), RedisConfig{Addr: "127.0.0.1:1", Config: DefaultConfig()})
	assert.Error(t, err)
}

func TestRedisCache_SetAndGet(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "assigned:10", []byte("[]"), time.Minute))

	got, err := c.Get(ctx, "assigned:10")
	require.NoError(t, err)
	assert.Equal(t, []byte("[]"), got)
	assert.True(t, mr.Exists("gfmeta:assigned:10"))
}

func TestRedisCache_Expiry(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Second))
	mr.FastForward(2 * time.Second)

	_, err := c.Get(ctx, "k")
	assert.True(t, IsCacheMiss(err))
}

func TestRedisCache_ClearOnlyTouchesPrefix(t *testing.T) {
	c, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("other:key", "keep"))
	require.NoError(t, c.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), 0))

	require.NoError(t, c.Clear(ctx))

	_, err := c.Get(ctx, "a")
	assert.True(t, IsCacheMiss(err))
	assert.True(t, mr.Exists("other:key"))
}

func TestRedisCache_Delete(t *testing.T) {
	c, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, c.Delete(ctx, "k"))

	_, err := c.Get(ctx, "k")
	assert.True(t, IsCacheMiss(err))
}
