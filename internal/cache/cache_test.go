package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func newRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisCache(rdb), mr
}

func TestRedisCacheRoundTrip(t *testing.T) {
	c, mr := newRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, "k", item{Name: "a", Count: 2}, time.Minute))

	var got item
	hit, err := c.GetJSON(ctx, "k", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, item{Name: "a", Count: 2}, got)

	mr.FastForward(2 * time.Minute)
	hit, err = c.GetJSON(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestRedisCacheCorruptEntryIsMiss(t *testing.T) {
	c, mr := newRedisCache(t)
	require.NoError(t, mr.Set("bad", "{not json"))

	var got item
	hit, err := c.GetJSON(context.Background(), "bad", &got)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.False(t, mr.Exists("bad"))
}

func TestRedisCacheDel(t *testing.T) {
	c, mr := newRedisCache(t)
	ctx := context.Background()
	require.NoError(t, c.SetJSON(ctx, "a", 1, 0))
	require.NoError(t, c.SetJSON(ctx, "b", 2, 0))

	require.NoError(t, c.Del(ctx, "a", "b"))
	require.NoError(t, c.Del(ctx))
	assert.False(t, mr.Exists("a"))
	assert.False(t, mr.Exists("b"))
}

func TestMemoryCacheTTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.SetJSON(ctx, "k", item{Name: "x"}, time.Minute))
	require.NoError(t, c.SetJSON(ctx, "forever", item{Name: "y"}, 0))

	var got item
	hit, _ := c.GetJSON(ctx, "k", &got)
	assert.True(t, hit)
	assert.Equal(t, "x", got.Name)

	now = now.Add(time.Minute)
	hit, _ = c.GetJSON(ctx, "k", &got)
	assert.False(t, hit)

	hit, _ = c.GetJSON(ctx, "forever", &got)
	assert.True(t, hit)

	require.NoError(t, c.Del(ctx, "forever"))
	hit, _ = c.GetJSON(ctx, "forever", &got)
	assert.False(t, hit)
}

func TestMemoryCacheSweepsUnreadEntries(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		require.NoError(t, c.SetJSON(ctx, SnapshotKey(fmt.Sprint(i)), item{Count: i}, time.Minute))
	}
	require.NoError(t, c.SetJSON(ctx, "forever", item{Name: "y"}, 0))
	assert.Len(t, c.entries, 1001)

	now = now.Add(30 * time.Second)
	require.NoError(t, c.SetJSON(ctx, "early", item{}, time.Minute))
	assert.Len(t, c.entries, 1002, "no sweep before the interval elapses")

	now = now.Add(time.Hour)
	require.NoError(t, c.SetJSON(ctx, "fresh", item{Name: "z"}, time.Minute))
	assert.Len(t, c.entries, 2)

	var got item
	hit, _ := c.GetJSON(ctx, "forever", &got)
	assert.True(t, hit)
	hit, _ = c.GetJSON(ctx, "fresh", &got)
	assert.True(t, hit)
}

func TestSnapshotKey(t *testing.T) {
	assert.Equal(t, "workflow:abc:snapshot", SnapshotKey("abc"))
}
