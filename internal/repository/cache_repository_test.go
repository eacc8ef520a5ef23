package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/room-reservation-api/pkg/errors"
)

func newCache(t *testing.T) (*CacheRepository, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheRepository(client, nil), mr
}

func TestCacheSetGet(t *testing.T) {
	cache, mr := newCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "notices:list", []string{"a", "b"}, time.Minute))
	var got []string
	require.NoError(t, cache.Get(ctx, "notices:list", &got))
	assert.Equal(t, []string{"a", "b"}, got)

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, cache.Get(ctx, "notices:list", &got), appErrors.ErrCacheMiss)
}

func TestCacheDeleteByPattern(t *testing.T) {
	cache, mr := newCache(t)
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "notices:1", 1, time.Minute))
	require.NoError(t, cache.Set(ctx, "notices:2", 2, time.Minute))
	require.NoError(t, cache.Set(ctx, "reference:types", 3, time.Minute))

	require.NoError(t, cache.DeleteByPattern(ctx, "notices:*"))
	assert.False(t, mr.Exists("notices:1"))
	assert.False(t, mr.Exists("notices:2"))
	assert.True(t, mr.Exists("reference:types"))
}

func TestCacheDeleteByPatternAcrossBatches(t *testing.T) {
	cache, mr := newCache(t)
	ctx := context.Background()
	for i := 0; i < 250; i++ {
		require.NoError(t, mr.Set(fmt.Sprintf("rooms:notices:%d", i), "x"))
	}
	require.NoError(t, mr.Set("rooms:ref:departments", "y"))

	require.NoError(t, cache.DeleteByPattern(ctx, "rooms:notices:*"))
	assert.Equal(t, []string{"rooms:ref:departments"}, mr.Keys())
}

func TestCacheTakeConsumesOnce(t *testing.T) {
	cache, _ := newCache(t)
	ctx := context.Background()
	require.NoError(t, cache.Put(ctx, "oauth:state:s1", "user-1", time.Minute))

	val, err := cache.Take(ctx, "oauth:state:s1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", val)

	_, err = cache.Take(ctx, "oauth:state:s1")
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)
}

func TestCacheWithoutClient(t *testing.T) {
	cache := NewCacheRepository(nil, nil)
	ctx := context.Background()
	var v int
	assert.ErrorIs(t, cache.Get(ctx, "k", &v), appErrors.ErrCacheMiss)
	assert.NoError(t, cache.Set(ctx, "k", 1, time.Minute))
	assert.Error(t, cache.Put(ctx, "k", "v", time.Minute))
	assert.False(t, cache.Enabled())
}
