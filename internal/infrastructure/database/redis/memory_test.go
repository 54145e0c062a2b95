package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/TRAXX-Intelligence/internal/testutil"
)

func TestMemoryCache_SetGetExpire(t *testing.T) {
	clock := testutil.NewFakeClock(testutil.Epoch)
	cache := NewMemoryCache(clock)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "conv:s-1", map[string]int{"turns": 2}, time.Minute))

	var got map[string]int
	require.NoError(t, cache.Get(ctx, "conv:s-1", &got))
	assert.Equal(t, 2, got["turns"])

	ttl, err := cache.TTL(ctx, "conv:s-1")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl)

	clock.Advance(time.Minute)
	assert.Equal(t, ErrCacheMiss, cache.Get(ctx, "conv:s-1", &got))
	ok, _ := cache.Exists(ctx, "conv:s-1")
	assert.False(t, ok)
}

func TestMemoryCache_DefaultTTLAndExpire(t *testing.T) {
	clock := testutil.NewFakeClock(testutil.Epoch)
	cache := NewMemoryCache(clock, WithDefaultTTL(time.Hour))
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", "v", 0))
	ttl, _ := cache.TTL(ctx, "k")
	assert.Equal(t, time.Hour, ttl)

	require.NoError(t, cache.Expire(ctx, "k", time.Second))
	clock.Advance(2 * time.Second)
	ttl, _ = cache.TTL(ctx, "k")
	assert.Equal(t, -2*time.Second, ttl)
	assert.Equal(t, ErrCacheMiss, cache.Expire(ctx, "k", time.Second))
}

func TestMemoryCache_Delete(t *testing.T) {
	cache := NewMemoryCache(nil)
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "a", 1, time.Minute))
	require.NoError(t, cache.Set(ctx, "b", 2, time.Minute))

	require.NoError(t, cache.Delete(ctx, "a", "missing"))
	var v int
	assert.Equal(t, ErrCacheMiss, cache.Get(ctx, "a", &v))
	assert.NoError(t, cache.Get(ctx, "b", &v))
	assert.Equal(t, 2, v)
	assert.NoError(t, cache.Ping(ctx))
}

func TestMemoryCache_GetOrSetRefreshesAfterTTL(t *testing.T) {
	clock := testutil.NewFakeClock(testutil.Epoch)
	cache := NewMemoryCache(clock)
	ctx := context.Background()

	calls := 0
	load := func(context.Context) (interface{}, error) {
		calls++
		return []string{"k1", "k2"}, nil
	}

	var got []string
	require.NoError(t, cache.GetOrSet(ctx, "kits", &got, 15*time.Second, load))
	require.NoError(t, cache.GetOrSet(ctx, "kits", &got, 15*time.Second, load))
	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"k1", "k2"}, got)

	clock.Advance(15 * time.Second)
	require.NoError(t, cache.GetOrSet(ctx, "kits", &got, 15*time.Second, load))
	assert.Equal(t, 2, calls)
}

func TestMemoryCache_NullCached(t *testing.T) {
	clock := testutil.NewFakeClock(testutil.Epoch)
	cache := NewMemoryCache(clock, WithNullCacheTTL(time.Second))
	ctx := context.Background()

	calls := 0
	load := func(context.Context) (interface{}, error) { calls++; return nil, nil }

	var got string
	assert.Equal(t, ErrCacheMiss, cache.GetOrSet(ctx, "k", &got, time.Minute, load))
	assert.Equal(t, ErrCacheMiss, cache.GetOrSet(ctx, "k", &got, time.Minute, load))
	assert.Equal(t, 1, calls)

	clock.Advance(time.Second)
	assert.Equal(t, ErrCacheMiss, cache.GetOrSet(ctx, "k", &got, time.Minute, load))
	assert.Equal(t, 2, calls)
}

func TestMemoryCache_Len(t *testing.T) {
	clock := testutil.NewFakeClock(testutil.Epoch)
	cache := NewMemoryCache(clock).(*memoryCache)
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "conv:a", 1, time.Minute))
	require.NoError(t, cache.Set(ctx, "conv:b", 1, time.Second))
	require.NoError(t, cache.Set(ctx, "ctx:kits", 1, time.Minute))

	assert.Equal(t, 2, cache.Len("conv:"))
	clock.Advance(time.Second)
	assert.Equal(t, 1, cache.Len("conv:"))
}

//Personal.AI order the ending
