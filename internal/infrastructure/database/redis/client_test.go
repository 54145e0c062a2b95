package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/TRAXX-Intelligence/internal/config"
	"github.com/turtacn/TRAXX-Intelligence/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/TRAXX-Intelligence/pkg/errors"
)

func TestNewClient_Success(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := NewClient(config.RedisConfig{Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.Ping(context.Background()))
}

func TestNewClient_ConnectionFailed(t *testing.T) {
	client, err := NewClient(config.RedisConfig{Addr: "localhost:1", DialTimeout: 100 * time.Millisecond}, nil)
	assert.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeCacheError))
	assert.Nil(t, client)
}

func TestRedisCache_AgainstServer(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := NewClient(config.RedisConfig{Addr: mr.Addr()}, nil)
	require.NoError(t, err)
	defer client.Close()

	cache := NewRedisCache(client, nil, WithPrefix("traxx:"), WithJitter(0))
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "conv:s-1", map[string]string{"remote_id": "c-1"}, time.Minute))
	assert.True(t, mr.Exists("traxx:conv:s-1"))

	var got map[string]string
	require.NoError(t, cache.Get(ctx, "conv:s-1", &got))
	assert.Equal(t, "c-1", got["remote_id"])

	ttl, err := cache.TTL(ctx, "conv:s-1")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl)

	mr.FastForward(time.Minute)
	assert.Equal(t, ErrCacheMiss, cache.Get(ctx, "conv:s-1", &got))
}

func TestClient_Close(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := NewClient(config.RedisConfig{Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)

	assert.NoError(t, client.Close())
	assert.NoError(t, client.Close())

	err = client.Get(context.Background(), "foo").Err()
	assert.Equal(t, ErrClientClosed, err)
	assert.Equal(t, ErrClientClosed, client.Ping(context.Background()))
}

//Personal.AI order the ending
