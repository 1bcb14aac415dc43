package cachestore_test

import (
	"context"
	"testing"
	"time"

	"ecourts-backend/lib/cachestore"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *cachestore.RedisStore) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	return mr, cachestore.NewRedisFromClient(client)
}

func TestRedisRoundTrip(t *testing.T) {
	_, store := setupRedis(t)
	ctx := context.Background()

	_, hit, err := store.Get(ctx, "states")
	require.NoError(t, err)
	require.False(t, hit)

	err = store.Set(ctx, "states", []byte(`[{"code":"26","name":"Delhi"}]`), 0)
	require.NoError(t, err)

	value, hit, err := store.Get(ctx, "states")
	require.NoError(t, err)
	require.True(t, hit)
	require.JSONEq(t, `[{"code":"26","name":"Delhi"}]`, string(value))
}

func TestRedisTTLExpiry(t *testing.T) {
	mr, store := setupRedis(t)
	ctx := context.Background()

	err := store.Set(ctx, "causelist:26:9:1:2", []byte("{}"), time.Minute)
	require.NoError(t, err)

	mr.FastForward(time.Minute * 2)

	_, hit, err := store.Get(ctx, "causelist:26:9:1:2")
	require.NoError(t, err)
	require.False(t, hit)
}

func TestNopAlwaysMisses(t *testing.T) {
	ctx := context.Background()
	store := cachestore.Nop{}

	require.NoError(t, store.Set(ctx, "k", []byte("v"), 0))
	_, hit, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, hit)
}
