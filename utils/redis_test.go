package utils

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soonlist/soonlist-backend/config"
)

func TestInitRedis(t *testing.T) {
	ctx := context.Background()

	t.Run("not configured", func(t *testing.T) {
		rdb, err := InitRedis(ctx, &config.Config{})
		require.NoError(t, err)
		assert.Nil(t, rdb)
	})

	t.Run("connects", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rdb, err := InitRedis(ctx, &config.Config{RedisAddr: mr.Addr()})
		require.NoError(t, err)
		t.Cleanup(func() { _ = rdb.Close() })
		require.NoError(t, rdb.Set(ctx, "k", "v", 0).Err())
		mr.CheckGet(t, "k", "v")
	})

	t.Run("unreachable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()
		_, err := InitRedis(ctx, &config.Config{RedisAddr: addr})
		assert.Error(t, err)
	})
}

func TestInitFirebaseWithoutCredentials(t *testing.T) {
	fb, err := InitFirebase(context.Background(), &config.Config{
		FCMCredentialsPath: t.TempDir() + "/missing.json",
		FCMProjectID:       "soonlist-test",
	})
	assert.Error(t, err)
	assert.Nil(t, fb)
	assert.False(t, fb.FCMEnabled())
	assert.False(t, fb.StorageEnabled())
}
