package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()

	mr := miniredis.RunT(t)
	store, err := NewRedisStore(RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestRedisStoreSetGetDelete(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	_, found, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, store.Set(ctx, "group:g1:parents", []byte(`["g2"]`), time.Minute))

	val, found, err := store.Get(ctx, "group:g1:parents")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, `["g2"]`, string(val))

	require.NoError(t, store.Delete(ctx, "group:g1:parents"))

	_, found, err = store.Get(ctx, "group:g1:parents")
	require.NoError(t, err)
	require.False(t, found)
}

func TestRedisStoreDeleteByPrefix(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "permissions:p1:u1:explicit_view", []byte("true"), time.Minute))
	require.NoError(t, store.Set(ctx, "permissions:p1:u9:group_edit", []byte("false"), time.Minute))
	require.NoError(t, store.Set(ctx, "permissions:p2:u1:explicit_view", []byte("true"), time.Minute))

	require.NoError(t, store.DeleteByPrefix(ctx, "permissions:p1:"))

	_, found, err := store.Get(ctx, "permissions:p1:u1:explicit_view")
	require.NoError(t, err)
	require.False(t, found)

	_, found, err = store.Get(ctx, "permissions:p1:u9:group_edit")
	require.NoError(t, err)
	require.False(t, found)

	_, found, err = store.Get(ctx, "permissions:p2:u1:explicit_view")
	require.NoError(t, err)
	require.True(t, found)
}

func TestRedisStoreNamespacesKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := NewRedisStore(RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "user:u1:groups", []byte("[]"), time.Minute))

	require.True(t, mr.Exists("plume:user:u1:groups"))
	require.False(t, mr.Exists("user:u1:groups"))
}

func TestRedisStoreIncrementWithTTL(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	count, _, err := store.IncrementWithTTL(ctx, "rate:k", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	count, ttl, err := store.IncrementWithTTL(ctx, "rate:k", time.Minute)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
	require.Greater(t, ttl, time.Duration(0))
}
