package statement

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func TestCacheVersionInitialises(t *testing.T) {
	cache := newTestCache(t)
	ver, err := cache.Version(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), ver)
}

func TestCacheBuildKeyEmbedsVersion(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, keyStatement(StatementIncome, "2025-all", 3))
	require.NoError(t, err)
	require.Equal(t, "statement:income_statement:2025-all:3:1", key)

	require.NoError(t, cache.Bump(ctx))
	bumped, err := cache.BuildKey(ctx, keyStatement(StatementIncome, "2025-all", 3))
	require.NoError(t, err)
	require.NotEqual(t, key, bumped)
}

func TestCacheFetchJSONPopulatesThenHits(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()
	loads := 0
	loader := func(context.Context) (interface{}, error) {
		loads++
		return map[string]int{"value": 42}, nil
	}

	var first map[string]int
	require.NoError(t, cache.FetchJSON(ctx, "k", &first, loader))
	var second map[string]int
	require.NoError(t, cache.FetchJSON(ctx, "k", &second, loader))

	require.Equal(t, 1, loads)
	require.Equal(t, 42, second["value"])
}

func TestCacheNilPassThrough(t *testing.T) {
	var cache *Cache
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, "a", "b")
	require.NoError(t, err)
	require.Equal(t, "a:b", key)

	var out map[string]int
	require.NoError(t, cache.FetchJSON(ctx, key, &out, func(context.Context) (interface{}, error) {
		return map[string]int{"value": 7}, nil
	}))
	require.Equal(t, 7, out["value"])
	require.NoError(t, cache.Bump(ctx))
}
