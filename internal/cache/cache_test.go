package cache_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/timour/edgedispatch/internal/cache"
)

func newTestInvalidator(t *testing.T) (*cache.RedisInvalidator, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return cache.NewRedisInvalidatorFromClient(client), mr
}

func TestPurgeLiteralKeys(t *testing.T) {
	invalidator, mr := newTestInvalidator(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("userrequest/1", "cached"))
	require.NoError(t, mr.Set("userrequest/2", "cached"))

	require.NoError(t, invalidator.Purge(ctx, []string{"userrequest/1"}))

	require.False(t, mr.Exists("userrequest/1"))
	require.True(t, mr.Exists("userrequest/2"))
}

func TestPurgeWildcardKeyExpandsMatches(t *testing.T) {
	invalidator, mr := newTestInvalidator(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("userrequest/relation/1", "cached"))
	require.NoError(t, mr.Set("userrequest/relation/2", "cached"))
	require.NoError(t, mr.Set("paidrequest/relation/1", "cached"))

	require.NoError(t, invalidator.Purge(ctx, []string{"userrequest/relation/*"}))

	require.False(t, mr.Exists("userrequest/relation/1"))
	require.False(t, mr.Exists("userrequest/relation/2"))
	require.True(t, mr.Exists("paidrequest/relation/1"))
}

func TestPurgeEmptyKeysIsNoop(t *testing.T) {
	invalidator, _ := newTestInvalidator(t)
	require.NoError(t, invalidator.Purge(context.Background(), nil))
}
