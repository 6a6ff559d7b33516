package inmem_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/timour/edgedispatch/internal/lock/inmem"
)

func TestTryAcquireExclusive(t *testing.T) {
	locker := inmem.NewLocker()
	ctx := context.Background()

	release, ok, err := locker.TryAcquire(ctx, "push-relations:1")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, release)

	_, ok, err = locker.TryAcquire(ctx, "push-relations:1")
	require.NoError(t, err)
	require.False(t, ok)

	release()

	_, ok, err = locker.TryAcquire(ctx, "push-relations:1")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestTryAcquireDistinctKeysDoNotContend(t *testing.T) {
	locker := inmem.NewLocker()
	ctx := context.Background()

	_, ok, err := locker.TryAcquire(ctx, "push-relations:1")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryAcquire(ctx, "push-relations:2")
	require.NoError(t, err)
	require.True(t, ok)
}
