package tasks_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/timour/edgedispatch/internal/domain"
	"github.com/timour/edgedispatch/internal/store/storetest"
	"github.com/timour/edgedispatch/internal/tasks"
)

func newRegistry(gw *storetest.Gateway) *tasks.Registry {
	return tasks.New(gw.AsGateway().Tasks)
}

func TestHandlerForKnownTaskNames(t *testing.T) {
	require.Equal(t, tasks.HandlerCartResult, tasks.HandlerFor(domain.TaskAddSubidsToCart))
	require.Equal(t, tasks.HandlerCheckoutResult, tasks.HandlerFor(domain.TaskCheckoutCart))
	require.Equal(t, tasks.HandlerExternalLink, tasks.HandlerFor(domain.TaskGetExternalLinkFromTransID))
	require.Equal(t, tasks.HandlerCartReset, tasks.HandlerFor(domain.TaskCartReset))
}

func TestHandlerForUnknownTaskName(t *testing.T) {
	require.Equal(t, tasks.HandlerUnknown, tasks.HandlerFor(domain.TaskName("bogus")))
}

func TestClassifyRemoteStatus(t *testing.T) {
	require.Equal(t, tasks.RemoteSucceeded, tasks.ClassifyRemoteStatus(string(domain.TaskSuccess)))
	require.Equal(t, tasks.RemoteFailed, tasks.ClassifyRemoteStatus(string(domain.TaskFailure)))
	require.Equal(t, tasks.RemoteStillRunning, tasks.ClassifyRemoteStatus("RUNNING"))
	require.Equal(t, tasks.RemoteStillRunning, tasks.ClassifyRemoteStatus(""))
}

func TestRegistryCreateAndListPending(t *testing.T) {
	gw := storetest.New()
	gw.SeedBot(domain.EdgeBot{ID: 1, NetworkID: "100", CurrencyCode: "USD"})
	gw.SeedServer(domain.EdgeServer{ID: 1, IPAddress: "10.0.0.1:8080", CurrencyCode: "USD"})

	registry := newRegistry(gw)
	ctx := context.Background()

	require.NoError(t, registry.Create(ctx, 1, 1, "task-1", domain.TaskAddSubidsToCart, nil))

	pending, err := registry.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "task-1", pending[0].Task.TaskID)
	require.Equal(t, domain.TaskPending, pending[0].Task.TaskStatus)

	require.NoError(t, registry.UpdateStatus(ctx, "task-1", domain.TaskSuccess))

	pending, err = registry.ListPending(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)
}
