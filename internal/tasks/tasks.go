// Package tasks is the task registry: a thin wrapper over the persisted
// edge_task rows plus the task-name dispatch the poller needs. Grounded on
// original_source/controllers/edge.py's get_task_callback, restructured
// around a tagged HandlerKind and an exhaustive switch instead of a
// string-keyed function table.
package tasks

import (
	"context"

	"github.com/timour/edgedispatch/internal/domain"
	"github.com/timour/edgedispatch/internal/store"
)

// Registry wraps store.TaskStore with the correlation helpers the
// orchestrator's dispatch and poll flows need.
type Registry struct {
	store store.TaskStore
}

func New(s store.TaskStore) *Registry {
	return &Registry{store: s}
}

func (r *Registry) Create(ctx context.Context, serverID, botID int64, taskID string, taskName domain.TaskName, shoppingCartGID *string) error {
	return r.store.Create(ctx, serverID, botID, taskID, taskName, shoppingCartGID)
}

func (r *Registry) UpdateStatus(ctx context.Context, taskID string, status domain.TaskStatus) error {
	return r.store.UpdateStatus(ctx, taskID, status)
}

func (r *Registry) ListPending(ctx context.Context) ([]store.PendingTask, error) {
	return r.store.ListPending(ctx)
}

// HandlerKind tags which result handler a completed task name routes to,
// in place of a string-keyed function table.
type HandlerKind int

const (
	HandlerUnknown HandlerKind = iota
	HandlerCartResult
	HandlerCheckoutResult
	HandlerExternalLink
	HandlerCartReset
)

// HandlerFor maps a task name to its handler kind.
func HandlerFor(name domain.TaskName) HandlerKind {
	switch name {
	case domain.TaskAddSubidsToCart:
		return HandlerCartResult
	case domain.TaskCheckoutCart:
		return HandlerCheckoutResult
	case domain.TaskGetExternalLinkFromTransID:
		return HandlerExternalLink
	case domain.TaskCartReset:
		return HandlerCartReset
	default:
		return HandlerUnknown
	}
}

// RemoteOutcome classifies a task/state/ poll response: PENDING/RUNNING
// leave the task untouched, FAILURE is terminal with no handler, SUCCESS is
// terminal and dispatches.
type RemoteOutcome int

const (
	RemoteStillRunning RemoteOutcome = iota
	RemoteFailed
	RemoteSucceeded
)

func ClassifyRemoteStatus(status string) RemoteOutcome {
	switch status {
	case string(domain.TaskSuccess):
		return RemoteSucceeded
	case string(domain.TaskFailure):
		return RemoteFailed
	default:
		return RemoteStillRunning
	}
}
