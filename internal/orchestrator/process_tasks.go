package orchestrator

import (
	"context"

	"github.com/timour/edgedispatch/internal/domain"
	"github.com/timour/edgedispatch/internal/edgeclient"
	"github.com/timour/edgedispatch/internal/store"
	"github.com/timour/edgedispatch/internal/tasks"
)

// ProcessPendingTasks polls every task still PENDING locally, reacts to its
// remote status, and dispatches the named handler on SUCCESS. Intentionally
// single-threaded to avoid double-dispatching checkouts.
func (a *App) ProcessPendingTasks(ctx context.Context) error {
	pending, err := a.Tasks.ListPending(ctx)
	if err != nil {
		return err
	}

	for _, pt := range pending {
		a.processOneTask(ctx, pt)
	}

	return nil
}

func (a *App) processOneTask(ctx context.Context, pt store.PendingTask) {
	if a.Business != nil {
		a.Business.TasksPolled.Inc()
	}

	resp, cl := a.Edge.TaskState(ctx, pt.ServerIPAddress, string(pt.Task.TaskName), pt.Task.TaskID)
	if cl.Kind != edgeclient.Ok {
		a.Logger.Info("process_pending_tasks: poll failed, marking task failed", "task_id", pt.Task.TaskID, "classification", cl.String())
		a.resolveTask(ctx, pt.Task.TaskID, domain.TaskFailure)
		return
	}

	switch tasks.ClassifyRemoteStatus(resp.TaskStatus) {
	case tasks.RemoteStillRunning:
		return
	case tasks.RemoteFailed:
		a.resolveTask(ctx, pt.Task.TaskID, domain.TaskFailure)
		return
	case tasks.RemoteSucceeded:
		if a.Archive != nil {
			if err := a.Archive.Record(ctx, pt.Task.TaskID, string(pt.Task.TaskName), resp.TaskStatus, resp.TaskResult); err != nil {
				a.Logger.Error("process_pending_tasks: archive result", "task_id", pt.Task.TaskID, "error", err)
			}
		}

		if !resp.TaskResult.IsNull() {
			a.dispatchResult(ctx, pt, resp.TaskResult)
		}
		a.resolveTask(ctx, pt.Task.TaskID, domain.TaskSuccess)
	}
}

func (a *App) resolveTask(ctx context.Context, taskID string, status domain.TaskStatus) {
	if err := a.Tasks.UpdateStatus(ctx, taskID, status); err != nil {
		a.Logger.Error("process_pending_tasks: update task status", "task_id", taskID, "error", err)
	}
	if a.Business != nil {
		a.Business.TasksResolved.WithLabelValues(string(status)).Inc()
	}
}

func (a *App) dispatchResult(ctx context.Context, pt store.PendingTask, raw edgeclient.RawTaskResult) {
	switch tasks.HandlerFor(pt.Task.TaskName) {
	case tasks.HandlerCartResult:
		a.handleCartResult(ctx, pt, raw)
	case tasks.HandlerCheckoutResult:
		a.handleCheckoutResult(ctx, pt, raw)
	case tasks.HandlerExternalLink:
		a.handleExternalLinkResult(ctx, pt, raw)
	case tasks.HandlerCartReset:
		// cart_reset carries no actionable result; nothing to do beyond the
		// status update processOneTask already performs.
	case tasks.HandlerUnknown:
		a.Logger.Error("process_pending_tasks: unknown task name", "task_name", pt.Task.TaskName)
	}
}
