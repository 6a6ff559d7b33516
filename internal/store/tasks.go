package store

import (
	"context"
	"fmt"

	"github.com/timour/edgedispatch/internal/domain"
)

type taskStore struct {
	pg *Postgres
}

// Create mirrors original_source/controllers/edge.py's create_edge_task.
func (s *taskStore) Create(ctx context.Context, serverID, botID int64, taskID string, taskName domain.TaskName, shoppingCartGID *string) error {
	query := `
		INSERT INTO edge_task (task_id, task_name, task_status, edge_bot_id, edge_server_id, shopping_cart_gid, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
	`
	_, err := s.pg.db.ExecContext(ctx, query, taskID, string(taskName), string(domain.TaskPending), botID, serverID, shoppingCartGID)
	if err != nil {
		return fmt.Errorf("create task %s: %w", taskID, err)
	}
	return nil
}

func (s *taskStore) UpdateStatus(ctx context.Context, taskID string, status domain.TaskStatus) error {
	query := `UPDATE edge_task SET task_status = $1 WHERE task_id = $2`
	if _, err := s.pg.db.ExecContext(ctx, query, string(status), taskID); err != nil {
		return fmt.Errorf("update task %s status: %w", taskID, err)
	}
	return nil
}

// ListPending mirrors get_pending_tasks, joined with the bot/server data
// process_pending_tasks needs to poll and react.
func (s *taskStore) ListPending(ctx context.Context) ([]PendingTask, error) {
	query := `
		SELECT t.task_id, t.task_name, t.task_status, t.edge_bot_id, t.edge_server_id, t.created_at, t.shopping_cart_gid,
			s.ip_address, b.network_id
		FROM edge_task t
		JOIN edge_server s ON s.id = t.edge_server_id
		JOIN edge_bot b ON b.id = t.edge_bot_id
		WHERE t.task_status = $1
	`

	rows, err := s.pg.db.QueryContext(ctx, query, string(domain.TaskPending))
	if err != nil {
		return nil, fmt.Errorf("list pending tasks: %w", err)
	}
	defer rows.Close()

	var out []PendingTask
	for rows.Next() {
		var (
			pt       PendingTask
			taskName string
			status   string
		)
		if err := rows.Scan(
			&pt.Task.TaskID, &taskName, &status, &pt.Task.EdgeBotID, &pt.Task.EdgeServerID, &pt.Task.CreatedAt, &pt.Task.ShoppingCartGID,
			&pt.ServerIPAddress, &pt.BotNetworkID,
		); err != nil {
			return nil, fmt.Errorf("scan pending task: %w", err)
		}
		pt.Task.TaskName = domain.TaskName(taskName)
		pt.Task.TaskStatus = domain.TaskStatus(status)
		out = append(out, pt)
	}

	return out, rows.Err()
}
