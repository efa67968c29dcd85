package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/nao1215/crawlgraph/internal/model"
)

// CreateTasks queues one task per resource.
func (cdb *CrawlDB) CreateTasks(ctx context.Context, resourceIDs []int64, territoireID int64, depth int) error {
	if len(resourceIDs) == 0 {
		return nil
	}
	err := cdb.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range resourceIDs {
			if _, err := cdb.exec(ctx, tx,
				`INSERT INTO get_expression_tasks (resource_id, territoire_id, depth) VALUES (?, ?, ?)`,
				id, territoireID, depth); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create tasks: %w", err)
	}
	return nil
}

// PickTasks claims up to n unclaimed tasks, oldest first.
func (cdb *CrawlDB) PickTasks(ctx context.Context, n int) ([]model.Task, error) {
	tasks := make([]model.Task, 0, max(n, 0))
	if n <= 0 {
		return tasks, nil
	}

	rows, err := cdb.query(ctx, cdb.db, cdb.dialect.pickTasksQuery(), time.Now().Unix(), n)
	if err != nil {
		return nil, fmt.Errorf("failed to pick tasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t model.Task
		if err := rows.Scan(&t.ID, &t.ResourceID, &t.TerritoireID, &t.Depth); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	// RETURNING does not promise any order.
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

// DeleteTask removes a task. Deleting a missing task is not an error.
func (cdb *CrawlDB) DeleteTask(ctx context.Context, id int64) error {
	if _, err := cdb.exec(ctx, cdb.db, `DELETE FROM get_expression_tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

// CountTasksByTerritoire returns the number of pending tasks, claimed or not.
func (cdb *CrawlDB) CountTasksByTerritoire(ctx context.Context, territoireID int64) (int, error) {
	var count int
	err := cdb.queryRow(ctx, cdb.db,
		`SELECT COUNT(*) FROM get_expression_tasks WHERE territoire_id = ?`, territoireID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return count, nil
}

// ReleaseStaleTasks makes tasks claimed more than olderThan ago available
// again.
func (cdb *CrawlDB) ReleaseStaleTasks(ctx context.Context, olderThan time.Duration) (int64, error) {
	limit := time.Now().Add(-olderThan).Unix()
	res, err := cdb.exec(ctx, cdb.db,
		`UPDATE get_expression_tasks SET claimed_at = NULL
		WHERE claimed_at IS NOT NULL AND claimed_at < ?`, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to release stale tasks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}
