package repo

import (
	"context"
	"fmt"

	"taskboard/internal/domain"
)

// SeedSampleData inserts the given tasks only when the tasks table is empty.
// It reports whether anything was written.
func (r Repo) SeedSampleData(ctx context.Context, tasks ...domain.Task) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM tasks`).Scan(&n); err != nil {
		return false, fmt.Errorf("count tasks: %w", err)
	}
	if n > 0 || len(tasks) == 0 {
		return false, nil
	}
	for _, t := range tasks {
		if _, err := tx.ExecContext(ctx, `INSERT INTO tasks(id,title,description,priority,status,due_date,project_id,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?)`,
			t.ID, t.Title, nullable(t.Description), t.Priority, t.Status, nullable(t.DueDate), nullableStringPtr(t.ProjectID), t.CreatedAt, t.UpdatedAt); err != nil {
			return false, fmt.Errorf("seed task %s: %w", t.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}
