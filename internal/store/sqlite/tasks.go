package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/midasapp/midas-server/internal/domain"
	"github.com/midasapp/midas-server/internal/store"
)

// taskColumns must match the scan order in scanTask.
const taskColumns = `id, created_at, updated_at, deleted_at, project_id, user_id, title, description, state`

func scanTask(row scanner) (*domain.Task, error) {
	var (
		t         domain.Task
		projectID sql.NullString
		state     string
		createdAt string
		updatedAt string
		deletedAt sql.NullString
	)
	if err := row.Scan(&t.ID, &createdAt, &updatedAt, &deletedAt, &projectID, &t.UserID, &t.Title, &t.Description, &state); err != nil {
		return nil, err
	}
	t.ProjectID = projectID.String
	t.State = domain.ProjectState(state)

	var err error
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if t.DeletedAt, err = parseNullableTime(deletedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTask inserts a task.
func (s *Store) CreateTask(ctx context.Context, t *domain.Task) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, created_at, updated_at, deleted_at, project_id, user_id, title, description, state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID,
		formatTime(t.CreatedAt),
		formatTime(t.UpdatedAt),
		nullTimeString(t.DeletedAt),
		nullString(t.ProjectID),
		t.UserID,
		t.Title,
		t.Description,
		string(t.State),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists.WithCause(err)
		}
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

// GetTask retrieves a live task.
func (s *Store) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ? AND deleted_at IS NULL`, taskID)
	t, err := scanTask(row)
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

// UpdateTask writes title, description and state.
func (s *Store) UpdateTask(ctx context.Context, t *domain.Task) error {
	t.Touch()
	result, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET updated_at = ?, title = ?, description = ?, state = ?
		WHERE id = ? AND deleted_at IS NULL`,
		formatTime(t.UpdatedAt), t.Title, t.Description, string(t.State), t.ID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListTasksByProject returns the project's live tasks, oldest first.
func (s *Store) ListTasksByProject(ctx context.Context, projectID string) ([]*domain.Task, error) {
	return s.listTasks(ctx, `project_id = ?`, projectID)
}

// ListTasksByUser returns the live tasks userID created, oldest first.
func (s *Store) ListTasksByUser(ctx context.Context, userID string) ([]*domain.Task, error) {
	return s.listTasks(ctx, `user_id = ?`, userID)
}

func (s *Store) listTasks(ctx context.Context, where string, arg any) ([]*domain.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE `+where+` AND deleted_at IS NULL ORDER BY created_at ASC, id ASC`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []*domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
