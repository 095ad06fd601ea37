package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/midasapp/midas-server/internal/domain"
	"github.com/midasapp/midas-server/internal/store"
)

// projectColumns must match the scan order in scanProject.
const projectColumns = `id, created_at, updated_at, deleted_at, title, description, state, is_public`

func scanProject(row scanner) (*domain.Project, error) {
	var (
		p         domain.Project
		state     string
		isPublic  int
		createdAt string
		updatedAt string
		deletedAt sql.NullString
	)
	if err := row.Scan(&p.ID, &createdAt, &updatedAt, &deletedAt, &p.Title, &p.Description, &state, &isPublic); err != nil {
		return nil, err
	}
	p.State = domain.ProjectState(state)
	p.IsPublic = isPublic != 0

	var err error
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if p.DeletedAt, err = parseNullableTime(deletedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProject inserts a project and its owner rows in one transaction.
func (s *Store) CreateProject(ctx context.Context, p *domain.Project) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO projects (id, created_at, updated_at, deleted_at, title, description, state, is_public)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		formatTime(p.CreatedAt),
		formatTime(p.UpdatedAt),
		nullTimeString(p.DeletedAt),
		p.Title,
		p.Description,
		string(p.State),
		boolInt(p.IsPublic),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists.WithCause(err)
		}
		return fmt.Errorf("insert project: %w", err)
	}

	now := formatTime(time.Now().UTC())
	for _, ownerID := range p.OwnerIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO project_owners (project_id, user_id, created_at) VALUES (?, ?, ?)`,
			p.ID, ownerID, now); err != nil {
			return fmt.Errorf("insert project owner: %w", err)
		}
	}

	return tx.Commit()
}

// GetProject retrieves a live project with its owner IDs.
func (s *Store) GetProject(ctx context.Context, projectID string) (*domain.Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = ? AND deleted_at IS NULL`, projectID)
	p, err := scanProject(row)
	if err != nil {
		return nil, notFound(err)
	}
	if p.OwnerIDs, err = s.projectOwnerIDs(ctx, p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateProject writes title, description, state and visibility.
func (s *Store) UpdateProject(ctx context.Context, p *domain.Project) error {
	p.Touch()
	result, err := s.db.ExecContext(ctx, `
		UPDATE projects SET updated_at = ?, title = ?, description = ?, state = ?, is_public = ?
		WHERE id = ? AND deleted_at IS NULL`,
		formatTime(p.UpdatedAt), p.Title, p.Description, string(p.State), boolInt(p.IsPublic), p.ID)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListProjectsByOwner returns the live projects userID owns, newest first.
func (s *Store) ListProjectsByOwner(ctx context.Context, userID string) ([]*domain.Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixColumns("p", projectColumns)+`
		FROM projects p
		JOIN project_owners o ON o.project_id = p.id
		WHERE o.user_id = ? AND p.deleted_at IS NULL
		ORDER BY p.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := []*domain.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	for _, p := range projects {
		if p.OwnerIDs, err = s.projectOwnerIDs(ctx, p.ID); err != nil {
			return nil, err
		}
	}
	return projects, nil
}

func (s *Store) projectOwnerIDs(ctx context.Context, projectID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id FROM project_owners WHERE project_id = ? ORDER BY created_at ASC, user_id ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		ids = append(ids, userID)
	}
	return ids, rows.Err()
}
