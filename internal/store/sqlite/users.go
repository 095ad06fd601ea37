package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/midasapp/midas-server/internal/domain"
	"github.com/midasapp/midas-server/internal/store"
)

// userColumns is the ordered list of columns selected in user queries.
// Must match the scan order in scanUser.
const userColumns = `id, created_at, updated_at, deleted_at, name, username, email,
	title, bio, photo_id, photo_url, password_hash`

func scanUser(row scanner) (*domain.User, error) {
	var (
		u         domain.User
		createdAt string
		updatedAt string
		deletedAt sql.NullString
		photoID   sql.NullString
		photoURL  sql.NullString
	)

	err := row.Scan(
		&u.ID,
		&createdAt,
		&updatedAt,
		&deletedAt,
		&u.Name,
		&u.Username,
		&u.Email,
		&u.Title,
		&u.Bio,
		&photoID,
		&photoURL,
		&u.PasswordHash,
	)
	if err != nil {
		return nil, err
	}

	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if u.DeletedAt, err = parseNullableTime(deletedAt); err != nil {
		return nil, err
	}
	u.PhotoID = photoID.String
	u.PhotoURL = photoURL.String

	return &u, nil
}

// RegisterUser inserts a user, its primary email and its auth link in one transaction.
// Returns store.ErrAlreadyExists when the username, email or provider account is taken.
func (s *Store) RegisterUser(ctx context.Context, reg *store.Registration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	u := reg.User
	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, created_at, updated_at, deleted_at, name, username, username_lower,
			email, title, bio, photo_id, photo_url, password_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID,
		formatTime(u.CreatedAt),
		formatTime(u.UpdatedAt),
		nullTimeString(u.DeletedAt),
		u.Name,
		u.Username,
		strings.ToLower(u.Username),
		u.Email,
		u.Title,
		u.Bio,
		nullString(u.PhotoID),
		nullString(u.PhotoURL),
		u.PasswordHash,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists.WithCause(err)
		}
		return fmt.Errorf("insert user: %w", err)
	}

	if reg.Email != nil {
		if err := insertUserEmail(ctx, tx, reg.Email); err != nil {
			return err
		}
	}
	if reg.Auth != nil {
		if err := insertUserAuth(ctx, tx, reg.Auth); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetUser retrieves a live user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ? AND deleted_at IS NULL`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

// GetUserByUsername looks a user up case-insensitively.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username_lower = ? AND deleted_at IS NULL`,
		strings.ToLower(strings.TrimSpace(username)))
	u, err := scanUser(row)
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

// GetUserByEmail finds the owner of any registered address, case-insensitively.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+prefixColumns("u", userColumns)+`
		FROM users u
		JOIN user_emails e ON e.user_id = u.id
		WHERE e.email_lower = ? AND u.deleted_at IS NULL`,
		strings.ToLower(strings.TrimSpace(email)))
	u, err := scanUser(row)
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

// UpdateUser writes every mutable profile field and bumps updated_at.
func (s *Store) UpdateUser(ctx context.Context, u *domain.User) error {
	u.Touch()
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET
			updated_at = ?, name = ?, username = ?, username_lower = ?, email = ?,
			title = ?, bio = ?, photo_id = ?, photo_url = ?, password_hash = ?
		WHERE id = ? AND deleted_at IS NULL`,
		formatTime(u.UpdatedAt),
		u.Name,
		u.Username,
		strings.ToLower(u.Username),
		u.Email,
		u.Title,
		u.Bio,
		nullString(u.PhotoID),
		nullString(u.PhotoURL),
		u.PasswordHash,
		u.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists.WithCause(err)
		}
		return fmt.Errorf("update user: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// prefixColumns qualifies a comma separated column list with a table alias.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
