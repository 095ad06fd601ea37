package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/midasapp/midas-server/internal/domain"
	"github.com/midasapp/midas-server/internal/store"
)

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertUserAuth(ctx context.Context, db execer, a *domain.UserAuth) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO user_auths (id, user_id, provider, provider_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Provider, a.ProviderID, formatTime(a.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists.WithCause(err)
		}
		return fmt.Errorf("insert user auth: %w", err)
	}
	return nil
}

func insertUserEmail(ctx context.Context, db execer, e *domain.UserEmail) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO user_emails (id, user_id, email, email_lower, is_primary, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Email, strings.ToLower(strings.TrimSpace(e.Email)), boolInt(e.IsPrimary), formatTime(e.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists.WithCause(err)
		}
		return fmt.Errorf("insert user email: %w", err)
	}
	return nil
}

// CreateUserAuth links an identity provider account to a user.
func (s *Store) CreateUserAuth(ctx context.Context, a *domain.UserAuth) error {
	return insertUserAuth(ctx, s.db, a)
}

// ListUserAuths returns the user's provider links, oldest first.
func (s *Store) ListUserAuths(ctx context.Context, userID string) ([]domain.UserAuth, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, provider, provider_id, created_at
		FROM user_auths WHERE user_id = ? ORDER BY created_at ASC, id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	auths := []domain.UserAuth{}
	for rows.Next() {
		var (
			a         domain.UserAuth
			createdAt string
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.Provider, &a.ProviderID, &createdAt); err != nil {
			return nil, err
		}
		if a.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		auths = append(auths, a)
	}
	return auths, rows.Err()
}

// DeleteUserAuth removes a provider link.
func (s *Store) DeleteUserAuth(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM user_auths WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user auth: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CreateUserEmail registers an additional address.
func (s *Store) CreateUserEmail(ctx context.Context, e *domain.UserEmail) error {
	return insertUserEmail(ctx, s.db, e)
}

// ListUserEmails returns the user's addresses, primary first.
func (s *Store) ListUserEmails(ctx context.Context, userID string) ([]domain.UserEmail, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, email, is_primary, created_at
		FROM user_emails WHERE user_id = ? ORDER BY is_primary DESC, created_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	emails := []domain.UserEmail{}
	for rows.Next() {
		var (
			e         domain.UserEmail
			isPrimary int
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Email, &isPrimary, &createdAt); err != nil {
			return nil, err
		}
		e.IsPrimary = isPrimary != 0
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}
