package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/midasapp/midas-server/internal/domain"
	"github.com/midasapp/midas-server/internal/id"
	"github.com/midasapp/midas-server/internal/store"
)

// CreateLike records userID liking target. Returns store.ErrAlreadyExists on a repeat like.
func (s *Store) CreateLike(ctx context.Context, userID string, target domain.Owner) (*domain.Like, error) {
	likeID, err := id.Generate(id.Like)
	if err != nil {
		return nil, fmt.Errorf("generate like id: %w", err)
	}
	like := &domain.Like{ID: likeID, UserID: userID, Target: target, CreatedAt: time.Now().UTC()}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO likes (id, user_id, target_kind, target_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		like.ID, userID, string(target.Kind), target.ID, formatTime(like.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrAlreadyExists.WithCause(err)
		}
		return nil, fmt.Errorf("insert like: %w", err)
	}
	return like, nil
}

// DeleteLike removes userID's like of target.
func (s *Store) DeleteLike(ctx context.Context, userID string, target domain.Owner) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM likes WHERE user_id = ? AND target_kind = ? AND target_id = ?`,
		userID, string(target.Kind), target.ID)
	if err != nil {
		return fmt.Errorf("delete like: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CountLikes counts the likes of target.
func (s *Store) CountLikes(ctx context.Context, target domain.Owner) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM likes WHERE target_kind = ? AND target_id = ?`,
		string(target.Kind), target.ID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count likes: %w", err)
	}
	return n, nil
}

// FindLike returns userID's like of target, or nil when there is none.
func (s *Store) FindLike(ctx context.Context, userID string, target domain.Owner) (*domain.Like, error) {
	var (
		like      = domain.Like{UserID: userID, Target: target}
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, created_at FROM likes WHERE user_id = ? AND target_kind = ? AND target_id = ?`,
		userID, string(target.Kind), target.ID).Scan(&like.ID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find like: %w", err)
	}
	if like.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &like, nil
}
