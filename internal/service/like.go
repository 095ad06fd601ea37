package service

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/midasapp/midas-server/internal/domain"
	domainerrors "github.com/midasapp/midas-server/internal/errors"
	"github.com/midasapp/midas-server/internal/store"
)

// LikeService records users liking users and projects.
type LikeService struct {
	store  store.Store
	logger *slog.Logger
}

// NewLikeService creates a like service.
func NewLikeService(st store.Store, logger *slog.Logger) *LikeService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &LikeService{store: st, logger: logger}
}

// LikeStatus is a target's like count and whether the requester likes it.
type LikeStatus struct {
	LikeCount int  `json:"likeCount"`
	Like      bool `json:"like"`
}

func (s *LikeService) checkTarget(ctx context.Context, requesterID string, target domain.Owner) error {
	switch target.Kind {
	case domain.OwnerUser:
		if _, err := s.store.GetUser(ctx, target.ID); err != nil {
			return storeErr(err, "user")
		}
	case domain.OwnerProject:
		project, err := s.store.GetProject(ctx, target.ID)
		if err != nil {
			return storeErr(err, "project")
		}
		if !project.VisibleTo(requesterID) {
			return domainerrors.NotFound("project not found")
		}
	default:
		return domainerrors.Validationf("%s cannot be liked", target.Kind)
	}
	return nil
}

// Like records requesterID liking target. Liking twice is not an error.
func (s *LikeService) Like(ctx context.Context, requesterID string, target domain.Owner) (*LikeStatus, error) {
	if err := requireRequester(requesterID); err != nil {
		return nil, err
	}
	if err := s.checkTarget(ctx, requesterID, target); err != nil {
		return nil, err
	}

	_, err := s.store.CreateLike(ctx, requesterID, target)
	switch {
	case err == nil:
		s.logger.Info("liked", "user_id", requesterID, "target", target.String())
	case errors.Is(err, store.ErrAlreadyExists):
	default:
		return nil, storeErr(err, "like")
	}
	return s.Status(ctx, requesterID, target)
}

// Unlike removes requesterID's like of target. Unliking twice is not an error.
func (s *LikeService) Unlike(ctx context.Context, requesterID string, target domain.Owner) (*LikeStatus, error) {
	if err := requireRequester(requesterID); err != nil {
		return nil, err
	}
	if !target.Kind.Valid() || target.Kind == domain.OwnerTask {
		return nil, domainerrors.Validationf("%s cannot be liked", target.Kind)
	}

	err := s.store.DeleteLike(ctx, requesterID, target)
	switch {
	case err == nil:
		s.logger.Info("unliked", "user_id", requesterID, "target", target.String())
	case errors.Is(err, store.ErrNotFound):
	default:
		return nil, storeErr(err, "like")
	}
	return s.Status(ctx, requesterID, target)
}

// Status returns target's like count and whether requesterID likes it.
func (s *LikeService) Status(ctx context.Context, requesterID string, target domain.Owner) (*LikeStatus, error) {
	n, err := s.store.CountLikes(ctx, target)
	if err != nil {
		return nil, storeErr(err, "likes")
	}
	status := &LikeStatus{LikeCount: n}
	if requesterID == "" {
		return status, nil
	}
	like, err := s.store.FindLike(ctx, requesterID, target)
	if err != nil {
		return nil, storeErr(err, "like")
	}
	status.Like = like != nil
	return status, nil
}
