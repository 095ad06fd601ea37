package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/midasapp/midas-server/internal/domain"
	"github.com/midasapp/midas-server/internal/service"
)

func (s *Server) registerLikeRoutes() {
	s.registerLikeRoutesFor("users", domain.UserOwner)
	s.registerLikeRoutesFor("projects", domain.ProjectOwner)
}

// registerLikeRoutesFor adds GET, POST and DELETE /{collection}/{id}/like.
func (s *Server) registerLikeRoutesFor(collection string, target func(id string) domain.Owner) {
	path := "/api/v1/" + collection + "/{id}/like"

	huma.Register(s.api, huma.Operation{
		OperationID: "get-" + collection + "-like",
		Method:      http.MethodGet,
		Path:        path,
		Summary:     "Like status",
		Description: "Returns the like count and whether the requester likes it",
		Tags:        []string{"Likes"},
		Security:    bearer,
	}, func(ctx context.Context, input *LikeInput) (*LikeOutput, error) {
		status, err := s.services.Likes.Status(ctx, requesterID(ctx), target(input.ID))
		return likeOutput(status, err)
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "like-" + collection,
		Method:      http.MethodPost,
		Path:        path,
		Summary:     "Like",
		Description: "Likes it. Liking twice changes nothing.",
		Tags:        []string{"Likes"},
		Security:    bearer,
	}, func(ctx context.Context, input *LikeInput) (*LikeOutput, error) {
		status, err := s.services.Likes.Like(ctx, requesterID(ctx), target(input.ID))
		return likeOutput(status, err)
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "unlike-" + collection,
		Method:      http.MethodDelete,
		Path:        path,
		Summary:     "Unlike",
		Description: "Removes the requester's like if present",
		Tags:        []string{"Likes"},
		Security:    bearer,
	}, func(ctx context.Context, input *LikeInput) (*LikeOutput, error) {
		status, err := s.services.Likes.Unlike(ctx, requesterID(ctx), target(input.ID))
		return likeOutput(status, err)
	})
}

// === DTOs ===

// LikeInput identifies the liked record.
type LikeInput struct {
	ID string `path:"id" doc:"ID of the user or project"`
}

// LikeOutput wraps a like status.
type LikeOutput struct {
	Body *service.LikeStatus
}

func likeOutput(status *service.LikeStatus, err error) (*LikeOutput, error) {
	if err != nil {
		return nil, err
	}
	return &LikeOutput{Body: status}, nil
}
