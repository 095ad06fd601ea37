package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/midasapp/midas-server/internal/service"
)

// meAlias resolves to the authenticated user in /users/{id} paths.
const meAlias = "me"

func (s *Server) registerUserRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getUser",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/{id}",
		Summary:     "Get user",
		Description: "Returns a user's profile with tags and likes. Auth providers and emails are included only for the user themself.",
		Tags:        []string{"Users"},
		Security:    bearer,
	}, s.handleGetUser)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateMe",
		Method:      http.MethodPatch,
		Path:        "/api/v1/users/me",
		Summary:     "Update profile",
		Description: "Updates the authenticated user's profile. A supplied auths list keeps only the listed providers.",
		Tags:        []string{"Users"},
		Security:    bearer,
	}, s.handleUpdateMe)

	huma.Register(s.api, huma.Operation{
		OperationID:   "addEmail",
		Method:        http.MethodPost,
		Path:          "/api/v1/users/me/emails",
		Summary:       "Add email",
		Description:   "Registers another email address for the authenticated user",
		Tags:          []string{"Users"},
		Security:      bearer,
		DefaultStatus: http.StatusCreated,
	}, s.handleAddEmail)

	huma.Register(s.api, huma.Operation{
		OperationID: "checkUsername",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/username/{username}",
		Summary:     "Check username",
		Description: "Reports whether a username is held by someone other than the requester",
		Tags:        []string{"Users"},
		Security:    bearer,
	}, s.handleCheckUsername)

	huma.Register(s.api, huma.Operation{
		OperationID: "getUserActivities",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/{id}/activities",
		Summary:     "Get activities",
		Description: "Lists projects the user owns and tasks the user created",
		Tags:        []string{"Users"},
		Security:    bearer,
	}, s.handleGetActivities)

	huma.Register(s.api, huma.Operation{
		OperationID:   "getUserPhoto",
		Method:        http.MethodGet,
		Path:          "/api/v1/users/{id}/photo",
		Summary:       "Get photo",
		Description:   "Redirects to the user's photo or the default avatar",
		Tags:          []string{"Users"},
		DefaultStatus: http.StatusTemporaryRedirect,
	}, s.handleGetPhoto)
}

// === DTOs ===

// UserIDInput identifies a user by ID, or "me".
type UserIDInput struct {
	ID string `path:"id" doc:"User ID, or 'me' for the authenticated user"`
}

// UserOutput wraps the user aggregate for Huma.
type UserOutput struct {
	Body *service.UserAggregate
}

// UpdateMeInput wraps profile edits.
type UpdateMeInput struct {
	Body service.UpdateUserRequest
}

// UpdateMeOutput wraps the saved profile.
type UpdateMeOutput struct {
	Body *service.UpdateUserResponse
}

// AddEmailInput wraps a new email address.
type AddEmailInput struct {
	Body service.AddEmailRequest
}

// EmailOutput wraps a registered email address.
type EmailOutput struct {
	Body *service.EmailEntry
}

// CheckUsernameInput names a username to check.
type CheckUsernameInput struct {
	Username string `path:"username" doc:"Username to check"`
}

// UsernameResponse reports whether a username is taken.
type UsernameResponse struct {
	Username string `json:"username" doc:"Checked username"`
	Taken    bool   `json:"taken" doc:"Whether another user holds it"`
}

// UsernameOutput wraps the username check for Huma.
type UsernameOutput struct {
	Body UsernameResponse
}

// ActivitiesOutput wraps a user's activities.
type ActivitiesOutput struct {
	Body *service.Activities
}

// PhotoOutput redirects to a photo.
type PhotoOutput struct {
	Location string `header:"Location"`
}

// === Handlers ===

// resolveUserID maps the "me" alias to the requester.
func resolveUserID(ctx context.Context, id string) (string, error) {
	if id == meAlias {
		return GetUserID(ctx)
	}
	return id, nil
}

func (s *Server) handleGetUser(ctx context.Context, input *UserIDInput) (*UserOutput, error) {
	userID, err := resolveUserID(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	agg, err := s.services.Users.Assemble(ctx, userID, requesterID(ctx))
	if err != nil {
		return nil, err
	}
	return &UserOutput{Body: agg}, nil
}

func (s *Server) handleUpdateMe(ctx context.Context, input *UpdateMeInput) (*UpdateMeOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := s.services.Users.Update(ctx, userID, input.Body)
	if err != nil {
		return nil, partialFailure(err, resp)
	}
	return &UpdateMeOutput{Body: resp}, nil
}

func (s *Server) handleAddEmail(ctx context.Context, input *AddEmailInput) (*EmailOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	email, err := s.services.Users.AddEmail(ctx, userID, input.Body)
	if err != nil {
		return nil, err
	}
	return &EmailOutput{Body: email}, nil
}

func (s *Server) handleCheckUsername(ctx context.Context, input *CheckUsernameInput) (*UsernameOutput, error) {
	taken, err := s.services.Users.UsernameTaken(ctx, requesterID(ctx), input.Username)
	if err != nil {
		return nil, err
	}
	return &UsernameOutput{Body: UsernameResponse{Username: input.Username, Taken: taken}}, nil
}

func (s *Server) handleGetActivities(ctx context.Context, input *UserIDInput) (*ActivitiesOutput, error) {
	userID, err := resolveUserID(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	activities, err := s.services.Users.Activities(ctx, requesterID(ctx), userID)
	if err != nil {
		return nil, err
	}
	return &ActivitiesOutput{Body: activities}, nil
}

func (s *Server) handleGetPhoto(ctx context.Context, input *UserIDInput) (*PhotoOutput, error) {
	userID, err := resolveUserID(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &PhotoOutput{Location: s.services.Users.PhotoLocation(ctx, userID)}, nil
}
