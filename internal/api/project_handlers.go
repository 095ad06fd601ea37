package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/midasapp/midas-server/internal/service"
)

func (s *Server) registerProjectRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "createProject",
		Method:        http.MethodPost,
		Path:          "/api/v1/projects",
		Summary:       "Create project",
		Description:   "Creates a draft project owned by the authenticated user",
		Tags:          []string{"Projects"},
		Security:      bearer,
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateProject)

	huma.Register(s.api, huma.Operation{
		OperationID: "getProject",
		Method:      http.MethodGet,
		Path:        "/api/v1/projects/{id}",
		Summary:     "Get project",
		Description: "Returns a project with likes and tags. Private projects are visible to their owners only.",
		Tags:        []string{"Projects"},
		Security:    bearer,
	}, s.handleGetProject)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateProjectCoreMeta",
		Method:      http.MethodPatch,
		Path:        "/api/v1/projects/{id}",
		Summary:     "Update project",
		Description: "Updates title and description. HTML descriptions are stored as Markdown.",
		Tags:        []string{"Projects"},
		Security:    bearer,
	}, s.handleUpdateProject)

	huma.Register(s.api, huma.Operation{
		OperationID: "listProjectTasks",
		Method:      http.MethodGet,
		Path:        "/api/v1/projects/{id}/tasks",
		Summary:     "List project tasks",
		Description: "Returns the project's tasks with their tags",
		Tags:        []string{"Projects"},
		Security:    bearer,
	}, s.handleListProjectTasks)
}

// === DTOs ===

// CreateProjectInput wraps a new project.
type CreateProjectInput struct {
	Body service.CreateProjectRequest
}

// ProjectIDInput identifies a project.
type ProjectIDInput struct {
	ID string `path:"id" doc:"Project ID"`
}

// UpdateProjectInput wraps core metadata edits.
type UpdateProjectInput struct {
	ID   string `path:"id" doc:"Project ID"`
	Body service.UpdateCoreMetaRequest
}

// ProjectOutput wraps a project view.
type ProjectOutput struct {
	Body *service.ProjectView
}

// TaskListOutput wraps a list of tasks.
type TaskListOutput struct {
	Body []*service.TaskView
}

// === Handlers ===

func (s *Server) handleCreateProject(ctx context.Context, input *CreateProjectInput) (*ProjectOutput, error) {
	view, err := s.services.Projects.Create(ctx, requesterID(ctx), input.Body)
	if err != nil {
		return nil, err
	}
	return &ProjectOutput{Body: view}, nil
}

func (s *Server) handleGetProject(ctx context.Context, input *ProjectIDInput) (*ProjectOutput, error) {
	view, err := s.services.Projects.Get(ctx, requesterID(ctx), input.ID)
	if err != nil {
		return nil, err
	}
	return &ProjectOutput{Body: view}, nil
}

func (s *Server) handleUpdateProject(ctx context.Context, input *UpdateProjectInput) (*ProjectOutput, error) {
	view, err := s.services.Projects.UpdateCoreMeta(ctx, requesterID(ctx), input.ID, input.Body)
	if err != nil {
		return nil, err
	}
	return &ProjectOutput{Body: view}, nil
}

func (s *Server) handleListProjectTasks(ctx context.Context, input *ProjectIDInput) (*TaskListOutput, error) {
	tasks, err := s.services.Projects.ListTasks(ctx, requesterID(ctx), input.ID)
	if err != nil {
		return nil, err
	}
	return &TaskListOutput{Body: tasks}, nil
}
