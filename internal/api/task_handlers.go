package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/midasapp/midas-server/internal/service"
)

func (s *Server) registerTaskRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "createTask",
		Method:        http.MethodPost,
		Path:          "/api/v1/tasks",
		Summary:       "Create task",
		Description:   "Creates a draft task, standalone or inside a project the user owns",
		Tags:          []string{"Tasks"},
		Security:      bearer,
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateTask)

	huma.Register(s.api, huma.Operation{
		OperationID: "getTask",
		Method:      http.MethodGet,
		Path:        "/api/v1/tasks/{id}",
		Summary:     "Get task",
		Description: "Returns a task with its tags",
		Tags:        []string{"Tasks"},
		Security:    bearer,
	}, s.handleGetTask)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateTask",
		Method:      http.MethodPatch,
		Path:        "/api/v1/tasks/{id}",
		Summary:     "Update task",
		Description: "Updates task fields and, when tags are supplied, reconciles them. Fields are saved even if some tag operations fail.",
		Tags:        []string{"Tasks"},
		Security:    bearer,
	}, s.handleUpdateTask)
}

// === DTOs ===

// CreateTaskInput wraps a new task.
type CreateTaskInput struct {
	Body service.CreateTaskRequest
}

// TaskIDInput identifies a task.
type TaskIDInput struct {
	ID string `path:"id" doc:"Task ID"`
}

// UpdateTaskInput wraps task edits.
type UpdateTaskInput struct {
	ID   string `path:"id" doc:"Task ID"`
	Body service.UpdateTaskRequest
}

// TaskOutput wraps a task view.
type TaskOutput struct {
	Body *service.TaskView
}

// UpdateTaskOutput wraps the saved task and reconcile result.
type UpdateTaskOutput struct {
	Body *service.UpdateTaskResponse
}

// === Handlers ===

func (s *Server) handleCreateTask(ctx context.Context, input *CreateTaskInput) (*TaskOutput, error) {
	view, err := s.services.Tasks.Create(ctx, requesterID(ctx), input.Body)
	if err != nil {
		return nil, err
	}
	return &TaskOutput{Body: view}, nil
}

func (s *Server) handleGetTask(ctx context.Context, input *TaskIDInput) (*TaskOutput, error) {
	view, err := s.services.Tasks.Get(ctx, requesterID(ctx), input.ID)
	if err != nil {
		return nil, err
	}
	return &TaskOutput{Body: view}, nil
}

func (s *Server) handleUpdateTask(ctx context.Context, input *UpdateTaskInput) (*UpdateTaskOutput, error) {
	resp, err := s.services.Tasks.Update(ctx, requesterID(ctx), input.ID, input.Body)
	if err != nil {
		return nil, partialFailure(err, resp)
	}
	return &UpdateTaskOutput{Body: resp}, nil
}
