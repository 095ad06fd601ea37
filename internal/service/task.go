package service

import (
	"context"
	"io"
	"log/slog"

	"github.com/midasapp/midas-server/internal/domain"
	domainerrors "github.com/midasapp/midas-server/internal/errors"
	"github.com/midasapp/midas-server/internal/id"
	"github.com/midasapp/midas-server/internal/store"
	"github.com/midasapp/midas-server/internal/util"
	"github.com/midasapp/midas-server/internal/validation"
)

// TaskService manages tasks.
type TaskService struct {
	store     store.Store
	tags      *TagService
	validator *validation.Validator
	logger    *slog.Logger
}

// NewTaskService creates a task service. Tag edits go through tags.
func NewTaskService(st store.Store, tags *TagService, v *validation.Validator, logger *slog.Logger) *TaskService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &TaskService{store: st, tags: tags, validator: v, logger: logger}
}

// CreateTaskRequest creates a task, optionally inside a project the requester owns.
type CreateTaskRequest struct {
	ProjectID   string `json:"projectId,omitempty"`
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description,omitempty" validate:"max=20000"`
}

// Create stores a new draft task created by the requester.
func (s *TaskService) Create(ctx context.Context, requesterID string, req CreateTaskRequest) (*TaskView, error) {
	if err := requireRequester(requesterID); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	if req.ProjectID != "" {
		project, err := s.store.GetProject(ctx, req.ProjectID)
		if err != nil {
			return nil, storeErr(err, "project")
		}
		if !project.IsOwner(requesterID) {
			return nil, domainerrors.Forbidden("only project owners can add tasks")
		}
	}

	taskID, err := id.Generate(id.Task)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "generate task id")
	}
	task := &domain.Task{
		ProjectID:   req.ProjectID,
		UserID:      requesterID,
		Title:       req.Title,
		Description: util.HTMLToMarkdown(req.Description),
		State:       domain.StateDraft,
	}
	task.ID = taskID
	task.InitTimestamps()

	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, storeErr(err, "task")
	}

	s.logger.Info("task created", "task_id", taskID, "project_id", req.ProjectID, "user_id", requesterID)
	return newTaskView(task), nil
}

// Get returns a task with its tags. Tasks of hidden projects are reported as not found.
func (s *TaskService) Get(ctx context.Context, requesterID, taskID string) (*TaskView, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, storeErr(err, "task")
	}
	if task.ProjectID != "" {
		project, err := s.store.GetProject(ctx, task.ProjectID)
		if err != nil {
			return nil, storeErr(err, "project")
		}
		if !project.VisibleTo(requesterID) && task.UserID != requesterID {
			return nil, domainerrors.NotFound("task not found")
		}
	}

	assocs, err := s.store.ListTagAssociations(ctx, domain.TaskOwner(taskID))
	if err != nil {
		return nil, storeErr(err, "tags")
	}
	view := newTaskView(task)
	view.Tags = newTagEntries(assocs)
	return view, nil
}

// UpdateTaskRequest edits a task. Nil fields are left unchanged; a nil Tags
// leaves the task's tags alone.
type UpdateTaskRequest struct {
	Title       *string              `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string              `json:"description,omitempty" validate:"omitempty,max=20000"`
	State       *domain.ProjectState `json:"state,omitempty" validate:"omitempty,oneof=draft public completed closed"`
	Tags        domain.Selection     `json:"tags,omitempty"`
}

// UpdateTaskResponse is the saved task and, when tags were submitted, the reconcile result.
type UpdateTaskResponse struct {
	Task *TaskView        `json:"task"`
	Tags *ReconcileResult `json:"tags,omitempty"`
}

// Update edits a task. Only its creator or an owner of its project may edit.
//
// Tags are reconciled first, then the task fields are saved even if some tag
// operations failed; in that case the response comes back together with the
// *errors.PartialBatchError.
func (s *TaskService) Update(ctx context.Context, requesterID, taskID string, req UpdateTaskRequest) (*UpdateTaskResponse, error) {
	if err := requireRequester(requesterID); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, storeErr(err, "task")
	}
	ok, err := canEditTask(ctx, s.store, requesterID, task)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domainerrors.Forbidden("only the task creator or a project owner can edit this task")
	}

	resp := &UpdateTaskResponse{}
	var tagErr error
	if req.Tags != nil {
		resp.Tags, tagErr = s.tags.reconcile(ctx, domain.TaskOwner(taskID), req.Tags)
		if resp.Tags == nil {
			// Reconcile could not even start.
			return nil, tagErr
		}
	}

	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = util.HTMLToMarkdown(*req.Description)
	}
	if req.State != nil {
		task.State = *req.State
	}
	if err := s.store.UpdateTask(ctx, task); err != nil {
		return nil, storeErr(err, "task")
	}
	s.logger.Info("task updated", "task_id", taskID, "user_id", requesterID)

	assocs, err := s.store.ListTagAssociations(ctx, domain.TaskOwner(taskID))
	if err != nil {
		return nil, storeErr(err, "tags")
	}
	resp.Task = newTaskView(task)
	resp.Task.Tags = newTagEntries(assocs)

	return resp, tagErr
}
