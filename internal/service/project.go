package service

import (
	"context"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/midasapp/midas-server/internal/batch"
	"github.com/midasapp/midas-server/internal/domain"
	domainerrors "github.com/midasapp/midas-server/internal/errors"
	"github.com/midasapp/midas-server/internal/id"
	"github.com/midasapp/midas-server/internal/store"
	"github.com/midasapp/midas-server/internal/util"
	"github.com/midasapp/midas-server/internal/validation"
)

// ProjectService manages projects and their task lists.
type ProjectService struct {
	store       store.Store
	validator   *validation.Validator
	concurrency int
	logger      *slog.Logger
}

// NewProjectService creates a project service. concurrency bounds per-project
// and per-task lookups.
func NewProjectService(st store.Store, v *validation.Validator, concurrency int, logger *slog.Logger) *ProjectService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if concurrency <= 0 {
		concurrency = batch.DefaultLimit
	}
	return &ProjectService{store: st, validator: v, concurrency: concurrency, logger: logger}
}

// CreateProjectRequest creates a project owned by the requester.
type CreateProjectRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description,omitempty" validate:"max=20000"`
	IsPublic    bool   `json:"isPublic,omitempty"`
}

// Create stores a new draft project with the requester as its only owner.
func (s *ProjectService) Create(ctx context.Context, requesterID string, req CreateProjectRequest) (*ProjectView, error) {
	if err := requireRequester(requesterID); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	projectID, err := id.Generate(id.Project)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "generate project id")
	}
	project := &domain.Project{
		Title:       req.Title,
		Description: util.HTMLToMarkdown(req.Description),
		State:       domain.StateDraft,
		IsPublic:    req.IsPublic,
		OwnerIDs:    []string{requesterID},
	}
	project.ID = projectID
	project.InitTimestamps()

	if err := s.store.CreateProject(ctx, project); err != nil {
		return nil, storeErr(err, "project")
	}

	s.logger.Info("project created", "project_id", projectID, "owner", requesterID)
	return newProjectView(project, requesterID), nil
}

// Get returns a project with its metadata if requesterID may see it.
// Hidden projects are reported as not found.
func (s *ProjectService) Get(ctx context.Context, requesterID, projectID string) (*ProjectView, error) {
	project, err := s.visibleProject(ctx, requesterID, projectID)
	if err != nil {
		return nil, err
	}
	views, err := loadProjectViews(ctx, s.store, []*domain.Project{project}, requesterID, 1)
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

func (s *ProjectService) visibleProject(ctx context.Context, requesterID, projectID string) (*domain.Project, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, storeErr(err, "project")
	}
	if !project.VisibleTo(requesterID) {
		return nil, domainerrors.NotFound("project not found")
	}
	return project, nil
}

// UpdateCoreMetaRequest edits a project's title and description. Nil fields are left unchanged.
type UpdateCoreMetaRequest struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=20000"`
}

// UpdateCoreMeta saves title and description. Only project owners may edit;
// HTML descriptions are stored as Markdown.
func (s *ProjectService) UpdateCoreMeta(ctx context.Context, requesterID, projectID string, req UpdateCoreMetaRequest) (*ProjectView, error) {
	if err := requireRequester(requesterID); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, storeErr(err, "project")
	}
	if !project.IsOwner(requesterID) {
		return nil, domainerrors.Forbidden("only project owners can edit this project")
	}

	if req.Title != nil {
		project.Title = *req.Title
	}
	if req.Description != nil {
		project.Description = util.HTMLToMarkdown(*req.Description)
	}
	if err := s.store.UpdateProject(ctx, project); err != nil {
		return nil, storeErr(err, "project")
	}

	s.logger.Info("project updated", "project_id", projectID, "user_id", requesterID)
	return newProjectView(project, requesterID), nil
}

// ListTasks returns the project's tasks with their tags. Tag lookups run
// concurrently; a task whose lookup fails is returned with no tags.
func (s *ProjectService) ListTasks(ctx context.Context, requesterID, projectID string) ([]*TaskView, error) {
	if _, err := s.visibleProject(ctx, requesterID, projectID); err != nil {
		return nil, err
	}

	tasks, err := s.store.ListTasksByProject(ctx, projectID)
	if err != nil {
		return nil, storeErr(err, "tasks")
	}

	views := make([]*TaskView, len(tasks))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, task := range tasks {
		views[i] = newTaskView(task)
		g.Go(func() error {
			assocs, err := s.store.ListTagAssociations(ctx, domain.TaskOwner(task.ID))
			if err != nil {
				s.logger.Warn("task tags lookup failed", "task_id", task.ID, "error", err)
				return nil
			}
			views[i].Tags = newTagEntries(assocs)
			return nil
		})
	}
	_ = g.Wait()

	return views, nil
}

// loadProjectViews fetches like counts, the requester's likes and tags for
// every project concurrently. The first failure cancels the rest.
func loadProjectViews(ctx context.Context, st store.Store, projects []*domain.Project, requesterID string, limit int) ([]*ProjectView, error) {
	views := make([]*ProjectView, len(projects))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, p := range projects {
		view := newProjectView(p, requesterID)
		views[i] = view
		target := domain.ProjectOwner(p.ID)

		g.Go(func() error {
			n, err := st.CountLikes(gctx, target)
			if err != nil {
				return storeErr(err, "likes")
			}
			view.LikeCount = n

			if requesterID != "" {
				like, err := st.FindLike(gctx, requesterID, target)
				if err != nil {
					return storeErr(err, "like")
				}
				view.Like = like != nil
			}

			assocs, err := st.ListTagAssociations(gctx, target)
			if err != nil {
				return storeErr(err, "tags")
			}
			view.Tags = newTagEntries(assocs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return views, nil
}
