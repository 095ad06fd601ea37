package service

import (
	"context"

	"github.com/midasapp/midas-server/internal/domain"
	domainerrors "github.com/midasapp/midas-server/internal/errors"
	"github.com/midasapp/midas-server/internal/store"
)

// ownerStores is what editing checks need to resolve projects and tasks.
type ownerStores interface {
	store.ProjectStore
	store.TaskStore
}

// canEditTask reports whether requesterID created the task or owns its project.
func canEditTask(ctx context.Context, st store.ProjectStore, requesterID string, task *domain.Task) (bool, error) {
	if requesterID == "" {
		return false, nil
	}
	if task.UserID == requesterID {
		return true, nil
	}
	if task.ProjectID == "" {
		return false, nil
	}
	project, err := st.GetProject(ctx, task.ProjectID)
	if err != nil {
		return false, storeErr(err, "project")
	}
	return project.IsOwner(requesterID), nil
}

// authorizeOwnerEdit checks that requesterID may change what hangs off owner:
// users edit themselves, project owners their projects, and task creators or
// project owners their tasks.
func authorizeOwnerEdit(ctx context.Context, st ownerStores, requesterID string, owner domain.Owner) error {
	if err := requireRequester(requesterID); err != nil {
		return err
	}

	switch owner.Kind {
	case domain.OwnerUser:
		if owner.ID != requesterID {
			return domainerrors.Forbidden("users can only edit their own profile")
		}
		return nil

	case domain.OwnerProject:
		project, err := st.GetProject(ctx, owner.ID)
		if err != nil {
			return storeErr(err, "project")
		}
		if !project.IsOwner(requesterID) {
			return domainerrors.Forbidden("only project owners can edit this project")
		}
		return nil

	case domain.OwnerTask:
		task, err := st.GetTask(ctx, owner.ID)
		if err != nil {
			return storeErr(err, "task")
		}
		ok, err := canEditTask(ctx, st, requesterID, task)
		if err != nil {
			return err
		}
		if !ok {
			return domainerrors.Forbidden("only the task creator or a project owner can edit this task")
		}
		return nil

	default:
		return domainerrors.Validationf("unknown owner kind %q", owner.Kind)
	}
}

// tagTypesFor returns the tag types an owner of kind may carry.
func tagTypesFor(kind domain.OwnerKind) []domain.TagType {
	switch kind {
	case domain.OwnerUser:
		return domain.ProfileTagTypes
	case domain.OwnerProject:
		return domain.ProjectTagTypes
	case domain.OwnerTask:
		return domain.TaskTagTypes
	default:
		return nil
	}
}
