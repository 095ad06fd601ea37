package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/midasapp/midas-server/internal/domain"
	"github.com/midasapp/midas-server/internal/search"
	"github.com/midasapp/midas-server/internal/service"
)

func (s *Server) registerTagRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listTagTypes",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags/types",
		Summary:     "List tag types",
		Description: "Returns every tag type in reconciliation order",
		Tags:        []string{"Tags"},
	}, s.handleListTagTypes)

	huma.Register(s.api, huma.Operation{
		OperationID: "listTags",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags",
		Summary:     "List tags",
		Description: "Returns catalogue tags, optionally of one type, ordered by name",
		Tags:        []string{"Tags"},
	}, s.handleListTags)

	huma.Register(s.api, huma.Operation{
		OperationID: "createTag",
		Method:      http.MethodPost,
		Path:        "/api/v1/tags",
		Summary:     "Create tag",
		Description: "Finds the tag with this type and normalized name, creating it when missing",
		Tags:        []string{"Tags"},
		Security:    bearer,
	}, s.handleCreateTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "autocompleteTags",
		Method:      http.MethodGet,
		Path:        "/api/v1/ac/tag",
		Summary:     "Autocomplete tags",
		Description: "Suggests tags whose name words start with the query",
		Tags:        []string{"Tags"},
	}, s.handleAutocompleteTags)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createTagAssociation",
		Method:        http.MethodPost,
		Path:          "/api/v1/tags/associations",
		Summary:       "Associate tag",
		Description:   "Attaches a tag to exactly one user, project or task",
		Tags:          []string{"Tags"},
		Security:      bearer,
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateAssociation)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteTagAssociation",
		Method:        http.MethodDelete,
		Path:          "/api/v1/tags/associations/{id}",
		Summary:       "Dissociate tag",
		Description:   "Removes a tag association",
		Tags:          []string{"Tags"},
		Security:      bearer,
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteAssociation)

	s.registerOwnerTagRoutes("users", domain.UserOwner)
	s.registerOwnerTagRoutes("projects", domain.ProjectOwner)
	s.registerOwnerTagRoutes("tasks", domain.TaskOwner)
}

// registerOwnerTagRoutes adds GET and PUT /{collection}/{id}/tags for one owner kind.
func (s *Server) registerOwnerTagRoutes(collection string, owner func(id string) domain.Owner) {
	kind := owner("").Kind

	huma.Register(s.api, huma.Operation{
		OperationID: "list-" + collection + "-tags",
		Method:      http.MethodGet,
		Path:        "/api/v1/" + collection + "/{id}/tags",
		Summary:     "List " + string(kind) + " tags",
		Tags:        []string{"Tags"},
		Security:    bearer,
	}, func(ctx context.Context, input *OwnerTagsInput) (*TagEntriesOutput, error) {
		id, err := s.resolveOwnerID(ctx, kind, input.ID)
		if err != nil {
			return nil, err
		}
		entries, err := s.ownerTags(ctx, owner(id))
		if err != nil {
			return nil, err
		}
		return &TagEntriesOutput{Body: entries}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "reconcile-" + collection + "-tags",
		Method:      http.MethodPut,
		Path:        "/api/v1/" + collection + "/{id}/tags",
		Summary:     "Reconcile " + string(kind) + " tags",
		Description: "Makes the tags match the submitted selection. Types the " + string(kind) + " carries but the selection omits are cleared.",
		Tags:        []string{"Tags"},
		Security:    bearer,
	}, func(ctx context.Context, input *ReconcileInput) (*ReconcileOutput, error) {
		id, err := s.resolveOwnerID(ctx, kind, input.ID)
		if err != nil {
			return nil, err
		}
		result, err := s.services.Tags.Reconcile(ctx, requesterID(ctx), owner(id), input.Body.Selections)
		if err != nil {
			return nil, partialFailure(err, result)
		}
		return &ReconcileOutput{Body: result}, nil
	})
}

// resolveOwnerID maps "me" to the requester for user owners.
func (s *Server) resolveOwnerID(ctx context.Context, kind domain.OwnerKind, id string) (string, error) {
	if kind == domain.OwnerUser {
		return resolveUserID(ctx, id)
	}
	return id, nil
}

// ownerTags lists an owner's tags. Projects and tasks go through their
// services so hidden records stay hidden.
func (s *Server) ownerTags(ctx context.Context, owner domain.Owner) ([]service.TagEntry, error) {
	switch owner.Kind {
	case domain.OwnerProject:
		view, err := s.services.Projects.Get(ctx, requesterID(ctx), owner.ID)
		if err != nil {
			return nil, err
		}
		return view.Tags, nil
	case domain.OwnerTask:
		view, err := s.services.Tasks.Get(ctx, requesterID(ctx), owner.ID)
		if err != nil {
			return nil, err
		}
		return view.Tags, nil
	default:
		return s.services.Tags.ListForOwner(ctx, owner)
	}
}

// === DTOs ===

// TagTypesOutput lists tag types.
type TagTypesOutput struct {
	Body []domain.TagType
}

// ListTagsInput filters the catalogue.
type ListTagsInput struct {
	Type domain.TagType `query:"type" doc:"Only tags of this type"`
}

// TagsOutput wraps catalogue tags.
type TagsOutput struct {
	Body []service.TagSummary
}

// CreateTagInput wraps a tag to find or create.
type CreateTagInput struct {
	Body service.CreateTagRequest
}

// TagOutput wraps one catalogue tag. Status is 201 when the tag was created.
type TagOutput struct {
	Status int
	Body   service.TagSummary
}

// AutocompleteInput is an autocomplete query.
type AutocompleteInput struct {
	Type  domain.TagType `query:"type" doc:"Only tags of this type"`
	Q     string         `query:"q" doc:"Query text; every word must prefix a word of the name"`
	Limit int            `query:"limit" minimum:"0" maximum:"100" doc:"Maximum hits, 0 for the default"`
}

// AutocompleteOutput wraps autocomplete hits.
type AutocompleteOutput struct {
	Body []search.Hit
}

// CreateAssociationRequest names a tag and exactly one owner.
type CreateAssociationRequest struct {
	TagID     string `json:"tagId" doc:"Tag to attach"`
	UserID    string `json:"userId,omitempty" doc:"Owner user"`
	ProjectID string `json:"projectId,omitempty" doc:"Owner project"`
	TaskID    string `json:"taskId,omitempty" doc:"Owner task"`
}

// CreateAssociationInput wraps an association request.
type CreateAssociationInput struct {
	Body CreateAssociationRequest
}

// TagEntryOutput wraps one association.
type TagEntryOutput struct {
	Body *service.TagEntry
}

// AssociationIDInput identifies an association.
type AssociationIDInput struct {
	ID string `path:"id" doc:"Association ID"`
}

// OwnerTagsInput identifies a tag owner.
type OwnerTagsInput struct {
	ID string `path:"id" doc:"Owner ID"`
}

// TagEntriesOutput wraps an owner's associations.
type TagEntriesOutput struct {
	Body []service.TagEntry
}

// ReconcileRequest is a tag selection grouped by type.
type ReconcileRequest struct {
	Selections domain.Selection `json:"selections" doc:"Tag ids grouped by tag type"`
}

// ReconcileInput wraps a reconcile request.
type ReconcileInput struct {
	ID   string `path:"id" doc:"Owner ID"`
	Body ReconcileRequest
}

// ReconcileOutput wraps the reconcile result.
type ReconcileOutput struct {
	Body *service.ReconcileResult
}

// === Handlers ===

func (s *Server) handleListTagTypes(_ context.Context, _ *struct{}) (*TagTypesOutput, error) {
	return &TagTypesOutput{Body: s.services.Tags.Types()}, nil
}

func (s *Server) handleListTags(ctx context.Context, input *ListTagsInput) (*TagsOutput, error) {
	tags, err := s.services.Tags.List(ctx, input.Type)
	if err != nil {
		return nil, err
	}
	return &TagsOutput{Body: tags}, nil
}

func (s *Server) handleCreateTag(ctx context.Context, input *CreateTagInput) (*TagOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	tag, created, err := s.services.Tags.FindOrCreate(ctx, input.Body)
	if err != nil {
		return nil, err
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return &TagOutput{Status: status, Body: tag}, nil
}

func (s *Server) handleAutocompleteTags(ctx context.Context, input *AutocompleteInput) (*AutocompleteOutput, error) {
	hits, err := s.services.Tags.Autocomplete(ctx, input.Type, input.Q, input.Limit)
	if err != nil {
		return nil, err
	}
	return &AutocompleteOutput{Body: hits}, nil
}

func (s *Server) handleCreateAssociation(ctx context.Context, input *CreateAssociationInput) (*TagEntryOutput, error) {
	owner, err := associationOwner(input.Body)
	if err != nil {
		return nil, err
	}

	entry, err := s.services.Tags.Associate(ctx, requesterID(ctx), owner, input.Body.TagID)
	if err != nil {
		return nil, err
	}
	return &TagEntryOutput{Body: entry}, nil
}

// associationOwner picks the single owner named in the request.
func associationOwner(req CreateAssociationRequest) (domain.Owner, error) {
	var owners []domain.Owner
	if req.UserID != "" {
		owners = append(owners, domain.UserOwner(req.UserID))
	}
	if req.ProjectID != "" {
		owners = append(owners, domain.ProjectOwner(req.ProjectID))
	}
	if req.TaskID != "" {
		owners = append(owners, domain.TaskOwner(req.TaskID))
	}
	if len(owners) != 1 {
		return domain.Owner{}, huma.Error400BadRequest("exactly one of userId, projectId or taskId is required")
	}
	return owners[0], nil
}

func (s *Server) handleDeleteAssociation(ctx context.Context, input *AssociationIDInput) (*struct{}, error) {
	if err := s.services.Tags.Dissociate(ctx, requesterID(ctx), input.ID); err != nil {
		return nil, err
	}
	return nil, nil
}
