package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/midasapp/midas-server/internal/domain"
	domainerrors "github.com/midasapp/midas-server/internal/errors"
	"github.com/midasapp/midas-server/internal/search"
	"github.com/midasapp/midas-server/internal/store"
	"github.com/midasapp/midas-server/internal/tagdiff"
	"github.com/midasapp/midas-server/internal/util"
)

// Autocompleter looks up tags by name prefix.
type Autocompleter interface {
	Autocomplete(ctx context.Context, params search.AutocompleteParams) ([]search.Hit, error)
}

// TagOptions tunes reconciliation.
type TagOptions struct {
	Duplicates tagdiff.Duplicates
	// Concurrency bounds the associate/dissociate operations in flight per reconcile.
	Concurrency int
}

// TagService manages the tag catalogue and the tags attached to users, projects and tasks.
type TagService struct {
	store  store.Store
	index  Autocompleter
	opts   TagOptions
	logger *slog.Logger
}

// NewTagService creates a tag service.
func NewTagService(st store.Store, index Autocompleter, opts TagOptions, logger *slog.Logger) *TagService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &TagService{store: st, index: index, opts: opts, logger: logger}
}

// CreateTagRequest creates or finds a catalogue tag.
type CreateTagRequest struct {
	Type domain.TagType `json:"type" validate:"required,tagtype"`
	Name string         `json:"name" validate:"required,max=64"`
}

// Types returns every tag type in reconciliation order.
func (s *TagService) Types() []domain.TagType {
	return slices.Clone(domain.TagTypes)
}

// FindOrCreate returns the tag with this type and normalized name, creating it
// when missing. created reports whether a new tag was stored.
func (s *TagService) FindOrCreate(ctx context.Context, req CreateTagRequest) (tag TagSummary, created bool, err error) {
	if !req.Type.Valid() {
		return TagSummary{}, false, domainerrors.Validationf("unknown tag type %q", req.Type)
	}
	name := util.NormalizeTagName(req.Name)
	if name == "" {
		return TagSummary{}, false, domainerrors.Validation("tag name is required")
	}

	t, created, err := s.store.FindOrCreateTag(ctx, req.Type, name)
	if err != nil {
		return TagSummary{}, false, storeErr(err, "tag")
	}
	if created {
		s.logger.Info("tag created", "tag_id", t.ID, "type", t.Type, "name", t.Name)
	}
	return newTagSummary(t), created, nil
}

// List returns the catalogue for one type, or every type when t is empty.
func (s *TagService) List(ctx context.Context, t domain.TagType) ([]TagSummary, error) {
	if t != "" && !t.Valid() {
		return nil, domainerrors.Validationf("unknown tag type %q", t)
	}
	tags, err := s.store.ListTags(ctx, t)
	if err != nil {
		return nil, storeErr(err, "tags")
	}
	out := make([]TagSummary, len(tags))
	for i, tag := range tags {
		out[i] = newTagSummary(tag)
	}
	return out, nil
}

// Autocomplete suggests tags of type t whose name starts with q.
func (s *TagService) Autocomplete(ctx context.Context, t domain.TagType, q string, limit int) ([]search.Hit, error) {
	if t != "" && !t.Valid() {
		return nil, domainerrors.Validationf("unknown tag type %q", t)
	}
	if s.index == nil {
		return nil, domainerrors.Internal("tag search is not configured")
	}
	hits, err := s.index.Autocomplete(ctx, search.AutocompleteParams{
		Type:  t,
		Query: util.NormalizeTagName(q),
		Limit: limit,
	})
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "tag search failed")
	}
	return hits, nil
}

// ListForOwner returns the tags attached to owner, oldest first.
func (s *TagService) ListForOwner(ctx context.Context, owner domain.Owner) ([]TagEntry, error) {
	if !owner.Kind.Valid() {
		return nil, domainerrors.Validationf("unknown owner kind %q", owner.Kind)
	}
	assocs, err := s.store.ListTagAssociations(ctx, owner)
	if err != nil {
		return nil, storeErr(err, "tags")
	}
	return newTagEntries(assocs), nil
}

// Associate attaches tagID to owner.
func (s *TagService) Associate(ctx context.Context, requesterID string, owner domain.Owner, tagID string) (*TagEntry, error) {
	if err := authorizeOwnerEdit(ctx, s.store, requesterID, owner); err != nil {
		return nil, err
	}

	tag, err := s.store.GetTag(ctx, tagID)
	if err != nil {
		return nil, storeErr(err, "tag")
	}
	if !slices.Contains(tagTypesFor(owner.Kind), tag.Type) {
		return nil, domainerrors.Validationf("a %s cannot carry %s tags", owner.Kind, tag.Type)
	}

	assoc, err := s.store.CreateTagAssociation(ctx, owner, tagID)
	if err != nil {
		return nil, storeErr(err, "tag association")
	}

	s.logger.Info("tag associated", "owner", owner.String(), "tag_id", tagID, "association_id", assoc.ID)
	entry := newTagEntry(*assoc)
	return &entry, nil
}

// Dissociate removes an association after checking the requester may edit its owner.
func (s *TagService) Dissociate(ctx context.Context, requesterID, associationID string) error {
	if err := requireRequester(requesterID); err != nil {
		return err
	}
	assoc, err := s.store.GetTagAssociation(ctx, associationID)
	if err != nil {
		return storeErr(err, "tag association")
	}
	if err := authorizeOwnerEdit(ctx, s.store, requesterID, assoc.Owner); err != nil {
		return err
	}
	if err := s.store.DeleteTagAssociation(ctx, associationID); err != nil {
		return storeErr(err, "tag association")
	}

	s.logger.Info("tag dissociated", "owner", assoc.Owner.String(), "association_id", associationID)
	return nil
}

// ReconcileResult is what a reconcile decided and what it managed to apply.
type ReconcileResult struct {
	Diff    tagdiff.Result  `json:"diff"`
	Outcome tagdiff.Outcome `json:"outcome"`
}

// Reconcile makes owner's tags match selection for the types the owner kind
// carries. Selected types outside that set are reported as ignored. When
// some operations fail the result is still returned together with an
// *errors.PartialBatchError.
func (s *TagService) Reconcile(ctx context.Context, requesterID string, owner domain.Owner, selection domain.Selection) (*ReconcileResult, error) {
	if err := authorizeOwnerEdit(ctx, s.store, requesterID, owner); err != nil {
		return nil, err
	}
	return s.reconcile(ctx, owner, selection)
}

// reconcile runs diff and apply without authorization.
func (s *TagService) reconcile(ctx context.Context, owner domain.Owner, selection domain.Selection) (*ReconcileResult, error) {
	types := tagTypesFor(owner.Kind)
	if err := s.checkSelection(ctx, types, selection); err != nil {
		return nil, err
	}

	existing, err := s.store.ListTagAssociations(ctx, owner)
	if err != nil {
		return nil, storeErr(err, "tags")
	}

	diff := tagdiff.Diff(existing, selection, tagdiff.Options{
		Types:      types,
		Duplicates: s.opts.Duplicates,
	})

	outcome, err := tagdiff.Apply(ctx, s.store, owner, diff, s.opts.Concurrency)
	result := &ReconcileResult{Diff: diff, Outcome: outcome}

	if err != nil {
		s.logger.Warn("tag reconcile partially failed",
			"owner", owner.String(),
			"added", len(outcome.Added),
			"removed", len(outcome.Removed),
			"failed", outcome.Failed,
			"error", err,
		)
		return result, err
	}

	if !diff.Empty() {
		s.logger.Info("tags reconciled",
			"owner", owner.String(),
			"added", len(outcome.Added),
			"removed", len(outcome.Removed),
			"unchanged", len(diff.Unchanged),
		)
	}
	return result, nil
}

// checkSelection rejects selected ids under the given types that name an
// unknown tag or a tag of a different type. Types outside types are left for
// Diff to report as ignored.
func (s *TagService) checkSelection(ctx context.Context, types []domain.TagType, selection domain.Selection) error {
	invalid := map[string]string{}
	seen := map[string]bool{}
	for _, t := range types {
		for _, tagID := range selection[t] {
			if seen[tagID] {
				continue
			}
			seen[tagID] = true

			tag, err := s.store.GetTag(ctx, tagID)
			switch {
			case errors.Is(err, store.ErrNotFound):
				invalid[tagID] = "unknown tag"
			case err != nil:
				return storeErr(err, "tag")
			case tag.Type != t:
				invalid[tagID] = fmt.Sprintf("is a %s tag, selected as %s", tag.Type, t)
			}
		}
	}
	if len(invalid) > 0 {
		return domainerrors.ValidationWithDetails("selection contains tags of the wrong type", invalid)
	}
	return nil
}
