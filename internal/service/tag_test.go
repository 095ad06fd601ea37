package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/midasapp/midas-server/internal/domain"
	domainerrors "github.com/midasapp/midas-server/internal/errors"
	"github.com/midasapp/midas-server/internal/search"
	"github.com/midasapp/midas-server/internal/tagdiff"
)

func TestTagFindOrCreate_Normalizes(t *testing.T) {
	st := newTestStore(t)
	svc := newServices(st)
	ctx := context.Background()

	first, created, err := svc.tags.FindOrCreate(ctx, CreateTagRequest{Type: domain.TagTypeSkill, Name: "  Machine   Learning "})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Machine Learning", first.Name)

	again, created, err := svc.tags.FindOrCreate(ctx, CreateTagRequest{Type: domain.TagTypeSkill, Name: "Machine Learning"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID)

	_, _, err = svc.tags.FindOrCreate(ctx, CreateTagRequest{Type: "colour", Name: "red"})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	_, _, err = svc.tags.FindOrCreate(ctx, CreateTagRequest{Type: domain.TagTypeSkill, Name: "   "})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestTagList(t *testing.T) {
	st := newTestStore(t)
	svc := newServices(st)
	ctx := context.Background()

	seedTag(t, st, domain.TagTypeSkill, "go")
	seedTag(t, st, domain.TagTypeSkill, "rust")
	seedTag(t, st, domain.TagTypeTopic, "climate")

	skills, err := svc.tags.List(ctx, domain.TagTypeSkill)
	require.NoError(t, err)
	assert.Len(t, skills, 2)

	all, err := svc.tags.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = svc.tags.List(ctx, "bogus")
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	assert.Equal(t, domain.TagTypes, svc.tags.Types())
}

func TestTagAutocomplete(t *testing.T) {
	st := newTestStore(t)
	index, err := search.Open(search.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })
	st.SetTagIndexer(index)

	svc := NewTagService(st, index, TagOptions{}, nil)
	ctx := context.Background()

	for _, name := range []string{"Golang", "Gardening", "Rust"} {
		_, _, err := svc.FindOrCreate(ctx, CreateTagRequest{Type: domain.TagTypeSkill, Name: name})
		require.NoError(t, err)
	}
	_, _, err = svc.FindOrCreate(ctx, CreateTagRequest{Type: domain.TagTypeTopic, Name: "Geology"})
	require.NoError(t, err)

	hits, err := svc.Autocomplete(ctx, domain.TagTypeSkill, "ga", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Gardening", hits[0].Name)

	hits, err = svc.Autocomplete(ctx, domain.TagTypeSkill, "g", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestTagAssociate(t *testing.T) {
	st := newTestStore(t)
	svc := newServices(st)
	ctx := context.Background()

	alice := seedUser(t, st, "alice")
	bob := seedUser(t, st, "bob")
	skill := seedTag(t, st, domain.TagTypeSkill, "go")
	length := seedTag(t, st, domain.TagTypeTaskLength, "short")

	entry, err := svc.tags.Associate(ctx, alice.ID, domain.UserOwner(alice.ID), skill.ID)
	require.NoError(t, err)
	assert.Equal(t, skill.ID, entry.TagID)
	assert.Equal(t, "go", entry.Tag.Name)

	_, err = svc.tags.Associate(ctx, bob.ID, domain.UserOwner(alice.ID), skill.ID)
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)

	_, err = svc.tags.Associate(ctx, alice.ID, domain.UserOwner(alice.ID), length.ID)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	_, err = svc.tags.Associate(ctx, alice.ID, domain.UserOwner(alice.ID), "tag-missing")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	_, err = svc.tags.Associate(ctx, "", domain.UserOwner(alice.ID), skill.ID)
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)

	tags, err := svc.tags.ListForOwner(ctx, domain.UserOwner(alice.ID))
	require.NoError(t, err)
	assert.Len(t, tags, 1)
}

func TestTagDissociate(t *testing.T) {
	st := newTestStore(t)
	svc := newServices(st)
	ctx := context.Background()

	alice := seedUser(t, st, "alice")
	bob := seedUser(t, st, "bob")
	project := seedProject(t, st, true, alice.ID)
	topic := seedTag(t, st, domain.TagTypeTopic, "climate")
	assoc := associate(t, st, domain.ProjectOwner(project.ID), topic.ID)

	err := svc.tags.Dissociate(ctx, bob.ID, assoc.ID)
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)

	require.NoError(t, svc.tags.Dissociate(ctx, alice.ID, assoc.ID))

	err = svc.tags.Dissociate(ctx, alice.ID, assoc.ID)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestTagReconcile(t *testing.T) {
	st := newTestStore(t)
	svc := newServices(st)
	ctx := context.Background()

	alice := seedUser(t, st, "alice")
	owner := domain.UserOwner(alice.ID)
	goTag := seedTag(t, st, domain.TagTypeSkill, "go")
	rust := seedTag(t, st, domain.TagTypeSkill, "rust")
	zig := seedTag(t, st, domain.TagTypeSkill, "zig")
	berlin := seedTag(t, st, domain.TagTypeLocation, "berlin")

	keep := associate(t, st, owner, goTag.ID)
	drop := associate(t, st, owner, rust.ID)
	loc := associate(t, st, owner, berlin.ID)

	res, err := svc.tags.Reconcile(ctx, alice.ID, owner, domain.Selection{
		domain.TagTypeSkill:      {goTag.ID, zig.ID},
		domain.TagTypeLocation:   {berlin.ID},
		domain.TagTypeTaskLength: {"tag-anything"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{zig.ID}, res.Diff.ToAdd)
	assert.Equal(t, []string{drop.ID}, res.Diff.ToRemove)
	assert.ElementsMatch(t, []string{keep.ID, loc.ID}, res.Diff.Unchanged)
	assert.Contains(t, res.Diff.Ignored, domain.TagTypeTaskLength)
	assert.Equal(t, []string{zig.ID}, res.Outcome.Added)
	assert.Equal(t, []string{drop.ID}, res.Outcome.Removed)
	assert.Zero(t, res.Outcome.Failed)

	tags, err := svc.tags.ListForOwner(ctx, owner)
	require.NoError(t, err)
	var names []string
	for _, e := range tags {
		names = append(names, e.Tag.Name)
	}
	assert.ElementsMatch(t, []string{"go", "berlin", "zig"}, names)

	// Reconciling again with the same selection changes nothing.
	res, err = svc.tags.Reconcile(ctx, alice.ID, owner, domain.Selection{
		domain.TagTypeSkill:    {goTag.ID, zig.ID},
		domain.TagTypeLocation: {berlin.ID},
	})
	require.NoError(t, err)
	assert.True(t, res.Diff.Empty())

	// A type left out of the selection loses its tags.
	res, err = svc.tags.Reconcile(ctx, alice.ID, owner, domain.Selection{
		domain.TagTypeSkill: {goTag.ID, zig.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{loc.ID}, res.Outcome.Removed)
}

func TestTagReconcile_Forbidden(t *testing.T) {
	st := newTestStore(t)
	svc := newServices(st)

	alice := seedUser(t, st, "alice")
	bob := seedUser(t, st, "bob")

	_, err := svc.tags.Reconcile(context.Background(), bob.ID, domain.UserOwner(alice.ID), domain.Selection{})
	assert.ErrorIs(t, err, domainerrors.ErrForbidden)
}

func TestTagReconcile_PartialFailureKeepsSuccesses(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	alice := seedUser(t, st, "alice")
	owner := domain.UserOwner(alice.ID)
	a := seedTag(t, st, domain.TagTypeSkill, "a")
	b := seedTag(t, st, domain.TagTypeSkill, "b")
	c := seedTag(t, st, domain.TagTypeSkill, "c")
	old := seedTag(t, st, domain.TagTypeSkill, "old")
	stale := associate(t, st, owner, old.ID)

	faulty := &faultyStore{
		Store:          st,
		failAssociate:  map[string]bool{b.ID: true},
		failDissociate: map[string]bool{stale.ID: true},
	}
	svc := newServices(faulty)

	res, err := svc.tags.Reconcile(ctx, alice.ID, owner, domain.Selection{
		domain.TagTypeSkill: {a.ID, b.ID, c.ID},
	})
	require.Error(t, err)
	require.NotNil(t, res)

	var partial *domainerrors.PartialBatchError
	require.True(t, errors.As(err, &partial))
	assert.Equal(t, 4, partial.Attempted)
	require.Len(t, partial.Failures, 2)

	failed := map[string]string{}
	for _, f := range partial.Failures {
		failed[f.Op] = f.Target
	}
	assert.Equal(t, b.ID, failed[tagdiff.OpAssociate])
	assert.Equal(t, stale.ID, failed[tagdiff.OpDissociate])

	assert.ElementsMatch(t, []string{a.ID, c.ID}, res.Outcome.Added)
	assert.Empty(t, res.Outcome.Removed)
	assert.Equal(t, 2, res.Outcome.Failed)

	tags, err := st.ListTagAssociations(ctx, owner)
	require.NoError(t, err)
	var tagIDs []string
	for _, assoc := range tags {
		tagIDs = append(tagIDs, assoc.TagID)
	}
	assert.ElementsMatch(t, []string{old.ID, a.ID, c.ID}, tagIDs)
}

func TestTagReconcile_CollapseDuplicates(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	alice := seedUser(t, st, "alice")
	owner := domain.UserOwner(alice.ID)
	goTag := seedTag(t, st, domain.TagTypeSkill, "go")

	collapse := NewTagService(st, nil, TagOptions{Duplicates: tagdiff.DuplicatesCollapse}, nil)
	res, err := collapse.Reconcile(ctx, alice.ID, owner, domain.Selection{
		domain.TagTypeSkill: {goTag.ID, goTag.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{goTag.ID}, res.Outcome.Added)

	independent := NewTagService(st, nil, TagOptions{Duplicates: tagdiff.DuplicatesIndependent}, nil)
	res, err = independent.Reconcile(ctx, alice.ID, owner, domain.Selection{
		domain.TagTypeSkill: {goTag.ID, goTag.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{goTag.ID}, res.Outcome.Added)

	tags, err := st.ListTagAssociations(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, tags, 2)
}

func TestTagReconcile_RejectsMismatchedTypes(t *testing.T) {
	st := newTestStore(t)
	svc := newServices(st)
	ctx := context.Background()

	alice := seedUser(t, st, "alice")
	task := seedTask(t, st, "", alice.ID)
	owner := domain.TaskOwner(task.ID)
	agency := seedTag(t, st, domain.TagTypeAgency, "GSA")
	topic := seedTag(t, st, domain.TagTypeTopic, "Energy")
	skill := seedTag(t, st, domain.TagTypeSkill, "Go")

	mismatched := domain.Selection{domain.TagTypeSkill: {agency.ID, topic.ID}}
	for range 2 {
		res, err := svc.tags.Reconcile(ctx, alice.ID, owner, mismatched)
		assert.Nil(t, res)
		require.ErrorIs(t, err, domainerrors.ErrValidation)

		var coded *domainerrors.Error
		require.True(t, errors.As(err, &coded))
		details, ok := coded.Details.(map[string]string)
		require.True(t, ok)
		assert.Contains(t, details, agency.ID)
		assert.Contains(t, details, topic.ID)
	}

	_, err := svc.tasks.Update(ctx, alice.ID, task.ID, UpdateTaskRequest{
		Title: ptr("Not saved"),
		Tags:  mismatched,
	})
	require.ErrorIs(t, err, domainerrors.ErrValidation)

	_, err = svc.tags.Reconcile(ctx, alice.ID, owner, domain.Selection{domain.TagTypeSkill: {"tag-missing"}})
	require.ErrorIs(t, err, domainerrors.ErrValidation)

	assocs, err := st.ListTagAssociations(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, assocs)

	stored, err := st.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Task", stored.Title)

	// A correctly typed selection applies once and is then stable.
	valid := domain.Selection{domain.TagTypeSkill: {skill.ID}, domain.TagTypeTopic: {topic.ID}}
	res, err := svc.tags.Reconcile(ctx, alice.ID, owner, valid)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{skill.ID, topic.ID}, res.Outcome.Added)

	res, err = svc.tags.Reconcile(ctx, alice.ID, owner, valid)
	require.NoError(t, err)
	assert.True(t, res.Diff.Empty())
	assert.Len(t, res.Diff.Unchanged, 2)
}
