package tagdiff

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/midasapp/midas-server/internal/domain"
	apperrors "github.com/midasapp/midas-server/internal/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// memoryTags is an in-memory Mutator that can be told to fail specific operations.
type memoryTags struct {
	mu      sync.Mutex
	seq     int
	types   map[string]domain.TagType
	assocs  map[string]domain.TagAssociation
	failAdd map[string]error
	failDel map[string]error
}

func newMemoryTags(types map[string]domain.TagType) *memoryTags {
	return &memoryTags{
		types:   types,
		assocs:  map[string]domain.TagAssociation{},
		failAdd: map[string]error{},
		failDel: map[string]error{},
	}
}

func (m *memoryTags) CreateTagAssociation(_ context.Context, owner domain.Owner, tagID string) (*domain.TagAssociation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failAdd[tagID]; err != nil {
		return nil, err
	}
	m.seq++
	a := domain.TagAssociation{Owner: owner, TagID: tagID, Tag: domain.Tag{Type: m.types[tagID]}}
	a.ID = fmt.Sprintf("tga-%d", m.seq)
	a.Tag.ID = tagID
	m.assocs[a.ID] = a
	return &a, nil
}

func (m *memoryTags) DeleteTagAssociation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failDel[id]; err != nil {
		return err
	}
	delete(m.assocs, id)
	return nil
}

func (m *memoryTags) list(owner domain.Owner) []domain.TagAssociation {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.TagAssociation
	for _, a := range m.assocs {
		if a.Owner == owner {
			out = append(out, a)
		}
	}
	return out
}

var testTypes = map[string]domain.TagType{
	"10": domain.TagTypeSkill,
	"11": domain.TagTypeSkill,
	"20": domain.TagTypeTopic,
	"30": domain.TagTypeLocation,
}

func TestApply_ThenRediffIsEmpty(t *testing.T) {
	ctx := context.Background()
	store := newMemoryTags(testTypes)
	owner := domain.TaskOwner("tsk-1")

	_, err := store.CreateTagAssociation(ctx, owner, "10")
	require.NoError(t, err)
	_, err = store.CreateTagAssociation(ctx, owner, "20")
	require.NoError(t, err)

	selected := domain.Selection{
		domain.TagTypeSkill:    {"10", "11"},
		domain.TagTypeLocation: {"30"},
	}

	res := Diff(store.list(owner), selected, Options{})
	out, err := Apply(ctx, store, owner, res, 4)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"11", "30"}, out.Added)
	assert.Len(t, out.Removed, 1)
	assert.Zero(t, out.Failed)

	again := Diff(store.list(owner), selected, Options{})
	assert.True(t, again.Empty())
	assert.Len(t, again.Unchanged, 3)
}

func TestApply_PartialFailure(t *testing.T) {
	ctx := context.Background()
	store := newMemoryTags(testTypes)
	owner := domain.UserOwner("usr-1")

	existing, err := store.CreateTagAssociation(ctx, owner, "20")
	require.NoError(t, err)

	addErr := errors.New("unique constraint")
	delErr := errors.New("locked")
	store.failAdd["11"] = addErr
	store.failDel[existing.ID] = delErr

	res := Result{ToAdd: []string{"10", "11", "30"}, ToRemove: []string{existing.ID}}
	out, err := Apply(ctx, store, owner, res, 2)

	require.Error(t, err)
	assert.ElementsMatch(t, []string{"10", "30"}, out.Added)
	assert.Empty(t, out.Removed)
	assert.Equal(t, 2, out.Failed)

	var batchErr *apperrors.PartialBatchError
	require.ErrorAs(t, err, &batchErr)
	require.Len(t, batchErr.Failures, 2)
	assert.Equal(t, apperrors.OpFailure{Op: OpAssociate, Target: "11", Err: addErr}, batchErr.Failures[0])
	assert.Equal(t, apperrors.OpFailure{Op: OpDissociate, Target: existing.ID, Err: delErr}, batchErr.Failures[1])
	assert.True(t, errors.Is(err, addErr))
	assert.True(t, errors.Is(err, delErr))

	// The successful adds are persisted despite the failures.
	assert.Len(t, store.list(owner), 3)
}

func TestApply_EmptyResult(t *testing.T) {
	out, err := Apply(context.Background(), newMemoryTags(testTypes), domain.TaskOwner("tsk-1"), Result{}, 4)
	require.NoError(t, err)
	assert.Empty(t, out.Added)
	assert.Empty(t, out.Removed)
}
