package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/midasapp/midas-server/internal/domain"
	"github.com/midasapp/midas-server/internal/id"
	"github.com/midasapp/midas-server/internal/store"
	"github.com/midasapp/midas-server/internal/store/sqlite"
	"github.com/midasapp/midas-server/internal/tagdiff"
	"github.com/midasapp/midas-server/internal/validation"
)

var errBoom = errors.New("boom")

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedUser(t *testing.T, st store.UserStore, username string) *domain.User {
	t.Helper()
	reg, err := newRegistration(username, "User "+username, username+"@example.com", "")
	require.NoError(t, err)
	require.NoError(t, st.RegisterUser(context.Background(), reg))
	return reg.User
}

func seedTag(t *testing.T, st store.TagStore, tagType domain.TagType, name string) *domain.Tag {
	t.Helper()
	tag, _, err := st.FindOrCreateTag(context.Background(), tagType, name)
	require.NoError(t, err)
	return tag
}

func seedProject(t *testing.T, st store.ProjectStore, public bool, owners ...string) *domain.Project {
	t.Helper()
	p := &domain.Project{
		Title:    "Project",
		State:    domain.StateDraft,
		IsPublic: public,
		OwnerIDs: owners,
	}
	p.ID = id.MustGenerate(id.Project)
	p.InitTimestamps()
	require.NoError(t, st.CreateProject(context.Background(), p))
	return p
}

func seedTask(t *testing.T, st store.TaskStore, projectID, userID string) *domain.Task {
	t.Helper()
	task := &domain.Task{ProjectID: projectID, UserID: userID, Title: "Task", State: domain.StateDraft}
	task.ID = id.MustGenerate(id.Task)
	task.InitTimestamps()
	require.NoError(t, st.CreateTask(context.Background(), task))
	return task
}

func associate(t *testing.T, st store.TagStore, owner domain.Owner, tagID string) *domain.TagAssociation {
	t.Helper()
	a, err := st.CreateTagAssociation(context.Background(), owner, tagID)
	require.NoError(t, err)
	// Associations are ordered by creation time.
	time.Sleep(2 * time.Millisecond)
	return a
}

// faultyStore fails selected calls and passes everything else through.
type faultyStore struct {
	store.Store

	failGetUser      bool
	failCountLikes   bool
	failListAuths    bool
	failListTagsFor  map[string]bool // owner ids
	failAssociate    map[string]bool // tag ids
	failDissociate   map[string]bool // association ids
	failUserAuthDrop map[string]bool // auth ids

	countLikesCalls atomic.Int32
}

func (f *faultyStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	if f.failGetUser {
		return nil, errBoom
	}
	return f.Store.GetUser(ctx, userID)
}

func (f *faultyStore) CountLikes(ctx context.Context, target domain.Owner) (int, error) {
	f.countLikesCalls.Add(1)
	if f.failCountLikes {
		return 0, errBoom
	}
	return f.Store.CountLikes(ctx, target)
}

func (f *faultyStore) ListUserAuths(ctx context.Context, userID string) ([]domain.UserAuth, error) {
	if f.failListAuths {
		return nil, errBoom
	}
	return f.Store.ListUserAuths(ctx, userID)
}

func (f *faultyStore) ListTagAssociations(ctx context.Context, owner domain.Owner) ([]domain.TagAssociation, error) {
	if f.failListTagsFor[owner.ID] {
		return nil, errBoom
	}
	return f.Store.ListTagAssociations(ctx, owner)
}

func (f *faultyStore) CreateTagAssociation(ctx context.Context, owner domain.Owner, tagID string) (*domain.TagAssociation, error) {
	if f.failAssociate[tagID] {
		return nil, errBoom
	}
	return f.Store.CreateTagAssociation(ctx, owner, tagID)
}

func (f *faultyStore) DeleteTagAssociation(ctx context.Context, assocID string) error {
	if f.failDissociate[assocID] {
		return errBoom
	}
	return f.Store.DeleteTagAssociation(ctx, assocID)
}

func (f *faultyStore) DeleteUserAuth(ctx context.Context, authID string) error {
	if f.failUserAuthDrop[authID] {
		return errBoom
	}
	return f.Store.DeleteUserAuth(ctx, authID)
}

type services struct {
	store    store.Store
	users    *UserService
	tags     *TagService
	projects *ProjectService
	tasks    *TaskService
	likes    *LikeService
}

func newServices(st store.Store) *services {
	v := validation.New()
	tags := NewTagService(st, nil, TagOptions{Duplicates: tagdiff.DuplicatesIndependent, Concurrency: 4}, nil)
	return &services{
		store:    st,
		users:    NewUserService(st, v, UserOptions{}, nil),
		tags:     tags,
		projects: NewProjectService(st, v, 4, nil),
		tasks:    NewTaskService(st, tags, v, nil),
		likes:    NewLikeService(st, nil),
	}
}
