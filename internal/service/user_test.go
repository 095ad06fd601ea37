package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/midasapp/midas-server/internal/domain"
	domainerrors "github.com/midasapp/midas-server/internal/errors"
	"github.com/midasapp/midas-server/internal/id"
	"github.com/midasapp/midas-server/internal/store"
)

func TestAssemble_OwnerSeesAuthsAndEmails(t *testing.T) {
	st := newTestStore(t)
	svc := newServices(st)
	ctx := context.Background()

	alice := seedUser(t, st, "alice")
	skill := seedTag(t, st, domain.TagTypeSkill, "go")
	associate(t, st, domain.UserOwner(alice.ID), skill.ID)

	agg, err := svc.users.Assemble(ctx, alice.ID, alice.ID)
	require.NoError(t, err)

	assert.Equal(t, alice.ID, agg.ID)
	assert.True(t, agg.IsOwner)
	assert.Equal(t, []string{domain.AuthProviderLocal}, agg.Auths)
	require.Len(t, agg.Emails, 1)
	assert.Equal(t, "alice@example.com", agg.Emails[0].Email)
	assert.True(t, agg.Emails[0].IsPrimary)
	require.Len(t, agg.Tags, 1)
	assert.Equal(t, "go", agg.Tags[0].Tag.Name)
	assert.False(t, agg.Like)
	assert.Zero(t, agg.LikeCount)
}

func TestAssemble_OtherRequesterIsRedacted(t *testing.T) {
	st := newTestStore(t)
	svc := newServices(st)
	ctx := context.Background()

	alice := seedUser(t, st, "alice")
	bob := seedUser(t, st, "bob")
	_, err := st.CreateLike(ctx, bob.ID, domain.UserOwner(alice.ID))
	require.NoError(t, err)

	agg, err := svc.users.Assemble(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	assert.False(t, agg.IsOwner)
	assert.Nil(t, agg.Auths)
	assert.Nil(t, agg.Emails)
	assert.True(t, agg.Like)
	assert.Equal(t, 1, agg.LikeCount)

	raw, err := json.Marshal(agg)
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.NotContains(t, fields, "auths")
	assert.NotContains(t, fields, "emails")
	assert.NotContains(t, fields, "passwordHash")
	assert.Contains(t, fields, "likeCount")
}

func TestAssemble_OwnerWithNoAuthsGetsEmptyList(t *testing.T) {
	st := newTestStore(t)
	svc := newServices(st)
	ctx := context.Background()

	alice := seedUser(t, st, "alice")
	auths, err := st.ListUserAuths(ctx, alice.ID)
	require.NoError(t, err)
	for _, a := range auths {
		require.NoError(t, st.DeleteUserAuth(ctx, a.ID))
	}

	agg, err := svc.users.Assemble(ctx, alice.ID, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, agg.Auths)
	assert.Empty(t, agg.Auths)

	raw, err := json.Marshal(agg)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"auths":[]`)
}

func TestAssemble_Anonymous(t *testing.T) {
	st := newTestStore(t)
	svc := newServices(st)
	ctx := context.Background()

	alice := seedUser(t, st, "alice")
	bob := seedUser(t, st, "bob")
	_, err := st.CreateLike(ctx, bob.ID, domain.UserOwner(alice.ID))
	require.NoError(t, err)

	agg, err := svc.users.Assemble(ctx, alice.ID, "")
	require.NoError(t, err)
	assert.False(t, agg.IsOwner)
	assert.False(t, agg.Like)
	assert.Equal(t, 1, agg.LikeCount)
	assert.Nil(t, agg.Auths)
}

func TestAssemble_AgencyAndLocationLastWins(t *testing.T) {
	st := newTestStore(t)
	svc := newServices(st)
	ctx := context.Background()

	alice := seedUser(t, st, "alice")
	owner := domain.UserOwner(alice.ID)
	acme := seedTag(t, st, domain.TagTypeAgency, "acme")
	globex := seedTag(t, st, domain.TagTypeAgency, "globex")
	berlin := seedTag(t, st, domain.TagTypeLocation, "berlin")

	associate(t, st, owner, acme.ID)
	associate(t, st, owner, berlin.ID)
	second := associate(t, st, owner, globex.ID)

	agg, err := svc.users.Assemble(ctx, alice.ID, "")
	require.NoError(t, err)

	require.NotNil(t, agg.Agency)
	assert.Equal(t, second.ID, agg.Agency.ID)
	assert.Equal(t, "globex", agg.Agency.Tag.Name)
	require.NotNil(t, agg.Location)
	assert.Equal(t, "berlin", agg.Location.Tag.Name)
	assert.Len(t, agg.Tags, 3)
}

func TestAssemble_UnknownUser(t *testing.T) {
	st := newTestStore(t)
	svc := newServices(st)

	_, err := svc.users.Assemble(context.Background(), "usr-missing", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestAssemble_FirstFailureAborts(t *testing.T) {
	st := newTestStore(t)
	alice := seedUser(t, st, "alice")

	faulty := &faultyStore{Store: st, failCountLikes: true}
	svc := newServices(faulty)

	agg, err := svc.users.Assemble(context.Background(), alice.ID, alice.ID)
	require.Error(t, err)
	assert.Nil(t, agg)
	assert.ErrorIs(t, err, domainerrors.ErrStore)
	assert.ErrorIs(t, err, errBoom)
}

func TestAssemble_OwnerOnlyFetchSkippedForOthers(t *testing.T) {
	st := newTestStore(t)
	alice := seedUser(t, st, "alice")
	bob := seedUser(t, st, "bob")

	faulty := &faultyStore{Store: st, failListAuths: true}
	svc := newServices(faulty)

	agg, err := svc.users.Assemble(context.Background(), alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Nil(t, agg.Auths)

	_, err = svc.users.Assemble(context.Background(), alice.ID, alice.ID)
	assert.ErrorIs(t, err, errBoom)
}

func TestUserUpdate_Profile(t *testing.T) {
	st := newTestStore(t)
	svc := newServices(st)
	ctx := context.Background()

	alice := seedUser(t, st, "alice")

	resp, err := svc.users.Update(ctx, alice.ID, UpdateUserRequest{
		Name:  "Alice A.",
		Title: "Engineer",
		Bio:   "Builds things",
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice A.", resp.Name)
	assert.Equal(t, "alice", resp.Username)
	assert.Nil(t, resp.Auths)

	stored, err := st.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "Engineer", stored.Title)
	assert.Equal(t, "Builds things", stored.Bio)
}

func TestUserUpdate_UsernameTaken(t *testing.T) {
	st := newTestStore(t)
	svc := newServices(st)
	ctx := context.Background()

	alice := seedUser(t, st, "alice")
	seedUser(t, st, "bob")

	_, err := svc.users.Update(ctx, alice.ID, UpdateUserRequest{Username: "bob"})
	assert.ErrorIs(t, err, domainerrors.ErrConflict)

	// Keeping your own username is fine.
	_, err = svc.users.Update(ctx, alice.ID, UpdateUserRequest{Username: "alice"})
	assert.NoError(t, err)

	taken, err := svc.users.UsernameTaken(ctx, alice.ID, "bob")
	require.NoError(t, err)
	assert.True(t, taken)
	taken, err = svc.users.UsernameTaken(ctx, alice.ID, "alice")
	require.NoError(t, err)
	assert.False(t, taken)
}

func TestUserUpdate_Validation(t *testing.T) {
	st := newTestStore(t)
	svc := newServices(st)
	alice := seedUser(t, st, "alice")

	_, err := svc.users.Update(context.Background(), alice.ID, UpdateUserRequest{Email: "not-an-email"})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	_, err = svc.users.Update(context.Background(), "", UpdateUserRequest{Name: "x"})
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)
}

func TestUserUpdate_EmailMustBeRegistered(t *testing.T) {
	st := newTestStore(t)
	svc := newServices(st)
	ctx := context.Background()

	alice := seedUser(t, st, "alice")
	seedUser(t, st, "bob")

	_, err := svc.users.Update(ctx, alice.ID, UpdateUserRequest{Email: "bob@example.com"})
	assert.ErrorIs(t, err, domainerrors.ErrConflict)

	_, err = svc.users.Update(ctx, alice.ID, UpdateUserRequest{Email: "alice@work.example"})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	stored, err := st.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", stored.Email)

	_, err = svc.users.AddEmail(ctx, alice.ID, AddEmailRequest{Email: "alice@work.example"})
	require.NoError(t, err)

	resp, err := svc.users.Update(ctx, alice.ID, UpdateUserRequest{Email: "ALICE@work.example"})
	require.NoError(t, err)
	assert.Equal(t, "alice@work.example", resp.Email)

	byEmail, err := st.GetUserByEmail(ctx, resp.Email)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byEmail.ID)
}

func linkAuth(t *testing.T, st store.AuthStore, userID, provider string) *domain.UserAuth {
	t.Helper()
	a := &domain.UserAuth{
		ID:         id.MustGenerate(id.UserAuth),
		UserID:     userID,
		Provider:   provider,
		ProviderID: provider + "-" + userID,
		CreatedAt:  time.Now(),
	}
	require.NoError(t, st.CreateUserAuth(context.Background(), a))
	return a
}

func TestUserUpdate_UnlinksUnlistedAuths(t *testing.T) {
	st := newTestStore(t)
	svc := newServices(st)
	ctx := context.Background()

	alice := seedUser(t, st, "alice")
	linkAuth(t, st, alice.ID, "github")
	linkAuth(t, st, alice.ID, "google")

	resp, err := svc.users.Update(ctx, alice.ID, UpdateUserRequest{Auths: []string{"local", "google"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"local", "google"}, resp.Auths)

	auths, err := st.ListUserAuths(ctx, alice.ID)
	require.NoError(t, err)
	var providers []string
	for _, a := range auths {
		providers = append(providers, a.Provider)
	}
	assert.ElementsMatch(t, []string{"local", "google"}, providers)
}

func TestUserUpdate_PartialUnlinkFailure(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	alice := seedUser(t, st, "alice")
	github := linkAuth(t, st, alice.ID, "github")
	linkAuth(t, st, alice.ID, "google")

	faulty := &faultyStore{Store: st, failUserAuthDrop: map[string]bool{github.ID: true}}
	svc := newServices(faulty)

	resp, err := svc.users.Update(ctx, alice.ID, UpdateUserRequest{Title: "CTO", Auths: []string{}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "CTO", resp.Title)
	assert.ErrorIs(t, err, domainerrors.ErrPartialFailure)

	var partial *domainerrors.PartialBatchError
	require.True(t, errors.As(err, &partial))
	assert.Equal(t, 3, partial.Attempted)
	require.Len(t, partial.Failures, 1)
	assert.Equal(t, opUnlinkAuth, partial.Failures[0].Op)
	assert.Equal(t, "github", partial.Failures[0].Target)

	auths, err := st.ListUserAuths(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, auths, 1)
	assert.Equal(t, "github", auths[0].Provider)
}

func TestUserAddEmail(t *testing.T) {
	st := newTestStore(t)
	svc := newServices(st)
	ctx := context.Background()

	alice := seedUser(t, st, "alice")
	bob := seedUser(t, st, "bob")

	entry, err := svc.users.AddEmail(ctx, alice.ID, AddEmailRequest{Email: "alice@work.example"})
	require.NoError(t, err)
	assert.False(t, entry.IsPrimary)

	_, err = svc.users.AddEmail(ctx, bob.ID, AddEmailRequest{Email: "alice@work.example"})
	assert.ErrorIs(t, err, domainerrors.ErrConflict)

	agg, err := svc.users.Assemble(ctx, alice.ID, alice.ID)
	require.NoError(t, err)
	assert.Len(t, agg.Emails, 2)
}

func TestUserActivities(t *testing.T) {
	st := newTestStore(t)
	svc := newServices(st)
	ctx := context.Background()

	alice := seedUser(t, st, "alice")
	bob := seedUser(t, st, "bob")
	public := seedProject(t, st, true, alice.ID)
	private := seedProject(t, st, false, alice.ID)
	seedTask(t, st, public.ID, alice.ID)

	mine, err := svc.users.Activities(ctx, alice.ID, "")
	require.NoError(t, err)
	assert.Len(t, mine.Projects, 2)
	assert.Len(t, mine.Tasks, 1)

	theirs, err := svc.users.Activities(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	require.Len(t, theirs.Projects, 1)
	assert.Equal(t, public.ID, theirs.Projects[0].ID)
	assert.NotEqual(t, private.ID, theirs.Projects[0].ID)

	_, err = svc.users.Activities(ctx, "", "")
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)
}

func TestUserPhotoLocation(t *testing.T) {
	st := newTestStore(t)
	svc := newServices(st)
	ctx := context.Background()

	alice := seedUser(t, st, "alice")
	assert.Equal(t, DefaultAvatarPath, svc.users.PhotoLocation(ctx, alice.ID))
	assert.Equal(t, DefaultAvatarPath, svc.users.PhotoLocation(ctx, "usr-missing"))

	_, err := svc.users.Update(ctx, alice.ID, UpdateUserRequest{PhotoURL: "https://cdn.example.com/a.png"})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/a.png", svc.users.PhotoLocation(ctx, alice.ID))

	_, err = svc.users.Update(ctx, alice.ID, UpdateUserRequest{PhotoID: "file123"})
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/files/file123", svc.users.PhotoLocation(ctx, alice.ID))
}
