package service

import (
	"context"
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/midasapp/midas-server/internal/auth"
	domainerrors "github.com/midasapp/midas-server/internal/errors"
	"github.com/midasapp/midas-server/internal/session"
	"github.com/midasapp/midas-server/internal/validation"
)

func setupAuthTest(t *testing.T) (*AuthService, *session.Store) {
	t.Helper()

	st := newTestStore(t)
	sessions, err := session.Open("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sessions.Close() })

	key := make([]byte, 32)
	_, err = rand.Read(key)
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(key, 15*time.Minute, 24*time.Hour)
	require.NoError(t, err)

	return NewAuthService(st, sessions, tokens, validation.New(), nil), sessions
}

func registerAlice(t *testing.T, svc *AuthService) *AuthResponse {
	t.Helper()
	resp, err := svc.Register(context.Background(), RegisterRequest{
		Username: "alice",
		Name:     "Alice",
		Email:    "alice@example.com",
		Password: "correct horse battery",
	}, ClientInfo{IPAddress: "127.0.0.1", UserAgent: "test"})
	require.NoError(t, err)
	return resp
}

func TestAuthRegister(t *testing.T) {
	svc, sessions := setupAuthTest(t)
	ctx := context.Background()

	resp := registerAlice(t, svc)
	assert.Equal(t, "alice", resp.User.Username)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, 900, resp.ExpiresIn)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)

	sess, err := sessions.Get(ctx, resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, sess.UserID)
	assert.Equal(t, "127.0.0.1", sess.IPAddress)

	claims, err := svc.VerifyAccessToken(ctx, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
}

func TestAuthRegister_Duplicates(t *testing.T) {
	svc, _ := setupAuthTest(t)
	ctx := context.Background()
	registerAlice(t, svc)

	_, err := svc.Register(ctx, RegisterRequest{
		Username: "alice", Name: "Other", Email: "other@example.com", Password: "long enough pw",
	}, ClientInfo{})
	assert.ErrorIs(t, err, domainerrors.ErrConflict)

	_, err = svc.Register(ctx, RegisterRequest{
		Username: "other", Name: "Other", Email: "alice@example.com", Password: "long enough pw",
	}, ClientInfo{})
	assert.ErrorIs(t, err, domainerrors.ErrConflict)

	_, err = svc.Register(ctx, RegisterRequest{
		Username: "x!", Name: "Other", Email: "bad", Password: "short",
	}, ClientInfo{})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestAuthLogin(t *testing.T) {
	svc, _ := setupAuthTest(t)
	ctx := context.Background()
	registered := registerAlice(t, svc)

	byName, err := svc.Login(ctx, LoginRequest{Login: "alice", Password: "correct horse battery"}, ClientInfo{})
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, byName.User.ID)
	assert.NotEqual(t, registered.SessionID, byName.SessionID)

	byEmail, err := svc.Login(ctx, LoginRequest{Login: "alice@example.com", Password: "correct horse battery"}, ClientInfo{})
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, byEmail.User.ID)

	_, err = svc.Login(ctx, LoginRequest{Login: "alice", Password: "wrong"}, ClientInfo{})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)

	_, err = svc.Login(ctx, LoginRequest{Login: "nobody", Password: "wrong"}, ClientInfo{})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)
}

func TestAuthRefreshRotates(t *testing.T) {
	svc, _ := setupAuthTest(t)
	ctx := context.Background()
	registered := registerAlice(t, svc)

	refreshed, err := svc.Refresh(ctx, RefreshRequest{RefreshToken: registered.RefreshToken})
	require.NoError(t, err)
	assert.Equal(t, registered.SessionID, refreshed.SessionID)
	assert.NotEqual(t, registered.RefreshToken, refreshed.RefreshToken)

	_, err = svc.Refresh(ctx, RefreshRequest{RefreshToken: registered.RefreshToken})
	assert.ErrorIs(t, err, domainerrors.ErrTokenExpired)

	_, err = svc.Refresh(ctx, RefreshRequest{RefreshToken: refreshed.RefreshToken})
	assert.NoError(t, err)
}

func TestAuthLogout(t *testing.T) {
	svc, sessions := setupAuthTest(t)
	ctx := context.Background()
	registered := registerAlice(t, svc)

	require.NoError(t, svc.Logout(ctx, RefreshRequest{RefreshToken: registered.RefreshToken}))

	_, err := sessions.Get(ctx, registered.SessionID)
	assert.Error(t, err)

	_, err = svc.Refresh(ctx, RefreshRequest{RefreshToken: registered.RefreshToken})
	assert.ErrorIs(t, err, domainerrors.ErrTokenExpired)

	// Unknown tokens are ignored.
	assert.NoError(t, svc.Logout(ctx, RefreshRequest{RefreshToken: "unknown"}))
}

func TestAuthVerifyAccessToken_Rejects(t *testing.T) {
	svc, _ := setupAuthTest(t)

	_, err := svc.VerifyAccessToken(context.Background(), "v4.local.garbage")
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)
}
