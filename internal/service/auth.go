package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/midasapp/midas-server/internal/auth"
	"github.com/midasapp/midas-server/internal/domain"
	domainerrors "github.com/midasapp/midas-server/internal/errors"
	"github.com/midasapp/midas-server/internal/id"
	"github.com/midasapp/midas-server/internal/store"
	"github.com/midasapp/midas-server/internal/util"
	"github.com/midasapp/midas-server/internal/validation"
)

// SessionStore keeps refresh sessions.
type SessionStore interface {
	Create(ctx context.Context, session *domain.Session) error
	GetByRefreshToken(ctx context.Context, tokenHash string) (*domain.Session, error)
	Rotate(ctx context.Context, sessionID, newTokenHash string, expiresAt time.Time) (*domain.Session, error)
	Delete(ctx context.Context, sessionID string) error
}

// AuthService registers accounts and issues, refreshes and revokes tokens.
type AuthService struct {
	users     store.UserStore
	sessions  SessionStore
	tokens    *auth.TokenService
	validator *validation.Validator
	logger    *slog.Logger
}

// NewAuthService creates an authentication service.
func NewAuthService(
	users store.UserStore,
	sessions SessionStore,
	tokens *auth.TokenService,
	v *validation.Validator,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &AuthService{
		users:     users,
		sessions:  sessions,
		tokens:    tokens,
		validator: v,
		logger:    logger,
	}
}

// ClientInfo describes where a request came from. Handlers fill it in.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// RegisterRequest creates a password account.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,username"`
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=1024"`
}

// LoginRequest authenticates with a username or email address.
type LoginRequest struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest exchanges a refresh token for a new token pair.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// AuthResponse carries a token pair and the signed-in user.
type AuthResponse struct {
	User         UserProfile `json:"user"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	TokenType    string      `json:"tokenType"`
	ExpiresIn    int         `json:"expiresIn"`
	SessionID    string      `json:"sessionId"`
}

// Register creates the user with its primary email and a local auth link,
// then signs them in.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest, client ClientInfo) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	username := util.NormalizeUsername(req.Username)
	email := strings.TrimSpace(req.Email)

	if _, err := s.users.GetUserByUsername(ctx, username); err == nil {
		return nil, domainerrors.Conflict("username is already taken")
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, storeErr(err, "user")
	}
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, domainerrors.Conflict("email address is already registered")
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, storeErr(err, "user")
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "hash password")
	}

	reg, err := newRegistration(username, req.Name, email, passwordHash)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "generate ids")
	}
	if err := s.users.RegisterUser(ctx, reg); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.Conflict("username or email is already registered")
		}
		return nil, storeErr(err, "user")
	}

	s.logger.Info("user registered", "user_id", reg.User.ID, "username", username)
	return s.startSession(ctx, reg.User, client)
}

func newRegistration(username, name, email, passwordHash string) (*store.Registration, error) {
	userID, err := id.Generate(id.User)
	if err != nil {
		return nil, err
	}
	emailID, err := id.Generate(id.UserEmail)
	if err != nil {
		return nil, err
	}
	authID, err := id.Generate(id.UserAuth)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Name:         name,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
	}
	user.ID = userID
	user.InitTimestamps()

	return &store.Registration{
		User: user,
		Email: &domain.UserEmail{
			ID:        emailID,
			UserID:    userID,
			Email:     email,
			IsPrimary: true,
			CreatedAt: user.CreatedAt,
		},
		Auth: &domain.UserAuth{
			ID:         authID,
			UserID:     userID,
			Provider:   domain.AuthProviderLocal,
			ProviderID: userID,
			CreatedAt:  user.CreatedAt,
		},
	}, nil
}

// Login checks credentials and opens a session. Unknown users and wrong
// passwords produce the same error.
func (s *AuthService) Login(ctx context.Context, req LoginRequest, client ClientInfo) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	login := strings.TrimSpace(req.Login)
	var (
		user *domain.User
		err  error
	)
	if strings.Contains(login, "@") {
		user, err = s.users.GetUserByEmail(ctx, login)
	} else {
		user, err = s.users.GetUserByUsername(ctx, login)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.InvalidCredentials("invalid login or password")
		}
		return nil, storeErr(err, "user")
	}

	if user.PasswordHash == "" || !auth.VerifyPassword(user.PasswordHash, req.Password) {
		return nil, domainerrors.InvalidCredentials("invalid login or password")
	}

	s.logger.Info("user logged in", "user_id", user.ID, "ip", client.IPAddress)
	return s.startSession(ctx, user, client)
}

func (s *AuthService) startSession(ctx context.Context, user *domain.User, client ClientInfo) (*AuthResponse, error) {
	accessToken, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	refreshToken, err := s.tokens.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	sessionID, err := id.Generate(id.Session)
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	now := time.Now()
	session := &domain.Session{
		ID:               sessionID,
		UserID:           user.ID,
		RefreshTokenHash: auth.HashRefreshToken(refreshToken),
		ExpiresAt:        now.Add(s.tokens.RefreshTokenDuration()),
		CreatedAt:        now,
		LastSeenAt:       now,
		IPAddress:        client.IPAddress,
		UserAgent:        client.UserAgent,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	return &AuthResponse{
		User:         newUserProfile(user),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.tokens.AccessTokenDuration().Seconds()),
		SessionID:    sessionID,
	}, nil
}

// Refresh rotates the session's refresh token and issues a new access token.
// The presented refresh token stops working.
func (s *AuthService) Refresh(ctx context.Context, req RefreshRequest) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	session, err := s.sessions.GetByRefreshToken(ctx, auth.HashRefreshToken(req.RefreshToken))
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeTokenExpired, "invalid or expired refresh token")
	}

	user, err := s.users.GetUser(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = s.sessions.Delete(ctx, session.ID)
			return nil, domainerrors.Unauthorized("user no longer exists")
		}
		return nil, storeErr(err, "user")
	}

	accessToken, err := s.tokens.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	refreshToken, err := s.tokens.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(s.tokens.RefreshTokenDuration())
	if _, err := s.sessions.Rotate(ctx, session.ID, auth.HashRefreshToken(refreshToken), expiresAt); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeTokenExpired, "invalid or expired refresh token")
	}

	return &AuthResponse{
		User:         newUserProfile(user),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int(s.tokens.AccessTokenDuration().Seconds()),
		SessionID:    session.ID,
	}, nil
}

// Logout revokes the session owning refreshToken. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, req RefreshRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}
	session, err := s.sessions.GetByRefreshToken(ctx, auth.HashRefreshToken(req.RefreshToken))
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) || errors.Is(err, store.ErrSessionExpired) {
			return nil
		}
		return fmt.Errorf("lookup session: %w", err)
	}
	if err := s.sessions.Delete(ctx, session.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.logger.Info("user logged out", "user_id", session.UserID, "session_id", session.ID)
	return nil
}

// VerifyAccessToken validates a bearer token and checks its user still exists.
func (s *AuthService) VerifyAccessToken(ctx context.Context, token string) (*auth.AccessClaims, error) {
	claims, err := s.tokens.VerifyAccessToken(token)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeUnauthorized, "invalid or expired access token")
	}
	if _, err := s.users.GetUser(ctx, claims.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.Unauthorized("user no longer exists")
		}
		return nil, storeErr(err, "user")
	}
	return claims, nil
}
