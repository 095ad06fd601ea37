package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/midasapp/midas-server/internal/batch"
	"github.com/midasapp/midas-server/internal/domain"
	domainerrors "github.com/midasapp/midas-server/internal/errors"
	"github.com/midasapp/midas-server/internal/id"
	"github.com/midasapp/midas-server/internal/store"
	"github.com/midasapp/midas-server/internal/util"
	"github.com/midasapp/midas-server/internal/validation"
)

// Operation name reported when unlinking an auth provider fails.
const opUnlinkAuth = "unlink"

// DefaultAvatarPath is served when a user has no photo.
const DefaultAvatarPath = "/images/default-user-icon-profile.png"

// UserOptions configures UserService.
type UserOptions struct {
	DefaultAvatar string
	// Concurrency bounds batch deletions and per-project lookups.
	Concurrency int
}

// UserService assembles user profiles and applies profile edits.
type UserService struct {
	store     store.Store
	validator *validation.Validator
	opts      UserOptions
	logger    *slog.Logger
}

// NewUserService creates a user service.
func NewUserService(st store.Store, v *validation.Validator, opts UserOptions, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.DefaultAvatar == "" {
		opts.DefaultAvatar = DefaultAvatarPath
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = batch.DefaultLimit
	}
	return &UserService{store: st, validator: v, opts: opts, logger: logger}
}

// UserAggregate is the read-only profile returned for (user, requester).
//
// Auths and Emails are nil for anyone but the user themself, which omits them
// from the JSON; for the owner they are always present, possibly empty.
type UserAggregate struct {
	UserProfile
	Agency    *TagEntry    `json:"agency,omitempty"`
	Location  *TagEntry    `json:"location,omitempty"`
	Tags      []TagEntry   `json:"tags"`
	LikeCount int          `json:"likeCount"`
	Like      bool         `json:"like"`
	IsOwner   bool         `json:"isOwner"`
	Auths     []string     `json:"auths,omitzero" required:"false"`
	Emails    []EmailEntry `json:"emails,omitzero" required:"false"`
}

// Assemble builds the aggregate for userID as seen by requesterID (empty for
// anonymous requests).
//
// The user, their tags, their like count and the requester's like are fetched
// concurrently; the first failure cancels the rest and no aggregate is
// returned. Auth providers and emails are fetched only when the requester is
// the user.
func (s *UserService) Assemble(ctx context.Context, userID, requesterID string) (*UserAggregate, error) {
	var (
		user      *domain.User
		assocs    []domain.TagAssociation
		likeCount int
		like      *domain.Like
	)
	target := domain.UserOwner(userID)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := s.store.GetUser(gctx, userID)
		if err != nil {
			return storeErr(err, "user")
		}
		user = u
		return nil
	})
	g.Go(func() error {
		a, err := s.store.ListTagAssociations(gctx, target)
		if err != nil {
			return storeErr(err, "tags")
		}
		assocs = a
		return nil
	})
	g.Go(func() error {
		n, err := s.store.CountLikes(gctx, target)
		if err != nil {
			return storeErr(err, "likes")
		}
		likeCount = n
		return nil
	})
	if requesterID != "" {
		g.Go(func() error {
			l, err := s.store.FindLike(gctx, requesterID, target)
			if err != nil {
				return storeErr(err, "like")
			}
			like = l
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	agg := newUserAggregate(user, assocs, likeCount, like != nil)
	if requesterID == "" || requesterID != userID {
		return agg, nil
	}

	var (
		auths  []domain.UserAuth
		emails []domain.UserEmail
	)
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		a, err := s.store.ListUserAuths(gctx, userID)
		if err != nil {
			return storeErr(err, "auth providers")
		}
		auths = a
		return nil
	})
	g.Go(func() error {
		e, err := s.store.ListUserEmails(gctx, userID)
		if err != nil {
			return storeErr(err, "emails")
		}
		emails = e
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	agg.IsOwner = true
	agg.Auths = make([]string, len(auths))
	for i, a := range auths {
		agg.Auths[i] = a.Provider
	}
	agg.Emails = make([]EmailEntry, len(emails))
	for i, e := range emails {
		agg.Emails[i] = EmailEntry{ID: e.ID, Email: e.Email, IsPrimary: e.IsPrimary}
	}
	return agg, nil
}

func newUserAggregate(user *domain.User, assocs []domain.TagAssociation, likeCount int, liked bool) *UserAggregate {
	agg := &UserAggregate{
		UserProfile: newUserProfile(user),
		Tags:        newTagEntries(assocs),
		LikeCount:   likeCount,
		Like:        liked,
	}
	// Later associations win.
	for i := range agg.Tags {
		switch agg.Tags[i].Tag.Type {
		case domain.TagTypeAgency:
			agg.Agency = &agg.Tags[i]
		case domain.TagTypeLocation:
			agg.Location = &agg.Tags[i]
		}
	}
	return agg
}

// UpdateUserRequest edits the requester's profile. Empty fields are left unchanged.
// A non-nil Auths lists the auth providers to keep; every other linked provider is removed.
type UpdateUserRequest struct {
	Name     string   `json:"name,omitempty" validate:"max=100"`
	Username string   `json:"username,omitempty" validate:"omitempty,username"`
	Email    string   `json:"email,omitempty" validate:"omitempty,email"`
	PhotoID  string   `json:"photoId,omitempty" validate:"max=64"`
	PhotoURL string   `json:"photoUrl,omitempty" validate:"omitempty,url"`
	Title    string   `json:"title,omitempty" validate:"max=100"`
	Bio      string   `json:"bio,omitempty" validate:"max=2000"`
	Auths    []string `json:"auths,omitempty"`
}

// UpdateUserResponse echoes the saved profile and, when supplied, the kept providers.
type UpdateUserResponse struct {
	UserProfile
	Auths []string `json:"auths,omitzero" required:"false"`
}

// Update saves profile edits, then removes unlisted auth providers. Provider
// removals run independently; if any fail, the saved profile is returned
// together with an *errors.PartialBatchError.
func (s *UserService) Update(ctx context.Context, requesterID string, req UpdateUserRequest) (*UpdateUserResponse, error) {
	if err := requireRequester(requesterID); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.store.GetUser(ctx, requesterID)
	if err != nil {
		return nil, storeErr(err, "user")
	}

	if req.Username != "" {
		username := util.NormalizeUsername(req.Username)
		taken, err := s.usernameHeldByOther(ctx, requesterID, username)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, domainerrors.Conflict("username is already taken")
		}
		user.Username = username
	}
	if req.Email != "" {
		email, err := s.registeredEmail(ctx, requesterID, req.Email)
		if err != nil {
			return nil, err
		}
		user.Email = email
	}
	copyIfSet(&user.Name, req.Name)
	copyIfSet(&user.PhotoID, req.PhotoID)
	copyIfSet(&user.PhotoURL, req.PhotoURL)
	copyIfSet(&user.Title, req.Title)
	copyIfSet(&user.Bio, req.Bio)

	if err := s.store.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.Conflict("username is already taken")
		}
		return nil, storeErr(err, "user")
	}
	s.logger.Info("user updated", "user_id", user.ID)

	resp := &UpdateUserResponse{UserProfile: newUserProfile(user)}
	if req.Auths == nil {
		return resp, nil
	}

	resp.Auths = slices.Clone(req.Auths)
	return resp, s.unlinkAuthsExcept(ctx, requesterID, req.Auths)
}

func copyIfSet(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// registeredEmail returns the stored form of address when it is one of
// userID's registered emails. Addresses must be added through AddEmail first.
func (s *UserService) registeredEmail(ctx context.Context, userID, address string) (string, error) {
	emails, err := s.store.ListUserEmails(ctx, userID)
	if err != nil {
		return "", storeErr(err, "emails")
	}
	for _, e := range emails {
		if strings.EqualFold(e.Email, address) {
			return e.Email, nil
		}
	}

	holder, err := s.store.GetUserByEmail(ctx, address)
	switch {
	case err == nil && holder.ID != userID:
		return "", domainerrors.Conflict("email address is registered to another user")
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return "", storeErr(err, "user")
	}
	return "", domainerrors.ValidationWithDetails("validation failed", map[string]string{
		"email": "must be one of your registered email addresses",
	})
}

// unlinkAuthsExcept deletes every provider link of userID not named in keep.
func (s *UserService) unlinkAuthsExcept(ctx context.Context, userID string, keep []string) error {
	auths, err := s.store.ListUserAuths(ctx, userID)
	if err != nil {
		return storeErr(err, "auth providers")
	}

	var ops []batch.Op
	for _, a := range auths {
		if slices.Contains(keep, a.Provider) {
			continue
		}
		ops = append(ops, batch.Op{
			Name:   opUnlinkAuth,
			Target: a.Provider,
			Run: func(ctx context.Context) error {
				return s.store.DeleteUserAuth(ctx, a.ID)
			},
		})
	}
	if len(ops) == 0 {
		return nil
	}

	result := batch.Run(ctx, s.opts.Concurrency, ops)
	for _, op := range result.Succeeded {
		s.logger.Info("auth provider unlinked", "user_id", userID, "provider", op.Target)
	}
	if err := result.Err(); err != nil {
		s.logger.Warn("auth provider unlink partially failed", "user_id", userID, "error", err)
		return err
	}
	return nil
}

// UsernameTaken reports whether a user other than requesterID holds username.
func (s *UserService) UsernameTaken(ctx context.Context, requesterID, username string) (bool, error) {
	return s.usernameHeldByOther(ctx, requesterID, util.NormalizeUsername(username))
}

func (s *UserService) usernameHeldByOther(ctx context.Context, userID, username string) (bool, error) {
	holder, err := s.store.GetUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storeErr(err, "user")
	}
	return holder.ID != userID, nil
}

// AddEmailRequest registers another address for the requester.
type AddEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// AddEmail registers a non-primary address. Addresses are unique across users.
func (s *UserService) AddEmail(ctx context.Context, requesterID string, req AddEmailRequest) (*EmailEntry, error) {
	if err := requireRequester(requesterID); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	emailID, err := id.Generate(id.UserEmail)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "generate email id")
	}
	email := &domain.UserEmail{
		ID:        emailID,
		UserID:    requesterID,
		Email:     req.Email,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateUserEmail(ctx, email); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.Conflict("email address is already registered")
		}
		return nil, storeErr(err, "email")
	}

	s.logger.Info("email added", "user_id", requesterID, "email_id", emailID)
	return &EmailEntry{ID: email.ID, Email: email.Email, IsPrimary: email.IsPrimary}, nil
}

// Activities lists what a user has been working on.
type Activities struct {
	Projects []*ProjectView `json:"projects"`
	Tasks    []*TaskView    `json:"tasks"`
}

// Activities returns the projects userID owns that requesterID may see, with
// their metadata, and the tasks userID created. userID defaults to the
// requester.
func (s *UserService) Activities(ctx context.Context, requesterID, userID string) (*Activities, error) {
	if userID == "" {
		userID = requesterID
	}
	if userID == "" {
		return nil, domainerrors.Unauthorized("authentication required")
	}

	owned, err := s.store.ListProjectsByOwner(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "projects")
	}
	visible := slices.DeleteFunc(owned, func(p *domain.Project) bool {
		return !p.VisibleTo(requesterID)
	})

	projects, err := loadProjectViews(ctx, s.store, visible, requesterID, s.opts.Concurrency)
	if err != nil {
		return nil, err
	}

	tasks, err := s.store.ListTasksByUser(ctx, userID)
	if err != nil {
		return nil, storeErr(err, "tasks")
	}
	taskViews := make([]*TaskView, len(tasks))
	for i, t := range tasks {
		taskViews[i] = newTaskView(t)
	}

	return &Activities{Projects: projects, Tasks: taskViews}, nil
}

// PhotoLocation returns where a user's photo lives: the uploaded file, the
// external URL, or the default avatar. Lookup failures fall back to the
// default avatar.
func (s *UserService) PhotoLocation(ctx context.Context, userID string) string {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("photo lookup failed", "user_id", userID, "error", err)
		}
		return s.opts.DefaultAvatar
	}
	switch {
	case user.PhotoID != "":
		return "/api/v1/files/" + user.PhotoID
	case user.PhotoURL != "":
		return user.PhotoURL
	default:
		return s.opts.DefaultAvatar
	}
}
