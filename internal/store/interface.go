// Package store defines the persistence interfaces the services depend on.
package store

import (
	"context"

	"github.com/midasapp/midas-server/internal/domain"
)

// Store is the full relational store. The SQLite implementation satisfies it;
// services depend on the narrower interfaces below.
type Store interface {
	Close() error
	// Ping checks the database is reachable.
	Ping(ctx context.Context) error
	SetTagIndexer(indexer TagIndexer)

	UserStore
	AuthStore
	EmailStore
	TagStore
	LikeStore
	ProjectStore
	TaskStore
}

// UserStore persists user accounts.
type UserStore interface {
	// RegisterUser inserts the user together with its primary email and auth link.
	RegisterUser(ctx context.Context, reg *Registration) error
	// GetUser returns ErrNotFound for unknown or deleted users.
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error
}

// Registration is everything created when an account signs up.
type Registration struct {
	User  *domain.User
	Email *domain.UserEmail
	Auth  *domain.UserAuth
}

// AuthStore persists external identity links.
type AuthStore interface {
	ListUserAuths(ctx context.Context, userID string) ([]domain.UserAuth, error)
	CreateUserAuth(ctx context.Context, auth *domain.UserAuth) error
	DeleteUserAuth(ctx context.Context, id string) error
}

// EmailStore persists registered email addresses.
type EmailStore interface {
	ListUserEmails(ctx context.Context, userID string) ([]domain.UserEmail, error)
	CreateUserEmail(ctx context.Context, email *domain.UserEmail) error
}

// TagStore persists the tag catalogue and tag associations.
type TagStore interface {
	CreateTag(ctx context.Context, tag *domain.Tag) error
	GetTag(ctx context.Context, id string) (*domain.Tag, error)
	// FindOrCreateTag returns the tag with this type and name, creating it if needed.
	FindOrCreateTag(ctx context.Context, t domain.TagType, name string) (*domain.Tag, bool, error)
	ListTags(ctx context.Context, t domain.TagType) ([]*domain.Tag, error)

	// ListTagAssociations returns the owner's live associations with their tags, oldest first.
	ListTagAssociations(ctx context.Context, owner domain.Owner) ([]domain.TagAssociation, error)
	GetTagAssociation(ctx context.Context, id string) (*domain.TagAssociation, error)
	CreateTagAssociation(ctx context.Context, owner domain.Owner, tagID string) (*domain.TagAssociation, error)
	// DeleteTagAssociation returns ErrNotFound when the association is unknown or already deleted.
	DeleteTagAssociation(ctx context.Context, id string) error
}

// LikeStore persists likes of users and projects.
type LikeStore interface {
	CreateLike(ctx context.Context, userID string, target domain.Owner) (*domain.Like, error)
	DeleteLike(ctx context.Context, userID string, target domain.Owner) error
	CountLikes(ctx context.Context, target domain.Owner) (int, error)
	// FindLike returns nil, nil when userID has not liked target.
	FindLike(ctx context.Context, userID string, target domain.Owner) (*domain.Like, error)
}

// ProjectStore persists projects and their owners.
type ProjectStore interface {
	CreateProject(ctx context.Context, project *domain.Project) error
	GetProject(ctx context.Context, id string) (*domain.Project, error)
	UpdateProject(ctx context.Context, project *domain.Project) error
	ListProjectsByOwner(ctx context.Context, userID string) ([]*domain.Project, error)
}

// TaskStore persists tasks.
type TaskStore interface {
	CreateTask(ctx context.Context, task *domain.Task) error
	GetTask(ctx context.Context, id string) (*domain.Task, error)
	UpdateTask(ctx context.Context, task *domain.Task) error
	ListTasksByProject(ctx context.Context, projectID string) ([]*domain.Task, error)
	ListTasksByUser(ctx context.Context, userID string) ([]*domain.Task, error)
}

// TagIndexer keeps the tag autocomplete index in sync with the catalogue.
type TagIndexer interface {
	IndexTag(ctx context.Context, tag *domain.Tag) error
}

// NoopTagIndexer discards index updates.
type NoopTagIndexer struct{}

// IndexTag does nothing.
func (NoopTagIndexer) IndexTag(context.Context, *domain.Tag) error { return nil }
