package service

import (
	"time"

	"github.com/midasapp/midas-server/internal/domain"
)

// The types below are the response projections. Each one copies only the
// fields a client may see; anything not listed is never serialized.

// TagSummary is a catalogue tag without timestamps.
type TagSummary struct {
	ID   string         `json:"id"`
	Type domain.TagType `json:"type"`
	Name string         `json:"name"`
}

// TagEntry is a tag association as shown on a profile, project or task.
type TagEntry struct {
	ID        string     `json:"id"`
	TagID     string     `json:"tagId"`
	CreatedAt time.Time  `json:"createdAt"`
	Tag       TagSummary `json:"tag"`
}

func newTagSummary(t *domain.Tag) TagSummary {
	return TagSummary{ID: t.ID, Type: t.Type, Name: t.Name}
}

func newTagEntry(a domain.TagAssociation) TagEntry {
	return TagEntry{
		ID:        a.ID,
		TagID:     a.TagID,
		CreatedAt: a.CreatedAt,
		Tag:       newTagSummary(&a.Tag),
	}
}

func newTagEntries(assocs []domain.TagAssociation) []TagEntry {
	entries := make([]TagEntry, len(assocs))
	for i, a := range assocs {
		entries[i] = newTagEntry(a)
	}
	return entries
}

// UserProfile is the public part of a user record.
type UserProfile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Title     string    `json:"title"`
	Bio       string    `json:"bio"`
	PhotoID   string    `json:"photoId"`
	PhotoURL  string    `json:"photoUrl"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newUserProfile(u *domain.User) UserProfile {
	return UserProfile{
		ID:        u.ID,
		Name:      u.Name,
		Username:  u.Username,
		Email:     u.Email,
		Title:     u.Title,
		Bio:       u.Bio,
		PhotoID:   u.PhotoID,
		PhotoURL:  u.PhotoURL,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// EmailEntry is a registered address, shown to its owner only.
type EmailEntry struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	IsPrimary bool   `json:"isPrimary"`
}

// ProjectView is a project with its requester-relative metadata.
type ProjectView struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	State       domain.ProjectState `json:"state"`
	IsPublic    bool                `json:"isPublic"`
	Owners      []string            `json:"owners"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
	LikeCount   int                 `json:"likeCount"`
	Like        bool                `json:"like"`
	IsOwner     bool                `json:"isOwner"`
	Tags        []TagEntry          `json:"tags"`
}

func newProjectView(p *domain.Project, requesterID string) *ProjectView {
	owners := p.OwnerIDs
	if owners == nil {
		owners = []string{}
	}
	return &ProjectView{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		State:       p.State,
		IsPublic:    p.IsPublic,
		Owners:      owners,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		IsOwner:     p.IsOwner(requesterID),
		Tags:        []TagEntry{},
	}
}

// TaskView is a task with its tags.
type TaskView struct {
	ID          string              `json:"id"`
	ProjectID   string              `json:"projectId,omitempty"`
	UserID      string              `json:"userId"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	State       domain.ProjectState `json:"state"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
	Tags        []TagEntry          `json:"tags"`
}

func newTaskView(t *domain.Task) *TaskView {
	return &TaskView{
		ID:          t.ID,
		ProjectID:   t.ProjectID,
		UserID:      t.UserID,
		Title:       t.Title,
		Description: t.Description,
		State:       t.State,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		Tags:        []TagEntry{},
	}
}
