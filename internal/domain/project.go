package domain

// ProjectState is the lifecycle stage of a project or task.
type ProjectState string

const (
	StateDraft     ProjectState = "draft"
	StatePublic    ProjectState = "public"
	StateCompleted ProjectState = "completed"
	StateClosed    ProjectState = "closed"
)

// Project groups tasks and has one or more owners.
type Project struct {
	Syncable
	Title       string       `json:"title"`
	Description string       `json:"description"`
	State       ProjectState `json:"state"`
	IsPublic    bool         `json:"is_public"`
	OwnerIDs    []string     `json:"owner_ids"`
}

// IsOwner reports whether userID owns the project.
func (p *Project) IsOwner(userID string) bool {
	if userID == "" {
		return false
	}
	for _, id := range p.OwnerIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// VisibleTo reports whether userID may see the project: public projects are
// visible to everyone, others only to their owners.
func (p *Project) VisibleTo(userID string) bool {
	return p.IsPublic || p.IsOwner(userID)
}

// Task is a unit of work, optionally inside a project.
type Task struct {
	Syncable
	ProjectID   string       `json:"project_id,omitempty"`
	UserID      string       `json:"user_id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	State       ProjectState `json:"state"`
}
