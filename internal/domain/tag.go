package domain

import "time"

// TagType is the category a tag belongs to. The set is fixed.
type TagType string

const (
	TagTypeTaskSkillsRequired TagType = "task-skills-required"
	TagTypeTaskTimeRequired   TagType = "task-time-required"
	TagTypeTaskPeople         TagType = "task-people"
	TagTypeTaskLength         TagType = "task-length"
	TagTypeTaskTimeEstimate   TagType = "task-time-estimate"
	TagTypeSkill              TagType = "skill"
	TagTypeTopic              TagType = "topic"
	TagTypeLocation           TagType = "location"
	// TagTypeAgency is set on users only.
	TagTypeAgency TagType = "agency"
)

// TagTypes lists every recognized type in reconciliation order.
var TagTypes = []TagType{
	TagTypeTaskSkillsRequired,
	TagTypeTaskTimeRequired,
	TagTypeTaskPeople,
	TagTypeTaskLength,
	TagTypeTaskTimeEstimate,
	TagTypeSkill,
	TagTypeTopic,
	TagTypeLocation,
	TagTypeAgency,
}

// TaskTagTypes are the types edited on the task form.
var TaskTagTypes = []TagType{
	TagTypeTaskSkillsRequired,
	TagTypeTaskTimeRequired,
	TagTypeTaskPeople,
	TagTypeTaskLength,
	TagTypeTaskTimeEstimate,
	TagTypeSkill,
	TagTypeTopic,
	TagTypeLocation,
}

// ProfileTagTypes are the types a user edits on their own profile.
var ProfileTagTypes = []TagType{
	TagTypeSkill,
	TagTypeTopic,
	TagTypeLocation,
	TagTypeAgency,
}

// ProjectTagTypes are the types edited on a project.
var ProjectTagTypes = []TagType{
	TagTypeSkill,
	TagTypeTopic,
	TagTypeLocation,
}

// Valid reports whether t is one of the recognized types.
func (t TagType) Valid() bool {
	for _, known := range TagTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Tag is a catalogue entry. (Type, Name) is unique.
type Tag struct {
	Syncable
	Type TagType `json:"type"`
	Name string  `json:"name"`
}

// OwnerKind names the kind of record a tag association hangs off.
type OwnerKind string

const (
	OwnerUser    OwnerKind = "user"
	OwnerProject OwnerKind = "project"
	OwnerTask    OwnerKind = "task"
)

// Valid reports whether k is a known owner kind.
func (k OwnerKind) Valid() bool {
	switch k {
	case OwnerUser, OwnerProject, OwnerTask:
		return true
	default:
		return false
	}
}

// Owner identifies the user, project or task that carries tags.
type Owner struct {
	Kind OwnerKind `json:"kind"`
	ID   string    `json:"id"`
}

// UserOwner, ProjectOwner and TaskOwner build owners of each kind.
func UserOwner(id string) Owner    { return Owner{Kind: OwnerUser, ID: id} }
func ProjectOwner(id string) Owner { return Owner{Kind: OwnerProject, ID: id} }
func TaskOwner(id string) Owner    { return Owner{Kind: OwnerTask, ID: id} }

// String renders "kind:id".
func (o Owner) String() string { return string(o.Kind) + ":" + o.ID }

// TagAssociation links a tag to exactly one owner. Associations are created and
// deleted, never edited.
type TagAssociation struct {
	Syncable
	Owner Owner  `json:"owner"`
	TagID string `json:"tag_id"`
	Tag   Tag    `json:"tag"`
}

// Selection is a submitted set of tag ids grouped by type.
type Selection map[TagType][]string

// Like is a user liking another user or a project.
type Like struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Target    Owner     `json:"target"`
	CreatedAt time.Time `json:"created_at"`
}
