package folders

import (
	"encoding/json"
	"fmt"
	"time"
)

// AccessLevel is the ordered capability tier for a folder:
// none < read < write < admin. A higher level satisfies any check for a
// lower one.
type AccessLevel int

const (
	// LevelNone means no access at all.
	LevelNone AccessLevel = iota

	// LevelRead allows listing the folder and reading its secrets.
	LevelRead

	// LevelWrite allows creating and modifying secrets in the folder.
	LevelWrite

	// LevelAdmin allows managing grants and deactivating the folder.
	LevelAdmin
)

// Satisfies reports whether the level meets the required tier.
func (l AccessLevel) Satisfies(required AccessLevel) bool {
	return l >= required
}

func (l AccessLevel) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelRead:
		return "read"
	case LevelWrite:
		return "write"
	case LevelAdmin:
		return "admin"
	default:
		return fmt.Sprintf("access_level(%d)", int(l))
	}
}

// ParseAccessLevel parses the wire form of an access level. "none" is not
// grantable and is rejected.
func ParseAccessLevel(s string) (AccessLevel, error) {
	switch s {
	case "read":
		return LevelRead, nil
	case "write":
		return LevelWrite, nil
	case "admin":
		return LevelAdmin, nil
	default:
		return LevelNone, fmt.Errorf("invalid access level %q", s)
	}
}

// MarshalJSON encodes the level as its string form.
func (l AccessLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON decodes the string form of a level.
func (l *AccessLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "none" {
		*l = LevelNone
		return nil
	}
	level, err := ParseAccessLevel(s)
	if err != nil {
		return err
	}
	*l = level
	return nil
}

// Folder is a node in the hierarchy. Path is absolute, "/"-delimited,
// and globally unique; ParentID is nil for roots.
type Folder struct {
	ID          int64     `json:"id"`
	Path        string    `json:"path"`
	Name        string    `json:"name"`
	Icon        string    `json:"icon,omitempty"`
	Description string    `json:"description,omitempty"`
	ParentID    *int64    `json:"parent_id,omitempty"`
	CreatedBy   string    `json:"created_by"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Grant is an explicit, per-folder access level for a principal. At most
// one grant exists per (folder, principal) pair; re-granting replaces the
// level.
type Grant struct {
	ID             int64       `json:"id"`
	FolderID       int64       `json:"folder_id"`
	PrincipalEmail string      `json:"principal_email"`
	Level          AccessLevel `json:"level"`
	GrantedBy      string      `json:"granted_by"`
	GrantedAt      time.Time   `json:"granted_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// CreateParams carries the inputs for folder creation.
type CreateParams struct {
	ParentID    *int64 `json:"parent_id,omitempty"`
	Name        string `json:"name"`
	Path        string `json:"path"`
	Icon        string `json:"icon,omitempty"`
	Description string `json:"description,omitempty"`
}
