package identity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/platinummonkey/lockbox/pkg/rbac"
)

// Identity represents a signed-in principal. It is a plain value type:
// construction never touches storage, and the session layer persists it
// through Serialize/Deserialize.
type Identity struct {
	Email       string            `json:"email"`
	DisplayName string            `json:"display_name"`
	FirstName   string            `json:"first_name"`
	LastName    string            `json:"last_name"`
	Roles       []rbac.Role       `json:"roles"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	LoginAt     time.Time         `json:"login_at"`
}

// HasRole reports whether the identity holds role.
func (i *Identity) HasRole(role rbac.Role) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdministrator reports whether the identity holds the administrator
// role. Resource-level checks treat administrators as holding ADMIN on
// every folder.
func (i *Identity) IsAdministrator() bool {
	return i.HasRole(rbac.RoleAdministrator)
}

// ActorEmail returns the principal's email. The audit layer discovers
// the acting identity in a request context through this method without
// depending on this package.
func (i *Identity) ActorEmail() string {
	return i.Email
}

// Serialize encodes the identity for the session store.
func Serialize(ident Identity) ([]byte, error) {
	data, err := json.Marshal(ident)
	if err != nil {
		return nil, fmt.Errorf("serialize identity: %w", err)
	}
	return data, nil
}

// Deserialize decodes an identity previously produced by Serialize. A
// decoded identity with no roles gets the default role so a stale session
// payload can never yield a role-less principal.
func Deserialize(data []byte) (Identity, error) {
	var ident Identity
	if err := json.Unmarshal(data, &ident); err != nil {
		return Identity{}, fmt.Errorf("deserialize identity: %w", err)
	}
	if ident.Email == "" {
		return Identity{}, fmt.Errorf("deserialize identity: missing email")
	}
	if len(ident.Roles) == 0 {
		ident.Roles = []rbac.Role{rbac.DefaultRole}
	}
	return ident, nil
}

// User is the durable record behind an Identity.
type User struct {
	ID          int64       `json:"id"`
	Email       string      `json:"email"`
	DisplayName string      `json:"display_name"`
	FirstName   string      `json:"first_name"`
	LastName    string      `json:"last_name"`
	Roles       []rbac.Role `json:"roles"`
	IsActive    bool        `json:"is_active"`
	LastLoginAt *time.Time  `json:"last_login_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Identity converts the durable record into its session value form.
func (u *User) Identity() Identity {
	roles := make([]rbac.Role, len(u.Roles))
	copy(roles, u.Roles)
	return Identity{
		Email:       u.Email,
		DisplayName: u.DisplayName,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Roles:       roles,
	}
}

// RoleStat counts the users holding a role.
type RoleStat struct {
	Role  rbac.Role `json:"role"`
	Users int64     `json:"users"`
}
