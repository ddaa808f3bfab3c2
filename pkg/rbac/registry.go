package rbac

import "fmt"

// Registry is an immutable mapping from roles to permission sets. Build
// one with NewRegistry or NewRegistryFromTable; both validate the table so
// an Engine never operates on a malformed policy.
type Registry struct {
	grants map[Role]map[Permission]struct{}
}

// DefaultTable returns the built-in role-to-permission table.
func DefaultTable() map[Role][]Permission {
	return map[Role][]Permission{
		RoleGuest: {
			PermissionAccessSecrets,
		},
		RoleRegularUser: {
			PermissionAccessSecrets,
			PermissionManageSecrets,
		},
		RoleAdministrator: {
			PermissionManageUsers,
			PermissionManageRoles,
			PermissionViewAdminPanel,
			PermissionViewUserList,
			PermissionAccessSecrets,
			PermissionManageSecrets,
		},
	}
}

// NewRegistry returns a Registry holding the default table.
func NewRegistry() *Registry {
	r, err := NewRegistryFromTable(DefaultTable())
	if err != nil {
		// The default table is fixed at compile time; failing validation
		// is a programming error, not a runtime condition.
		panic(fmt.Sprintf("rbac: default table invalid: %v", err))
	}
	return r
}

// NewRegistryFromTable builds a Registry from an explicit table. The table
// must cover every built-in role, assign each a non-empty set of known
// permissions, and preserve the capability ladder
// guest <= regular_user <= administrator.
func NewRegistryFromTable(table map[Role][]Permission) (*Registry, error) {
	grants := make(map[Role]map[Permission]struct{}, len(table))
	for role, perms := range table {
		if !role.Valid() {
			return nil, fmt.Errorf("rbac: unknown role %q", role)
		}
		set := make(map[Permission]struct{}, len(perms))
		for _, p := range perms {
			if !p.Valid() {
				return nil, fmt.Errorf("rbac: unknown permission %q for role %q", p, role)
			}
			set[p] = struct{}{}
		}
		grants[role] = set
	}
	r := &Registry{grants: grants}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks the registry invariants: every built-in role is present
// with at least one permission, and each step up the ladder keeps every
// permission of the step below.
func (r *Registry) Validate() error {
	for _, role := range AllRoles() {
		set, ok := r.grants[role]
		if !ok {
			return fmt.Errorf("rbac: role %q missing from table", role)
		}
		if len(set) == 0 {
			return fmt.Errorf("rbac: role %q has no permissions", role)
		}
	}
	ladder := AllRoles()
	for i := 1; i < len(ladder); i++ {
		lower, higher := ladder[i-1], ladder[i]
		for p := range r.grants[lower] {
			if _, ok := r.grants[higher][p]; !ok {
				return fmt.Errorf("rbac: role %q lacks permission %q held by %q", higher, p, lower)
			}
		}
	}
	return nil
}

// HasPermission reports whether role holds p.
func (r *Registry) HasPermission(role Role, p Permission) bool {
	set, ok := r.grants[role]
	if !ok {
		return false
	}
	_, ok = set[p]
	return ok
}

// PermissionsFor returns role's permissions in catalog order. The returned
// slice is a copy; mutating it does not affect the registry.
func (r *Registry) PermissionsFor(role Role) []Permission {
	set, ok := r.grants[role]
	if !ok {
		return nil
	}
	out := make([]Permission, 0, len(set))
	for _, p := range AllPermissions() {
		if _, held := set[p]; held {
			out = append(out, p)
		}
	}
	return out
}
