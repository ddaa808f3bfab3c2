package rbac

// Permission is an atomic capability tag checked by the decision engine.
type Permission string

const (
	// PermissionManageUsers allows creating, updating, and deactivating
	// user accounts.
	PermissionManageUsers Permission = "manage_users"

	// PermissionManageRoles allows granting and revoking roles.
	PermissionManageRoles Permission = "manage_roles"

	// PermissionViewAdminPanel allows loading the administrative surface.
	PermissionViewAdminPanel Permission = "view_admin_panel"

	// PermissionViewUserList allows enumerating user accounts.
	PermissionViewUserList Permission = "view_user_list"

	// PermissionAccessSecrets allows reading secrets subject to folder ACLs.
	PermissionAccessSecrets Permission = "access_secrets"

	// PermissionManageSecrets allows creating and modifying secrets subject
	// to folder ACLs.
	PermissionManageSecrets Permission = "manage_secrets"
)

// AllPermissions returns the complete permission catalog in stable order.
func AllPermissions() []Permission {
	return []Permission{
		PermissionManageUsers,
		PermissionManageRoles,
		PermissionViewAdminPanel,
		PermissionViewUserList,
		PermissionAccessSecrets,
		PermissionManageSecrets,
	}
}

// Valid reports whether p is part of the permission catalog.
func (p Permission) Valid() bool {
	switch p {
	case PermissionManageUsers, PermissionManageRoles, PermissionViewAdminPanel,
		PermissionViewUserList, PermissionAccessSecrets, PermissionManageSecrets:
		return true
	}
	return false
}

func (p Permission) String() string { return string(p) }

// Role names a bundle of permissions. Roles form a strict capability
// ladder: guest < regular_user < administrator.
type Role string

const (
	// RoleGuest is the most restricted role.
	RoleGuest Role = "guest"

	// RoleRegularUser is the default role assigned to provisioned users.
	RoleRegularUser Role = "regular_user"

	// RoleAdministrator holds every permission in the catalog.
	RoleAdministrator Role = "administrator"
)

// DefaultRole is assigned to identities provisioned without an explicit
// role, and re-assigned when a role removal would leave a user with none.
const DefaultRole = RoleRegularUser

// AllRoles returns the built-in roles ordered from least to most capable.
func AllRoles() []Role {
	return []Role{RoleGuest, RoleRegularUser, RoleAdministrator}
}

// Valid reports whether r is one of the built-in roles.
func (r Role) Valid() bool {
	switch r {
	case RoleGuest, RoleRegularUser, RoleAdministrator:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// DisplayName returns a human-readable label for admin UIs.
func (r Role) DisplayName() string {
	switch r {
	case RoleGuest:
		return "Guest"
	case RoleRegularUser:
		return "Regular User"
	case RoleAdministrator:
		return "Administrator"
	default:
		return string(r)
	}
}
