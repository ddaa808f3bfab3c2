// Package rbac implements the role-based access control core for lockbox.
//
// The package is deliberately free of storage and transport concerns. It
// defines the permission catalog, the built-in roles, an immutable
// role-to-permission registry, and a decision engine that answers "may a
// subject holding these roles do X". Persistence of role assignments lives
// in pkg/identity; HTTP guards live in pkg/middleware.
//
// # Permissions
//
// Permissions are atomic capability tags. The catalog is fixed at compile
// time:
//
//	rbac.PermissionManageUsers     // create, update, deactivate users
//	rbac.PermissionManageRoles     // grant and revoke roles
//	rbac.PermissionViewAdminPanel  // load the admin UI surface
//	rbac.PermissionViewUserList    // enumerate user accounts
//	rbac.PermissionAccessSecrets   // read secrets the ACL allows
//	rbac.PermissionManageSecrets   // create and modify secrets
//
// # Roles
//
// Three built-in roles form a strict capability ladder: every permission
// held by guest is held by regular_user, and every permission held by
// regular_user is held by administrator. Registry.Validate enforces the
// ladder and rejects empty permission sets, so a misconfigured policy file
// fails at startup rather than at request time.
//
// # Deciding access
//
//	registry := rbac.NewRegistry()
//	engine := rbac.NewEngine(registry)
//
//	if err := engine.RequirePermission(user.Roles, rbac.PermissionManageUsers); err != nil {
//		var denied *rbac.AccessDeniedError
//		if errors.As(err, &denied) {
//			// render 403
//		}
//	}
//
// Deployments that need a different permission table load an overlay with
// LoadPolicy; roles named in the policy file replace their default sets,
// unnamed roles keep the defaults, and the merged table is validated before
// use.
package rbac
