package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/lockbox/pkg/rbac"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(NewTestStore(t), rbac.NewEngine(nil), nil)
}

func adminIdentity(email string) *Identity {
	return &Identity{Email: email, Roles: []rbac.Role{rbac.RoleAdministrator}}
}

func seedUser(t *testing.T, svc *Service, email string, roles ...rbac.Role) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, svc.store.Upsert(ctx, &User{Email: email}))
	for _, role := range roles {
		require.NoError(t, svc.store.AssignRole(ctx, email, role, "system"))
	}
}

func TestServiceAssignRoleRequiresManageRoles(t *testing.T) {
	svc := newTestService(t)
	seedUser(t, svc, "target@x.com", rbac.RoleRegularUser)

	actor := &Identity{Email: "user@x.com", Roles: []rbac.Role{rbac.RoleRegularUser}}
	err := svc.AssignRole(context.Background(), "target@x.com", rbac.RoleGuest, actor)
	assert.ErrorIs(t, err, rbac.ErrAccessDenied)
}

func TestServiceAssignRole(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	seedUser(t, svc, "admin@x.com", rbac.RoleAdministrator)
	seedUser(t, svc, "target@x.com", rbac.RoleRegularUser)

	require.NoError(t, svc.AssignRole(ctx, "target@x.com", rbac.RoleAdministrator, adminIdentity("admin@x.com")))
	// Idempotent re-assign.
	require.NoError(t, svc.AssignRole(ctx, "target@x.com", rbac.RoleAdministrator, adminIdentity("admin@x.com")))

	user, err := svc.store.GetByEmail(ctx, "target@x.com")
	require.NoError(t, err)
	assert.ElementsMatch(t, []rbac.Role{rbac.RoleAdministrator, rbac.RoleRegularUser}, user.Roles)
}

func TestServiceSelfPromotionDenied(t *testing.T) {
	svc := newTestService(t)
	seedUser(t, svc, "admin@x.com", rbac.RoleAdministrator)
	seedUser(t, svc, "sneaky@x.com", rbac.RoleRegularUser)

	// An actor holding manage_roles still cannot self-grant administrator.
	actor := &Identity{Email: "sneaky@x.com", Roles: []rbac.Role{rbac.RoleAdministrator}}
	err := svc.AssignRole(context.Background(), "sneaky@x.com", rbac.RoleAdministrator, actor)
	assert.ErrorIs(t, err, ErrSelfPromotion)
}

func TestServiceRemoveRoleLastAdmin(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	seedUser(t, svc, "admin@x.com", rbac.RoleAdministrator)

	// The sole administrator removing their own administrator role is a
	// lockout hazard, not a self-demotion.
	err := svc.RemoveRole(ctx, "admin@x.com", rbac.RoleAdministrator, adminIdentity("admin@x.com"))
	assert.ErrorIs(t, err, ErrLastAdmin)

	user, err := svc.store.GetByEmail(ctx, "admin@x.com")
	require.NoError(t, err)
	assert.Equal(t, []rbac.Role{rbac.RoleAdministrator}, user.Roles)
}

func TestServiceRemoveRoleSelfDemotion(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	seedUser(t, svc, "a@x.com", rbac.RoleAdministrator)
	seedUser(t, svc, "b@x.com", rbac.RoleAdministrator)

	err := svc.RemoveRole(ctx, "a@x.com", rbac.RoleAdministrator, adminIdentity("a@x.com"))
	assert.ErrorIs(t, err, ErrSelfDemotion)

	// Another administrator may demote them.
	require.NoError(t, svc.RemoveRole(ctx, "a@x.com", rbac.RoleAdministrator, adminIdentity("b@x.com")))

	user, err := svc.store.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, []rbac.Role{rbac.DefaultRole}, user.Roles)
}

func TestServiceEffectivePermissions(t *testing.T) {
	svc := newTestService(t)

	ident := &Identity{Email: "u@x.com", Roles: []rbac.Role{rbac.RoleGuest, rbac.RoleRegularUser}}
	assert.Equal(t,
		[]rbac.Permission{rbac.PermissionAccessSecrets, rbac.PermissionManageSecrets},
		svc.EffectivePermissions(ident))
	assert.True(t, svc.HasPermission(ident, rbac.PermissionManageSecrets))
	assert.False(t, svc.HasPermission(ident, rbac.PermissionManageRoles))
}

func TestServiceListUsersGuard(t *testing.T) {
	svc := newTestService(t)
	seedUser(t, svc, "u@x.com", rbac.RoleRegularUser)

	_, err := svc.ListUsers(context.Background(), &Identity{Email: "u@x.com", Roles: []rbac.Role{rbac.RoleRegularUser}})
	assert.ErrorIs(t, err, rbac.ErrAccessDenied)

	users, err := svc.ListUsers(context.Background(), adminIdentity("admin@x.com"))
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestServiceEnsureAdministrators(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.EnsureAdministrators(ctx, []string{"root@x.com", ""}))
	// Idempotent on restart.
	require.NoError(t, svc.EnsureAdministrators(ctx, []string{"root@x.com"}))

	user, err := svc.store.GetByEmail(ctx, "root@x.com")
	require.NoError(t, err)
	assert.Equal(t, []rbac.Role{rbac.RoleAdministrator}, user.Roles)
}
