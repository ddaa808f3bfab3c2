package rbac

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineHasPermission(t *testing.T) {
	engine := NewEngine(nil)

	tests := []struct {
		name  string
		roles []Role
		perm  Permission
		want  bool
	}{
		{"administrator manages users", []Role{RoleAdministrator}, PermissionManageUsers, true},
		{"regular user manages secrets", []Role{RoleRegularUser}, PermissionManageSecrets, true},
		{"regular user cannot manage roles", []Role{RoleRegularUser}, PermissionManageRoles, false},
		{"guest reads secrets", []Role{RoleGuest}, PermissionAccessSecrets, true},
		{"guest cannot manage secrets", []Role{RoleGuest}, PermissionManageSecrets, false},
		{"union over multiple roles", []Role{RoleGuest, RoleRegularUser}, PermissionManageSecrets, true},
		{"empty role set denied", nil, PermissionAccessSecrets, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, engine.HasPermission(tt.roles, tt.perm))
		})
	}
}

func TestEngineRequirePermission(t *testing.T) {
	engine := NewEngine(nil)

	require.NoError(t, engine.RequirePermission([]Role{RoleAdministrator}, PermissionManageRoles))

	err := engine.RequirePermission([]Role{RoleRegularUser}, PermissionManageRoles)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAccessDenied))

	var denied *AccessDeniedError
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, PermissionManageRoles, denied.Permission)
	assert.Empty(t, denied.Role)
}

func TestEngineRequireRole(t *testing.T) {
	engine := NewEngine(nil)

	require.NoError(t, engine.RequireRole([]Role{RoleRegularUser, RoleAdministrator}, RoleAdministrator))

	// Role checks are exact: administrator does not satisfy a guest check.
	err := engine.RequireRole([]Role{RoleAdministrator}, RoleGuest)
	require.Error(t, err)

	var denied *AccessDeniedError
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, RoleGuest, denied.Role)
}

func TestEngineRequireAnyPermission(t *testing.T) {
	engine := NewEngine(nil)

	require.NoError(t, engine.RequireAnyPermission(
		[]Role{RoleRegularUser}, PermissionManageRoles, PermissionManageSecrets))

	err := engine.RequireAnyPermission(
		[]Role{RoleGuest}, PermissionManageRoles, PermissionManageUsers)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAccessDenied))
}

func TestEngineEffectivePermissions(t *testing.T) {
	engine := NewEngine(nil)

	assert.Equal(t,
		[]Permission{PermissionAccessSecrets, PermissionManageSecrets},
		engine.EffectivePermissions([]Role{RoleRegularUser}))

	// Union over the full ladder equals the administrator set.
	assert.Equal(t,
		AllPermissions(),
		engine.EffectivePermissions([]Role{RoleGuest, RoleRegularUser, RoleAdministrator}))

	assert.Empty(t, engine.EffectivePermissions(nil))
}

func TestAccessDeniedErrorMessages(t *testing.T) {
	assert.Equal(t, `access denied: missing permission "manage_roles"`,
		(&AccessDeniedError{Permission: PermissionManageRoles}).Error())
	assert.Equal(t, `access denied: missing role "administrator"`,
		(&AccessDeniedError{Role: RoleAdministrator}).Error())
	assert.Equal(t, "access denied", (&AccessDeniedError{}).Error())
}
