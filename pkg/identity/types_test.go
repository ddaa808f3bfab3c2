package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/lockbox/pkg/rbac"
)

func TestSerializeRoundTrip(t *testing.T) {
	ident := Identity{
		Email:       "u@x.com",
		DisplayName: "User X",
		FirstName:   "User",
		LastName:    "X",
		Roles:       []rbac.Role{rbac.RoleRegularUser, rbac.RoleAdministrator},
		Attributes:  map[string]string{"department": "platform"},
		LoginAt:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	data, err := Serialize(ident)
	require.NoError(t, err)

	got, err := Deserialize(data)
	require.NoError(t, err)
	assert.Equal(t, ident, got)
}

func TestDeserializeDefaultsEmptyRoles(t *testing.T) {
	got, err := Deserialize([]byte(`{"email":"u@x.com"}`))
	require.NoError(t, err)
	assert.Equal(t, []rbac.Role{rbac.DefaultRole}, got.Roles)
}

func TestDeserializeRejectsBadPayloads(t *testing.T) {
	_, err := Deserialize([]byte(`{`))
	assert.Error(t, err)

	_, err = Deserialize([]byte(`{"display_name":"no email"}`))
	assert.Error(t, err)
}

func TestIdentityRoleHelpers(t *testing.T) {
	ident := &Identity{Email: "u@x.com", Roles: []rbac.Role{rbac.RoleRegularUser}}
	assert.True(t, ident.HasRole(rbac.RoleRegularUser))
	assert.False(t, ident.HasRole(rbac.RoleAdministrator))
	assert.False(t, ident.IsAdministrator())

	admin := &Identity{Email: "a@x.com", Roles: []rbac.Role{rbac.RoleAdministrator}}
	assert.True(t, admin.IsAdministrator())
}

func TestUserIdentityConversion(t *testing.T) {
	user := &User{
		Email:       "u@x.com",
		DisplayName: "User X",
		Roles:       []rbac.Role{rbac.RoleRegularUser},
	}

	ident := user.Identity()
	assert.Equal(t, user.Email, ident.Email)

	// The conversion copies the role slice.
	ident.Roles[0] = rbac.RoleAdministrator
	assert.Equal(t, []rbac.Role{rbac.RoleRegularUser}, user.Roles)
}
