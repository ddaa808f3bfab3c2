package sso

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/lockbox/pkg/identity"
	"github.com/platinummonkey/lockbox/pkg/rbac"
)

func newTestProvisioner(t *testing.T) (*Provisioner, *identity.Store) {
	t.Helper()
	users := identity.NewTestStore(t)
	return NewProvisioner(users, "", nil), users
}

func TestProvisionFirstSignIn(t *testing.T) {
	p, users := newTestProvisioner(t)
	ctx := context.Background()

	ident, err := p.Provision(ctx, &Principal{
		ExternalID:  "ext-1",
		Email:       "new@x.com",
		DisplayName: "New User",
		FirstName:   "New",
		LastName:    "User",
		Provider:    "corp",
	})
	require.NoError(t, err)
	assert.Equal(t, "new@x.com", ident.Email)
	assert.Equal(t, []rbac.Role{rbac.DefaultRole}, ident.Roles)

	user, err := users.GetByEmail(ctx, "new@x.com")
	require.NoError(t, err)
	assert.Equal(t, "New User", user.DisplayName)
	assert.True(t, user.IsActive)
	assert.NotNil(t, user.LastLoginAt)
}

func TestProvisionExistingUserKeepsRoles(t *testing.T) {
	p, users := newTestProvisioner(t)
	ctx := context.Background()

	_, err := p.Provision(ctx, &Principal{Email: "u@x.com", Provider: "corp"})
	require.NoError(t, err)
	require.NoError(t, users.AssignRole(ctx, "u@x.com", rbac.RoleAdministrator, "admin@x.com"))

	ident, err := p.Provision(ctx, &Principal{
		Email:       "u@x.com",
		DisplayName: "Updated Name",
		Provider:    "corp",
	})
	require.NoError(t, err)
	assert.Contains(t, ident.Roles, rbac.RoleAdministrator)
	assert.Equal(t, "Updated Name", ident.DisplayName)
}

func TestProvisionRejectsDeactivatedUser(t *testing.T) {
	p, users := newTestProvisioner(t)
	ctx := context.Background()

	_, err := p.Provision(ctx, &Principal{Email: "u@x.com", Provider: "corp"})
	require.NoError(t, err)
	require.NoError(t, users.SetActive(ctx, "u@x.com", false))

	_, err = p.Provision(ctx, &Principal{Email: "u@x.com", Provider: "corp"})
	assert.ErrorIs(t, err, ErrUserDeactivated)
}

func TestProvisionRequiresEmail(t *testing.T) {
	p, _ := newTestProvisioner(t)

	_, err := p.Provision(context.Background(), &Principal{ExternalID: "ext-1", Provider: "corp"})
	assert.ErrorIs(t, err, ErrMissingEmail)
}

func TestProvisionDisplayNameFallsBackToEmail(t *testing.T) {
	p, users := newTestProvisioner(t)
	ctx := context.Background()

	_, err := p.Provision(ctx, &Principal{Email: "bare@x.com", Provider: "corp"})
	require.NoError(t, err)

	user, err := users.GetByEmail(ctx, "bare@x.com")
	require.NoError(t, err)
	assert.Equal(t, "bare@x.com", user.DisplayName)
}

func TestProvisionCopiesPresentAttributes(t *testing.T) {
	p, _ := newTestProvisioner(t)

	attrs := NormalizeAttributes(map[string][]string{
		"email":      {"u@x.com"},
		"department": {"engineering"},
		"empty":      {""},
	})
	ident, err := p.Provision(context.Background(), &Principal{
		Email:      "u@x.com",
		Attributes: attrs,
		Provider:   "corp",
	})
	require.NoError(t, err)
	assert.Equal(t, "engineering", ident.Attributes["department"])
	_, hasEmpty := ident.Attributes["empty"]
	assert.False(t, hasEmpty)
}

func TestProvisionCustomDefaultRole(t *testing.T) {
	users := identity.NewTestStore(t)
	p := NewProvisioner(users, rbac.RoleGuest, nil)

	ident, err := p.Provision(context.Background(), &Principal{Email: "g@x.com", Provider: "corp"})
	require.NoError(t, err)
	assert.Equal(t, []rbac.Role{rbac.RoleGuest}, ident.Roles)
}
