package folders

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/lockbox/pkg/identity"
	"github.com/platinummonkey/lockbox/pkg/rbac"
)

func regularIdentity(email string) *identity.Identity {
	return &identity.Identity{Email: email, Roles: []rbac.Role{rbac.RoleRegularUser}}
}

func TestResolveAdministratorOverride(t *testing.T) {
	store := NewTestStore(t)
	resolver := NewResolver(store)
	folder := mustCreate(t, store, "/prod", "prod", "owner@x.com", nil)

	admin := &identity.Identity{Email: "admin@x.com", Roles: []rbac.Role{rbac.RoleAdministrator}}
	level, err := resolver.Resolve(context.Background(), admin, folder.ID)
	require.NoError(t, err)
	assert.Equal(t, LevelAdmin, level)
}

func TestResolveOwnerRule(t *testing.T) {
	store := NewTestStore(t)
	resolver := NewResolver(store)
	folder := mustCreate(t, store, "/prod", "prod", "u@x.com", nil)

	// Creator holds admin with no grant row.
	level, err := resolver.Resolve(context.Background(), regularIdentity("u@x.com"), folder.ID)
	require.NoError(t, err)
	assert.Equal(t, LevelAdmin, level)
}

func TestResolveExplicitGrant(t *testing.T) {
	store := NewTestStore(t)
	resolver := NewResolver(store)
	ctx := context.Background()
	folder := mustCreate(t, store, "/prod", "prod", "owner@x.com", nil)
	require.NoError(t, store.UpsertGrant(ctx, &Grant{
		FolderID: folder.ID, PrincipalEmail: "b@x.com", Level: LevelWrite, GrantedBy: "owner@x.com",
	}))

	level, err := resolver.Resolve(ctx, regularIdentity("b@x.com"), folder.ID)
	require.NoError(t, err)
	assert.Equal(t, LevelWrite, level)
}

func TestResolveNoAccessByDefault(t *testing.T) {
	store := NewTestStore(t)
	resolver := NewResolver(store)
	folder := mustCreate(t, store, "/prod", "prod", "owner@x.com", nil)

	level, err := resolver.Resolve(context.Background(), regularIdentity("stranger@x.com"), folder.ID)
	require.NoError(t, err)
	assert.Equal(t, LevelNone, level)
}

func TestResolveNoInheritanceFromAncestors(t *testing.T) {
	store := NewTestStore(t)
	resolver := NewResolver(store)
	ctx := context.Background()

	parent := mustCreate(t, store, "/prod", "prod", "owner@x.com", nil)
	child := mustCreate(t, store, "/prod/db", "db", "owner@x.com", &parent.ID)
	require.NoError(t, store.UpsertGrant(ctx, &Grant{
		FolderID: parent.ID, PrincipalEmail: "b@x.com", Level: LevelWrite, GrantedBy: "owner@x.com",
	}))

	// WRITE on /prod says nothing about /prod/db.
	level, err := resolver.Resolve(ctx, regularIdentity("b@x.com"), child.ID)
	require.NoError(t, err)
	assert.Equal(t, LevelNone, level)
}

func TestResolveMissingFolder(t *testing.T) {
	store := NewTestStore(t)
	resolver := NewResolver(store)

	_, err := resolver.Resolve(context.Background(), regularIdentity("u@x.com"), 404)
	assert.ErrorIs(t, err, ErrFolderNotFound)
}

func TestRevocationImmediatelyVisible(t *testing.T) {
	store := NewTestStore(t)
	resolver := NewResolver(store, WithCache(128, time.Minute))
	ctx := context.Background()

	folder := mustCreate(t, store, "/prod", "prod", "owner@x.com", nil)
	require.NoError(t, store.UpsertGrant(ctx, &Grant{
		FolderID: folder.ID, PrincipalEmail: "b@x.com", Level: LevelWrite, GrantedBy: "owner@x.com",
	}))

	ident := regularIdentity("b@x.com")
	level, err := resolver.Resolve(ctx, ident, folder.ID)
	require.NoError(t, err)
	assert.Equal(t, LevelWrite, level)

	// Revoke and invalidate, as the service does.
	require.NoError(t, store.DeleteGrant(ctx, folder.ID, "b@x.com"))
	resolver.Invalidate(folder.ID)

	level, err = resolver.Resolve(ctx, ident, folder.ID)
	require.NoError(t, err)
	assert.Equal(t, LevelNone, level)
}

func TestResolverCacheServesRepeatLookups(t *testing.T) {
	store := NewTestStore(t)
	resolver := NewResolver(store, WithCache(128, time.Minute))
	ctx := context.Background()

	folder := mustCreate(t, store, "/prod", "prod", "owner@x.com", nil)
	ident := regularIdentity("owner@x.com")

	for i := 0; i < 3; i++ {
		level, err := resolver.Resolve(ctx, ident, folder.ID)
		require.NoError(t, err)
		assert.Equal(t, LevelAdmin, level)
	}
}

func TestRequire(t *testing.T) {
	store := NewTestStore(t)
	resolver := NewResolver(store)
	ctx := context.Background()

	folder := mustCreate(t, store, "/prod", "prod", "owner@x.com", nil)
	require.NoError(t, store.UpsertGrant(ctx, &Grant{
		FolderID: folder.ID, PrincipalEmail: "b@x.com", Level: LevelRead, GrantedBy: "owner@x.com",
	}))

	ident := regularIdentity("b@x.com")
	assert.NoError(t, resolver.Require(ctx, ident, folder.ID, LevelRead))
	assert.ErrorIs(t, resolver.Require(ctx, ident, folder.ID, LevelWrite), ErrForbidden)
	assert.ErrorIs(t, resolver.Require(ctx, regularIdentity("nobody@x.com"), folder.ID, LevelRead), ErrForbidden)
}
