package secrets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/lockbox/pkg/folders"
	"github.com/platinummonkey/lockbox/pkg/identity"
	"github.com/platinummonkey/lockbox/pkg/rbac"
)

type secretsFixture struct {
	service *Service
	folders *folders.Service
	store   *Store
}

func newSecretsFixture(t *testing.T) *secretsFixture {
	t.Helper()
	store, folderStore := NewTestStores(t)
	resolver := folders.NewResolver(folderStore)
	engine := rbac.NewEngine(nil)
	return &secretsFixture{
		service: NewService(store, folderStore, resolver, NewTestCipher(t), engine, nil),
		folders: folders.NewService(folderStore, resolver, engine, nil),
		store:   store,
	}
}

func ident(email string, role rbac.Role) *identity.Identity {
	return &identity.Identity{Email: email, Roles: []rbac.Role{role}}
}

func TestServiceCreateRevealRoundTrip(t *testing.T) {
	fx := newSecretsFixture(t)
	ctx := context.Background()
	owner := ident("owner@x.com", rbac.RoleRegularUser)

	folder, err := fx.folders.Create(ctx, folders.CreateParams{Name: "prod", Path: "/prod"}, owner)
	require.NoError(t, err)

	secret, err := fx.service.Create(ctx, CreateParams{
		FolderID: folder.ID, Name: "db_password", Plaintext: "hunter2",
	}, owner)
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", secret.Ciphertext)

	revealed, err := fx.service.Reveal(ctx, secret.ID, owner)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", revealed.Value)
}

func TestServiceCreateRequiresWrite(t *testing.T) {
	fx := newSecretsFixture(t)
	ctx := context.Background()
	owner := ident("owner@x.com", rbac.RoleRegularUser)

	folder, err := fx.folders.Create(ctx, folders.CreateParams{Name: "prod", Path: "/prod"}, owner)
	require.NoError(t, err)
	_, err = fx.folders.GrantAccess(ctx, folder.ID, "reader@x.com", folders.LevelRead, owner)
	require.NoError(t, err)

	_, err = fx.service.Create(ctx, CreateParams{
		FolderID: folder.ID, Name: "api_key", Plaintext: "v",
	}, ident("reader@x.com", rbac.RoleRegularUser))
	assert.ErrorIs(t, err, folders.ErrForbidden)
}

func TestServiceListRequiresRead(t *testing.T) {
	fx := newSecretsFixture(t)
	ctx := context.Background()
	owner := ident("owner@x.com", rbac.RoleRegularUser)

	folder, err := fx.folders.Create(ctx, folders.CreateParams{Name: "prod", Path: "/prod"}, owner)
	require.NoError(t, err)
	_, err = fx.service.Create(ctx, CreateParams{FolderID: folder.ID, Name: "api_key", Plaintext: "v"}, owner)
	require.NoError(t, err)

	_, err = fx.service.List(ctx, folder.ID, ident("stranger@x.com", rbac.RoleRegularUser))
	assert.ErrorIs(t, err, folders.ErrForbidden)

	// A read grant is enough to list metadata.
	_, err = fx.folders.GrantAccess(ctx, folder.ID, "reader@x.com", folders.LevelRead, owner)
	require.NoError(t, err)
	list, err := fx.service.List(ctx, folder.ID, ident("reader@x.com", rbac.RoleRegularUser))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].Ciphertext)
}

func TestServiceRevealRequiresRead(t *testing.T) {
	fx := newSecretsFixture(t)
	ctx := context.Background()
	owner := ident("owner@x.com", rbac.RoleRegularUser)

	folder, err := fx.folders.Create(ctx, folders.CreateParams{Name: "prod", Path: "/prod"}, owner)
	require.NoError(t, err)
	secret, err := fx.service.Create(ctx, CreateParams{FolderID: folder.ID, Name: "api_key", Plaintext: "v"}, owner)
	require.NoError(t, err)

	_, err = fx.service.Reveal(ctx, secret.ID, ident("stranger@x.com", rbac.RoleRegularUser))
	assert.ErrorIs(t, err, folders.ErrForbidden)

	// Administrators read everything.
	revealed, err := fx.service.Reveal(ctx, secret.ID, ident("admin@x.com", rbac.RoleAdministrator))
	require.NoError(t, err)
	assert.Equal(t, "v", revealed.Value)
}

func TestServiceDeactivateRequiresWrite(t *testing.T) {
	fx := newSecretsFixture(t)
	ctx := context.Background()
	owner := ident("owner@x.com", rbac.RoleRegularUser)

	folder, err := fx.folders.Create(ctx, folders.CreateParams{Name: "prod", Path: "/prod"}, owner)
	require.NoError(t, err)
	secret, err := fx.service.Create(ctx, CreateParams{FolderID: folder.ID, Name: "api_key", Plaintext: "v"}, owner)
	require.NoError(t, err)

	_, err = fx.folders.GrantAccess(ctx, folder.ID, "reader@x.com", folders.LevelRead, owner)
	require.NoError(t, err)
	err = fx.service.Deactivate(ctx, secret.ID, ident("reader@x.com", rbac.RoleRegularUser))
	assert.ErrorIs(t, err, folders.ErrForbidden)

	require.NoError(t, fx.service.Deactivate(ctx, secret.ID, owner))

	// A deactivated secret is gone from the read path.
	_, err = fx.service.Get(ctx, secret.ID, owner)
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

func TestServiceCreateValidation(t *testing.T) {
	fx := newSecretsFixture(t)
	ctx := context.Background()
	owner := ident("owner@x.com", rbac.RoleRegularUser)

	folder, err := fx.folders.Create(ctx, folders.CreateParams{Name: "prod", Path: "/prod"}, owner)
	require.NoError(t, err)

	_, err = fx.service.Create(ctx, CreateParams{FolderID: folder.ID, Name: "", Plaintext: "v"}, owner)
	assert.Error(t, err)

	_, err = fx.service.Create(ctx, CreateParams{FolderID: 999, Name: "x", Plaintext: "v"}, owner)
	assert.ErrorIs(t, err, folders.ErrFolderNotFound)

	// Inactive folders refuse new secrets.
	require.NoError(t, fx.folders.Deactivate(ctx, folder.ID, false, owner))
	_, err = fx.service.Create(ctx, CreateParams{FolderID: folder.ID, Name: "x", Plaintext: "v"}, owner)
	assert.ErrorIs(t, err, folders.ErrFolderNotFound)
}
