package secrets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/lockbox/pkg/folders"
)

func seedFolder(t *testing.T, folderStore *folders.Store, path string) *folders.Folder {
	t.Helper()
	folder := &folders.Folder{Path: path, Name: path[1:], CreatedBy: "owner@x.com"}
	require.NoError(t, folderStore.Create(context.Background(), folder))
	return folder
}

func TestStoreCreateAndGet(t *testing.T) {
	store, folderStore := NewTestStores(t)
	ctx := context.Background()
	folder := seedFolder(t, folderStore, "/prod")

	secret := &Secret{FolderID: folder.ID, Name: "api_key", Ciphertext: "sealed", CreatedBy: "a@x.com"}
	require.NoError(t, store.Create(ctx, secret))
	assert.NotZero(t, secret.ID)
	assert.True(t, secret.IsActive)

	got, err := store.GetByID(ctx, secret.ID)
	require.NoError(t, err)
	assert.Equal(t, "api_key", got.Name)
	assert.Equal(t, "sealed", got.Ciphertext)
}

func TestStoreGetNotFound(t *testing.T) {
	store, _ := NewTestStores(t)

	_, err := store.GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

func TestStoreDuplicateNameInFolder(t *testing.T) {
	store, folderStore := NewTestStores(t)
	ctx := context.Background()
	folder := seedFolder(t, folderStore, "/prod")
	other := seedFolder(t, folderStore, "/staging")

	require.NoError(t, store.Create(ctx, &Secret{FolderID: folder.ID, Name: "api_key", Ciphertext: "x", CreatedBy: "a@x.com"}))

	err := store.Create(ctx, &Secret{FolderID: folder.ID, Name: "api_key", Ciphertext: "y", CreatedBy: "a@x.com"})
	assert.ErrorIs(t, err, ErrNameConflict)

	// Same name in a different folder is fine.
	assert.NoError(t, store.Create(ctx, &Secret{FolderID: other.ID, Name: "api_key", Ciphertext: "z", CreatedBy: "a@x.com"}))
}

func TestStoreListExcludesCiphertextAndInactive(t *testing.T) {
	store, folderStore := NewTestStores(t)
	ctx := context.Background()
	folder := seedFolder(t, folderStore, "/prod")

	active := &Secret{FolderID: folder.ID, Name: "api_key", Ciphertext: "sealed", CreatedBy: "a@x.com"}
	require.NoError(t, store.Create(ctx, active))
	dead := &Secret{FolderID: folder.ID, Name: "old_key", Ciphertext: "sealed", CreatedBy: "a@x.com"}
	require.NoError(t, store.Create(ctx, dead))
	require.NoError(t, store.Deactivate(ctx, dead.ID))

	list, err := store.ListByFolder(ctx, folder.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "api_key", list[0].Name)
	assert.Empty(t, list[0].Ciphertext)
}

func TestStoreDeactivate(t *testing.T) {
	store, folderStore := NewTestStores(t)
	ctx := context.Background()
	folder := seedFolder(t, folderStore, "/prod")

	secret := &Secret{FolderID: folder.ID, Name: "api_key", Ciphertext: "x", CreatedBy: "a@x.com"}
	require.NoError(t, store.Create(ctx, secret))

	require.NoError(t, store.Deactivate(ctx, secret.ID))
	got, err := store.GetByID(ctx, secret.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	assert.ErrorIs(t, store.Deactivate(ctx, 99), ErrSecretNotFound)
}
