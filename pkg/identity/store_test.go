package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/lockbox/pkg/rbac"
)

func TestStoreUpsert(t *testing.T) {
	store := NewTestStore(t)
	ctx := context.Background()

	user := &User{Email: "u@x.com", DisplayName: "User X", FirstName: "User", LastName: "X"}
	require.NoError(t, store.Upsert(ctx, user))
	assert.NotZero(t, user.ID)

	// Upserting the same email refreshes display fields, keeps the ID.
	again := &User{Email: "u@x.com", DisplayName: "Renamed"}
	require.NoError(t, store.Upsert(ctx, again))
	assert.Equal(t, user.ID, again.ID)

	got, err := store.GetByEmail(ctx, "u@x.com")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.DisplayName)
	assert.True(t, got.IsActive)
}

func TestStoreGetByEmailNotFound(t *testing.T) {
	store := NewTestStore(t)

	_, err := store.GetByEmail(context.Background(), "ghost@x.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestStoreAssignRoleIdempotent(t *testing.T) {
	store := NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, &User{Email: "u@x.com"}))
	require.NoError(t, store.AssignRole(ctx, "u@x.com", rbac.RoleRegularUser, "admin@x.com"))

	// Re-assigning an already-held role is a no-op success.
	require.NoError(t, store.AssignRole(ctx, "u@x.com", rbac.RoleRegularUser, "admin@x.com"))

	got, err := store.GetByEmail(ctx, "u@x.com")
	require.NoError(t, err)
	assert.Equal(t, []rbac.Role{rbac.RoleRegularUser}, got.Roles)
}

func TestStoreAssignRoleUnknownUser(t *testing.T) {
	store := NewTestStore(t)

	err := store.AssignRole(context.Background(), "ghost@x.com", rbac.RoleGuest, "admin@x.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestStoreRemoveRoleLastAdminGuard(t *testing.T) {
	store := NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, &User{Email: "admin@x.com"}))
	require.NoError(t, store.AssignRole(ctx, "admin@x.com", rbac.RoleAdministrator, "system"))

	err := store.RemoveRole(ctx, "admin@x.com", rbac.RoleAdministrator)
	assert.ErrorIs(t, err, ErrLastAdmin)

	// Role set unchanged after the refused removal.
	got, err := store.GetByEmail(ctx, "admin@x.com")
	require.NoError(t, err)
	assert.Equal(t, []rbac.Role{rbac.RoleAdministrator}, got.Roles)
}

func TestStoreRemoveRoleSucceedsWithSecondAdmin(t *testing.T) {
	store := NewTestStore(t)
	ctx := context.Background()

	for _, email := range []string{"a@x.com", "b@x.com"} {
		require.NoError(t, store.Upsert(ctx, &User{Email: email}))
		require.NoError(t, store.AssignRole(ctx, email, rbac.RoleAdministrator, "system"))
	}

	require.NoError(t, store.RemoveRole(ctx, "b@x.com", rbac.RoleAdministrator))

	// Emptied role sets fall back to the default role.
	got, err := store.GetByEmail(ctx, "b@x.com")
	require.NoError(t, err)
	assert.Equal(t, []rbac.Role{rbac.DefaultRole}, got.Roles)

	count, err := store.CountAdministrators(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestStoreRemoveRoleAbsentIsNoOp(t *testing.T) {
	store := NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, &User{Email: "u@x.com"}))
	require.NoError(t, store.AssignRole(ctx, "u@x.com", rbac.RoleRegularUser, "system"))

	require.NoError(t, store.RemoveRole(ctx, "u@x.com", rbac.RoleGuest))

	got, err := store.GetByEmail(ctx, "u@x.com")
	require.NoError(t, err)
	assert.Equal(t, []rbac.Role{rbac.RoleRegularUser}, got.Roles)
}

func TestStoreRoleStats(t *testing.T) {
	store := NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, &User{Email: "a@x.com"}))
	require.NoError(t, store.AssignRole(ctx, "a@x.com", rbac.RoleAdministrator, "system"))
	require.NoError(t, store.Upsert(ctx, &User{Email: "b@x.com"}))
	require.NoError(t, store.AssignRole(ctx, "b@x.com", rbac.RoleRegularUser, "system"))
	require.NoError(t, store.Upsert(ctx, &User{Email: "c@x.com"}))
	require.NoError(t, store.AssignRole(ctx, "c@x.com", rbac.RoleRegularUser, "system"))

	stats, err := store.RoleStats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 3)

	byRole := make(map[rbac.Role]int64)
	for _, s := range stats {
		byRole[s.Role] = s.Users
	}
	assert.Equal(t, int64(0), byRole[rbac.RoleGuest])
	assert.Equal(t, int64(2), byRole[rbac.RoleRegularUser])
	assert.Equal(t, int64(1), byRole[rbac.RoleAdministrator])
}

func TestStoreTouchLogin(t *testing.T) {
	store := NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, &User{Email: "u@x.com"}))
	require.NoError(t, store.TouchLogin(ctx, "u@x.com"))

	got, err := store.GetByEmail(ctx, "u@x.com")
	require.NoError(t, err)
	assert.NotNil(t, got.LastLoginAt)

	assert.ErrorIs(t, store.TouchLogin(ctx, "ghost@x.com"), ErrUserNotFound)
}

func TestStoreList(t *testing.T) {
	store := NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, &User{Email: "b@x.com"}))
	require.NoError(t, store.Upsert(ctx, &User{Email: "a@x.com"}))
	require.NoError(t, store.AssignRole(ctx, "a@x.com", rbac.RoleGuest, "system"))

	users, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "a@x.com", users[0].Email)
	assert.Equal(t, []rbac.Role{rbac.RoleGuest}, users[0].Roles)
	assert.Equal(t, "b@x.com", users[1].Email)
}
