package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/lockbox/pkg/identity"
	"github.com/platinummonkey/lockbox/pkg/rbac"
)

type stubRoleSource struct {
	users map[string]*identity.User
}

func (s *stubRoleSource) GetByEmail(_ context.Context, email string) (*identity.User, error) {
	user, ok := s.users[email]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	return user, nil
}

func newTestManager(t *testing.T, opts ...ManagerOption) *Manager {
	t.Helper()
	store, _ := newTestStore(t)
	return NewManager(store, nil, opts...)
}

func requestWithCookie(name, value string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	r.AddCookie(&http.Cookie{Name: name, Value: value})
	return r
}

func TestManagerIssueSetsCookie(t *testing.T) {
	m := newTestManager(t)
	w := httptest.NewRecorder()

	sessionID, err := m.Issue(context.Background(), w, testIdentity("u@x.com"))
	require.NoError(t, err)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	cookie := cookies[0]
	assert.Equal(t, DefaultCookieName, cookie.Name)
	assert.Equal(t, sessionID, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
}

func TestManagerResolveRoundTrip(t *testing.T) {
	m := newTestManager(t)
	w := httptest.NewRecorder()

	sessionID, err := m.Issue(context.Background(), w, testIdentity("u@x.com"))
	require.NoError(t, err)

	ident, gotID, err := m.Resolve(context.Background(), requestWithCookie(DefaultCookieName, sessionID))
	require.NoError(t, err)
	assert.Equal(t, sessionID, gotID)
	assert.Equal(t, "u@x.com", ident.Email)
	assert.False(t, ident.LoginAt.IsZero())
}

func TestManagerResolveNoCookie(t *testing.T) {
	m := newTestManager(t)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	_, _, err := m.Resolve(context.Background(), r)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, _, err = m.Resolve(context.Background(), requestWithCookie(DefaultCookieName, "bogus"))
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManagerResolveRefreshesRoles(t *testing.T) {
	roles := &stubRoleSource{users: map[string]*identity.User{
		"u@x.com": {
			Email:    "u@x.com",
			Roles:    []rbac.Role{rbac.RoleRegularUser},
			IsActive: true,
		},
	}}
	m := newTestManager(t, WithRoleSource(roles))
	w := httptest.NewRecorder()

	sessionID, err := m.Issue(context.Background(), w, testIdentity("u@x.com"))
	require.NoError(t, err)

	// Promote the user out of band; the next request sees the new role.
	roles.users["u@x.com"].Roles = []rbac.Role{rbac.RoleAdministrator}

	ident, _, err := m.Resolve(context.Background(), requestWithCookie(DefaultCookieName, sessionID))
	require.NoError(t, err)
	assert.Equal(t, []rbac.Role{rbac.RoleAdministrator}, ident.Roles)
}

func TestManagerResolveEvictsDeactivatedUser(t *testing.T) {
	roles := &stubRoleSource{users: map[string]*identity.User{
		"u@x.com": {
			Email:    "u@x.com",
			Roles:    []rbac.Role{rbac.RoleRegularUser},
			IsActive: false,
		},
	}}
	m := newTestManager(t, WithRoleSource(roles))
	w := httptest.NewRecorder()

	sessionID, err := m.Issue(context.Background(), w, testIdentity("u@x.com"))
	require.NoError(t, err)

	_, _, err = m.Resolve(context.Background(), requestWithCookie(DefaultCookieName, sessionID))
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// The stale session was deleted, not just rejected.
	_, err = m.store.Get(context.Background(), sessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManagerResolveEvictsUnknownUser(t *testing.T) {
	m := newTestManager(t, WithRoleSource(&stubRoleSource{users: map[string]*identity.User{}}))
	w := httptest.NewRecorder()

	sessionID, err := m.Issue(context.Background(), w, testIdentity("gone@x.com"))
	require.NoError(t, err)

	_, _, err = m.Resolve(context.Background(), requestWithCookie(DefaultCookieName, sessionID))
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManagerDestroy(t *testing.T) {
	m := newTestManager(t)
	w := httptest.NewRecorder()

	sessionID, err := m.Issue(context.Background(), w, testIdentity("u@x.com"))
	require.NoError(t, err)

	dw := httptest.NewRecorder()
	require.NoError(t, m.Destroy(context.Background(), dw, requestWithCookie(DefaultCookieName, sessionID)))

	cookies := dw.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.Equal(t, -1, cookies[0].MaxAge)

	_, _, err = m.Resolve(context.Background(), requestWithCookie(DefaultCookieName, sessionID))
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManagerCustomCookieName(t *testing.T) {
	m := newTestManager(t, WithCookieName("custom_sid"), WithSecureCookies(false))
	w := httptest.NewRecorder()

	sessionID, err := m.Issue(context.Background(), w, testIdentity("u@x.com"))
	require.NoError(t, err)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "custom_sid", cookies[0].Name)
	assert.False(t, cookies[0].Secure)

	_, _, err = m.Resolve(context.Background(), requestWithCookie("custom_sid", sessionID))
	assert.NoError(t, err)
}
