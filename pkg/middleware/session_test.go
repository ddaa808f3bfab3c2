package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/lockbox/pkg/contextkeys"
	"github.com/platinummonkey/lockbox/pkg/identity"
	"github.com/platinummonkey/lockbox/pkg/rbac"
	"github.com/platinummonkey/lockbox/pkg/session"
)

func newTestSessionManager(t *testing.T) *session.Manager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store := session.NewRedisStore(client, time.Hour)
	return session.NewManager(store, nil)
}

func TestSessionAuthRejectsAnonymous(t *testing.T) {
	auth := NewSessionAuth(newTestSessionManager(t), nil)

	handler := auth.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run without a session")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionAuthPlacesIdentityOnContext(t *testing.T) {
	manager := newTestSessionManager(t)
	auth := NewSessionAuth(manager, nil)

	issueW := httptest.NewRecorder()
	sessionID, err := manager.Issue(context.Background(), issueW, identity.Identity{
		Email: "u@x.com",
		Roles: []rbac.Role{rbac.RoleRegularUser},
	})
	require.NoError(t, err)

	var gotEmail, gotSession string
	handler := auth.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ident, ok := identity.ActorFromContext(r)
		require.True(t, ok)
		gotEmail = ident.Email
		gotSession = contextkeys.GetSessionID(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	r.AddCookie(&http.Cookie{Name: manager.CookieName(), Value: sessionID})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u@x.com", gotEmail)
	assert.Equal(t, sessionID, gotSession)
}

func TestSessionAuthRejectsUnknownCookie(t *testing.T) {
	manager := newTestSessionManager(t)
	auth := NewSessionAuth(manager, nil)

	handler := auth.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	r.AddCookie(&http.Cookie{Name: manager.CookieName(), Value: "forged"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
