package api

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

	"github.com/platinummonkey/lockbox/pkg/folders"
	"github.com/platinummonkey/lockbox/pkg/identity"
	"github.com/platinummonkey/lockbox/pkg/middleware"
	"github.com/platinummonkey/lockbox/pkg/rbac"
	"github.com/platinummonkey/lockbox/pkg/session"
)

func newTestServer(t *testing.T) (*Server, *session.Manager) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	manager := session.NewManager(
		session.NewRedisStore(client, time.Hour), nil,
		session.WithSecureCookies(false),
	)

	engine := rbac.NewEngine(nil)
	users := identity.NewService(identity.NewTestStore(t), engine, nil)

	folderStore := folders.NewTestStore(t)
	folderService := folders.NewService(folderStore, folders.NewResolver(folderStore), engine, nil)

	server := NewServer(Options{
		Engine:    engine,
		Sessions:  manager,
		Users:     users,
		Folders:   folderService,
		RateLimit: middleware.NewRateLimitMiddleware().Handler,
	})
	return server, manager
}

func loginAs(t *testing.T, manager *session.Manager, email string, roles ...rbac.Role) *http.Cookie {
	t.Helper()

	w := httptest.NewRecorder()
	_, err := manager.Issue(context.Background(), w, identity.Identity{
		Email:       email,
		DisplayName: "Test User",
		Roles:       roles,
		LoginAt:     time.Now().UTC(),
	})
	require.NoError(t, err)

	for _, c := range w.Result().Cookies() {
		if c.Name == manager.CookieName() {
			return c
		}
	}
	t.Fatal("session cookie not issued")
	return nil
}

func TestServerRejectsAnonymousAPI(t *testing.T) {
	server, _ := newTestServer(t)

	for _, path := range []string{"/api/v1/me", "/api/v1/folders", "/api/v1/admin/users"} {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestServerMe(t *testing.T) {
	server, manager := newTestServer(t)
	cookie := loginAs(t, manager, "user@example.com", rbac.RoleRegularUser)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "user@example.com")
	assert.Contains(t, body, string(rbac.RoleRegularUser))
	assert.Contains(t, body, string(rbac.PermissionAccessSecrets))
	assert.NotContains(t, body, string(rbac.PermissionManageUsers))
}

func TestServerAdminGuard(t *testing.T) {
	server, manager := newTestServer(t)

	regular := loginAs(t, manager, "user@example.com", rbac.RoleRegularUser)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/users", nil)
	req.AddCookie(regular)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin := loginAs(t, manager, "admin@example.com", rbac.RoleAdministrator)
	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/users", nil)
	req.AddCookie(admin)
	w = httptest.NewRecorder()
	server.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServerRateLimitHeaders(t *testing.T) {
	server, manager := newTestServer(t)
	cookie := loginAs(t, manager, "user@example.com", rbac.RoleRegularUser)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
}

func TestServerSetsRequestID(t *testing.T) {
	server, _ := newTestServer(t)

	w := httptest.NewRecorder()
	server.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
