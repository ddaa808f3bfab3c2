package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/platinummonkey/lockbox/pkg/contextkeys"
	"github.com/platinummonkey/lockbox/pkg/identity"
	"github.com/platinummonkey/lockbox/pkg/rbac"
)

func requestAs(roles ...rbac.Role) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	ident := &identity.Identity{Email: "u@x.com", Roles: roles}
	return r.WithContext(contextkeys.WithIdentity(r.Context(), ident))
}

func TestGuardRequirePermission(t *testing.T) {
	guard := NewGuard(rbac.NewEngine(nil))
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := guard.RequirePermission(rbac.PermissionViewAdminPanel)(okHandler)

	tests := []struct {
		name  string
		roles []rbac.Role
		want  int
	}{
		{"administrator allowed", []rbac.Role{rbac.RoleAdministrator}, http.StatusOK},
		{"regular user denied", []rbac.Role{rbac.RoleRegularUser}, http.StatusForbidden},
		{"guest denied", []rbac.Role{rbac.RoleGuest}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, requestAs(tt.roles...))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestGuardRequirePermissionNoIdentity(t *testing.T) {
	guard := NewGuard(rbac.NewEngine(nil))
	handler := guard.RequirePermission(rbac.PermissionAccessSecrets)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/users", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGuardRequireRole(t *testing.T) {
	guard := NewGuard(rbac.NewEngine(nil))
	handler := guard.RequireRole(rbac.RoleAdministrator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs(rbac.RoleAdministrator))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, requestAs(rbac.RoleRegularUser))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGuardRequireAnyPermission(t *testing.T) {
	guard := NewGuard(rbac.NewEngine(nil))
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := guard.RequireAnyPermission(rbac.PermissionManageUsers, rbac.PermissionViewUserList)(okHandler)

	tests := []struct {
		name  string
		roles []rbac.Role
		want  int
	}{
		{"administrator holds both", []rbac.Role{rbac.RoleAdministrator}, http.StatusOK},
		{"regular user holds neither", []rbac.Role{rbac.RoleRegularUser}, http.StatusForbidden},
		{"guest denied", []rbac.Role{rbac.RoleGuest}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, requestAs(tt.roles...))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
