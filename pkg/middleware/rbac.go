package middleware

import (
	"net/http"

	"github.com/platinummonkey/lockbox/pkg/audit"
	"github.com/platinummonkey/lockbox/pkg/httputil"
	"github.com/platinummonkey/lockbox/pkg/identity"
	"github.com/platinummonkey/lockbox/pkg/rbac"
)

// Guard enforces role-level permissions at the routing layer. Handlers
// still perform their own checks; the guard keeps whole route groups
// (the admin panel, the audit API) off-limits before a handler runs.
type Guard struct {
	engine *rbac.Engine
}

// NewGuard creates a permission guard over the engine.
func NewGuard(engine *rbac.Engine) *Guard {
	return &Guard{engine: engine}
}

// RequirePermission rejects with 403 unless the request identity holds
// the permission. Denials land in the audit trail.
func (g *Guard) RequirePermission(perm rbac.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident, ok := identity.ActorFromContext(r)
			if !ok {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}
			if err := g.engine.RequirePermission(ident.Roles, perm); err != nil {
				audit.LogDenied(r.Context(), audit.EventTypeAccessDenied, audit.ResourceTypeUser, ident.Email,
					"missing permission "+perm.String())
				httputil.WriteForbidden(w, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyPermission rejects with 403 unless the request identity
// holds at least one of the permissions.
func (g *Guard) RequireAnyPermission(perms ...rbac.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident, ok := identity.ActorFromContext(r)
			if !ok {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}
			if err := g.engine.RequireAnyPermission(ident.Roles, perms...); err != nil {
				audit.LogDenied(r.Context(), audit.EventTypeAccessDenied, audit.ResourceTypeUser, ident.Email,
					"missing permissions")
				httputil.WriteForbidden(w, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole rejects with 403 unless the request identity holds the
// role.
func (g *Guard) RequireRole(role rbac.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident, ok := identity.ActorFromContext(r)
			if !ok {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}
			if err := g.engine.RequireRole(ident.Roles, role); err != nil {
				audit.LogDenied(r.Context(), audit.EventTypeAccessDenied, audit.ResourceTypeUser, ident.Email,
					"missing role "+role.String())
				httputil.WriteForbidden(w, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
