package identity

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/lockbox/pkg/audit"
	"github.com/platinummonkey/lockbox/pkg/contextkeys"
	"github.com/platinummonkey/lockbox/pkg/httputil"
	"github.com/platinummonkey/lockbox/pkg/rbac"
)

// Handlers exposes the user administration HTTP API. All routes expect
// the session middleware to have placed the acting identity in the
// request context; the service enforces the per-operation permissions.
type Handlers struct {
	service *Service
}

// NewHandlers creates handlers over the identity service.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers the user-management routes. The router is
// typically a subrouter mounted at the admin path prefix.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/users", h.ListUsers).Methods("GET")
	router.HandleFunc("/users/{email}", h.GetUser).Methods("GET")
	router.HandleFunc("/users/{email}/roles", h.AssignRole).Methods("POST")
	router.HandleFunc("/users/{email}/roles/{role}", h.RemoveRole).Methods("DELETE")
	router.HandleFunc("/roles/stats", h.RoleStats).Methods("GET")
}

// ListUsers handles GET /admin/users
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	users, err := h.service.ListUsers(r.Context(), actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if users == nil {
		users = []User{}
	}

	audit.LogSuccess(r.Context(), audit.EventTypeAdminUserView, "user list viewed", nil)
	httputil.WriteSuccess(w, users)
}

// GetUser handles GET /admin/users/{email}
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	email, ok := httputil.ParsePathStringOrError(w, r, "email")
	if !ok {
		return
	}

	user, err := h.service.GetUser(r.Context(), email, actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	audit.LogSuccess(r.Context(), audit.EventTypeAdminUserView, "user details viewed",
		map[string]interface{}{"target": email})
	httputil.WriteSuccess(w, user)
}

type roleRequest struct {
	Role string `json:"role"`
}

// AssignRole handles POST /admin/users/{email}/roles
func (h *Handlers) AssignRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	email, ok := httputil.ParsePathStringOrError(w, r, "email")
	if !ok {
		return
	}

	var req roleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	role := rbac.Role(req.Role)
	if !role.Valid() {
		httputil.WriteValidationError(w, "unknown role")
		return
	}

	if err := h.service.AssignRole(r.Context(), email, role, actor); err != nil {
		audit.LogFailure(r.Context(), audit.EventTypeRoleAssign, "role assignment failed", err)
		writeServiceError(w, err)
		return
	}

	audit.LogSuccess(r.Context(), audit.EventTypeRoleAssign, "role assigned",
		map[string]interface{}{"target": email, "role": req.Role})
	httputil.WriteSuccessMessage(w, "role assigned", nil)
}

// RemoveRole handles DELETE /admin/users/{email}/roles/{role}
func (h *Handlers) RemoveRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	email, ok := httputil.ParsePathStringOrError(w, r, "email")
	if !ok {
		return
	}
	roleName, ok := httputil.ParsePathStringOrError(w, r, "role")
	if !ok {
		return
	}
	role := rbac.Role(roleName)
	if !role.Valid() {
		httputil.WriteValidationError(w, "unknown role")
		return
	}

	if err := h.service.RemoveRole(r.Context(), email, role, actor); err != nil {
		audit.LogFailure(r.Context(), audit.EventTypeRoleRemove, "role removal failed", err)
		writeServiceError(w, err)
		return
	}

	audit.LogSuccess(r.Context(), audit.EventTypeRoleRemove, "role removed",
		map[string]interface{}{"target": email, "role": roleName})
	httputil.WriteSuccessMessage(w, "role removed", nil)
}

// RoleStats handles GET /admin/roles/stats
func (h *Handlers) RoleStats(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	stats, err := h.service.RoleStats(r.Context(), actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	httputil.WriteSuccess(w, stats)
}

// ActorFromContext extracts the authenticated identity placed in the
// request context by the session middleware.
func ActorFromContext(r *http.Request) (*Identity, bool) {
	ident, ok := r.Context().Value(contextkeys.IdentityKey).(*Identity)
	if !ok || ident == nil {
		return nil, false
	}
	return ident, true
}

// writeServiceError maps identity service errors onto HTTP statuses. The
// denial message stays minimal; the machine-readable detail lives in the
// error types, not the response body.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rbac.ErrAccessDenied):
		httputil.WriteForbidden(w, "forbidden")
	case errors.Is(err, ErrUserNotFound):
		httputil.WriteNotFoundError(w, "user not found")
	case errors.Is(err, ErrLastAdmin), errors.Is(err, ErrSelfDemotion), errors.Is(err, ErrSelfPromotion):
		httputil.WriteConflict(w, err.Error())
	default:
		httputil.WriteInternalError(w, err)
	}
}
