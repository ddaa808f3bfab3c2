package folders

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/lockbox/pkg/audit"
	"github.com/platinummonkey/lockbox/pkg/httputil"
	"github.com/platinummonkey/lockbox/pkg/identity"
	"github.com/platinummonkey/lockbox/pkg/rbac"
)

// Handlers exposes the folder HTTP API. The session middleware puts the
// acting identity in the request context; the service makes every
// access decision, the handlers only translate.
type Handlers struct {
	service *Service
}

// NewHandlers creates handlers over the folder service.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers the folder and grant routes.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/folders", h.Create).Methods("POST")
	router.HandleFunc("/folders", h.List).Methods("GET")
	router.HandleFunc("/folders/{id}", h.Get).Methods("GET")
	router.HandleFunc("/folders/{id}", h.Deactivate).Methods("DELETE")
	router.HandleFunc("/folders/{id}/children", h.Children).Methods("GET")
	router.HandleFunc("/folders/{id}/ancestors", h.Ancestors).Methods("GET")
	router.HandleFunc("/folders/{id}/grants", h.Grants).Methods("GET")
	router.HandleFunc("/folders/{id}/grants", h.GrantAccess).Methods("POST")
	router.HandleFunc("/folders/{id}/grants/{email}", h.RevokeAccess).Methods("DELETE")
}

type createFolderRequest struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Icon        string `json:"icon,omitempty"`
	Description string `json:"description,omitempty"`
	ParentID    *int64 `json:"parent_id,omitempty"`
}

// Create handles POST /folders
func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity.ActorFromContext(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var req createFolderRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	folder, err := h.service.Create(r.Context(), CreateParams{
		Name:        req.Name,
		Path:        req.Path,
		Icon:        req.Icon,
		Description: req.Description,
		ParentID:    req.ParentID,
	}, actor)
	if err != nil {
		audit.LogFailure(r.Context(), audit.EventTypeFolderCreate, "folder creation failed", err)
		writeFolderError(w, err)
		return
	}

	audit.LogSuccess(r.Context(), audit.EventTypeFolderCreate, "folder created",
		map[string]interface{}{"folder_id": folder.ID, "path": folder.Path})
	httputil.WriteCreated(w, folder)
}

// List handles GET /folders
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity.ActorFromContext(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	visible, err := h.service.List(r.Context(), actor)
	if err != nil {
		writeFolderError(w, err)
		return
	}
	if visible == nil {
		visible = []Folder{}
	}
	httputil.WriteSuccess(w, visible)
}

// Get handles GET /folders/{id}
func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity.ActorFromContext(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	folder, err := h.service.Get(r.Context(), id, actor)
	if err != nil {
		writeFolderError(w, err)
		return
	}
	httputil.WriteSuccess(w, folder)
}

// Children handles GET /folders/{id}/children
func (h *Handlers) Children(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity.ActorFromContext(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	children, err := h.service.Children(r.Context(), id, actor)
	if err != nil {
		writeFolderError(w, err)
		return
	}
	if children == nil {
		children = []Folder{}
	}
	httputil.WriteSuccess(w, children)
}

// Ancestors handles GET /folders/{id}/ancestors
func (h *Handlers) Ancestors(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity.ActorFromContext(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	chain, err := h.service.Ancestors(r.Context(), id, actor)
	if err != nil {
		writeFolderError(w, err)
		return
	}
	httputil.WriteSuccess(w, chain)
}

// Deactivate handles DELETE /folders/{id}?cascade=true
func (h *Handlers) Deactivate(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity.ActorFromContext(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	cascade, err := httputil.ParseQueryBool(r, "cascade", false)
	if err != nil {
		httputil.WriteValidationError(w, "invalid cascade parameter")
		return
	}

	if err := h.service.Deactivate(r.Context(), id, cascade, actor); err != nil {
		audit.LogFailure(r.Context(), audit.EventTypeFolderDeactivate, "folder deactivation failed", err)
		writeFolderError(w, err)
		return
	}

	audit.LogSuccess(r.Context(), audit.EventTypeFolderDeactivate, "folder deactivated",
		map[string]interface{}{"folder_id": id, "cascade": cascade})
	httputil.WriteNoContent(w)
}

type grantRequest struct {
	PrincipalEmail string      `json:"principal_email"`
	Level          AccessLevel `json:"level"`
}

// GrantAccess handles POST /folders/{id}/grants
func (h *Handlers) GrantAccess(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity.ActorFromContext(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req grantRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	grant, err := h.service.GrantAccess(r.Context(), id, req.PrincipalEmail, req.Level, actor)
	if err != nil {
		audit.LogFailure(r.Context(), audit.EventTypeGrantUpsert, "grant failed", err)
		writeFolderError(w, err)
		return
	}

	audit.LogSuccess(r.Context(), audit.EventTypeGrantUpsert, "grant upserted",
		map[string]interface{}{"folder_id": id, "principal": req.PrincipalEmail, "level": req.Level.String()})
	httputil.WriteSuccess(w, grant)
}

// RevokeAccess handles DELETE /folders/{id}/grants/{email}
func (h *Handlers) RevokeAccess(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity.ActorFromContext(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	email, ok := httputil.ParsePathStringOrError(w, r, "email")
	if !ok {
		return
	}

	if err := h.service.RevokeAccess(r.Context(), id, email, actor); err != nil {
		audit.LogFailure(r.Context(), audit.EventTypeGrantRevoke, "revocation failed", err)
		writeFolderError(w, err)
		return
	}

	audit.LogSuccess(r.Context(), audit.EventTypeGrantRevoke, "grant revoked",
		map[string]interface{}{"folder_id": id, "principal": email})
	httputil.WriteNoContent(w)
}

// Grants handles GET /folders/{id}/grants
func (h *Handlers) Grants(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity.ActorFromContext(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	grants, err := h.service.Grants(r.Context(), id, actor)
	if err != nil {
		writeFolderError(w, err)
		return
	}
	if grants == nil {
		grants = []Grant{}
	}
	httputil.WriteSuccess(w, grants)
}

// writeFolderError maps folder service errors onto HTTP statuses.
// Missing folders stay 404 and denials stay 403 so clients can tell
// absence from refusal.
func writeFolderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrFolderNotFound):
		httputil.WriteNotFoundError(w, "folder not found")
	case errors.Is(err, ErrForbidden), errors.Is(err, rbac.ErrAccessDenied):
		httputil.WriteForbidden(w, "forbidden")
	case errors.Is(err, ErrInvalidPath):
		httputil.WriteValidationError(w, err.Error())
	case errors.Is(err, ErrPathConflict), errors.Is(err, ErrActiveChildren):
		httputil.WriteConflict(w, err.Error())
	default:
		httputil.WriteInternalError(w, err)
	}
}
