package secrets

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/lockbox/pkg/audit"
	"github.com/platinummonkey/lockbox/pkg/folders"
	"github.com/platinummonkey/lockbox/pkg/httputil"
	"github.com/platinummonkey/lockbox/pkg/identity"
	"github.com/platinummonkey/lockbox/pkg/rbac"
)

// Handlers exposes the secret HTTP API. Reveals are the only route that
// returns plaintext, and every one of them is audited.
type Handlers struct {
	service *Service
}

// NewHandlers creates handlers over the secret service.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers the secret routes.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/folders/{id}/secrets", h.Create).Methods("POST")
	router.HandleFunc("/folders/{id}/secrets", h.List).Methods("GET")
	router.HandleFunc("/secrets/{id}", h.Get).Methods("GET")
	router.HandleFunc("/secrets/{id}/reveal", h.Reveal).Methods("POST")
	router.HandleFunc("/secrets/{id}", h.Deactivate).Methods("DELETE")
}

type createSecretRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Value       string `json:"value"`
}

// Create handles POST /folders/{id}/secrets
func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity.ActorFromContext(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	folderID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req createSecretRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	secret, err := h.service.Create(r.Context(), CreateParams{
		FolderID:    folderID,
		Name:        req.Name,
		Description: req.Description,
		Plaintext:   req.Value,
	}, actor)
	if err != nil {
		audit.LogFailure(r.Context(), audit.EventTypeSecretCreate, "secret creation failed", err)
		writeSecretError(w, err)
		return
	}

	audit.LogSuccess(r.Context(), audit.EventTypeSecretCreate, "secret created",
		map[string]interface{}{"secret_id": secret.ID, "folder_id": folderID})
	httputil.WriteCreated(w, secret)
}

// List handles GET /folders/{id}/secrets
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity.ActorFromContext(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	folderID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	list, err := h.service.List(r.Context(), folderID, actor)
	if err != nil {
		writeSecretError(w, err)
		return
	}
	if list == nil {
		list = []Secret{}
	}
	httputil.WriteSuccess(w, list)
}

// Get handles GET /secrets/{id}
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

	secret, err := h.service.Get(r.Context(), id, actor)
	if err != nil {
		writeSecretError(w, err)
		return
	}
	httputil.WriteSuccess(w, secret)
}

// Reveal handles POST /secrets/{id}/reveal
func (h *Handlers) Reveal(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity.ActorFromContext(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	revealed, err := h.service.Reveal(r.Context(), id, actor)
	if err != nil {
		audit.LogFailure(r.Context(), audit.EventTypeSecretReveal, "secret reveal failed", err)
		writeSecretError(w, err)
		return
	}

	audit.LogSuccess(r.Context(), audit.EventTypeSecretReveal, "secret revealed",
		map[string]interface{}{"secret_id": id, "folder_id": revealed.FolderID})
	httputil.WriteSuccess(w, revealed)
}

// Deactivate handles DELETE /secrets/{id}
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

	if err := h.service.Deactivate(r.Context(), id, actor); err != nil {
		audit.LogFailure(r.Context(), audit.EventTypeSecretDeactivate, "secret deactivation failed", err)
		writeSecretError(w, err)
		return
	}

	audit.LogSuccess(r.Context(), audit.EventTypeSecretDeactivate, "secret deactivated",
		map[string]interface{}{"secret_id": id})
	httputil.WriteNoContent(w)
}

// writeSecretError maps secret service errors onto HTTP statuses.
// Crypto failures answer 500 without detail: nothing about the key or
// the ciphertext belongs in a response body.
func writeSecretError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSecretNotFound), errors.Is(err, folders.ErrFolderNotFound):
		httputil.WriteNotFoundError(w, "not found")
	case errors.Is(err, folders.ErrForbidden), errors.Is(err, rbac.ErrAccessDenied):
		httputil.WriteForbidden(w, "forbidden")
	case errors.Is(err, ErrNameConflict):
		httputil.WriteConflict(w, err.Error())
	case errors.Is(err, ErrEncrypt), errors.Is(err, ErrDecrypt):
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal error")
	default:
		httputil.WriteInternalError(w, err)
	}
}
