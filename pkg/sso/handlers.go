package sso

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/lockbox/pkg/audit"
	"github.com/platinummonkey/lockbox/pkg/httputil"
	"github.com/platinummonkey/lockbox/pkg/observability"
	"github.com/platinummonkey/lockbox/pkg/session"
)

const (
	stateCookieName  = "lockbox_sso_state"
	returnCookieName = "lockbox_sso_return"

	// samlSessionIndexAttr stashes the SAML session index on the
	// session identity so logout can drive SLO.
	samlSessionIndexAttr = "saml_session_index"
)

// Handlers exposes the SSO edge: login initiation, assertion
// callbacks, logout, and SP metadata.
type Handlers struct {
	registry    *Registry
	provisioner *Provisioner
	sessions    *session.Manager
	secure      bool
	logger      *observability.Logger
}

// NewHandlers creates the SSO handler group.
func NewHandlers(registry *Registry, provisioner *Provisioner, sessions *session.Manager, secure bool, logger *observability.Logger) *Handlers {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Handlers{
		registry:    registry,
		provisioner: provisioner,
		sessions:    sessions,
		secure:      secure,
		logger:      logger.WithField("component", "sso"),
	}
}

// RegisterRoutes registers the SSO routes. These sit on the public
// router: they are the way in.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/auth/sso/providers", h.listProviders).Methods(http.MethodGet)
	router.HandleFunc("/auth/sso/metadata/{provider}", h.metadata).Methods(http.MethodGet)
	router.HandleFunc("/auth/sso/{provider}/login", h.login).Methods(http.MethodGet)
	router.HandleFunc("/auth/sso/{provider}/callback", h.callback).Methods(http.MethodGet, http.MethodPost)
	router.HandleFunc("/auth/logout", h.logout).Methods(http.MethodGet, http.MethodPost)
}

// listProviders handles GET /auth/sso/providers.
func (h *Handlers) listProviders(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, map[string]interface{}{
		"providers": h.registry.Names(),
	})
}

// login handles GET /auth/sso/{provider}/login.
func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	providerName := mux.Vars(r)["provider"]

	provider, err := h.registry.Get(providerName)
	if err != nil {
		httputil.WriteNotFoundError(w, "unknown provider")
		return
	}

	state, err := generateState()
	if err != nil {
		h.logger.WithError(err).Error("failed to generate state")
		httputil.WriteInternalError(w, errors.New("failed to start login"))
		return
	}

	h.setTempCookie(w, stateCookieName, state)
	if returnURL := r.URL.Query().Get("return_url"); isSafeReturnURL(returnURL) {
		h.setTempCookie(w, returnCookieName, returnURL)
	}

	if err := provider.InitiateLogin(w, r, state); err != nil {
		h.logger.WithError(err).WithField("provider", providerName).Error("failed to initiate login")
		httputil.WriteInternalError(w, errors.New("failed to start login"))
	}
}

// callback handles GET/POST /auth/sso/{provider}/callback.
func (h *Handlers) callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	providerName := mux.Vars(r)["provider"]

	provider, err := h.registry.Get(providerName)
	if err != nil {
		httputil.WriteNotFoundError(w, "unknown provider")
		return
	}

	if err := h.verifyState(r); err != nil {
		audit.LogFailure(ctx, audit.EventTypeAuthLoginFailed, "relay state mismatch", err)
		httputil.WriteValidationError(w, "invalid state parameter")
		return
	}

	principal, err := provider.HandleCallback(w, r)
	if err != nil {
		h.logger.WithError(err).WithField("provider", providerName).Warn("assertion rejected")
		audit.LogFailure(ctx, audit.EventTypeAuthLoginFailed, "assertion rejected", err)
		httputil.WriteUnauthorized(w, "authentication failed")
		return
	}

	ident, err := h.provisioner.Provision(ctx, principal)
	if err != nil {
		if errors.Is(err, ErrUserDeactivated) {
			audit.FromContext(ctx).LogAuthentication(ctx, audit.EventTypeAuthLoginFailed,
				principal.Email, audit.EventStatusDenied, "deactivated user")
			httputil.WriteForbidden(w, "account deactivated")
			return
		}
		h.logger.WithError(err).Error("provisioning failed")
		audit.LogFailure(ctx, audit.EventTypeAuthLoginFailed, "provisioning failed", err)
		httputil.WriteInternalError(w, errors.New("failed to complete login"))
		return
	}

	if principal.SessionIndex != "" {
		if ident.Attributes == nil {
			ident.Attributes = make(map[string]string, 1)
		}
		ident.Attributes[samlSessionIndexAttr] = principal.SessionIndex
	}

	if _, err := h.sessions.Issue(ctx, w, ident); err != nil {
		h.logger.WithError(err).Error("failed to issue session")
		httputil.WriteInternalError(w, errors.New("failed to complete login"))
		return
	}

	audit.FromContext(ctx).LogAuthentication(ctx, audit.EventTypeAuthLogin,
		ident.Email, audit.EventStatusSuccess, "signed in via "+providerName)

	h.clearTempCookie(w, stateCookieName)
	returnURL := "/"
	if cookie, err := r.Cookie(returnCookieName); err == nil && isSafeReturnURL(cookie.Value) {
		returnURL = cookie.Value
	}
	h.clearTempCookie(w, returnCookieName)

	http.Redirect(w, r, returnURL, http.StatusFound)
}

// logout handles GET/POST /auth/logout. The local session dies
// unconditionally; provider-side SLO runs when the session came from a
// SAML provider that configured it.
func (h *Handlers) logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ident, _, err := h.sessions.Resolve(ctx, r)
	if err != nil {
		// Nothing to log out of; still clear the cookie.
		h.sessions.Destroy(ctx, w, r)
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	if err := h.sessions.Destroy(ctx, w, r); err != nil {
		h.logger.WithError(err).Error("failed to destroy session")
		httputil.WriteInternalError(w, errors.New("failed to log out"))
		return
	}

	audit.FromContext(ctx).LogAuthentication(ctx, audit.EventTypeAuthLogout,
		ident.Email, audit.EventStatusSuccess, "signed out")

	if sessionIndex := ident.Attributes[samlSessionIndexAttr]; sessionIndex != "" {
		if providerName := r.URL.Query().Get("provider"); providerName != "" {
			if provider, err := h.registry.Get(providerName); err == nil {
				if err := provider.Logout(w, r, sessionIndex); err == nil {
					return
				}
			}
		}
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

// metadata handles GET /auth/sso/metadata/{provider}.
func (h *Handlers) metadata(w http.ResponseWriter, r *http.Request) {
	providerName := mux.Vars(r)["provider"]

	provider, err := h.registry.Get(providerName)
	if err != nil {
		httputil.WriteNotFoundError(w, "unknown provider")
		return
	}

	samlProvider, ok := provider.(*SAMLProvider)
	if !ok {
		httputil.WriteValidationError(w, "provider is not SAML")
		return
	}

	xml, err := samlProvider.Metadata()
	if err != nil {
		httputil.WriteInternalError(w, errors.New("failed to build metadata"))
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.Write(xml)
}

// verifyState compares the callback's relay state with the value set
// at login time. SAML posts it as RelayState, OAuth2/OIDC as the state
// query parameter.
func (h *Handlers) verifyState(r *http.Request) error {
	cookie, err := r.Cookie(stateCookieName)
	if err != nil || cookie.Value == "" {
		return ErrStateMismatch
	}

	state := r.URL.Query().Get("state")
	if r.Method == http.MethodPost {
		state = r.FormValue("RelayState")
	}
	if state != cookie.Value {
		return ErrStateMismatch
	}
	return nil
}

func (h *Handlers) setTempCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   600,
	})
}

func (h *Handlers) clearTempCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// isSafeReturnURL accepts only same-origin absolute paths, keeping the
// post-login redirect from becoming an open redirect.
func isSafeReturnURL(u string) bool {
	return strings.HasPrefix(u, "/") && !strings.HasPrefix(u, "//")
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
