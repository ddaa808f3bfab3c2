package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/lockbox/pkg/audit"
	"github.com/platinummonkey/lockbox/pkg/folders"
	"github.com/platinummonkey/lockbox/pkg/httputil"
	"github.com/platinummonkey/lockbox/pkg/identity"
	"github.com/platinummonkey/lockbox/pkg/middleware"
	"github.com/platinummonkey/lockbox/pkg/observability"
	"github.com/platinummonkey/lockbox/pkg/rbac"
	"github.com/platinummonkey/lockbox/pkg/secrets"
	"github.com/platinummonkey/lockbox/pkg/session"
	"github.com/platinummonkey/lockbox/pkg/sso"
)

// Server is the Lockbox HTTP API. The SSO edge at /auth is the only
// unauthenticated surface; everything under /api/v1 requires a session.
type Server struct {
	router *mux.Router
	logger *observability.Logger
	users  *identity.Service
}

// Options carries the wired dependencies for the API server. Sessions,
// Engine, and the domain services are required; the rest degrade
// gracefully when nil.
type Options struct {
	Logger   *observability.Logger
	Metrics  *observability.Metrics
	Engine   *rbac.Engine
	Sessions *session.Manager

	Users   *identity.Service
	Folders *folders.Service
	Secrets *secrets.Service

	// AuditLog receives request and domain events; nil disables the
	// audit middleware. AuditStore backs the audit query API; nil
	// disables those routes.
	AuditLog   audit.Logger
	AuditStore audit.Store

	// SSO serves the login edge; nil disables it (useful in tests).
	SSO *sso.Handlers

	// RateLimit wraps the authenticated API; nil disables limiting.
	RateLimit func(http.Handler) http.Handler
}

// NewServer creates the API server and registers all routes.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	s := &Server{
		router: mux.NewRouter(),
		logger: opts.Logger,
		users:  opts.Users,
	}

	s.setupRoutes(opts)
	return s
}

// setupRoutes configures the middleware chain and all API routes.
func (s *Server) setupRoutes(opts Options) {
	// Ambient chain for every route, the SSO edge included.
	s.router.Use(httputil.RequestIDMiddleware)
	s.router.Use(httputil.LoggingMiddleware)
	s.router.Use(httputil.RecoveryMiddleware)
	s.router.Use(otelhttp.NewMiddleware("lockbox"))
	if opts.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(opts.Metrics))
	}
	if opts.AuditLog != nil {
		s.router.Use(audit.NewMiddleware(opts.AuditLog, false).Handler)
	}

	if opts.SSO != nil {
		opts.SSO.RegisterRoutes(s.router)
	}

	// Authenticated API. Session resolution runs before rate limiting
	// so authenticated requests are keyed by principal, not IP.
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.NewSessionAuth(opts.Sessions, opts.Logger).Handler)
	if opts.RateLimit != nil {
		api.Use(opts.RateLimit)
	}

	api.HandleFunc("/me", s.me).Methods("GET")

	if opts.Folders != nil {
		folders.NewHandlers(opts.Folders).RegisterRoutes(api)
	}
	if opts.Secrets != nil {
		secrets.NewHandlers(opts.Secrets).RegisterRoutes(api)
	}

	guard := middleware.NewGuard(opts.Engine)

	// Admin surface. The services re-check per-operation permissions;
	// the route guard keeps non-admins from probing the surface at all.
	if opts.Users != nil {
		admin := api.PathPrefix("/admin").Subrouter()
		admin.Use(guard.RequirePermission(rbac.PermissionViewAdminPanel))
		identity.NewHandlers(opts.Users).RegisterRoutes(admin)
	}

	if opts.AuditStore != nil {
		auditAPI := api.PathPrefix("/audit").Subrouter()
		auditAPI.Use(guard.RequirePermission(rbac.PermissionViewAdminPanel))
		audit.NewHandlers(opts.AuditStore).RegisterRoutes(auditAPI)
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router exposes the underlying router for additional registrations.
func (s *Server) Router() *mux.Router {
	return s.router
}

type meResponse struct {
	Email       string            `json:"email"`
	DisplayName string            `json:"display_name"`
	Roles       []rbac.Role       `json:"roles"`
	Permissions []rbac.Permission `json:"permissions"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// me handles GET /api/v1/me. It reflects the session identity plus the
// permissions its roles resolve to, which the UI uses to shape itself.
func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity.ActorFromContext(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	resp := meResponse{
		Email:       ident.Email,
		DisplayName: ident.DisplayName,
		Roles:       ident.Roles,
		Attributes:  ident.Attributes,
	}
	if s.users != nil {
		resp.Permissions = s.users.EffectivePermissions(ident)
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}
