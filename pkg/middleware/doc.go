// Package middleware provides HTTP middleware for session
// authentication, permission guards, and rate limiting.
//
// # Middleware Components
//
// SessionAuth: cookie-based session authentication
//
//	auth := middleware.NewSessionAuth(sessionManager, logger)
//	router.Use(auth.Handler)
//	// Resolves the session cookie, refreshes roles, and places the
//	// identity and session ID on the request context.
//
// Guard: role-level permission checks at the routing layer
//
//	guard := middleware.NewGuard(rbacEngine)
//	adminRouter.Use(guard.RequirePermission(rbac.PermissionViewAdminPanel))
//
// RateLimitMiddleware: in-memory rate limiting, keyed by principal
// email for authenticated requests and client IP otherwise.
//
// DistributedRateLimitMiddleware: Redis-backed variant for
// multi-instance deployments.
//
// # Related Packages
//
//   - pkg/session: session resolution
//   - pkg/rbac: permission checking
//   - pkg/audit: denial events
package middleware
