// Package api assembles the Lockbox HTTP surface.
//
// # Overview
//
// The server mounts two route groups on one gorilla/mux router:
//
//   - /auth: the SSO edge (login, callback, logout, metadata). This is
//     the only unauthenticated surface.
//   - /api/v1: the session-protected API. Folder, secret, and profile
//     routes require a valid session; the /api/v1/admin and
//     /api/v1/audit groups additionally require the view_admin_panel
//     permission.
//
// # Middleware
//
// Every request passes through request-ID assignment, request logging,
// panic recovery, Prometheus instrumentation, and audit logging. The authenticated
// group adds session resolution and then rate limiting, in that order,
// so limits key on the principal rather than the client IP.
//
// # Usage
//
//	server := api.NewServer(api.Options{
//		Logger:   logger,
//		Metrics:  metrics,
//		Engine:   engine,
//		Sessions: sessions,
//		Users:    users,
//		Folders:  folderService,
//		Secrets:  secretService,
//		AuditLog: auditLogger,
//		SSO:      ssoHandlers,
//	})
//	http.ListenAndServe(addr, server)
//
// # Related Packages
//
//   - pkg/identity, pkg/folders, pkg/secrets, pkg/audit: route handlers
//   - pkg/middleware: session, guard, and rate limit middleware
//   - pkg/sso: the login edge
package api
