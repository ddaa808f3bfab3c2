// Package audit records security-relevant events for compliance and
// forensics: logins and logouts, role changes, folder and grant
// mutations, and every secret reveal.
//
// Events carry the acting principal's email, session and request IDs,
// and request context. Loggers write to PostgreSQL, NDJSON files, or
// both via MultiLogger; the DBStore adds search, statistics, export,
// and retention cleanup with optional S3 archiving.
//
// Handlers log through the context:
//
//	audit.LogSuccess(ctx, audit.EventTypeSecretReveal, "secret revealed",
//		map[string]interface{}{"secret_id": id})
//
// The middleware places the configured logger in each request context
// and records an http.request event for mutations, errors, and
// sensitive paths.
package audit
