// Package config loads application configuration from LOCKBOX_*
// environment variables.
//
// # Sections
//
//   - Server: listen address, external base URL, timeouts, health port
//   - Database: PostgreSQL primary + optional read replicas
//   - Redis: sessions and distributed rate limits
//   - Session: TTL and cookie attributes
//   - SSO: SAML or OIDC provider settings
//   - Secrets: hex-encoded AES-256 encryption key
//   - RBAC: optional policy overlay file
//   - Audit: sink selection, retention, S3 archiving
//   - RateLimit, Observability
//
// LoadConfig applies defaults, reads the environment, and validates
// the result; an invalid configuration fails startup rather than
// surfacing later as a runtime error.
package config
