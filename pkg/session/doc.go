// Package session manages server-side login sessions backed by Redis.
// The browser holds only an opaque session ID in an HttpOnly cookie;
// the identity payload lives in Redis under a TTL, and the manager
// refreshes roles from the user store on every lookup so a role change
// takes effect without re-login.
package session
