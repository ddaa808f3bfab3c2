// Package secrets stores and serves encrypted secret values scoped to
// folders. Plaintext exists only in memory between a reveal request and
// its response: the store persists AES-256-GCM ciphertext, listings
// return metadata only, and no error path carries secret material.
package secrets
