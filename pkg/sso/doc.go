// Package sso is the identity provider edge: it turns an external
// SAML assertion (or OIDC/OAuth2 token) into a provisioned local user
// and a server-side session.
//
// Providers implement the Provider interface and live in a Registry
// keyed by name. Attribute payloads from identity providers are ragged
// in practice: a mapped attribute may be missing, single-valued, or
// multi-valued, and values may be blank. NormalizeAttributes folds raw
// payloads into AttributeValue so mapping code never indexes into an
// empty slice.
//
// The Provisioner upserts the user row on first sign-in, assigns the
// default role, and stamps last_login. The Watcher rebuilds the SAML
// provider when the IdP certificate files change on disk, so a
// certificate rotation does not require a restart.
package sso
