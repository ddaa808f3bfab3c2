package sso

import "errors"

var (
	// ErrProviderNotFound indicates no provider is registered under the
	// requested name.
	ErrProviderNotFound = errors.New("sso provider not found")

	// ErrProviderDisabled indicates the provider exists but is switched
	// off in configuration.
	ErrProviderDisabled = errors.New("sso provider disabled")

	// ErrMissingEmail indicates the identity provider's payload carried
	// no usable email address. Email is the principal key everywhere in
	// this system, so sign-in cannot proceed without one.
	ErrMissingEmail = errors.New("assertion missing email")

	// ErrUserDeactivated indicates the assertion was valid but the local
	// account is deactivated.
	ErrUserDeactivated = errors.New("user is deactivated")

	// ErrStateMismatch indicates the callback's relay state did not
	// match the value issued at login time.
	ErrStateMismatch = errors.New("state parameter mismatch")
)
