package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/platinummonkey/lockbox/pkg/identity"
	"github.com/platinummonkey/lockbox/pkg/observability"
)

// DefaultCookieName is the session cookie name.
const DefaultCookieName = "lockbox_session"

// RoleSource supplies current roles for a principal. The user store
// satisfies it; the manager merges fresh roles into the session
// identity on every lookup.
type RoleSource interface {
	GetByEmail(ctx context.Context, email string) (*identity.User, error)
}

// Manager issues and resolves session cookies.
type Manager struct {
	store      Store
	roles      RoleSource
	cookieName string
	secure     bool
	logger     *observability.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithCookieName overrides the session cookie name.
func WithCookieName(name string) ManagerOption {
	return func(m *Manager) { m.cookieName = name }
}

// WithSecureCookies controls the cookie Secure attribute. Disable only
// for plain-HTTP development.
func WithSecureCookies(secure bool) ManagerOption {
	return func(m *Manager) { m.secure = secure }
}

// WithRoleSource attaches a role source for per-request role refresh.
func WithRoleSource(roles RoleSource) ManagerOption {
	return func(m *Manager) { m.roles = roles }
}

// NewManager creates a session manager over the store.
func NewManager(store Store, logger *observability.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	m := &Manager{
		store:      store,
		cookieName: DefaultCookieName,
		secure:     true,
		logger:     logger.WithField("component", "session"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Issue creates a session for the identity and sets the cookie.
func (m *Manager) Issue(ctx context.Context, w http.ResponseWriter, ident identity.Identity) (string, error) {
	ident.LoginAt = time.Now().UTC()
	sessionID, err := m.store.Create(ctx, ident)
	if err != nil {
		return "", err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})

	m.logger.WithField("email", ident.Email).Info("session issued")
	return sessionID, nil
}

// Resolve returns the identity behind the request's session cookie and
// the session ID. Roles come from the role source when one is
// configured, so a promotion or demotion lands on the very next
// request; a deactivated user resolves to ErrSessionNotFound and the
// stale session is deleted.
func (m *Manager) Resolve(ctx context.Context, r *http.Request) (identity.Identity, string, error) {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil {
		return identity.Identity{}, "", ErrSessionNotFound
	}
	sessionID := cookie.Value
	if sessionID == "" {
		return identity.Identity{}, "", ErrSessionNotFound
	}

	ident, err := m.store.Get(ctx, sessionID)
	if err != nil {
		return identity.Identity{}, "", err
	}

	if m.roles != nil {
		user, err := m.roles.GetByEmail(ctx, ident.Email)
		if err != nil {
			if errors.Is(err, identity.ErrUserNotFound) {
				m.store.Delete(ctx, sessionID)
				return identity.Identity{}, "", ErrSessionNotFound
			}
			return identity.Identity{}, "", fmt.Errorf("failed to refresh roles: %w", err)
		}
		if !user.IsActive {
			m.store.Delete(ctx, sessionID)
			return identity.Identity{}, "", ErrSessionNotFound
		}
		ident.Roles = user.Identity().Roles
	}

	// Sliding expiration: active sessions stay alive.
	if err := m.store.Touch(ctx, sessionID); err != nil && !errors.Is(err, ErrSessionNotFound) {
		m.logger.WithError(err).Warn("failed to extend session")
	}

	return ident, sessionID, nil
}

// Destroy removes the request's session and clears the cookie.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	cookie, err := r.Cookie(m.cookieName)
	if err == nil && cookie.Value != "" {
		if err := m.store.Delete(ctx, cookie.Value); err != nil {
			return err
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
	return nil
}

// CookieName returns the configured cookie name.
func (m *Manager) CookieName() string { return m.cookieName }
