package sso

import (
	"context"
	"errors"
	"fmt"

	"github.com/platinummonkey/lockbox/pkg/identity"
	"github.com/platinummonkey/lockbox/pkg/observability"
	"github.com/platinummonkey/lockbox/pkg/rbac"
)

// Provisioner turns an asserted principal into a local user. First
// sign-in creates the user row with the default role; later sign-ins
// refresh display fields and stamp last_login. Roles are never taken
// from the IdP — role management is local.
type Provisioner struct {
	users       *identity.Store
	defaultRole rbac.Role
	logger      *observability.Logger
}

// NewProvisioner creates a provisioner over the user store.
func NewProvisioner(users *identity.Store, defaultRole rbac.Role, logger *observability.Logger) *Provisioner {
	if defaultRole == "" {
		defaultRole = rbac.DefaultRole
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Provisioner{
		users:       users,
		defaultRole: defaultRole,
		logger:      logger.WithField("component", "provisioner"),
	}
}

// Provision upserts the principal's user row and returns the session
// identity. A deactivated account fails with ErrUserDeactivated no
// matter what the IdP asserts.
func (p *Provisioner) Provision(ctx context.Context, principal *Principal) (identity.Identity, error) {
	if principal.Email == "" {
		return identity.Identity{}, ErrMissingEmail
	}

	existing, err := p.users.GetByEmail(ctx, principal.Email)
	isNew := false
	switch {
	case errors.Is(err, identity.ErrUserNotFound):
		isNew = true
	case err != nil:
		return identity.Identity{}, fmt.Errorf("failed to look up user: %w", err)
	case !existing.IsActive:
		return identity.Identity{}, ErrUserDeactivated
	}

	user := &identity.User{
		Email:       principal.Email,
		DisplayName: principal.DisplayName,
		FirstName:   principal.FirstName,
		LastName:    principal.LastName,
	}
	if user.DisplayName == "" {
		user.DisplayName = principal.Email
	}
	if err := p.users.Upsert(ctx, user); err != nil {
		return identity.Identity{}, fmt.Errorf("failed to provision user: %w", err)
	}

	if isNew {
		grantedBy := "sso:" + principal.Provider
		if err := p.users.AssignRole(ctx, user.Email, p.defaultRole, grantedBy); err != nil {
			return identity.Identity{}, fmt.Errorf("failed to assign default role: %w", err)
		}
		p.logger.WithFields(map[string]interface{}{
			"email":    user.Email,
			"provider": principal.Provider,
			"role":     p.defaultRole.String(),
		}).Info("provisioned new user")
	}

	if err := p.users.TouchLogin(ctx, user.Email); err != nil {
		return identity.Identity{}, fmt.Errorf("failed to record login: %w", err)
	}

	// Re-read for the authoritative role set.
	provisioned, err := p.users.GetByEmail(ctx, user.Email)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("failed to load provisioned user: %w", err)
	}

	ident := provisioned.Identity()
	if len(principal.Attributes) > 0 {
		ident.Attributes = make(map[string]string, len(principal.Attributes))
		for name, value := range principal.Attributes {
			if value.Present() {
				ident.Attributes[name] = value.First()
			}
		}
	}
	return ident, nil
}
