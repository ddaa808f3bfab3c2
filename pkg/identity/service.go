package identity

import (
	"context"
	"fmt"

	"github.com/platinummonkey/lockbox/pkg/observability"
	"github.com/platinummonkey/lockbox/pkg/rbac"
)

// Service wraps the user store with the role-mutation guards. All
// mutations require the acting identity to hold manage_roles; the guards
// around administrator removal protect against total lockout.
type Service struct {
	store  *Store
	engine *rbac.Engine
	logger *observability.Logger
}

// NewService creates a guarded identity service.
func NewService(store *Store, engine *rbac.Engine, logger *observability.Logger) *Service {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Service{
		store:  store,
		engine: engine,
		logger: logger.WithField("component", "identity"),
	}
}

// AssignRole adds role to the target user. The actor must hold
// manage_roles. Assigning a role the target already holds is a no-op
// success. Actors cannot grant themselves the administrator role.
func (s *Service) AssignRole(ctx context.Context, targetEmail string, role rbac.Role, actor *Identity) error {
	if err := s.engine.RequirePermission(actor.Roles, rbac.PermissionManageRoles); err != nil {
		return err
	}
	if !role.Valid() {
		return fmt.Errorf("invalid role %q", role)
	}
	if role == rbac.RoleAdministrator && actor.Email == targetEmail {
		return ErrSelfPromotion
	}

	if err := s.store.AssignRole(ctx, targetEmail, role, actor.Email); err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"target": targetEmail,
		"role":   role.String(),
		"actor":  actor.Email,
	}).Info("role assigned")
	return nil
}

// RemoveRole removes role from the target user. The actor must hold
// manage_roles. Guard order matters: removing the administrator role from
// the sole remaining administrator fails with ErrLastAdmin even when the
// actor targets themselves; a self-removal that would leave other
// administrators in place fails with ErrSelfDemotion. The target's role
// set is unchanged on any failure.
func (s *Service) RemoveRole(ctx context.Context, targetEmail string, role rbac.Role, actor *Identity) error {
	if err := s.engine.RequirePermission(actor.Roles, rbac.PermissionManageRoles); err != nil {
		return err
	}
	if !role.Valid() {
		return fmt.Errorf("invalid role %q", role)
	}

	if role == rbac.RoleAdministrator && actor.Email == targetEmail {
		admins, err := s.store.CountAdministrators(ctx)
		if err != nil {
			return err
		}
		if admins <= 1 {
			return ErrLastAdmin
		}
		return ErrSelfDemotion
	}

	if err := s.store.RemoveRole(ctx, targetEmail, role); err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"target": targetEmail,
		"role":   role.String(),
		"actor":  actor.Email,
	}).Info("role removed")
	return nil
}

// EffectivePermissions returns the union of the permissions granted by
// the identity's roles.
func (s *Service) EffectivePermissions(ident *Identity) []rbac.Permission {
	return s.engine.EffectivePermissions(ident.Roles)
}

// HasPermission reports whether the identity holds p through any role.
func (s *Service) HasPermission(ident *Identity, p rbac.Permission) bool {
	return s.engine.HasPermission(ident.Roles, p)
}

// GetUser returns a user by email. The actor must hold manage_users.
func (s *Service) GetUser(ctx context.Context, email string, actor *Identity) (*User, error) {
	if err := s.engine.RequirePermission(actor.Roles, rbac.PermissionManageUsers); err != nil {
		return nil, err
	}
	return s.store.GetByEmail(ctx, email)
}

// ListUsers returns all users. The actor must hold view_user_list.
func (s *Service) ListUsers(ctx context.Context, actor *Identity) ([]User, error) {
	if err := s.engine.RequirePermission(actor.Roles, rbac.PermissionViewUserList); err != nil {
		return nil, err
	}
	return s.store.List(ctx)
}

// RoleStats returns per-role user counts. The actor must hold
// view_admin_panel.
func (s *Service) RoleStats(ctx context.Context, actor *Identity) ([]RoleStat, error) {
	if err := s.engine.RequirePermission(actor.Roles, rbac.PermissionViewAdminPanel); err != nil {
		return nil, err
	}
	return s.store.RoleStats(ctx)
}

// EnsureAdministrators bootstraps the configured administrator accounts.
// Each email is upserted and granted the administrator role; already
// provisioned administrators are left untouched. Run at startup so a
// fresh deployment is never locked out.
func (s *Service) EnsureAdministrators(ctx context.Context, emails []string) error {
	for _, email := range emails {
		if email == "" {
			continue
		}
		user := &User{Email: email}
		if err := s.store.Upsert(ctx, user); err != nil {
			return fmt.Errorf("bootstrap administrator %s: %w", email, err)
		}
		if err := s.store.AssignRole(ctx, email, rbac.RoleAdministrator, "system"); err != nil {
			return fmt.Errorf("bootstrap administrator %s: %w", email, err)
		}
		s.logger.WithField("email", email).Info("administrator ensured")
	}
	return nil
}

// Store exposes the underlying user store for collaborators that need
// unguarded reads, such as the session layer's per-request role refresh.
func (s *Service) Store() *Store { return s.store }
