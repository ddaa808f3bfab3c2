package folders

import (
	"context"
	"fmt"
	"strings"

	"github.com/platinummonkey/lockbox/pkg/identity"
	"github.com/platinummonkey/lockbox/pkg/observability"
	"github.com/platinummonkey/lockbox/pkg/rbac"
)

// Service wraps the folder store with validation and access checks.
// Global RBAC checks run before any resource-level resolution: the
// cheaper registry lookup short-circuits the storage round-trip.
type Service struct {
	store    *Store
	resolver *Resolver
	engine   *rbac.Engine
	logger   *observability.Logger
}

// NewService creates a guarded folder service.
func NewService(store *Store, resolver *Resolver, engine *rbac.Engine, logger *observability.Logger) *Service {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Service{
		store:    store,
		resolver: resolver,
		engine:   engine,
		logger:   logger.WithField("component", "folders"),
	}
}

// Resolver returns the access resolver backing this service.
func (s *Service) Resolver() *Resolver { return s.resolver }

// Create validates and creates a folder. The creator needs the global
// manage_secrets permission; on success they hold LevelAdmin through the
// owner rule with no grant row. When a parent is given it must exist and
// be active, and the new path must be a strict descendant of the parent's
// path. The storage unique index decides path conflicts.
func (s *Service) Create(ctx context.Context, params CreateParams, creator *identity.Identity) (*Folder, error) {
	if err := s.engine.RequirePermission(creator.Roles, rbac.PermissionManageSecrets); err != nil {
		return nil, err
	}

	if params.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidPath)
	}
	if err := validatePath(params.Path); err != nil {
		return nil, err
	}

	if params.ParentID != nil {
		parent, err := s.store.GetByID(ctx, *params.ParentID)
		if err != nil {
			return nil, err
		}
		if !parent.IsActive {
			return nil, fmt.Errorf("%w: parent folder is inactive", ErrInvalidPath)
		}
		if !isStrictDescendant(params.Path, parent.Path) {
			return nil, fmt.Errorf("%w: %q is not a descendant of %q", ErrInvalidPath, params.Path, parent.Path)
		}
	}

	folder := &Folder{
		Path:        params.Path,
		Name:        params.Name,
		Icon:        params.Icon,
		Description: params.Description,
		ParentID:    params.ParentID,
		CreatedBy:   creator.Email,
	}
	if err := s.store.Create(ctx, folder); err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"path":    folder.Path,
		"creator": creator.Email,
	}).Info("folder created")
	return folder, nil
}

// Get returns a folder the identity can at least read.
func (s *Service) Get(ctx context.Context, id int64, ident *identity.Identity) (*Folder, error) {
	folder, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.resolver.Require(ctx, ident, id, LevelRead); err != nil {
		return nil, err
	}
	return folder, nil
}

// Children lists a folder's active children in name order. Requires
// LevelRead on the parent.
func (s *Service) Children(ctx context.Context, id int64, ident *identity.Identity) ([]Folder, error) {
	if _, err := s.store.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if err := s.resolver.Require(ctx, ident, id, LevelRead); err != nil {
		return nil, err
	}
	return s.store.Children(ctx, id)
}

// Ancestors returns the chain from the root to the folder. Requires
// LevelRead on the folder.
func (s *Service) Ancestors(ctx context.Context, id int64, ident *identity.Identity) ([]Folder, error) {
	if _, err := s.store.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if err := s.resolver.Require(ctx, ident, id, LevelRead); err != nil {
		return nil, err
	}
	return s.store.AncestorChain(ctx, id)
}

// List returns the folders visible to the identity: administrators see
// every active folder, everyone else sees what they own or hold a grant
// on.
func (s *Service) List(ctx context.Context, ident *identity.Identity) ([]Folder, error) {
	if err := s.engine.RequirePermission(ident.Roles, rbac.PermissionAccessSecrets); err != nil {
		return nil, err
	}
	if ident.IsAdministrator() {
		return s.store.ListActive(ctx)
	}
	return s.store.ListAccessible(ctx, ident.Email)
}

// Deactivate soft-deletes a folder, requiring LevelAdmin. Without
// cascade it refuses when active children exist; with cascade the whole
// subtree and its secrets go down in one transaction.
func (s *Service) Deactivate(ctx context.Context, id int64, cascade bool, ident *identity.Identity) error {
	if _, err := s.store.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.resolver.Require(ctx, ident, id, LevelAdmin); err != nil {
		return err
	}
	if err := s.store.Deactivate(ctx, id, cascade); err != nil {
		return err
	}

	s.resolver.InvalidateAll()
	s.logger.WithFields(map[string]interface{}{
		"folder_id": id,
		"cascade":   cascade,
		"actor":     ident.Email,
	}).Info("folder deactivated")
	return nil
}

// GrantAccess upserts a grant for the principal. The grantor must hold
// LevelAdmin on the folder. Re-granting an existing pair replaces the
// level.
func (s *Service) GrantAccess(ctx context.Context, folderID int64, email string, level AccessLevel, grantor *identity.Identity) (*Grant, error) {
	if email == "" {
		return nil, fmt.Errorf("principal email is required")
	}
	if !level.Satisfies(LevelRead) || level > LevelAdmin {
		return nil, fmt.Errorf("level %q is not grantable", level)
	}
	if _, err := s.store.GetByID(ctx, folderID); err != nil {
		return nil, err
	}
	if err := s.resolver.Require(ctx, grantor, folderID, LevelAdmin); err != nil {
		return nil, err
	}

	grant := &Grant{
		FolderID:       folderID,
		PrincipalEmail: email,
		Level:          level,
		GrantedBy:      grantor.Email,
	}
	if err := s.store.UpsertGrant(ctx, grant); err != nil {
		return nil, err
	}

	s.resolver.Invalidate(folderID)
	s.logger.WithFields(map[string]interface{}{
		"folder_id": folderID,
		"principal": email,
		"level":     level.String(),
		"grantor":   grantor.Email,
	}).Info("grant upserted")
	return grant, nil
}

// RevokeAccess removes the principal's grant. The revoker must hold
// LevelAdmin on the folder. Revoking an absent grant is a no-op success;
// the revocation is visible to the next Resolve call.
func (s *Service) RevokeAccess(ctx context.Context, folderID int64, email string, revoker *identity.Identity) error {
	if _, err := s.store.GetByID(ctx, folderID); err != nil {
		return err
	}
	if err := s.resolver.Require(ctx, revoker, folderID, LevelAdmin); err != nil {
		return err
	}
	if err := s.store.DeleteGrant(ctx, folderID, email); err != nil {
		return err
	}

	s.resolver.Invalidate(folderID)
	s.logger.WithFields(map[string]interface{}{
		"folder_id": folderID,
		"principal": email,
		"revoker":   revoker.Email,
	}).Info("grant revoked")
	return nil
}

// Grants lists the folder's grants. Admin-only view.
func (s *Service) Grants(ctx context.Context, folderID int64, ident *identity.Identity) ([]Grant, error) {
	if _, err := s.store.GetByID(ctx, folderID); err != nil {
		return nil, err
	}
	if err := s.resolver.Require(ctx, ident, folderID, LevelAdmin); err != nil {
		return nil, err
	}
	return s.store.ListGrants(ctx, folderID)
}

// validatePath enforces the path shape: absolute, "/"-delimited, no
// empty segments, no trailing slash.
func validatePath(path string) error {
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("%w: path must be absolute", ErrInvalidPath)
	}
	if path == "/" {
		return fmt.Errorf("%w: path %q is reserved", ErrInvalidPath, path)
	}
	if strings.HasSuffix(path, "/") {
		return fmt.Errorf("%w: path must not end with a slash", ErrInvalidPath)
	}
	for _, segment := range strings.Split(path[1:], "/") {
		if segment == "" {
			return fmt.Errorf("%w: path contains an empty segment", ErrInvalidPath)
		}
	}
	return nil
}

// isStrictDescendant reports whether child sits below parent in the
// tree, at any depth.
func isStrictDescendant(child, parent string) bool {
	return child != parent && strings.HasPrefix(child, parent+"/")
}
