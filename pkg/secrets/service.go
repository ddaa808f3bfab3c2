package secrets

import (
	"context"
	"fmt"

	"github.com/platinummonkey/lockbox/pkg/folders"
	"github.com/platinummonkey/lockbox/pkg/identity"
	"github.com/platinummonkey/lockbox/pkg/observability"
	"github.com/platinummonkey/lockbox/pkg/rbac"
)

// Service guards secret operations with the global permission check and
// the per-folder access resolver. All folder access levels come from the
// resolver; this package never inspects grants directly.
type Service struct {
	store    *Store
	folders  *folders.Store
	resolver *folders.Resolver
	cipher   *Cipher
	engine   *rbac.Engine
	logger   *observability.Logger
}

// NewService creates a guarded secret service.
func NewService(store *Store, folderStore *folders.Store, resolver *folders.Resolver, cipher *Cipher, engine *rbac.Engine, logger *observability.Logger) *Service {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Service{
		store:    store,
		folders:  folderStore,
		resolver: resolver,
		cipher:   cipher,
		engine:   engine,
		logger:   logger.WithField("component", "secrets"),
	}
}

// Create encrypts the plaintext and persists the secret. The creator
// needs the global access_secrets permission plus WRITE on the folder,
// and the folder must be active. The plaintext is sealed before any
// storage call; an encryption failure means nothing is persisted.
func (s *Service) Create(ctx context.Context, params CreateParams, creator *identity.Identity) (*Secret, error) {
	if err := s.engine.RequirePermission(creator.Roles, rbac.PermissionAccessSecrets); err != nil {
		return nil, err
	}
	if params.Name == "" {
		return nil, fmt.Errorf("secret name is required")
	}

	folder, err := s.folders.GetByID(ctx, params.FolderID)
	if err != nil {
		return nil, err
	}
	if !folder.IsActive {
		return nil, folders.ErrFolderNotFound
	}
	if err := s.resolver.Require(ctx, creator, params.FolderID, folders.LevelWrite); err != nil {
		return nil, err
	}

	ciphertext, err := s.cipher.Encrypt(params.Plaintext)
	if err != nil {
		return nil, err
	}

	secret := &Secret{
		FolderID:    params.FolderID,
		Name:        params.Name,
		Description: params.Description,
		Ciphertext:  ciphertext,
		CreatedBy:   creator.Email,
	}
	if err := s.store.Create(ctx, secret); err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"secret_id": secret.ID,
		"folder_id": secret.FolderID,
		"creator":   creator.Email,
	}).Info("secret created")
	return secret, nil
}

// List returns the active secrets in the folder, metadata only. Requires
// READ on the folder.
func (s *Service) List(ctx context.Context, folderID int64, requester *identity.Identity) ([]Secret, error) {
	if err := s.engine.RequirePermission(requester.Roles, rbac.PermissionAccessSecrets); err != nil {
		return nil, err
	}
	if _, err := s.folders.GetByID(ctx, folderID); err != nil {
		return nil, err
	}
	if err := s.resolver.Require(ctx, requester, folderID, folders.LevelRead); err != nil {
		return nil, err
	}
	return s.store.ListByFolder(ctx, folderID)
}

// Get returns a single secret's metadata. Requires READ on the owning
// folder.
func (s *Service) Get(ctx context.Context, secretID int64, requester *identity.Identity) (*Secret, error) {
	secret, err := s.store.GetByID(ctx, secretID)
	if err != nil {
		return nil, err
	}
	if !secret.IsActive {
		return nil, ErrSecretNotFound
	}
	if err := s.resolver.Require(ctx, requester, secret.FolderID, folders.LevelRead); err != nil {
		return nil, err
	}
	return secret, nil
}

// Reveal decrypts the secret for the requester. Requires READ on the
// owning folder. Callers audit every reveal; the value itself never
// reaches a log line.
func (s *Service) Reveal(ctx context.Context, secretID int64, requester *identity.Identity) (*RevealedSecret, error) {
	secret, err := s.Get(ctx, secretID, requester)
	if err != nil {
		return nil, err
	}

	value, err := s.cipher.Decrypt(secret.Ciphertext)
	if err != nil {
		s.logger.WithFields(map[string]interface{}{
			"secret_id": secretID,
			"requester": requester.Email,
		}).Error("secret decryption failed")
		return nil, err
	}

	return &RevealedSecret{Secret: *secret, Value: value}, nil
}

// Deactivate soft-deletes the secret. Requires WRITE on the owning
// folder.
func (s *Service) Deactivate(ctx context.Context, secretID int64, requester *identity.Identity) error {
	secret, err := s.store.GetByID(ctx, secretID)
	if err != nil {
		return err
	}
	if err := s.resolver.Require(ctx, requester, secret.FolderID, folders.LevelWrite); err != nil {
		return err
	}
	if err := s.store.Deactivate(ctx, secretID); err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"secret_id": secretID,
		"folder_id": secret.FolderID,
		"actor":     requester.Email,
	}).Info("secret deactivated")
	return nil
}
