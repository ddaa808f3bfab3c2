package secrets

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// Store persists secrets. The unique (folder_id, name) constraint is the
// authoritative guard against duplicate names under a folder.
type Store struct {
	db *sql.DB
}

// NewStore creates a secret store over db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts the secret. A name collision within the folder surfaces
// as ErrNameConflict.
func (s *Store) Create(ctx context.Context, secret *Secret) error {
	query := `
		INSERT INTO secrets (folder_id, name, description, ciphertext, created_by, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, $6, $6)
		RETURNING id
	`

	now := time.Now().UTC()
	err := s.db.QueryRowContext(ctx, query,
		secret.FolderID,
		secret.Name,
		secret.Description,
		secret.Ciphertext,
		secret.CreatedBy,
		now,
	).Scan(&secret.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrNameConflict
		}
		return fmt.Errorf("failed to create secret: %w", err)
	}

	secret.IsActive = true
	secret.CreatedAt = now
	secret.UpdatedAt = now
	return nil
}

// GetByID retrieves a secret by ID, ciphertext included. Inactive
// secrets are still retrievable by ID so deactivation is idempotent at
// the service layer.
func (s *Store) GetByID(ctx context.Context, id int64) (*Secret, error) {
	query := `
		SELECT id, folder_id, name, description, ciphertext, created_by, is_active, created_at, updated_at
		FROM secrets
		WHERE id = $1
	`

	var secret Secret
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&secret.ID,
		&secret.FolderID,
		&secret.Name,
		&secret.Description,
		&secret.Ciphertext,
		&secret.CreatedBy,
		&secret.IsActive,
		&secret.CreatedAt,
		&secret.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrSecretNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get secret: %w", err)
	}
	return &secret, nil
}

// ListByFolder returns the active secrets in the folder ordered by name.
// Ciphertext is not selected: listings are metadata only.
func (s *Store) ListByFolder(ctx context.Context, folderID int64) ([]Secret, error) {
	query := `
		SELECT id, folder_id, name, description, created_by, is_active, created_at, updated_at
		FROM secrets
		WHERE folder_id = $1 AND is_active = TRUE
		ORDER BY name ASC
	`

	rows, err := s.db.QueryContext(ctx, query, folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list secrets: %w", err)
	}
	defer rows.Close()

	var results []Secret
	for rows.Next() {
		var secret Secret
		err := rows.Scan(
			&secret.ID,
			&secret.FolderID,
			&secret.Name,
			&secret.Description,
			&secret.CreatedBy,
			&secret.IsActive,
			&secret.CreatedAt,
			&secret.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan secret: %w", err)
		}
		results = append(results, secret)
	}
	return results, rows.Err()
}

// Deactivate soft-deletes the secret. Deactivating an already inactive
// secret is a no-op success.
func (s *Store) Deactivate(ctx context.Context, id int64) error {
	query := `UPDATE secrets SET is_active = FALSE, updated_at = $1 WHERE id = $2`
	result, err := s.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate secret: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to deactivate secret: %w", err)
	}
	if affected == 0 {
		return ErrSecretNotFound
	}
	return nil
}

// isUniqueViolation recognizes unique-constraint errors from both the
// postgres driver and the sqlite driver used in tests.
func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
