package folders

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// Store persists folders and grants. The unique index on folders.path and
// the unique (folder_id, principal_email) constraint on grants are the
// authoritative guards against concurrent duplicates; the store maps the
// resulting driver errors onto the package's typed errors.
type Store struct {
	db *sql.DB
}

// NewStore creates a folder store over db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts the folder. A path collision surfaces as ErrPathConflict
// regardless of whether the application pre-checked.
func (s *Store) Create(ctx context.Context, folder *Folder) error {
	query := `
		INSERT INTO folders (path, name, icon, description, parent_id, created_by, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7, $7)
		RETURNING id
	`

	now := time.Now().UTC()
	err := s.db.QueryRowContext(ctx, query,
		folder.Path,
		folder.Name,
		folder.Icon,
		folder.Description,
		folder.ParentID,
		folder.CreatedBy,
		now,
	).Scan(&folder.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrPathConflict
		}
		return fmt.Errorf("failed to create folder: %w", err)
	}

	folder.IsActive = true
	folder.CreatedAt = now
	folder.UpdatedAt = now
	return nil
}

// GetByID retrieves a folder by ID.
func (s *Store) GetByID(ctx context.Context, id int64) (*Folder, error) {
	return s.getFolder(ctx, `WHERE id = $1`, id)
}

// GetByPath retrieves a folder by its unique path.
func (s *Store) GetByPath(ctx context.Context, path string) (*Folder, error) {
	return s.getFolder(ctx, `WHERE path = $1`, path)
}

func (s *Store) getFolder(ctx context.Context, where string, arg interface{}) (*Folder, error) {
	query := `
		SELECT id, path, name, icon, description, parent_id, created_by, is_active, created_at, updated_at
		FROM folders ` + where

	var folder Folder
	var parentID sql.NullInt64

	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&folder.ID,
		&folder.Path,
		&folder.Name,
		&folder.Icon,
		&folder.Description,
		&parentID,
		&folder.CreatedBy,
		&folder.IsActive,
		&folder.CreatedAt,
		&folder.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrFolderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get folder: %w", err)
	}

	if parentID.Valid {
		id := parentID.Int64
		folder.ParentID = &id
	}

	return &folder, nil
}

// Children returns the active children of a folder ordered by name, so
// listings are deterministic.
func (s *Store) Children(ctx context.Context, id int64) ([]Folder, error) {
	query := `
		SELECT id, path, name, icon, description, parent_id, created_by, is_active, created_at, updated_at
		FROM folders
		WHERE parent_id = $1 AND is_active = TRUE
		ORDER BY name ASC
	`
	return s.queryFolders(ctx, query, id)
}

// AncestorChain returns the folders from the root down to and including
// the given folder, following parent references.
func (s *Store) AncestorChain(ctx context.Context, id int64) ([]Folder, error) {
	const maxDepth = 256

	var chain []Folder
	current := &id
	for current != nil {
		if len(chain) >= maxDepth {
			// The parent-must-exist-first rule makes cycles unreachable,
			// but a corrupted row must not hang the request.
			return nil, fmt.Errorf("parent chain does not terminate at folder %d", id)
		}
		folder, err := s.GetByID(ctx, *current)
		if err != nil {
			return nil, err
		}
		chain = append(chain, *folder)
		current = folder.ParentID
	}

	// Reverse to root-first order.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// CountActiveChildren returns the number of active direct children.
func (s *Store) CountActiveChildren(ctx context.Context, id int64) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM folders WHERE parent_id = $1 AND is_active = TRUE`
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count children: %w", err)
	}
	return count, nil
}

// Deactivate soft-deletes a folder. Without cascade it refuses when the
// folder has active children (ErrActiveChildren) and changes nothing.
// With cascade the whole subtree and every secret in it is deactivated in
// one transaction: either all of it happens or none of it does.
func (s *Store) Deactivate(ctx context.Context, id int64, cascade bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var isActive bool
	err = tx.QueryRowContext(ctx, `SELECT is_active FROM folders WHERE id = $1`, id).Scan(&isActive)
	if err == sql.ErrNoRows {
		return ErrFolderNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get folder: %w", err)
	}

	now := time.Now().UTC()

	if !cascade {
		var children int64
		childQuery := `SELECT COUNT(*) FROM folders WHERE parent_id = $1 AND is_active = TRUE`
		if err := tx.QueryRowContext(ctx, childQuery, id).Scan(&children); err != nil {
			return fmt.Errorf("failed to count children: %w", err)
		}
		if children > 0 {
			return ErrActiveChildren
		}
	}

	// Collect the subtree inside the transaction so a concurrent create
	// under this folder either lands before the walk or after commit.
	ids := []int64{id}
	for frontier := []int64{id}; len(frontier) > 0; {
		var next []int64
		for _, parent := range frontier {
			rows, err := tx.QueryContext(ctx, `SELECT id FROM folders WHERE parent_id = $1`, parent)
			if err != nil {
				return fmt.Errorf("failed to walk subtree: %w", err)
			}
			for rows.Next() {
				var child int64
				if err := rows.Scan(&child); err != nil {
					rows.Close()
					return fmt.Errorf("failed to scan subtree: %w", err)
				}
				next = append(next, child)
			}
			if err := rows.Close(); err != nil {
				return fmt.Errorf("failed to walk subtree: %w", err)
			}
		}
		ids = append(ids, next...)
		frontier = next
	}

	for _, folderID := range ids {
		if _, err := tx.ExecContext(ctx,
			`UPDATE folders SET is_active = FALSE, updated_at = $1 WHERE id = $2`, now, folderID); err != nil {
			return fmt.Errorf("failed to deactivate folder %d: %w", folderID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE secrets SET is_active = FALSE, updated_at = $1 WHERE folder_id = $2`, now, folderID); err != nil {
			return fmt.Errorf("failed to deactivate secrets in folder %d: %w", folderID, err)
		}
	}

	return tx.Commit()
}

// ListAccessible returns the active folders the principal owns or holds
// an explicit grant on, deduplicated, ordered by path.
func (s *Store) ListAccessible(ctx context.Context, email string) ([]Folder, error) {
	query := `
		SELECT DISTINCT f.id, f.path, f.name, f.icon, f.description, f.parent_id, f.created_by, f.is_active, f.created_at, f.updated_at
		FROM folders f
		LEFT JOIN folder_grants g ON g.folder_id = f.id AND g.principal_email = $1
		WHERE f.is_active = TRUE AND (f.created_by = $1 OR g.id IS NOT NULL)
		ORDER BY f.path ASC
	`
	return s.queryFolders(ctx, query, email)
}

// ListActive returns every active folder ordered by path. Used for the
// administrator listing.
func (s *Store) ListActive(ctx context.Context) ([]Folder, error) {
	query := `
		SELECT id, path, name, icon, description, parent_id, created_by, is_active, created_at, updated_at
		FROM folders
		WHERE is_active = TRUE
		ORDER BY path ASC
	`
	return s.queryFolders(ctx, query)
}

func (s *Store) queryFolders(ctx context.Context, query string, args ...interface{}) ([]Folder, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	defer rows.Close()

	var folders []Folder
	for rows.Next() {
		var folder Folder
		var parentID sql.NullInt64

		err := rows.Scan(
			&folder.ID,
			&folder.Path,
			&folder.Name,
			&folder.Icon,
			&folder.Description,
			&parentID,
			&folder.CreatedBy,
			&folder.IsActive,
			&folder.CreatedAt,
			&folder.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan folder: %w", err)
		}

		if parentID.Valid {
			id := parentID.Int64
			folder.ParentID = &id
		}

		folders = append(folders, folder)
	}
	return folders, rows.Err()
}

// UpsertGrant inserts or replaces the grant for (folder, principal). A
// second grant for the same pair replaces the level rather than
// duplicating the row.
func (s *Store) UpsertGrant(ctx context.Context, grant *Grant) error {
	query := `
		INSERT INTO folder_grants (folder_id, principal_email, level, granted_by, granted_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (folder_id, principal_email) DO UPDATE
		SET level = EXCLUDED.level,
		    granted_by = EXCLUDED.granted_by,
		    updated_at = EXCLUDED.updated_at
		RETURNING id, granted_at
	`

	now := time.Now().UTC()
	err := s.db.QueryRowContext(ctx, query,
		grant.FolderID,
		grant.PrincipalEmail,
		grant.Level.String(),
		grant.GrantedBy,
		now,
	).Scan(&grant.ID, &grant.GrantedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert grant: %w", err)
	}

	grant.UpdatedAt = now
	return nil
}

// GetGrant returns the grant for (folder, principal), or nil when none
// exists.
func (s *Store) GetGrant(ctx context.Context, folderID int64, email string) (*Grant, error) {
	query := `
		SELECT id, folder_id, principal_email, level, granted_by, granted_at, updated_at
		FROM folder_grants
		WHERE folder_id = $1 AND principal_email = $2
	`

	grant, err := scanGrant(s.db.QueryRowContext(ctx, query, folderID, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get grant: %w", err)
	}
	return grant, nil
}

// DeleteGrant removes the grant for (folder, principal). Deleting an
// absent grant is a no-op success.
func (s *Store) DeleteGrant(ctx context.Context, folderID int64, email string) error {
	query := `DELETE FROM folder_grants WHERE folder_id = $1 AND principal_email = $2`
	if _, err := s.db.ExecContext(ctx, query, folderID, email); err != nil {
		return fmt.Errorf("failed to delete grant: %w", err)
	}
	return nil
}

// ListGrants returns every grant on the folder ordered by principal.
func (s *Store) ListGrants(ctx context.Context, folderID int64) ([]Grant, error) {
	query := `
		SELECT id, folder_id, principal_email, level, granted_by, granted_at, updated_at
		FROM folder_grants
		WHERE folder_id = $1
		ORDER BY principal_email ASC
	`

	rows, err := s.db.QueryContext(ctx, query, folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	defer rows.Close()

	var grants []Grant
	for rows.Next() {
		grant, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		grants = append(grants, *grant)
	}
	return grants, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanGrant(row rowScanner) (*Grant, error) {
	var grant Grant
	var level string

	err := row.Scan(
		&grant.ID,
		&grant.FolderID,
		&grant.PrincipalEmail,
		&level,
		&grant.GrantedBy,
		&grant.GrantedAt,
		&grant.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsed, err := ParseAccessLevel(level)
	if err != nil {
		return nil, fmt.Errorf("grant %d has invalid level: %w", grant.ID, err)
	}
	grant.Level = parsed

	return &grant, nil
}

// isUniqueViolation recognizes unique-constraint errors from both the
// postgres driver and the sqlite driver used in tests.
func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
