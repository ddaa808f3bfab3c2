package identity

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/platinummonkey/lockbox/pkg/rbac"
)

// Store persists users and their role assignments.
type Store struct {
	db *sql.DB
}

// NewStore creates a user store over db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Upsert inserts the user or refreshes their display fields if the email
// already exists. The user's ID is populated on return.
func (s *Store) Upsert(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (email, display_name, first_name, last_name, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, $5, $5)
		ON CONFLICT (email) DO UPDATE
		SET display_name = EXCLUDED.display_name,
		    first_name = EXCLUDED.first_name,
		    last_name = EXCLUDED.last_name,
		    updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`

	now := time.Now().UTC()
	err := s.db.QueryRowContext(ctx, query,
		user.Email,
		user.DisplayName,
		user.FirstName,
		user.LastName,
		now,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	user.IsActive = true
	user.UpdatedAt = now
	return nil
}

// GetByEmail retrieves a user and their roles.
func (s *Store) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, email, display_name, first_name, last_name, is_active, last_login_at, created_at, updated_at
		FROM users
		WHERE email = $1
	`

	var user User
	var lastLogin sql.NullTime

	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&user.FirstName,
		&user.LastName,
		&user.IsActive,
		&lastLogin,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLoginAt = &t
	}

	roles, err := s.rolesForUser(ctx, s.db, user.ID)
	if err != nil {
		return nil, err
	}
	user.Roles = roles

	return &user, nil
}

// List returns all users ordered by email, roles included.
func (s *Store) List(ctx context.Context) ([]User, error) {
	query := `
		SELECT id, email, display_name, first_name, last_name, is_active, last_login_at, created_at, updated_at
		FROM users
		ORDER BY email ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var user User
		var lastLogin sql.NullTime

		err := rows.Scan(
			&user.ID,
			&user.Email,
			&user.DisplayName,
			&user.FirstName,
			&user.LastName,
			&user.IsActive,
			&lastLogin,
			&user.CreatedAt,
			&user.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}

		if lastLogin.Valid {
			t := lastLogin.Time
			user.LastLoginAt = &t
		}

		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range users {
		roles, err := s.rolesForUser(ctx, s.db, users[i].ID)
		if err != nil {
			return nil, err
		}
		users[i].Roles = roles
	}

	return users, nil
}

// AssignRole adds role to the user identified by email. Assigning an
// already-held role is a no-op success; the unique (user_id, role)
// constraint makes concurrent assigns converge on a single row.
func (s *Store) AssignRole(ctx context.Context, email string, role rbac.Role, grantedBy string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	userID, err := s.userIDForEmail(ctx, tx, email)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO user_roles (user_id, role, granted_by, granted_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, role) DO NOTHING
	`
	if _, err := tx.ExecContext(ctx, query, userID, string(role), grantedBy, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit role assignment: %w", err)
	}
	return nil
}

// RemoveRole removes role from the user identified by email. The
// last-administrator guard is evaluated inside the same transaction as the
// delete, so two concurrent removals cannot both pass the check. Removing
// a role the user does not hold is a no-op success. A removal that would
// leave the user with no roles re-assigns the default role.
func (s *Store) RemoveRole(ctx context.Context, email string, role rbac.Role) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	userID, err := s.userIDForEmail(ctx, tx, email)
	if err != nil {
		return err
	}

	if role == rbac.RoleAdministrator {
		var admins int64
		countQuery := `SELECT COUNT(DISTINCT user_id) FROM user_roles WHERE role = $1`
		if err := tx.QueryRowContext(ctx, countQuery, string(rbac.RoleAdministrator)).Scan(&admins); err != nil {
			return fmt.Errorf("failed to count administrators: %w", err)
		}

		var holds int64
		holdsQuery := `SELECT COUNT(*) FROM user_roles WHERE user_id = $1 AND role = $2`
		if err := tx.QueryRowContext(ctx, holdsQuery, userID, string(rbac.RoleAdministrator)).Scan(&holds); err != nil {
			return fmt.Errorf("failed to check administrator role: %w", err)
		}

		if holds > 0 && admins <= 1 {
			return ErrLastAdmin
		}
	}

	deleteQuery := `DELETE FROM user_roles WHERE user_id = $1 AND role = $2`
	if _, err := tx.ExecContext(ctx, deleteQuery, userID, string(role)); err != nil {
		return fmt.Errorf("failed to remove role: %w", err)
	}

	// A user must always hold at least one role.
	var remaining int64
	remainingQuery := `SELECT COUNT(*) FROM user_roles WHERE user_id = $1`
	if err := tx.QueryRowContext(ctx, remainingQuery, userID).Scan(&remaining); err != nil {
		return fmt.Errorf("failed to count remaining roles: %w", err)
	}
	if remaining == 0 {
		fallbackQuery := `
			INSERT INTO user_roles (user_id, role, granted_by, granted_at)
			VALUES ($1, $2, 'system', $3)
			ON CONFLICT (user_id, role) DO NOTHING
		`
		if _, err := tx.ExecContext(ctx, fallbackQuery, userID, string(rbac.DefaultRole), time.Now().UTC()); err != nil {
			return fmt.Errorf("failed to re-assign default role: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit role removal: %w", err)
	}
	return nil
}

// CountAdministrators returns the number of distinct users holding the
// administrator role.
func (s *Store) CountAdministrators(ctx context.Context) (int64, error) {
	var count int64
	query := `SELECT COUNT(DISTINCT user_id) FROM user_roles WHERE role = $1`
	if err := s.db.QueryRowContext(ctx, query, string(rbac.RoleAdministrator)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count administrators: %w", err)
	}
	return count, nil
}

// RoleStats returns per-role user counts in ladder order. Roles with no
// holders report zero.
func (s *Store) RoleStats(ctx context.Context) ([]RoleStat, error) {
	query := `SELECT role, COUNT(DISTINCT user_id) FROM user_roles GROUP BY role`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get role stats: %w", err)
	}
	defer rows.Close()

	counts := make(map[rbac.Role]int64)
	for rows.Next() {
		var role string
		var count int64
		if err := rows.Scan(&role, &count); err != nil {
			return nil, fmt.Errorf("failed to scan role stat: %w", err)
		}
		counts[rbac.Role(role)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	stats := make([]RoleStat, 0, len(rbac.AllRoles()))
	for _, role := range rbac.AllRoles() {
		stats = append(stats, RoleStat{Role: role, Users: counts[role]})
	}
	return stats, nil
}

// TouchLogin records a successful login for the user.
func (s *Store) TouchLogin(ctx context.Context, email string) error {
	query := `UPDATE users SET last_login_at = $1, updated_at = $1 WHERE email = $2`
	res, err := s.db.ExecContext(ctx, query, time.Now().UTC(), email)
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetActive flips the user's active flag. A deactivated user cannot
// sign in, and their live sessions are evicted on the next request.
func (s *Store) SetActive(ctx context.Context, email string, active bool) error {
	query := `UPDATE users SET is_active = $1, updated_at = $2 WHERE email = $3`
	res, err := s.db.ExecContext(ctx, query, active, time.Now().UTC(), email)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrUserNotFound
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (s *Store) userIDForEmail(ctx context.Context, q queryer, email string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `SELECT id FROM users WHERE email = $1`, email).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up user: %w", err)
	}
	return id, nil
}

func (s *Store) rolesForUser(ctx context.Context, q queryer, userID int64) ([]rbac.Role, error) {
	query := `SELECT role FROM user_roles WHERE user_id = $1 ORDER BY role ASC`

	rows, err := q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user roles: %w", err)
	}
	defer rows.Close()

	var roles []rbac.Role
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, rbac.Role(role))
	}
	return roles, rows.Err()
}
