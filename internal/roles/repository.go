package roles

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quartermaster-erp/quartermaster/internal/platform/db"
)

// RepositoryPort defines persistence operations for roles and assignments.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
	RoleByID(ctx context.Context, id int64) (*Role, error)
	RoleByName(ctx context.Context, name string) (*Role, error)
	CreateRole(ctx context.Context, name, displayName, description string) (*Role, error)
	UpdateRole(ctx context.Context, id int64, displayName, description string) (*Role, error)
	DeleteRole(ctx context.Context, id int64) error
	EnsureRole(ctx context.Context, name, displayName string) (*Role, error)

	CurrentAssignment(ctx context.Context, principalID int64) (*Assignment, error)
	InsertAssignment(ctx context.Context, principalID, roleID, assignedBy int64) error
	ReplaceAssignment(ctx context.Context, principalID, roleID, assignedBy int64, expiresAt *time.Time) error
	RemoveAssignment(ctx context.Context, principalID, roleID int64) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewRepository constructs a repository. Every query runs under the given
// timeout.
func NewRepository(pool *pgxpool.Pool, timeout time.Duration) *Repository {
	return &Repository{pool: pool, timeout: timeout}
}

const roleColumns = `id, name, display_name, description, is_system, created_at, updated_at`

// ListRoles returns all roles ordered by name.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, db.MapError(err)
	}
	defer rows.Close()
	var result []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *role)
	}
	if err := rows.Err(); err != nil {
		return nil, db.MapError(err)
	}
	return result, nil
}

// RoleByID fetches a role by ID.
func (r *Repository) RoleByID(ctx context.Context, id int64) (*Role, error) {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()
	return scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
}

// RoleByName fetches a role by its unique name.
func (r *Repository) RoleByName(ctx context.Context, name string) (*Role, error) {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()
	return scanRole(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1`, name))
}

// CreateRole inserts a new role.
func (r *Repository) CreateRole(ctx context.Context, name, displayName, description string) (*Role, error) {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()
	row := r.pool.QueryRow(ctx,
		`INSERT INTO roles (name, display_name, description, is_system, created_at, updated_at)
		 VALUES ($1, $2, $3, FALSE, NOW(), NOW())
		 RETURNING `+roleColumns,
		strings.TrimSpace(name), strings.TrimSpace(displayName), strings.TrimSpace(description))
	return scanRole(row)
}

// UpdateRole updates display name and description of an existing role. The
// unique name is immutable once issued.
func (r *Repository) UpdateRole(ctx context.Context, id int64, displayName, description string) (*Role, error) {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()
	row := r.pool.QueryRow(ctx,
		`UPDATE roles SET display_name = $2, description = $3, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+roleColumns,
		id, strings.TrimSpace(displayName), strings.TrimSpace(description))
	return scanRole(row)
}

// DeleteRole removes a role unless it is system protected. Assignments
// referencing the role go with it (FK cascade).
func (r *Repository) DeleteRole(ctx context.Context, id int64) error {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()
	role, err := r.RoleByID(ctx, id)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return ErrSystemRole
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1 AND is_system = FALSE`, id)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSystemRole
	}
	return nil
}

// EnsureRole upserts a role by name, used when the migration path needs a
// built-in role that has not been seeded yet.
func (r *Repository) EnsureRole(ctx context.Context, name, displayName string) (*Role, error) {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()
	row := r.pool.QueryRow(ctx,
		`INSERT INTO roles (name, display_name, description, is_system, created_at, updated_at)
		 VALUES ($1, $2, '', $1 = 'admin', NOW(), NOW())
		 ON CONFLICT (name) DO UPDATE SET updated_at = roles.updated_at
		 RETURNING `+roleColumns,
		strings.TrimSpace(name), strings.TrimSpace(displayName))
	return scanRole(row)
}

// CurrentAssignment returns the unexpired assignment for a principal.
func (r *Repository) CurrentAssignment(ctx context.Context, principalID int64) (*Assignment, error) {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()
	row := r.pool.QueryRow(ctx,
		`SELECT ra.principal_id, ra.role_id, ro.name, ra.assigned_by, ra.assigned_at, ra.expires_at
		 FROM role_assignments ra
		 JOIN roles ro ON ro.id = ra.role_id
		 WHERE ra.principal_id = $1 AND (ra.expires_at IS NULL OR ra.expires_at > NOW())`,
		principalID)
	var a Assignment
	if err := row.Scan(&a.PrincipalID, &a.RoleID, &a.RoleName, &a.AssignedBy, &a.AssignedAt, &a.ExpiresAt); err != nil {
		return nil, db.MapError(err)
	}
	return &a, nil
}

// InsertAssignment writes a new assignment without touching existing rows.
// The unique constraint on principal_id turns the concurrent first-access
// migration race into ErrAssignmentExists.
func (r *Repository) InsertAssignment(ctx context.Context, principalID, roleID, assignedBy int64) error {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO role_assignments (principal_id, role_id, assigned_by, assigned_at)
		 VALUES ($1, $2, $3, NOW())`,
		principalID, roleID, assignedBy)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrAssignmentExists
		}
		return db.MapError(err)
	}
	return nil
}

// ReplaceAssignment swaps the principal's assignment atomically: any prior
// row is deleted, then the new one inserted. Replacement, not appending.
func (r *Repository) ReplaceAssignment(ctx context.Context, principalID, roleID, assignedBy int64, expiresAt *time.Time) error {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_assignments WHERE principal_id = $1`, principalID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO role_assignments (principal_id, role_id, assigned_by, assigned_at, expires_at)
			 VALUES ($1, $2, $3, NOW(), $4)`,
			principalID, roleID, assignedBy, expiresAt)
		return err
	})
	if err != nil {
		return db.MapError(err)
	}
	return nil
}

// ListUnassignedPrincipals returns active principals that still lack a role
// assignment, oldest first. The backfill job walks this set in batches.
func (r *Repository) ListUnassignedPrincipals(ctx context.Context, limit int) ([]int64, error) {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()
	rows, err := r.pool.Query(ctx,
		`SELECT p.id
		 FROM principals p
		 LEFT JOIN role_assignments ra ON ra.principal_id = p.id
		 WHERE ra.principal_id IS NULL AND p.is_active
		 ORDER BY p.id
		 LIMIT $1`, limit)
	if err != nil {
		return nil, db.MapError(err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, db.MapError(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, db.MapError(err)
	}
	return ids, nil
}

// RemoveAssignment deletes the assignment linking principal and role.
func (r *Repository) RemoveAssignment(ctx context.Context, principalID, roleID int64) error {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM role_assignments WHERE principal_id = $1 AND role_id = $2`,
		principalID, roleID)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return db.MapError(pgx.ErrNoRows)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRole(row rowScanner) (*Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Name, &role.DisplayName, &role.Description, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return nil, db.MapError(err)
	}
	return &role, nil
}

var _ RepositoryPort = (*Repository)(nil)
