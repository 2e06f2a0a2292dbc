package principal

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quartermaster-erp/quartermaster/internal/platform/db"
)

// RepositoryPort defines data access methods for principals.
type RepositoryPort interface {
	FindByID(ctx context.Context, id int64) (*Principal, error)
	FindByEmail(ctx context.Context, email string) (*Principal, error)
	Exists(ctx context.Context, id int64) (bool, error)
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

const principalColumns = `id, username, email, password_hash, legacy_acl_int, is_active, created_at, updated_at`

// FindByID fetches a principal by ID.
func (r *Repository) FindByID(ctx context.Context, id int64) (*Principal, error) {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()
	row := r.pool.QueryRow(ctx, `SELECT `+principalColumns+` FROM principals WHERE id = $1`, id)
	return scanPrincipal(row)
}

// FindByEmail fetches a principal by email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*Principal, error) {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()
	row := r.pool.QueryRow(ctx, `SELECT `+principalColumns+` FROM principals WHERE email = $1`, email)
	return scanPrincipal(row)
}

// Exists reports whether the principal is still present in the store.
func (r *Repository) Exists(ctx context.Context, id int64) (bool, error) {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()
	var found bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM principals WHERE id = $1)`, id).Scan(&found)
	if err != nil {
		return false, db.MapError(err)
	}
	return found, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrincipal(row rowScanner) (*Principal, error) {
	var p Principal
	err := row.Scan(&p.ID, &p.Username, &p.Email, &p.PasswordHash, &p.LegacyAccess, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, db.MapError(err)
	}
	return &p, nil
}

var _ RepositoryPort = (*Repository)(nil)
