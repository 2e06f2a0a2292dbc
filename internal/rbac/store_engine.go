package rbac

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quartermaster-erp/quartermaster/internal/platform/db"
)

// RepositoryPort defines the lookup the store engine needs.
type RepositoryPort interface {
	RoleHasPermission(ctx context.Context, role, action string) (bool, error)
}

// Repository provides PostgreSQL backed permission lookups.
type Repository struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewRepository constructs a repository. Every query runs under the given
// timeout.
func NewRepository(pool *pgxpool.Pool, timeout time.Duration) *Repository {
	return &Repository{pool: pool, timeout: timeout}
}

// RoleHasPermission checks the role→permission join table.
func (r *Repository) RoleHasPermission(ctx context.Context, role, action string) (bool, error) {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()
	var granted bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1
			FROM role_permissions rp
			JOIN roles ro ON ro.id = rp.role_id
			WHERE ro.name = $1 AND rp.permission = $2
		)`,
		role, action).Scan(&granted)
	if err != nil {
		return false, db.MapError(err)
	}
	return granted, nil
}

var _ RepositoryPort = (*Repository)(nil)

// StoreEngine evaluates permissions from explicit role→permission rows.
type StoreEngine struct {
	repo RepositoryPort
}

// NewStoreEngine constructs the data-driven engine.
func NewStoreEngine(repo RepositoryPort) *StoreEngine {
	return &StoreEngine{repo: repo}
}

// HasPermission consults the join table. A store failure yields a deny
// alongside the error; it never yields an allow.
func (e *StoreEngine) HasPermission(ctx context.Context, role, action string) (bool, error) {
	granted, err := e.repo.RoleHasPermission(ctx, role, action)
	if err != nil {
		return false, err
	}
	return granted, nil
}

// Detect picks the engine for this deployment: the store engine when the
// role_permissions table is provisioned, else the fixed matrix. Probe
// failures fall back to the matrix.
func Detect(ctx context.Context, pool *pgxpool.Pool, timeout time.Duration, logger *slog.Logger) Engine {
	ctx, cancel := db.WithTimeout(ctx, timeout)
	defer cancel()

	var provisioned bool
	err := pool.QueryRow(ctx, `SELECT to_regclass('role_permissions') IS NOT NULL`).Scan(&provisioned)
	if err != nil {
		logger.Warn("rbac engine probe failed, using fixed matrix", slog.Any("error", err))
		return NewMatrixEngine()
	}
	if provisioned {
		logger.Info("rbac: using role_permissions table engine")
		return NewStoreEngine(NewRepository(pool, timeout))
	}
	logger.Info("rbac: using fixed capability matrix")
	return NewMatrixEngine()
}
