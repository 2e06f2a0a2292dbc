package auth

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quartermaster-erp/quartermaster/internal/platform/db"
)

// SessionRepository defines persistence operations for login sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, id string, principalID int64, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// PGSessionRepository implements SessionRepository using PostgreSQL.
type PGSessionRepository struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewSessionRepository constructs a PostgreSQL session repository.
func NewSessionRepository(pool *pgxpool.Pool, timeout time.Duration) *PGSessionRepository {
	return &PGSessionRepository{pool: pool, timeout: timeout}
}

// CreateSession persists a new login session.
func (r *PGSessionRepository) CreateSession(ctx context.Context, id string, principalID int64, expiresAt time.Time, ip, ua string) error {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sessions (id, principal_id, created_at, expires_at, ip, ua)
		 VALUES ($1, $2, NOW(), $3, NULLIF($4, ''), NULLIF($5, ''))`,
		id, principalID, expiresAt.UTC(), ip, ua)
	return db.MapError(err)
}

// DeleteSession removes a session record.
func (r *PGSessionRepository) DeleteSession(ctx context.Context, id string) error {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()
	_, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return db.MapError(err)
}

// DeleteExpiredSessions purges sessions past their expiry, returning the
// number of rows removed.
func (r *PGSessionRepository) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, db.MapError(err)
	}
	return tag.RowsAffected(), nil
}

var _ SessionRepository = (*PGSessionRepository)(nil)
