package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quartermaster-erp/quartermaster/internal/platform/db"
)

// RepositoryPort defines persistence operations for the audit log.
type RepositoryPort interface {
	Insert(ctx context.Context, entry Entry) error
	Window(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error)
	All(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error)
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

// Insert appends one audit row with serialized before/after snapshots.
func (r *Repository) Insert(ctx context.Context, entry Entry) error {
	oldJSON, err := marshalSnapshot(entry.OldValue)
	if err != nil {
		return err
	}
	newJSON, err := marshalSnapshot(entry.NewValue)
	if err != nil {
		return err
	}
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()
	_, err = r.pool.Exec(ctx,
		`INSERT INTO audit_log (principal_id, action, resource_type, resource_id, old_values, new_values, origin, agent, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`,
		entry.PrincipalID, entry.Action, entry.ResourceType, entry.ResourceID,
		oldJSON, newJSON, entry.Origin, entry.Agent)
	return db.MapError(err)
}

const timelineQuery = `
SELECT id, created_at, principal_id, action, resource_type, resource_id,
       COALESCE(old_values::text, ''), COALESCE(new_values::text, ''),
       COALESCE(origin, ''), COALESCE(agent, '')
FROM audit_log
WHERE ($1::timestamptz IS NULL OR created_at >= $1)
  AND ($2::timestamptz IS NULL OR created_at <= $2)
  AND ($3::bigint = 0 OR principal_id = $3)
  AND ($4::text = '' OR resource_type = $4)
  AND ($5::text = '' OR action = $5)
ORDER BY created_at DESC, id DESC`

// Window returns one page of the timeline.
func (r *Repository) Window(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()
	rows, err := r.pool.Query(ctx, timelineQuery+` OFFSET $6 LIMIT $7`,
		nullTime(filters.From), nullTime(filters.To), filters.PrincipalID,
		filters.ResourceType, filters.Action, offset, limit)
	if err != nil {
		return nil, db.MapError(err)
	}
	return collectRows(rows)
}

// All returns the full filtered timeline without paging, for exports.
func (r *Repository) All(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	ctx, cancel := db.WithTimeout(ctx, r.timeout)
	defer cancel()
	rows, err := r.pool.Query(ctx, timelineQuery,
		nullTime(filters.From), nullTime(filters.To), filters.PrincipalID,
		filters.ResourceType, filters.Action)
	if err != nil {
		return nil, db.MapError(err)
	}
	return collectRows(rows)
}

func collectRows(rows pgx.Rows) ([]TimelineRow, error) {
	defer rows.Close()
	var result []TimelineRow
	for rows.Next() {
		var row TimelineRow
		if err := rows.Scan(&row.ID, &row.At, &row.PrincipalID, &row.Action, &row.ResourceType,
			&row.ResourceID, &row.OldValues, &row.NewValues, &row.Origin, &row.Agent); err != nil {
			return nil, db.MapError(err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, db.MapError(err)
	}
	return result, nil
}

func marshalSnapshot(value any) ([]byte, error) {
	if value == nil {
		return nil, nil
	}
	return json.Marshal(value)
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

var _ RepositoryPort = (*Repository)(nil)
