package roles

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/quartermaster-erp/quartermaster/internal/principal"
	"github.com/quartermaster-erp/quartermaster/internal/shared"
)

// Resolver maps a principal to its current role. A principal without an
// explicit assignment gets one migrated from the legacy numeric access flag;
// the migration is sticky, so later edits to the flag have no effect until
// the assignment is removed again.
type Resolver struct {
	repo        RepositoryPort
	principals  principal.RepositoryPort
	logger      *slog.Logger
	group       singleflight.Group
	onMigration func()
}

// SetMigrationHook registers a callback fired after each persisted legacy
// migration. Optional; used for metrics.
func (r *Resolver) SetMigrationHook(fn func()) {
	r.onMigration = fn
}

// NewResolver constructs a Resolver.
func NewResolver(repo RepositoryPort, principals principal.RepositoryPort, logger *slog.Logger) *Resolver {
	return &Resolver{repo: repo, principals: principals, logger: logger}
}

// Resolve returns the current role name for a principal. Concurrent calls
// for the same principal collapse onto one store lookup; the cross-process
// race on first access is absorbed by the unique assignment constraint.
func (r *Resolver) Resolve(ctx context.Context, principalID int64) (string, error) {
	result, err, _ := r.group.Do(strconv.FormatInt(principalID, 10), func() (any, error) {
		return r.resolve(ctx, principalID)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (r *Resolver) resolve(ctx context.Context, principalID int64) (string, error) {
	assignment, err := r.repo.CurrentAssignment(ctx, principalID)
	if err == nil {
		return assignment.RoleName, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return "", err
	}

	p, err := r.principals.FindByID(ctx, principalID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// Unknown principals default to viewer without persisting anything.
			return RoleViewer, nil
		}
		return "", err
	}

	name := MapLegacyAccess(p.LegacyAccess)
	r.migrate(ctx, principalID, name)
	return name, nil
}

// migrate persists the mapped role as the principal's assignment so future
// resolutions never consult the legacy flag again. Failures are logged, not
// surfaced: the mapping is deterministic and the caller already holds it.
func (r *Resolver) migrate(ctx context.Context, principalID int64, name string) {
	role, err := r.repo.EnsureRole(ctx, name, DisplayName(name))
	if err != nil {
		r.logger.Warn("legacy role migration: ensure role", slog.String("role", name), slog.Any("error", err))
		return
	}
	if err := r.repo.InsertAssignment(ctx, principalID, role.ID, SystemActorID); err != nil {
		if errors.Is(err, ErrAssignmentExists) {
			// A concurrent first access won the insert; same deterministic
			// mapping, nothing to do.
			return
		}
		r.logger.Warn("legacy role migration: insert assignment",
			slog.Int64("principal_id", principalID), slog.String("role", name), slog.Any("error", err))
		return
	}
	if r.onMigration != nil {
		r.onMigration()
	}
}

// Assign replaces the principal's current assignment with the named role.
// The caller must hold admin; the reserved system actor bypasses that check
// for migration writes.
func (r *Resolver) Assign(ctx context.Context, principalID int64, roleName string, assignedBy int64, expiresAt *time.Time) error {
	if err := r.requireAdmin(ctx, assignedBy); err != nil {
		return err
	}
	role, err := r.repo.RoleByName(ctx, roleName)
	if err != nil {
		return err
	}
	return r.repo.ReplaceAssignment(ctx, principalID, role.ID, assignedBy, expiresAt)
}

// Remove deletes the principal's assignment for the named role. Requires
// admin, with no system bypass.
func (r *Resolver) Remove(ctx context.Context, principalID int64, roleName string, removedBy int64) error {
	if removedBy == SystemActorID {
		return shared.ErrForbidden
	}
	if err := r.requireAdmin(ctx, removedBy); err != nil {
		return err
	}
	role, err := r.repo.RoleByName(ctx, roleName)
	if err != nil {
		return err
	}
	return r.repo.RemoveAssignment(ctx, principalID, role.ID)
}

func (r *Resolver) requireAdmin(ctx context.Context, actorID int64) error {
	if actorID == SystemActorID {
		return nil
	}
	role, err := r.Resolve(ctx, actorID)
	if err != nil {
		return err
	}
	if role != RoleAdmin {
		return shared.ErrForbidden
	}
	return nil
}

// DisplayName derives a human readable name from a role name.
func DisplayName(name string) string {
	return cases.Title(language.English).String(name)
}
