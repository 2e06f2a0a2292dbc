package roles

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quartermaster-erp/quartermaster/internal/principal"
	"github.com/quartermaster-erp/quartermaster/internal/shared"
)

type memRoleRepo struct {
	mu          sync.Mutex
	roles       map[string]*Role
	assignments map[int64]*Assignment
	nextID      int64

	assignmentErr error
	insertCalls   int
}

func newMemRoleRepo() *memRoleRepo {
	return &memRoleRepo{
		roles:       map[string]*Role{},
		assignments: map[int64]*Assignment{},
		nextID:      1,
	}
}

func (m *memRoleRepo) ListRoles(ctx context.Context) ([]Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Role
	for _, r := range m.roles {
		out = append(out, *r)
	}
	return out, nil
}

func (m *memRoleRepo) RoleByID(ctx context.Context, id int64) (*Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.roles {
		if r.ID == id {
			clone := *r
			return &clone, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memRoleRepo) RoleByName(ctx context.Context, name string) (*Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.roles[name]; ok {
		clone := *r
		return &clone, nil
	}
	return nil, shared.ErrNotFound
}

func (m *memRoleRepo) CreateRole(ctx context.Context, name, displayName, description string) (*Role, error) {
	return m.EnsureRole(ctx, name, displayName)
}

func (m *memRoleRepo) UpdateRole(ctx context.Context, id int64, displayName, description string) (*Role, error) {
	role, err := m.RoleByID(ctx, id)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.roles[role.Name]
	stored.DisplayName = displayName
	stored.Description = description
	clone := *stored
	return &clone, nil
}

func (m *memRoleRepo) DeleteRole(ctx context.Context, id int64) error {
	role, err := m.RoleByID(ctx, id)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return ErrSystemRole
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.roles, role.Name)
	return nil
}

func (m *memRoleRepo) EnsureRole(ctx context.Context, name, displayName string) (*Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.roles[name]; ok {
		clone := *r
		return &clone, nil
	}
	r := &Role{ID: m.nextID, Name: name, DisplayName: displayName, IsSystem: name == RoleAdmin}
	m.nextID++
	m.roles[name] = r
	clone := *r
	return &clone, nil
}

func (m *memRoleRepo) CurrentAssignment(ctx context.Context, principalID int64) (*Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.assignmentErr != nil {
		return nil, m.assignmentErr
	}
	a, ok := m.assignments[principalID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	if a.ExpiresAt != nil && !a.ExpiresAt.After(time.Now()) {
		return nil, shared.ErrNotFound
	}
	clone := *a
	return &clone, nil
}

func (m *memRoleRepo) InsertAssignment(ctx context.Context, principalID, roleID, assignedBy int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertCalls++
	if _, ok := m.assignments[principalID]; ok {
		return ErrAssignmentExists
	}
	m.assignments[principalID] = m.newAssignment(principalID, roleID, assignedBy, nil)
	return nil
}

func (m *memRoleRepo) ReplaceAssignment(ctx context.Context, principalID, roleID, assignedBy int64, expiresAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments[principalID] = m.newAssignment(principalID, roleID, assignedBy, expiresAt)
	return nil
}

func (m *memRoleRepo) RemoveAssignment(ctx context.Context, principalID, roleID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assignments[principalID]
	if !ok || a.RoleID != roleID {
		return shared.ErrNotFound
	}
	delete(m.assignments, principalID)
	return nil
}

func (m *memRoleRepo) newAssignment(principalID, roleID, assignedBy int64, expiresAt *time.Time) *Assignment {
	name := ""
	for _, r := range m.roles {
		if r.ID == roleID {
			name = r.Name
		}
	}
	return &Assignment{
		PrincipalID: principalID,
		RoleID:      roleID,
		RoleName:    name,
		AssignedBy:  assignedBy,
		AssignedAt:  time.Now(),
		ExpiresAt:   expiresAt,
	}
}

type memPrincipalRepo struct {
	mu         sync.Mutex
	principals map[int64]*principal.Principal
	err        error
}

func newMemPrincipalRepo(ps ...*principal.Principal) *memPrincipalRepo {
	m := &memPrincipalRepo{principals: map[int64]*principal.Principal{}}
	for _, p := range ps {
		m.principals[p.ID] = p
	}
	return m
}

func (m *memPrincipalRepo) FindByID(ctx context.Context, id int64) (*principal.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.principals[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *p
	return &clone, nil
}

func (m *memPrincipalRepo) FindByEmail(ctx context.Context, email string) (*principal.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, p := range m.principals {
		if p.Email == email {
			clone := *p
			return &clone, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memPrincipalRepo) Exists(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.principals[id]
	return ok, nil
}

func (m *memPrincipalRepo) setLegacy(id int64, flag int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.principals[id].LegacyAccess = flag
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMapLegacyAccess(t *testing.T) {
	require.Equal(t, RoleAdmin, MapLegacyAccess(1))
	require.Equal(t, RoleManager, MapLegacyAccess(2))
	require.Equal(t, RoleViewer, MapLegacyAccess(0))
	require.Equal(t, RoleViewer, MapLegacyAccess(3))
	require.Equal(t, RoleViewer, MapLegacyAccess(-7))
}

func TestResolveMigratesLegacyFlag(t *testing.T) {
	repo := newMemRoleRepo()
	principals := newMemPrincipalRepo(&principal.Principal{ID: 7, LegacyAccess: 2, IsActive: true})
	resolver := NewResolver(repo, principals, discardLogger())

	role, err := resolver.Resolve(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, RoleManager, role)

	// The migrated assignment is persisted under the system actor.
	a, err := repo.CurrentAssignment(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, RoleManager, a.RoleName)
	require.Equal(t, int64(SystemActorID), a.AssignedBy)
}

func TestResolveStickyAfterFlagChange(t *testing.T) {
	repo := newMemRoleRepo()
	principals := newMemPrincipalRepo(&principal.Principal{ID: 7, LegacyAccess: 2, IsActive: true})
	resolver := NewResolver(repo, principals, discardLogger())

	role, err := resolver.Resolve(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, RoleManager, role)

	// The flag is edited afterwards; the stored assignment wins.
	principals.setLegacy(7, 1)
	role, err = resolver.Resolve(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, RoleManager, role)

	// Dropping the assignment re-opens the migration path.
	manager, err := repo.RoleByName(context.Background(), RoleManager)
	require.NoError(t, err)
	require.NoError(t, repo.RemoveAssignment(context.Background(), 7, manager.ID))

	role, err = resolver.Resolve(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, RoleAdmin, role)
}

func TestResolveUnknownPrincipalDefaultsViewer(t *testing.T) {
	repo := newMemRoleRepo()
	resolver := NewResolver(repo, newMemPrincipalRepo(), discardLogger())

	role, err := resolver.Resolve(context.Background(), 404)
	require.NoError(t, err)
	require.Equal(t, RoleViewer, role)

	// Nothing gets persisted for a principal that does not exist.
	_, err = repo.CurrentAssignment(context.Background(), 404)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestResolvePropagatesStoreOutage(t *testing.T) {
	repo := newMemRoleRepo()
	repo.assignmentErr = shared.ErrStoreUnavailable
	resolver := NewResolver(repo, newMemPrincipalRepo(), discardLogger())

	_, err := resolver.Resolve(context.Background(), 7)
	require.ErrorIs(t, err, shared.ErrStoreUnavailable)
}

func TestMigrationRaceIsBenign(t *testing.T) {
	repo := newMemRoleRepo()
	principals := newMemPrincipalRepo(&principal.Principal{ID: 7, LegacyAccess: 1, IsActive: true})
	resolver := NewResolver(repo, principals, discardLogger())

	// Seed a competing assignment as if another process migrated first.
	admin, err := repo.EnsureRole(context.Background(), RoleAdmin, "Admin")
	require.NoError(t, err)
	repo.assignments[7] = repo.newAssignment(7, admin.ID, SystemActorID, nil)
	repo.assignmentErr = shared.ErrNotFound

	role, err := resolver.Resolve(context.Background(), 7)
	repo.assignmentErr = nil
	require.NoError(t, err)
	require.Equal(t, RoleAdmin, role)
	require.Equal(t, 1, repo.insertCalls)
}

func TestResolveExpiredAssignmentFallsBack(t *testing.T) {
	repo := newMemRoleRepo()
	principals := newMemPrincipalRepo(&principal.Principal{ID: 9, LegacyAccess: 0, IsActive: true})
	resolver := NewResolver(repo, principals, discardLogger())

	manager, err := repo.EnsureRole(context.Background(), RoleManager, "Manager")
	require.NoError(t, err)
	past := time.Now().Add(-time.Hour)
	require.NoError(t, repo.ReplaceAssignment(context.Background(), 9, manager.ID, 1, &past))

	role, err := resolver.Resolve(context.Background(), 9)
	require.NoError(t, err)
	require.Equal(t, RoleViewer, role)
}

func TestAssignRequiresAdmin(t *testing.T) {
	repo := newMemRoleRepo()
	principals := newMemPrincipalRepo(
		&principal.Principal{ID: 1, LegacyAccess: 1, IsActive: true},
		&principal.Principal{ID: 2, LegacyAccess: 2, IsActive: true},
		&principal.Principal{ID: 3, LegacyAccess: 0, IsActive: true},
	)
	resolver := NewResolver(repo, principals, discardLogger())

	_, err := repo.EnsureRole(context.Background(), RoleViewer, "Viewer")
	require.NoError(t, err)

	err = resolver.Assign(context.Background(), 3, RoleViewer, 2, nil)
	require.ErrorIs(t, err, shared.ErrForbidden)

	require.NoError(t, resolver.Assign(context.Background(), 3, RoleViewer, 1, nil))

	a, err := repo.CurrentAssignment(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, RoleViewer, a.RoleName)
	require.Equal(t, int64(1), a.AssignedBy)
}

func TestAssignUnknownRole(t *testing.T) {
	repo := newMemRoleRepo()
	principals := newMemPrincipalRepo(&principal.Principal{ID: 1, LegacyAccess: 1, IsActive: true})
	resolver := NewResolver(repo, principals, discardLogger())

	err := resolver.Assign(context.Background(), 5, "superuser", 1, nil)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRemoveForbidsSystemActor(t *testing.T) {
	repo := newMemRoleRepo()
	resolver := NewResolver(repo, newMemPrincipalRepo(), discardLogger())

	err := resolver.Remove(context.Background(), 5, RoleViewer, SystemActorID)
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestDisplayName(t *testing.T) {
	require.Equal(t, "Manager", DisplayName("manager"))
	require.Equal(t, "Site Admin", DisplayName("site admin"))
}
