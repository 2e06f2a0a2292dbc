package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quartermaster-erp/quartermaster/internal/roles"
	"github.com/quartermaster-erp/quartermaster/internal/shared"
)

func TestMatrixEngineFullGrid(t *testing.T) {
	expected := map[string]map[string]bool{
		roles.RoleAdmin: {
			ActionRead: true, ActionCreate: true, ActionUpdate: true,
			ActionDelete: true, ActionExport: true, ActionManageUsers: true,
		},
		roles.RoleManager: {
			ActionRead: true, ActionCreate: true, ActionUpdate: true,
			ActionDelete: false, ActionExport: true, ActionManageUsers: false,
		},
		roles.RoleViewer: {
			ActionRead: true, ActionCreate: false, ActionUpdate: false,
			ActionDelete: false, ActionExport: true, ActionManageUsers: false,
		},
	}

	engine := NewMatrixEngine()
	ctx := context.Background()
	for role, grid := range expected {
		for _, action := range Actions() {
			got, err := engine.HasPermission(ctx, role, action)
			require.NoError(t, err)
			require.Equalf(t, grid[action], got, "role=%s action=%s", role, action)
		}
	}
}

func TestMatrixEngineUnknownInputs(t *testing.T) {
	engine := NewMatrixEngine()
	ctx := context.Background()

	ok, err := engine.HasPermission(ctx, "superuser", ActionRead)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = engine.HasPermission(ctx, roles.RoleAdmin, "reboot")
	require.NoError(t, err)
	require.False(t, ok)

	// Matching is case-insensitive on both role and action.
	ok, err = engine.HasPermission(ctx, "Admin", "READ")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRequire(t *testing.T) {
	engine := NewMatrixEngine()
	ctx := context.Background()

	require.NoError(t, Require(ctx, engine, roles.RoleManager, ActionCreate))
	require.ErrorIs(t, Require(ctx, engine, roles.RoleManager, ActionDelete), shared.ErrForbidden)
	require.ErrorIs(t, Require(ctx, engine, roles.RoleViewer, ActionManageUsers), shared.ErrForbidden)
}

type stubPermissionRepo struct {
	grants map[string]map[string]bool
	err    error
}

func (s *stubPermissionRepo) RoleHasPermission(_ context.Context, role, action string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.grants[role][action], nil
}

func TestStoreEngineGrants(t *testing.T) {
	repo := &stubPermissionRepo{grants: map[string]map[string]bool{
		"auditor": {ActionRead: true, ActionExport: true},
	}}
	engine := NewStoreEngine(repo)
	ctx := context.Background()

	ok, err := engine.HasPermission(ctx, "auditor", ActionExport)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = engine.HasPermission(ctx, "auditor", ActionDelete)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStoreEngineFailsClosed(t *testing.T) {
	engine := NewStoreEngine(&stubPermissionRepo{err: shared.ErrStoreUnavailable})
	ctx := context.Background()

	for _, action := range Actions() {
		ok, err := engine.HasPermission(ctx, roles.RoleAdmin, action)
		require.ErrorIs(t, err, shared.ErrStoreUnavailable)
		require.False(t, ok, "store failure must never grant %s", action)
	}

	err := Require(ctx, engine, roles.RoleAdmin, ActionRead)
	require.ErrorIs(t, err, shared.ErrStoreUnavailable)
}
