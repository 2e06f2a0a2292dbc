// Package rbac evaluates role × action against a capability matrix. Two
// engines exist on purpose: the fixed in-process matrix is the guaranteed
// degrade-safe path, the store engine consults the role_permissions join
// table when that schema is provisioned. They are selected at startup, never
// merged.
package rbac

import (
	"context"
	"strings"

	"github.com/quartermaster-erp/quartermaster/internal/roles"
	"github.com/quartermaster-erp/quartermaster/internal/shared"
)

// Engine answers permission questions for a resolved role.
type Engine interface {
	HasPermission(ctx context.Context, role, action string) (bool, error)
}

// MatrixEngine evaluates against the fixed capability matrix with zero store
// round-trips.
type MatrixEngine struct{}

// NewMatrixEngine constructs the fixed-matrix engine.
func NewMatrixEngine() MatrixEngine {
	return MatrixEngine{}
}

var capabilityMatrix = map[string]map[string]bool{
	roles.RoleAdmin: {
		ActionRead:        true,
		ActionCreate:      true,
		ActionUpdate:      true,
		ActionDelete:      true,
		ActionExport:      true,
		ActionManageUsers: true,
	},
	roles.RoleManager: {
		ActionRead:   true,
		ActionCreate: true,
		ActionUpdate: true,
		ActionExport: true,
	},
	roles.RoleViewer: {
		ActionRead:   true,
		ActionExport: true,
	},
}

// HasPermission reports whether the role may perform the action. Unknown
// roles and unknown actions are denied.
func (MatrixEngine) HasPermission(_ context.Context, role, action string) (bool, error) {
	caps, ok := capabilityMatrix[strings.ToLower(strings.TrimSpace(role))]
	if !ok {
		return false, nil
	}
	return caps[strings.ToLower(strings.TrimSpace(action))], nil
}

// Require returns ErrForbidden when the engine denies the action. Engine
// failures propagate unchanged so the caller denies as well: a role that
// cannot be evaluated is never authorized.
func Require(ctx context.Context, engine Engine, role, action string) error {
	ok, err := engine.HasPermission(ctx, role, action)
	if err != nil {
		return err
	}
	if !ok {
		return shared.ErrForbidden
	}
	return nil
}
