package roles

import (
	"errors"
	"time"
)

// Built-in role names. The legacy numeric access flag maps onto these.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleViewer  = "viewer"
)

// SystemActorID is the reserved actor recorded on assignments written by the
// one-time legacy migration. It bypasses the admin check in Assign.
const SystemActorID int64 = 0

var (
	// ErrAssignmentExists indicates a concurrent writer already inserted the
	// current assignment. Callers of the migration path treat it as a no-op.
	ErrAssignmentExists = errors.New("roles: assignment already exists")
	// ErrSystemRole indicates an attempt to delete a protected role.
	ErrSystemRole = errors.New("roles: system role cannot be deleted")
)

// Role represents a named bundle of permitted actions.
type Role struct {
	ID          int64
	Name        string
	DisplayName string
	Description string
	IsSystem    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Assignment ties a principal to its current role. A principal holds at most
// one unexpired assignment; replacing a role deletes the prior row.
type Assignment struct {
	PrincipalID int64
	RoleID      int64
	RoleName    string
	AssignedBy  int64
	AssignedAt  time.Time
	ExpiresAt   *time.Time
}

// MapLegacyAccess deterministically maps the legacy numeric access flag to a
// role name.
func MapLegacyAccess(flag int) string {
	switch flag {
	case 1:
		return RoleAdmin
	case 2:
		return RoleManager
	default:
		return RoleViewer
	}
}
