package principal

import "time"

// Principal represents an identity that can authenticate. The legacy access
// flag survives from the pre-RBAC schema and is only consulted once, when
// the role resolver migrates it into an explicit assignment.
type Principal struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	LegacyAccess int
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
