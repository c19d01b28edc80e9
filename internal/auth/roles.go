package auth

// Role represents a caller role for role-based access control
type Role string

const (
	// RoleOperator has full access, including alert acknowledgement
	RoleOperator Role = "operator"

	// RoleScheduler may trigger analysis jobs
	RoleScheduler Role = "scheduler"

	// RoleReader has read-only access to events and alerts
	RoleReader Role = "reader"
)

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the role is a valid role
func (r Role) IsValid() bool {
	switch r {
	case RoleOperator, RoleScheduler, RoleReader:
		return true
	default:
		return false
	}
}

// HasPermission checks if a role has permission for a required role.
// Operator has all permissions; other roles only their own.
func (r Role) HasPermission(required Role) bool {
	if r == RoleOperator {
		return true
	}
	return r == required
}
