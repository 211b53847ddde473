package auth

// Role represents a staff role at an operator location.
type Role string

const (
	RoleStaff     Role = "staff"
	RoleShiftLead Role = "shift_lead"
	RoleManager   Role = "manager"
	RoleOwner     Role = "owner"
)

// NormalizeRole validates and normalizes a role string.
func NormalizeRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleStaff, RoleShiftLead, RoleManager, RoleOwner:
		return Role(value), true
	default:
		return "", false
	}
}

// RoleAtLeast returns true when role satisfies required role.
func RoleAtLeast(role Role, required Role) bool {
	return roleRank(role) >= roleRank(required)
}

func roleRank(role Role) int {
	switch role {
	case RoleStaff:
		return 1
	case RoleShiftLead:
		return 2
	case RoleManager:
		return 3
	case RoleOwner:
		return 4
	default:
		return 0
	}
}
