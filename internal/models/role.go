package models

import "strings"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleTeacher    UserRole = "TEACHER"
	RoleStudent    UserRole = "STUDENT"
	RoleParent     UserRole = "PARENT"
)

// ParseRole normalises a role name.
func ParseRole(raw string) UserRole {
	return UserRole(strings.ToUpper(strings.TrimSpace(raw)))
}

// Valid reports whether the role is known.
func (r UserRole) Valid() bool {
	return r.Administrative() || r.Self()
}

// Administrative roles see per course/day rosters and may override any status.
func (r UserRole) Administrative() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleTeacher:
		return true
	default:
		return false
	}
}

// Self roles only see, and may only mark, the bound student's own attendance.
func (r UserRole) Self() bool {
	return r == RoleStudent || r == RoleParent
}

// Actor is the caller identity consumed by the engine.
// StudentID binds STUDENT and PARENT actors to the student they act for.
type Actor struct {
	UserID    string   `json:"user_id"`
	Role      UserRole `json:"role"`
	StudentID string   `json:"student_id,omitempty"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
