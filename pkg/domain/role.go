package domain

import dErrors "proposals/pkg/domain-errors"

// Role is the caller's authorization role, resolved by the transport from the
// bearer token. Invariant: one of the values below.
type Role string

const (
	RoleStudent  Role = "student"
	RoleReviewer Role = "reviewer"
	RoleAdmin    Role = "admin"
)

var validRoles = map[Role]bool{
	RoleStudent:  true,
	RoleReviewer: true,
	RoleAdmin:    true,
}

// ParseRole constructs a Role from external input.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !validRoles[r] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid role: "+s)
	}
	return r, nil
}

// IsReviewer reports whether the role may perform review transitions.
func (r Role) IsReviewer() bool {
	return r == RoleReviewer || r == RoleAdmin
}

// Caller identifies who is invoking an operation.
type Caller struct {
	ID   UserID
	Role Role
}
