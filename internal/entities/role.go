package entities

import "fmt"

// Role is a collaboration role on a canvas.
// Roles form a strict total order: viewer < editor < owner.
type Role string

const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
	RoleOwner  Role = "owner"
)

// roleRanks centralizes the total order so "is at least" comparisons
// never fall back to string equality at call sites.
var roleRanks = map[Role]int{
	RoleViewer: 1,
	RoleEditor: 2,
	RoleOwner:  3,
}

// Rank returns the position of the role in the total order.
// Unknown roles rank below viewer.
func (r Role) Rank() int {
	return roleRanks[r]
}

// AtLeast reports whether the role grants everything required does.
func (r Role) AtLeast(required Role) bool {
	return r.Rank() >= required.Rank()
}

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	_, ok := roleRanks[r]
	return ok
}

// Grantable reports whether the role may be assigned to a collaborator.
// Ownership is derived from the canvas record and is never granted.
func (r Role) Grantable() bool {
	return r == RoleViewer || r == RoleEditor
}

// ParseRole converts a string into a Role
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role: %q", s)
	}
	return r, nil
}
