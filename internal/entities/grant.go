package entities

import (
	"fmt"
	"time"
)

// Grant is a persisted role assignment for a non-owner user on a canvas.
// At most one grant exists per (canvas, user) pair.
type Grant struct {
	ID        string
	CanvasID  string
	UserID    string
	Role      Role
	CanInvite bool // may issue further invitations
	CanManage bool // may change or remove other collaborators' grants
	GrantedBy string
	CreatedAt time.Time
}

// String returns a string representation of the grant
// Format: canvas:id#role@user:id
func (g *Grant) String() string {
	return fmt.Sprintf("canvas:%s#%s@user:%s", g.CanvasID, g.Role, g.UserID)
}

// Validate checks if the grant is valid
func (g *Grant) Validate() error {
	if g.CanvasID == "" {
		return fmt.Errorf("canvas ID is required")
	}
	if g.UserID == "" {
		return fmt.Errorf("user ID is required")
	}
	if !g.Role.Grantable() {
		return fmt.Errorf("role %q is not grantable", g.Role)
	}
	if g.GrantedBy == "" {
		return fmt.Errorf("granting actor is required")
	}
	return nil
}
