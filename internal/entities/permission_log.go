package entities

import "time"

// LogAction is the kind of access-control state change being recorded.
type LogAction string

const (
	ActionInvited     LogAction = "invited"
	ActionAccepted    LogAction = "accepted"
	ActionDeclined    LogAction = "declined"
	ActionRoleChanged LogAction = "role_changed"
	ActionRemoved     LogAction = "removed"
	ActionLeft        LogAction = "left"
	ActionRevoked     LogAction = "revoked"
)

// PermissionLogEntry is an immutable audit record of an access-control
// state change. Entries are append-only: no update or delete path exists.
//
// UserID or Email may be empty when the change targets the other
// identifier (an email invitation has no user yet).
type PermissionLogEntry struct {
	ID        int64
	CanvasID  string
	UserID    string
	Email     string
	Action    LogAction
	OldRole   Role // set for role_changed
	NewRole   Role // set for role_changed, invited, accepted
	ActorID   string
	Metadata  map[string]string
	CreatedAt time.Time
}
