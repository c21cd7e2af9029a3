package access

import "errors"

// Expected-outcome errors for access store operations. Handlers map
// these to HTTP statuses; they never indicate infrastructure failure.
var (
	// ErrForbidden indicates the acting user lacks the standing the
	// operation requires.
	ErrForbidden = errors.New("actor lacks required standing")

	// ErrInvalidActor indicates the granting actor lacks invite
	// authority for the canvas.
	ErrInvalidActor = errors.New("granting actor lacks invite authority")

	// ErrOwnerGrant indicates an attempt to create or modify a
	// collaborator grant for the canvas owner. Ownership is derived
	// from the canvas record and never stored as a grant.
	ErrOwnerGrant = errors.New("canvas owner cannot hold a collaborator grant")
)
