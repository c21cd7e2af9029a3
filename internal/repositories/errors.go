package repositories

import "errors"

// Sentinel errors returned by repositories. Callers match them with
// errors.Is; everything else is an infrastructure failure.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateGrant indicates a grant already exists for the
	// (canvas, user) pair. Enforced by the unique constraint, not by a
	// read-then-write check.
	ErrDuplicateGrant = errors.New("grant already exists for this canvas and user")

	// ErrAlreadyConsumed indicates a conditional status update lost the
	// race: the invitation is no longer pending.
	ErrAlreadyConsumed = errors.New("invitation is no longer pending")

	// ErrUseLimitReached indicates the invitation's use counter has
	// reached its bound.
	ErrUseLimitReached = errors.New("invitation use limit reached")
)
