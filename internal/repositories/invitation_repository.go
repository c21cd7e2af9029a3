package repositories

import (
	"context"

	"github.com/hkcm91/stickernest-access/internal/entities"
)

// InvitationRepository defines the interface for invitation data access
type InvitationRepository interface {
	// Create persists a new invitation
	Create(ctx context.Context, invitation *entities.Invitation) error

	// GetByID retrieves an invitation by ID, returning ErrNotFound if absent
	GetByID(ctx context.Context, id string) (*entities.Invitation, error)

	// GetByToken retrieves an invitation by its token, returning
	// ErrNotFound if absent
	GetByToken(ctx context.Context, token string) (*entities.Invitation, error)

	// TokenExists checks whether a token is already in use
	TokenExists(ctx context.Context, token string) (bool, error)

	// UpdateStatus transitions an invitation from one status to another
	// as a single compare-and-swap. Returns ErrAlreadyConsumed if the
	// invitation is not in the expected status.
	UpdateStatus(ctx context.Context, id string, from, to entities.InvitationStatus) error

	// Consume records a successful redemption: increments the use
	// counter and, for single-use invitations, transitions the status to
	// accepted. Both happen in one atomic statement so concurrent
	// redemptions cannot exceed the use bound or both consume a
	// single-use invitation. Returns ErrAlreadyConsumed when the
	// invitation is no longer pending and ErrUseLimitReached when the
	// use counter is at its bound.
	Consume(ctx context.Context, id string, singleUse bool) error

	// ListByCanvas retrieves all invitations for a canvas, newest first
	ListByCanvas(ctx context.Context, canvasID string) ([]*entities.Invitation, error)

	// ListPendingFor retrieves pending invitations addressed to the
	// given user ID or verified email
	ListPendingFor(ctx context.Context, userID, email string) ([]*entities.Invitation, error)
}
