package repositories

import (
	"context"

	"github.com/hkcm91/stickernest-access/internal/entities"
)

// GrantRepository defines the interface for collaborator grant data access
type GrantRepository interface {
	// Create persists a new grant. Returns ErrDuplicateGrant if a grant
	// already exists for the (canvas, user) pair; the unique constraint
	// decides races between concurrent creates.
	Create(ctx context.Context, grant *entities.Grant) error

	// GetByCanvasAndUser retrieves the grant for a (canvas, user) pair,
	// returning ErrNotFound if absent
	GetByCanvasAndUser(ctx context.Context, canvasID, userID string) (*entities.Grant, error)

	// Update changes the role and flags of an existing grant, returning
	// ErrNotFound if absent
	Update(ctx context.Context, grant *entities.Grant) error

	// Delete removes the grant for a (canvas, user) pair, returning
	// ErrNotFound if absent
	Delete(ctx context.Context, canvasID, userID string) error

	// ListByCanvas retrieves all grants for a canvas ordered by role
	// descending, then grant time ascending
	ListByCanvas(ctx context.Context, canvasID string) ([]*entities.Grant, error)
}
