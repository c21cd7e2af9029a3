package repositories

import (
	"context"

	"github.com/hkcm91/stickernest-access/internal/entities"
)

// CanvasRepository defines the interface for canvas data access
type CanvasRepository interface {
	// Create persists a new canvas
	Create(ctx context.Context, canvas *entities.Canvas) error

	// GetByID retrieves a canvas by ID, returning ErrNotFound if absent
	GetByID(ctx context.Context, id string) (*entities.Canvas, error)

	// UpdateVisibility changes the visibility of a canvas
	UpdateVisibility(ctx context.Context, id string, visibility entities.Visibility) error

	// Delete removes a canvas; grants and invitations cascade
	Delete(ctx context.Context, id string) error
}
