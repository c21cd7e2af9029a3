package repositories

import (
	"context"

	"github.com/hkcm91/stickernest-access/internal/entities"
)

// PermissionLogRepository defines the interface for the append-only
// audit log. There is deliberately no update or delete operation.
type PermissionLogRepository interface {
	// Append writes a new log entry
	Append(ctx context.Context, entry *entities.PermissionLogEntry) error

	// ListByCanvas retrieves log entries for a canvas, newest first,
	// up to limit entries (0 means a server-chosen default)
	ListByCanvas(ctx context.Context, canvasID string, limit int) ([]*entities.PermissionLogEntry, error)
}
