package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hkcm91/stickernest-access/internal/entities"
	"github.com/hkcm91/stickernest-access/internal/repositories"
)

// PostgresPermissionLogRepository implements PermissionLogRepository
// using PostgreSQL. The table is append-only; this type exposes no
// update or delete statement.
type PostgresPermissionLogRepository struct {
	db *sql.DB
}

// NewPostgresPermissionLogRepository creates a new PostgreSQL permission log repository
func NewPostgresPermissionLogRepository(db *sql.DB) repositories.PermissionLogRepository {
	return &PostgresPermissionLogRepository{db: db}
}

const defaultLogLimit = 100

// Append writes a new log entry
func (r *PostgresPermissionLogRepository) Append(ctx context.Context, entry *entities.PermissionLogEntry) error {
	if entry.CanvasID == "" {
		return fmt.Errorf("canvas ID is required")
	}
	if entry.Action == "" {
		return fmt.Errorf("action is required")
	}

	var metadata []byte
	if len(entry.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal log metadata: %w", err)
		}
	}

	query := `
		INSERT INTO permission_log (canvas_id, user_id, email, action, old_role, new_role, actor_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	now := time.Now()
	err := r.db.QueryRowContext(ctx, query,
		entry.CanvasID,
		sql.NullString{String: entry.UserID, Valid: entry.UserID != ""},
		sql.NullString{String: entry.Email, Valid: entry.Email != ""},
		entry.Action,
		sql.NullString{String: string(entry.OldRole), Valid: entry.OldRole != ""},
		sql.NullString{String: string(entry.NewRole), Valid: entry.NewRole != ""},
		entry.ActorID,
		metadata,
		now,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to append permission log entry: %w", err)
	}

	entry.CreatedAt = now
	return nil
}

// ListByCanvas retrieves log entries for a canvas, newest first
func (r *PostgresPermissionLogRepository) ListByCanvas(ctx context.Context, canvasID string, limit int) ([]*entities.PermissionLogEntry, error) {
	if limit <= 0 {
		limit = defaultLogLimit
	}

	query := `
		SELECT id, canvas_id, user_id, email, action, old_role, new_role, actor_id, metadata, created_at
		FROM permission_log
		WHERE canvas_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, canvasID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list permission log: %w", err)
	}
	defer rows.Close()

	var entries []*entities.PermissionLogEntry
	for rows.Next() {
		var entry entities.PermissionLogEntry
		var userID, email, oldRole, newRole sql.NullString
		var metadata []byte

		err := rows.Scan(
			&entry.ID, &entry.CanvasID, &userID, &email, &entry.Action,
			&oldRole, &newRole, &entry.ActorID, &metadata, &entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan permission log entry: %w", err)
		}

		if userID.Valid {
			entry.UserID = userID.String
		}
		if email.Valid {
			entry.Email = email.String
		}
		if oldRole.Valid {
			entry.OldRole = entities.Role(oldRole.String)
		}
		if newRole.Valid {
			entry.NewRole = entities.Role(newRole.String)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal log metadata: %w", err)
			}
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating permission log: %w", err)
	}

	return entries, nil
}
