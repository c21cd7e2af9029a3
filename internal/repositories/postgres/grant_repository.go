package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hkcm91/stickernest-access/internal/entities"
	"github.com/hkcm91/stickernest-access/internal/repositories"
)

const uniqueViolation = pq.ErrorCode("23505")

// PostgresGrantRepository implements GrantRepository using PostgreSQL
type PostgresGrantRepository struct {
	db *sql.DB
}

// NewPostgresGrantRepository creates a new PostgreSQL grant repository
func NewPostgresGrantRepository(db *sql.DB) repositories.GrantRepository {
	return &PostgresGrantRepository{db: db}
}

// Create persists a new grant. The unique constraint on
// (canvas_id, user_id) decides races between concurrent creates.
func (r *PostgresGrantRepository) Create(ctx context.Context, grant *entities.Grant) error {
	if err := grant.Validate(); err != nil {
		return fmt.Errorf("invalid grant: %w", err)
	}

	query := `
		INSERT INTO canvas_grants (id, canvas_id, user_id, role, can_invite, can_manage, granted_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	now := time.Now()
	_, err := r.db.ExecContext(ctx, query,
		grant.ID, grant.CanvasID, grant.UserID, grant.Role,
		grant.CanInvite, grant.CanManage, grant.GrantedBy, now,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return repositories.ErrDuplicateGrant
		}
		return fmt.Errorf("failed to create grant: %w", err)
	}

	grant.CreatedAt = now
	return nil
}

// GetByCanvasAndUser retrieves the grant for a (canvas, user) pair
func (r *PostgresGrantRepository) GetByCanvasAndUser(ctx context.Context, canvasID, userID string) (*entities.Grant, error) {
	query := `
		SELECT id, canvas_id, user_id, role, can_invite, can_manage, granted_by, created_at
		FROM canvas_grants
		WHERE canvas_id = $1 AND user_id = $2
	`
	var grant entities.Grant
	err := r.db.QueryRowContext(ctx, query, canvasID, userID).Scan(
		&grant.ID, &grant.CanvasID, &grant.UserID, &grant.Role,
		&grant.CanInvite, &grant.CanManage, &grant.GrantedBy, &grant.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get grant: %w", err)
	}

	return &grant, nil
}

// Update changes the role and flags of an existing grant
func (r *PostgresGrantRepository) Update(ctx context.Context, grant *entities.Grant) error {
	if err := grant.Validate(); err != nil {
		return fmt.Errorf("invalid grant: %w", err)
	}

	query := `
		UPDATE canvas_grants
		SET role = $3, can_invite = $4, can_manage = $5
		WHERE canvas_id = $1 AND user_id = $2
	`
	result, err := r.db.ExecContext(ctx, query,
		grant.CanvasID, grant.UserID, grant.Role, grant.CanInvite, grant.CanManage,
	)
	if err != nil {
		return fmt.Errorf("failed to update grant: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return repositories.ErrNotFound
	}

	return nil
}

// Delete removes the grant for a (canvas, user) pair
func (r *PostgresGrantRepository) Delete(ctx context.Context, canvasID, userID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM canvas_grants WHERE canvas_id = $1 AND user_id = $2`,
		canvasID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete grant: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return repositories.ErrNotFound
	}

	return nil
}

// ListByCanvas retrieves all grants for a canvas ordered by role
// descending, then grant time ascending. The role order is encoded in
// SQL so the result matches entities.Role ranks.
func (r *PostgresGrantRepository) ListByCanvas(ctx context.Context, canvasID string) ([]*entities.Grant, error) {
	query := `
		SELECT id, canvas_id, user_id, role, can_invite, can_manage, granted_by, created_at
		FROM canvas_grants
		WHERE canvas_id = $1
		ORDER BY CASE role WHEN 'editor' THEN 2 WHEN 'viewer' THEN 1 ELSE 0 END DESC, created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, canvasID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	defer rows.Close()

	var grants []*entities.Grant
	for rows.Next() {
		var grant entities.Grant
		err := rows.Scan(
			&grant.ID, &grant.CanvasID, &grant.UserID, &grant.Role,
			&grant.CanInvite, &grant.CanManage, &grant.GrantedBy, &grant.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		grants = append(grants, &grant)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating grants: %w", err)
	}

	return grants, nil
}
