package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hkcm91/stickernest-access/internal/entities"
	"github.com/hkcm91/stickernest-access/internal/repositories"
)

// PostgresCanvasRepository implements CanvasRepository using PostgreSQL
type PostgresCanvasRepository struct {
	db *sql.DB
}

// NewPostgresCanvasRepository creates a new PostgreSQL canvas repository
func NewPostgresCanvasRepository(db *sql.DB) repositories.CanvasRepository {
	return &PostgresCanvasRepository{db: db}
}

// Create persists a new canvas
func (r *PostgresCanvasRepository) Create(ctx context.Context, canvas *entities.Canvas) error {
	if err := canvas.Validate(); err != nil {
		return fmt.Errorf("invalid canvas: %w", err)
	}

	query := `
		INSERT INTO canvases (id, owner_id, visibility, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
	`
	now := time.Now()
	_, err := r.db.ExecContext(ctx, query, canvas.ID, canvas.OwnerID, canvas.Visibility, now)
	if err != nil {
		return fmt.Errorf("failed to create canvas: %w", err)
	}

	canvas.CreatedAt = now
	canvas.UpdatedAt = now
	return nil
}

// GetByID retrieves a canvas by ID
func (r *PostgresCanvasRepository) GetByID(ctx context.Context, id string) (*entities.Canvas, error) {
	query := `
		SELECT id, owner_id, visibility, created_at, updated_at
		FROM canvases
		WHERE id = $1
	`
	var canvas entities.Canvas
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&canvas.ID, &canvas.OwnerID, &canvas.Visibility, &canvas.CreatedAt, &canvas.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get canvas: %w", err)
	}

	return &canvas, nil
}

// UpdateVisibility changes the visibility of a canvas
func (r *PostgresCanvasRepository) UpdateVisibility(ctx context.Context, id string, visibility entities.Visibility) error {
	if !visibility.Valid() {
		return fmt.Errorf("invalid visibility: %q", visibility)
	}

	query := `
		UPDATE canvases
		SET visibility = $2, updated_at = $3
		WHERE id = $1
	`
	result, err := r.db.ExecContext(ctx, query, id, visibility, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update canvas visibility: %w", err)
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

// Delete removes a canvas; grants and invitations cascade via foreign keys
func (r *PostgresCanvasRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM canvases WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete canvas: %w", err)
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
