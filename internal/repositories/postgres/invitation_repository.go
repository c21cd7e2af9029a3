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

// PostgresInvitationRepository implements InvitationRepository using PostgreSQL
type PostgresInvitationRepository struct {
	db *sql.DB
}

// NewPostgresInvitationRepository creates a new PostgreSQL invitation repository
func NewPostgresInvitationRepository(db *sql.DB) repositories.InvitationRepository {
	return &PostgresInvitationRepository{db: db}
}

const invitationColumns = `
	id, canvas_id, email, target_user_id, role, can_invite, token, status,
	message, expires_at, max_uses, use_count, created_by, created_at, updated_at
`

// Create persists a new invitation
func (r *PostgresInvitationRepository) Create(ctx context.Context, invitation *entities.Invitation) error {
	if err := invitation.Validate(); err != nil {
		return fmt.Errorf("invalid invitation: %w", err)
	}

	email, _ := invitation.Target.Email()
	targetUserID, _ := invitation.Target.UserID()

	query := `
		INSERT INTO canvas_invitations (
			id, canvas_id, email, target_user_id, role, can_invite, token, status,
			message, expires_at, max_uses, use_count, created_by, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
	`
	now := time.Now()
	var maxUses sql.NullInt64
	if invitation.MaxUses != nil {
		maxUses = sql.NullInt64{Int64: int64(*invitation.MaxUses), Valid: true}
	}
	var expiresAt sql.NullTime
	if invitation.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *invitation.ExpiresAt, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		invitation.ID, invitation.CanvasID,
		sql.NullString{String: email, Valid: email != ""},
		sql.NullString{String: targetUserID, Valid: targetUserID != ""},
		invitation.Role, invitation.CanInvite, invitation.Token, invitation.Status,
		sql.NullString{String: invitation.Message, Valid: invitation.Message != ""},
		expiresAt, maxUses, invitation.UseCount, invitation.CreatedBy, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create invitation: %w", err)
	}

	invitation.CreatedAt = now
	invitation.UpdatedAt = now
	return nil
}

// GetByID retrieves an invitation by ID
func (r *PostgresInvitationRepository) GetByID(ctx context.Context, id string) (*entities.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM canvas_invitations WHERE id = $1`
	return r.queryOne(ctx, query, id)
}

// GetByToken retrieves an invitation by its token
func (r *PostgresInvitationRepository) GetByToken(ctx context.Context, token string) (*entities.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM canvas_invitations WHERE token = $1`
	return r.queryOne(ctx, query, token)
}

// TokenExists checks whether a token is already in use
func (r *PostgresInvitationRepository) TokenExists(ctx context.Context, token string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM canvas_invitations WHERE token = $1)`, token,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check token existence: %w", err)
	}
	return exists, nil
}

// UpdateStatus transitions an invitation between statuses as a single
// compare-and-swap UPDATE. Losing the race returns ErrAlreadyConsumed.
func (r *PostgresInvitationRepository) UpdateStatus(ctx context.Context, id string, from, to entities.InvitationStatus) error {
	query := `
		UPDATE canvas_invitations
		SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
	`
	result, err := r.db.ExecContext(ctx, query, id, from, to, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update invitation status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return repositories.ErrAlreadyConsumed
	}

	return nil
}

// Consume records a successful redemption in one atomic statement.
// Single-use invitations CAS pending -> accepted; open links only
// increment the counter, guarded by the use bound so concurrent
// redemptions cannot exceed max_uses.
func (r *PostgresInvitationRepository) Consume(ctx context.Context, id string, singleUse bool) error {
	var query string
	if singleUse {
		query = `
			UPDATE canvas_invitations
			SET status = 'accepted', use_count = use_count + 1, updated_at = $2
			WHERE id = $1 AND status = 'pending'
		`
	} else {
		query = `
			UPDATE canvas_invitations
			SET use_count = use_count + 1, updated_at = $2
			WHERE id = $1 AND status = 'pending'
				AND (max_uses IS NULL OR use_count < max_uses)
		`
	}

	result, err := r.db.ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to consume invitation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows > 0 {
		return nil
	}

	// The conditional update matched nothing: decide which guard failed.
	inv, err := r.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return repositories.ErrNotFound
		}
		return fmt.Errorf("failed to inspect invitation after consume: %w", err)
	}
	if inv.Status != entities.InvitationPending {
		return repositories.ErrAlreadyConsumed
	}
	return repositories.ErrUseLimitReached
}

// ListByCanvas retrieves all invitations for a canvas, newest first
func (r *PostgresInvitationRepository) ListByCanvas(ctx context.Context, canvasID string) ([]*entities.Invitation, error) {
	query := `SELECT ` + invitationColumns + `
		FROM canvas_invitations
		WHERE canvas_id = $1
		ORDER BY created_at DESC`
	return r.queryMany(ctx, query, canvasID)
}

// ListPendingFor retrieves pending invitations addressed to the given
// user ID or verified email
func (r *PostgresInvitationRepository) ListPendingFor(ctx context.Context, userID, email string) ([]*entities.Invitation, error) {
	query := `SELECT ` + invitationColumns + `
		FROM canvas_invitations
		WHERE status = 'pending' AND (target_user_id = $1 OR email = $2)
		ORDER BY created_at DESC`
	return r.queryMany(ctx, query, userID, email)
}

func (r *PostgresInvitationRepository) queryOne(ctx context.Context, query string, args ...interface{}) (*entities.Invitation, error) {
	inv, err := scanInvitation(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	return inv, nil
}

func (r *PostgresInvitationRepository) queryMany(ctx context.Context, query string, args ...interface{}) ([]*entities.Invitation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	var invitations []*entities.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		invitations = append(invitations, inv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invitations: %w", err)
	}

	return invitations, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInvitation(row rowScanner) (*entities.Invitation, error) {
	var inv entities.Invitation
	var email, targetUserID, message sql.NullString
	var expiresAt sql.NullTime
	var maxUses sql.NullInt64

	err := row.Scan(
		&inv.ID, &inv.CanvasID, &email, &targetUserID, &inv.Role, &inv.CanInvite,
		&inv.Token, &inv.Status, &message, &expiresAt, &maxUses, &inv.UseCount,
		&inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	switch {
	case email.Valid:
		inv.Target = entities.EmailTarget(email.String)
	case targetUserID.Valid:
		inv.Target = entities.UserTarget(targetUserID.String)
	default:
		inv.Target = entities.OpenLinkTarget()
	}

	if message.Valid {
		inv.Message = message.String
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		inv.ExpiresAt = &t
	}
	if maxUses.Valid {
		n := int(maxUses.Int64)
		inv.MaxUses = &n
	}

	return &inv, nil
}
