package invitation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hkcm91/stickernest-access/internal/entities"
	"github.com/hkcm91/stickernest-access/internal/repositories"
	"github.com/hkcm91/stickernest-access/internal/services/access"
)

// EngineInterface defines the interface for invitation management
type EngineInterface interface {
	Create(ctx context.Context, req *CreateRequest) (*entities.Invitation, error)
	Validate(ctx context.Context, token string) (*ValidationResult, error)
	Redeem(ctx context.Context, token string, redeemer Redeemer) (*RedemptionResult, error)
	Decline(ctx context.Context, token string, redeemer Redeemer) error
	Revoke(ctx context.Context, invitationID, actingUserID string) error
	ListByCanvas(ctx context.Context, canvasID, actingUserID string) ([]*entities.Invitation, error)
	ListPendingFor(ctx context.Context, userID, email string) ([]*entities.Invitation, error)
}

// Redeemer identifies the authenticated user attempting a redemption.
// VerifiedEmail comes from the identity layer and is trusted as given.
type Redeemer struct {
	UserID        string
	VerifiedEmail string
}

// CreateRequest contains the parameters for issuing an invitation.
type CreateRequest struct {
	CanvasID  string
	IssuerID  string
	Target    entities.InvitationTarget
	Role      entities.Role
	CanInvite bool
	Message   string
	ExpiresAt *time.Time // nil applies the configured default TTL
	MaxUses   *int       // nil means unbounded
}

// Config holds engine configuration.
type Config struct {
	// TokenBytes is the number of random bytes per token; 32 gives the
	// 256-bit entropy the tokens are sized for.
	TokenBytes int
	// DefaultTTL is applied when a create request has no expiry.
	// Zero disables the default.
	DefaultTTL time.Duration
}

// Engine issues and redeems invitation tokens, converting them into
// collaborator grants under time/usage/identity constraints.
type Engine struct {
	canvasRepo repositories.CanvasRepository
	invRepo    repositories.InvitationRepository
	logRepo    repositories.PermissionLogRepository
	store      access.StoreInterface
	authorizer access.AuthorizerInterface
	notifier   Notifier
	config     Config
	now        func() time.Time
}

// NewEngine creates a new invitation Engine. notifier may be nil.
func NewEngine(
	canvasRepo repositories.CanvasRepository,
	invRepo repositories.InvitationRepository,
	logRepo repositories.PermissionLogRepository,
	store access.StoreInterface,
	authorizer access.AuthorizerInterface,
	notifier Notifier,
	config Config,
) *Engine {
	if config.TokenBytes <= 0 {
		config.TokenBytes = 32
	}
	return &Engine{
		canvasRepo: canvasRepo,
		invRepo:    invRepo,
		logRepo:    logRepo,
		store:      store,
		authorizer: authorizer,
		notifier:   notifier,
		config:     config,
		now:        time.Now,
	}
}

// Create issues a new invitation. The issuer must be the canvas owner
// or a collaborator holding can_invite.
func (e *Engine) Create(ctx context.Context, req *CreateRequest) (*entities.Invitation, error) {
	if err := req.Target.Validate(); err != nil {
		return nil, err
	}
	if !req.Role.Grantable() {
		return nil, fmt.Errorf("role %q is not grantable", req.Role)
	}
	if req.MaxUses != nil && *req.MaxUses <= 0 {
		return nil, fmt.Errorf("max uses must be positive")
	}

	if _, err := e.canvasRepo.GetByID(ctx, req.CanvasID); err != nil {
		return nil, err
	}

	allowed, err := e.authorizer.CanInvite(ctx, req.IssuerID, req.CanvasID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, access.ErrForbidden
	}

	// Re-inviting an already-granted user fails cleanly up front.
	if targetUserID, ok := req.Target.UserID(); ok {
		if _, found, err := e.authorizer.EffectiveRole(ctx, targetUserID, req.CanvasID); err != nil {
			return nil, err
		} else if found {
			return nil, repositories.ErrDuplicateGrant
		}
	}

	token, err := e.generateToken(ctx)
	if err != nil {
		return nil, err
	}

	expiresAt := req.ExpiresAt
	if expiresAt == nil && e.config.DefaultTTL > 0 {
		t := e.now().Add(e.config.DefaultTTL)
		expiresAt = &t
	}

	inv := &entities.Invitation{
		ID:        uuid.NewString(),
		CanvasID:  req.CanvasID,
		Target:    req.Target,
		Role:      req.Role,
		CanInvite: req.CanInvite,
		Token:     token,
		Status:    entities.InvitationPending,
		Message:   req.Message,
		ExpiresAt: expiresAt,
		MaxUses:   req.MaxUses,
		CreatedBy: req.IssuerID,
	}
	if err := e.invRepo.Create(ctx, inv); err != nil {
		return nil, err
	}

	email, _ := inv.Target.Email()
	targetUserID, _ := inv.Target.UserID()
	err = e.logRepo.Append(ctx, &entities.PermissionLogEntry{
		CanvasID: inv.CanvasID,
		UserID:   targetUserID,
		Email:    email,
		Action:   entities.ActionInvited,
		NewRole:  inv.Role,
		ActorID:  inv.CreatedBy,
		Metadata: map[string]string{"invitation_id": inv.ID, "target": inv.Target.String()},
	})
	if err != nil {
		return nil, fmt.Errorf("invitation created but audit append failed: %w", err)
	}

	if e.notifier != nil {
		// Delivery is external and best-effort; a failed notification
		// does not invalidate the invitation.
		_ = e.notifier.InvitationCreated(ctx, inv)
	}

	return inv, nil
}

// Validate checks a token against existence, status, wall-clock expiry
// and use count. Expiry is lazy: the first validation past expires_at
// transitions the invitation to expired.
func (e *Engine) Validate(ctx context.Context, token string) (*ValidationResult, error) {
	inv, err := e.invRepo.GetByToken(ctx, token)
	if errors.Is(err, repositories.ErrNotFound) {
		return &ValidationResult{Outcome: OutcomeNotFound}, nil
	}
	if err != nil {
		return nil, err
	}

	switch inv.Status {
	case entities.InvitationAccepted, entities.InvitationDeclined:
		return &ValidationResult{Outcome: OutcomeAlreadyConsumed, Invitation: inv}, nil
	case entities.InvitationRevoked:
		return &ValidationResult{Outcome: OutcomeRevoked, Invitation: inv}, nil
	case entities.InvitationExpired:
		return &ValidationResult{Outcome: OutcomeExpired, Invitation: inv}, nil
	}

	if inv.ExpiredAt(e.now()) {
		// Lazy expiry; losing this CAS to a concurrent redeemer is
		// fine, the redeemer's own CAS decides.
		if err := e.invRepo.UpdateStatus(ctx, inv.ID, entities.InvitationPending, entities.InvitationExpired); err != nil && !errors.Is(err, repositories.ErrAlreadyConsumed) {
			return nil, err
		}
		inv.Status = entities.InvitationExpired
		return &ValidationResult{Outcome: OutcomeExpired, Invitation: inv}, nil
	}

	if inv.UsesExhausted() {
		return &ValidationResult{Outcome: OutcomeExhaustedUses, Invitation: inv}, nil
	}

	return &ValidationResult{Outcome: OutcomeValid, Invitation: inv}, nil
}

// Redeem converts a valid token into a collaborator grant for the
// redeeming user. Named invitations are consumed on success; open
// links stay pending and only advance their use counter.
func (e *Engine) Redeem(ctx context.Context, token string, redeemer Redeemer) (*RedemptionResult, error) {
	validation, err := e.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	if !validation.Valid() {
		return &RedemptionResult{Outcome: validation.Outcome, Invitation: validation.Invitation}, nil
	}
	inv := validation.Invitation

	if email, ok := inv.Target.Email(); ok {
		if !strings.EqualFold(strings.TrimSpace(redeemer.VerifiedEmail), email) {
			return &RedemptionResult{Outcome: OutcomeEmailMismatch, Invitation: inv}, nil
		}
	}
	if targetUserID, ok := inv.Target.UserID(); ok {
		if targetUserID != redeemer.UserID {
			return &RedemptionResult{Outcome: OutcomeUserMismatch, Invitation: inv}, nil
		}
	}

	role, found, err := e.authorizer.EffectiveRole(ctx, redeemer.UserID, inv.CanvasID)
	if err != nil {
		return nil, err
	}
	if found {
		if role == entities.RoleOwner {
			return &RedemptionResult{Outcome: OutcomeIsOwner, Invitation: inv}, nil
		}
		return &RedemptionResult{Outcome: OutcomeAlreadyMember, Invitation: inv}, nil
	}

	// The conditional update is the atomic gate: exactly one concurrent
	// redeemer of a single-use token gets past it, and bounded open
	// links never exceed max_uses.
	err = e.invRepo.Consume(ctx, inv.ID, inv.SingleUse())
	switch {
	case errors.Is(err, repositories.ErrAlreadyConsumed):
		return &RedemptionResult{Outcome: OutcomeAlreadyConsumed, Invitation: inv}, nil
	case errors.Is(err, repositories.ErrUseLimitReached):
		return &RedemptionResult{Outcome: OutcomeExhaustedUses, Invitation: inv}, nil
	case errors.Is(err, repositories.ErrNotFound):
		return &RedemptionResult{Outcome: OutcomeNotFound}, nil
	case err != nil:
		return nil, err
	}

	grant, err := e.store.Grant(ctx, &access.GrantRequest{
		CanvasID:  inv.CanvasID,
		UserID:    redeemer.UserID,
		Role:      inv.Role,
		CanInvite: inv.CanInvite,
		GrantedBy: inv.CreatedBy,
		Actor:     redeemer.UserID,
		Action:    entities.ActionAccepted,
		Metadata:  map[string]string{"invitation_id": inv.ID},
	})
	if errors.Is(err, repositories.ErrDuplicateGrant) {
		// Lost a race against another path granting the same pair.
		return &RedemptionResult{Outcome: OutcomeAlreadyMember, Invitation: inv}, nil
	}
	if err != nil {
		return nil, err
	}

	inv.UseCount++
	if inv.SingleUse() {
		inv.Status = entities.InvitationAccepted
	}
	return &RedemptionResult{Outcome: OutcomeRedeemed, Invitation: inv, Grant: grant}, nil
}

// Decline marks a named invitation declined. Only its addressee may
// decline; open links have no addressee and cannot be declined.
func (e *Engine) Decline(ctx context.Context, token string, redeemer Redeemer) error {
	inv, err := e.invRepo.GetByToken(ctx, token)
	if err != nil {
		return err
	}

	switch inv.Target.Kind() {
	case entities.TargetEmail:
		email, _ := inv.Target.Email()
		if !strings.EqualFold(strings.TrimSpace(redeemer.VerifiedEmail), email) {
			return access.ErrForbidden
		}
	case entities.TargetUser:
		targetUserID, _ := inv.Target.UserID()
		if targetUserID != redeemer.UserID {
			return access.ErrForbidden
		}
	default:
		return access.ErrForbidden
	}

	if err := e.invRepo.UpdateStatus(ctx, inv.ID, entities.InvitationPending, entities.InvitationDeclined); err != nil {
		return err
	}

	email, _ := inv.Target.Email()
	targetUserID, _ := inv.Target.UserID()
	err = e.logRepo.Append(ctx, &entities.PermissionLogEntry{
		CanvasID: inv.CanvasID,
		UserID:   targetUserID,
		Email:    email,
		Action:   entities.ActionDeclined,
		ActorID:  redeemer.UserID,
		Metadata: map[string]string{"invitation_id": inv.ID},
	})
	if err != nil {
		return fmt.Errorf("decline committed but audit append failed: %w", err)
	}
	return nil
}

// Revoke marks an invitation revoked, terminally. Only the canvas
// owner or the original issuer may revoke.
func (e *Engine) Revoke(ctx context.Context, invitationID, actingUserID string) error {
	inv, err := e.invRepo.GetByID(ctx, invitationID)
	if err != nil {
		return err
	}

	if inv.CreatedBy != actingUserID {
		canvas, err := e.canvasRepo.GetByID(ctx, inv.CanvasID)
		if err != nil {
			return err
		}
		if !canvas.IsOwnedBy(actingUserID) {
			return access.ErrForbidden
		}
	}

	if err := e.invRepo.UpdateStatus(ctx, inv.ID, entities.InvitationPending, entities.InvitationRevoked); err != nil {
		return err
	}

	email, _ := inv.Target.Email()
	targetUserID, _ := inv.Target.UserID()
	err = e.logRepo.Append(ctx, &entities.PermissionLogEntry{
		CanvasID: inv.CanvasID,
		UserID:   targetUserID,
		Email:    email,
		Action:   entities.ActionRevoked,
		ActorID:  actingUserID,
		Metadata: map[string]string{"invitation_id": inv.ID},
	})
	if err != nil {
		return fmt.Errorf("revoke committed but audit append failed: %w", err)
	}
	return nil
}

// ListByCanvas returns the invitations for a canvas, newest first.
// Restricted to the owner and can_manage holders.
func (e *Engine) ListByCanvas(ctx context.Context, canvasID, actingUserID string) ([]*entities.Invitation, error) {
	if _, err := e.canvasRepo.GetByID(ctx, canvasID); err != nil {
		return nil, err
	}

	allowed, err := e.authorizer.CanManage(ctx, actingUserID, canvasID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, access.ErrForbidden
	}

	return e.invRepo.ListByCanvas(ctx, canvasID)
}

// ListPendingFor returns pending invitations addressed to the user.
func (e *Engine) ListPendingFor(ctx context.Context, userID, email string) ([]*entities.Invitation, error) {
	return e.invRepo.ListPendingFor(ctx, userID, strings.ToLower(strings.TrimSpace(email)))
}

// generateToken produces a cryptographically random token. Collisions
// are negligible at this entropy, but a uniqueness check before insert
// costs one indexed lookup.
func (e *Engine) generateToken(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 3; attempt++ {
		buf := make([]byte, e.config.TokenBytes)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate token: %w", err)
		}
		token := hex.EncodeToString(buf)

		exists, err := e.invRepo.TokenExists(ctx, token)
		if err != nil {
			return "", err
		}
		if !exists {
			return token, nil
		}
	}
	return "", fmt.Errorf("failed to generate a unique token")
}
