package access

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hkcm91/stickernest-access/internal/entities"
	"github.com/hkcm91/stickernest-access/internal/repositories"
	"github.com/hkcm91/stickernest-access/pkg/cache"
)

// StoreInterface defines the interface for collaborator grant management
type StoreInterface interface {
	Grant(ctx context.Context, req *GrantRequest) (*entities.Grant, error)
	UpdateRole(ctx context.Context, req *UpdateRoleRequest) (*entities.Grant, error)
	Revoke(ctx context.Context, canvasID, userID, actingUserID string) error
	ListCollaborators(ctx context.Context, canvasID string) ([]*Collaborator, error)
	ListAudit(ctx context.Context, canvasID, actingUserID string, limit int) ([]*entities.PermissionLogEntry, error)
}

// GrantRequest contains the parameters for creating a grant.
type GrantRequest struct {
	CanvasID  string
	UserID    string
	Role      entities.Role
	CanInvite bool
	CanManage bool
	GrantedBy string
	// Actor is the user recorded as the audit actor; defaults to
	// GrantedBy. Redemption sets this to the redeeming user while the
	// grant itself is attributed to the inviter.
	Actor string
	// Action is the audit action recorded for the grant; defaults to
	// accepted (grants normally come from invitation redemption).
	Action entities.LogAction
	// Metadata is attached to the audit entry.
	Metadata map[string]string
}

// UpdateRoleRequest contains the parameters for changing a grant.
type UpdateRoleRequest struct {
	CanvasID     string
	UserID       string
	NewRole      entities.Role
	CanInvite    bool
	CanManage    bool
	ActingUserID string
}

// Collaborator is one entry of a canvas collaborator listing.
// The owner appears first with an implicit owner role.
type Collaborator struct {
	UserID    string
	Role      entities.Role
	CanInvite bool
	CanManage bool
	GrantedBy string
	GrantedAt time.Time
	IsOwner   bool
}

// Store is the durable source of truth for who can do what on which
// canvas. Every mutation appends a permission log entry and flushes the
// effective-role cache.
type Store struct {
	canvasRepo repositories.CanvasRepository
	grantRepo  repositories.GrantRepository
	logRepo    repositories.PermissionLogRepository
	authorizer AuthorizerInterface
	cache      cache.Cache // Optional; flushed on mutation
}

// NewStore creates a new Store
func NewStore(
	canvasRepo repositories.CanvasRepository,
	grantRepo repositories.GrantRepository,
	logRepo repositories.PermissionLogRepository,
	authorizer AuthorizerInterface,
	c cache.Cache,
) *Store {
	return &Store{
		canvasRepo: canvasRepo,
		grantRepo:  grantRepo,
		logRepo:    logRepo,
		authorizer: authorizer,
		cache:      c,
	}
}

// Grant creates a collaborator grant. The granting actor must hold
// invite authority; an existing grant for the pair fails with
// ErrDuplicateGrant rather than being silently overwritten.
func (s *Store) Grant(ctx context.Context, req *GrantRequest) (*entities.Grant, error) {
	canvas, err := s.canvasRepo.GetByID(ctx, req.CanvasID)
	if err != nil {
		return nil, err
	}

	if canvas.IsOwnedBy(req.UserID) {
		return nil, ErrOwnerGrant
	}

	allowed, err := s.authorizer.CanInvite(ctx, req.GrantedBy, req.CanvasID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrInvalidActor
	}

	grant := &entities.Grant{
		ID:        uuid.NewString(),
		CanvasID:  req.CanvasID,
		UserID:    req.UserID,
		Role:      req.Role,
		CanInvite: req.CanInvite,
		CanManage: req.CanManage,
		GrantedBy: req.GrantedBy,
	}
	if err := s.grantRepo.Create(ctx, grant); err != nil {
		return nil, err
	}

	s.flushCache(ctx)

	action := req.Action
	if action == "" {
		action = entities.ActionAccepted
	}
	actor := req.Actor
	if actor == "" {
		actor = req.GrantedBy
	}
	err = s.logRepo.Append(ctx, &entities.PermissionLogEntry{
		CanvasID: req.CanvasID,
		UserID:   req.UserID,
		Action:   action,
		NewRole:  req.Role,
		ActorID:  actor,
		Metadata: req.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("grant committed but audit append failed: %w", err)
	}

	return grant, nil
}

// UpdateRole changes the role and flags of an existing grant. Only the
// canvas owner or a can_manage holder may do this, and the owner's
// implicit grant can never be created or changed through it.
func (s *Store) UpdateRole(ctx context.Context, req *UpdateRoleRequest) (*entities.Grant, error) {
	canvas, err := s.canvasRepo.GetByID(ctx, req.CanvasID)
	if err != nil {
		return nil, err
	}

	if canvas.IsOwnedBy(req.UserID) {
		return nil, ErrOwnerGrant
	}
	if !req.NewRole.Grantable() {
		return nil, fmt.Errorf("role %q is not grantable", req.NewRole)
	}

	allowed, err := s.authorizer.CanManage(ctx, req.ActingUserID, req.CanvasID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrForbidden
	}

	grant, err := s.grantRepo.GetByCanvasAndUser(ctx, req.CanvasID, req.UserID)
	if err != nil {
		return nil, err
	}

	oldRole := grant.Role
	grant.Role = req.NewRole
	grant.CanInvite = req.CanInvite
	grant.CanManage = req.CanManage
	if err := s.grantRepo.Update(ctx, grant); err != nil {
		return nil, err
	}

	s.flushCache(ctx)

	err = s.logRepo.Append(ctx, &entities.PermissionLogEntry{
		CanvasID: req.CanvasID,
		UserID:   req.UserID,
		Action:   entities.ActionRoleChanged,
		OldRole:  oldRole,
		NewRole:  req.NewRole,
		ActorID:  req.ActingUserID,
	})
	if err != nil {
		return nil, fmt.Errorf("update committed but audit append failed: %w", err)
	}

	return grant, nil
}

// Revoke removes a grant. The grantee may remove their own grant
// ("leaving"); otherwise the actor must be the owner or a can_manage
// holder. The audit action records which of the two happened.
func (s *Store) Revoke(ctx context.Context, canvasID, userID, actingUserID string) error {
	if _, err := s.canvasRepo.GetByID(ctx, canvasID); err != nil {
		return err
	}

	selfRemoval := actingUserID == userID
	if !selfRemoval {
		allowed, err := s.authorizer.CanManage(ctx, actingUserID, canvasID)
		if err != nil {
			return err
		}
		if !allowed {
			return ErrForbidden
		}
	}

	if err := s.grantRepo.Delete(ctx, canvasID, userID); err != nil {
		return err
	}

	s.flushCache(ctx)

	action := entities.ActionRemoved
	if selfRemoval {
		action = entities.ActionLeft
	}
	err := s.logRepo.Append(ctx, &entities.PermissionLogEntry{
		CanvasID: canvasID,
		UserID:   userID,
		Action:   action,
		ActorID:  actingUserID,
	})
	if err != nil {
		return fmt.Errorf("revoke committed but audit append failed: %w", err)
	}

	return nil
}

// ListCollaborators returns the owner first, then collaborators ordered
// by role descending, then grant time ascending. The ordering is stable
// and deterministic so callers can assert exact output.
func (s *Store) ListCollaborators(ctx context.Context, canvasID string) ([]*Collaborator, error) {
	canvas, err := s.canvasRepo.GetByID(ctx, canvasID)
	if err != nil {
		return nil, err
	}

	grants, err := s.grantRepo.ListByCanvas(ctx, canvasID)
	if err != nil {
		return nil, err
	}

	collaborators := make([]*Collaborator, 0, len(grants)+1)
	collaborators = append(collaborators, &Collaborator{
		UserID:    canvas.OwnerID,
		Role:      entities.RoleOwner,
		CanInvite: true,
		CanManage: true,
		GrantedAt: canvas.CreatedAt,
		IsOwner:   true,
	})
	for _, grant := range grants {
		collaborators = append(collaborators, &Collaborator{
			UserID:    grant.UserID,
			Role:      grant.Role,
			CanInvite: grant.CanInvite,
			CanManage: grant.CanManage,
			GrantedBy: grant.GrantedBy,
			GrantedAt: grant.CreatedAt,
		})
	}

	return collaborators, nil
}

// ListAudit returns the permission log for a canvas, newest first.
// Only the owner or a can_manage holder may read it.
func (s *Store) ListAudit(ctx context.Context, canvasID, actingUserID string, limit int) ([]*entities.PermissionLogEntry, error) {
	if _, err := s.canvasRepo.GetByID(ctx, canvasID); err != nil {
		return nil, err
	}

	allowed, err := s.authorizer.CanManage(ctx, actingUserID, canvasID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrForbidden
	}

	return s.logRepo.ListByCanvas(ctx, canvasID, limit)
}

func (s *Store) flushCache(ctx context.Context) {
	if s.cache != nil {
		_ = s.cache.Clear(ctx)
	}
}
