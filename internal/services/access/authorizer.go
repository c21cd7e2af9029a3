package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hkcm91/stickernest-access/internal/entities"
	"github.com/hkcm91/stickernest-access/internal/repositories"
	"github.com/hkcm91/stickernest-access/pkg/cache"
)

// AuthorizerInterface defines the interface for authorization checks.
// These predicates are the only gate used by every resource-access
// path; keeping them in one place avoids divergent ad hoc checks.
type AuthorizerInterface interface {
	CanAccess(ctx context.Context, userID, canvasID string, required entities.Role) (bool, error)
	CanInvite(ctx context.Context, userID, canvasID string) (bool, error)
	CanManage(ctx context.Context, userID, canvasID string) (bool, error)
	EffectiveRole(ctx context.Context, userID, canvasID string) (entities.Role, bool, error)
}

// Authorizer provides pure, side-effect-free authorization checks.
type Authorizer struct {
	canvasRepo repositories.CanvasRepository
	grantRepo  repositories.GrantRepository
	cache      cache.Cache   // Optional cache for grant lookups
	cacheTTL   time.Duration // TTL for cached roles
}

// NewAuthorizer creates a new Authorizer without caching
func NewAuthorizer(canvasRepo repositories.CanvasRepository, grantRepo repositories.GrantRepository) *Authorizer {
	return &Authorizer{
		canvasRepo: canvasRepo,
		grantRepo:  grantRepo,
	}
}

// NewAuthorizerWithCache creates a new Authorizer with grant-lookup caching.
// The cache must be flushed on grant mutations; Store does this.
func NewAuthorizerWithCache(
	canvasRepo repositories.CanvasRepository,
	grantRepo repositories.GrantRepository,
	c cache.Cache,
	cacheTTL time.Duration,
) *Authorizer {
	return &Authorizer{
		canvasRepo: canvasRepo,
		grantRepo:  grantRepo,
		cache:      c,
		cacheTTL:   cacheTTL,
	}
}

// EffectiveRole resolves the role actually applicable to a user for a
// canvas: owner if the user owns it, otherwise the grant role. The
// second return value is false when the user has no standing or the
// canvas does not exist; absence is a normal outcome, not an error.
func (a *Authorizer) EffectiveRole(ctx context.Context, userID, canvasID string) (entities.Role, bool, error) {
	canvas, err := a.canvasRepo.GetByID(ctx, canvasID)
	if errors.Is(err, repositories.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve canvas: %w", err)
	}

	if canvas.IsOwnedBy(userID) {
		return entities.RoleOwner, true, nil
	}

	grant, err := a.lookupGrant(ctx, canvasID, userID)
	if err != nil {
		return "", false, err
	}
	if grant == nil {
		return "", false, nil
	}
	return grant.Role, true, nil
}

// CanAccess reports whether the user may act on the canvas at the
// required role. Resolution order: public visibility grants a floor of
// read access to everyone, then ownership, then the grant role compared
// against the required role in the total order.
func (a *Authorizer) CanAccess(ctx context.Context, userID, canvasID string, required entities.Role) (bool, error) {
	if !required.Valid() {
		return false, fmt.Errorf("invalid required role: %q", required)
	}

	canvas, err := a.canvasRepo.GetByID(ctx, canvasID)
	if errors.Is(err, repositories.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to resolve canvas: %w", err)
	}

	// Visibility gives read access regardless of identity, including
	// anonymous callers with no user ID.
	if canvas.Visibility == entities.VisibilityPublic && required == entities.RoleViewer {
		return true, nil
	}

	if canvas.IsOwnedBy(userID) {
		return true, nil
	}

	grant, err := a.lookupGrant(ctx, canvasID, userID)
	if err != nil {
		return false, err
	}
	if grant == nil {
		return false, nil
	}
	return grant.Role.AtLeast(required), nil
}

// CanInvite reports whether the user may issue invitations on the canvas.
func (a *Authorizer) CanInvite(ctx context.Context, userID, canvasID string) (bool, error) {
	return a.checkFlag(ctx, userID, canvasID, func(g *entities.Grant) bool { return g.CanInvite })
}

// CanManage reports whether the user may change or remove other
// collaborators' grants on the canvas.
func (a *Authorizer) CanManage(ctx context.Context, userID, canvasID string) (bool, error) {
	return a.checkFlag(ctx, userID, canvasID, func(g *entities.Grant) bool { return g.CanManage })
}

func (a *Authorizer) checkFlag(ctx context.Context, userID, canvasID string, flag func(*entities.Grant) bool) (bool, error) {
	canvas, err := a.canvasRepo.GetByID(ctx, canvasID)
	if errors.Is(err, repositories.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to resolve canvas: %w", err)
	}

	if canvas.IsOwnedBy(userID) {
		return true, nil
	}

	grant, err := a.lookupGrant(ctx, canvasID, userID)
	if err != nil {
		return false, err
	}
	if grant == nil {
		return false, nil
	}
	return flag(grant), nil
}

// lookupGrant fetches the grant for the pair, consulting the cache
// first. A nil grant without error means no grant exists.
func (a *Authorizer) lookupGrant(ctx context.Context, canvasID, userID string) (*entities.Grant, error) {
	if userID == "" {
		return nil, nil
	}

	key := grantCacheKey(canvasID, userID)
	if a.cache != nil {
		if cached, found := a.cache.Get(ctx, key); found {
			if grant, ok := cached.(*entities.Grant); ok {
				return grant, nil
			}
			// The negative marker caches "no grant"
			return nil, nil
		}
	}

	grant, err := a.grantRepo.GetByCanvasAndUser(ctx, canvasID, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		if a.cache != nil {
			_ = a.cache.Set(ctx, key, "none", a.cacheTTL)
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up grant: %w", err)
	}

	if a.cache != nil {
		_ = a.cache.Set(ctx, key, grant, a.cacheTTL)
	}
	return grant, nil
}

func grantCacheKey(canvasID, userID string) string {
	return "grant:" + canvasID + ":" + userID
}
