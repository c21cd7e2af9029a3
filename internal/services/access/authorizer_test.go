package access

import (
	"context"
	"testing"
	"time"

	"github.com/hkcm91/stickernest-access/internal/entities"
	"github.com/hkcm91/stickernest-access/pkg/cache/memorycache"
)

func seedCanvas(t *testing.T, repo *fakeCanvasRepo, id, ownerID string, visibility entities.Visibility) {
	t.Helper()
	if err := repo.Create(context.Background(), &entities.Canvas{
		ID:         id,
		OwnerID:    ownerID,
		Visibility: visibility,
	}); err != nil {
		t.Fatalf("failed to seed canvas: %v", err)
	}
}

func seedGrant(t *testing.T, repo *fakeGrantRepo, canvasID, userID string, role entities.Role, canInvite, canManage bool) {
	t.Helper()
	if err := repo.Create(context.Background(), &entities.Grant{
		ID:        canvasID + "-" + userID,
		CanvasID:  canvasID,
		UserID:    userID,
		Role:      role,
		CanInvite: canInvite,
		CanManage: canManage,
		GrantedBy: "owner",
	}); err != nil {
		t.Fatalf("failed to seed grant: %v", err)
	}
}

func TestAuthorizerCanAccess(t *testing.T) {
	canvasRepo := newFakeCanvasRepo()
	grantRepo := newFakeGrantRepo()

	seedCanvas(t, canvasRepo, "private-canvas", "owner", entities.VisibilityPrivate)
	seedCanvas(t, canvasRepo, "public-canvas", "owner", entities.VisibilityPublic)
	seedCanvas(t, canvasRepo, "unlisted-canvas", "owner", entities.VisibilityUnlisted)
	seedGrant(t, grantRepo, "private-canvas", "viewer-user", entities.RoleViewer, false, false)
	seedGrant(t, grantRepo, "private-canvas", "editor-user", entities.RoleEditor, false, false)
	seedGrant(t, grantRepo, "public-canvas", "editor-user", entities.RoleEditor, false, false)

	authorizer := NewAuthorizer(canvasRepo, grantRepo)

	tests := []struct {
		name     string
		userID   string
		canvasID string
		required entities.Role
		want     bool
	}{
		{"owner has viewer access", "owner", "private-canvas", entities.RoleViewer, true},
		{"owner has editor access", "owner", "private-canvas", entities.RoleEditor, true},
		{"owner has owner access", "owner", "private-canvas", entities.RoleOwner, true},
		{"viewer grant allows viewing", "viewer-user", "private-canvas", entities.RoleViewer, true},
		{"viewer grant denies editing", "viewer-user", "private-canvas", entities.RoleEditor, false},
		{"editor grant allows viewing", "editor-user", "private-canvas", entities.RoleViewer, true},
		{"editor grant allows editing", "editor-user", "private-canvas", entities.RoleEditor, true},
		{"editor grant denies owner level", "editor-user", "private-canvas", entities.RoleOwner, false},
		{"stranger denied on private", "stranger", "private-canvas", entities.RoleViewer, false},
		{"stranger denied on unlisted", "stranger", "unlisted-canvas", entities.RoleViewer, false},
		{"stranger can view public", "stranger", "public-canvas", entities.RoleViewer, true},
		{"stranger cannot edit public", "stranger", "public-canvas", entities.RoleEditor, false},
		{"anonymous can view public", "", "public-canvas", entities.RoleViewer, true},
		{"anonymous denied on private", "", "private-canvas", entities.RoleViewer, false},
		{"public floor does not bypass editor grant", "editor-user", "public-canvas", entities.RoleEditor, true},
		{"missing canvas denied", "owner", "missing", entities.RoleViewer, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := authorizer.CanAccess(context.Background(), tt.userID, tt.canvasID, tt.required)
			if err != nil {
				t.Fatalf("CanAccess returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("CanAccess(%q, %q, %q) = %v, want %v", tt.userID, tt.canvasID, tt.required, got, tt.want)
			}
		})
	}
}

func TestAuthorizerCanAccessInvalidRole(t *testing.T) {
	authorizer := NewAuthorizer(newFakeCanvasRepo(), newFakeGrantRepo())

	if _, err := authorizer.CanAccess(context.Background(), "user", "canvas", entities.Role("admin")); err == nil {
		t.Error("expected error for invalid required role")
	}
}

func TestAuthorizerFlags(t *testing.T) {
	canvasRepo := newFakeCanvasRepo()
	grantRepo := newFakeGrantRepo()

	seedCanvas(t, canvasRepo, "canvas-1", "owner", entities.VisibilityPrivate)
	seedGrant(t, grantRepo, "canvas-1", "inviter", entities.RoleEditor, true, false)
	seedGrant(t, grantRepo, "canvas-1", "manager", entities.RoleEditor, true, true)
	seedGrant(t, grantRepo, "canvas-1", "plain-editor", entities.RoleEditor, false, false)

	authorizer := NewAuthorizer(canvasRepo, grantRepo)

	tests := []struct {
		name       string
		userID     string
		wantInvite bool
		wantManage bool
	}{
		{"owner holds both flags implicitly", "owner", true, true},
		{"can_invite without can_manage", "inviter", true, false},
		{"manager holds both", "manager", true, true},
		{"plain editor holds neither", "plain-editor", false, false},
		{"stranger holds neither", "stranger", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotInvite, err := authorizer.CanInvite(context.Background(), tt.userID, "canvas-1")
			if err != nil {
				t.Fatalf("CanInvite returned error: %v", err)
			}
			if gotInvite != tt.wantInvite {
				t.Errorf("CanInvite(%q) = %v, want %v", tt.userID, gotInvite, tt.wantInvite)
			}

			gotManage, err := authorizer.CanManage(context.Background(), tt.userID, "canvas-1")
			if err != nil {
				t.Fatalf("CanManage returned error: %v", err)
			}
			if gotManage != tt.wantManage {
				t.Errorf("CanManage(%q) = %v, want %v", tt.userID, gotManage, tt.wantManage)
			}
		})
	}
}

func TestAuthorizerEffectiveRole(t *testing.T) {
	canvasRepo := newFakeCanvasRepo()
	grantRepo := newFakeGrantRepo()

	seedCanvas(t, canvasRepo, "canvas-1", "owner", entities.VisibilityPublic)
	seedGrant(t, grantRepo, "canvas-1", "viewer-user", entities.RoleViewer, false, false)

	authorizer := NewAuthorizer(canvasRepo, grantRepo)

	tests := []struct {
		name      string
		userID    string
		canvasID  string
		wantRole  entities.Role
		wantFound bool
	}{
		{"owner resolves to owner", "owner", "canvas-1", entities.RoleOwner, true},
		{"grant resolves to grant role", "viewer-user", "canvas-1", entities.RoleViewer, true},
		// Public visibility grants access but no standing.
		{"stranger has no standing", "stranger", "canvas-1", "", false},
		{"missing canvas has no standing", "owner", "missing", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			role, found, err := authorizer.EffectiveRole(context.Background(), tt.userID, tt.canvasID)
			if err != nil {
				t.Fatalf("EffectiveRole returned error: %v", err)
			}
			if found != tt.wantFound || role != tt.wantRole {
				t.Errorf("EffectiveRole(%q, %q) = (%q, %v), want (%q, %v)",
					tt.userID, tt.canvasID, role, found, tt.wantRole, tt.wantFound)
			}
		})
	}
}

func TestAuthorizerCachesGrantLookups(t *testing.T) {
	canvasRepo := newFakeCanvasRepo()
	grantRepo := newFakeGrantRepo()
	roleCache := memorycache.New(memorycache.Config{MaxSizeBytes: 1024 * 1024})
	defer roleCache.Close()

	seedCanvas(t, canvasRepo, "canvas-1", "owner", entities.VisibilityPrivate)
	seedGrant(t, grantRepo, "canvas-1", "editor-user", entities.RoleEditor, false, false)

	authorizer := NewAuthorizerWithCache(canvasRepo, grantRepo, roleCache, time.Minute)

	allowed, err := authorizer.CanAccess(context.Background(), "editor-user", "canvas-1", entities.RoleEditor)
	if err != nil {
		t.Fatalf("CanAccess returned error: %v", err)
	}
	if !allowed {
		t.Fatal("expected editor access before cache")
	}

	// Remove the grant behind the cache's back; the cached entry should
	// still answer until it is flushed.
	if err := grantRepo.Delete(context.Background(), "canvas-1", "editor-user"); err != nil {
		t.Fatalf("failed to delete grant: %v", err)
	}

	allowed, err = authorizer.CanAccess(context.Background(), "editor-user", "canvas-1", entities.RoleEditor)
	if err != nil {
		t.Fatalf("CanAccess returned error: %v", err)
	}
	if !allowed {
		t.Error("expected cached grant to answer after repository delete")
	}

	if err := roleCache.Clear(context.Background()); err != nil {
		t.Fatalf("failed to clear cache: %v", err)
	}

	allowed, err = authorizer.CanAccess(context.Background(), "editor-user", "canvas-1", entities.RoleEditor)
	if err != nil {
		t.Fatalf("CanAccess returned error: %v", err)
	}
	if allowed {
		t.Error("expected access denied after cache flush")
	}
}

func TestAuthorizerNegativeCaching(t *testing.T) {
	canvasRepo := newFakeCanvasRepo()
	grantRepo := newFakeGrantRepo()
	roleCache := memorycache.New(memorycache.Config{MaxSizeBytes: 1024 * 1024})
	defer roleCache.Close()

	seedCanvas(t, canvasRepo, "canvas-1", "owner", entities.VisibilityPrivate)

	authorizer := NewAuthorizerWithCache(canvasRepo, grantRepo, roleCache, time.Minute)

	allowed, err := authorizer.CanAccess(context.Background(), "stranger", "canvas-1", entities.RoleViewer)
	if err != nil {
		t.Fatalf("CanAccess returned error: %v", err)
	}
	if allowed {
		t.Fatal("expected stranger denied")
	}

	// A grant created behind the cache is not visible until the flush.
	seedGrant(t, grantRepo, "canvas-1", "stranger", entities.RoleViewer, false, false)

	allowed, err = authorizer.CanAccess(context.Background(), "stranger", "canvas-1", entities.RoleViewer)
	if err != nil {
		t.Fatalf("CanAccess returned error: %v", err)
	}
	if allowed {
		t.Error("expected negative cache entry to answer until flushed")
	}
}
