package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hkcm91/stickernest-access/internal/entities"
	"github.com/hkcm91/stickernest-access/internal/infrastructure/metrics"
	"github.com/hkcm91/stickernest-access/internal/repositories"
	"github.com/hkcm91/stickernest-access/internal/services/access"
)

// CanvasHandler serves canvas resources, collaborator management and
// the permission audit log.
type CanvasHandler struct {
	canvasRepo repositories.CanvasRepository
	authorizer access.AuthorizerInterface
	store      access.StoreInterface
	exporter   *metrics.PrometheusExporter // optional
}

// NewCanvasHandler creates a new CanvasHandler
func NewCanvasHandler(
	canvasRepo repositories.CanvasRepository,
	authorizer access.AuthorizerInterface,
	store access.StoreInterface,
	exporter *metrics.PrometheusExporter,
) *CanvasHandler {
	return &CanvasHandler{
		canvasRepo: canvasRepo,
		authorizer: authorizer,
		store:      store,
		exporter:   exporter,
	}
}

type canvasResponse struct {
	ID         string `json:"id"`
	OwnerID    string `json:"owner_id"`
	Visibility string `json:"visibility"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

func toCanvasResponse(c *entities.Canvas) *canvasResponse {
	return &canvasResponse{
		ID:         c.ID,
		OwnerID:    c.OwnerID,
		Visibility: string(c.Visibility),
		CreatedAt:  c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  c.UpdatedAt.Format(time.RFC3339),
	}
}

// Create handles POST /canvases. The caller becomes the owner.
func (h *CanvasHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req struct {
		Visibility string `json:"visibility"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	visibility := entities.Visibility(req.Visibility)
	if req.Visibility == "" {
		visibility = entities.VisibilityPrivate
	}
	if !visibility.Valid() {
		respondError(w, http.StatusBadRequest, "invalid visibility")
		return
	}

	canvas := &entities.Canvas{
		ID:         uuid.NewString(),
		OwnerID:    identity.UserID,
		Visibility: visibility,
	}
	if err := h.canvasRepo.Create(r.Context(), canvas); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, toCanvasResponse(canvas))
}

// Get handles GET /canvases/{canvasID}. Requires viewer access; the
// public visibility floor applies.
func (h *CanvasHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())
	canvasID := chi.URLParam(r, "canvasID")

	canvas, err := h.canvasRepo.GetByID(r.Context(), canvasID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	allowed, err := h.authorizer.CanAccess(r.Context(), identity.UserID, canvasID, entities.RoleViewer)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if h.exporter != nil {
		h.exporter.RecordAccessCheck(allowed)
	}
	if !allowed {
		respondError(w, http.StatusForbidden, "you do not have access to this canvas")
		return
	}

	respondJSON(w, http.StatusOK, toCanvasResponse(canvas))
}

// UpdateVisibility handles PATCH /canvases/{canvasID}/visibility.
// Owner only.
func (h *CanvasHandler) UpdateVisibility(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())
	canvasID := chi.URLParam(r, "canvasID")

	var req struct {
		Visibility string `json:"visibility"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	visibility := entities.Visibility(req.Visibility)
	if !visibility.Valid() {
		respondError(w, http.StatusBadRequest, "invalid visibility")
		return
	}

	canvas, err := h.canvasRepo.GetByID(r.Context(), canvasID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if !canvas.IsOwnedBy(identity.UserID) {
		respondError(w, http.StatusForbidden, "only the owner can change visibility")
		return
	}

	if err := h.canvasRepo.UpdateVisibility(r.Context(), canvasID, visibility); err != nil {
		respondServiceError(w, err)
		return
	}

	canvas.Visibility = visibility
	respondJSON(w, http.StatusOK, toCanvasResponse(canvas))
}

type collaboratorResponse struct {
	UserID    string `json:"user_id"`
	Role      string `json:"role"`
	CanInvite bool   `json:"can_invite"`
	CanManage bool   `json:"can_manage"`
	GrantedBy string `json:"granted_by,omitempty"`
	GrantedAt string `json:"granted_at"`
	IsOwner   bool   `json:"is_owner"`
}

// ListCollaborators handles GET /canvases/{canvasID}/collaborators.
// Requires viewer access; the owner appears first.
func (h *CanvasHandler) ListCollaborators(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())
	canvasID := chi.URLParam(r, "canvasID")

	allowed, err := h.authorizer.CanAccess(r.Context(), identity.UserID, canvasID, entities.RoleViewer)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if !allowed {
		respondError(w, http.StatusForbidden, "you do not have access to this canvas")
		return
	}

	collaborators, err := h.store.ListCollaborators(r.Context(), canvasID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	out := make([]*collaboratorResponse, 0, len(collaborators))
	for _, c := range collaborators {
		out = append(out, &collaboratorResponse{
			UserID:    c.UserID,
			Role:      string(c.Role),
			CanInvite: c.CanInvite,
			CanManage: c.CanManage,
			GrantedBy: c.GrantedBy,
			GrantedAt: c.GrantedAt.Format(time.RFC3339),
			IsOwner:   c.IsOwner,
		})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"collaborators": out})
}

// UpdateCollaborator handles
// PATCH /canvases/{canvasID}/collaborators/{userID}.
func (h *CanvasHandler) UpdateCollaborator(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())
	canvasID := chi.URLParam(r, "canvasID")
	userID := chi.URLParam(r, "userID")

	var req struct {
		Role      string `json:"role"`
		CanInvite bool   `json:"can_invite"`
		CanManage bool   `json:"can_manage"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	role, err := entities.ParseRole(req.Role)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	grant, err := h.store.UpdateRole(r.Context(), &access.UpdateRoleRequest{
		CanvasID:     canvasID,
		UserID:       userID,
		NewRole:      role,
		CanInvite:    req.CanInvite,
		CanManage:    req.CanManage,
		ActingUserID: identity.UserID,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if h.exporter != nil {
		h.exporter.RecordGrantChange(string(entities.ActionRoleChanged))
	}

	respondJSON(w, http.StatusOK, &collaboratorResponse{
		UserID:    grant.UserID,
		Role:      string(grant.Role),
		CanInvite: grant.CanInvite,
		CanManage: grant.CanManage,
		GrantedBy: grant.GrantedBy,
		GrantedAt: grant.CreatedAt.Format(time.RFC3339),
	})
}

// RemoveCollaborator handles
// DELETE /canvases/{canvasID}/collaborators/{userID}. A collaborator
// may remove themselves; removing others requires manage authority.
func (h *CanvasHandler) RemoveCollaborator(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())
	canvasID := chi.URLParam(r, "canvasID")
	userID := chi.URLParam(r, "userID")

	if err := h.store.Revoke(r.Context(), canvasID, userID, identity.UserID); err != nil {
		respondServiceError(w, err)
		return
	}
	if h.exporter != nil {
		action := entities.ActionRemoved
		if identity.UserID == userID {
			action = entities.ActionLeft
		}
		h.exporter.RecordGrantChange(string(action))
	}

	w.WriteHeader(http.StatusNoContent)
}

type auditEntryResponse struct {
	ID        int64             `json:"id"`
	CanvasID  string            `json:"canvas_id"`
	UserID    string            `json:"user_id,omitempty"`
	Email     string            `json:"email,omitempty"`
	Action    string            `json:"action"`
	OldRole   string            `json:"old_role,omitempty"`
	NewRole   string            `json:"new_role,omitempty"`
	ActorID   string            `json:"actor_id"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt string            `json:"created_at"`
}

// ListAudit handles GET /canvases/{canvasID}/audit. Owner or manage
// authority only; newest entries first.
func (h *CanvasHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())
	canvasID := chi.URLParam(r, "canvasID")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	entries, err := h.store.ListAudit(r.Context(), canvasID, identity.UserID, limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	out := make([]*auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, &auditEntryResponse{
			ID:        e.ID,
			CanvasID:  e.CanvasID,
			UserID:    e.UserID,
			Email:     e.Email,
			Action:    string(e.Action),
			OldRole:   string(e.OldRole),
			NewRole:   string(e.NewRole),
			ActorID:   e.ActorID,
			Metadata:  e.Metadata,
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"entries": out})
}
