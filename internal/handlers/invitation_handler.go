package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hkcm91/stickernest-access/internal/entities"
	"github.com/hkcm91/stickernest-access/internal/infrastructure/metrics"
	"github.com/hkcm91/stickernest-access/internal/services/invitation"
)

// InvitationHandler serves invitation issuance, validation, redemption
// and lifecycle management.
type InvitationHandler struct {
	engine   invitation.EngineInterface
	exporter *metrics.PrometheusExporter // optional
}

// NewInvitationHandler creates a new InvitationHandler
func NewInvitationHandler(engine invitation.EngineInterface, exporter *metrics.PrometheusExporter) *InvitationHandler {
	return &InvitationHandler{engine: engine, exporter: exporter}
}

type invitationResponse struct {
	ID        string `json:"id"`
	CanvasID  string `json:"canvas_id"`
	Target    string `json:"target"`
	Email     string `json:"email,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Role      string `json:"role"`
	CanInvite bool   `json:"can_invite"`
	Token     string `json:"token"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
	MaxUses   *int   `json:"max_uses,omitempty"`
	UseCount  int    `json:"use_count"`
	CreatedBy string `json:"created_by"`
	CreatedAt string `json:"created_at"`
}

func toInvitationResponse(inv *entities.Invitation) *invitationResponse {
	resp := &invitationResponse{
		ID:        inv.ID,
		CanvasID:  inv.CanvasID,
		Target:    inv.Target.String(),
		Role:      string(inv.Role),
		CanInvite: inv.CanInvite,
		Token:     inv.Token,
		Status:    string(inv.Status),
		Message:   inv.Message,
		MaxUses:   inv.MaxUses,
		UseCount:  inv.UseCount,
		CreatedBy: inv.CreatedBy,
		CreatedAt: inv.CreatedAt.Format(time.RFC3339),
	}
	if email, ok := inv.Target.Email(); ok {
		resp.Email = email
	}
	if userID, ok := inv.Target.UserID(); ok {
		resp.UserID = userID
	}
	if inv.ExpiresAt != nil {
		resp.ExpiresAt = inv.ExpiresAt.Format(time.RFC3339)
	}
	return resp
}

// Create handles POST /canvases/{canvasID}/invitations. Exactly one of
// email and user_id may be set; neither makes an open shareable link.
func (h *InvitationHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())
	canvasID := chi.URLParam(r, "canvasID")

	var req struct {
		Email     string `json:"email"`
		UserID    string `json:"user_id"`
		Role      string `json:"role"`
		CanInvite bool   `json:"can_invite"`
		Message   string `json:"message"`
		ExpiresAt string `json:"expires_at"`
		MaxUses   *int   `json:"max_uses"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Email != "" && req.UserID != "" {
		respondError(w, http.StatusBadRequest, "email and user_id are mutually exclusive")
		return
	}
	var target entities.InvitationTarget
	switch {
	case req.Email != "":
		target = entities.EmailTarget(req.Email)
	case req.UserID != "":
		target = entities.UserTarget(req.UserID)
	default:
		target = entities.OpenLinkTarget()
	}

	role, err := entities.ParseRole(req.Role)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !role.Grantable() {
		respondError(w, http.StatusBadRequest, "role cannot be granted by invitation")
		return
	}
	if req.MaxUses != nil && *req.MaxUses < 1 {
		respondError(w, http.StatusBadRequest, "max_uses must be positive")
		return
	}

	var expiresAt *time.Time
	if req.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			respondError(w, http.StatusBadRequest, "expires_at must be RFC 3339")
			return
		}
		expiresAt = &t
	}

	inv, err := h.engine.Create(r.Context(), &invitation.CreateRequest{
		CanvasID:  canvasID,
		IssuerID:  identity.UserID,
		Target:    target,
		Role:      role,
		CanInvite: req.CanInvite,
		Message:   req.Message,
		ExpiresAt: expiresAt,
		MaxUses:   req.MaxUses,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, toInvitationResponse(inv))
}

// ListByCanvas handles GET /canvases/{canvasID}/invitations.
func (h *InvitationHandler) ListByCanvas(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())
	canvasID := chi.URLParam(r, "canvasID")

	invitations, err := h.engine.ListByCanvas(r.Context(), canvasID, identity.UserID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	out := make([]*invitationResponse, 0, len(invitations))
	for _, inv := range invitations {
		out = append(out, toInvitationResponse(inv))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"invitations": out})
}

// Peek handles GET /invitations/{token}: validation without
// consumption, so a client can render the invitation before accepting.
func (h *InvitationHandler) Peek(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	result, err := h.engine.Validate(r.Context(), token)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if !result.Valid() {
		respondOutcome(w, result.Outcome)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"outcome":    string(result.Outcome),
		"invitation": toInvitationResponse(result.Invitation),
	})
}

// Accept handles POST /invitations/{token}/accept.
func (h *InvitationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())
	token := chi.URLParam(r, "token")

	result, err := h.engine.Redeem(r.Context(), token, invitation.Redeemer{
		UserID:        identity.UserID,
		VerifiedEmail: identity.Email,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if h.exporter != nil {
		h.exporter.RecordRedemption(string(result.Outcome))
	}
	if !result.Redeemed() {
		respondOutcome(w, result.Outcome)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"outcome":   string(result.Outcome),
		"canvas_id": result.Grant.CanvasID,
		"role":      string(result.Grant.Role),
	})
}

// Decline handles POST /invitations/{token}/decline. Named invitations
// only; the caller must be the addressee.
func (h *InvitationHandler) Decline(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())
	token := chi.URLParam(r, "token")

	err := h.engine.Decline(r.Context(), token, invitation.Redeemer{
		UserID:        identity.UserID,
		VerifiedEmail: identity.Email,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Revoke handles DELETE /invitations/{invitationID}.
func (h *InvitationHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())
	invitationID := chi.URLParam(r, "invitationID")

	if err := h.engine.Revoke(r.Context(), invitationID, identity.UserID); err != nil {
		respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListMine handles GET /invitations/mine: pending invitations
// addressed to the caller's user id or verified email.
func (h *InvitationHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	identity, _ := IdentityFromContext(r.Context())

	invitations, err := h.engine.ListPendingFor(r.Context(), identity.UserID, identity.Email)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	out := make([]*invitationResponse, 0, len(invitations))
	for _, inv := range invitations {
		out = append(out, toInvitationResponse(inv))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"invitations": out})
}
