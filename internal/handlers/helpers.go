package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hkcm91/stickernest-access/internal/repositories"
	"github.com/hkcm91/stickernest-access/internal/services/access"
	"github.com/hkcm91/stickernest-access/internal/services/invitation"
)

// === Shared response helpers for all handlers ===

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// decodeJSON parses the request body into dst. On failure it writes a
// 400 and returns false; callers should return immediately.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// respondServiceError translates typed service and repository errors
// into HTTP responses. Anything unrecognized is an infrastructure
// failure and surfaces as a 500.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, access.ErrForbidden):
		respondError(w, http.StatusForbidden, "you do not have permission to do this")
	case errors.Is(err, access.ErrInvalidActor):
		respondError(w, http.StatusForbidden, "the granting actor lacks invite authority")
	case errors.Is(err, access.ErrOwnerGrant):
		respondError(w, http.StatusForbidden, "the canvas owner already has full access")
	case errors.Is(err, repositories.ErrDuplicateGrant):
		respondError(w, http.StatusConflict, "this user already has access to the canvas")
	case errors.Is(err, repositories.ErrAlreadyConsumed):
		respondError(w, http.StatusConflict, "this invitation is no longer pending")
	case errors.Is(err, repositories.ErrUseLimitReached):
		respondError(w, http.StatusGone, "this invitation has reached its use limit")
	default:
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// outcomeStatuses maps the non-success validation/redemption outcomes
// to HTTP statuses and messages specific enough for the caller to act
// on.
var outcomeStatuses = map[invitation.Outcome]struct {
	status  int
	message string
}{
	invitation.OutcomeNotFound:        {http.StatusNotFound, "this invitation does not exist"},
	invitation.OutcomeAlreadyConsumed: {http.StatusConflict, "this invitation has already been used"},
	invitation.OutcomeRevoked:         {http.StatusConflict, "this invitation has been revoked"},
	invitation.OutcomeExpired:         {http.StatusGone, "this invitation has expired"},
	invitation.OutcomeExhaustedUses:   {http.StatusGone, "this invitation has reached its use limit"},
	invitation.OutcomeEmailMismatch:   {http.StatusForbidden, "this invitation was sent to a different email address"},
	invitation.OutcomeUserMismatch:    {http.StatusForbidden, "this invitation was sent to a different user"},
	invitation.OutcomeAlreadyMember:   {http.StatusConflict, "you already have access to this canvas"},
	invitation.OutcomeIsOwner:         {http.StatusForbidden, "you already own this canvas"},
}

// respondOutcome writes the HTTP rendering of a non-success outcome.
func respondOutcome(w http.ResponseWriter, outcome invitation.Outcome) {
	mapping, ok := outcomeStatuses[outcome]
	if !ok {
		respondError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	respondJSON(w, mapping.status, map[string]string{
		"outcome": string(outcome),
		"error":   mapping.message,
	})
}
