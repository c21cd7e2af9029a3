package invitation

import "github.com/hkcm91/stickernest-access/internal/entities"

// Outcome classifies the result of validating or redeeming a token.
// Every value other than valid/redeemed is an expected outcome of
// normal usage, returned as data rather than an error.
type Outcome string

const (
	OutcomeValid           Outcome = "valid"
	OutcomeRedeemed        Outcome = "redeemed"
	OutcomeNotFound        Outcome = "not_found"
	OutcomeAlreadyConsumed Outcome = "already_consumed"
	OutcomeRevoked         Outcome = "revoked"
	OutcomeExpired         Outcome = "expired"
	OutcomeExhaustedUses   Outcome = "exhausted_uses"
	OutcomeEmailMismatch   Outcome = "email_mismatch"
	OutcomeUserMismatch    Outcome = "user_mismatch"
	OutcomeAlreadyMember   Outcome = "already_member"
	OutcomeIsOwner         Outcome = "is_owner"
)

// ValidationResult is the discriminated result of a token validation.
type ValidationResult struct {
	Outcome    Outcome
	Invitation *entities.Invitation // set whenever the token resolved to an invitation
}

// Valid reports whether the token passed every check.
func (r *ValidationResult) Valid() bool {
	return r.Outcome == OutcomeValid
}

// RedemptionResult is the discriminated result of a redemption attempt.
type RedemptionResult struct {
	Outcome    Outcome
	Invitation *entities.Invitation
	Grant      *entities.Grant // set on success
}

// Redeemed reports whether a grant was created.
func (r *RedemptionResult) Redeemed() bool {
	return r.Outcome == OutcomeRedeemed
}
