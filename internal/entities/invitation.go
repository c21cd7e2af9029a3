package entities

import (
	"fmt"
	"strings"
	"time"
)

// InvitationStatus is the lifecycle state of an invitation.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
	InvitationExpired  InvitationStatus = "expired"
	InvitationRevoked  InvitationStatus = "revoked"
)

// TargetKind discriminates the three invitation target variants.
type TargetKind int

const (
	// TargetOpenLink is a shareable link redeemable by any user holding
	// the token, up to usage/expiry limits.
	TargetOpenLink TargetKind = iota
	// TargetEmail restricts redemption to a user with a matching
	// verified email address.
	TargetEmail
	// TargetUser restricts redemption to a specific user ID.
	TargetUser
)

// InvitationTarget identifies who may redeem an invitation.
// Exactly one variant is set; the zero value is an open link.
type InvitationTarget struct {
	kind   TargetKind
	email  string
	userID string
}

// OpenLinkTarget returns a target redeemable by anyone holding the token.
func OpenLinkTarget() InvitationTarget {
	return InvitationTarget{kind: TargetOpenLink}
}

// EmailTarget returns a target bound to a verified email address.
func EmailTarget(email string) InvitationTarget {
	return InvitationTarget{kind: TargetEmail, email: strings.ToLower(strings.TrimSpace(email))}
}

// UserTarget returns a target bound to a specific user ID.
func UserTarget(userID string) InvitationTarget {
	return InvitationTarget{kind: TargetUser, userID: userID}
}

// Kind returns the target variant.
func (t InvitationTarget) Kind() TargetKind {
	return t.kind
}

// Email returns the target email and whether this is an email target.
func (t InvitationTarget) Email() (string, bool) {
	return t.email, t.kind == TargetEmail
}

// UserID returns the target user ID and whether this is a user target.
func (t InvitationTarget) UserID() (string, bool) {
	return t.userID, t.kind == TargetUser
}

// String returns a string representation of the target
func (t InvitationTarget) String() string {
	switch t.kind {
	case TargetEmail:
		return fmt.Sprintf("email:%s", t.email)
	case TargetUser:
		return fmt.Sprintf("user:%s", t.userID)
	default:
		return "open-link"
	}
}

// Validate checks that the set variant carries its identifier.
func (t InvitationTarget) Validate() error {
	switch t.kind {
	case TargetEmail:
		if t.email == "" || !strings.Contains(t.email, "@") {
			return fmt.Errorf("invalid target email: %q", t.email)
		}
	case TargetUser:
		if t.userID == "" {
			return fmt.Errorf("target user ID is required")
		}
	case TargetOpenLink:
		// nothing to carry
	default:
		return fmt.Errorf("unknown target kind: %d", t.kind)
	}
	return nil
}

// Invitation is a token-bearing offer of a role on a canvas.
//
// Named invitations (email or user target) are single-use: they
// transition pending -> accepted on first successful redemption.
// Open-link invitations stay pending and reusable until their
// use count or expiry is exhausted.
type Invitation struct {
	ID        string
	CanvasID  string
	Target    InvitationTarget
	Role      Role
	CanInvite bool // passed through to the grant on redemption
	Token     string
	Status    InvitationStatus
	Message   string
	ExpiresAt *time.Time
	MaxUses   *int
	UseCount  int
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SingleUse reports whether the invitation is consumed on first
// redemption. Only open links are reusable.
func (i *Invitation) SingleUse() bool {
	return i.Target.Kind() != TargetOpenLink
}

// ExpiredAt reports whether the invitation's wall-clock expiry has
// passed at the given time. Invitations without an expiry never expire.
func (i *Invitation) ExpiredAt(now time.Time) bool {
	return i.ExpiresAt != nil && !now.Before(*i.ExpiresAt)
}

// UsesExhausted reports whether the use counter has reached the bound.
// Invitations without a max-use count are never exhausted.
func (i *Invitation) UsesExhausted() bool {
	return i.MaxUses != nil && i.UseCount >= *i.MaxUses
}

// Validate checks if the invitation is valid
func (i *Invitation) Validate() error {
	if i.CanvasID == "" {
		return fmt.Errorf("canvas ID is required")
	}
	if err := i.Target.Validate(); err != nil {
		return err
	}
	if !i.Role.Grantable() {
		return fmt.Errorf("role %q is not grantable", i.Role)
	}
	if i.Token == "" {
		return fmt.Errorf("token is required")
	}
	if i.CreatedBy == "" {
		return fmt.Errorf("creator is required")
	}
	if i.MaxUses != nil && *i.MaxUses <= 0 {
		return fmt.Errorf("max uses must be positive")
	}
	return nil
}
