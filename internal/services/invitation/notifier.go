package invitation

import (
	"context"

	"github.com/hkcm91/stickernest-access/internal/entities"
)

// Notifier delivers a freshly created invitation to its target.
// Actual delivery (email, in-app) is external to this subsystem; the
// engine only hands over the invitation with its token.
type Notifier interface {
	InvitationCreated(ctx context.Context, invitation *entities.Invitation) error
}
