package invitation

import (
	"context"
	"sync"
	"time"

	"github.com/hkcm91/stickernest-access/internal/entities"
	"github.com/hkcm91/stickernest-access/internal/repositories"
)

// In-memory repository fakes shared by the tests in this package. The
// invitation fake mirrors the conditional-update semantics of the
// postgres implementation so redemption tests exercise the same gates.

type fakeCanvasRepo struct {
	mu       sync.Mutex
	canvases map[string]*entities.Canvas
}

func newFakeCanvasRepo() *fakeCanvasRepo {
	return &fakeCanvasRepo{canvases: make(map[string]*entities.Canvas)}
}

func (f *fakeCanvasRepo) Create(ctx context.Context, canvas *entities.Canvas) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if canvas.CreatedAt.IsZero() {
		canvas.CreatedAt = time.Now()
	}
	f.canvases[canvas.ID] = canvas
	return nil
}

func (f *fakeCanvasRepo) GetByID(ctx context.Context, id string) (*entities.Canvas, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	canvas, ok := f.canvases[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return canvas, nil
}

func (f *fakeCanvasRepo) UpdateVisibility(ctx context.Context, id string, visibility entities.Visibility) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	canvas, ok := f.canvases[id]
	if !ok {
		return repositories.ErrNotFound
	}
	canvas.Visibility = visibility
	return nil
}

func (f *fakeCanvasRepo) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.canvases[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(f.canvases, id)
	return nil
}

type fakeGrantRepo struct {
	mu     sync.Mutex
	grants map[string]*entities.Grant
}

func newFakeGrantRepo() *fakeGrantRepo {
	return &fakeGrantRepo{grants: make(map[string]*entities.Grant)}
}

func grantKey(canvasID, userID string) string {
	return canvasID + "/" + userID
}

func (f *fakeGrantRepo) Create(ctx context.Context, grant *entities.Grant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := grantKey(grant.CanvasID, grant.UserID)
	if _, ok := f.grants[key]; ok {
		return repositories.ErrDuplicateGrant
	}
	if grant.CreatedAt.IsZero() {
		grant.CreatedAt = time.Now()
	}
	f.grants[key] = grant
	return nil
}

func (f *fakeGrantRepo) GetByCanvasAndUser(ctx context.Context, canvasID, userID string) (*entities.Grant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	grant, ok := f.grants[grantKey(canvasID, userID)]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return grant, nil
}

func (f *fakeGrantRepo) Update(ctx context.Context, grant *entities.Grant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := grantKey(grant.CanvasID, grant.UserID)
	if _, ok := f.grants[key]; !ok {
		return repositories.ErrNotFound
	}
	f.grants[key] = grant
	return nil
}

func (f *fakeGrantRepo) Delete(ctx context.Context, canvasID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := grantKey(canvasID, userID)
	if _, ok := f.grants[key]; !ok {
		return repositories.ErrNotFound
	}
	delete(f.grants, key)
	return nil
}

func (f *fakeGrantRepo) ListByCanvas(ctx context.Context, canvasID string) ([]*entities.Grant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entities.Grant
	for _, grant := range f.grants {
		if grant.CanvasID == canvasID {
			out = append(out, grant)
		}
	}
	return out, nil
}

type fakeInvitationRepo struct {
	mu          sync.Mutex
	invitations map[string]*entities.Invitation // by ID
}

func newFakeInvitationRepo() *fakeInvitationRepo {
	return &fakeInvitationRepo{invitations: make(map[string]*entities.Invitation)}
}

func (f *fakeInvitationRepo) Create(ctx context.Context, inv *entities.Invitation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now()
	}
	clone := *inv
	f.invitations[inv.ID] = &clone
	return nil
}

func (f *fakeInvitationRepo) GetByID(ctx context.Context, id string) (*entities.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.invitations[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	clone := *inv
	return &clone, nil
}

func (f *fakeInvitationRepo) GetByToken(ctx context.Context, token string) (*entities.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inv := range f.invitations {
		if inv.Token == token {
			clone := *inv
			return &clone, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeInvitationRepo) TokenExists(ctx context.Context, token string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inv := range f.invitations {
		if inv.Token == token {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeInvitationRepo) UpdateStatus(ctx context.Context, id string, from, to entities.InvitationStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.invitations[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if inv.Status != from {
		return repositories.ErrAlreadyConsumed
	}
	inv.Status = to
	return nil
}

func (f *fakeInvitationRepo) Consume(ctx context.Context, id string, singleUse bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.invitations[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if inv.Status != entities.InvitationPending {
		return repositories.ErrAlreadyConsumed
	}
	if inv.MaxUses != nil && inv.UseCount >= *inv.MaxUses {
		return repositories.ErrUseLimitReached
	}
	inv.UseCount++
	if singleUse {
		inv.Status = entities.InvitationAccepted
	}
	return nil
}

func (f *fakeInvitationRepo) ListByCanvas(ctx context.Context, canvasID string) ([]*entities.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entities.Invitation
	for _, inv := range f.invitations {
		if inv.CanvasID == canvasID {
			clone := *inv
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeInvitationRepo) ListPendingFor(ctx context.Context, userID, email string) ([]*entities.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entities.Invitation
	for _, inv := range f.invitations {
		if inv.Status != entities.InvitationPending {
			continue
		}
		if targetUserID, ok := inv.Target.UserID(); ok && targetUserID == userID {
			clone := *inv
			out = append(out, &clone)
			continue
		}
		if targetEmail, ok := inv.Target.Email(); ok && email != "" && targetEmail == email {
			clone := *inv
			out = append(out, &clone)
		}
	}
	return out, nil
}

type fakeLogRepo struct {
	mu      sync.Mutex
	entries []*entities.PermissionLogEntry
}

func newFakeLogRepo() *fakeLogRepo {
	return &fakeLogRepo{}
}

func (f *fakeLogRepo) Append(ctx context.Context, entry *entities.PermissionLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry.ID = int64(len(f.entries) + 1)
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeLogRepo) ListByCanvas(ctx context.Context, canvasID string, limit int) ([]*entities.PermissionLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entities.PermissionLogEntry
	for i := len(f.entries) - 1; i >= 0; i-- {
		if f.entries[i].CanvasID == canvasID {
			out = append(out, f.entries[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeLogRepo) byAction(action entities.LogAction) []*entities.PermissionLogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entities.PermissionLogEntry
	for _, e := range f.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

// recordingNotifier remembers every invitation it was asked to deliver.
type recordingNotifier struct {
	mu        sync.Mutex
	delivered []*entities.Invitation
}

func (n *recordingNotifier) InvitationCreated(ctx context.Context, inv *entities.Invitation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.delivered = append(n.delivered, inv)
	return nil
}
