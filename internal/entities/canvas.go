package entities

import (
	"fmt"
	"time"
)

// Visibility controls the read-access floor of a canvas.
type Visibility string

const (
	VisibilityPrivate  Visibility = "private"
	VisibilityUnlisted Visibility = "unlisted"
	VisibilityPublic   Visibility = "public"
)

// Valid reports whether the visibility is one of the known values.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPrivate, VisibilityUnlisted, VisibilityPublic:
		return true
	}
	return false
}

// Canvas is the owned container resource access is controlled for.
// Exactly one owner exists at all times; ownership is derived from
// OwnerID and never stored as a collaborator grant.
type Canvas struct {
	ID         string
	OwnerID    string
	Visibility Visibility
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsOwnedBy reports whether userID owns the canvas.
func (c *Canvas) IsOwnedBy(userID string) bool {
	return userID != "" && c.OwnerID == userID
}

// Validate checks if the canvas is valid
func (c *Canvas) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("canvas ID is required")
	}
	if c.OwnerID == "" {
		return fmt.Errorf("owner ID is required")
	}
	if !c.Visibility.Valid() {
		return fmt.Errorf("invalid visibility: %q", c.Visibility)
	}
	return nil
}
