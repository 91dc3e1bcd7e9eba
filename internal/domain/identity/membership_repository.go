package identity

import (
	"context"

	"github.com/google/uuid"
)

// MembershipRepository is the external membership authority.
type MembershipRepository interface {
	// FindByOrgAndUser returns shared.ErrNotFound when the user has no membership in the organization.
	FindByOrgAndUser(ctx context.Context, orgID, userID uuid.UUID) (*Membership, error)
	Save(ctx context.Context, m *Membership) error
	ListByOrg(ctx context.Context, orgID uuid.UUID) ([]Membership, error)
}
