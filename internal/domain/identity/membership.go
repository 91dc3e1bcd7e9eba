package identity

import (
	"time"

	"github.com/erp/bulkops/internal/domain/shared"
	"github.com/google/uuid"
)

// MembershipStatus is the lifecycle state of a membership.
type MembershipStatus string

const (
	MembershipActive   MembershipStatus = "active"
	MembershipInactive MembershipStatus = "inactive"
	MembershipInvited  MembershipStatus = "invited"
)

// IsValid reports whether s is a known status.
func (s MembershipStatus) IsValid() bool {
	switch s {
	case MembershipActive, MembershipInactive, MembershipInvited:
		return true
	}
	return false
}

// Membership binds a user to an organization with exactly one role.
type Membership struct {
	shared.BaseEntity
	OrgID  uuid.UUID
	UserID uuid.UUID
	Role   Role
	Status MembershipStatus
}

// NewMembership creates an active membership.
func NewMembership(orgID, userID uuid.UUID, role Role) (*Membership, error) {
	if orgID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ORG", "Organization ID cannot be empty")
	}
	if userID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_USER", "User ID cannot be empty")
	}
	if !role.IsValid() {
		return nil, shared.NewDomainError("INVALID_ROLE", "Unknown role: "+string(role))
	}
	return &Membership{
		BaseEntity: shared.NewBaseEntity(),
		OrgID:      orgID,
		UserID:     userID,
		Role:       role,
		Status:     MembershipActive,
	}, nil
}

// IsActive reports whether the membership currently grants its role.
func (m *Membership) IsActive() bool {
	return m.Status == MembershipActive
}

// ChangeRole replaces the role and reactivates the membership.
func (m *Membership) ChangeRole(role Role) error {
	if !role.IsValid() {
		return shared.NewDomainError("INVALID_ROLE", "Unknown role: "+string(role))
	}
	m.Role = role
	m.Status = MembershipActive
	m.UpdatedAt = time.Now()
	return nil
}

// Deactivate revokes the membership without deleting it.
func (m *Membership) Deactivate() {
	m.Status = MembershipInactive
	m.UpdatedAt = time.Now()
}
