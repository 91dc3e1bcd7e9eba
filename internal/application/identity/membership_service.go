package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/bulkops/internal/domain/identity"
	"github.com/erp/bulkops/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MembershipService manages organization memberships
type MembershipService struct {
	repo   identity.MembershipRepository
	logger *zap.Logger
}

// NewMembershipService creates a new membership service
func NewMembershipService(repo identity.MembershipRepository, logger *zap.Logger) *MembershipService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MembershipService{repo: repo, logger: logger}
}

// MembershipDTO represents membership data transfer object
type MembershipDTO struct {
	OrgID  uuid.UUID                 `json:"org_id"`
	UserID uuid.UUID                 `json:"user_id"`
	Role   identity.Role             `json:"role"`
	Status identity.MembershipStatus `json:"status"`
}

func toMembershipDTO(m *identity.Membership) MembershipDTO {
	return MembershipDTO{OrgID: m.OrgID, UserID: m.UserID, Role: m.Role, Status: m.Status}
}

// Grant assigns role to the user, creating the membership or replacing its role.
func (s *MembershipService) Grant(ctx context.Context, orgID, userID uuid.UUID, role identity.Role) (*MembershipDTO, error) {
	m, err := s.repo.FindByOrgAndUser(ctx, orgID, userID)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		if m, err = identity.NewMembership(orgID, userID, role); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("find membership: %w", err)
	default:
		if err := m.ChangeRole(role); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Save(ctx, m); err != nil {
		return nil, fmt.Errorf("save membership: %w", err)
	}
	s.logger.Info("Membership granted",
		zap.String("org_id", orgID.String()),
		zap.String("user_id", userID.String()),
		zap.String("role", string(role)))

	dto := toMembershipDTO(m)
	return &dto, nil
}

// Revoke deactivates the user's membership.
func (s *MembershipService) Revoke(ctx context.Context, orgID, userID uuid.UUID) error {
	m, err := s.repo.FindByOrgAndUser(ctx, orgID, userID)
	if err != nil {
		return err
	}
	m.Deactivate()
	if err := s.repo.Save(ctx, m); err != nil {
		return fmt.Errorf("save membership: %w", err)
	}
	s.logger.Info("Membership revoked",
		zap.String("org_id", orgID.String()),
		zap.String("user_id", userID.String()))
	return nil
}

// List returns the memberships of an organization.
func (s *MembershipService) List(ctx context.Context, orgID uuid.UUID) ([]MembershipDTO, error) {
	members, err := s.repo.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}
	out := make([]MembershipDTO, len(members))
	for i := range members {
		out[i] = toMembershipDTO(&members[i])
	}
	return out, nil
}
