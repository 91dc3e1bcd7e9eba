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

// RecordOwnership resolves the owning organization of stored records.
type RecordOwnership interface {
	OwnersOf(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]uuid.UUID, error)
}

// PermissionEvaluator turns a caller's membership into a permission set.
// It keeps no state between calls: every Authorize re-reads the membership,
// so role changes apply to the very next operation.
type PermissionEvaluator struct {
	table       *identity.RolePermissionTable
	memberships identity.MembershipRepository
	ownership   RecordOwnership
	logger      *zap.Logger
}

// NewPermissionEvaluator creates a new permission evaluator.
// A nil table falls back to the default role table.
func NewPermissionEvaluator(
	table *identity.RolePermissionTable,
	memberships identity.MembershipRepository,
	ownership RecordOwnership,
	logger *zap.Logger,
) *PermissionEvaluator {
	if table == nil {
		table = identity.DefaultRolePermissionTable()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PermissionEvaluator{
		table:       table,
		memberships: memberships,
		ownership:   ownership,
		logger:      logger,
	}
}

// Table returns the role table the evaluator resolves against.
func (e *PermissionEvaluator) Table() *identity.RolePermissionTable {
	return e.table
}

// Authorize resolves the caller's permission set in orgID.
// A missing or inactive membership yields an empty set and no error.
// A repository failure yields an empty set and the error, so callers fail closed either way.
func (e *PermissionEvaluator) Authorize(ctx context.Context, callerID, orgID uuid.UUID) (*identity.PermissionSet, error) {
	if callerID == uuid.Nil || orgID == uuid.Nil {
		return &identity.PermissionSet{}, nil
	}

	membership, err := e.memberships.FindByOrgAndUser(ctx, orgID, callerID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			e.logger.Debug("No membership for caller",
				zap.String("caller_id", callerID.String()),
				zap.String("org_id", orgID.String()))
			return &identity.PermissionSet{}, nil
		}
		e.logger.Error("Failed to resolve membership",
			zap.String("caller_id", callerID.String()),
			zap.String("org_id", orgID.String()),
			zap.Error(err))
		return &identity.PermissionSet{}, fmt.Errorf("resolve membership: %w", err)
	}

	return e.table.PermissionSetFor(membership), nil
}

// Require authorizes the caller and checks that every action is granted.
// Denial is reported as *identity.AuthorizationError.
func (e *PermissionEvaluator) Require(ctx context.Context, callerID, orgID uuid.UUID, actions ...identity.Action) (*identity.PermissionSet, error) {
	perms, err := e.Authorize(ctx, callerID, orgID)
	if err != nil {
		return perms, &identity.AuthorizationError{
			CallerID: callerID,
			OrgID:    orgID,
			Actions:  actions,
			Reason:   "membership could not be resolved",
		}
	}
	if perms.IsEmpty() {
		return perms, &identity.AuthorizationError{
			CallerID: callerID,
			OrgID:    orgID,
			Actions:  actions,
			Reason:   "no active membership",
		}
	}
	if !perms.HasAll(actions...) {
		missing := make([]identity.Action, 0, len(actions))
		for _, a := range actions {
			if !perms.Has(a) {
				missing = append(missing, a)
			}
		}
		e.logger.Info("Permission denied",
			zap.String("caller_id", callerID.String()),
			zap.String("org_id", orgID.String()),
			zap.String("role", string(perms.Role())),
			zap.Any("missing", missing))
		return perms, &identity.AuthorizationError{
			CallerID: callerID,
			OrgID:    orgID,
			Actions:  missing,
			Reason:   fmt.Sprintf("role %s does not grant them", perms.Role()),
		}
	}
	return perms, nil
}

// AuthorizeMany returns the subset of ids the caller may perform action on,
// in input order. Ids that are unknown, owned by another organization, or
// not covered by the caller's role are left out without an error.
func (e *PermissionEvaluator) AuthorizeMany(
	ctx context.Context,
	callerID, orgID uuid.UUID,
	action identity.Action,
	ids []uuid.UUID,
) ([]uuid.UUID, error) {
	allowed := make([]uuid.UUID, 0, len(ids))
	if len(ids) == 0 {
		return allowed, nil
	}

	perms, err := e.Authorize(ctx, callerID, orgID)
	if err != nil {
		return allowed, err
	}
	if !perms.Has(action) {
		return allowed, nil
	}
	if e.ownership == nil {
		return allowed, fmt.Errorf("authorize many: no record ownership source configured")
	}

	owners, err := e.ownership.OwnersOf(ctx, ids)
	if err != nil {
		return allowed, fmt.Errorf("resolve record owners: %w", err)
	}
	for _, id := range ids {
		if perms.CanActOn(action, owners[id]) {
			allowed = append(allowed, id)
		}
	}
	return allowed, nil
}
