package persistence

import (
	"context"
	"time"

	"github.com/erp/bulkops/internal/domain/identity"
	"github.com/erp/bulkops/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormMembershipRepository implements identity.MembershipRepository using GORM
type GormMembershipRepository struct {
	db *gorm.DB
}

// NewGormMembershipRepository creates a new GormMembershipRepository
func NewGormMembershipRepository(db *gorm.DB) *GormMembershipRepository {
	return &GormMembershipRepository{db: db}
}

// FindByOrgAndUser returns the membership of userID in orgID.
func (r *GormMembershipRepository) FindByOrgAndUser(ctx context.Context, orgID, userID uuid.UUID) (*identity.Membership, error) {
	var model models.MembershipModel
	if err := r.db.WithContext(ctx).
		Where("org_id = ? AND user_id = ?", orgID, userID).
		First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// Save upserts the membership on (org_id, user_id).
func (r *GormMembershipRepository) Save(ctx context.Context, m *identity.Membership) error {
	m.UpdatedAt = time.Now()
	model := models.MembershipModelFromDomain(m)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "org_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "status", "updated_at"}),
	}).Create(model).Error
	return translateError(err)
}

// ListByOrg returns every membership of an organization.
func (r *GormMembershipRepository) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]identity.Membership, error) {
	var rows []models.MembershipModel
	if err := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, translateError(err)
	}
	out := make([]identity.Membership, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// Compile-time interface compliance check
var _ identity.MembershipRepository = (*GormMembershipRepository)(nil)
