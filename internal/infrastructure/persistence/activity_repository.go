package persistence

import (
	"context"

	"github.com/erp/bulkops/internal/domain/bulk"
	"github.com/erp/bulkops/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormActivityRepository implements bulk.ActivityRepository using GORM
type GormActivityRepository struct {
	db *gorm.DB
}

// NewGormActivityRepository creates a new GormActivityRepository
func NewGormActivityRepository(db *gorm.DB) *GormActivityRepository {
	return &GormActivityRepository{db: db}
}

// Append stores a batch of entries in one insert.
func (r *GormActivityRepository) Append(ctx context.Context, entries ...bulk.ActivityEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]*models.ActivityLogModel, len(entries))
	for i, e := range entries {
		rows[i] = models.ActivityLogModelFromDomain(e)
	}
	return translateError(r.db.WithContext(ctx).CreateInBatches(rows, 100).Error)
}

// Recent returns the latest entries of an organization, newest first.
func (r *GormActivityRepository) Recent(ctx context.Context, orgID uuid.UUID, limit int) ([]bulk.ActivityEntry, error) {
	var rows []models.ActivityLogModel
	if err := r.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("occurred_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, translateError(err)
	}
	out := make([]bulk.ActivityEntry, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// Compile-time interface compliance check
var _ bulk.ActivityRepository = (*GormActivityRepository)(nil)
