package persistence

import (
	"context"

	"github.com/erp/bulkops/internal/domain/bulk"
	"github.com/erp/bulkops/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormImportHistoryRepository implements ImportHistoryRepository using GORM
type GormImportHistoryRepository struct {
	db *gorm.DB
}

// NewGormImportHistoryRepository creates a new GormImportHistoryRepository
func NewGormImportHistoryRepository(db *gorm.DB) *GormImportHistoryRepository {
	return &GormImportHistoryRepository{db: db}
}

// FindByID finds an import history by ID
func (r *GormImportHistoryRepository) FindByID(ctx context.Context, orgID, id uuid.UUID) (*bulk.ImportHistory, error) {
	var model models.ImportHistoryModel
	if err := r.db.WithContext(ctx).
		Where("org_id = ? AND id = ?", orgID, id).
		First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// FindAll returns the import histories of an organization with pagination and filtering
func (r *GormImportHistoryRepository) FindAll(
	ctx context.Context,
	orgID uuid.UUID,
	filter bulk.ImportHistoryFilter,
) (*bulk.ImportHistoryListResult, error) {
	query := r.db.WithContext(ctx).Model(&models.ImportHistoryModel{}).
		Where("org_id = ?", orgID)

	if filter.Entity != "" {
		query = query.Where("entity = ?", filter.Entity)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var totalCount int64
	if err := query.Count(&totalCount).Error; err != nil {
		return nil, translateError(err)
	}

	var historyModels []models.ImportHistoryModel
	if err := query.
		Order(orderClause(filter.OrderBy, filter.OrderDir, ImportHistorySortFields, "created_at")).
		Order("id DESC").
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&historyModels).Error; err != nil {
		return nil, translateError(err)
	}

	histories := make([]*bulk.ImportHistory, len(historyModels))
	for i := range historyModels {
		histories[i] = historyModels[i].ToDomain()
	}

	return &bulk.ImportHistoryListResult{
		Items:      histories,
		TotalCount: totalCount,
		Page:       max(filter.Page, 1),
		PageSize:   filter.Limit(),
	}, nil
}

// Save saves an import history (create or update)
func (r *GormImportHistoryRepository) Save(ctx context.Context, history *bulk.ImportHistory) error {
	model := models.ImportHistoryModelFromDomain(history)
	return translateError(r.db.WithContext(ctx).Save(model).Error)
}

// Compile-time interface compliance check
var _ bulk.ImportHistoryRepository = (*GormImportHistoryRepository)(nil)
