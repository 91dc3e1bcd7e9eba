package bulk

import (
	"context"

	"github.com/erp/bulkops/internal/domain/shared"
	"github.com/google/uuid"
)

// ImportHistoryFilter narrows history listings
type ImportHistoryFilter struct {
	shared.Filter
	Entity string
	Status *ImportStatus
}

// ImportHistoryListResult represents a paginated list of import histories
type ImportHistoryListResult struct {
	Items      []*ImportHistory
	TotalCount int64
	Page       int
	PageSize   int
}

// ImportHistoryRepository defines the interface for import history persistence
type ImportHistoryRepository interface {
	FindByID(ctx context.Context, orgID, id uuid.UUID) (*ImportHistory, error)
	FindAll(ctx context.Context, orgID uuid.UUID, filter ImportHistoryFilter) (*ImportHistoryListResult, error)
	Save(ctx context.Context, history *ImportHistory) error
}
