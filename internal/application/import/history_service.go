package importapp

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/erp/bulkops/internal/domain/bulk"
	"github.com/erp/bulkops/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HistoryService manages import history tracking and retrieval
type HistoryService struct {
	historyRepo bulk.ImportHistoryRepository
	logger      *zap.Logger
}

// NewHistoryService creates a new HistoryService
func NewHistoryService(historyRepo bulk.ImportHistoryRepository, logger *zap.Logger) *HistoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryService{
		historyRepo: historyRepo,
		logger:      logger,
	}
}

// Begin records a new job as processing.
func (s *HistoryService) Begin(ctx context.Context, job *bulk.ImportJob) (*bulk.ImportHistory, error) {
	history, err := bulk.NewImportHistory(job)
	if err != nil {
		return nil, err
	}
	if err := history.StartProcessing(job.RawCount); err != nil {
		return nil, err
	}
	if err := s.historyRepo.Save(ctx, history); err != nil {
		return nil, fmt.Errorf("failed to save import history: %w", err)
	}
	return history, nil
}

// Complete stores the outcome of the job.
func (s *HistoryService) Complete(ctx context.Context, history *bulk.ImportHistory, result *bulk.ImportResult) error {
	if err := history.Finish(result); err != nil {
		return err
	}
	return s.historyRepo.Save(ctx, history)
}

// Get retrieves a specific import history by ID
func (s *HistoryService) Get(ctx context.Context, orgID, historyID uuid.UUID) (*bulk.ImportHistory, error) {
	return s.historyRepo.FindByID(ctx, orgID, historyID)
}

// ListHistoryFilter defines the filter options for listing import histories
type ListHistoryFilter struct {
	Entity   string
	Status   string
	Page     int
	PageSize int
}

// List retrieves import history with pagination and filtering.
// Unknown status values are ignored rather than rejected.
func (s *HistoryService) List(ctx context.Context, orgID uuid.UUID, filter ListHistoryFilter) (*bulk.ImportHistoryListResult, error) {
	repoFilter := bulk.ImportHistoryFilter{
		Filter: shared.DefaultFilter(),
		Entity: filter.Entity,
	}
	if filter.Page > 0 {
		repoFilter.Page = filter.Page
	}
	if filter.PageSize > 0 {
		repoFilter.PageSize = filter.PageSize
	}
	if filter.Status != "" {
		status := bulk.ImportStatus(filter.Status)
		if status.IsValid() {
			repoFilter.Status = &status
		}
	}
	return s.historyRepo.FindAll(ctx, orgID, repoFilter)
}

// ErrorsCSV renders the error details of an import for download.
func (s *HistoryService) ErrorsCSV(ctx context.Context, orgID, historyID uuid.UUID) ([]byte, string, error) {
	history, err := s.historyRepo.FindByID(ctx, orgID, historyID)
	if err != nil {
		return nil, "", err
	}
	if len(history.ErrorDetails) == 0 {
		return nil, "", shared.NewDomainError("NO_ERRORS", "Import has no errors to export")
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"Row", "Field", "Error Code", "Error Message"})
	for _, e := range history.ErrorDetails {
		_ = w.Write([]string{strconv.Itoa(e.Row), e.Field, e.Code, e.Message})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, "", fmt.Errorf("write errors csv: %w", err)
	}

	fileName := fmt.Sprintf("import_errors_%s_%s.csv", history.Entity, history.ID.String()[:8])
	return buf.Bytes(), fileName, nil
}
