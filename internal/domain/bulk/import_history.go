package bulk

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/erp/bulkops/internal/domain/shared"
	"github.com/google/uuid"
)

// ImportStatus represents the status of an import operation
type ImportStatus string

const (
	ImportStatusPending    ImportStatus = "pending"
	ImportStatusProcessing ImportStatus = "processing"
	ImportStatusCompleted  ImportStatus = "completed"
	ImportStatusFailed     ImportStatus = "failed"
	ImportStatusCancelled  ImportStatus = "cancelled"
)

// IsValid checks if the status is valid
func (s ImportStatus) IsValid() bool {
	switch s {
	case ImportStatusPending, ImportStatusProcessing, ImportStatusCompleted,
		ImportStatusFailed, ImportStatusCancelled:
		return true
	}
	return false
}

// IsTerminal returns true if this is a terminal state
func (s ImportStatus) IsTerminal() bool {
	return s == ImportStatusCompleted || s == ImportStatusFailed || s == ImportStatusCancelled
}

// ConflictMode defines how duplicates were handled during import
type ConflictMode string

const (
	ConflictModeSkip   ConflictMode = "skip"
	ConflictModeUpdate ConflictMode = "update"
	ConflictModeFail   ConflictMode = "fail"
)

// IsValid checks if the conflict mode is valid
func (c ConflictMode) IsValid() bool {
	switch c {
	case ConflictModeSkip, ConflictModeUpdate, ConflictModeFail:
		return true
	}
	return false
}

// ImportHistory is the audit trail of one import job.
type ImportHistory struct {
	shared.OrgAggregateRoot
	JobID        uuid.UUID
	Entity       string
	Format       Format
	ConflictMode ConflictMode
	ValidateOnly bool
	Status       ImportStatus
	TotalRows    int
	SuccessRows  int
	ErrorRows    int
	CreatedRows  int
	UpdatedRows  int
	SkippedRows  int
	ErrorDetails []RowError
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// NewImportHistory creates a pending history entry for job.
func NewImportHistory(job *ImportJob) (*ImportHistory, error) {
	if job == nil {
		return nil, shared.NewDomainError("INVALID_JOB", "Import job cannot be nil")
	}
	if job.Entity == "" {
		return nil, shared.NewDomainError("INVALID_ENTITY_TYPE", "Entity cannot be empty")
	}
	if !job.Format.CanImport() {
		return nil, shared.NewDomainError("INVALID_FORMAT", fmt.Sprintf("Invalid import format: %s", job.Format))
	}

	return &ImportHistory{
		OrgAggregateRoot: shared.NewOrgAggregateRoot(job.OrgID, job.CallerID),
		JobID:            job.ID,
		Entity:           job.Entity,
		Format:           job.Format,
		ConflictMode:     job.Options.ConflictMode(),
		ValidateOnly:     job.Options.ValidateOnly,
		Status:           ImportStatusPending,
		ErrorDetails:     make([]RowError, 0),
	}, nil
}

// StartProcessing marks the import as started
func (h *ImportHistory) StartProcessing(totalRows int) error {
	if h.Status != ImportStatusPending {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot start processing from state: %s", h.Status))
	}
	if totalRows < 0 {
		return shared.NewDomainError("INVALID_TOTAL_ROWS", "Total rows cannot be negative")
	}

	h.Status = ImportStatusProcessing
	h.TotalRows = totalRows
	now := time.Now()
	h.StartedAt = &now
	h.UpdatedAt = now
	h.IncrementVersion()
	return nil
}

// Finish records the outcome of the job and moves to a terminal state.
// A job where every processed row failed is recorded as failed.
func (h *ImportHistory) Finish(result *ImportResult) error {
	if h.Status != ImportStatusProcessing {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot finish from state: %s", h.Status))
	}

	switch {
	case result.Cancelled:
		h.Status = ImportStatusCancelled
	case result.Failed > 0 && result.Successful == 0:
		h.Status = ImportStatusFailed
	default:
		h.Status = ImportStatusCompleted
	}
	h.SuccessRows = result.Successful
	h.ErrorRows = result.Failed
	h.CreatedRows = result.Created
	h.UpdatedRows = result.Updated
	h.SkippedRows = result.Skipped
	h.ErrorDetails = append([]RowError(nil), result.Errors...)
	now := time.Now()
	h.CompletedAt = &now
	h.UpdatedAt = now
	h.IncrementVersion()
	return nil
}

// Fail marks the import as failed
func (h *ImportHistory) Fail(errors []RowError) error {
	if h.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot fail from terminal state: %s", h.Status))
	}

	h.Status = ImportStatusFailed
	h.ErrorDetails = errors
	now := time.Now()
	h.CompletedAt = &now
	h.UpdatedAt = now
	h.IncrementVersion()
	return nil
}

// ErrorDetailsJSON returns the error details as a JSON string
func (h *ImportHistory) ErrorDetailsJSON() (string, error) {
	if len(h.ErrorDetails) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(h.ErrorDetails)
	if err != nil {
		return "", fmt.Errorf("failed to marshal error details: %w", err)
	}
	return string(data), nil
}

// SetErrorDetailsFromJSON parses error details from a JSON string
func (h *ImportHistory) SetErrorDetailsFromJSON(jsonStr string) error {
	if jsonStr == "" || jsonStr == "[]" {
		h.ErrorDetails = make([]RowError, 0)
		return nil
	}
	var details []RowError
	if err := json.Unmarshal([]byte(jsonStr), &details); err != nil {
		return fmt.Errorf("failed to unmarshal error details: %w", err)
	}
	h.ErrorDetails = details
	return nil
}

// SuccessRate returns the success rate as a percentage (0-100)
func (h *ImportHistory) SuccessRate() float64 {
	if h.TotalRows == 0 {
		return 0
	}
	return float64(h.SuccessRows) / float64(h.TotalRows) * 100
}

// Duration returns the duration of the import operation
func (h *ImportHistory) Duration() time.Duration {
	if h.StartedAt == nil {
		return 0
	}
	end := time.Now()
	if h.CompletedAt != nil {
		end = *h.CompletedAt
	}
	return end.Sub(*h.StartedAt)
}
