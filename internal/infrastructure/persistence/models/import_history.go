package models

import (
	"time"

	"github.com/erp/bulkops/internal/domain/bulk"
	"github.com/google/uuid"
)

// ImportHistoryModel is the persistence model for the ImportHistory domain entity.
type ImportHistoryModel struct {
	OrgAggregateModel
	JobID        uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex"`
	Entity       string            `gorm:"type:varchar(64);not null;index"`
	Format       bulk.Format       `gorm:"type:varchar(20);not null"`
	ConflictMode bulk.ConflictMode `gorm:"type:varchar(20);not null;default:'fail'"`
	ValidateOnly bool              `gorm:"not null;default:false"`
	Status       bulk.ImportStatus `gorm:"type:varchar(20);not null;default:'pending'"`
	TotalRows    int               `gorm:"not null;default:0"`
	SuccessRows  int               `gorm:"not null;default:0"`
	ErrorRows    int               `gorm:"not null;default:0"`
	CreatedRows  int               `gorm:"not null;default:0"`
	UpdatedRows  int               `gorm:"not null;default:0"`
	SkippedRows  int               `gorm:"not null;default:0"`
	ErrorDetails string            `gorm:"type:text"`
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// TableName returns the table name for GORM
func (ImportHistoryModel) TableName() string {
	return "import_histories"
}

// ToDomain converts the persistence model to a domain ImportHistory entity.
func (m *ImportHistoryModel) ToDomain() *bulk.ImportHistory {
	history := &bulk.ImportHistory{
		OrgAggregateRoot: m.ToDomainOrgAggregateRoot(),
		JobID:            m.JobID,
		Entity:           m.Entity,
		Format:           m.Format,
		ConflictMode:     m.ConflictMode,
		ValidateOnly:     m.ValidateOnly,
		Status:           m.Status,
		TotalRows:        m.TotalRows,
		SuccessRows:      m.SuccessRows,
		ErrorRows:        m.ErrorRows,
		CreatedRows:      m.CreatedRows,
		UpdatedRows:      m.UpdatedRows,
		SkippedRows:      m.SkippedRows,
		StartedAt:        m.StartedAt,
		CompletedAt:      m.CompletedAt,
	}

	if m.ErrorDetails != "" {
		_ = history.SetErrorDetailsFromJSON(m.ErrorDetails)
	}

	return history
}

// FromDomain populates the persistence model from a domain ImportHistory entity.
func (m *ImportHistoryModel) FromDomain(h *bulk.ImportHistory) {
	m.FromDomainOrgAggregateRoot(h.OrgAggregateRoot)
	m.JobID = h.JobID
	m.Entity = h.Entity
	m.Format = h.Format
	m.ConflictMode = h.ConflictMode
	m.ValidateOnly = h.ValidateOnly
	m.Status = h.Status
	m.TotalRows = h.TotalRows
	m.SuccessRows = h.SuccessRows
	m.ErrorRows = h.ErrorRows
	m.CreatedRows = h.CreatedRows
	m.UpdatedRows = h.UpdatedRows
	m.SkippedRows = h.SkippedRows
	m.StartedAt = h.StartedAt
	m.CompletedAt = h.CompletedAt

	if errorJSON, err := h.ErrorDetailsJSON(); err == nil {
		m.ErrorDetails = errorJSON
	} else {
		m.ErrorDetails = "[]"
	}
}

// ImportHistoryModelFromDomain creates a new persistence model from a domain ImportHistory entity.
func ImportHistoryModelFromDomain(h *bulk.ImportHistory) *ImportHistoryModel {
	m := &ImportHistoryModel{}
	m.FromDomain(h)
	return m
}
