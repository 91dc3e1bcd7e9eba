package models

import (
	"time"

	"github.com/erp/bulkops/internal/domain/shared"
	"github.com/google/uuid"
)

// BaseModel provides common persistence fields for all models.
// It maps to the domain's BaseEntity.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain converts BaseModel to domain BaseEntity
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomainBaseEntity populates BaseModel from domain BaseEntity
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// OrgAggregateModel provides common persistence fields for organization-scoped aggregate roots.
// It extends BaseModel with the owning organization, creator and version for optimistic locking.
type OrgAggregateModel struct {
	BaseModel
	OrgID     uuid.UUID  `gorm:"type:uuid;not null;index"`
	CreatedBy *uuid.UUID `gorm:"type:uuid"`
	Version   int        `gorm:"not null;default:1"`
}

// FromDomainOrgAggregateRoot populates OrgAggregateModel from domain OrgAggregateRoot
func (m *OrgAggregateModel) FromDomainOrgAggregateRoot(a shared.OrgAggregateRoot) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.OrgID = a.OrgID
	m.CreatedBy = a.CreatedBy
	m.Version = a.Version
}

// ToDomainOrgAggregateRoot converts the model back into a domain OrgAggregateRoot
func (m *OrgAggregateModel) ToDomainOrgAggregateRoot() shared.OrgAggregateRoot {
	return shared.OrgAggregateRoot{
		BaseEntity: m.BaseModel.ToDomain(),
		OrgID:      m.OrgID,
		CreatedBy:  m.CreatedBy,
		Version:    m.Version,
	}
}
