package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity provides common fields for all entities
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBaseEntity creates a new base entity with generated ID
func NewBaseEntity() BaseEntity {
	now := time.Now()
	return BaseEntity{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch bumps UpdatedAt.
func (e *BaseEntity) Touch() {
	e.UpdatedAt = time.Now()
}

// OrgAggregateRoot is an aggregate owned by exactly one organization.
type OrgAggregateRoot struct {
	BaseEntity
	OrgID     uuid.UUID
	CreatedBy *uuid.UUID
	Version   int
}

// NewOrgAggregateRoot creates a new organization-scoped aggregate root
func NewOrgAggregateRoot(orgID, createdBy uuid.UUID) OrgAggregateRoot {
	return OrgAggregateRoot{
		BaseEntity: NewBaseEntity(),
		OrgID:      orgID,
		CreatedBy:  &createdBy,
		Version:    1,
	}
}

// IncrementVersion increments the version number
func (a *OrgAggregateRoot) IncrementVersion() {
	a.Version++
}
