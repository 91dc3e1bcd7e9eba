package models

import (
	"github.com/erp/bulkops/internal/domain/identity"
	"github.com/google/uuid"
)

// MembershipModel is the persistence model for identity.Membership.
type MembershipModel struct {
	BaseModel
	OrgID  uuid.UUID                 `gorm:"type:uuid;not null;uniqueIndex:idx_memberships_org_user,priority:1"`
	UserID uuid.UUID                 `gorm:"type:uuid;not null;uniqueIndex:idx_memberships_org_user,priority:2"`
	Role   identity.Role             `gorm:"type:varchar(20);not null"`
	Status identity.MembershipStatus `gorm:"type:varchar(20);not null;default:'active'"`
}

// TableName returns the table name for GORM
func (MembershipModel) TableName() string {
	return "memberships"
}

// ToDomain converts the persistence model to a domain membership.
func (m *MembershipModel) ToDomain() *identity.Membership {
	return &identity.Membership{
		BaseEntity: m.BaseModel.ToDomain(),
		OrgID:      m.OrgID,
		UserID:     m.UserID,
		Role:       m.Role,
		Status:     m.Status,
	}
}

// MembershipModelFromDomain creates a persistence model from a domain membership.
func MembershipModelFromDomain(mem *identity.Membership) *MembershipModel {
	m := &MembershipModel{
		OrgID:  mem.OrgID,
		UserID: mem.UserID,
		Role:   mem.Role,
		Status: mem.Status,
	}
	m.FromDomainBaseEntity(mem.BaseEntity)
	return m
}
