package models

import (
	"encoding/json"
	"time"

	"github.com/erp/bulkops/internal/domain/bulk"
	"github.com/google/uuid"
)

// ActivityLogModel is the persistence model for bulk.ActivityEntry.
type ActivityLogModel struct {
	ID         uuid.UUID           `gorm:"type:uuid;primaryKey"`
	OrgID      uuid.UUID           `gorm:"type:uuid;not null;index:idx_activity_logs_org_time,priority:1"`
	ActorID    uuid.UUID           `gorm:"type:uuid;not null"`
	Entity     string              `gorm:"type:varchar(64);not null"`
	RecordID   *uuid.UUID          `gorm:"type:uuid;index"`
	Action     bulk.ActivityAction `gorm:"type:varchar(32);not null"`
	Summary    string              `gorm:"type:text;not null"`
	Details    string              `gorm:"type:text"`
	OccurredAt time.Time           `gorm:"not null;index:idx_activity_logs_org_time,priority:2"`
}

// TableName returns the table name for GORM
func (ActivityLogModel) TableName() string {
	return "activity_logs"
}

// ActivityLogModelFromDomain creates a persistence model from a domain entry.
func ActivityLogModelFromDomain(e bulk.ActivityEntry) *ActivityLogModel {
	m := &ActivityLogModel{
		ID:         e.ID,
		OrgID:      e.OrgID,
		ActorID:    e.ActorID,
		Entity:     e.Entity,
		RecordID:   e.RecordID,
		Action:     e.Action,
		Summary:    e.Summary,
		OccurredAt: e.OccurredAt,
	}
	if len(e.Details) > 0 {
		if data, err := json.Marshal(e.Details); err == nil {
			m.Details = string(data)
		}
	}
	return m
}

// ToDomain converts the persistence model to a domain entry.
func (m *ActivityLogModel) ToDomain() bulk.ActivityEntry {
	e := bulk.ActivityEntry{
		ID:         m.ID,
		OrgID:      m.OrgID,
		ActorID:    m.ActorID,
		Entity:     m.Entity,
		RecordID:   m.RecordID,
		Action:     m.Action,
		Summary:    m.Summary,
		OccurredAt: m.OccurredAt,
	}
	if m.Details != "" {
		_ = json.Unmarshal([]byte(m.Details), &e.Details)
	}
	return e
}
