package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/erp/bulkops/internal/domain/bulk"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecordModel is the persistence model for bulk.Record.
// Schema fields are kept as a tagged JSON document; the promoted columns
// exist so that export filters run in SQL.
type RecordModel struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey"`
	OrgID      uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_records_natural_key,priority:1"`
	Entity     string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_records_natural_key,priority:2"`
	NaturalKey string     `gorm:"type:varchar(255);not null;uniqueIndex:idx_records_natural_key,priority:3"`
	Status     string     `gorm:"type:varchar(64);index"`
	Category   string     `gorm:"type:varchar(128)"`
	RecordDate *time.Time `gorm:"index"`
	SearchText string     `gorm:"type:text"`
	Fields     string     `gorm:"type:text;not null"`
	CreatedBy  *uuid.UUID `gorm:"type:uuid"`
	CreatedAt  time.Time  `gorm:"not null"`
	UpdatedAt  time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (RecordModel) TableName() string {
	return "records"
}

// RecordModelFromDomain creates a persistence model from a domain record.
func RecordModelFromDomain(r *bulk.Record) (*RecordModel, error) {
	fields, err := EncodeFields(r.Fields)
	if err != nil {
		return nil, err
	}
	return &RecordModel{
		ID:         r.ID,
		OrgID:      r.OrgID,
		Entity:     r.Entity,
		NaturalKey: r.Key,
		Status:     r.Status,
		Category:   r.Category,
		RecordDate: r.RecordDate,
		SearchText: r.SearchText,
		Fields:     fields,
		CreatedBy:  r.CreatedBy,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}, nil
}

// ToDomain converts the persistence model to a domain record.
func (m *RecordModel) ToDomain() (bulk.Record, error) {
	fields, err := DecodeFields(m.Fields)
	if err != nil {
		return bulk.Record{}, fmt.Errorf("record %s: %w", m.ID, err)
	}
	return bulk.Record{
		ID:         m.ID,
		OrgID:      m.OrgID,
		Entity:     m.Entity,
		Key:        m.NaturalKey,
		Status:     m.Status,
		Category:   m.Category,
		RecordDate: m.RecordDate,
		SearchText: m.SearchText,
		Fields:     fields,
		CreatedBy:  m.CreatedBy,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}, nil
}

// storedValue keeps the kind next to the text so that dates and numbers
// survive a trip through the database unchanged.
type storedValue struct {
	Kind string `json:"k"`
	Text string `json:"v,omitempty"`
}

// EncodeFields serializes fields into the tagged JSON form stored in records.fields.
func EncodeFields(fields bulk.Fields) (string, error) {
	out := make(map[string]storedValue, len(fields))
	for name, v := range fields {
		out[name] = storedValue{Kind: v.Kind().String(), Text: v.Text()}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("encode fields: %w", err)
	}
	return string(data), nil
}

// DecodeFields parses the tagged JSON form written by EncodeFields.
func DecodeFields(data string) (bulk.Fields, error) {
	var stored map[string]storedValue
	if err := json.Unmarshal([]byte(data), &stored); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	fields := make(bulk.Fields, len(stored))
	for name, sv := range stored {
		v, err := sv.value()
		if err != nil {
			return nil, fmt.Errorf("decode field %s: %w", name, err)
		}
		fields[name] = v
	}
	return fields, nil
}

func (sv storedValue) value() (bulk.Value, error) {
	switch sv.Kind {
	case bulk.KindNull.String():
		return bulk.NullValue(), nil
	case bulk.KindString.String():
		return bulk.StringValue(sv.Text), nil
	case bulk.KindNumber.String():
		d, err := decimal.NewFromString(sv.Text)
		if err != nil {
			return bulk.Value{}, err
		}
		return bulk.NumberValue(d), nil
	case bulk.KindBool.String():
		return bulk.BoolValue(sv.Text == "true"), nil
	case bulk.KindDate.String():
		t, err := time.Parse(bulk.DateLayout, sv.Text)
		if err != nil {
			return bulk.Value{}, err
		}
		return bulk.DateValue(t), nil
	}
	return bulk.Value{}, fmt.Errorf("unknown value kind %q", sv.Kind)
}

// RecordLinkModel attaches a related summary to a record under a named relation.
type RecordLinkModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrgID     uuid.UUID `gorm:"type:uuid;not null;index:idx_record_links_lookup,priority:1"`
	Entity    string    `gorm:"type:varchar(64);not null;index:idx_record_links_lookup,priority:2"`
	Relation  string    `gorm:"type:varchar(64);not null;index:idx_record_links_lookup,priority:3"`
	RecordID  uuid.UUID `gorm:"type:uuid;not null;index:idx_record_links_lookup,priority:4"`
	TargetID  uuid.UUID `gorm:"type:uuid;not null"`
	Label     string    `gorm:"type:varchar(255);not null"`
	Status    string    `gorm:"type:varchar(64)"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (RecordLinkModel) TableName() string {
	return "record_links"
}

// ToSummary converts the link to its export form.
func (m *RecordLinkModel) ToSummary() bulk.RelationSummary {
	return bulk.RelationSummary{ID: m.TargetID, Label: m.Label, Status: m.Status}
}
