package bulk

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Fields maps field names to scalar values.
type Fields map[string]Value

// Names returns the field names in sorted order.
func (f Fields) Names() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a shallow copy.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// RawRecord is one untrusted input record.
type RawRecord map[string]Value

// ImportRecord is a raw record tagged with its 1-based origin row.
type ImportRecord struct {
	Row int
	Raw RawRecord
}

// TagRows numbers records in input order starting at 1.
func TagRows(raw []RawRecord) []ImportRecord {
	out := make([]ImportRecord, len(raw))
	for i, r := range raw {
		out[i] = ImportRecord{Row: i + 1, Raw: r}
	}
	return out
}

// NormalizedRecord is a record that passed schema validation.
type NormalizedRecord struct {
	Row    int
	Key    string
	Fields Fields
}

// RelationSummary is the nested form of a related record in exports.
type RelationSummary struct {
	ID     uuid.UUID `json:"id"`
	Label  string    `json:"label"`
	Status string    `json:"status,omitempty"`
}

// Record is the persisted form of an entity row.
// Status, Category, RecordDate and SearchText are derived from Fields through the schema
// so stores can filter without understanding field payloads.
type Record struct {
	ID         uuid.UUID
	OrgID      uuid.UUID
	Entity     string
	Key        string
	Status     string
	Category   string
	RecordDate *time.Time
	SearchText string
	Fields     Fields
	CreatedBy  *uuid.UUID
	CreatedAt  time.Time
	UpdatedAt  time.Time

	// Relations is only populated by exports that expand related collections.
	Relations map[string][]RelationSummary
}
