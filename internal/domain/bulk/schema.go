package bulk

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/erp/bulkops/internal/domain/identity"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// FieldType represents the declared type of a schema field
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeInt     FieldType = "int"
	FieldTypeDecimal FieldType = "decimal"
	FieldTypeBool    FieldType = "bool"
	FieldTypeDate    FieldType = "date"
	FieldTypeEmail   FieldType = "email"
	FieldTypeUUID    FieldType = "uuid"
	FieldTypeEnum    FieldType = "enum"
)

// IsValid reports whether t is a known field type.
func (t FieldType) IsValid() bool {
	switch t {
	case FieldTypeString, FieldTypeInt, FieldTypeDecimal, FieldTypeBool,
		FieldTypeDate, FieldTypeEmail, FieldTypeUUID, FieldTypeEnum:
		return true
	}
	return false
}

// FieldRule declares the constraints of one field.
type FieldRule struct {
	Name        string
	Label       string
	Type        FieldType
	Required    bool
	MinLength   int
	MaxLength   int
	Pattern     *regexp.Regexp
	PatternDesc string
	Enum        []string
	Min         *decimal.Decimal
	Max         *decimal.Decimal
}

// FieldBuilder provides a fluent interface for building field rules
type FieldBuilder struct {
	rule FieldRule
}

// Field starts a string field rule.
func Field(name string) *FieldBuilder {
	return &FieldBuilder{rule: FieldRule{Name: name, Type: FieldTypeString}}
}

// Label sets the human-readable name used in messages.
func (b *FieldBuilder) Label(label string) *FieldBuilder {
	b.rule.Label = label
	return b
}

// Required marks the field as required
func (b *FieldBuilder) Required() *FieldBuilder {
	b.rule.Required = true
	return b
}

// Type sets the field type
func (b *FieldBuilder) Type(t FieldType) *FieldBuilder {
	b.rule.Type = t
	return b
}

// Int sets the field type to integer
func (b *FieldBuilder) Int() *FieldBuilder { return b.Type(FieldTypeInt) }

// Decimal sets the field type to decimal
func (b *FieldBuilder) Decimal() *FieldBuilder { return b.Type(FieldTypeDecimal) }

// Bool sets the field type to boolean
func (b *FieldBuilder) Bool() *FieldBuilder { return b.Type(FieldTypeBool) }

// Date sets the field type to date
func (b *FieldBuilder) Date() *FieldBuilder { return b.Type(FieldTypeDate) }

// Email sets the field type to email
func (b *FieldBuilder) Email() *FieldBuilder { return b.Type(FieldTypeEmail) }

// UUID sets the field type to UUID
func (b *FieldBuilder) UUID() *FieldBuilder { return b.Type(FieldTypeUUID) }

// Enum restricts the field to the given values (matched case-insensitively).
func (b *FieldBuilder) Enum(values ...string) *FieldBuilder {
	b.rule.Type = FieldTypeEnum
	b.rule.Enum = append([]string(nil), values...)
	return b
}

// MinLength sets the minimum string length
func (b *FieldBuilder) MinLength(n int) *FieldBuilder {
	b.rule.MinLength = n
	return b
}

// MaxLength sets the maximum string length
func (b *FieldBuilder) MaxLength(n int) *FieldBuilder {
	b.rule.MaxLength = n
	return b
}

// Pattern sets a regex pattern the value must match
func (b *FieldBuilder) Pattern(pattern, desc string) *FieldBuilder {
	b.rule.Pattern = regexp.MustCompile(pattern)
	b.rule.PatternDesc = desc
	return b
}

// Min sets the inclusive numeric lower bound.
func (b *FieldBuilder) Min(d decimal.Decimal) *FieldBuilder {
	b.rule.Min = &d
	return b
}

// Max sets the inclusive numeric upper bound.
func (b *FieldBuilder) Max(d decimal.Decimal) *FieldBuilder {
	b.rule.Max = &d
	return b
}

// Build returns the completed field rule
func (b *FieldBuilder) Build() FieldRule {
	rule := b.rule
	if rule.Label == "" {
		rule.Label = HumanizeFieldName(rule.Name)
	}
	return rule
}

// HumanizeFieldName turns "start_date" into "Start Date".
func HumanizeFieldName(name string) string {
	// Casers carry state, so each call gets its own.
	return cases.Title(language.English).String(strings.ReplaceAll(strings.TrimSpace(name), "_", " "))
}

// CrossFieldKind enumerates the supported cross-field rules.
type CrossFieldKind string

const (
	// CrossNotBefore requires Field >= Other when both are present (dates or numbers).
	CrossNotBefore CrossFieldKind = "not_before"
	// CrossRequiredWith requires Field whenever Other is present.
	CrossRequiredWith CrossFieldKind = "required_with"
)

// CrossFieldRule relates two fields of the same record.
type CrossFieldRule struct {
	Kind    CrossFieldKind
	Field   string
	Other   string
	Message string
}

// NotBefore builds a rule requiring field not to precede other.
func NotBefore(field, other string) CrossFieldRule {
	return CrossFieldRule{
		Kind:    CrossNotBefore,
		Field:   field,
		Other:   other,
		Message: fmt.Sprintf("%s must not precede %s", HumanizeFieldName(field), HumanizeFieldName(other)),
	}
}

// RequiredWith builds a rule requiring field whenever other is set.
func RequiredWith(field, other string) CrossFieldRule {
	return CrossFieldRule{
		Kind:    CrossRequiredWith,
		Field:   field,
		Other:   other,
		Message: fmt.Sprintf("%s is required when %s is set", HumanizeFieldName(field), HumanizeFieldName(other)),
	}
}

// Holds evaluates the rule against normalized fields.
func (r CrossFieldRule) Holds(fields Fields) bool {
	v, hasField := fields[r.Field]
	o, hasOther := fields[r.Other]
	hasField = hasField && !v.IsNull()
	hasOther = hasOther && !o.IsNull()

	switch r.Kind {
	case CrossNotBefore:
		if !hasField || !hasOther {
			return true
		}
		cmp, ok := v.Compare(o)
		return !ok || cmp >= 0
	case CrossRequiredWith:
		return !hasOther || hasField
	}
	return true
}

// EntitySchema declares everything the engine needs to know about one entity.
type EntitySchema struct {
	Name       string
	Label      string
	NaturalKey string
	Fields     []FieldRule
	CrossField []CrossFieldRule

	// Promoted fields used for export filtering.
	StatusField   string
	CategoryField string
	DateField     string
	SearchFields  []string

	// Relations lists the related collections an export may expand.
	Relations []string

	// Actions required in addition to import_data / export_data.
	ImportActions []identity.Action
	ExportActions []identity.Action
}

// Validate checks the schema for internal consistency.
func (s *EntitySchema) Validate() error {
	if s == nil {
		return fmt.Errorf("schema is nil")
	}
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("schema name cannot be empty")
	}
	seen := make(map[string]struct{}, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("schema %s: field with empty name", s.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("schema %s: duplicate field %q", s.Name, f.Name)
		}
		if !f.Type.IsValid() {
			return fmt.Errorf("schema %s: field %q has unknown type %q", s.Name, f.Name, f.Type)
		}
		if f.Type == FieldTypeEnum && len(f.Enum) == 0 {
			return fmt.Errorf("schema %s: enum field %q has no values", s.Name, f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	key, ok := s.FieldRule(s.NaturalKey)
	if !ok {
		return fmt.Errorf("schema %s: natural key %q is not a declared field", s.Name, s.NaturalKey)
	}
	if !key.Required {
		return fmt.Errorf("schema %s: natural key %q must be required", s.Name, s.NaturalKey)
	}
	refs := append([]string{s.StatusField, s.CategoryField, s.DateField}, s.SearchFields...)
	for _, cf := range s.CrossField {
		refs = append(refs, cf.Field, cf.Other)
	}
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if _, ok := seen[ref]; !ok {
			return fmt.Errorf("schema %s: reference to undeclared field %q", s.Name, ref)
		}
	}
	for _, a := range append(append([]identity.Action{}, s.ImportActions...), s.ExportActions...) {
		if !a.IsValid() {
			return fmt.Errorf("schema %s: unknown action %q", s.Name, a)
		}
	}
	return nil
}

// FieldRule looks up a field by name.
func (s *EntitySchema) FieldRule(name string) (FieldRule, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldRule{}, false
}

// FieldNames returns field names in declaration order.
func (s *EntitySchema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// HasRelation reports whether the schema exposes the named relation.
func (s *EntitySchema) HasRelation(name string) bool {
	for _, r := range s.Relations {
		if r == name {
			return true
		}
	}
	return false
}

// RequiredImportActions returns import_data plus the schema's extra import actions.
func (s *EntitySchema) RequiredImportActions() []identity.Action {
	return withBase(identity.ActionImportData, s.ImportActions)
}

// RequiredExportActions returns export_data plus the schema's extra export actions.
func (s *EntitySchema) RequiredExportActions() []identity.Action {
	return withBase(identity.ActionExportData, s.ExportActions)
}

func withBase(base identity.Action, extra []identity.Action) []identity.Action {
	out := []identity.Action{base}
	for _, a := range extra {
		if a != base {
			out = append(out, a)
		}
	}
	return out
}

// NormalizeKey folds a natural key for comparison.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// KeyOf extracts the normalized natural key from fields.
func (s *EntitySchema) KeyOf(fields Fields) string {
	return NormalizeKey(fields[s.NaturalKey].Text())
}

// ToRecord converts a normalized record into its persisted form.
func (s *EntitySchema) ToRecord(orgID, callerID uuid.UUID, nr NormalizedRecord) *Record {
	rec := &Record{
		OrgID:  orgID,
		Entity: s.Name,
		Key:    nr.Key,
		Fields: nr.Fields.Clone(),
	}
	if callerID != uuid.Nil {
		rec.CreatedBy = &callerID
	}
	if s.StatusField != "" {
		rec.Status = nr.Fields[s.StatusField].Text()
	}
	if s.CategoryField != "" {
		rec.Category = nr.Fields[s.CategoryField].Text()
	}
	if s.DateField != "" {
		if v := nr.Fields[s.DateField]; v.Kind() == KindDate {
			t := v.Time()
			rec.RecordDate = &t
		}
	}
	parts := make([]string, 0, len(s.SearchFields))
	for _, name := range s.SearchFields {
		if text := nr.Fields[name].Text(); text != "" {
			parts = append(parts, strings.ToLower(text))
		}
	}
	rec.SearchText = strings.Join(parts, " ")
	return rec
}
