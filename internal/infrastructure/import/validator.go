package csvimport

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/erp/bulkops/internal/domain/bulk"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Accepted input layouts for date fields, tried in order.
var dateLayouts = []string{
	bulk.DateLayout,
	"2006/01/02",
	"02.01.2006",
	time.RFC3339,
}

// SchemaValidator validates raw records against one entity schema and
// coerces them into normalized records. It never fails on malformed input;
// every problem becomes a row error.
type SchemaValidator struct {
	schema   *bulk.EntitySchema
	validate *validator.Validate
}

// NewSchemaValidator creates a validator for schema. A nil or inconsistent schema is an error.
func NewSchemaValidator(schema *bulk.EntitySchema) (*SchemaValidator, error) {
	if schema == nil {
		return nil, fmt.Errorf("schema validator: schema is nil")
	}
	if err := schema.Validate(); err != nil {
		return nil, fmt.Errorf("schema validator: %w", err)
	}
	return &SchemaValidator{
		schema:   schema,
		validate: validator.New(),
	}, nil
}

// Schema returns the schema the validator enforces.
func (v *SchemaValidator) Schema() *bulk.EntitySchema {
	return v.schema
}

// ValidateAll validates every record. Output preserves input order.
// Unknown columns are reported once each as warnings.
func (v *SchemaValidator) ValidateAll(records []bulk.ImportRecord) ([]bulk.NormalizedRecord, []bulk.RowError, []string) {
	var (
		valid   = make([]bulk.NormalizedRecord, 0, len(records))
		errs    []bulk.RowError
		unknown = make(map[string]struct{})
	)
	for _, rec := range records {
		for name := range rec.Raw {
			if _, ok := v.schema.FieldRule(name); !ok {
				unknown[name] = struct{}{}
			}
		}
		nr, rowErrs := v.Validate(rec.Row, rec.Raw)
		if len(rowErrs) > 0 {
			errs = append(errs, rowErrs...)
			continue
		}
		valid = append(valid, *nr)
	}

	names := make([]string, 0, len(unknown))
	for name := range unknown {
		names = append(names, name)
	}
	sort.Strings(names)
	warnings := make([]string, 0, len(names))
	for _, name := range names {
		warnings = append(warnings, fmt.Sprintf("ignored unknown column %q", name))
	}
	return valid, errs, warnings
}

// Validate checks one record. Exactly one of the results is non-empty.
func (v *SchemaValidator) Validate(row int, raw bulk.RawRecord) (*bulk.NormalizedRecord, []bulk.RowError) {
	fields := make(bulk.Fields, len(v.schema.Fields))
	var errs []bulk.RowError

	for _, rule := range v.schema.Fields {
		value, present := raw[rule.Name]
		if !present || value.IsBlank() {
			if rule.Required {
				errs = append(errs, rowErr(row, rule, bulk.CodeRequired, fmt.Sprintf("%s is required", rule.Label)))
			}
			continue
		}

		coerced, err := v.coerce(rule, value)
		if err != nil {
			code := bulk.CodeInvalidType
			var enumErr *enumError
			if errors.As(err, &enumErr) {
				code = bulk.CodeEnum
			}
			errs = append(errs, rowErr(row, rule, code, err.Error()))
			continue
		}
		if fieldErr := checkConstraints(row, rule, coerced); fieldErr != nil {
			errs = append(errs, *fieldErr)
			continue
		}
		fields[rule.Name] = coerced
	}

	if len(errs) > 0 {
		return nil, errs
	}

	for _, cf := range v.schema.CrossField {
		if !cf.Holds(fields) {
			errs = append(errs, bulk.RowError{Row: row, Field: cf.Field, Message: cf.Message, Code: bulk.CodeCrossField})
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	return &bulk.NormalizedRecord{
		Row:    row,
		Key:    v.schema.KeyOf(fields),
		Fields: fields,
	}, nil
}

func rowErr(row int, rule bulk.FieldRule, code, msg string) bulk.RowError {
	return bulk.RowError{Row: row, Field: rule.Name, Message: msg, Code: code}
}

// coerce converts a raw scalar into the kind declared by rule.
func (v *SchemaValidator) coerce(rule bulk.FieldRule, value bulk.Value) (bulk.Value, error) {
	text := strings.TrimSpace(value.Text())

	switch rule.Type {
	case bulk.FieldTypeString:
		return bulk.StringValue(text), nil

	case bulk.FieldTypeInt:
		if value.Kind() == bulk.KindNumber {
			if !value.Decimal().IsInteger() {
				return bulk.Value{}, fmt.Errorf("%s must be a whole number", rule.Label)
			}
			return value, nil
		}
		if value.Kind() == bulk.KindString {
			if i, err := strconv.ParseInt(text, 10, 64); err == nil {
				return bulk.IntValue(i), nil
			}
		}
		return bulk.Value{}, fmt.Errorf("%s must be a whole number", rule.Label)

	case bulk.FieldTypeDecimal:
		if value.Kind() == bulk.KindNumber {
			return value, nil
		}
		if value.Kind() == bulk.KindString {
			if d, err := decimal.NewFromString(text); err == nil {
				return bulk.NumberValue(d), nil
			}
		}
		return bulk.Value{}, fmt.Errorf("%s must be a number", rule.Label)

	case bulk.FieldTypeBool:
		if value.Kind() == bulk.KindBool {
			return value, nil
		}
		switch strings.ToLower(text) {
		case "true", "1", "yes", "y":
			return bulk.BoolValue(true), nil
		case "false", "0", "no", "n":
			return bulk.BoolValue(false), nil
		}
		return bulk.Value{}, fmt.Errorf("%s must be true or false", rule.Label)

	case bulk.FieldTypeDate:
		if value.Kind() == bulk.KindString {
			for _, layout := range dateLayouts {
				if t, err := time.Parse(layout, text); err == nil {
					return bulk.DateValue(t), nil
				}
			}
		}
		return bulk.Value{}, fmt.Errorf("%s must be a date (YYYY-MM-DD)", rule.Label)

	case bulk.FieldTypeEmail:
		if value.Kind() != bulk.KindString || v.validate.Var(text, "required,email") != nil {
			return bulk.Value{}, fmt.Errorf("%s must be a valid email address", rule.Label)
		}
		return bulk.StringValue(text), nil

	case bulk.FieldTypeUUID:
		id, err := uuid.Parse(text)
		if value.Kind() != bulk.KindString || err != nil {
			return bulk.Value{}, fmt.Errorf("%s must be a valid UUID", rule.Label)
		}
		return bulk.StringValue(id.String()), nil

	case bulk.FieldTypeEnum:
		for _, allowed := range rule.Enum {
			if strings.EqualFold(allowed, text) {
				return bulk.StringValue(allowed), nil
			}
		}
		return bulk.Value{}, &enumError{rule: rule}
	}
	return bulk.Value{}, fmt.Errorf("%s has unsupported type %s", rule.Label, rule.Type)
}

type enumError struct {
	rule bulk.FieldRule
}

func (e *enumError) Error() string {
	return fmt.Sprintf("%s must be one of: %s", e.rule.Label, strings.Join(e.rule.Enum, ", "))
}

// checkConstraints applies length, pattern and range rules to a coerced value.
func checkConstraints(row int, rule bulk.FieldRule, value bulk.Value) *bulk.RowError {
	if value.Kind() == bulk.KindString && rule.Type != bulk.FieldTypeEnum {
		n := utf8.RuneCountInString(value.Str())
		if rule.MinLength > 0 && n < rule.MinLength {
			e := rowErr(row, rule, bulk.CodeLength, fmt.Sprintf("%s must be at least %d characters", rule.Label, rule.MinLength))
			return &e
		}
		if rule.MaxLength > 0 && n > rule.MaxLength {
			e := rowErr(row, rule, bulk.CodeLength, fmt.Sprintf("%s must be at most %d characters", rule.Label, rule.MaxLength))
			return &e
		}
		if rule.Pattern != nil && !rule.Pattern.MatchString(value.Str()) {
			desc := rule.PatternDesc
			if desc == "" {
				desc = "in the expected format"
			}
			e := rowErr(row, rule, bulk.CodePattern, fmt.Sprintf("%s must be %s", rule.Label, desc))
			return &e
		}
	}
	if value.Kind() == bulk.KindNumber {
		d := value.Decimal()
		if rule.Min != nil && d.LessThan(*rule.Min) {
			e := rowErr(row, rule, bulk.CodeRange, fmt.Sprintf("%s must be at least %s", rule.Label, rule.Min.String()))
			return &e
		}
		if rule.Max != nil && d.GreaterThan(*rule.Max) {
			e := rowErr(row, rule, bulk.CodeRange, fmt.Sprintf("%s must be at most %s", rule.Label, rule.Max.String()))
			return &e
		}
	}
	return nil
}
