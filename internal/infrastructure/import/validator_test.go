package csvimport

import (
	"testing"

	"github.com/erp/bulkops/internal/domain/bulk"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func peopleSchema() *bulk.EntitySchema {
	return &bulk.EntitySchema{
		Name:       "people",
		NaturalKey: "email",
		Fields: []bulk.FieldRule{
			bulk.Field("name").Required().MaxLength(10).Build(),
			bulk.Field("email").Required().Email().Build(),
			bulk.Field("status").Enum("active", "inactive").Build(),
			bulk.Field("headcount").Int().Min(decimal.NewFromInt(0)).Build(),
			bulk.Field("budget").Decimal().Max(decimal.NewFromInt(1000)).Build(),
			bulk.Field("remote").Bool().Build(),
			bulk.Field("code").Pattern(`^[A-Z]{2}-\d+$`, "like AB-12").Build(),
			bulk.Field("owner_id").UUID().Build(),
			bulk.Field("start_date").Date().Build(),
			bulk.Field("end_date").Date().Build(),
		},
		CrossField: []bulk.CrossFieldRule{bulk.NotBefore("end_date", "start_date")},
	}
}

func newValidator(t *testing.T) *SchemaValidator {
	t.Helper()
	v, err := NewSchemaValidator(peopleSchema())
	require.NoError(t, err)
	return v
}

func str(s string) bulk.Value { return bulk.StringValue(s) }

func TestNewSchemaValidator_RequiresSchema(t *testing.T) {
	_, err := NewSchemaValidator(nil)
	assert.Error(t, err)

	bad := peopleSchema()
	bad.NaturalKey = "nickname"
	_, err = NewSchemaValidator(bad)
	assert.Error(t, err)
}

func TestSchemaValidator_RequiredEmail(t *testing.T) {
	v := newValidator(t)
	records := bulk.TagRows([]bulk.RawRecord{
		{"name": str("A"), "email": str("a@x.com")},
		{"name": str("B"), "email": str("")},
	})

	valid, errs, warnings := v.ValidateAll(records)
	require.Len(t, valid, 1)
	assert.Equal(t, 1, valid[0].Row)
	assert.Equal(t, "a@x.com", valid[0].Key)
	assert.Empty(t, warnings)

	require.Len(t, errs, 1)
	assert.Equal(t, bulk.RowError{Row: 2, Field: "email", Message: "Email is required", Code: bulk.CodeRequired}, errs[0])
}

func TestSchemaValidator_Coercion(t *testing.T) {
	v := newValidator(t)
	nr, errs := v.Validate(1, bulk.RawRecord{
		"name":       str(" Ada "),
		"email":      str("Ada@Example.com"),
		"status":     str("ACTIVE"),
		"headcount":  str("12"),
		"budget":     bulk.NumberValue(decimal.RequireFromString("99.95")),
		"remote":     str("yes"),
		"code":       str("AB-12"),
		"owner_id":   str("6F9619FF-8B86-D011-B42D-00C04FC964FF"),
		"start_date": str("2024/02/01"),
		"end_date":   str("2024-03-01"),
	})
	require.Empty(t, errs)
	require.NotNil(t, nr)

	assert.Equal(t, "Ada", nr.Fields["name"].Str())
	assert.Equal(t, "ada@example.com", nr.Key)
	assert.Equal(t, "active", nr.Fields["status"].Str())
	assert.Equal(t, bulk.KindNumber, nr.Fields["headcount"].Kind())
	assert.Equal(t, "12", nr.Fields["headcount"].Text())
	assert.True(t, nr.Fields["remote"].Bool())
	assert.Equal(t, "6f9619ff-8b86-d011-b42d-00c04fc964ff", nr.Fields["owner_id"].Str())
	assert.Equal(t, bulk.KindDate, nr.Fields["start_date"].Kind())
	assert.Equal(t, "2024-02-01", nr.Fields["start_date"].Text())
}

func TestSchemaValidator_FieldErrors(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		value   bulk.Value
		code    string
		message string
	}{
		{"too long", "name", str("Bartholomew Jr"), bulk.CodeLength, "Name must be at most 10 characters"},
		{"bad email", "email", str("not-an-email"), bulk.CodeInvalidType, "Email must be a valid email address"},
		{"bad enum", "status", str("retired"), bulk.CodeEnum, "Status must be one of: active, inactive"},
		{"non numeric int", "headcount", str("a dozen"), bulk.CodeInvalidType, "Headcount must be a whole number"},
		{"fractional int", "headcount", bulk.NumberValue(decimal.RequireFromString("1.5")), bulk.CodeInvalidType, "Headcount must be a whole number"},
		{"negative int", "headcount", str("-1"), bulk.CodeRange, "Headcount must be at least 0"},
		{"non numeric decimal", "budget", str("12,5"), bulk.CodeInvalidType, "Budget must be a number"},
		{"decimal above max", "budget", str("1000.01"), bulk.CodeRange, "Budget must be at most 1000"},
		{"bad bool", "remote", str("sometimes"), bulk.CodeInvalidType, "Remote must be true or false"},
		{"bool from number", "remote", bulk.IntValue(2), bulk.CodeInvalidType, "Remote must be true or false"},
		{"pattern", "code", str("ab12"), bulk.CodePattern, "Code must be like AB-12"},
		{"bad uuid", "owner_id", str("1234"), bulk.CodeInvalidType, "Owner Id must be a valid UUID"},
		{"bad date", "start_date", str("31/12/2024"), bulk.CodeInvalidType, "Start Date must be a date (YYYY-MM-DD)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newValidator(t)
			raw := bulk.RawRecord{"name": str("Ada"), "email": str("ada@example.com")}
			raw[tt.field] = tt.value

			nr, errs := v.Validate(7, raw)
			assert.Nil(t, nr)
			require.Len(t, errs, 1)
			assert.Equal(t, bulk.RowError{Row: 7, Field: tt.field, Message: tt.message, Code: tt.code}, errs[0])
		})
	}
}

func TestSchemaValidator_CrossField(t *testing.T) {
	v := newValidator(t)
	_, errs := v.Validate(4, bulk.RawRecord{
		"name":       str("Ada"),
		"email":      str("ada@example.com"),
		"start_date": str("2024-05-01"),
		"end_date":   str("2024-04-30"),
	})
	require.Len(t, errs, 1)
	assert.Equal(t, "end_date", errs[0].Field)
	assert.Equal(t, bulk.CodeCrossField, errs[0].Code)
	assert.Equal(t, "End Date must not precede Start Date", errs[0].Message)
}

func TestSchemaValidator_ReportsAllFieldErrorsOfARow(t *testing.T) {
	v := newValidator(t)
	_, errs := v.Validate(9, bulk.RawRecord{"remote": str("maybe")})
	require.Len(t, errs, 3)
	assert.Equal(t, []string{"name", "email", "remote"}, []string{errs[0].Field, errs[1].Field, errs[2].Field})
}

func TestSchemaValidator_UnknownColumnsWarnOnce(t *testing.T) {
	v := newValidator(t)
	records := bulk.TagRows([]bulk.RawRecord{
		{"name": str("A"), "email": str("a@x.com"), "nickname": str("x")},
		{"name": str("B"), "email": str("b@x.com"), "nickname": str("y"), "age": bulk.IntValue(3)},
	})
	valid, errs, warnings := v.ValidateAll(records)
	assert.Len(t, valid, 2)
	assert.Empty(t, errs)
	assert.Equal(t, []string{`ignored unknown column "age"`, `ignored unknown column "nickname"`}, warnings)
}

func TestSchemaValidator_OptionalBlankIsAbsent(t *testing.T) {
	v := newValidator(t)
	nr, errs := v.Validate(1, bulk.RawRecord{
		"name":   str("A"),
		"email":  str("a@x.com"),
		"status": str("   "),
		"budget": bulk.NullValue(),
	})
	require.Empty(t, errs)
	_, hasStatus := nr.Fields["status"]
	_, hasBudget := nr.Fields["budget"]
	assert.False(t, hasStatus)
	assert.False(t, hasBudget)
}
