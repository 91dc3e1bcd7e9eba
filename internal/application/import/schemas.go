package importapp

import (
	"github.com/erp/bulkops/internal/domain/bulk"
	"github.com/erp/bulkops/internal/domain/identity"
	"github.com/shopspring/decimal"
)

// Built-in entity names
const (
	EntityPeople         = "people"
	EntityProjects       = "projects"
	EntityCertifications = "certifications"
	EntityFinance        = "finance"
)

// PeopleSchema returns the schema for people records
func PeopleSchema() *bulk.EntitySchema {
	return &bulk.EntitySchema{
		Name:       EntityPeople,
		Label:      "People",
		NaturalKey: "email",
		Fields: []bulk.FieldRule{
			bulk.Field("name").Required().MinLength(1).MaxLength(200).Build(),
			bulk.Field("email").Required().Email().MaxLength(255).Build(),
			bulk.Field("phone").MaxLength(50).Build(),
			bulk.Field("department").MaxLength(100).Build(),
			bulk.Field("title").MaxLength(100).Build(),
			bulk.Field("status").Enum("active", "inactive", "on_leave").Build(),
			bulk.Field("start_date").Date().Build(),
			bulk.Field("end_date").Date().Build(),
		},
		CrossField:    []bulk.CrossFieldRule{bulk.NotBefore("end_date", "start_date")},
		StatusField:   "status",
		CategoryField: "department",
		DateField:     "start_date",
		SearchFields:  []string{"name", "email", "title"},
		Relations:     []string{"competencies", "assignments"},
		ImportActions: []identity.Action{identity.ActionManageMembers},
	}
}

// ProjectsSchema returns the schema for project records
func ProjectsSchema() *bulk.EntitySchema {
	return &bulk.EntitySchema{
		Name:       EntityProjects,
		Label:      "Projects",
		NaturalKey: "code",
		Fields: []bulk.FieldRule{
			bulk.Field("code").Required().MaxLength(50).Build(),
			bulk.Field("name").Required().MaxLength(200).Build(),
			bulk.Field("status").Enum("planned", "active", "on_hold", "completed", "cancelled").Build(),
			bulk.Field("category").MaxLength(100).Build(),
			bulk.Field("budget").Decimal().Min(decimal.Zero).Build(),
			bulk.Field("start_date").Date().Build(),
			bulk.Field("end_date").Date().Build(),
		},
		CrossField:    []bulk.CrossFieldRule{bulk.NotBefore("end_date", "start_date")},
		StatusField:   "status",
		CategoryField: "category",
		DateField:     "start_date",
		SearchFields:  []string{"code", "name"},
		Relations:     []string{"assignments"},
		ImportActions: []identity.Action{identity.ActionManageProjects},
	}
}

// CertificationsSchema returns the schema for certification records
func CertificationsSchema() *bulk.EntitySchema {
	return &bulk.EntitySchema{
		Name:       EntityCertifications,
		Label:      "Certifications",
		NaturalKey: "name",
		Fields: []bulk.FieldRule{
			bulk.Field("name").Required().MaxLength(200).Build(),
			bulk.Field("issuer").MaxLength(200).Build(),
			bulk.Field("category").MaxLength(100).Build(),
			bulk.Field("validity_months").Int().Min(decimal.NewFromInt(1)).Max(decimal.NewFromInt(600)).Build(),
			bulk.Field("status").Enum("active", "retired").Build(),
		},
		StatusField:   "status",
		CategoryField: "category",
		SearchFields:  []string{"name", "issuer"},
		Relations:     []string{"holders"},
		ImportActions: []identity.Action{identity.ActionManageCertifications},
	}
}

// FinanceSchema returns the schema for finance entries
func FinanceSchema() *bulk.EntitySchema {
	return &bulk.EntitySchema{
		Name:       EntityFinance,
		Label:      "Finance",
		NaturalKey: "reference",
		Fields: []bulk.FieldRule{
			bulk.Field("reference").Required().MaxLength(64).Build(),
			bulk.Field("description").MaxLength(500).Build(),
			bulk.Field("amount").Required().Decimal().Build(),
			bulk.Field("currency").Pattern(`^[A-Z]{3}$`, "a three-letter ISO currency code").Build(),
			bulk.Field("category").MaxLength(100).Build(),
			bulk.Field("status").Enum("draft", "posted", "void").Build(),
			bulk.Field("booked_on").Required().Date().Build(),
		},
		StatusField:   "status",
		CategoryField: "category",
		DateField:     "booked_on",
		SearchFields:  []string{"reference", "description"},
		ImportActions: []identity.Action{identity.ActionManageFinance},
		ExportActions: []identity.Action{identity.ActionManageFinance},
	}
}

// DefaultSchemas returns the built-in schemas.
func DefaultSchemas() []*bulk.EntitySchema {
	return []*bulk.EntitySchema{
		PeopleSchema(),
		ProjectsSchema(),
		CertificationsSchema(),
		FinanceSchema(),
	}
}

// NewSchemaRegistry registers the built-in schemas followed by overrides.
// An override with a built-in name replaces it.
func NewSchemaRegistry(overrides ...*bulk.EntitySchema) (*bulk.SchemaRegistry, error) {
	return bulk.NewSchemaRegistry(append(DefaultSchemas(), overrides...)...)
}
