package csvimport

import (
	"fmt"
	"io"
	"os"
	"regexp"

	"github.com/erp/bulkops/internal/domain/bulk"
	"github.com/erp/bulkops/internal/domain/identity"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type schemaFile struct {
	Entities []entityDoc `yaml:"entities"`
}

type entityDoc struct {
	Name          string         `yaml:"name"`
	Label         string         `yaml:"label"`
	NaturalKey    string         `yaml:"natural_key"`
	StatusField   string         `yaml:"status_field"`
	CategoryField string         `yaml:"category_field"`
	DateField     string         `yaml:"date_field"`
	SearchFields  []string       `yaml:"search_fields"`
	Relations     []string       `yaml:"relations"`
	ImportActions []string       `yaml:"import_actions"`
	ExportActions []string       `yaml:"export_actions"`
	Fields        []fieldDoc     `yaml:"fields"`
	CrossField    []crossRuleDoc `yaml:"cross_field"`
}

type fieldDoc struct {
	Name        string   `yaml:"name"`
	Label       string   `yaml:"label"`
	Type        string   `yaml:"type"`
	Required    bool     `yaml:"required"`
	MinLength   int      `yaml:"min_length"`
	MaxLength   int      `yaml:"max_length"`
	Pattern     string   `yaml:"pattern"`
	PatternDesc string   `yaml:"pattern_desc"`
	Values      []string `yaml:"values"`
	Min         string   `yaml:"min"`
	Max         string   `yaml:"max"`
}

type crossRuleDoc struct {
	Kind    string `yaml:"kind"`
	Field   string `yaml:"field"`
	Other   string `yaml:"other"`
	Message string `yaml:"message"`
}

// LoadSchemaFile reads entity schemas from a YAML file.
func LoadSchemaFile(path string) ([]*bulk.EntitySchema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open schema file: %w", err)
	}
	defer f.Close()
	return LoadSchemas(f)
}

// LoadSchemas decodes entity schemas from YAML and validates each of them.
func LoadSchemas(r io.Reader) ([]*bulk.EntitySchema, error) {
	var doc schemaFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode schema file: %w", err)
	}

	schemas := make([]*bulk.EntitySchema, 0, len(doc.Entities))
	for _, e := range doc.Entities {
		s, err := e.toSchema()
		if err != nil {
			return nil, fmt.Errorf("entity %q: %w", e.Name, err)
		}
		if err := s.Validate(); err != nil {
			return nil, err
		}
		schemas = append(schemas, s)
	}
	return schemas, nil
}

func (e entityDoc) toSchema() (*bulk.EntitySchema, error) {
	s := &bulk.EntitySchema{
		Name:          e.Name,
		Label:         e.Label,
		NaturalKey:    e.NaturalKey,
		StatusField:   e.StatusField,
		CategoryField: e.CategoryField,
		DateField:     e.DateField,
		SearchFields:  e.SearchFields,
		Relations:     e.Relations,
	}
	if s.Label == "" {
		s.Label = bulk.HumanizeFieldName(e.Name)
	}

	var err error
	if s.ImportActions, err = parseActions(e.ImportActions); err != nil {
		return nil, err
	}
	if s.ExportActions, err = parseActions(e.ExportActions); err != nil {
		return nil, err
	}

	for _, f := range e.Fields {
		rule, err := f.toRule()
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		s.Fields = append(s.Fields, rule)
	}

	for _, c := range e.CrossField {
		var rule bulk.CrossFieldRule
		switch bulk.CrossFieldKind(c.Kind) {
		case bulk.CrossNotBefore:
			rule = bulk.NotBefore(c.Field, c.Other)
		case bulk.CrossRequiredWith:
			rule = bulk.RequiredWith(c.Field, c.Other)
		default:
			return nil, fmt.Errorf("unknown cross-field rule kind %q", c.Kind)
		}
		if c.Message != "" {
			rule.Message = c.Message
		}
		s.CrossField = append(s.CrossField, rule)
	}
	return s, nil
}

func (f fieldDoc) toRule() (bulk.FieldRule, error) {
	b := bulk.Field(f.Name).Label(f.Label)
	if f.Type != "" {
		b.Type(bulk.FieldType(f.Type))
	}
	if len(f.Values) > 0 {
		b.Enum(f.Values...)
	}
	if f.Required {
		b.Required()
	}
	b.MinLength(f.MinLength).MaxLength(f.MaxLength)
	if f.Pattern != "" {
		if _, err := regexp.Compile(f.Pattern); err != nil {
			return bulk.FieldRule{}, fmt.Errorf("invalid pattern: %w", err)
		}
		b.Pattern(f.Pattern, f.PatternDesc)
	}
	if f.Min != "" {
		d, err := decimal.NewFromString(f.Min)
		if err != nil {
			return bulk.FieldRule{}, fmt.Errorf("invalid min: %w", err)
		}
		b.Min(d)
	}
	if f.Max != "" {
		d, err := decimal.NewFromString(f.Max)
		if err != nil {
			return bulk.FieldRule{}, fmt.Errorf("invalid max: %w", err)
		}
		b.Max(d)
	}
	return b.Build(), nil
}

func parseActions(names []string) ([]identity.Action, error) {
	out := make([]identity.Action, 0, len(names))
	for _, name := range names {
		a, err := identity.ParseAction(name)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
