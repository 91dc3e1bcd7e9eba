package bulk

import (
	"time"
)

// AllFields is the field allow-list wildcard.
const AllFields = "*"

// ExportFilter holds additive (AND) filter predicates.
type ExportFilter struct {
	Status   []string   `json:"status,omitempty"`
	Category []string   `json:"category,omitempty"`
	DateFrom *time.Time `json:"dateFrom,omitempty"`
	DateTo   *time.Time `json:"dateTo,omitempty"`
	Search   string     `json:"search,omitempty"`
}

// ExportRequest is one export invocation.
type ExportRequest struct {
	Entity           string       `json:"entity" validate:"required"`
	Format           Format       `json:"format" validate:"required"`
	Fields           []string     `json:"fields" validate:"omitempty,dive,required"`
	Filters          ExportFilter `json:"filters"`
	IncludeRelations bool         `json:"includeRelations"`
	Filename         string       `json:"filename,omitempty" validate:"omitempty,max=200"`
}

// WantsAllFields reports whether the allow-list is empty or the wildcard.
func (r ExportRequest) WantsAllFields() bool {
	if len(r.Fields) == 0 {
		return true
	}
	for _, f := range r.Fields {
		if f == AllFields {
			return true
		}
	}
	return false
}

// ExportResult is the outcome of an export.
type ExportResult struct {
	Success     bool     `json:"success"`
	RecordCount int      `json:"recordCount"`
	Data        []byte   `json:"data,omitempty"`
	URL         string   `json:"url,omitempty"`
	Filename    string   `json:"filename"`
	Format      Format   `json:"format"`
	ContentType string   `json:"contentType,omitempty"`
	Degraded    bool     `json:"degraded,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// FailedExport builds an unsuccessful export result.
func FailedExport(filename string, format Format, msg string) *ExportResult {
	return &ExportResult{
		Success:  false,
		Filename: filename,
		Format:   format,
		Error:    msg,
	}
}
