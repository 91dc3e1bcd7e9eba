package bulk

import (
	"fmt"
	"strings"
)

// Format is an import or export payload format.
type Format string

const (
	FormatCSV         Format = "csv"
	FormatJSON        Format = "json"
	FormatSpreadsheet Format = "spreadsheet"
	FormatDocument    Format = "document"
)

var formatAliases = map[string]Format{
	"csv":             FormatCSV,
	"delimited-text":  FormatCSV,
	"json":            FormatJSON,
	"structured-text": FormatJSON,
	"spreadsheet":     FormatSpreadsheet,
	"xlsx":            FormatSpreadsheet,
	"document":        FormatDocument,
	"pdf":             FormatDocument,
}

// ParseFormat resolves a format name or alias.
func ParseFormat(s string) (Format, error) {
	f, ok := formatAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
	return f, nil
}

// CanImport reports whether records can be imported from f.
// Spreadsheet input arrives as already tabulated rows.
func (f Format) CanImport() bool {
	return f == FormatCSV || f == FormatJSON || f == FormatSpreadsheet
}

// CanExport reports whether records can be exported to f.
func (f Format) CanExport() bool {
	_, ok := formatAliases[string(f)]
	return ok
}

// Extension returns the filename extension, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatCSV:
		return ".csv"
	case FormatJSON:
		return ".json"
	case FormatSpreadsheet:
		return ".xlsx"
	case FormatDocument:
		return ".pdf"
	}
	return ""
}

// ContentType returns the MIME type of payloads in f.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatJSON:
		return "application/json"
	case FormatSpreadsheet:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatDocument:
		return "application/pdf"
	}
	return "application/octet-stream"
}
